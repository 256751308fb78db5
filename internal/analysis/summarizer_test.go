package analysis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devtrackhq/devtrack-service/internal/github"
)

// failingStreamer always fails to open a stream, exercising the upstream
// error fallbacks.
type failingStreamer struct{}

var _ ChatStreamer = (*failingStreamer)(nil)

func (failingStreamer) CreateChatCompletionStream(_ context.Context, _ openai.ChatCompletionRequest) (*openai.ChatCompletionStream, error) {
	return nil, errors.New("connection refused")
}

// newStreamingServer returns a summarizer backed by an SSE endpoint that
// streams the given content split into chunks.
func newStreamingServer(t *testing.T, chunks []string) *Summarizer {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")

		for _, chunk := range chunks {
			fmt.Fprintf(w,
				`data: {"id":"1","object":"chat.completion.chunk","created":0,"model":"test","choices":[{"index":0,"delta":{"content":%q},"finish_reason":null}]}`+"\n\n",
				chunk,
			)
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	t.Cleanup(server.Close)

	cfg := openai.DefaultConfig("test-key")
	cfg.BaseURL = server.URL + "/v1"

	return NewSummarizerWithClient(openai.NewClientWithConfig(cfg), "test-model", slog.Default())
}

func TestSummarizer_SummarizeFile(t *testing.T) {
	ctx := context.Background()
	file := github.ChangedFile{Filename: "src/app.go", Status: "modified", Patch: "+added line"}

	t.Run("Success: chunks reassembled and parsed", func(t *testing.T) {
		s := newStreamingServer(t, []string{`{"summary": "added `, `a line to app.go"}`})

		summary := s.SummarizeFile(ctx, file)

		assert.Equal(t, "src/app.go", summary.Filename)
		assert.Equal(t, "added a line to app.go", summary.Summary)
	})

	t.Run("Success: fenced response is repaired", func(t *testing.T) {
		s := newStreamingServer(t, []string{"```json\n", `{"summary": "refactor"}`, "\n```"})

		summary := s.SummarizeFile(ctx, file)

		assert.Equal(t, "refactor", summary.Summary)
	})

	t.Run("Success: bare text response is wrapped", func(t *testing.T) {
		s := newStreamingServer(t, []string{"The developer added logging"})

		summary := s.SummarizeFile(ctx, file)

		assert.Equal(t, "The developer added logging", summary.Summary)
	})

	t.Run("Fallback: empty object yields parse fallback", func(t *testing.T) {
		s := newStreamingServer(t, []string{"{}"})

		summary := s.SummarizeFile(ctx, file)

		assert.Equal(t, fallbackParseSummary, summary.Summary)
	})

	t.Run("Fallback: upstream failure yields analyze fallback", func(t *testing.T) {
		s := NewSummarizerWithClient(failingStreamer{}, "test-model", slog.Default())

		summary := s.SummarizeFile(ctx, file)

		assert.Equal(t, "src/app.go", summary.Filename)
		assert.Equal(t, fallbackAnalyzeSummary, summary.Summary)
	})
}

func TestSummarizer_SummarizeFiles_KeepsOrder(t *testing.T) {
	ctx := context.Background()
	s := newStreamingServer(t, []string{`{"summary": "changed"}`})

	files := []github.ChangedFile{
		{Filename: "a.go"},
		{Filename: "b.go"},
		{Filename: "c.go"},
	}

	summaries := s.SummarizeFiles(ctx, files)

	require.Len(t, summaries, 3)
	assert.Equal(t, "a.go", summaries[0].Filename)
	assert.Equal(t, "b.go", summaries[1].Filename)
	assert.Equal(t, "c.go", summaries[2].Filename)
}

func TestSummarizer_SynthesizeTasks(t *testing.T) {
	ctx := context.Background()

	t.Run("Success: both lists returned", func(t *testing.T) {
		s := newStreamingServer(t, []string{
			`{"technicalTasks": [{"title": "Add retry", "description": "Retry token exchange"}],`,
			`"nonTechnicalTasks": [{"title": "More reliable", "description": "Fewer sync failures"}]}`,
		})

		bundle := s.SynthesizeTasks(ctx, "Added retry logic")

		require.Len(t, bundle.TechnicalTasks, 1)
		require.Len(t, bundle.NonTechnicalTasks, 1)
		assert.Equal(t, "Add retry", bundle.TechnicalTasks[0].Title)
	})

	t.Run("Fallback: upstream failure yields empty lists", func(t *testing.T) {
		s := NewSummarizerWithClient(failingStreamer{}, "test-model", slog.Default())

		bundle := s.SynthesizeTasks(ctx, "whatever")

		assert.NotNil(t, bundle.TechnicalTasks)
		assert.NotNil(t, bundle.NonTechnicalTasks)
		assert.Empty(t, bundle.TechnicalTasks)
		assert.Empty(t, bundle.NonTechnicalTasks)
	})

	t.Run("Fallback: unparseable response yields empty lists", func(t *testing.T) {
		s := newStreamingServer(t, []string{"no structure here at all"})

		bundle := s.SynthesizeTasks(ctx, "whatever")

		assert.Empty(t, bundle.TechnicalTasks)
		assert.Empty(t, bundle.NonTechnicalTasks)
	})
}
