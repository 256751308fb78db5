package analysis

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/sashabaranov/go-openai"
	"golang.org/x/sync/errgroup"

	"github.com/devtrackhq/devtrack-service/internal/config"
	"github.com/devtrackhq/devtrack-service/internal/domain"
	"github.com/devtrackhq/devtrack-service/internal/github"
	"github.com/devtrackhq/devtrack-service/pkg/logger/sl"
)

const (
	// Fallback summaries, returned instead of propagating LLM failures so a
	// single noisy file never blocks a commit from being recorded.
	fallbackAnalyzeSummary = "Failed to analyze changes"
	fallbackParseSummary   = "Failed to parse changes"

	fallbackTaskTitle       = "Untitled Task"
	fallbackTaskDescription = "No description provided"

	// Number of files summarized in parallel per commit.
	summaryConcurrency = 5
)

const summarySystemPrompt = `You will be provided with github diffs

A plus icon in starting shows new lines added and a minus sign shows old lines removed or replaced if followed by plus icons

No + or - icon shows untouched code

Your job is to analyze the github diff and provide the summary what has been done by developer.

IMPORTANT:
- Return a JSON object in this EXACT format: {"summary": "your summary here"}
- Do not include any markdown formatting or backticks
- The summary should be a string describing the changes
- Do not include any other fields or formatting`

const tasksSystemPrompt = `You are a task analyzer for code changes. Your job is to:
1. Create technical tasks that describe the exact technical changes made
2. Create non-technical tasks by translating those technical changes into user-friendly language

For example:
Technical: "Added error handling for API timeout with 30s threshold and exponential backoff"
Non-technical: "Improved app reliability by handling slow network connections better"

Return a JSON object in this EXACT format:
{
  "technicalTasks": [
    {
      "title": "Technical task title",
      "description": "Detailed technical description"
    }
  ],
  "nonTechnicalTasks": [
    {
      "title": "User-friendly task title",
      "description": "Simple description without technical jargon"
    }
  ]
}

IMPORTANT:
- Technical tasks should contain exact technical details
- Non-technical tasks should be understandable by non-technical people
- Both should describe the same changes but in different ways
- Return ONLY the JSON object, no markdown formatting
- Do not include any backticks or code block markers`

// ChatStreamer is the slice of the OpenAI-compatible client the summarizer
// needs. Satisfied by *openai.Client.
type ChatStreamer interface {
	CreateChatCompletionStream(ctx context.Context, request openai.ChatCompletionRequest) (*openai.ChatCompletionStream, error)
}

// Summarizer generates per-file summaries and task bundles from diffs. The
// model is treated as an untrusted, loosely-structured text source: every
// response goes through fence-stripping, JSON repair and schema coercion, and
// no method ever returns an error past its own boundary.
type Summarizer struct {
	client ChatStreamer
	model  string
	log    *slog.Logger
}

// NewSummarizer builds a Summarizer against an OpenAI-compatible endpoint.
// BaseURL lets the same client talk to Groq or any other compatible vendor.
func NewSummarizer(cfg config.LLM, log *slog.Logger) *Summarizer {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	return &Summarizer{
		client: openai.NewClientWithConfig(clientCfg),
		model:  cfg.Model,
		log:    log,
	}
}

// NewSummarizerWithClient is used by tests to inject a fake streamer.
func NewSummarizerWithClient(client ChatStreamer, model string, log *slog.Logger) *Summarizer {
	return &Summarizer{client: client, model: model, log: log}
}

// SummarizeFile asks the model to describe one file's patch. It always
// returns a summary; failures degrade to a fixed fallback value.
func (s *Summarizer) SummarizeFile(ctx context.Context, file github.ChangedFile) domain.FileSummary {
	diff := fmt.Sprintf("filename: %s\nstatus: %s\n%s", file.Filename, file.Status, file.Patch)

	raw, err := s.complete(ctx, summarySystemPrompt, diff)
	if err != nil {
		s.log.Error("diff summarization failed", slog.String("filename", file.Filename), sl.Err(err))
		return domain.FileSummary{Filename: file.Filename, Summary: fallbackAnalyzeSummary}
	}

	summary, err := parseSummary(repairJSON(raw))
	if err != nil {
		s.log.Error("failed to parse summary response", slog.String("filename", file.Filename), sl.Err(err))
		return domain.FileSummary{Filename: file.Filename, Summary: fallbackParseSummary}
	}

	return domain.FileSummary{Filename: file.Filename, Summary: summary}
}

// SummarizeFiles fans out SummarizeFile over a commit's file set. Order of
// completion is irrelevant; results keep the input order.
func (s *Summarizer) SummarizeFiles(ctx context.Context, files []github.ChangedFile) []domain.FileSummary {
	summaries := make([]domain.FileSummary, len(files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(summaryConcurrency)

	for i, file := range files {
		i, file := i, file
		g.Go(func() error {
			summaries[i] = s.SummarizeFile(gctx, file)
			return nil
		})
	}

	// SummarizeFile never returns an error, so Wait cannot fail.
	_ = g.Wait()

	return summaries
}

// SynthesizeTasks turns joined per-file summaries into parallel technical and
// non-technical task lists. On any failure it returns empty lists.
func (s *Summarizer) SynthesizeTasks(ctx context.Context, joinedSummaries string) domain.TaskBundle {
	raw, err := s.complete(ctx, tasksSystemPrompt, joinedSummaries)
	if err != nil {
		s.log.Error("task synthesis failed", sl.Err(err))
		return domain.TaskBundle{TechnicalTasks: []domain.Task{}, NonTechnicalTasks: []domain.Task{}}
	}

	bundle, err := parseTasks(repairJSON(raw))
	if err != nil {
		s.log.Error("failed to parse tasks response", sl.Err(err))
		return domain.TaskBundle{TechnicalTasks: []domain.Task{}, NonTechnicalTasks: []domain.Task{}}
	}

	return bundle
}

// complete streams a chat completion and reassembles the chunks into one string.
func (s *Summarizer) complete(ctx context.Context, systemPrompt, userContent string) (string, error) {
	stream, err := s.client.CreateChatCompletionStream(ctx, openai.ChatCompletionRequest{
		Model: s.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userContent},
		},
		Temperature: 0.7,
		MaxTokens:   2048,
		TopP:        1,
		Stream:      true,
	})
	if err != nil {
		return "", fmt.Errorf("failed to open completion stream: %w", err)
	}
	defer stream.Close()

	var sb strings.Builder

	for {
		resp, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("completion stream failed: %w", err)
		}

		if len(resp.Choices) > 0 {
			sb.WriteString(resp.Choices[0].Delta.Content)
		}
	}

	if sb.Len() == 0 {
		return "", errors.New("model returned an empty response")
	}

	return sb.String(), nil
}
