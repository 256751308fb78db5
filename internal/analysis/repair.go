package analysis

import (
	"encoding/json"
	"errors"
	"regexp"
	"strings"

	"github.com/devtrackhq/devtrack-service/internal/domain"
)

var fenceOpenPattern = regexp.MustCompile("```json\\s*")

// repairJSON normalizes loosely-structured model output into something the
// JSON decoder has a chance with: markdown fences are stripped, and bare text
// is wrapped into a {"summary": ...} object.
func repairJSON(text string) string {
	cleaned := fenceOpenPattern.ReplaceAllString(text, "")
	cleaned = strings.ReplaceAll(cleaned, "```", "")
	cleaned = strings.TrimSpace(cleaned)

	if !strings.HasPrefix(cleaned, "{") {
		if !strings.Contains(cleaned, `"summary"`) {
			quoted, _ := json.Marshal(cleaned)
			cleaned = `{"summary": ` + string(quoted) + `}`
		} else {
			cleaned = "{" + cleaned + "}"
		}
	}

	return cleaned
}

// parseSummary decodes a repaired summary object and validates that the
// summary field is a non-empty string.
func parseSummary(raw string) (string, error) {
	var parsed struct {
		Summary string `json:"summary"`
	}
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return "", err
	}
	if parsed.Summary == "" {
		return "", errors.New("summary field is missing or empty")
	}

	return parsed.Summary, nil
}

// parseTasks decodes a repaired task object and coerces it to the expected
// schema: both arrays always present, every task carrying a non-empty title
// and description. Tasks are never dropped for missing text.
func parseTasks(raw string) (domain.TaskBundle, error) {
	var parsed struct {
		TechnicalTasks    []domain.Task `json:"technicalTasks"`
		NonTechnicalTasks []domain.Task `json:"nonTechnicalTasks"`
	}
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return domain.TaskBundle{}, err
	}

	return domain.TaskBundle{
		TechnicalTasks:    coerceTasks(parsed.TechnicalTasks),
		NonTechnicalTasks: coerceTasks(parsed.NonTechnicalTasks),
	}, nil
}

func coerceTasks(tasks []domain.Task) []domain.Task {
	coerced := make([]domain.Task, 0, len(tasks))
	for _, task := range tasks {
		if task.Title == "" {
			task.Title = fallbackTaskTitle
		}
		if task.Description == "" {
			task.Description = fallbackTaskDescription
		}
		coerced = append(coerced, task)
	}

	return coerced
}
