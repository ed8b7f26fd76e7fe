package games

import (
	"fmt"
	"sort"
	"strings"
)

// QuestionOptions marks a multi-select question; its answer is a list.
const QuestionOptions = "options"

// Question is one quiz prompt.
type Question struct {
	Key      string   `json:"key"`
	Type     string   `json:"type"`
	Text     string   `json:"question"`
	Options  []string `json:"options,omitempty"`
	Category string   `json:"category,omitempty"`
}

// Quiz is an ordered list of questions.
type Quiz struct {
	ID        string     `json:"id"`
	Title     string     `json:"title,omitempty"`
	Questions []Question `json:"questions"`
}

// Response is one answered question in submission order.
type Response struct {
	Key   string `json:"key"`
	Value any    `json:"value"`
}

// Answers maps question keys to a string or a list of strings.
type Answers map[string]any

// IsAnswered reports whether key holds a usable answer for a question of
// the given type.
func (a Answers) IsAnswered(key, questionType string) bool {
	v, ok := a[key]
	if !ok || v == nil {
		return false
	}
	if questionType == QuestionOptions {
		return len(stringList(v)) > 0
	}
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val) != ""
	case []string, []any:
		return len(stringList(val)) > 0
	default:
		return strings.TrimSpace(fmt.Sprint(val)) != ""
	}
}

// Responses orders the answers by question order. Answers for keys the
// quiz does not ask are appended in key order.
func (a Answers) Responses(q Quiz) []Response {
	out := make([]Response, 0, len(a))
	seen := make(map[string]bool, len(q.Questions))
	for _, question := range q.Questions {
		seen[question.Key] = true
		if v, ok := a[question.Key]; ok {
			out = append(out, Response{Key: question.Key, Value: normalizeAnswer(v)})
		}
	}

	var extra []string
	for k := range a {
		if !seen[k] {
			extra = append(extra, k)
		}
	}
	sort.Strings(extra)
	for _, k := range extra {
		out = append(out, Response{Key: k, Value: normalizeAnswer(a[k])})
	}
	return out
}

// Validate fails with ErrUnanswered on the first question left blank.
func (a Answers) Validate(q Quiz) error {
	for _, question := range q.Questions {
		if !a.IsAnswered(question.Key, question.Type) {
			return fmt.Errorf("%w: %s", ErrUnanswered, question.Key)
		}
	}
	return nil
}

// Progress returns the percentage of the quiz reached at question index
// current (zero based).
func Progress(current, total int) int {
	if total <= 0 {
		return 0
	}
	current = min(max(current, 0), total-1)
	return (current + 1) * 100 / total
}

func stringList(v any) []string {
	switch val := v.(type) {
	case []string:
		out := make([]string, 0, len(val))
		for _, s := range val {
			if strings.TrimSpace(s) != "" {
				out = append(out, s)
			}
		}
		return out
	case []any:
		out := make([]string, 0, len(val))
		for _, item := range val {
			if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

func normalizeAnswer(v any) any {
	switch v.(type) {
	case []string, []any:
		return stringList(v)
	}
	return v
}
