package tasks

import (
	"context"
	"errors"
	"time"

	"github.com/enesbasbug/async-translator/internal/prompt"
	"github.com/enesbasbug/async-translator/internal/translation"
)

// Status is the lifecycle state of a translation task.
type Status string

const (
	StatusInProgress Status = "in-progress"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Terminal reports whether no further transition is allowed from s.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

func (s Status) Valid() bool {
	return s == StatusInProgress || s.Terminal()
}

var (
	ErrTaskNotFound = errors.New("task not found")
	ErrNoLanguages  = errors.New("at least one target language is required")
)

// Task is one translation job. Languages is fixed at creation; Status and
// Translations are written only by the background run.
type Task struct {
	ID           string
	Text         string
	Languages    []string
	SourceLang   string
	Status       Status
	Translations map[string]string
	// Error holds the failure cause of a failed task. It is never exposed by View.
	Error       string
	CreatedAt   time.Time
	UpdatedAt   time.Time
	CompletedAt *time.Time
}

// View is what pollers see. Translations is set only for completed tasks.
type View struct {
	TaskID       string            `json:"task_id"`
	Status       Status            `json:"status"`
	Translations map[string]string `json:"translations,omitempty"`
}

func (t Task) View() View {
	view := View{TaskID: t.ID, Status: t.Status}
	if t.Status == StatusCompleted {
		view.Translations = copyTranslations(t.Translations)
		if view.Translations == nil {
			view.Translations = map[string]string{}
		}
	}
	return view
}

// Store persists task records. GetTask returns an error wrapping ErrTaskNotFound
// for unknown ids. UpdateTask replaces the whole record (last write wins) and
// must write Status and Translations atomically.
type Store interface {
	CreateTask(ctx context.Context, task Task) error
	GetTask(ctx context.Context, id string) (Task, error)
	UpdateTask(ctx context.Context, task Task) error
}

// PromptBuilder renders the system and user instructions for one language.
type PromptBuilder interface {
	Build(text, targetLanguage string) (prompt.Messages, error)
}

// Translator performs one upstream translation call.
type Translator interface {
	Translate(ctx context.Context, req translation.Request) (string, error)
}

func copyTranslations(in map[string]string) map[string]string {
	if in == nil {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
