package tasks

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/enesbasbug/async-translator/internal/globaltime"
	"github.com/enesbasbug/async-translator/internal/translation"
)

const finalWriteTimeout = 10 * time.Second

// UnknownLanguage is recorded when the source language cannot be detected.
const UnknownLanguage = "und"

// Dependencies wires an Orchestrator. Notifier and DetectLanguage are optional.
type Dependencies struct {
	Store      Store
	Prompts    PromptBuilder
	Translator Translator
	Pool       *Pool
	Notifier   Notifier
	// DetectLanguage returns an ISO 639-1 code for the source text, or "".
	DetectLanguage func(text string) string
	Logger         zerolog.Logger
}

// Orchestrator owns the task lifecycle: creation, background execution and
// the final completed/failed commit.
type Orchestrator struct {
	store      Store
	prompts    PromptBuilder
	translator Translator
	pool       *Pool
	notifier   Notifier
	detect     func(string) string
	logger     zerolog.Logger
}

func NewOrchestrator(deps Dependencies) (*Orchestrator, error) {
	switch {
	case deps.Store == nil:
		return nil, fmt.Errorf("task store is required")
	case deps.Prompts == nil:
		return nil, fmt.Errorf("prompt builder is required")
	case deps.Translator == nil:
		return nil, fmt.Errorf("translator is required")
	case deps.Pool == nil:
		return nil, fmt.Errorf("worker pool is required")
	}

	return &Orchestrator{
		store:      deps.Store,
		prompts:    deps.Prompts,
		translator: deps.Translator,
		pool:       deps.Pool,
		notifier:   deps.Notifier,
		detect:     deps.DetectLanguage,
		logger:     deps.Logger.With().Str("component", "orchestrator").Logger(),
	}, nil
}

// Submit persists a new in-progress task and schedules its translation.
// The task is readable from the store when Submit returns; translation runs
// later on the worker pool. Store errors are returned to the caller.
func (o *Orchestrator) Submit(ctx context.Context, text string, languages []string) (string, error) {
	_, id, err := o.submit(ctx, text, languages)
	return id, err
}

func (o *Orchestrator) submit(ctx context.Context, text string, languages []string) (*Handle, string, error) {
	if len(languages) == 0 {
		return nil, "", ErrNoLanguages
	}

	now := globaltime.UTC()
	task := Task{
		ID:           uuid.NewString(),
		Text:         text,
		Languages:    append([]string(nil), languages...),
		SourceLang:   o.detectSourceLang(text),
		Status:       StatusInProgress,
		Translations: map[string]string{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := o.store.CreateTask(ctx, task); err != nil {
		return nil, "", fmt.Errorf("create task: %w", err)
	}
	o.notify(ctx, EventCreated, task)

	langs := append([]string(nil), task.Languages...)
	handle, err := o.pool.Go("translate:"+task.ID, func(runCtx context.Context) {
		o.Run(runCtx, task.ID, text, langs)
	})
	if err != nil {
		o.fail(task, map[string]string{}, fmt.Errorf("schedule task: %w", err))
		return nil, "", fmt.Errorf("schedule task %s: %w", task.ID, err)
	}

	o.logger.Info().
		Str("task_id", task.ID).
		Strs("languages", task.Languages).
		Str("source_lang", task.SourceLang).
		Msg("translation task submitted")
	return handle, task.ID, nil
}

// Run executes one task: languages are translated strictly in order, and the
// first failure abandons the rest. Run never returns an error; every outcome
// ends in a store write or, when the task is missing, a log line.
func (o *Orchestrator) Run(ctx context.Context, taskID, text string, languages []string) {
	logger := o.logger.With().Str("task_id", taskID).Logger()

	task, err := o.store.GetTask(ctx, taskID)
	if err != nil {
		if errors.Is(err, ErrTaskNotFound) {
			logger.Error().Msg("task not found, nothing to run")
			return
		}
		logger.Error().Err(err).Msg("load task failed")
		return
	}
	if task.Status.Terminal() {
		logger.Warn().Str("status", string(task.Status)).Msg("task already finished, skipping run")
		return
	}

	translations := make(map[string]string, len(languages))
	defer func() {
		if r := recover(); r != nil {
			o.fail(task, translations, fmt.Errorf("translation run panicked: %v", r))
		}
	}()

	for idx, language := range languages {
		logger.Info().Str("language", language).Msg("translating")

		result := o.translateOne(ctx, taskID, text, language)
		if !result.ok() {
			o.fail(task, translations, fmt.Errorf("translate %s: %w", language, result.err))
			return
		}

		translations[language] = result.text
		logger.Info().
			Str("language", language).
			Int("done", idx+1).
			Int("total", len(languages)).
			Float64("progress_pct", progressPercent(idx+1, len(languages))).
			Msg("translation step completed")
	}

	o.complete(task, translations)
}

// Status returns the poller view of a task.
func (o *Orchestrator) Status(ctx context.Context, taskID string) (View, error) {
	task, err := o.store.GetTask(ctx, taskID)
	if err != nil {
		return View{}, err
	}
	return task.View(), nil
}

// stepResult is the outcome of translating into one language: either text or err.
type stepResult struct {
	text string
	err  error
}

func (r stepResult) ok() bool {
	return r.err == nil
}

func (o *Orchestrator) translateOne(ctx context.Context, taskID, text, language string) stepResult {
	msgs, err := o.prompts.Build(text, language)
	if err != nil {
		o.logger.Error().Err(err).Str("task_id", taskID).Str("language", language).Msg("build prompt failed")
		return stepResult{err: fmt.Errorf("build prompt: %w", err)}
	}

	translated, err := o.translator.Translate(ctx, translation.Request{
		TaskID:   taskID,
		Language: language,
		Prompt:   msgs,
	})
	if err != nil {
		return stepResult{err: err}
	}
	return stepResult{text: translated}
}

func (o *Orchestrator) complete(task Task, translations map[string]string) {
	now := globaltime.UTC()
	task.Status = StatusCompleted
	task.Translations = copyTranslations(translations)
	task.Error = ""
	task.UpdatedAt = now
	task.CompletedAt = &now

	ctx, cancel := context.WithTimeout(context.Background(), finalWriteTimeout)
	defer cancel()

	if err := o.store.UpdateTask(ctx, task); err != nil {
		o.logger.Error().Err(err).Str("task_id", task.ID).Msg("persist completed task failed")
		o.fail(task, translations, fmt.Errorf("persist completed task: %w", err))
		return
	}
	o.logger.Info().Str("task_id", task.ID).Msg("translation task completed")
	o.notify(ctx, EventCompleted, task)
}

// fail records the terminal failed state together with whatever translations
// were accumulated. Partial translations are persisted but never exposed.
func (o *Orchestrator) fail(task Task, translations map[string]string, cause error) {
	now := globaltime.UTC()
	task.Status = StatusFailed
	task.Translations = copyTranslations(translations)
	task.Error = cause.Error()
	task.UpdatedAt = now
	task.CompletedAt = &now

	o.logger.Error().Err(cause).Str("task_id", task.ID).Int("translated", len(translations)).Msg("translation task failed")

	ctx, cancel := context.WithTimeout(context.Background(), finalWriteTimeout)
	defer cancel()

	if err := o.store.UpdateTask(ctx, task); err != nil {
		o.logger.Error().Err(err).Str("task_id", task.ID).Msg("persist failed task failed, task stays in-progress")
		return
	}
	o.notify(ctx, EventFailed, task)
}

func (o *Orchestrator) notify(ctx context.Context, eventType EventType, task Task) {
	if o.notifier == nil {
		return
	}
	event := Event{
		Type:      eventType,
		TaskID:    task.ID,
		Status:    task.Status,
		Languages: task.Languages,
		Error:     task.Error,
		At:        task.UpdatedAt,
	}
	if err := o.notifier.Notify(ctx, event); err != nil {
		o.logger.Warn().Err(err).Str("task_id", task.ID).Str("event", string(eventType)).Msg("publish task event failed")
	}
}

// detectSourceLang returns the detected ISO 639-1 code, or UnknownLanguage.
func (o *Orchestrator) detectSourceLang(text string) string {
	if o.detect == nil {
		return UnknownLanguage
	}
	if code := o.detect(text); code != "" {
		return code
	}
	return UnknownLanguage
}

func progressPercent(done, total int) float64 {
	if total <= 0 {
		return 0
	}
	return math.Round(float64(done) / float64(total) * 100)
}
