package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/enesbasbug/async-translator/internal/tasks"
)

// mutableTaskColumns are the columns UpdateTask rewrites. id, text, languages
// and created_at are fixed at creation.
var mutableTaskColumns = []string{
	"status",
	"translations",
	"error_message",
	"source_lang",
	"updated_at",
	"completed_at",
}

func (p *Pool) CreateTask(ctx context.Context, task tasks.Task) error {
	if p == nil || p.gdb == nil {
		return fmt.Errorf("database pool is not initialized")
	}
	row, err := taskRowFromTask(task)
	if err != nil {
		return err
	}
	if err := p.gdb.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("insert translation task: %w", err)
	}
	return nil
}

func (p *Pool) GetTask(ctx context.Context, id string) (tasks.Task, error) {
	if p == nil || p.gdb == nil {
		return tasks.Task{}, fmt.Errorf("database pool is not initialized")
	}

	var row TranslationTask
	err := p.gdb.WithContext(ctx).
		Where("id = ?", strings.TrimSpace(id)).
		Take(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return tasks.Task{}, fmt.Errorf("task %s: %w", id, tasks.ErrTaskNotFound)
		}
		return tasks.Task{}, fmt.Errorf("query translation task: %w", err)
	}
	return taskFromRow(row)
}

// UpdateTask rewrites the mutable columns in a single UPDATE so status and
// translations always change together.
func (p *Pool) UpdateTask(ctx context.Context, task tasks.Task) error {
	if p == nil || p.gdb == nil {
		return fmt.Errorf("database pool is not initialized")
	}
	row, err := taskRowFromTask(task)
	if err != nil {
		return err
	}

	res := p.gdb.WithContext(ctx).
		Model(&TranslationTask{}).
		Where("id = ?", row.ID).
		Select(mutableTaskColumns).
		Updates(&row)
	if res.Error != nil {
		return fmt.Errorf("update translation task: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("task %s: %w", row.ID, tasks.ErrTaskNotFound)
	}
	return nil
}

func taskRowFromTask(task tasks.Task) (TranslationTask, error) {
	languages := task.Languages
	if languages == nil {
		languages = []string{}
	}
	languagesJSON, err := json.Marshal(languages)
	if err != nil {
		return TranslationTask{}, fmt.Errorf("encode languages: %w", err)
	}

	var translationsJSON json.RawMessage
	if len(task.Translations) > 0 {
		translationsJSON, err = json.Marshal(task.Translations)
		if err != nil {
			return TranslationTask{}, fmt.Errorf("encode translations: %w", err)
		}
	}

	sourceLang := strings.TrimSpace(task.SourceLang)
	if sourceLang == "" {
		sourceLang = "und"
	}

	var errorMessage *string
	if msg := strings.TrimSpace(task.Error); msg != "" {
		errorMessage = &msg
	}

	return TranslationTask{
		ID:           task.ID,
		Text:         task.Text,
		Languages:    languagesJSON,
		SourceLang:   sourceLang,
		Status:       string(task.Status),
		Translations: translationsJSON,
		ErrorMessage: errorMessage,
		CreatedAt:    task.CreatedAt,
		UpdatedAt:    task.UpdatedAt,
		CompletedAt:  task.CompletedAt,
	}, nil
}

func taskFromRow(row TranslationTask) (tasks.Task, error) {
	task := tasks.Task{
		ID:          row.ID,
		Text:        row.Text,
		SourceLang:  row.SourceLang,
		Status:      tasks.Status(row.Status),
		CreatedAt:   row.CreatedAt,
		UpdatedAt:   row.UpdatedAt,
		CompletedAt: row.CompletedAt,
	}
	if !task.Status.Valid() {
		return tasks.Task{}, fmt.Errorf("task %s has unknown status %q", row.ID, row.Status)
	}
	if row.ErrorMessage != nil {
		task.Error = *row.ErrorMessage
	}

	if err := json.Unmarshal(row.Languages, &task.Languages); err != nil {
		return tasks.Task{}, fmt.Errorf("decode languages of task %s: %w", row.ID, err)
	}
	if len(row.Translations) > 0 && string(row.Translations) != "null" {
		if err := json.Unmarshal(row.Translations, &task.Translations); err != nil {
			return tasks.Task{}, fmt.Errorf("decode translations of task %s: %w", row.ID, err)
		}
	}
	return task, nil
}
