package db

import (
	"encoding/json"
	"time"
)

// TranslationTask maps translation_tasks. Languages and Translations are the
// JSON-encoded forms of tasks.Task's slice and map; see taskRowFromTask and
// taskFromRow.
type TranslationTask struct {
	ID           string          `gorm:"column:id;type:text;primaryKey"`
	Text         string          `gorm:"column:text;type:text;not null"`
	Languages    json.RawMessage `gorm:"column:languages;type:jsonb;not null"`
	SourceLang   string          `gorm:"column:source_lang;type:text;not null;default:'und'"`
	Status       string          `gorm:"column:status;type:text;not null;default:'in-progress';index"`
	Translations json.RawMessage `gorm:"column:translations;type:jsonb"`
	ErrorMessage *string         `gorm:"column:error_message;type:text"`
	CreatedAt    time.Time       `gorm:"column:created_at;type:timestamptz;not null;default:now()"`
	UpdatedAt    time.Time       `gorm:"column:updated_at;type:timestamptz;not null;default:now()"`
	CompletedAt  *time.Time      `gorm:"column:completed_at;type:timestamptz"`
}

func (TranslationTask) TableName() string { return "translation_tasks" }
