package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/enesbasbug/async-translator/internal/tasks"
)

// Config holds Redis connection settings.
type Config struct {
	Addr     string
	Password string
	DB       int
}

// NewClient connects and pings Redis.
func NewClient(ctx context.Context, cfg Config) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return client, nil
}

// ErrTaskExists is returned by CreateTask when the id is already taken.
var ErrTaskExists = errors.New("task already exists")

// Store keeps each task in one hash. Languages and translations are stored as
// JSON strings; encodeTask and decodeTask are the only conversion points.
type Store struct {
	rdb redis.UniversalClient
}

func New(rdb redis.UniversalClient) *Store {
	return &Store{rdb: rdb}
}

func (s *Store) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

// CreateTask writes every field of a new task with one HSET inside a WATCH on
// the task key. An existing key yields ErrTaskExists and is left untouched.
func (s *Store) CreateTask(ctx context.Context, task tasks.Task) error {
	fields, err := encodeTask(task)
	if err != nil {
		return err
	}

	key := taskKey(task.ID)
	err = s.rdb.Watch(ctx, func(tx *redis.Tx) error {
		exists, err := tx.Exists(ctx, key).Result()
		if err != nil {
			return err
		}
		if exists != 0 {
			return fmt.Errorf("task %s: %w", task.ID, ErrTaskExists)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, fields)
			return nil
		})
		return err
	}, key)
	if err != nil {
		if errors.Is(err, ErrTaskExists) {
			return err
		}
		return fmt.Errorf("redis create task %s: %w", task.ID, err)
	}
	return nil
}

func (s *Store) GetTask(ctx context.Context, id string) (tasks.Task, error) {
	res, err := s.rdb.HGetAll(ctx, taskKey(id)).Result()
	if err != nil {
		return tasks.Task{}, fmt.Errorf("redis get task %s: %w", id, err)
	}
	if len(res) == 0 {
		return tasks.Task{}, fmt.Errorf("task %s: %w", id, tasks.ErrTaskNotFound)
	}
	return decodeTask(id, res)
}

// UpdateTask rewrites the mutable fields with one HSET inside a WATCH on the
// task key, so a concurrent delete turns into ErrTaskNotFound instead of a
// resurrected partial hash.
func (s *Store) UpdateTask(ctx context.Context, task tasks.Task) error {
	fields, err := encodeTask(task)
	if err != nil {
		return err
	}
	mutable := make(map[string]any, len(mutableFields))
	for _, name := range mutableFields {
		mutable[name] = fields[name]
	}

	key := taskKey(task.ID)
	err = s.rdb.Watch(ctx, func(tx *redis.Tx) error {
		exists, err := tx.Exists(ctx, key).Result()
		if err != nil {
			return err
		}
		if exists == 0 {
			return fmt.Errorf("task %s: %w", task.ID, tasks.ErrTaskNotFound)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, mutable)
			return nil
		})
		return err
	}, key)
	if err != nil {
		if errors.Is(err, tasks.ErrTaskNotFound) {
			return err
		}
		return fmt.Errorf("redis update task %s: %w", task.ID, err)
	}
	return nil
}

var mutableFields = []string{
	"status",
	"translations",
	"error",
	"source_lang",
	"updated_at",
	"completed_at",
}

func encodeTask(task tasks.Task) (map[string]any, error) {
	languages := task.Languages
	if languages == nil {
		languages = []string{}
	}
	languagesJSON, err := json.Marshal(languages)
	if err != nil {
		return nil, fmt.Errorf("encode languages: %w", err)
	}

	translationsJSON := ""
	if len(task.Translations) > 0 {
		raw, err := json.Marshal(task.Translations)
		if err != nil {
			return nil, fmt.Errorf("encode translations: %w", err)
		}
		translationsJSON = string(raw)
	}

	completedAt := ""
	if task.CompletedAt != nil {
		completedAt = strconv.FormatInt(task.CompletedAt.UnixNano(), 10)
	}

	return map[string]any{
		"id":           task.ID,
		"text":         task.Text,
		"languages":    string(languagesJSON),
		"source_lang":  task.SourceLang,
		"status":       string(task.Status),
		"translations": translationsJSON,
		"error":        task.Error,
		"created_at":   strconv.FormatInt(task.CreatedAt.UnixNano(), 10),
		"updated_at":   strconv.FormatInt(task.UpdatedAt.UnixNano(), 10),
		"completed_at": completedAt,
	}, nil
}

func decodeTask(id string, res map[string]string) (tasks.Task, error) {
	task := tasks.Task{
		ID:         id,
		Text:       res["text"],
		SourceLang: res["source_lang"],
		Status:     tasks.Status(res["status"]),
		Error:      res["error"],
	}
	if !task.Status.Valid() {
		return tasks.Task{}, fmt.Errorf("task %s has unknown status %q", id, res["status"])
	}

	if err := json.Unmarshal([]byte(res["languages"]), &task.Languages); err != nil {
		return tasks.Task{}, fmt.Errorf("decode languages of task %s: %w", id, err)
	}
	if raw := strings.TrimSpace(res["translations"]); raw != "" {
		if err := json.Unmarshal([]byte(raw), &task.Translations); err != nil {
			return tasks.Task{}, fmt.Errorf("decode translations of task %s: %w", id, err)
		}
	}

	if v, ok := parseUnixNano(res["created_at"]); ok {
		task.CreatedAt = v
	}
	if v, ok := parseUnixNano(res["updated_at"]); ok {
		task.UpdatedAt = v
	}
	if v, ok := parseUnixNano(res["completed_at"]); ok {
		task.CompletedAt = &v
	}
	return task, nil
}

func parseUnixNano(raw string) (time.Time, bool) {
	if raw == "" {
		return time.Time{}, false
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}, false
	}
	return time.Unix(0, n).UTC(), true
}

func taskKey(id string) string {
	return "translation:task:" + id
}
