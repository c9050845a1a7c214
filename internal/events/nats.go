package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/nats-io/nats.go"

	"github.com/enesbasbug/async-translator/internal/tasks"
)

// Config controls the NATS connection used for task lifecycle events.
type Config struct {
	URL           string
	Name          string
	SubjectPrefix string
	MaxReconnects int
}

func Connect(cfg Config) (*nats.Conn, error) {
	name := strings.TrimSpace(cfg.Name)
	if name == "" {
		name = "async-translator"
	}
	maxReconnects := cfg.MaxReconnects
	if maxReconnects == 0 {
		maxReconnects = -1
	}

	nc, err := nats.Connect(cfg.URL,
		nats.Name(name),
		nats.MaxReconnects(maxReconnects),
	)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	return nc, nil
}

// Conn is the subset of *nats.Conn the publisher needs.
type Conn interface {
	Publish(subject string, data []byte) error
}

// Publisher sends one JSON message per task transition on
// "<prefix>.<event type>", e.g. translation.task.completed.
type Publisher struct {
	conn   Conn
	prefix string
}

func NewPublisher(conn Conn, subjectPrefix string) *Publisher {
	prefix := strings.Trim(strings.TrimSpace(subjectPrefix), ".")
	if prefix == "" {
		prefix = "translation.task"
	}
	return &Publisher{conn: conn, prefix: prefix}
}

func (p *Publisher) Subject(eventType tasks.EventType) string {
	return p.prefix + "." + string(eventType)
}

// Notify implements tasks.Notifier.
func (p *Publisher) Notify(ctx context.Context, event tasks.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode task event: %w", err)
	}
	subject := p.Subject(event.Type)
	if err := p.conn.Publish(subject, payload); err != nil {
		return fmt.Errorf("publish %s for task %s: %w", subject, event.TaskID, err)
	}
	return nil
}
