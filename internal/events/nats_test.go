package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/enesbasbug/async-translator/internal/tasks"
)

type capturedMessage struct {
	subject string
	data    []byte
}

type fakeConn struct {
	messages []capturedMessage
	err      error
}

func (c *fakeConn) Publish(subject string, data []byte) error {
	if c.err != nil {
		return c.err
	}
	c.messages = append(c.messages, capturedMessage{subject: subject, data: data})
	return nil
}

func TestPublisher_Notify(t *testing.T) {
	t.Parallel()

	conn := &fakeConn{}
	pub := NewPublisher(conn, " translation.task. ")

	event := tasks.Event{
		Type:      tasks.EventCompleted,
		TaskID:    "t1",
		Status:    tasks.StatusCompleted,
		Languages: []string{"fr", "de"},
		At:        time.Date(2026, 10, 18, 10, 0, 0, 0, time.UTC),
	}
	if err := pub.Notify(context.Background(), event); err != nil {
		t.Fatalf("notify: %v", err)
	}

	if len(conn.messages) != 1 {
		t.Fatalf("expected one message, got %d", len(conn.messages))
	}
	msg := conn.messages[0]
	if msg.subject != "translation.task.completed" {
		t.Fatalf("unexpected subject: %q", msg.subject)
	}

	var decoded tasks.Event
	if err := json.Unmarshal(msg.data, &decoded); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if decoded.TaskID != "t1" || decoded.Status != tasks.StatusCompleted || len(decoded.Languages) != 2 {
		t.Fatalf("unexpected payload: %+v", decoded)
	}
}

func TestPublisher_NotifyError(t *testing.T) {
	t.Parallel()

	pub := NewPublisher(&fakeConn{err: nats.ErrConnectionClosed}, "")
	err := pub.Notify(context.Background(), tasks.Event{Type: tasks.EventFailed, TaskID: "t2"})
	if !errors.Is(err, nats.ErrConnectionClosed) {
		t.Fatalf("expected connection error, got %v", err)
	}
}

func TestPublisher_DefaultPrefix(t *testing.T) {
	t.Parallel()

	pub := NewPublisher(&fakeConn{}, "")
	if got := pub.Subject(tasks.EventCreated); got != "translation.task.created" {
		t.Fatalf("unexpected subject: %q", got)
	}
}
