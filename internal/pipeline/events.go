package pipeline

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"mosaic/internal/metrics"
	"mosaic/pkg/logger"
)

// Kind identifies a stream event type on the wire.
type Kind string

const (
	KindThinking   Kind = "thinking"
	KindToolCall   Kind = "tool_call"
	KindToolResult Kind = "tool_result"
	KindToolError  Kind = "tool_error"
	KindData       Kind = "data"
	KindUI         Kind = "ui"
	KindError      Kind = "error"
	KindDone       Kind = "done"
)

// Event is one frame in the per-request output stream.
type Event struct {
	Kind    Kind
	Payload interface{}
}

// Frame renders the event in SSE wire framing: "event: <kind>\ndata: <JSON>\n\n".
// done and error events with nil payloads render an empty object.
func (e Event) Frame() []byte {
	payload := e.Payload
	if payload == nil {
		payload = map[string]interface{}{}
	}
	data, err := json.Marshal(payload)
	if err != nil {
		data = []byte(`{}`)
	}
	return []byte(fmt.Sprintf("event: %s\ndata: %s\n\n", e.Kind, data))
}

// session is the ephemeral per-request emitter. It owns no cross-request
// state and is discarded after the terminal event.
type session struct {
	id     string
	ctx    context.Context
	out    chan<- Event
	m      *metrics.Metrics
	log    *logger.Logger
	closed bool
}

func newSession(ctx context.Context, out chan<- Event, m *metrics.Metrics, log *logger.Logger) *session {
	id := uuid.New().String()
	return &session{
		id:  id,
		ctx: ctx,
		out: out,
		m:   m,
		log: log.With("session", id),
	}
}

// emit sends one event, dropping it if the client went away. Returns false
// once the request context is done; callers stop producing at that point.
func (s *session) emit(kind Kind, payload interface{}) bool {
	if s.closed {
		return false
	}
	select {
	case s.out <- Event{Kind: kind, Payload: payload}:
		if s.m != nil {
			s.m.StreamEventsTotal.WithLabelValues(string(kind)).Inc()
		}
		return true
	case <-s.ctx.Done():
		s.closed = true
		return false
	}
}

func (s *session) thinking(message string) bool {
	return s.emit(KindThinking, map[string]interface{}{"message": message})
}

// fail emits the terminal error event.
func (s *session) fail(err error) {
	s.log.ErrorWithContext(s.ctx, err, map[string]string{"session": s.id})
	s.emit(KindError, map[string]interface{}{"message": err.Error()})
}

// done emits the terminal done event.
func (s *session) done() {
	s.emit(KindDone, nil)
}
