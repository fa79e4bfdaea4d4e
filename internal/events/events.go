// Package events defines the envelope every service event travels in and the
// publisher the core hands it to after a unit of work commits.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
)

const Version = 1

type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Payload       json.RawMessage `json:"payload"`
}

// Publisher delivers an envelope on a topic. Delivery is best effort: the
// store is the source of truth and a lost event never undoes a commit.
type Publisher interface {
	Publish(ctx context.Context, topic string, key []byte, env Envelope) error
}

// New builds a v1 envelope. The trace id comes from the span in ctx, if any.
func New(ctx context.Context, eventType, producer, correlationID string, payload any) (Envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("encode %s payload: %w", eventType, err)
	}
	env := Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  Version,
		OccurredAt:    time.Now().UTC(),
		Producer:      producer,
		CorrelationID: correlationID,
		Payload:       raw,
	}
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		env.TraceID = sc.TraceID().String()
	}
	return env, nil
}

// Decode unwraps the payload of env into T.
func Decode[T any](env Envelope) (T, error) {
	var t T
	if err := json.Unmarshal(env.Payload, &t); err != nil {
		return t, fmt.Errorf("decode %s payload: %w", env.EventType, err)
	}
	return t, nil
}

type Nop struct{}

func (Nop) Publish(context.Context, string, []byte, Envelope) error { return nil }

// Recorder keeps published envelopes in memory.
type Recorder struct {
	ch chan Published
}

type Published struct {
	Topic string
	Key   string
	Env   Envelope
}

func NewRecorder(buf int) *Recorder { return &Recorder{ch: make(chan Published, buf)} }

func (r *Recorder) Publish(_ context.Context, topic string, key []byte, env Envelope) error {
	select {
	case r.ch <- Published{Topic: topic, Key: string(key), Env: env}:
		return nil
	default:
		return fmt.Errorf("recorder full")
	}
}

// Drain returns everything published so far.
func (r *Recorder) Drain() []Published {
	var out []Published
	for {
		select {
		case p := <-r.ch:
			out = append(out, p)
		default:
			return out
		}
	}
}
