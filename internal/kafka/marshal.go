package kafka

import (
	"encoding/json"
	"fmt"

	"github.com/ariefcatur/go-stock-ledger/internal/events"
)

func Marshal(env events.Envelope) ([]byte, error) {
	b, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("encode envelope %s: %w", env.EventType, err)
	}
	return b, nil
}

// UnmarshalEnvelope decodes a message value and rejects versions this
// build does not understand.
func UnmarshalEnvelope(b []byte) (events.Envelope, error) {
	var env events.Envelope
	if err := json.Unmarshal(b, &env); err != nil {
		return env, fmt.Errorf("decode envelope: %w", err)
	}
	if env.EventVersion != events.Version {
		return env, fmt.Errorf("unsupported envelope version %d for %s", env.EventVersion, env.EventType)
	}
	return env, nil
}
