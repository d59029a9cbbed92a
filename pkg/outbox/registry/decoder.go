package registry

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/angelmondragon/tradepost-backend/pkg/enums"
)

type decoderFunc func(payload json.RawMessage) (any, error)

type decoderKey struct {
	eventType enums.OutboxEventType
	version   int
}

// DecoderRegistry maps (event type, schema version) to a payload decoder
// on the consuming side.
type DecoderRegistry struct {
	mu       sync.RWMutex
	decoders map[decoderKey]decoderFunc
}

func NewDecoderRegistry() *DecoderRegistry {
	return &DecoderRegistry{decoders: map[decoderKey]decoderFunc{}}
}

func (r *DecoderRegistry) Register(eventType enums.OutboxEventType, version int, decode decoderFunc) {
	r.mu.Lock()
	r.decoders[decoderKey{eventType, version}] = decode
	r.mu.Unlock()
}

// RegisterJSON decodes into a fresh value from factory on every call.
func (r *DecoderRegistry) RegisterJSON(eventType enums.OutboxEventType, version int, factory func() any) {
	r.Register(eventType, version, func(payload json.RawMessage) (any, error) {
		target := factory()
		if err := json.Unmarshal(payload, target); err != nil {
			return nil, fmt.Errorf("decode %s@v%d: %w", eventType, version, err)
		}
		return target, nil
	})
}

func (r *DecoderRegistry) Decode(eventType enums.OutboxEventType, version int, payload json.RawMessage) (any, error) {
	r.mu.RLock()
	decode, ok := r.decoders[decoderKey{eventType, version}]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("decoder not registered for %s@v%d", eventType, version)
	}
	return decode(payload)
}
