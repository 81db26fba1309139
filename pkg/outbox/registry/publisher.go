package registry

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/angelmondragon/labstock-backend/pkg/config"
	"github.com/angelmondragon/labstock-backend/pkg/db/models"
	"github.com/angelmondragon/labstock-backend/pkg/enums"
	"github.com/angelmondragon/labstock-backend/pkg/outbox"
	"github.com/angelmondragon/labstock-backend/pkg/outbox/payloads"
)

// EventDescriptor links an event type to its aggregate/stream/payload schema.
type EventDescriptor struct {
	EventType      enums.OutboxEventType
	AggregateType  enums.OutboxAggregateType
	Stream         string
	PayloadFactory func() interface{}
}

// ResolvedEvent is the result of decoding an outbox row.
type ResolvedEvent struct {
	Descriptor EventDescriptor
	Envelope   outbox.PayloadEnvelope
	Payload    interface{}
}

// EventRegistry maps each supported event type to its descriptor.
type EventRegistry struct {
	entries map[enums.OutboxEventType]EventDescriptor
}

// NonRetryableError signals the dispatcher should stop retrying a row.
type NonRetryableError struct {
	Err error
}

// Error implements error.
func (e NonRetryableError) Error() string {
	if e.Err == nil {
		return "non-retryable error"
	}
	return e.Err.Error()
}

// Unwrap exposes the wrapped error.
func (e NonRetryableError) Unwrap() error {
	return e.Err
}

// NewEventRegistry builds the registry. Each aggregate gets its own stream
// under the configured base name, e.g. events:stock. The redis client adds
// its own namespace on top.
func NewEventRegistry(cfg config.OutboxConfig) (*EventRegistry, error) {
	base := strings.TrimSpace(cfg.Stream)
	if base == "" {
		return nil, fmt.Errorf("outbox stream is required")
	}

	reg := &EventRegistry{entries: make(map[enums.OutboxEventType]EventDescriptor)}
	stockStream := base + ":stock"
	allocStream := base + ":allocations"
	importStream := base + ":imports"

	stockPayload := func() interface{} { return &payloads.StockMovementEvent{} }
	for _, et := range []enums.OutboxEventType{
		enums.EventStockReceived,
		enums.EventStockIssued,
		enums.EventStockMoved,
		enums.EventStockAdjusted,
	} {
		reg.register(EventDescriptor{
			EventType:      et,
			AggregateType:  enums.AggregatePart,
			Stream:         stockStream,
			PayloadFactory: stockPayload,
		})
	}

	allocPayload := func() interface{} { return &payloads.AllocationEvent{} }
	for _, et := range []enums.OutboxEventType{
		enums.EventAllocationReserved,
		enums.EventAllocationReleased,
		enums.EventAllocationConsumed,
	} {
		reg.register(EventDescriptor{
			EventType:      et,
			AggregateType:  enums.AggregateAllocation,
			Stream:         allocStream,
			PayloadFactory: allocPayload,
		})
	}

	reg.register(EventDescriptor{
		EventType:      enums.EventImportBatchFinished,
		AggregateType:  enums.AggregateImportBatch,
		Stream:         importStream,
		PayloadFactory: func() interface{} { return &payloads.ImportCompletedEvent{} },
	})

	return reg, nil
}

func (r *EventRegistry) register(desc EventDescriptor) {
	if desc.PayloadFactory == nil {
		return
	}
	r.entries[desc.EventType] = desc
}

// Streams lists every stream the registry publishes to.
func (r *EventRegistry) Streams() []string {
	seen := map[string]struct{}{}
	var out []string
	for _, desc := range r.entries {
		if _, ok := seen[desc.Stream]; ok {
			continue
		}
		seen[desc.Stream] = struct{}{}
		out = append(out, desc.Stream)
	}
	return out
}

// Resolve validates the row and decodes its typed payload.
func (r *EventRegistry) Resolve(event models.OutboxEvent) (*ResolvedEvent, error) {
	desc, ok := r.entries[event.EventType]
	if !ok {
		return nil, NewNonRetryableError(fmt.Errorf("unsupported event type %s", event.EventType))
	}
	if desc.AggregateType != event.AggregateType {
		return nil, NewNonRetryableError(fmt.Errorf("aggregate mismatch: expected %s got %s", desc.AggregateType, event.AggregateType))
	}
	if strings.TrimSpace(event.AggregateID) == "" {
		return nil, NewNonRetryableError(fmt.Errorf("missing aggregate_id"))
	}

	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal([]byte(event.Payload), &envelope); err != nil {
		return nil, NewNonRetryableError(fmt.Errorf("decode envelope: %w", err))
	}

	trimmed := bytes.TrimSpace(envelope.Data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, NewNonRetryableError(fmt.Errorf("payload missing for %s", event.EventType))
	}

	payload := desc.PayloadFactory()
	if err := json.Unmarshal(envelope.Data, payload); err != nil {
		return nil, NewNonRetryableError(fmt.Errorf("decode %s payload: %w", event.EventType, err))
	}

	return &ResolvedEvent{
		Descriptor: desc,
		Envelope:   envelope,
		Payload:    payload,
	}, nil
}

// NewNonRetryableError wraps an error to signal no retries.
func NewNonRetryableError(err error) NonRetryableError {
	return NonRetryableError{Err: err}
}
