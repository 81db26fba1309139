package registry

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/angelmondragon/labstock-backend/pkg/config"
	"github.com/angelmondragon/labstock-backend/pkg/db/models"
	"github.com/angelmondragon/labstock-backend/pkg/enums"
	"github.com/angelmondragon/labstock-backend/pkg/outbox"
	"github.com/angelmondragon/labstock-backend/pkg/outbox/payloads"
	"github.com/google/uuid"
)

func TestEventRegistryResolveSuccess(t *testing.T) {
	reg := newTestEventRegistry(t)

	payloadBytes := mustMarshal(t, payloads.AllocationEvent{
		AllocationID: 7,
		ProjectID:    3,
		PartID:       11,
		Location:     "LAB-A-S01-P01",
		Qty:          5,
		Status:       enums.AllocationReserved,
	})

	event := models.OutboxEvent{
		EventType:     enums.EventAllocationReserved,
		AggregateType: enums.AggregateAllocation,
		AggregateID:   "7",
		Payload:       mustEnvelope(t, payloadBytes),
	}

	resolved, err := reg.Resolve(event)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resolved.Descriptor.Stream != "test:events:allocations" {
		t.Fatalf("unexpected stream %q", resolved.Descriptor.Stream)
	}
	payload, ok := resolved.Payload.(*payloads.AllocationEvent)
	if !ok {
		t.Fatalf("unexpected payload type %T", resolved.Payload)
	}
	if payload.AllocationID != 7 || payload.Qty != 5 || payload.Location != "LAB-A-S01-P01" {
		t.Fatalf("payload mismatch %+v", payload)
	}
	if resolved.Envelope.EventID == "" {
		t.Fatalf("envelope missing event id")
	}
	if resolved.Envelope.OccurredAt.IsZero() {
		t.Fatalf("envelope missing occurred_at")
	}
}

func TestEventRegistryStreamsPerAggregate(t *testing.T) {
	reg := newTestEventRegistry(t)
	streams := reg.Streams()
	if len(streams) != 3 {
		t.Fatalf("expected 3 streams, got %v", streams)
	}
}

func TestNewEventRegistryRequiresStream(t *testing.T) {
	if _, err := NewEventRegistry(config.OutboxConfig{Stream: "  "}); err == nil {
		t.Fatalf("expected error for blank stream")
	}
}

func TestEventRegistryResolveRejects(t *testing.T) {
	reg := newTestEventRegistry(t)

	cases := []struct {
		name  string
		event models.OutboxEvent
	}{
		{
			name: "unknown event",
			event: models.OutboxEvent{
				EventType:     enums.OutboxEventType("part_renamed"),
				AggregateType: enums.AggregatePart,
				AggregateID:   "1",
				Payload:       mustEnvelope(t, []byte(`{"mpn":"X"}`)),
			},
		},
		{
			name: "aggregate mismatch",
			event: models.OutboxEvent{
				EventType:     enums.EventStockReceived,
				AggregateType: enums.AggregateAllocation,
				AggregateID:   "1",
				Payload:       mustEnvelope(t, []byte(`{"mpn":"X"}`)),
			},
		},
		{
			name: "missing aggregate id",
			event: models.OutboxEvent{
				EventType:     enums.EventStockReceived,
				AggregateType: enums.AggregatePart,
				Payload:       mustEnvelope(t, []byte(`{"mpn":"X"}`)),
			},
		},
		{
			name: "null payload",
			event: models.OutboxEvent{
				EventType:     enums.EventStockReceived,
				AggregateType: enums.AggregatePart,
				AggregateID:   "1",
				Payload:       mustEnvelope(t, []byte("null")),
			},
		},
		{
			name: "broken envelope",
			event: models.OutboxEvent{
				EventType:     enums.EventStockReceived,
				AggregateType: enums.AggregatePart,
				AggregateID:   "1",
				Payload:       "{not json",
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := reg.Resolve(tc.event)
			if err == nil {
				t.Fatalf("expected error")
			}
			var nonRetry NonRetryableError
			if !errors.As(err, &nonRetry) {
				t.Fatalf("expected non-retryable error, got %T", err)
			}
		})
	}
}

func newTestEventRegistry(t *testing.T) *EventRegistry {
	t.Helper()
	reg, err := NewEventRegistry(config.OutboxConfig{Stream: "test:events"})
	if err != nil {
		t.Fatalf("build registry: %v", err)
	}
	return reg
}

func mustMarshal(t *testing.T, v interface{}) []byte {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return data
}

func mustEnvelope(t *testing.T, payload []byte) string {
	t.Helper()
	envelope := outbox.PayloadEnvelope{
		Version:    1,
		EventID:    uuid.NewString(),
		OccurredAt: time.Now().UTC(),
		Data:       payload,
	}
	data, err := json.Marshal(envelope)
	if err != nil {
		t.Fatalf("marshal envelope: %v", err)
	}
	return string(data)
}
