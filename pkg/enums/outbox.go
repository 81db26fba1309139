package enums

import "fmt"

// OutboxAggregateType names the entity an outbox event is about.
type OutboxAggregateType string

const (
	AggregatePart        OutboxAggregateType = "part"
	AggregateAllocation  OutboxAggregateType = "allocation"
	AggregateImportBatch OutboxAggregateType = "import_batch"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregatePart,
	AggregateAllocation,
	AggregateImportBatch,
}

// IsValid reports whether the value matches a known aggregate type.
func (a OutboxAggregateType) IsValid() bool {
	for _, candidate := range validAggregateTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	for _, candidate := range validAggregateTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid aggregate type %q", value)
}

// OutboxEventType names a domain event relayed by the outbox publisher.
type OutboxEventType string

const (
	EventStockReceived       OutboxEventType = "stock_received"
	EventStockIssued         OutboxEventType = "stock_issued"
	EventStockMoved          OutboxEventType = "stock_moved"
	EventStockAdjusted       OutboxEventType = "stock_adjusted"
	EventAllocationReserved  OutboxEventType = "allocation_reserved"
	EventAllocationReleased  OutboxEventType = "allocation_released"
	EventAllocationConsumed  OutboxEventType = "allocation_consumed"
	EventImportBatchFinished OutboxEventType = "import_completed"
)

var validEventTypes = []OutboxEventType{
	EventStockReceived,
	EventStockIssued,
	EventStockMoved,
	EventStockAdjusted,
	EventAllocationReserved,
	EventAllocationReleased,
	EventAllocationConsumed,
	EventImportBatchFinished,
}

// IsValid reports whether the value matches a known event type.
func (e OutboxEventType) IsValid() bool {
	for _, candidate := range validEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid event type %q", value)
}
