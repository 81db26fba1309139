package enums

import "fmt"

// AllocationStatus is the lifecycle state of a reservation.
type AllocationStatus string

const (
	AllocationReserved AllocationStatus = "reserved"
	AllocationConsumed AllocationStatus = "consumed"
	AllocationReleased AllocationStatus = "released"
)

var validAllocationStatuses = []AllocationStatus{
	AllocationReserved,
	AllocationConsumed,
	AllocationReleased,
}

// IsValid reports whether the value matches a known allocation status.
func (s AllocationStatus) IsValid() bool {
	for _, candidate := range validAllocationStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transition is allowed from s.
func (s AllocationStatus) IsTerminal() bool {
	return s == AllocationConsumed || s == AllocationReleased
}

// ParseAllocationStatus converts raw input into AllocationStatus.
func ParseAllocationStatus(value string) (AllocationStatus, error) {
	for _, candidate := range validAllocationStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid allocation status %q", value)
}
