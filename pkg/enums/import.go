package enums

import (
	"fmt"
	"strings"
)

// ImportMode selects how a batch import treats row failures.
type ImportMode string

const (
	// ImportStrict aborts and discards the whole batch on the first failing row.
	ImportStrict ImportMode = "strict"
	// ImportLenient skips failing rows and commits the rest.
	ImportLenient ImportMode = "lenient"
)

func (m ImportMode) IsValid() bool {
	return m == ImportStrict || m == ImportLenient
}

func ParseImportMode(value string) (ImportMode, error) {
	switch ImportMode(strings.ToLower(strings.TrimSpace(value))) {
	case ImportStrict, "":
		return ImportStrict, nil
	case ImportLenient:
		return ImportLenient, nil
	}
	return "", fmt.Errorf("invalid import mode %q", value)
}

// MovementType is the kind of stock movement a batch row requests.
type MovementType string

const (
	MovementIn     MovementType = "IN"
	MovementOut    MovementType = "OUT"
	MovementAdjust MovementType = "ADJUST"
)

var validMovementTypes = []MovementType{
	MovementIn,
	MovementOut,
	MovementAdjust,
}

func (m MovementType) IsValid() bool {
	for _, candidate := range validMovementTypes {
		if candidate == m {
			return true
		}
	}
	return false
}

func ParseMovementType(value string) (MovementType, error) {
	normalized := strings.ToUpper(strings.TrimSpace(value))
	for _, candidate := range validMovementTypes {
		if string(candidate) == normalized {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid movement type %q", value)
}
