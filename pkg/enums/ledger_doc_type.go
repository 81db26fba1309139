package enums

import (
	"fmt"
	"strings"
)

// LedgerDocType classifies an append-only ledger document.
type LedgerDocType string

const (
	LedgerDocIn      LedgerDocType = "IN"
	LedgerDocOut     LedgerDocType = "OUT"
	LedgerDocMove    LedgerDocType = "MOVE"
	LedgerDocAdjust  LedgerDocType = "ADJUST"
	LedgerDocConsume LedgerDocType = "CONSUME"
	LedgerDocReserve LedgerDocType = "RESERVE"
	LedgerDocRelease LedgerDocType = "RELEASE"
)

var validLedgerDocTypes = []LedgerDocType{
	LedgerDocIn,
	LedgerDocOut,
	LedgerDocMove,
	LedgerDocAdjust,
	LedgerDocConsume,
	LedgerDocReserve,
	LedgerDocRelease,
}

// IsValid reports whether the value matches a known ledger document type.
func (t LedgerDocType) IsValid() bool {
	for _, candidate := range validLedgerDocTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParseLedgerDocType converts raw input into LedgerDocType. Matching is case-insensitive.
func ParseLedgerDocType(value string) (LedgerDocType, error) {
	normalized := strings.ToUpper(strings.TrimSpace(value))
	for _, candidate := range validLedgerDocTypes {
		if string(candidate) == normalized {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid ledger document type %q", value)
}
