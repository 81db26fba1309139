package enums

import (
	"fmt"
	"strings"
)

// TxnType classifies a coarse inventory transaction.
type TxnType string

const (
	TxnIn     TxnType = "IN"
	TxnOut    TxnType = "OUT"
	TxnAdjust TxnType = "ADJUST"
	TxnMove   TxnType = "MOVE"
)

var validTxnTypes = []TxnType{
	TxnIn,
	TxnOut,
	TxnAdjust,
	TxnMove,
}

func (t TxnType) IsValid() bool {
	for _, candidate := range validTxnTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

func ParseTxnType(value string) (TxnType, error) {
	normalized := strings.ToUpper(strings.TrimSpace(value))
	for _, candidate := range validTxnTypes {
		if string(candidate) == normalized {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid inventory txn type %q", value)
}
