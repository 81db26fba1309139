package enums

import "testing"

func TestParseLedgerDocType(t *testing.T) {
	got, err := ParseLedgerDocType(" consume ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != LedgerDocConsume {
		t.Fatalf("expected CONSUME, got %q", got)
	}
	if _, err := ParseLedgerDocType("TRANSFER"); err == nil {
		t.Fatal("expected error for unknown doc type")
	}
}

func TestAllocationStatusTerminal(t *testing.T) {
	tests := []struct {
		status   AllocationStatus
		terminal bool
	}{
		{AllocationReserved, false},
		{AllocationConsumed, true},
		{AllocationReleased, true},
	}
	for _, tt := range tests {
		if !tt.status.IsValid() {
			t.Fatalf("%s should be valid", tt.status)
		}
		if tt.status.IsTerminal() != tt.terminal {
			t.Fatalf("%s terminal=%v", tt.status, tt.status.IsTerminal())
		}
	}
	if AllocationStatus("pending").IsValid() {
		t.Fatal("pending is not a valid status")
	}
}

func TestParseImportMode(t *testing.T) {
	tests := []struct {
		in   string
		want ImportMode
		ok   bool
	}{
		{"", ImportStrict, true},
		{"STRICT", ImportStrict, true},
		{"lenient", ImportLenient, true},
		{"best-effort", "", false},
	}
	for _, tt := range tests {
		got, err := ParseImportMode(tt.in)
		if (err == nil) != tt.ok {
			t.Fatalf("%q: unexpected error state %v", tt.in, err)
		}
		if got != tt.want {
			t.Fatalf("%q: expected %q got %q", tt.in, tt.want, got)
		}
	}
}

func TestParseMovementType(t *testing.T) {
	if got, err := ParseMovementType("adjust"); err != nil || got != MovementAdjust {
		t.Fatalf("expected ADJUST, got %q err=%v", got, err)
	}
	if _, err := ParseMovementType("MOVE"); err == nil {
		t.Fatal("MOVE rows are not importable")
	}
}

func TestTxnTypeValid(t *testing.T) {
	for _, txn := range []TxnType{TxnIn, TxnOut, TxnAdjust, TxnMove} {
		if !txn.IsValid() {
			t.Fatalf("%s should be valid", txn)
		}
	}
	if _, err := ParseTxnType("CONSUME"); err == nil {
		t.Fatal("CONSUME is a ledger type, not a txn type")
	}
}

func TestParseOutboxTypes(t *testing.T) {
	et, err := ParseOutboxEventType("allocation_consumed")
	if err != nil || et != EventAllocationConsumed {
		t.Fatalf("unexpected event type %q err=%v", et, err)
	}
	if _, err := ParseOutboxEventType("order_created"); err == nil {
		t.Fatal("expected error for unknown event type")
	}
	at, err := ParseOutboxAggregateType("import_batch")
	if err != nil || at != AggregateImportBatch {
		t.Fatalf("unexpected aggregate type %q err=%v", at, err)
	}
	if _, err := ParseOutboxAggregateType("checkout_group"); err == nil {
		t.Fatal("expected error for unknown aggregate type")
	}
}
