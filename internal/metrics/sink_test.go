package metrics

import (
	"errors"
	"testing"
)

func TestMemorySink_Counts(t *testing.T) {
	sink := NewMemorySink(0)

	for i := 0; i < 3; i++ {
		if err := sink.Allow(); err != nil {
			t.Fatalf("Allow with no budget: %v", err)
		}
		sink.RecordCall()
		sink.RecordResults(10)
	}

	stats := sink.Stats()
	if stats.Calls != 3 {
		t.Errorf("Calls = %d, want 3", stats.Calls)
	}
	if stats.Results != 30 {
		t.Errorf("Results = %d, want 30", stats.Results)
	}
	if stats.Refused != 0 {
		t.Errorf("Refused = %d, want 0", stats.Refused)
	}
	if stats.Budget != 0 {
		t.Errorf("Budget = %d, want 0", stats.Budget)
	}
}

func TestMemorySink_BudgetRefusal(t *testing.T) {
	sink := NewMemorySink(2)

	for i := 0; i < 2; i++ {
		if err := sink.Allow(); err != nil {
			t.Fatalf("call %d within budget refused: %v", i+1, err)
		}
		sink.RecordCall()
	}

	err := sink.Allow()
	if !errors.Is(err, ErrBudgetExhausted) {
		t.Fatalf("expected ErrBudgetExhausted, got %v", err)
	}
	// Refusal counts but never consumes budget.
	if err := sink.Allow(); !errors.Is(err, ErrBudgetExhausted) {
		t.Fatalf("expected repeated refusal, got %v", err)
	}

	stats := sink.Stats()
	if stats.Calls != 2 {
		t.Errorf("Calls = %d, want 2", stats.Calls)
	}
	if stats.Refused != 2 {
		t.Errorf("Refused = %d, want 2", stats.Refused)
	}
	if stats.Budget != 2 {
		t.Errorf("Budget = %d, want 2", stats.Budget)
	}
}

func TestNewCallSink_MemoryFallbackWithoutAddr(t *testing.T) {
	sink, err := NewCallSink("", "", 0, 5)
	if err != nil {
		t.Fatalf("NewCallSink: %v", err)
	}
	if _, ok := sink.(*memorySink); !ok {
		t.Fatalf("expected in-memory sink, got %T", sink)
	}
	if sink.Stats().Budget != 5 {
		t.Errorf("Budget = %d, want 5", sink.Stats().Budget)
	}
}
