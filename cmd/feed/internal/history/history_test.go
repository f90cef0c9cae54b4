package history_test

import (
	"testing"

	"github.com/shubham-shewale/crypto-monitor/cmd/feed/internal/history"
)

func TestPush_Appends(t *testing.T) {
	h := history.Push(nil, 10)
	h = history.Push(h, 20)

	if len(h) != 2 || h[0] != 10 || h[1] != 20 {
		t.Errorf("Expected [10 20], got %v", h)
	}
}

func TestPush_FIFOEviction(t *testing.T) {
	var h []float64
	for i := 1; i <= 120; i++ {
		h = history.Push(h, float64(i))
		if len(h) > history.Cap {
			t.Fatalf("History grew past cap: %d", len(h))
		}
	}

	if len(h) != history.Cap {
		t.Fatalf("Expected %d samples, got %d", history.Cap, len(h))
	}
	// oldest kept sample is the one pushed 50 ticks ago
	if h[0] != 71 {
		t.Errorf("Expected h[0] = 71, got %v", h[0])
	}
	if h[len(h)-1] != 120 {
		t.Errorf("Expected newest 120, got %v", h[len(h)-1])
	}
}

func TestPush_OversizedInputTrimmed(t *testing.T) {
	in := make([]float64, 80)
	for i := range in {
		in[i] = float64(i)
	}

	out := history.Push(in, 999)

	if len(out) != history.Cap {
		t.Fatalf("Expected %d, got %d", history.Cap, len(out))
	}
	if out[0] != 31 || out[len(out)-1] != 999 {
		t.Errorf("Unexpected window bounds: %v .. %v", out[0], out[len(out)-1])
	}
}

func TestPush_DoesNotMutateInput(t *testing.T) {
	in := make([]float64, 3, 10) // spare capacity must not be reused
	in[0], in[1], in[2] = 1, 2, 3

	a := history.Push(in, 4)
	b := history.Push(in, 5)

	if a[3] != 4 || b[3] != 5 {
		t.Errorf("Pushes aliased each other: %v %v", a, b)
	}
	if len(in) != 3 || in[2] != 3 {
		t.Errorf("Input was modified: %v", in)
	}
}

func TestPushN_NoLimit(t *testing.T) {
	h := history.PushN([]float64{1, 2}, 3, 0)
	if len(h) != 3 {
		t.Errorf("Expected unbounded push, got %v", h)
	}
}

func TestTail(t *testing.T) {
	in := []float64{1, 2, 3, 4}
	out := history.Tail(in, 2)

	if len(out) != 2 || out[0] != 3 || out[1] != 4 {
		t.Errorf("Expected [3 4], got %v", out)
	}
	out[0] = 100
	if in[2] != 3 {
		t.Error("Tail must copy")
	}
}
