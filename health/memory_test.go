package health

import (
	"context"
	"errors"
	"runtime"
	"testing"
)

func fakeHeap(alloc, sys uint64) func(*runtime.MemStats) {
	return func(s *runtime.MemStats) {
		s.HeapAlloc = alloc
		s.HeapSys = sys
	}
}

func TestNewMemoryChecker_Defaults(t *testing.T) {
	m := NewMemoryChecker(MemoryCheckerConfig{WarningThreshold: 5, CriticalThreshold: 0.1})
	if m.config.WarningThreshold != 0.8 {
		t.Errorf("WarningThreshold = %v, want 0.8", m.config.WarningThreshold)
	}
	if m.config.CriticalThreshold != 0.95 {
		t.Errorf("CriticalThreshold = %v, want 0.95", m.config.CriticalThreshold)
	}
	if m.Name() != "memory" {
		t.Errorf("Name = %q", m.Name())
	}
}

func TestMemoryChecker_Check(t *testing.T) {
	tests := []struct {
		name  string
		limit uint64
		alloc uint64
		sys   uint64
		want  Status
	}{
		{"normal", 1000, 100, 0, StatusHealthy},
		{"high", 1000, 850, 0, StatusDegraded},
		{"critical", 1000, 990, 0, StatusUnhealthy},
		{"limit from heap sys", 0, 500, 1000, StatusHealthy},
		{"no stats", 0, 0, 0, StatusHealthy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewMemoryChecker(MemoryCheckerConfig{MaxHeapBytes: tt.limit})
			m.readMem = fakeHeap(tt.alloc, tt.sys)

			r := m.Check(context.Background())
			if r.Status != tt.want {
				t.Errorf("Status = %v (%s), want %v", r.Status, r.Message, tt.want)
			}
			if tt.want == StatusUnhealthy && !errors.Is(r.Error, ErrCheckFailed) {
				t.Errorf("Error = %v, want ErrCheckFailed", r.Error)
			}
		})
	}
}

func TestMemoryChecker_RealStats(t *testing.T) {
	r := NewMemoryChecker(MemoryCheckerConfig{MaxHeapBytes: 1 << 40}).Check(context.Background())
	if r.Status != StatusHealthy {
		t.Errorf("Status = %v (%s), want healthy", r.Status, r.Message)
	}
	if _, ok := r.Details["heap_alloc_bytes"]; !ok {
		t.Errorf("Details missing heap_alloc_bytes: %v", r.Details)
	}
}

func TestMemoryChecker_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if r := NewMemoryChecker(MemoryCheckerConfig{}).Check(ctx); r.Status != StatusUnhealthy {
		t.Errorf("Status = %v, want unhealthy", r.Status)
	}
}
