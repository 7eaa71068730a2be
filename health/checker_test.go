package health

import (
	"context"
	"errors"
	"testing"
)

func TestStatus_String(t *testing.T) {
	tests := []struct {
		status Status
		want   string
	}{
		{StatusHealthy, "healthy"},
		{StatusDegraded, "degraded"},
		{StatusUnhealthy, "unhealthy"},
		{Status(99), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.status.String(); got != tt.want {
			t.Errorf("Status(%d).String() = %q, want %q", tt.status, got, tt.want)
		}
	}
}

func TestResultConstructors(t *testing.T) {
	err := errors.New("down")

	tests := []struct {
		name   string
		result Result
		want   Status
	}{
		{"healthy", Healthy("ok"), StatusHealthy},
		{"degraded", Degraded("slow"), StatusDegraded},
		{"unhealthy", Unhealthy("down", err), StatusUnhealthy},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.result.Status != tt.want {
				t.Errorf("Status = %v, want %v", tt.result.Status, tt.want)
			}
			if tt.result.Timestamp.IsZero() {
				t.Error("Timestamp should be set")
			}
		})
	}

	if r := Unhealthy("down", err); !errors.Is(r.Error, err) {
		t.Errorf("Error = %v, want %v", r.Error, err)
	}

	r := Healthy("ok").WithDetails(map[string]any{"size": 3})
	if r.Details["size"] != 3 {
		t.Errorf("Details = %v", r.Details)
	}
}

func TestCheckerFunc(t *testing.T) {
	called := false
	c := NewCheckerFunc("custom", func(context.Context) Result {
		called = true
		return Degraded("meh")
	})

	if c.Name() != "custom" {
		t.Errorf("Name = %q, want custom", c.Name())
	}
	if r := c.Check(context.Background()); r.Status != StatusDegraded {
		t.Errorf("Status = %v, want degraded", r.Status)
	}
	if !called {
		t.Error("function was not called")
	}
}
