package ingest

import (
	"testing"
	"time"
)

func TestBackoffPolicy_Delay(t *testing.T) {
	p := DefaultBackoffPolicy()

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{3, 8 * time.Second},
		{4, 16 * time.Second},
		{5, 30 * time.Second}, // 32s 封顶到 30s
		{6, 30 * time.Second},
		{10, 30 * time.Second},
		{0, 2 * time.Second}, // 非法值按第一次处理
	}
	for _, tt := range tests {
		if got := p.Delay(tt.attempt); got != tt.want {
			t.Errorf("Delay(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestBackoffPolicy_Exhausted(t *testing.T) {
	p := DefaultBackoffPolicy()

	for attempt := 1; attempt < p.MaxAttempts; attempt++ {
		if p.Exhausted(attempt) {
			t.Errorf("Exhausted(%d) = true, want false", attempt)
		}
	}
	if !p.Exhausted(p.MaxAttempts) {
		t.Errorf("Exhausted(%d) = false, want true", p.MaxAttempts)
	}
	if !p.Exhausted(p.MaxAttempts + 1) {
		t.Errorf("Exhausted(%d) = false, want true", p.MaxAttempts+1)
	}
}
