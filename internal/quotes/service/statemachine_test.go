package service

import "testing"

func TestCanTransition(t *testing.T) {
	tests := []struct {
		name string
		from string
		to   string
		want bool
	}{
		{"step1 to step2", StatusStep1, StatusStep2, true},
		{"step1 to step3 skips a step", StatusStep1, StatusStep3, true},
		{"step1 to complete", StatusStep1, StatusComplete, true},
		{"same status is a no-op", StatusStep2, StatusStep2, true},
		{"step3 back to step1", StatusStep3, StatusStep1, false},
		{"complete back to step3", StatusComplete, StatusStep3, false},
		{"complete stays complete", StatusComplete, StatusComplete, true},
		{"expired accepts nothing", StatusExpired, StatusStep1, false},
		{"expired is not a target", StatusStep2, StatusExpired, false},
		{"unknown source", "DRAFT", StatusStep2, false},
		{"unknown target", StatusStep1, "DRAFT", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CanTransition(tt.from, tt.to); got != tt.want {
				t.Fatalf("CanTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
			}
		})
	}
}

func TestInferStatus(t *testing.T) {
	tests := []struct {
		name          string
		current       string
		touchedHolder bool
		touchedEvent  bool
		want          string
	}{
		{"holder data advances to step3", StatusStep1, true, false, StatusStep3},
		{"event data advances to step2", StatusStep1, false, true, StatusStep2},
		{"holder wins over event", StatusStep1, true, true, StatusStep3},
		{"no touched groups keeps current", StatusStep2, false, false, StatusStep2},
		{"never regresses from step3", StatusStep3, false, true, StatusStep3},
		{"complete is never lowered", StatusComplete, true, true, StatusComplete},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := InferStatus(tt.current, tt.touchedHolder, tt.touchedEvent); got != tt.want {
				t.Fatalf("InferStatus(%s, %v, %v) = %s, want %s", tt.current, tt.touchedHolder, tt.touchedEvent, got, tt.want)
			}
		})
	}
}
