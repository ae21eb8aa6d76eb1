package config

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("TIMEZONE", "UTC")

	cfg, err := Load(zerolog.Nop())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HistoryDepthDays != 90 || cfg.ServerPort != "8080" {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
	if !cfg.HistoryFloor.Equal(time.Date(2021, 1, 19, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("unexpected floor %s", cfg.HistoryFloor)
	}
	if cfg.CompletionDebounce != 400*time.Millisecond {
		t.Errorf("unexpected debounce %s", cfg.CompletionDebounce)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		key, value string
	}{
		{"HISTORY_DEPTH_DAYS", "-3"},
		{"HISTORY_FLOOR", "19.01.2021"},
		{"COMPLETION_DEBOUNCE", "soon"},
		{"LOG_LEVEL", "loud"},
		{"TIMEZONE", "Mars/Olympus"},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			t.Chdir(t.TempDir())
			t.Setenv(tt.key, tt.value)
			if _, err := Load(zerolog.Nop()); err == nil {
				t.Errorf("expected error for %s=%s", tt.key, tt.value)
			}
		})
	}
}
