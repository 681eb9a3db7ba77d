package logging

import (
	"testing"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]zerolog.Level{
		"debug":   zerolog.DebugLevel,
		"WARN":    zerolog.WarnLevel,
		"error":   zerolog.ErrorLevel,
		"info":    zerolog.InfoLevel,
		"":        zerolog.InfoLevel,
		"verbose": zerolog.InfoLevel,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestAsynqLevel(t *testing.T) {
	if AsynqLevel("debug") != asynq.DebugLevel {
		t.Error("expected debug level")
	}
	if AsynqLevel("nonsense") != asynq.InfoLevel {
		t.Error("expected info level fallback")
	}
}
