package log

import (
	"context"
	"testing"

	"github.com/go-logr/logr"
)

func TestLevelFromString(t *testing.T) {
	cases := map[string]interface{}{
		ErrorLevelString:   ErrorLevel,
		WarningLevelString: WarningLevel,
		InfoLevelString:    InfoLevel,
		DebugLevelString:   DebugLevel,
		TraceLevelString:   TraceLevel,
		"bogus":            DefaultLevel,
	}

	for input, want := range cases {
		if got := LevelFromString(input); got != want {
			t.Errorf("LevelFromString(%q) = %v, want %v", input, got, want)
		}
	}
}

func TestContextRoundTrip(t *testing.T) {
	base := logr.Discard().WithName("request")
	ctx := IntoContext(context.Background(), base)

	got := FromContext(ctx)
	if got.GetSink() != base.GetSink() {
		t.Errorf("FromContext did not return the logger stashed by IntoContext")
	}
}

func TestFromContextFallsBackToGlobal(t *testing.T) {
	if got := FromContext(context.Background()); got.GetSink() != globalLogger.GetSink() {
		t.Errorf("FromContext without a stashed logger should return the process-wide logger")
	}

	if got := FromContext(nil); got.GetSink() != globalLogger.GetSink() { //nolint:staticcheck
		t.Errorf("FromContext(nil) should return the process-wide logger")
	}
}
