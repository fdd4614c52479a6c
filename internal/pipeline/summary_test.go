package pipeline

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/hoanghai1803/minernews/internal/models"
)

func TestSummaryExitCode(t *testing.T) {
	tests := []struct {
		status models.RunStatus
		want   int
	}{
		{models.RunCompleted, 0},
		{models.RunSkipped, 0},
		{models.RunFailed, 1},
	}
	for _, tt := range tests {
		s := &Summary{Status: tt.status}
		if got := s.ExitCode(); got != tt.want {
			t.Errorf("ExitCode() for %s = %d, want %d", tt.status, got, tt.want)
		}
	}
}

func TestSummaryPrint(t *testing.T) {
	t.Run("run", func(t *testing.T) {
		var buf bytes.Buffer
		(&Summary{
			RunID:            "r1",
			Status:           models.RunFailed,
			Attempted:        3,
			Written:          1,
			Skipped:          2,
			AnalysisFailures: 1,
			WriteFailures:    1,
			Err:              errors.New("disk full"),
		}).Print(&buf)

		out := buf.String()
		for _, want := range []string{
			"Run r1: failed",
			"attempted: 3  written: 1  skipped: 2",
			"invalid 0, analysis 1, write 1, interrupted 0",
			"error: disk full",
		} {
			if !strings.Contains(out, want) {
				t.Errorf("output missing %q:\n%s", want, out)
			}
		}
	})

	t.Run("dry run", func(t *testing.T) {
		var buf bytes.Buffer
		(&Summary{
			DryRun:      true,
			Candidates:  2,
			AlreadySeen: 1,
			Pending:     []models.Article{{Title: "New", URL: "https://example.com/new"}},
		}).Print(&buf)

		out := buf.String()
		if !strings.Contains(out, "2 candidate(s), 1 already reported, 1 would be processed") ||
			!strings.Contains(out, "https://example.com/new  New") {
			t.Errorf("unexpected dry-run output:\n%s", out)
		}
	})
}

func TestStateString(t *testing.T) {
	for s, want := range map[State]string{Idle: "idle", Requesting: "requesting", Writing: "writing", State(99): "unknown"} {
		if got := s.String(); got != want {
			t.Errorf("State(%d).String() = %q, want %q", int(s), got, want)
		}
	}
}
