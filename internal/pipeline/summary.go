package pipeline

import (
	"fmt"
	"io"

	"github.com/hoanghai1803/minernews/internal/models"
)

// Summary is the outcome of one pass.
type Summary struct {
	RunID  string
	Status models.RunStatus
	Model  string
	DryRun bool

	Candidates  int // articles returned by the source
	AlreadySeen int // dropped because a report exists
	Deferred    int // left for a later pass by the batch bound
	Attempted   int // sent to the analysis stage
	Written     int
	Skipped     int // Invalid + AnalysisFailures + WriteFailures + Interrupted + credential skips

	Invalid          int
	AnalysisFailures int
	WriteFailures    int
	Interrupted      int

	Pending []models.Article // articles selected for this pass
	Reports []string         // paths written, in write order
	Err     error
}

// ExitCode maps the outcome to a process exit status: 0 for completed and
// skipped passes, 1 for failures.
func (s *Summary) ExitCode() int {
	if s.Status == models.RunFailed {
		return 1
	}
	return 0
}

// Print writes the human readable summary.
func (s *Summary) Print(w io.Writer) {
	if s.DryRun {
		fmt.Fprintf(w, "Dry run: %d candidate(s), %d already reported, %d would be processed\n",
			s.Candidates, s.AlreadySeen, len(s.Pending))
		for _, a := range s.Pending {
			fmt.Fprintf(w, "  %s  %s\n", a.URL, a.Title)
		}
		return
	}

	fmt.Fprintf(w, "Run %s: %s\n", s.RunID, s.Status)
	fmt.Fprintf(w, "  attempted: %d  written: %d  skipped: %d\n", s.Attempted, s.Written, s.Skipped)
	fmt.Fprintf(w, "  candidates: %d  already reported: %d  deferred: %d\n", s.Candidates, s.AlreadySeen, s.Deferred)
	if s.Skipped > 0 {
		fmt.Fprintf(w, "  skipped breakdown: invalid %d, analysis %d, write %d, interrupted %d\n",
			s.Invalid, s.AnalysisFailures, s.WriteFailures, s.Interrupted)
	}
	if s.Err != nil {
		fmt.Fprintf(w, "  error: %v\n", s.Err)
	}
}
