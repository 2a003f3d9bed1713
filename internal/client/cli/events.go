package cli

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/choirsync/internal/offline"
)

// printEvents reports queue resolutions as they happen.
func (a *App) printEvents(ctx context.Context, ch <-chan offline.Event) {
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return
			}
			if msg := describeEvent(ev); msg != "" {
				fmt.Fprintln(a.out, msg)
			}
		case <-ctx.Done():
			return
		}
	}
}

func describeEvent(ev offline.Event) string {
	switch ev.Outcome {
	case offline.OutcomeCommitted:
		if c, ok := ev.Action.(offline.ExportReportCommit); ok && c.Location != "" {
			return fmt.Sprintf("[sync] %s report saved to %s", c.Report, c.Location)
		}
		return fmt.Sprintf("[sync] %s saved", ev.Kind)
	case offline.OutcomeDiscarded:
		return fmt.Sprintf("[sync] %s rejected by the server and rolled back: %s", ev.Kind, ev.Err)
	case offline.OutcomeParked:
		return fmt.Sprintf("[sync] %s gave up after %d attempts; run 'sync' to retry", ev.Kind, ev.Attempts)
	case offline.OutcomeReset:
		return "[sync] local data was from an older version and has been reset"
	}
	return ""
}
