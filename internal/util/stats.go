package util

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/pterm/pterm"
)

// ──────────────────────────────────────────────────────────────────────────────
// Global stats singleton
// ──────────────────────────────────────────────────────────────────────────────

// Stats is the process-wide message/link counter.
var Stats = &stats{}

type stats struct {
	DirectMsgs  atomic.Int64 // cumulative messages delivered over peer data channels
	RelayedMsgs atomic.Int64 // cumulative messages sent through the server relay
	LinksUp     atomic.Int64 // cumulative count of peer links reaching the linked state
	LinksDown   atomic.Int64 // cumulative count of peer links closed
}

func (s *stats) AddDirect()  { s.DirectMsgs.Add(1) }
func (s *stats) AddRelayed() { s.RelayedMsgs.Add(1) }
func (s *stats) LinkUp()     { s.LinksUp.Add(1) }
func (s *stats) LinkDown()   { s.LinksDown.Add(1) }

// ──────────────────────────────────────────────────────────────────────────────
// Periodic reporter
// ──────────────────────────────────────────────────────────────────────────────

// StartStatsReporter launches a goroutine that logs delivery statistics
// every 30 seconds, skipping idle intervals. It stops when ctx is cancelled.
func StartStatsReporter(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()

		var prevDirect, prevRelayed, prevUp, prevDown int64
		for {
			select {
			case <-ticker.C:
				direct := Stats.DirectMsgs.Load()
				relayed := Stats.RelayedMsgs.Load()
				up := Stats.LinksUp.Load()
				down := Stats.LinksDown.Load()

				dDirect := direct - prevDirect
				dRelayed := relayed - prevRelayed
				dUp := up - prevUp
				dDown := down - prevDown

				if dDirect > 0 || dRelayed > 0 || dUp > 0 || dDown > 0 {
					pterm.DefaultLogger.Info(formatStats(dDirect, dRelayed, dUp, dDown))
				}

				prevDirect = direct
				prevRelayed = relayed
				prevUp = up
				prevDown = down

			case <-ctx.Done():
				return
			}
		}
	}()
}

// formatStats returns a formatted string of the current stats for display in the logger.
func formatStats(direct, relayed, up, down int64) string {
	return fmt.Sprintf("Direct: %3d | Relayed: %3d | Links: %2d↑ %2d↓",
		direct,
		relayed,
		up,
		down,
	)
}
