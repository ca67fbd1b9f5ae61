// Package retention implements the scheduled conversation retention
// sweeper: warning stamps, hard deletion and monthly stamp purges.
package retention

import (
	"context"
	"log/slog"
	"time"

	"github.com/acswi/programchat/store"
)

const (
	// interval between sweeps. The runner also fires once at startup.
	interval = 24 * time.Hour

	// minWarningDays floors the warning window for short retentions.
	minWarningDays = 3

	// stampMaxAge bounds how long notification stamps are kept around.
	stampMaxAge = 365 * 24 * time.Hour
)

// Runner sweeps expired conversation turns per program retention policy.
type Runner struct {
	Store *store.Store
}

func NewRunner(st *store.Store) *Runner {
	return &Runner{Store: st}
}

// Start runs one sweep immediately and then on every interval tick until
// the context is cancelled.
func (r *Runner) Start(ctx context.Context) {
	r.RunOnce(ctx, time.Now())

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			r.RunOnce(ctx, time.Now())
		case <-ctx.Done():
			return
		}
	}
}

// warningWindowDays is max(3, retentionDays / 10).
func warningWindowDays(retentionDays int32) int32 {
	window := retentionDays / 10
	if window < minWarningDays {
		window = minWarningDays
	}
	return window
}

// RunOnce applies one retention pass for every active program with a
// positive retention period, one transaction per program. On the first of
// the month it also purges stale notification stamps.
func (r *Runner) RunOnce(ctx context.Context, now time.Time) {
	now = now.UTC()
	programs, err := r.Store.ListPrograms(ctx, &store.FindProgram{})
	if err != nil {
		slog.Error("retention sweep failed to list programs", "error", err)
		return
	}

	for _, program := range programs {
		if !program.Active || program.RetentionDays == nil || *program.RetentionDays <= 0 {
			continue
		}
		r.sweepProgram(ctx, program, now)
	}

	if now.Day() == 1 {
		cutoff := now.Add(-stampMaxAge).Unix()
		purged, err := r.Store.PurgeNotificationStamps(ctx, cutoff)
		if err != nil {
			slog.Error("notification stamp purge failed", "error", err)
		} else if purged > 0 {
			slog.Info("purged stale notification stamps", "count", purged)
		}
	}
}

func (r *Runner) sweepProgram(ctx context.Context, program *store.Program, now time.Time) {
	retentionDays := *program.RetentionDays
	window := warningWindowDays(retentionDays)

	deleteBefore := now.AddDate(0, 0, -int(retentionDays)).Unix()
	warnBefore := now.AddDate(0, 0, -int(retentionDays-window)).Unix()

	result, err := r.Store.SweepConversationTurns(ctx, &store.SweepConversationTurns{
		ProgramCode:  program.Code,
		DeleteBefore: deleteBefore,
		WarnBefore:   warnBefore,
		NotifyTs:     now.Unix(),
	})
	if err != nil {
		slog.Error("retention sweep failed", "program", program.Code, "error", err)
		return
	}
	if result.Notified > 0 || result.Deleted > 0 {
		slog.Info("retention sweep applied",
			"program", program.Code,
			"notified", result.Notified,
			"deleted", result.Deleted,
			"retention_days", retentionDays)
	}
}
