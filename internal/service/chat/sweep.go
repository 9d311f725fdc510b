package chat

import (
	"context"
	"log/slog"
	"time"

	"github.com/adhocore/gronx"

	"BizLink/entity"
	"BizLink/internal/config"
	repository "BizLink/internal/database"
	"BizLink/internal/lib/sl"
	"BizLink/internal/metrics"
)

// MaintenanceStore is the store surface the dedup sweep needs.
type MaintenanceStore interface {
	FindDuplicateBusinessConversations(ctx context.Context) ([][]entity.Conversation, error)
	MergeConversations(ctx context.Context, plan repository.MergePlan) error
}

// SweepStamps persists when the last sweep completed so restarts do not
// re-run it early. A nil implementation disables the throttle.
type SweepStamps interface {
	LastSweep(ctx context.Context) (time.Time, error)
	MarkSweep(ctx context.Context, at time.Time) error
}

// Sweeper repairs conversation duplicates left behind by races the
// upsert path could not prevent. It runs on a cron schedule and merges
// every duplicate group into its oldest member.
type Sweeper struct {
	store    MaintenanceStore
	stamps   SweepStamps
	log      *slog.Logger
	cron     string
	interval time.Duration
}

func NewSweeper(store MaintenanceStore, stamps SweepStamps, conf *config.Config, log *slog.Logger) *Sweeper {
	return &Sweeper{
		store:    store,
		stamps:   stamps,
		log:      log.With(sl.Module("chat.sweep")),
		cron:     conf.Chat.SweepCron,
		interval: conf.Chat.SweepInterval,
	}
}

// Run blocks until ctx is cancelled, firing RunOnce on each cron tick.
func (s *Sweeper) Run(ctx context.Context) {
	if !gronx.IsValid(s.cron) {
		s.log.Error("invalid sweep schedule", slog.String("cron", s.cron))
		return
	}

	for {
		next, err := gronx.NextTickAfter(s.cron, time.Now(), false)
		if err != nil {
			s.log.Error("failed to compute next sweep tick", sl.Err(err))
			return
		}

		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		if merged, err := s.RunOnce(ctx); err != nil {
			s.log.Error("sweep failed", sl.Err(err))
		} else if merged > 0 {
			s.log.Info("sweep merged duplicate conversations", slog.Int("groups", merged))
		}
	}
}

// RunOnce performs a single sweep pass and returns the number of groups
// merged. The pass is skipped when the last completed run is closer than
// the configured interval.
func (s *Sweeper) RunOnce(ctx context.Context) (int, error) {
	if s.stamps != nil {
		last, err := s.stamps.LastSweep(ctx)
		if err != nil {
			s.log.Warn("failed to read sweep stamp, proceeding", sl.Err(err))
		} else if !last.IsZero() && time.Since(last) < s.interval {
			s.log.Debug("sweep skipped, ran recently", slog.Time("last", last))
			return 0, nil
		}
	}

	groups, err := s.store.FindDuplicateBusinessConversations(ctx)
	if err != nil {
		return 0, err
	}

	merged := 0
	for _, group := range groups {
		plan := repository.PlanMerge(group)
		if plan.KeepID == "" || len(plan.DropIDs) == 0 {
			continue
		}
		if err := s.store.MergeConversations(ctx, plan); err != nil {
			s.log.Error("failed to merge duplicate group",
				slog.String("keep", plan.KeepID),
				sl.Err(err),
			)
			continue
		}
		metrics.SweepMerges.Inc()
		merged++
	}

	if s.stamps != nil {
		if err := s.stamps.MarkSweep(ctx, time.Now()); err != nil {
			s.log.Warn("failed to record sweep stamp", sl.Err(err))
		}
	}
	return merged, nil
}
