package worker

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/ksingla1885/Mindora-sub003/internal/repository"
	"github.com/ksingla1885/Mindora-sub003/internal/service"
)

// DeadlineWorker periodically force-submits attempts whose deadline has
// passed. It is the server-side safety net for clients that died without
// submitting; live sessions normally auto-submit themselves first.
type DeadlineWorker struct {
	attemptRepo    *repository.AttemptRepository
	attemptService *service.AttemptService
	interval       time.Duration
	grace          time.Duration
	log            zerolog.Logger
}

// NewDeadlineWorker creates a new DeadlineWorker.
func NewDeadlineWorker(
	attemptRepo *repository.AttemptRepository,
	attemptService *service.AttemptService,
	interval, grace time.Duration,
	log zerolog.Logger,
) *DeadlineWorker {
	return &DeadlineWorker{
		attemptRepo:    attemptRepo,
		attemptService: attemptService,
		interval:       interval,
		grace:          grace,
		log:            log.With().Str("component", "deadline_worker").Logger(),
	}
}

// Start begins the sweep loop. Call in a goroutine.
func (w *DeadlineWorker) Start(ctx context.Context) {
	w.log.Info().Dur("interval", w.interval).Msg("Worker started")

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Worker stopped")
			return
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

func (w *DeadlineWorker) sweep(ctx context.Context) {
	overdue, err := w.attemptRepo.ListOverdue(ctx, w.grace)
	if err != nil {
		w.log.Error().Err(err).Msg("List overdue attempts failed")
		return
	}
	if len(overdue) == 0 {
		return
	}

	w.log.Info().Int("count", len(overdue)).Msg("Closing overdue attempts")

	closed := 0
	for i := range overdue {
		if err := w.attemptService.ForceSubmit(ctx, overdue[i].ID); err != nil {
			w.log.Error().Err(err).
				Str("attempt_id", overdue[i].ID.String()).
				Msg("Force submit failed")
			continue
		}
		closed++
	}

	w.log.Info().Int("closed", closed).Int("total", len(overdue)).Msg("Sweep complete")
}
