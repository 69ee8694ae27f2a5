package worker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/ksingla1885/Mindora-sub003/internal/config"
	"github.com/ksingla1885/Mindora-sub003/internal/model"
	"github.com/ksingla1885/Mindora-sub003/internal/service"
)

// AutosaveWorker consumes persist_progress_queue and writes snapshots to
// PostgreSQL. Snapshots for already-submitted attempts are silently dropped
// by the repository's status predicate.
type AutosaveWorker struct {
	attemptService *service.AttemptService
	rdb            *redis.Client
	log            zerolog.Logger
}

// NewAutosaveWorker creates a new AutosaveWorker.
func NewAutosaveWorker(attemptService *service.AttemptService, rdb *redis.Client, log zerolog.Logger) *AutosaveWorker {
	return &AutosaveWorker{
		attemptService: attemptService,
		rdb:            rdb,
		log:            log.With().Str("component", "autosave_worker").Logger(),
	}
}

type progressPayload struct {
	AttemptID string                 `json:"attempt_id"`
	Snapshot  model.ProgressSnapshot `json:"snapshot"`
}

// Start begins the infinite worker loop. Call in a goroutine.
func (w *AutosaveWorker) Start(ctx context.Context) {
	w.log.Info().Msg("Worker started")

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Worker stopping...")
			// Drain remaining items before exit.
			w.drain(context.Background())
			w.log.Info().Msg("Worker stopped")
			return
		default:
			w.processNext(ctx)
		}
	}
}

func (w *AutosaveWorker) processNext(ctx context.Context) {
	// BLPop blocks until an item is available or timeout (1 second).
	result, err := w.rdb.BLPop(ctx, time.Second, config.WorkerKey.PersistProgressQueue).Result()
	if err != nil {
		if err != redis.Nil && ctx.Err() == nil {
			w.log.Error().Err(err).Msg("BLPop error")
		}
		return
	}

	if len(result) < 2 {
		return
	}

	if err := w.persistItem(ctx, result[1]); err != nil {
		w.log.Error().Err(err).Msg("Persist error, retrying in 5s")
		// Push back to queue for retry.
		w.rdb.RPush(ctx, config.WorkerKey.PersistProgressQueue, result[1])
		time.Sleep(5 * time.Second)
	}
}

func (w *AutosaveWorker) persistItem(ctx context.Context, raw string) error {
	var payload progressPayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		// Malformed items are unrecoverable; log and drop.
		w.log.Error().Err(err).Msg("Unmarshal error, dropping item")
		return nil
	}

	attemptID, err := uuid.Parse(payload.AttemptID)
	if err != nil {
		w.log.Error().Err(err).Str("attempt_id", payload.AttemptID).Msg("Bad attempt id, dropping item")
		return nil
	}

	return w.attemptService.PersistSnapshot(ctx, attemptID, &payload.Snapshot)
}

// drain processes all remaining items in the queue before shutdown.
func (w *AutosaveWorker) drain(ctx context.Context) {
	drained := 0
	for {
		result, err := w.rdb.LPop(ctx, config.WorkerKey.PersistProgressQueue).Result()
		if err != nil {
			break
		}

		if err := w.persistItem(ctx, result); err != nil {
			w.log.Error().Err(err).Msg("Drain persist error")
			w.rdb.RPush(ctx, config.WorkerKey.PersistProgressQueue, result)
			break
		}
		drained++
	}

	if drained > 0 {
		w.log.Info().Int("count", drained).Msg("Drained remaining items")
	}
}
