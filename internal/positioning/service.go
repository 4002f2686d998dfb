// Package positioning orchestrates plate-solve attempts against the solver
// service and persists one Positioning record per attempt.
package positioning

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/skyanchor/skyanchor/internal/cache"
	"github.com/skyanchor/skyanchor/internal/solveclient"
	"github.com/skyanchor/skyanchor/internal/store"
	"github.com/skyanchor/skyanchor/pkg/models"
)

var (
	// ErrSolveFailed means the solver resolved the job to failure.
	ErrSolveFailed = errors.New("plate solve failed")
	// ErrSolveTimeout means the job did not reach a terminal state within
	// the wait ceiling.
	ErrSolveTimeout = errors.New("plate solve timed out")
)

const historyTTL = 30 * time.Second

// Archiver stores a copy of a successfully solved image.
type Archiver interface {
	Archive(ctx context.Context, imagePath string, userID uuid.UUID) error
}

// Service drives the upload-then-poll solve flow. Every SolveField call
// persists exactly one Positioning record, solved or not, before any fault
// reaches the caller.
type Service struct {
	client       solveclient.Client
	store        store.Store
	cache        cache.Cache
	archiver     Archiver
	pollInterval time.Duration
	maxWait      time.Duration
}

// NewService creates a positioning Service. archiver may be nil to disable
// image archival.
func NewService(client solveclient.Client, st store.Store, ca cache.Cache, archiver Archiver, pollInterval, maxWait time.Duration) *Service {
	return &Service{
		client:       client,
		store:        st,
		cache:        ca,
		archiver:     archiver,
		pollInterval: pollInterval,
		maxWait:      maxWait,
	}
}

// SolveField submits the image to the solver service and waits for the
// terminal outcome, polling at the configured cadence up to the wait
// ceiling. Cancelling ctx stops the wait between polls; the attempt is
// recorded as unsolved.
func (s *Service) SolveField(ctx context.Context, imagePath string, userID uuid.UUID) (*models.Positioning, error) {
	start := time.Now()

	jobID, err := s.client.Submit(ctx, imagePath)
	if err != nil {
		s.recordUnsolved(imagePath, userID)
		return nil, fmt.Errorf("submitting image: %w", err)
	}

	deadline := time.NewTimer(s.maxWait)
	defer deadline.Stop()
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		job, err := s.client.Status(ctx, jobID)
		if err != nil {
			// Transient upstream trouble: keep polling until the ceiling.
			slog.Warn("polling solver job", "job_id", jobID, "error", err)
		} else {
			switch job.Status {
			case models.JobStatusSuccess:
				return s.recordSolved(ctx, jobID, imagePath, userID, time.Since(start))
			case models.JobStatusFailure:
				s.recordUnsolved(imagePath, userID)
				return nil, fmt.Errorf("%w: %s", ErrSolveFailed, job.Error)
			}
		}

		select {
		case <-ctx.Done():
			s.recordUnsolved(imagePath, userID)
			return nil, ctx.Err()
		case <-deadline.C:
			s.recordUnsolved(imagePath, userID)
			return nil, ErrSolveTimeout
		case <-ticker.C:
		}
	}
}

func (s *Service) recordSolved(ctx context.Context, jobID, imagePath string, userID uuid.UUID, elapsed time.Duration) (*models.Positioning, error) {
	info, err := s.client.Info(ctx, jobID)
	if err != nil {
		s.recordUnsolved(imagePath, userID)
		return nil, fmt.Errorf("fetching solve result: %w", err)
	}

	solveTime := elapsed.Seconds()
	rec := &models.Positioning{
		ID:        uuid.New(),
		UserID:    userID,
		ImagePath: imagePath,
		Solved:    true,
		SolveTime: &solveTime,
		CreatedAt: time.Now().UTC(),
	}
	if cal := info.Calibration; cal != nil {
		rec.RA = cal.RA
		rec.Dec = cal.Dec
		rec.FieldWidth = cal.FieldWidth
		rec.FieldHeight = cal.FieldHeight
		rec.Orientation = cal.Orientation
	}

	if err := s.store.CreatePositioning(ctx, rec); err != nil {
		return nil, fmt.Errorf("persisting positioning: %w", err)
	}
	s.invalidateHistory(ctx, userID)

	if s.archiver != nil {
		if err := s.archiver.Archive(ctx, imagePath, userID); err != nil {
			slog.Warn("archiving solved image", "image", imagePath, "error", err)
		}
	}

	return rec, nil
}

// recordUnsolved persists the failed attempt. The caller's fault is what
// propagates; a persistence error here is logged, not returned, so the
// original failure is never masked.
func (s *Service) recordUnsolved(imagePath string, userID uuid.UUID) {
	rec := &models.Positioning{
		ID:        uuid.New(),
		UserID:    userID,
		ImagePath: imagePath,
		Solved:    false,
		CreatedAt: time.Now().UTC(),
	}
	// Fresh context: the request context may already be cancelled.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.store.CreatePositioning(ctx, rec); err != nil {
		slog.Error("persisting unsolved record", "user_id", userID, "error", err)
		return
	}
	s.invalidateHistory(ctx, userID)
}

// GetHistory returns the user's most recent attempts, newest first.
// Responses are cached briefly since history is read on every page load.
func (s *Service) GetHistory(ctx context.Context, userID uuid.UUID, limit int) ([]*models.Positioning, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}

	key := cache.HistoryKey(userID, limit)
	if s.cache != nil {
		if data, ok, err := s.cache.Get(ctx, key); err == nil && ok {
			var recs []*models.Positioning
			if err := json.Unmarshal(data, &recs); err == nil {
				return recs, nil
			}
		}
	}

	recs, err := s.store.ListPositionings(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("listing positionings: %w", err)
	}

	if s.cache != nil {
		if data, err := json.Marshal(recs); err == nil {
			_ = s.cache.Set(ctx, key, data, historyTTL)
		}
	}

	return recs, nil
}

func (s *Service) invalidateHistory(ctx context.Context, userID uuid.UUID) {
	if s.cache == nil {
		return
	}
	// History keys vary by limit; the default is what the UI uses.
	_ = s.cache.Delete(ctx, cache.HistoryKey(userID, 20))
}
