package solver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/skyanchor/skyanchor/internal/wcs"
	"github.com/skyanchor/skyanchor/pkg/models"
)

var ErrEmptyFilename = errors.New("filename is empty")

// wcsArtifact is the file whose existence signals a successful solve.
const wcsArtifact = "output.wcs"

type task struct {
	jobID     string
	inputPath string
	outputDir string
}

// Service accepts solve submissions and resolves every job to a terminal
// state. Submissions return immediately; solving happens on a fixed pool
// of workers draining a bounded queue.
type Service struct {
	store      JobStore
	runner     Runner
	uploadDir  string
	resultsDir string
	queue      chan task
	workers    int

	// parse is swappable in tests.
	parse func(path string) *models.Calibration
}

// NewService creates a Service and its upload/results directories.
func NewService(store JobStore, runner Runner, uploadDir, resultsDir string, workers, queueSize int) (*Service, error) {
	if err := os.MkdirAll(uploadDir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	if err := os.MkdirAll(resultsDir, 0o755); err != nil {
		return nil, fmt.Errorf("create results dir: %w", err)
	}
	return &Service{
		store:      store,
		runner:     runner,
		uploadDir:  uploadDir,
		resultsDir: resultsDir,
		queue:      make(chan task, queueSize),
		workers:    workers,
		parse:      wcs.Parse,
	}, nil
}

// Start launches the worker pool. Workers exit when ctx is cancelled.
func (s *Service) Start(ctx context.Context) {
	for i := 0; i < s.workers; i++ {
		go s.worker(ctx)
	}
	slog.Info("solver workers started", "workers", s.workers, "queue_size", cap(s.queue))
}

// Submit stores the uploaded image, registers a processing job, and
// enqueues the solve. It never waits for the solve itself.
func (s *Service) Submit(filename string, file io.Reader) (string, error) {
	if filename == "" {
		return "", ErrEmptyFilename
	}

	jobID := uuid.New().String()

	inputPath := filepath.Join(s.uploadDir, jobID+"_"+filepath.Base(filename))
	dst, err := os.Create(inputPath)
	if err != nil {
		return "", fmt.Errorf("save upload: %w", err)
	}
	if _, err := io.Copy(dst, file); err != nil {
		dst.Close()
		os.Remove(inputPath)
		return "", fmt.Errorf("save upload: %w", err)
	}
	if err := dst.Close(); err != nil {
		return "", fmt.Errorf("save upload: %w", err)
	}

	outputDir := filepath.Join(s.resultsDir, jobID)
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return "", fmt.Errorf("create job results dir: %w", err)
	}

	job := &models.SolverJob{
		ID:        jobID,
		Status:    models.JobStatusProcessing,
		Filename:  filename,
		StartTime: time.Now().UTC(),
	}
	if err := s.store.Create(job); err != nil {
		return "", fmt.Errorf("register job: %w", err)
	}

	select {
	case s.queue <- task{jobID: jobID, inputPath: inputPath, outputDir: outputDir}:
	default:
		// Queue saturated: resolve immediately instead of blocking the
		// submission path.
		s.fail(jobID, "solver queue full")
	}

	return jobID, nil
}

func (s *Service) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case t := <-s.queue:
			s.solveAndRecord(ctx, t)
		}
	}
}

// solveAndRecord runs the solver for one job and always resolves it to a
// terminal state. No fault escapes: panics, spawn failures, timeouts, and
// missing artifacts all become a Failure record.
func (s *Service) solveAndRecord(ctx context.Context, t task) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("panic in solveAndRecord", "error", r, "job_id", t.jobID)
			s.fail(t.jobID, fmt.Sprintf("panic: %v", r))
		}
	}()

	stderr, err := s.runner.Run(ctx, t.inputPath, t.outputDir)
	if err != nil {
		if errors.Is(err, ErrSolveTimeout) {
			s.fail(t.jobID, "solve timed out")
		} else {
			s.fail(t.jobID, err.Error())
		}
		return
	}

	artifact := filepath.Join(t.outputDir, wcsArtifact)
	if _, err := os.Stat(artifact); err != nil {
		// No WCS artifact means no solution, whatever the exit code said.
		s.fail(t.jobID, stderr)
		return
	}

	s.succeed(t.jobID, s.parse(artifact))
}

func (s *Service) succeed(jobID string, cal *models.Calibration) {
	prev, err := s.store.Get(jobID)
	if err != nil {
		slog.Error("resolving unknown job", "job_id", jobID, "error", err)
		return
	}
	job := &models.SolverJob{
		ID:          prev.ID,
		Status:      models.JobStatusSuccess,
		Filename:    prev.Filename,
		StartTime:   prev.StartTime,
		SolveTime:   time.Since(prev.StartTime).Seconds(),
		Calibration: cal,
	}
	if err := s.store.Resolve(job); err != nil {
		slog.Error("publishing job success", "job_id", jobID, "error", err)
		return
	}
	slog.Info("job solved", "job_id", jobID, "solve_time_s", job.SolveTime, "degraded", cal.Degraded())
}

func (s *Service) fail(jobID, reason string) {
	prev, err := s.store.Get(jobID)
	if err != nil {
		slog.Error("resolving unknown job", "job_id", jobID, "error", err)
		return
	}
	job := &models.SolverJob{
		ID:        prev.ID,
		Status:    models.JobStatusFailure,
		Filename:  prev.Filename,
		StartTime: prev.StartTime,
		SolveTime: time.Since(prev.StartTime).Seconds(),
		Error:     reason,
	}
	if err := s.store.Resolve(job); err != nil {
		slog.Error("publishing job failure", "job_id", jobID, "error", err)
		return
	}
	slog.Info("job failed", "job_id", jobID, "reason", reason)
}

// Status returns the job snapshot for id.
func (s *Service) Status(jobID string) (*models.SolverJob, error) {
	return s.store.Get(jobID)
}

// Info returns the terminal-shaped payload for id. Processing jobs get a
// plain still-processing shape rather than an error.
func (s *Service) Info(jobID string) (*models.JobInfo, error) {
	job, err := s.store.Get(jobID)
	if err != nil {
		return nil, err
	}

	switch job.Status {
	case models.JobStatusSuccess:
		return &models.JobInfo{
			Status:      job.Status,
			Calibration: job.Calibration,
			SolveTime:   job.SolveTime,
		}, nil
	case models.JobStatusFailure:
		return &models.JobInfo{
			Status: job.Status,
			Error:  job.Error,
		}, nil
	default:
		return &models.JobInfo{
			Status:  job.Status,
			Message: "still processing",
		}, nil
	}
}
