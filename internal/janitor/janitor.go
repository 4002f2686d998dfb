// Package janitor prunes expired solver jobs and their on-disk artifacts.
// The in-memory job store and the upload/results directories grow without
// bound otherwise.
package janitor

import (
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/skyanchor/skyanchor/internal/solver"
)

// Janitor periodically deletes terminal jobs older than the retention
// window together with their uploaded image and results directory.
type Janitor struct {
	store      solver.JobStore
	uploadDir  string
	resultsDir string
	retention  time.Duration
	cron       *cron.Cron
}

func New(store solver.JobStore, uploadDir, resultsDir string, retention time.Duration) *Janitor {
	return &Janitor{
		store:      store,
		uploadDir:  uploadDir,
		resultsDir: resultsDir,
		retention:  retention,
	}
}

// Start schedules sweeps using a standard 5-field cron expression.
func (j *Janitor) Start(spec string) error {
	c := cron.New(cron.WithParser(cron.NewParser(
		cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow,
	)))
	if _, err := c.AddFunc(spec, j.Sweep); err != nil {
		return err
	}
	c.Start()
	j.cron = c
	slog.Info("janitor started", "schedule", spec, "retention", j.retention.String())
	return nil
}

// Stop halts the schedule and waits for a running sweep to finish.
func (j *Janitor) Stop() {
	if j.cron != nil {
		<-j.cron.Stop().Done()
	}
}

// Sweep removes every expired terminal job and its files.
func (j *Janitor) Sweep() {
	cutoff := time.Now().UTC().Add(-j.retention)
	expired := solver.TerminalBefore(j.store, cutoff)

	for _, job := range expired {
		if err := os.RemoveAll(filepath.Join(j.resultsDir, job.ID)); err != nil {
			slog.Warn("removing results dir", "job_id", job.ID, "error", err)
		}
		if err := os.Remove(filepath.Join(j.uploadDir, job.ID+"_"+filepath.Base(job.Filename))); err != nil && !os.IsNotExist(err) {
			slog.Warn("removing uploaded image", "job_id", job.ID, "error", err)
		}
		j.store.Delete(job.ID)
	}

	if len(expired) > 0 {
		slog.Info("janitor sweep", "pruned", len(expired))
	}
}
