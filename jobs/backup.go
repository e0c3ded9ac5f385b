package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/stockcount/internal/counting"
	"github.com/odyssey-erp/stockcount/internal/export"
	jobmetrics "github.com/odyssey-erp/stockcount/internal/jobs"
	"github.com/odyssey-erp/stockcount/internal/storage"
)

// BackupJob renders the persisted ledger into BACKUP_DIR.
type BackupJob struct {
	mirror   *storage.Mirror
	dir      string
	location counting.Location
	metrics  *jobmetrics.Metrics
	logger   *slog.Logger
	now      func() time.Time
}

// BackupConfig groups BackupJob dependencies.
type BackupConfig struct {
	Mirror   *storage.Mirror
	Dir      string
	Location counting.Location
	Metrics  *jobmetrics.Metrics
	Logger   *slog.Logger
}

// NewBackupJob constructs a job handler.
func NewBackupJob(cfg BackupConfig) *BackupJob {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	location := cfg.Location
	if !location.Valid() {
		location = counting.DefaultLocation
	}
	return &BackupJob{
		mirror:   cfg.Mirror,
		dir:      cfg.Dir,
		location: location,
		metrics:  cfg.Metrics,
		logger:   logger,
		now:      time.Now,
	}
}

// Handle fulfils the asynq.HandlerFunc contract.
func (j *BackupJob) Handle(ctx context.Context, task *asynq.Task) error {
	var payload CountBackupPayload
	if len(task.Payload()) > 0 {
		if err := json.Unmarshal(task.Payload(), &payload); err != nil {
			return fmt.Errorf("decode backup payload: %v: %w", err, asynq.SkipRetry)
		}
	}
	_, err := j.Run(ctx, payload)
	return err
}

// Run writes one backup and returns its path. Nothing is written when the
// ledger is empty.
func (j *BackupJob) Run(ctx context.Context, payload CountBackupPayload) (string, error) {
	tracker := j.metrics.Track(TaskCountBackup)

	location := payload.Location
	if location == "" {
		location = j.location
	}
	if !location.Valid() {
		return "", tracker.End(fmt.Errorf("%w: %s", counting.ErrInvalidLocation, location))
	}
	format := payload.Format
	if format == "" {
		format = export.FormatCSV
	}

	snap, found, err := j.mirror.Load(ctx)
	if err != nil {
		return "", tracker.End(fmt.Errorf("load snapshot: %w", err))
	}
	if !found || len(snap.ProductCounts) == 0 {
		j.logger.Info("count backup skipped, ledger empty", slog.String("key", j.mirror.Key()))
		return "", tracker.End(nil)
	}

	file, err := export.Build(snap.ProductCounts, location, format, j.now())
	if err != nil {
		return "", tracker.End(err)
	}
	path, err := writeAtomic(j.dir, file.Name, file.Body)
	if err != nil {
		return "", tracker.End(err)
	}
	j.metrics.AddBackupRows(string(location), file.Rows)
	j.logger.Info("count backup written", slog.String("path", path), slog.Int("rows", file.Rows))
	return path, tracker.End(nil)
}

func writeAtomic(dir, name string, body []byte) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create backup dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+name+".*")
	if err != nil {
		return "", fmt.Errorf("create backup file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(body); err != nil {
		_ = tmp.Close()
		return "", fmt.Errorf("write backup file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close backup file: %w", err)
	}
	path := filepath.Join(dir, name)
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", fmt.Errorf("publish backup file: %w", err)
	}
	return path, nil
}
