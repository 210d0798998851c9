package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/meridiancrm/meridian/pkg/audit"
)

// AuditExportJob uploads the previous day's audit entries to S3
type AuditExportJob struct {
	store    *audit.Store
	exporter *audit.S3Exporter
}

// NewAuditExportJob creates the export job
func NewAuditExportJob(store *audit.Store, exporter *audit.S3Exporter) *AuditExportJob {
	return &AuditExportJob{store: store, exporter: exporter}
}

// Name implements Job
func (j *AuditExportJob) Name() string { return "audit-export" }

// Run exports the previous UTC day
func (j *AuditExportJob) Run(ctx context.Context) error {
	day, from, to := PreviousDay(time.Now().UTC())

	entries, err := j.store.List(ctx, audit.ListFilter{From: &from, To: &to})
	if err != nil {
		return fmt.Errorf("listing audit entries: %w", err)
	}
	if len(entries) == 0 {
		return nil
	}

	if _, err := j.exporter.Upload(ctx, day, entries); err != nil {
		return fmt.Errorf("uploading audit export: %w", err)
	}
	return nil
}

// PreviousDay returns the previous UTC day and its half-open window
func PreviousDay(now time.Time) (day, from, to time.Time) {
	to = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	from = to.Add(-24 * time.Hour)
	return from, from, to
}
