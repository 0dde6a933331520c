// Package ingest orchestrates the pipeline run: list the shared folder,
// then per file download, parse, classify, normalize, validate, score and
// upsert. A single file's failure never aborts the run.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"credit-engine/internal/classify"
	"credit-engine/internal/models"
	"credit-engine/internal/normalize"
	"credit-engine/internal/quality"
)

// Upserter persists a normalized batch into its destination table, resolving
// conflicts on the given key columns. Idempotent by contract: re-upserting
// the same records converges to the same row set.
type Upserter interface {
	Upsert(ctx context.Context, table string, records []map[string]interface{}, conflictKeys []string) error
}

// FeatureRefresher triggers the downstream feature recomputation. Invoked at
// most once per run, after the first successful persist.
type FeatureRefresher interface {
	RefreshFeatures(ctx context.Context) error
}

// Config tunes the orchestrator. Workers bounds the per-file concurrency;
// file processing is independent per file, so any worker count preserves the
// run semantics.
type Config struct {
	Workers         int
	DownloadTimeout time.Duration
	UpsertTimeout   time.Duration
}

// Service runs the ingestion pipeline. Construct once and reuse; it holds no
// per-run state.
type Service struct {
	files     FileStore
	store     Upserter
	refresher FeatureRefresher
	cfg       Config
}

// NewService wires the orchestrator with its collaborators.
func NewService(files FileStore, store Upserter, refresher FeatureRefresher, cfg Config) *Service {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.DownloadTimeout <= 0 {
		cfg.DownloadTimeout = 30 * time.Second
	}
	if cfg.UpsertTimeout <= 0 {
		cfg.UpsertTimeout = 30 * time.Second
	}
	return &Service{files: files, store: store, refresher: refresher, cfg: cfg}
}

// Run ingests every file in the folder and returns the aggregated report.
// Only a failure to list the folder itself aborts the run; per-file errors
// are recorded and processing continues. Cancelling the context leaves
// already-persisted files persisted and marks the report as partial.
func (s *Service) Run(ctx context.Context, folderID string) *models.IngestionReport {
	report := &models.IngestionReport{
		RunID:         uuid.NewString(),
		QualityScores: make(map[string]models.QualityReport),
	}

	listCtx, cancel := context.WithTimeout(ctx, s.cfg.DownloadTimeout)
	defer cancel()
	files, err := s.files.ListFiles(listCtx, folderID)
	if err != nil {
		report.Error = fmt.Sprintf("failed to list folder %s: %v", folderID, err)
		log.Printf("Ingestion run %s aborted: %s", report.RunID, report.Error)
		return report
	}

	report.TotalFiles = len(files)
	report.Details = make([]models.FileDetail, len(files))
	log.Printf("Ingestion run %s: %d files listed in folder %s", report.RunID, len(files), folderID)

	var (
		mu   sync.Mutex
		wg   sync.WaitGroup
		jobs = make(chan int)
	)

	workers := s.cfg.Workers
	if workers > len(files) {
		workers = len(files)
	}
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				detail, score := s.processFile(ctx, files[idx])

				mu.Lock()
				report.Details[idx] = detail
				switch detail.Status {
				case models.StatusSuccess:
					report.Successful++
				case models.StatusSkipped:
					report.Skipped++
				default:
					report.Failed++
				}
				if score != nil {
					report.QualityScores[files[idx].Name] = *score
				}
				mu.Unlock()
			}
		}()
	}

	for idx := range files {
		jobs <- idx
	}
	close(jobs)
	wg.Wait()

	if ctx.Err() != nil {
		report.Error = "run cancelled before completion"
	}

	if report.Successful > 0 && s.refresher != nil {
		refreshCtx, cancelRefresh := context.WithTimeout(context.Background(), s.cfg.UpsertTimeout)
		defer cancelRefresh()
		if err := s.refresher.RefreshFeatures(refreshCtx); err != nil {
			log.Printf("Ingestion run %s: feature refresh failed: %v", report.RunID, err)
			report.MLFeaturesRefreshed = false
		} else {
			report.MLFeaturesRefreshed = true
		}
	}

	log.Printf("Ingestion run %s complete: %d successful, %d failed, %d skipped",
		report.RunID, report.Successful, report.Failed, report.Skipped)
	return report
}

// processFile walks one file through the state machine. The quality report
// is returned once scoring has happened, regardless of the final status.
func (s *Service) processFile(ctx context.Context, fi FileInfo) (models.FileDetail, *models.QualityReport) {
	detail := models.FileDetail{Filename: fi.Name}

	if ctx.Err() != nil {
		detail.Status = models.StatusFailed
		detail.Message = "run cancelled before file was processed"
		return detail, nil
	}

	// LISTED -> DOWNLOADED
	downloadCtx, cancel := context.WithTimeout(ctx, s.cfg.DownloadTimeout)
	defer cancel()
	data, err := s.files.Download(downloadCtx, fi.ID)
	if err != nil {
		detail.Status = models.StatusFailed
		if errors.Is(err, context.DeadlineExceeded) {
			detail.Message = fmt.Sprintf("Download timed out after %s", s.cfg.DownloadTimeout)
		} else {
			detail.Message = fmt.Sprintf("Error downloading file: %v", err)
		}
		return detail, nil
	}

	// DOWNLOADED -> PARSED
	table, supported, err := Parse(fi.Name, fi.MediaType, data)
	if !supported {
		detail.Status = models.StatusSkipped
		detail.Message = fmt.Sprintf("Unsupported file type: %s", fi.MediaType)
		return detail, nil
	}
	if err != nil {
		detail.Status = models.StatusFailed
		detail.Message = fmt.Sprintf("Error parsing file: %v", err)
		return detail, nil
	}

	// PARSED -> TYPE_DETECTED
	sourceType := classify.Detect(fi.Name)
	if sourceType == models.SourceUnknown {
		detail.Status = models.StatusSkipped
		detail.Message = "Could not detect source type from filename"
		return detail, nil
	}

	// TYPE_DETECTED -> NORMALIZED (never fails)
	batch := normalize.Normalize(table, fi.Name, sourceType)
	detail.DuplicatesRemoved = batch.DuplicatesRemoved

	// NORMALIZED -> VALIDATED
	if ok, missing := classify.Validate(batch, sourceType); !ok {
		detail.Status = models.StatusFailed
		detail.Message = fmt.Sprintf("Missing required columns: %s", strings.Join(missing, ", "))
		return detail, nil
	}

	// VALIDATED -> SCORED (always succeeds; recorded whatever happens next)
	score := quality.Score(batch)
	detail.QualityScore = &score.FinalQualityScore

	// SCORED -> PERSISTED
	tableName := classify.TableFor(sourceType)
	records := make([]map[string]interface{}, len(batch.Records))
	for i, rec := range batch.Records {
		records[i] = rec.ToMap()
	}
	keys := classify.ConflictKeys(tableName, batch.Columns)

	upsertCtx, cancelUpsert := context.WithTimeout(ctx, s.cfg.UpsertTimeout)
	defer cancelUpsert()
	if err := s.store.Upsert(upsertCtx, tableName, records, keys); err != nil {
		detail.Status = models.StatusFailed
		if errors.Is(err, context.DeadlineExceeded) {
			detail.Message = fmt.Sprintf("Upsert into %s timed out after %s", tableName, s.cfg.UpsertTimeout)
		} else {
			detail.Message = fmt.Sprintf("Error upserting into %s: %v", tableName, err)
		}
		return detail, &score
	}

	detail.Status = models.StatusSuccess
	detail.Message = fmt.Sprintf("Upserted %d rows to %s", len(records), tableName)
	detail.RowsProcessed = len(records)
	return detail, &score
}
