package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/invoice-extractor/constants"
	"github.com/joseph-ayodele/invoice-extractor/internal/common"
	"github.com/joseph-ayodele/invoice-extractor/internal/entity"
	"github.com/joseph-ayodele/invoice-extractor/internal/utils"
)

// ReportRefs are the storage keys of the reports rendered for a batch.
type ReportRefs struct {
	PDF  string
	XLSX string
}

type BatchRepository interface {
	SaveBatch(ctx context.Context, res entity.BatchResult, reports ReportRefs) (*entity.Batch, error)
	GetBatch(ctx context.Context, id uuid.UUID) (*entity.BatchDetail, error)
	ListBatches(ctx context.Context, limit int) ([]entity.Batch, error)
}

type batchRepository struct {
	db     *DB
	logger *slog.Logger
	now    func() time.Time
}

func NewBatchRepository(db *DB, logger *slog.Logger) BatchRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &batchRepository{db: db, logger: logger, now: func() time.Time { return time.Now().UTC() }}
}

// SaveBatch stores the batch summary and one extract_job row per entry in a single transaction.
func (r *batchRepository) SaveBatch(ctx context.Context, res entity.BatchResult, reports ReportRefs) (*entity.Batch, error) {
	ok, failed := res.Counts()
	b := &entity.Batch{
		ID:            res.ID,
		CreatedAt:     r.now(),
		DocumentCount: len(res.Entries),
		SuccessCount:  ok,
		FailureCount:  failed,
		ReportPDF:     utils.StrPtr(reports.PDF),
		ReportXLSX:    utils.StrPtr(reports.XLSX),
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, wrapDB("begin", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, r.db.Rebind(`INSERT INTO batch
		(id, created_at, document_count, success_count, failure_count, report_pdf, report_xlsx)
		VALUES (?, ?, ?, ?, ?, ?, ?)`),
		b.ID.String(), b.CreatedAt, b.DocumentCount, b.SuccessCount, b.FailureCount, b.ReportPDF, b.ReportXLSX)
	if err != nil {
		r.logger.Error("batch insert failed", "batch_id", b.ID, "error", err)
		return nil, wrapDB("insert batch", err)
	}

	insertJob := r.db.Rebind(`INSERT INTO extract_job
		(id, batch_id, seq, filename, status, failure_kind, failure_cause, error_message, extracted_json, model_name, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	for _, e := range res.Entries {
		job, err := jobFromEntry(b.ID, e, b.CreatedAt)
		if err != nil {
			return nil, err
		}
		var extracted any
		if len(job.ExtractedJSON) > 0 {
			extracted = string(job.ExtractedJSON)
		}
		_, err = tx.ExecContext(ctx, insertJob,
			job.ID.String(), job.BatchID.String(), job.Position, job.Filename, job.Status,
			job.FailureKind, job.FailureCause, job.ErrorMessage, extracted, job.ModelName, job.CreatedAt)
		if err != nil {
			r.logger.Error("extract_job insert failed", "batch_id", b.ID, "position", e.Index, "error", err)
			return nil, wrapDB("insert extract_job", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, wrapDB("commit", err)
	}
	r.logger.Info("batch saved", "batch_id", b.ID, "documents", b.DocumentCount, "succeeded", ok, "failed", failed)
	return b, nil
}

func jobFromEntry(batchID uuid.UUID, e entity.Entry, at time.Time) (entity.ExtractJob, error) {
	job := entity.ExtractJob{
		ID:        uuid.New(),
		BatchID:   batchID,
		Position:  e.Index,
		Filename:  e.Filename,
		Status:    string(constants.JobStatusSucceeded),
		ModelName: utils.StrPtr(e.Model),
		CreatedAt: at,
	}
	if e.Invoice != nil {
		raw, err := json.Marshal(e.Invoice)
		if err != nil {
			return job, fmt.Errorf("encode invoice %s: %w", e.Filename, err)
		}
		job.ExtractedJSON = raw
	}
	if f := e.Failure; f != nil {
		job.Status = string(constants.JobStatusFailed)
		job.FailureKind = utils.StrPtr(string(f.Kind))
		job.FailureCause = utils.StrPtr(f.Cause)
		job.ErrorMessage = utils.StrPtr(f.Message)
	}
	return job, nil
}

func (r *batchRepository) GetBatch(ctx context.Context, id uuid.UUID) (*entity.BatchDetail, error) {
	var b entity.Batch
	err := r.db.GetContext(ctx, &b, r.db.Rebind(selectBatch+` WHERE id = ?`), id.String())
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("batch %s: %w", id, common.ErrNotFound)
	}
	if err != nil {
		return nil, wrapDB("get batch", err)
	}

	rows, err := r.db.QueryContext(ctx, r.db.Rebind(`SELECT id, batch_id, seq, filename, status, failure_kind, failure_cause,
		error_message, extracted_json, model_name, created_at
		FROM extract_job WHERE batch_id = ? ORDER BY seq`), id.String())
	if err != nil {
		return nil, wrapDB("list extract_job", err)
	}
	defer rows.Close()

	detail := &entity.BatchDetail{Batch: b, Jobs: make([]entity.ExtractJob, 0, b.DocumentCount)}
	for rows.Next() {
		var (
			j         entity.ExtractJob
			extracted sql.NullString
		)
		if err := rows.Scan(&j.ID, &j.BatchID, &j.Position, &j.Filename, &j.Status, &j.FailureKind,
			&j.FailureCause, &j.ErrorMessage, &extracted, &j.ModelName, &j.CreatedAt); err != nil {
			return nil, wrapDB("scan extract_job", err)
		}
		if extracted.Valid && extracted.String != "" {
			j.ExtractedJSON = json.RawMessage(extracted.String)
		}
		detail.Jobs = append(detail.Jobs, j)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapDB("list extract_job", err)
	}
	return detail, nil
}

// ListBatches returns the newest batches first.
func (r *batchRepository) ListBatches(ctx context.Context, limit int) ([]entity.Batch, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	out := []entity.Batch{}
	err := r.db.SelectContext(ctx, &out, r.db.Rebind(selectBatch+` ORDER BY created_at DESC LIMIT ?`), limit)
	if err != nil {
		r.logger.Error("failed to list batches", "error", err)
		return nil, wrapDB("list batches", err)
	}
	return out, nil
}

const selectBatch = `SELECT id, created_at, document_count, success_count, failure_count, report_pdf, report_xlsx FROM batch`
