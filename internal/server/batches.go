package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/joseph-ayodele/invoice-extractor/constants"
	"github.com/joseph-ayodele/invoice-extractor/internal/common"
	"github.com/joseph-ayodele/invoice-extractor/internal/entity"
	"github.com/joseph-ayodele/invoice-extractor/internal/report"
	"github.com/joseph-ayodele/invoice-extractor/internal/services/extraction"
)

const formField = "files"

type entryView struct {
	Index    int                      `json:"index"`
	Filename string                   `json:"filename"`
	Status   constants.JobStatus      `json:"status"`
	Invoice  *entity.ExtractedInvoice `json:"invoice,omitempty"`
	Failure  *entity.Failure          `json:"failure,omitempty"`
}

type batchView struct {
	BatchID   uuid.UUID               `json:"batch_id"`
	Documents int                     `json:"documents"`
	Succeeded int                     `json:"succeeded"`
	Failed    int                     `json:"failed"`
	Entries   []entryView             `json:"entries"`
	Failures  []report.FailureSummary `json:"failures"`
	Reports   map[string]string       `json:"reports,omitempty"`
}

func (s *Server) createBatch(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)
	if err := r.ParseMultipartForm(8 << 20); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorBody{Error: fmt.Sprintf("upload exceeds %d MB", s.maxUploadBytes>>20)})
			return
		}
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "expected multipart/form-data with field \"files\""})
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	headers := r.MultipartForm.File[formField]
	if len(headers) == 0 {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "no files uploaded"})
		return
	}

	docs, rejected, err := s.readUploads(r.Context(), headers)
	if err != nil {
		writeError(w, err)
		return
	}
	if len(rejected) > 0 {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "only .pdf files are accepted", Details: rejected})
		return
	}

	out, err := s.svc.Process(r.Context(), docs)
	if err != nil {
		s.logger.Error("batch.process.failed", "req_id", common.RequestIDFromContext(r.Context()), "error", err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toBatchView(out))
}

// readUploads keeps upload order. Only the file name is checked here: content that is not a
// readable PDF still goes to the pipeline and comes back as a parse failure for that file.
func (s *Server) readUploads(ctx context.Context, headers []*multipart.FileHeader) (docs []*entity.UploadedDocument, rejected []string, err error) {
	for _, fh := range headers {
		if constants.MapExtToFormat(filepath.Ext(fh.Filename)) == "" {
			rejected = append(rejected, fmt.Sprintf("%s: not a .pdf file", fh.Filename))
			continue
		}
		f, err := fh.Open()
		if err != nil {
			return nil, nil, fmt.Errorf("open %s: %w", fh.Filename, common.ErrInvalidInput)
		}
		content, err := io.ReadAll(f)
		_ = f.Close()
		if err != nil {
			return nil, nil, fmt.Errorf("read %s: %w", fh.Filename, common.ErrInvalidInput)
		}
		if mt := mimetype.Detect(content); !mt.Is(constants.PDFMimeType) {
			s.logger.Debug("upload.sniff.mismatch",
				"req_id", common.RequestIDFromContext(ctx), "filename", fh.Filename, "detected", mt.String(), "bytes", len(content))
		}
		docs = append(docs, &entity.UploadedDocument{Filename: fh.Filename, Content: content})
	}
	return docs, rejected, nil
}

func toBatchView(out *extraction.Outcome) batchView {
	ok, failed := out.Result.Counts()
	v := batchView{
		BatchID:   out.Result.ID,
		Documents: len(out.Result.Entries),
		Succeeded: ok,
		Failed:    failed,
		Entries:   make([]entryView, 0, len(out.Result.Entries)),
		Failures:  out.Assembly.Failures,
	}
	for _, e := range out.Result.Entries {
		ev := entryView{Index: e.Index, Filename: e.Filename, Invoice: e.Invoice, Failure: e.Failure, Status: constants.JobStatusSucceeded}
		if !e.Succeeded() {
			ev.Status = constants.JobStatusFailed
		}
		v.Entries = append(v.Entries, ev)
	}
	base := "/api/v1/batches/" + out.Result.ID.String()
	if out.Reports.PDF != "" || out.Reports.XLSX != "" {
		v.Reports = map[string]string{}
		if out.Reports.PDF != "" {
			v.Reports["pdf"] = base + "/report.pdf"
		}
		if out.Reports.XLSX != "" {
			v.Reports["xlsx"] = base + "/report.xlsx"
		}
	}
	return v
}

func (s *Server) listBatches(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if q := r.URL.Query().Get("limit"); q != "" {
		n, err := strconv.Atoi(q)
		if err != nil || n <= 0 {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: "limit must be a positive integer"})
			return
		}
		limit = n
	}
	list, err := s.svc.Batches(r.Context(), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"batches": list})
}

func (s *Server) getBatch(w http.ResponseWriter, r *http.Request) {
	id, ok := batchID(w, r)
	if !ok {
		return
	}
	detail, err := s.svc.Batch(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

func (s *Server) downloadReport(w http.ResponseWriter, r *http.Request) {
	id, ok := batchID(w, r)
	if !ok {
		return
	}
	rendered, err := s.svc.Report(r.Context(), id, extraction.Format(mux.Vars(r)["format"]))
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", rendered.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", rendered.Name))
	w.Header().Set("Content-Length", strconv.Itoa(len(rendered.Bytes)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(rendered.Bytes)
}

func batchID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "batch id must be a UUID"})
		return uuid.Nil, false
	}
	return id, true
}
