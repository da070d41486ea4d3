package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/urfave/negroni"

	"github.com/joseph-ayodele/invoice-extractor/internal/common"
	"github.com/joseph-ayodele/invoice-extractor/internal/entity"
	"github.com/joseph-ayodele/invoice-extractor/internal/report"
	"github.com/joseph-ayodele/invoice-extractor/internal/services/extraction"
)

// BatchService is what the HTTP surface needs from the extraction service.
type BatchService interface {
	Process(ctx context.Context, docs []*entity.UploadedDocument) (*extraction.Outcome, error)
	Report(ctx context.Context, batchID uuid.UUID, format extraction.Format) (report.Rendered, error)
	Batch(ctx context.Context, id uuid.UUID) (*entity.BatchDetail, error)
	Batches(ctx context.Context, limit int) ([]entity.Batch, error)
}

type Server struct {
	svc            BatchService
	logger         *slog.Logger
	maxUploadBytes int64
}

func New(svc BatchService, maxUploadMB int, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if maxUploadMB <= 0 {
		maxUploadMB = 32
	}
	return &Server{svc: svc, logger: logger, maxUploadBytes: int64(maxUploadMB) << 20}
}

// Routes registers the API on a new router.
func (s *Server) Routes() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", s.health).Methods(http.MethodGet)

	api := r.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/batches", s.createBatch).Methods(http.MethodPost)
	api.HandleFunc("/batches", s.listBatches).Methods(http.MethodGet)
	api.HandleFunc("/batches/{id}", s.getBatch).Methods(http.MethodGet)
	api.HandleFunc("/batches/{id}/report.{format:pdf|xlsx}", s.downloadReport).Methods(http.MethodGet)
	return r
}

// Handler wraps the routes with recovery and request logging.
func (s *Server) Handler() http.Handler {
	n := negroni.New()
	rec := negroni.NewRecovery()
	rec.PrintStack = false
	n.Use(rec)
	n.Use(negroni.HandlerFunc(s.logRequests))
	n.UseHandler(s.Routes())
	return n
}

func (s *Server) logRequests(w http.ResponseWriter, r *http.Request, next http.HandlerFunc) {
	start := time.Now()
	reqID := r.Header.Get("X-Request-ID")
	if reqID == "" {
		reqID = uuid.NewString()
	}
	w.Header().Set("X-Request-ID", reqID)
	r = r.WithContext(common.WithRequestID(r.Context(), reqID))

	next(w, r)

	status := http.StatusOK
	if nw, ok := w.(negroni.ResponseWriter); ok && nw.Status() != 0 {
		status = nw.Status()
	}
	s.logger.Info("http.request",
		"req_id", reqID,
		"method", r.Method,
		"path", r.URL.Path,
		"status", status,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
}

// HTTPServer returns a server with the timeouts used in production.
func (s *Server) HTTPServer(addr string) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       time.Minute,
	}
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
