package chi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/aldr4GO/celebtwin/internal/domain"
	"github.com/aldr4GO/celebtwin/internal/domain/result"
	"github.com/aldr4GO/celebtwin/internal/logger"
	healthuc "github.com/aldr4GO/celebtwin/internal/usecase/health"
	matchuc "github.com/aldr4GO/celebtwin/internal/usecase/match"
)

const (
	// DefaultMaxUploadBytes bounds a request body when none is configured.
	DefaultMaxUploadBytes = 20 << 20
	// multipartMemory is held in memory before multipart parts spill to disk.
	multipartMemory = 32 << 20
)

// errUploadTooLarge marks a request body over the configured limit.
var errUploadTooLarge = errors.New("upload too large")

// errorHandler tries to handle a pipeline error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, op domain.Operation) bool

var (
	validationMessages = map[domain.Operation]string{
		domain.OpSearch:  "No image provided",
		domain.OpCompare: "Both images are required",
	}
	failureMessages = map[domain.Operation]string{
		domain.OpSearch:  "Search failed",
		domain.OpCompare: "Comparison failed",
	}
)

// Server serves the search and compare endpoints.
type Server struct {
	match         *matchuc.Service
	health        *healthuc.Service
	logger        *zap.Logger
	maxUpload     int64
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server. maxUpload <= 0 selects DefaultMaxUploadBytes.
func NewServer(match *matchuc.Service, health *healthuc.Service, maxUpload int64, l *zap.Logger) *Server {
	if maxUpload <= 0 {
		maxUpload = DefaultMaxUploadBytes
	}
	if l == nil {
		l = zap.NewNop()
	}
	s := &Server{
		match:     match,
		health:    health,
		logger:    l,
		maxUpload: maxUpload,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrValidation, http.StatusBadRequest, validationMessages),
		sentinelHandler(errUploadTooLarge, http.StatusRequestEntityTooLarge, validationMessages),
	}
	for _, kind := range []error{
		domain.ErrStaging,
		domain.ErrInvocationStart,
		domain.ErrInvocationTimeout,
		domain.ErrInvocationOverflow,
		domain.ErrEmptyOutput,
		domain.ErrNoPayloadFound,
		domain.ErrUnbalancedPayload,
		domain.ErrMalformedPayload,
		domain.ErrSchemaMismatch,
	} {
		s.errorHandlers = append(s.errorHandlers,
			sentinelHandler(kind, http.StatusInternalServerError, failureMessages))
	}
	return s
}

// Search handles POST /search.
func (s *Server) Search(w http.ResponseWriter, r *http.Request) {
	assets, err := s.readUploads(w, r, "image")
	if err != nil {
		s.handleError(w, r, err, domain.OpSearch)
		return
	}

	ctx, usage := domain.NewContextWithInvocationUsage(r.Context())
	res, err := s.match.Search(ctx, assets[0])
	setInvocationHeaders(w, usage)
	if err != nil {
		s.handleError(w, r, err, domain.OpSearch)
		return
	}

	writeJSON(w, http.StatusOK, searchToResponse(&res))
}

// Compare handles POST /compare.
func (s *Server) Compare(w http.ResponseWriter, r *http.Request) {
	assets, err := s.readUploads(w, r, "image1", "image2")
	if err != nil {
		s.handleError(w, r, err, domain.OpCompare)
		return
	}

	ctx, usage := domain.NewContextWithInvocationUsage(r.Context())
	res, err := s.match.Compare(ctx, assets[0], assets[1])
	setInvocationHeaders(w, usage)
	if err != nil {
		s.handleError(w, r, err, domain.OpCompare)
		return
	}

	writeJSON(w, http.StatusOK, compareToResponse(&res))
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, healthResponse{
		Status: string(report.Status),
		Checks: checks,
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

// readUploads reads the named multipart file fields in order. Every field
// must be present and non-empty.
func (s *Server) readUploads(w http.ResponseWriter, r *http.Request, fields ...string) ([]domain.UploadedAsset, error) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, fmt.Errorf("%w: limit is %d bytes", errUploadTooLarge, tooLarge.Limit)
		}
		return nil, domain.Detailf(domain.ErrValidation, "invalid multipart body: %v", err)
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	assets := make([]domain.UploadedAsset, 0, len(fields))
	for _, field := range fields {
		a, err := readPart(r, field)
		if err != nil {
			return nil, err
		}
		assets = append(assets, a)
	}
	return assets, nil
}

func readPart(r *http.Request, field string) (domain.UploadedAsset, error) {
	f, hdr, err := r.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		return domain.UploadedAsset{}, domain.Detailf(domain.ErrValidation, "missing field %q", field)
	}
	if err != nil {
		return domain.UploadedAsset{}, domain.Detailf(domain.ErrValidation, "read field %q: %v", field, err)
	}
	defer func(f multipart.File) { _ = f.Close() }(f)

	data, err := io.ReadAll(f)
	if err != nil {
		return domain.UploadedAsset{}, domain.Detailf(domain.ErrValidation, "read field %q: %v", field, err)
	}
	if len(data) == 0 {
		return domain.UploadedAsset{}, domain.Detailf(domain.ErrValidation, "field %q is empty", field)
	}
	return domain.UploadedAsset{Name: hdr.Filename, Data: data}, nil
}

func setInvocationHeaders(w http.ResponseWriter, usage *domain.InvocationUsage) {
	if usage != nil && usage.Invoked {
		w.Header().Set("X-Inference-Duration-Ms", strconv.FormatInt(usage.Duration.Milliseconds(), 10))
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message, details string) {
	writeJSON(w, status, errorResponse{
		Success: false,
		Error:   message,
		Details: details,
	})
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
// The caller-facing message depends on the operation; details carry the cause.
func sentinelHandler(sentinel error, status int, messages map[domain.Operation]string) errorHandler {
	return func(w http.ResponseWriter, err error, op domain.Operation) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, messages[op], domain.DetailsOf(err))
		return true
	}
}

func (s *Server) handleError(w http.ResponseWriter, r *http.Request, err error, op domain.Operation) {
	for _, h := range s.errorHandlers {
		if h(w, err, op) {
			return
		}
	}
	logger.FromContext(r.Context(), s.logger).Error("internal error",
		zap.String("operation", string(op)),
		zap.Error(err),
	)
	writeError(w, http.StatusInternalServerError, failureMessages[op], "internal error")
}

func searchToResponse(res *result.Search) any {
	if !res.Success() {
		return errorResponse{Success: false, Error: res.Error()}
	}
	items := make([]matchItem, 0, len(res.Matches()))
	for _, m := range res.Matches() {
		items = append(items, matchItem{ImagePath: m.ImagePath(), SimilarityScore: m.Score()})
	}
	return searchResponse{Success: true, Results: items}
}

func compareToResponse(res *result.Compare) any {
	if !res.Success() {
		return errorResponse{Success: false, Error: res.Error()}
	}
	return compareResponse{
		Success:         true,
		SimilarityScore: res.Score(),
		MatchPercentage: res.Percentage(),
	}
}
