// Package server exposes the query engine over HTTP. Paths and JSON field
// names are the contract expected by the bundled web UI.
package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/mzscope/mzscope/internal/browse"
	"github.com/mzscope/mzscope/internal/index"
	"github.com/mzscope/mzscope/internal/query"
	"github.com/mzscope/mzscope/internal/runcache"
	apperrors "github.com/mzscope/mzscope/pkg/errors"
	"github.com/mzscope/mzscope/pkg/logger"
	"github.com/mzscope/mzscope/pkg/metrics"
)

// RunResolver resolves a file path to a loaded, indexed run.
type RunResolver interface {
	Resolve(ctx context.Context, path string) (*runcache.Entry, error)
}

// Handler serves the visualization API.
type Handler struct {
	runs       RunResolver
	engine     *query.Engine
	browseRoot string
	distDir    string
	demoPath   string
	metrics    *metrics.Metrics
	logger     *slog.Logger
}

// Options carries the handler's collaborators and paths. Metrics may be
// nil.
type Options struct {
	Runs       RunResolver
	Engine     *query.Engine
	BrowseRoot string
	DistDir    string
	DemoPath   string
	Metrics    *metrics.Metrics
}

func New(opts Options) *Handler {
	return &Handler{
		runs:       opts.Runs,
		engine:     opts.Engine,
		browseRoot: opts.BrowseRoot,
		distDir:    opts.DistDir,
		demoPath:   opts.DemoPath,
		metrics:    opts.Metrics,
		logger:     slog.Default().With("component", "api-handler"),
	}
}

type filepathRequest struct {
	Filepath string `json:"filepath"`
}

type chromatogramRequest struct {
	Filepath string  `json:"filepath"`
	MinMZ    float64 `json:"min_mz"`
	MaxMZ    float64 `json:"max_mz"`
}

type spectrumRequest struct {
	Filepath string  `json:"filepath"`
	RT       float64 `json:"rt"`
}

type ms2Request struct {
	Filepath    string  `json:"filepath"`
	PrecursorMZ float64 `json:"precursor_mz"`
	RT          float64 `json:"rt"`
}

// BrowseFiles lists a directory for the file picker.
func (h *Handler) BrowseFiles(w http.ResponseWriter, r *http.Request) {
	listing, err := browse.List(h.browseRoot, r.URL.Query().Get("path"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, listing)
}

// TIC returns the precomputed total-ion chromatogram of a run.
func (h *Handler) TIC(w http.ResponseWriter, r *http.Request) {
	var req filepathRequest
	if !h.decode(w, r, &req) || !h.requirePath(w, r, req.Filepath) {
		return
	}
	entry, err := h.runs.Resolve(r.Context(), req.Filepath)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	defer h.observe("tic", time.Now())
	series := h.engine.TIC(entry.Index)
	h.writeJSON(w, http.StatusOK, sanitizeSeries(series))
}

// ExtractChromatogram returns an extracted-ion chromatogram over an m/z
// range.
func (h *Handler) ExtractChromatogram(w http.ResponseWriter, r *http.Request) {
	var req chromatogramRequest
	if !h.decode(w, r, &req) || !h.requirePath(w, r, req.Filepath) {
		return
	}
	entry, err := h.runs.Resolve(r.Context(), req.Filepath)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	defer h.observe("extract_chromatogram", time.Now())
	series := h.engine.ExtractChromatogram(entry.Spectra, req.MinMZ, req.MaxMZ)
	h.writeJSON(w, http.StatusOK, sanitizeSeries(series))
}

// Spectrum returns the MS1 scan nearest a retention time, with MS2
// annotations.
func (h *Handler) Spectrum(w http.ResponseWriter, r *http.Request) {
	var req spectrumRequest
	if !h.decode(w, r, &req) || !h.requirePath(w, r, req.Filepath) {
		return
	}
	entry, err := h.runs.Resolve(r.Context(), req.Filepath)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	defer h.observe("spectrum", time.Now())
	result, err := h.engine.Spectrum(entry.Spectra, entry.Index, req.RT)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	result.MZs = orEmpty(result.MZs)
	result.Intensities = orEmpty(result.Intensities)
	result.AnnotatedMZs = orEmpty(result.AnnotatedMZs)
	h.writeJSON(w, http.StatusOK, result)
}

// MS2Spectrum returns the fragmentation scan matched by precursor m/z and
// retention time.
func (h *Handler) MS2Spectrum(w http.ResponseWriter, r *http.Request) {
	var req ms2Request
	if !h.decode(w, r, &req) || !h.requirePath(w, r, req.Filepath) {
		return
	}
	entry, err := h.runs.Resolve(r.Context(), req.Filepath)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	defer h.observe("ms2_spectrum", time.Now())
	result, err := h.engine.MS2Spectrum(entry.Spectra, entry.Index, req.PrecursorMZ, req.RT)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	result.MZs = orEmpty(result.MZs)
	result.Intensities = orEmpty(result.Intensities)
	h.writeJSON(w, http.StatusOK, result)
}

// ScanList returns the per-MS1-scan summary of a run.
func (h *Handler) ScanList(w http.ResponseWriter, r *http.Request) {
	var req filepathRequest
	if !h.decode(w, r, &req) || !h.requirePath(w, r, req.Filepath) {
		return
	}
	entry, err := h.runs.Resolve(r.Context(), req.Filepath)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	defer h.observe("scan_list", time.Now())
	list := h.engine.ScanList(entry.Index)
	if list == nil {
		list = []index.ScanInfo{}
	}
	h.writeJSON(w, http.StatusOK, list)
}

// DemoPath reports the bundled demonstration run, if one is configured and
// present on disk.
func (h *Handler) DemoPath(w http.ResponseWriter, r *http.Request) {
	if h.demoPath != "" {
		if _, err := os.Stat(h.demoPath); err == nil {
			h.writeJSON(w, http.StatusOK, map[string]string{"path": h.demoPath})
			return
		}
	}
	h.writeError(w, r, apperrors.New(apperrors.ErrRunNotFound, http.StatusNotFound, "demo file not found"))
}

// SPA serves the prebuilt web UI: a real file when the request names one,
// otherwise index.html so client-side routing works.
func (h *Handler) SPA(w http.ResponseWriter, r *http.Request) {
	requested := filepath.Join(h.distDir, filepath.Clean("/"+r.URL.Path))
	if info, err := os.Stat(requested); err == nil && !info.IsDir() {
		http.ServeFile(w, r, requested)
		return
	}

	indexPath := filepath.Join(h.distDir, "index.html")
	if _, err := os.Stat(indexPath); err == nil {
		http.ServeFile(w, r, indexPath)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{
		"message": "Frontend not built yet. Run the UI build and point frontend.distDir at its output.",
	})
}

// decode parses a JSON request body, reporting a 400 on malformed input.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		h.writeError(w, r, apperrors.Newf(apperrors.ErrInvalidInput, http.StatusBadRequest,
			"malformed request body: %v", err))
		return false
	}
	return true
}

func (h *Handler) requirePath(w http.ResponseWriter, r *http.Request, path string) bool {
	if path == "" {
		h.writeError(w, r, apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest,
			"filepath is required"))
		return false
	}
	return true
}

func (h *Handler) observe(operation string, start time.Time) {
	if h.metrics != nil {
		h.metrics.QueryDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := apperrors.HTTPStatusCode(err)
	log := logger.FromContext(r.Context())
	if status >= http.StatusInternalServerError {
		log.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	} else {
		log.Debug("request rejected", "method", r.Method, "path", r.URL.Path, "status", status, "error", err)
	}
	h.writeJSON(w, status, map[string]string{"error": err.Error()})
}

// sanitizeSeries replaces nil slices so clients always receive arrays.
func sanitizeSeries(s query.Series) query.Series {
	s.RetentionTimes = orEmpty(s.RetentionTimes)
	s.Intensities = orEmpty(s.Intensities)
	return s
}

func orEmpty(s []float64) []float64 {
	if s == nil {
		return []float64{}
	}
	return s
}
