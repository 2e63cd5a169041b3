package api

import (
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"

	"tdadiffusion/app"
	"tdadiffusion/domain/core"
	"tdadiffusion/domain/diffusion"
	"tdadiffusion/internal"
	engine "tdadiffusion/internal/diffusion"
	apperrors "tdadiffusion/internal/errors"
	"tdadiffusion/ports"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const maxBodyBytes = 10 << 20

// Server is the HTTP JSON API over an AnalysisService
type Server struct {
	router   *chi.Mux
	service  *app.AnalysisService
	defaults Defaults
	validate *validator.Validate
	logger   *internal.Logger
}

// NewServer creates the API server and registers its routes
func NewServer(service *app.AnalysisService, defaults Defaults, logger *internal.Logger) *Server {
	s := &Server{
		router:   chi.NewRouter(),
		service:  service,
		defaults: defaults,
		validate: validator.New(),
		logger:   logger.With("api"),
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// setupMiddleware configures HTTP middleware
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.Recoverer)
	s.router.Use(s.instrument)
}

// setupRoutes configures the API routes
func (s *Server) setupRoutes() {
	s.router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	s.router.Handle("/metrics", promhttp.Handler())

	s.router.Route("/api/v1", func(rt chi.Router) {
		rt.Post("/analyses", s.wrap(s.handleAnalyze))
		rt.Get("/analyses", s.wrap(s.handleList))
		rt.Get("/analyses/{id}", s.wrap(s.handleGet))
		rt.Get("/analyses/{id}/report", s.wrap(s.handleReport))
		rt.Get("/literature/{material}", s.wrap(s.handleLiterature))
	})
}

type handlerFunc func(http.ResponseWriter, *http.Request) error

// wrap turns a returned error into a JSON error body with the status of its
// code
func (s *Server) wrap(h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		if err := h(w, req); err != nil {
			appErr := apperrors.FromDomain(err)
			status := apperrors.HTTPStatus(appErr.Code)
			if status >= http.StatusInternalServerError {
				s.logger.Error("%s %s: %v", req.Method, req.URL.Path, err)
			} else {
				s.logger.Debug("%s %s: %v", req.Method, req.URL.Path, err)
			}
			writeJSON(w, status, ErrorResponse{Code: appErr.Code, Message: appErr.Message})
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// POST /api/v1/analyses
func (s *Server) handleAnalyze(w http.ResponseWriter, req *http.Request) error {
	var body AnalyzeRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, req.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&body); err != nil {
		return apperrors.InvalidInput(fmt.Sprintf("invalid JSON body: %v", err))
	}
	if err := s.validate.Struct(body); err != nil {
		return apperrors.InvalidInput(err.Error())
	}

	in, all, err := body.toInput(s.defaults)
	if err != nil {
		return err
	}

	if all {
		outcomes, err := s.service.AnalyzeAll(req.Context(), in)
		if err != nil {
			return err
		}
		resp := MultiModeResponse{Analyses: make([]ModeResponse, 0, len(outcomes))}
		for _, o := range outcomes {
			entry := ModeResponse{Mode: o.Mode}
			if o.Err != nil {
				appErr := apperrors.FromDomain(o.Err)
				analysisFailures.WithLabelValues(appErr.Code).Inc()
				entry.Error = &ErrorResponse{Code: appErr.Code, Message: appErr.Message}
			} else {
				countAnalysis(o.Record)
				entry.Analysis = newAnalysisResponse(o.Record)
			}
			resp.Analyses = append(resp.Analyses, entry)
		}
		writeJSON(w, http.StatusOK, resp)
		return nil
	}

	rec, err := s.service.Analyze(req.Context(), in)
	if err != nil {
		analysisFailures.WithLabelValues(apperrors.FromDomain(err).Code).Inc()
		return err
	}
	countAnalysis(rec)
	s.logger.Info("analysis %s stored (%s, grade %s)", rec.ID, rec.Result.Mode(), rec.Result.Grade())
	writeJSON(w, http.StatusCreated, newAnalysisResponse(rec))
	return nil
}

func countAnalysis(rec *ports.AnalysisRecord) {
	analysesTotal.WithLabelValues(string(rec.Result.Mode()), string(rec.Result.Grade())).Inc()
}

// GET /api/v1/analyses?mode=&limit=&offset=
func (s *Server) handleList(w http.ResponseWriter, req *http.Request) error {
	q := req.URL.Query()
	var filters ports.AnalysisFilters
	if m := q.Get("mode"); m != "" {
		mode, err := diffusion.ParseMode(m)
		if err != nil {
			return err
		}
		filters.Mode = &mode
	}
	if h := q.Get("input_hash"); h != "" {
		hash, err := core.ParseInputHash(h)
		if err != nil {
			return apperrors.InvalidInput(err.Error())
		}
		filters.InputHash = &hash
	}
	var err error
	if filters.Limit, err = intParam(q.Get("limit")); err != nil {
		return err
	}
	if filters.Offset, err = intParam(q.Get("offset")); err != nil {
		return err
	}

	recs, err := s.service.List(req.Context(), filters)
	if err != nil {
		return err
	}
	resp := ListResponse{Analyses: make([]*AnalysisResponse, 0, len(recs)), Count: len(recs)}
	for _, rec := range recs {
		resp.Analyses = append(resp.Analyses, newAnalysisResponse(rec))
	}
	writeJSON(w, http.StatusOK, resp)
	return nil
}

func intParam(v string) (int, error) {
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, apperrors.InvalidInput(fmt.Sprintf("expected a non-negative integer, got %q", v))
	}
	return n, nil
}

func analysisIDParam(req *http.Request) (core.AnalysisID, error) {
	id, err := core.ParseAnalysisID(chi.URLParam(req, "id"))
	if err != nil {
		return "", apperrors.InvalidInput(err.Error())
	}
	return id, nil
}

// GET /api/v1/analyses/{id}
func (s *Server) handleGet(w http.ResponseWriter, req *http.Request) error {
	id, err := analysisIDParam(req)
	if err != nil {
		return err
	}
	rec, err := s.service.Get(req.Context(), id)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, newAnalysisResponse(rec))
	return nil
}

// GET /api/v1/analyses/{id}/report
func (s *Server) handleReport(w http.ResponseWriter, req *http.Request) error {
	id, err := analysisIDParam(req)
	if err != nil {
		return err
	}
	page, err := s.service.Report(req.Context(), id)
	if err != nil {
		return err
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, err = w.Write(page)
	return err
}

// GET /api/v1/literature/{material}?temperature_c=
func (s *Server) handleLiterature(w http.ResponseWriter, req *http.Request) error {
	material := strings.TrimSpace(chi.URLParam(req, "material"))
	temperature := diffusion.DefaultTemperatureC
	if v := req.URL.Query().Get("temperature_c"); v != "" {
		t, err := strconv.ParseFloat(v, 64)
		if err != nil || math.IsNaN(t) || math.IsInf(t, 0) || t <= -273.15 {
			return apperrors.InvalidInput(fmt.Sprintf("invalid temperature_c %q", v))
		}
		temperature = t
	}

	ref := engine.LiteratureReference(material, temperature)
	resp := LiteratureResponse{Reference: ref}
	if cmp := engine.CompareWithLiterature(ref.BaseD25C, ref.Material); cmp.Known {
		resp.Range = &cmp
	}
	writeJSON(w, http.StatusOK, resp)
	return nil
}
