package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/hazyhaar/docudata/pkg/catalog"
	"github.com/hazyhaar/docudata/pkg/compliance"
	"github.com/hazyhaar/docudata/pkg/export"
	"github.com/hazyhaar/docudata/pkg/kit"
	"github.com/hazyhaar/docudata/pkg/library"
	"github.com/hazyhaar/docudata/pkg/session"
	"github.com/hazyhaar/docudata/pkg/units"
)

// MaxUpload caps dataset uploads.
const MaxUpload = 32 << 20

// Services are the collaborators behind the API. Library may be nil.
type Services struct {
	Sessions *session.Store
	Library  *library.Registry
	Logger   *slog.Logger
}

// NewRouter returns an http.Handler with all docudata API routes.
func NewRouter(svc Services) http.Handler {
	if svc.Logger == nil {
		svc.Logger = slog.Default()
	}
	mux := http.NewServeMux()
	h := &handler{endpoints: newEndpoints(svc), svc: svc}

	mux.HandleFunc("POST /v1/sessions", h.handleCreateSession)
	mux.HandleFunc("DELETE /v1/sessions/{id}", h.handleDeleteSession)
	mux.HandleFunc("PUT /v1/sessions/{id}/dataset", h.handleLoad)
	mux.HandleFunc("GET /v1/sessions/{id}/search", h.handleSearch)
	mux.HandleFunc("POST /v1/sessions/{id}/compliance", h.handleCompliance)
	mux.HandleFunc("GET /v1/sessions/{id}/stats", h.handleStats)
	mux.HandleFunc("GET /v1/datasets", h.handleListDatasets)
	mux.HandleFunc("GET /v1/jurisdictions", h.handleListJurisdictions)
	mux.HandleFunc("GET /v1/templates", h.handleTemplate)
	mux.HandleFunc("GET /v1/templates/{type}", h.handleTemplate)
	mux.HandleFunc("GET /v1/health", h.handleHealth)

	return cors(requestID(mux))
}

type handler struct {
	endpoints
	svc Services
}

// --- sessions ---

func (h *handler) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	resp, err := h.createSession(r.Context(), nil)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (h *handler) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	resp, err := h.deleteSession(kit.WithSessionID(r.Context(), id), &sessionReq{SessionID: id})
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// --- dataset ---

func (h *handler) handleLoad(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	q := r.URL.Query()
	req := &loadReq{
		SessionID:    id,
		Dataset:      q.Get("dataset"),
		Name:         q.Get("name"),
		Encoding:     q.Get("encoding"),
		Jurisdiction: q.Get("jurisdiction"),
	}
	if req.Dataset == "" {
		r.Body = http.MaxBytesReader(w, r.Body, MaxUpload)
		data, err := io.ReadAll(r.Body)
		if err != nil {
			writeError(w, http.StatusRequestEntityTooLarge, "dataset too large")
			return
		}
		req.Data = data
	}

	resp, err := h.load(kit.WithSessionID(r.Context(), id), req)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// --- search ---

func (h *handler) handleSearch(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	q := r.URL.Query()
	format, err := export.ParseFormat(q.Get("format"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	limit := 0
	if v := q.Get("limit"); v != "" {
		if limit, err = strconv.Atoi(v); err != nil || limit < 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
	}

	resp, err := h.search(kit.WithSessionID(r.Context(), id), &searchReq{
		SessionID: id,
		Query:     q.Get("q"),
		Opts: session.Options{
			Jurisdiction: q.Get("jurisdiction"),
			System:       units.ParseSystem(q.Get("system")),
			Limit:        limit,
		},
	})
	if err != nil {
		writeErr(w, err)
		return
	}
	if format == export.JSON {
		writeJSON(w, http.StatusOK, resp)
		return
	}
	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", `attachment; filename="results.`+string(format)+`"`)
	if err := export.Write(w, format, resp.(session.Response).Results); err != nil {
		h.svc.Logger.Error("export failed", "format", format, "error", err)
	}
}

// --- compliance ---

func (h *handler) handleCompliance(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	q := r.URL.Query()
	resp, err := h.compliance(kit.WithSessionID(r.Context(), id), &complianceReq{
		SessionID: id,
		Against:   q.Get("against"),
		Opts: compliance.Options{
			Jurisdiction: q.Get("jurisdiction"),
			System:       units.ParseSystem(q.Get("system")),
		},
	})
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// --- stats ---

func (h *handler) handleStats(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	resp, err := h.stats(kit.WithSessionID(r.Context(), id), &sessionReq{SessionID: id})
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// --- reference data ---

func (h *handler) handleListDatasets(w http.ResponseWriter, r *http.Request) {
	resp, err := h.listDatasets(r.Context(), nil)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *handler) handleListJurisdictions(w http.ResponseWriter, r *http.Request) {
	resp, err := h.listJurisdictions(r.Context(), nil)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *handler) handleTemplate(w http.ResponseWriter, r *http.Request) {
	resp, err := h.template(r.Context(), &templateReq{Type: r.PathValue("type")})
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// --- health ---

type healthResponse struct {
	Status   string `json:"status"`
	Sessions int    `json:"sessions"`
	Datasets int    `json:"datasets"`
}

func (h *handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok", Sessions: h.svc.Sessions.Len()}
	if h.svc.Library != nil {
		resp.Datasets = h.svc.Library.Count()
	}
	writeJSON(w, http.StatusOK, resp)
}

// --- helpers ---

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, session.ErrNotFound), errors.Is(err, library.ErrNotFound), errors.Is(err, errUnknownTemplate):
		return http.StatusNotFound
	case errors.Is(err, catalog.ErrInvalidDocument), errors.Is(err, catalog.ErrUnrecognizedShape), errors.Is(err, errNoPayload):
		return http.StatusBadRequest
	case errors.Is(err, session.ErrNoLibrary):
		return http.StatusServiceUnavailable
	}
	return http.StatusUnprocessableEntity
}

func writeErr(w http.ResponseWriter, err error) {
	writeError(w, statusFor(err), err.Error())
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

// requestID propagates X-Request-ID, generating one when absent.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(kit.WithRequestID(kit.WithTransport(r.Context(), "http"), id)))
	})
}

// cors is a simple CORS middleware for browser-based clients.
func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-Request-ID")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
