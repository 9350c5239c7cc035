package api

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/openwelfare/sahayak/internal/domain"
	"github.com/openwelfare/sahayak/internal/extraction"
	"github.com/openwelfare/sahayak/internal/history"
	"github.com/openwelfare/sahayak/internal/registry"
	"github.com/openwelfare/sahayak/internal/rules"
)

// checkCacheTTL bounds how long an identical profile check is served from
// cache. Short, so scheme reloads become visible quickly.
const checkCacheTTL = 5 * time.Minute

// Handler holds dependencies for API handlers.
type Handler struct {
	repo     domain.Repository
	cache    domain.Cache
	bus      domain.EventBus
	registry *registry.Registry
	checker  *rules.Checker
	pipeline *extraction.Pipeline
	history  *history.Service
	version  string
}

// NewHandler creates a new API handler.
func NewHandler(repo domain.Repository, cache domain.Cache, bus domain.EventBus, reg *registry.Registry, checker *rules.Checker, pipeline *extraction.Pipeline, hist *history.Service, version string) *Handler {
	return &Handler{
		repo:     repo,
		cache:    cache,
		bus:      bus,
		registry: reg,
		checker:  checker,
		pipeline: pipeline,
		history:  hist,
		version:  version,
	}
}

// CheckRequest is the request body for POST /check.
type CheckRequest struct {
	UserID  string         `json:"user_id,omitempty"`
	Profile map[string]any `json:"profile"`
	// SchemeIDs restricts the check to the listed schemes (empty = all).
	SchemeIDs []string `json:"scheme_ids,omitempty"`
}

// Check handles POST /check requests: evaluate a profile against every
// ready scheme and report eligibility, near misses, and broken schemes.
func (h *Handler) Check(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)

	var req CheckRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if len(req.Profile) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "profile is required",
		})
		return
	}

	// Identical profile + scheme filter within the TTL: serve from cache.
	hash := profileHash(req.Profile, req.SchemeIDs)
	if h.cache != nil {
		if cached, err := h.cache.GetCheck(ctx, tenantID, hash); err == nil && cached != nil {
			w.Header().Set("X-Cache", "hit")
			writeJSON(w, http.StatusOK, cached)
			return
		}
	}

	docs := h.selectDocs(tenantID, req.SchemeIDs)
	resp := h.checker.Check(ctx, domain.Profile(req.Profile), docs)
	resp.UserID = req.UserID

	if h.cache != nil {
		if err := h.cache.SetCheck(ctx, tenantID, hash, resp, checkCacheTTL); err != nil {
			slog.Error("failed to cache check response", "error", err)
		}
	}

	// Persist the check for the history endpoint.
	if h.history != nil {
		payload, err := json.Marshal(resp)
		if err == nil {
			rec := &domain.CheckRecord{
				ID:            resp.CheckID,
				TenantID:      tenantID,
				UserID:        req.UserID,
				Profile:       domain.Profile(req.Profile),
				EligibleCount: len(resp.Eligible),
				NearMissCount: len(resp.NearMisses),
				Response:      payload,
				CreatedAt:     resp.Timestamp,
			}
			if err := h.history.RecordCheck(ctx, tenantID, rec); err != nil {
				slog.Error("failed to save check record", "check_id", resp.CheckID, "error", err)
			}
		}
	}

	// Fan out to async consumers.
	if h.bus != nil {
		payload, _ := json.Marshal(resp)
		if err := h.bus.Publish(ctx, tenantID, domain.TopicCheckCompleted, payload); err != nil {
			slog.Error("failed to publish check result", "check_id", resp.CheckID, "error", err)
		}
		if len(resp.NearMisses) > 0 {
			nmPayload, _ := json.Marshal(map[string]any{
				"checkId":    resp.CheckID,
				"userId":     req.UserID,
				"nearMisses": resp.NearMisses,
			})
			if err := h.bus.Publish(ctx, tenantID, domain.TopicNearMiss, nmPayload); err != nil {
				slog.Error("failed to publish near misses", "check_id", resp.CheckID, "error", err)
			}
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// selectDocs returns the tenant's registered documents, optionally filtered
// to an explicit scheme list. Unknown scheme ids are skipped silently.
func (h *Handler) selectDocs(tenantID string, schemeIDs []string) []*domain.SchemeDoc {
	if len(schemeIDs) == 0 {
		return h.registry.List(tenantID)
	}
	docs := make([]*domain.SchemeDoc, 0, len(schemeIDs))
	for _, id := range schemeIDs {
		doc, err := h.registry.Get(tenantID, id)
		if err != nil {
			continue
		}
		docs = append(docs, doc)
	}
	return docs
}

// profileHash builds a stable cache key for a check request. Map keys are
// sorted by encoding/json, so equal profiles hash equally.
func profileHash(profile map[string]any, schemeIDs []string) string {
	data, _ := json.Marshal(profile)
	sum := sha256.New()
	sum.Write(data)
	if len(schemeIDs) > 0 {
		sum.Write([]byte(strings.Join(schemeIDs, ",")))
	}
	return hex.EncodeToString(sum.Sum(nil))
}

// GetEvaluation retrieves a past check by ID.
func (h *Handler) GetEvaluation(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	checkID := chi.URLParam(r, "id")

	if checkID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "check id is required",
		})
		return
	}

	if h.history == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "history not available",
		})
		return
	}

	rec, err := h.history.GetCheck(ctx, tenantID, checkID)
	if err != nil {
		slog.Error("failed to get check", "id", checkID, "error", err)
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "check not found",
		})
		return
	}

	var resp domain.CheckResponse
	if err := json.Unmarshal(rec.Response, &resp); err != nil {
		slog.Error("failed to decode stored check response", "id", checkID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "stored check response is corrupt",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"check":    rec,
		"response": resp,
	})
}

// UserHistory lists a user's past checks, newest first.
// The window defaults to 30 days and can be narrowed with ?window_secs=N.
func (h *Handler) UserHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	userID := chi.URLParam(r, "id")

	if userID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "user id is required",
		})
		return
	}

	if h.history == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "history not available",
		})
		return
	}

	windowSecs := 30 * 24 * 3600
	if v := r.URL.Query().Get("window_secs"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": "window_secs must be a positive integer",
			})
			return
		}
		windowSecs = n
	}

	recs, err := h.history.GetUserHistory(ctx, tenantID, userID, windowSecs)
	if err != nil {
		slog.Error("failed to get user history", "user_id", userID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to load check history",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"user_id": userID,
		"checks":  recs,
		"count":   len(recs),
	})
}

// SchemeSummary is the list projection of a registered scheme.
type SchemeSummary struct {
	SchemeID   string `json:"scheme_id"`
	SchemeName string `json:"scheme_name"`
	Status     string `json:"status"`
	Error      string `json:"error,omitempty"`
	Conditions int    `json:"conditions"`
}

// ListSchemes returns all registered schemes for the tenant.
func (h *Handler) ListSchemes(w http.ResponseWriter, r *http.Request) {
	tenantID := GetTenantID(r.Context())

	docs := h.registry.List(tenantID)
	summaries := make([]SchemeSummary, 0, len(docs))
	for _, doc := range docs {
		summaries = append(summaries, SchemeSummary{
			SchemeID:   doc.SchemeID,
			SchemeName: doc.Rule.SchemeName,
			Status:     doc.Status,
			Error:      doc.Error,
			Conditions: doc.Rule.Eligibility.ConditionCount(),
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"schemes": summaries,
		"count":   len(summaries),
	})
}

// GetScheme retrieves the full stored document for a scheme.
func (h *Handler) GetScheme(w http.ResponseWriter, r *http.Request) {
	tenantID := GetTenantID(r.Context())
	schemeID := chi.URLParam(r, "id")

	doc, err := h.registry.Get(tenantID, schemeID)
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "scheme not found",
		})
		return
	}

	writeJSON(w, http.StatusOK, doc)
}

// GetSchemeRules returns just the rules document for a scheme.
func (h *Handler) GetSchemeRules(w http.ResponseWriter, r *http.Request) {
	tenantID := GetTenantID(r.Context())
	schemeID := chi.URLParam(r, "id")

	doc, err := h.registry.Get(tenantID, schemeID)
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "scheme not found",
		})
		return
	}
	if !doc.Ready() {
		writeJSON(w, http.StatusConflict, map[string]string{
			"error": "scheme rules are in error status: " + doc.Error,
		})
		return
	}

	writeJSON(w, http.StatusOK, doc.Rule)
}

// GetSchemeRequirements returns what an applicant needs for a scheme.
func (h *Handler) GetSchemeRequirements(w http.ResponseWriter, r *http.Request) {
	tenantID := GetTenantID(r.Context())
	schemeID := chi.URLParam(r, "id")

	doc, err := h.registry.Get(tenantID, schemeID)
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "scheme not found",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"scheme_id":          doc.SchemeID,
		"scheme_name":        doc.Rule.SchemeName,
		"required_inputs":    doc.Rule.RequiredInputs,
		"required_documents": doc.Rule.RequiredDocuments,
		"benefit_outline":    doc.Rule.BenefitOutline,
		"next_steps":         doc.Rule.NextSteps,
	})
}

// IngestRequest is the request body for POST /schemes. Exactly one of
// Document (a ready-made rules document) or Text (raw scheme text for the
// extraction pipeline) must be provided.
type IngestRequest struct {
	SchemeID string         `json:"scheme_id"`
	Document map[string]any `json:"document,omitempty"`
	Text     string         `json:"text,omitempty"`
}

// IngestScheme handles POST /schemes: validate (or extract) a rules
// document, register it, and persist it.
func (h *Handler) IngestScheme(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)

	var req IngestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if (req.Document == nil) == (req.Text == "") {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "exactly one of document or text is required",
		})
		return
	}

	var doc *domain.SchemeDoc
	if req.Document != nil {
		// Direct ingest: invalid documents are hard-rejected.
		var err error
		doc, err = buildDocument(req.Document)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": err.Error(),
			})
			return
		}
	} else {
		if h.pipeline == nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"error": "extraction pipeline not available",
			})
			return
		}
		var err error
		doc, err = h.pipeline.Run(ctx, req.Text, req.SchemeID)
		if err != nil {
			slog.Error("extraction failed", "scheme_id", req.SchemeID, "error", err)
			writeJSON(w, http.StatusUnprocessableEntity, map[string]string{
				"error": "extraction failed: " + err.Error(),
			})
			return
		}
	}

	if err := h.registry.Register(tenantID, doc); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": err.Error(),
		})
		return
	}

	if h.repo != nil {
		if err := h.repo.SaveSchemeDoc(ctx, tenantID, doc); err != nil {
			slog.Error("failed to save scheme", "scheme_id", doc.SchemeID, "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{
				"error": "failed to save scheme",
			})
			return
		}
	}

	if h.bus != nil {
		topic := domain.TopicSchemeIngested
		if !doc.Ready() {
			topic = domain.TopicSchemeError
		}
		payload, _ := json.Marshal(doc)
		if err := h.bus.Publish(ctx, tenantID, topic, payload); err != nil {
			slog.Error("failed to publish scheme event", "scheme_id", doc.SchemeID, "error", err)
		}
	}

	slog.Info("scheme ingested",
		"scheme_id", doc.SchemeID,
		"status", doc.Status,
		"extractor", doc.Extractor,
	)
	writeJSON(w, http.StatusCreated, doc)
}

// buildDocument validates a raw rules document and wraps it for storage.
func buildDocument(raw map[string]any) (*domain.SchemeDoc, error) {
	if err := extraction.CheckDocumentShape(raw); err != nil {
		return nil, err
	}
	if err := rules.ValidateDocument(raw); err != nil {
		return nil, err
	}

	data, err := json.Marshal(raw)
	if err != nil {
		return nil, err
	}
	var rule domain.SchemeRule
	if err := json.Unmarshal(data, &rule); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	return &domain.SchemeDoc{
		SchemeID:   rule.SchemeID,
		Rule:       rule,
		Status:     domain.StatusReady,
		Extractor:  "manual",
		IngestedAt: now,
		UpdatedAt:  now,
	}, nil
}

// DeleteScheme removes a scheme from the registry and the repository.
func (h *Handler) DeleteScheme(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	schemeID := chi.URLParam(r, "id")

	if err := h.registry.Remove(tenantID, schemeID); err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "scheme not found",
		})
		return
	}

	if h.repo != nil {
		if err := h.repo.DeleteSchemeDoc(ctx, tenantID, schemeID); err != nil {
			slog.Error("failed to delete scheme", "scheme_id", schemeID, "error", err)
		}
	}

	slog.Info("scheme deleted", "scheme_id", schemeID)
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "scheme deleted",
	})
}

// ReloadSchemes reloads all scheme documents from the repository into the
// registry. This enables hot-reloading without server restart.
func (h *Handler) ReloadSchemes(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	count, err := h.registry.LoadFromRepository(ctx, h.repo, tenantID)
	if err != nil {
		slog.Error("failed to reload schemes", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to reload schemes",
		})
		return
	}

	slog.Info("schemes reloaded", "tenant_id", tenantID, "count", count)
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "schemes reloaded successfully",
		"count":   count,
	})
}

// Health returns server health status.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := "healthy"

	// Check repository health
	if h.repo != nil {
		if err := h.repo.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	// Check cache health
	if h.cache != nil {
		if err := h.cache.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":  status,
		"version": h.version,
	})
}

// Ready returns whether the server is ready to accept traffic.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"ready": "true",
	})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
