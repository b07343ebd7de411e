package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"

	appI18n "github.com/pavelanni/studypilot/internal/i18n"
	"github.com/pavelanni/studypilot/internal/insights"
	"github.com/pavelanni/studypilot/internal/model"
	"github.com/pavelanni/studypilot/internal/store"
)

// materialsPreview caps material lists in the locate response at eight per
// category; the wider generation-context lists still feed generation.
const materialsPreview = 8

// Config holds handler-level settings.
type Config struct {
	SecureCookies bool
}

// GuideGenerator runs one gather-generate-normalize cycle.
type GuideGenerator interface {
	Generate(ctx context.Context, req model.GuideRequest) (*model.GuideDocument, *model.GatherResult, error)
}

// ScopeLocator finds the course and assessment behind a question.
type ScopeLocator interface {
	LocateAssessment(ctx context.Context, question string, today time.Time, courseHint int64) (*model.GatherResult, error)
}

// CourseReader is the slice of the grading-system client the insights
// endpoint reads.
type CourseReader interface {
	ListCourses(ctx context.Context, search string) ([]model.CourseSnapshot, error)
	ListAssignments(ctx context.Context, courseID int64) ([]model.AssignmentSnapshot, error)
}

// LegacyProjector flattens a document for the older client shape.
type LegacyProjector func(doc *model.GuideDocument, userPrompt string) *model.LegacyGuide

// Handler holds shared dependencies for HTTP handlers.
type Handler struct {
	store     *store.Store
	generator GuideGenerator
	locator   ScopeLocator
	courses   CourseReader
	toLegacy  LegacyProjector
	config    Config
}

// New creates a new Handler.
func New(s *store.Store, gen GuideGenerator, loc ScopeLocator, courses CourseReader, toLegacy LegacyProjector, cfg Config) *Handler {
	return &Handler{store: s, generator: gen, locator: loc, courses: courses, toLegacy: toLegacy, config: cfg}
}

// Routes registers all HTTP routes.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/api/login", h.handleLogin)
	r.Post("/api/logout", h.handleLogout)

	r.Group(func(r chi.Router) {
		r.Use(h.requireAuth)
		r.Get("/api/me", h.handleMe)
		r.Post("/api/scope/locate", h.handleLocate)
		r.Post("/api/guide", h.handleGuide)
		r.Get("/api/history", h.handleHistory)
		r.Get("/api/history/{guideID}", h.handleHistoryEntry)
		r.Get("/api/history/{guideID}/legacy", h.handleHistoryLegacy)
		r.Get("/api/insights", h.handleInsights)
		r.Get("/api/prefs/{key}", h.handleGetPref)
		r.Put("/api/prefs/{key}", h.handleSetPref)

		r.Group(func(r chi.Router) {
			r.Use(requireRole(model.UserRoleAdmin))
			r.Get("/api/admin/users", h.handleListUsers)
			r.Post("/api/admin/users", h.handleCreateUser)
			r.Post("/api/admin/users/{userID}/toggle", h.handleToggleUserActive)
		})
	})
}

type locateRequest struct {
	Question   string `json:"question"`
	Today      string `json:"today"`
	CourseHint int64  `json:"course_hint,omitempty"`
}

func (h *Handler) handleLocate(w http.ResponseWriter, r *http.Request) {
	var req locateRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	today, err := parseToday(req.Today)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Question == "" {
		writeError(w, http.StatusBadRequest, "question must not be empty")
		return
	}

	gather, err := h.locator.LocateAssessment(r.Context(), req.Question, today, req.CourseHint)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	gather.Materials = gather.Materials.Capped(materialsPreview)
	writeJSON(w, http.StatusOK, gather)
}

type guideRequest struct {
	Question         string                   `json:"question"`
	Today            string                   `json:"today"`
	CourseHint       int64                    `json:"course_hint,omitempty"`
	SelectedUnits    []string                 `json:"selected_units,omitempty"`
	ExplicitConcepts []string                 `json:"explicit_concepts,omitempty"`
	Materials        []model.UploadedMaterial `json:"materials,omitempty"`
	LockedScope      *model.ScopeLock         `json:"locked_scope,omitempty"`
	Preferences      map[string]string        `json:"preferences,omitempty"`
	ImageRefs        []string                 `json:"image_refs,omitempty"`
}

type guideResponse struct {
	ID       int64                `json:"id"`
	Title    string               `json:"title"`
	Message  string               `json:"message"`
	Document *model.GuideDocument `json:"document"`
	Gather   *model.GatherResult  `json:"gather"`
}

func (h *Handler) handleGuide(w http.ResponseWriter, r *http.Request) {
	user := model.UserFromContext(r.Context())

	var req guideRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	today, err := parseToday(req.Today)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	// Stored preferences are defaults; per-request values win.
	prefs, err := h.store.ListPreferences(user.ID)
	if err != nil {
		slog.Error("failed to load preferences", "user_id", user.ID, "error", err)
		prefs = map[string]string{}
	}
	for k, v := range req.Preferences {
		prefs[k] = v
	}

	doc, gather, err := h.generator.Generate(r.Context(), model.GuideRequest{
		Question:         req.Question,
		Today:            today,
		CourseHint:       req.CourseHint,
		SelectedUnits:    req.SelectedUnits,
		ExplicitConcepts: req.ExplicitConcepts,
		Materials:        req.Materials,
		LockedScope:      req.LockedScope,
		Preferences:      prefs,
		ImageRefs:        req.ImageRefs,
	})
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	legacy := h.toLegacy(doc, req.Question)
	id, err := h.store.SaveGuide(model.HistoryEntry{
		UserID:     user.ID,
		Question:   req.Question,
		CourseName: doc.Meta.CourseName,
		Document:   doc,
		Legacy:     legacy,
	})
	if err != nil {
		slog.Error("failed to save guide", "user_id", user.ID, "error", err)
		// The guide is still usable; return it without a history id.
	}

	writeJSON(w, http.StatusOK, guideResponse{
		ID:       id,
		Title:    appI18n.Td(r.Context(), "GuideN", map[string]any{"ID": id}),
		Message:  appI18n.Tp(r.Context(), "TopicsInScope", len(doc.ScopeLock.Topics)),
		Document: doc,
		Gather:   gather,
	})
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	user := model.UserFromContext(r.Context())
	entries, err := h.store.ListGuides(user.ID)
	if err != nil {
		slog.Error("failed to list guides", "user_id", user.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if entries == nil {
		entries = []model.HistoryEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func (h *Handler) historyEntry(w http.ResponseWriter, r *http.Request) *model.HistoryEntry {
	user := model.UserFromContext(r.Context())
	id, err := strconv.ParseInt(chi.URLParam(r, "guideID"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid guide ID")
		return nil
	}
	entry, err := h.store.GetGuide(id, user.ID)
	if err != nil {
		slog.Error("failed to get guide", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return nil
	}
	if entry == nil {
		writeError(w, http.StatusNotFound, "guide not found")
		return nil
	}
	return entry
}

func (h *Handler) handleHistoryEntry(w http.ResponseWriter, r *http.Request) {
	if entry := h.historyEntry(w, r); entry != nil {
		writeJSON(w, http.StatusOK, entry)
	}
}

func (h *Handler) handleHistoryLegacy(w http.ResponseWriter, r *http.Request) {
	entry := h.historyEntry(w, r)
	if entry == nil {
		return
	}
	legacy := entry.Legacy
	if legacy == nil && entry.Document != nil {
		legacy = h.toLegacy(entry.Document, entry.Question)
	}
	writeJSON(w, http.StatusOK, legacy)
}

type insightsResponse struct {
	Recommendations []model.FocusRecommendation `json:"recommendations"`
	GradeSignals    []model.GradeSignal         `json:"grade_signals"`
}

func (h *Handler) handleInsights(w http.ResponseWriter, r *http.Request) {
	courses, err := h.courses.ListCourses(r.Context(), "")
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	// Per-course assignment fetches fan out as one batch; any failure
	// fails the batch as a unit.
	results := make([][]model.AssignmentSnapshot, len(courses))
	eg, egCtx := errgroup.WithContext(r.Context())
	for i, c := range courses {
		eg.Go(func() error {
			var err error
			results[i], err = h.courses.ListAssignments(egCtx, c.ID)
			return err
		})
	}
	if err := eg.Wait(); err != nil {
		h.writeDomainError(w, err)
		return
	}
	assignmentsByCourse := make(map[int64][]model.AssignmentSnapshot, len(courses))
	for i, c := range courses {
		assignmentsByCourse[c.ID] = results[i]
	}

	writeJSON(w, http.StatusOK, insightsResponse{
		Recommendations: insights.Score(courses, assignmentsByCourse),
		GradeSignals:    insights.GradeSignals(courses),
	})
}

type prefValue struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

func (h *Handler) handleGetPref(w http.ResponseWriter, r *http.Request) {
	user := model.UserFromContext(r.Context())
	key := chi.URLParam(r, "key")
	value, err := h.store.GetPreference(user.ID, key)
	if err != nil {
		slog.Error("failed to get preference", "key", key, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, prefValue{Key: key, Value: value})
}

func (h *Handler) handleSetPref(w http.ResponseWriter, r *http.Request) {
	user := model.UserFromContext(r.Context())
	key := chi.URLParam(r, "key")

	var body prefValue
	if err := readJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := h.store.SetPreference(user.ID, key, body.Value); err != nil {
		slog.Error("failed to set preference", "key", key, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, prefValue{Key: key, Value: body.Value})
}

// writeDomainError maps domain error types onto HTTP statuses: invalid
// input is the caller's fault, upstream failures are reported as bad
// gateway, everything else is internal.
func (h *Handler) writeDomainError(w http.ResponseWriter, err error) {
	var vErr *model.ValidationError
	if errors.As(err, &vErr) {
		writeError(w, http.StatusBadRequest, vErr.Error())
		return
	}
	var uErr *model.UpstreamError
	if errors.As(err, &uErr) {
		slog.Error("upstream failure", "op", uErr.Op, "error", uErr.Err)
		writeError(w, http.StatusBadGateway, "upstream service unavailable")
		return
	}
	slog.Error("request failed", "error", err)
	writeError(w, http.StatusInternalServerError, "internal error")
}

func parseToday(s string) (time.Time, error) {
	if s == "" {
		return time.Now(), nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, errors.New("today must be a YYYY-MM-DD date")
	}
	return t, nil
}

func readJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
