package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/pavelanni/studypilot/internal/guide"
	appI18n "github.com/pavelanni/studypilot/internal/i18n"
	"github.com/pavelanni/studypilot/internal/model"
	"github.com/pavelanni/studypilot/internal/store"
)

func fptr(v float64) *float64 { return &v }

type fakeGenerator struct {
	doc    *model.GuideDocument
	gather *model.GatherResult
	err    error
}

func (f *fakeGenerator) Generate(context.Context, model.GuideRequest) (*model.GuideDocument, *model.GatherResult, error) {
	return f.doc, f.gather, f.err
}

type fakeLocator struct {
	gather *model.GatherResult
	err    error
}

func (f *fakeLocator) LocateAssessment(context.Context, string, time.Time, int64) (*model.GatherResult, error) {
	return f.gather, f.err
}

type fakeCourses struct {
	courses     []model.CourseSnapshot
	assignments map[int64][]model.AssignmentSnapshot
	assignErr   error
}

func (f *fakeCourses) ListCourses(context.Context, string) ([]model.CourseSnapshot, error) {
	return f.courses, nil
}

func (f *fakeCourses) ListAssignments(_ context.Context, courseID int64) ([]model.AssignmentSnapshot, error) {
	if f.assignErr != nil {
		return nil, f.assignErr
	}
	return f.assignments[courseID], nil
}

func readyDoc() *model.GuideDocument {
	return &model.GuideDocument{
		Status: model.StatusReady,
		Meta:   model.GuideMeta{CourseName: "Algebra 2", Confidence: 60},
		ScopeLock: model.ScopeLock{Topics: []model.Topic{
			{Label: "Factoring quadratics", Badge: model.BadgeLikely},
		}},
	}
}

type testEnv struct {
	server *httptest.Server
	db     *store.Store
	client *http.Client
}

func newTestEnv(t *testing.T, gen GuideGenerator, loc ScopeLocator, courses CourseReader) *testEnv {
	t.Helper()
	if err := appI18n.Init("en"); err != nil {
		t.Fatalf("i18n init: %v", err)
	}

	db, err := store.New(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	h := New(db, gen, loc, courses, guide.ToLegacy, Config{})
	r := chi.NewRouter()
	h.Routes(r)

	server := httptest.NewServer(r)
	t.Cleanup(server.Close)

	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("cookie jar: %v", err)
	}
	return &testEnv{
		server: server,
		db:     db,
		client: &http.Client{Jar: jar},
	}
}

func (e *testEnv) createUser(t *testing.T, username, password string, role model.UserRole) int64 {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	id, err := e.db.CreateUser(model.User{
		Username:     username,
		DisplayName:  username,
		PasswordHash: string(hash),
		Role:         role,
		Active:       true,
	})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	return id
}

func (e *testEnv) postJSON(t *testing.T, path string, body any) *http.Response {
	t.Helper()
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	resp, err := e.client.Post(e.server.URL+path, "application/json", bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("POST %s: %v", path, err)
	}
	return resp
}

func (e *testEnv) get(t *testing.T, path string) *http.Response {
	t.Helper()
	resp, err := e.client.Get(e.server.URL + path)
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	return resp
}

func (e *testEnv) login(t *testing.T, username, password string) {
	t.Helper()
	resp := e.postJSON(t, "/api/login", map[string]string{
		"username": username, "password": password,
	})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login status = %d", resp.StatusCode)
	}
}

func decodeBody(t *testing.T, resp *http.Response, dst any) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func TestLoginAndMe(t *testing.T) {
	env := newTestEnv(t, &fakeGenerator{}, &fakeLocator{}, &fakeCourses{})
	env.createUser(t, "alice", "secret", model.UserRoleStudent)

	// Wrong password is rejected without leaking which part was wrong.
	resp := env.postJSON(t, "/api/login", map[string]string{"username": "alice", "password": "nope"})
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("bad login status = %d, want 401", resp.StatusCode)
	}

	env.login(t, "alice", "secret")

	var me userResponse
	decodeBody(t, env.get(t, "/api/me"), &me)
	if me.Username != "alice" || me.Role != string(model.UserRoleStudent) {
		t.Errorf("me = %+v", me)
	}
}

func TestAuthRequired(t *testing.T) {
	env := newTestEnv(t, &fakeGenerator{}, &fakeLocator{}, &fakeCourses{})

	resp := env.get(t, "/api/history")
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("unauthenticated status = %d, want 401", resp.StatusCode)
	}
}

func TestGuideSavedToHistory(t *testing.T) {
	gen := &fakeGenerator{
		doc:    readyDoc(),
		gather: &model.GatherResult{Stage: model.StageDone},
	}
	env := newTestEnv(t, gen, &fakeLocator{}, &fakeCourses{})
	env.createUser(t, "alice", "secret", model.UserRoleStudent)
	env.login(t, "alice", "secret")

	var guideResp guideResponse
	decodeBody(t, env.postJSON(t, "/api/guide", map[string]any{
		"question": "help with quadratics",
		"today":    "2026-03-09",
	}), &guideResp)

	if guideResp.ID == 0 {
		t.Error("expected a history id")
	}
	if guideResp.Title != "Guide #1" {
		t.Errorf("title = %q, want the localized guide title", guideResp.Title)
	}
	if guideResp.Message != "1 topic in scope." {
		t.Errorf("message = %q, want the localized topic count", guideResp.Message)
	}
	if guideResp.Document.Meta.CourseName != "Algebra 2" {
		t.Errorf("course name = %q", guideResp.Document.Meta.CourseName)
	}

	var entries []model.HistoryEntry
	decodeBody(t, env.get(t, "/api/history"), &entries)
	if len(entries) != 1 || entries[0].Question != "help with quadratics" {
		t.Fatalf("history = %+v, want the saved guide", entries)
	}

	// The legacy projection is derivable on demand.
	var legacy model.LegacyGuide
	decodeBody(t, env.get(t, "/api/history/1/legacy"), &legacy)
	if legacy.TopicOutline == nil || legacy.TopicOutline.Topic != "Factoring quadratics" {
		t.Errorf("legacy outline = %+v", legacy.TopicOutline)
	}
}

func TestHistoryIsOwnerScoped(t *testing.T) {
	gen := &fakeGenerator{doc: readyDoc(), gather: &model.GatherResult{}}
	env := newTestEnv(t, gen, &fakeLocator{}, &fakeCourses{})
	env.createUser(t, "alice", "secret", model.UserRoleStudent)
	env.createUser(t, "bob", "secret", model.UserRoleStudent)

	env.login(t, "alice", "secret")
	resp := env.postJSON(t, "/api/guide", map[string]any{"question": "quadratics", "today": "2026-03-09"})
	resp.Body.Close()

	env.login(t, "bob", "secret")
	resp = env.get(t, "/api/history/1")
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("cross-user fetch status = %d, want 404", resp.StatusCode)
	}
}

func TestGuideValidationErrorIs400(t *testing.T) {
	gen := &fakeGenerator{err: &model.ValidationError{Field: "question", Reason: "must not be empty"}}
	env := newTestEnv(t, gen, &fakeLocator{}, &fakeCourses{})
	env.createUser(t, "alice", "secret", model.UserRoleStudent)
	env.login(t, "alice", "secret")

	resp := env.postJSON(t, "/api/guide", map[string]any{"question": "", "today": "2026-03-09"})
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestGuideUpstreamErrorIs502(t *testing.T) {
	gen := &fakeGenerator{err: &model.UpstreamError{Op: "list quizzes"}}
	env := newTestEnv(t, gen, &fakeLocator{}, &fakeCourses{})
	env.createUser(t, "alice", "secret", model.UserRoleStudent)
	env.login(t, "alice", "secret")

	resp := env.postJSON(t, "/api/guide", map[string]any{"question": "q", "today": "2026-03-09"})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", resp.StatusCode)
	}
	var body map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["error"] != "upstream service unavailable" {
		t.Errorf("error message = %q, must not leak upstream detail", body["error"])
	}
}

func TestLocateCapsMaterialPreview(t *testing.T) {
	loc := &fakeLocator{gather: &model.GatherResult{
		Stage: model.StageScopeReady,
		Materials: model.Materials{
			Pages: []string{"p1", "p2", "p3", "p4", "p5", "p6", "p7", "p8", "p9", "p10"},
		},
	}}
	env := newTestEnv(t, &fakeGenerator{}, loc, &fakeCourses{})
	env.createUser(t, "alice", "secret", model.UserRoleStudent)
	env.login(t, "alice", "secret")

	var gather model.GatherResult
	decodeBody(t, env.postJSON(t, "/api/scope/locate", map[string]any{
		"question": "quadratics", "today": "2026-03-09",
	}), &gather)
	if len(gather.Materials.Pages) != materialsPreview {
		t.Errorf("preview pages = %d, want %d", len(gather.Materials.Pages), materialsPreview)
	}
}

func TestPreferencesRoundTrip(t *testing.T) {
	env := newTestEnv(t, &fakeGenerator{}, &fakeLocator{}, &fakeCourses{})
	env.createUser(t, "alice", "secret", model.UserRoleStudent)
	env.login(t, "alice", "secret")

	req, err := http.NewRequest(http.MethodPut, env.server.URL+"/api/prefs/study_style",
		bytes.NewReader([]byte(`{"value":"short sessions"}`)))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	resp, err := env.client.Do(req)
	if err != nil {
		t.Fatalf("PUT pref: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("set pref status = %d", resp.StatusCode)
	}

	var pref prefValue
	decodeBody(t, env.get(t, "/api/prefs/study_style"), &pref)
	if pref.Value != "short sessions" {
		t.Errorf("pref value = %q", pref.Value)
	}
}

func TestAdminRoutesNeedAdminRole(t *testing.T) {
	env := newTestEnv(t, &fakeGenerator{}, &fakeLocator{}, &fakeCourses{})
	env.createUser(t, "alice", "secret", model.UserRoleStudent)
	env.createUser(t, "root", "secret", model.UserRoleAdmin)

	env.login(t, "alice", "secret")
	resp := env.get(t, "/api/admin/users")
	resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("student status = %d, want 403", resp.StatusCode)
	}

	env.login(t, "root", "secret")
	resp = env.get(t, "/api/admin/users")
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("admin status = %d, want 200", resp.StatusCode)
	}
}

func TestInsightsEndpoint(t *testing.T) {
	low, high := 72.0, 93.0
	courses := &fakeCourses{
		courses: []model.CourseSnapshot{
			{ID: 1, Name: "Algebra 2", Score: &low},
			{ID: 2, Name: "History", Score: &high},
		},
		assignments: map[int64][]model.AssignmentSnapshot{
			1: {{ID: 10, Title: "Factoring Quadratics Homework", Score: fptr(4), PointsPossible: fptr(10)}},
		},
	}
	env := newTestEnv(t, &fakeGenerator{}, &fakeLocator{}, courses)
	env.createUser(t, "alice", "secret", model.UserRoleStudent)
	env.login(t, "alice", "secret")

	var body insightsResponse
	decodeBody(t, env.get(t, "/api/insights"), &body)
	if len(body.Recommendations) != 2 || body.Recommendations[0].Priority != model.PriorityHigh {
		t.Fatalf("recommendations = %+v", body.Recommendations)
	}
	if body.Recommendations[0].Concept != "Factoring Quadratics" {
		t.Errorf("concept = %q, want derived from the course's assignments", body.Recommendations[0].Concept)
	}
	if len(body.GradeSignals) != 2 || body.GradeSignals[0].Trend != "declining" {
		t.Errorf("grade signals = %+v", body.GradeSignals)
	}
}

func TestInsightsBatchFailureIs502(t *testing.T) {
	score := 80.0
	courses := &fakeCourses{
		courses:   []model.CourseSnapshot{{ID: 1, Name: "Algebra 2", Score: &score}},
		assignErr: &model.UpstreamError{Op: "list assignments"},
	}
	env := newTestEnv(t, &fakeGenerator{}, &fakeLocator{}, courses)
	env.createUser(t, "alice", "secret", model.UserRoleStudent)
	env.login(t, "alice", "secret")

	resp := env.get(t, "/api/insights")
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadGateway {
		t.Errorf("status = %d, want 502 when one course's fetch fails", resp.StatusCode)
	}
}
