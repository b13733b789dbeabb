package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/jonesrussell/complaint-engine/internal/classifier"
	"github.com/jonesrussell/complaint-engine/internal/domain"
	"github.com/jonesrussell/complaint-engine/internal/intake"
	"github.com/jonesrussell/complaint-engine/internal/model"
	"github.com/jonesrussell/complaint-engine/internal/ranking"
	"github.com/jonesrussell/complaint-engine/internal/registry"
	"github.com/jonesrussell/complaint-engine/internal/similarity"
	"github.com/jonesrussell/complaint-engine/internal/storage"
)

// testLogger satisfies classifier.Logger without output.
type testLogger struct{}

func (testLogger) Debug(string, ...interface{}) {}
func (testLogger) Info(string, ...interface{})  {}
func (testLogger) Warn(string, ...interface{})  {}
func (testLogger) Error(string, ...interface{}) {}

func testArtifact() *model.Artifact {
	return &model.Artifact{
		Version:    "api-test-1",
		Categories: []domain.Category{domain.CategoryOther, domain.CategoryWater, domain.CategoryGarbage},
		Bias:       map[domain.Category]float64{},
		Vocabulary: map[string]map[domain.Category]float64{
			"leak":    {domain.CategoryWater: 3.0},
			"garbage": {domain.CategoryGarbage: 3.0},
		},
	}
}

func testRules() []classifier.KeywordRule {
	return []classifier.KeywordRule{
		{Category: domain.CategoryWater, Keywords: []string{"water", "leak", "leaking", "pipe"}, MinScore: 0.05, Enabled: true},
		{Category: domain.CategoryGarbage, Keywords: []string{"garbage", "trash", "bin"}, MinScore: 0.05, Enabled: true},
	}
}

// setupTestHandler creates a handler backed by a fully wired in-memory engine.
func setupTestHandler(t *testing.T) *Handler {
	t.Helper()

	cls, err := classifier.New(testArtifact(), classifier.Config{KeywordRules: testRules()}, testLogger{}, nil)
	if err != nil {
		t.Fatalf("classifier.New() error = %v", err)
	}

	store := storage.NewMemoryStore()
	reg := registry.New(store, 0, nil, nil)
	matcher := similarity.NewMatcher(nil, 0, nil)
	ranker := ranking.NewRanker(nil, 0, nil)
	svc := intake.New(cls, matcher, reg, ranker, nil, intake.Config{}, nil, nil)

	return NewHandler(svc, nil, nil, "model/complaint_model.json", nil)
}

// setupRouter creates a test router with the service routes and no JWT secret.
func setupRouter(handler *Handler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	SetupServiceRoutes(router, handler, "", nil)
	return router
}

// submitComplaint posts a submission and returns the decoded result.
func submitComplaint(t *testing.T, router *gin.Engine, text, citizenID string) domain.SubmissionResult {
	t.Helper()

	w := postJSON(router, "/api/v1/complaints", SubmitComplaintRequest{Text: text, CitizenID: citizenID})
	if w.Code != http.StatusCreated && w.Code != http.StatusOK {
		t.Fatalf("submit status = %d, body = %s", w.Code, w.Body.String())
	}

	var result domain.SubmissionResult
	if err := json.Unmarshal(w.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to unmarshal submission result: %v", err)
	}
	return result
}

func postJSON(router *gin.Engine, path string, body any) *httptest.ResponseRecorder {
	raw, _ := json.Marshal(body)
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodPost, path, bytes.NewBuffer(raw))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	return w
}

func putJSON(router *gin.Engine, path string, body any) *httptest.ResponseRecorder {
	raw, _ := json.Marshal(body)
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodPut, path, bytes.NewBuffer(raw))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	return w
}

func getPath(router *gin.Engine, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, path, nil)
	router.ServeHTTP(w, req)
	return w
}

func TestSubmitComplaint_CreatesComplaint(t *testing.T) {
	handler := setupTestHandler(t)
	router := setupRouter(handler)

	w := postJSON(router, "/api/v1/complaints", SubmitComplaintRequest{
		Text:      "water leaking near 12 main street north end",
		CitizenID: "citizen-1",
	})

	if w.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", w.Code, w.Body.String())
	}

	var result domain.SubmissionResult
	if err := json.Unmarshal(w.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}

	if result.ComplaintID == "" {
		t.Error("expected non-empty complaint_id")
	}
	if result.Category != domain.CategoryWater {
		t.Errorf("expected category water, got %s", result.Category)
	}
	if !result.IsNew {
		t.Error("expected is_new true")
	}
	if result.Votes != 1 {
		t.Errorf("expected 1 vote, got %d", result.Votes)
	}
}

func TestSubmitComplaint_MergesDuplicate(t *testing.T) {
	handler := setupTestHandler(t)
	router := setupRouter(handler)

	first := submitComplaint(t, router, "water leaking near 12 main street north end", "citizen-1")

	w := postJSON(router, "/api/v1/complaints", SubmitComplaintRequest{
		Text:      "water leaking near 12 main street north end today",
		CitizenID: "citizen-2",
	})

	// A merged submission is not a new resource
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200 for merge, got %d: %s", w.Code, w.Body.String())
	}

	var result domain.SubmissionResult
	if err := json.Unmarshal(w.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}

	if result.ComplaintID != first.ComplaintID {
		t.Errorf("expected merge into %s, got %s", first.ComplaintID, result.ComplaintID)
	}
	if result.IsNew {
		t.Error("expected is_new false for merged submission")
	}
	if result.Votes != 2 {
		t.Errorf("expected 2 votes after merge, got %d", result.Votes)
	}
}

func TestSubmitComplaint_InvalidRequests(t *testing.T) {
	handler := setupTestHandler(t)
	router := setupRouter(handler)

	tests := []struct {
		name string
		body any
	}{
		{"empty body", map[string]string{}},
		{"missing citizen", map[string]string{"text": "water leaking near 12 main street"}},
		{"text too short", SubmitComplaintRequest{Text: "leak", CitizenID: "citizen-1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := postJSON(router, "/api/v1/complaints", tt.body)
			if w.Code != http.StatusBadRequest {
				t.Errorf("expected status 400, got %d: %s", w.Code, w.Body.String())
			}
		})
	}
}

func TestVoteComplaint(t *testing.T) {
	handler := setupTestHandler(t)
	router := setupRouter(handler)

	created := submitComplaint(t, router, "overflowing garbage bin on pine avenue", "citizen-1")
	votePath := fmt.Sprintf("/api/v1/complaints/%s/votes", created.ComplaintID)

	w := postJSON(router, votePath, VoteRequest{CitizenID: "citizen-2"})
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	var result domain.SubmissionResult
	if err := json.Unmarshal(w.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if result.Votes != 2 {
		t.Errorf("expected 2 votes, got %d", result.Votes)
	}

	// A repeat vote by the same citizen is benign
	w = postJSON(router, votePath, VoteRequest{CitizenID: "citizen-2"})
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200 for repeat vote, got %d", w.Code)
	}
	if err := json.Unmarshal(w.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if !result.AlreadyVoted {
		t.Error("expected already_voted true for repeat vote")
	}
	if result.Votes != 2 {
		t.Errorf("expected votes unchanged at 2, got %d", result.Votes)
	}

	// Voting on an unknown complaint is a 404
	w = postJSON(router, "/api/v1/complaints/no-such-id/votes", VoteRequest{CitizenID: "citizen-3"})
	if w.Code != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", w.Code)
	}
}

func TestGetComplaint(t *testing.T) {
	handler := setupTestHandler(t)
	router := setupRouter(handler)

	created := submitComplaint(t, router, "water leaking near 12 main street north end", "citizen-1")

	w := getPath(router, "/api/v1/complaints/"+created.ComplaintID)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}

	var complaint domain.Complaint
	if err := json.Unmarshal(w.Body.Bytes(), &complaint); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if complaint.ID != created.ComplaintID {
		t.Errorf("expected id %s, got %s", created.ComplaintID, complaint.ID)
	}
	if complaint.Status != domain.StatusSubmitted {
		t.Errorf("expected status submitted, got %s", complaint.Status)
	}

	w = getPath(router, "/api/v1/complaints/no-such-id")
	if w.Code != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", w.Code)
	}
}

func TestListComplaints_FiltersByCategory(t *testing.T) {
	handler := setupTestHandler(t)
	router := setupRouter(handler)

	submitComplaint(t, router, "water leaking near 12 main street north end", "citizen-1")
	submitComplaint(t, router, "overflowing garbage bin on pine avenue", "citizen-2")

	w := getPath(router, "/api/v1/complaints?category=water")
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	var response ComplaintListResponse
	if err := json.Unmarshal(w.Body.Bytes(), &response); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if response.Total != 1 {
		t.Errorf("expected 1 water complaint, got %d", response.Total)
	}
	for _, c := range response.Complaints {
		if c.Category != domain.CategoryWater {
			t.Errorf("expected only water complaints, got %s", c.Category)
		}
	}

	w = getPath(router, "/api/v1/complaints?category=noise")
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected status 400 for unknown category, got %d", w.Code)
	}

	w = getPath(router, "/api/v1/complaints?status=archived")
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected status 400 for unknown status, got %d", w.Code)
	}
}

func TestListRanked_OrdersByPriority(t *testing.T) {
	handler := setupTestHandler(t)
	router := setupRouter(handler)

	// Garbage complaint with three votes outranks a fresh water complaint
	// with one: 3 * 1.0 > 1 * 1.5 at zero age.
	loud := submitComplaint(t, router, "overflowing garbage bin on pine avenue", "citizen-1")
	postJSON(router, fmt.Sprintf("/api/v1/complaints/%s/votes", loud.ComplaintID), VoteRequest{CitizenID: "citizen-2"})
	postJSON(router, fmt.Sprintf("/api/v1/complaints/%s/votes", loud.ComplaintID), VoteRequest{CitizenID: "citizen-3"})

	quiet := submitComplaint(t, router, "water leaking near 12 main street north end", "citizen-4")

	w := getPath(router, "/api/v1/ranked")
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	var response RankedListResponse
	if err := json.Unmarshal(w.Body.Bytes(), &response); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if response.Total != 2 {
		t.Fatalf("expected 2 ranked complaints, got %d", response.Total)
	}
	if response.Results[0].Complaint.ID != loud.ComplaintID {
		t.Errorf("expected %s ranked first, got %s", loud.ComplaintID, response.Results[0].Complaint.ID)
	}
	if response.Results[1].Complaint.ID != quiet.ComplaintID {
		t.Errorf("expected %s ranked second, got %s", quiet.ComplaintID, response.Results[1].Complaint.ID)
	}
	if response.Results[0].Score <= response.Results[1].Score {
		t.Errorf("scores not descending: %v then %v", response.Results[0].Score, response.Results[1].Score)
	}

	w = getPath(router, "/api/v1/ranked?status=closed")
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected status 400 for unknown status filter, got %d", w.Code)
	}
}

func TestTransitionStatus_WalksLifecycle(t *testing.T) {
	handler := setupTestHandler(t)
	router := setupRouter(handler)

	created := submitComplaint(t, router, "water leaking near 12 main street north end", "citizen-1")
	statusPath := fmt.Sprintf("/api/v1/complaints/%s/status", created.ComplaintID)

	// Jumping straight to resolved is not allowed from submitted
	w := putJSON(router, statusPath, TransitionRequest{Status: "resolved", Actor: "clerk-7"})
	if w.Code != http.StatusConflict {
		t.Fatalf("expected status 409, got %d: %s", w.Code, w.Body.String())
	}

	var conflict struct {
		CurrentStatus      string   `json:"current_status"`
		AllowedTransitions []string `json:"allowed_transitions"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &conflict); err != nil {
		t.Fatalf("failed to unmarshal conflict body: %v", err)
	}
	if conflict.CurrentStatus != "submitted" {
		t.Errorf("expected current_status submitted, got %s", conflict.CurrentStatus)
	}
	if len(conflict.AllowedTransitions) != 1 || conflict.AllowedTransitions[0] != "under_review" {
		t.Errorf("expected allowed_transitions [under_review], got %v", conflict.AllowedTransitions)
	}

	// Walk the legal path
	for _, next := range []string{"under_review", "in_progress", "resolved"} {
		w = putJSON(router, statusPath, TransitionRequest{Status: next, Actor: "clerk-7"})
		if w.Code != http.StatusOK {
			t.Fatalf("transition to %s: expected status 200, got %d: %s", next, w.Code, w.Body.String())
		}
	}

	// Terminal complaints accept no further transitions
	w = putJSON(router, statusPath, TransitionRequest{Status: "under_review", Actor: "clerk-7"})
	if w.Code != http.StatusConflict {
		t.Fatalf("expected status 409 from terminal state, got %d", w.Code)
	}

	var terminal struct {
		Terminal           bool     `json:"terminal"`
		AllowedTransitions []string `json:"allowed_transitions"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &terminal); err != nil {
		t.Fatalf("failed to unmarshal terminal body: %v", err)
	}
	if !terminal.Terminal {
		t.Error("expected terminal true")
	}
	if len(terminal.AllowedTransitions) != 0 {
		t.Errorf("expected no allowed transitions, got %v", terminal.AllowedTransitions)
	}

	// Unknown statuses and unknown complaints map to 400 and 404
	w = putJSON(router, statusPath, TransitionRequest{Status: "archived", Actor: "clerk-7"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected status 400 for unknown status, got %d", w.Code)
	}
	w = putJSON(router, "/api/v1/complaints/no-such-id/status", TransitionRequest{Status: "under_review", Actor: "clerk-7"})
	if w.Code != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", w.Code)
	}
}

func TestOverrideCategory(t *testing.T) {
	handler := setupTestHandler(t)
	router := setupRouter(handler)

	created := submitComplaint(t, router, "water pooling by the storm drain on elm street", "citizen-1")
	categoryPath := fmt.Sprintf("/api/v1/complaints/%s/category", created.ComplaintID)

	w := putJSON(router, categoryPath, OverrideCategoryRequest{Category: "drainage", Actor: "supervisor-2"})
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	var complaint domain.Complaint
	if err := json.Unmarshal(w.Body.Bytes(), &complaint); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if complaint.Category != domain.CategoryDrainage {
		t.Errorf("expected category drainage, got %s", complaint.Category)
	}
	if complaint.PredictionSource != domain.SourceOverride {
		t.Errorf("expected prediction_source override, got %s", complaint.PredictionSource)
	}

	w = putJSON(router, categoryPath, OverrideCategoryRequest{Category: "potholes", Actor: "supervisor-2"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected status 400 for unknown category, got %d", w.Code)
	}
}

func TestReloadModel(t *testing.T) {
	handler := setupTestHandler(t)
	router := setupRouter(handler)

	dir := t.TempDir()
	badPath := filepath.Join(dir, "bad.json")
	if err := os.WriteFile(badPath, []byte("{not json"), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	w := postJSON(router, "/api/v1/admin/model/reload", ReloadModelRequest{Path: badPath})
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected status 503 for bad artifact, got %d: %s", w.Code, w.Body.String())
	}

	var failure struct {
		ModelVersion string `json:"model_version"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &failure); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if failure.ModelVersion != "api-test-1" {
		t.Errorf("expected prior model kept, got %q", failure.ModelVersion)
	}

	goodPath := filepath.Join(dir, "good.json")
	artifact := `{
		"version": "api-test-2",
		"categories": ["other", "water"],
		"bias": {},
		"vocabulary": {"leak": {"water": 3.0}}
	}`
	if err := os.WriteFile(goodPath, []byte(artifact), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	w = postJSON(router, "/api/v1/admin/model/reload", ReloadModelRequest{Path: goodPath})
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	var success ModelReloadResponse
	if err := json.Unmarshal(w.Body.Bytes(), &success); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if success.ModelVersion != "api-test-2" {
		t.Errorf("expected model_version api-test-2, got %q", success.ModelVersion)
	}
}

func TestSearchComplaints_Unconfigured(t *testing.T) {
	handler := setupTestHandler(t)
	router := setupRouter(handler)

	w := getPath(router, "/api/v1/complaints/search?q=water")
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("expected status 503 without a search backend, got %d", w.Code)
	}
}

func TestListCategories(t *testing.T) {
	handler := setupTestHandler(t)
	router := setupRouter(handler)

	w := getPath(router, "/api/v1/categories")
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}

	var response CategoriesResponse
	if err := json.Unmarshal(w.Body.Bytes(), &response); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if len(response.Categories) != len(domain.Categories()) {
		t.Fatalf("expected %d categories, got %d", len(domain.Categories()), len(response.Categories))
	}
	for _, info := range response.Categories {
		if info.UrgencyWeight <= 0 {
			t.Errorf("category %s has non-positive urgency weight %v", info.Name, info.UrgencyWeight)
		}
	}
}

func TestReadyCheck(t *testing.T) {
	handler := setupTestHandler(t)
	router := setupRouter(handler)

	w := getPath(router, "/ready")
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}

	var response map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &response); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if response["status"] != "ready" {
		t.Errorf("expected status ready, got %v", response["status"])
	}
	if response["model_version"] != "api-test-1" {
		t.Errorf("expected model_version api-test-1, got %v", response["model_version"])
	}
}

func TestStaffRoutes_RequireTokenWhenSecretConfigured(t *testing.T) {
	handler := setupTestHandler(t)

	gin.SetMode(gin.TestMode)
	router := gin.New()
	SetupServiceRoutes(router, handler, "test-secret", nil)

	created := submitComplaint(t, router, "water leaking near 12 main street north end", "citizen-1")

	// No Authorization header
	w := putJSON(router, fmt.Sprintf("/api/v1/complaints/%s/status", created.ComplaintID),
		TransitionRequest{Status: "under_review", Actor: "clerk-7"})
	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected status 401 without token, got %d", w.Code)
	}

	// Citizen endpoints stay public
	w = getPath(router, "/api/v1/complaints/"+created.ComplaintID)
	if w.Code != http.StatusOK {
		t.Errorf("expected public read to stay open, got %d", w.Code)
	}
}

// recordingNotifier captures index refresh requests from write handlers.
type recordingNotifier struct {
	ids []string
}

func (n *recordingNotifier) Enqueue(complaintID string) bool {
	n.ids = append(n.ids, complaintID)
	return true
}

func TestWriteEndpoints_ScheduleIndexRefresh(t *testing.T) {
	handler := setupTestHandler(t)
	notifier := &recordingNotifier{}
	handler.WithNotifier(notifier)
	router := setupRouter(handler)

	created := submitComplaint(t, router, "water leaking near 12 main street north end", "citizen-1")
	if len(notifier.ids) != 1 {
		t.Fatalf("refreshes after submit = %d, want 1", len(notifier.ids))
	}

	w := postJSON(router, fmt.Sprintf("/api/v1/complaints/%s/votes", created.ComplaintID),
		VoteRequest{CitizenID: "citizen-2"})
	if w.Code != http.StatusOK {
		t.Fatalf("vote status = %d: %s", w.Code, w.Body.String())
	}
	if len(notifier.ids) != 2 {
		t.Fatalf("refreshes after vote = %d, want 2", len(notifier.ids))
	}

	// A repeat vote changes nothing and must not schedule a refresh.
	w = postJSON(router, fmt.Sprintf("/api/v1/complaints/%s/votes", created.ComplaintID),
		VoteRequest{CitizenID: "citizen-2"})
	if w.Code != http.StatusOK {
		t.Fatalf("repeat vote status = %d: %s", w.Code, w.Body.String())
	}
	if len(notifier.ids) != 2 {
		t.Fatalf("refreshes after repeat vote = %d, want 2", len(notifier.ids))
	}

	w = putJSON(router, fmt.Sprintf("/api/v1/complaints/%s/status", created.ComplaintID),
		TransitionRequest{Status: "under_review", Actor: "clerk-7"})
	if w.Code != http.StatusOK {
		t.Fatalf("transition status = %d: %s", w.Code, w.Body.String())
	}

	w = putJSON(router, fmt.Sprintf("/api/v1/complaints/%s/category", created.ComplaintID),
		OverrideCategoryRequest{Category: "drainage", Actor: "clerk-7"})
	if w.Code != http.StatusOK {
		t.Fatalf("override status = %d: %s", w.Code, w.Body.String())
	}

	if len(notifier.ids) != 4 {
		t.Fatalf("refreshes after staff writes = %d, want 4", len(notifier.ids))
	}
	for _, id := range notifier.ids {
		if id != created.ComplaintID {
			t.Errorf("refresh scheduled for %s, want %s", id, created.ComplaintID)
		}
	}
}
