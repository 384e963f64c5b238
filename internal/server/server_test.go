package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/me/labflow/internal/assaygraph"
	"github.com/me/labflow/internal/auth"
	"github.com/me/labflow/internal/catalog"
	"github.com/me/labflow/internal/config"
	"github.com/me/labflow/internal/logging"
	"github.com/me/labflow/internal/store"
	"github.com/me/labflow/pkg/model"
)

const adminEmail = "admin@lab.test"

func testServer(t *testing.T) *Server {
	t.Helper()
	st := store.NewMemoryStore(logging.Discard())
	cfg := config.DefaultServerConfig()
	cfg.Admins = []string{adminEmail}

	acc := auth.NewAccounts(st, auth.NewSessionManager(st, time.Hour), cfg, logging.Discard())
	acc.SetPasswordParams(auth.PasswordParams{Memory: 64, Iterations: 1, Parallelism: 1, SaltLen: 16, KeyLen: 32})
	return New(cfg, catalog.New(st, logging.Discard()), acc, logging.Discard(), WithoutUI())
}

// envelope is used to decode the standard response envelope.
type envelope struct {
	Status     string            `json:"status"`
	RequestID  string            `json:"request_id"`
	Timestamp  string            `json:"timestamp"`
	Data       json.RawMessage   `json:"data"`
	Pagination *model.Pagination `json:"pagination"`
	Error      *model.APIError   `json:"error"`
}

// do sends a request with an optional JSON body and bearer token and
// checks the status code.
func do(t *testing.T, srv *Server, method, path, token, body string, want int) envelope {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	if w.Code != want {
		t.Fatalf("%s %s: status=%d, want %d, body=%s", method, path, w.Code, want, w.Body.String())
	}
	var env envelope
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("%s %s: invalid JSON: %v", method, path, err)
	}
	return env
}

func doGet(t *testing.T, srv *Server, path string) envelope {
	t.Helper()
	return do(t, srv, http.MethodGet, path, "", "", http.StatusOK)
}

func decode[T any](t *testing.T, env envelope) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(env.Data, &v); err != nil {
		t.Fatalf("decode data: %v (%s)", err, env.Data)
	}
	return v
}

// signup registers email and returns its bearer token.
func signup(t *testing.T, srv *Server, email string) string {
	t.Helper()
	env := do(t, srv, http.MethodPost, "/api/v1/auth/signup", "",
		`{"email":"`+email+`","password":"password123"}`, http.StatusCreated)
	return decode[sessionResponse](t, env).Token
}

// seedWorkflow creates, as admin, a published workflow of two assays with
// B depending on A. A has a sampleCount parameter and a formula step.
func seedWorkflow(t *testing.T, srv *Server, admin string) (wf model.Workflow, a, b model.Assay) {
	t.Helper()
	a = decode[model.Assay](t, do(t, srv, http.MethodPost, "/api/v1/assays/", admin, `{
		"workflow_id": "wf_seed", "title": "Plasmid Prep",
		"description": "Extract plasmid DNA", "protocol": "Spin, lyse, bind, elute.",
		"estimated_time": "2 hours",
		"parameters": [{"name": "sampleCount", "description": "Samples", "type": "number", "default_value": 2}]
	}`, http.StatusCreated))
	b = decode[model.Assay](t, do(t, srv, http.MethodPost, "/api/v1/assays/", admin, `{
		"workflow_id": "wf_seed", "title": "Digest",
		"description": "Restriction digest", "protocol": "Mix DNA with enzyme.",
		"estimated_time": "1 hour"
	}`, http.StatusCreated))
	do(t, srv, http.MethodPost, "/api/v1/assays/"+a.ID+"/steps/", admin,
		`{"title":"Add buffer","calculation_formula":"${sampleCount} * 2.5"}`, http.StatusCreated)
	do(t, srv, http.MethodPost, "/api/v1/assays/"+a.ID+"/steps/", admin,
		`{"title":"Spin"}`, http.StatusCreated)
	do(t, srv, http.MethodPost, "/api/v1/assays/"+b.ID+"/steps/", admin,
		`{"title":"Incubate"}`, http.StatusCreated)

	wf = decode[model.Workflow](t, do(t, srv, http.MethodPost, "/api/v1/workflows/", admin, `{
		"title": "Plasmid Cloning", "difficulty": "intermediate", "status": "published",
		"assay_ids": ["`+b.ID+`", "`+a.ID+`"],
		"dependencies": [{"from_assay_id": "`+a.ID+`", "to_assay_id": "`+b.ID+`"}]
	}`, http.StatusCreated))
	return wf, a, b
}

func TestDiscovery(t *testing.T) {
	srv := testServer(t)
	env := doGet(t, srv, "/api/v1/")
	if env.Status != "ok" {
		t.Errorf("status = %q, want ok", env.Status)
	}
	if env.RequestID == "" {
		t.Error("request_id is empty")
	}

	data := decode[struct {
		Name      string `json:"name"`
		Endpoints []struct {
			Path string `json:"path"`
		} `json:"endpoints"`
	}](t, env)
	if data.Name != "LabFlow API" {
		t.Errorf("name = %q, want LabFlow API", data.Name)
	}
	if len(data.Endpoints) < 20 {
		t.Errorf("endpoints count = %d, want >= 20", len(data.Endpoints))
	}
}

func TestHealth(t *testing.T) {
	srv := testServer(t)
	data := decode[healthResponse](t, doGet(t, srv, "/api/v1/health"))
	if data.Status != "healthy" || data.Store != "ok" {
		t.Errorf("health = %+v", data)
	}
	if data.Version != Version {
		t.Errorf("version = %q, want %s", data.Version, Version)
	}
}

func TestAuth_SignupLoginMe(t *testing.T) {
	srv := testServer(t)
	signup(t, srv, "ada@lab.test")

	env := do(t, srv, http.MethodPost, "/api/v1/auth/login", "",
		`{"email":"ada@lab.test","password":"password123"}`, http.StatusOK)
	sess := decode[sessionResponse](t, env)
	if !strings.HasPrefix(sess.Token, "sess_") || sess.User == nil || sess.User.Role != model.RoleUser {
		t.Fatalf("login = %+v", sess)
	}

	me := decode[model.User](t, do(t, srv, http.MethodGet, "/api/v1/auth/me", sess.Token, "", http.StatusOK))
	if me.Email != "ada@lab.test" {
		t.Errorf("me.Email = %q", me.Email)
	}

	do(t, srv, http.MethodPost, "/api/v1/auth/login", "",
		`{"email":"ada@lab.test","password":"nope-nope"}`, http.StatusUnauthorized)
	do(t, srv, http.MethodPost, "/api/v1/auth/signup", "",
		`{"email":"ada@lab.test","password":"password123"}`, http.StatusConflict)

	do(t, srv, http.MethodPost, "/api/v1/auth/logout", sess.Token, "", http.StatusOK)
	env = do(t, srv, http.MethodGet, "/api/v1/auth/me", sess.Token, "", http.StatusUnauthorized)
	if env.Error == nil || env.Error.Code != model.ErrUnauthorized {
		t.Errorf("error = %+v, want UNAUTHORIZED", env.Error)
	}
}

func TestSignup_ValidationDetails(t *testing.T) {
	srv := testServer(t)
	env := do(t, srv, http.MethodPost, "/api/v1/auth/signup", "",
		`{"email":"nope","password":"short"}`, http.StatusBadRequest)
	if env.Error.Code != model.ErrValidation || len(env.Error.Details) != 2 {
		t.Errorf("error = %+v", env.Error)
	}
}

func TestCatalogWrites_RequireAdmin(t *testing.T) {
	srv := testServer(t)
	user := signup(t, srv, "ada@lab.test")
	body := `{"title":"Some Workflow","difficulty":"beginner"}`

	do(t, srv, http.MethodPost, "/api/v1/workflows/", "", body, http.StatusUnauthorized)
	env := do(t, srv, http.MethodPost, "/api/v1/workflows/", user, body, http.StatusForbidden)
	if env.Error.Code != model.ErrForbidden {
		t.Errorf("code = %q, want FORBIDDEN", env.Error.Code)
	}
	do(t, srv, http.MethodGet, "/api/v1/admin/users", user, "", http.StatusForbidden)

	admin := signup(t, srv, adminEmail)
	do(t, srv, http.MethodPost, "/api/v1/workflows/", admin, body, http.StatusCreated)
	users := decode[[]model.User](t, do(t, srv, http.MethodGet, "/api/v1/admin/users", admin, "", http.StatusOK))
	if len(users) != 2 {
		t.Errorf("users = %d, want 2", len(users))
	}
}

func TestInvalidBearerToken(t *testing.T) {
	srv := testServer(t)
	do(t, srv, http.MethodGet, "/api/v1/workflows/", "sess_bogus", "", http.StatusUnauthorized)
}

func TestWorkflowCRUD(t *testing.T) {
	srv := testServer(t)
	admin := signup(t, srv, adminEmail)
	wf, a, b := seedWorkflow(t, srv, admin)

	if !strings.HasPrefix(wf.ID, "wf_") || wf.CreatedBy == "" {
		t.Errorf("workflow = %+v", wf)
	}

	env := doGet(t, srv, "/api/v1/workflows/")
	if env.Pagination == nil || env.Pagination.Total != 1 {
		t.Errorf("pagination = %+v", env.Pagination)
	}

	assays := decode[[]model.Assay](t, doGet(t, srv, "/api/v1/workflows/"+wf.ID+"/assays"))
	got := []string{assays[0].ID, assays[1].ID}
	if diff := cmp.Diff([]string{a.ID, b.ID}, got); diff != "" {
		t.Errorf("assay order mismatch (-want +got):\n%s", diff)
	}

	graph := decode[struct {
		Nodes []assaygraph.Node `json:"nodes"`
		Edges []assaygraph.Edge `json:"edges"`
		Order []string          `json:"order"`
	}](t, doGet(t, srv, "/api/v1/workflows/"+wf.ID+"/graph"))
	if len(graph.Nodes) != 2 || len(graph.Edges) != 1 || graph.Nodes[0].Label == "" {
		t.Errorf("graph = %+v", graph)
	}

	updated := decode[model.Workflow](t, do(t, srv, http.MethodPut, "/api/v1/workflows/"+wf.ID, admin,
		`{"title":"Plasmid Cloning v2"}`, http.StatusOK))
	if updated.Title != "Plasmid Cloning v2" || updated.Difficulty != model.DifficultyIntermediate {
		t.Errorf("updated = %+v", updated)
	}

	// A patch that introduces a cycle is rejected.
	env = do(t, srv, http.MethodPut, "/api/v1/workflows/"+wf.ID, admin,
		`{"dependencies":[{"from_assay_id":"`+a.ID+`","to_assay_id":"`+b.ID+`"},{"from_assay_id":"`+b.ID+`","to_assay_id":"`+a.ID+`"}]}`,
		http.StatusBadRequest)
	if env.Error.Code != model.ErrValidation {
		t.Errorf("cycle error = %+v", env.Error)
	}

	do(t, srv, http.MethodDelete, "/api/v1/workflows/"+wf.ID, admin, "", http.StatusOK)
	env = do(t, srv, http.MethodGet, "/api/v1/workflows/"+wf.ID, "", "", http.StatusNotFound)
	if env.Error.Code != model.ErrNotFound {
		t.Errorf("code = %q, want NOT_FOUND", env.Error.Code)
	}
}

func TestUnpublishedWorkflowsHiddenFromNonAdmins(t *testing.T) {
	srv := testServer(t)
	admin := signup(t, srv, adminEmail)
	user := signup(t, srv, "bench@lab.test")
	wf, _, _ := seedWorkflow(t, srv, admin)
	do(t, srv, http.MethodPut, "/api/v1/workflows/"+wf.ID, admin, `{"status":"draft"}`, http.StatusOK)

	for _, token := range []string{"", user} {
		env := do(t, srv, http.MethodGet, "/api/v1/workflows/?status=draft", token, "", http.StatusOK)
		if env.Pagination.Total != 0 {
			t.Errorf("token %q: draft list total = %d, want 0", token, env.Pagination.Total)
		}
		do(t, srv, http.MethodGet, "/api/v1/workflows/"+wf.ID, token, "", http.StatusNotFound)
		do(t, srv, http.MethodGet, "/api/v1/workflows/"+wf.ID+"/assays", token, "", http.StatusNotFound)
	}
	do(t, srv, http.MethodPost, "/api/v1/runs/", user,
		`{"workflow_id":"`+wf.ID+`","parameters":{"sampleCount":3}}`, http.StatusNotFound)

	env := do(t, srv, http.MethodGet, "/api/v1/workflows/?status=draft", admin, "", http.StatusOK)
	if env.Pagination.Total != 1 {
		t.Errorf("admin draft list total = %d, want 1", env.Pagination.Total)
	}
	do(t, srv, http.MethodGet, "/api/v1/workflows/"+wf.ID, admin, "", http.StatusOK)
	do(t, srv, http.MethodPost, "/api/v1/runs/", admin,
		`{"workflow_id":"`+wf.ID+`","parameters":{"sampleCount":3}}`, http.StatusCreated)
}

func TestCreateWorkflow_InvalidJSON(t *testing.T) {
	srv := testServer(t)
	admin := signup(t, srv, adminEmail)
	env := do(t, srv, http.MethodPost, "/api/v1/workflows/", admin, "not json", http.StatusBadRequest)
	if !strings.HasPrefix(env.Error.Message, "Invalid JSON body") {
		t.Errorf("message = %q", env.Error.Message)
	}
}

func TestImportWorkflowAndAssay(t *testing.T) {
	srv := testServer(t)
	admin := signup(t, srv, adminEmail)

	body := `{
		"title": "Western Blot", "difficulty": "advanced", "status": "published",
		"assays": [
			{"key": "gel", "title": "SDS-PAGE", "description": "Separate proteins by size",
			 "protocol": "Load lysate and run at 120V.", "estimated_time": "90 minutes",
			 "steps": [{"title": "Load"}, {"title": "Run"}]},
			{"key": "transfer", "title": "Transfer", "description": "Move proteins to membrane",
			 "protocol": "Wet transfer at 100V for one hour.", "estimated_time": "1 hour",
			 "steps": [{"title": "Assemble sandwich"}]}
		],
		"dependencies": [{"from_assay_id": "gel", "to_assay_id": "transfer"}]
	}`
	wf := decode[model.Workflow](t, do(t, srv, http.MethodPost, "/api/v1/workflows/import", admin, body, http.StatusCreated))
	if len(wf.AssayIDs) != 2 || wf.Dependencies[0].FromAssayID != wf.AssayIDs[0] {
		t.Fatalf("workflow = %+v", wf)
	}
	assays := decode[[]model.Assay](t, doGet(t, srv, "/api/v1/workflows/"+wf.ID+"/assays"))
	if len(assays) != 2 || assays[0].Title != "SDS-PAGE" {
		t.Errorf("assays = %+v", assays)
	}

	user := signup(t, srv, "bench@lab.test")
	do(t, srv, http.MethodPost, "/api/v1/workflows/import", user, body, http.StatusForbidden)

	type imported struct {
		model.Assay
		Steps []model.Step `json:"steps"`
	}
	a := decode[imported](t, do(t, srv, http.MethodPost, "/api/v1/assays/import", admin, `{
		"workflow_id": "`+wf.ID+`", "title": "Blocking", "description": "Block the membrane",
		"protocol": "Incubate in 5% milk for an hour.", "estimated_time": "1 hour",
		"parameters": [{"name": "volume", "description": "Milk volume", "type": "number", "default_value": 10}],
		"steps": [{"title": "Block", "formula": "${volume} * 2"}]
	}`, http.StatusCreated))
	if len(a.Steps) != 1 || a.Steps[0].AssayID != a.ID {
		t.Errorf("imported assay = %+v", a)
	}

	do(t, srv, http.MethodPost, "/api/v1/assays/import", admin, `{
		"workflow_id": "`+wf.ID+`", "title": "Bad Formula", "description": "References nothing",
		"protocol": "This step formula names an unknown parameter.", "estimated_time": "1 hour",
		"steps": [{"title": "Oops", "formula": "${missing} + 1"}]
	}`, http.StatusBadRequest)
}

func TestValidateGraph(t *testing.T) {
	srv := testServer(t)
	admin := signup(t, srv, adminEmail)

	n := func(id string) string { return assaygraph.NodeID(id) }
	body := `{"nodes":[{"id":"` + n("a") + `"},{"id":"` + n("b") + `"},{"id":"` + n("c") + `"}],
		"edges":[{"source":"` + n("a") + `","target":"` + n("b") + `"},{"source":"` + n("b") + `","target":"` + n("c") + `"}]}`
	res := decode[graphValidation](t, do(t, srv, http.MethodPost, "/api/v1/workflows/graph/validate", admin, body, http.StatusOK))
	if !res.Valid {
		t.Fatalf("errors = %v", res.Errors)
	}
	if diff := cmp.Diff([]string{"a", "b", "c"}, res.Order); diff != "" {
		t.Errorf("order mismatch (-want +got):\n%s", diff)
	}

	cyclic := `{"nodes":[{"id":"` + n("a") + `"},{"id":"` + n("b") + `"}],
		"edges":[{"source":"` + n("a") + `","target":"` + n("b") + `"},{"source":"` + n("b") + `","target":"` + n("a") + `"}]}`
	res = decode[graphValidation](t, do(t, srv, http.MethodPost, "/api/v1/workflows/graph/validate", admin, cyclic, http.StatusOK))
	if res.Valid || len(res.Errors) != 1 || res.Order == nil || len(res.Order) != 0 {
		t.Errorf("cyclic result = %+v", res)
	}
}

func TestAssayQuantities(t *testing.T) {
	srv := testServer(t)
	admin := signup(t, srv, adminEmail)
	_, a, _ := seedWorkflow(t, srv, admin)

	steps := decode[[]model.Step](t, doGet(t, srv, "/api/v1/assays/"+a.ID+"/steps/"))
	if len(steps) != 2 || steps[0].Order != 1 || steps[1].Order != 2 {
		t.Fatalf("steps = %+v", steps)
	}
	if diff := cmp.Diff([]string{"sampleCount"}, steps[0].CalculationDependencies); diff != "" {
		t.Errorf("dependencies mismatch (-want +got):\n%s", diff)
	}

	res := decode[quantitiesResponse](t, doGet(t, srv, "/api/v1/assays/"+a.ID+"/quantities"))
	if q := res.Quantities[steps[0].ID]; q.Value != 5 || q.Error != "" {
		t.Errorf("default quantity = %+v, want 5", q)
	}
	if _, ok := res.Quantities[steps[1].ID]; ok {
		t.Error("step without formula has a quantity")
	}

	res = decode[quantitiesResponse](t, doGet(t, srv, "/api/v1/assays/"+a.ID+"/quantities?sampleCount=4"))
	if q := res.Quantities[steps[0].ID]; q.Value != 10 {
		t.Errorf("quantity = %+v, want 10", q)
	}
}

func TestFormulaEvaluate(t *testing.T) {
	srv := testServer(t)
	user := signup(t, srv, "bench@lab.test")

	do(t, srv, http.MethodPost, "/api/v1/formula/evaluate", "",
		`{"formula":"1 + 1"}`, http.StatusUnauthorized)

	res := decode[evaluateResponse](t, do(t, srv, http.MethodPost, "/api/v1/formula/evaluate", user,
		`{"formula":"${volume} * ${count}","parameters":{"volume":2.5,"count":4}}`, http.StatusOK))
	want := evaluateResponse{
		Formula:      "${volume} * ${count}",
		Expression:   "2.5 * 4",
		Dependencies: []string{"volume", "count"},
		Value:        10,
	}
	if diff := cmp.Diff(want, res); diff != "" {
		t.Errorf("evaluate mismatch (-want +got):\n%s", diff)
	}

	res = decode[evaluateResponse](t, do(t, srv, http.MethodPost, "/api/v1/formula/evaluate", user,
		`{"formula":"${missing} * 2"}`, http.StatusOK))
	if res.Error == "" || res.Value != 0 {
		t.Errorf("missing parameter result = %+v", res)
	}

	res = decode[evaluateResponse](t, do(t, srv, http.MethodPost, "/api/v1/formula/evaluate", user,
		`{"formula":"new Array(5e7).fill(1).length"}`, http.StatusOK))
	if !strings.Contains(res.Error, "not an arithmetic expression") {
		t.Errorf("non-arithmetic result = %+v", res)
	}

	do(t, srv, http.MethodPost, "/api/v1/formula/evaluate", user, `{"formula":"  "}`, http.StatusBadRequest)
}

func TestRunLifecycle(t *testing.T) {
	srv := testServer(t)
	admin := signup(t, srv, adminEmail)
	wf, a, b := seedWorkflow(t, srv, admin)
	user := signup(t, srv, "ada@lab.test")

	do(t, srv, http.MethodPost, "/api/v1/runs/", "", `{"workflow_id":"`+wf.ID+`"}`, http.StatusUnauthorized)
	do(t, srv, http.MethodPost, "/api/v1/runs/", user, `{}`, http.StatusBadRequest)
	do(t, srv, http.MethodPost, "/api/v1/runs/", user, `{"workflow_id":"wf_missing"}`, http.StatusNotFound)

	run := decode[runDetail](t, do(t, srv, http.MethodPost, "/api/v1/runs/", user,
		`{"workflow_id":"`+wf.ID+`","parameters":{"sampleCount":3}}`, http.StatusCreated))
	if run.CurrentAssayID != a.ID || run.Status != model.RunInProgress {
		t.Fatalf("run = %+v", run.UserWorkflow)
	}
	if diff := cmp.Diff(catalog.RunProgress{AssayIndex: 0, AssayCount: 2, StepIndex: 0, StepCount: 2}, run.Progress); diff != "" {
		t.Errorf("progress mismatch (-want +got):\n%s", diff)
	}

	// Another user cannot see the run; the admin can.
	other := signup(t, srv, "bob@lab.test")
	do(t, srv, http.MethodGet, "/api/v1/runs/"+run.ID, other, "", http.StatusForbidden)
	do(t, srv, http.MethodGet, "/api/v1/runs/"+run.ID, admin, "", http.StatusOK)
	if env := do(t, srv, http.MethodGet, "/api/v1/runs/", other, "", http.StatusOK); env.Pagination.Total != 0 {
		t.Errorf("other user sees %d runs", env.Pagination.Total)
	}
	if env := do(t, srv, http.MethodGet, "/api/v1/runs/", admin, "", http.StatusOK); env.Pagination.Total != 1 {
		t.Errorf("admin sees %d runs, want 1", env.Pagination.Total)
	}

	run = decode[runDetail](t, do(t, srv, http.MethodPost, "/api/v1/runs/"+run.ID+"/advance", user, "", http.StatusOK))
	if run.Progress.StepIndex != 1 {
		t.Errorf("after first advance progress = %+v", run.Progress)
	}
	run = decode[runDetail](t, do(t, srv, http.MethodPost, "/api/v1/runs/"+run.ID+"/advance", user, "", http.StatusOK))
	if run.CurrentAssayID != b.ID || run.Progress.AssayIndex != 1 {
		t.Errorf("after second advance run = %+v", run)
	}

	run = decode[runDetail](t, do(t, srv, http.MethodPut, "/api/v1/runs/"+run.ID, user,
		`{"notes":"gel looked faint"}`, http.StatusOK))
	if run.Notes != "gel looked faint" {
		t.Errorf("notes = %q", run.Notes)
	}

	run = decode[runDetail](t, do(t, srv, http.MethodPost, "/api/v1/runs/"+run.ID+"/complete", user, "", http.StatusOK))
	if run.Status != model.RunCompleted || run.CompletedAt == nil {
		t.Errorf("completed run = %+v", run.UserWorkflow)
	}

	env := do(t, srv, http.MethodPost, "/api/v1/runs/"+run.ID+"/abandon", user, "", http.StatusConflict)
	if env.Error.Code != model.ErrConflict {
		t.Errorf("code = %q, want CONFLICT", env.Error.Code)
	}
	do(t, srv, http.MethodPost, "/api/v1/runs/"+run.ID+"/advance", user, "", http.StatusConflict)
}

func TestStartRun_NoAssays(t *testing.T) {
	srv := testServer(t)
	admin := signup(t, srv, adminEmail)
	wf := decode[model.Workflow](t, do(t, srv, http.MethodPost, "/api/v1/workflows/", admin,
		`{"title":"Empty Workflow","difficulty":"beginner","status":"published"}`, http.StatusCreated))

	do(t, srv, http.MethodPost, "/api/v1/runs/", admin, `{"workflow_id":"`+wf.ID+`"}`, http.StatusUnprocessableEntity)
}

func TestSetUserRole(t *testing.T) {
	srv := testServer(t)
	admin := signup(t, srv, adminEmail)
	signup(t, srv, "ada@lab.test")

	users := decode[[]model.User](t, do(t, srv, http.MethodGet, "/api/v1/admin/users", admin, "", http.StatusOK))
	var adaID, adminID string
	for _, u := range users {
		switch u.Email {
		case "ada@lab.test":
			adaID = u.ID
		case adminEmail:
			adminID = u.ID
		}
	}

	u := decode[model.User](t, do(t, srv, http.MethodPut, "/api/v1/admin/users/"+adaID+"/role", admin,
		`{"role":"admin"}`, http.StatusOK))
	if u.Role != model.RoleAdmin {
		t.Errorf("role = %q, want admin", u.Role)
	}
	do(t, srv, http.MethodPut, "/api/v1/admin/users/"+adaID+"/role", admin, `{"role":"owner"}`, http.StatusBadRequest)
	do(t, srv, http.MethodPut, "/api/v1/admin/users/"+adminID+"/role", admin, `{"role":"user"}`, http.StatusBadRequest)
	do(t, srv, http.MethodPut, "/api/v1/admin/users/user_missing/role", admin, `{"role":"user"}`, http.StatusNotFound)
}

func TestResponseEnvelope_XRequestIDHeader(t *testing.T) {
	srv := testServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	if xReqID := w.Header().Get("X-Request-ID"); !strings.HasPrefix(xReqID, "req_") {
		t.Errorf("X-Request-ID header = %q, want req_ prefix", xReqID)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	req.Header.Set("X-Request-ID", "trace-123")
	w = httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	var env envelope
	json.Unmarshal(w.Body.Bytes(), &env)
	if env.RequestID != "trace-123" {
		t.Errorf("request_id = %q, want caller's trace-123", env.RequestID)
	}
}
