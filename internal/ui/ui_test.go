package ui

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/me/labflow/internal/auth"
	"github.com/me/labflow/internal/catalog"
	"github.com/me/labflow/internal/config"
	"github.com/me/labflow/internal/logging"
	"github.com/me/labflow/internal/store"
	"github.com/me/labflow/pkg/model"
)

const adminEmail = "admin@lab.test"

type testUI struct {
	ui      *UI
	router  chi.Router
	catalog *catalog.Catalog
	acc     *auth.Accounts
}

func setupUI(t *testing.T) *testUI {
	t.Helper()
	st := store.NewMemoryStore(logging.Discard())
	cfg := config.DefaultServerConfig()
	cfg.Admins = []string{adminEmail}

	cat := catalog.New(st, logging.Discard())
	acc := auth.NewAccounts(st, auth.NewSessionManager(st, time.Hour), cfg, logging.Discard())
	acc.SetPasswordParams(auth.PasswordParams{Memory: 64, Iterations: 1, Parallelism: 1, SaltLen: 16, KeyLen: 32})

	u := New(cat, acc, logging.Discard(), Config{})
	r := chi.NewRouter()
	u.RegisterRoutes(r)
	return &testUI{ui: u, router: r, catalog: cat, acc: acc}
}

// signup registers email and returns its session cookie.
func (tu *testUI) signup(t *testing.T, email string) *http.Cookie {
	t.Helper()
	_, sess, err := tu.acc.Signup(context.Background(), email, "password123", "")
	if err != nil {
		t.Fatalf("Signup(%s): %v", email, err)
	}
	return &http.Cookie{Name: auth.SessionCookieName, Value: sess.ID}
}

func (tu *testUI) do(t *testing.T, method, target string, form url.Values, cookie *http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	var body *strings.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	} else {
		body = strings.NewReader("")
	}
	req := httptest.NewRequest(method, target, body)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if cookie != nil {
		req.AddCookie(cookie)
	}
	w := httptest.NewRecorder()
	tu.router.ServeHTTP(w, req)
	return w
}

// seed creates a published workflow with two assays, B after A, each with
// one step. Assay A has a numeric sampleCount parameter and a formula step.
func (tu *testUI) seed(t *testing.T) (*model.Workflow, *model.Assay, *model.Assay) {
	t.Helper()
	ctx := context.Background()
	def := 2.0
	a, err := tu.catalog.CreateAssay(ctx, &model.Assay{
		WorkflowID:    "wf_pending",
		Title:         "Plasmid Prep",
		Description:   "Extract plasmid DNA from culture",
		Protocol:      "Spin down, lyse, bind, wash, elute.",
		EstimatedTime: "2 hours",
		Parameters: []model.AssayParameter{{
			Name: "sampleCount", Description: "Samples", Type: model.ParamNumber, DefaultValue: def,
		}},
	})
	if err != nil {
		t.Fatalf("CreateAssay A: %v", err)
	}
	b, err := tu.catalog.CreateAssay(ctx, &model.Assay{
		WorkflowID:    "wf_pending",
		Title:         "Digest",
		Description:   "Restriction digest of the plasmid",
		Protocol:      "Mix DNA with enzyme and buffer.",
		EstimatedTime: "1 hour",
	})
	if err != nil {
		t.Fatalf("CreateAssay B: %v", err)
	}
	if _, err := tu.catalog.CreateStep(ctx, &model.Step{
		AssayID: a.ID, Title: "Add buffer", Description: "Add lysis buffer",
		EstimatedTime: "5 minutes", CalculationFormula: "${sampleCount} * 2.5",
	}); err != nil {
		t.Fatalf("CreateStep A: %v", err)
	}
	if _, err := tu.catalog.CreateStep(ctx, &model.Step{
		AssayID: b.ID, Title: "Incubate", Description: "Incubate at 37C", EstimatedTime: "1 hour",
	}); err != nil {
		t.Fatalf("CreateStep B: %v", err)
	}
	wf, err := tu.catalog.CreateWorkflow(ctx, &model.Workflow{
		Title:        "Plasmid Cloning",
		Description:  "From culture to digested plasmid",
		Difficulty:   model.DifficultyIntermediate,
		Status:       model.StatusPublished,
		AssayIDs:     []string{b.ID, a.ID},
		Dependencies: []model.AssayDependency{{FromAssayID: a.ID, ToAssayID: b.ID}},
	})
	if err != nil {
		t.Fatalf("CreateWorkflow: %v", err)
	}
	return wf, a, b
}

func TestRenderTemplate_UnknownTemplate(t *testing.T) {
	var buf bytes.Buffer
	if err := renderTemplate(&buf, "nope", nil); err == nil {
		t.Error("expected error for unknown template")
	}
}

func TestHome_ShowsFeaturedWorkflows(t *testing.T) {
	tu := setupUI(t)
	tu.seed(t)

	w := tu.do(t, http.MethodGet, "/", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body)
	}
	body := w.Body.String()
	for _, want := range []string{"Featured Workflows", "Plasmid Cloning", "Sign in"} {
		if !strings.Contains(body, want) {
			t.Errorf("home page missing %q", want)
		}
	}
}

func TestDashboard_RedirectsToLogin(t *testing.T) {
	tu := setupUI(t)

	w := tu.do(t, http.MethodGet, "/dashboard", nil, nil)
	if w.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want 303", w.Code)
	}
	if loc := w.Header().Get("Location"); loc != "/login?next=%2Fdashboard" {
		t.Errorf("Location = %q", loc)
	}
}

func TestLoginPost(t *testing.T) {
	tu := setupUI(t)
	tu.signup(t, "ada@lab.test")

	w := tu.do(t, http.MethodPost, "/login", url.Values{
		"email": {"ada@lab.test"}, "password": {"password123"}, "next": {"/assays"},
	}, nil)
	if w.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body)
	}
	if loc := w.Header().Get("Location"); loc != "/assays" {
		t.Errorf("Location = %q, want /assays", loc)
	}
	var found bool
	for _, c := range w.Result().Cookies() {
		if c.Name == auth.SessionCookieName && c.Value != "" {
			found = true
		}
	}
	if !found {
		t.Error("no session cookie set")
	}

	w = tu.do(t, http.MethodPost, "/login", url.Values{
		"email": {"ada@lab.test"}, "password": {"wrong-password"},
	}, nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("bad password status = %d, want 401", w.Code)
	}
	if !strings.Contains(w.Body.String(), "Invalid email or password") {
		t.Error("bad password page missing error message")
	}
}

func TestSignupPost_FieldErrors(t *testing.T) {
	tu := setupUI(t)

	w := tu.do(t, http.MethodPost, "/signup", url.Values{
		"email": {"not-an-email"}, "password": {"short"},
	}, nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}

	w = tu.do(t, http.MethodPost, "/signup", url.Values{
		"email": {"new@lab.test"}, "password": {"password123"},
	}, nil)
	if w.Code != http.StatusSeeOther || w.Header().Get("Location") != "/dashboard" {
		t.Errorf("signup status = %d, Location = %q", w.Code, w.Header().Get("Location"))
	}

	w = tu.do(t, http.MethodPost, "/signup", url.Values{
		"email": {"new@lab.test"}, "password": {"password123"},
	}, nil)
	if w.Code != http.StatusConflict {
		t.Errorf("duplicate signup status = %d, want 409", w.Code)
	}
}

func TestSafeRedirect(t *testing.T) {
	tests := []struct {
		next, want string
	}{
		{"", "/dashboard"},
		{"/workflows/wf_1", "/workflows/wf_1"},
		{"//evil.example", "/dashboard"},
		{"https://evil.example", "/dashboard"},
		{"/\\evil.example", "/dashboard"},
	}
	for _, tt := range tests {
		if got := safeRedirect(tt.next, "/dashboard"); got != tt.want {
			t.Errorf("safeRedirect(%q) = %q, want %q", tt.next, got, tt.want)
		}
	}
}

func TestAssayDetail_ComputesQuantities(t *testing.T) {
	tu := setupUI(t)
	_, a, _ := tu.seed(t)

	w := tu.do(t, http.MethodGet, "/assays/"+a.ID, nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body)
	}
	if !strings.Contains(w.Body.String(), ">5</span>") {
		t.Error("default sampleCount of 2 should yield 5")
	}

	w = tu.do(t, http.MethodGet, "/assays/"+a.ID+"?sampleCount=4", nil, nil)
	if !strings.Contains(w.Body.String(), ">10</span>") {
		t.Error("sampleCount=4 should yield 10")
	}

	w = tu.do(t, http.MethodGet, "/assays/missing", nil, nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("missing assay status = %d, want 404", w.Code)
	}
}

func TestWorkflowRun_StartAdvanceComplete(t *testing.T) {
	tu := setupUI(t)
	wf, a, b := tu.seed(t)
	cookie := tu.signup(t, "ada@lab.test")

	w := tu.do(t, http.MethodGet, "/workflows/"+wf.ID, nil, cookie)
	if w.Code != http.StatusOK {
		t.Fatalf("detail status = %d", w.Code)
	}
	body := w.Body.String()
	if strings.Index(body, a.Title) > strings.Index(body, b.Title) {
		t.Error("assays not listed in dependency order")
	}
	if !strings.Contains(body, "Start this workflow") {
		t.Error("missing start button")
	}

	w = tu.do(t, http.MethodPost, "/workflows/"+wf.ID+"/start", url.Values{}, cookie)
	if w.Code != http.StatusSeeOther {
		t.Fatalf("start status = %d, body = %s", w.Code, w.Body)
	}

	runs, _, err := tu.catalog.FetchUserWorkflows(context.Background(), model.ListOptions{Limit: 10})
	if err != nil || len(runs) != 1 {
		t.Fatalf("runs = %v, err = %v", runs, err)
	}
	run := runs[0]
	if run.CurrentAssayID != a.ID {
		t.Errorf("run starts on %s, want %s", run.CurrentAssayID, a.ID)
	}

	w = tu.do(t, http.MethodGet, "/workflows/"+wf.ID, nil, cookie)
	if !strings.Contains(w.Body.String(), "Current step: Add buffer") {
		t.Error("detail page does not show current step")
	}

	w = tu.do(t, http.MethodPost, "/runs/"+run.ID+"/advance", url.Values{}, cookie)
	if w.Code != http.StatusSeeOther || w.Header().Get("Location") != "/workflows/"+wf.ID {
		t.Errorf("advance status = %d, Location = %q", w.Code, w.Header().Get("Location"))
	}

	// Another user may not touch the run.
	other := tu.signup(t, "bob@lab.test")
	w = tu.do(t, http.MethodPost, "/runs/"+run.ID+"/complete", url.Values{}, other)
	if w.Code != http.StatusNotFound {
		t.Errorf("foreign complete status = %d, want 404", w.Code)
	}

	w = tu.do(t, http.MethodPost, "/runs/"+run.ID+"/complete", url.Values{}, cookie)
	if w.Code != http.StatusSeeOther || w.Header().Get("Location") != "/dashboard" {
		t.Errorf("complete status = %d, Location = %q", w.Code, w.Header().Get("Location"))
	}

	w = tu.do(t, http.MethodPost, "/runs/"+run.ID+"/abandon", url.Values{}, cookie)
	if w.Code != http.StatusConflict {
		t.Errorf("abandon after complete status = %d, want 409", w.Code)
	}

	w = tu.do(t, http.MethodGet, "/dashboard", nil, cookie)
	if w.Code != http.StatusOK {
		t.Fatalf("dashboard status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "Plasmid Cloning") {
		t.Error("dashboard missing recent run")
	}
}

func TestStartRun_DraftAndUndeclaredFields(t *testing.T) {
	tu := setupUI(t)
	ctx := context.Background()
	wf, _, _ := tu.seed(t)
	cookie := tu.signup(t, "ada@lab.test")

	form := url.Values{"sampleCount": {"4"}, "submit": {"Start"}, "color": {"blue"}}
	w := tu.do(t, http.MethodPost, "/workflows/"+wf.ID+"/start", form, cookie)
	if w.Code != http.StatusSeeOther {
		t.Fatalf("start status = %d, body = %s", w.Code, w.Body)
	}
	runs, _, err := tu.catalog.FetchUserWorkflows(ctx, model.ListOptions{Limit: 10})
	if err != nil || len(runs) != 1 {
		t.Fatalf("runs = %v, err = %v", runs, err)
	}
	if got := runs[0].Parameters; len(got) != 1 || got["sampleCount"] != 4.0 {
		t.Errorf("run parameters = %v, want only sampleCount", got)
	}

	draft := model.StatusDraft
	if _, err := tu.catalog.UpdateWorkflow(ctx, wf.ID, model.WorkflowPatch{Status: &draft}); err != nil {
		t.Fatalf("UpdateWorkflow: %v", err)
	}
	other := tu.signup(t, "bob@lab.test")
	w = tu.do(t, http.MethodPost, "/workflows/"+wf.ID+"/start", url.Values{}, other)
	if w.Code != http.StatusNotFound {
		t.Errorf("start on draft status = %d, want 404", w.Code)
	}

	admin := tu.signup(t, adminEmail)
	w = tu.do(t, http.MethodPost, "/workflows/"+wf.ID+"/start", url.Values{}, admin)
	if w.Code != http.StatusSeeOther {
		t.Errorf("admin start on draft status = %d, want 303", w.Code)
	}
}

func TestAdmin_RequiresAdminRole(t *testing.T) {
	tu := setupUI(t)
	user := tu.signup(t, "ada@lab.test")
	admin := tu.signup(t, adminEmail)

	if w := tu.do(t, http.MethodGet, "/admin/", nil, user); w.Code != http.StatusForbidden {
		t.Errorf("user status = %d, want 403", w.Code)
	}
	if w := tu.do(t, http.MethodGet, "/admin/", nil, admin); w.Code != http.StatusOK {
		t.Errorf("admin status = %d, want 200", w.Code)
	}
}

func TestWorkflowNewPost(t *testing.T) {
	tu := setupUI(t)
	_, a, b := tu.seed(t)
	admin := tu.signup(t, adminEmail)

	form := url.Values{
		"title":       {"Digest Only"},
		"difficulty":  {"beginner"},
		"assay_ids":   {a.ID, b.ID},
		"dep_from":    {a.ID},
		"dep_to":      {b.ID},
		"description": {"Short workflow"},
	}
	w := tu.do(t, http.MethodPost, "/admin/workflows/new", form, admin)
	if w.Code != http.StatusSeeOther {
		t.Fatalf("create status = %d, body = %s", w.Code, w.Body)
	}
	id := strings.TrimPrefix(w.Header().Get("Location"), "/workflows/")
	wf, err := tu.catalog.GetWorkflow(context.Background(), id)
	if err != nil || wf == nil {
		t.Fatalf("GetWorkflow(%s) = %v, %v", id, wf, err)
	}
	if wf.Status != model.StatusDraft || len(wf.Dependencies) != 1 || wf.CreatedBy == "" {
		t.Errorf("created workflow = %+v", wf)
	}

	// A cycle is rejected and the form is shown again.
	form.Set("title", "Cyclic")
	form["dep_from"] = []string{a.ID, b.ID}
	form["dep_to"] = []string{b.ID, a.ID}
	w = tu.do(t, http.MethodPost, "/admin/workflows/new", form, admin)
	if w.Code != http.StatusBadRequest {
		t.Errorf("cycle status = %d, want 400", w.Code)
	}

	// Filtering re-renders the palette without creating anything.
	w = tu.do(t, http.MethodPost, "/admin/workflows/new?filter=1", url.Values{"q": {"digest"}}, admin)
	if w.Code != http.StatusOK {
		t.Fatalf("filter status = %d", w.Code)
	}
	if body := w.Body.String(); !strings.Contains(body, `value="`+b.ID+`"`) || strings.Contains(body, `name="assay_ids" value="`+a.ID+`"`) {
		t.Error("palette not filtered by query")
	}
}

func TestWorkflowNew_PaletteSearchesAllAssays(t *testing.T) {
	tu := setupUI(t)
	ctx := context.Background()
	admin := tu.signup(t, adminEmail)
	for i := 0; i <= model.MaxLimit; i++ {
		if _, err := tu.catalog.CreateAssay(ctx, &model.Assay{
			WorkflowID:    "wf_bulk",
			Title:         fmt.Sprintf("Screen %03d", i),
			Description:   "Bulk screening assay",
			Protocol:      "Plate cells and read.",
			EstimatedTime: "1 hour",
		}); err != nil {
			t.Fatalf("CreateAssay %d: %v", i, err)
		}
	}

	last := fmt.Sprintf("Screen %03d", model.MaxLimit)
	w := tu.do(t, http.MethodGet, "/admin/workflows/new?q="+url.QueryEscape(last), nil, admin)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), last) {
		t.Errorf("palette search does not find %q", last)
	}
}

func TestAssayNewPost(t *testing.T) {
	tu := setupUI(t)
	wf, _, _ := tu.seed(t)
	admin := tu.signup(t, adminEmail)

	form := url.Values{
		"title":             {"Gel Electrophoresis"},
		"description":       {"Separate DNA fragments by size"},
		"protocol":          {"Cast gel, load samples, run at 100V."},
		"estimated_time":    {"1 hour"},
		"workflow_id":       {wf.ID},
		"material_name":     {"Agarose", ""},
		"material_quantity": {"1", ""},
		"material_unit":     {"g", ""},
		"material_link":     {"", ""},
		"param_name":        {"lanes"},
		"param_description": {"Lanes on the gel"},
		"param_type":        {"number"},
		"param_required":    {"true"},
		"param_default":     {"8"},
		"step_title":        {"Cast gel", "Load"},
		"step_description":  {"Pour agarose", "Load ${lanes} lanes"},
		"step_time":         {"30 minutes", "10 minutes"},
		"step_formula":      {"", "${lanes} * 5"},
	}
	w := tu.do(t, http.MethodPost, "/admin/assays/new", form, admin)
	if w.Code != http.StatusSeeOther {
		t.Fatalf("create status = %d, body = %s", w.Code, w.Body)
	}
	id := strings.TrimPrefix(w.Header().Get("Location"), "/assays/")

	a, err := tu.catalog.GetAssay(context.Background(), id)
	if err != nil || a == nil {
		t.Fatalf("GetAssay = %v, %v", a, err)
	}
	if len(a.Materials) != 1 || len(a.Parameters) != 1 || a.Parameters[0].DefaultValue != 8.0 {
		t.Errorf("assay = %+v", a)
	}
	steps, _ := tu.catalog.FetchSteps(context.Background(), id)
	if len(steps) != 2 || steps[1].Order != 2 || steps[1].CalculationFormula == "" {
		t.Errorf("steps = %+v", steps)
	}

	// Missing fields re-render the form with messages.
	w = tu.do(t, http.MethodPost, "/admin/assays/new", url.Values{"title": {"X"}}, admin)
	if w.Code != http.StatusBadRequest {
		t.Errorf("invalid status = %d, want 400", w.Code)
	}
}
