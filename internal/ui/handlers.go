package ui

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"

	"github.com/me/labflow/internal/auth"
	"github.com/me/labflow/internal/catalog"
	"github.com/me/labflow/internal/formula"
	"github.com/me/labflow/internal/labutil"
	"github.com/me/labflow/pkg/model"
)

// featuredCount is the number of workflows shown on the home page.
const featuredCount = 3

// recentRuns is the number of runs listed on the dashboard.
const recentRuns = 5

// HandleHome renders the landing page with featured workflows.
func (ui *UI) HandleHome(w http.ResponseWriter, r *http.Request) {
	opts := model.ListOptions{Limit: featuredCount, Status: string(model.StatusPublished)}
	featured, _, err := ui.catalog.FetchWorkflows(r.Context(), opts)
	if err != nil {
		ui.renderError(w, r, "Failed to load workflows", err)
		return
	}

	data := ui.page(r, "Home", "/")
	data["Featured"] = featured
	ui.render(w, "home", data)
}

// --- Auth Handlers ---

// HandleLogin renders the login page.
func (ui *UI) HandleLogin(w http.ResponseWriter, r *http.Request) {
	// If already logged in, redirect to dashboard.
	if SessionFromContext(r.Context()) != nil {
		http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
		return
	}

	data := ui.page(r, "Sign in", "")
	data["Next"] = r.URL.Query().Get("next")
	ui.render(w, "login", data)
}

// HandleLoginPost processes the login form.
func (ui *UI) HandleLoginPost(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}

	email := strings.TrimSpace(r.FormValue("email"))
	password := r.FormValue("password")
	next := r.FormValue("next")

	fail := func(status int, msg string) {
		data := ui.page(r, "Sign in", "")
		data["Error"] = msg
		data["Email"] = email
		data["Next"] = next
		ui.renderStatus(w, status, "login", data)
	}

	if email == "" || password == "" {
		fail(http.StatusBadRequest, "Email and password are required")
		return
	}

	_, sess, err := ui.accounts.Login(r.Context(), email, password)
	if errors.Is(err, auth.ErrInvalidCredentials) {
		fail(http.StatusUnauthorized, "Invalid email or password")
		return
	}
	if err != nil {
		ui.logger.Error("login failed", "email", email, "error", err)
		fail(http.StatusInternalServerError, "Sign in failed, please try again")
		return
	}

	auth.SetSessionCookie(w, sess, ui.secure)
	http.Redirect(w, r, safeRedirect(next, "/dashboard"), http.StatusSeeOther)
}

// HandleSignup renders the signup page.
func (ui *UI) HandleSignup(w http.ResponseWriter, r *http.Request) {
	if SessionFromContext(r.Context()) != nil {
		http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
		return
	}
	ui.render(w, "signup", ui.page(r, "Sign up", ""))
}

// HandleSignupPost creates an account and signs it in.
func (ui *UI) HandleSignupPost(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Redirect(w, r, "/signup", http.StatusSeeOther)
		return
	}

	email := strings.TrimSpace(r.FormValue("email"))
	displayName := strings.TrimSpace(r.FormValue("display_name"))

	_, sess, err := ui.accounts.Signup(r.Context(), email, r.FormValue("password"), displayName)
	if err != nil {
		data := ui.page(r, "Sign up", "")
		data["Email"] = email
		data["DisplayName"] = displayName
		status := http.StatusBadRequest
		switch {
		case errors.Is(err, auth.ErrEmailTaken):
			data["Errors"] = map[string]string{"email": "An account with this email already exists"}
			status = http.StatusConflict
		case fieldErrors(err) != nil:
			data["Errors"] = fieldErrors(err)
		default:
			ui.logger.Error("signup failed", "email", email, "error", err)
			data["Error"] = "Sign up failed, please try again"
			status = http.StatusInternalServerError
		}
		ui.renderStatus(w, status, "signup", data)
		return
	}

	auth.SetSessionCookie(w, sess, ui.secure)
	http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
}

// HandleLogout clears the session and redirects home.
func (ui *UI) HandleLogout(w http.ResponseWriter, r *http.Request) {
	if sess := SessionFromContext(r.Context()); sess != nil {
		if err := ui.accounts.Logout(r.Context(), sess.ID); err != nil {
			ui.logger.Warn("logout failed", "session", sess.ID, "error", err)
		}
	}
	auth.ClearSessionCookie(w)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// safeRedirect returns next when it is a local path, fallback otherwise.
func safeRedirect(next, fallback string) string {
	if next == "" || !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.HasPrefix(next, "/\\") {
		return fallback
	}
	return next
}

// --- Dashboard ---

// HandleDashboard renders the signed-in user's run summary.
func (ui *UI) HandleDashboard(w http.ResponseWriter, r *http.Request) {
	sess := SessionFromContext(r.Context())

	var (
		activeCount, completedCount int
		recent                      []*model.UserWorkflow
	)
	g, ctx := errgroup.WithContext(r.Context())
	count := func(status model.RunStatus, dst *int) func() error {
		return func() error {
			_, total, err := ui.catalog.FetchUserWorkflows(ctx, model.ListOptions{
				Limit: 1, UserID: sess.UserID, Status: string(status),
			})
			*dst = total
			return err
		}
	}
	g.Go(count(model.RunInProgress, &activeCount))
	g.Go(count(model.RunCompleted, &completedCount))
	g.Go(func() error {
		var err error
		recent, _, err = ui.catalog.FetchUserWorkflows(ctx, model.ListOptions{Limit: recentRuns, UserID: sess.UserID})
		return err
	})
	if err := g.Wait(); err != nil {
		ui.renderError(w, r, "Failed to load your workflows", err)
		return
	}

	data := ui.page(r, "Dashboard", "/dashboard")
	data["ActiveCount"] = activeCount
	data["CompletedCount"] = completedCount
	data["Recent"] = recent
	data["WorkflowTitles"] = ui.workflowTitles(r.Context(), recent)
	ui.render(w, "dashboard", data)
}

// workflowTitles maps the workflow ids of runs to their titles. Missing
// workflows are left out.
func (ui *UI) workflowTitles(ctx context.Context, runs []*model.UserWorkflow) map[string]any {
	titles := make(map[string]any, len(runs))
	for _, uw := range runs {
		if _, ok := titles[uw.WorkflowID]; ok {
			continue
		}
		wf, err := ui.catalog.GetWorkflow(ctx, uw.WorkflowID)
		if err != nil || wf == nil {
			continue
		}
		titles[uw.WorkflowID] = wf.Title
	}
	return titles
}

// --- Workflow Handlers ---

// HandleWorkflowList renders the published workflows. Admins may pass
// ?status= to browse drafts and archived workflows.
func (ui *UI) HandleWorkflowList(w http.ResponseWriter, r *http.Request) {
	sess := SessionFromContext(r.Context())
	opts := ui.parseListOptions(r)
	if sess != nil && sess.IsAdmin() {
		opts.Status = r.URL.Query().Get("status")
	}

	workflows, total, err := ui.catalog.FetchWorkflows(r.Context(), opts)
	if err != nil {
		ui.renderError(w, r, "Failed to load workflows", err)
		return
	}

	data := ui.page(r, "Workflows", "/workflows")
	data["Workflows"] = workflows
	data["Query"] = opts.Search
	data["Pagination"] = ui.buildPagination(opts, total)
	ui.render(w, "workflows/list", data)
}

// HandleWorkflowDetail renders a workflow with its assays in dependency
// order and the caller's in-progress run, if any.
func (ui *UI) HandleWorkflowDetail(w http.ResponseWriter, r *http.Request) {
	sess := SessionFromContext(r.Context())
	id := chi.URLParam(r, "id")

	wf, err := ui.catalog.GetWorkflow(r.Context(), id)
	if err != nil {
		ui.renderError(w, r, "Failed to load workflow", err)
		return
	}
	if wf == nil || (!wf.IsPublished() && (sess == nil || !sess.IsAdmin())) {
		ui.renderNotFound(w, r, "Workflow not found")
		return
	}

	assays, err := ui.catalog.WorkflowAssays(r.Context(), wf)
	if err != nil {
		ui.renderError(w, r, "Failed to load assays", err)
		return
	}

	titles := make(map[string]string, len(assays))
	times := make([]string, 0, len(assays))
	for _, a := range assays {
		titles[a.ID] = a.Title
		times = append(times, a.EstimatedTime)
	}
	requires := make(map[string][]string)
	for _, d := range wf.Dependencies {
		requires[d.ToAssayID] = append(requires[d.ToAssayID], titles[d.FromAssayID])
	}
	total, _ := labutil.SumDurations(times...)

	data := ui.page(r, wf.Title, "/workflows")
	data["Workflow"] = wf
	data["Assays"] = assays
	data["Requires"] = requires
	data["TotalMinutes"] = total
	data["Run"] = (*model.UserWorkflow)(nil)

	if sess != nil {
		runs, _, err := ui.catalog.FetchUserWorkflows(r.Context(), model.ListOptions{
			Limit: 1, UserID: sess.UserID, WorkflowID: wf.ID, Status: string(model.RunInProgress),
		})
		if err != nil {
			ui.renderError(w, r, "Failed to load your run", err)
			return
		}
		if len(runs) > 0 {
			run := runs[0]
			progress, err := ui.catalog.Progress(r.Context(), run)
			if err != nil {
				ui.logger.Warn("run progress unavailable", "id", run.ID, "error", err)
			}
			step, _ := ui.catalog.GetStep(r.Context(), run.CurrentStepID)
			data["Run"] = run
			data["Progress"] = progress
			data["CurrentStep"] = step
		}
	}

	ui.render(w, "workflows/detail", data)
}

// HandleStartRun starts the caller on a published workflow. Posted form
// values for declared parameters are used as run parameters.
func (ui *UI) HandleStartRun(w http.ResponseWriter, r *http.Request) {
	sess := SessionFromContext(r.Context())
	id := chi.URLParam(r, "id")

	if err := r.ParseForm(); err != nil {
		http.Redirect(w, r, "/workflows/"+id, http.StatusSeeOther)
		return
	}

	wf, err := ui.catalog.GetWorkflow(r.Context(), id)
	if err != nil {
		ui.renderError(w, r, "Failed to load workflow", err)
		return
	}
	if wf == nil || (!wf.IsPublished() && !sess.IsAdmin()) {
		ui.renderNotFound(w, r, "Workflow not found")
		return
	}

	_, err = ui.catalog.StartWorkflow(r.Context(), wf.ProjectID, wf.ID, sess.UserID, formula.ParseValues(r.PostForm))
	if err != nil {
		ui.renderRunError(w, r, err)
		return
	}
	http.Redirect(w, r, "/workflows/"+wf.ID, http.StatusSeeOther)
}

// HandleRunAction wraps a run lifecycle call. Only the run's owner or an
// admin may act on it.
func (ui *UI) HandleRunAction(fn func(ctx context.Context, id string) (*model.UserWorkflow, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess := SessionFromContext(r.Context())
		id := chi.URLParam(r, "id")

		uw, err := ui.catalog.GetUserWorkflow(r.Context(), id)
		if err != nil {
			ui.renderError(w, r, "Failed to load run", err)
			return
		}
		if uw == nil || (uw.UserID != sess.UserID && !sess.IsAdmin()) {
			ui.renderNotFound(w, r, "Run not found")
			return
		}

		uw, err = fn(r.Context(), id)
		if err != nil {
			ui.renderRunError(w, r, err)
			return
		}
		if uw.Status.IsTerminal() {
			http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
			return
		}
		http.Redirect(w, r, "/workflows/"+uw.WorkflowID, http.StatusSeeOther)
	}
}

func (ui *UI) renderRunError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		status = http.StatusBadRequest
		msg    string
		ite    *model.InvalidTransitionError
	)
	switch {
	case errors.Is(err, catalog.ErrNoAssays):
		status, msg = http.StatusUnprocessableEntity, "This workflow has no assays yet"
	case errors.Is(err, catalog.ErrNoSteps):
		status, msg = http.StatusUnprocessableEntity, "This workflow's assays have no steps yet"
	case errors.Is(err, catalog.ErrRunClosed), errors.As(err, &ite):
		status, msg = http.StatusConflict, "This run is already finished"
	case fieldErrors(err) != nil:
		msg = err.Error()
	default:
		ui.renderError(w, r, "Failed to update run", err)
		return
	}
	data := ui.page(r, "Error", "")
	data["Message"] = msg
	ui.renderStatus(w, status, "error", data)
}

// --- Assay Handlers ---

// HandleAssayList renders the assay inventory.
func (ui *UI) HandleAssayList(w http.ResponseWriter, r *http.Request) {
	opts := ui.parseListOptions(r)

	assays, total, err := ui.catalog.FetchAssays(r.Context(), opts)
	if err != nil {
		ui.renderError(w, r, "Failed to load assays", err)
		return
	}

	data := ui.page(r, "Assays", "/assays")
	data["Assays"] = assays
	data["Query"] = opts.Search
	data["Pagination"] = ui.buildPagination(opts, total)
	ui.render(w, "assays/list", data)
}

// HandleAssayDetail renders an assay with its steps. Parameter values come
// from the query string and drive the calculated step quantities.
func (ui *UI) HandleAssayDetail(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	a, err := ui.catalog.GetAssay(r.Context(), id)
	if err != nil {
		ui.renderError(w, r, "Failed to load assay", err)
		return
	}
	if a == nil {
		ui.renderNotFound(w, r, "Assay not found")
		return
	}

	steps, err := ui.catalog.FetchSteps(r.Context(), a.ID)
	if err != nil {
		ui.renderError(w, r, "Failed to load steps", err)
		return
	}

	values, _ := model.ResolveParameters(a.Parameters, formula.ParseValues(r.URL.Query()))

	data := ui.page(r, a.Title, "/assays")
	data["Assay"] = a
	data["Steps"] = steps
	data["Values"] = values
	data["Quantities"] = ui.evaluator.ComputeStepQuantities(steps, values)
	ui.render(w, "assays/detail", data)
}
