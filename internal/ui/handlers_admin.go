package ui

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/me/labflow/internal/assaygraph"
	"github.com/me/labflow/internal/formula"
	"github.com/me/labflow/internal/store"
	"github.com/me/labflow/pkg/model"
)

var difficulties = []model.Difficulty{
	model.DifficultyBeginner,
	model.DifficultyIntermediate,
	model.DifficultyAdvanced,
}

var paramTypes = []model.ParameterType{
	model.ParamText,
	model.ParamNumber,
	model.ParamSelect,
	model.ParamRadio,
	model.ParamCheckbox,
}

// HandleAdmin renders the admin landing page.
func (ui *UI) HandleAdmin(w http.ResponseWriter, r *http.Request) {
	users, err := ui.catalog.Store().ListUsers(r.Context())
	if err != nil {
		ui.renderError(w, r, "Failed to load users", err)
		return
	}
	workflows, err := store.ListAll(r.Context(), model.ListOptions{}, ui.catalog.Store().ListWorkflows)
	if err != nil {
		ui.renderError(w, r, "Failed to load workflows", err)
		return
	}
	_, assayCount, err := ui.catalog.FetchAssays(r.Context(), model.ListOptions{Limit: 1})
	if err != nil {
		ui.renderError(w, r, "Failed to load assays", err)
		return
	}

	data := ui.page(r, "Admin", "/admin")
	data["UserCount"] = len(users)
	data["WorkflowCount"] = len(workflows)
	data["AssayCount"] = assayCount
	data["Workflows"] = workflows
	ui.render(w, "admin/index", data)
}

// --- Workflow authoring ---

// workflowForm is the state of the create-workflow page between requests.
type workflowForm struct {
	Workflow *model.Workflow
	Selected map[string]bool
	Edges    []model.AssayDependency
	Query    string
}

func (ui *UI) renderWorkflowForm(w http.ResponseWriter, r *http.Request, status int, f workflowForm, errs map[string]string, msg string) {
	all, err := store.ListAll(r.Context(), model.ListOptions{}, ui.catalog.Store().ListAssays)
	if err != nil {
		ui.renderError(w, r, "Failed to load assays", err)
		return
	}
	if len(f.Edges) == 0 {
		f.Edges = []model.AssayDependency{{}}
	}

	data := ui.page(r, "Create Workflow", "/admin")
	data["Form"] = f.Workflow
	data["Palette"] = assaygraph.FilterAssays(all, f.Query)
	data["Selected"] = f.Selected
	data["Edges"] = f.Edges
	data["Query"] = f.Query
	data["Difficulties"] = difficulties
	if errs != nil {
		data["Errors"] = errs
	}
	if msg != "" {
		data["Error"] = msg
	}
	ui.renderStatus(w, status, "admin/workflow_new", data)
}

// HandleWorkflowNew renders the create-workflow page.
func (ui *UI) HandleWorkflowNew(w http.ResponseWriter, r *http.Request) {
	ui.renderWorkflowForm(w, r, http.StatusOK, workflowForm{
		Workflow: &model.Workflow{Difficulty: model.DifficultyBeginner, Status: model.StatusDraft},
		Selected: map[string]bool{},
		Query:    r.URL.Query().Get("q"),
	}, nil, "")
}

// HandleWorkflowNewPost builds the dependency graph from the selected
// assays and dependency rows, then creates the workflow. With ?filter=1
// it only re-renders the form with the assay palette filtered.
func (ui *UI) HandleWorkflowNewPost(w http.ResponseWriter, r *http.Request) {
	sess := SessionFromContext(r.Context())
	if err := r.ParseForm(); err != nil {
		http.Redirect(w, r, "/admin/workflows/new", http.StatusSeeOther)
		return
	}

	f := workflowForm{
		Workflow: &model.Workflow{
			Title:              strings.TrimSpace(r.PostFormValue("title")),
			Description:        strings.TrimSpace(r.PostFormValue("description")),
			Category:           strings.TrimSpace(r.PostFormValue("category")),
			Difficulty:         model.Difficulty(r.PostFormValue("difficulty")),
			EstimatedTotalTime: strings.TrimSpace(r.PostFormValue("estimated_total_time")),
			Status:             model.StatusDraft,
			CreatedBy:          sess.UserID,
		},
		Selected: map[string]bool{},
		Edges:    formDependencies(r.PostForm["dep_from"], r.PostForm["dep_to"]),
		Query:    r.PostFormValue("q"),
	}
	if r.PostFormValue("publish") == "true" {
		f.Workflow.Status = model.StatusPublished
	}
	for _, id := range r.PostForm["assay_ids"] {
		f.Selected[id] = true
	}

	if r.URL.Query().Get("filter") != "" {
		ui.renderWorkflowForm(w, r, http.StatusOK, f, nil, "")
		return
	}

	g, err := ui.buildGraph(r, r.PostForm["assay_ids"], f.Edges)
	if err != nil {
		ui.renderWorkflowForm(w, r, http.StatusBadRequest, f, nil, err.Error())
		return
	}
	f.Workflow.AssayIDs = g.AssayIDs()
	f.Workflow.Dependencies = g.Dependencies()

	wf, err := ui.catalog.CreateWorkflow(r.Context(), f.Workflow)
	if err != nil {
		if errs := fieldErrors(err); errs != nil {
			ui.renderWorkflowForm(w, r, http.StatusBadRequest, f, errs, err.Error())
			return
		}
		ui.renderError(w, r, "Failed to create workflow", err)
		return
	}

	ui.logger.Info("workflow created from UI", "id", wf.ID, "by", sess.Email)
	http.Redirect(w, r, "/workflows/"+wf.ID, http.StatusSeeOther)
}

// formDependencies pairs the from/to columns of the dependency rows,
// skipping rows with either side blank.
func formDependencies(from, to []string) []model.AssayDependency {
	var deps []model.AssayDependency
	for i := 0; i < len(from) && i < len(to); i++ {
		if from[i] == "" || to[i] == "" {
			continue
		}
		deps = append(deps, model.AssayDependency{FromAssayID: from[i], ToAssayID: to[i]})
	}
	return deps
}

// buildGraph lays out the selected assays as a canvas graph and connects
// the dependency rows, rejecting edges to unselected assays and cycles.
func (ui *UI) buildGraph(r *http.Request, assayIDs []string, deps []model.AssayDependency) (*assaygraph.Graph, error) {
	if len(assayIDs) == 0 {
		return nil, errors.New("select at least one assay")
	}
	g := assaygraph.New()
	for i, id := range assayIDs {
		a, err := ui.catalog.GetAssay(r.Context(), id)
		if err != nil {
			return nil, err
		}
		if a == nil {
			return nil, fmt.Errorf("assay %s no longer exists", id)
		}
		pos := assaygraph.Position{X: float64(100 + (i%3)*250), Y: float64(100 + (i/3)*150)}
		if _, err := g.AddNode(a.ID, a.Title, pos); err != nil {
			return nil, err
		}
	}
	for _, d := range deps {
		if _, err := g.Connect(assaygraph.NodeID(d.FromAssayID), assaygraph.NodeID(d.ToAssayID)); err != nil {
			if errors.Is(err, assaygraph.ErrUnknownNode) {
				return nil, errors.New("dependencies may only connect selected assays")
			}
			return nil, err
		}
	}
	if err := g.Validate(); err != nil {
		return nil, err
	}
	return g, nil
}

// --- Assay authoring ---

type assayForm struct {
	Assay *model.Assay
	Steps []*model.Step
}

func (ui *UI) renderAssayForm(w http.ResponseWriter, r *http.Request, status int, f assayForm, errs map[string]string, msg string) {
	workflows, err := store.ListAll(r.Context(), model.ListOptions{}, ui.catalog.Store().ListWorkflows)
	if err != nil {
		ui.renderError(w, r, "Failed to load workflows", err)
		return
	}

	materials := f.Assay.Materials
	if len(materials) == 0 {
		materials = []model.AssayMaterial{{}}
	}
	params := f.Assay.Parameters
	if len(params) == 0 {
		params = []model.AssayParameter{{Type: model.ParamText}}
	}
	steps := f.Steps
	if len(steps) == 0 {
		steps = []*model.Step{{}}
	}

	data := ui.page(r, "Create Assay", "/admin")
	data["Form"] = f.Assay
	data["Materials"] = materials
	data["Parameters"] = params
	data["Steps"] = steps
	data["Workflows"] = workflows
	data["ParamTypes"] = paramTypes
	if errs != nil {
		data["Errors"] = errs
	}
	if msg != "" {
		data["Error"] = msg
	}
	ui.renderStatus(w, status, "admin/assay_new", data)
}

// HandleAssayNew renders the create-assay page.
func (ui *UI) HandleAssayNew(w http.ResponseWriter, r *http.Request) {
	ui.renderAssayForm(w, r, http.StatusOK, assayForm{
		Assay: &model.Assay{WorkflowID: r.URL.Query().Get("workflow_id")},
	}, nil, "")
}

// HandleAssayNewPost creates the assay, then its steps in form order.
func (ui *UI) HandleAssayNewPost(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Redirect(w, r, "/admin/assays/new", http.StatusSeeOther)
		return
	}

	f := assayForm{
		Assay: &model.Assay{
			WorkflowID:    r.PostFormValue("workflow_id"),
			Title:         strings.TrimSpace(r.PostFormValue("title")),
			Description:   strings.TrimSpace(r.PostFormValue("description")),
			Protocol:      strings.TrimSpace(r.PostFormValue("protocol")),
			EstimatedTime: strings.TrimSpace(r.PostFormValue("estimated_time")),
			Materials:     formMaterials(r),
			Parameters:    formParameters(r),
		},
		Steps: formSteps(r),
	}

	a, err := ui.catalog.CreateAssay(r.Context(), f.Assay)
	if err != nil {
		if errs := fieldErrors(err); errs != nil {
			ui.renderAssayForm(w, r, http.StatusBadRequest, f, errs, err.Error())
			return
		}
		ui.renderError(w, r, "Failed to create assay", err)
		return
	}

	for i, st := range f.Steps {
		st.AssayID = a.ID
		st.Order = i + 1
		if _, err := ui.catalog.CreateStep(r.Context(), st); err != nil {
			// The assay exists; report the step and let the admin fix it
			// from the API.
			ui.logger.Warn("step creation failed", "assay_id", a.ID, "order", st.Order, "error", err)
			data := ui.page(r, "Create Assay", "/admin")
			data["Message"] = fmt.Sprintf("Assay %q was created but step %d could not be saved: %v", a.Title, st.Order, err)
			ui.renderStatus(w, http.StatusBadRequest, "error", data)
			return
		}
	}

	ui.logger.Info("assay created from UI", "id", a.ID, "steps", len(f.Steps))
	http.Redirect(w, r, "/assays/"+a.ID, http.StatusSeeOther)
}

// column returns the i-th value of a repeated form field, or "".
func column(r *http.Request, name string, i int) string {
	vals := r.PostForm[name]
	if i < len(vals) {
		return strings.TrimSpace(vals[i])
	}
	return ""
}

func formMaterials(r *http.Request) []model.AssayMaterial {
	var out []model.AssayMaterial
	for i := range r.PostForm["material_name"] {
		m := model.AssayMaterial{
			Name:          column(r, "material_name", i),
			Quantity:      column(r, "material_quantity", i),
			Unit:          column(r, "material_unit", i),
			AffiliateLink: column(r, "material_link", i),
		}
		if m.Name == "" {
			continue
		}
		out = append(out, m)
	}
	return out
}

func formParameters(r *http.Request) []model.AssayParameter {
	var out []model.AssayParameter
	for i := range r.PostForm["param_name"] {
		p := model.AssayParameter{
			Name:        column(r, "param_name", i),
			Description: column(r, "param_description", i),
			Type:        model.ParameterType(column(r, "param_type", i)),
			Required:    column(r, "param_required", i) == "true",
			Unit:        column(r, "param_unit", i),
		}
		if p.Name == "" {
			continue
		}
		if p.Type == "" {
			p.Type = model.ParamText
		}
		for _, opt := range strings.Split(column(r, "param_options", i), ",") {
			if opt = strings.TrimSpace(opt); opt != "" {
				p.Options = append(p.Options, opt)
			}
		}
		if def := column(r, "param_default", i); def != "" {
			p.DefaultValue = parseDefault(p.Type, def)
		}
		out = append(out, p)
	}
	return out
}

// parseDefault converts a typed default from its form text.
func parseDefault(t model.ParameterType, s string) any {
	if t == model.ParamNumber || t == model.ParamCheckbox {
		if v, ok := formula.ParseValues(map[string][]string{"v": {s}})["v"]; ok {
			return v
		}
	}
	return s
}

func formSteps(r *http.Request) []*model.Step {
	var out []*model.Step
	for i := range r.PostForm["step_title"] {
		st := &model.Step{
			Title:              column(r, "step_title", i),
			Description:        column(r, "step_description", i),
			EstimatedTime:      column(r, "step_time", i),
			CalculationFormula: column(r, "step_formula", i),
		}
		if st.Title == "" && st.Description == "" {
			continue
		}
		out = append(out, st)
	}
	return out
}
