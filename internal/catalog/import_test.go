package catalog

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/me/labflow/internal/store"
	"github.com/me/labflow/pkg/model"
)

func TestLoadDemo(t *testing.T) {
	c := testCatalog(t)
	ctx := context.Background()

	wfs, err := c.LoadDemo(ctx)
	if err != nil {
		t.Fatalf("LoadDemo: %v", err)
	}
	if len(wfs) != 2 {
		t.Fatalf("got %d workflows, want 2", len(wfs))
	}

	if _, total, err := c.FetchWorkflows(ctx, model.DefaultListOptions()); err != nil || total != 2 {
		t.Fatalf("FetchWorkflows: total=%d err=%v", total, err)
	}

	assays, err := c.WorkflowAssays(ctx, wfs[0])
	if err != nil {
		t.Fatalf("WorkflowAssays: %v", err)
	}
	var titles []string
	for _, a := range assays {
		titles = append(titles, a.Title)
	}
	want := []string{"Alkaline Lysis Miniprep", "Diagnostic Restriction Digest"}
	if diff := cmp.Diff(want, titles); diff != "" {
		t.Errorf("assay order mismatch (-want +got):\n%s", diff)
	}

	steps, err := c.FetchSteps(ctx, assays[0].ID)
	if err != nil {
		t.Fatalf("FetchSteps: %v", err)
	}
	if len(steps) != 3 || steps[1].Order != 2 {
		t.Fatalf("steps = %+v", steps)
	}
	if diff := cmp.Diff([]string{"cultureVolume"}, steps[1].CalculationDependencies); diff != "" {
		t.Errorf("dependencies mismatch (-want +got):\n%s", diff)
	}

	uw, err := c.StartWorkflow(ctx, "", wfs[0].ID, "user_1", nil)
	if err != nil {
		t.Fatalf("StartWorkflow on demo workflow: %v", err)
	}
	if uw.CurrentAssayID != assays[0].ID || uw.CurrentStepID != steps[0].ID {
		t.Errorf("run positioned at %s/%s", uw.CurrentAssayID, uw.CurrentStepID)
	}
	if got := model.NumericValues(uw.Parameters)["cultureVolume"]; got != 5 {
		t.Errorf("cultureVolume = %v, want default 5", got)
	}
}

func TestImportWorkflow_RollsBackOnInvalidAssay(t *testing.T) {
	c := testCatalog(t)
	ctx := context.Background()

	def := &model.WorkflowDefinition{
		Title:      "Broken Import",
		Difficulty: model.DifficultyBeginner,
		Assays: []model.AssayDefinition{
			{
				Key:           "ok",
				Title:         "Valid Assay",
				Description:   "A valid description",
				Protocol:      "A valid protocol text",
				EstimatedTime: "10 minutes",
			},
			{Key: "bad", Title: "No"},
		},
	}
	_, err := c.ImportWorkflow(ctx, def, "user_1")
	var verr *model.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("error = %v, want ValidationError", err)
	}
	if got := c.State().Error; got != err.Error() {
		t.Errorf("state.Error = %q, want %q", got, err.Error())
	}

	wfs, _ := store.ListAll(ctx, model.ListOptions{}, c.Store().ListWorkflows)
	assays, _ := store.ListAll(ctx, model.ListOptions{}, c.Store().ListAssays)
	if len(wfs) != 0 || len(assays) != 0 {
		t.Errorf("left %d workflows and %d assays after rollback", len(wfs), len(assays))
	}
}

func TestImportAssay_StepFailureRemovesAssay(t *testing.T) {
	c := testCatalog(t)
	ctx := context.Background()

	def := &model.AssayDefinition{
		Title:         "Gel Extraction",
		Description:   "Cut the band and purify",
		Protocol:      "Excise band, dissolve, bind, elute.",
		EstimatedTime: "45 minutes",
		Steps: []model.StepDefinition{
			{Title: "Excise"},
			{Title: "Dissolve", Formula: "${gelWeight} * 3"},
		},
	}
	a, steps, err := c.ImportAssay(ctx, "wf_gel", def)
	if err == nil || a != nil || steps != nil {
		t.Fatalf("ImportAssay = %v, %v, %v; want error", a, steps, err)
	}
	if got := c.State().Error; !strings.HasPrefix(got, "step 2:") {
		t.Errorf("state.Error = %q, want step 2 failure", got)
	}
	if assays, _ := store.ListAll(ctx, model.ListOptions{}, c.Store().ListAssays); len(assays) != 0 {
		t.Errorf("%d assays left after failed import", len(assays))
	}
}

func TestImportWorkflow_ExistingAssaysAndCycle(t *testing.T) {
	c := testCatalog(t)
	ctx := context.Background()
	existing := newAssay(t, c, "wf_other", "Shared Assay")

	def := &model.WorkflowDefinition{
		Title:      "Mixed Import",
		Difficulty: model.DifficultyIntermediate,
		AssayIDs:   []string{existing.ID},
		Assays: []model.AssayDefinition{{
			Title:         "Inline Assay",
			Description:   "An inline assay",
			Protocol:      "Inline protocol text",
			EstimatedTime: "5 minutes",
		}},
		Dependencies: []model.AssayDependency{{FromAssayID: existing.ID, ToAssayID: "Inline Assay"}},
	}
	wf, err := c.ImportWorkflow(ctx, def, "user_1")
	if err != nil {
		t.Fatalf("ImportWorkflow: %v", err)
	}
	if len(wf.AssayIDs) != 2 || wf.AssayIDs[0] != existing.ID {
		t.Errorf("AssayIDs = %v", wf.AssayIDs)
	}
	if wf.Dependencies[0].ToAssayID != wf.AssayIDs[1] {
		t.Errorf("dependency not resolved: %+v", wf.Dependencies)
	}
	if wf.CreatedBy != "user_1" {
		t.Errorf("CreatedBy = %q", wf.CreatedBy)
	}

	def.Title = "Cyclic Import"
	def.Dependencies = append(def.Dependencies, model.AssayDependency{FromAssayID: "Inline Assay", ToAssayID: existing.ID})
	if _, err := c.ImportWorkflow(ctx, def, ""); err == nil {
		t.Fatal("expected cycle error")
	}
	if a, err := c.GetAssay(ctx, existing.ID); err != nil || a == nil {
		t.Errorf("existing assay removed by rollback: %v", err)
	}
}

func TestParseDefinitions_RejectsUnknownKeys(t *testing.T) {
	_, err := ParseDefinitions([]byte("workflows:\n  - title: X\n    colour: red\n"))
	if err == nil {
		t.Fatal("expected error for unknown key")
	}
}
