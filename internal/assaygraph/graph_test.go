package assaygraph

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/me/labflow/pkg/model"
)

func canvas(t *testing.T, assayIDs ...string) *Graph {
	t.Helper()
	g := New()
	for i, id := range assayIDs {
		if _, err := g.AddNode(id, "Assay "+id, gridPosition(i)); err != nil {
			t.Fatalf("AddNode(%s): %v", id, err)
		}
	}
	return g
}

func mustConnect(t *testing.T, g *Graph, from, to string) {
	t.Helper()
	if _, err := g.Connect(NodeID(from), NodeID(to)); err != nil {
		t.Fatalf("Connect(%s, %s): %v", from, to, err)
	}
}

func TestAddNode_Duplicate(t *testing.T) {
	g := canvas(t, "a")
	_, err := g.AddNode("a", "again", Position{})
	if !errors.Is(err, ErrDuplicateNode) {
		t.Errorf("error = %v, want ErrDuplicateNode", err)
	}
	if n := g.Nodes[0]; n.ID != "assay-a" || n.AssayID != "a" {
		t.Errorf("node = %+v", n)
	}
}

func TestConnect_Rejections(t *testing.T) {
	g := canvas(t, "a", "b")
	mustConnect(t, g, "a", "b")

	tests := []struct {
		name     string
		from, to string
		want     error
	}{
		{"duplicate", "assay-a", "assay-b", ErrDuplicateEdge},
		{"self loop", "assay-a", "assay-a", ErrSelfLoop},
		{"unknown source", "assay-x", "assay-b", ErrUnknownNode},
		{"unknown target", "assay-a", "assay-x", ErrUnknownNode},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := g.Connect(tt.from, tt.to); !errors.Is(err, tt.want) {
				t.Errorf("error = %v, want %v", err, tt.want)
			}
		})
	}
	if len(g.Edges) != 1 {
		t.Errorf("edges = %d, want 1", len(g.Edges))
	}
}

func TestRemoveNode_DropsIncidentEdges(t *testing.T) {
	g := canvas(t, "a", "b", "c")
	mustConnect(t, g, "a", "b")
	mustConnect(t, g, "b", "c")
	mustConnect(t, g, "a", "c")

	if !g.RemoveNode("assay-b") {
		t.Fatal("RemoveNode returned false")
	}
	if g.RemoveNode("assay-b") {
		t.Error("second RemoveNode returned true")
	}
	want := []model.AssayDependency{{FromAssayID: "a", ToAssayID: "c"}}
	if diff := cmp.Diff(want, g.Dependencies()); diff != "" {
		t.Errorf("Dependencies (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"a", "c"}, g.AssayIDs()); diff != "" {
		t.Errorf("AssayIDs (-want +got):\n%s", diff)
	}
}

func TestDisconnect(t *testing.T) {
	g := canvas(t, "a", "b")
	mustConnect(t, g, "a", "b")
	if !g.Disconnect("assay-a", "assay-b") {
		t.Error("Disconnect returned false")
	}
	if g.Disconnect("assay-a", "assay-b") {
		t.Error("second Disconnect returned true")
	}
	if len(g.Dependencies()) != 0 {
		t.Error("edge still present")
	}
}

func TestOrder(t *testing.T) {
	tests := []struct {
		name  string
		nodes []string
		edges [][2]string
		want  []string
	}{
		{"no edges keeps insertion order", []string{"c", "a", "b"}, nil, []string{"c", "a", "b"}},
		{"chain", []string{"c", "b", "a"}, [][2]string{{"a", "b"}, {"b", "c"}}, []string{"a", "b", "c"}},
		{"diamond", []string{"start", "left", "right", "end"},
			[][2]string{{"start", "right"}, {"start", "left"}, {"left", "end"}, {"right", "end"}},
			[]string{"start", "left", "right", "end"}},
		{"independent branch", []string{"x", "a", "b"}, [][2]string{{"a", "b"}}, []string{"x", "a", "b"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := canvas(t, tt.nodes...)
			for _, e := range tt.edges {
				mustConnect(t, g, e[0], e[1])
			}
			got, err := g.Order()
			if err != nil {
				t.Fatalf("Order: %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Order (-want +got):\n%s", diff)
			}
		})
	}
}

func TestOrder_Cycle(t *testing.T) {
	g := canvas(t, "root", "b", "a", "downstream", "tail")
	mustConnect(t, g, "root", "a")
	mustConnect(t, g, "a", "b")
	mustConnect(t, g, "b", "a")
	mustConnect(t, g, "b", "downstream")
	mustConnect(t, g, "downstream", "tail")

	err := g.Validate()
	var cycle *CycleError
	if !errors.As(err, &cycle) {
		t.Fatalf("error = %v, want CycleError", err)
	}
	if diff := cmp.Diff([]string{"a", "b"}, cycle.AssayIDs); diff != "" {
		t.Errorf("cycle (-want +got):\n%s", diff)
	}
}

func TestOrder_TwoCyclesJoinedByPath(t *testing.T) {
	g := canvas(t, "a", "b", "bridge", "c", "d")
	mustConnect(t, g, "a", "b")
	mustConnect(t, g, "b", "a")
	mustConnect(t, g, "b", "bridge")
	mustConnect(t, g, "bridge", "c")
	mustConnect(t, g, "c", "d")
	mustConnect(t, g, "d", "c")

	var cycle *CycleError
	if err := g.Validate(); !errors.As(err, &cycle) {
		t.Fatalf("error = %v, want CycleError", err)
	}
	if diff := cmp.Diff([]string{"a", "b", "c", "d"}, cycle.AssayIDs); diff != "" {
		t.Errorf("cycle (-want +got):\n%s", diff)
	}
}

func TestFromWorkflow_RoundTrip(t *testing.T) {
	wf := &model.Workflow{
		AssayIDs: []string{"lysis", "bradford", "sds"},
		Dependencies: []model.AssayDependency{
			{FromAssayID: "lysis", ToAssayID: "sds"},
			{FromAssayID: "lysis", ToAssayID: "bradford"},
		},
	}
	g, err := FromWorkflow(wf, map[string]string{"lysis": "Cell Lysis"})
	if err != nil {
		t.Fatalf("FromWorkflow: %v", err)
	}
	if g.Nodes[0].Label != "Cell Lysis" || g.Nodes[1].Label != "bradford" {
		t.Errorf("labels = %q, %q", g.Nodes[0].Label, g.Nodes[1].Label)
	}
	if diff := cmp.Diff(wf.AssayIDs, g.AssayIDs()); diff != "" {
		t.Errorf("AssayIDs (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(wf.Dependencies, g.Dependencies()); diff != "" {
		t.Errorf("Dependencies (-want +got):\n%s", diff)
	}

	order, err := WorkflowOrder(wf)
	if err != nil {
		t.Fatalf("WorkflowOrder: %v", err)
	}
	if diff := cmp.Diff([]string{"lysis", "bradford", "sds"}, order); diff != "" {
		t.Errorf("order (-want +got):\n%s", diff)
	}
}

func TestFromWorkflow_BadDependency(t *testing.T) {
	wf := &model.Workflow{
		AssayIDs:     []string{"a"},
		Dependencies: []model.AssayDependency{{FromAssayID: "a", ToAssayID: "ghost"}},
	}
	if _, err := FromWorkflow(wf, nil); !errors.Is(err, ErrUnknownNode) {
		t.Errorf("error = %v, want ErrUnknownNode", err)
	}
}

func TestFilterAssays(t *testing.T) {
	assays := []*model.Assay{
		{ID: "1", Title: "Bradford Assay"},
		{ID: "2", Title: "Western Blot"},
		{ID: "3", Title: "BCA assay"},
	}
	var ids []string
	for _, a := range FilterAssays(assays, "ASSAY") {
		ids = append(ids, a.ID)
	}
	if diff := cmp.Diff([]string{"1", "3"}, ids); diff != "" {
		t.Errorf("filtered (-want +got):\n%s", diff)
	}
	if got := FilterAssays(assays, ""); len(got) != 3 {
		t.Errorf("empty query returned %d", len(got))
	}
	if got := FilterAssays(assays, "elisa"); len(got) != 0 {
		t.Errorf("no-match query returned %d", len(got))
	}
}
