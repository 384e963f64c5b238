// Package assaygraph models the workflow editor canvas: assays placed as
// nodes and connected by "must run before" edges.
package assaygraph

import (
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/me/labflow/pkg/model"
)

// nodePrefix marks canvas node ids derived from assay ids.
const nodePrefix = "assay-"

var (
	ErrDuplicateNode = errors.New("assay already on canvas")
	ErrUnknownNode   = errors.New("unknown node")
	ErrSelfLoop      = errors.New("an assay cannot depend on itself")
	ErrDuplicateEdge = errors.New("connection already exists")
)

// CycleError reports the assays that could not be ordered.
type CycleError struct {
	AssayIDs []string
}

func (e *CycleError) Error() string {
	return "workflow contains a cycle involving assays: " + strings.Join(e.AssayIDs, ", ")
}

// Position is a canvas coordinate.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Node is an assay placed on the canvas.
type Node struct {
	ID       string   `json:"id"`
	AssayID  string   `json:"assay_id"`
	Label    string   `json:"label"`
	Position Position `json:"position"`
}

// Edge connects Source (performed first) to Target.
type Edge struct {
	ID     string `json:"id"`
	Source string `json:"source"`
	Target string `json:"target"`
}

// Graph is the editor state. The zero value is an empty canvas.
type Graph struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

// NodeID returns the canvas node id for an assay.
func NodeID(assayID string) string {
	return nodePrefix + assayID
}

// AssayIDOf strips the canvas prefix from a node id.
func AssayIDOf(nodeID string) string {
	return strings.TrimPrefix(nodeID, nodePrefix)
}

// New returns an empty graph.
func New() *Graph {
	return &Graph{Nodes: []Node{}, Edges: []Edge{}}
}

func (g *Graph) nodeIndex(id string) int {
	return slices.IndexFunc(g.Nodes, func(n Node) bool { return n.ID == id })
}

func (g *Graph) edgeIndex(source, target string) int {
	return slices.IndexFunc(g.Edges, func(e Edge) bool { return e.Source == source && e.Target == target })
}

// AddNode drops an assay on the canvas at pos and returns its node.
func (g *Graph) AddNode(assayID, label string, pos Position) (Node, error) {
	n := Node{ID: NodeID(assayID), AssayID: assayID, Label: label, Position: pos}
	if g.nodeIndex(n.ID) >= 0 {
		return Node{}, fmt.Errorf("%w: %s", ErrDuplicateNode, assayID)
	}
	g.Nodes = append(g.Nodes, n)
	return n, nil
}

// RemoveNode deletes a node and every edge touching it. It reports
// whether the node existed.
func (g *Graph) RemoveNode(nodeID string) bool {
	i := g.nodeIndex(nodeID)
	if i < 0 {
		return false
	}
	g.Nodes = slices.Delete(g.Nodes, i, i+1)
	g.Edges = slices.DeleteFunc(g.Edges, func(e Edge) bool {
		return e.Source == nodeID || e.Target == nodeID
	})
	return true
}

// Connect adds an edge from source to target. Both nodes must exist.
func (g *Graph) Connect(source, target string) (Edge, error) {
	if g.nodeIndex(source) < 0 {
		return Edge{}, fmt.Errorf("%w: %s", ErrUnknownNode, source)
	}
	if g.nodeIndex(target) < 0 {
		return Edge{}, fmt.Errorf("%w: %s", ErrUnknownNode, target)
	}
	if source == target {
		return Edge{}, ErrSelfLoop
	}
	if g.edgeIndex(source, target) >= 0 {
		return Edge{}, fmt.Errorf("%w: %s -> %s", ErrDuplicateEdge, source, target)
	}
	e := Edge{ID: "e-" + source + "-" + target, Source: source, Target: target}
	g.Edges = append(g.Edges, e)
	return e, nil
}

// Disconnect removes the edge from source to target, reporting whether it
// existed.
func (g *Graph) Disconnect(source, target string) bool {
	i := g.edgeIndex(source, target)
	if i < 0 {
		return false
	}
	g.Edges = slices.Delete(g.Edges, i, i+1)
	return true
}

// AssayIDs returns the assays on the canvas in the order they were added.
func (g *Graph) AssayIDs() []string {
	ids := make([]string, len(g.Nodes))
	for i, n := range g.Nodes {
		ids[i] = n.AssayID
	}
	return ids
}

// Dependencies converts the edges to assay dependencies.
func (g *Graph) Dependencies() []model.AssayDependency {
	deps := make([]model.AssayDependency, len(g.Edges))
	for i, e := range g.Edges {
		deps[i] = model.AssayDependency{FromAssayID: AssayIDOf(e.Source), ToAssayID: AssayIDOf(e.Target)}
	}
	return deps
}

// Order returns the assay ids in an order that respects every edge, using
// Kahn's algorithm. Among assays that are ready at the same time, the one
// added to the canvas first comes first.
func (g *Graph) Order() ([]string, error) {
	pos := make(map[string]int, len(g.Nodes))
	for i, n := range g.Nodes {
		pos[n.ID] = i
	}

	forward := make(map[string][]string, len(g.Nodes))
	inDegree := make(map[string]int, len(g.Nodes))
	for _, n := range g.Nodes {
		inDegree[n.ID] = 0
	}
	for _, e := range g.Edges {
		if _, ok := pos[e.Source]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownNode, e.Source)
		}
		if _, ok := pos[e.Target]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownNode, e.Target)
		}
		if e.Source == e.Target {
			return nil, &CycleError{AssayIDs: []string{AssayIDOf(e.Source)}}
		}
		forward[e.Source] = append(forward[e.Source], e.Target)
		inDegree[e.Target]++
	}

	byPosition := func(ids []string) {
		sort.Slice(ids, func(i, j int) bool { return pos[ids[i]] < pos[ids[j]] })
	}

	var queue []string
	for _, n := range g.Nodes {
		if inDegree[n.ID] == 0 {
			queue = append(queue, n.ID)
		}
	}

	order := make([]string, 0, len(g.Nodes))
	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		order = append(order, AssayIDOf(node))

		for _, succ := range forward[node] {
			inDegree[succ]--
			if inDegree[succ] == 0 {
				queue = append(queue, succ)
			}
		}
		byPosition(queue)
	}

	if len(order) != len(g.Nodes) {
		residual := make(map[string]bool)
		for _, n := range g.Nodes {
			if inDegree[n.ID] > 0 {
				residual[n.ID] = true
			}
		}
		var cycle []string
		for _, id := range cyclicNodes(residual, forward) {
			cycle = append(cycle, AssayIDOf(id))
		}
		sort.Strings(cycle)
		return nil, &CycleError{AssayIDs: cycle}
	}
	return order, nil
}

// cyclicNodes returns the nodes of residual that lie on a cycle: members
// of a strongly connected component with more than one node. Nodes that
// are only downstream of a cycle are left out.
func cyclicNodes(residual map[string]bool, forward map[string][]string) []string {
	index := make(map[string]int)
	low := make(map[string]int)
	onStack := make(map[string]bool)
	var stack, out []string
	next := 0

	var visit func(v string)
	visit = func(v string) {
		index[v] = next
		low[v] = next
		next++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range forward[v] {
			if !residual[w] {
				continue
			}
			if _, seen := index[w]; !seen {
				visit(w)
				low[v] = min(low[v], low[w])
			} else if onStack[w] {
				low[v] = min(low[v], index[w])
			}
		}

		if low[v] != index[v] {
			return
		}
		var scc []string
		for {
			w := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			onStack[w] = false
			scc = append(scc, w)
			if w == v {
				break
			}
		}
		if len(scc) > 1 {
			out = append(out, scc...)
		}
	}

	ids := make([]string, 0, len(residual))
	for id := range residual {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		if _, seen := index[id]; !seen {
			visit(id)
		}
	}
	return out
}

// Validate reports whether the graph can be saved as a workflow.
func (g *Graph) Validate() error {
	_, err := g.Order()
	return err
}

// FromWorkflow rebuilds the canvas for a stored workflow. labels maps
// assay id to title; assays without a label show their id. Nodes are laid
// out on a grid.
func FromWorkflow(wf *model.Workflow, labels map[string]string) (*Graph, error) {
	g := New()
	for i, id := range wf.AssayIDs {
		label := labels[id]
		if label == "" {
			label = id
		}
		if _, err := g.AddNode(id, label, gridPosition(i)); err != nil {
			return nil, err
		}
	}
	for _, d := range wf.Dependencies {
		if _, err := g.Connect(NodeID(d.FromAssayID), NodeID(d.ToAssayID)); err != nil {
			return nil, fmt.Errorf("dependency %s -> %s: %w", d.FromAssayID, d.ToAssayID, err)
		}
	}
	return g, nil
}

// WorkflowOrder returns the assay ids of wf in dependency order.
func WorkflowOrder(wf *model.Workflow) ([]string, error) {
	g, err := FromWorkflow(wf, nil)
	if err != nil {
		return nil, err
	}
	return g.Order()
}

func gridPosition(i int) Position {
	return Position{X: float64(100 + 250*(i%3)), Y: float64(100 + 150*(i/3))}
}

// FilterAssays returns the assays whose title contains query, ignoring
// case. An empty query returns every assay.
func FilterAssays(assays []*model.Assay, query string) []*model.Assay {
	q := strings.ToLower(strings.TrimSpace(query))
	out := make([]*model.Assay, 0, len(assays))
	for _, a := range assays {
		if q == "" || strings.Contains(strings.ToLower(a.Title), q) {
			out = append(out, a)
		}
	}
	return out
}
