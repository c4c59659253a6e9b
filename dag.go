package onboard

import (
	"fmt"
	"sort"
	"strconv"

	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/encoding"
	"gonum.org/v1/gonum/graph/topo"

	"github.com/fortressi/onboard/dag"
	"github.com/fortressi/onboard/set"
)

// Plan is the dependency graph of the onboarding steps. Later steps consume
// identifiers produced by earlier ones, so the graph fixes the order in
// which a caller may invoke them.
type Plan struct {
	graph *dag.Graph
	ids   map[OperationType]int64
	steps map[int64]OperationType
	names set.Set[OperationType]
}

// NewPlan creates an empty plan.
func NewPlan() *Plan {
	return &Plan{
		graph: dag.New(),
		ids:   make(map[OperationType]int64),
		steps: make(map[int64]OperationType),
	}
}

// DefaultPlan returns the onboarding dependency graph:
//
//	profile -> role -> unit -> bind
//	unit -> professional -> link
//	unit -> template
//	bind, link, template -> complete
func DefaultPlan() *Plan {
	p := NewPlan()
	steps := []struct {
		t     OperationType
		label string
		after []OperationType
	}{
		{TypeCreateOwnerProfile, "Create owner profile", nil},
		{TypeAssignOwnerRole, "Assign owner role", []OperationType{TypeCreateOwnerProfile}},
		{TypeCreateOrgUnit, "Create organizational unit", []OperationType{TypeAssignOwnerRole}},
		{TypeBindRoleToUnit, "Bind role to unit", []OperationType{TypeCreateOrgUnit}},
		{TypeRegisterProfessional, "Register professional", []OperationType{TypeCreateOrgUnit}},
		{TypeLinkProfessionalToUnit, "Link professional to unit", []OperationType{TypeRegisterProfessional}},
		{TypeCreateServiceTemplate, "Create service template", []OperationType{TypeCreateOrgUnit}},
		{TypeMarkOnboardingComplete, "Mark onboarding complete", []OperationType{
			TypeBindRoleToUnit, TypeLinkProfessionalToUnit, TypeCreateServiceTemplate,
		}},
	}
	for _, s := range steps {
		if err := p.Add(s.t, s.label, s.after...); err != nil {
			panic(err)
		}
	}
	return p
}

// Add appends a step that depends on every step in after. The dependencies
// must already be in the plan.
func (p *Plan) Add(t OperationType, label string, after ...OperationType) error {
	if p.names.Contains(t) {
		return fmt.Errorf("step '%s' already exists", t)
	}
	for _, dep := range after {
		if !p.names.Contains(dep) {
			return fmt.Errorf("step '%s' depends on unknown step '%s'", t, dep)
		}
	}

	node := p.graph.NewNode()
	node.SetDOTID(string(t))
	if err := node.SetAttribute(encoding.Attribute{Key: "label", Value: strconv.Quote(label)}); err != nil {
		return err
	}
	p.graph.AddNode(node)
	p.names.Insert(t)
	p.ids[t] = node.ID()
	p.steps[node.ID()] = t

	for _, dep := range after {
		if err := p.graph.Connect(p.ids[dep], node.ID()); err != nil {
			return err
		}
	}
	return nil
}

// AddDependency makes step to depend on step from.
func (p *Plan) AddDependency(from, to OperationType) error {
	f, ok := p.ids[from]
	if !ok {
		return fmt.Errorf("unknown step '%s'", from)
	}
	t, ok := p.ids[to]
	if !ok {
		return fmt.Errorf("unknown step '%s'", to)
	}
	return p.graph.Connect(f, t)
}

// Len returns the number of steps.
func (p *Plan) Len() int {
	return len(p.steps)
}

// Order returns the steps in execution order. Among the steps that are
// ready at any point, the one added first runs first, so for DefaultPlan
// the order is the wizard's order.
func (p *Plan) Order() ([]OperationType, error) {
	if _, err := topo.Sort(p.graph); err != nil {
		return nil, fmt.Errorf("plan has a dependency cycle: %w", err)
	}

	pending := make(map[int64]int, len(p.steps))
	ready := make([]int64, 0, len(p.steps))
	for id := range p.steps {
		pending[id] = p.graph.To(id).Len()
		if pending[id] == 0 {
			ready = append(ready, id)
		}
	}

	order := make([]OperationType, 0, len(p.steps))
	for len(ready) > 0 {
		sort.Slice(ready, func(i, j int) bool { return ready[i] < ready[j] })
		id := ready[0]
		ready = ready[1:]
		order = append(order, p.steps[id])

		from := graph.NodesOf(p.graph.From(id))
		for _, n := range from {
			pending[n.ID()]--
			if pending[n.ID()] == 0 {
				ready = append(ready, n.ID())
			}
		}
	}
	return order, nil
}

// Dependencies returns the steps t directly depends on, in insertion order.
func (p *Plan) Dependencies(t OperationType) []OperationType {
	id, ok := p.ids[t]
	if !ok {
		return nil
	}
	var ids []int64
	to := p.graph.To(id)
	for to.Next() {
		ids = append(ids, to.Node().ID())
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	deps := make([]OperationType, len(ids))
	for i, d := range ids {
		deps[i] = p.steps[d]
	}
	return deps
}

// DOT renders the plan in Graphviz format.
func (p *Plan) DOT() (string, error) {
	return p.graph.ExportToDot("onboarding")
}
