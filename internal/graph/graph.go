// Package graph implements a small conditional-branching execution engine.
//
// A Graph is a set of named nodes connected by plain and conditional edges.
// Nodes transform a state value of type S; conditional edges inspect the
// state after a node runs and pick the next node from a fixed decision map.
// Compile validates the wiring once, up front, and returns an immutable
// Runnable that executes the graph strictly sequentially: one active node
// per run, no loops, no parallel branches.
//
// Wiring mistakes (an edge pointing at an undefined node, a missing entry
// point) are construction defects and surface from Compile. A decision
// value with no mapped target at runtime is also a defect, never a silent
// fall-through; Invoke fails the run with ErrUnknownDecision.
package graph

import (
	"context"
	"errors"
	"fmt"
)

// End is the terminal sentinel. An edge targeting End finishes the run.
const End = "__end__"

var (
	// ErrNoEntryPoint indicates Compile was called before SetEntryPoint.
	ErrNoEntryPoint = errors.New("graph: no entry point set")

	// ErrUnknownNode indicates an edge or entry point references a node
	// that was never added.
	ErrUnknownNode = errors.New("graph: unknown node")

	// ErrDuplicateNode indicates AddNode was called twice with the same name.
	ErrDuplicateNode = errors.New("graph: duplicate node")

	// ErrDuplicateEdge indicates a node already has an outgoing edge.
	ErrDuplicateEdge = errors.New("graph: duplicate outgoing edge")

	// ErrUnknownDecision indicates a conditional edge produced a decision
	// value with no mapped target.
	ErrUnknownDecision = errors.New("graph: unknown decision value")

	// ErrNoOutgoingEdge indicates execution reached a node with no
	// outgoing edge. Terminal nodes must be wired to End explicitly.
	ErrNoOutgoingEdge = errors.New("graph: node has no outgoing edge")
)

// NodeFunc transforms the run state. It receives the state after the
// previous node and returns the state passed to the next one.
type NodeFunc[S any] func(ctx context.Context, state S) (S, error)

// DecideFunc inspects the state after a node ran and returns a decision
// value, which the conditional edge maps to the next node name.
type DecideFunc[S any] func(state S) string

// edge is the single outgoing transition of a node. Exactly one of target
// or decide is set.
type edge[S any] struct {
	target  string
	decide  DecideFunc[S]
	targets map[string]string
}

// Graph is a mutable graph definition. Add nodes and edges, set the entry
// point, then Compile. A Graph is not safe for concurrent mutation; build
// it in one goroutine during startup.
type Graph[S any] struct {
	nodes map[string]NodeFunc[S]
	edges map[string]edge[S]
	entry string
}

// New creates an empty graph definition.
func New[S any]() *Graph[S] {
	return &Graph[S]{
		nodes: make(map[string]NodeFunc[S]),
		edges: make(map[string]edge[S]),
	}
}

// AddNode registers a named node. Adding the same name twice is a defect.
func (g *Graph[S]) AddNode(name string, fn NodeFunc[S]) error {
	if _, exists := g.nodes[name]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicateNode, name)
	}
	g.nodes[name] = fn
	return nil
}

// AddEdge wires an unconditional transition from one node to another
// (or to End).
func (g *Graph[S]) AddEdge(from, to string) error {
	if _, exists := g.edges[from]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicateEdge, from)
	}
	g.edges[from] = edge[S]{target: to}
	return nil
}

// AddConditionalEdges wires a decision point: after from runs, decide is
// evaluated against the state and its result looked up in targets to find
// the next node.
func (g *Graph[S]) AddConditionalEdges(from string, decide DecideFunc[S], targets map[string]string) error {
	if _, exists := g.edges[from]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicateEdge, from)
	}
	g.edges[from] = edge[S]{decide: decide, targets: targets}
	return nil
}

// SetEntryPoint names the node every run starts from.
func (g *Graph[S]) SetEntryPoint(name string) {
	g.entry = name
}

// Compile validates the wiring and returns an immutable Runnable.
// Every edge target and every conditional branch target must be a defined
// node or End, and the entry point must be set and defined.
func (g *Graph[S]) Compile() (*Runnable[S], error) {
	if g.entry == "" {
		return nil, ErrNoEntryPoint
	}
	if _, ok := g.nodes[g.entry]; !ok {
		return nil, fmt.Errorf("%w: entry point %q", ErrUnknownNode, g.entry)
	}

	for from, e := range g.edges {
		if _, ok := g.nodes[from]; !ok {
			return nil, fmt.Errorf("%w: edge source %q", ErrUnknownNode, from)
		}
		if e.decide == nil {
			if err := g.checkTarget(from, e.target); err != nil {
				return nil, err
			}
			continue
		}
		for decision, target := range e.targets {
			if err := g.checkTarget(from+"/"+decision, target); err != nil {
				return nil, err
			}
		}
	}

	// Copy the definition so later mutation of the Graph cannot affect
	// compiled runnables.
	nodes := make(map[string]NodeFunc[S], len(g.nodes))
	for name, fn := range g.nodes {
		nodes[name] = fn
	}
	edges := make(map[string]edge[S], len(g.edges))
	for name, e := range g.edges {
		edges[name] = e
	}

	return &Runnable[S]{nodes: nodes, edges: edges, entry: g.entry}, nil
}

func (g *Graph[S]) checkTarget(from, target string) error {
	if target == End {
		return nil
	}
	if _, ok := g.nodes[target]; !ok {
		return fmt.Errorf("%w: edge %s -> %q", ErrUnknownNode, from, target)
	}
	return nil
}

// Runnable is a compiled, immutable graph. It holds no per-run state, so
// a single Runnable may serve concurrent Invoke calls.
type Runnable[S any] struct {
	nodes map[string]NodeFunc[S]
	edges map[string]edge[S]
	entry string
}

// Invoke executes the graph once from the entry point until an edge
// reaches End, threading state through each node in sequence. The first
// node error fails the run and returns the state as of that failure.
func (r *Runnable[S]) Invoke(ctx context.Context, state S) (S, error) {
	current := r.entry

	for current != End {
		if err := ctx.Err(); err != nil {
			return state, err
		}

		fn, ok := r.nodes[current]
		if !ok {
			// Unreachable after Compile, kept as a guard.
			return state, fmt.Errorf("%w: %q", ErrUnknownNode, current)
		}

		next, err := fn(ctx, state)
		if err != nil {
			return state, fmt.Errorf("node %q: %w", current, err)
		}
		state = next

		e, ok := r.edges[current]
		if !ok {
			return state, fmt.Errorf("%w: %q", ErrNoOutgoingEdge, current)
		}

		if e.decide == nil {
			current = e.target
			continue
		}

		decision := e.decide(state)
		target, ok := e.targets[decision]
		if !ok {
			return state, fmt.Errorf("%w: %q at node %q", ErrUnknownDecision, decision, current)
		}
		current = target
	}

	return state, nil
}
