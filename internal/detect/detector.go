// Package detect recovers the externally callable surface of a project
// and normalizes it into a tool schema. Several interchangeable strategies
// implement the same Detector capability; a registry picks among them by
// availability and preference. The structural strategy is always last in
// the order because it has no external prerequisites.
package detect

import (
	"context"
	"fmt"

	"github.com/mcpify/mcpify/internal/debug"
	"github.com/mcpify/mcpify/internal/spec"
)

// Detector is the uniform detection capability. Detect never executes
// project code; it is a read-only analysis of the tree under root.
type Detector interface {
	// Name identifies the strategy ("structural", "openai").
	Name() string
	// Available reports whether the strategy's prerequisites (credentials,
	// reachable services) are satisfied right now.
	Available() bool
	// Detect analyzes the project under root and returns its tool schema.
	Detect(ctx context.Context, root string) (*spec.Config, error)
}

// Outcome pairs a detection result with the strategy that produced it,
// so callers can observe which one ultimately ran.
type Outcome struct {
	Config   *spec.Config
	Strategy string
}

// Registry holds an ordered list of strategies. It is constructed
// explicitly at startup and passed to callers; there is no process-wide
// registration.
type Registry struct {
	strategies []Detector
}

// NewRegistry builds a registry with the given strategy order.
func NewRegistry(strategies ...Detector) *Registry {
	return &Registry{strategies: append([]Detector(nil), strategies...)}
}

// Strategies returns the registered strategy names in priority order.
func (r *Registry) Strategies() []string {
	names := make([]string, 0, len(r.strategies))
	for _, d := range r.strategies {
		names = append(names, d.Name())
	}
	return names
}

// Select resolves a preference to a single strategy. An empty preference
// or "auto" picks the first available strategy in registry order; a named
// preference picks exactly that strategy and fails when it is unavailable.
func (r *Registry) Select(preference string) (Detector, error) {
	if preference == "" || preference == "auto" {
		for _, d := range r.strategies {
			if d.Available() {
				return d, nil
			}
		}
		return nil, fmt.Errorf("no detection strategy is available")
	}
	for _, d := range r.strategies {
		if d.Name() == preference {
			if !d.Available() {
				return nil, fmt.Errorf("detection strategy %q is not available", preference)
			}
			return d, nil
		}
	}
	return nil, fmt.Errorf("unknown detection strategy %q", preference)
}

// Detect runs the preferred strategy. Under "auto", a strategy failure
// falls through to the next available one, so an unreachable AI backend
// degrades to structural analysis instead of failing the command.
func (r *Registry) Detect(ctx context.Context, root, preference string) (*Outcome, error) {
	if preference != "" && preference != "auto" {
		d, err := r.Select(preference)
		if err != nil {
			return nil, err
		}
		cfg, err := d.Detect(ctx, root)
		if err != nil {
			return nil, err
		}
		return &Outcome{Config: cfg, Strategy: d.Name()}, nil
	}

	var lastErr error
	tried := false
	for _, d := range r.strategies {
		if !d.Available() {
			continue
		}
		tried = true
		cfg, err := d.Detect(ctx, root)
		if err != nil {
			debug.LogDetect("strategy %s failed: %v\n", d.Name(), err)
			lastErr = err
			continue
		}
		return &Outcome{Config: cfg, Strategy: d.Name()}, nil
	}
	if !tried {
		return nil, fmt.Errorf("no detection strategy is available")
	}
	return nil, lastErr
}
