package policy

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/open-policy-agent/opa/v1/ast"
	"github.com/open-policy-agent/opa/v1/rego"
	"github.com/rs/zerolog"

	"github.com/akinizer/akinizer/pkg/engine"
)

// Gate evaluates policies for each target before it is dispatched. It
// implements engine.Gate.
type Gate struct {
	mu       sync.RWMutex
	policies map[string]*compiledPolicy
	logger   zerolog.Logger
}

// compiledPolicy is a policy with its deny query prepared.
type compiledPolicy struct {
	policy Policy
	query  rego.PreparedEvalQuery
}

// NewGate creates a gate loaded with the built-in policies.
func NewGate(ctx context.Context, logger zerolog.Logger) (*Gate, error) {
	g := &Gate{
		policies: make(map[string]*compiledPolicy),
		logger:   logger.With().Str("component", "policy").Logger(),
	}

	for _, p := range BuiltinPolicies() {
		if err := g.Add(ctx, p); err != nil {
			return nil, fmt.Errorf("failed to compile built-in policy %s: %w", p.Name, err)
		}
	}
	return g, nil
}

// Add compiles a policy and adds it, replacing any policy of the same name.
func (g *Gate) Add(ctx context.Context, p Policy) error {
	module, err := ast.ParseModule(p.Name, p.Rego)
	if err != nil {
		return fmt.Errorf("failed to parse policy: %w", err)
	}
	query := module.Package.Path.String() + ".deny"

	prepared, err := rego.New(
		rego.Module(p.Name, p.Rego),
		rego.Query(query),
	).PrepareForEval(ctx)
	if err != nil {
		return fmt.Errorf("failed to prepare query: %w", err)
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	g.policies[p.Name] = &compiledPolicy{policy: p, query: prepared}

	g.logger.Debug().Str("policy", p.Name).Str("query", query).Msg("Policy compiled successfully")
	return nil
}

// Load reads and adds every policy under paths.
func (g *Gate) Load(ctx context.Context, paths []string) error {
	policies, err := NewLoader(g.logger).LoadFromPaths(ctx, paths)
	if err != nil {
		return err
	}
	for _, p := range policies {
		if err := g.Add(ctx, p); err != nil {
			return fmt.Errorf("failed to compile policy %s: %w", p.Name, err)
		}
	}
	return nil
}

// Names returns the loaded policy names in order.
func (g *Gate) Names() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.sortedNames()
}

// Violations evaluates every enabled policy against t. A policy that fails
// to evaluate is logged and reported as a warning.
func (g *Gate) Violations(ctx context.Context, t engine.Target) []Violation {
	g.mu.RLock()
	defer g.mu.RUnlock()

	input := NewInput(t)
	var violations []Violation
	for _, name := range g.sortedNames() {
		cp := g.policies[name]
		if !cp.policy.Enabled {
			continue
		}

		found, err := g.evaluate(ctx, cp, input)
		if err != nil {
			g.logger.Error().Err(err).Str("policy", name).Str("target", t.Name).Msg("Policy evaluation failed")
			violations = append(violations, Violation{
				Policy:   name,
				Target:   t.Name,
				Message:  fmt.Sprintf("policy %s evaluation failed: %v", name, err),
				Severity: SeverityWarning,
			})
			continue
		}
		violations = append(violations, found...)
	}
	return violations
}

// Evaluate implements engine.Gate.
func (g *Gate) Evaluate(ctx context.Context, t engine.Target) (*engine.Verdict, error) {
	verdict := &engine.Verdict{Allowed: true}
	for _, v := range g.Violations(ctx, t) {
		msg := fmt.Sprintf("[%s] %s", v.Policy, v.Message)
		if v.Severity.Blocks() {
			verdict.Allowed = false
			verdict.Reasons = append(verdict.Reasons, msg)
		} else {
			verdict.Warnings = append(verdict.Warnings, msg)
		}
	}
	return verdict, nil
}

func (g *Gate) sortedNames() []string {
	names := make([]string, 0, len(g.policies))
	for name := range g.policies {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// evaluate runs one policy's deny query.
func (g *Gate) evaluate(ctx context.Context, cp *compiledPolicy, input Input) ([]Violation, error) {
	results, err := cp.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return nil, fmt.Errorf("policy evaluation error: %w", err)
	}

	var violations []Violation
	for _, result := range results {
		if len(result.Expressions) == 0 {
			continue
		}
		denySet, ok := result.Expressions[0].Value.([]interface{})
		if !ok {
			continue
		}
		for _, d := range denySet {
			violations = append(violations, newViolation(cp.policy, input.Target.Name, d))
		}
	}
	return violations, nil
}

// newViolation reads a deny element: a message string or an object with
// message and an optional severity.
func newViolation(p Policy, target string, result interface{}) Violation {
	v := Violation{
		Policy:   p.Name,
		Target:   target,
		Severity: p.Severity,
	}

	switch r := result.(type) {
	case string:
		v.Message = r
	case map[string]interface{}:
		if msg, ok := r["message"].(string); ok {
			v.Message = msg
		}
		if sev, ok := r["severity"].(string); ok {
			v.Severity = Severity(sev)
		}
	default:
		v.Message = fmt.Sprintf("%v", result)
	}
	return v
}
