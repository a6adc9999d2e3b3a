package engine

import (
	"context"
)

// Operation is what a run would do with one target.
type Operation string

const (
	OperationSkip         Operation = "skip"
	OperationNoop         Operation = "noop"
	OperationInstall      Operation = "install"
	OperationForceInstall Operation = "force-install"
	OperationVerify       Operation = "verify"
	OperationExecute      Operation = "execute"
	OperationFail         Operation = "fail"
)

// PlanEntry is the predicted handling of one leaf unit.
type PlanEntry struct {
	Unit      string     `json:"unit"`
	Target    string     `json:"target"`
	Action    ActionKind `json:"action"`
	Operation Operation  `json:"operation"`
	Reason    string     `json:"reason,omitempty"`
	Warnings  []string   `json:"warnings,omitempty"`
}

// PlanSummary counts the entries of a plan by operation.
type PlanSummary struct {
	Total    int `json:"total"`
	Skip     int `json:"skip"`
	Noop     int `json:"noop"`
	Install  int `json:"install"`
	Verify   int `json:"verify"`
	Execute  int `json:"execute"`
	Failures int `json:"failures"`
}

// Plan is the dry-run report of a phase tree.
type Plan struct {
	Entries []PlanEntry `json:"entries"`
	Summary PlanSummary `json:"summary"`
}

// Changes returns the number of entries that would mutate the machine.
func (p *Plan) Changes() int {
	return p.Summary.Install + p.Summary.Execute
}

// Planner predicts the outcome of every target without installing or
// executing anything. Only the Oracle's read-only probes run.
type Planner struct {
	oracle Checker
	gate   Gate
}

// NewPlanner creates a planner. gate may be nil.
func NewPlanner(oracle Checker, gate Gate) *Planner {
	return &Planner{oracle: oracle, gate: gate}
}

// Plan walks the tree in definition order. Structural definition errors
// abort the plan; per-target problems become OperationFail entries.
func (p *Planner) Plan(ctx context.Context, root Phase) (*Plan, error) {
	plan := &Plan{}
	err := Walk(root, func(unit string, t Target) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		entry := p.planTarget(ctx, unit, t)
		plan.add(entry)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return plan, nil
}

func (p *Planner) planTarget(ctx context.Context, unit string, t Target) PlanEntry {
	dec, err := decide(ctx, t, p.oracle, p.gate)
	entry := PlanEntry{
		Unit:      unit,
		Target:    t.Name,
		Action:    t.Action,
		Operation: dec.Operation,
		Reason:    dec.Reason,
		Warnings:  dec.Warnings,
	}
	if err != nil {
		entry.Operation = OperationFail
		entry.Reason = err.Error()
		return entry
	}

	switch dec.Operation {
	case OperationNoop:
		entry.Reason = "already installed"
	case OperationExecute:
		entry.Reason = quoteCommands(dec.Args.(JobArgs).Commands)
	}
	return entry
}

func (p *Plan) add(e PlanEntry) {
	p.Entries = append(p.Entries, e)
	p.Summary.Total++
	switch e.Operation {
	case OperationSkip:
		p.Summary.Skip++
	case OperationNoop:
		p.Summary.Noop++
	case OperationInstall, OperationForceInstall:
		p.Summary.Install++
	case OperationVerify:
		p.Summary.Verify++
	case OperationExecute:
		p.Summary.Execute++
	case OperationFail:
		p.Summary.Failures++
	}
}
