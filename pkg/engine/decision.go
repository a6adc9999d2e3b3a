package engine

import (
	"context"
	"fmt"
)

// Decision is the handling path chosen for one target before anything
// mutates the machine. Dispatcher and Planner both act on it.
type Decision struct {
	Operation Operation
	Args      ActionArgs
	// Reason is the skip message of a skipped target.
	Reason   string
	Warnings []string
}

// decide walks the decision chain shared by runs and plans: skip
// predicate, action arguments, policy, then force predicate or oracle.
// Only the oracle's read-only probes run. On error the operation is
// OperationFail; warnings gathered so far are still returned.
func decide(ctx context.Context, t Target, oracle Checker, gate Gate) (Decision, error) {
	dec := Decision{Operation: OperationFail}

	skip, err := evalPredicate(t.Options.SkipAction, t, "skipAction")
	if err != nil {
		return dec, err
	}
	if skip {
		dec.Operation = OperationSkip
		if t.Options.SkipActionMessage != nil {
			dec.Reason = t.Options.SkipActionMessage(t)
		}
		return dec, nil
	}

	args, err := t.Args()
	if err != nil {
		return dec, err
	}
	dec.Args = args

	if gate != nil {
		verdict, err := gate.Evaluate(ctx, t)
		if err != nil {
			return dec, fmt.Errorf("evaluate policy for '%s': %w", t.Name, err)
		}
		dec.Warnings = verdict.Warnings
		if !verdict.Allowed {
			return dec, NewPolicyDeniedError(
				fmt.Sprintf("target '%s' denied by policy: %v", t.Name, verdict.Reasons)).
				WithTarget(t.Name).WithAction(t.Action).
				WithDetail("reasons", verdict.Reasons)
		}
	}

	switch a := args.(type) {
	case InstallArgs, GitInstallArgs:
		force, err := evalPredicate(t.Options.ForceAction, t, "forceAction")
		if err != nil {
			return dec, err
		}
		if force {
			dec.Operation = OperationForceInstall
			return dec, nil
		}
		installed, err := oracle.IsInstalled(ctx, t)
		if err != nil {
			return dec, err
		}
		if installed {
			dec.Operation = OperationNoop
		} else {
			dec.Operation = OperationInstall
		}
	case VerifyArgs:
		installed, err := oracle.IsInstalled(ctx, t)
		if err != nil {
			return dec, err
		}
		if !installed {
			return dec, NewVerificationFailedError(t)
		}
		dec.Operation = OperationVerify
	case JobArgs:
		if len(a.Commands) == 0 {
			return dec, NewDefinitionError(
				fmt.Sprintf("execute failed for %s: target option 'actionCommands' is required", t.Name), nil).
				WithTarget(t.Name).WithAction(t.Action)
		}
		dec.Operation = OperationExecute
	default:
		return dec, NewUnsupportedActionError(t)
	}
	return dec, nil
}

// evalPredicate runs an optional predicate, wrapping its error with the option name.
func evalPredicate(p Predicate, t Target, option string) (bool, error) {
	if p == nil {
		return false, nil
	}
	ok, err := p(t)
	if err != nil {
		return false, NewDefinitionError(
			fmt.Sprintf("option '%s' of target '%s' failed", option, t.Name), err).
			WithTarget(t.Name).WithAction(t.Action)
	}
	return ok, nil
}
