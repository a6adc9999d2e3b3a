// Package engine provides the core of the akinizer workstation provisioner.
//
// # Overview
//
// A workstation is described by a static tree of phases. Each phase carries an
// action kind, a concurrency mode and either leaf target definitions or child
// phases. The engine walks that tree and turns it into uniquely named
// executable units:
//
//  1. Resolve - Definitions are normalized into Targets (ResolveTarget)
//  2. Build - Phases become parallel or series groups of units (Builder)
//  3. Dispatch - Each leaf unit hands its Target to the Dispatcher
//  4. Check - The Oracle decides whether the Target is already satisfied
//  5. Install - The CommandInstaller or GitInstaller performs the change
//
// Walk and the Planner cover the first four steps without building units or
// mutating anything, for listing and dry runs.
//
// # Core Domain Types
//
//   - Phase: a named group of targets or child phases sharing one action kind
//   - TargetDef: a bare name (Named) or a name with options (NamedWithOptions)
//   - TargetOptions: inheritable options merged from phase to target
//   - Target: one resolved unit with merged options
//   - Outcome: terminal state of one dispatch (skipped/satisfied/installed/executed/failed)
//
// # Boundary Interfaces
//
// Everything with a side effect sits behind an interface so the core can be
// exercised against fakes:
//
//   - Shell: runs one shell command and reports its exit code
//   - GitClient: clones a repository and checks out a ref
//   - FileSystem: existence, directory and symlink checks plus mutations
//   - CommandProber: reports whether a command resolves on PATH
//   - Platform: identifies the Linux and macOS variants
//   - Runtime: composes units into parallel and series groups
//
// # Error Classification
//
// Every failure raised by the engine is an *EngineError carrying an ErrorKind.
// Use errors.Is with the exported sentinels to branch on the kind:
//
//	if errors.Is(err, engine.ErrVerificationFailed) {
//	    // a prerequisite is missing
//	}
//
// The engine never retries. Re-running a tree is the recovery mechanism: the
// Oracle makes every install idempotent.
//
// # Example Usage
//
//	root := engine.Root([]engine.Phase{
//	    {
//	        Name:     "utils",
//	        Action:   engine.ActionInstall,
//	        Parallel: true,
//	        Targets:  []engine.TargetDef{engine.Named("jq"), engine.Named("htop")},
//	    },
//	}, false)
//
//	builder := engine.NewBuilder(runtime, dispatcher, logger)
//	unit, err := builder.Build(root)
//	if err != nil {
//	    return err
//	}
//	return unit.Run(ctx)
package engine
