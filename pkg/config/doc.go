// Package config loads akinizer settings and catalogs.
//
// # Settings
//
// Settings come from an explicit --config path or the first of
// ./.akinizerrc.yaml, ./.akinizerrc.yml and ~/.akinizerrc.yaml, merged over
// DefaultSettings. They supply the engine's install locations and the
// logging, metrics, tracing, journal and policy sections.
//
// # Catalogs
//
// A catalog is the data form of a phase tree, written in YAML or CUE:
//
//	parallel: false
//	phases:
//	  - name: base
//	    action: install
//	    targets:
//	      - git
//	      - name: fd
//	        command: fdfind
//	      - [ripgrep, {command: rg}]
//	  - name: mac-apps
//	    action: install
//	    when: is_mac()
//	    targetOpts: {isGUI: true}
//	    targets: [iterm2]
//
// CUE catalogs are validated against a built-in #Catalog schema, then
// exported to JSON and decoded like YAML.
//
// Predicate options (skipAction, forceAction, testFn) and phase conditions
// (when) are Starlark expressions evaluated by Env. The expressions see a
// target struct (name, command, action) and the builtins is_linux, is_mac,
// file_exists, command_exists, env, home and path_join.
//
// Compiler turns a Catalog into an engine.Phase tree; Watcher reports
// catalog edits for "akin watch".
package config
