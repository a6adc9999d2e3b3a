// Package policy gates targets with Open Policy Agent.
//
// Every policy is a Rego module whose deny set is evaluated once per target,
// before the oracle or any installer runs. The input document is:
//
//	{
//	  "target": {
//	    "name": "fzf", "action": "install", "command": "fzf",
//	    "commands": [], "gui": false, "forced": false,
//	    "git": {"repo_url": "...", "ref": "v0.54.0", "bin_symlink": "bin/fzf"}
//	  }
//	}
//
// A deny element is either a message string or an object with "message"
// and an optional "severity". Violations of severity error or critical deny
// the target; everything else is logged as a warning.
//
// Built-in policies only warn: moving git refs (master, main), downloads
// piped into a shell, and repositories cloned over plain http. Policies
// loaded from .rego files deny by default:
//
//	package fleet.headless
//
//	import rego.v1
//
//	deny contains msg if {
//		input.target.gui
//		msg := sprintf("GUI target '%s' is not allowed", [input.target.name])
//	}
package policy
