package policy

// BuiltinPolicies returns the policies every gate starts with. They only
// warn; blocking rules come from user policy files.
func BuiltinPolicies() []Policy {
	return []Policy{
		movingRefPolicy(),
		pipeToShellPolicy(),
		plainHTTPPolicy(),
	}
}

// movingRefPolicy flags git packages pinned to a branch that moves.
func movingRefPolicy() Policy {
	return Policy{
		Name:        "moving-git-ref",
		Description: "Git packages should be pinned to a tag or commit, not master or main",
		Severity:    SeverityWarning,
		Enabled:     true,
		Rego: `package akinizer.builtin.refs

import rego.v1

moving_refs := {"master", "main"}

deny contains violation if {
	git := input.target.git
	git.ref in moving_refs
	violation := {
		"message": sprintf("target '%s' installs %s at the moving ref '%s'", [input.target.name, git.repo_url, git.ref]),
	}
}
`,
	}
}

// pipeToShellPolicy flags commands that pipe downloaded content into a shell.
func pipeToShellPolicy() Policy {
	return Policy{
		Name:        "pipe-to-shell",
		Description: "Install commands should not pipe remote content into a shell",
		Severity:    SeverityWarning,
		Enabled:     true,
		Rego: `package akinizer.builtin.shell

import rego.v1

deny contains violation if {
	some cmd in input.target.commands
	regex.match("(curl|wget)[^|]*\\|\\s*(sudo\\s+)?(ba|z)?sh\\b", cmd)
	violation := {
		"message": sprintf("target '%s' pipes a download into a shell: %s", [input.target.name, cmd]),
	}
}
`,
	}
}

// plainHTTPPolicy flags repositories cloned without transport security.
func plainHTTPPolicy() Policy {
	return Policy{
		Name:        "plain-http-repo",
		Description: "Git repositories should be cloned over https or ssh",
		Severity:    SeverityWarning,
		Enabled:     true,
		Rego: `package akinizer.builtin.transport

import rego.v1

deny contains violation if {
	startswith(input.target.git.repo_url, "http://")
	violation := {
		"message": sprintf("target '%s' clones %s over plain http", [input.target.name, input.target.git.repo_url]),
	}
}
`,
	}
}
