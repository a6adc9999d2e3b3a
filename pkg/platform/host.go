package platform

import (
	"os/exec"
	"runtime"
)

// PathProber implements engine.CommandProber with exec.LookPath.
type PathProber struct{}

// Exists reports whether command resolves on PATH.
func (PathProber) Exists(command string) bool {
	if command == "" {
		return false
	}
	_, err := exec.LookPath(command)
	return err == nil
}

// Host identifies the running operating system.
type Host struct {
	// GOOS is the operating system name, as in runtime.GOOS.
	GOOS string
}

// Detect returns the Host for the running process.
func Detect() Host {
	return Host{GOOS: runtime.GOOS}
}

// IsLinux reports whether the host is the Linux (apt) variant.
func (h Host) IsLinux() bool { return h.GOOS == "linux" }

// IsMac reports whether the host is the macOS (brew) variant.
func (h Host) IsMac() bool { return h.GOOS == "darwin" }

// String returns the operating system name.
func (h Host) String() string { return h.GOOS }
