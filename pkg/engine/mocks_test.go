package engine

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
)

// Mock shell for testing
type mockShell struct {
	mu        sync.Mutex
	exitCodes map[string]int
	errs      map[string]error
	commands  []string
}

func newMockShell() *mockShell {
	return &mockShell{
		exitCodes: make(map[string]int),
		errs:      make(map[string]error),
	}
}

func (m *mockShell) Exec(ctx context.Context, command string) (ExecResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.commands = append(m.commands, command)
	if err := m.errs[command]; err != nil {
		return ExecResult{}, err
	}
	return ExecResult{ExitCode: m.exitCodes[command]}, nil
}

func (m *mockShell) executed() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.commands...)
}

// Mock git client for testing
type mockGit struct {
	mu          sync.Mutex
	cloneErr    error
	checkoutErr error
	clones      []string
	checkouts   []string
	onClone     func(destDir string)
}

func (m *mockGit) Clone(ctx context.Context, repoURL, destDir string) error {
	m.mu.Lock()
	m.clones = append(m.clones, repoURL+" "+destDir)
	hook := m.onClone
	m.mu.Unlock()

	if m.cloneErr != nil {
		return m.cloneErr
	}
	if hook != nil {
		hook(destDir)
	}
	return nil
}

func (m *mockGit) Checkout(ctx context.Context, dir, ref string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.checkouts = append(m.checkouts, dir+"@"+ref)
	return m.checkoutErr
}

type entryKind int

const (
	entryDir entryKind = iota
	entryFile
	entrySymlink
)

type fsEntry struct {
	kind   entryKind
	target string
}

// In-memory filesystem for testing
type mockFS struct {
	mu       sync.Mutex
	entries  map[string]fsEntry
	mkdirs   []string
	removed  []string
	symlinks []string
}

func newMockFS() *mockFS {
	return &mockFS{entries: map[string]fsEntry{"/": {kind: entryDir}}}
}

func (m *mockFS) addDir(path string) {
	_ = m.MkdirAll(path)
}

func (m *mockFS) addFile(path string) {
	m.addDir(filepath.Dir(path))
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[filepath.Clean(path)] = fsEntry{kind: entryFile}
}

func (m *mockFS) addSymlink(path, target string) {
	m.addDir(filepath.Dir(path))
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[filepath.Clean(path)] = fsEntry{kind: entrySymlink, target: target}
}

// resolve follows symlinks; callers hold the lock.
func (m *mockFS) resolve(path string) (fsEntry, bool) {
	e, ok := m.entries[filepath.Clean(path)]
	for i := 0; ok && e.kind == entrySymlink && i < 8; i++ {
		e, ok = m.entries[filepath.Clean(e.target)]
	}
	return e, ok && e.kind != entrySymlink
}

func (m *mockFS) Exists(path string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.resolve(path)
	return ok
}

func (m *mockFS) IsDir(path string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.resolve(path)
	return ok && e.kind == entryDir
}

func (m *mockFS) IsSymlink(path string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[filepath.Clean(path)]
	return ok && e.kind == entrySymlink
}

func (m *mockFS) MkdirAll(path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	path = filepath.Clean(path)
	m.mkdirs = append(m.mkdirs, path)
	for p := path; ; p = filepath.Dir(p) {
		if e, ok := m.entries[p]; ok {
			if e.kind != entryDir {
				return fmt.Errorf("mkdir %s: not a directory", p)
			}
		} else {
			m.entries[p] = fsEntry{kind: entryDir}
		}
		if p == filepath.Dir(p) {
			return nil
		}
	}
}

func (m *mockFS) Symlink(oldname, newname string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	newname = filepath.Clean(newname)
	if _, ok := m.entries[newname]; ok {
		return fmt.Errorf("symlink %s: file exists", newname)
	}
	m.symlinks = append(m.symlinks, newname)
	m.entries[newname] = fsEntry{kind: entrySymlink, target: oldname}
	return nil
}

func (m *mockFS) RemoveAll(path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	path = filepath.Clean(path)
	m.removed = append(m.removed, path)
	for p := range m.entries {
		if p == path || strings.HasPrefix(p, path+"/") {
			delete(m.entries, p)
		}
	}
	return nil
}

func (m *mockFS) Remove(path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	path = filepath.Clean(path)
	if _, ok := m.entries[path]; !ok {
		return fmt.Errorf("remove %s: no such file or directory", path)
	}
	for p := range m.entries {
		if strings.HasPrefix(p, path+"/") {
			return fmt.Errorf("remove %s: directory not empty", path)
		}
	}
	m.removed = append(m.removed, path)
	delete(m.entries, path)
	return nil
}

// Mock command prober for testing
type mockProber struct {
	commands map[string]bool
	probed   []string
}

func (m *mockProber) Exists(command string) bool {
	m.probed = append(m.probed, command)
	return m.commands[command]
}

type mockPlatform struct {
	linux bool
	mac   bool
}

func (p mockPlatform) IsLinux() bool { return p.linux }
func (p mockPlatform) IsMac() bool   { return p.mac }

// Mock oracle for testing
type mockChecker struct {
	mu        sync.Mutex
	installed bool
	err       error
	calls     []string
}

func (m *mockChecker) IsInstalled(ctx context.Context, t Target) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, t.Name)
	return m.installed, m.err
}

// Mock installer for testing
type mockInstaller struct {
	mu    sync.Mutex
	err   error
	calls []string
}

func (m *mockInstaller) Install(ctx context.Context, t Target) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, t.Name)
	return m.err
}

func (m *mockInstaller) installed() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

// Mock policy gate for testing
type mockGate struct {
	verdict *Verdict
	err     error
}

func (m *mockGate) Evaluate(ctx context.Context, t Target) (*Verdict, error) {
	return m.verdict, m.err
}

// mockUnit is a unit produced by mockRuntime.
type mockUnit struct {
	name     string
	kind     string
	fn       func(ctx context.Context) error
	children []Unit
}

func (u *mockUnit) Name() string { return u.name }

func (u *mockUnit) Run(ctx context.Context) error {
	if u.fn != nil {
		return u.fn(ctx)
	}
	for _, c := range u.children {
		if err := c.Run(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Mock runtime for testing; groups always run children in order.
type mockRuntime struct {
	mu         sync.Mutex
	registered []string
	byName     map[string]Unit
}

func newMockRuntime() *mockRuntime {
	return &mockRuntime{byName: make(map[string]Unit)}
}

func (r *mockRuntime) Unit(name string, fn func(ctx context.Context) error) Unit {
	return &mockUnit{name: name, kind: "unit", fn: fn}
}

func (r *mockRuntime) Parallel(name string, children []Unit) Unit {
	return &mockUnit{name: name, kind: "parallel", children: children}
}

func (r *mockRuntime) Series(name string, children []Unit) Unit {
	return &mockUnit{name: name, kind: "series", children: children}
}

func (r *mockRuntime) Register(u Unit) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byName[u.Name()]; ok {
		return fmt.Errorf("unit %q already registered", u.Name())
	}
	r.byName[u.Name()] = u
	r.registered = append(r.registered, u.Name())
	return nil
}

// Mock dispatcher for testing
type mockDispatcher struct {
	mu         sync.Mutex
	outcome    Outcome
	failTarget map[string]error
	dispatched []string
}

func newMockDispatcher() *mockDispatcher {
	return &mockDispatcher{outcome: OutcomeInstalled, failTarget: make(map[string]error)}
}

func (m *mockDispatcher) Dispatch(ctx context.Context, t Target) (Outcome, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dispatched = append(m.dispatched, t.Name)
	if err := m.failTarget[t.Name]; err != nil {
		return OutcomeFailed, err
	}
	return m.outcome, nil
}

// recordingObserver collects reports.
type recordingObserver struct {
	mu      sync.Mutex
	reports []Report
}

func (o *recordingObserver) UnitFinished(ctx context.Context, r Report) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.reports = append(o.reports, r)
}

func newTestDeps() (Deps, *mockShell, *mockGit, *mockFS, *mockProber) {
	shell := newMockShell()
	git := &mockGit{}
	fs := newMockFS()
	prober := &mockProber{commands: make(map[string]bool)}
	deps := Deps{
		Shell:    shell,
		Git:      git,
		FS:       fs,
		Prober:   prober,
		Platform: mockPlatform{linux: true},
		Paths: Paths{
			BinInstallDir: "/home/me/bin",
			GitCloneDir:   "/home/me/opt",
		},
	}
	return deps, shell, git, fs, prober
}
