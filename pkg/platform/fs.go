package platform

import (
	"os"
)

// FileSystem implements engine.FileSystem on the local disk.
type FileSystem struct {
	// DirPerm is used for created directories (default 0o755).
	DirPerm os.FileMode
}

// NewFileSystem returns a FileSystem with default permissions.
func NewFileSystem() *FileSystem {
	return &FileSystem{DirPerm: 0o755}
}

// Exists reports whether path resolves, following symlinks.
func (f *FileSystem) Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// IsDir reports whether path resolves to a directory.
func (f *FileSystem) IsDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// IsSymlink reports whether path itself is a symlink, dangling or not.
func (f *FileSystem) IsSymlink(path string) bool {
	info, err := os.Lstat(path)
	return err == nil && info.Mode()&os.ModeSymlink != 0
}

// MkdirAll creates path and any missing parents.
func (f *FileSystem) MkdirAll(path string) error {
	perm := f.DirPerm
	if perm == 0 {
		perm = 0o755
	}
	return os.MkdirAll(path, perm)
}

// Symlink creates newname pointing at oldname.
func (f *FileSystem) Symlink(oldname, newname string) error {
	return os.Symlink(oldname, newname)
}

// Remove removes a file or an empty directory.
func (f *FileSystem) Remove(path string) error {
	return os.Remove(path)
}

// RemoveAll removes path and everything below it.
func (f *FileSystem) RemoveAll(path string) error {
	return os.RemoveAll(path)
}
