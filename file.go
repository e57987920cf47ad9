// Package h5json implements the query backend of the h5json command: a
// read-only view of an HDF5 file that classifies nodes, summarizes
// dataset shape/dtype/value-range, and renders payloads for JSON
// transport. HDF5 format versions 0, 2 and 3 are supported.
package h5json

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/scigolib/h5json/internal/core"
	"github.com/scigolib/h5json/internal/utils"
)

// File is an open HDF5 file with its hierarchy loaded for querying.
type File struct {
	osFile *os.File
	sb     *core.Superblock
	root   *Group
}

// Open opens an HDF5 file read-only and loads its hierarchy.
func Open(filename string) (*File, error) {
	//nolint:gosec // G304: opening a user-named file is the point of the tool
	f, err := os.Open(filename)
	if err != nil {
		return nil, utils.WrapError("file open failed", err)
	}

	if !isHDF5File(f) {
		_ = f.Close()
		return nil, errors.New("not an HDF5 file")
	}

	fi, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, utils.WrapError("file stat failed", err)
	}

	sb, err := core.ReadSuperblock(f)
	if err != nil {
		_ = f.Close()
		return nil, utils.WrapError("superblock read failed", err)
	}

	//nolint:gosec // G115: file size is non-negative
	if sb.RootGroup >= uint64(fi.Size()) {
		_ = f.Close()
		return nil, fmt.Errorf("root group address %d beyond file size %d", sb.RootGroup, fi.Size())
	}

	file := &File{osFile: f, sb: sb}
	file.root, err = loadGroup(file, sb.RootGroup, "/", "/", 0)
	if err != nil {
		_ = f.Close()
		return nil, utils.WrapError("root group load failed", err)
	}

	return file, nil
}

// isHDF5File verifies the 8-byte HDF5 file signature.
func isHDF5File(r utils.ReaderAt) bool {
	buf := utils.GetBuffer(8)
	defer utils.ReleaseBuffer(buf)

	if _, err := r.ReadAt(buf, 0); err != nil {
		return false
	}
	return string(buf) == core.Signature
}

// Close closes the underlying file. Safe to call more than once.
func (f *File) Close() error {
	if f.osFile == nil {
		return nil
	}
	err := f.osFile.Close()
	f.osFile = nil
	return err
}

// Root returns the root group.
func (f *File) Root() *Group {
	return f.root
}

// FileInfo is the summary reported by the file-info query.
type FileInfo struct {
	SuperblockVersion uint8 `json:"superblock_version"`
	RootChildren      int   `json:"root_children"`
}

// Info summarizes the open file.
func (f *File) Info() *FileInfo {
	return &FileInfo{
		SuperblockVersion: f.sb.Version,
		RootChildren:      len(f.root.Children()),
	}
}

// SuperblockVersion returns the superblock format version (0, 2 or 3).
func (f *File) SuperblockVersion() uint8 {
	return f.sb.Version
}

// Resolve looks up a path inside the file. The leading slash is optional
// and "/" or the empty string resolve to the root group. A failed lookup
// returns ErrPathNotFound wrapped with the path.
func (f *File) Resolve(path string) (Object, error) {
	current := Object(f.root)

	for _, part := range splitPath(path) {
		group, ok := current.(*Group)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrPathNotFound, path)
		}
		child, ok := group.Child(part)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrPathNotFound, path)
		}
		current = child
	}

	return current, nil
}

// Contains reports whether the path resolves inside the file.
func (f *File) Contains(path string) bool {
	_, err := f.Resolve(path)
	return err == nil
}

// splitPath breaks a path into its non-empty components, so "/", "" and
// trailing slashes all normalize away.
func splitPath(path string) []string {
	var parts []string
	for _, part := range strings.Split(path, "/") {
		if part != "" {
			parts = append(parts, part)
		}
	}
	return parts
}

// Walk traverses the hierarchy depth-first, calling fn for every object
// including the root group.
func (f *File) Walk(fn func(path string, obj Object)) {
	walkObject(f.root, fn)
}

func walkObject(obj Object, fn func(string, Object)) {
	fn(obj.Path(), obj)

	if group, ok := obj.(*Group); ok {
		for _, child := range group.Children() {
			walkObject(child, fn)
		}
	}
}
