package mapgen

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
)

// Source opens the per-fragment terrain and route files.
type Source interface {
	OpenMap(name string) (io.ReadCloser, error)
	OpenRoute(name string) (io.ReadCloser, error)
}

// DirSource reads <Root>/maps/<name>.map and <Root>/routes/<name>.rmp.
type DirSource struct {
	Root string
}

func (s DirSource) OpenMap(name string) (io.ReadCloser, error) {
	return os.Open(filepath.Join(s.Root, "maps", name+".map"))
}

func (s DirSource) OpenRoute(name string) (io.ReadCloser, error) {
	return os.Open(filepath.Join(s.Root, "routes", name+".rmp"))
}

// MemSource serves files from memory, keyed like DirSource paths ("maps/X.map").
type MemSource map[string][]byte

func (s MemSource) OpenMap(name string) (io.ReadCloser, error) {
	return s.open("maps/" + name + ".map")
}

func (s MemSource) OpenRoute(name string) (io.ReadCloser, error) {
	return s.open("routes/" + name + ".rmp")
}

func (s MemSource) open(key string) (io.ReadCloser, error) {
	b, ok := s[key]
	if !ok {
		return nil, &os.PathError{Op: "open", Path: key, Err: os.ErrNotExist}
	}
	return io.NopCloser(bytes.NewReader(b)), nil
}
