package mesh

import (
	"io/fs"
	"path"
	"sync"
)

// Library maps mesh paths to loaded meshes. Each path is parsed once and the
// resulting *Mesh is shared by every object that references it.
type Library struct {
	fsys  fs.FS
	mu    sync.Mutex
	cache map[string]*Mesh
}

// NewLibrary returns an empty library reading from fsys.
func NewLibrary(fsys fs.FS) *Library {
	return &Library{fsys: fsys, cache: make(map[string]*Mesh)}
}

// Get returns the mesh at p, loading it on first use. Failed loads are not
// cached so a corrected file is picked up on the next request.
func (l *Library) Get(p string) (*Mesh, error) {
	key := path.Clean(p)
	l.mu.Lock()
	defer l.mu.Unlock()
	if m, ok := l.cache[key]; ok {
		return m, nil
	}
	m, err := Load(l.fsys, key)
	if err != nil {
		return nil, err
	}
	l.cache[key] = m
	return m, nil
}

// Len returns the number of cached meshes.
func (l *Library) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.cache)
}

// Purge drops every cached mesh. Objects already holding a mesh keep it.
func (l *Library) Purge() {
	l.mu.Lock()
	l.cache = make(map[string]*Mesh)
	l.mu.Unlock()
}
