package segment

import (
	"fmt"
	"sync"
)

// Pool is the caller-bounded set of concurrently open segment file
// handles, owned by an internal pool with a caller-configurable
// maximum concurrent open count; the pool may close and reopen
// entries transparently.
//
// It tracks segments by their filename and opens them lazily on first
// access, closing the least-recently-used handle when the bound would
// otherwise be exceeded. Segment files that are still being written
// (the tail segment) are pinned and never closed by eviction.
type Pool struct {
	mu       sync.Mutex
	maxOpen  int
	order    []string // filenames, most-recently-used at the end
	open     map[string]*File
	pinned   map[string]bool
	openFunc func(filename string) (*File, uint16, error)
}

// NewPool creates a pool bounded to maxOpen concurrently open files.
// openFunc is called to actually open a segment file on a cache miss;
// tests can substitute it to avoid touching a real filesystem.
func NewPool(maxOpen int, openFunc func(filename string) (*File, uint16, error)) *Pool {
	if maxOpen < 1 {
		maxOpen = 1
	}
	return &Pool{
		maxOpen:  maxOpen,
		open:     make(map[string]*File),
		pinned:   make(map[string]bool),
		openFunc: openFunc,
	}
}

// Get returns the open *File for filename, opening it if necessary and
// evicting the least-recently-used unpinned entry if the pool is full.
func (p *Pool) Get(filename string) (*File, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if f, ok := p.open[filename]; ok {
		p.touch(filename)
		return f, nil
	}

	if len(p.open) >= p.maxOpen {
		if err := p.evictOneLocked(); err != nil {
			return nil, err
		}
	}

	f, _, err := p.openFunc(filename)
	if err != nil {
		return nil, err
	}
	p.open[filename] = f
	p.order = append(p.order, filename)
	return f, nil
}

// Pin marks filename's handle as exempt from eviction (used for the
// segment currently being written).
func (p *Pool) Pin(filename string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pinned[filename] = true
}

// Unpin clears a previous Pin, making the handle eligible for eviction
// again.
func (p *Pool) Unpin(filename string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.pinned, filename)
}

// Put registers an already-open *File (e.g. one just created for
// writing) with the pool, without going through openFunc.
func (p *Pool) Put(filename string, f *File) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.open[filename]; !ok {
		p.order = append(p.order, filename)
	}
	p.open[filename] = f
}

func (p *Pool) touch(filename string) {
	for i, n := range p.order {
		if n == filename {
			p.order = append(p.order[:i], p.order[i+1:]...)
			break
		}
	}
	p.order = append(p.order, filename)
}

func (p *Pool) evictOneLocked() error {
	for i, name := range p.order {
		if p.pinned[name] {
			continue
		}
		f := p.open[name]
		if err := f.Close(); err != nil {
			return fmt.Errorf("segment pool: closing %s for eviction: %w", name, err)
		}
		delete(p.open, name)
		p.order = append(p.order[:i], p.order[i+1:]...)
		return nil
	}
	return fmt.Errorf("segment pool: all %d open handles pinned, cannot evict", p.maxOpen)
}

// CloseAll closes every handle the pool currently owns.
func (p *Pool) CloseAll() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	var firstErr error
	for name, f := range p.open {
		if err := f.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(p.open, name)
	}
	p.order = nil
	return firstErr
}
