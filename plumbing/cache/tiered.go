package cache

import (
	"bytes"
	"fmt"
	"io"
	"sync"

	billy "github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"

	"github.com/web3infra-foundation/git-internal/plumbing"
	"github.com/web3infra-foundation/git-internal/plumbing/hash"
	"github.com/web3infra-foundation/git-internal/utils/ioutil"
	"github.com/web3infra-foundation/git-internal/utils/trace"
)

// The memory tier spends payloadBudgetNum/payloadBudgetDen of the
// configured limit on payload bytes; the remainder is headroom for disk
// handles, list nodes and map buckets, which are not separately metered.
const (
	payloadBudgetNum = 8
	payloadBudgetDen = 10
)

// diskHandle locates a spilled payload inside the spill directory.
type diskHandle struct {
	name string
	size int64
	typ  plumbing.ObjectType
}

// Tiered is a two-tier object cache. Entries live in a byte-accounted
// memory LRU; evicted payloads are spilled to numbered files in a
// directory of the given filesystem by a background writer, and read back
// on demand. Eviction never loses data.
type Tiered struct {
	mem  *ObjectLRU
	fs   billy.Filesystem
	dir  string
	keep bool

	mu      sync.Mutex
	wake    *sync.Cond
	disk    map[hash.ObjectID]diskHandle
	pending map[hash.ObjectID]plumbing.Entry
	queue   []plumbing.Entry
	counter int64
	werr    error
	closed  bool

	done chan struct{}
}

// TieredOption configures a Tiered cache.
type TieredOption func(*Tiered)

// WithKeepSpill keeps the spill directory contents on Close instead of
// deleting them.
func WithKeepSpill() TieredOption {
	return func(t *Tiered) {
		t.keep = true
	}
}

// NewTiered returns a two-tier cache with the given total memory limit,
// spilling to dir inside fs. The directory is created if missing.
func NewTiered(memLimit FileSize, fs billy.Filesystem, dir string, opts ...TieredOption) (*Tiered, error) {
	if memLimit <= 0 {
		memLimit = DefaultMaxSize
	}

	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create spill dir: %w", err)
	}

	t := &Tiered{
		fs:      fs,
		dir:     dir,
		disk:    make(map[hash.ObjectID]diskHandle),
		pending: make(map[hash.ObjectID]plumbing.Entry),
		done:    make(chan struct{}),
	}
	t.wake = sync.NewCond(&t.mu)
	t.mem = NewObjectLRU(memLimit*payloadBudgetNum/payloadBudgetDen, t.spill)

	for _, opt := range opts {
		opt(t)
	}

	go t.writeLoop()

	return t, nil
}

// MemSize returns the payload bytes resident in the memory tier.
func (t *Tiered) MemSize() FileSize {
	return t.mem.Size()
}

// MemBudget returns the payload budget of the memory tier.
func (t *Tiered) MemBudget() FileSize {
	return t.mem.MaxSize
}

// Put inserts the entry at the most-recently-used position of the memory
// tier, spilling colder entries to disk as needed to stay within budget.
func (t *Tiered) Put(e plumbing.Entry) error {
	t.mu.Lock()
	err := t.werr
	t.mu.Unlock()
	if err != nil {
		return err
	}

	t.mem.Put(e)
	return nil
}

// Get returns the entry for the given id. Spilled payloads are read back
// from disk, which may block, and reinserted into the memory tier.
func (t *Tiered) Get(id hash.ObjectID) (plumbing.Entry, bool, error) {
	if e, ok := t.mem.Get(id); ok {
		return e, true, nil
	}

	t.mu.Lock()
	if t.werr != nil {
		err := t.werr
		t.mu.Unlock()
		return plumbing.Entry{}, false, err
	}
	if e, ok := t.pending[id]; ok {
		t.mu.Unlock()
		t.mem.Put(e)
		return e, true, nil
	}
	h, ok := t.disk[id]
	t.mu.Unlock()

	if !ok {
		return plumbing.Entry{}, false, nil
	}

	e, err := t.readBack(id, h)
	if err != nil {
		return plumbing.Entry{}, false, err
	}

	t.mem.Put(e)
	return e, true, nil
}

// Contains reports presence in either tier without touching recency
// order.
func (t *Tiered) Contains(id hash.ObjectID) bool {
	if t.mem.Contains(id) {
		return true
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.pending[id]; ok {
		return true
	}
	_, ok := t.disk[id]
	return ok
}

// Close stops the background writer and removes the spill directory
// unless the cache was created with WithKeepSpill.
func (t *Tiered) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	t.wake.Broadcast()
	t.mu.Unlock()

	<-t.done

	t.mem.Clear()

	t.mu.Lock()
	err := t.werr
	t.mu.Unlock()

	if !t.keep {
		if rerr := util.RemoveAll(t.fs, t.dir); rerr != nil && err == nil {
			err = fmt.Errorf("remove spill dir: %w", rerr)
		}
	}

	return err
}

// spill is the memory tier's eviction hook. It parks the entry in the
// pending set and signals the background writer; payloads that already
// have a disk copy are dropped from memory only.
func (t *Tiered) spill(e plumbing.Entry) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed || t.werr != nil {
		return
	}
	if _, ok := t.disk[e.Hash]; ok {
		return
	}
	if _, ok := t.pending[e.Hash]; ok {
		return
	}

	t.pending[e.Hash] = e
	t.queue = append(t.queue, e)
	t.wake.Signal()
}

// writeLoop drains the spill queue on a background goroutine so that
// eviction does not stall the decode hot path.
func (t *Tiered) writeLoop() {
	defer close(t.done)

	t.mu.Lock()
	for {
		for len(t.queue) == 0 && !t.closed && t.werr == nil {
			t.wake.Wait()
		}
		if t.werr != nil || (t.closed && len(t.queue) == 0) {
			t.mu.Unlock()
			return
		}

		e := t.queue[0]
		t.queue = t.queue[1:]
		t.counter++
		name := t.fs.Join(t.dir, fmt.Sprintf("obj-%d", t.counter))
		t.mu.Unlock()

		err := t.writeFile(name, e.Data)

		t.mu.Lock()
		if err != nil {
			t.werr = fmt.Errorf("cache spill %s: %w", name, err)
			continue
		}

		trace.Pack.Printf("cache: spilled %s (%d bytes) to %s", e.Hash, len(e.Data), name)
		t.disk[e.Hash] = diskHandle{name: name, size: int64(len(e.Data)), typ: e.Type}
		delete(t.pending, e.Hash)
	}
}

func (t *Tiered) writeFile(name string, data []byte) (err error) {
	f, err := t.fs.Create(name)
	if err != nil {
		return err
	}

	defer ioutil.CheckClose(f, &err)

	_, err = ioutil.CopyBufferPool(f, bytes.NewReader(data))
	return err
}

func (t *Tiered) readBack(id hash.ObjectID, h diskHandle) (plumbing.Entry, error) {
	f, err := t.fs.Open(h.name)
	if err != nil {
		return plumbing.Entry{}, fmt.Errorf("cache read %s: %w", h.name, err)
	}
	defer f.Close()

	data := make([]byte, h.size)
	if _, err := io.ReadFull(f, data); err != nil {
		return plumbing.Entry{}, fmt.Errorf("cache read %s: %w", h.name, err)
	}

	return plumbing.Entry{Type: h.typ, Hash: id, Data: data}, nil
}
