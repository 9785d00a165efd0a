package packfile

import (
	"context"
	"fmt"
	"io"
	"runtime"
	"sync"

	"github.com/go-git/go-billy/v5/memfs"
	"golang.org/x/sync/errgroup"

	"github.com/web3infra-foundation/git-internal/plumbing"
	"github.com/web3infra-foundation/git-internal/plumbing/cache"
	gihash "github.com/web3infra-foundation/git-internal/plumbing/hash"
	"github.com/web3infra-foundation/git-internal/utils/trace"
)

var (
	// ErrUnresolvedDeltas is returned when the pack ends with deltas
	// still waiting for a base that never surfaced.
	ErrUnresolvedDeltas = NewError("pack contains unresolved deltas")
	// ErrCacheIO wraps failures of the object cache's disk tier.
	ErrCacheIO = NewError("object cache i/o error")
)

// Observer interface is implemented by index encoders.
type Observer interface {
	// OnHeader is called when a new packfile is opened.
	OnHeader(count uint32) error
	// OnInflatedObjectHeader is called for each object header read.
	OnInflatedObjectHeader(t plumbing.ObjectType, objSize, pos int64) error
	// OnInflatedObjectContent is called for each decoded object.
	OnInflatedObjectContent(h gihash.ObjectID, pos int64, crc uint32, content []byte) error
	// OnFooter is called when decoding is done.
	OnFooter(h gihash.ObjectID) error
}

// EntryObserver receives every reconstructed entry together with its
// metadata. Entries arrive in completion order, not pack order; consumers
// that need pack order must sort by EntryMeta.Offset. Within a delta
// chain the base is always delivered before its dependents.
type EntryObserver func(plumbing.Entry, plumbing.EntryMeta) error

// Parser decodes a packfile: it drives the scanner, hands CPU-bound work
// to a bounded worker pool, resolves delta chains through the waitlist
// and publishes every reconstructed object to the cache and to any
// observer associated to it. It is also used to generate indexes.
type Parser struct {
	scanner   *Scanner
	cache     cache.Object
	ownCache  bool
	waitlist  *Waitlist
	observers []Observer

	onEntry        EntryObserver
	onResolvedBase func(gihash.ObjectID)

	kind       gihash.Kind
	workers    int
	queueDepth int

	// resolved maps a pack offset to the id of the base published at
	// that offset, binding offsets to ids for the waitlist's symmetry.
	resMu    sync.Mutex
	resolved map[int64]gihash.ObjectID

	emitMu  sync.Mutex
	emitted int

	checksum gihash.ObjectID
	m        sync.Mutex
}

// ParserOption configures a Parser.
type ParserOption func(*Parser)

// WithObjectFormat sets the hash kind for the session. Defaults to the
// session kind.
func WithObjectFormat(k gihash.Kind) ParserOption {
	return func(p *Parser) {
		p.kind = k
	}
}

// WithCache sets the object cache used for decoded payloads. Preloading
// entries into it supplies external bases for thin packs. When not set,
// the parser owns a private two-tier cache spilling to an in-memory
// filesystem, and closes it when done.
func WithCache(c cache.Object) ParserOption {
	return func(p *Parser) {
		p.cache = c
	}
}

// WithWorkers sets the number of parallel hash/apply workers. Defaults
// to the number of logical CPUs.
func WithWorkers(n int) ParserOption {
	return func(p *Parser) {
		p.workers = n
	}
}

// WithQueueDepth bounds the in-flight decode work. The driver blocks on
// a full queue, which pauses the pull-based scanner.
func WithQueueDepth(n int) ParserOption {
	return func(p *Parser) {
		p.queueDepth = n
	}
}

// WithScannerObservers sets the observers to be notified during the
// scanning or parsing of a pack file, such as the idx writer.
func WithScannerObservers(ob ...Observer) ParserOption {
	return func(p *Parser) {
		p.observers = ob
	}
}

// WithEntryObserver sets the callback receiving every reconstructed
// entry.
func WithEntryObserver(fn EntryObserver) ParserOption {
	return func(p *Parser) {
		p.onEntry = fn
	}
}

// WithResolvedBaseNotify sets a hook fired for each base that had
// waiters parked against it when it resolved.
func WithResolvedBaseNotify(fn func(gihash.ObjectID)) ParserOption {
	return func(p *Parser) {
		p.onResolvedBase = fn
	}
}

// NewParser creates a new Parser reading from data.
func NewParser(data io.Reader, opts ...ParserOption) *Parser {
	p := &Parser{
		kind:     gihash.Default(),
		waitlist: NewWaitlist(),
		resolved: make(map[int64]gihash.ObjectID),
	}

	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}

	if p.workers <= 0 {
		p.workers = runtime.GOMAXPROCS(0)
	}
	if p.queueDepth <= 0 {
		p.queueDepth = p.workers * 2
	}

	p.scanner = NewScanner(data, WithScannerObjectFormat(p.kind))

	return p
}

// parserTask is one unit of worker work: either a base record to hash
// and publish, or a batch of parked deltas whose base just resolved.
type parserTask struct {
	base   *ObjectHeader
	deltas []*ObjectHeader
	baseID gihash.ObjectID
}

// Parse decodes the packfile, returning its trailer hash. Cancellation
// is cooperative through ctx, checked between records and before new
// work is scheduled.
func (p *Parser) Parse(ctx context.Context) (gihash.ObjectID, error) {
	p.m.Lock()
	defer p.m.Unlock()

	if p.cache == nil {
		c, err := cache.NewTiered(cache.DefaultMaxSize, memfs.New(), "spill")
		if err != nil {
			return gihash.ZeroID(p.kind), fmt.Errorf("%w: %w", ErrCacheIO, err)
		}
		p.cache = c
		p.ownCache = true
	}
	defer func() {
		if p.ownCache {
			p.cache.Close()
			p.cache = nil
			p.ownCache = false
		}
	}()

	g, gctx := errgroup.WithContext(ctx)
	tasks := make(chan parserTask, p.queueDepth)

	for i := 0; i < p.workers; i++ {
		g.Go(func() error {
			for {
				select {
				case t, ok := <-tasks:
					if !ok {
						return nil
					}
					if err := p.process(t); err != nil {
						return err
					}
				case <-gctx.Done():
					return gctx.Err()
				}
			}
		})
	}

	driveErr := p.drive(gctx, tasks)
	close(tasks)

	if err := g.Wait(); err != nil {
		return gihash.ZeroID(p.kind), err
	}
	if driveErr != nil {
		return gihash.ZeroID(p.kind), driveErr
	}
	if err := ctx.Err(); err != nil {
		return gihash.ZeroID(p.kind), err
	}

	if !p.waitlist.Empty() {
		offsets, ids := p.waitlist.Pending()
		return gihash.ZeroID(p.kind), ErrUnresolvedDeltas.AddDetails(
			"bases never seen: offsets %v, ids %v", offsets, ids)
	}

	trace.Pack.Printf("decode: emitted %d objects, checksum %s", p.emitted, p.checksum)

	if err := p.onFooter(p.checksum); err != nil {
		return gihash.ZeroID(p.kind), err
	}

	return p.checksum, nil
}

// drive runs the scanner loop, dispatching records to the worker pool.
func (p *Parser) drive(ctx context.Context, tasks chan<- parserTask) error {
	for p.scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}

		data := p.scanner.Data()
		switch data.Section {
		case HeaderSection:
			header := data.Value().(Header)
			if err := p.onHeader(header.ObjectsQty); err != nil {
				return err
			}

		case ObjectSection:
			oh := data.Value().(ObjectHeader)
			if err := p.dispatch(ctx, &oh, tasks); err != nil {
				return err
			}

		case FooterSection:
			p.checksum = data.Value().(gihash.ObjectID)
		}
	}

	return p.scanner.Error()
}

// dispatch routes one record: base records go to the workers, delta
// records are parked first and self-woken when their base is already
// published. Parking before the re-check keeps the race with a
// concurrent publish benign: Wake removes atomically, so whichever side
// wins hands the delta out exactly once.
func (p *Parser) dispatch(ctx context.Context, oh *ObjectHeader, tasks chan<- parserTask) error {
	switch oh.Type {
	case plumbing.OFSDeltaObject, plumbing.ZstdOFSDeltaObject:
		p.waitlist.ParkOffset(oh.OffsetReference, oh)

		p.resMu.Lock()
		id, ok := p.resolved[oh.OffsetReference]
		p.resMu.Unlock()
		if !ok {
			return nil
		}

		deltas := p.waitlist.WakeOffset(oh.OffsetReference)
		if len(deltas) == 0 {
			return nil
		}
		return p.send(ctx, tasks, parserTask{deltas: deltas, baseID: id})

	case plumbing.REFDeltaObject:
		p.waitlist.ParkID(oh.Reference, oh)

		if !p.cache.Contains(oh.Reference) {
			return nil
		}

		deltas := p.waitlist.WakeID(oh.Reference)
		if len(deltas) == 0 {
			return nil
		}
		return p.send(ctx, tasks, parserTask{deltas: deltas, baseID: oh.Reference})

	default:
		return p.send(ctx, tasks, parserTask{base: oh})
	}
}

func (p *Parser) send(ctx context.Context, tasks chan<- parserTask, t parserTask) error {
	select {
	case tasks <- t:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// process runs on a worker: hash and publish a base record, or apply a
// batch of deltas and, transitively, everything they unlock.
func (p *Parser) process(t parserTask) error {
	if t.base != nil {
		id := plumbing.ComputeHash(p.kind, t.base.Type, t.base.Payload)
		entry := plumbing.Entry{Type: t.base.Type, Hash: id, Data: t.base.Payload}

		woken, err := p.publish(entry, t.base)
		if err != nil {
			return err
		}
		return p.applyAll(woken, entry)
	}

	base, ok, err := p.cache.Get(t.baseID)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCacheIO, err)
	}
	if !ok {
		return plumbing.ErrObjectNotFound
	}

	return p.applyAll(t.deltas, base)
}

// applyAll applies deltas against their base, iteratively following the
// chain: each reconstructed entry may wake further parked deltas.
func (p *Parser) applyAll(deltas []*ObjectHeader, base plumbing.Entry) error {
	type applyItem struct {
		dh   *ObjectHeader
		base plumbing.Entry
	}

	stack := make([]applyItem, 0, len(deltas))
	for _, dh := range deltas {
		stack = append(stack, applyItem{dh: dh, base: base})
	}

	for len(stack) > 0 {
		it := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		target, err := p.applyDelta(it.dh, it.base)
		if err != nil {
			return err
		}

		woken, err := p.publish(target, it.dh)
		if err != nil {
			return err
		}

		for _, dh := range woken {
			stack = append(stack, applyItem{dh: dh, base: target})
		}
	}

	return nil
}

// applyDelta reconstructs the target entry of one delta record. The
// target keeps the base's object type; reconstructed intermediates are
// indistinguishable from bases decoded directly.
func (p *Parser) applyDelta(dh *ObjectHeader, base plumbing.Entry) (plumbing.Entry, error) {
	var data []byte
	var err error

	switch dh.Type {
	case plumbing.ZstdOFSDeltaObject:
		data, err = PatchZstdDelta(base.Data, dh.Payload, dh.Size)
	default:
		data, err = PatchDelta(base.Data, dh.Payload)
	}
	if err != nil {
		return plumbing.Entry{}, fmt.Errorf("delta at offset %d: %w", dh.Offset, err)
	}

	id := plumbing.ComputeHash(p.kind, base.Type, data)
	return plumbing.Entry{Type: base.Type, Hash: id, Data: data}, nil
}

// publish makes an entry visible: cache first, then the offset-to-id
// binding, then emission, then an atomic drain of the waitlist under
// both keys. Publishing to the cache before draining is what keeps a
// concurrently parked delta from stalling forever.
func (p *Parser) publish(e plumbing.Entry, oh *ObjectHeader) ([]*ObjectHeader, error) {
	if err := p.cache.Put(e); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCacheIO, err)
	}

	p.resMu.Lock()
	p.resolved[oh.Offset] = e.Hash
	p.resMu.Unlock()

	meta := plumbing.EntryMeta{Offset: oh.Offset, CRC32: oh.Crc32}
	if err := p.emit(e, meta); err != nil {
		return nil, err
	}

	woken := p.waitlist.Wake(oh.Offset, e.Hash)
	if len(woken) > 0 && p.onResolvedBase != nil {
		p.onResolvedBase(e.Hash)
	}

	return woken, nil
}

// emit delivers one entry to the callback and the observers. Serialized:
// observers such as the idx writer see a consistent stream.
func (p *Parser) emit(e plumbing.Entry, meta plumbing.EntryMeta) error {
	p.emitMu.Lock()
	defer p.emitMu.Unlock()

	p.emitted++

	if p.onEntry != nil {
		if err := p.onEntry(e, meta); err != nil {
			return err
		}
	}

	if err := p.forEachObserver(func(o Observer) error {
		return o.OnInflatedObjectHeader(e.Type, int64(len(e.Data)), meta.Offset)
	}); err != nil {
		return err
	}

	return p.forEachObserver(func(o Observer) error {
		return o.OnInflatedObjectContent(e.Hash, meta.Offset, meta.CRC32, e.Data)
	})
}

func (p *Parser) forEachObserver(f func(o Observer) error) error {
	for _, o := range p.observers {
		if err := f(o); err != nil {
			return err
		}
	}
	return nil
}

func (p *Parser) onHeader(count uint32) error {
	return p.forEachObserver(func(o Observer) error {
		return o.OnHeader(count)
	})
}

func (p *Parser) onFooter(h gihash.ObjectID) error {
	return p.forEachObserver(func(o Observer) error {
		return o.OnFooter(h)
	})
}
