package idxfile

import (
	"bytes"
	"fmt"
	"sort"
	"sync"

	"github.com/web3infra-foundation/git-internal/plumbing"
	"github.com/web3infra-foundation/git-internal/plumbing/hash"
)

// Writer implements the packfile Observer interface and accumulates the
// (id, offset, crc) triples needed to build an index. It is safe for
// concurrent use: the parser notifies object contents from its workers.
type Writer struct {
	m sync.Mutex

	count    uint32
	checksum hash.ObjectID
	objects  objects
}

type objects []Entry

// Add appends new object data.
func (w *Writer) Add(h hash.ObjectID, pos uint64, crc uint32) {
	w.m.Lock()
	defer w.m.Unlock()

	w.objects = append(w.objects, Entry{Hash: h, Offset: pos, CRC32: crc})
}

// OnHeader implements the packfile Observer interface.
func (w *Writer) OnHeader(count uint32) error {
	w.m.Lock()
	defer w.m.Unlock()

	w.count = count
	w.objects = make(objects, 0, count)
	return nil
}

// OnInflatedObjectHeader implements the packfile Observer interface.
func (w *Writer) OnInflatedObjectHeader(t plumbing.ObjectType, objSize, pos int64) error {
	return nil
}

// OnInflatedObjectContent implements the packfile Observer interface.
func (w *Writer) OnInflatedObjectContent(h hash.ObjectID, pos int64, crc uint32, _ []byte) error {
	w.Add(h, uint64(pos), crc)
	return nil
}

// OnFooter implements the packfile Observer interface.
func (w *Writer) OnFooter(h hash.ObjectID) error {
	w.m.Lock()
	defer w.m.Unlock()

	w.checksum = h
	return nil
}

// Index returns a filled MemoryIndex with the information collected by
// the observer callbacks.
func (w *Writer) Index() (*MemoryIndex, error) {
	w.m.Lock()
	defer w.m.Unlock()

	if w.count > 0 && len(w.objects) != int(w.count) {
		return nil, fmt.Errorf("%w: index writer saw %d objects, header declared %d",
			ErrMalformedIdxFile, len(w.objects), w.count)
	}

	sort.Sort(w.objects)

	idx := &MemoryIndex{
		Version:          VersionSupported,
		ObjectFormat:     w.objectFormat(),
		Entries:          w.objects,
		PackfileChecksum: w.checksum,
	}

	for i, o := range w.objects {
		idx.Fanout[o.Hash.Bytes()[0]] = uint32(i + 1)
	}
	for i := 1; i < 256; i++ {
		if idx.Fanout[i] < idx.Fanout[i-1] {
			idx.Fanout[i] = idx.Fanout[i-1]
		}
	}

	return idx, nil
}

func (w *Writer) objectFormat() hash.Kind {
	if !w.checksum.IsZero() || len(w.objects) == 0 {
		return w.checksum.Kind()
	}
	return w.objects[0].Hash.Kind()
}

func (o objects) Len() int {
	return len(o)
}

func (o objects) Less(i int, j int) bool {
	return bytes.Compare(o[i].Hash.Bytes(), o[j].Hash.Bytes()) < 0
}

func (o objects) Swap(i int, j int) {
	o[i], o[j] = o[j], o[i]
}
