package packfile

import (
	"context"
	"fmt"
	"io"

	billy "github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
	"golang.org/x/sync/errgroup"

	"github.com/web3infra-foundation/git-internal/plumbing"
	"github.com/web3infra-foundation/git-internal/plumbing/format/idxfile"
	"github.com/web3infra-foundation/git-internal/utils/trace"
)

// asyncWriter decouples producers from filesystem latency: chunks are
// handed to a channel and written by a goroutine owned by the errgroup.
// On a write failure the goroutine keeps draining so producers never
// block; the error surfaces on Wait.
type asyncWriter struct {
	ch chan []byte
}

func newAsyncWriter(g *errgroup.Group, w io.WriteCloser) *asyncWriter {
	aw := &asyncWriter{ch: make(chan []byte, 64)}

	g.Go(func() error {
		var werr error
		for b := range aw.ch {
			if werr == nil {
				_, werr = w.Write(b)
			}
		}
		if cerr := w.Close(); werr == nil {
			werr = cerr
		}
		return werr
	})

	return aw
}

func (w *asyncWriter) Write(p []byte) (int, error) {
	// The producer reuses its buffers, so the chunk is copied before
	// crossing the channel.
	b := make([]byte, len(p))
	copy(b, p)
	w.ch <- b
	return len(p), nil
}

func (w *asyncWriter) Close() error {
	close(w.ch)
	return nil
}

// WritePackAndIndex encodes entries into `pack-<hex(trailer)>.pack` and a
// matching `.idx` inside dir of the given filesystem. Both files are
// produced through asynchronous writers into temporary files and renamed
// on success. It returns the final pack and idx paths.
func WritePackAndIndex(ctx context.Context, fs billy.Filesystem, dir string,
	entries []plumbing.Entry, opts ...EncoderOption,
) (packPath, idxPath string, err error) {
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return "", "", err
	}

	packTmp, err := util.TempFile(fs, dir, "tmp_pack_")
	if err != nil {
		return "", "", err
	}
	idxTmp, err := util.TempFile(fs, dir, "tmp_idx_")
	if err != nil {
		packTmp.Close()
		fs.Remove(packTmp.Name())
		return "", "", err
	}

	cleanup := func() {
		fs.Remove(packTmp.Name())
		fs.Remove(idxTmp.Name())
	}

	g, _ := errgroup.WithContext(ctx)
	packw := newAsyncWriter(g, packTmp)
	idxw := newAsyncWriter(g, idxTmp)

	checksum, idx, encErr := encodeBoth(ctx, packw, idxw, entries, opts)

	packw.Close()
	idxw.Close()

	if werr := g.Wait(); encErr == nil {
		encErr = werr
	}
	if encErr != nil {
		cleanup()
		return "", "", encErr
	}

	base := fmt.Sprintf("pack-%s", checksum)
	packPath = fs.Join(dir, base+".pack")
	idxPath = fs.Join(dir, base+".idx")

	if err := fs.Rename(packTmp.Name(), packPath); err != nil {
		cleanup()
		return "", "", err
	}
	if err := fs.Rename(idxTmp.Name(), idxPath); err != nil {
		fs.Remove(packPath)
		fs.Remove(idxTmp.Name())
		return "", "", err
	}

	trace.Pack.Printf("encode: wrote %s (%d objects)", packPath, idx.Count())

	return packPath, idxPath, nil
}

func encodeBoth(ctx context.Context, packw, idxw io.Writer,
	entries []plumbing.Entry, opts []EncoderOption,
) (checksum plumbing.Hash, idx *idxfile.MemoryIndex, err error) {
	if err := ctx.Err(); err != nil {
		return checksum, nil, err
	}

	e := NewEncoder(packw, opts...)

	checksum, err = e.Encode(entries)
	if err != nil {
		return checksum, nil, err
	}

	idx, err = e.Index()
	if err != nil {
		return checksum, nil, err
	}

	return checksum, idx, idxfile.Encode(idxw, idx)
}
