package idxfile

import (
	"fmt"
	"io"

	"github.com/web3infra-foundation/git-internal/plumbing/hash"
	"github.com/web3infra-foundation/git-internal/utils/binary"
)

// encoder is the internal state for encoding an idx file.
// It is not exported to prevent reuse - each Encode call creates fresh
// state.
type encoder struct {
	writer  io.Writer
	hashSum func() []byte
	idx     *MemoryIndex
}

// stateFnEncode defines each individual state within the state machine
// that represents encoding an idxfile.
type stateFnEncode func(*encoder) (stateFnEncode, error)

// Encode encodes a MemoryIndex to the writer. The trailer hashes are
// computed with the index's object format.
func Encode(w io.Writer, idx *MemoryIndex) error {
	if w == nil {
		return fmt.Errorf("nil writer")
	}

	if idx == nil {
		return fmt.Errorf("nil index")
	}

	h := idx.ObjectFormat.New()
	e := &encoder{
		writer:  io.MultiWriter(w, h),
		hashSum: func() []byte { return h.Sum(nil) },
		idx:     idx,
	}

	for state := writeHeader; state != nil; {
		var err error
		state, err = state(e)
		if err != nil {
			return err
		}
	}
	return nil
}

func writeHeader(e *encoder) (stateFnEncode, error) {
	if e.idx.Version != VersionSupported {
		return nil, ErrUnsupportedVersion
	}

	_, err := e.writer.Write(idxHeader)
	if err != nil {
		return nil, err
	}

	err = binary.WriteUint32(e.writer, e.idx.Version)
	if err != nil {
		return nil, err
	}

	return writeFanout, nil
}

func writeFanout(e *encoder) (stateFnEncode, error) {
	for _, c := range e.idx.Fanout {
		if err := binary.WriteUint32(e.writer, c); err != nil {
			return nil, err
		}
	}

	return writeHashes, nil
}

func writeHashes(e *encoder) (stateFnEncode, error) {
	for _, entry := range e.idx.Entries {
		if _, err := e.writer.Write(entry.Hash.Bytes()); err != nil {
			return nil, err
		}
	}

	return writeCRC32, nil
}

func writeCRC32(e *encoder) (stateFnEncode, error) {
	for _, entry := range e.idx.Entries {
		if err := binary.WriteUint32(e.writer, entry.CRC32); err != nil {
			return nil, err
		}
	}

	return writeOffsets, nil
}

func writeOffsets(e *encoder) (stateFnEncode, error) {
	var large []uint64
	for _, entry := range e.idx.Entries {
		if entry.Offset >= uint64(isO64Mask) {
			marker := isO64Mask | uint32(len(large))
			if err := binary.WriteUint32(e.writer, marker); err != nil {
				return nil, err
			}
			large = append(large, entry.Offset)
			continue
		}

		if err := binary.WriteUint32(e.writer, uint32(entry.Offset)); err != nil {
			return nil, err
		}
	}

	for _, v := range large {
		if err := binary.WriteUint64(e.writer, v); err != nil {
			return nil, err
		}
	}

	return writeChecksums, nil
}

func writeChecksums(e *encoder) (stateFnEncode, error) {
	if _, err := e.writer.Write(e.idx.PackfileChecksum.Bytes()); err != nil {
		return nil, err
	}

	e.idx.IdxChecksum = hash.ZeroID(e.idx.ObjectFormat)
	if _, err := e.idx.IdxChecksum.Write(e.hashSum()); err != nil {
		return nil, err
	}

	if _, err := e.writer.Write(e.idx.IdxChecksum.Bytes()); err != nil {
		return nil, err
	}

	return nil, nil
}
