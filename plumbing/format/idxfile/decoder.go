package idxfile

import (
	"bytes"
	"fmt"
	"io"

	"github.com/web3infra-foundation/git-internal/plumbing/hash"
	"github.com/web3infra-foundation/git-internal/utils/binary"
)

// Decode reads an idx file from r into a MemoryIndex, validating the
// magic, version and trailer checksum. The object format determines the
// id and trailer widths.
func Decode(r io.Reader, kind hash.Kind) (*MemoryIndex, error) {
	if !kind.Valid() {
		kind = hash.Default()
	}

	h := kind.New()
	tr := io.TeeReader(r, h)

	idx := &MemoryIndex{ObjectFormat: kind}

	if err := readHeader(tr, idx); err != nil {
		return nil, err
	}

	if err := readFanout(tr, idx); err != nil {
		return nil, err
	}

	count := int(idx.Fanout[255])
	idx.Entries = make([]Entry, count)

	if err := readHashes(tr, idx, kind); err != nil {
		return nil, err
	}

	if err := readCRC32(tr, idx); err != nil {
		return nil, err
	}

	if err := readOffsets(tr, idx); err != nil {
		return nil, err
	}

	return idx, readChecksums(tr, r, h, idx, kind)
}

func readHeader(r io.Reader, idx *MemoryIndex) error {
	var magic [4]byte
	if _, err := io.ReadFull(r, magic[:]); err != nil {
		return fmt.Errorf("%w: %w", ErrMalformedIdxFile, err)
	}

	if !bytes.Equal(magic[:], idxHeader) {
		return fmt.Errorf("%w: bad magic", ErrMalformedIdxFile)
	}

	version, err := binary.ReadUint32(r)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrMalformedIdxFile, err)
	}

	if version != VersionSupported {
		return ErrUnsupportedVersion
	}

	idx.Version = version
	return nil
}

func readFanout(r io.Reader, idx *MemoryIndex) error {
	prev := uint32(0)
	for i := 0; i < 256; i++ {
		n, err := binary.ReadUint32(r)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrMalformedIdxFile, err)
		}
		if n < prev {
			return fmt.Errorf("%w: non-monotonic fanout", ErrMalformedIdxFile)
		}

		idx.Fanout[i] = n
		prev = n
	}
	return nil
}

func readHashes(r io.Reader, idx *MemoryIndex, kind hash.Kind) error {
	for i := range idx.Entries {
		id, err := binary.ReadObjectID(r, kind)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrMalformedIdxFile, err)
		}
		idx.Entries[i].Hash = id
	}
	return nil
}

func readCRC32(r io.Reader, idx *MemoryIndex) error {
	for i := range idx.Entries {
		crc, err := binary.ReadUint32(r)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrMalformedIdxFile, err)
		}
		idx.Entries[i].CRC32 = crc
	}
	return nil
}

func readOffsets(r io.Reader, idx *MemoryIndex) error {
	// Slots with the high bit set index into the trailing 64-bit table.
	large := make([]int, 0)
	for i := range idx.Entries {
		v, err := binary.ReadUint32(r)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrMalformedIdxFile, err)
		}

		if v&isO64Mask != 0 {
			if int(v&^isO64Mask) != len(large) {
				return fmt.Errorf("%w: out-of-order large offset marker", ErrMalformedIdxFile)
			}
			large = append(large, i)
			continue
		}

		idx.Entries[i].Offset = uint64(v)
	}

	for _, i := range large {
		v, err := binary.ReadUint64(r)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrMalformedIdxFile, err)
		}
		idx.Entries[i].Offset = v
	}

	return nil
}

func readChecksums(tr, r io.Reader, h hash.Hash, idx *MemoryIndex, kind hash.Kind) error {
	packSum, err := binary.ReadObjectID(tr, kind)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrMalformedIdxFile, err)
	}
	idx.PackfileChecksum = packSum

	// The idx checksum covers every byte before it, including the pack
	// checksum, so snapshot the digest before reading the trailer.
	want := h.Sum(nil)

	idxSum, err := binary.ReadObjectID(r, kind)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrMalformedIdxFile, err)
	}

	if !bytes.Equal(want, idxSum.Bytes()) {
		return fmt.Errorf("%w: checksum mismatch", ErrMalformedIdxFile)
	}

	idx.IdxChecksum = idxSum
	return nil
}
