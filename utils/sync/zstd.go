package sync

import (
	"github.com/klauspost/compress/zstd"
)

// rawDictID is the frame dictionary id used for the pack delta extension.
// Both sides derive the dictionary from the base payload, so a fixed id is
// enough to match frames to it.
const rawDictID = 0

// ZstdCompressWithDict compresses src into a single zstd frame using dict
// as a raw-content dictionary.
func ZstdCompressWithDict(src, dict []byte) ([]byte, error) {
	enc, err := zstd.NewWriter(nil,
		zstd.WithEncoderLevel(zstd.SpeedDefault),
		zstd.WithEncoderDictRaw(rawDictID, dict),
	)
	if err != nil {
		return nil, err
	}
	defer enc.Close()

	return enc.EncodeAll(src, nil), nil
}

// ZstdDecompressWithDict decompresses a single zstd frame using dict as a
// raw-content dictionary. sizeHint preallocates the output when known.
func ZstdDecompressWithDict(frame, dict []byte, sizeHint int) ([]byte, error) {
	dec, err := zstd.NewReader(nil,
		zstd.WithDecoderDictRaw(rawDictID, dict),
	)
	if err != nil {
		return nil, err
	}
	defer dec.Close()

	var dst []byte
	if sizeHint > 0 {
		dst = make([]byte, 0, sizeHint)
	}

	return dec.DecodeAll(frame, dst)
}
