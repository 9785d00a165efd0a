package packfile

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"hash/crc32"
	"io"
	"sync"

	"github.com/web3infra-foundation/git-internal/plumbing"
	gihash "github.com/web3infra-foundation/git-internal/plumbing/hash"
	"github.com/web3infra-foundation/git-internal/utils/binary"
	gisync "github.com/web3infra-foundation/git-internal/utils/sync"
)

var (
	// ErrEmptyPackfile is returned when no data is found in the packfile.
	ErrEmptyPackfile = NewError("empty packfile")
	// ErrBadSignature is returned when the signature in the packfile is
	// incorrect.
	ErrBadSignature = NewError("malformed pack file signature")
	// ErrMalformedPackfile is returned when the packfile format is
	// incorrect.
	ErrMalformedPackfile = NewError("malformed pack file")
	// ErrUnsupportedVersion is returned when the packfile version is
	// different than the ones supported.
	ErrUnsupportedVersion = NewError("unsupported packfile version")
	// ErrTruncatedPackfile is returned when the packfile ends before its
	// declared content.
	ErrTruncatedPackfile = NewError("truncated pack file")
	// ErrUnknownObjectType is returned when a record carries a type code
	// outside the defined set.
	ErrUnknownObjectType = NewError("unknown object type")
	// ErrSizeMismatch is returned when a record body does not inflate to
	// its declared size.
	ErrSizeMismatch = NewError("declared size does not match inflated size")
	// ErrZLib is returned when zlib refuses a record's compressed body.
	ErrZLib = NewError("zlib reading error")
	// ErrChecksumMismatch is returned when the computed pack hash does
	// not match the trailer.
	ErrChecksumMismatch = NewError("checksum mismatch")
)

// Scanner provides sequential access to the data stored in a pack file.
//
// A pack file is structured as follows:
//
//	+----------------------------------------------------+
//	|                 PACK File Header                   |
//	+----------------------------------------------------+
//	| "PACK"  | Version Number | Number of Objects       |
//	| (4 bytes) |  (4 bytes)   |    (4 bytes)            |
//	+----------------------------------------------------+
//	|                  Object Entry #1                   |
//	+----------------------------------------------------+
//	|  Object Header  |  Compressed Object Data / Delta  |
//	| (type + size)   |  (var-length, zlib compressed)   |
//	+----------------------------------------------------+
//	|                         ...                        |
//	+----------------------------------------------------+
//	|                  PACK File Footer                  |
//	+----------------------------------------------------+
//	|        Checksum (hash-kind width, 20/32 bytes)     |
//	+----------------------------------------------------+
//
// For upstream docs, refer to https://git-scm.com/docs/gitformat-pack.
type Scanner struct {
	// version holds the packfile version.
	version Version
	// objects holds the quantity of objects within the packfile.
	objects uint32
	// objIndex is the current index when going through the packfile
	// objects.
	objIndex int
	// kind is the hash kind used for the pack trailer and ref-delta ids.
	kind gihash.Kind
	// crc is used to generate the CRC-32 checksum of each object's
	// on-disk bytes.
	crc hash.Hash32
	// packhash hashes the pack contents so that at the end it is able
	// to validate the packfile's footer checksum against the calculated
	// hash.
	packhash hash.Hash

	// nextFn holds what state function should be executed on the next
	// call to Scan().
	nextFn stateFn
	// packData holds the data for the last successful call to Scan().
	packData PackData
	// err holds the first error that occurred.
	err error

	m sync.Mutex

	*scannerReader
	zr gisync.ZLibReader
}

// ScannerOption configures a Scanner.
type ScannerOption func(*Scanner)

// WithScannerObjectFormat sets the hash kind used for the pack trailer
// and ref-delta base ids. Defaults to the session kind.
func WithScannerObjectFormat(k gihash.Kind) ScannerOption {
	return func(s *Scanner) {
		s.kind = k
	}
}

// NewScanner creates a new instance of Scanner.
func NewScanner(rs io.Reader, opts ...ScannerOption) *Scanner {
	dict := make([]byte, 16*1024)
	crc := crc32.NewIEEE()

	r := &Scanner{
		kind:     gihash.Default(),
		zr:       gisync.NewZlibReader(&dict),
		objIndex: -1,
		crc:      crc,
		nextFn:   packHeaderSignature,
	}

	for _, opt := range opts {
		opt(r)
	}

	r.packhash = r.kind.New()
	r.scannerReader = newScannerReader(rs, io.MultiWriter(crc, r.packhash))

	return r
}

// Scan scans a packfile sequentially. Each call will navigate from a
// section to the next, until the entire file is read.
//
// The section data can be accessed via calls to Data(). Example:
//
//	for scanner.Scan() {
//	    v := scanner.Data().Value()
//
//		switch scanner.Data().Section {
//		case HeaderSection:
//			header := v.(Header)
//			fmt.Println("[Header] Objects Qty:", header.ObjectsQty)
//		case ObjectSection:
//			oh := v.(ObjectHeader)
//			fmt.Println("[Object] Object Type:", oh.Type)
//		case FooterSection:
//			checksum := v.(hash.ObjectID)
//			fmt.Println("[Footer] Checksum:", checksum)
//		}
//	}
func (r *Scanner) Scan() bool {
	r.m.Lock()
	defer r.m.Unlock()

	if r.err != nil || r.nextFn == nil {
		return false
	}

	if err := scan(r); err != nil {
		r.err = err
		return false
	}

	return true
}

// Data returns the pack data based on the last call to Scan().
func (r *Scanner) Data() PackData {
	return r.packData
}

// Error returns the first error that occurred on the last call to
// Scan(). Once an error occurs, calls to Scan() become a no-op.
func (r *Scanner) Error() error {
	return r.err
}

// Version returns the packfile version, available after the header has
// been scanned.
func (r *Scanner) Version() Version {
	return r.version
}

// ObjectCount returns the object count declared by the pack header.
func (r *Scanner) ObjectCount() uint32 {
	return r.objects
}

// scan goes through the next stateFn.
//
// State functions are chained by returning a non-nil value for stateFn.
// In such cases, the returned stateFn will be called immediately after
// the current func.
func scan(r *Scanner) error {
	var err error
	for state := r.nextFn; state != nil; {
		state, err = state(r)
		if err != nil {
			return err
		}
	}
	return nil
}

// stateFn defines each individual state within the state machine that
// represents a packfile.
type stateFn func(*Scanner) (stateFn, error)

// packHeaderSignature validates the packfile's header signature and
// returns [ErrBadSignature] if the value provided is invalid.
//
// This is always the first state of a packfile and starts the chain
// that handles the entire packfile header.
func packHeaderSignature(r *Scanner) (stateFn, error) {
	start := make([]byte, 4)
	if _, err := io.ReadFull(r, start); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrEmptyPackfile
		}
		return nil, fmt.Errorf("%w: %w", ErrBadSignature, err)
	}

	if bytes.Equal(start, signature) {
		return packVersion, nil
	}

	return nil, ErrBadSignature
}

// packVersion parses the packfile version. It returns
// [ErrMalformedPackfile] when the version cannot be parsed. If a valid
// version is parsed, but it is not currently supported, it returns
// [ErrUnsupportedVersion] instead.
func packVersion(r *Scanner) (stateFn, error) {
	version, err := binary.ReadUint32(r.scannerReader)
	if err != nil {
		return nil, fmt.Errorf("%w: cannot read version", ErrMalformedPackfile)
	}

	v := Version(version)
	if !v.Supported() {
		return nil, ErrUnsupportedVersion
	}

	r.version = v
	return packObjectsQty, nil
}

// packObjectsQty parses the quantity of objects that the packfile
// contains. If the value cannot be parsed, [ErrMalformedPackfile] is
// returned.
//
// This state ends the packfile header chain.
func packObjectsQty(r *Scanner) (stateFn, error) {
	qty, err := binary.ReadUint32(r.scannerReader)
	if err != nil {
		return nil, fmt.Errorf("%w: cannot read number of objects", ErrMalformedPackfile)
	}

	r.objects = qty
	r.packData = PackData{
		Section: HeaderSection,
		header:  Header{Version: r.version, ObjectsQty: r.objects},
	}
	r.nextFn = objectEntry

	return nil, nil
}

// objectEntry handles the object entries within a packfile.
//
// The object header contains the object type and size. If the type
// cannot be parsed, [ErrUnknownObjectType] is returned. The record body
// is inflated in place: base payloads must match the declared size,
// delta records keep their inflated instruction stream in the header's
// Payload.
func (r *Scanner) objectEntryState() (stateFn, error) {
	if r.objIndex+1 >= int(r.objects) {
		return packFooter, nil
	}
	r.objIndex++

	offset := r.scannerReader.offset

	r.scannerReader.Flush()
	r.crc.Reset()

	b := []byte{0}
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTruncatedPackfile, err)
	}

	typ := parseType(b[0])
	if !typ.Valid() {
		return nil, ErrUnknownObjectType.AddDetails("type code %d at offset %d",
			(b[0]&maskType)>>firstLengthBits, offset)
	}

	size, err := readVariableLengthSize(b[0], r)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTruncatedPackfile, err)
	}

	oh := ObjectHeader{
		Offset: offset,
		Type:   typ,
		Size:   int64(size),
	}

	switch oh.Type {
	case plumbing.OFSDeltaObject, plumbing.ZstdOFSDeltaObject:
		no, err := binary.ReadVariableWidthInt(r.scannerReader)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrTruncatedPackfile, err)
		}
		oh.OffsetReference = oh.Offset - no
		if no <= 0 || oh.OffsetReference < 0 {
			return nil, ErrMalformedPackfile.AddDetails(
				"invalid base offset %d at offset %d", oh.OffsetReference, offset)
		}

	case plumbing.REFDeltaObject:
		ref, err := binary.ReadObjectID(r.scannerReader, r.kind)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrTruncatedPackfile, err)
		}
		oh.Reference = ref
	}

	if err := r.zr.Reset(r.scannerReader); err != nil {
		return nil, fmt.Errorf("%w: zlib reset error: %w", ErrTruncatedPackfile, err)
	}

	oh.Payload, err = r.inflateBody(&oh)
	if err != nil {
		return nil, err
	}

	r.scannerReader.Flush()
	oh.Crc32 = r.crc.Sum32()

	r.packData.Section = ObjectSection
	r.packData.objectHeader = oh

	return nil, nil
}

// inflateBody inflates a record's zlib stream until end-of-stream. Base
// payloads and classic delta records preallocate the declared size and
// must inflate to exactly that length (for classic deltas, the instruction
// stream length). Zstd delta records declare the target size instead, so
// their frame is neither preallocated nor checked against it here.
func (r *Scanner) inflateBody(oh *ObjectHeader) ([]byte, error) {
	sizeHint := oh.Size
	if oh.Type == plumbing.ZstdOFSDeltaObject {
		// The record declares the target size; the frame itself is
		// usually smaller.
		sizeHint = 0
	}

	buf := bytes.NewBuffer(make([]byte, 0, int(sizeHint)))
	if _, err := buf.ReadFrom(&r.zr); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: %w", ErrTruncatedPackfile, err)
		}
		return nil, fmt.Errorf("%w: %w", ErrZLib, err)
	}

	if oh.Type != plumbing.ZstdOFSDeltaObject && int64(buf.Len()) != oh.Size {
		return nil, ErrSizeMismatch.AddDetails("at offset %d: declared %d, inflated %d",
			oh.Offset, oh.Size, buf.Len())
	}

	return buf.Bytes(), nil
}

func objectEntry(r *Scanner) (stateFn, error) {
	return r.objectEntryState()
}

// packFooter parses the packfile checksum.
// If the checksum cannot be read, [ErrTruncatedPackfile] is returned; if
// it does not match the checksum calculated during the scanning process,
// an [ErrChecksumMismatch] is returned.
func packFooter(r *Scanner) (stateFn, error) {
	r.scannerReader.Flush()
	actual := r.packhash.Sum(nil)

	checksum, err := binary.ReadObjectID(r.scannerReader, r.kind)
	if err != nil {
		return nil, fmt.Errorf("%w: cannot read PACK checksum: %w", ErrTruncatedPackfile, err)
	}

	if !bytes.Equal(actual, checksum.Bytes()) {
		return nil, ErrChecksumMismatch.AddDetails("expected %q but found %q",
			hex.EncodeToString(actual), checksum)
	}

	r.packData.Section = FooterSection
	r.packData.checksum = checksum
	r.nextFn = nil

	return nil, nil
}

func readVariableLengthSize(first byte, reader io.ByteReader) (uint64, error) {
	// Extract the first part of the size (last 4 bits of the first byte).
	size := uint64(first & maskFirstLength)

	// |  001xxxx | xxxxxxxx | xxxxxxxx | ...
	//
	//	 ^^^       ^^^^^^^^   ^^^^^^^^
	//	Type      Size Part 1   Size Part 2
	//
	// Check if more bytes are needed to fully determine the size.
	if first&maskContinue != 0 {
		shift := firstLengthBits

		for {
			b, err := reader.ReadByte()
			if err != nil {
				return 0, err
			}

			// Add the next 7 bits to the size.
			size |= uint64(b&maskLength) << shift

			// Check if the continuation bit is set.
			if b&maskContinue == 0 {
				break
			}

			// Prepare for the next byte.
			shift += lengthBits
		}
	}
	return size, nil
}
