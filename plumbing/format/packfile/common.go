// Package packfile implements the pack engine: streaming decode of pack
// files with parallel delta resolution, pack encode with an optional
// delta-search window, and the glue to build matching pack indexes.
package packfile

import (
	"github.com/web3infra-foundation/git-internal/plumbing"
)

var signature = []byte{'P', 'A', 'C', 'K'}

const (
	firstLengthBits = uint8(4)   // the first byte into object header has 4 bits to store the length
	lengthBits      = uint8(7)   // subsequent bytes have 7 bits to store the length
	maskFirstLength = 15         // 0000 1111
	maskContinue    = 0x80       // 1000 0000
	maskLength      = uint8(127) // 0111 1111
	maskType        = uint8(112) // 0111 0000
)

func parseType(b byte) plumbing.ObjectType {
	return plumbing.ObjectType((b & maskType) >> firstLengthBits)
}
