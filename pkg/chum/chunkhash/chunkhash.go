// Package chunkhash implements the chunked hash-chain fingerprint applied
// to file content.
//
// Instead of a single fixed-width digest, a file's fingerprint is a chain
// of 8-byte checkpoints: content is read in fixed 1 MiB chunks, each chunk
// is folded into a running xxhash accumulator, and the accumulator's 64-bit
// state is snapshotted (little-endian) after every chunk. Two files that
// differ only near the end still share identical leading snapshots, which
// makes truncation and partial corruption visible at chunk granularity.
package chunkhash

import (
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"syscall"

	"github.com/cespare/xxhash/v2"
)

// ChunkSize is the fixed read granularity for fingerprinting, for every
// file regardless of its size.
const ChunkSize = 1 << 20

// SnapshotSize is the width of one chain checkpoint in bytes.
const SnapshotSize = 8

// Chain is the variable-length fingerprint of one file's content: one
// 8-byte snapshot per chunk read, in chunk order. A zero-length file has a
// nil (empty) chain.
type Chain []byte

// Snapshots returns the number of per-chunk checkpoints in the chain.
func (c Chain) Snapshots() int { return len(c) / SnapshotSize }

// Hex renders the chain as fixed-width lowercase hexadecimal. An empty
// chain renders as the empty string.
func (c Chain) Hex() string { return hex.EncodeToString(c) }

// ParseHex decodes a chain from its hexadecimal form.
func ParseHex(s string) (Chain, error) {
	if s == "" {
		return nil, nil
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("decode hash chain: %w", err)
	}
	if len(b)%SnapshotSize != 0 {
		return nil, fmt.Errorf("hash chain length %d is not a multiple of %d", len(b), SnapshotSize)
	}
	return Chain(b), nil
}

// Equal reports whether two chains are byte-identical.
func (c Chain) Equal(other Chain) bool {
	if len(c) != len(other) {
		return false
	}
	for i := range c {
		if c[i] != other[i] {
			return false
		}
	}
	return true
}

// File fingerprints the regular file at path. onChunk, if non-nil, is
// invoked after each snapshot with the number of bytes folded by that
// chunk; it is the per-chunk progress tick.
func File(path string, onChunk func(n int64)) (Chain, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Reader(f, onChunk)
}

// Reader fingerprints all content readable from r. The accumulator starts
// from the same initial state for every call, so identical content always
// yields an identical chain.
//
// Read errors abort the fingerprint with no partial chain; interrupted
// reads (EINTR) are retried transparently.
func Reader(r io.Reader, onChunk func(n int64)) (Chain, error) {
	digest := xxhash.New()
	buf := make([]byte, ChunkSize)

	var chain Chain
	for {
		n, err := readChunk(r, buf)
		if n > 0 {
			// Digest.Write is documented to never fail.
			_, _ = digest.Write(buf[:n])
			chain = binary.LittleEndian.AppendUint64(chain, digest.Sum64())
			if onChunk != nil {
				onChunk(int64(n))
			}
		}
		if errors.Is(err, io.EOF) {
			return chain, nil
		}
		if err != nil {
			return nil, err
		}
	}
}

// ChainLen returns the byte length of the chain for a file of the given
// size. It depends on size alone, never on content.
func ChainLen(size int64) int64 {
	chunks := (size + ChunkSize - 1) / ChunkSize
	return chunks * SnapshotSize
}

// readChunk fills buf from r, retrying interrupted reads. It returns the
// number of bytes read; err is io.EOF once the reader is exhausted.
func readChunk(r io.Reader, buf []byte) (int, error) {
	filled := 0
	for filled < len(buf) {
		n, err := r.Read(buf[filled:])
		filled += n
		if err != nil {
			if errors.Is(err, syscall.EINTR) {
				continue
			}
			return filled, err
		}
	}
	return filled, nil
}
