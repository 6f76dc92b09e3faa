// Package wire implements the MCS wire protocol (§6): a length-prefixed
// sequence of serialized commands and responses, fixed-width
// host-endian-neutral scalars, length-prefixed strings/byte vectors, and a
// tag-then-alternative encoding for variants (MaxSize, StorageInstance
// discriminants).
//
// The frame format — a little-endian uint32 length followed by that many
// payload bytes — is lifted directly from the teacher's own wire encoding
// in storage/persistence-s3.go (encodeS3LogEntry/decodeS3LogStream), which
// already frames variable-length log records the same way for S3/Ceph log
// segments. This package generalizes it from "one log entry" to "one RPC
// command or response".
package wire

import (
	"encoding/binary"
	"fmt"
	"io"
)

// MaxFrameLength bounds a single frame's payload to guard against a
// corrupt or hostile length prefix causing an unbounded allocation.
const MaxFrameLength = 256 << 20 // 256 MiB

// WriteFrame writes a length-prefixed frame. Zero-length payloads are
// legal (§6: "length-zero payloads are valid").
func WriteFrame(w io.Writer, payload []byte) error {
	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(payload)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return fmt.Errorf("wire: write frame length: %w", err)
	}
	if len(payload) == 0 {
		return nil
	}
	if _, err := w.Write(payload); err != nil {
		return fmt.Errorf("wire: write frame payload: %w", err)
	}
	return nil
}

// ReadFrame reads one length-prefixed frame.
func ReadFrame(r io.Reader) ([]byte, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, err
	}
	n := binary.LittleEndian.Uint32(lenBuf[:])
	if n > MaxFrameLength {
		return nil, fmt.Errorf("wire: frame length %d exceeds max %d", n, MaxFrameLength)
	}
	if n == 0 {
		return nil, nil
	}
	payload := make([]byte, n)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, fmt.Errorf("wire: read frame payload: %w", err)
	}
	return payload, nil
}

// CopyPayload streams exactly n bytes from src to dst without staging to a
// full in-memory buffer — the zero-copy discipline §4.3/§9 require for
// memory_get/memory_put's bulk path. It returns the number of bytes
// actually copied; a short copy is always an error since partial transfers
// are not exposed on the wire (§4.3).
func CopyPayload(dst io.Writer, src io.Reader, n uint64) (uint64, error) {
	written, err := io.CopyN(dst, src, int64(n))
	return uint64(written), err
}
