package transport

import (
	"bytes"
	"io"

	"github.com/cc-hpc-itwm/mcs-sub000/internal/storage"
)

func newByteReader(b []byte) io.Reader { return bytes.NewReader(b) }

// sliceWriter writes sequentially into a fixed backing slice, the
// zero-copy destination for memory_put's incoming stream into an
// mmap-backed chunk.
type sliceWriter struct {
	buf []byte
	pos int
}

func newByteWriter(b []byte) io.Writer { return &sliceWriter{buf: b} }

func (w *sliceWriter) Write(p []byte) (int, error) {
	n := copy(w.buf[w.pos:], p)
	w.pos += n
	if n < len(p) {
		return n, io.ErrShortWrite
	}
	return n, nil
}

// closingReader pairs a reader over a chunk's bytes with the chunk
// itself, so the provider can Close it once it's done streaming the
// response payload rather than relying on ever observing an io.EOF (which
// io.CopyN's exact-length read never triggers).
type closingReader struct {
	r io.Reader
	c storage.Chunk
}

func (r *closingReader) Read(p []byte) (int, error) { return r.r.Read(p) }
func (r *closingReader) Close() error                { return r.c.Close() }
