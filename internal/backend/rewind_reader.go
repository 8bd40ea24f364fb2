package backend

import (
	"bytes"
	"hash"
	"io"
)

// RewindReader is the data source for Backend.Save. Wrapping backends rewind
// it to replay the data on retries or to write it a second time to a cache.
type RewindReader interface {
	io.Reader

	// Rewind rewinds the reader so the same data can be read again from the
	// start.
	Rewind() error

	// Length returns the number of bytes that can be read from the Reader
	// after calling Rewind.
	Length() int64

	// Hash return a hash of the data if requested by the backed.
	Hash() []byte
}

var _ RewindReader = &ByteReader{}

// NewByteReader prepares a ByteReader that can then be used to read buf. If
// hasher is not nil, the hash of buf is computed up front.
func NewByteReader(buf []byte, hasher hash.Hash) *ByteReader {
	var sum []byte
	if hasher != nil {
		// hash.Hash never returns an error on Write
		_, _ = hasher.Write(buf)
		sum = hasher.Sum(nil)
	}
	return &ByteReader{
		Reader: bytes.NewReader(buf),
		Len:    int64(len(buf)),
		hash:   sum,
	}
}

// ByteReader implements a RewindReader for an encoded graph or scene held in
// memory.
type ByteReader struct {
	*bytes.Reader
	Len  int64
	hash []byte
}

// Rewind restarts the reader from the beginning of the data.
func (b *ByteReader) Rewind() error {
	_, err := b.Reader.Seek(0, io.SeekStart)
	return err
}

// Length returns the number of bytes read from the reader after Rewind is
// called.
func (b *ByteReader) Length() int64 {
	return b.Len
}

// Hash return a hash of the data if requested by the backed.
func (b *ByteReader) Hash() []byte {
	return b.hash
}
