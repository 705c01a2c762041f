package backup

import (
	"errors"
	"io"

	"github.com/xitongsys/parquet-go/source"
)

// memFile is an in-memory source.ParquetFile. Handles returned by Open share the same bytes.
type memFile struct {
	data []byte
	off  int64
}

var _ source.ParquetFile = (*memFile)(nil)

func newMemFile(data []byte) *memFile {
	return &memFile{data: data}
}

func (m *memFile) Read(p []byte) (int, error) {
	if m.off >= int64(len(m.data)) {
		return 0, io.EOF
	}
	n := copy(p, m.data[m.off:])
	m.off += int64(n)
	return n, nil
}

func (m *memFile) Write(p []byte) (int, error) {
	end := m.off + int64(len(p))
	if end > int64(len(m.data)) {
		grown := make([]byte, end)
		copy(grown, m.data)
		m.data = grown
	}
	copy(m.data[m.off:end], p)
	m.off = end
	return len(p), nil
}

func (m *memFile) Seek(offset int64, whence int) (int64, error) {
	var base int64
	switch whence {
	case io.SeekStart:
	case io.SeekCurrent:
		base = m.off
	case io.SeekEnd:
		base = int64(len(m.data))
	default:
		return 0, errors.New("memfile: invalid whence")
	}
	if base+offset < 0 {
		return 0, errors.New("memfile: negative position")
	}
	m.off = base + offset
	return m.off, nil
}

func (m *memFile) Close() error {
	return nil
}

func (m *memFile) Open(string) (source.ParquetFile, error) {
	return &memFile{data: m.data}, nil
}

func (m *memFile) Create(string) (source.ParquetFile, error) {
	return &memFile{}, nil
}

// Bytes returns the written contents.
func (m *memFile) Bytes() []byte {
	return m.data
}
