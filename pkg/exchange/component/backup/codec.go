package backup

import (
	"bytes"
	"fmt"
	"io"
	"strings"
)

// Codec encodes and decodes backup files in one container format.
type Codec interface {
	// Format is the configuration name of the codec ("avro", "parquet").
	Format() string
	// Extension is the file extension including the dot.
	Extension() string
	// ContentType is the media type served for a single-table backup.
	ContentType() string
	// Encode writes f to w.
	Encode(w io.Writer, f *File) error
	// Decode reads a whole file from r.
	Decode(r io.Reader) (*File, error)
	// Sniff reports whether header starts like a file of this format.
	Sniff(header []byte) bool
}

// Supported formats.
const (
	FormatAvro    = "avro"
	FormatParquet = "parquet"
)

// NewCodec returns the codec for format with the given compression
// ("SNAPPY", "GZIP"/"DEFLATE" or "NONE").
func NewCodec(format, compression string) (Codec, error) {
	switch strings.ToLower(format) {
	case FormatAvro, "":
		return NewAvroCodec(compression)
	case FormatParquet:
		return NewParquetCodec(compression)
	default:
		return nil, fmt.Errorf("unsupported backup format: %s", format)
	}
}

// CodecSet decodes any supported format and encodes with a preferred one.
type CodecSet struct {
	preferred Codec
	all       []Codec
}

// NewCodecSet creates a set that encodes with preferred and recognizes every codec in others.
func NewCodecSet(preferred Codec, others ...Codec) *CodecSet {
	return &CodecSet{preferred: preferred, all: append([]Codec{preferred}, others...)}
}

// Preferred returns the encoding codec.
func (s *CodecSet) Preferred() Codec {
	return s.preferred
}

// Decode sniffs the container format of data and decodes it. Unrecognized input is handed to
// the preferred codec so that its own error is reported.
func (s *CodecSet) Decode(data []byte) (*File, error) {
	for _, c := range s.all {
		if c.Sniff(data) {
			return c.Decode(bytes.NewReader(data))
		}
	}
	return s.preferred.Decode(bytes.NewReader(data))
}
