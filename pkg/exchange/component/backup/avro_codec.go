package backup

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/linkedin/goavro/v2"
)

var avroMagic = []byte{'O', 'b', 'j', 1}

// AvroCodec reads and writes Avro Object Container Files.
type AvroCodec struct {
	compression string
}

// NewAvroCodec creates an AvroCodec. compression is "SNAPPY", "GZIP"/"DEFLATE" or "NONE".
func NewAvroCodec(compression string) (*AvroCodec, error) {
	name, err := avroCompressionName(compression)
	if err != nil {
		return nil, err
	}
	return &AvroCodec{compression: name}, nil
}

func avroCompressionName(compression string) (string, error) {
	switch strings.ToUpper(compression) {
	case "SNAPPY":
		return goavro.CompressionSnappyLabel, nil
	case "GZIP", "DEFLATE":
		return goavro.CompressionDeflateLabel, nil
	case "NONE", "":
		return goavro.CompressionNullLabel, nil
	default:
		return "", fmt.Errorf("unsupported compression type: %s", compression)
	}
}

func (c *AvroCodec) Format() string      { return FormatAvro }
func (c *AvroCodec) Extension() string   { return ".avro" }
func (c *AvroCodec) ContentType() string { return "application/avro" }

func (c *AvroCodec) Sniff(header []byte) bool {
	return bytes.HasPrefix(header, avroMagic)
}

type avroField struct {
	Name string        `json:"name"`
	Type []interface{} `json:"type"`
}

type avroSchema struct {
	Type   string      `json:"type"`
	Name   string      `json:"name"`
	Fields []avroField `json:"fields"`
}

// Schema returns the Avro record schema for f.
func (c *AvroCodec) Schema(f *File) (string, error) {
	s := avroSchema{Type: "record", Name: f.SchemaName(), Fields: make([]avroField, len(f.Fields))}
	for i, fld := range f.Fields {
		s.Fields[i] = avroField{Name: fld.Name, Type: []interface{}{"null", string(fld.Type)}}
	}
	b, err := json.Marshal(s)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Encode writes f as one OCF. Int values must fit a 32-bit Avro int.
func (c *AvroCodec) Encode(w io.Writer, f *File) error {
	schemaJSON, err := c.Schema(f)
	if err != nil {
		return fmt.Errorf("failed to build avro schema for '%s': %w", f.Table, err)
	}
	codec, err := goavro.NewCodec(schemaJSON)
	if err != nil {
		return fmt.Errorf("failed to compile avro schema for '%s': %w", f.Table, err)
	}
	ocfw, err := goavro.NewOCFWriter(goavro.OCFConfig{
		W:               w,
		Codec:           codec,
		CompressionName: c.compression,
	})
	if err != nil {
		return fmt.Errorf("failed to create avro writer for '%s': %w", f.Table, err)
	}

	data := make([]interface{}, 0, len(f.Rows))
	for idx, row := range f.Rows {
		datum := make(map[string]interface{}, len(f.Fields))
		for _, fld := range f.Fields {
			v := row[fld.Name]
			if v == nil {
				datum[fld.Name] = nil
				continue
			}
			switch fld.Type {
			case FieldInt:
				i, ok := v.(int64)
				if !ok || i < math.MinInt32 || i > math.MaxInt32 {
					return fmt.Errorf("row %d field '%s': value '%v' does not fit an avro int", idx, fld.Name, v)
				}
				datum[fld.Name] = goavro.Union("int", int32(i))
			default:
				datum[fld.Name] = goavro.Union("string", fmt.Sprint(v))
			}
		}
		data = append(data, datum)
	}
	if len(data) == 0 {
		return nil
	}
	if err := ocfw.Append(data); err != nil {
		return fmt.Errorf("failed to append avro records for '%s': %w", f.Table, err)
	}
	return nil
}

// Decode reads an OCF. Union values are unwrapped and integers widened to int64.
func (c *AvroCodec) Decode(r io.Reader) (*File, error) {
	ocfr, err := goavro.NewOCFReader(r)
	if err != nil {
		return nil, fmt.Errorf("invalid avro file: %w", err)
	}
	f, err := fileFromAvroSchema(ocfr.Codec().Schema())
	if err != nil {
		return nil, err
	}

	for ocfr.Scan() {
		datum, err := ocfr.Read()
		if err != nil {
			return nil, fmt.Errorf("invalid avro record %d: %w", len(f.Rows), err)
		}
		rec, ok := datum.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("invalid avro record %d: not a record", len(f.Rows))
		}
		row := make(map[string]interface{}, len(rec))
		for k, v := range rec {
			row[k] = unwrapAvro(v)
		}
		f.Rows = append(f.Rows, row)
	}
	if err := ocfr.Err(); err != nil {
		return nil, fmt.Errorf("invalid avro file: %w", err)
	}
	return f, nil
}

func fileFromAvroSchema(schemaJSON string) (*File, error) {
	var raw struct {
		Type   interface{} `json:"type"`
		Name   string      `json:"name"`
		Fields []struct {
			Name string      `json:"name"`
			Type interface{} `json:"type"`
		} `json:"fields"`
	}
	if err := json.Unmarshal([]byte(schemaJSON), &raw); err != nil {
		return nil, fmt.Errorf("invalid avro schema: %w", err)
	}
	if raw.Type != "record" {
		return nil, fmt.Errorf("invalid avro schema: top-level type is %v, not record", raw.Type)
	}

	name := raw.Name
	if i := strings.LastIndex(name, "."); i >= 0 {
		name = name[i+1:]
	}
	f := &File{Table: tableFromSchemaName(name), Fields: make([]Field, len(raw.Fields))}
	for i, fld := range raw.Fields {
		f.Fields[i] = Field{Name: fld.Name, Type: avroFieldType(fld.Type)}
	}
	return f, nil
}

// avroFieldType maps an Avro type (possibly a union with null) to a FieldType.
func avroFieldType(t interface{}) FieldType {
	switch x := t.(type) {
	case string:
		if x == "int" || x == "long" {
			return FieldInt
		}
	case []interface{}:
		for _, member := range x {
			if s, ok := member.(string); ok && s != "null" {
				return avroFieldType(s)
			}
		}
	case map[string]interface{}:
		return avroFieldType(x["type"])
	}
	return FieldString
}

func unwrapAvro(v interface{}) interface{} {
	if m, ok := v.(map[string]interface{}); ok && len(m) == 1 {
		for _, inner := range m {
			v = inner
		}
	}
	switch x := v.(type) {
	case int32:
		return int64(x)
	case int:
		return int64(x)
	case []byte:
		return string(x)
	case float32:
		return float64(x)
	}
	return v
}
