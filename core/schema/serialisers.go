package schema

import (
	"encoding/binary"
	"fmt"
	"math"
)

// nullSentinel is the single byte all four serialisers here use to mark a
// null property. Int64Serialiser and Float64Serialiser tag every real value
// with a leading 0x01 byte, so for them it never collides with a real value;
// StringSerialiser and BytesSerialiser store values untagged, so a real
// one-byte value 0xFF also deserialises as null.
const nullSentinel = 0xFF

// StringSerialiser serialises a Go string as UTF-8 bytes.
type StringSerialiser struct{}

func (StringSerialiser) Serialise(v interface{}) ([]byte, error) {
	s, ok := v.(string)
	if !ok {
		return nil, fmt.Errorf("schema: StringSerialiser expects a string, got %T", v)
	}
	return []byte(s), nil
}

func (StringSerialiser) Deserialise(b []byte) (interface{}, error) {
	if len(b) == 1 && b[0] == nullSentinel {
		return nil, nil
	}
	return string(b), nil
}

func (StringSerialiser) SerialiseNull() []byte { return []byte{nullSentinel} }

func (StringSerialiser) DeserialiseEmptyBytes() (interface{}, error) { return "", nil }

// BytesSerialiser stores a byte slice verbatim.
type BytesSerialiser struct{}

func (BytesSerialiser) Serialise(v interface{}) ([]byte, error) {
	b, ok := v.([]byte)
	if !ok {
		return nil, fmt.Errorf("schema: BytesSerialiser expects []byte, got %T", v)
	}
	return b, nil
}

func (BytesSerialiser) Deserialise(b []byte) (interface{}, error) {
	if len(b) == 1 && b[0] == nullSentinel {
		return nil, nil
	}
	return b, nil
}

func (BytesSerialiser) SerialiseNull() []byte { return []byte{nullSentinel} }

func (BytesSerialiser) DeserialiseEmptyBytes() (interface{}, error) { return []byte{}, nil }

// Int64Serialiser serialises an int64 as a 0x01 tag byte followed by 8
// big-endian bytes (9 bytes in all), preserving
// unsigned lexicographic order for non-negative values.
type Int64Serialiser struct{}

func (Int64Serialiser) Serialise(v interface{}) ([]byte, error) {
	i, err := asInt64(v)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, 9)
	buf[0] = 1
	binary.BigEndian.PutUint64(buf[1:], uint64(i))
	return buf, nil
}

func (Int64Serialiser) Deserialise(b []byte) (interface{}, error) {
	if len(b) == 0 {
		return nil, fmt.Errorf("schema: Int64Serialiser: empty input")
	}
	if b[0] == nullSentinel {
		return nil, nil
	}
	if len(b) != 9 {
		return nil, fmt.Errorf("schema: Int64Serialiser: expected 9 bytes, got %d", len(b))
	}
	return int64(binary.BigEndian.Uint64(b[1:])), nil
}

func (Int64Serialiser) SerialiseNull() []byte { return []byte{nullSentinel} }

func (Int64Serialiser) DeserialiseEmptyBytes() (interface{}, error) { return int64(0), nil }

func asInt64(v interface{}) (int64, error) {
	switch n := v.(type) {
	case int64:
		return n, nil
	case int:
		return int64(n), nil
	default:
		return 0, fmt.Errorf("schema: Int64Serialiser expects an integer, got %T", v)
	}
}

// Float64Serialiser serialises a float64 via its IEEE 754 bit pattern.
type Float64Serialiser struct{}

func (Float64Serialiser) Serialise(v interface{}) ([]byte, error) {
	f, ok := v.(float64)
	if !ok {
		return nil, fmt.Errorf("schema: Float64Serialiser expects a float64, got %T", v)
	}
	buf := make([]byte, 9)
	buf[0] = 1
	binary.BigEndian.PutUint64(buf[1:], math.Float64bits(f))
	return buf, nil
}

func (Float64Serialiser) Deserialise(b []byte) (interface{}, error) {
	if len(b) == 0 {
		return nil, fmt.Errorf("schema: Float64Serialiser: empty input")
	}
	if b[0] == nullSentinel {
		return nil, nil
	}
	if len(b) != 9 {
		return nil, fmt.Errorf("schema: Float64Serialiser: expected 9 bytes, got %d", len(b))
	}
	return math.Float64frombits(binary.BigEndian.Uint64(b[1:])), nil
}

func (Float64Serialiser) SerialiseNull() []byte { return []byte{nullSentinel} }

func (Float64Serialiser) DeserialiseEmptyBytes() (interface{}, error) { return float64(0), nil }

// BuiltinSerialiser resolves one of the codec's built-in serialisers by
// name, for use by YAML-driven schema configuration.
func BuiltinSerialiser(name string) (Serialiser, error) {
	switch name {
	case "string":
		return StringSerialiser{}, nil
	case "bytes":
		return BytesSerialiser{}, nil
	case "int64":
		return Int64Serialiser{}, nil
	case "float64":
		return Float64Serialiser{}, nil
	default:
		return nil, fmt.Errorf("schema: unknown builtin serialiser %q", name)
	}
}
