// Package pb encodes and decodes the protobuf messages exchanged with devolo
// devices.
//
// The device schemas are small and flat, so messages are written field by
// field with protowire instead of generated code. Encoding follows proto3
// rules: scalar fields holding their zero value are omitted.
//
// The field numbers used by the deviceapi and plcnetapi message codecs are
// inferred from the message shapes. They have not been checked against the
// device .proto schemas.
package pb

import (
	"fmt"
	"math"

	"google.golang.org/protobuf/encoding/protowire"
)

// Message is implemented by every request and response type.
type Message interface {
	Marshal() []byte
	Unmarshal(b []byte) error
}

// AppendUint appends a varint field unless v is zero.
func AppendUint(b []byte, num protowire.Number, v uint64) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

// AppendInt appends an int32/int64 field unless v is zero.
func AppendInt(b []byte, num protowire.Number, v int64) []byte {
	return AppendUint(b, num, uint64(v))
}

// AppendBool appends a bool field unless v is false.
func AppendBool(b []byte, num protowire.Number, v bool) []byte {
	return AppendUint(b, num, protowire.EncodeBool(v))
}

// AppendString appends a string field unless s is empty.
func AppendString(b []byte, num protowire.Number, s string) []byte {
	if s == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, s)
}

// AppendBytes appends a bytes field unless v is empty.
func AppendBytes(b []byte, num protowire.Number, v []byte) []byte {
	if len(v) == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, v)
}

// AppendMessage appends an embedded message. Empty messages are still
// written so repeated entries keep their position.
func AppendMessage(b []byte, num protowire.Number, m Message) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, m.Marshal())
}

// AppendDouble appends a double field unless v is zero.
func AppendDouble(b []byte, num protowire.Number, v float64) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.Fixed64Type)
	return protowire.AppendFixed64(b, math.Float64bits(v))
}

// Field is one decoded field of a message.
type Field struct {
	Num     protowire.Number
	Type    protowire.Type
	Varint  uint64
	Fixed32 uint32
	Fixed64 uint64
	Bytes   []byte
}

// Bool returns the field as a bool.
func (f Field) Bool() bool { return protowire.DecodeBool(f.Varint) }

// Int32 returns the field as a (possibly negative) int32.
func (f Field) Int32() int32 { return int32(f.Varint) }

// String returns the field as a string.
func (f Field) String() string { return string(f.Bytes) }

// Double returns the field as a float64.
func (f Field) Double() float64 { return math.Float64frombits(f.Fixed64) }

// Float returns the field as a float32.
func (f Field) Float() float32 { return math.Float32frombits(f.Fixed32) }

// Range calls fn for every field in b. Unknown field types are skipped.
func Range(b []byte, fn func(Field) error) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return fmt.Errorf("invalid tag: %w", protowire.ParseError(n))
		}
		b = b[n:]

		f := Field{Num: num, Type: typ}
		switch typ {
		case protowire.VarintType:
			f.Varint, n = protowire.ConsumeVarint(b)
		case protowire.Fixed32Type:
			f.Fixed32, n = protowire.ConsumeFixed32(b)
		case protowire.Fixed64Type:
			f.Fixed64, n = protowire.ConsumeFixed64(b)
		case protowire.BytesType:
			f.Bytes, n = protowire.ConsumeBytes(b)
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
		}
		if n < 0 {
			return fmt.Errorf("field %d: %w", num, protowire.ParseError(n))
		}
		b = b[n:]

		if err := fn(f); err != nil {
			return err
		}
	}
	return nil
}

// Decode unmarshals b into m, wrapping failures with the message name.
func Decode(b []byte, m Message, name string) error {
	if err := m.Unmarshal(b); err != nil {
		return fmt.Errorf("failed to decode %s: %w", name, err)
	}
	return nil
}
