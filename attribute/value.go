package attribute

import (
	"bytes"
	"fmt"
	"slices"

	"github.com/cockroachdb/errors"
	"github.com/miekg/pkcs11"
)

// Kind is the type of a Value
type Kind int

// Value kinds
const (
	KindBytes Kind = iota
	KindBool
	KindString
	KindULong
	KindList
)

var kindNames = map[Kind]string{
	KindBytes:  "bytes",
	KindBool:   "bool",
	KindString: "string",
	KindULong:  "ulong",
	KindList:   "list",
}

// String returns the name of the kind
func (k Kind) String() string {
	if n, ok := kindNames[k]; ok {
		return n
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// CK_BBOOL wire values
const (
	ckFalse byte = 0
	ckTrue  byte = 1
)

// Value is an attribute value: bytes, a CK_BBOOL, a UTF-8 string,
// a CK_ULONG, or a list of nested attributes such as CKA_WRAP_TEMPLATE.
// A list owns its nested attributes.
type Value struct {
	kind Kind
	raw  []byte
	b    bool
	n    uint64
	list []Attribute
}

// Attribute is a typed attribute, the type is a CKA_* constant
type Attribute struct {
	Type  uint
	Value Value
}

// New returns an attribute
func New(typ uint, v Value) Attribute {
	return Attribute{Type: typ, Value: v}
}

// Bytes returns a byte array value
func Bytes(b []byte) Value {
	return Value{kind: KindBytes, raw: slices.Clone(b)}
}

// Bool returns a CK_BBOOL value
func Bool(b bool) Value {
	return Value{kind: KindBool, b: b}
}

// String returns a string value
func String(s string) Value {
	return Value{kind: KindString, raw: []byte(s)}
}

// ULong returns a CK_ULONG value
func ULong(n uint64) Value {
	return Value{kind: KindULong, n: n}
}

// List returns a nested attribute list value
func List(attrs ...Attribute) Value {
	return Value{kind: KindList, list: slices.Clone(attrs)}
}

// Kind returns the kind of the value
func (v Value) Kind() Kind { return v.kind }

// AsBytes returns the value of a bytes or string kind
func (v Value) AsBytes() ([]byte, bool) {
	if v.kind != KindBytes && v.kind != KindString {
		return nil, false
	}
	return slices.Clone(v.raw), true
}

// AsBool returns the value of a bool kind
func (v Value) AsBool() (bool, bool) {
	return v.b, v.kind == KindBool
}

// AsString returns the value of a string or bytes kind
func (v Value) AsString() (string, bool) {
	if v.kind != KindBytes && v.kind != KindString {
		return "", false
	}
	return string(v.raw), true
}

// AsULong returns the value of a ulong kind
func (v Value) AsULong() (uint64, bool) {
	return v.n, v.kind == KindULong
}

// AsList returns a copy of the nested attributes of a list kind
func (v Value) AsList() ([]Attribute, bool) {
	if v.kind != KindList {
		return nil, false
	}
	return slices.Clone(v.list), true
}

// Equal returns true if both values have the same kind and content
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindBool:
		return v.b == o.b
	case KindULong:
		return v.n == o.n
	case KindList:
		return slices.EqualFunc(v.list, o.list, func(a, b Attribute) bool {
			return a.Type == b.Type && a.Value.Equal(b.Value)
		})
	default:
		return bytes.Equal(v.raw, o.raw)
	}
}

// Encode returns the wire form of the attribute.
// Nested lists are rejected: the flat attribute transport can not carry
// pointers to nested templates.
func (p Platform) Encode(a Attribute) (*pkcs11.Attribute, error) {
	v := a.Value
	switch v.kind {
	case KindBytes, KindString:
		return &pkcs11.Attribute{Type: a.Type, Value: slices.Clone(v.raw)}, nil
	case KindBool:
		b := ckFalse
		if v.b {
			b = ckTrue
		}
		return &pkcs11.Attribute{Type: a.Type, Value: []byte{b}}, nil
	case KindULong:
		raw, err := p.PutULong(v.n)
		if err != nil {
			return nil, errors.WithMessagef(err, "attribute 0x%X", a.Type)
		}
		return &pkcs11.Attribute{Type: a.Type, Value: raw}, nil
	case KindList:
		return nil, errors.Errorf("attribute 0x%X: nested attribute lists are not supported by the transport", a.Type)
	}
	return nil, errors.Errorf("attribute 0x%X: unsupported kind %s", a.Type, v.kind)
}

// Template encodes a list of attributes
func (p Platform) Template(attrs ...Attribute) ([]*pkcs11.Attribute, error) {
	res := make([]*pkcs11.Attribute, 0, len(attrs))
	for _, a := range attrs {
		enc, err := p.Encode(a)
		if err != nil {
			return nil, err
		}
		res = append(res, enc)
	}
	return res, nil
}

// Decode interprets the raw value as kind
func (p Platform) Decode(kind Kind, a *pkcs11.Attribute) (Attribute, error) {
	switch kind {
	case KindBytes:
		return New(a.Type, Bytes(a.Value)), nil
	case KindString:
		return New(a.Type, String(string(a.Value))), nil
	case KindBool:
		if len(a.Value) != 1 {
			return Attribute{}, errors.Errorf("attribute 0x%X: invalid CK_BBOOL length %d", a.Type, len(a.Value))
		}
		return New(a.Type, Bool(a.Value[0] != ckFalse)), nil
	case KindULong:
		n, err := p.ULong(a.Value)
		if err != nil {
			return Attribute{}, errors.WithMessagef(err, "attribute 0x%X", a.Type)
		}
		return New(a.Type, ULong(n)), nil
	}
	return Attribute{}, errors.Errorf("attribute 0x%X: unsupported kind %s", a.Type, kind)
}
