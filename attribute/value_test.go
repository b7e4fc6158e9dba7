package attribute_test

import (
	"encoding/binary"
	"testing"

	"github.com/effective-security/pkcs11uri/attribute"
	"github.com/miekg/pkcs11"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValueAccessors(t *testing.T) {
	raw := []byte{1, 2}
	v := attribute.Bytes(raw)
	raw[0] = 9
	b, ok := v.AsBytes()
	require.True(t, ok)
	assert.Equal(t, []byte{1, 2}, b)
	_, ok = v.AsBool()
	assert.False(t, ok)
	assert.Equal(t, attribute.KindBytes, v.Kind())

	s, ok := attribute.String("label").AsString()
	require.True(t, ok)
	assert.Equal(t, "label", s)

	flag, ok := attribute.Bool(true).AsBool()
	assert.True(t, ok)
	assert.True(t, flag)

	n, ok := attribute.ULong(7).AsULong()
	assert.True(t, ok)
	assert.Equal(t, uint64(7), n)
	_, ok = attribute.ULong(7).AsString()
	assert.False(t, ok)

	list := attribute.List(
		attribute.New(pkcs11.CKA_CLASS, attribute.ULong(pkcs11.CKO_SECRET_KEY)),
		attribute.New(pkcs11.CKA_EXTRACTABLE, attribute.Bool(false)),
	)
	nested, ok := list.AsList()
	require.True(t, ok)
	assert.Len(t, nested, 2)
	_, ok = attribute.Bool(false).AsList()
	assert.False(t, ok)

	assert.Equal(t, "list", attribute.KindList.String())
	assert.Equal(t, "kind(42)", attribute.Kind(42).String())
}

func TestValueEqual(t *testing.T) {
	assert.True(t, attribute.Bytes([]byte("a")).Equal(attribute.Bytes([]byte("a"))))
	assert.False(t, attribute.Bytes([]byte("a")).Equal(attribute.String("a")))
	assert.False(t, attribute.Bool(true).Equal(attribute.Bool(false)))
	assert.True(t, attribute.ULong(1).Equal(attribute.ULong(1)))

	l1 := attribute.List(attribute.New(pkcs11.CKA_TOKEN, attribute.Bool(true)))
	l2 := attribute.List(attribute.New(pkcs11.CKA_TOKEN, attribute.Bool(true)))
	l3 := attribute.List(attribute.New(pkcs11.CKA_PRIVATE, attribute.Bool(true)))
	assert.True(t, l1.Equal(l2))
	assert.False(t, l1.Equal(l3))
}

func TestEncodeDecode(t *testing.T) {
	p, err := attribute.NewPlatform(8, binary.LittleEndian)
	require.NoError(t, err)

	tcases := []struct {
		attr attribute.Attribute
		raw  []byte
	}{
		{attribute.New(pkcs11.CKA_LABEL, attribute.String("key")), []byte("key")},
		{attribute.New(pkcs11.CKA_ID, attribute.Bytes([]byte{1, 2})), []byte{1, 2}},
		{attribute.New(pkcs11.CKA_TOKEN, attribute.Bool(true)), []byte{1}},
		{attribute.New(pkcs11.CKA_PRIVATE, attribute.Bool(false)), []byte{0}},
		{attribute.New(pkcs11.CKA_CLASS, attribute.ULong(pkcs11.CKO_PRIVATE_KEY)), []byte{3, 0, 0, 0, 0, 0, 0, 0}},
	}
	for _, tc := range tcases {
		enc, err := p.Encode(tc.attr)
		require.NoError(t, err)
		assert.Equal(t, tc.attr.Type, enc.Type)
		assert.Equal(t, tc.raw, enc.Value)

		dec, err := p.Decode(tc.attr.Value.Kind(), enc)
		require.NoError(t, err)
		assert.True(t, tc.attr.Value.Equal(dec.Value))
	}

	for _, b := range []bool{true, false} {
		enc, err := p.Encode(attribute.New(pkcs11.CKA_SENSITIVE, attribute.Bool(b)))
		require.NoError(t, err)
		assert.Equal(t, pkcs11.NewAttribute(pkcs11.CKA_SENSITIVE, b).Value, enc.Value)
	}

	_, err = p.Encode(attribute.New(pkcs11.CKA_WRAP_TEMPLATE, attribute.List()))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nested attribute lists are not supported")

	_, err = p.Decode(attribute.KindBool, &pkcs11.Attribute{Type: pkcs11.CKA_TOKEN, Value: []byte{1, 0}})
	assert.Error(t, err)
	_, err = p.Decode(attribute.KindULong, &pkcs11.Attribute{Type: pkcs11.CKA_CLASS, Value: []byte{1}})
	assert.Error(t, err)
	_, err = p.Decode(attribute.KindList, &pkcs11.Attribute{Type: pkcs11.CKA_CLASS})
	assert.Error(t, err)

	tmpl, err := p.Template(
		attribute.New(pkcs11.CKA_CLASS, attribute.ULong(pkcs11.CKO_DATA)),
		attribute.New(pkcs11.CKA_LABEL, attribute.String("x")),
	)
	require.NoError(t, err)
	assert.Len(t, tmpl, 2)

	_, err = p.Template(attribute.New(pkcs11.CKA_WRAP_TEMPLATE, attribute.List()))
	assert.Error(t, err)
}
