package attribute_test

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/pkcs11uri/attribute"
	"github.com/miekg/pkcs11"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyReadError(t *testing.T) {
	r, err := attribute.ClassifyReadError(pkcs11.CKA_VALUE, pkcs11.Error(pkcs11.CKR_ATTRIBUTE_SENSITIVE))
	require.NoError(t, err)
	assert.Equal(t, attribute.ReadSensitive, r.Status)
	assert.False(t, r.OK())
	assert.Equal(t, "sensitive", r.Status.String())

	wrapped := errors.WithMessage(pkcs11.Error(pkcs11.CKR_ATTRIBUTE_TYPE_INVALID), "GetAttributeValue")
	r, err = attribute.ClassifyReadError(pkcs11.CKA_VALUE, wrapped)
	require.NoError(t, err)
	assert.Equal(t, attribute.ReadTypeInvalid, r.Status)
	assert.Equal(t, uint(pkcs11.CKA_VALUE), r.Type)

	_, err = attribute.ClassifyReadError(pkcs11.CKA_VALUE, pkcs11.Error(pkcs11.CKR_SESSION_HANDLE_INVALID))
	assert.Error(t, err)

	_, err = attribute.ClassifyReadError(pkcs11.CKA_VALUE, errors.New("failed"))
	assert.EqualError(t, err, "failed")

	assert.Equal(t, "ok", attribute.ReadOK.String())
	assert.Equal(t, "type-invalid", attribute.ReadTypeInvalid.String())
	assert.Equal(t, "unknown", attribute.ReadStatus(9).String())
}

func TestNames(t *testing.T) {
	assert.Equal(t, "CKO_PRIVATE_KEY", attribute.ObjectClassName(pkcs11.CKO_PRIVATE_KEY))
	assert.Equal(t, "CKO(0x42)", attribute.ObjectClassName(0x42))
	assert.Equal(t, "CKK_EC", attribute.KeyTypeName(pkcs11.CKK_EC))
	assert.Equal(t, "CKK(0x7777)", attribute.KeyTypeName(0x7777))
	assert.Equal(t, "CKK_EC_EDWARDS", attribute.KeyTypeName(0x40))
}
