package uri_test

import (
	"strings"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/pkcs11uri/uri"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEmpty(t *testing.T) {
	u, err := uri.Parse("pkcs11:")
	require.NoError(t, err)

	assert.False(t, u.DefinesLibrary())
	assert.False(t, u.DefinesSlot())
	assert.False(t, u.DefinesToken())
	assert.False(t, u.DefinesObject())
	assert.False(t, u.HasVendorPathAttributes())
	assert.Empty(t, u.VendorPathAttributes())
	assert.Empty(t, u.VendorQueryAttributes())
	assert.Equal(t, "pkcs11:", u.String())
}

func TestParseAll(t *testing.T) {
	s := "pkcs11:token=My%20token;manufacturer=Acme;serial=0123456789abcdef;model=p11" +
		";library-manufacturer=Acme%20Lib;library-description=Soft;library-version=2.40" +
		";object=signer;type=private;id=%01%02" +
		";slot-manufacturer=Reader;slot-description=Slot%201;slot-id=10" +
		"?pin-source=file:/etc/pin&module-name=softhsm2&module-path=/usr/lib/softhsm"

	u, err := uri.Parse(s)
	require.NoError(t, err)

	check := func(exp string, fn func() (string, bool)) {
		t.Helper()
		v, ok := fn()
		assert.True(t, ok)
		assert.Equal(t, exp, v)
	}
	check("My token", u.Token)
	check("Acme", u.Manufacturer)
	check("0123456789abcdef", u.Serial)
	check("p11", u.Model)
	check("Acme Lib", u.LibraryManufacturer)
	check("Soft", u.LibraryDescription)
	check("signer", u.Object)
	check("Reader", u.SlotManufacturer)
	check("Slot 1", u.SlotDescription)
	check("file:/etc/pin", u.PinSource)
	check("softhsm2", u.ModuleName)
	check("/usr/lib/softhsm", u.ModulePath)

	_, ok := u.PinValue()
	assert.False(t, ok)

	v, ok := u.LibraryVersion()
	assert.True(t, ok)
	assert.Equal(t, uri.Version{Major: 2, Minor: 40}, v)

	typ, ok := u.Type()
	assert.True(t, ok)
	assert.Equal(t, uri.ObjectTypePrivateKey, typ)

	id, ok := u.ID()
	assert.True(t, ok)
	assert.Equal(t, []byte{1, 2}, id)

	slot, ok := u.SlotID()
	assert.True(t, ok)
	assert.Equal(t, uint(10), slot)

	assert.True(t, u.DefinesLibrary())
	assert.True(t, u.DefinesSlot())
	assert.True(t, u.DefinesToken())
	assert.True(t, u.DefinesObject())
}

func TestParseErrors(t *testing.T) {
	tcases := []struct {
		uri string
		err string
	}{
		{"", "URI is empty"},
		{"   ", "URI is empty"},
		{"pkcs12:token=a", "URI must start with \"pkcs11:\""},
		{"PKCS11:token=a", "URI must start with \"pkcs11:\""},
		{"token=a", "URI must start with \"pkcs11:\""},
		{"<pkcs11:token=a", "URI is missing closing delimiter '>'"},
		{"\"pkcs11:token=a", "URI is missing closing delimiter '\"'"},
		{"see <pkcs11:token=a here", "URI is missing closing delimiter '>'"},
		{"<token=a>", "URI must start with \"pkcs11:\""},
		{"pkcs11:?", "query marker is present but query component is empty"},
		{"pkcs11:token=a?", "query marker is present but query component is empty"},
		{"pkcs11:token", "path attribute \"token\" has no value"},
		{"pkcs11:=a", "empty path attribute name"},
		{"pkcs11:token=a;", "empty path attribute"},
		{"pkcs11:;token=a", "empty path attribute"},
		{"pkcs11:?pin-value", "query attribute \"pin-value\" has no value"},
		{"pkcs11:?=1", "empty query attribute name"},
		{"pkcs11:?pin-value=1&", "empty query attribute"},
		{"pkcs11:token=a;token=b", "duplicate attribute \"token\""},
		{"pkcs11:type=cert;type=cert", "duplicate attribute \"type\""},
		{"pkcs11:id=1;id=2", "duplicate attribute \"id\""},
		{"pkcs11:slot-id=1;slot-id=1", "duplicate attribute \"slot-id\""},
		{"pkcs11:library-version=1;library-version=1", "duplicate attribute \"library-version\""},
		{"pkcs11:x-a=1;x-a=2", "duplicate attribute \"x-a\""},
		{"pkcs11:?pin-value=1&pin-value=2", "duplicate attribute \"pin-value\""},
		{"pkcs11:?module-path=a&module-path=a", "duplicate attribute \"module-path\""},
		{"pkcs11:object=%", "invalid percent-encoding in attribute \"object\""},
		{"pkcs11:object=%G1", "invalid percent-encoding in attribute \"object\""},
		{"pkcs11:token=a/b", "invalid character '/' in attribute \"token\""},
		{"pkcs11:token=a b", "invalid character ' ' in attribute \"token\""},
		{"pkcs11:x%41=1", "invalid character '%' in attribute \"x%41\""},
		{"pkcs11:x.y=1", "invalid character '.' in attribute \"x.y\""},
		{"pkcs11:?x.y=1", "invalid character '.' in attribute \"x.y\""},
		{"pkcs11:type=bogus", "unsupported value \"bogus\" of \"type\" attribute"},
		{"pkcs11:type=Public", "unsupported value \"Public\" of \"type\" attribute"},
		{"pkcs11:slot-id=abc", "value of \"slot-id\" attribute must be a decimal number"},
		{"pkcs11:slot-id=-1", "value of \"slot-id\" attribute must be a decimal number"},
		{"pkcs11:slot-id=", "value of \"slot-id\" attribute must be a decimal number"},
		{"pkcs11:slot-id=99999999999999999999999", "value \"99999999999999999999999\" of \"slot-id\" attribute is out of range"},
		{"pkcs11:library-version=1.2.3", "value of \"library-version\" attribute must be a decimal number"},
		{"pkcs11:library-version=1.", "value of \"library-version\" attribute must be a decimal number"},
		{"pkcs11:library-version=.1", "value of \"library-version\" attribute must be a decimal number"},
		{"pkcs11:library-version=256", "value \"256\" of \"library-version\" attribute is out of range"},
		{"pkcs11:library-version=1.256", "value \"256\" of \"library-version\" attribute is out of range"},
		{"pkcs11:token=" + strings.Repeat("a", 33), "value of \"token\" attribute exceeds 32 bytes"},
		{"pkcs11:serial=" + strings.Repeat("1", 17), "value of \"serial\" attribute exceeds 16 bytes"},
		{"pkcs11:slot-description=" + strings.Repeat("%41", 65), "value of \"slot-description\" attribute exceeds 64 bytes"},
	}

	for _, tc := range tcases {
		t.Run(tc.uri, func(t *testing.T) {
			u, err := uri.Parse(tc.uri)
			require.Error(t, err)
			assert.Nil(t, u)
			assert.True(t, errors.Is(err, uri.ErrInvalid))
			assert.True(t, uri.IsInvalid(err))
			assert.Contains(t, err.Error(), tc.err)
		})
	}
}

func TestParsePercentEncodedObject(t *testing.T) {
	u, err := uri.Parse("pkcs11:object=%41")
	require.NoError(t, err)
	label, ok := u.Object()
	require.True(t, ok)
	assert.Equal(t, "A", label)
}

func TestParseObjectID(t *testing.T) {
	u1, err := uri.Parse("pkcs11:id=AB")
	require.NoError(t, err)
	u2, err := uri.Parse("pkcs11:id=%41%42")
	require.NoError(t, err)

	id1, ok := u1.ID()
	require.True(t, ok)
	id2, ok := u2.ID()
	require.True(t, ok)
	assert.Equal(t, []byte{0x41, 0x42}, id1)
	assert.Equal(t, id1, id2)

	// the id is always percent-encoded on output
	assert.Equal(t, "pkcs11:id=%41%42", u1.String())
	assert.Equal(t, u1.String(), u2.String())

	// empty id is defined
	u3, err := uri.Parse("pkcs11:id=")
	require.NoError(t, err)
	id3, ok := u3.ID()
	assert.True(t, ok)
	assert.Empty(t, id3)
	assert.True(t, u3.DefinesObject())
}

func TestParseIDIsCopied(t *testing.T) {
	u, err := uri.Parse("pkcs11:id=%01")
	require.NoError(t, err)
	id, _ := u.ID()
	id[0] = 0xFF
	id2, _ := u.ID()
	assert.Equal(t, []byte{0x01}, id2)
}

func TestParseType(t *testing.T) {
	tcases := map[string]uri.ObjectType{
		"public":     uri.ObjectTypePublicKey,
		"private":    uri.ObjectTypePrivateKey,
		"cert":       uri.ObjectTypeCert,
		"secret-key": uri.ObjectTypeSecretKey,
		"data":       uri.ObjectTypeData,
	}
	for name, exp := range tcases {
		u, err := uri.Parse("pkcs11:type=" + name)
		require.NoError(t, err)
		typ, ok := u.Type()
		require.True(t, ok)
		assert.Equal(t, exp, typ)
		assert.Equal(t, name, typ.String())
		assert.True(t, typ.Valid())
		assert.True(t, u.DefinesObject())
		assert.False(t, u.DefinesToken())
	}

	assert.False(t, uri.ObjectType(0x80000001).Valid())
	assert.Equal(t, "CKO(0x80000001)", uri.ObjectType(0x80000001).String())
}

func TestParseLibraryVersion(t *testing.T) {
	tcases := []struct {
		val  string
		opts []uri.Option
		exp  uri.Version
	}{
		{"1", nil, uri.Version{Major: 1}},
		{"2.40", nil, uri.Version{Major: 2, Minor: 40}},
		{"255.255", nil, uri.Version{Major: 255, Minor: 255}},
		{"300.1000", []uri.Option{uri.WithLengthCheck(false)}, uri.Version{Major: 300, Minor: 1000}},
		{"%31.%32", nil, uri.Version{Major: 1, Minor: 2}},
	}
	for _, tc := range tcases {
		t.Run(tc.val, func(t *testing.T) {
			u, err := uri.ParseWithOptions("pkcs11:library-version="+tc.val, tc.opts...)
			require.NoError(t, err)
			v, ok := u.LibraryVersion()
			require.True(t, ok)
			assert.Equal(t, tc.exp, v)
			assert.True(t, u.DefinesLibrary())
		})
	}
}

func TestParseLengthCheck(t *testing.T) {
	label := strings.Repeat("a", 33)

	_, err := uri.Parse("pkcs11:token=" + label)
	require.Error(t, err)

	u, err := uri.ParseWithOptions("pkcs11:token="+label, uri.WithLengthCheck(false))
	require.NoError(t, err)
	v, _ := u.Token()
	assert.Equal(t, label, v)

	// the ceiling applies to decoded bytes
	u, err = uri.Parse("pkcs11:token=" + strings.Repeat("%41", 32))
	require.NoError(t, err)
	v, _ = u.Token()
	assert.Equal(t, strings.Repeat("A", 32), v)

	// object label has no ceiling
	_, err = uri.Parse("pkcs11:object=" + strings.Repeat("o", 1024))
	assert.NoError(t, err)
}

func TestParseVendorAttributes(t *testing.T) {
	u, err := uri.Parse("pkcs11:token=a;x-vendor=v%20v;X_Other=?x-q=1&x-q=2&x-r=/a/b&pin-value=1234")
	require.NoError(t, err)

	assert.True(t, u.HasVendorPathAttributes())
	assert.Equal(t, map[string]string{"x-vendor": "v v", "X_Other": ""}, u.VendorPathAttributes())
	assert.Equal(t, map[string][]string{"x-q": {"1", "2"}, "x-r": {"/a/b"}}, u.VendorQueryAttributes())

	pin, ok := u.PinValue()
	assert.True(t, ok)
	assert.Equal(t, "1234", pin)

	// returned maps are copies
	m := u.VendorPathAttributes()
	m["x-vendor"] = "changed"
	q := u.VendorQueryAttributes()
	q["x-q"][0] = "changed"
	assert.Equal(t, "v v", u.VendorPathAttributes()["x-vendor"])
	assert.Equal(t, "1", u.VendorQueryAttributes()["x-q"][0])
}

func TestParseNamesByComponent(t *testing.T) {
	// a query attribute name in the path is a vendor attribute and vice versa
	u, err := uri.Parse("pkcs11:pin-value=1?token=a")
	require.NoError(t, err)

	_, ok := u.PinValue()
	assert.False(t, ok)
	_, ok = u.Token()
	assert.False(t, ok)
	assert.Equal(t, map[string]string{"pin-value": "1"}, u.VendorPathAttributes())
	assert.Equal(t, map[string][]string{"token": {"a"}}, u.VendorQueryAttributes())
}

func TestParseDelimited(t *testing.T) {
	tcases := []string{
		"pkcs11:token=a;object=b",
		"  pkcs11:token=a;object=b\n",
		"<pkcs11:token=a;object=b>",
		"<pkcs11:token=a;\n   object=b>",
		"\t\"pkcs11:token=a; object=b\" ",
		"see <pkcs11:token=a;object=b> here",
		"key: \"pkcs11:token=a;\n\tobject=b\", next",
		"first <pkcs11:token=a;object=b> then <pkcs11:token=c>",
	}
	for _, s := range tcases {
		u, err := uri.Parse(s)
		require.NoError(t, err, s)
		token, _ := u.Token()
		object, _ := u.Object()
		assert.Equal(t, "a", token)
		assert.Equal(t, "b", object)
	}
}

func TestParseQueryCharacters(t *testing.T) {
	u, err := uri.Parse("pkcs11:?module-path=/usr/lib/softhsm/libsofthsm2.so&pin-source=file:/etc/token.pin?x|y")
	require.NoError(t, err)

	p, _ := u.ModulePath()
	assert.Equal(t, "/usr/lib/softhsm/libsofthsm2.so", p)
	src, _ := u.PinSource()
	assert.Equal(t, "file:/etc/token.pin?x|y", src)
	assert.False(t, u.DefinesToken())
}

func TestParseEmptyValues(t *testing.T) {
	u, err := uri.Parse("pkcs11:token=;object=")
	require.NoError(t, err)
	v, ok := u.Token()
	assert.True(t, ok)
	assert.Empty(t, v)
	assert.True(t, u.DefinesToken())
	assert.True(t, u.DefinesObject())
}
