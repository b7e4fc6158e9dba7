package uri

import (
	"fmt"

	"github.com/miekg/pkcs11"
)

// Scheme is the prefix of every PKCS#11 URI
const Scheme = "pkcs11:"

const (
	pathSeparator  = ";"
	querySeparator = "&"
	queryMarker    = "?"
	valueSeparator = "="
)

// Path attribute names
const (
	AttrToken               = "token"
	AttrManufacturer        = "manufacturer"
	AttrSerial              = "serial"
	AttrModel               = "model"
	AttrLibraryManufacturer = "library-manufacturer"
	AttrLibraryDescription  = "library-description"
	AttrLibraryVersion      = "library-version"
	AttrObject              = "object"
	AttrType                = "type"
	AttrID                  = "id"
	AttrSlotManufacturer    = "slot-manufacturer"
	AttrSlotDescription     = "slot-description"
	AttrSlotID              = "slot-id"
)

// Query attribute names
const (
	AttrPinSource  = "pin-source"
	AttrPinValue   = "pin-value"
	AttrModuleName = "module-name"
	AttrModulePath = "module-path"
)

// pathOrder is the serialization order of the path attributes:
// library, slot, token and object groups.
var pathOrder = []string{
	AttrLibraryManufacturer,
	AttrLibraryDescription,
	AttrLibraryVersion,
	AttrSlotManufacturer,
	AttrSlotDescription,
	AttrSlotID,
	AttrToken,
	AttrManufacturer,
	AttrSerial,
	AttrModel,
	AttrObject,
	AttrType,
	AttrID,
}

var queryOrder = []string{
	AttrPinSource,
	AttrPinValue,
	AttrModuleName,
	AttrModulePath,
}

var (
	pathNames  = setOf(pathOrder)
	queryNames = setOf(queryOrder)
)

// maxLengths holds the size of the fixed-width CK_INFO, CK_SLOT_INFO and
// CK_TOKEN_INFO fields backing the attribute
var maxLengths = map[string]int{
	AttrToken:               32,
	AttrManufacturer:        32,
	AttrSerial:              16,
	AttrModel:               16,
	AttrLibraryManufacturer: 32,
	AttrLibraryDescription:  32,
	AttrSlotManufacturer:    32,
	AttrSlotDescription:     64,
}

// maxVersionComponent is the largest CK_VERSION component
const maxVersionComponent = 255

func setOf(names []string) map[string]bool {
	m := make(map[string]bool, len(names))
	for _, n := range names {
		m[n] = true
	}
	return m
}

// ObjectType is the object class selected by the type attribute,
// the values are CKO_* constants
type ObjectType uint

// Object types supported by the type attribute
const (
	ObjectTypePublicKey  ObjectType = pkcs11.CKO_PUBLIC_KEY
	ObjectTypePrivateKey ObjectType = pkcs11.CKO_PRIVATE_KEY
	ObjectTypeCert       ObjectType = pkcs11.CKO_CERTIFICATE
	ObjectTypeSecretKey  ObjectType = pkcs11.CKO_SECRET_KEY
	ObjectTypeData       ObjectType = pkcs11.CKO_DATA
)

var objectTypeByName = map[string]ObjectType{
	"public":     ObjectTypePublicKey,
	"private":    ObjectTypePrivateKey,
	"cert":       ObjectTypeCert,
	"secret-key": ObjectTypeSecretKey,
	"data":       ObjectTypeData,
}

var objectTypeNames = map[ObjectType]string{
	ObjectTypePublicKey:  "public",
	ObjectTypePrivateKey: "private",
	ObjectTypeCert:       "cert",
	ObjectTypeSecretKey:  "secret-key",
	ObjectTypeData:       "data",
}

// ParseObjectType returns the object type for the URI token,
// one of public, private, cert, secret-key or data
func ParseObjectType(s string) (ObjectType, error) {
	t, ok := objectTypeByName[s]
	if !ok {
		return 0, newError("unsupported value %q of %q attribute", s, AttrType)
	}
	return t, nil
}

// String returns the URI token of the type
func (t ObjectType) String() string {
	if n, ok := objectTypeNames[t]; ok {
		return n
	}
	return fmt.Sprintf("CKO(0x%X)", uint(t))
}

// Valid returns true if t can be expressed in a URI
func (t ObjectType) Valid() bool {
	_, ok := objectTypeNames[t]
	return ok
}

// charset is a lookup table of bytes allowed in literal form
type charset [256]bool

func newCharset(groups ...string) *charset {
	var c charset
	for _, g := range groups {
		for i := 0; i < len(g); i++ {
			c[g[i]] = true
		}
	}
	return &c
}

func (c *charset) has(b byte) bool {
	return c[b]
}

const (
	alpha = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"
	digit = "0123456789"

	// RFC 3986 unreserved
	unreserved = alpha + digit + "-._~"
	// RFC 7512 pk11-res-avail
	resAvail = ":[]@!$'()*+,="
)

var (
	pathChars       = newCharset(unreserved, resAvail, "&")
	queryChars      = newCharset(unreserved, resAvail, "/?|")
	vendorNameChars = newCharset(alpha, digit, "-_")
)
