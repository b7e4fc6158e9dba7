package attribute

import (
	"fmt"

	"github.com/miekg/pkcs11"
)

// ObjectClassNames maps CKO_* values to names
var ObjectClassNames = map[uint]string{
	pkcs11.CKO_DATA:              "CKO_DATA",
	pkcs11.CKO_CERTIFICATE:       "CKO_CERTIFICATE",
	pkcs11.CKO_PUBLIC_KEY:        "CKO_PUBLIC_KEY",
	pkcs11.CKO_PRIVATE_KEY:       "CKO_PRIVATE_KEY",
	pkcs11.CKO_SECRET_KEY:        "CKO_SECRET_KEY",
	pkcs11.CKO_HW_FEATURE:        "CKO_HW_FEATURE",
	pkcs11.CKO_DOMAIN_PARAMETERS: "CKO_DOMAIN_PARAMETERS",
	pkcs11.CKO_MECHANISM:         "CKO_MECHANISM",
	pkcs11.CKO_OTP_KEY:           "CKO_OTP_KEY",
	pkcs11.CKO_VENDOR_DEFINED:    "CKO_VENDOR_DEFINED",
}

// CKKECEdwards is CKK_EC_EDWARDS, defined by PKCS#11 v3.0
const CKKECEdwards uint = 0x00000040

// KeyTypeNames maps CKK_* values to names
var KeyTypeNames = map[uint]string{
	pkcs11.CKK_RSA:            "CKK_RSA",
	pkcs11.CKK_DSA:            "CKK_DSA",
	pkcs11.CKK_DH:             "CKK_DH",
	pkcs11.CKK_EC:             "CKK_EC",
	pkcs11.CKK_X9_42_DH:       "CKK_X9_42_DH",
	pkcs11.CKK_KEA:            "CKK_KEA",
	pkcs11.CKK_GENERIC_SECRET: "CKK_GENERIC_SECRET",
	pkcs11.CKK_RC2:            "CKK_RC2",
	pkcs11.CKK_RC4:            "CKK_RC4",
	pkcs11.CKK_DES:            "CKK_DES",
	pkcs11.CKK_DES2:           "CKK_DES2",
	pkcs11.CKK_DES3:           "CKK_DES3",
	pkcs11.CKK_AES:            "CKK_AES",
	CKKECEdwards:              "CKK_EC_EDWARDS",
	pkcs11.CKK_VENDOR_DEFINED: "CKK_VENDOR_DEFINED",
}

// ObjectClassName returns the name of CKO_* value
func ObjectClassName(class uint) string {
	if n, ok := ObjectClassNames[class]; ok {
		return n
	}
	return fmt.Sprintf("CKO(0x%X)", class)
}

// KeyTypeName returns the name of CKK_* value
func KeyTypeName(typ uint) string {
	if n, ok := KeyTypeNames[typ]; ok {
		return n
	}
	return fmt.Sprintf("CKK(0x%X)", typ)
}
