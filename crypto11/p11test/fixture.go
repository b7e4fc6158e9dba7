package p11test

import (
	"github.com/miekg/pkcs11"
)

// PIN of the default token
const PIN = "11111111"

// Default returns a module with a populated token in slot 1,
// an empty token in slot 2, and an empty slot 3.
// Fixed-width strings are blank padded as real modules report them.
func Default() *Ctx {
	signer := NewObject(pkcs11.CKO_PRIVATE_KEY, "signer", []byte{0x01, 0x02}).
		SetULong(pkcs11.CKA_KEY_TYPE, pkcs11.CKK_EC)
	signer.Private = true
	signer.Sensitive[pkcs11.CKA_VALUE] = true
	signer.Attributes[pkcs11.CKA_VALUE] = []byte("secret")

	cert := NewObject(pkcs11.CKO_CERTIFICATE, "signer", []byte{0x01, 0x02})
	cert.Attributes[pkcs11.CKA_VALUE] = []byte{0x30, 0x82}

	return New(
		pkcs11.Info{
			CryptokiVersion:    pkcs11.Version{Major: 2, Minor: 40},
			ManufacturerID:     pad("SoftHSM", 32),
			LibraryDescription: pad("Implementation of PKCS11", 32),
			LibraryVersion:     pkcs11.Version{Major: 2, Minor: 6},
		},
		&Slot{
			ID: 1,
			Info: pkcs11.SlotInfo{
				SlotDescription: pad("SoftHSM slot ID 0x1", 64),
				ManufacturerID:  pad("SoftHSM project", 32),
			},
			Token: &pkcs11.TokenInfo{
				Label:          pad("xpki-unittest", 32),
				ManufacturerID: pad("SoftHSM project", 32),
				Model:          pad("SoftHSM v2", 16),
				SerialNumber:   "5f4a3c2b1a090807",
				Flags:          pkcs11.CKF_TOKEN_INITIALIZED | pkcs11.CKF_LOGIN_REQUIRED,
			},
			PIN: PIN,
			Objects: []*Object{
				signer,
				NewObject(pkcs11.CKO_PUBLIC_KEY, "signer", []byte{0x01, 0x02}).
					SetULong(pkcs11.CKA_KEY_TYPE, pkcs11.CKK_EC),
				cert,
				NewObject(pkcs11.CKO_DATA, "note", nil),
				NewObject(pkcs11.CKO_SECRET_KEY, "wrap key", []byte{0x03}).
					SetULong(pkcs11.CKA_KEY_TYPE, pkcs11.CKK_AES),
			},
		},
		&Slot{
			ID: 2,
			Info: pkcs11.SlotInfo{
				SlotDescription: pad("SoftHSM slot ID 0x2", 64),
				ManufacturerID:  pad("SoftHSM project", 32),
			},
			Token: &pkcs11.TokenInfo{
				Label:          pad("empty", 32),
				ManufacturerID: pad("SoftHSM project", 32),
				Model:          pad("SoftHSM v2", 16),
				SerialNumber:   "00000000000000aa",
			},
			PIN: PIN,
		},
		&Slot{
			ID: 3,
			Info: pkcs11.SlotInfo{
				SlotDescription: pad("Card reader", 64),
				ManufacturerID:  pad("Acme", 32),
			},
		},
	)
}

func pad(s string, n int) string {
	for len(s) < n {
		s += " "
	}
	return s
}
