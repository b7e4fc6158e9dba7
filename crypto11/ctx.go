package crypto11

import (
	"github.com/miekg/pkcs11"
)

// Ctx is the subset of the PKCS#11 function list used by this package.
// *pkcs11.Ctx implements it.
type Ctx interface {
	Initialize(opts ...pkcs11.InitializeOption) error
	Finalize() error
	Destroy()
	GetInfo() (pkcs11.Info, error)
	GetSlotList(tokenPresent bool) ([]uint, error)
	GetSlotInfo(slotID uint) (pkcs11.SlotInfo, error)
	GetTokenInfo(slotID uint) (pkcs11.TokenInfo, error)
	OpenSession(slotID uint, flags uint) (pkcs11.SessionHandle, error)
	CloseSession(sh pkcs11.SessionHandle) error
	Login(sh pkcs11.SessionHandle, userType uint, pin string) error
	Logout(sh pkcs11.SessionHandle) error
	FindObjectsInit(sh pkcs11.SessionHandle, temp []*pkcs11.Attribute) error
	FindObjects(sh pkcs11.SessionHandle, max int) ([]pkcs11.ObjectHandle, bool, error)
	FindObjectsFinal(sh pkcs11.SessionHandle) error
	GetAttributeValue(sh pkcs11.SessionHandle, o pkcs11.ObjectHandle, a []*pkcs11.Attribute) ([]*pkcs11.Attribute, error)
}

var _ Ctx = (*pkcs11.Ctx)(nil)

// NewCtx opens the library at path, and returns nil if it can not be loaded.
// Tests replace it to run against an in-memory module.
var NewCtx = func(path string) Ctx {
	c := pkcs11.New(path)
	if c == nil {
		return nil
	}
	return c
}
