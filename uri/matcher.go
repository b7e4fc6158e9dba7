package uri

import (
	"bytes"
	"strings"

	"github.com/miekg/pkcs11"
)

// ObjectInfo holds the object attributes a URI can constrain.
// A nil field means the object does not expose the attribute.
type ObjectInfo struct {
	Class *ObjectType
	Label *string
	ID    []byte
}

// MatchesLibrary returns true if the library described by info satisfies
// the library attributes of u
func MatchesLibrary(u *URI, info pkcs11.Info) bool {
	if u.HasVendorPathAttributes() {
		return false
	}
	if !matchString(u.libraryManufacturer, info.ManufacturerID) ||
		!matchString(u.libraryDescription, info.LibraryDescription) {
		return false
	}
	if v, ok := u.libraryVersion.get(); ok {
		if v.Major != uint(info.LibraryVersion.Major) || v.Minor != uint(info.LibraryVersion.Minor) {
			return false
		}
	}
	return true
}

// MatchesSlot returns true if the slot satisfies the slot attributes of u
func MatchesSlot(u *URI, slotID uint, info pkcs11.SlotInfo) bool {
	if u.HasVendorPathAttributes() {
		return false
	}
	if !matchString(u.slotManufacturer, info.ManufacturerID) ||
		!matchString(u.slotDescription, info.SlotDescription) {
		return false
	}
	if id, ok := u.slotID.get(); ok && id != slotID {
		return false
	}
	return true
}

// MatchesToken returns true if the token satisfies the token attributes of u
func MatchesToken(u *URI, info pkcs11.TokenInfo) bool {
	if u.HasVendorPathAttributes() {
		return false
	}
	return matchString(u.token, info.Label) &&
		matchString(u.manufacturer, info.ManufacturerID) &&
		matchString(u.serial, info.SerialNumber) &&
		matchString(u.model, info.Model)
}

// MatchesObject returns true if the object satisfies the object attributes of u
func MatchesObject(u *URI, obj ObjectInfo) bool {
	if u.HasVendorPathAttributes() {
		return false
	}
	if t, ok := u.objectType.get(); ok {
		if obj.Class == nil || *obj.Class != t {
			return false
		}
	}
	if label, ok := u.object.get(); ok {
		if obj.Label == nil || *obj.Label != label {
			return false
		}
	}
	if id, ok := u.id.get(); ok {
		if obj.ID == nil || !bytes.Equal(obj.ID, id) {
			return false
		}
	}
	return true
}

// matchString compares with the blank padding of the fixed-width
// CK_INFO, CK_SLOT_INFO and CK_TOKEN_INFO fields removed
func matchString(want optional[string], actual string) bool {
	v, ok := want.get()
	if !ok {
		return true
	}
	return v == strings.TrimRight(actual, " \x00")
}
