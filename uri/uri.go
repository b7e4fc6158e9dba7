package uri

import (
	"fmt"
	"maps"
	"slices"
)

// Version is the value of the library-version attribute
type Version struct {
	Major uint
	Minor uint
}

// String returns major.minor
func (v Version) String() string {
	return fmt.Sprintf("%d.%d", v.Major, v.Minor)
}

type optional[T any] struct {
	value T
	set   bool
}

func some[T any](v T) optional[T] {
	return optional[T]{value: v, set: true}
}

func (o optional[T]) get() (T, bool) {
	return o.value, o.set
}

// URI is a parsed PKCS#11 URI.
// It is read-only, use NewBuilderFromURI to derive a modified copy.
type URI struct {
	// library group, CK_INFO
	libraryManufacturer optional[string]
	libraryDescription  optional[string]
	libraryVersion      optional[Version]

	// slot group, CK_SLOT_INFO
	slotManufacturer optional[string]
	slotDescription  optional[string]
	slotID           optional[uint]

	// token group, CK_TOKEN_INFO
	token        optional[string]
	manufacturer optional[string]
	serial       optional[string]
	model        optional[string]

	// object group
	object     optional[string]
	objectType optional[ObjectType]
	id         optional[[]byte]

	pinSource  optional[string]
	pinValue   optional[string]
	moduleName optional[string]
	modulePath optional[string]

	vendorPath  map[string]string
	vendorQuery map[string][]string
}

// Token returns the token label
func (u *URI) Token() (string, bool) { return u.token.get() }

// Manufacturer returns the token manufacturer ID
func (u *URI) Manufacturer() (string, bool) { return u.manufacturer.get() }

// Serial returns the token serial number
func (u *URI) Serial() (string, bool) { return u.serial.get() }

// Model returns the token model
func (u *URI) Model() (string, bool) { return u.model.get() }

// LibraryManufacturer returns the library manufacturer ID
func (u *URI) LibraryManufacturer() (string, bool) { return u.libraryManufacturer.get() }

// LibraryDescription returns the library description
func (u *URI) LibraryDescription() (string, bool) { return u.libraryDescription.get() }

// LibraryVersion returns the library version
func (u *URI) LibraryVersion() (Version, bool) { return u.libraryVersion.get() }

// SlotManufacturer returns the slot manufacturer ID
func (u *URI) SlotManufacturer() (string, bool) { return u.slotManufacturer.get() }

// SlotDescription returns the slot description
func (u *URI) SlotDescription() (string, bool) { return u.slotDescription.get() }

// SlotID returns the slot ID
func (u *URI) SlotID() (uint, bool) { return u.slotID.get() }

// Object returns the object label
func (u *URI) Object() (string, bool) { return u.object.get() }

// Type returns the object class
func (u *URI) Type() (ObjectType, bool) { return u.objectType.get() }

// ID returns a copy of the object ID
func (u *URI) ID() ([]byte, bool) {
	id, ok := u.id.get()
	return slices.Clone(id), ok
}

// PinSource returns the location of the PIN
func (u *URI) PinSource() (string, bool) { return u.pinSource.get() }

// PinValue returns the PIN
func (u *URI) PinValue() (string, bool) { return u.pinValue.get() }

// ModuleName returns the name of the PKCS#11 module library
func (u *URI) ModuleName() (string, bool) { return u.moduleName.get() }

// ModulePath returns the path of the PKCS#11 module library,
// or the directory to search module-name in
func (u *URI) ModulePath() (string, bool) { return u.modulePath.get() }

// VendorPathAttributes returns a copy of the unrecognized path attributes
func (u *URI) VendorPathAttributes() map[string]string {
	return maps.Clone(u.vendorPath)
}

// VendorQueryAttributes returns a copy of the unrecognized query attributes
func (u *URI) VendorQueryAttributes() map[string][]string {
	if u.vendorQuery == nil {
		return nil
	}
	res := make(map[string][]string, len(u.vendorQuery))
	for k, v := range u.vendorQuery {
		res[k] = slices.Clone(v)
	}
	return res
}

// HasVendorPathAttributes returns true if the URI has path attributes
// this package does not know how to match
func (u *URI) HasVendorPathAttributes() bool {
	return len(u.vendorPath) > 0
}

// DefinesLibrary returns true if any library attribute is present
func (u *URI) DefinesLibrary() bool {
	return u.libraryManufacturer.set || u.libraryDescription.set || u.libraryVersion.set
}

// DefinesSlot returns true if any slot attribute is present
func (u *URI) DefinesSlot() bool {
	return u.slotManufacturer.set || u.slotDescription.set || u.slotID.set
}

// DefinesToken returns true if any token attribute is present
func (u *URI) DefinesToken() bool {
	return u.token.set || u.manufacturer.set || u.serial.set || u.model.set
}

// DefinesObject returns true if any object attribute is present
func (u *URI) DefinesObject() bool {
	return u.object.set || u.objectType.set || u.id.set
}

// String returns the canonical form of the URI
func (u *URI) String() string {
	s, err := u.format()
	if err != nil {
		// parsed values always encode
		return Scheme
	}
	return s
}

// Redacted returns the canonical form of the URI without pin-value,
// suitable for logs and error messages
func (u *URI) Redacted() string {
	b, err := NewBuilderFromURI(u, WithLengthCheck(false))
	if err != nil {
		return Scheme
	}
	b.Remove(AttrPinValue)
	s, err := b.Build()
	if err != nil {
		return Scheme
	}
	return s
}

func (u *URI) format() (string, error) {
	b, err := NewBuilderFromURI(u, WithLengthCheck(false))
	if err != nil {
		return "", err
	}
	return b.Build()
}
