package uri

import (
	"maps"
	"slices"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/jinzhu/copier"
)

// Builder assembles a PKCS#11 URI.
//
// Setters validate and encode the value immediately and return an error
// for invalid input. The vendor attribute maps can be modified directly,
// they are validated by Build.
type Builder struct {
	checkLengths bool
	encoded      map[string]string

	// VendorPathAttributes are path attributes not defined by RFC 7512,
	// serialized after the object group in name order
	VendorPathAttributes map[string]string
	// VendorQueryAttributes are query attributes not defined by RFC 7512,
	// serialized after module-path in name order
	VendorQueryAttributes map[string][]string
}

// NewBuilder returns an empty builder, length checking is enabled by default
func NewBuilder(opts ...Option) *Builder {
	o := newOptions(opts)
	return &Builder{
		checkLengths:          o.checkLengths,
		encoded:               make(map[string]string),
		VendorPathAttributes:  make(map[string]string),
		VendorQueryAttributes: make(map[string][]string),
	}
}

// NewBuilderFromURI returns a builder seeded with the attributes of u
func NewBuilderFromURI(u *URI, opts ...Option) (*Builder, error) {
	b := NewBuilder(opts...)

	strs := []struct {
		val optional[string]
		set func(string) error
	}{
		{u.libraryManufacturer, b.SetLibraryManufacturer},
		{u.libraryDescription, b.SetLibraryDescription},
		{u.slotManufacturer, b.SetSlotManufacturer},
		{u.slotDescription, b.SetSlotDescription},
		{u.token, b.SetToken},
		{u.manufacturer, b.SetManufacturer},
		{u.serial, b.SetSerial},
		{u.model, b.SetModel},
		{u.object, b.SetObject},
		{u.pinSource, b.SetPinSource},
		{u.pinValue, b.SetPinValue},
		{u.moduleName, b.SetModuleName},
		{u.modulePath, b.SetModulePath},
	}
	for _, s := range strs {
		if v, ok := s.val.get(); ok {
			if err := s.set(v); err != nil {
				return nil, err
			}
		}
	}

	if v, ok := u.libraryVersion.get(); ok {
		if err := b.SetLibraryVersion(v.Major, v.Minor); err != nil {
			return nil, err
		}
	}
	if v, ok := u.slotID.get(); ok {
		b.SetSlotID(v)
	}
	if v, ok := u.objectType.get(); ok {
		if err := b.SetType(v); err != nil {
			return nil, err
		}
	}
	if v, ok := u.id.get(); ok {
		b.SetID(v)
	}

	if len(u.vendorPath) > 0 {
		if err := copier.CopyWithOption(&b.VendorPathAttributes, u.vendorPath, copier.Option{DeepCopy: true}); err != nil {
			return nil, errors.WithMessage(err, "copy vendor path attributes")
		}
	}
	if len(u.vendorQuery) > 0 {
		if err := copier.CopyWithOption(&b.VendorQueryAttributes, u.vendorQuery, copier.Option{DeepCopy: true}); err != nil {
			return nil, errors.WithMessage(err, "copy vendor query attributes")
		}
	}
	return b, nil
}

// SetToken sets the token label
func (b *Builder) SetToken(v string) error {
	return b.setString(AttrToken, v, pathChars)
}

// SetManufacturer sets the token manufacturer ID
func (b *Builder) SetManufacturer(v string) error {
	return b.setString(AttrManufacturer, v, pathChars)
}

// SetSerial sets the token serial number
func (b *Builder) SetSerial(v string) error {
	return b.setString(AttrSerial, v, pathChars)
}

// SetModel sets the token model
func (b *Builder) SetModel(v string) error {
	return b.setString(AttrModel, v, pathChars)
}

// SetLibraryManufacturer sets the library manufacturer ID
func (b *Builder) SetLibraryManufacturer(v string) error {
	return b.setString(AttrLibraryManufacturer, v, pathChars)
}

// SetLibraryDescription sets the library description
func (b *Builder) SetLibraryDescription(v string) error {
	return b.setString(AttrLibraryDescription, v, pathChars)
}

// SetLibraryVersion sets the library version
func (b *Builder) SetLibraryVersion(major, minor uint) error {
	if b.checkLengths && (major > maxVersionComponent || minor > maxVersionComponent) {
		return newError("value %d.%d of %q attribute is out of range", major, minor, AttrLibraryVersion)
	}
	b.encoded[AttrLibraryVersion] = Version{Major: major, Minor: minor}.String()
	return nil
}

// SetSlotManufacturer sets the slot manufacturer ID
func (b *Builder) SetSlotManufacturer(v string) error {
	return b.setString(AttrSlotManufacturer, v, pathChars)
}

// SetSlotDescription sets the slot description
func (b *Builder) SetSlotDescription(v string) error {
	return b.setString(AttrSlotDescription, v, pathChars)
}

// SetSlotID sets the slot ID
func (b *Builder) SetSlotID(id uint) {
	b.encoded[AttrSlotID] = strconv.FormatUint(uint64(id), 10)
}

// SetObject sets the object label
func (b *Builder) SetObject(v string) error {
	return b.setString(AttrObject, v, pathChars)
}

// SetType sets the object class
func (b *Builder) SetType(t ObjectType) error {
	name, ok := objectTypeNames[t]
	if !ok {
		return newError("unsupported object class 0x%X of %q attribute", uint(t), AttrType)
	}
	b.encoded[AttrType] = name
	return nil
}

// SetID sets the object ID.
// The ID is always percent-encoded, even when its bytes are printable.
func (b *Builder) SetID(id []byte) {
	b.encoded[AttrID] = encodeAll(id)
}

// SetPinSource sets the location of the PIN
func (b *Builder) SetPinSource(v string) error {
	return b.setString(AttrPinSource, v, queryChars)
}

// SetPinValue sets the PIN
func (b *Builder) SetPinValue(v string) error {
	return b.setString(AttrPinValue, v, queryChars)
}

// SetModuleName sets the name of the module library
func (b *Builder) SetModuleName(v string) error {
	return b.setString(AttrModuleName, v, queryChars)
}

// SetModulePath sets the path of the module library
func (b *Builder) SetModulePath(v string) error {
	return b.setString(AttrModulePath, v, queryChars)
}

// Remove clears a path or query attribute, or a vendor attribute with the name
func (b *Builder) Remove(name string) {
	delete(b.encoded, name)
	delete(b.VendorPathAttributes, name)
	delete(b.VendorQueryAttributes, name)
}

func (b *Builder) setString(name, v string, allowed *charset) error {
	if err := checkLength(name, len(v), b.checkLengths); err != nil {
		return err
	}
	enc, err := encode([]byte(v), name, allowed, true)
	if err != nil {
		return err
	}
	b.encoded[name] = enc
	return nil
}

// Build validates the vendor attributes and returns the URI string
func (b *Builder) Build() (string, error) {
	var sb strings.Builder
	sb.WriteString(Scheme)

	sep := ""
	write := func(name, value string) {
		sb.WriteString(sep)
		sb.WriteString(name)
		sb.WriteString(valueSeparator)
		sb.WriteString(value)
	}

	for _, name := range pathOrder {
		if v, ok := b.encoded[name]; ok {
			write(name, v)
			sep = pathSeparator
		}
	}
	for _, name := range slices.Sorted(maps.Keys(b.VendorPathAttributes)) {
		if err := checkVendorName(name, pathNames); err != nil {
			return "", err
		}
		v, err := encode([]byte(b.VendorPathAttributes[name]), name, pathChars, true)
		if err != nil {
			return "", err
		}
		write(name, v)
		sep = pathSeparator
	}

	sep = queryMarker
	for _, name := range queryOrder {
		if v, ok := b.encoded[name]; ok {
			write(name, v)
			sep = querySeparator
		}
	}
	for _, name := range slices.Sorted(maps.Keys(b.VendorQueryAttributes)) {
		if err := checkVendorName(name, queryNames); err != nil {
			return "", err
		}
		values := b.VendorQueryAttributes[name]
		if len(values) == 0 {
			return "", newError("vendor query attribute %q has no values", name)
		}
		for _, val := range values {
			v, err := encode([]byte(val), name, queryChars, true)
			if err != nil {
				return "", err
			}
			write(name, v)
			sep = querySeparator
		}
	}

	return sb.String(), nil
}

// URI builds and parses the URI
func (b *Builder) URI() (*URI, error) {
	s, err := b.Build()
	if err != nil {
		return nil, err
	}
	return ParseWithOptions(s, WithLengthCheck(b.checkLengths))
}

func checkVendorName(name string, reserved map[string]bool) error {
	if name == "" {
		return newError("empty vendor attribute name")
	}
	if reserved[name] {
		return newError("vendor attribute %q conflicts with a defined attribute", name)
	}
	return validateVendorName(name)
}
