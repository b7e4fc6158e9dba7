package cli

import (
	"encoding/hex"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/pkcs11uri/uri"
)

// URICmd is the parent for URI commands
type URICmd struct {
	Parse URIParseCmd `cmd:"" help:"parse PKCS#11 URI and print its attributes"`
	Build URIBuildCmd `cmd:"" help:"build PKCS#11 URI from attributes"`
}

// URIParseCmd parses URI
type URIParseCmd struct {
	URI           string `kong:"arg" required:"" help:"PKCS#11 URI, or - to read it from stdin"`
	NoLengthCheck bool   `help:"do not enforce the size of fixed-width attributes"`
}

// URIInfo is the parsed form of a URI
type URIInfo struct {
	URI string `json:"uri"`

	LibraryManufacturer *string `json:"library-manufacturer,omitempty"`
	LibraryDescription  *string `json:"library-description,omitempty"`
	LibraryVersion      string  `json:"library-version,omitempty"`
	SlotManufacturer    *string `json:"slot-manufacturer,omitempty"`
	SlotDescription     *string `json:"slot-description,omitempty"`
	SlotID              *uint   `json:"slot-id,omitempty"`
	Token               *string `json:"token,omitempty"`
	Manufacturer        *string `json:"manufacturer,omitempty"`
	Serial              *string `json:"serial,omitempty"`
	Model               *string `json:"model,omitempty"`
	Object              *string `json:"object,omitempty"`
	Type                string  `json:"type,omitempty"`
	// ID is hex encoded
	ID *string `json:"id,omitempty"`

	PinSource  *string `json:"pin-source,omitempty"`
	PinValue   *string `json:"pin-value,omitempty"`
	ModuleName *string `json:"module-name,omitempty"`
	ModulePath *string `json:"module-path,omitempty"`

	VendorPath  map[string]string   `json:"vendor_path,omitempty"`
	VendorQuery map[string][]string `json:"vendor_query,omitempty"`
}

func optional[T any](v T, ok bool) *T {
	if !ok {
		return nil
	}
	return &v
}

// NewURIInfo returns the attributes of the URI
func NewURIInfo(u *uri.URI) *URIInfo {
	info := &URIInfo{
		URI:                 u.String(),
		LibraryManufacturer: optional(u.LibraryManufacturer()),
		LibraryDescription:  optional(u.LibraryDescription()),
		SlotManufacturer:    optional(u.SlotManufacturer()),
		SlotDescription:     optional(u.SlotDescription()),
		SlotID:              optional(u.SlotID()),
		Token:               optional(u.Token()),
		Manufacturer:        optional(u.Manufacturer()),
		Serial:              optional(u.Serial()),
		Model:               optional(u.Model()),
		Object:              optional(u.Object()),
		PinSource:           optional(u.PinSource()),
		PinValue:            optional(u.PinValue()),
		ModuleName:          optional(u.ModuleName()),
		ModulePath:          optional(u.ModulePath()),
	}
	if v, ok := u.LibraryVersion(); ok {
		info.LibraryVersion = v.String()
	}
	if t, ok := u.Type(); ok {
		info.Type = t.String()
	}
	if id, ok := u.ID(); ok {
		s := hex.EncodeToString(id)
		info.ID = &s
	}
	if u.HasVendorPathAttributes() {
		info.VendorPath = u.VendorPathAttributes()
	}
	if q := u.VendorQueryAttributes(); len(q) > 0 {
		info.VendorQuery = q
	}
	return info
}

// Run the command
func (a *URIParseCmd) Run(ctx *Cli) error {
	text := a.URI
	if text == "-" {
		raw, err := io.ReadAll(ctx.Reader())
		if err != nil {
			return errors.WithMessage(err, "failed to read URI")
		}
		text = string(raw)
	}
	u, err := uri.ParseWithOptions(text, uri.WithLengthCheck(!a.NoLengthCheck))
	if err != nil {
		return err
	}
	ctx.WriteJSON(NewURIInfo(u))
	return nil
}

// URIBuildCmd builds URI.
// Attribute flags are pointers, an attribute given with an empty value
// is present in the URI.
type URIBuildCmd struct {
	LibraryManufacturer *string  `help:"library manufacturer"`
	LibraryDescription  *string  `help:"library description"`
	LibraryVersion      *string  `help:"library version: major[.minor]"`
	SlotManufacturer    *string  `help:"slot manufacturer"`
	SlotDescription     *string  `help:"slot description"`
	SlotID              *string  `help:"slot ID"`
	Token               *string  `help:"token label"`
	Manufacturer        *string  `help:"token manufacturer"`
	Serial              *string  `help:"token serial number"`
	Model               *string  `help:"token model"`
	Object              *string  `help:"object label"`
	Type                *string  `help:"object type: public|private|cert|secret-key|data"`
	ID                  *string  `help:"hex encoded object ID"`
	PinSource           *string  `help:"PIN source"`
	PinValue            *string  `help:"PIN value"`
	ModuleName          *string  `help:"module name"`
	ModulePath          *string  `help:"module path"`
	Attr                []string `help:"vendor path attribute: name=value"`
	Query               []string `help:"vendor query attribute: name=value, may be repeated"`
	NoLengthCheck       bool     `help:"do not enforce the size of fixed-width attributes"`
}

// Run the command
func (a *URIBuildCmd) Run(ctx *Cli) error {
	b := uri.NewBuilder(uri.WithLengthCheck(!a.NoLengthCheck))

	setters := []struct {
		val *string
		set func(string) error
	}{
		{a.LibraryManufacturer, b.SetLibraryManufacturer},
		{a.LibraryDescription, b.SetLibraryDescription},
		{a.SlotManufacturer, b.SetSlotManufacturer},
		{a.SlotDescription, b.SetSlotDescription},
		{a.Token, b.SetToken},
		{a.Manufacturer, b.SetManufacturer},
		{a.Serial, b.SetSerial},
		{a.Model, b.SetModel},
		{a.Object, b.SetObject},
		{a.PinSource, b.SetPinSource},
		{a.PinValue, b.SetPinValue},
		{a.ModuleName, b.SetModuleName},
		{a.ModulePath, b.SetModulePath},
	}
	for _, s := range setters {
		if s.val == nil {
			continue
		}
		if err := s.set(*s.val); err != nil {
			return err
		}
	}

	if a.LibraryVersion != nil {
		major, minor, err := parseVersion(*a.LibraryVersion)
		if err != nil {
			return err
		}
		if err = b.SetLibraryVersion(major, minor); err != nil {
			return err
		}
	}
	if a.SlotID != nil {
		id, err := strconv.ParseUint(*a.SlotID, 10, strconv.IntSize)
		if err != nil {
			return errors.Errorf("invalid slot ID: %q", *a.SlotID)
		}
		b.SetSlotID(uint(id))
	}
	if a.Type != nil {
		t, err := uri.ParseObjectType(*a.Type)
		if err != nil {
			return err
		}
		if err = b.SetType(t); err != nil {
			return err
		}
	}
	if a.ID != nil {
		id, err := hex.DecodeString(*a.ID)
		if err != nil {
			return errors.Errorf("invalid object ID: %q", *a.ID)
		}
		b.SetID(id)
	}
	for _, attr := range a.Attr {
		k, v, ok := strings.Cut(attr, "=")
		if !ok {
			return errors.Errorf("invalid vendor attribute: %q", attr)
		}
		b.VendorPathAttributes[k] = v
	}
	for _, attr := range a.Query {
		k, v, ok := strings.Cut(attr, "=")
		if !ok {
			return errors.Errorf("invalid vendor attribute: %q", attr)
		}
		b.VendorQueryAttributes[k] = append(b.VendorQueryAttributes[k], v)
	}

	s, err := b.Build()
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintln(ctx.Writer(), s)
	return nil
}

func parseVersion(s string) (uint, uint, error) {
	majorStr, minorStr, hasMinor := strings.Cut(s, ".")
	major, err := strconv.ParseUint(majorStr, 10, 32)
	if err != nil {
		return 0, 0, errors.Errorf("invalid library version: %q", s)
	}
	var minor uint64
	if hasMinor {
		minor, err = strconv.ParseUint(minorStr, 10, 32)
		if err != nil {
			return 0, 0, errors.Errorf("invalid library version: %q", s)
		}
	}
	return uint(major), uint(minor), nil
}
