package uri

import (
	"strconv"
	"strings"
	"unicode"
)

// Option configures the parser and the builder
type Option func(*options)

type options struct {
	checkLengths bool
}

// WithLengthCheck enables or disables the byte-length ceilings of the
// token, slot and library attributes, and the 255 limit of the
// library-version components. Checking is enabled by default.
func WithLengthCheck(enabled bool) Option {
	return func(o *options) {
		o.checkLengths = enabled
	}
}

func newOptions(opts []Option) options {
	o := options{checkLengths: true}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Parse decodes a PKCS#11 URI with length checking enabled
func Parse(s string) (*URI, error) {
	return ParseWithOptions(s)
}

// ParseWithOptions decodes a PKCS#11 URI.
//
// The URI may be surrounded by whitespace, or embedded in text when
// enclosed in angle brackets or double quotes, in which case embedded
// whitespace is ignored. Every attribute is decoded and validated, a failure on any of
// them fails the whole parse.
func ParseWithOptions(s string, opts ...Option) (*URI, error) {
	text, err := extract(s)
	if err != nil {
		return nil, err
	}
	if !strings.HasPrefix(text, Scheme) {
		return nil, newError("URI must start with %q", Scheme)
	}

	path, query, hasQuery := strings.Cut(text[len(Scheme):], queryMarker)
	if hasQuery && query == "" {
		return nil, newError("query marker is present but query component is empty")
	}

	p := &parser{
		opts: newOptions(opts),
		u:    &URI{},
	}
	if path != "" {
		for _, seg := range strings.Split(path, pathSeparator) {
			if err = p.pathAttribute(seg); err != nil {
				return nil, err
			}
		}
	}
	if hasQuery {
		for _, seg := range strings.Split(query, querySeparator) {
			if err = p.queryAttribute(seg); err != nil {
				return nil, err
			}
		}
	}
	return p.u, nil
}

// delimiters that may enclose a URI embedded in text
var delimiters = []struct {
	open, close byte
}{
	{'<', '>'},
	{'"', '"'},
}

// extract returns the URI text without surrounding whitespace.
// A URI embedded in text must be enclosed in angle brackets or double quotes;
// the first delimited URI is taken, with its embedded whitespace removed.
func extract(s string) (string, error) {
	text := strings.TrimSpace(s)
	if text == "" {
		return "", newError("URI is empty")
	}
	if strings.HasPrefix(text, Scheme) {
		return text, nil
	}

	start := -1
	var closing byte
	for _, d := range delimiters {
		idx := strings.Index(text, string(d.open)+Scheme)
		if idx >= 0 && (start < 0 || idx < start) {
			start = idx
			closing = d.close
		}
	}
	if start < 0 {
		return text, nil
	}

	body := text[start+1:]
	end := strings.IndexByte(body, closing)
	if end < 0 {
		return "", newError("URI is missing closing delimiter %q", closing)
	}
	inner := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, body[:end])
	return inner, nil
}

func splitAttribute(seg, component string) (name, value string, err error) {
	if seg == "" {
		return "", "", newError("empty %s attribute", component)
	}
	name, value, ok := strings.Cut(seg, valueSeparator)
	if !ok {
		return "", "", newError("%s attribute %q has no value", component, seg)
	}
	if name == "" {
		return "", "", newError("empty %s attribute name", component)
	}
	return name, value, nil
}

func validateVendorName(name string) error {
	_, err := decode(name, name, vendorNameChars, false)
	return err
}

type parser struct {
	opts options
	u    *URI
}

func (p *parser) pathAttribute(seg string) error {
	name, value, err := splitAttribute(seg, "path")
	if err != nil {
		return err
	}

	u := p.u
	switch name {
	case AttrToken:
		return p.setString(&u.token, name, value, pathChars)
	case AttrManufacturer:
		return p.setString(&u.manufacturer, name, value, pathChars)
	case AttrSerial:
		return p.setString(&u.serial, name, value, pathChars)
	case AttrModel:
		return p.setString(&u.model, name, value, pathChars)
	case AttrLibraryManufacturer:
		return p.setString(&u.libraryManufacturer, name, value, pathChars)
	case AttrLibraryDescription:
		return p.setString(&u.libraryDescription, name, value, pathChars)
	case AttrSlotManufacturer:
		return p.setString(&u.slotManufacturer, name, value, pathChars)
	case AttrSlotDescription:
		return p.setString(&u.slotDescription, name, value, pathChars)
	case AttrObject:
		return p.setString(&u.object, name, value, pathChars)

	case AttrLibraryVersion:
		if u.libraryVersion.set {
			return duplicateError(name)
		}
		s, err := decode(value, name, pathChars, true)
		if err != nil {
			return err
		}
		v, err := parseVersion(string(s), p.opts.checkLengths)
		if err != nil {
			return err
		}
		u.libraryVersion = some(v)

	case AttrSlotID:
		if u.slotID.set {
			return duplicateError(name)
		}
		s, err := decode(value, name, pathChars, true)
		if err != nil {
			return err
		}
		id, err := parseDecimal(string(s), name, 0)
		if err != nil {
			return err
		}
		u.slotID = some(uint(id))

	case AttrType:
		if u.objectType.set {
			return duplicateError(name)
		}
		s, err := decode(value, name, pathChars, true)
		if err != nil {
			return err
		}
		t, err := ParseObjectType(string(s))
		if err != nil {
			return err
		}
		u.objectType = some(t)

	case AttrID:
		if u.id.set {
			return duplicateError(name)
		}
		id, err := decode(value, name, pathChars, true)
		if err != nil {
			return err
		}
		u.id = some(id)

	default:
		if err = validateVendorName(name); err != nil {
			return err
		}
		if _, ok := u.vendorPath[name]; ok {
			return duplicateError(name)
		}
		s, err := decode(value, name, pathChars, true)
		if err != nil {
			return err
		}
		if u.vendorPath == nil {
			u.vendorPath = make(map[string]string)
		}
		u.vendorPath[name] = string(s)
	}
	return nil
}

func (p *parser) queryAttribute(seg string) error {
	name, value, err := splitAttribute(seg, "query")
	if err != nil {
		return err
	}

	u := p.u
	switch name {
	case AttrPinSource:
		return p.setString(&u.pinSource, name, value, queryChars)
	case AttrPinValue:
		return p.setString(&u.pinValue, name, value, queryChars)
	case AttrModuleName:
		return p.setString(&u.moduleName, name, value, queryChars)
	case AttrModulePath:
		return p.setString(&u.modulePath, name, value, queryChars)
	default:
		if err = validateVendorName(name); err != nil {
			return err
		}
		s, err := decode(value, name, queryChars, true)
		if err != nil {
			return err
		}
		if u.vendorQuery == nil {
			u.vendorQuery = make(map[string][]string)
		}
		u.vendorQuery[name] = append(u.vendorQuery[name], string(s))
	}
	return nil
}

func (p *parser) setString(dst *optional[string], name, value string, allowed *charset) error {
	if dst.set {
		return duplicateError(name)
	}
	s, err := decode(value, name, allowed, true)
	if err != nil {
		return err
	}
	if err = checkLength(name, len(s), p.opts.checkLengths); err != nil {
		return err
	}
	*dst = some(string(s))
	return nil
}

func checkLength(name string, n int, enabled bool) error {
	if !enabled {
		return nil
	}
	if limit, ok := maxLengths[name]; ok && n > limit {
		return newError("value of %q attribute exceeds %d bytes", name, limit)
	}
	return nil
}

// parseVersion parses major[.minor]
func parseVersion(s string, checkLengths bool) (Version, error) {
	bitSize := 0
	if checkLengths {
		bitSize = 8
	}

	majorStr, minorStr, hasMinor := strings.Cut(s, ".")
	major, err := parseDecimal(majorStr, AttrLibraryVersion, bitSize)
	if err != nil {
		return Version{}, err
	}
	var minor uint64
	if hasMinor {
		minor, err = parseDecimal(minorStr, AttrLibraryVersion, bitSize)
		if err != nil {
			return Version{}, err
		}
	}
	return Version{Major: uint(major), Minor: uint(minor)}, nil
}

func parseDecimal(s, name string, bitSize int) (uint64, error) {
	if s == "" {
		return 0, newError("value of %q attribute must be a decimal number", name)
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return 0, newError("value of %q attribute must be a decimal number", name)
		}
	}
	n, err := strconv.ParseUint(s, 10, bitSize)
	if err != nil {
		return 0, newError("value %q of %q attribute is out of range", s, name)
	}
	return n, nil
}
