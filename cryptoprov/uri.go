package cryptoprov

import (
	"maps"
	"slices"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/pkcs11uri/uri"
)

// TokenURI returns the PKCS#11 URI of the configured token.
// The PIN is never copied into the URI; Attributes become vendor query attributes.
func TokenURI(tc TokenConfig) (*uri.URI, error) {
	b := uri.NewBuilder()

	set := func(v string, setter func(string) error) error {
		if v == "" {
			return nil
		}
		return setter(v)
	}
	if err := set(tc.Path(), b.SetModulePath); err != nil {
		return nil, err
	}
	if err := set(tc.TokenLabel(), b.SetToken); err != nil {
		return nil, err
	}
	if err := set(tc.TokenSerial(), b.SetSerial); err != nil {
		return nil, err
	}
	if err := set(tc.Manufacturer(), b.SetManufacturer); err != nil {
		return nil, err
	}
	if err := set(tc.Model(), b.SetModel); err != nil {
		return nil, err
	}

	attrs, err := parseAttributes(tc.Attributes())
	if err != nil {
		return nil, err
	}
	for k, v := range attrs {
		b.VendorQueryAttributes[k] = append(b.VendorQueryAttributes[k], v...)
	}

	return b.URI()
}

// ConfigFromURI returns a token configuration from the token and module attributes of the URI.
// pin-value is used as the PIN, otherwise pin-source is kept as a file or env location.
func ConfigFromURI(u *uri.URI) TokenConfig {
	tc := &tokenConfig{}
	tc.Dir, _ = u.ModulePath()
	tc.Label, _ = u.Token()
	tc.Serial, _ = u.Serial()
	tc.Man, _ = u.Manufacturer()
	tc.Mod, _ = u.Model()

	if pin, ok := u.PinValue(); ok {
		tc.Pwd = pin
	} else if source, ok := u.PinSource(); ok {
		if strings.HasPrefix(source, "file:") || strings.Contains(source, "://") {
			tc.Pwd = source
		} else {
			tc.Pwd = "file:" + source
		}
	}

	query := u.VendorQueryAttributes()
	var pairs []string
	for _, k := range slices.Sorted(maps.Keys(query)) {
		for _, v := range query[k] {
			pairs = append(pairs, k+"="+v)
		}
	}
	tc.Attrs = strings.Join(pairs, ",")

	return tc
}

// parseAttributes parses comma separated key=value pairs
func parseAttributes(s string) (map[string][]string, error) {
	res := map[string][]string{}
	for pair := range strings.SplitSeq(s, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		k, v, ok := strings.Cut(pair, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, errors.Errorf("invalid attribute: %q", pair)
		}
		res[k] = append(res[k], strings.TrimSpace(v))
	}
	return res, nil
}
