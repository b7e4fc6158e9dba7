package crypto11

import (
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/pkcs11uri/uri"
	"github.com/effective-security/x/configloader"
)

// ResolvePin returns the PIN specified by the URI.
// pin-value takes precedence over pin-source.
// pin-source may be a file path, a file: URI, or an env:// or file:// location.
// The boolean result is false when the URI specifies no PIN.
func ResolvePin(u *uri.URI) (string, bool, error) {
	if pin, ok := u.PinValue(); ok {
		return pin, true, nil
	}
	source, ok := u.PinSource()
	if !ok {
		return "", false, nil
	}

	location := source
	switch {
	case strings.HasPrefix(source, configloader.EnvSource), strings.HasPrefix(source, configloader.FileSource):
	case strings.HasPrefix(source, "file:"):
		location = configloader.FileSource + strings.TrimPrefix(source, "file:")
	case strings.Contains(source, "://"):
		return "", false, errors.Errorf("unsupported pin-source: %q", source)
	default:
		location = configloader.FileSource + source
	}

	pin, err := configloader.ResolveValue(location)
	if err != nil {
		return "", false, errors.WithMessagef(err, "unable to load PIN from %q", source)
	}
	return strings.TrimRight(pin, "\r\n"), true, nil
}
