package uri

import "github.com/cockroachdb/errors"

// ErrInvalid marks every error produced by the parser and the builder
var ErrInvalid = errors.New("invalid pkcs11 uri")

// IsInvalid returns true if err was produced by the parser or the builder
func IsInvalid(err error) bool {
	return errors.Is(err, ErrInvalid)
}

func newError(format string, args ...any) error {
	return errors.Mark(errors.Newf(format, args...), ErrInvalid)
}

func duplicateError(name string) error {
	return newError("duplicate attribute %q", name)
}
