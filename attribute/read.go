package attribute

import (
	"github.com/cockroachdb/errors"
	"github.com/miekg/pkcs11"
)

// ReadStatus is the outcome of a single attribute read
type ReadStatus int

// Read outcomes
const (
	// ReadOK means the value was returned
	ReadOK ReadStatus = iota
	// ReadSensitive means the object does not reveal the value
	ReadSensitive
	// ReadTypeInvalid means the object does not have the attribute
	ReadTypeInvalid
)

// String returns the name of the status
func (s ReadStatus) String() string {
	switch s {
	case ReadOK:
		return "ok"
	case ReadSensitive:
		return "sensitive"
	case ReadTypeInvalid:
		return "type-invalid"
	}
	return "unknown"
}

// ReadResult is the result of reading a single attribute.
// Raw is set only when Status is ReadOK.
type ReadResult struct {
	Type   uint
	Status ReadStatus
	Raw    []byte
}

// OK returns true if the value was read
func (r ReadResult) OK() bool {
	return r.Status == ReadOK
}

// ClassifyReadError converts the expected refusals of C_GetAttributeValue
// into a ReadResult. Any other error is returned unchanged.
func ClassifyReadError(typ uint, err error) (ReadResult, error) {
	var perr pkcs11.Error
	if errors.As(err, &perr) {
		switch uint(perr) {
		case pkcs11.CKR_ATTRIBUTE_SENSITIVE:
			return ReadResult{Type: typ, Status: ReadSensitive}, nil
		case pkcs11.CKR_ATTRIBUTE_TYPE_INVALID:
			return ReadResult{Type: typ, Status: ReadTypeInvalid}, nil
		}
	}
	return ReadResult{Type: typ}, err
}
