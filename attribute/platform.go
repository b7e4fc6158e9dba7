package attribute

import (
	"encoding/binary"
	"runtime"
	"strconv"

	"github.com/cockroachdb/errors"
)

// Platform describes how the native module lays out CK_ULONG values.
// It is constructed once and passed to the code that marshals attributes.
type Platform struct {
	// ULongSize is the size of CK_ULONG in bytes, 4 or 8
	ULongSize int
	// ByteOrder of CK_ULONG values
	ByteOrder binary.ByteOrder
}

// NewPlatform returns a validated Platform
func NewPlatform(ulongSize int, order binary.ByteOrder) (Platform, error) {
	if ulongSize != 4 && ulongSize != 8 {
		return Platform{}, errors.Errorf("unsupported CK_ULONG size: %d", ulongSize)
	}
	if order == nil {
		return Platform{}, errors.New("byte order must be specified")
	}
	return Platform{ULongSize: ulongSize, ByteOrder: order}, nil
}

// NativePlatform returns the layout of the current process.
// CK_ULONG is a C unsigned long: 4 bytes on Windows and on 32-bit systems.
func NativePlatform() Platform {
	size := strconv.IntSize / 8
	if runtime.GOOS == "windows" {
		size = 4
	}
	return Platform{ULongSize: size, ByteOrder: binary.NativeEndian}
}

// ULong decodes a CK_ULONG value
func (p Platform) ULong(b []byte) (uint64, error) {
	if len(b) != p.ULongSize {
		return 0, errors.Errorf("invalid CK_ULONG length: expected %d, got %d", p.ULongSize, len(b))
	}
	if p.ULongSize == 4 {
		return uint64(p.ByteOrder.Uint32(b)), nil
	}
	return p.ByteOrder.Uint64(b), nil
}

// PutULong encodes a CK_ULONG value
func (p Platform) PutULong(v uint64) ([]byte, error) {
	b := make([]byte, p.ULongSize)
	switch p.ULongSize {
	case 4:
		if v > 0xFFFFFFFF {
			return nil, errors.Errorf("value 0x%X does not fit in CK_ULONG of 4 bytes", v)
		}
		p.ByteOrder.PutUint32(b, uint32(v))
	case 8:
		p.ByteOrder.PutUint64(b, v)
	default:
		return nil, errors.Errorf("unsupported CK_ULONG size: %d", p.ULongSize)
	}
	return b, nil
}
