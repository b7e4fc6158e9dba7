package uri

import "strings"

const upperhex = "0123456789ABCDEF"

// decode percent-decodes raw in a single pass.
// Literal bytes must belong to allowed, a '%' must be followed by two hex digits.
// attr names the attribute in errors, empty for the URI itself.
func decode(raw, attr string, allowed *charset, allowPercent bool) ([]byte, error) {
	out := make([]byte, 0, len(raw))
	for i := 0; i < len(raw); i++ {
		c := raw[i]
		switch {
		case c == '%' && allowPercent:
			if i+2 >= len(raw) {
				return nil, newError("invalid percent-encoding in %s", subject(attr))
			}
			hi, ok1 := unhex(raw[i+1])
			lo, ok2 := unhex(raw[i+2])
			if !ok1 || !ok2 {
				return nil, newError("invalid percent-encoding in %s", subject(attr))
			}
			out = append(out, hi<<4|lo)
			i += 2
		case allowed.has(c):
			out = append(out, c)
		default:
			return nil, newError("invalid character %q in %s", c, subject(attr))
		}
	}
	return out, nil
}

// encode emits bytes of allowed as is, and all others as %XX when
// usePercent is set
func encode(value []byte, attr string, allowed *charset, usePercent bool) (string, error) {
	var sb strings.Builder
	sb.Grow(len(value))
	for _, c := range value {
		switch {
		case allowed.has(c):
			sb.WriteByte(c)
		case usePercent:
			writePercent(&sb, c)
		default:
			return "", newError("invalid character %q in %s", c, subject(attr))
		}
	}
	return sb.String(), nil
}

// encodeAll emits every byte as %XX
func encodeAll(value []byte) string {
	var sb strings.Builder
	sb.Grow(len(value) * 3)
	for _, c := range value {
		writePercent(&sb, c)
	}
	return sb.String()
}

func writePercent(sb *strings.Builder, c byte) {
	sb.WriteByte('%')
	sb.WriteByte(upperhex[c>>4])
	sb.WriteByte(upperhex[c&0x0F])
}

func unhex(c byte) (byte, bool) {
	switch {
	case '0' <= c && c <= '9':
		return c - '0', true
	case 'a' <= c && c <= 'f':
		return c - 'a' + 10, true
	case 'A' <= c && c <= 'F':
		return c - 'A' + 10, true
	}
	return 0, false
}

func subject(attr string) string {
	if attr == "" {
		return "URI"
	}
	return "attribute \"" + attr + "\""
}
