package controller

import (
	"strings"

	"github.com/cockroachdb/errors"
)

// NormalizeMAC converts a MAC address to the lower-case, colon-separated
// form the controller expects. It accepts colon, dash, Cisco dotted and bare
// hexadecimal notations.
//
//	NormalizeMAC("AA-BB-CC-DD-EE-FF") // "aa:bb:cc:dd:ee:ff"
//	NormalizeMAC("aabb.ccdd.eeff")    // "aa:bb:cc:dd:ee:ff"
func NormalizeMAC(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	hex := make([]byte, 0, 12)

	for i := range len(raw) {
		ch := raw[i]

		switch {
		case ch >= '0' && ch <= '9', ch >= 'a' && ch <= 'f':
			hex = append(hex, ch)
		case ch >= 'A' && ch <= 'F':
			hex = append(hex, ch+('a'-'A'))
		case ch == ':' || ch == '-' || ch == '.':
		default:
			return "", errors.Newf("invalid MAC address %q", raw)
		}
	}

	if len(hex) != 12 || !separatorsConsistent(raw) {
		return "", errors.Newf("invalid MAC address %q", raw)
	}

	var b strings.Builder
	b.Grow(17)

	for i := 0; i < 12; i += 2 {
		if i > 0 {
			b.WriteByte(':')
		}
		b.Write(hex[i : i+2])
	}

	return b.String(), nil
}

// separatorsConsistent accepts only the layouts NormalizeMAC documents.
func separatorsConsistent(raw string) bool {
	switch len(raw) {
	case 12:
		return true
	case 14:
		return raw[4] == '.' && raw[9] == '.'
	case 17:
		sep := raw[2]
		if sep != ':' && sep != '-' {
			return false
		}
		for i := 2; i < 17; i += 3 {
			if raw[i] != sep {
				return false
			}
		}
		return true
	default:
		return false
	}
}
