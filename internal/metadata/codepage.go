package metadata

import (
	"fmt"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
)

// Codepage names the 8-bit encoding used by a legacy "header" section.
// ASCII is the format's historical default.
type Codepage string

const (
	CodepageASCII        Codepage = "ascii"
	CodepageWindows874    Codepage = "windows-874"
	CodepageWindows1250   Codepage = "windows-1250"
	CodepageWindows1251   Codepage = "windows-1251"
	CodepageWindows1252   Codepage = "windows-1252"
	CodepageWindows1253   Codepage = "windows-1253"
	CodepageWindows1254   Codepage = "windows-1254"
	CodepageWindows1255   Codepage = "windows-1255"
	CodepageWindows1256   Codepage = "windows-1256"
	CodepageWindows1257   Codepage = "windows-1257"
	CodepageWindows1258   Codepage = "windows-1258"
)

// encodingFor resolves a Codepage to its golang.org/x/text encoding, or
// nil for ASCII (handled specially: it's a strict 7-bit subset check,
// not a charmap round-trip).
func encodingFor(cp Codepage) (encoding.Encoding, error) {
	switch cp {
	case CodepageASCII, "":
		return nil, nil
	case CodepageWindows874:
		return charmap.Windows874, nil
	case CodepageWindows1250:
		return charmap.Windows1250, nil
	case CodepageWindows1251:
		return charmap.Windows1251, nil
	case CodepageWindows1252:
		return charmap.Windows1252, nil
	case CodepageWindows1253:
		return charmap.Windows1253, nil
	case CodepageWindows1254:
		return charmap.Windows1254, nil
	case CodepageWindows1255:
		return charmap.Windows1255, nil
	case CodepageWindows1256:
		return charmap.Windows1256, nil
	case CodepageWindows1257:
		return charmap.Windows1257, nil
	case CodepageWindows1258:
		return charmap.Windows1258, nil
	default:
		return nil, fmt.Errorf("metadata: unsupported codepage %q", cp)
	}
}

// encodeCodepage renders a UTF-8 string into an 8-bit codepage byte
// string.
func encodeCodepage(s string, cp Codepage) ([]byte, error) {
	enc, err := encodingFor(cp)
	if err != nil {
		return nil, err
	}
	if enc == nil {
		for i := 0; i < len(s); i++ {
			if s[i] > 0x7f {
				return nil, fmt.Errorf("metadata: byte 0x%02x not representable in ASCII", s[i])
			}
		}
		return []byte(s), nil
	}
	return enc.NewEncoder().Bytes([]byte(s))
}

// decodeCodepage renders an 8-bit codepage byte string into UTF-8.
func decodeCodepage(b []byte, cp Codepage) (string, error) {
	enc, err := encodingFor(cp)
	if err != nil {
		return "", err
	}
	if enc == nil {
		return string(b), nil
	}
	out, err := enc.NewDecoder().Bytes(b)
	if err != nil {
		return "", fmt.Errorf("metadata: decoding codepage %q: %w", cp, err)
	}
	return string(out), nil
}
