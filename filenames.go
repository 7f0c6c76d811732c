package ewf

import "fmt"

// SegmentExtension computes the filename extension for segment number n
// (1-based) under the given format's filename templates:
//
//	EWF v1:     .e01 … .e99, .eaa … .ezz, .faa … .zzz
//	EWF v2:     .ex01 … .ex99, .exaa …
//	Logical v1: .l01 …
//	Logical v2: .lx01 …
//	Delta v1:   .d01 …
//	Delta v2:   .dx01 …
func SegmentExtension(n int, format Format, delta bool) (string, error) {
	if n < 1 || n > 14776336 {
		return "", newErr(ErrValueOutOfBounds, "segment number out of range")
	}

	v2 := format.IsV2()
	logical := format.IsLogical()

	var letter byte
	switch {
	case delta && v2:
		return rollingExtension("dx", n)
	case delta:
		letter = 'd'
	case logical && v2:
		return rollingExtension("lx", n)
	case logical:
		letter = 'l'
	case v2:
		return rollingExtension("ex", n)
	default:
		letter = 'e'
	}

	return rollingExtensionV1(letter, n)
}

// rollingExtensionV1 implements the classic EWF extension roll:
// .e01-.e99, then .eaa-.ezz, then .faa-.zzz (case-sensitive, matches
// libewf's documented scheme).
func rollingExtensionV1(letter byte, n int) (string, error) {
	if n <= 99 {
		return fmt.Sprintf(".%c%02d", letter, n), nil
	}
	n -= 100
	// 26*26 possible two-letter suffixes per leading letter, leading
	// letter itself rolls from the base letter through 'z'.
	const lettersPerBand = 26 * 26
	band := n / lettersPerBand
	rem := n % lettersPerBand
	if band > int('z'-letter) {
		return "", newErr(ErrValueExceedsMaximum, "segment number exceeds addressable range")
	}
	lead := letter + byte(band)
	first := byte('a' + rem/26)
	second := byte('a' + rem%26)
	return fmt.Sprintf(".%c%c%c", lead, first, second), nil
}

// rollingExtension implements the "ex"/"lx"/"dx" two-character-prefix
// roll used by the v2 dialect: .ex01-.ex99, then .exaa-.exzz, ...
func rollingExtension(prefix string, n int) (string, error) {
	if n <= 99 {
		return fmt.Sprintf(".%s%02d", prefix, n), nil
	}
	n -= 100
	const lettersPerBand = 26 * 26
	if n >= lettersPerBand*26 {
		return "", newErr(ErrValueExceedsMaximum, "segment number exceeds addressable range")
	}
	band := n / lettersPerBand
	rem := n % lettersPerBand
	first := byte('a' + rem/26)
	second := byte('a' + rem%26)
	if band == 0 {
		return fmt.Sprintf(".%s%c%c", prefix, first, second), nil
	}
	return fmt.Sprintf(".%s%c%c%c", prefix, byte('a'+band-1), first, second), nil
}

// SegmentFilename joins base and the computed extension for segment n.
func SegmentFilename(base string, n int, format Format, delta bool) (string, error) {
	ext, err := SegmentExtension(n, format, delta)
	if err != nil {
		return "", err
	}
	return base + ext, nil
}
