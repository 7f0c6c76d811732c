// Package metadata implements the header-value and hash-value tables,
// acquisition/checksum error lists, sessions, tracks and set-identifier.
package metadata

import (
	"bytes"
	"compress/zlib"
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/encoding/unicode"
)

// HeaderValues is the unique identifier -> UTF-8 value mapping.
// Insertion order is preserved so IdentifierAt(index)
// enumerates values in the order they were first set.
type HeaderValues struct {
	order  []string
	values map[string]string
}

// NewHeaderValues returns an empty header-value table.
func NewHeaderValues() *HeaderValues {
	return &HeaderValues{values: make(map[string]string)}
}

// Set records identifier=value, appending identifier to the insertion
// order only the first time it's seen.
func (h *HeaderValues) Set(identifier, value string) {
	if _, exists := h.values[identifier]; !exists {
		h.order = append(h.order, identifier)
	}
	h.values[identifier] = value
}

// Get returns the value for identifier and whether it was present.
func (h *HeaderValues) Get(identifier string) (string, bool) {
	v, ok := h.values[identifier]
	return v, ok
}

// Count returns the number of distinct identifiers set.
func (h *HeaderValues) Count() int { return len(h.order) }

// IdentifierAt returns the index'th identifier in insertion order.
func (h *HeaderValues) IdentifierAt(index int) (string, error) {
	if index < 0 || index >= len(h.order) {
		return "", fmt.Errorf("metadata: header value index %d out of range", index)
	}
	return h.order[index], nil
}

// Clone deep-copies the table.
func (h *HeaderValues) Clone() *HeaderValues {
	out := NewHeaderValues()
	for _, id := range h.order {
		out.Set(id, h.values[id])
	}
	return out
}

// shortTagToIdentifier / identifierToShortTag translate between the
// on-disk single/double-letter tab-table column tags and the
// library's long identifier names.
var shortTagToIdentifier = map[string]string{
	"c":   "case_number",
	"n":   "evidence_number",
	"a":   "description",
	"e":   "examiner_name",
	"t":   "notes",
	"av":  "acquiry_software_version",
	"ov":  "acquiry_operating_system",
	"m":   "acquiry_date",
	"u":   "system_date",
	"p":   "password",
	"r":   "compression_type",
	"md":  "model",
	"sn":  "serial_number",
	"pid": "process_identifier",
	"dc":  "unknown_dc",
	"ext": "extents",
}

var identifierToShortTag = func() map[string]string {
	m := make(map[string]string, len(shortTagToIdentifier))
	for tag, id := range shortTagToIdentifier {
		m[id] = tag
	}
	return m
}()

// headerColumnOrder fixes the column order used when rendering the
// tab-delimited table, matching the classic libewf EnCase4-7 layout.
var headerColumnOrder = []string{"c", "n", "a", "e", "t", "av", "ov", "m", "u", "p", "md", "sn", "pid", "dc", "ext", "r"}

// Variant names the section this table is rendered for/parsed from
// (header is 8-bit codepage, header2 is UTF-16LE, xheader
// is UTF-8 -- all three carry the same tab-delimited table shape).
type Variant int

const (
	VariantHeader Variant = iota
	VariantHeader2
	VariantXHeader
)

// buildTable renders the 1/main/flags/values table body as plain text,
// prior to codepage/UTF-16 transcoding and zlib compression.
func buildTable(h *HeaderValues) string {
	var flags, values []string
	for _, tag := range headerColumnOrder {
		id := shortTagToIdentifier[tag]
		v, ok := h.values[id]
		if !ok {
			continue
		}
		flags = append(flags, tag)
		values = append(values, v)
	}
	lines := []string{"1", "main", strings.Join(flags, "\t"), strings.Join(values, "\t"), "", ""}
	return strings.Join(lines, "\n")
}

// parseTable parses a rendered table body back into a HeaderValues,
// ignoring any column tag it doesn't recognize rather than failing the
// whole parse: cosmetic/non-essential metadata parse failures are
// demoted to warnings by the caller, never fail the open.
func parseTable(body string) (*HeaderValues, error) {
	lines := strings.Split(body, "\n")
	if len(lines) < 4 {
		return nil, fmt.Errorf("metadata: header table has too few lines (%d)", len(lines))
	}
	flags := strings.Split(lines[2], "\t")
	values := strings.Split(lines[3], "\t")
	if len(flags) != len(values) {
		return nil, fmt.Errorf("metadata: header table flag/value column count mismatch (%d vs %d)", len(flags), len(values))
	}

	hv := NewHeaderValues()
	for i, tag := range flags {
		id, ok := shortTagToIdentifier[tag]
		if !ok {
			continue
		}
		hv.Set(id, values[i])
	}
	return hv, nil
}

// EncodeSection renders h into the on-disk, zlib-compressed payload for
// the given variant and (for VariantHeader) codepage.
func EncodeSection(h *HeaderValues, variant Variant, cp Codepage) ([]byte, error) {
	table := buildTable(h)

	var raw []byte
	var err error
	switch variant {
	case VariantXHeader:
		raw = []byte(table)
	case VariantHeader2:
		enc := unicode.UTF16(unicode.LittleEndian, unicode.UseBOM)
		raw, err = enc.NewEncoder().Bytes([]byte(table))
	case VariantHeader:
		raw, err = encodeCodepage(table, cp)
	default:
		return nil, fmt.Errorf("metadata: unknown header variant %d", variant)
	}
	if err != nil {
		return nil, fmt.Errorf("metadata: encoding header table: %w", err)
	}

	var buf bytes.Buffer
	w := zlib.NewWriter(&buf)
	if _, err := w.Write(raw); err != nil {
		w.Close()
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecodeSection inflates and parses a header/header2/xheader section
// payload, sniffing header2's byte-order mark to pick the transcoding.
func DecodeSection(payload []byte, variant Variant, cp Codepage) (*HeaderValues, error) {
	r, err := zlib.NewReader(bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("metadata: inflating header section: %w", err)
	}
	defer r.Close()
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("metadata: inflating header section: %w", err)
	}

	var table string
	switch variant {
	case VariantXHeader:
		table = string(raw)
	case VariantHeader2:
		enc := unicode.UTF16(unicode.LittleEndian, unicode.ExpectBOM)
		if len(raw) >= 2 && raw[0] == 0xfe && raw[1] == 0xff {
			enc = unicode.UTF16(unicode.BigEndian, unicode.ExpectBOM)
		}
		decoded, err := enc.NewDecoder().Bytes(raw)
		if err != nil {
			return nil, fmt.Errorf("metadata: decoding header2 UTF-16: %w", err)
		}
		table = string(decoded)
	case VariantHeader:
		table, err = decodeCodepage(raw, cp)
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("metadata: unknown header variant %d", variant)
	}

	return parseTable(table)
}
