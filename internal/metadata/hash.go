package metadata

import (
	"bytes"
	"compress/zlib"
	"encoding/hex"
	"fmt"
	"io"
	"strings"
)

// HashValues is the digest-name -> hex-digest mapping carried by a
// "hash"/"xhash" section: md5, sha1, and any
// forward-compatible digest names xhash may carry.
type HashValues struct {
	order  []string
	values map[string]string
}

// NewHashValues returns an empty hash-value table.
func NewHashValues() *HashValues {
	return &HashValues{values: make(map[string]string)}
}

// Set records name=hexDigest (name is lowercase, e.g. "md5", "sha1").
func (h *HashValues) Set(name, hexDigest string) {
	name = strings.ToLower(name)
	if _, exists := h.values[name]; !exists {
		h.order = append(h.order, name)
	}
	h.values[name] = hexDigest
}

// Get returns the hex digest for name.
func (h *HashValues) Get(name string) (string, bool) {
	v, ok := h.values[strings.ToLower(name)]
	return v, ok
}

// Count returns the number of digests recorded.
func (h *HashValues) Count() int { return len(h.order) }

// Clone deep-copies the table.
func (h *HashValues) Clone() *HashValues {
	out := NewHashValues()
	for _, name := range h.order {
		out.Set(name, h.values[name])
	}
	return out
}

// legacyHashPayloadSize fixes the binary layout of the classic "hash"
// section: a raw 16-byte MD5 digest followed by 4 reserved zero bytes;
// no checksum is written.
const legacyHashPayloadSize = 20

// EncodeLegacyHash renders the fixed-size "hash" section payload (MD5
// only; sha1 and anything else lives in xhash).
func EncodeLegacyHash(h *HashValues) ([]byte, error) {
	md5Hex, ok := h.Get("md5")
	if !ok {
		return nil, fmt.Errorf("metadata: no md5 digest set for legacy hash section")
	}
	raw, err := hex.DecodeString(md5Hex)
	if err != nil {
		return nil, fmt.Errorf("metadata: invalid md5 hex digest: %w", err)
	}
	if len(raw) != 16 {
		return nil, fmt.Errorf("metadata: md5 digest must be 16 bytes, got %d", len(raw))
	}

	buf := make([]byte, legacyHashPayloadSize)
	copy(buf, raw)
	return buf, nil
}

// DecodeLegacyHash parses the fixed-size "hash" section payload.
func DecodeLegacyHash(payload []byte) (*HashValues, error) {
	if len(payload) < 16 {
		return nil, fmt.Errorf("metadata: hash section too short (%d bytes)", len(payload))
	}
	h := NewHashValues()
	h.Set("md5", hex.EncodeToString(payload[:16]))
	return h, nil
}

// EncodeXHash renders the variable-length, zlib-compressed UTF-8
// "xhash" table (same tab-delimited table shape as xheader).
func EncodeXHash(h *HashValues) ([]byte, error) {
	var flags, values []string
	for _, name := range h.order {
		flags = append(flags, name)
		values = append(values, h.values[name])
	}
	lines := []string{"1", "main", strings.Join(flags, "\t"), strings.Join(values, "\t"), "", ""}
	table := strings.Join(lines, "\n")

	var buf bytes.Buffer
	w := zlib.NewWriter(&buf)
	if _, err := w.Write([]byte(table)); err != nil {
		w.Close()
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecodeXHash inflates and parses an "xhash" section payload.
func DecodeXHash(payload []byte) (*HashValues, error) {
	r, err := zlib.NewReader(bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("metadata: inflating xhash section: %w", err)
	}
	defer r.Close()
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("metadata: inflating xhash section: %w", err)
	}

	lines := strings.Split(string(raw), "\n")
	if len(lines) < 4 {
		return nil, fmt.Errorf("metadata: xhash table has too few lines (%d)", len(lines))
	}
	names := strings.Split(lines[2], "\t")
	values := strings.Split(lines[3], "\t")
	if len(names) != len(values) {
		return nil, fmt.Errorf("metadata: xhash name/value column count mismatch (%d vs %d)", len(names), len(values))
	}

	h := NewHashValues()
	for i, name := range names {
		if name == "" {
			continue
		}
		h.Set(name, values[i])
	}
	return h, nil
}
