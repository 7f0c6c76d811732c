package metadata

import (
	"fmt"

	"github.com/google/uuid"
)

// SetIdentifier is the 16-byte GUID recorded in the volume section's
// set_identifier field, tying a segment set together. It's
// a version-4 (random) UUID, matching libewf's own generation choice.
type SetIdentifier [16]byte

// NewSetIdentifier generates a fresh random set identifier.
func NewSetIdentifier() SetIdentifier {
	var id SetIdentifier
	copy(id[:], uuid.New()[:])
	return id
}

// ParseSetIdentifier decodes a 16-byte on-disk identifier field.
func ParseSetIdentifier(b []byte) (SetIdentifier, error) {
	var id SetIdentifier
	if len(b) != 16 {
		return id, fmt.Errorf("metadata: set identifier must be 16 bytes, got %d", len(b))
	}
	copy(id[:], b)
	return id, nil
}

// String renders the identifier in canonical UUID form.
func (id SetIdentifier) String() string {
	return uuid.UUID(id).String()
}

// IsZero reports whether the identifier was never set (all-zero field,
// meaning "no set identifier recorded" for older acquisitions).
func (id SetIdentifier) IsZero() bool {
	return id == SetIdentifier{}
}
