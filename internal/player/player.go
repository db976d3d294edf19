// Package player defines the validated identity type shared by every
// statistic kind: a Minecraft player UUID, stored and compared as a fixed
// 36-character ASCII string rather than a bare Go string.
package player

import (
	"fmt"

	"github.com/pborman/uuid"
)

// idLength is the length of a dashed UUID string such as
// "550e8400-e29b-41d4-a716-446655440000".
const idLength = 36

// ID is a validated player UUID. The zero value is not a valid ID; always
// construct one through ParseID.
type ID struct {
	raw string
}

// ParseID validates that s is a 36-character ASCII UUID and returns the
// corresponding ID. It rejects anything else, including UUIDs written
// without dashes, in braces or with a urn:uuid: prefix, since the upstream
// service and the database column both assume the 36-character dashed form.
// Upper-case hex digits pass validation and are kept as written.
func ParseID(s string) (ID, error) {
	if !isASCII(s) {
		return ID{}, fmt.Errorf("player id %q: not ASCII", s)
	}
	if len(s) != idLength {
		return ID{}, fmt.Errorf("player id %q: want length %d, got %d", s, idLength, len(s))
	}
	if uuid.Parse(s) == nil {
		return ID{}, fmt.Errorf("player id %q: not a valid UUID", s)
	}
	return ID{raw: s}, nil
}

// MustParseID is ParseID for callers that have already validated the input
// (table scans reading back values this package itself wrote) and want a
// panic instead of a plumbed error on corruption.
func MustParseID(s string) ID {
	id, err := ParseID(s)
	if err != nil {
		panic(err)
	}
	return id
}

// String returns the canonical 36-character representation.
func (id ID) String() string {
	return id.raw
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] > 0x7f {
			return false
		}
	}
	return true
}
