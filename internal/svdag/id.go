package svdag

import (
	"encoding/hex"
	"fmt"

	"github.com/minio/sha256-simd"
)

// idSize contains the size of an ID, in bytes.
const idSize = sha256.Size

// ID identifies an encoded graph by the SHA-256 of its binary form.
type ID [idSize]byte

// ParseID converts the given string to an ID.
func ParseID(s string) (ID, error) {
	if len(s) != hex.EncodedLen(idSize) {
		return ID{}, fmt.Errorf("invalid length for ID: %q", s)
	}

	b, err := hex.DecodeString(s)
	if err != nil {
		return ID{}, fmt.Errorf("invalid ID: %s", err)
	}

	id := ID{}
	copy(id[:], b)

	return id, nil
}

const shortStr = 4

// Str returns the shortened string version of id.
func (id *ID) Str() string {
	if id == nil {
		return "[nil]"
	}

	if id.IsNull() {
		return "[null]"
	}

	return hex.EncodeToString(id[:shortStr])
}

func (id ID) String() string {
	return hex.EncodeToString(id[:])
}

// IsNull returns true iff id only consists of null bytes.
func (id ID) IsNull() bool {
	var nullID ID

	return id == nullID
}

// Hash returns the ID for data.
func Hash(data []byte) ID {
	return sha256.Sum256(data)
}

// ID returns the content ID of the encoded graph.
func (g *Svdag) ID() ID {
	buf, _ := g.MarshalBinary()
	return Hash(buf)
}
