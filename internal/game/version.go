package game

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// Version computes the content hash of a snapshot: the SHA-256 hex digest of
// its canonical JSON serialization. Identical content always hashes to the
// same version; any content change produces a different one. Struct fields
// marshal in declaration order and map keys marshal sorted, so the
// serialization is canonical.
func Version(s *Snapshot) string {
	data, err := json.Marshal(s)
	if err != nil {
		// A snapshot is a closed value type with no unmarshalable fields.
		panic(fmt.Sprintf("snapshot not serializable: %v", err))
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
