// Package commit implements the commit-reveal half of the oracle protocol:
// deterministic request fingerprints, truncated commit hashes, and the
// TTL-bounded cache that guarantees reveals are bit-identical to commits.
package commit

import (
	"encoding/binary"
	"sort"
	"strconv"

	"golang.org/x/crypto/sha3"
)

// Fingerprint derives the 32-byte commit key from the request identity.
// Fields are length-delimited so adjacent values cannot collide, and bCIDs
// are sorted so the fingerprint is invariant under request order.
func Fingerprint(requestID, primaryCID string, bCIDs []string, classID int) [32]byte {
	sorted := append([]string(nil), bCIDs...)
	sort.Strings(sorted)

	h := sha3.NewLegacyKeccak256()
	writeField(h, requestID)
	writeField(h, primaryCID)
	for _, cid := range sorted {
		writeField(h, cid)
	}
	writeField(h, strconv.Itoa(classID))

	var fp [32]byte
	h.Sum(fp[:0])
	return fp
}

// CommitHash is the truncated 16-byte digest published on-chain in mode 1;
// the aggregator compares it against the hash of the revealed bytes.
func CommitHash(result []byte) [16]byte {
	h := sha3.NewLegacyKeccak256()
	h.Write(result)
	sum := h.Sum(nil)

	var out [16]byte
	copy(out[:], sum[:16])
	return out
}

func writeField(h interface{ Write(p []byte) (int, error) }, s string) {
	var lenBuf [8]byte
	binary.BigEndian.PutUint64(lenBuf[:], uint64(len(s)))
	h.Write(lenBuf[:])
	h.Write([]byte(s))
}
