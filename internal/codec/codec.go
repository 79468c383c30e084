// Package codec emits the CBOR bytes the oracle transmits on-chain. Encoding
// is deterministic: equal inputs always produce byte-identical output.
package codec

import (
	"github.com/fxamacker/cbor/v2"
)

var encMode = func() cbor.EncMode {
	em, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
	return em
}()

// result is the mode-0 (and mode-2) wire layout: a two-element array of the
// justification CID and the score vector. Arrays avoid map-key ordering
// entirely.
type result struct {
	_                struct{} `cbor:",toarray"`
	JustificationCID string
	Scores           []uint64
}

// commitment is the mode-1 wire layout: the truncated commit hash and the
// justification CID.
type commitment struct {
	_                struct{} `cbor:",toarray"`
	CommitHash       []byte
	JustificationCID string
}

// EncodeResult encodes a full verdict (modes 0 and 2).
func EncodeResult(justificationCID string, scores []uint64) ([]byte, error) {
	if scores == nil {
		scores = []uint64{}
	}
	return encMode.Marshal(result{JustificationCID: justificationCID, Scores: scores})
}

// EncodeCommitment encodes a mode-1 commit.
func EncodeCommitment(commitHash [16]byte, justificationCID string) ([]byte, error) {
	return encMode.Marshal(commitment{CommitHash: commitHash[:], JustificationCID: justificationCID})
}

// DecodeResult is the inverse of EncodeResult; used by tests and diagnostics.
func DecodeResult(data []byte) (justificationCID string, scores []uint64, err error) {
	var r result
	if err := cbor.Unmarshal(data, &r); err != nil {
		return "", nil, err
	}
	return r.JustificationCID, r.Scores, nil
}

// DecodeCommitment is the inverse of EncodeCommitment.
func DecodeCommitment(data []byte) (commitHash [16]byte, justificationCID string, err error) {
	var c commitment
	if err := cbor.Unmarshal(data, &c); err != nil {
		return [16]byte{}, "", err
	}
	copy(commitHash[:], c.CommitHash)
	return commitHash, c.JustificationCID, nil
}
