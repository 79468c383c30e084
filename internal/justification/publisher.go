// Package justification builds and publishes the human-readable verdict
// archive. Archive bytes are deterministic (fixed metadata, sorted entries)
// so identical justifications pin to identical CIDs.
package justification

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/verdikta/external-adapter/internal/faults"
	"github.com/verdikta/external-adapter/internal/ipfs"
)

const archiveName = "justification.tar.gz"

// Document is the material published for one verdict.
type Document struct {
	CIDs          []string
	Outcomes      []string
	Scores        []uint64
	Justification string
	// References are optional named files included alongside the text.
	References []NamedFile
}

// NamedFile is an extra archive entry.
type NamedFile struct {
	Name string
	Data []byte
}

// Publisher uploads justification archives through the pinning service.
type Publisher struct {
	gateway ipfs.Gateway
	logger  *zap.Logger
}

// NewPublisher creates a publisher backed by the given gateway.
func NewPublisher(gateway ipfs.Gateway, logger *zap.Logger) *Publisher {
	return &Publisher{gateway: gateway, logger: logger}
}

// Publish builds the verdict archive and pins it, returning the CID.
func (p *Publisher) Publish(ctx context.Context, doc *Document) (string, error) {
	archive, err := buildArchive(verdictManifest{
		Version:  "1.0",
		CIDs:     doc.CIDs,
		Outcomes: doc.Outcomes,
		Scores:   doc.Scores,
	}, doc.Justification, doc.References)
	if err != nil {
		return "", faults.Wrap(err, faults.PublishFailed, "build justification archive: %v", err)
	}

	cid, err := p.gateway.Pin(ctx, archiveName, archive)
	if err != nil {
		return "", err
	}
	p.logger.Debug("justification published", zap.String("cid", cid))
	return cid, nil
}

// PublishError uploads a minimal archive describing a failure so the on-chain
// consumer can audit it. Callers treat this as best-effort.
func (p *Publisher) PublishError(ctx context.Context, kind faults.Kind, message string, cids []string) (string, error) {
	archive, err := buildArchive(verdictManifest{
		Version: "1.0",
		CIDs:    cids,
		Error:   &errorRecord{Kind: string(kind), Message: message},
	}, fmt.Sprintf("Evaluation failed.\n\nKind: %s\nMessage: %s\n", kind, message), nil)
	if err != nil {
		return "", err
	}
	return p.gateway.Pin(ctx, archiveName, archive)
}

// verdictManifest is the manifest.json of a justification archive. Struct
// field order fixes the JSON layout, keeping the bytes stable.
type verdictManifest struct {
	Version  string        `json:"version"`
	CIDs     []string      `json:"cids,omitempty"`
	Outcomes []string      `json:"outcomes,omitempty"`
	Scores   []uint64      `json:"scores,omitempty"`
	Error    *errorRecord  `json:"error,omitempty"`
}

type errorRecord struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// buildArchive produces a deterministic tar.gz: fixed mtimes and modes, and
// reference entries sorted by name.
func buildArchive(m verdictManifest, justification string, refs []NamedFile) ([]byte, error) {
	manifestJSON, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return nil, err
	}

	entries := []NamedFile{
		{Name: "manifest.json", Data: manifestJSON},
		{Name: "justification.txt", Data: []byte(justification)},
	}
	sorted := append([]NamedFile(nil), refs...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })
	entries = append(entries, sorted...)

	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)

	for _, e := range entries {
		hdr := &tar.Header{
			Name:    e.Name,
			Mode:    0o644,
			Size:    int64(len(e.Data)),
			ModTime: time.Unix(0, 0),
			Format:  tar.FormatPAX,
		}
		if err := tw.WriteHeader(hdr); err != nil {
			return nil, err
		}
		if _, err := tw.Write(e.Data); err != nil {
			return nil, err
		}
	}

	if err := tw.Close(); err != nil {
		return nil, err
	}
	if err := gz.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
