package manifest

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/verdikta/external-adapter/internal/faults"
	"github.com/verdikta/external-adapter/internal/workdir"
)

// fakeGateway is an in-memory ipfs.Gateway for resolver tests.
type fakeGateway struct {
	objects map[string][]byte
	fetches []string
}

func (g *fakeGateway) Fetch(_ context.Context, cid string) ([]byte, error) {
	g.fetches = append(g.fetches, cid)
	data, ok := g.objects[cid]
	if !ok {
		return nil, faults.New(faults.CIDNotFound, "cid %s not found", cid)
	}
	return data, nil
}

func (g *fakeGateway) Pin(_ context.Context, _ string, data []byte) (string, error) {
	sum := sha256.Sum256(data)
	return "bafy" + hex.EncodeToString(sum[:8]), nil
}

func makeTarGz(t *testing.T, files map[string][]byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	for name, data := range files {
		require.NoError(t, tw.WriteHeader(&tar.Header{
			Name: name,
			Mode: 0o644,
			Size: int64(len(data)),
		}))
		_, err := tw.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, tw.Close())
	require.NoError(t, gz.Close())
	return buf.Bytes()
}

func makeZip(t *testing.T, files map[string][]byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, data := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func mustJSON(t *testing.T, v interface{}) []byte {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return data
}

func newTestDir(t *testing.T) *workdir.Dir {
	t.Helper()
	m, err := workdir.NewManager(t.TempDir(), zap.NewNop())
	require.NoError(t, err)
	d, err := m.Acquire()
	require.NoError(t, err)
	t.Cleanup(d.Release)
	return d
}

// simpleArchive builds a tar.gz with a manifest and a query file.
func simpleArchive(t *testing.T, m *Manifest, query *PrimaryQuery, extra map[string][]byte) []byte {
	t.Helper()
	files := map[string][]byte{
		ManifestFileName: mustJSON(t, m),
	}
	if query != nil && m.Primary.Filename != "" {
		files[m.Primary.Filename] = mustJSON(t, query)
	}
	for name, data := range extra {
		files[name] = data
	}
	return makeTarGz(t, files)
}
