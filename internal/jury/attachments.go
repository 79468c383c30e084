package jury

import (
	"encoding/base64"
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/verdikta/external-adapter/internal/manifest"
)

// BuildRequest shapes a resolved evaluation into the jury payload, reading
// every additional file from the working directory.
func BuildRequest(res *manifest.Resolved) (*Request, error) {
	attachments, err := buildAttachments(res.Additional)
	if err != nil {
		return nil, err
	}
	return &Request{
		Prompt:      res.Prompt,
		Models:      res.Models,
		Outcomes:    res.Outcomes,
		Iterations:  res.Iterations,
		Attachments: attachments,
	}, nil
}

func buildAttachments(files []manifest.ResolvedFile) ([]Attachment, error) {
	if len(files) == 0 {
		return nil, nil
	}
	out := make([]Attachment, 0, len(files))
	for _, f := range files {
		data, err := os.ReadFile(f.Path)
		if err != nil {
			return nil, fmt.Errorf("read attachment %s: %w", f.Name, err)
		}

		mimeType := detectMIME(f, data)
		content := string(data)
		if !isText(mimeType) {
			content = base64.StdEncoding.EncodeToString(data)
		}

		out = append(out, Attachment{Name: f.Name, MIME: mimeType, Content: content})
	}
	return out, nil
}

// detectMIME uses the manifest's declared type, falling back to content
// sniffing (and finally octet-stream) when the declaration is generic.
func detectMIME(f manifest.ResolvedFile, data []byte) string {
	declared := strings.TrimSpace(f.Type)
	if declared != "" && declared != "ipfs/cid" && strings.Contains(declared, "/") {
		return declared
	}
	if ext := filepath.Ext(f.Path); ext != "" {
		if byExt := mime.TypeByExtension(ext); byExt != "" {
			return byExt
		}
	}
	if sniffed := http.DetectContentType(data); sniffed != "" {
		return sniffed
	}
	return "application/octet-stream"
}

func isText(mimeType string) bool {
	if strings.HasPrefix(mimeType, "text/") {
		return true
	}
	switch {
	case strings.Contains(mimeType, "json"),
		strings.Contains(mimeType, "xml"),
		strings.Contains(mimeType, "javascript"):
		return true
	}
	return false
}
