package sniff

import "github.com/gabriel-vasile/mimetype"

// DefaultType is used whenever classification fails or is impossible
// (streaming input cannot be sniffed without consuming it).
const DefaultType = "application/octet-stream"

// Detect classifies the file's content. Classification is a collaborator:
// any failure degrades to DefaultType and is never surfaced as an error.
func Detect(path string) string {
	m, err := mimetype.DetectFile(path)
	if err != nil || m == nil {
		return DefaultType
	}
	return m.String()
}
