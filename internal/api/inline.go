package api

import (
	"encoding/base64"
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

const (
	// MaxInlineSize is the largest file sent inline with a request
	MaxInlineSize = 20 * 1024 * 1024 // 20MB
)

// SupportedImageTypes returns the image MIME types accepted for prompts
func SupportedImageTypes() []string {
	return []string{
		"image/jpeg",
		"image/png",
		"image/gif",
		"image/webp",
		"image/heic",
		"image/heif",
	}
}

// InlineFile is a file embedded directly in a request
type InlineFile struct {
	Name     string
	MIMEType string
	Data     []byte
}

// LoadInlineFile reads a file from disk for a multimodal prompt
func LoadInlineFile(path string) (InlineFile, error) {
	info, err := os.Stat(path)
	if err != nil {
		return InlineFile{}, fmt.Errorf("failed to stat file: %w", err)
	}
	if info.IsDir() {
		return InlineFile{}, fmt.Errorf("%s is a directory", path)
	}
	if info.Size() > MaxInlineSize {
		return InlineFile{}, fmt.Errorf("file size exceeds maximum %d bytes", MaxInlineSize)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return InlineFile{}, fmt.Errorf("failed to read file: %w", err)
	}

	return InlineFileFromBytes(filepath.Base(path), data)
}

// InlineFileFromBytes wraps in-memory data, detecting the MIME type from
// the name's extension and falling back to content sniffing
func InlineFileFromBytes(name string, data []byte) (InlineFile, error) {
	if len(data) == 0 {
		return InlineFile{}, fmt.Errorf("file %s is empty", name)
	}
	if len(data) > MaxInlineSize {
		return InlineFile{}, fmt.Errorf("data size exceeds maximum %d bytes", MaxInlineSize)
	}

	return InlineFile{
		Name:     name,
		MIMEType: DetectMIMEType(name, data),
		Data:     data,
	}, nil
}

// DetectMIMEType returns the MIME type for name, sniffing data when the
// extension is unknown
func DetectMIMEType(name string, data []byte) string {
	ext := strings.ToLower(filepath.Ext(name))
	switch ext {
	case ".md", ".markdown":
		return "text/markdown"
	case ".csv":
		return "text/csv"
	case ".heic":
		return "image/heic"
	case ".heif":
		return "image/heif"
	case ".docx":
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	}

	if mt := mime.TypeByExtension(ext); mt != "" {
		if base, _, err := mime.ParseMediaType(mt); err == nil {
			return base
		}
		return mt
	}

	sniffed := http.DetectContentType(data)
	if base, _, err := mime.ParseMediaType(sniffed); err == nil {
		return base
	}
	return sniffed
}

// IsImage reports whether the file is a supported image
func (f InlineFile) IsImage() bool {
	for _, t := range SupportedImageTypes() {
		if f.MIMEType == t {
			return true
		}
	}
	return false
}

// Size returns the payload size in bytes
func (f InlineFile) Size() int {
	return len(f.Data)
}

// DataURL encodes the file as a data: URL suitable for previews
func (f InlineFile) DataURL() string {
	return "data:" + f.MIMEType + ";base64," + base64.StdEncoding.EncodeToString(f.Data)
}
