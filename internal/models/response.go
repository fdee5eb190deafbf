package models

import "strings"

// GeneratedImage is an image returned inline by the model
type GeneratedImage struct {
	MIMEType string
	Data     []byte
}

// Extension returns the file extension matching the image MIME type
func (g GeneratedImage) Extension() string {
	switch strings.ToLower(g.MIMEType) {
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	case "image/gif":
		return ".gif"
	default:
		return ".png"
	}
}

// ModelOutput represents a complete response from Gemini
type ModelOutput struct {
	Text         string
	Thoughts     string // Only populated for thinking models
	Sources      []string
	Images       []GeneratedImage
	FinishReason string
}

// HasImages reports whether the output carries generated images
func (m *ModelOutput) HasImages() bool {
	return m != nil && len(m.Images) > 0
}

// IsEmpty reports whether the output has neither text nor images
func (m *ModelOutput) IsEmpty() bool {
	return m == nil || (strings.TrimSpace(m.Text) == "" && len(m.Images) == 0)
}
