// Package models contains data types and constants for the techtouch client.
package models

import "strings"

// Gemini API endpoint used when no base URL override is configured
const EndpointGenerativeLanguage = "https://generativelanguage.googleapis.com"

// Generation defaults used by the chat surfaces
const (
	DefaultTemperature     float32 = 0.9
	DefaultTopP            float32 = 0.95
	DefaultTopK            float32 = 64
	DefaultMaxOutputTokens int32   = 8192
)

// Model represents a Gemini model exposed by the client
type Model struct {
	Name  string
	Label string
	// SupportsImageOutput marks models that can return edited images
	SupportsImageOutput bool
}

// Available models
var (
	ModelFlash = Model{
		Name:  "gemini-2.5-flash",
		Label: "Flash",
	}

	ModelPro = Model{
		Name:  "gemini-2.5-pro",
		Label: "Pro",
	}

	ModelFlashLite = Model{
		Name:  "gemini-2.5-flash-lite",
		Label: "Flash Lite",
	}

	ModelFlashImage = Model{
		Name:                "gemini-2.5-flash-image-preview",
		Label:               "Flash Image",
		SupportsImageOutput: true,
	}

	// DefaultModel is used for chat, news and personal info
	DefaultModel = ModelFlash

	// DefaultImageModel is used for image editing
	DefaultImageModel = ModelFlashImage
)

// AllModels returns a list of all available models
func AllModels() []Model {
	return []Model{ModelFlash, ModelPro, ModelFlashLite, ModelFlashImage}
}

// ModelFromName returns a Model by its name or alias.
// Unknown names fall back to DefaultModel.
func ModelFromName(name string) Model {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "fast", "flash", ModelFlash.Name:
		return ModelFlash
	case "pro", ModelPro.Name:
		return ModelPro
	case "lite", ModelFlashLite.Name:
		return ModelFlashLite
	case "image", ModelFlashImage.Name:
		return ModelFlashImage
	default:
		return DefaultModel
	}
}

// ModelAliases returns the short names accepted by ModelFromName
func ModelAliases() []string {
	return []string{"fast", "pro", "lite", "image"}
}
