package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/diogo/techtouch/internal/models"
)

// Persona is a named system-instruction preset for chat and single queries
type Persona struct {
	Name         string `json:"name"`
	Description  string `json:"description"`
	SystemPrompt string `json:"system_prompt"`
	// Model overrides the configured chat model when set
	Model string `json:"model,omitempty"`
	// Temperature overrides the configured temperature when set
	Temperature float32 `json:"temperature,omitempty"`

	// BuiltIn marks the presets shipped with techtouch
	BuiltIn bool `json:"-"`
}

// PersonaConfig lists the built-in personas followed by the user's own.
// A user persona with a built-in name replaces the preset.
type PersonaConfig struct {
	Personas       []Persona `json:"personas"`
	DefaultPersona string    `json:"default_persona,omitempty"`
}

// DefaultPersonaName is the persona used when none is configured
const DefaultPersonaName = "techtouch"

const (
	maxPersonaName        = 50
	maxPersonaDescription = 200
	maxPersonaPrompt      = 32 * 1024
	maxPersonaTemperature = 2
)

var builtinPersonas = []Persona{
	{
		Name:        DefaultPersonaName,
		Description: "Arabic tech assistant (default)",
		SystemPrompt: `You are TechTouch, a friendly technology assistant.
- Answer in clear Arabic unless the user writes in another language
- Prefer concise answers with Markdown headings, lists and tables
- When comparing devices or products, use a Markdown table
- Cite sources when you used Google Search`,
	},
	{
		Name:        "plain",
		Description: "No system prompt",
	},
	{
		Name:        "translator",
		Description: "Professional Arabic translator",
		SystemPrompt: `You are a professional translator. Translate the user's text to fluent, professional Arabic.
- Preserve the structure: headings, lists and paragraphs
- Keep technical terms in English between parentheses after the Arabic term
- Return only the translation`,
		Temperature: 0.3,
	},
	{
		Name:        "reviewer",
		Description: "Smartphone reviewer",
		SystemPrompt: `You are an experienced smartphone reviewer. When asked about a phone:
- Summarise display, performance, cameras, battery and price
- Give pros and cons as short lists
- End with a one-line verdict`,
		Model: "pro",
	},
	{
		Name:        "editor",
		Description: "Tech news editor",
		SystemPrompt: `You are the editor of an Arabic technology news channel.
- Rewrite what the user sends as a short news brief in Arabic
- Start with a one-line headline, then at most three sentences
- Keep product names and version numbers in English`,
	},
}

// DefaultPersonas returns a copy of the built-in personas
func DefaultPersonas() []Persona {
	out := slices.Clone(builtinPersonas)
	for i := range out {
		out[i].BuiltIn = true
	}
	return out
}

// GetPersonasPath returns the path to the personas file
func GetPersonasPath() (string, error) {
	configDir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "personas.json"), nil
}

// LoadPersonas returns the built-in personas merged with the user's file
func LoadPersonas() (*PersonaConfig, error) {
	path, err := GetPersonasPath()
	if err != nil {
		return nil, err
	}

	var stored PersonaConfig
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("failed to read personas: %w", err)
	default:
		if err := json.Unmarshal(data, &stored); err != nil {
			return nil, fmt.Errorf("failed to parse personas: %w", err)
		}
	}

	cfg := &PersonaConfig{
		Personas:       DefaultPersonas(),
		DefaultPersona: stored.DefaultPersona,
	}
	for _, p := range stored.Personas {
		p.BuiltIn = false
		if i := cfg.index(p.Name); i >= 0 {
			cfg.Personas[i] = p
			continue
		}
		cfg.Personas = append(cfg.Personas, p)
	}
	if cfg.DefaultPersona == "" {
		cfg.DefaultPersona = DefaultPersonaName
	}
	return cfg, nil
}

// SavePersonas writes the user's personas; built-in presets are not stored
func SavePersonas(cfg *PersonaConfig) error {
	path, err := GetPersonasPath()
	if err != nil {
		return err
	}
	if _, err := EnsureConfigDir(); err != nil {
		return err
	}

	out := PersonaConfig{Personas: []Persona{}}
	if cfg.DefaultPersona != DefaultPersonaName {
		out.DefaultPersona = cfg.DefaultPersona
	}
	for _, p := range cfg.Personas {
		if !p.BuiltIn {
			out.Personas = append(out.Personas, p)
		}
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal personas: %w", err)
	}
	return os.WriteFile(path, data, 0o600)
}

func (c *PersonaConfig) index(name string) int {
	return slices.IndexFunc(c.Personas, func(p Persona) bool { return p.Name == name })
}

// Find returns the persona called name
func (c *PersonaConfig) Find(name string) (*Persona, bool) {
	i := c.index(name)
	if i < 0 {
		return nil, false
	}
	p := c.Personas[i]
	return &p, true
}

func isBuiltinName(name string) bool {
	return slices.ContainsFunc(builtinPersonas, func(p Persona) bool { return p.Name == name })
}

// GetPersona returns a persona by name
func GetPersona(name string) (*Persona, error) {
	cfg, err := LoadPersonas()
	if err != nil {
		return nil, err
	}
	if p, ok := cfg.Find(name); ok {
		return p, nil
	}
	return nil, fmt.Errorf("persona '%s' not found", name)
}

// ListPersonaNames returns the names of all personas, built-in first
func ListPersonaNames() ([]string, error) {
	cfg, err := LoadPersonas()
	if err != nil {
		return nil, err
	}
	names := make([]string, len(cfg.Personas))
	for i, p := range cfg.Personas {
		names[i] = p.Name
	}
	return names, nil
}

// AddPersona stores a new user persona
func AddPersona(p Persona) error {
	if err := ValidatePersona(p); err != nil {
		return err
	}
	cfg, err := LoadPersonas()
	if err != nil {
		return err
	}
	if cfg.index(p.Name) >= 0 {
		return fmt.Errorf("persona '%s' already exists", p.Name)
	}
	p.BuiltIn = false
	cfg.Personas = append(cfg.Personas, p)
	return SavePersonas(cfg)
}

// DeletePersona removes a user persona. Deleting a user persona that
// replaced a preset brings the preset back.
func DeletePersona(name string) error {
	cfg, err := LoadPersonas()
	if err != nil {
		return err
	}
	i := cfg.index(name)
	if i < 0 {
		return fmt.Errorf("persona '%s' not found", name)
	}
	if cfg.Personas[i].BuiltIn {
		return fmt.Errorf("persona '%s' is built in and cannot be deleted", name)
	}

	cfg.Personas = slices.Delete(cfg.Personas, i, i+1)
	if cfg.DefaultPersona == name && !isBuiltinName(name) {
		cfg.DefaultPersona = DefaultPersonaName
	}
	return SavePersonas(cfg)
}

// SetDefaultPersona selects the persona used when none is given
func SetDefaultPersona(name string) error {
	cfg, err := LoadPersonas()
	if err != nil {
		return err
	}
	if cfg.index(name) < 0 {
		return fmt.Errorf("persona '%s' not found", name)
	}
	cfg.DefaultPersona = name
	return SavePersonas(cfg)
}

// GetDefaultPersona returns the default persona. A default that no longer
// exists falls back to the techtouch preset.
func GetDefaultPersona() (*Persona, error) {
	cfg, err := LoadPersonas()
	if err != nil {
		return nil, err
	}
	if p, ok := cfg.Find(cfg.DefaultPersona); ok {
		return p, nil
	}
	p, _ := cfg.Find(DefaultPersonaName)
	return p, nil
}

// ResolvePersona returns the named persona, falling back to the default
// persona when name is empty
func ResolvePersona(name string) (*Persona, error) {
	if name == "" {
		return GetDefaultPersona()
	}
	return GetPersona(name)
}

// SystemInstruction returns the persona prompt, or "" for a nil persona
func (p *Persona) SystemInstruction() string {
	if p == nil {
		return ""
	}
	return p.SystemPrompt
}

// ValidatePersona checks a persona before it is stored
func ValidatePersona(p Persona) error {
	var errs []error

	switch {
	case p.Name == "":
		errs = append(errs, errors.New("name is required"))
	case len(p.Name) > maxPersonaName:
		errs = append(errs, fmt.Errorf("name too long (max %d characters)", maxPersonaName))
	case strings.IndexFunc(p.Name, invalidNameRune) >= 0:
		errs = append(errs, errors.New("name must contain only letters, digits, underscores and hyphens"))
	}
	if len(p.Description) > maxPersonaDescription {
		errs = append(errs, fmt.Errorf("description too long (max %d characters)", maxPersonaDescription))
	}
	if len(p.SystemPrompt) > maxPersonaPrompt {
		errs = append(errs, fmt.Errorf("system prompt too long (max %d bytes)", maxPersonaPrompt))
	}
	if p.Temperature < 0 || p.Temperature > maxPersonaTemperature {
		errs = append(errs, fmt.Errorf("temperature must be between 0 and %d", maxPersonaTemperature))
	}
	if p.Model != "" && !isChatModel(p.Model) {
		errs = append(errs, fmt.Errorf("unknown chat model %q (use %s)", p.Model, strings.Join(chatModelAliases(), ", ")))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid persona: %w", errors.Join(errs...))
	}
	return nil
}

func invalidNameRune(r rune) bool {
	return !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '_' || r == '-')
}

// isChatModel reports whether name selects a text model. The image model
// only serves image editing.
func isChatModel(name string) bool {
	name = strings.ToLower(strings.TrimSpace(name))
	if slices.Contains(chatModelAliases(), name) {
		return true
	}
	for _, m := range models.AllModels() {
		if name == m.Name && !m.SupportsImageOutput {
			return true
		}
	}
	return false
}

func chatModelAliases() []string {
	var out []string
	for _, a := range models.ModelAliases() {
		if !models.ModelFromName(a).SupportsImageOutput {
			out = append(out, a)
		}
	}
	return out
}
