// Package personal serves the static directory of personal channels and
// links used by the Info view.
package personal

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/diogo/techtouch/internal/models"
)

//go:embed data.yaml
var defaultData []byte

// OverrideFile is the file name looked up in the config directory
const OverrideFile = "personal.yaml"

type document struct {
	Items []models.PersonalInfoItem `yaml:"items"`
}

// Directory is an immutable list of personal links
type Directory struct {
	items []models.PersonalInfoItem
}

// Default returns the embedded directory
func Default() *Directory {
	d, err := Parse(defaultData)
	if err != nil {
		panic(fmt.Sprintf("personal: embedded data is invalid: %v", err))
	}
	return d
}

// Load returns the directory from configDir/personal.yaml when present,
// or the embedded one otherwise
func Load(configDir string) (*Directory, error) {
	path := filepath.Join(configDir, OverrideFile)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	d, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return d, nil
}

// Parse decodes a YAML directory document. Entries without a name or URL
// are rejected.
func Parse(data []byte) (*Directory, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}

	for i, item := range doc.Items {
		if strings.TrimSpace(item.Name) == "" || strings.TrimSpace(item.URL) == "" {
			return nil, fmt.Errorf("item %d: name and url are required", i)
		}
	}
	return &Directory{items: doc.Items}, nil
}

// Items returns a copy of every entry
func (d *Directory) Items() []models.PersonalInfoItem {
	out := make([]models.PersonalInfoItem, len(d.items))
	copy(out, d.items)
	return out
}

// Search returns entries whose name, category or keywords match any word
// of query (case-insensitive). An "all" query returns everything.
func (d *Directory) Search(query string) []models.PersonalInfoItem {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return nil
	}
	if wantsAll(query) {
		return d.Items()
	}

	words := strings.Fields(query)
	var hits []models.PersonalInfoItem
	for _, item := range d.items {
		if matches(item, query, words) {
			hits = append(hits, item)
		}
	}
	return hits
}

func wantsAll(query string) bool {
	for _, w := range []string{"all", "every", "كل", "جميع"} {
		for _, f := range strings.Fields(query) {
			if f == w {
				return true
			}
		}
	}
	return false
}

func matches(item models.PersonalInfoItem, query string, words []string) bool {
	name := strings.ToLower(item.Name)
	category := strings.ToLower(string(item.Category))

	if strings.Contains(query, name) {
		return true
	}
	for _, w := range words {
		if len([]rune(w)) < 2 {
			continue
		}
		if strings.Contains(name, w) || strings.Contains(category, w) {
			return true
		}
	}
	for _, kw := range item.Keywords {
		kw = strings.ToLower(kw)
		if kw != "" && strings.Contains(query, kw) {
			return true
		}
	}
	return false
}

// SystemInstruction is the instruction given to the model for Info questions
const SystemInstruction = "You are a helpful assistant. Based only on the JSON data provided, answer the user's question. " +
	"The data contains a list of personal channels and social media links. " +
	"Respond in a friendly, conversational tone in Arabic. " +
	"If you find relevant links, present them clearly using Markdown format like [Link Name](URL). " +
	"If the user asks for \"all\" or \"every\" channel, list all of them. " +
	"If the information is not in the data, state that you could not find what they were looking for. " +
	"Do not make up information."

// Prompt builds the full prompt embedding the directory as JSON
func (d *Directory) Prompt(question string) (string, error) {
	data, err := json.Marshal(d.items)
	if err != nil {
		return "", fmt.Errorf("failed to encode personal data: %w", err)
	}

	var sb strings.Builder
	sb.WriteString(SystemInstruction)
	sb.WriteString("\n\nJSON Data:\n")
	sb.Write(data)
	sb.WriteString("\n\nUser's question: \"")
	sb.WriteString(strings.TrimSpace(question))
	sb.WriteString("\"")
	return sb.String(), nil
}
