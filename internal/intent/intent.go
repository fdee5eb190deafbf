// Package intent classifies chat input so the prompt can be rewritten
// before it is sent: links become search-and-summarize requests and
// "X vs Y" questions become comparison tables.
package intent

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
)

// Kind is the detected purpose of a message
type Kind string

const (
	KindPlain      Kind = "plain"
	KindLink       Kind = "link"
	KindComparison Kind = "comparison"
)

// Intent is the result of Analyze
type Intent struct {
	Kind Kind
	URLs []string
	// UseSearch asks the model to ground its reply with Google Search
	UseSearch bool
}

var urlPattern = regexp.MustCompile(`https?://[^\s]+`)

// comparisonWords are matched as substrings (Arabic has no case and words
// often carry attached prefixes such as "ال" or "و")
var comparisonWords = []string{"مقارنة", "مقابل", "فرق", "compare", "versus"}

// DetectURLs returns every http(s) URL in text, in order of appearance
func DetectURLs(text string) []string {
	matches := urlPattern.FindAllString(text, -1)
	for i, m := range matches {
		matches[i] = strings.TrimRight(m, ".,;:!?)]}\"'،")
	}
	return matches
}

// IsComparison reports whether text asks to compare things
func IsComparison(text string) bool {
	lower := strings.ToLower(text)
	for _, w := range comparisonWords {
		if strings.Contains(lower, w) {
			return true
		}
	}

	for _, tok := range strings.FieldsFunc(lower, func(r rune) bool {
		return unicode.IsSpace(r) || r == ',' || r == '?' || r == '!' || r == '(' || r == ')'
	}) {
		if tok == "vs" || tok == "vs." || tok == "v/s" {
			return true
		}
	}
	return false
}

// Analyze classifies text. A link wins over a comparison.
func Analyze(text string) Intent {
	if urls := DetectURLs(text); len(urls) > 0 {
		return Intent{Kind: KindLink, URLs: urls, UseSearch: true}
	}
	if IsComparison(text) {
		return Intent{Kind: KindComparison, UseSearch: true}
	}
	return Intent{Kind: KindPlain}
}

// BuildPrompt rewrites text according to the intent. lang selects the
// language the answer is requested in ("ar" or "en").
func BuildPrompt(in Intent, text, lang string) string {
	language := "Arabic"
	if lang == "en" {
		language = "English"
	}

	switch in.Kind {
	case KindLink:
		return fmt.Sprintf("Use Google Search to visit this link and summarize its key technical points in %s: %s", language, text)
	case KindComparison:
		return fmt.Sprintf("Using Google Search for accurate specs from official sources, create a detailed comparison table "+
			"(markdown table) between the items mentioned here: %q. The response must include a table with two columns "+
			"comparing features. Language: %s.", text, language)
	default:
		return text
	}
}

// WithPageExcerpt appends fetched page content to a link prompt
func WithPageExcerpt(prompt, url, title, excerpt string) string {
	if strings.TrimSpace(excerpt) == "" {
		return prompt
	}
	var sb strings.Builder
	sb.WriteString(prompt)
	sb.WriteString("\n\n---\nPage content fetched from ")
	sb.WriteString(url)
	if title != "" {
		sb.WriteString(" (")
		sb.WriteString(title)
		sb.WriteString(")")
	}
	sb.WriteString(":\n")
	sb.WriteString(excerpt)
	return sb.String()
}

var memoryMarkers = []string{"اسمي", "أحب", "أفضل", "my name is", "i like"}

// IsMemoryStatement reports whether text tells something about the user
// worth remembering across conversations
func IsMemoryStatement(text string) bool {
	lower := strings.ToLower(text)
	for _, m := range memoryMarkers {
		if strings.Contains(lower, m) {
			return true
		}
	}
	return false
}

// IsImage reports whether a MIME type is an image
func IsImage(mimeType string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(mimeType)), "image/")
}
