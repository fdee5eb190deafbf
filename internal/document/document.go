// Package document extracts text from attached files and writes translated
// results back out as .docx or .txt.
package document

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

// ErrNoText is returned when a document holds no extractable text
var ErrNoText = errors.New("لا يوجد نص")

// ErrUnsupported is returned for file types that cannot be processed
var ErrUnsupported = errors.New("unsupported document type")

// MaxExtractSize bounds the text kept from a single document
const MaxExtractSize = 200_000

// Extracted is the result of ExtractText
type Extracted struct {
	Name string
	Text string
	// NeedsModel is set for formats read by the model itself (PDF); the
	// caller must attach the file instead of sending Text
	NeedsModel bool
}

// ExtractText reads the text content of path
func ExtractText(path string) (*Extracted, error) {
	name := filepath.Base(path)
	ext := strings.ToLower(filepath.Ext(path))

	switch ext {
	case ".pdf":
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("failed to stat file: %w", err)
		}
		return &Extracted{Name: name, NeedsModel: true}, nil
	case ".docx":
		text, err := extractDocx(path)
		if err != nil {
			return nil, err
		}
		return finish(name, text)
	case ".txt", ".md", ".markdown", ".csv", ".json", ".html", ".xml", ".srt", ".log":
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read file: %w", err)
		}
		if !utf8.Valid(data) {
			return nil, fmt.Errorf("%s is not UTF-8 text", name)
		}
		return finish(name, string(data))
	}

	return nil, fmt.Errorf("%w: %s", ErrUnsupported, ext)
}

// Supported reports whether ExtractText accepts the file extension
func Supported(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf", ".docx", ".txt", ".md", ".markdown", ".csv", ".json", ".html", ".xml", ".srt", ".log":
		return true
	}
	return false
}

func finish(name, text string) (*Extracted, error) {
	text = strings.TrimSpace(strings.ReplaceAll(text, "\r\n", "\n"))
	if text == "" {
		return nil, ErrNoText
	}
	if len(text) > MaxExtractSize {
		cut := MaxExtractSize
		for cut > 0 && !utf8.RuneStart(text[cut]) {
			cut--
		}
		text = text[:cut]
	}
	return &Extracted{Name: name, Text: text}, nil
}

func extractDocx(path string) (string, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return "", fmt.Errorf("failed to open docx: %w", err)
	}
	defer zr.Close()

	for _, f := range zr.File {
		if f.Name != "word/document.xml" {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return "", fmt.Errorf("failed to open document body: %w", err)
		}
		defer rc.Close()
		return docxText(rc)
	}
	return "", fmt.Errorf("docx has no word/document.xml")
}

// docxText walks WordprocessingML and returns its text, one line per
// paragraph
func docxText(r io.Reader) (string, error) {
	dec := xml.NewDecoder(r)
	var sb strings.Builder
	inText := false

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("failed to parse document body: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inText = true
			case "tab":
				sb.WriteByte('\t')
			case "br", "cr":
				sb.WriteByte('\n')
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				sb.WriteByte('\n')
			}
		case xml.CharData:
			if inText {
				sb.Write(t)
			}
		}
	}
	return sb.String(), nil
}

// TranslationPrompt asks the model to translate and format text to Arabic
func TranslationPrompt(text string) string {
	return "Translate/Format this text to professional Arabic:\n\n" + text
}

// TranslationPromptForAttachment is used when the model reads the file itself
func TranslationPromptForAttachment(name string) string {
	return "Extract the text of the attached document (" + name + ") and translate/format it to professional Arabic. Return only the translated text."
}

// OutputName returns the download file name for a translated document
func OutputName(source, ext string) string {
	return "translated-" + strings.TrimSuffix(filepath.Base(source), filepath.Ext(source)) + ext
}

// WriteTxt writes text as UTF-8
func WriteTxt(path, text string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// WriteDocx writes text as a minimal Word document with one paragraph per
// line. Paragraphs are marked right-to-left.
func WriteDocx(path, text string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	data, err := BuildDocx(text)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// BuildDocx returns the bytes of a .docx holding text
func BuildDocx(text string) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	files := []struct {
		name string
		body string
	}{
		{"[Content_Types].xml", contentTypesXML},
		{"_rels/.rels", relsXML},
		{"word/document.xml", documentXML(text)},
	}
	for _, f := range files {
		w, err := zw.Create(f.name)
		if err != nil {
			return nil, fmt.Errorf("failed to create %s: %w", f.name, err)
		}
		if _, err := io.WriteString(w, f.body); err != nil {
			return nil, fmt.Errorf("failed to write %s: %w", f.name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("failed to finish docx: %w", err)
	}
	return buf.Bytes(), nil
}

func documentXML(text string) string {
	var sb strings.Builder
	sb.WriteString(xml.Header)
	sb.WriteString(`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>`)

	for _, line := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		sb.WriteString(`<w:p><w:pPr><w:bidi/></w:pPr><w:r><w:rPr><w:rtl/></w:rPr><w:t xml:space="preserve">`)
		_ = xml.EscapeText(&sb, []byte(line))
		sb.WriteString(`</w:t></w:r></w:p>`)
	}

	sb.WriteString(`<w:sectPr/></w:body></w:document>`)
	return sb.String()
}

const contentTypesXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">
<Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>
<Default Extension="xml" ContentType="application/xml"/>
<Override PartName="/word/document.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/>
</Types>`

const relsXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">
<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument" Target="word/document.xml"/>
</Relationships>`
