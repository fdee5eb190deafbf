package document

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func write(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, data, 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestExtractText_PlainFormats(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name string
		data string
		want string
	}{
		{"notes.txt", "  hello\r\nworld \n", "hello\nworld"},
		{"README.md", "# Title", "# Title"},
		{"data.csv", "a,b\n1,2", "a,b\n1,2"},
		{"x.json", `{"k":"v"}`, `{"k":"v"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractText(write(t, dir, tt.name, []byte(tt.data)))
			if err != nil {
				t.Fatalf("ExtractText() error = %v", err)
			}
			if got.Text != tt.want || got.NeedsModel || got.Name != tt.name {
				t.Errorf("ExtractText() = %+v", got)
			}
		})
	}
}

func TestExtractText_Errors(t *testing.T) {
	dir := t.TempDir()

	if _, err := ExtractText(write(t, dir, "empty.txt", []byte("  \n "))); !errors.Is(err, ErrNoText) {
		t.Errorf("empty file error = %v, want ErrNoText", err)
	}
	if _, err := ExtractText(write(t, dir, "bin.txt", []byte{0xff, 0xfe, 0x00})); err == nil {
		t.Error("invalid UTF-8 should fail")
	}
	if _, err := ExtractText(write(t, dir, "app.exe", []byte("MZ"))); !errors.Is(err, ErrUnsupported) {
		t.Errorf("exe error = %v, want ErrUnsupported", err)
	}
	if _, err := ExtractText(write(t, dir, "broken.docx", []byte("not a zip"))); err == nil {
		t.Error("broken docx should fail")
	}
	if _, err := ExtractText(filepath.Join(dir, "missing.pdf")); err == nil {
		t.Error("missing pdf should fail")
	}
}

func TestExtractText_PDFNeedsModel(t *testing.T) {
	got, err := ExtractText(write(t, t.TempDir(), "paper.pdf", []byte("%PDF-1.4")))
	if err != nil {
		t.Fatal(err)
	}
	if !got.NeedsModel || got.Text != "" {
		t.Errorf("ExtractText(pdf) = %+v", got)
	}
}

func TestDocxRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out", "translated.docx")
	text := "مرحبا بالعالم\nline <two> & \"three\""

	if err := WriteDocx(path, text); err != nil {
		t.Fatalf("WriteDocx() error = %v", err)
	}
	got, err := ExtractText(path)
	if err != nil {
		t.Fatalf("ExtractText(docx) error = %v", err)
	}
	if got.Text != text {
		t.Errorf("docx text = %q, want %q", got.Text, text)
	}
}

func TestDocxText_TabsAndBreaks(t *testing.T) {
	body := `<w:document xmlns:w="w"><w:body>
<w:p><w:r><w:t>a</w:t><w:tab/><w:t>b</w:t><w:br/><w:t>c</w:t></w:r></w:p>
<w:p><w:r><w:instrText>IGNORED</w:instrText><w:t>d</w:t></w:r></w:p>
</w:body></w:document>`
	got, err := docxText(strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	if got != "a\tb\nc\nd\n" {
		t.Errorf("docxText() = %q", got)
	}
}

func TestWriteTxt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "a.txt")
	if err := WriteTxt(path, "نص"); err != nil {
		t.Fatal(err)
	}
	data, _ := os.ReadFile(path)
	if string(data) != "نص" {
		t.Errorf("file = %q", data)
	}
}

func TestHelpers(t *testing.T) {
	if !strings.HasPrefix(TranslationPrompt("x"), "Translate/Format this text to professional Arabic:\n\nx") {
		t.Error("TranslationPrompt prefix")
	}
	if got := OutputName("/tmp/report.final.pdf", ".docx"); got != "translated-report.final.docx" {
		t.Errorf("OutputName() = %q", got)
	}
	if !Supported("a.DOCX") || Supported("a.exe") {
		t.Error("Supported() mismatch")
	}
}
