package api

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadInlineFile(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name      string
		file      string
		data      []byte
		wantMIME  string
		wantImage bool
	}{
		{name: "png by extension", file: "shot.png", data: pngHeader, wantMIME: "image/png", wantImage: true},
		{name: "jpeg by extension", file: "photo.JPG", data: []byte("\xff\xd8\xff\xe0"), wantMIME: "image/jpeg", wantImage: true},
		{name: "pdf", file: "doc.pdf", data: []byte("%PDF-1.7"), wantMIME: "application/pdf"},
		{name: "markdown", file: "notes.md", data: []byte("# hi"), wantMIME: "text/markdown"},
		{name: "sniffed png without extension", file: "blob", data: pngHeader, wantMIME: "image/png", wantImage: true},
		{name: "text charset stripped", file: "a.txt", data: []byte("hello"), wantMIME: "text/plain"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, tt.file)
			if err := os.WriteFile(path, tt.data, 0644); err != nil {
				t.Fatal(err)
			}

			f, err := LoadInlineFile(path)
			if err != nil {
				t.Fatalf("LoadInlineFile() error = %v", err)
			}
			if f.MIMEType != tt.wantMIME {
				t.Errorf("MIMEType = %q, want %q", f.MIMEType, tt.wantMIME)
			}
			if f.IsImage() != tt.wantImage {
				t.Errorf("IsImage() = %v, want %v", f.IsImage(), tt.wantImage)
			}
			if f.Name != tt.file {
				t.Errorf("Name = %q, want %q", f.Name, tt.file)
			}
			if f.Size() != len(tt.data) {
				t.Errorf("Size() = %d, want %d", f.Size(), len(tt.data))
			}
		})
	}
}

func TestLoadInlineFile_Errors(t *testing.T) {
	dir := t.TempDir()

	if _, err := LoadInlineFile(filepath.Join(dir, "missing.png")); err == nil {
		t.Error("missing file should fail")
	}
	if _, err := LoadInlineFile(dir); err == nil {
		t.Error("directory should fail")
	}

	empty := filepath.Join(dir, "empty.txt")
	if err := os.WriteFile(empty, nil, 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadInlineFile(empty); err == nil {
		t.Error("empty file should fail")
	}

	big := filepath.Join(dir, "big.bin")
	fh, err := os.Create(big)
	if err != nil {
		t.Fatal(err)
	}
	if err := fh.Truncate(MaxInlineSize + 1); err != nil {
		t.Fatal(err)
	}
	_ = fh.Close()
	if _, err := LoadInlineFile(big); err == nil || !strings.Contains(err.Error(), "exceeds") {
		t.Errorf("oversized file error = %v", err)
	}
}

func TestInlineFile_DataURL(t *testing.T) {
	f := InlineFile{MIMEType: "image/png", Data: []byte("abc")}
	if got := f.DataURL(); got != "data:image/png;base64,YWJj" {
		t.Errorf("DataURL() = %q", got)
	}
}
