// Package jsonl decodes newline-delimited JSON objects out of streamed text.
//
// Model output arrives in arbitrary chunks, so a line may be split anywhere,
// including inside a multi-byte rune. The Decoder buffers until a newline is
// seen and only then inspects the line.
package jsonl

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"

	"github.com/tidwall/gjson"
)

// ErrSkipLine may be returned by an emit function to count the line as
// skipped instead of failing the stream.
var ErrSkipLine = errors.New("jsonl: skip line")

// Decoder accumulates chunks and emits every complete JSON object line
type Decoder struct {
	buf     []byte
	emit    func(line []byte) error
	emitted int
	skipped int
}

// NewDecoder creates a Decoder that calls emit for each object line
func NewDecoder(emit func(line []byte) error) *Decoder {
	return &Decoder{emit: emit}
}

// Write appends a chunk and emits the complete lines it closes.
// It implements io.Writer.
func (d *Decoder) Write(p []byte) (int, error) {
	d.buf = append(d.buf, p...)

	for {
		i := bytes.IndexByte(d.buf, '\n')
		if i < 0 {
			break
		}
		line := d.buf[:i]
		err := d.handle(line)
		d.buf = d.buf[i+1:]
		if err != nil {
			return len(p), err
		}
	}

	return len(p), nil
}

// WriteString is Write for strings
func (d *Decoder) WriteString(s string) (int, error) {
	return d.Write([]byte(s))
}

// Flush emits the buffered remainder if it is a complete object
func (d *Decoder) Flush() error {
	if len(d.buf) == 0 {
		return nil
	}
	line := d.buf
	d.buf = nil
	return d.handle(line)
}

// Emitted returns how many objects were handed to emit
func (d *Decoder) Emitted() int {
	return d.emitted
}

// Skipped returns how many non-empty lines were rejected
func (d *Decoder) Skipped() int {
	return d.skipped
}

// Pending returns the bytes buffered after the last newline
func (d *Decoder) Pending() int {
	return len(d.buf)
}

func (d *Decoder) handle(raw []byte) error {
	line := bytes.TrimSpace(raw)
	if len(line) == 0 || bytes.HasPrefix(line, []byte("```")) {
		return nil
	}
	line = bytes.TrimSuffix(line, []byte(","))

	if !IsObject(line) {
		d.skipped++
		return nil
	}

	// emit may retain the slice; the buffer is reused
	obj := make([]byte, len(line))
	copy(obj, line)

	if err := d.emit(obj); err != nil {
		if errors.Is(err, ErrSkipLine) {
			d.skipped++
			return nil
		}
		return err
	}
	d.emitted++
	return nil
}

// IsObject reports whether line is a single valid JSON object
func IsObject(line []byte) bool {
	if len(line) < 2 || line[0] != '{' || line[len(line)-1] != '}' {
		return false
	}
	return gjson.ValidBytes(line)
}

// validator is implemented by DTOs that can reject incomplete values
type validator interface {
	Valid() bool
}

// Each adapts fn into an emit function that unmarshals each line into T.
// Lines that do not unmarshal, or values whose Valid method reports false,
// are skipped.
func Each[T any](fn func(T) error) func([]byte) error {
	return func(line []byte) error {
		var v T
		if err := json.Unmarshal(line, &v); err != nil {
			return ErrSkipLine
		}
		if val, ok := any(v).(validator); ok && !val.Valid() {
			return ErrSkipLine
		}
		return fn(v)
	}
}

// DecodeAll reads r to the end and returns every object it holds
func DecodeAll[T any](r io.Reader) ([]T, error) {
	var out []T
	dec := NewDecoder(Each(func(v T) error {
		out = append(out, v)
		return nil
	}))

	if _, err := io.Copy(dec, r); err != nil {
		return out, err
	}
	if err := dec.Flush(); err != nil {
		return out, err
	}
	return out, nil
}
