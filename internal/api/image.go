package api

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"google.golang.org/genai"

	apierrors "github.com/diogo/techtouch/internal/errors"
	"github.com/diogo/techtouch/internal/models"
)

// EditImage sends an image with an instruction to the image model and
// returns the edited image(s) plus any accompanying text
func (c *GeminiClient) EditImage(ctx context.Context, prompt string, image InlineFile) (*models.ModelOutput, error) {
	if !image.IsImage() {
		return nil, fmt.Errorf("unsupported image type: %s", image.MIMEType)
	}

	c.mu.RLock()
	model := c.imageModel
	c.mu.RUnlock()

	opts := &GenerateOptions{
		Model:  model,
		Images: []InlineFile{image},
	}
	output, err := c.generate(ctx, "edit_image", prompt, opts, func(cfg *genai.GenerateContentConfig) {
		cfg.ResponseModalities = []string{"TEXT", "IMAGE"}
	})
	if err != nil {
		return nil, err
	}
	if !output.HasImages() && strings.TrimSpace(output.Text) == "" {
		return nil, apierrors.ErrNoContent
	}
	return output, nil
}

// SaveImages writes every generated image in output to dir and returns the
// absolute paths. Files are named <prefix>_<timestamp>_<n><ext>.
func SaveImages(output *models.ModelOutput, dir, prefix string) ([]string, error) {
	if !output.HasImages() {
		return nil, nil
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, apierrors.NewDownloadError("failed to create directory: "+err.Error(), dir)
	}

	prefix = sanitizeFilename(prefix)
	if prefix == "" {
		prefix = "image"
	}
	stamp := time.Now().Format("20060102_150405")

	paths := make([]string, 0, len(output.Images))
	for i, img := range output.Images {
		name := fmt.Sprintf("%s_%s_%d%s", prefix, stamp, i+1, img.Extension())
		dest := filepath.Join(dir, name)
		if err := os.WriteFile(dest, img.Data, 0644); err != nil {
			return paths, apierrors.NewDownloadError("failed to save file: "+err.Error(), dest)
		}

		abs, err := filepath.Abs(dest)
		if err != nil {
			abs = dest
		}
		paths = append(paths, abs)
	}

	return paths, nil
}

var unsafeFilename = regexp.MustCompile(`[<>:"/\\|?*\x00-\x1f]`)

// sanitizeFilename removes invalid characters from filenames
func sanitizeFilename(name string) string {
	return strings.TrimSpace(unsafeFilename.ReplaceAllString(name, "_"))
}
