package domain

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
)

// MaxImagePixels bounds the declared size of any image the service decodes.
const MaxImagePixels = 40_000_000

// Artifact is an image payload moving between the engine, the orchestrator and
// the object repository.
type Artifact struct {
	Filename string
	MIME     string
	Data     []byte
}

// Empty reports whether the artifact carries no bytes.
func (a Artifact) Empty() bool {
	return len(a.Data) == 0
}

// CheckDimensions reads only the image header and rejects images larger than
// MaxImagePixels. Formats the image package cannot read pass unchecked.
func (a Artifact) CheckDimensions() error {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(a.Data))
	if errors.Is(err, image.ErrFormat) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("%w: unreadable image header: %v", ErrInvalidInput, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || int64(cfg.Width)*int64(cfg.Height) > MaxImagePixels {
		return fmt.Errorf("%w: image is %dx%d, limit is %d pixels", ErrInvalidInput, cfg.Width, cfg.Height, MaxImagePixels)
	}
	return nil
}
