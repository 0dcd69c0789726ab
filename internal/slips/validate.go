// Package slips validates and stores payment slip images.
package slips

import (
	"mime"
	"slices"

	"github.com/gabriel-vasile/mimetype"
	"github.com/kirinyoku/washq/internal/domain"
)

const DefaultMaxBytes = 5 << 20

var DefaultAllowed = []string{"image/jpeg", "image/png", "image/gif"}

type Validator struct {
	MaxBytes int
	Allowed  []string
}

func NewValidator() Validator {
	return Validator{MaxBytes: DefaultMaxBytes, Allowed: DefaultAllowed}
}

// Validate checks size, the declared content type and the sniffed content
// type. It returns the sniffed type, which is what gets stored.
func (v Validator) Validate(data []byte, declared string) (string, error) {
	if len(data) == 0 {
		return "", domain.Invalidf("slip file is empty")
	}
	if len(data) > v.MaxBytes {
		return "", domain.Invalidf("slip file exceeds %d bytes", v.MaxBytes)
	}

	if declared != "" {
		mt, _, err := mime.ParseMediaType(declared)
		if err != nil || !v.allowed(mt) {
			return "", domain.Invalidf("unsupported slip type %q", declared)
		}
	}

	detected := mimetype.Detect(data)
	for _, a := range v.Allowed {
		if detected.Is(a) {
			return a, nil
		}
	}

	return "", domain.Invalidf("slip content is %s, expected an image", detected.String())
}

func (v Validator) allowed(mt string) bool {
	return slices.Contains(v.Allowed, mt)
}
