// Package qr renders pairing URLs as QR codes.
package qr

import (
	"fmt"

	qrcode "github.com/skip2/go-qrcode"
)

const (
	DefaultSize = 256
	MinSize     = 64
	MaxSize     = 1024
)

type Encoder struct {
	level qrcode.RecoveryLevel
}

// NewEncoder uses Medium error correction, dense enough for a TV screen
// and tolerant of glare.
func NewEncoder() *Encoder {
	return &Encoder{level: qrcode.Medium}
}

// PNG returns a square PNG of size pixels, clamped to [MinSize, MaxSize].
func (e *Encoder) PNG(url string, size int) ([]byte, error) {
	if size <= 0 {
		size = DefaultSize
	}
	size = min(max(size, MinSize), MaxSize)

	png, err := qrcode.Encode(url, e.level, size)
	if err != nil {
		return nil, fmt.Errorf("encode qr png: %w", err)
	}
	return png, nil
}

// Terminal returns the code drawn with half-block characters.
func (e *Encoder) Terminal(url string) (string, error) {
	code, err := qrcode.New(url, e.level)
	if err != nil {
		return "", fmt.Errorf("encode qr: %w", err)
	}
	return code.ToSmallString(false), nil
}
