package imaging

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/claimsight/assess-gateway/internal/domain/assessment"
)

// Byte signatures for the allowed formats.
var pngSignature = []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}

// jpegEOIWindow is how far from the end an EOI marker may sit; some encoders
// append metadata after it.
const jpegEOIWindow = 100

// Validator performs magic-byte sniffing, declared-vs-detected type
// cross-checking and format-specific structural checks on decoded image
// bytes. It is a pure function over its inputs plus the dimension ceilings.
type Validator struct {
	maxWidth  int
	maxHeight int
}

func NewValidator(maxWidth, maxHeight int) *Validator {
	return &Validator{maxWidth: maxWidth, maxHeight: maxHeight}
}

// DetectType sniffs the image MIME type from magic bytes. Returns "" when
// no known signature matches.
func DetectType(b []byte) string {
	// JPEG: FF D8 FF
	if len(b) >= 3 && b[0] == 0xFF && b[1] == 0xD8 && b[2] == 0xFF {
		return "image/jpeg"
	}
	// PNG: fixed 8-byte signature
	if len(b) >= 8 && bytes.Equal(b[:8], pngSignature) {
		return "image/png"
	}
	// WebP: RIFF????WEBP
	if len(b) >= 12 && bytes.Equal(b[0:4], []byte("RIFF")) && bytes.Equal(b[8:12], []byte("WEBP")) {
		return "image/webp"
	}
	return ""
}

// Validate checks buf against its declared MIME type and returns the
// sanitized buffer plus lazily discovered dimensions (PNG only; 0 otherwise).
// Every failure is terminal for the request: the caller maps it straight to
// a 4xx and never retries.
func (v *Validator) Validate(buf []byte, declared string) (sanitized []byte, width, height int, err error) {
	detected := DetectType(buf)
	if detected == "" {
		return nil, 0, 0, assessment.Invalid(assessment.KindInvalidSignature,
			"Invalid image signature", "file does not match any supported image format")
	}
	if detected != declared {
		return nil, 0, 0, assessment.Invalid(assessment.KindTypeMismatch,
			"Image type mismatch", fmt.Sprintf("declared %s but detected %s", declared, detected))
	}

	switch detected {
	case "image/jpeg":
		err = checkJPEG(buf)
	case "image/png":
		width, height, err = v.checkPNG(buf)
	case "image/webp":
		err = checkWebP(buf)
	}
	if err != nil {
		return nil, 0, 0, err
	}

	// Strip trailing null padding; some malformed-file tricks rely on it.
	return bytes.TrimRight(buf, "\x00"), width, height, nil
}

func checkJPEG(b []byte) error {
	if len(b) < 4 {
		return structureErr("jpeg payload truncated")
	}
	// SOI already verified by the signature sniff; require an EOI marker at
	// the end or within the trailing tolerance window.
	tail := b
	if len(b) > jpegEOIWindow {
		tail = b[len(b)-jpegEOIWindow:]
	}
	if bytes.LastIndex(tail, []byte{0xFF, 0xD9}) < 0 {
		return structureErr("jpeg EOI marker missing")
	}
	return nil
}

func (v *Validator) checkPNG(b []byte) (int, int, error) {
	// 8-byte signature, 4-byte chunk length, then the IHDR type at offset 12
	// followed by big-endian width and height.
	if len(b) < 24 {
		return 0, 0, structureErr("png payload truncated")
	}
	if !bytes.Equal(b[12:16], []byte("IHDR")) {
		return 0, 0, structureErr("png IHDR chunk missing")
	}
	w := int(binary.BigEndian.Uint32(b[16:20]))
	h := int(binary.BigEndian.Uint32(b[20:24]))
	if w == 0 || h == 0 {
		return 0, 0, structureErr("png has zero dimensions")
	}
	if w > v.maxWidth || h > v.maxHeight {
		return 0, 0, structureErr(fmt.Sprintf("png dimensions %dx%d exceed %dx%d", w, h, v.maxWidth, v.maxHeight))
	}
	return w, h, nil
}

func checkWebP(b []byte) error {
	if len(b) < 20 {
		return structureErr("webp payload truncated")
	}
	declared := binary.LittleEndian.Uint32(b[4:8])
	if uint64(declared)+8 != uint64(len(b)) {
		return structureErr(fmt.Sprintf("webp RIFF size %d inconsistent with payload length %d", declared, len(b)))
	}
	return nil
}

func structureErr(details string) error {
	return assessment.Invalid(assessment.KindStructureInvalid, "Invalid image structure", details)
}
