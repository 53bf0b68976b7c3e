package imaging

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/claimsight/assess-gateway/internal/domain/assessment"
)

func newTestValidator() *Validator {
	return NewValidator(4096, 4096)
}

// makeJPEG builds a minimal structurally valid JPEG: SOI, filler, EOI.
func makeJPEG(filler int) []byte {
	b := []byte{0xFF, 0xD8, 0xFF, 0xE0}
	b = append(b, bytes.Repeat([]byte{0x01}, filler)...)
	return append(b, 0xFF, 0xD9)
}

// makePNG builds a minimal PNG header with the given IHDR dimensions.
func makePNG(w, h uint32) []byte {
	b := append([]byte{}, pngSignature...)
	b = append(b, 0x00, 0x00, 0x00, 0x0D) // IHDR length
	b = append(b, []byte("IHDR")...)
	var dims [8]byte
	binary.BigEndian.PutUint32(dims[0:4], w)
	binary.BigEndian.PutUint32(dims[4:8], h)
	b = append(b, dims[:]...)
	// bit depth, color type, compression, filter, interlace
	return append(b, 8, 6, 0, 0, 0)
}

// makeWebP builds a RIFF container whose declared size matches the payload.
func makeWebP(payload int) []byte {
	b := []byte("RIFF")
	var size [4]byte
	binary.LittleEndian.PutUint32(size[:], uint32(payload))
	b = append(b, size[:]...)
	b = append(b, []byte("WEBP")...)
	return append(b, bytes.Repeat([]byte{0x02}, payload-4)...)
}

func kindOf(t *testing.T, err error) assessment.Kind {
	t.Helper()
	var ae *assessment.Error
	if !errors.As(err, &ae) {
		t.Fatalf("expected taxonomy error, got %v", err)
	}
	return ae.Kind
}

func TestDetectType(t *testing.T) {
	cases := []struct {
		name string
		buf  []byte
		want string
	}{
		{"jpeg", makeJPEG(16), "image/jpeg"},
		{"png", makePNG(10, 10), "image/png"},
		{"webp", makeWebP(32), "image/webp"},
		{"gif", []byte("GIF89a0000000000"), ""},
		{"empty", nil, ""},
		{"short", []byte{0xFF}, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := DetectType(tc.buf); got != tc.want {
				t.Errorf("DetectType = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestValidate_UnknownSignature(t *testing.T) {
	v := newTestValidator()
	// GIF bytes mislabeled as jpeg must fail on the sniff, not the cross-check.
	_, _, _, err := v.Validate([]byte("GIF89a0000000000"), "image/jpeg")
	if kindOf(t, err) != assessment.KindInvalidSignature {
		t.Errorf("expected invalid_signature, got %v", err)
	}
}

func TestValidate_TypeMismatch(t *testing.T) {
	v := newTestValidator()
	_, _, _, err := v.Validate(makePNG(10, 10), "image/jpeg")
	if kindOf(t, err) != assessment.KindTypeMismatch {
		t.Errorf("expected type_mismatch, got %v", err)
	}
}

func TestValidate_JPEG(t *testing.T) {
	v := newTestValidator()

	if _, _, _, err := v.Validate(makeJPEG(64), "image/jpeg"); err != nil {
		t.Fatalf("valid jpeg rejected: %v", err)
	}

	// EOI inside the trailing tolerance window is accepted.
	withTrailer := append(makeJPEG(64), bytes.Repeat([]byte{0x41}, 50)...)
	if _, _, _, err := v.Validate(withTrailer, "image/jpeg"); err != nil {
		t.Fatalf("jpeg with trailing metadata rejected: %v", err)
	}

	// EOI missing entirely.
	noEOI := []byte{0xFF, 0xD8, 0xFF, 0xE0}
	noEOI = append(noEOI, bytes.Repeat([]byte{0x01}, 64)...)
	_, _, _, err := v.Validate(noEOI, "image/jpeg")
	if kindOf(t, err) != assessment.KindStructureInvalid {
		t.Errorf("expected structure_invalid, got %v", err)
	}

	// EOI present but buried beyond the tolerance window.
	buried := append(makeJPEG(16), bytes.Repeat([]byte{0x41}, jpegEOIWindow+10)...)
	_, _, _, err = v.Validate(buried, "image/jpeg")
	if kindOf(t, err) != assessment.KindStructureInvalid {
		t.Errorf("expected structure_invalid for buried EOI, got %v", err)
	}
}

func TestValidate_PNG(t *testing.T) {
	v := newTestValidator()

	_, w, h, err := v.Validate(makePNG(800, 600), "image/png")
	if err != nil {
		t.Fatalf("valid png rejected: %v", err)
	}
	if w != 800 || h != 600 {
		t.Errorf("dimensions = %dx%d, want 800x600", w, h)
	}

	cases := []struct {
		name string
		buf  []byte
	}{
		{"zero width", makePNG(0, 600)},
		{"zero height", makePNG(800, 0)},
		{"oversized", makePNG(100000, 600)},
		{"missing IHDR", append(append([]byte{}, pngSignature...), []byte("xxxxAAAA00000000")...)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, _, err := v.Validate(tc.buf, "image/png")
			if kindOf(t, err) != assessment.KindStructureInvalid {
				t.Errorf("expected structure_invalid, got %v", err)
			}
		})
	}
}

func TestValidate_WebP(t *testing.T) {
	v := newTestValidator()

	if _, _, _, err := v.Validate(makeWebP(32), "image/webp"); err != nil {
		t.Fatalf("valid webp rejected: %v", err)
	}

	// Declared RIFF size no longer matches after appending junk.
	bad := append(makeWebP(32), 0x00, 0x01)
	_, _, _, err := v.Validate(bad, "image/webp")
	if kindOf(t, err) != assessment.KindStructureInvalid {
		t.Errorf("expected structure_invalid, got %v", err)
	}
}

func TestValidate_StripsTrailingNulls(t *testing.T) {
	v := newTestValidator()
	padded := append(makeJPEG(32), 0x00, 0x00, 0x00)
	got, _, _, err := v.Validate(padded, "image/jpeg")
	if err != nil {
		t.Fatalf("padded jpeg rejected: %v", err)
	}
	if len(got) != len(padded)-3 {
		t.Errorf("expected 3 null bytes stripped, got length %d (input %d)", len(got), len(padded))
	}
	if got[len(got)-1] != 0xD9 {
		t.Errorf("sanitized buffer should still end with EOI, got 0x%02X", got[len(got)-1])
	}
}
