package qr

import (
	"bytes"
	"errors"
	"image/png"
	"strings"
	"testing"

	"github.com/qrtrack/apiserver/internal/scan"
)

func decodePNG(t *testing.T, data []byte) string {
	t.Helper()

	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decode png: %v", err)
	}
	text, err := scan.NewQRDecoder().Decode(img)
	if err != nil {
		t.Fatalf("decode qr: %v", err)
	}
	return text
}

func TestRenderRoundTrip(t *testing.T) {
	id := NewID()

	data, err := Render(id, RenderOptions{})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if got := decodePNG(t, data); got != id {
		t.Fatalf("round trip mismatch: got %q want %q", got, id)
	}
}

func TestRenderWithLabelRoundTrip(t *testing.T) {
	id := NewID()

	data, err := Render(id, RenderOptions{Label: id})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if got := decodePNG(t, data); got != id {
		t.Fatalf("round trip mismatch with label: got %q want %q", got, id)
	}
}

func TestRenderDeterministic(t *testing.T) {
	const content = "https://app.example.com/scan/550e8400-e29b-41d4-a716-446655440000"

	first, err := Render(content, RenderOptions{Label: "inventory"})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	second, err := Render(content, RenderOptions{Label: "inventory"})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !bytes.Equal(first, second) {
		t.Fatal("identical input produced different rasters")
	}
}

func TestRenderCapacityExceeded(t *testing.T) {
	_, err := Render(strings.Repeat("x", 8000), RenderOptions{})
	if !errors.Is(err, ErrEncoding) {
		t.Fatalf("expected ErrEncoding, got %v", err)
	}
}

func TestRenderEmptyContent(t *testing.T) {
	if _, err := Render("", RenderOptions{}); !errors.Is(err, ErrEncoding) {
		t.Fatalf("expected ErrEncoding, got %v", err)
	}
}

func TestDataURLRoundTrip(t *testing.T) {
	data, err := Render("qr-data-url-test", RenderOptions{})
	if err != nil {
		t.Fatalf("render: %v", err)
	}

	decoded, err := DecodeDataURL(DataURL(data))
	if err != nil {
		t.Fatalf("decode data url: %v", err)
	}
	if !bytes.Equal(decoded, data) {
		t.Fatal("data url round trip mismatch")
	}

	if _, err := DecodeDataURL("https://example.com/not-a-data-url"); err == nil {
		t.Fatal("expected error for non data URL input")
	}
}
