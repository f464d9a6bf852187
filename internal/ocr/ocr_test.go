package ocr

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"testing"
)

func TestExtractPlainText(t *testing.T) {
	engine := NewEngine()
	t.Cleanup(func() { _ = engine.Close() })

	res, err := engine.Extract(context.Background(), []byte("meeting notes for Monday"), "text/plain", "notes.txt")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if res.Text != "meeting notes for Monday" {
		t.Fatalf("unexpected text %q", res.Text)
	}
	if res.Confidence != 0.99 {
		t.Fatalf("plain text confidence = %v, want 0.99", res.Confidence)
	}
}

func TestExtractEmptyPlainText(t *testing.T) {
	engine := NewEngine()
	_, err := engine.Extract(context.Background(), []byte("   \n"), "text/plain", "blank.txt")
	if !errors.Is(err, ErrNoText) {
		t.Fatalf("expected ErrNoText, got %v", err)
	}
}

func TestExtractUnsupportedType(t *testing.T) {
	engine := NewEngine()
	_, err := engine.Extract(context.Background(), []byte{0x00}, "video/mp4", "clip.mp4")
	if !errors.Is(err, ErrUnsupportedType) {
		t.Fatalf("expected ErrUnsupportedType, got %v", err)
	}
}

func TestExtractAfterClose(t *testing.T) {
	engine := NewEngine()
	if err := engine.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	_, err := engine.Extract(context.Background(), []byte("text"), "text/plain", "a.txt")
	if !errors.Is(err, ErrEngineClosed) {
		t.Fatalf("expected ErrEngineClosed, got %v", err)
	}
}

func TestExtractDOCX(t *testing.T) {
	docXML := `<?xml version="1.0"?><w:document xmlns:w="ns"><w:body><w:p><w:r><w:t>First paragraph of the uploaded document.</w:t></w:r></w:p><w:p><w:r><w:t>Second paragraph with the number 42.</w:t></w:r></w:p></w:body></w:document>`

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	f, err := zw.Create("word/document.xml")
	if err != nil {
		t.Fatalf("zip create: %v", err)
	}
	if _, err := f.Write([]byte(docXML)); err != nil {
		t.Fatalf("zip write: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("zip close: %v", err)
	}

	engine := NewEngine()
	res, err := engine.Extract(context.Background(), buf.Bytes(), "application/zip", "report.docx")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if !bytes.Contains([]byte(res.Text), []byte("First paragraph")) {
		t.Fatalf("missing paragraph text: %q", res.Text)
	}
	if !bytes.Contains([]byte(res.Text), []byte("Second paragraph")) {
		t.Fatalf("missing second paragraph: %q", res.Text)
	}
	if res.Confidence < 0.3 || res.Confidence > 0.95 {
		t.Fatalf("confidence out of range: %v", res.Confidence)
	}
}

func TestNormalizeMimeType(t *testing.T) {
	cases := []struct {
		mime     string
		fileName string
		want     string
	}{
		{"APPLICATION/PDF", "a.pdf", "application/pdf"},
		{"text/plain; charset=utf-8", "a.txt", "text/plain"},
		{"application/zip", "report.docx", mimeDOCX},
		{"application/zip", "archive.zip", "application/zip"},
		{"application/octet-stream", "notes.txt", "text/plain"},
		{"", "scan.png", "image/png"},
	}
	for _, tc := range cases {
		if got := NormalizeMimeType(tc.mime, tc.fileName, nil); got != tc.want {
			t.Fatalf("NormalizeMimeType(%q, %q) = %q, want %q", tc.mime, tc.fileName, got, tc.want)
		}
	}
}
