package multipart

import (
	"bytes"
	"io"
	"mime/multipart"
	"testing"
)

func buildMultipartBody(t *testing.T, field, filename, content, contentType string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreatePart(map[string][]string{
		"Content-Disposition": {`form-data; name="` + field + `"; filename="` + filename + `"`},
		"Content-Type":        {contentType},
	})
	if err != nil {
		t.Fatal("unable to create part:", err)
	}
	if _, err := part.Write([]byte(content)); err != nil {
		t.Fatal("unable to write part content:", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatal("unable to close writer:", err)
	}
	return &buf, writer.FormDataContentType()
}

func TestIsMultipartFormData(t *testing.T) {
	cases := []struct {
		contentType string
		want        bool
	}{
		{"multipart/form-data; boundary=abc", true},
		{"application/octet-stream", false},
		{"", false},
	}
	for _, c := range cases {
		if got := IsMultipartFormData(c.contentType); got != c.want {
			t.Errorf("IsMultipartFormData(%q) = %v, want %v", c.contentType, got, c.want)
		}
	}
}

func TestFirstPartReturnsFirstPartPayload(t *testing.T) {
	body, contentType := buildMultipartBody(t, "file", "data.bin", "hello", "text/plain")

	header, part, err := FirstPart(body, contentType)
	if err != nil {
		t.Fatal("unexpected error:", err)
	}
	if got := header.Get("Content-Type"); got != "text/plain" {
		t.Fatalf("unexpected part content type: %q", got)
	}

	data, err := io.ReadAll(part)
	if err != nil {
		t.Fatal("unexpected error reading part:", err)
	}
	if string(data) != "hello" {
		t.Fatalf("unexpected part payload: %q", data)
	}
}

func TestFirstPartRejectsBadContentType(t *testing.T) {
	_, _, err := FirstPart(bytes.NewReader(nil), "not a content type;;;")
	if err == nil {
		t.Fatal("expected an error for a malformed content type")
	}
}

func TestDeclaredLength(t *testing.T) {
	header, _, err := FirstPart(buildMultipartBodyWithLength(t))
	if err != nil {
		t.Fatal("unexpected error:", err)
	}
	length, ok := DeclaredLength(header)
	if !ok {
		t.Fatal("expected a declared length")
	}
	if length != 5 {
		t.Fatalf("unexpected declared length: %d", length)
	}
}

func buildMultipartBodyWithLength(t *testing.T) (io.Reader, string) {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreatePart(map[string][]string{
		"Content-Disposition": {`form-data; name="file"; filename="data.bin"`},
		"Content-Type":        {"text/plain"},
		"Content-Length":      {"5"},
	})
	if err != nil {
		t.Fatal("unable to create part:", err)
	}
	if _, err := part.Write([]byte("hello")); err != nil {
		t.Fatal("unable to write part content:", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatal("unable to close writer:", err)
	}
	return &buf, writer.FormDataContentType()
}
