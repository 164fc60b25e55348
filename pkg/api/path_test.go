package api

import "testing"

func TestCanonicalPath(t *testing.T) {
	cases := map[string]string{
		"/":           "/",
		"":            "/",
		"/foo":        "/foo",
		"/foo/":       "/foo",
		"/foo//bar":   "/foo/bar",
		"foo":         "/foo",
		"/mypath123/": "/mypath123",
	}
	for input, want := range cases {
		if got := CanonicalPath(input); got != want {
			t.Errorf("CanonicalPath(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestIsReserved(t *testing.T) {
	for _, p := range []string{"/", "/version", "/help"} {
		if !IsReserved(p) {
			t.Errorf("expected %q to be reserved", p)
		}
	}
	for _, p := range []string{"/mypath123", "/versions", "/helper"} {
		if IsReserved(p) {
			t.Errorf("expected %q not to be reserved", p)
		}
	}
}
