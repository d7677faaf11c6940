package intake

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestDefaultKeyFunc_PrefersHeaderWhenSet(t *testing.T) {
	fn := DefaultKeyFunc(HeaderVisitorID, false)

	r := httptest.NewRequest(http.MethodPost, "http://example/api/problems", nil)
	r.RemoteAddr = "10.0.0.1:1234"
	r.Header.Set(HeaderVisitorID, " visitor-123 ")

	if got := fn(r); got != "visitor-123" {
		t.Fatalf("expected header key, got %q", got)
	}
}

func TestDefaultKeyFunc_EmptyHeaderFallsBack(t *testing.T) {
	fn := DefaultKeyFunc(HeaderVisitorID, false)

	r := httptest.NewRequest(http.MethodPost, "http://example/", nil)
	r.RemoteAddr = "10.0.0.1:1234"
	r.Header.Set(HeaderVisitorID, "   ")

	if got := fn(r); got != "10.0.0.1" {
		t.Fatalf("expected remote host, got %q", got)
	}
}

func TestDefaultKeyFunc_TrustXForwardedForUsesFirstIP(t *testing.T) {
	fn := DefaultKeyFunc("", true)

	r := httptest.NewRequest(http.MethodPost, "http://example/", nil)
	r.RemoteAddr = "10.0.0.9:5555"
	r.Header.Set("X-Forwarded-For", "1.2.3.4, 5.6.7.8")

	if got := fn(r); got != "1.2.3.4" {
		t.Fatalf("expected first XFF ip, got %q", got)
	}
}

func TestDefaultKeyFunc_IgnoresXForwardedForWhenUntrusted(t *testing.T) {
	fn := DefaultKeyFunc("", false)

	r := httptest.NewRequest(http.MethodPost, "http://example/", nil)
	r.RemoteAddr = "10.0.0.9:5555"
	r.Header.Set("X-Forwarded-For", "1.2.3.4")

	if got := fn(r); got != "10.0.0.9" {
		t.Fatalf("expected remote host, got %q", got)
	}
}

func TestDefaultKeyFunc_UnknownWithoutRemoteAddr(t *testing.T) {
	fn := DefaultKeyFunc("", false)

	r := httptest.NewRequest(http.MethodPost, "http://example/", nil)
	r.RemoteAddr = ""

	if got := fn(r); got != "unknown" {
		t.Fatalf("expected unknown, got %q", got)
	}
}
