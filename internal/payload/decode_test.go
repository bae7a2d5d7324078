package payload

import (
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newRequest(t *testing.T, contentType, body string) *http.Request {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(body))
	req.Header.Set("Content-Type", contentType)
	return req
}

func TestDecodeJSON(t *testing.T) {
	req := newRequest(t, "application/json", `{"event_type":"trade","price":42.5}`)
	result := Decode(req)

	if result["event_type"] != "trade" {
		t.Errorf("expected event_type 'trade', got %#v", result)
	}
	if result["price"] != 42.5 {
		t.Errorf("expected price 42.5, got %#v", result["price"])
	}
}

func TestDecodeMalformedJSONFallsBackToText(t *testing.T) {
	req := newRequest(t, "application/json", `{not valid json`)
	result := Decode(req)

	if result["text"] != "{not valid json" {
		t.Errorf("expected text fallback, got %#v", result)
	}
}

func TestDecodeURLEncoded(t *testing.T) {
	req := newRequest(t, "application/x-www-form-urlencoded", "symbol=BTC&price=50000")
	result := Decode(req)

	if result["symbol"] != "BTC" {
		t.Errorf("expected symbol BTC, got %#v", result)
	}
	if result["price"] != "50000" {
		t.Errorf("expected price '50000', got %#v", result)
	}
}

func TestDecodeTextPlain(t *testing.T) {
	req := newRequest(t, "text/plain", "hello world")
	result := Decode(req)

	if result["text"] != "hello world" {
		t.Errorf("expected text passthrough, got %#v", result)
	}
}

func TestDecodeUnknownContentTypeTriesJSONThenText(t *testing.T) {
	req := newRequest(t, "application/octet-stream", `{"a":1}`)
	result := Decode(req)
	if result["a"] != float64(1) {
		t.Errorf("expected JSON decode attempt to succeed, got %#v", result)
	}

	req2 := newRequest(t, "application/octet-stream", "raw bytes")
	result2 := Decode(req2)
	if result2["text"] != "raw bytes" {
		t.Errorf("expected text fallback, got %#v", result2)
	}
}

func TestDecodeMultipartFormData(t *testing.T) {
	var buf strings.Builder
	writer := multipart.NewWriter(&buf)
	field, _ := writer.CreateFormField("symbol")
	field.Write([]byte("ETH"))
	writer.Close()

	req := newRequest(t, writer.FormDataContentType(), buf.String())
	result := Decode(req)

	if result["symbol"] != "ETH" {
		t.Errorf("expected symbol ETH, got %#v", result)
	}
}
