// Package payload implements the content-type-directed body decoder
// described in spec.md §4.2.
package payload

import (
	"bytes"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"

	"github.com/bytedance/sonic"
)

// Decode parses an inbound HTTP body into a generic JSON-tree value keyed
// by content type, following spec.md §4.2's ordered, case-insensitive
// substring match. Decode never returns an error: unparseable or unknown
// bodies degrade to {"text": <body>} rather than failing the request
// (spec.md §7, "Body decode failure").
func Decode(r *http.Request) map[string]any {
	contentType := strings.ToLower(r.Header.Get("Content-Type"))
	body, _ := io.ReadAll(r.Body)

	switch {
	case strings.Contains(contentType, "application/json"):
		return decodeJSONOrText(body)

	case strings.Contains(contentType, "multipart/form-data"):
		return decodeMultipart(r.Header.Get("Content-Type"), body)

	case strings.Contains(contentType, "application/x-www-form-urlencoded"):
		return decodeURLEncoded(body)

	case strings.Contains(contentType, "text/plain"):
		return map[string]any{"text": string(body)}

	default:
		return decodeJSONOrText(body)
	}
}

func decodeJSONOrText(body []byte) map[string]any {
	var data map[string]any
	if err := sonic.Unmarshal(body, &data); err == nil {
		return data
	}
	return map[string]any{"text": string(body)}
}

func decodeURLEncoded(body []byte) map[string]any {
	values, err := url.ParseQuery(string(body))
	if err != nil || len(values) == 0 {
		return map[string]any{"text": string(body)}
	}
	out := map[string]any{}
	for k, v := range values {
		if len(v) > 0 {
			out[k] = v[0]
		}
	}
	return out
}

func decodeMultipart(contentTypeHeader string, body []byte) map[string]any {
	_, params, err := mime.ParseMediaType(contentTypeHeader)
	boundary := params["boundary"]
	if err != nil || boundary == "" {
		return map[string]any{"text": string(body)}
	}

	reader := multipart.NewReader(bytes.NewReader(body), boundary)
	out := map[string]any{}
	for {
		part, err := reader.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			break
		}
		value, _ := io.ReadAll(part)
		name := part.FormName()
		if name != "" {
			out[name] = string(value)
		}
		part.Close()
	}
	if len(out) == 0 {
		return map[string]any{"text": string(body)}
	}
	return out
}
