// Package gateway wires together the Router (spec.md §4.2), the Control
// API (§4.8), and the HTTP server around them.
package gateway

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"webhookgw/internal/dispatch"
	"webhookgw/internal/history"
	"webhookgw/internal/payload"
	"webhookgw/internal/store"
	"webhookgw/internal/transform"
)

// Router serves the configured set of inbound webhook routes. It never
// caches a route table of its own: every request reads a fresh snapshot
// from the Config Store, so a route registered or removed through the
// Control API takes effect on the very next request without any explicit
// re-registration step (spec.md §4.2 "Re-registration", §9 "Live route
// re-registration").
type Router struct {
	store      *store.Store
	history    *history.Ring
	dispatcher *dispatch.Dispatcher
	log        *zap.Logger
}

// NewRouter creates a Router bound to the given Config Store, history
// ring, and dispatcher.
func NewRouter(s *store.Store, h *history.Ring, d *dispatch.Dispatcher, log *zap.Logger) *Router {
	if log == nil {
		log = zap.NewNop()
	}
	return &Router{store: s, history: h, dispatcher: d, log: log}
}

// ServeHTTP is the catch-all webhook dispatch handler described in
// spec.md §9: it looks up the request path against the live route table
// and runs admission, decode, transform, history, and dispatch in order.
func (rt *Router) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rc := NewRequestContext(r.Context(), rt.log)

	snapshot := rt.store.GetSnapshot()
	route, ok := snapshot.Routes[r.URL.Path]
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": fmt.Sprintf("no route registered for %s", r.URL.Path)})
		return
	}

	methods := route.Methods
	if len(methods) == 0 {
		methods = []string{"POST"}
	}
	if !containsMethod(methods, r.Method) {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"detail": fmt.Sprintf("method %s not allowed for %s", r.Method, r.URL.Path)})
		return
	}

	if detail, ok := admit(r, route); !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": detail})
		return
	}

	decoded := payload.Decode(r)

	transformed := transform.Apply(decoded, route.Preprocess, route.Template, snapshot.Templates, rc.Log)

	// Insert-if-missing: an inbound _route block is kept as it is; the
	// Router adds one only when the transformed payload has none
	// (spec.md §4.2).
	if _, exists := transformed["_route"]; !exists {
		transformed["_route"] = map[string]any{
			"path":      r.URL.Path,
			"method":    r.Method,
			"timestamp": time.Now().UnixMilli(),
		}
	}

	rt.history.Insert(transformed)

	rc.Log.Info("received message", zap.String("path", r.URL.Path), zap.String("method", r.Method))

	results := rt.dispatcher.Dispatch(rc, transformed, snapshot.Targets, route.TargetIDs)

	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "success",
		"message": fmt.Sprintf("消息已接收并通过路由 %s 处理", r.URL.Path),
		"results": results,
	})
}

// admit enforces required headers and query parameters (spec.md §4.2
// "Request admission"). It returns a diagnostic string naming the first
// offending header/param on failure.
func admit(r *http.Request, route store.Route) (string, bool) {
	for name, expected := range route.Headers {
		values := r.Header.Values(name)
		if len(values) == 0 {
			return fmt.Sprintf("缺少必要的请求头: %s", name), false
		}
		if expected != "" && values[0] != expected {
			return fmt.Sprintf("请求头 %s 的值不匹配", name), false
		}
	}

	query := r.URL.Query()
	for name, expected := range route.QueryParams {
		if !query.Has(name) {
			return fmt.Sprintf("缺少必要的查询参数: %s", name), false
		}
		if expected != "" && query.Get(name) != expected {
			return fmt.Sprintf("查询参数 %s 的值不匹配", name), false
		}
	}

	return "", true
}

func containsMethod(methods []string, method string) bool {
	for _, m := range methods {
		if strings.EqualFold(m, method) {
			return true
		}
	}
	return false
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.Encode(body)
}
