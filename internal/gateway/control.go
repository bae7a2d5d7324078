package gateway

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"webhookgw/internal/dispatch"
	"webhookgw/internal/history"
	"webhookgw/internal/store"
)

// ControlAPI implements the CRUD-over-targets-and-routes, history query,
// and synthetic test dispatch endpoints described in spec.md §4.8. Every
// mutation persists via the Config Store.
type ControlAPI struct {
	store      *store.Store
	history    *history.Ring
	dispatcher *dispatch.Dispatcher
	log        *zap.Logger
}

// NewControlAPI creates a ControlAPI bound to the given collaborators.
func NewControlAPI(s *store.Store, h *history.Ring, d *dispatch.Dispatcher, log *zap.Logger) *ControlAPI {
	if log == nil {
		log = zap.NewNop()
	}
	return &ControlAPI{store: s, history: h, dispatcher: d, log: log}
}

// Register attaches the control endpoints to mux using Go's enhanced
// ServeMux patterns (method + path, including {wildcard} segments),
// registered ahead of the webhook catch-all so exact control paths always
// win regardless of registration order.
func (c *ControlAPI) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /targets", c.listTargets)
	mux.HandleFunc("POST /targets", c.createTarget)
	mux.HandleFunc("PUT /targets/{id}", c.updateTarget)
	mux.HandleFunc("DELETE /targets/{id}", c.deleteTarget)

	mux.HandleFunc("GET /routes", c.listRoutes)
	mux.HandleFunc("POST /routes", c.createRoute)
	mux.HandleFunc("PUT /routes/{path...}", c.updateRoute)
	mux.HandleFunc("DELETE /routes/{path...}", c.deleteRoute)

	mux.HandleFunc("GET /history", c.getHistory)
	mux.HandleFunc("POST /test", c.sendTest)
}

func (c *ControlAPI) listTargets(w http.ResponseWriter, r *http.Request) {
	doc := c.store.GetSnapshot()
	writeJSON(w, http.StatusOK, map[string]any{"targets": doc.Targets})
}

func (c *ControlAPI) createTarget(w http.ResponseWriter, r *http.Request) {
	var target store.Target
	if err := json.NewDecoder(r.Body).Decode(&target); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "invalid JSON body"})
		return
	}

	if target.Name == "" || target.URL == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "目标必须包含name和url字段"})
		return
	}
	if target.ID == "" {
		target.ID = store.GenerateTargetID()
	}

	c.store.Mutate(func(doc *store.Document) error {
		doc.Targets = append(doc.Targets, target)
		return nil
	})

	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "success",
		"message": fmt.Sprintf("已添加转发目标: %s", target.Name),
		"target":  target,
	})
}

func (c *ControlAPI) updateTarget(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var update map[string]any
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "invalid JSON body"})
		return
	}

	var updated *store.Target
	c.store.Mutate(func(doc *store.Document) error {
		for i := range doc.Targets {
			if doc.Targets[i].ID == id {
				mergeTarget(&doc.Targets[i], update)
				updated = &doc.Targets[i]
				return nil
			}
		}
		return nil
	})

	if updated == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": fmt.Sprintf("未找到ID为 %s 的转发目标", id)})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "success",
		"message": fmt.Sprintf("已更新转发目标: %s", updated.Name),
		"target":  *updated,
	})
}

func (c *ControlAPI) deleteTarget(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	found := false
	c.store.Mutate(func(doc *store.Document) error {
		out := doc.Targets[:0]
		for _, t := range doc.Targets {
			if t.ID == id {
				found = true
				continue
			}
			out = append(out, t)
		}
		doc.Targets = out
		return nil
	})

	if !found {
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": fmt.Sprintf("未找到ID为 %s 的转发目标", id)})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "success", "message": fmt.Sprintf("已删除转发目标 ID: %s", id)})
}

func (c *ControlAPI) listRoutes(w http.ResponseWriter, r *http.Request) {
	doc := c.store.GetSnapshot()
	writeJSON(w, http.StatusOK, map[string]any{"routes": doc.Routes})
}

func (c *ControlAPI) createRoute(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Path        string                `json:"path"`
		TargetIDs   []string              `json:"target_ids"`
		Description string                `json:"description"`
		Methods     []string              `json:"methods"`
		Headers     map[string]string     `json:"headers"`
		QueryParams map[string]string     `json:"query_params"`
		Template    string                `json:"template"`
		Preprocess  *store.PreprocessSpec `json:"preprocess"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "invalid JSON body"})
		return
	}
	if body.Path == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "路由必须包含path字段"})
		return
	}

	path := normalizeRoutePath(body.Path)
	methods := body.Methods
	if len(methods) == 0 {
		methods = []string{"POST"}
	}
	route := store.Route{
		TargetIDs:   orEmptySlice(body.TargetIDs),
		Description: orDefault(body.Description, fmt.Sprintf("路由 %s", path)),
		Methods:     methods,
		Headers:     orEmptyMap(body.Headers),
		QueryParams: orEmptyMap(body.QueryParams),
		Template:    body.Template,
		Preprocess:  body.Preprocess,
	}

	c.store.Mutate(func(doc *store.Document) error {
		doc.Routes[path] = route
		return nil
	})

	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "success",
		"message": fmt.Sprintf("已添加路由: %s", path),
		"route":   routeWithPath(path, route),
	})
}

func (c *ControlAPI) updateRoute(w http.ResponseWriter, r *http.Request) {
	path := normalizeRoutePath(r.PathValue("path"))
	var update map[string]any
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "invalid JSON body"})
		return
	}

	var updated *store.Route
	c.store.Mutate(func(doc *store.Document) error {
		route, ok := doc.Routes[path]
		if !ok {
			return nil
		}
		mergeRoute(&route, update)
		doc.Routes[path] = route
		updated = &route
		return nil
	})

	if updated == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": fmt.Sprintf("未找到路由: %s", path)})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "success",
		"message": fmt.Sprintf("已更新路由: %s", path),
		"route":   routeWithPath(path, *updated),
	})
}

func (c *ControlAPI) deleteRoute(w http.ResponseWriter, r *http.Request) {
	path := normalizeRoutePath(r.PathValue("path"))
	found := false
	c.store.Mutate(func(doc *store.Document) error {
		if _, ok := doc.Routes[path]; ok {
			delete(doc.Routes, path)
			found = true
		}
		return nil
	})

	if !found {
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": fmt.Sprintf("未找到路由: %s", path)})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "success", "message": fmt.Sprintf("已删除路由: %s", path)})
}

func (c *ControlAPI) getHistory(w http.ResponseWriter, r *http.Request) {
	limit := 10
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil {
			limit = parsed
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"history": c.history.Recent(limit)})
}

func (c *ControlAPI) sendTest(w http.ResponseWriter, r *http.Request) {
	testMessage := map[string]any{
		"event_type":  "test",
		"description": "这是一条测试消息",
		"timestamp":   time.Now().UnixMilli(),
		"data": map[string]any{
			"symbol":    "BTC/USDT",
			"operation": "测试",
			"price":     50000,
			"amount":    0.1,
		},
	}

	targetID := r.URL.Query().Get("target_id")
	routePath := r.URL.Query().Get("route_path")
	doc := c.store.GetSnapshot()

	switch {
	case targetID != "":
		var target *store.Target
		for i := range doc.Targets {
			if doc.Targets[i].ID == targetID {
				target = &doc.Targets[i]
				break
			}
		}
		if target == nil {
			writeJSON(w, http.StatusNotFound, map[string]string{"detail": fmt.Sprintf("未找到ID为 %s 的转发目标", targetID)})
			return
		}
		results := c.dispatcher.Dispatch(r.Context(), testMessage, doc.Targets, []string{target.ID})
		success := len(results) > 0 && results[0].Success
		status := "error"
		if success {
			status = "success"
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"status":  status,
			"message": fmt.Sprintf("测试消息已发送到: %s", target.Name),
			"result":  results,
		})

	case routePath != "":
		path := normalizeRoutePath(routePath)
		route, ok := doc.Routes[path]
		if !ok {
			writeJSON(w, http.StatusNotFound, map[string]string{"detail": fmt.Sprintf("未找到路由: %s", path)})
			return
		}
		c.history.Insert(testMessage)
		results := c.dispatcher.Dispatch(r.Context(), testMessage, doc.Targets, route.TargetIDs)
		writeJSON(w, http.StatusOK, map[string]any{
			"status":  "success",
			"message": fmt.Sprintf("测试消息已通过路由 %s 发送", path),
			"results": results,
		})

	default:
		c.history.Insert(testMessage)
		results := c.dispatcher.Dispatch(r.Context(), testMessage, doc.Targets, nil)
		writeJSON(w, http.StatusOK, map[string]any{
			"status":  "success",
			"message": "测试消息已发送到所有启用的目标",
			"results": results,
		})
	}
}

func normalizeRoutePath(path string) string {
	if !strings.HasPrefix(path, "/") {
		return "/" + path
	}
	return path
}

func orEmptySlice(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func orEmptyMap(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return m
}

func orDefault(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}

func routeWithPath(path string, route store.Route) map[string]any {
	return map[string]any{
		"path":         path,
		"target_ids":   route.TargetIDs,
		"description":  route.Description,
		"methods":      route.Methods,
		"headers":      route.Headers,
		"query_params": route.QueryParams,
		"template":     route.Template,
		"preprocess":   route.Preprocess,
	}
}

// mergeTarget applies a shallow JSON merge-update onto target, matching
// webhook_server.py's target.update(target_update) dict semantics.
func mergeTarget(target *store.Target, update map[string]any) {
	existing, _ := json.Marshal(target)
	var merged map[string]any
	json.Unmarshal(existing, &merged)
	for k, v := range update {
		merged[k] = v
	}
	reencoded, _ := json.Marshal(merged)
	var patched store.Target
	json.Unmarshal(reencoded, &patched)
	*target = patched
}

// mergeRoute applies a shallow JSON merge-update onto route, matching
// webhook_server.py's self.config["routes"][path].update(route_update).
func mergeRoute(route *store.Route, update map[string]any) {
	existing, _ := json.Marshal(route)
	var merged map[string]any
	json.Unmarshal(existing, &merged)
	for k, v := range update {
		merged[k] = v
	}
	reencoded, _ := json.Marshal(merged)
	var patched store.Route
	json.Unmarshal(reencoded, &patched)
	*route = patched
}
