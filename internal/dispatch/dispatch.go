// Package dispatch implements the concurrent fan-out dispatcher and
// target-eligibility rules described in spec.md §4.4 and §4.5.
package dispatch

import (
	"bytes"
	"context"
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"go.uber.org/zap"

	"webhookgw/internal/format"
	"webhookgw/internal/store"
)

// Result is the per-target outcome of a dispatch.
type Result struct {
	TargetID   string `json:"target_id"`
	TargetName string `json:"target_name"`
	Success    bool   `json:"success"`
}

const defaultTimeout = 10 * time.Second

// Dispatcher fans a transformed message out to a set of targets
// concurrently, over a shared HTTP client (the teacher's
// internal/core/providers/universal.go and internal/core/providers/openai.go
// both build their own *http.Client; this gateway shares one across all
// outbound calls since every target speaks plain HTTP POST).
type Dispatcher struct {
	client *http.Client
	log    *zap.Logger
}

// New creates a Dispatcher backed by a shared connection pool.
func New(log *zap.Logger) *Dispatcher {
	if log == nil {
		log = zap.NewNop()
	}
	return &Dispatcher{
		client: &http.Client{},
		log:    log,
	}
}

// Dispatch selects eligible targets and delivers the message concurrently,
// preserving the catalogue's delivery-configuration order in the result
// slice. See spec.md §4.4 for the selection rules:
//   - non-empty targetIDs: deliver to each listed target that is enabled,
//     ignoring should_forward filters entirely.
//   - empty targetIDs: deliver to every enabled target that passes
//     shouldForward.
func (d *Dispatcher) Dispatch(ctx context.Context, message map[string]any, targets []store.Target, targetIDs []string) []Result {
	selected := d.selectTargets(message, targets, targetIDs)

	results := make([]Result, len(selected))
	done := make(chan int, len(selected))

	for i, target := range selected {
		i, target := i, target
		go func() {
			results[i] = Result{
				TargetID:   target.ID,
				TargetName: target.Name,
				Success:    d.deliver(ctx, message, target),
			}
			done <- i
		}()
	}
	for range selected {
		<-done
	}
	return results
}

func (d *Dispatcher) selectTargets(message map[string]any, targets []store.Target, targetIDs []string) []store.Target {
	if len(targetIDs) > 0 {
		wanted := make(map[string]bool, len(targetIDs))
		for _, id := range targetIDs {
			wanted[id] = true
		}
		out := make([]store.Target, 0, len(targetIDs))
		for _, target := range targets {
			if wanted[target.ID] && target.EnabledOrDefault() {
				out = append(out, target)
			}
		}
		return out
	}

	out := make([]store.Target, 0, len(targets))
	for _, target := range targets {
		if target.EnabledOrDefault() && ShouldForward(message, target) {
			out = append(out, target)
		}
	}
	return out
}

// ShouldForward implements spec.md §4.5's target eligibility rules,
// applied only in broadcast (empty target_ids) mode.
func ShouldForward(message map[string]any, target store.Target) bool {
	eventType, _ := message["event_type"].(string)

	if len(target.EventTypes) > 0 && !containsString(target.EventTypes, eventType) {
		return false
	}

	if (eventType == "trade" || eventType == "position_update") && len(target.Symbols) > 0 {
		if data, ok := message["data"].(map[string]any); ok {
			if symbol, ok := data["symbol"].(string); ok && symbol != "" {
				if !containsString(target.Symbols, symbol) {
					return false
				}
			}
		}
	}

	return true
}

func containsString(haystack []string, needle string) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}
	return false
}

// deliver POSTs the per-target formatted body. A target without a URL is
// logged and counted as a failure, never raised (spec.md §7). A 2xx
// response is success; anything else — non-2xx, network error, timeout —
// is a failure, logged with a status/body excerpt. No retry.
func (d *Dispatcher) deliver(ctx context.Context, message map[string]any, target store.Target) bool {
	if target.URL == "" {
		d.log.Warn("dispatch: target has no url configured", zap.String("target", target.Name))
		return false
	}

	body := format.ForTarget(message, target, d.log)
	encoded, err := sonic.Marshal(body)
	if err != nil {
		d.log.Error("dispatch: failed to marshal formatted body", zap.String("target", target.Name), zap.Error(err))
		return false
	}

	timeout := defaultTimeout
	if target.TimeoutSecs > 0 {
		timeout = time.Duration(target.TimeoutSecs) * time.Second
	}
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, target.URL, bytes.NewReader(encoded))
	if err != nil {
		d.log.Error("dispatch: failed to build request", zap.String("target", target.Name), zap.Error(err))
		return false
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range target.Headers {
		req.Header.Set(k, v)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		d.log.Error("dispatch: delivery failed", zap.String("target", target.Name), zap.Error(err))
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		d.log.Info("dispatch: delivered", zap.String("target", target.Name))
		return true
	}

	excerpt := make([]byte, 256)
	n, _ := resp.Body.Read(excerpt)
	d.log.Error("dispatch: non-2xx response",
		zap.String("target", target.Name),
		zap.Int("status", resp.StatusCode),
		zap.ByteString("body_excerpt", excerpt[:n]),
	)
	return false
}
