package tests

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"webhookgw/internal/dispatch"
	"webhookgw/internal/gateway"
	"webhookgw/internal/history"
	"webhookgw/internal/pkg/logger"
	"webhookgw/internal/store"
)

func newTestGateway(t *testing.T) *httptest.Server {
	t.Helper()

	log, _ := logger.New("info")
	configPath := filepath.Join(t.TempDir(), "webhook_config.json")

	configStore := store.New(configPath, log)
	if err := configStore.Load(); err != nil {
		t.Fatalf("加载配置失败: %v", err)
	}

	historyRing := history.New(100)
	dispatcher := dispatch.New(log)

	srv := gateway.NewServer(":0", configStore, historyRing, dispatcher, log)
	return httptest.NewServer(srv.Handler())
}

func TestHealthEndpoint(t *testing.T) {
	ts := newTestGateway(t)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatalf("请求失败: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("期望状态 200，得到 %d", resp.StatusCode)
	}
}

func TestDefaultWebhookRouteAcceptsPost(t *testing.T) {
	ts := newTestGateway(t)
	defer ts.Close()

	body, _ := json.Marshal(map[string]any{"event_type": "trade", "symbol": "BTC/USDT"})
	resp, err := http.Post(ts.URL+"/webhook", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("请求失败: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("期望状态 200，得到 %d", resp.StatusCode)
	}

	var result map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("解析响应失败: %v", err)
	}
	if result["status"] != "success" {
		t.Errorf("期望 status 'success'，得到 %v", result["status"])
	}
}

func TestDefaultWebhookRouteMethodNotAllowed(t *testing.T) {
	ts := newTestGateway(t)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/webhook")
	if err != nil {
		t.Fatalf("请求失败: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("期望状态 405，得到 %d", resp.StatusCode)
	}
}

func TestUnregisteredRouteNotFound(t *testing.T) {
	ts := newTestGateway(t)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/no-such-route")
	if err != nil {
		t.Fatalf("请求失败: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("期望状态 404，得到 %d", resp.StatusCode)
	}
}

func TestControlAPICreateAndListTargets(t *testing.T) {
	ts := newTestGateway(t)
	defer ts.Close()

	body, _ := json.Marshal(map[string]any{
		"name": "测试目标",
		"url":  "https://example.com/hook",
	})
	resp, err := http.Post(ts.URL+"/targets", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("创建目标失败: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("期望状态 200，得到 %d", resp.StatusCode)
	}

	listResp, err := http.Get(ts.URL + "/targets")
	if err != nil {
		t.Fatalf("获取目标列表失败: %v", err)
	}
	defer listResp.Body.Close()

	var result struct {
		Targets []map[string]any `json:"targets"`
	}
	if err := json.NewDecoder(listResp.Body).Decode(&result); err != nil {
		t.Fatalf("解析响应失败: %v", err)
	}
	if len(result.Targets) != 1 {
		t.Fatalf("期望 1 个目标，得到 %d", len(result.Targets))
	}
	// enabled is omitted from the document when unset; EnabledOrDefault
	// treats that as enabled, so the only failure mode worth catching
	// here is an explicit false sneaking in.
	if result.Targets[0]["enabled"] == false {
		t.Errorf("期望新目标默认启用，得到 %v", result.Targets[0]["enabled"])
	}
}

func TestControlAPIRouteCRUD(t *testing.T) {
	ts := newTestGateway(t)
	defer ts.Close()

	createBody, _ := json.Marshal(map[string]any{
		"path":       "/custom-hook",
		"target_ids": []string{},
	})
	createResp, err := http.Post(ts.URL+"/routes", "application/json", bytes.NewReader(createBody))
	if err != nil {
		t.Fatalf("创建路由失败: %v", err)
	}
	defer createResp.Body.Close()
	if createResp.StatusCode != http.StatusOK {
		t.Fatalf("期望状态 200，得到 %d", createResp.StatusCode)
	}

	updateBody, _ := json.Marshal(map[string]any{"description": "更新后的描述"})
	updateReq, _ := http.NewRequest(http.MethodPut, ts.URL+"/routes/custom-hook", bytes.NewReader(updateBody))
	updateResp, err := http.DefaultClient.Do(updateReq)
	if err != nil {
		t.Fatalf("更新路由失败: %v", err)
	}
	defer updateResp.Body.Close()
	if updateResp.StatusCode != http.StatusOK {
		t.Fatalf("期望状态 200，得到 %d", updateResp.StatusCode)
	}

	var updateResult struct {
		Route map[string]any `json:"route"`
	}
	if err := json.NewDecoder(updateResp.Body).Decode(&updateResult); err != nil {
		t.Fatalf("解析响应失败: %v", err)
	}
	if updateResult.Route["description"] != "更新后的描述" {
		t.Errorf("期望更新后的描述，得到 %v", updateResult.Route["description"])
	}

	deleteReq, _ := http.NewRequest(http.MethodDelete, ts.URL+"/routes/custom-hook", nil)
	deleteResp, err := http.DefaultClient.Do(deleteReq)
	if err != nil {
		t.Fatalf("删除路由失败: %v", err)
	}
	defer deleteResp.Body.Close()
	if deleteResp.StatusCode != http.StatusOK {
		t.Fatalf("期望状态 200，得到 %d", deleteResp.StatusCode)
	}

	missingReq, _ := http.NewRequest(http.MethodPut, ts.URL+"/routes/custom-hook", bytes.NewReader(updateBody))
	missingResp, err := http.DefaultClient.Do(missingReq)
	if err != nil {
		t.Fatalf("请求失败: %v", err)
	}
	defer missingResp.Body.Close()
	if missingResp.StatusCode != http.StatusNotFound {
		t.Errorf("期望删除后的路由更新返回 404，得到 %d", missingResp.StatusCode)
	}
}

func TestControlAPIUnknownTargetNotFound(t *testing.T) {
	ts := newTestGateway(t)
	defer ts.Close()

	req, _ := http.NewRequest(http.MethodDelete, ts.URL+"/targets/does-not-exist", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("请求失败: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("期望状态 404，得到 %d", resp.StatusCode)
	}
}

func TestMain(m *testing.M) {
	os.Exit(m.Run())
}
