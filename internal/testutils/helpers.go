package testutils

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/koopa0/system-design/restaurant-catalog/internal/config"
	"github.com/koopa0/system-design/restaurant-catalog/pkg/logger"
)

// MiniRedis 啟動行程內 Redis 並回傳連上它的客戶端
//
// 單元測試用：支援 hash / set / zset / list 全部指令，
// 並可透過 mr.SetError 注入故障。測試結束自動關閉。
func MiniRedis(t testing.TB) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{
		Addr:       mr.Addr(),
		MaxRetries: -1, // 故障注入時不重試，讓錯誤立即浮現
	})
	t.Cleanup(func() { _ = client.Close() })

	return mr, client
}

// DefaultTestConfig 返回測試用的預設配置
func DefaultTestConfig() *config.Config {
	cfg := config.Default()

	cfg.Server.Port = 8080
	cfg.Server.ReadTimeout = 5 * time.Second
	cfg.Server.WriteTimeout = 10 * time.Second

	cfg.Catalog.KeyPrefix = "test"
	cfg.Archive.BatchSize = 10
	cfg.Archive.FlushInterval = 20 * time.Millisecond

	cfg.Log.Level = "warn"
	cfg.Log.Format = "json"

	return cfg
}

// TestLogger 測試時減少日誌噪音
func TestLogger() *slog.Logger {
	return logger.Discard()
}

// MakeHTTPRequest 執行 HTTP 請求的輔助函數
func MakeHTTPRequest(t testing.TB, handler http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var bodyReader io.Reader
	if body != nil {
		if str, ok := body.(string); ok {
			bodyReader = strings.NewReader(str)
		} else {
			jsonBytes, err := json.Marshal(body)
			require.NoError(t, err)
			bodyReader = strings.NewReader(string(jsonBytes))
		}
	}

	req := httptest.NewRequest(method, path, bodyReader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, req)

	return recorder
}

// ParseJSONResponse 解析 JSON 響應
func ParseJSONResponse(t testing.TB, recorder *httptest.ResponseRecorder, target any) {
	t.Helper()

	err := json.NewDecoder(recorder.Body).Decode(target)
	require.NoError(t, err, "failed to parse JSON response")
}

// WaitForCondition 等待條件滿足
func WaitForCondition(t testing.TB, condition func() bool, timeout time.Duration, message string) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timeout waiting for condition: %s", message)
}
