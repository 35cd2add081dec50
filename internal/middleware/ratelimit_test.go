package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/hitoshi/astroline/internal/model"
)

func testRateLimiterConfig() RateLimiterConfig {
	return RateLimiterConfig{
		GeneralRate:     1,
		GeneralBurst:    2,
		WebhookRate:     1,
		WebhookBurst:    3,
		CleanupInterval: time.Minute,
	}
}

func requestAs(userID string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/api/quota/love_sketch", nil)
	return req.WithContext(ContextWithUserID(req.Context(), userID))
}

func webhookFrom(remoteAddr string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/cartpanda-webhook", nil)
	req.RemoteAddr = remoteAddr
	return req
}

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func TestRateLimitMiddleware_AllowsRequestsWithinBurst(t *testing.T) {
	rl := NewRateLimiter(testRateLimiterConfig())
	defer rl.Stop()

	handler := rl.GeneralMiddleware()(okHandler)

	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, requestAs("user-1"))
		if w.Code != http.StatusOK {
			t.Errorf("request %d: status = %d, want %d", i, w.Code, http.StatusOK)
		}
	}
}

func TestRateLimitMiddleware_Returns429WhenLimitExceeded(t *testing.T) {
	rl := NewRateLimiter(testRateLimiterConfig())
	defer rl.Stop()

	handler := rl.GeneralMiddleware()(okHandler)

	for i := 0; i < 2; i++ {
		handler.ServeHTTP(httptest.NewRecorder(), requestAs("user-1"))
	}

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, requestAs("user-1"))

	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusTooManyRequests)
	}
	retryAfter, err := strconv.Atoi(w.Header().Get("Retry-After"))
	if err != nil || retryAfter < 1 {
		t.Errorf("Retry-After = %q, want positive integer", w.Header().Get("Retry-After"))
	}

	var body map[string]any
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if body["code"] != model.ErrCodeRateLimitExceeded {
		t.Errorf("code = %v, want %q", body["code"], model.ErrCodeRateLimitExceeded)
	}
}

func TestRateLimitMiddleware_IsolatesUsers(t *testing.T) {
	rl := NewRateLimiter(testRateLimiterConfig())
	defer rl.Stop()

	handler := rl.GeneralMiddleware()(okHandler)

	for i := 0; i < 3; i++ {
		handler.ServeHTTP(httptest.NewRecorder(), requestAs("user-a"))
	}

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, requestAs("user-b"))
	if w.Code != http.StatusOK {
		t.Errorf("user-b status = %d, want %d", w.Code, http.StatusOK)
	}
	if rl.GeneralLimiterCount() != 2 {
		t.Errorf("GeneralLimiterCount = %d, want 2", rl.GeneralLimiterCount())
	}
}

func TestRateLimitMiddleware_NoUserID_Returns401(t *testing.T) {
	rl := NewRateLimiter(testRateLimiterConfig())
	defer rl.Stop()

	w := httptest.NewRecorder()
	rl.GeneralMiddleware()(okHandler).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
}

func TestWebhookRateLimit_PerIP(t *testing.T) {
	rl := NewRateLimiter(testRateLimiterConfig())
	defer rl.Stop()

	handler := rl.WebhookMiddleware()(okHandler)

	// 同一IPの別ポートは同じキーとして扱う
	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, webhookFrom("203.0.113.7:"+strconv.Itoa(40000+i)))
		if w.Code != http.StatusOK {
			t.Errorf("request %d: status = %d, want %d", i, w.Code, http.StatusOK)
		}
	}

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, webhookFrom("203.0.113.7:50000"))
	if w.Code != http.StatusTooManyRequests {
		t.Errorf("status = %d, want %d", w.Code, http.StatusTooManyRequests)
	}

	w = httptest.NewRecorder()
	handler.ServeHTTP(w, webhookFrom("198.51.100.1:1234"))
	if w.Code != http.StatusOK {
		t.Errorf("other IP status = %d, want %d", w.Code, http.StatusOK)
	}
	if rl.WebhookLimiterCount() != 2 {
		t.Errorf("WebhookLimiterCount = %d, want 2", rl.WebhookLimiterCount())
	}
}

func TestWebhookRateLimit_IndependentFromGeneral(t *testing.T) {
	rl := NewRateLimiter(testRateLimiterConfig())
	defer rl.Stop()

	general := rl.GeneralMiddleware()(okHandler)
	for i := 0; i < 3; i++ {
		general.ServeHTTP(httptest.NewRecorder(), requestAs("user-1"))
	}

	w := httptest.NewRecorder()
	rl.WebhookMiddleware()(okHandler).ServeHTTP(w, webhookFrom("192.0.2.1:1"))
	if w.Code != http.StatusOK {
		t.Errorf("webhook status = %d, want %d", w.Code, http.StatusOK)
	}
}

func TestRateLimiter_CleanupRemovesExpiredEntries(t *testing.T) {
	rl := NewRateLimiter(testRateLimiterConfig())
	defer rl.Stop()

	rl.GeneralMiddleware()(okHandler).ServeHTTP(httptest.NewRecorder(), requestAs("user-cleanup"))
	rl.WebhookMiddleware()(okHandler).ServeHTTP(httptest.NewRecorder(), webhookFrom("192.0.2.9:80"))

	if rl.GeneralLimiterCount() != 1 || rl.WebhookLimiterCount() != 1 {
		t.Fatal("expected one entry per limiter set")
	}

	// TTLはCleanupIntervalの2倍
	rl.cleanup(time.Now().Add(3 * time.Minute))

	if rl.GeneralLimiterCount() != 0 || rl.WebhookLimiterCount() != 0 {
		t.Errorf("entries after cleanup = (%d, %d), want (0, 0)", rl.GeneralLimiterCount(), rl.WebhookLimiterCount())
	}
}

func TestRateLimiter_StopIsIdempotent(t *testing.T) {
	rl := NewRateLimiter(testRateLimiterConfig())
	rl.Stop()
	rl.Stop()
}

func TestDefaultRateLimiterConfig(t *testing.T) {
	cfg := DefaultRateLimiterConfig()

	if cfg.GeneralRate != 2.0 { // 120/60
		t.Errorf("GeneralRate = %f, want 2.0", cfg.GeneralRate)
	}
	if cfg.GeneralBurst != 120 {
		t.Errorf("GeneralBurst = %d, want 120", cfg.GeneralBurst)
	}
	if cfg.WebhookRate != 1.0 { // 60/60
		t.Errorf("WebhookRate = %f, want 1.0", cfg.WebhookRate)
	}
	if cfg.WebhookBurst != 60 {
		t.Errorf("WebhookBurst = %d, want 60", cfg.WebhookBurst)
	}
}

func TestNewRateLimiterConfig_ClampsNonPositive(t *testing.T) {
	cfg := NewRateLimiterConfig(0, -5)
	if cfg.GeneralBurst != 1 || cfg.WebhookBurst != 1 {
		t.Errorf("bursts = (%d, %d), want (1, 1)", cfg.GeneralBurst, cfg.WebhookBurst)
	}
}
