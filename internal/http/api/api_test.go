package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/feedcaster/feedcaster/internal/config"
	"github.com/feedcaster/feedcaster/internal/models"
	"github.com/feedcaster/feedcaster/internal/ratelimit"
	"github.com/feedcaster/feedcaster/internal/security"
	"github.com/feedcaster/feedcaster/internal/store"
	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func newTestRouter(t *testing.T, opts ratelimit.Options) (*gin.Engine, *gorm.DB, *ratelimit.Guard) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if errMigrate := db.AutoMigrate(&models.Feed{}, &models.Article{}, &models.Post{}, &models.Admin{}); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}

	if opts.PerSecond == 0 {
		opts = ratelimit.Options{PerSecond: 100, PerMinute: 500, Burst: 1000}
	}
	guard, errGuard := ratelimit.NewGuard(opts, nil)
	if errGuard != nil {
		t.Fatalf("new guard: %v", errGuard)
	}
	t.Cleanup(guard.Close)

	r := gin.New()
	RegisterRoutes(r, db, guard, store.New(db), config.JWTConfig{Secret: "test-secret", Expiry: time.Hour})
	return r, db, guard
}

func doRequest(r *gin.Engine, method, path, remoteAddr, token string, body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	req.RemoteAddr = remoteAddr
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHealthz(t *testing.T) {
	r, _, _ := newTestRouter(t, ratelimit.Options{})
	w := doRequest(r, http.MethodGet, "/healthz", "10.0.0.1:1234", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

func TestStatsEndpoint(t *testing.T) {
	r, _, _ := newTestRouter(t, ratelimit.Options{})
	w := doRequest(r, http.MethodGet, "/api/stats", "10.0.0.2:1234", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var payload map[string]any
	if errDecode := json.Unmarshal(w.Body.Bytes(), &payload); errDecode != nil {
		t.Fatalf("decode stats: %v", errDecode)
	}
	if _, ok := payload["protection"]; !ok {
		t.Fatal("expected protection section")
	}
	if _, ok := payload["content"]; !ok {
		t.Fatal("expected content section")
	}
	if _, errParse := time.Parse(time.RFC3339, payload["generated_at"].(string)); errParse != nil {
		t.Fatalf("expected RFC3339 generated_at, got %v", payload["generated_at"])
	}
}

func TestGuardMiddlewareDeniesBannedClient(t *testing.T) {
	r, _, guard := newTestRouter(t, ratelimit.Options{})
	if errBan := guard.BanIdentity("10.0.0.3", "manual", nil); errBan != nil {
		t.Fatalf("ban identity: %v", errBan)
	}

	w := doRequest(r, http.MethodGet, "/api/stats", "10.0.0.3:1234", "", nil)
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", w.Code)
	}
	if w.Header().Get("Retry-After") == "" {
		t.Fatal("expected Retry-After header")
	}
}

func TestGuardMiddlewareQuotaDenial(t *testing.T) {
	r, _, _ := newTestRouter(t, ratelimit.Options{PerSecond: 5, PerMinute: 500, Burst: 1000})

	for i := 0; i < 10; i++ {
		if w := doRequest(r, http.MethodGet, "/healthz", "10.0.0.4:1234", "", nil); w.Code != http.StatusOK {
			t.Fatalf("healthz request %d: %d", i, w.Code)
		}
	}
	// Healthz sits outside the guarded group; the quota is still clean.
	if w := doRequest(r, http.MethodGet, "/api/stats", "10.0.0.4:1234", "", nil); w.Code != http.StatusOK {
		t.Fatalf("expected stats allowed, got %d", w.Code)
	}

	for i := 0; i < 5; i++ {
		if w := doRequest(r, http.MethodGet, "/api/stats", "10.0.0.5:1234", "", nil); w.Code != http.StatusOK {
			t.Fatalf("stats request %d: %d", i, w.Code)
		}
	}
	w := doRequest(r, http.MethodGet, "/api/stats", "10.0.0.5:1234", "", nil)
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 after quota, got %d", w.Code)
	}
}

func TestLoginAndBanManagement(t *testing.T) {
	r, db, guard := newTestRouter(t, ratelimit.Options{})

	hash, errHash := security.HashPassword("hunter2")
	if errHash != nil {
		t.Fatalf("hash password: %v", errHash)
	}
	admin := models.Admin{Username: "admin", Password: hash, Active: true}
	if errCreate := db.Create(&admin).Error; errCreate != nil {
		t.Fatalf("create admin: %v", errCreate)
	}

	// Failing requests come from their own IPs: a 100% failure rate flags
	// the client suspicious, which would deny its follow-up requests.
	if w := doRequest(r, http.MethodGet, "/api/admin/bans", "10.0.1.2:1234", "", nil); w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}

	body, _ := json.Marshal(map[string]string{"username": "admin", "password": "wrong"})
	if w := doRequest(r, http.MethodPost, "/api/admin/login", "10.0.1.3:1234", "", body); w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for bad password, got %d", w.Code)
	}

	body, _ = json.Marshal(map[string]string{"username": "admin", "password": "hunter2"})
	w := doRequest(r, http.MethodPost, "/api/admin/login", "10.0.1.1:1234", "", body)
	if w.Code != http.StatusOK {
		t.Fatalf("expected login success, got %d: %s", w.Code, w.Body.String())
	}
	var loginPayload struct {
		Token string `json:"token"`
	}
	if errDecode := json.Unmarshal(w.Body.Bytes(), &loginPayload); errDecode != nil || loginPayload.Token == "" {
		t.Fatalf("expected token, got %s", w.Body.String())
	}

	// Ban a client, verify it is denied, then lift the ban.
	body, _ = json.Marshal(map[string]string{"identity": "10.9.9.9", "reason": "abuse"})
	if w := doRequest(r, http.MethodPost, "/api/admin/bans", "10.0.1.1:1234", loginPayload.Token, body); w.Code != http.StatusOK {
		t.Fatalf("expected ban created, got %d: %s", w.Code, w.Body.String())
	}
	if !guard.IsBanned("10.9.9.9") {
		t.Fatal("expected identity banned")
	}
	if w := doRequest(r, http.MethodGet, "/api/stats", "10.9.9.9:1234", "", nil); w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected banned client denied, got %d", w.Code)
	}

	w = doRequest(r, http.MethodGet, "/api/admin/bans", "10.0.1.1:1234", loginPayload.Token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected ban list, got %d", w.Code)
	}
	var banPayload struct {
		Bans []ratelimit.BanRecord `json:"bans"`
	}
	if errDecode := json.Unmarshal(w.Body.Bytes(), &banPayload); errDecode != nil {
		t.Fatalf("decode bans: %v", errDecode)
	}
	if len(banPayload.Bans) != 1 || banPayload.Bans[0].Identity != "10.9.9.9" {
		t.Fatalf("unexpected bans: %+v", banPayload.Bans)
	}

	if w := doRequest(r, http.MethodDelete, "/api/admin/bans/10.9.9.9", "10.0.1.1:1234", loginPayload.Token, nil); w.Code != http.StatusOK {
		t.Fatalf("expected unban, got %d", w.Code)
	}
	if guard.IsBanned("10.9.9.9") {
		t.Fatal("expected ban lifted")
	}
}
