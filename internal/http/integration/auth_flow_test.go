package integration_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/geocoder89/casehub/internal/auth"
	"github.com/geocoder89/casehub/internal/authn"
	"github.com/geocoder89/casehub/internal/config"
	apphttp "github.com/geocoder89/casehub/internal/http"
	"github.com/geocoder89/casehub/internal/http/handlers"
	"github.com/geocoder89/casehub/internal/notifications"
	"github.com/geocoder89/casehub/internal/observability"
	"github.com/geocoder89/casehub/internal/repo/memory"
	"github.com/geocoder89/casehub/internal/security"
	"github.com/geocoder89/casehub/internal/throttle"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
)

type testApp struct {
	router *gin.Engine
	users  *memory.UsersRepo
	svc    *authn.Service
	mr     *miniredis.Miniredis
}

func testConfig() config.Config {
	return config.Config{
		Env:                 "test",
		JWTSecret:           "test-secret-key",
		JWTVerifyTTLMinutes: 15,
		JWTSessionTTLDays:   7,
		OTPTTLMinutes:       10,
		OTPMaxAttempts:      5,
		PINMaxFailures:      3,
		PINLockoutMinute:    15,
		SendOTPPerMinute:    3,
		MaxBodyBytes:        1 << 16,
	}
}

func setupApp(t *testing.T) *testApp {
	t.Helper()
	gin.SetMode(gin.TestMode)

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	cfg := testConfig()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	reg := prometheus.NewRegistry()
	prom := observability.NewProm(reg)

	users := memory.NewUsersRepo()
	tokens := auth.NewManager(cfg.JWTSecret, cfg.VerifyTokenTTL(), cfg.SessionTokenTTL())
	limiter := throttle.NewRedisLimiter(rdb, "casehub-test")

	svc := authn.NewService(authn.Deps{
		Users:   users,
		OTPs:    memory.NewOTPsRepo(),
		Tokens:  tokens,
		Hasher:  security.NewHasher(cfg.PINBcryptCost),
		Sender:  notifications.NewLogSender(log, notifications.LogSenderConfig{}),
		Limiter: limiter,
		Events:  prom,
		Log:     log,
	}, authn.Options{
		OTPTTL:         cfg.OTPTTL(),
		OTPMaxAttempts: cfg.OTPMaxAttempts,
		PINMaxFailures: cfg.PINMaxFailures,
		PINLockout:     cfg.PINLockout(),
		RevealOTP:      true,
	})

	router := apphttp.NewRouter(apphttp.Deps{
		Log:     log,
		Cfg:     cfg,
		Prom:    prom,
		Metrics: reg,
		Tokens:  tokens,
		Auth:    svc,
		Users:   users,
		Cases:   memory.NewCasesRepo(),
		Limiter: limiter,
		Checks: map[string]handlers.Pinger{
			"redis": func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
		},
	})

	return &testApp{router: router, users: users, svc: svc, mr: mr}
}

func (a *testApp) do(t *testing.T, method, path string, body any, token string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()

	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		rd = bytes.NewReader(b)
	}

	req := httptest.NewRequest(method, path, rd)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.RemoteAddr = "203.0.113.7:4100"

	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)

	out := map[string]any{}
	if w.Body.Len() > 0 && strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
			t.Fatalf("decode %s %s: %v body=%s", method, path, err, w.Body.String())
		}
	}
	return w, out
}

// login runs send-otp, login and pin-login and returns the session token.
func (a *testApp) login(t *testing.T, mobile, pin string) string {
	t.Helper()

	w, body := a.do(t, http.MethodPost, "/auth/send-otp", map[string]string{"mobile": mobile}, "")
	if w.Code != http.StatusOK {
		t.Fatalf("send-otp = %d body=%v", w.Code, body)
	}
	code, _ := body["otp"].(string)
	if len(code) != 6 {
		t.Fatalf("otp not revealed in test env: %v", body)
	}

	w, body = a.do(t, http.MethodPost, "/auth/login", map[string]string{"mobile": mobile, "otp": code}, "")
	if w.Code != http.StatusOK {
		t.Fatalf("login = %d body=%v", w.Code, body)
	}
	temp, _ := body["tempToken"].(string)

	w, body = a.do(t, http.MethodPost, "/auth/pin-login", map[string]string{"pin": pin}, temp)
	if w.Code != http.StatusOK {
		t.Fatalf("pin-login = %d body=%v", w.Code, body)
	}
	token, _ := body["token"].(string)
	if token == "" {
		t.Fatalf("no session token: %v", body)
	}
	return token
}

func TestAuthFlow_FirstLoginThenChangePIN(t *testing.T) {
	app := setupApp(t)
	mobile := "9876543210"

	token := app.login(t, mobile, security.PlaceholderPIN)

	w, body := app.do(t, http.MethodGet, "/users/profile", nil, token)
	if w.Code != http.StatusOK {
		t.Fatalf("profile = %d", w.Code)
	}
	u := body["user"].(map[string]any)
	if u["mobile"] != mobile || u["role"] != "advocate" {
		t.Fatalf("provisioned user = %v", u)
	}

	w, _ = app.do(t, http.MethodPut, "/users/change-pin", map[string]string{"currentPIN": "0000", "newPIN": "4821"}, token)
	if w.Code != http.StatusOK {
		t.Fatalf("change-pin = %d", w.Code)
	}

	// the placeholder no longer works, the new PIN does
	app.login(t, mobile, "4821")
}

func TestAuthFlow_TokensAreNotInterchangeable(t *testing.T) {
	app := setupApp(t)

	_, body := app.do(t, http.MethodPost, "/auth/send-otp", map[string]string{"mobile": "9000000001"}, "")
	code := body["otp"].(string)
	_, body = app.do(t, http.MethodPost, "/auth/login", map[string]string{"mobile": "9000000001", "otp": code}, "")
	temp := body["tempToken"].(string)

	if w, _ := app.do(t, http.MethodGet, "/cases", nil, temp); w.Code != http.StatusUnauthorized {
		t.Fatalf("temp token on session route = %d", w.Code)
	}

	session := app.login(t, "9000000002", "0000")
	if w, _ := app.do(t, http.MethodPost, "/auth/pin-login", map[string]string{"pin": "0000"}, session); w.Code != http.StatusUnauthorized {
		t.Fatalf("session token on pin-login = %d", w.Code)
	}

	// the code was consumed by the first login
	if w, _ := app.do(t, http.MethodPost, "/auth/login", map[string]string{"mobile": "9000000001", "otp": code}, ""); w.Code != http.StatusBadRequest {
		t.Fatalf("replayed otp = %d", w.Code)
	}
}

func TestAuthFlow_PINLockoutSurvivesInRedis(t *testing.T) {
	app := setupApp(t)

	_, body := app.do(t, http.MethodPost, "/auth/send-otp", map[string]string{"mobile": "9111111111"}, "")
	_, body = app.do(t, http.MethodPost, "/auth/login", map[string]string{"mobile": "9111111111", "otp": body["otp"].(string)}, "")
	temp := body["tempToken"].(string)

	for i := 0; i < 3; i++ {
		if w, _ := app.do(t, http.MethodPost, "/auth/pin-login", map[string]string{"pin": "9999"}, temp); w.Code != http.StatusBadRequest {
			t.Fatalf("attempt %d = %d", i, w.Code)
		}
	}

	w, _ := app.do(t, http.MethodPost, "/auth/pin-login", map[string]string{"pin": "0000"}, temp)
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("locked out correct pin = %d", w.Code)
	}
	if w.Header().Get("Retry-After") == "" {
		t.Fatalf("missing Retry-After")
	}

	app.mr.FastForward(16 * time.Minute)

	if w, _ := app.do(t, http.MethodPost, "/auth/pin-login", map[string]string{"pin": "0000"}, temp); w.Code != http.StatusOK {
		t.Fatalf("after lockout window = %d", w.Code)
	}
}

func TestAuthFlow_ConcurrentPINGuessesAreBounded(t *testing.T) {
	app := setupApp(t)

	_, body := app.do(t, http.MethodPost, "/auth/send-otp", map[string]string{"mobile": "9222222222"}, "")
	_, body = app.do(t, http.MethodPost, "/auth/login", map[string]string{"mobile": "9222222222", "otp": body["otp"].(string)}, "")
	temp := body["tempToken"].(string)

	const attempts = 20
	var (
		mu      sync.Mutex
		codes   = map[int]int{}
		limited int
		wg      sync.WaitGroup
	)
	start := make(chan struct{})
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start

			req := httptest.NewRequest(http.MethodPost, "/auth/pin-login", strings.NewReader(`{"pin":"9999"}`))
			req.Header.Set("Content-Type", "application/json")
			req.Header.Set("Authorization", "Bearer "+temp)
			req.RemoteAddr = "203.0.113.7:4100"
			w := httptest.NewRecorder()
			app.router.ServeHTTP(w, req)

			mu.Lock()
			defer mu.Unlock()
			codes[w.Code]++
			if strings.Contains(w.Body.String(), `"rate_limited"`) {
				limited++
			}
		}()
	}
	close(start)
	wg.Wait()

	// three wrong PINs reach the service, everything else is refused up front
	if codes[http.StatusBadRequest] != 3 || codes[http.StatusTooManyRequests] != attempts-3 {
		t.Fatalf("status counts = %v", codes)
	}
	// the per-user limit on the route admits only ten of the twenty
	if limited != 10 {
		t.Fatalf("rate limited = %d", limited)
	}
}

func TestAuthFlow_SendOTPRateLimitedPerMobile(t *testing.T) {
	app := setupApp(t)

	for i := 0; i < 3; i++ {
		if w, _ := app.do(t, http.MethodPost, "/auth/send-otp", map[string]string{"mobile": "9222222222"}, ""); w.Code != http.StatusOK {
			t.Fatalf("send %d = %d", i, w.Code)
		}
	}

	w, body := app.do(t, http.MethodPost, "/auth/send-otp", map[string]string{"mobile": "9222222222"}, "")
	if w.Code != http.StatusTooManyRequests || body["code"] != "rate_limited" {
		t.Fatalf("4th send = %d body=%v", w.Code, body)
	}

	// another number from the same address is still allowed
	if w, _ := app.do(t, http.MethodPost, "/auth/send-otp", map[string]string{"mobile": "9333333333"}, ""); w.Code != http.StatusOK {
		t.Fatalf("other mobile = %d", w.Code)
	}
}

func TestCasesFlow(t *testing.T) {
	app := setupApp(t)
	token := app.login(t, "9444444444", "0000")

	create := map[string]any{
		"title":      "State v. Mehta",
		"client":     map[string]string{"name": "R. Mehta"},
		"court":      "Sessions Court",
		"caseType":   "criminal",
		"filingDate": "2026-02-01T00:00:00Z",
	}
	w, body := app.do(t, http.MethodPost, "/cases", create, token)
	if w.Code != http.StatusCreated {
		t.Fatalf("create = %d body=%v", w.Code, body)
	}
	c := body["case"].(map[string]any)
	id := c["id"].(string)
	if !strings.HasPrefix(c["caseNumber"].(string), "CR/0001/") {
		t.Fatalf("caseNumber = %v", c["caseNumber"])
	}

	w, body = app.do(t, http.MethodPost, "/cases/"+id+"/hearings", map[string]string{
		"date": "2026-03-10T00:00:00Z", "time": "10:30", "court": "Sessions Court",
	}, token)
	if w.Code != http.StatusOK {
		t.Fatalf("hearing = %d body=%v", w.Code, body)
	}
	hearings := body["case"].(map[string]any)["hearings"].([]any)
	hearingID := hearings[0].(map[string]any)["id"].(string)

	w, _ = app.do(t, http.MethodPut, "/cases/"+id+"/hearings/"+hearingID+"/status", map[string]string{"status": "adjourned"}, token)
	if w.Code != http.StatusOK {
		t.Fatalf("hearing status = %d", w.Code)
	}

	w, body = app.do(t, http.MethodPost, "/cases/"+id+"/notes", map[string]string{"content": "Bail hearing moved"}, token)
	if w.Code != http.StatusOK {
		t.Fatalf("note = %d", w.Code)
	}
	note := body["case"].(map[string]any)["notes"].([]any)[0].(map[string]any)
	if note["createdBy"] == "" {
		t.Fatalf("note has no author: %v", note)
	}

	w, body = app.do(t, http.MethodGet, "/cases?search=mehta&status=active", nil, token)
	if w.Code != http.StatusOK || body["total"] != float64(1) {
		t.Fatalf("list = %d body=%v", w.Code, body)
	}

	w, _ = app.do(t, http.MethodGet, "/cases/"+id, nil, token)
	if w.Header().Get("ETag") == "" {
		t.Fatalf("missing ETag")
	}
}

func TestAdminDeactivationTakesEffect(t *testing.T) {
	app := setupApp(t)

	created, err := app.svc.EnsureAdmin(context.Background(), "Admin", "9555555555", "2580")
	if err != nil || !created {
		t.Fatalf("seed admin: %v created=%v", err, created)
	}
	admin := app.login(t, "9555555555", "2580")
	member := app.login(t, "9666666666", "0000")

	w, body := app.do(t, http.MethodGet, "/users/profile", nil, member)
	if w.Code != http.StatusOK {
		t.Fatalf("member profile = %d", w.Code)
	}
	memberID := body["user"].(map[string]any)["id"].(string)

	if w, _ := app.do(t, http.MethodPut, "/users/"+memberID+"/status", map[string]bool{"isActive": false}, member); w.Code != http.StatusForbidden {
		t.Fatalf("non-admin status change = %d", w.Code)
	}

	if w, _ := app.do(t, http.MethodPut, "/users/"+memberID+"/status", map[string]bool{"isActive": false}, admin); w.Code != http.StatusOK {
		t.Fatalf("admin status change = %d", w.Code)
	}

	if w, _ := app.do(t, http.MethodGet, "/users/profile", nil, member); w.Code != http.StatusUnauthorized {
		t.Fatalf("deactivated session still accepted: %d", w.Code)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	app := setupApp(t)

	if w, _ := app.do(t, http.MethodGet, "/readyz", nil, ""); w.Code != http.StatusOK {
		t.Fatalf("readyz = %d", w.Code)
	}

	app.do(t, http.MethodPost, "/auth/send-otp", map[string]string{"mobile": "9777777777"}, "")

	w, _ := app.do(t, http.MethodGet, "/metrics", nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("metrics = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `casehub_auth_events_total{outcome="ok",step="send_otp"}`) {
		t.Fatalf("auth event not exported:\n%s", w.Body.String())
	}

	app.mr.Close()
	if w, _ := app.do(t, http.MethodGet, "/readyz", nil, ""); w.Code != http.StatusServiceUnavailable {
		t.Fatalf("readyz with redis down = %d", w.Code)
	}
}
