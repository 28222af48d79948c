package handlers_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/geocoder89/casehub/internal/auth"
	"github.com/geocoder89/casehub/internal/authn"
	"github.com/geocoder89/casehub/internal/domain/user"
	"github.com/geocoder89/casehub/internal/http/middlewares"
	"github.com/gin-gonic/gin"
)

// Make sure Gin does not spam the console during the test
func init() {
	gin.SetMode(gin.TestMode)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

var testTokens = auth.NewManager("handler-test-secret", 15*time.Minute, time.Hour)

func sessionHeader(t *testing.T, userID, role string) string {
	t.Helper()
	tok, err := testTokens.GenerateSessionToken(userID, "9876543210", role)
	if err != nil {
		t.Fatal(err)
	}
	return "Bearer " + tok
}

func verificationHeader(t *testing.T, userID string) string {
	t.Helper()
	tok, err := testTokens.GenerateVerificationToken(userID, "9876543210")
	if err != nil {
		t.Fatal(err)
	}
	return "Bearer " + tok
}

func testAuthMiddleware() *middlewares.AuthMiddleware {
	return middlewares.NewAuthMiddleware(testTokens, nil, time.Minute)
}

func doJSON(r http.Handler, method, path, body, authz string) *httptest.ResponseRecorder {
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if authz != "" {
		req.Header.Set("Authorization", authz)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &m); err != nil {
		t.Fatalf("decode: %v body=%s", err, w.Body.String())
	}
	return m
}

// Fake implementations of the handler dependencies

type fakeAuthService struct {
	issueFn  func(ctx context.Context, mobile string) (authn.IssueResult, error)
	verifyFn func(ctx context.Context, mobile, code string) (authn.VerifyResult, error)
	pinFn    func(ctx context.Context, userID, pin string) (authn.LoginResult, error)
}

func (f *fakeAuthService) IssueOTP(ctx context.Context, mobile string) (authn.IssueResult, error) {
	if f.issueFn != nil {
		return f.issueFn(ctx, mobile)
	}
	return authn.IssueResult{}, nil
}

func (f *fakeAuthService) VerifyOTP(ctx context.Context, mobile, code string) (authn.VerifyResult, error) {
	if f.verifyFn != nil {
		return f.verifyFn(ctx, mobile, code)
	}
	return authn.VerifyResult{}, nil
}

func (f *fakeAuthService) PINLogin(ctx context.Context, userID, pin string) (authn.LoginResult, error) {
	if f.pinFn != nil {
		return f.pinFn(ctx, userID, pin)
	}
	return authn.LoginResult{}, nil
}

type fakeUserStore struct {
	getFn       func(ctx context.Context, id string) (user.User, error)
	updateFn    func(ctx context.Context, id, name string) (user.User, error)
	setActiveFn func(ctx context.Context, id string, active bool) (user.User, error)
}

func (f *fakeUserStore) GetByID(ctx context.Context, id string) (user.User, error) {
	if f.getFn != nil {
		return f.getFn(ctx, id)
	}
	return user.User{}, user.ErrNotFound
}

func (f *fakeUserStore) UpdateName(ctx context.Context, id, name string) (user.User, error) {
	if f.updateFn != nil {
		return f.updateFn(ctx, id, name)
	}
	return user.User{ID: id, Name: name}, nil
}

func (f *fakeUserStore) SetActive(ctx context.Context, id string, active bool) (user.User, error) {
	if f.setActiveFn != nil {
		return f.setActiveFn(ctx, id, active)
	}
	return user.User{ID: id, IsActive: active}, nil
}

type fakeCredentials struct {
	changeFn   func(ctx context.Context, userID, current, next string) error
	registerFn func(ctx context.Context, name, mobile, pin, role string) (user.User, error)
}

func (f *fakeCredentials) ChangePIN(ctx context.Context, userID, current, next string) error {
	if f.changeFn != nil {
		return f.changeFn(ctx, userID, current, next)
	}
	return nil
}

func (f *fakeCredentials) RegisterUser(ctx context.Context, name, mobile, pin, role string) (user.User, error) {
	if f.registerFn != nil {
		return f.registerFn(ctx, name, mobile, pin, role)
	}
	return user.User{Name: name, Mobile: mobile, Role: role}, nil
}

var errStoreDown = errors.New("store unreachable")
