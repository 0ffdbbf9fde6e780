package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"fitzone/api/handler"
	"fitzone/api/middleware"
	"fitzone/internal/entity"
	"fitzone/internal/repository"
	"fitzone/internal/service"
	"fitzone/internal/utils"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/time/rate"
)

type captureMailer struct {
	mu    sync.Mutex
	codes map[string]string
}

func (m *captureMailer) SendCode(ctx context.Context, email string, code string, purpose entity.CodePurpose) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.codes[string(purpose)+":"+email] = code
	return nil
}

func (m *captureMailer) code(purpose entity.CodePurpose, email string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.codes[string(purpose)+":"+email]
}

type reachable struct{}

func (reachable) IsDomainReachable(ctx context.Context, email string) bool {
	return utils.EmailDomain(email) != "nonexistent-domain-xyz.invalid"
}

type server struct {
	echo   *echo.Echo
	mailer *captureMailer
	users  repository.PrincipalRepository
	admins repository.PrincipalRepository
}

func newServer(t *testing.T) *server {
	t.Helper()
	s := &server{
		echo:   echo.New(),
		mailer: &captureMailer{codes: map[string]string{}},
		users:  repository.NewMemoryPrincipalRepository(),
		admins: repository.NewMemoryPrincipalRepository(),
	}
	logs := repository.NewMemorySecurityLog()
	hasher := service.BcryptPasswordHasher{Cost: bcrypt.MinCost}
	manager := &utils.JWTManager{Secret: []byte("routes-test"), Issuer: "fitzone"}
	registry := prometheus.NewRegistry()
	metrics := service.NewMetrics(registry)

	build := func(role entity.Role, repo repository.PrincipalRepository) *service.AuthService {
		engine := service.NewRecoveryEngine(role, repo, logs, reachable{}, s.mailer, hasher,
			service.NewMemoryCooldown(time.Minute, nil), service.RealClock{}, nil, metrics, service.RecoveryConfig{})
		return service.NewAuthService(engine, repo, logs, hasher, service.JWTAccessIssuer{Manager: manager}, service.RealClock{}, nil, metrics)
	}
	userService := build(entity.RoleUser, s.users)
	adminService := build(entity.RoleAdmin, s.admins)

	validate := validator.New()
	s.echo.Use(middleware.NewHTTPMetrics(registry).Middleware())
	router := NewRouter(
		s.echo,
		handler.NewAuthHandler(userService, validate, nil),
		handler.NewAuthHandler(adminService, validate, nil),
		handler.NewAdminHandler(userService, validate, nil),
		&handler.HealthHandler{Stores: []handler.Pinger{s.users, s.admins}},
		middleware.AuthMiddleware{JWT: manager},
		registry,
	)
	router.AuthRate = middleware.NewRateLimiter(rate.Inf, 1, 0)
	router.LoginRate = middleware.NewRateLimiter(rate.Inf, 1, 0)
	router.RegisterRoutes()
	return s
}

func (s *server) do(t *testing.T, method, path string, body any, token string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)

	var decoded map[string]any
	if rec.Body.Len() > 0 && rec.Header().Get(echo.HeaderContentType) != "" {
		_ = json.Unmarshal(rec.Body.Bytes(), &decoded)
	}
	return rec, decoded
}

func (s *server) registerAndVerify(t *testing.T, group, username, email, password string) string {
	t.Helper()
	rec, _ := s.do(t, http.MethodPost, "/api/"+group+"/register", map[string]any{
		"username": username, "email": email, "password": password,
	}, "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec, body := s.do(t, http.MethodPost, "/api/"+group+"/verify-otp", map[string]any{
		"email": email, "otp": s.mailer.code(entity.PurposeVerification, email),
	}, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	token, _ := body["access_token"].(string)
	require.NotEmpty(t, token)
	return token
}

func TestUserSignUpFlow(t *testing.T) {
	s := newServer(t)

	rec, body := s.do(t, http.MethodPost, "/api/auth/register", map[string]any{
		"username": "alice", "email": "alice@example.com", "password": "Str0ng!Pass",
		"gender": "female", "age": 29, "height": 168.5, "weight": 60, "fitness_goal": "endurance",
	}, "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	principalID := body["principal_id"].(string)

	rec, body = s.do(t, http.MethodPost, "/api/auth/login", map[string]any{
		"email": "alice@example.com", "password": "Str0ng!Pass",
	}, "")
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, principalID, body["principal_id"])
	assert.Equal(t, true, body["needs_verification"])

	rec, _ = s.do(t, http.MethodPost, "/api/auth/resend-otp", map[string]any{"email": "alice@example.com"}, "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	rec, body = s.do(t, http.MethodPost, "/api/auth/verify-otp", map[string]any{
		"email": "alice@example.com", "otp": "000000",
	}, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, service.ErrInvalidOrExpiredCode.Error(), body["message"])

	rec, body = s.do(t, http.MethodPost, "/api/auth/verify-otp", map[string]any{
		"email": "alice@example.com", "otp": s.mailer.code(entity.PurposeVerification, "alice@example.com"),
	}, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	token := body["access_token"].(string)
	principal := body["principal"].(map[string]any)
	assert.Equal(t, true, principal["is_verified"])
	assert.NotContains(t, rec.Body.String(), "password")
	assert.NotContains(t, rec.Body.String(), "verification_code")

	rec, body = s.do(t, http.MethodGet, "/api/auth/me", nil, token)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "alice", body["username"])
	assert.Equal(t, "endurance", body["fitness_goal"])
	assert.Equal(t, "user", body["role"])

	rec, _ = s.do(t, http.MethodPost, "/api/auth/request-otp", map[string]any{"email": "alice@example.com"}, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code, "already verified")
}

func TestPasswordRecoveryFlow(t *testing.T) {
	s := newServer(t)
	s.registerAndVerify(t, "auth", "bob", "bob@example.com", "OldPass1!")

	rec, body := s.do(t, http.MethodPost, "/api/auth/forgot-password", map[string]any{"email": "bob@example.com"}, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	principalID := body["principal_id"].(string)
	code := s.mailer.code(entity.PurposeReset, "bob@example.com")

	rec, _ = s.do(t, http.MethodPost, "/api/auth/verify-reset-otp", map[string]any{"principal_id": principalID, "otp": code}, "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, body = s.do(t, http.MethodPost, "/api/auth/reset-password", map[string]any{
		"principal_id": principalID, "otp": code, "new_password": "short", "confirm_password": "short",
	}, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, service.ErrWeakCredential.Error(), body["message"])

	rec, _ = s.do(t, http.MethodPost, "/api/auth/reset-password", map[string]any{
		"principal_id": principalID, "otp": code, "new_password": "NewPass1!", "confirm_password": "NewPass1!",
	}, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec, body = s.do(t, http.MethodPost, "/api/auth/verify-reset-otp", map[string]any{"principal_id": principalID, "otp": code}, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, service.ErrInvalidOrExpiredCode.Error(), body["message"])

	rec, _ = s.do(t, http.MethodPost, "/api/auth/login", map[string]any{"email": "bob@example.com", "password": "NewPass1!"}, "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = s.do(t, http.MethodPost, "/api/auth/forgot-password", map[string]any{"email": "ghost@example.com"}, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, body = s.do(t, http.MethodPost, "/api/auth/forgot-password", map[string]any{"email": "nobody@nonexistent-domain-xyz.invalid"}, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, service.ErrDomainUnreachable.Error(), body["message"])
}

func TestChangePasswordRequiresBearer(t *testing.T) {
	s := newServer(t)
	token := s.registerAndVerify(t, "auth", "carol", "carol@example.com", "OldPass1!")

	rec, _ := s.do(t, http.MethodPut, "/api/auth/change-password", map[string]any{
		"current_password": "OldPass1!", "new_password": "NewPass1!", "confirm_password": "NewPass1!",
	}, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, _ = s.do(t, http.MethodPut, "/api/auth/change-password", map[string]any{
		"current_password": "wrong", "new_password": "NewPass1!", "confirm_password": "NewPass1!",
	}, token)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, _ = s.do(t, http.MethodPut, "/api/auth/change-password", map[string]any{
		"current_password": "OldPass1!", "new_password": "NewPass1!", "confirm_password": "NewPass1!",
	}, token)
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestAdminGroupIsSeparate(t *testing.T) {
	s := newServer(t)
	userToken := s.registerAndVerify(t, "auth", "dave", "dave@example.com", "Str0ng!Pass")
	adminToken := s.registerAndVerify(t, "admin", "root", "root@example.com", "Adm1n!Pass")

	rec, _ := s.do(t, http.MethodPost, "/api/admin/login", map[string]any{"email": "dave@example.com", "password": "Str0ng!Pass"}, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code, "end-users cannot log in as admins")

	rec, _ = s.do(t, http.MethodGet, "/api/admin/users", nil, userToken)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec, _ = s.do(t, http.MethodGet, "/api/auth/me", nil, adminToken)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, body := s.do(t, http.MethodGet, "/api/admin/users?limit=10", nil, adminToken)
	require.Equal(t, http.StatusOK, rec.Code)
	items := body["items"].([]any)
	require.Len(t, items, 1)
	assert.Equal(t, "dave@example.com", items[0].(map[string]any)["email"])

	rec, body = s.do(t, http.MethodGet, "/api/admin/profile", nil, adminToken)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "admin", body["role"])
}

func TestRegisterConflictsAndValidation(t *testing.T) {
	s := newServer(t)
	s.registerAndVerify(t, "auth", "erin", "erin@example.com", "Str0ng!Pass")

	rec, _ := s.do(t, http.MethodPost, "/api/auth/register", map[string]any{
		"username": "erin2", "email": "erin@example.com", "password": "Str0ng!Pass",
	}, "")
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec, _ = s.do(t, http.MethodPost, "/api/auth/register", map[string]any{
		"username": "erin3", "email": "not-an-email", "password": "Str0ng!Pass",
	}, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = s.do(t, http.MethodPost, "/api/auth/register", map[string]any{
		"username": "erin4", "email": "erin4@example.com", "password": "Str0ng!Pass", "role": "admin",
	}, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code, "unknown fields are rejected")
}

func TestHealthAndMetrics(t *testing.T) {
	s := newServer(t)

	rec, body := s.do(t, http.MethodGet, "/api/health", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", body["status"])

	s.do(t, http.MethodPost, "/api/auth/login", map[string]any{"email": "x@example.com", "password": "nope"}, "")

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	metrics := httptest.NewRecorder()
	s.echo.ServeHTTP(metrics, req)
	require.Equal(t, http.StatusOK, metrics.Code)
	assert.Contains(t, metrics.Body.String(), "fitzone_http_requests_total")
	assert.Contains(t, metrics.Body.String(), "fitzone_logins_total")
}

func TestUserProfileRoutesAreOwnerOnly(t *testing.T) {
	s := newServer(t)
	token := s.registerAndVerify(t, "auth", "quinn", "quinn@example.com", "Str0ng!Pass")
	otherToken := s.registerAndVerify(t, "auth", "riley", "riley@example.com", "Str0ng!Pass")

	rec, me := s.do(t, http.MethodGet, "/api/auth/me", nil, token)
	require.Equal(t, http.StatusOK, rec.Code)
	id := me["id"].(string)

	rec, body := s.do(t, http.MethodPut, "/api/auth/users/"+id, map[string]any{
		"username": "quinn.runs", "weight": 70.5, "activity_level": "active",
	}, token)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "quinn.runs", body["username"])
	assert.Equal(t, "active", body["activity_level"])

	rec, body = s.do(t, http.MethodGet, "/api/auth/users/"+id, nil, token)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 70.5, body["weight"])

	rec, _ = s.do(t, http.MethodPut, "/api/auth/users/"+id, map[string]any{"username": "riley"}, token)
	assert.Equal(t, http.StatusConflict, rec.Code)
	rec, _ = s.do(t, http.MethodPut, "/api/auth/users/"+id, map[string]any{"is_verified": false}, token)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "end-users cannot set the verified flag")

	rec, _ = s.do(t, http.MethodGet, "/api/auth/users/"+id, nil, otherToken)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec, _ = s.do(t, http.MethodPut, "/api/auth/users/"+id, map[string]any{"username": "hijack"}, otherToken)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec, _ = s.do(t, http.MethodDelete, "/api/auth/users/"+id, nil, otherToken)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, _ = s.do(t, http.MethodDelete, "/api/auth/users/"+id, nil, token)
	require.Equal(t, http.StatusOK, rec.Code)
	rec, _ = s.do(t, http.MethodGet, "/api/auth/me", nil, token)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec, _ = s.do(t, http.MethodPost, "/api/auth/login", map[string]any{"email": "quinn@example.com", "password": "Str0ng!Pass"}, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAdminManagesUsersAndProfile(t *testing.T) {
	s := newServer(t)
	adminToken := s.registerAndVerify(t, "admin", "root", "root@example.com", "Adm1n!Pass")
	userToken := s.registerAndVerify(t, "auth", "sam", "sam@example.com", "Str0ng!Pass")
	_, me := s.do(t, http.MethodGet, "/api/auth/me", nil, userToken)
	userID := me["id"].(string)

	rec, body := s.do(t, http.MethodPut, "/api/admin/profile", map[string]any{"username": "superroot"}, adminToken)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "superroot", body["username"])
	rec, _ = s.do(t, http.MethodPut, "/api/admin/profile", map[string]any{"email": "x@example.com"}, adminToken)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = s.do(t, http.MethodPut, "/api/admin/users/"+userID, map[string]any{"password": "weak"}, adminToken)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec, body = s.do(t, http.MethodPut, "/api/admin/users/"+userID, map[string]any{"password": "Reset1!Pass", "username": "sam2"}, adminToken)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "sam2", body["username"])
	assert.NotContains(t, rec.Body.String(), "password")

	rec, _ = s.do(t, http.MethodPost, "/api/auth/login", map[string]any{"email": "sam@example.com", "password": "Reset1!Pass"}, "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = s.do(t, http.MethodDelete, "/api/admin/users/"+userID, nil, userToken)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec, _ = s.do(t, http.MethodDelete, "/api/admin/users/"+userID, nil, adminToken)
	require.Equal(t, http.StatusOK, rec.Code)
	rec, _ = s.do(t, http.MethodDelete, "/api/admin/users/"+userID, nil, adminToken)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec, _ = s.do(t, http.MethodPut, "/api/admin/users/"+userID, map[string]any{"username": "ghost"}, adminToken)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
