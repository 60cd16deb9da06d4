package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/PaulBabatuyi/socialchat/internal/auth"
	"github.com/PaulBabatuyi/socialchat/internal/middleware"
)

var validSignup = map[string]string{
	"username":   "abc",
	"password":   "secret1",
	"email":      "a@b.com",
	"phone":      "+15551234567",
	"gender":     "Male",
	"dob":        "1990-01-01",
	"profession": "Engineer",
	"address":    "123 Main Street",
}

type apiResponse struct {
	Success  bool              `json:"success"`
	Message  string            `json:"message"`
	Token    string            `json:"token"`
	Exists   bool              `json:"exists"`
	Errors   []json.RawMessage `json:"errors"`
	Contact  map[string]any    `json:"contact"`
	Contacts []map[string]any  `json:"contacts"`
	Messages []map[string]any  `json:"messages"`
}

func (e *testEnv) do(t *testing.T, method, target string, body any, header http.Header) (*httptest.ResponseRecorder, apiResponse) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header[k] = v
	}
	rec := httptest.NewRecorder()
	e.srv.httpHandler(httpOptions{}).ServeHTTP(rec, req)

	var out apiResponse
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		_ = json.Unmarshal(rec.Body.Bytes(), &out)
	}
	return rec, out
}

func fieldParams(t *testing.T, raw []json.RawMessage) []string {
	t.Helper()
	var params []string
	for _, r := range raw {
		var fe struct {
			Param string `json:"param"`
		}
		require.NoError(t, json.Unmarshal(r, &fe))
		params = append(params, fe.Param)
	}
	return params
}

func bearer(token string) http.Header {
	return http.Header{"Authorization": []string{"Bearer " + token}}
}

func TestSignupThenLogin(t *testing.T) {
	env := newTestEnv(t)

	rec, resp := env.do(t, http.MethodPost, "/signup", validSignup, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.True(t, resp.Success)
	assert.NotContains(t, rec.Body.String(), "secret1")

	stored, err := env.users.GetUserByUsername(t.Context(), "abc")
	require.NoError(t, err)
	assert.Equal(t, "male", stored.Gender)
	assert.NotEqual(t, "secret1", stored.Password)
	assert.NoError(t, auth.CheckPassword(stored.Password, "secret1"))

	rec, resp = env.do(t, http.MethodPost, "/login", map[string]string{"username": "abc", "password": "secret1"}, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.True(t, resp.Success)
	require.NotEmpty(t, resp.Token)

	claims, err := env.jwt.VerifyToken(resp.Token)
	require.NoError(t, err)
	assert.Equal(t, stored.ID.Hex(), claims.UserID)
	assert.Equal(t, "abc", claims.Username)
}

func TestSignup_FormEncoded(t *testing.T) {
	env := newTestEnv(t)

	form := url.Values{}
	for k, v := range validSignup {
		form.Set(k, v)
	}
	req := httptest.NewRequest(http.MethodPost, "/signup", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	env.srv.httpHandler(httpOptions{}).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestSignup_DuplicateUsername(t *testing.T) {
	env := newTestEnv(t)
	rec, _ := env.do(t, http.MethodPost, "/signup", validSignup, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	other := map[string]string{}
	for k, v := range validSignup {
		other[k] = v
	}
	other["email"] = "other@b.com"
	other["phone"] = "+15559999999"

	rec, resp := env.do(t, http.MethodPost, "/signup", other, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.False(t, resp.Success)
	assert.Equal(t, "User already exists", resp.Message)
}

func TestSignup_ListsEveryInvalidField(t *testing.T) {
	env := newTestEnv(t)
	bad := map[string]string{
		"username": "ab", "password": "123", "email": "nope", "phone": "12",
		"gender": "robot", "dob": "soon", "profession": "x", "address": "short",
	}

	rec, resp := env.do(t, http.MethodPost, "/signup", bad, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.False(t, resp.Success)
	assert.ElementsMatch(t,
		[]string{"username", "password", "email", "phone", "gender", "dob", "profession", "address"},
		fieldParams(t, resp.Errors))
	assert.NotContains(t, rec.Body.String(), `"123"`)
}

func TestSignup_AddressNeedsTenCharacters(t *testing.T) {
	env := newTestEnv(t)
	body := map[string]string{}
	for k, v := range validSignup {
		body[k] = v
	}
	body["address"] = "12 Main"

	rec, resp := env.do(t, http.MethodPost, "/signup", body, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, []string{"address"}, fieldParams(t, resp.Errors))
}

func TestLogin_Failures(t *testing.T) {
	env := newTestEnv(t)
	rec, _ := env.do(t, http.MethodPost, "/signup", validSignup, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, resp := env.do(t, http.MethodPost, "/login", map[string]string{"username": "abc", "password": "wrong-pass"}, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Incorrect password", resp.Message)

	rec, resp = env.do(t, http.MethodPost, "/login", map[string]string{"username": "nobody", "password": "secret1"}, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "User does not exist", resp.Message)

	rec, resp = env.do(t, http.MethodPost, "/login", map[string]string{"username": "a", "password": "1"}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.ElementsMatch(t, []string{"username", "password"}, fieldParams(t, resp.Errors))
}

func TestCheckEmailAndResetPassword(t *testing.T) {
	env := newTestEnv(t)
	rec, _ := env.do(t, http.MethodPost, "/signup", validSignup, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	_, resp := env.do(t, http.MethodPost, "/check-email", map[string]string{"email": " A@B.com "}, nil)
	assert.True(t, resp.Exists)
	_, resp = env.do(t, http.MethodPost, "/check-email", map[string]string{"email": "x@y.com"}, nil)
	assert.False(t, resp.Exists)

	rec, resp = env.do(t, http.MethodPost, "/reset-password", map[string]string{"email": "x@y.com", "newPassword": "another1"}, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "User does not exist", resp.Message)

	rec, resp = env.do(t, http.MethodPost, "/reset-password", map[string]string{"email": "bad", "newPassword": "123"}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.ElementsMatch(t, []string{"email", "newPassword"}, fieldParams(t, resp.Errors))

	rec, resp = env.do(t, http.MethodPost, "/reset-password", map[string]string{"email": "a@b.com", "newPassword": "another1"}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Password reset successfully", resp.Message)

	rec, _ = env.do(t, http.MethodPost, "/login", map[string]string{"username": "abc", "password": "another1"}, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestGuard(t *testing.T) {
	env := newTestEnv(t)

	rec, _ := env.do(t, http.MethodGet, "/protected", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, _ = env.do(t, http.MethodGet, "/protected", nil, bearer("not-a-token"))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	foreign, _, err := auth.NewJWTManager("other-secret", time.Hour).GenerateToken(bson.NewObjectID(), "abc")
	require.NoError(t, err)
	rec, _ = env.do(t, http.MethodGet, "/protected", nil, bearer(foreign))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	expired, _, err := auth.NewJWTManager("test-secret", time.Hour).
		WithClock(func() time.Time { return time.Now().Add(-2 * time.Hour) }).
		GenerateToken(bson.NewObjectID(), "abc")
	require.NoError(t, err)
	rec, _ = env.do(t, http.MethodGet, "/protected", nil, bearer(expired))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	id := bson.NewObjectID()
	token, _, err := env.jwt.GenerateToken(id, "abc")
	require.NoError(t, err)
	rec, _ = env.do(t, http.MethodGet, "/protected", nil, bearer(token))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Message string `json:"message"`
		User    struct {
			ID       string `json:"id"`
			Username string `json:"username"`
		} `json:"user"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "This is a protected route", body.Message)
	assert.Equal(t, id.Hex(), body.User.ID)
}

func TestContactsCRUD(t *testing.T) {
	env := newTestEnv(t)
	contact := map[string]string{"username": "bob", "email": "Bob@Example.com", "phone": "+15551112222", "address": "1 Elm St"}

	rec, resp := env.do(t, http.MethodPost, "/contacts", contact, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.True(t, resp.Success)
	assert.Equal(t, "bob@example.com", resp.Contact["email"])
	id, _ := resp.Contact["_id"].(string)
	require.NotEmpty(t, id)

	rec, _ = env.do(t, http.MethodPost, "/contacts", contact, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	_, resp = env.do(t, http.MethodGet, "/contacts", nil, nil)
	assert.True(t, resp.Success)
	assert.Len(t, resp.Contacts, 1)

	contact["address"] = "42 Oak Avenue"
	rec, resp = env.do(t, http.MethodPut, "/contacts/"+id, contact, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "42 Oak Avenue", resp.Contact["address"])

	rec, resp = env.do(t, http.MethodPut, "/contacts/"+bson.NewObjectID().Hex(), contact, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.False(t, resp.Success)

	rec, _ = env.do(t, http.MethodPut, "/contacts/not-an-id", contact, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, resp = env.do(t, http.MethodDelete, "/contacts/"+id, nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Contact deleted", resp.Message)

	// deleting again is still a success
	rec, _ = env.do(t, http.MethodDelete, "/contacts/"+id, nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	_, resp = env.do(t, http.MethodGet, "/contacts", nil, nil)
	assert.Empty(t, resp.Contacts)
}

func TestContacts_ShortAddress(t *testing.T) {
	env := newTestEnv(t)
	rec, resp := env.do(t, http.MethodPost, "/contacts",
		map[string]string{"username": "bob", "email": "bob@example.com", "phone": "+15551112222", "address": "1 E"}, nil)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.False(t, resp.Success)
	assert.Contains(t, fieldParams(t, resp.Errors), "address")
}

func TestMessages_ConversationRoutes(t *testing.T) {
	env := newTestEnv(t)
	ctx := t.Context()
	_, _ = env.msgs.SaveMessage(ctx, "alice", "bob", "one")
	_, _ = env.msgs.SaveMessage(ctx, "bob", "alice", "two")
	_, _ = env.msgs.SaveMessage(ctx, "alice", "carol", "other")

	token, _, err := env.jwt.GenerateToken(bson.NewObjectID(), "alice")
	require.NoError(t, err)

	rec, resp := env.do(t, http.MethodGet, "/messages/bob", nil, bearer(token))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, resp.Messages, 2)
	assert.Equal(t, "one", resp.Messages[0]["content"])
	assert.Equal(t, "two", resp.Messages[1]["content"])

	rec, _ = env.do(t, http.MethodGet, "/messages/bob", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, resp = env.do(t, http.MethodGet, "/messages?contact=carol&username=alice", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, resp.Messages, 1)

	rec, resp = env.do(t, http.MethodGet, "/messages?contact=carol", nil, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Missing parameters", resp.Message)

	env.msgs.fail = true
	rec, resp = env.do(t, http.MethodGet, "/messages?contact=carol&username=alice", nil, nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Failed to fetch messages", resp.Message)
}

func TestRateLimitPerIP(t *testing.T) {
	env := newTestEnv(t)
	limiter := middleware.NewLimiterStore(2, 15*time.Minute, 0)
	h := env.srv.httpHandler(httpOptions{limiter: limiter})

	var last *httptest.ResponseRecorder
	for i := 0; i < 3; i++ {
		last = httptest.NewRecorder()
		h.ServeHTTP(last, httptest.NewRequest(http.MethodGet, "/contacts", nil))
	}
	assert.Equal(t, http.StatusTooManyRequests, last.Code)
	assert.Contains(t, last.Body.String(), middleware.RateLimitMessage)

	// another client is unaffected
	req := httptest.NewRequest(http.MethodGet, "/contacts", nil)
	req.RemoteAddr = "198.51.100.7:4000"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCORSAndSecurityHeadersOnEveryResponse(t *testing.T) {
	env := newTestEnv(t)
	rec, _ := env.do(t, http.MethodGet, "/does-not-exist", nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.NotEmpty(t, rec.Header().Get(middleware.RequestIDHeader))
}

func TestProductionRedirectsToHTTPS(t *testing.T) {
	env := newTestEnv(t)
	h := env.srv.httpHandler(httpOptions{production: true})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "http://social.example/contacts", nil))
	assert.Equal(t, http.StatusMovedPermanently, rec.Code)
	assert.Equal(t, "https://social.example/contacts", rec.Header().Get("Location"))
}
