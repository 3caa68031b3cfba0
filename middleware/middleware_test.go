package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

var secret = []byte("middleware-secret")

func sign(t *testing.T, method jwt.SigningMethod, key interface{}, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)
	return token
}

func echoUserID(w http.ResponseWriter, r *http.Request) {
	id, err := GetUserIDFromContext(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	_, _ = w.Write([]byte(strconv.Itoa(id)))
}

func TestAuthenticate(t *testing.T) {
	handler := Authenticate(secret)(http.HandlerFunc(echoUserID))
	valid := sign(t, jwt.SigningMethodHS256, secret, jwt.MapClaims{
		"user_id": 7,
		"exp":     time.Now().Add(time.Hour).Unix(),
	})

	tests := []struct {
		name   string
		header string
		query  string
		status int
	}{
		{"bearer header", "Bearer " + valid, "", http.StatusOK},
		{"lowercase scheme", "bearer " + valid, "", http.StatusOK},
		{"query token", "", "?access_token=" + valid, http.StatusOK},
		{"missing", "", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic " + valid, "", http.StatusUnauthorized},
		{"garbage", "Bearer not-a-token", "", http.StatusUnauthorized},
		{"wrong secret", "Bearer " + sign(t, jwt.SigningMethodHS256, []byte("other"), jwt.MapClaims{"user_id": 7}), "", http.StatusUnauthorized},
		{"expired", "Bearer " + sign(t, jwt.SigningMethodHS256, secret, jwt.MapClaims{
			"user_id": 7,
			"exp":     time.Now().Add(-time.Minute).Unix(),
		}), "", http.StatusUnauthorized},
		{"alg none", "Bearer " + sign(t, jwt.SigningMethodNone, jwt.UnsafeAllowNoneSignatureType, jwt.MapClaims{"user_id": 7}), "", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/"+tt.query, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.status, rec.Code)
			if tt.status == http.StatusOK {
				assert.Equal(t, "7", rec.Body.String())
			} else {
				assert.Contains(t, rec.Body.String(), `"error"`)
				assert.NotEmpty(t, rec.Header().Get("WWW-Authenticate"))
			}
		})
	}
}

func TestGetUserIDFromContext(t *testing.T) {
	tests := []struct {
		name    string
		claims  interface{}
		want    int
		wantErr bool
	}{
		{"float claim", jwt.MapClaims{"user_id": float64(12)}, 12, false},
		{"string claim", jwt.MapClaims{"user_id": "5"}, 5, false},
		{"fractional", jwt.MapClaims{"user_id": 1.5}, 0, true},
		{"negative", jwt.MapClaims{"user_id": float64(-3)}, 0, true},
		{"missing claim", jwt.MapClaims{}, 0, true},
		{"bad type", jwt.MapClaims{"user_id": true}, 0, true},
		{"no claims", nil, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			if tt.claims != nil {
				ctx = context.WithValue(ctx, userContextKey, tt.claims)
			}
			got, err := GetUserIDFromContext(ctx)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	id, err := GetUserIDFromContext(ContextWithUserID(context.Background(), 42))
	require.NoError(t, err)
	assert.Equal(t, 42, id)
}

func TestRequestLogger(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	handler := chiMiddleware.RequestID(RequestLogger(zap.New(core))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte("ok"))
	})))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/clubs", nil))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/missing", nil))

	entries := logs.AllUntimed()
	require.Len(t, entries, 2)

	first := entries[0].ContextMap()
	assert.Equal(t, zapcore.InfoLevel, entries[0].Level)
	assert.Equal(t, "/clubs", first["path"])
	assert.Equal(t, int64(http.StatusOK), first["status"])
	assert.Equal(t, int64(2), first["bytes"])
	assert.NotEmpty(t, first["request_id"])

	assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
	assert.Equal(t, int64(http.StatusNotFound), entries[1].ContextMap()["status"])
}
