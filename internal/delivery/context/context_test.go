package context

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
)

func TestRequestAndJobIDs(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, GetRequestIDFromContext(ctx))
	assert.Empty(t, GetJobIDFromContext(ctx))

	ctx = WithJobID(WithRequestID(ctx, "req-1"), "job-1")
	assert.Equal(t, "req-1", GetRequestIDFromContext(ctx))
	assert.Equal(t, "job-1", GetJobIDFromContext(ctx))
}

func TestGetRequestID_FallsBackToUUID(t *testing.T) {
	c := echo.New().NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())

	_, err := uuid.Parse(GetRequestID(c))
	assert.NoError(t, err)

	SetRequestID(c, "abc")
	assert.Equal(t, "abc", GetRequestID(c))
}

func TestLoggerScope(t *testing.T) {
	fallback := slog.Default()
	assert.Nil(t, GetLogger(context.Background()))
	assert.Same(t, fallback, GetLoggerOrDefault(context.Background(), fallback))

	scoped := fallback.With("k", "v")
	ctx := WithLogger(context.Background(), scoped)
	assert.Same(t, scoped, GetLoggerOrDefault(ctx, fallback))
}

func TestAuthPrincipal(t *testing.T) {
	c := echo.New().NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())

	_, ok := GetUserID(c)
	assert.False(t, ok)

	id := uuid.New()
	SetAuth(c, id, []string{"user", "admin"})

	got, ok := GetUserID(c)
	assert.True(t, ok)
	assert.Equal(t, id, got)
	assert.True(t, HasRole(c, "admin"))
	assert.False(t, HasRole(c, "agent"))
}
