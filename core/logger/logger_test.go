package logger

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gormlogger "gorm.io/gorm/logger"
)

func TestAddRequestID(t *testing.T) {
	router := mux.NewRouter()
	AddRequestID(router)

	var seen string
	router.HandleFunc("/ping", func(w http.ResponseWriter, r *http.Request) {
		seen = RequestIDFromContext(r.Context())
	})

	// a new id is generated
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))
	require.NotEmpty(t, seen)
	assert.Equal(t, seen, rec.Header().Get(RequestIDHeader))

	// a well formed client id is kept
	clientID := "2b1e6f9c-7c1d-4b57-9f3e-0c5a1d1f1b11"
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(RequestIDHeader, clientID)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, clientID, seen)

	// garbage is replaced
	req = httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(RequestIDHeader, "not an id")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.NotEqual(t, "not an id", seen)
}

func TestContextWithLoggerIdentity(t *testing.T) {
	ctx, rlog := ContextWithLogger(context.Background())
	requestID := RequestIDFromContext(ctx)
	require.NotEmpty(t, requestID)
	assert.Equal(t, requestID, rlog.Data[requestIDLoggerKey])

	// the same logger is kept
	again, _ := ContextWithLogger(ctx)
	assert.Equal(t, requestID, RequestIDFromContext(again))

	ctx, _ = ContextWithLoggerIdentity(ctx, "user-1")
	assert.Equal(t, requestID, RequestIDFromContext(ctx))
	assert.Equal(t, "user-1", IdentityFromContext(ctx))

	assert.Empty(t, RequestIDFromContext(context.Background()))
	assert.NotNil(t, FromContext(nil))
}

func TestGormLogger(t *testing.T) {
	hook := test.NewGlobal()
	defer hook.Reset()
	logrus.SetLevel(logrus.DebugLevel)
	defer logrus.SetLevel(logrus.InfoLevel)

	ctx, _ := ContextWithLogger(context.Background())
	l := NewGormLogger(gormlogger.Warn)
	sql := func() (string, int64) { return "SELECT 1", 1 }

	l.Trace(ctx, time.Now(), sql, errors.New("boom"))
	require.Len(t, hook.AllEntries(), 1)
	assert.Equal(t, logrus.ErrorLevel, hook.LastEntry().Level)
	assert.Equal(t, RequestIDFromContext(ctx), hook.LastEntry().Data[requestIDLoggerKey])

	// fast statements are not logged at warn level
	hook.Reset()
	l.Trace(ctx, time.Now(), sql, nil)
	assert.Empty(t, hook.AllEntries())

	l.Trace(ctx, time.Now().Add(-time.Second), sql, nil)
	require.Len(t, hook.AllEntries(), 1)
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)

	hook.Reset()
	l.LogMode(gormlogger.Silent).Trace(ctx, time.Now(), sql, errors.New("boom"))
	assert.Empty(t, hook.AllEntries())
}
