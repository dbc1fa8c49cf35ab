package app

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"robotics_club_services/redisstore"
)

const IdempotencyHeader = "Idempotency-Key"

const maxIdempotencyKeyLen = 128

type captureWriter struct {
	gin.ResponseWriter
	buf bytes.Buffer
}

func (w *captureWriter) Write(b []byte) (int, error) {
	w.buf.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *captureWriter) WriteString(s string) (int, error) {
	w.buf.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}

// Idempotent replays the stored response for a repeated Idempotency-Key.
// Only 2xx responses are stored; anything else releases the key so the
// client can retry.
func (a *App) Idempotent(scope string) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetHeader(IdempotencyHeader)
		if key == "" || a.Idempotency == nil {
			c.Next()
			return
		}
		if len(key) > maxIdempotencyKeyLen {
			Fail(c, http.StatusBadRequest, "invalid_idempotency_key", "Idempotency-Key is too long")
			return
		}
		// the key is per route target so one key cannot replay another device's response
		scoped := scope + ":" + c.Request.URL.Path

		stored, err := a.Idempotency.Claim(c.Request.Context(), scoped, key)
		switch {
		case errors.Is(err, redisstore.ErrInProgress):
			Fail(c, http.StatusConflict, "request_in_progress", "a request with this Idempotency-Key is still being processed")
			return
		case err != nil:
			a.Log.Warn("idempotency store unavailable", zap.Error(err))
			c.Next()
			return
		case stored != nil:
			c.Header("Idempotent-Replayed", "true")
			c.Data(stored.Status, "application/json; charset=utf-8", stored.Body)
			c.Abort()
			return
		}

		w := &captureWriter{ResponseWriter: c.Writer}
		c.Writer = w
		c.Next()

		// the request context may already be cancelled
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		status := w.Status()
		if status >= 200 && status < 300 {
			err = a.Idempotency.Save(ctx, scoped, key, redisstore.StoredResponse{Status: status, Body: w.buf.Bytes()})
		} else {
			err = a.Idempotency.Release(ctx, scoped, key)
		}
		if err != nil {
			a.Log.Warn("idempotency store write failed", zap.String("key", key), zap.Error(err))
		}
	}
}
