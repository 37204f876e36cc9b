package middleware

import (
	"bytes"
	"context"
	"net/http"

	"github.com/formhub/backend/internal/application/uow"
	"github.com/formhub/backend/internal/infrastructure/event"
	"github.com/formhub/backend/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RequestContextKey is the gin context key holding the *uow.RequestContext
const RequestContextKey = "uow_request_context"

// UnitOfWorkConfig holds unit-of-work middleware configuration
type UnitOfWorkConfig struct {
	Sessions uow.SessionFactory
	Bus      *event.EventBus
	Logger   *zap.Logger
	// SkipPaths are served without a session, e.g. health probes
	SkipPaths []string
}

// UnitOfWork binds one database session and one deferred event queue to
// every request. Mutating requests that succeed are committed and their
// events flushed before the response leaves the server. Failed requests
// are rolled back and their events dropped. The session is always closed.
func UnitOfWork(sessions uow.SessionFactory, bus *event.EventBus, logger *zap.Logger) gin.HandlerFunc {
	return UnitOfWorkWithConfig(UnitOfWorkConfig{
		Sessions: sessions,
		Bus:      bus,
		Logger:   logger,
	})
}

// UnitOfWorkWithConfig returns the unit-of-work middleware with custom configuration
func UnitOfWorkWithConfig(cfg UnitOfWorkConfig) gin.HandlerFunc {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	skip := make(map[string]struct{}, len(cfg.SkipPaths))
	for _, p := range cfg.SkipPaths {
		skip[p] = struct{}{}
	}

	return func(c *gin.Context) {
		method := c.Request.Method
		if method == http.MethodOptions || method == http.MethodHead {
			c.Next()
			return
		}
		if _, ok := skip[c.Request.URL.Path]; ok {
			c.Next()
			return
		}

		log := cfg.Logger.With(
			zap.String("request_id", c.GetString("request_id")),
			zap.String("method", method),
			zap.String("path", c.Request.URL.Path),
		)

		session, err := cfg.Sessions.OpenSession(c.Request.Context())
		if err != nil {
			log.Error("failed to open database session", zap.Error(err))
			c.AbortWithStatusJSON(http.StatusInternalServerError,
				dto.NewErrorResponseWithRequestID(dto.ErrCodeInternal, "Database unavailable", c.GetString("request_id")))
			return
		}
		events := event.NewDeferredEventBus(cfg.Bus)
		rc := uow.NewRequestContext(session, events)

		c.Set(RequestContextKey, rc)
		c.Request = c.Request.WithContext(uow.WithRequestContext(c.Request.Context(), rc))

		mutating := isMutating(method)
		var buffered *bufferedResponseWriter
		if mutating {
			buffered = newBufferedResponseWriter(c.Writer)
			c.Writer = buffered
		}

		defer func() {
			if err := session.Close(); err != nil {
				log.Error("failed to close database session", zap.Error(err))
			}
		}()
		defer func() {
			if r := recover(); r != nil {
				if buffered != nil {
					c.Writer = buffered.ResponseWriter
				}
				rollback(session, events, log)
				panic(r)
			}
		}()

		c.Next()

		status := c.Writer.Status()
		if len(c.Errors) > 0 || status >= http.StatusBadRequest {
			rollback(session, events, log)
			if buffered != nil {
				buffered.release()
				c.Writer = buffered.ResponseWriter
			}
			return
		}

		if !mutating {
			if n := events.Discard(); n > 0 {
				log.Warn("discarding events published by non-mutating request", zap.Int("events", n))
			}
			return
		}

		if session.IsActive() {
			if err := session.Commit(); err != nil {
				log.Error("failed to commit transaction", zap.Error(err))
				rollback(session, events, log)
				buffered.discard()
				c.Writer = buffered.ResponseWriter
				c.JSON(http.StatusInternalServerError,
					dto.NewErrorResponseWithRequestID(dto.ErrCodeInternal, "Failed to save changes", c.GetString("request_id")))
				return
			}
		}

		// Subscribers outlive a client that hangs up
		flushCtx := context.WithoutCancel(c.Request.Context())
		if err := events.Flush(flushCtx); err != nil {
			log.Error("failed to flush domain events", zap.Error(err))
		}

		buffered.release()
		c.Writer = buffered.ResponseWriter
	}
}

// GetRequestContext returns the unit of work bound to the request
func GetRequestContext(c *gin.Context) (*uow.RequestContext, bool) {
	v, ok := c.Get(RequestContextKey)
	if !ok {
		return nil, false
	}
	rc, ok := v.(*uow.RequestContext)
	return rc, ok && rc != nil
}

func isMutating(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodPatch:
		return true
	}
	return false
}

func rollback(session uow.Session, events uow.EventQueue, log *zap.Logger) {
	if n := events.Discard(); n > 0 {
		log.Info("discarded domain events after failed request", zap.Int("events", n))
	}
	if !session.IsActive() {
		return
	}
	if err := session.Rollback(); err != nil {
		log.Error("failed to roll back transaction", zap.Error(err))
	}
}

// bufferedResponseWriter holds status and body until the transaction is
// settled. Headers go straight to the wrapped writer's header map.
type bufferedResponseWriter struct {
	gin.ResponseWriter
	status int
	body   bytes.Buffer
	wrote  bool
}

func newBufferedResponseWriter(w gin.ResponseWriter) *bufferedResponseWriter {
	return &bufferedResponseWriter{ResponseWriter: w, status: http.StatusOK}
}

func (w *bufferedResponseWriter) WriteHeader(code int) {
	if code > 0 && !w.wrote {
		w.status = code
	}
}

func (w *bufferedResponseWriter) WriteHeaderNow() {
	w.wrote = true
}

func (w *bufferedResponseWriter) Write(data []byte) (int, error) {
	w.wrote = true
	return w.body.Write(data)
}

func (w *bufferedResponseWriter) WriteString(s string) (int, error) {
	w.wrote = true
	return w.body.WriteString(s)
}

func (w *bufferedResponseWriter) Status() int {
	return w.status
}

func (w *bufferedResponseWriter) Size() int {
	if !w.wrote {
		return -1
	}
	return w.body.Len()
}

func (w *bufferedResponseWriter) Written() bool {
	return w.wrote
}

// Flush is deferred to release
func (w *bufferedResponseWriter) Flush() {}

// release sends the held status and body to the wrapped writer
func (w *bufferedResponseWriter) release() {
	w.ResponseWriter.WriteHeader(w.status)
	if w.body.Len() > 0 {
		_, _ = w.ResponseWriter.Write(w.body.Bytes())
	}
}

// discard drops whatever the handler produced
func (w *bufferedResponseWriter) discard() {
	w.body.Reset()
	w.wrote = false
	w.status = http.StatusOK
	header := w.ResponseWriter.Header()
	header.Del("Content-Length")
	header.Del("Content-Disposition")
	header.Del("Content-Type")
}
