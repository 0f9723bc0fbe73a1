package http

import (
	"net/http"
	"time"

	"github.com/DRSN-tech/product-vision/pkg/logger"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
)

const requestIDHeader = "X-Request-ID"

// requestLogger присваивает запросу X-Request-ID и пишет строку лога по завершении.
func requestLogger(log logger.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(requestIDHeader)
			if id == "" {
				id = uuid.NewString()
			}
			w.Header().Set(requestIDHeader, id)

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			started := time.Now()
			next.ServeHTTP(ww, r)

			log.Infof("request_id=%s method=%s path=%s status=%d bytes=%d duration=%s",
				id, r.Method, r.URL.Path, ww.Status(), ww.BytesWritten(), time.Since(started))
		})
	}
}
