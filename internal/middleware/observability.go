package middleware

import (
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"zapcentral/internal/metrics"
	"zapcentral/internal/tracing"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// ObservabilityMiddleware adds tracing and request logging to HTTP requests
func ObservabilityMiddleware(logger *logrus.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, span := tracing.WithOtelTracing(r.Context(), "http_request")
			defer span.End()

			requestID := tracing.GenerateRequestID()
			ctx = tracing.WithRequestID(ctx, requestID)
			ctx = tracing.WithStartTime(ctx, time.Now())

			r = r.WithContext(ctx)

			tracing.AddSpanAttributes(ctx,
				attribute.String("http.method", r.Method),
				attribute.String("http.route", r.URL.Path),
				attribute.String("client.address", clientIP(r)),
			)

			wrapper := &responseWrapper{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
			}

			logger.WithFields(logrus.Fields{
				"request_id": requestID,
				"trace_id":   tracing.GetTraceID(ctx),
				"method":     r.Method,
				"url":        r.URL.Path,
				"remote_ip":  clientIP(r),
			}).Info("HTTP request started")

			metrics.IncrementCounter("http_requests_total", map[string]string{
				"method":   r.Method,
				"endpoint": r.URL.Path,
			}, "Total HTTP requests")

			next.ServeHTTP(wrapper, r)

			duration := tracing.Duration(ctx)

			tracing.AddSpanAttributes(ctx,
				attribute.Int("http.response.status_code", wrapper.statusCode),
				attribute.Int64("http.response.size", wrapper.responseSize),
				attribute.Int64("http.request.duration_ms", duration.Milliseconds()),
			)
			if wrapper.statusCode >= 400 {
				tracing.SetSpanStatus(ctx, codes.Error, fmt.Sprintf("HTTP %d", wrapper.statusCode))
			} else {
				tracing.SetSpanStatus(ctx, codes.Ok, "")
			}

			metrics.RecordTimer("http_request_duration", duration, map[string]string{
				"method":   r.Method,
				"endpoint": r.URL.Path,
			}, "HTTP request duration")
			metrics.IncrementCounter("http_responses_total", map[string]string{
				"method":      r.Method,
				"endpoint":    r.URL.Path,
				"status_code": strconv.Itoa(wrapper.statusCode),
			}, "HTTP responses by status code")

			logLevel := logrus.InfoLevel
			if wrapper.statusCode >= 400 && wrapper.statusCode < 500 {
				logLevel = logrus.WarnLevel
			} else if wrapper.statusCode >= 500 {
				logLevel = logrus.ErrorLevel
			}

			logger.WithFields(logrus.Fields{
				"request_id":  requestID,
				"trace_id":    tracing.GetTraceID(ctx),
				"method":      r.Method,
				"url":         r.URL.Path,
				"status_code": wrapper.statusCode,
				"duration_ms": duration.Milliseconds(),
				"size":        wrapper.responseSize,
			}).Log(logLevel, "HTTP request completed")
		})
	}
}

// responseWrapper captures the status code and response size
type responseWrapper struct {
	http.ResponseWriter
	statusCode   int
	responseSize int64
	wroteHeader  bool
}

func (rw *responseWrapper) WriteHeader(statusCode int) {
	if rw.wroteHeader {
		return
	}
	rw.statusCode = statusCode
	rw.wroteHeader = true
	rw.ResponseWriter.WriteHeader(statusCode)
}

func (rw *responseWrapper) Write(data []byte) (int, error) {
	if !rw.wroteHeader {
		rw.WriteHeader(http.StatusOK)
	}
	n, err := rw.ResponseWriter.Write(data)
	rw.responseSize += int64(n)
	return n, err
}

// clientIP resolves the originating address, honoring proxy headers.
func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		parts := strings.Split(forwarded, ",")
		return strings.TrimSpace(parts[0])
	}
	if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		return realIP
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
