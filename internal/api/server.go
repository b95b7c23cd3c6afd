// Package api exposes the dispatcher over HTTP.
package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/banshee-data/exoquest/internal/db"
	"github.com/banshee-data/exoquest/internal/dispatch"
	"github.com/banshee-data/exoquest/internal/monitoring"
)

// ANSI escape codes used by the access log.
const (
	colorCyan      = "\033[36m"
	colorReset     = "\033[0m"
	colorYellow    = "\033[33m"
	colorBoldGreen = "\033[1;32m"
	colorBoldRed   = "\033[1;31m"
)

// DefaultMaxUploadBytes caps an uploaded CSV when Options leaves it unset.
const DefaultMaxUploadBytes = 16 << 20

// Options configures a Server.
type Options struct {
	MaxUploadBytes int64
	// AllowedOrigins lists CORS origins; "*" allows any.
	AllowedOrigins []string
}

type Server struct {
	dispatcher *dispatch.Dispatcher
	// db is optional; without it runs are not recorded.
	db   *db.DB
	opts Options
}

func NewServer(d *dispatch.Dispatcher, database *db.DB, opts Options) *Server {
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = DefaultMaxUploadBytes
	}
	return &Server{dispatcher: d, db: database, opts: opts}
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Flush() {
	if flusher, ok := lrw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 400:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	default:
		return strconv.Itoa(statusCode)
	}
}

// LoggingMiddleware logs method, path, query, status, and duration. Text
// output is colourised; JSON output carries the same data as fields.
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		elapsed := float64(time.Since(start).Nanoseconds()) / 1e6

		if _, ok := monitoring.Logger().Formatter.(*logrus.JSONFormatter); ok {
			monitoring.With(logrus.Fields{
				"status":      lrw.statusCode,
				"method":      r.Method,
				"uri":         r.RequestURI,
				"duration_ms": elapsed,
			}).Info("request")
			return
		}
		monitoring.Logf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			elapsed,
		)
	})
}

// CORSMiddleware answers preflight requests and sets the allow headers for
// permitted origins.
func CORSMiddleware(allowed []string, next http.Handler) http.Handler {
	wildcard := false
	set := make(map[string]bool, len(allowed))
	for _, o := range allowed {
		if o == "*" {
			wildcard = true
		}
		set[strings.TrimRight(o, "/")] = true
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && (wildcard || set[origin]) {
			h := w.Header()
			if wildcard {
				h.Set("Access-Control-Allow-Origin", "*")
			} else {
				h.Set("Access-Control-Allow-Origin", origin)
				h.Add("Vary", "Origin")
			}
			h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			h.Set("Access-Control-Allow-Headers", "Content-Type")
		}
		if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/health", s.health)
	mux.HandleFunc("/api/predict", s.predict)
	mux.HandleFunc("/api/models", s.listModels)
	mux.HandleFunc("/api/runs", s.listRuns)
	mux.HandleFunc("/api/admin/reload", s.reload)
	mux.HandleFunc("/api/dashboard/stats", s.dashboardStats)
	mux.HandleFunc("/api/dashboard/chart", s.dashboardChart)
	mux.HandleFunc("/api/dashboard/accuracy.png", s.accuracyPlot)
	return mux
}

// Handler returns the API routes, plus the database debug routes when run
// history is enabled, wrapped in the access log and CORS middleware.
func (s *Server) Handler() (http.Handler, error) {
	mux := s.ServeMux()
	if s.db != nil {
		if err := s.db.AttachAdminRoutes(mux); err != nil {
			return nil, err
		}
	}
	return LoggingMiddleware(CORSMiddleware(s.opts.AllowedOrigins, mux)), nil
}
