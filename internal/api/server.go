// Package api exposes the training-data service over HTTP: document
// upload and validation, stored record retrieval, candidate scoring, and
// profile visualisations.
package api

import (
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/wormlab/untangle/internal/db"
	"github.com/wormlab/untangle/internal/wormfile"
)

// ANSI escape codes for request log colouring
const colorReset = "\033[0m"
const colorYellow = "\033[33m"
const colorBoldGreen = "\033[1;32m"
const colorBoldRed = "\033[1;31m"

// maxDocumentBytes bounds an uploaded training-data document. Real records
// top out in the tens of kilobytes; anything near this limit is garbage.
const maxDocumentBytes = 16 << 20

// Server serves the training-data API.
type Server struct {
	sets   *db.TrainingSetStore
	scores *db.ScoreLogStore
}

// NewServer creates a Server over the given database.
func NewServer(database *db.DB) *Server {
	return &Server{
		sets:   db.NewTrainingSetStore(database),
		scores: db.NewScoreLogStore(database),
	}
}

// ServeMux returns the route table for this server.
func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/api/schema", s.handleSchema)
	mux.HandleFunc("/api/training", s.handleTraining)
	mux.HandleFunc("/api/training/", s.handleTrainingItem)
	return mux
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.Write([]byte("ok\n"))
}

// handleSchema serves the embedded XSD for external validators.
func (s *Server) handleSchema(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/xml; charset=utf-8")
	w.Write([]byte(wormfile.SchemaXSD))
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

// LoggingMiddleware logs method, path, query, status, and duration
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		query := r.URL.RawQuery
		if query != "" {
			query = "?" + query
		}
		log.Printf(
			"[%s] %s %s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			r.URL.Path, query,
			time.Since(start).Milliseconds(),
		)
	})
}
