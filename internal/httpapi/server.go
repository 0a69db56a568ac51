package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/hamed0406/alertdebounce/internal/alert"
	apimw "github.com/hamed0406/alertdebounce/internal/httpapi/middleware"
)

const maxBody = 64 << 10

type Server struct {
	Logger *zap.Logger
	Alerts *alert.Debouncer
}

func NewServer(l *zap.Logger, d *alert.Debouncer) *Server {
	return &Server{Logger: l, Alerts: d}
}

// Router wires public reads and admin writes. An empty allowedOrigins list
// allows every origin.
func (s *Server) Router(keys apimw.Keys, allowedOrigins []string, pubRPM, pubBurst, admRPM, admBurst int) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(s.accessLog)
	if len(allowedOrigins) == 0 {
		r.Use(cors.AllowAll().Handler)
	} else {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: allowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Authorization", "Content-Type", "X-API-Key"},
			MaxAge:         300,
		}))
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Route("/api", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(apimw.RateLimit(pubRPM, pubBurst))
			r.Use(apimw.RequireAny(keys))
			r.Get("/state", s.handleState)
			r.Get("/stats", s.handleStats)
		})
		r.Group(func(r chi.Router) {
			r.Use(apimw.RateLimit(admRPM, admBurst))
			r.Use(apimw.RequireAdmin(keys))
			r.Post("/reports/down", s.handleReport(alert.StateDown))
			r.Post("/reports/up", s.handleReport(alert.StateUp))
			r.Post("/alerts", s.handleSendAlert)
			r.Post("/clear", s.handleClear)
		})
	})

	return r
}

type reportPayload struct {
	Entity  string `json:"entity"`
	Subject string `json:"subject"`
	Text    string `json:"text"`
}

type alertPayload struct {
	Text string `json:"text"`
}

func (s *Server) handleReport(state alert.State) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var p reportPayload
		if err := decode(w, r, &p); err != nil {
			writeError(w, http.StatusBadRequest, "bad payload")
			return
		}

		report := s.Alerts.ReportUp
		if state == alert.StateDown {
			report = s.Alerts.ReportDown
		}
		if err := report(r.Context(), p.Entity, p.Subject, p.Text); err != nil {
			if errors.Is(err, alert.ErrInvalidKey) {
				writeError(w, http.StatusBadRequest, "entity and subject are required")
				return
			}
			s.Logger.Error("report_failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "report failed")
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]string{
			"entity":  p.Entity,
			"subject": p.Subject,
			"state":   state.String(),
		})
	}
}

func (s *Server) handleSendAlert(w http.ResponseWriter, r *http.Request) {
	var p alertPayload
	if err := decode(w, r, &p); err != nil || p.Text == "" {
		writeError(w, http.StatusBadRequest, "bad payload")
		return
	}
	s.Alerts.SendAlert(r.Context(), p.Text)
	writeJSON(w, http.StatusAccepted, map[string]bool{"sent": true})
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	s.Alerts.Clear()
	writeJSON(w, http.StatusOK, map[string]bool{"cleared": true})
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	entity := r.URL.Query().Get("entity")
	subject := r.URL.Query().Get("subject")
	if entity == "" || subject == "" {
		writeError(w, http.StatusBadRequest, "entity and subject are required")
		return
	}
	st, ok := s.Alerts.State(entity, subject)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown key")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"entity":  entity,
		"subject": subject,
		"state":   st.String(),
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]int{"tracked_keys": s.Alerts.Len()})
}

func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.Logger.Debug("http_request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("took", time.Since(start)),
		)
	})
}

func decode(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
