// Package server exposes the JSON HTTP API of the plant reminder service.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/pathakanu/waterit/internal/push"
	"github.com/pathakanu/waterit/internal/store"
	"github.com/pathakanu/waterit/internal/weather"
	"go.uber.org/zap"
)

// Pusher delivers a message to every subscribed browser.
type Pusher interface {
	Configured() bool
	DeliverToAll(ctx context.Context, msg push.Message) push.Result
}

// Forecaster returns the home page forecast for a city.
type Forecaster interface {
	Forecast(ctx context.Context, city string) (weather.Forecast, error)
}

// Options carries the collaborators and settings of a Server.
type Options struct {
	Store          *store.Store
	Push           Pusher
	Weather        Forecaster
	Clock          clock.Clock
	Location       *time.Location
	VAPIDPublicKey string
	DefaultCity    string
	UploadDir      string
	MaxUploadBytes int64
	Log            *zap.Logger
}

// Server handles API requests.
type Server struct {
	store          *store.Store
	push           Pusher
	weather        Forecaster
	clock          clock.Clock
	loc            *time.Location
	vapidPublicKey string
	defaultCity    string
	uploadDir      string
	maxUploadBytes int64
	log            *zap.Logger
}

// New returns a Server built from opts.
func New(opts Options) *Server {
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	return &Server{
		store:          opts.Store,
		push:           opts.Push,
		weather:        opts.Weather,
		clock:          opts.Clock,
		loc:            opts.Location,
		vapidPublicKey: opts.VAPIDPublicKey,
		defaultCity:    opts.DefaultCity,
		uploadDir:      opts.UploadDir,
		maxUploadBytes: opts.MaxUploadBytes,
		log:            opts.Log.Named("server"),
	}
}

// Handler returns the router with every route mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	r.Route("/push", func(r chi.Router) {
		r.Get("/vapid-public-key", s.handleVAPIDPublicKey)
		r.Post("/subscribe", s.handleSubscribe)
		r.Post("/unsubscribe", s.handleUnsubscribe)
		r.Post("/test", s.handlePushTest)
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/home", s.handleHome)
		r.Get("/settings", s.handleGetSettings)
		r.Post("/settings", s.handleSaveSettings)

		r.Get("/plants", s.handleListPlants)
		r.Post("/plants", s.handleCreatePlant)
		r.Get("/plants/{id}", s.handleGetPlant)
		r.Put("/plants/{id}", s.handleUpdatePlant)
		r.Delete("/plants/{id}", s.handleDeletePlant)
		r.Post("/plants/{id}/photos", s.handleUploadPhotos)
		r.Post("/plants/{id}/reminders", s.handleCreateReminder)

		r.Delete("/photos/{id}", s.handleDeletePhoto)

		r.Patch("/reminders/{id}", s.handleUpdateReminder)
		r.Delete("/reminders/{id}", s.handleDeleteReminder)
	})

	r.Handle("/uploads/*", http.StripPrefix("/uploads/", http.FileServer(http.Dir(s.uploadDir))))
	return r
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("took", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

type errorResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{OK: false, Error: msg})
}

// writeStoreError maps store failures onto responses.
func (s *Server) writeStoreError(w http.ResponseWriter, err error, what string) {
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, what+" not found.")
		return
	}
	s.log.Error("store error", zap.String("entity", what), zap.Error(err))
	writeError(w, http.StatusInternalServerError, "Internal error.")
}

func decodeJSON(r *http.Request, v interface{}) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

func idParam(r *http.Request) (uint, bool) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}
