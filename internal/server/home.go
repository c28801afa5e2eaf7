package server

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/pathakanu/waterit/internal/store"
	"github.com/pathakanu/waterit/internal/weather"
	"go.uber.org/zap"
)

const latestRemindersOnHome = 5

type homeReminder struct {
	ID           uint       `json:"id"`
	PlantID      uint       `json:"plant_id"`
	PlantName    string     `json:"plant_name"`
	IntervalText string     `json:"interval_text"`
	TimeOfDay    string     `json:"time_of_day"`
	Active       bool       `json:"active"`
	NextRunAt    *time.Time `json:"next_run_at,omitempty"`
}

type homeResponse struct {
	City      string           `json:"city"`
	Weather   weather.Forecast `json:"weather"`
	Reminders []homeReminder   `json:"reminders"`
}

func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	city := strings.TrimSpace(r.URL.Query().Get("city"))
	if city == "" {
		saved, err := s.store.GetSetting(ctx, store.SettingDefaultCity, s.defaultCity)
		if err != nil {
			s.writeStoreError(w, err, "Setting")
			return
		}
		city = saved
	}

	forecast, err := s.weather.Forecast(ctx, city)
	if err != nil {
		s.log.Warn("forecast unavailable", zap.String("city", city), zap.Error(err))
	}

	latest, err := s.store.LatestReminders(ctx, latestRemindersOnHome)
	if err != nil {
		s.writeStoreError(w, err, "Reminders")
		return
	}

	resp := homeResponse{City: city, Weather: forecast, Reminders: []homeReminder{}}
	for _, rem := range latest {
		plant, err := s.store.GetPlant(ctx, rem.PlantID)
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			s.writeStoreError(w, err, "Plant")
			return
		}
		resp.Reminders = append(resp.Reminders, homeReminder{
			ID:           rem.ID,
			PlantID:      rem.PlantID,
			PlantName:    plant.Name,
			IntervalText: rem.IntervalText,
			TimeOfDay:    rem.TimeOfDay,
			Active:       rem.Active,
			NextRunAt:    rem.NextRunAt,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

type settingsPayload struct {
	DefaultCity string `json:"default_city"`
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	city, err := s.store.GetSetting(r.Context(), store.SettingDefaultCity, s.defaultCity)
	if err != nil {
		s.writeStoreError(w, err, "Setting")
		return
	}
	writeJSON(w, http.StatusOK, settingsPayload{DefaultCity: city})
}

func (s *Server) handleSaveSettings(w http.ResponseWriter, r *http.Request) {
	var req settingsPayload
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body.")
		return
	}
	city := strings.TrimSpace(req.DefaultCity)
	if city == "" {
		writeError(w, http.StatusBadRequest, "Default city is required.")
		return
	}
	if err := s.store.SetSetting(r.Context(), store.SettingDefaultCity, city); err != nil {
		s.writeStoreError(w, err, "Setting")
		return
	}
	writeJSON(w, http.StatusOK, settingsPayload{DefaultCity: city})
}
