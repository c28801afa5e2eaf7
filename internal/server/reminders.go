package server

import (
	"net/http"
	"strings"

	"github.com/pathakanu/waterit/internal/model"
	"github.com/pathakanu/waterit/internal/schedule"
	"go.uber.org/zap"
)

type reminderRequest struct {
	IntervalText string `json:"interval_text"`
	TimeOfDay    string `json:"time_of_day"`
}

func validateReminderText(interval, tod string) string {
	switch {
	case interval == "" || tod == "":
		return "Interval and time are required."
	case len(interval) > 80:
		return "Interval is too long."
	case len(tod) > 10:
		return "Time is too long."
	}
	return ""
}

func (s *Server) handleCreateReminder(w http.ResponseWriter, r *http.Request) {
	plantID, ok := idParam(r)
	if !ok {
		writeError(w, http.StatusNotFound, "Plant not found.")
		return
	}
	var req reminderRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body.")
		return
	}
	interval, tod := strings.TrimSpace(req.IntervalText), strings.TrimSpace(req.TimeOfDay)
	if msg := validateReminderText(interval, tod); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}
	if _, err := s.store.GetPlant(r.Context(), plantID); err != nil {
		s.writeStoreError(w, err, "Plant")
		return
	}

	now := s.clock.Now().In(s.loc)
	today := schedule.DateOf(now)
	next := schedule.NextRun(interval, tod, &today, now)

	rem := model.Reminder{
		PlantID:      plantID,
		IntervalText: interval,
		TimeOfDay:    tod,
		StartDate:    &today,
		Active:       true,
		NextRunAt:    &next,
	}
	if err := s.store.CreateReminder(r.Context(), &rem); err != nil {
		s.writeStoreError(w, err, "Reminder")
		return
	}
	s.log.Info("reminder created",
		zap.Uint("reminder_id", rem.ID),
		zap.Uint("plant_id", plantID),
		zap.Time("next_run_at", next),
	)
	writeJSON(w, http.StatusCreated, rem)
}

type reminderPatch struct {
	IntervalText *string `json:"interval_text"`
	TimeOfDay    *string `json:"time_of_day"`
	Active       *bool   `json:"active"`
}

// handleUpdateReminder edits the schedule text or pauses/resumes a reminder.
// Changing the schedule or resuming recomputes the next run from the start date.
func (s *Server) handleUpdateReminder(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		writeError(w, http.StatusNotFound, "Reminder not found.")
		return
	}
	var patch reminderPatch
	if err := decodeJSON(r, &patch); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body.")
		return
	}

	rem, err := s.store.GetReminder(r.Context(), id)
	if err != nil {
		s.writeStoreError(w, err, "Reminder")
		return
	}

	recompute := false
	if patch.IntervalText != nil {
		if v := strings.TrimSpace(*patch.IntervalText); v != rem.IntervalText {
			rem.IntervalText = v
			recompute = true
		}
	}
	if patch.TimeOfDay != nil {
		if v := strings.TrimSpace(*patch.TimeOfDay); v != rem.TimeOfDay {
			rem.TimeOfDay = v
			recompute = true
		}
	}
	if patch.Active != nil {
		if *patch.Active && !rem.Active {
			recompute = true
		}
		rem.Active = *patch.Active
	}
	if msg := validateReminderText(rem.IntervalText, rem.TimeOfDay); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	if recompute || rem.NextRunAt == nil {
		next := schedule.NextRun(rem.IntervalText, rem.TimeOfDay, rem.StartDate, s.clock.Now().In(s.loc))
		rem.NextRunAt = &next
	}
	if err := s.store.UpdateReminder(r.Context(), rem); err != nil {
		s.writeStoreError(w, err, "Reminder")
		return
	}
	writeJSON(w, http.StatusOK, rem)
}

func (s *Server) handleDeleteReminder(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		writeError(w, http.StatusNotFound, "Reminder not found.")
		return
	}
	if err := s.store.DeleteReminder(r.Context(), id); err != nil {
		s.writeStoreError(w, err, "Reminder")
		return
	}
	writeJSON(w, http.StatusOK, okResponse{OK: true})
}
