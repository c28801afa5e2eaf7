package server

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/pathakanu/waterit/internal/model"
	"go.uber.org/zap"
)

var allowedPhotoExt = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".webp": true,
}

var errUnsupportedPhoto = errors.New("unsupported file type, use PNG/JPG/WEBP")

type plantRequest struct {
	Name           string `json:"name"`
	ScientificName string `json:"scientific_name"`
	Origin         string `json:"origin"`
	AgeMonths      *int   `json:"age_months"`
	Light          string `json:"light"`
	Water          string `json:"water"`
	Soil           string `json:"soil"`
	Notes          string `json:"notes"`
}

func (p plantRequest) validate() string {
	name := strings.TrimSpace(p.Name)
	switch {
	case name == "":
		return "Name is required."
	case len(name) > 120:
		return "Name is too long."
	case p.AgeMonths != nil && (*p.AgeMonths < 0 || *p.AgeMonths > 600):
		return "Age must be between 0 and 600 months."
	case len(p.Notes) > 4000:
		return "Notes are too long."
	}
	return ""
}

func (p plantRequest) apply(plant *model.Plant) {
	plant.Name = strings.TrimSpace(p.Name)
	plant.ScientificName = strings.TrimSpace(p.ScientificName)
	plant.Origin = strings.TrimSpace(p.Origin)
	plant.AgeMonths = p.AgeMonths
	plant.Light = strings.TrimSpace(p.Light)
	plant.Water = strings.TrimSpace(p.Water)
	plant.Soil = strings.TrimSpace(p.Soil)
	plant.Notes = p.Notes
}

func (s *Server) handleListPlants(w http.ResponseWriter, r *http.Request) {
	plants, err := s.store.ListPlants(r.Context())
	if err != nil {
		s.writeStoreError(w, err, "Plants")
		return
	}
	if plants == nil {
		plants = []model.Plant{}
	}
	writeJSON(w, http.StatusOK, plants)
}

func (s *Server) handleCreatePlant(w http.ResponseWriter, r *http.Request) {
	var req plantRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body.")
		return
	}
	if msg := req.validate(); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	var plant model.Plant
	req.apply(&plant)
	if err := s.store.CreatePlant(r.Context(), &plant); err != nil {
		s.writeStoreError(w, err, "Plant")
		return
	}
	s.log.Info("plant created", zap.Uint("plant_id", plant.ID), zap.String("name", plant.Name))
	writeJSON(w, http.StatusCreated, plant)
}

func (s *Server) handleGetPlant(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		writeError(w, http.StatusNotFound, "Plant not found.")
		return
	}
	plant, err := s.store.GetPlantDetail(r.Context(), id)
	if err != nil {
		s.writeStoreError(w, err, "Plant")
		return
	}
	writeJSON(w, http.StatusOK, plant)
}

func (s *Server) handleUpdatePlant(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		writeError(w, http.StatusNotFound, "Plant not found.")
		return
	}
	var req plantRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body.")
		return
	}
	if msg := req.validate(); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	plant := model.Plant{ID: id}
	req.apply(&plant)
	if err := s.store.UpdatePlant(r.Context(), &plant); err != nil {
		s.writeStoreError(w, err, "Plant")
		return
	}

	updated, err := s.store.GetPlantDetail(r.Context(), id)
	if err != nil {
		s.writeStoreError(w, err, "Plant")
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeletePlant(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		writeError(w, http.StatusNotFound, "Plant not found.")
		return
	}
	files, err := s.store.DeletePlant(r.Context(), id)
	if err != nil {
		s.writeStoreError(w, err, "Plant")
		return
	}
	for _, f := range files {
		s.removeUpload(f)
	}
	s.log.Info("plant deleted", zap.Uint("plant_id", id), zap.Int("photos", len(files)))
	writeJSON(w, http.StatusOK, okResponse{OK: true})
}

type uploadResponse struct {
	Photos []model.PlantPhoto `json:"photos"`
	Errors []string           `json:"errors,omitempty"`
}

func (s *Server) handleUploadPhotos(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		writeError(w, http.StatusNotFound, "Plant not found.")
		return
	}
	if _, err := s.store.GetPlant(r.Context(), id); err != nil {
		s.writeStoreError(w, err, "Plant")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)
	if err := r.ParseMultipartForm(s.maxUploadBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "Upload too large.")
			return
		}
		writeError(w, http.StatusBadRequest, "Expected a multipart upload.")
		return
	}
	defer r.MultipartForm.RemoveAll()

	files := r.MultipartForm.File["photos"]
	if len(files) == 0 {
		writeError(w, http.StatusBadRequest, "No files selected.")
		return
	}

	resp := uploadResponse{Photos: []model.PlantPhoto{}}
	for _, fh := range files {
		if fh.Filename == "" {
			continue
		}
		name, err := s.saveUpload(fh)
		if err != nil {
			resp.Errors = append(resp.Errors, err.Error())
			continue
		}
		photo := model.PlantPhoto{PlantID: id, Filename: name}
		if err := s.store.AddPhoto(r.Context(), &photo); err != nil {
			s.removeUpload(name)
			s.writeStoreError(w, err, "Photo")
			return
		}
		resp.Photos = append(resp.Photos, photo)
	}

	status := http.StatusCreated
	if len(resp.Photos) == 0 {
		status = http.StatusBadRequest
	}
	writeJSON(w, status, resp)
}

// saveUpload stores fh under a random name keeping its extension.
func (s *Server) saveUpload(fh *multipart.FileHeader) (string, error) {
	ext := strings.ToLower(filepath.Ext(filepath.Base(fh.Filename)))
	if !allowedPhotoExt[ext] {
		return "", errUnsupportedPhoto
	}

	src, err := fh.Open()
	if err != nil {
		return "", fmt.Errorf("open upload: %w", err)
	}
	defer src.Close()

	if err := os.MkdirAll(s.uploadDir, 0o755); err != nil {
		return "", fmt.Errorf("create upload dir: %w", err)
	}

	name := strings.ReplaceAll(uuid.NewString(), "-", "") + ext
	dst, err := os.Create(filepath.Join(s.uploadDir, name))
	if err != nil {
		return "", fmt.Errorf("create upload: %w", err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		os.Remove(dst.Name())
		return "", fmt.Errorf("write upload: %w", err)
	}
	if err := dst.Close(); err != nil {
		return "", fmt.Errorf("write upload: %w", err)
	}
	return name, nil
}

// removeUpload deletes a stored photo file. Failures are only logged.
func (s *Server) removeUpload(name string) {
	err := os.Remove(filepath.Join(s.uploadDir, filepath.Base(name)))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		s.log.Warn("remove upload failed", zap.String("file", name), zap.Error(err))
	}
}

func (s *Server) handleDeletePhoto(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		writeError(w, http.StatusNotFound, "Photo not found.")
		return
	}
	photo, err := s.store.DeletePhoto(r.Context(), id)
	if err != nil {
		s.writeStoreError(w, err, "Photo")
		return
	}
	s.removeUpload(photo.Filename)
	writeJSON(w, http.StatusOK, okResponse{OK: true})
}
