package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pathakanu/waterit/internal/database"
	"github.com/pathakanu/waterit/internal/model"
	"github.com/pathakanu/waterit/internal/push"
	"github.com/pathakanu/waterit/internal/store"
	"github.com/pathakanu/waterit/internal/weather"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type fakePusher struct {
	configured bool
	result     push.Result
	messages   []push.Message
}

func (f *fakePusher) Configured() bool { return f.configured }

func (f *fakePusher) DeliverToAll(_ context.Context, msg push.Message) push.Result {
	f.messages = append(f.messages, msg)
	if !f.configured {
		return push.Result{Err: push.ErrNotConfigured}
	}
	return f.result
}

type fakeForecaster struct {
	cities []string
}

func (f *fakeForecaster) Forecast(_ context.Context, city string) (weather.Forecast, error) {
	f.cities = append(f.cities, city)
	return weather.Forecast{OK: true, City: city, Slots: []weather.Slot{{Label: "Mon 3 PM", Temp: 21, Icon: "sun"}}}, nil
}

type testEnv struct {
	srv     *Server
	handler http.Handler
	store   *store.Store
	clock   *clock.Mock
	pusher  *fakePusher
	weather *fakeForecaster
	uploads string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	name := strings.ReplaceAll(t.Name(), "/", "_")
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared&_fk=1", name, time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, database.Migrate(db))

	clk := clock.NewMock()
	clk.Set(time.Date(2024, 6, 3, 8, 0, 0, 0, time.UTC))

	env := &testEnv{
		store:   store.New(db),
		clock:   clk,
		pusher:  &fakePusher{},
		weather: &fakeForecaster{},
		uploads: t.TempDir(),
	}
	env.srv = New(Options{
		Store:          env.store,
		Push:           env.pusher,
		Weather:        env.weather,
		Clock:          clk,
		Location:       time.UTC,
		VAPIDPublicKey: "BPublicKey",
		DefaultCity:    "San Francisco",
		UploadDir:      env.uploads,
		MaxUploadBytes: 1 << 20,
		Log:            zap.NewNop(),
	})
	env.handler = env.srv.Handler()
	return env
}

func (e *testEnv) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

func (e *testEnv) createPlant(t *testing.T, name string) model.Plant {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/api/plants", map[string]interface{}{"name": name})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var p model.Plant
	decode(t, rec, &p)
	return p
}

func TestVAPIDPublicKey(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/push/vapid-public-key", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	decode(t, rec, &body)
	assert.Equal(t, "BPublicKey", body["key"])
}

func TestSubscribeValidatesAndUpserts(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	rec := env.do(t, http.MethodPost, "/push/subscribe", map[string]interface{}{
		"endpoint": "https://push.example/1",
		"keys":     map[string]string{"p256dh": "  "},
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	var bad errorResponse
	decode(t, rec, &bad)
	assert.False(t, bad.OK)
	assert.Equal(t, "Invalid subscription payload.", bad.Error)

	for _, auth := range []string{"a1", "a2"} {
		rec = env.do(t, http.MethodPost, "/push/subscribe", map[string]interface{}{
			"endpoint": " https://push.example/1 ",
			"keys":     map[string]string{"p256dh": "p", "auth": auth},
		})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	}

	subs, err := env.store.ListSubscriptions(ctx)
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, "https://push.example/1", subs[0].Endpoint)
	assert.Equal(t, "a2", subs[0].Auth)
}

func TestUnsubscribe(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	require.NoError(t, env.store.UpsertSubscription(ctx, &model.PushSubscription{Endpoint: "e1", P256DH: "p", Auth: "a"}))

	rec := env.do(t, http.MethodPost, "/push/unsubscribe", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, "/push/unsubscribe", map[string]string{"endpoint": "e1"})
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = env.do(t, http.MethodPost, "/push/unsubscribe", map[string]string{"endpoint": "e1"})
	assert.Equal(t, http.StatusOK, rec.Code)

	subs, err := env.store.ListSubscriptions(ctx)
	require.NoError(t, err)
	assert.Empty(t, subs)
}

func TestPushTest(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/push/test", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	env.pusher.configured = true
	env.pusher.result = push.Result{Attempted: 2, Delivered: 1, Pruned: 1}
	rec = env.do(t, http.MethodPost, "/push/test", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]interface{}
	decode(t, rec, &body)
	assert.Equal(t, true, body["ok"])
	assert.EqualValues(t, 1, body["sent"])
	assert.EqualValues(t, 1, body["pruned"])
	assert.Len(t, env.pusher.messages, 2)
}

func TestPlantCRUD(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/plants", map[string]interface{}{"name": "  "})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = env.do(t, http.MethodPost, "/api/plants", map[string]interface{}{"name": "Fern", "age_months": 900})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	fern := env.createPlant(t, "Fern")
	env.createPlant(t, "Cactus")

	rec = env.do(t, http.MethodGet, "/api/plants", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var plants []model.Plant
	decode(t, rec, &plants)
	require.Len(t, plants, 2)

	rec = env.do(t, http.MethodPut, fmt.Sprintf("/api/plants/%d", fern.ID), map[string]interface{}{
		"name": "Boston Fern", "light": "indirect",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var updated model.Plant
	decode(t, rec, &updated)
	assert.Equal(t, "Boston Fern", updated.Name)
	assert.Equal(t, "indirect", updated.Light)

	rec = env.do(t, http.MethodDelete, fmt.Sprintf("/api/plants/%d", fern.ID), nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = env.do(t, http.MethodGet, fmt.Sprintf("/api/plants/%d", fern.ID), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = env.do(t, http.MethodGet, "/api/plants/abc", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateReminderComputesNextRun(t *testing.T) {
	env := newTestEnv(t)
	plant := env.createPlant(t, "Fern")

	rec := env.do(t, http.MethodPost, fmt.Sprintf("/api/plants/%d/reminders", plant.ID), map[string]string{
		"interval_text": "2 days", "time_of_day": "09:00",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var rem model.Reminder
	decode(t, rec, &rem)
	assert.True(t, rem.Active)
	require.NotNil(t, rem.NextRunAt)
	assert.True(t, time.Date(2024, 6, 3, 9, 0, 0, 0, time.UTC).Equal(*rem.NextRunAt))
	require.NotNil(t, rem.StartDate)
	assert.True(t, time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC).Equal(*rem.StartDate))

	rec = env.do(t, http.MethodPost, fmt.Sprintf("/api/plants/%d/reminders", plant.ID), map[string]string{"interval_text": "2 days"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = env.do(t, http.MethodPost, "/api/plants/999/reminders", map[string]string{
		"interval_text": "2 days", "time_of_day": "09:00",
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUpdateReminderPauseResumeAndEdit(t *testing.T) {
	env := newTestEnv(t)
	plant := env.createPlant(t, "Fern")

	rec := env.do(t, http.MethodPost, fmt.Sprintf("/api/plants/%d/reminders", plant.ID), map[string]string{
		"interval_text": "2 days", "time_of_day": "09:00",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	var rem model.Reminder
	decode(t, rec, &rem)
	path := fmt.Sprintf("/api/reminders/%d", rem.ID)

	rec = env.do(t, http.MethodPatch, path, map[string]interface{}{"active": false})
	require.Equal(t, http.StatusOK, rec.Code)
	due, err := env.store.DueReminders(context.Background(), time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Empty(t, due)

	// Resume a day later: the next run is recomputed from the start date.
	env.clock.Add(25 * time.Hour)
	rec = env.do(t, http.MethodPatch, path, map[string]interface{}{"active": true})
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &rem)
	assert.True(t, rem.Active)
	assert.True(t, time.Date(2024, 6, 5, 9, 0, 0, 0, time.UTC).Equal(*rem.NextRunAt))

	rec = env.do(t, http.MethodPatch, path, map[string]interface{}{"time_of_day": "10:30"})
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &rem)
	assert.Equal(t, "10:30", rem.TimeOfDay)
	assert.True(t, time.Date(2024, 6, 5, 10, 30, 0, 0, time.UTC).Equal(*rem.NextRunAt))

	rec = env.do(t, http.MethodPatch, path, map[string]interface{}{"interval_text": " "})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodDelete, path, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = env.do(t, http.MethodDelete, path, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func multipartBody(t *testing.T, files map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for name, content := range files {
		fw, err := mw.CreateFormFile("photos", name)
		require.NoError(t, err)
		_, err = fw.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestUploadAndDeletePhotos(t *testing.T) {
	env := newTestEnv(t)
	plant := env.createPlant(t, "Fern")

	body, contentType := multipartBody(t, map[string]string{"leaf.PNG": "png-bytes", "notes.txt": "nope"})
	req := httptest.NewRequest(http.MethodPost, fmt.Sprintf("/api/plants/%d/photos", plant.ID), body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp uploadResponse
	decode(t, rec, &resp)
	require.Len(t, resp.Photos, 1)
	assert.Len(t, resp.Errors, 1)

	photo := resp.Photos[0]
	assert.True(t, strings.HasSuffix(photo.Filename, ".png"))
	assert.NotContains(t, photo.Filename, "leaf")
	stored := filepath.Join(env.uploads, photo.Filename)
	data, err := os.ReadFile(stored)
	require.NoError(t, err)
	assert.Equal(t, "png-bytes", string(data))

	rec = env.do(t, http.MethodDelete, fmt.Sprintf("/api/photos/%d", photo.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	_, err = os.Stat(stored)
	assert.True(t, os.IsNotExist(err))

	rec = env.do(t, http.MethodDelete, fmt.Sprintf("/api/photos/%d", photo.ID), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeletePlantRemovesPhotoFiles(t *testing.T) {
	env := newTestEnv(t)
	plant := env.createPlant(t, "Fern")

	body, contentType := multipartBody(t, map[string]string{"a.jpg": "a"})
	req := httptest.NewRequest(http.MethodPost, fmt.Sprintf("/api/plants/%d/photos", plant.ID), body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = env.do(t, http.MethodDelete, fmt.Sprintf("/api/plants/%d", plant.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	entries, err := os.ReadDir(env.uploads)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestUploadRejectsOnlyUnsupportedFiles(t *testing.T) {
	env := newTestEnv(t)
	plant := env.createPlant(t, "Fern")

	body, contentType := multipartBody(t, map[string]string{"x.gif": "gif"})
	req := httptest.NewRequest(http.MethodPost, fmt.Sprintf("/api/plants/%d/photos", plant.ID), body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHomeUsesSavedCityAndLatestReminders(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	plant := env.createPlant(t, "Fern")

	for i := 0; i < 6; i++ {
		rec := env.do(t, http.MethodPost, fmt.Sprintf("/api/plants/%d/reminders", plant.ID), map[string]string{
			"interval_text": fmt.Sprintf("%d days", i+1), "time_of_day": "09:00",
		})
		require.Equal(t, http.StatusCreated, rec.Code)
		env.clock.Add(time.Second)
	}
	require.NoError(t, env.store.SetSetting(ctx, store.SettingDefaultCity, "Pune"))

	rec := env.do(t, http.MethodGet, "/api/home", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var home homeResponse
	decode(t, rec, &home)
	assert.Equal(t, "Pune", home.City)
	assert.True(t, home.Weather.OK)
	require.Len(t, home.Reminders, 5)
	assert.Equal(t, "Fern", home.Reminders[0].PlantName)

	rec = env.do(t, http.MethodGet, "/api/home?city=Oslo", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"Pune", "Oslo"}, env.weather.cities)
}

func TestSettings(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/settings", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var got settingsPayload
	decode(t, rec, &got)
	assert.Equal(t, "San Francisco", got.DefaultCity)

	rec = env.do(t, http.MethodPost, "/api/settings", settingsPayload{DefaultCity: "  "})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/settings", settingsPayload{DefaultCity: " Pune "})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/settings", nil)
	decode(t, rec, &got)
	assert.Equal(t, "Pune", got.DefaultCity)
}
