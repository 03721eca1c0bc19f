package controllers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"fitrateapi/dbhelper"
	"fitrateapi/models"
	"fitrateapi/services"
	"fitrateapi/test"
)

func newTestServer(db *gorm.DB, providers Providers) *echo.Echo {
	if providers.Google == nil {
		providers.Google = test.GoogleServiceMock{}
	}
	return SetupServer(db, services.LoadConfig(), providers, nil)
}

func TestRateOutfitMissingFields(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	calls := 0
	e := newTestServer(db, Providers{Chat: test.ChatProviderMock{Available: true, CompleteCalls: &calls}})

	req := test.NewJSONRequest("POST", "/api/rate-outfit", RateOutfitIn{Prompt: "Rate this"})
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, 0, calls)

	req = test.NewJSONRequest("POST", "/api/rate-outfit", RateOutfitIn{Image: "aGk=", DeviceId: "dev-1"})
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, 0, calls)
}

func TestRateOutfitNotConfigured(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	e := newTestServer(db, Providers{Chat: test.ChatProviderMock{Available: false}})

	req := test.NewJSONRequest("POST", "/api/rate-outfit", RateOutfitIn{Image: "aGk=", Prompt: "Rate this", DeviceId: "dev-1"})
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestRateOutfitGuestWithoutDevice(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	e := newTestServer(db, Providers{Chat: test.ChatProviderMock{Available: true}})

	req := test.NewJSONRequest("POST", "/api/rate-outfit", RateOutfitIn{Image: "aGk=", Prompt: "Rate this"})
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRateOutfitGuestOk(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	var captured services.ChatRequest
	e := newTestServer(db, Providers{Chat: test.ChatProviderMock{Available: true, LastRequest: &captured}})

	req := test.NewJSONRequest("POST", "/api/rate-outfit", RateOutfitIn{
		Image:     "aGk=",
		Prompt:    "Rate this",
		Mode:      "professional",
		MediaType: "image/tiff",
		DeviceId:  "dev-guest-1",
	})
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// the provider envelope is relayed untouched
	var envelope map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Equal(t, "message", envelope["type"])

	assert.Equal(t, services.RatingModel, captured.Model)
	assert.Equal(t, 1000, captured.MaxTokens)
	// unsupported declared type falls back to jpeg
	assert.Equal(t, "image/jpeg", captured.MediaType)

	var count int64
	db.Model(&models.UsageLog{}).Where("device_id = ?", "dev-guest-1").Count(&count)
	assert.Equal(t, int64(1), count)
}

func TestRateOutfitGuestCooldown(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	e := newTestServer(db, Providers{Chat: test.ChatProviderMock{Available: true}})

	deviceId := "dev-guest-2"
	require.NoError(t, LogUsage(db, nil, &deviceId, "rating"))

	req := test.NewJSONRequest("POST", "/api/rate-outfit", RateOutfitIn{Image: "aGk=", Prompt: "Rate this", DeviceId: deviceId})
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestRateOutfitFreeUserQuota(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	calls := 0
	e := newTestServer(db, Providers{Chat: test.ChatProviderMock{Available: true, CompleteCalls: &calls}})
	user := test.FakeUser(db, models.TierFree)

	for i := 0; i < 3; i++ {
		require.NoError(t, LogUsage(db, &user.ID, nil, "rating"))
	}

	req := test.NewJSONAuthRequest("POST", "/api/rate-outfit",
		strconv.FormatUint(uint64(user.ID), 10),
		RateOutfitIn{Image: "aGk=", Prompt: "Rate this"})
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, 0, calls)
}

func TestRateOutfitProUserUnlimited(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	e := newTestServer(db, Providers{Chat: test.ChatProviderMock{Available: true}})
	user := test.FakeUser(db, models.TierStylePro)

	for i := 0; i < 60; i++ {
		require.NoError(t, LogUsage(db, &user.ID, nil, "rating"))
	}

	req := test.NewJSONAuthRequest("POST", "/api/rate-outfit",
		strconv.FormatUint(uint64(user.ID), 10),
		RateOutfitIn{Image: "aGk=", Prompt: "Rate this"})
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var count int64
	db.Model(&models.UsageLog{}).Where("user_account_id = ?", user.ID).Count(&count)
	assert.Equal(t, int64(61), count)
}

func TestRateOutfitStream(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	var captured services.ChatRequest
	e := newTestServer(db, Providers{Chat: test.ChatProviderMock{Available: true, LastRequest: &captured}})

	req := test.NewJSONRequest("POST", "/api/rate-outfit-stream", RateOutfitIn{
		Image:        "aGk=",
		Prompt:       "Rate this",
		DetailedMode: true,
		DeviceId:     "dev-stream-1",
	})
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get(echo.HeaderContentType))
	assert.Equal(t, 1500, captured.MaxTokens)

	body := rec.Body.String()
	assert.Contains(t, body, `data: {"type":"text","content":"Sharp "}`)
	assert.Contains(t, body, `data: {"type":"text","content":"look."}`)
	assert.Contains(t, body, "data: [DONE]")
	// upstream pings never reach the client
	assert.NotContains(t, body, "ping")

	var count int64
	db.Model(&models.UsageLog{}).Where("device_id = ?", "dev-stream-1").Count(&count)
	assert.Equal(t, int64(1), count)
}

func TestRateOutfitStreamValidation(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	e := newTestServer(db, Providers{Chat: test.ChatProviderMock{Available: true}})

	req := test.NewJSONRequest("POST", "/api/rate-outfit-stream", RateOutfitIn{Prompt: "Rate this", DeviceId: "dev-1"})
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGuestWindowExpires(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()

	deviceId := "dev-old"
	entry := models.UsageLog{DeviceID: &deviceId, ActionType: "rating"}
	require.NoError(t, db.Create(&entry).Error)
	// age the entry past the cooldown
	old := time.Now().Add(-8 * 24 * time.Hour)
	require.NoError(t, db.Model(&entry).Update("created_at", old).Error)

	allowed, err := GuestCanRate(db, deviceId, time.Now())
	require.NoError(t, err)
	assert.True(t, allowed)
}
