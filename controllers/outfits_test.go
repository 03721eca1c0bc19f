package controllers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"fitrateapi/dbhelper"
	"fitrateapi/models"
	"fitrateapi/services"
	"fitrateapi/test"
)

func outfitTestServer(db *gorm.DB) *echo.Echo {
	return newTestServer(db, Providers{
		AWS:      &test.AWSProviderMock{},
		URLCache: test.URLCacheMock{MockUrl: "https://fakebucketurl.com/read/outfit.jpg"},
	})
}

func TestCreateOutfitRequiresPlusTier(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	e := outfitTestServer(db)
	user := test.FakeUser(db, models.TierFree)

	reqBody := CreateOutfitIn{Name: "Friday look", FileName: "friday.jpg"}
	req := test.NewJSONAuthRequest("POST", "/api/outfits", strconv.FormatUint(uint64(user.ID), 10), reqBody)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestCreateOutfitOk(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	e := outfitTestServer(db)
	user := test.FakeUser(db, models.TierStylePlus)

	reqBody := CreateOutfitIn{
		Name:        "Friday look",
		Description: test.StrPointer("Denim and loafers"),
		FileName:    "friday.jpg",
	}
	req := test.NewJSONAuthRequest("POST", "/api/outfits", strconv.FormatUint(uint64(user.ID), 10), reqBody)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var response map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	assert.Equal(t, "friday.jpg", response["file_name"])
	assert.Contains(t, response["upload_url"], "fakebucketurl.com")

	var outfit models.SavedOutfit
	require.NoError(t, db.Where("owner_id = ?", user.ID).First(&outfit).Error)
	assert.Equal(t, "draft", outfit.ImageStatus)
	assert.Equal(t, "idle", outfit.AnalysisStatus)
	require.NotNil(t, outfit.ImageURL)
	assert.Equal(t, fmt.Sprintf("outfits/%v/friday.jpg", user.ID), *outfit.ImageURL)
}

func TestCreateOutfitInvalidInput(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	e := outfitTestServer(db)
	user := test.FakeUser(db, models.TierStylePlus)

	// file name missing
	reqBody := CreateOutfitIn{Name: "Friday look"}
	req := test.NewJSONAuthRequest("POST", "/api/outfits", strconv.FormatUint(uint64(user.ID), 10), reqBody)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListOutfits(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	e := outfitTestServer(db)
	user := test.FakeUser(db, models.TierStylePlus)
	other := test.FakeUser(db, models.TierStylePlus)

	analysisJSON := `{"style_tags":["casual"]}`
	mine := models.SavedOutfit{
		Name: "Mine", OwnerID: user.ID,
		ImageURL:    services.StrPointer(fmt.Sprintf("outfits/%v/mine.jpg", user.ID)),
		ImageStatus: "uploaded", AnalysisStatus: "completed", AnalysisJSON: &analysisJSON,
	}
	theirs := models.SavedOutfit{
		Name: "Theirs", OwnerID: other.ID,
		ImageURL:    services.StrPointer(fmt.Sprintf("outfits/%v/theirs.jpg", other.ID)),
		ImageStatus: "uploaded", AnalysisStatus: "idle",
	}
	require.NoError(t, db.Create(&mine).Error)
	require.NoError(t, db.Create(&theirs).Error)

	req := test.NewJSONAuthRequest("GET", "/api/outfits", strconv.FormatUint(uint64(user.ID), 10), "")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var response struct {
		Outfits []OutfitOut `json:"outfits"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	require.Len(t, response.Outfits, 1)
	assert.Equal(t, "Mine", response.Outfits[0].Name)
	assert.Equal(t, "https://fakebucketurl.com/read/outfit.jpg", response.Outfits[0].ImageReadURL)
	assert.JSONEq(t, analysisJSON, string(response.Outfits[0].Analysis))
}

func TestMarkOutfitUploaded(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	e := outfitTestServer(db)
	user := test.FakeUser(db, models.TierStylePlus)

	outfit := models.SavedOutfit{Name: "Draft", OwnerID: user.ID, ImageStatus: "draft", AnalysisStatus: "idle"}
	require.NoError(t, db.Create(&outfit).Error)

	req := test.NewJSONAuthRequest("POST", fmt.Sprintf("/api/outfits/%v/uploaded", outfit.ID),
		strconv.FormatUint(uint64(user.ID), 10), "")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var saved models.SavedOutfit
	require.NoError(t, db.First(&saved, outfit.ID).Error)
	assert.Equal(t, "uploaded", saved.ImageStatus)
}

func TestMarkOutfitUploadedNotOwner(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	e := outfitTestServer(db)
	owner := test.FakeUser(db, models.TierStylePlus)
	intruder := test.FakeUser(db, models.TierStylePlus)

	outfit := models.SavedOutfit{Name: "Draft", OwnerID: owner.ID, ImageStatus: "draft", AnalysisStatus: "idle"}
	require.NoError(t, db.Create(&outfit).Error)

	req := test.NewJSONAuthRequest("POST", fmt.Sprintf("/api/outfits/%v/uploaded", outfit.ID),
		strconv.FormatUint(uint64(intruder.ID), 10), "")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAnalyzeOutfitRequiresUpload(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	e := outfitTestServer(db)
	user := test.FakeUser(db, models.TierStylePlus)

	outfit := models.SavedOutfit{Name: "Draft", OwnerID: user.ID, ImageStatus: "draft", AnalysisStatus: "idle"}
	require.NoError(t, db.Create(&outfit).Error)

	req := test.NewJSONAuthRequest("POST", fmt.Sprintf("/api/outfits/%v/analyze", outfit.ID),
		strconv.FormatUint(uint64(user.ID), 10), "")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAnalyzeOutfitAlreadyPending(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	e := outfitTestServer(db)
	user := test.FakeUser(db, models.TierStylePlus)

	outfit := models.SavedOutfit{Name: "Busy", OwnerID: user.ID, ImageStatus: "uploaded", AnalysisStatus: "pending"}
	require.NoError(t, db.Create(&outfit).Error)

	req := test.NewJSONAuthRequest("POST", fmt.Sprintf("/api/outfits/%v/analyze", outfit.ID),
		strconv.FormatUint(uint64(user.ID), 10), "")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestAnalyzeOutfitQuotaExceeded(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	e := outfitTestServer(db)
	user := test.FakeUser(db, models.TierFree)

	for i := 0; i < 3; i++ {
		require.NoError(t, LogUsage(db, &user.ID, nil, "rating"))
	}
	outfit := models.SavedOutfit{Name: "Gated", OwnerID: user.ID, ImageStatus: "uploaded", AnalysisStatus: "idle"}
	require.NoError(t, db.Create(&outfit).Error)

	req := test.NewJSONAuthRequest("POST", fmt.Sprintf("/api/outfits/%v/analyze", outfit.ID),
		strconv.FormatUint(uint64(user.ID), 10), "")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	var saved models.SavedOutfit
	require.NoError(t, db.First(&saved, outfit.ID).Error)
	assert.Equal(t, "idle", saved.AnalysisStatus)
}

func TestDeleteOutfit(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	e := outfitTestServer(db)
	user := test.FakeUser(db, models.TierStylePlus)

	outfit := models.SavedOutfit{Name: "Old", OwnerID: user.ID, ImageStatus: "uploaded", AnalysisStatus: "idle"}
	require.NoError(t, db.Create(&outfit).Error)

	req := test.NewJSONAuthRequest("DELETE", fmt.Sprintf("/api/outfits/%v", outfit.ID),
		strconv.FormatUint(uint64(user.ID), 10), "")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var count int64
	db.Model(&models.SavedOutfit{}).Where("id = ?", outfit.ID).Count(&count)
	assert.Equal(t, int64(0), count)
}

func TestDeleteOutfitNotFound(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	e := outfitTestServer(db)
	user := test.FakeUser(db, models.TierStylePlus)

	req := test.NewJSONAuthRequest("DELETE", "/api/outfits/999999",
		strconv.FormatUint(uint64(user.ID), 10), "")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
