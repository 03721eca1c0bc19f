package controllers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fitrateapi/dbhelper"
	"fitrateapi/models"
	"fitrateapi/test"
)

func TestAuthGoogleNewUser(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	e := newTestServer(db, Providers{})

	param := models.GoogleAuthSignIn{
		IdToken:  "fake-but-mock-validated-token",
		Platform: "ios",
	}
	req := test.NewJSONRequest("POST", "/auth/google", param)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "fake@example.com", resp["email"])
	assert.Equal(t, true, resp["new"])
	assert.NotEmpty(t, resp["access_token"])
	assert.NotEmpty(t, resp["refresh_token"])

	var user models.UserAccount
	require.NoError(t, db.First(&user, "email = ?", "fake@example.com").Error)
	assert.Equal(t, "123googleid", user.GoogleID)
	assert.Equal(t, "FINISHED_AUTH", user.Status)
	assert.Equal(t, models.PlatformIOS, user.Platform)

	// second sign-in matches by google id and is not new
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, test.NewJSONRequest("POST", "/auth/google", param))
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, false, resp["new"])
}

func TestAuthGoogleBadPlatform(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	e := newTestServer(db, Providers{})

	param := models.GoogleAuthSignIn{IdToken: "token", Platform: "blackberry"}
	req := test.NewJSONRequest("POST", "/auth/google", param)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestAuthGuest(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	e := newTestServer(db, Providers{})

	param := models.GuestAuthIn{DeviceId: "device-abc", Platform: "android"}
	req := test.NewJSONRequest("POST", "/auth/guest", param)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "device-abc", resp["device_id"])
	assert.Equal(t, true, resp["can_rate"])

	// a rating within the window flips the flag
	deviceId := "device-abc"
	require.NoError(t, LogUsage(db, nil, &deviceId, "rating"))

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, test.NewJSONRequest("POST", "/auth/guest", param))
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, false, resp["can_rate"])
}

func TestAuthGuestMissingDevice(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	e := newTestServer(db, Providers{})

	param := models.GuestAuthIn{Platform: "android"}
	req := test.NewJSONRequest("POST", "/auth/guest", param)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRefreshToken(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	e := newTestServer(db, Providers{})
	user := test.FakeUser(db, models.TierFree)

	refresh, err := GenerateRefreshToken(strconv.FormatUint(uint64(user.ID), 10))
	require.NoError(t, err)

	req := test.NewJSONRequest("POST", "/auth/refresh-token", models.RefreshTokenIn{RefreshToken: refresh})
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp["access_token"])
	assert.NotEmpty(t, resp["refresh_token"])
}

func TestRefreshTokenInvalid(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	e := newTestServer(db, Providers{})

	req := test.NewJSONRequest("POST", "/auth/refresh-token", models.RefreshTokenIn{RefreshToken: "garbage"})
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMe(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	e := newTestServer(db, Providers{})
	user := test.FakeUser(db, models.TierStylePlus)

	require.NoError(t, LogUsage(db, &user.ID, nil, "rating"))

	req := test.NewJSONAuthRequest("GET", "/auth/me", strconv.FormatUint(uint64(user.ID), 10), "")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var out models.UserInfoOut
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, user.ID, out.Id)
	assert.Equal(t, models.TierStylePlus, out.Tier)
	assert.Equal(t, int64(1), out.UsageCount)
	require.NotNil(t, out.UsageLimit)
	assert.Equal(t, int64(50), *out.UsageLimit)
}

func TestRegisterAndDeletePush(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	e := newTestServer(db, Providers{})
	user := test.FakeUser(db, models.TierFree)
	userPk := strconv.FormatUint(uint64(user.ID), 10)

	in := models.UserPushIn{Token: "push-token-1", Platform: "ios"}
	req := test.NewJSONAuthRequest("POST", "/auth/register-push", userPk, in)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var count int64
	db.Model(&models.UserPushToken{}).Where("user_account_id = ? and token = ?", user.ID, "push-token-1").Count(&count)
	assert.Equal(t, int64(1), count)

	// registering the same token again is idempotent
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, test.NewJSONAuthRequest("POST", "/auth/register-push", userPk, in))
	require.Equal(t, http.StatusOK, rec.Code)
	db.Model(&models.UserPushToken{}).Where("user_account_id = ? and token = ?", user.ID, "push-token-1").Count(&count)
	assert.Equal(t, int64(1), count)

	req = test.NewJSONAuthRequest("POST", "/auth/delete-push", userPk, in)
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	db.Model(&models.UserPushToken{}).Where("user_account_id = ? and token = ?", user.ID, "push-token-1").Count(&count)
	assert.Equal(t, int64(0), count)
}

func TestSettingsUpdate(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	e := newTestServer(db, Providers{})
	user := test.FakeUser(db, models.TierFree)

	req := test.NewJSONAuthRequest("POST", "/auth/settings",
		strconv.FormatUint(uint64(user.ID), 10),
		map[string]bool{"receive_notifications": true})
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var saved models.UserAccount
	require.NoError(t, db.First(&saved, user.ID).Error)
	assert.True(t, saved.ReceiveNotifications)
}

func TestDeleteAccount(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	e := newTestServer(db, Providers{})
	user := test.FakeUser(db, models.TierFree)

	req := test.NewJSONAuthRequest("POST", "/auth/delete-account",
		strconv.FormatUint(uint64(user.ID), 10), "")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var saved models.UserAccount
	require.NoError(t, db.First(&saved, user.ID).Error)
	assert.NotNil(t, saved.ConfirmedDeleteDate)
}
