package controllers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fitrateapi/dbhelper"
	"fitrateapi/models"
	"fitrateapi/test"
)

func TestAnalyzeOutfitMissingImage(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	e := newTestServer(db, Providers{Analysis: test.AnalysisProviderMock{Available: true}})

	req := test.NewJSONRequest("POST", "/api/analyze-outfit", AnalyzeOutfitIn{})
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAnalyzeOutfitNotConfigured(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	e := newTestServer(db, Providers{Analysis: test.AnalysisProviderMock{Available: false}})

	req := test.NewJSONRequest("POST", "/api/analyze-outfit", AnalyzeOutfitIn{Image: "aGk="})
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestAnalyzeOutfitFencedResponse(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	// the default mock wraps its JSON in markdown fences on purpose
	e := newTestServer(db, Providers{Analysis: test.AnalysisProviderMock{Available: true}})

	req := test.NewJSONRequest("POST", "/api/analyze-outfit", AnalyzeOutfitIn{Image: "aGk="})
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var response struct {
		Success  bool                  `json:"success"`
		Analysis models.OutfitAnalysis `json:"analysis"`
		Usage    struct {
			InputTokens  int32 `json:"input_tokens"`
			OutputTokens int32 `json:"output_tokens"`
			TotalTokens  int32 `json:"total_tokens"`
		} `json:"usage"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	assert.True(t, response.Success)
	assert.Equal(t, "navy", response.Analysis.Colors.Primary)
	assert.Equal(t, 8, response.Analysis.StyleAnalysis.ProportionScore)
	require.Len(t, response.Analysis.Garments, 1)
	assert.Equal(t, "jacket", response.Analysis.Garments[0].Type)
	assert.Equal(t, int32(210), response.Usage.InputTokens)
	assert.Equal(t, int32(390), response.Usage.TotalTokens)
}

func TestAnalyzeOutfitUnparseableResponse(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	e := newTestServer(db, Providers{Analysis: test.AnalysisProviderMock{
		Available: true,
		Response:  "Sorry, I cannot analyze this image.",
	}})

	req := test.NewJSONRequest("POST", "/api/analyze-outfit", AnalyzeOutfitIn{Image: "aGk="})
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	var response map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	assert.Equal(t, "Could not parse analysis response", response["error"])
}

func TestAnalyzeOutfitScoreOutOfRange(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	e := newTestServer(db, Providers{Analysis: test.AnalysisProviderMock{
		Available: true,
		Response:  `{"style_analysis": {"proportion_score": 14, "color_harmony_score": 5}}`,
	}})

	req := test.NewJSONRequest("POST", "/api/analyze-outfit", AnalyzeOutfitIn{Image: "aGk="})
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	var response map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	assert.Equal(t, "Could not parse analysis response", response["error"])
}
