package test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"google.golang.org/api/idtoken"
	"gorm.io/gorm"

	"fitrateapi/models"
	"fitrateapi/services"
)

func JsonString(model interface{}) string {
	bytes, _ := json.Marshal(model)
	return string(bytes)
}

func NewJSONRequest(method string, target string, param interface{}) *http.Request {

	req := httptest.NewRequest(method, target, strings.NewReader(JsonString(param)))
	req.Header.Add("Content-Type", "application/json")
	req.Header.Add("Accept", "application/json")
	return req
}

func GenerateUserToken(userPk string) string {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   userPk,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour * 72)),
		IssuedAt:  jwt.NewNumericDate(time.Now()),
	})
	t, err := token.SignedString([]byte(os.Getenv("JWT_SECRET")))
	if err != nil {
		log.Fatalf("Error when signing user token for %s. Error %s ", userPk, err)
	}
	return t
}

func NewJSONAuthRequest(method string, target string, userPk string, param interface{}) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(JsonString(param)))
	req.Header.Add("Content-Type", "application/json")
	req.Header.Add("Accept", "application/json")
	token := GenerateUserToken(userPk)
	req.Header.Add("Authorization", fmt.Sprintf("Bearer %s", token))
	return req
}

func NewJSONAuthRequestCustomAuth(method string, target string, authorizationString string, param interface{}) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(JsonString(param)))
	req.Header.Add("Content-Type", "application/json")
	req.Header.Add("Accept", "application/json")
	req.Header.Add("Authorization", authorizationString)
	return req
}

func Int64Pointer(i int64) *int64 {
	return &i
}

func StrPointer(s string) *string {
	return &s
}

func FakeUser(db *gorm.DB, tier models.Tier) *models.UserAccount {
	user := &models.UserAccount{
		Name:      "OurName",
		Email:     fmt.Sprintf("email+%d@example.com", time.Now().UnixNano()),
		GoogleID:  "12232",
		Platform:  models.PlatformIOS,
		LastIp:    "123.122.122.122",
		Status:    "FINISHED_AUTH",
		AvatarURL: "pictureurl",
	}
	db.Create(&user)
	sub := &models.UserSubscription{
		UserAccountID: user.ID,
		Tier:          tier,
	}
	db.Create(&sub)
	tokenDb := models.UserPushToken{
		UserAccountID: user.ID,
		Platform:      "android",
		Token:         "cX-UZ3zwQEiPt-2GJkG2gA:APA91bGqRflaGrJrnynhRwZ442HdgUjVcO7mWMFnx6IwAdJ9RRKopvSP4QU7hbvTmk1XAp8XGvtHZLvo5JmOPTVKBbGqqvhfbZWKlXA9csEjx1hgpNvrWepU",
		Active:        true,
	}
	db.Save(&tokenDb)
	db.Preload("Subscription").First(&user, user.ID)
	return user
}

type GoogleServiceMock struct{}

func (gsm GoogleServiceMock) ValidateIdToken(ctx context.Context, idToken string, audience string) (*idtoken.Payload, error) {

	return &idtoken.Payload{Issuer: "Issue", Audience: "AAA", Expires: 119919191919, IssuedAt: 12312321321, Subject: "fake@example.com", Claims: map[string]interface{}{
		"email":   "fake@example.com",
		"picture": "pictureurl",
		"sub":     "123googleid",
	}}, nil

}

func (gsm GoogleServiceMock) GetUserSubscriptionStatus(ctx context.Context, appUserId string) ([]byte, error) {
	data := `
	{
		"request_date": "2026-05-11T06:50:56Z",
		"request_date_ms": 1715410256322,
		"subscriber": {
		  "entitlements": {
			"style_plus": {
			  "expires_date": "2026-05-11T06:51:15Z",
			  "grace_period_expires_date": null,
			  "product_identifier": "style_plus_monthly",
			  "product_plan_identifier": "monthly-autorenew",
			  "purchase_date": "2026-05-11T06:49:05Z"
			},
			"style_pro": {
			  "expires_date": "2029-05-12T22:28:12Z",
			  "grace_period_expires_date": null,
			  "product_identifier": "style_pro_monthly",
			  "product_plan_identifier": "pro-monthly",
			  "purchase_date": "2026-05-10T22:23:12Z"
			}
		  },
		  "first_seen": "2026-05-07T12:41:57Z",
		  "last_seen": "2026-05-10T20:43:21Z",
		  "management_url": "https://play.google.com/store/account/subscriptions",
		  "non_subscriptions": {},
		  "original_app_user_id": "$RCAnonymousID:60ad7a0c84694890b4b272b5654efa1f",
		  "original_application_version": null,
		  "original_purchase_date": null,
		  "other_purchases": {},
		  "subscriptions": {
			"style_plus_monthly": {
			  "auto_resume_date": null,
			  "billing_issues_detected_at": null,
			  "expires_date": "2026-05-11T06:51:15Z",
			  "grace_period_expires_date": null,
			  "is_sandbox": true,
			  "original_purchase_date": "2026-05-11T06:49:05Z",
			  "period_type": "normal",
			  "product_plan_identifier": "monthly-autorenew",
			  "purchase_date": "2026-05-11T06:49:05Z",
			  "refunded_at": null,
			  "store": "play_store",
			  "store_transaction_id": "GPA.3308-7668-0800-70257",
			  "unsubscribe_detected_at": null
			},
			"style_pro_monthly": {
			  "auto_resume_date": null,
			  "billing_issues_detected_at": null,
			  "expires_date": "2029-05-12T22:28:12Z",
			  "grace_period_expires_date": null,
			  "is_sandbox": true,
			  "original_purchase_date": "2026-05-10T21:56:21Z",
			  "period_type": "normal",
			  "product_plan_identifier": "pro-monthly",
			  "purchase_date": "2026-05-10T22:23:12Z",
			  "refunded_at": null,
			  "store": "play_store",
			  "store_transaction_id": "GPA.3311-8032-8178-10570..5",
			  "unsubscribe_detected_at": null
			}
		  }
		}
	  }
	  `

	return []byte(data), nil
}

type AWSProviderMock struct {
	MockUrl string
}

func (awsService AWSProviderMock) InitPresignClient(ctx context.Context) error {
	return nil
}

func (awsService AWSProviderMock) PresignLink(ctx context.Context, bucketName string, fileName string) (string, error) {

	return fmt.Sprintf("https://fakebucketurl.com/%s", fileName), nil
}

func (awsService AWSProviderMock) GetPresignedR2FileReadURL(ctx context.Context, bucketName, fileKey string) (string, error) {
	return awsService.MockUrl, nil
}

type URLCacheMock struct {
	MockUrl string
}

func (m URLCacheMock) GetReadURL(ctx context.Context, objectKey string) (string, error) {
	return m.MockUrl, nil
}

// ChatProviderMock plays back a canned completion envelope and a canned
// upstream SSE stream. CompleteCalls counts round trips so handlers can be
// checked for not hitting the provider on validation failures.
type ChatProviderMock struct {
	Envelope      string
	StreamChunks  []string
	Available     bool
	CompleteCalls *int
	LastRequest   *services.ChatRequest
}

func (m ChatProviderMock) Configured() bool {
	return m.Available
}

func (m ChatProviderMock) Complete(ctx context.Context, req services.ChatRequest) ([]byte, error) {
	if m.CompleteCalls != nil {
		*m.CompleteCalls++
	}
	if m.LastRequest != nil {
		*m.LastRequest = req
	}
	envelope := m.Envelope
	if envelope == "" {
		envelope = `{"id":"msg_mock","type":"message","role":"assistant","content":[{"type":"text","text":"Great fit, 8/10."}],"model":"claude-sonnet-4-20250514","stop_reason":"end_turn","usage":{"input_tokens":120,"output_tokens":45}}`
	}
	return []byte(envelope), nil
}

func (m ChatProviderMock) Stream(ctx context.Context, req services.ChatRequest) (io.ReadCloser, error) {
	if m.LastRequest != nil {
		*m.LastRequest = req
	}
	chunks := m.StreamChunks
	if len(chunks) == 0 {
		chunks = []string{
			"event: message_start\ndata: {\"type\":\"message_start\"}\n\n",
			"data: {\"type\":\"content_block_delta\",\"delta\":{\"type\":\"text_delta\",\"text\":\"Sharp \"}}\n\n",
			"data: {\"type\":\"content_block_del",
			"ta\",\"delta\":{\"type\":\"text_delta\",\"text\":\"look.\"}}\n\n",
			"data: {\"type\":\"ping\"}\n\n",
			"data: {\"type\":\"message_stop\"}\n\n",
		}
	}
	return io.NopCloser(strings.NewReader(strings.Join(chunks, ""))), nil
}

// AnalysisProviderMock answers with a fenced JSON block the way real models
// tend to, so parsing has to strip the fences.
type AnalysisProviderMock struct {
	Response  string
	Available bool
	Err       error
}

func (m AnalysisProviderMock) Configured() bool {
	return m.Available
}

func (m AnalysisProviderMock) AnalyzeOutfit(ctx context.Context, imageBase64, mediaType, prompt string) (*services.LLMResponse, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	response := m.Response
	if response == "" {
		response = "```json\n" + ValidAnalysisJSON + "\n```"
	}
	return &services.LLMResponse{
		Response:         response,
		InputTokenCount:  210,
		OutputTokenCount: 180,
		TotalTokenCount:  390,
	}, nil
}

// ValidAnalysisJSON satisfies every structural check on the analysis schema.
const ValidAnalysisJSON = `{
	"colors": {"primary": "navy", "secondary": "white", "accent": "tan", "neutrals": ["white"], "palette_type": "complementary"},
	"style_tags": ["casual", "denim"],
	"garments": [
		{"type": "jacket", "description": "Classic denim trucker", "color": "blue", "fit": "relaxed"}
	],
	"style_analysis": {
		"current_aesthetic": "casual americana",
		"proportion_score": 8,
		"color_harmony_score": 7,
		"occasion_versatility": ["errands", "casual dinner"]
	},
	"improvement_gaps": [
		{"category": "footwear", "issue": "sneakers soften the look", "suggestion": "try loafers", "search_terms": ["brown loafers men"]}
	],
	"recommended_additions": [
		{"item_type": "belt", "reason": "anchors the waist", "color_recommendation": "tan", "style_recommendation": "leather", "search_query": "tan leather belt"}
	],
	"color_theory_notes": "Navy and tan sit comfortably together."
}`

type WeatherProviderMock struct {
	Available   bool
	StatusCode  int
	Body        string
	Suggestions []services.GeoSuggestion
}

func (m WeatherProviderMock) Configured() bool {
	return m.Available
}

func (m WeatherProviderMock) Current(ctx context.Context, lat, lon, q string) (*services.WeatherPayload, error) {
	status := m.StatusCode
	if status == 0 {
		status = http.StatusOK
	}
	body := m.Body
	if body == "" {
		body = `{"weather":[{"main":"Clear"}],"main":{"temp":21.4}}`
	}
	return &services.WeatherPayload{StatusCode: status, Body: []byte(body)}, nil
}

func (m WeatherProviderMock) Geocode(ctx context.Context, q string) ([]services.GeoSuggestion, error) {
	return m.Suggestions, nil
}
