package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// WeatherPayload is an upstream response relayed verbatim along with the
// upstream status code, so the handler can pass both through.
type WeatherPayload struct {
	StatusCode int
	Body       []byte
}

type GeoSuggestion struct {
	Name        string  `json:"name"`
	Country     string  `json:"country"`
	State       string  `json:"state,omitempty"`
	Lat         float64 `json:"lat"`
	Lon         float64 `json:"lon"`
	DisplayName string  `json:"displayName"`
}

type WeatherProvider interface {
	Configured() bool
	Current(ctx context.Context, lat, lon, q string) (*WeatherPayload, error)
	Geocode(ctx context.Context, q string) ([]GeoSuggestion, error)
}

type OpenWeatherService struct {
	APIKey  string
	BaseURL string
	client  *http.Client
}

func NewOpenWeatherService(cfg *Config) *OpenWeatherService {
	return &OpenWeatherService{
		APIKey:  cfg.OpenWeatherAPIKey,
		BaseURL: cfg.OpenWeatherBaseURL,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

func (s *OpenWeatherService) Configured() bool {
	return s.APIKey != ""
}

// Current fetches current conditions by coordinates or free-text location.
// The raw upstream body and status are returned untouched.
func (s *OpenWeatherService) Current(ctx context.Context, lat, lon, q string) (*WeatherPayload, error) {
	params := url.Values{}
	if q != "" {
		params.Set("q", q)
	} else {
		params.Set("lat", lat)
		params.Set("lon", lon)
	}
	params.Set("units", "metric")
	params.Set("appid", s.APIKey)

	endpoint := fmt.Sprintf("%s/data/2.5/weather?%s", s.BaseURL, params.Encode())
	req, err := http.NewRequestWithContext(ctx, "GET", endpoint, nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	return &WeatherPayload{StatusCode: resp.StatusCode, Body: body}, nil
}

func (s *OpenWeatherService) Geocode(ctx context.Context, q string) ([]GeoSuggestion, error) {
	params := url.Values{}
	params.Set("q", q)
	params.Set("limit", "5")
	params.Set("appid", s.APIKey)

	endpoint := fmt.Sprintf("%s/geo/1.0/direct?%s", s.BaseURL, params.Encode())
	req, err := http.NewRequestWithContext(ctx, "GET", endpoint, nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("geocoding failed (%d): %s", resp.StatusCode, string(body))
	}

	var results []struct {
		Name    string  `json:"name"`
		Country string  `json:"country"`
		State   string  `json:"state"`
		Lat     float64 `json:"lat"`
		Lon     float64 `json:"lon"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return nil, err
	}

	suggestions := make([]GeoSuggestion, 0, len(results))
	for _, result := range results {
		displayName := fmt.Sprintf("%s, %s", result.Name, result.Country)
		if result.State != "" {
			displayName = fmt.Sprintf("%s, %s, %s", result.Name, result.State, result.Country)
		}
		suggestions = append(suggestions, GeoSuggestion{
			Name:        result.Name,
			Country:     result.Country,
			State:       result.State,
			Lat:         result.Lat,
			Lon:         result.Lon,
			DisplayName: displayName,
		})
	}
	return suggestions, nil
}
