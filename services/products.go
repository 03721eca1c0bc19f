package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Product is the normalized shape every provider result is mapped into.
// Rating is nullable so mock and real results serialize the same way.
type Product struct {
	Id          string   `json:"id"`
	Title       string   `json:"title"`
	Price       string   `json:"price"`
	Image       string   `json:"image"`
	Url         string   `json:"url"`
	Store       string   `json:"store"`
	Rating      *float64 `json:"rating"`
	ReviewCount int      `json:"reviewCount"`
}

type ProductQuery struct {
	Query    string   `json:"query"`
	Category string   `json:"category"`
	MinPrice *float64 `json:"minPrice"`
	MaxPrice *float64 `json:"maxPrice"`
	Stores   []string `json:"stores"`
	Country  string   `json:"country"`
	Limit    int      `json:"limit"`
}

// SearchResult carries the source tag so the client can tell mock data and
// degraded upstream calls apart from real results.
type SearchResult struct {
	Products     []Product `json:"products"`
	Source       string    `json:"source"`
	TotalResults int       `json:"totalResults"`
}

type ProductSearchProvider interface {
	Search(ctx context.Context, query ProductQuery) (*SearchResult, error)
}

var currencySymbols = map[string]string{
	"US": "$",
	"GB": "£",
	"CA": "C$",
	"AU": "A$",
}

func currencySymbol(country string) string {
	if symbol, ok := currencySymbols[strings.ToUpper(country)]; ok {
		return symbol
	}
	return "$"
}

var mockPrices = []string{"24.99", "39.99", "49.99", "59.99", "74.99", "89.99", "99.99", "119.99"}

var mockStores = []string{"Amazon", "ASOS", "H&M", "Zara", "Nordstrom", "Target", "Walmart", "Online Store"}

var mockImages = []string{
	"https://images.unsplash.com/photo-1521572163474-6864f9cf17ab?w=400",
	"https://images.unsplash.com/photo-1434389677669-e08b4cac3105?w=400",
	"https://images.unsplash.com/photo-1523381210434-271e8be1f52b?w=400",
	"https://images.unsplash.com/photo-1551488831-00ddcb6c6bd3?w=400",
}

// MockProductSearch synthesizes a deterministic result set with no network
// access. Used whenever no provider credential is configured.
type MockProductSearch struct{}

func (m *MockProductSearch) Search(ctx context.Context, query ProductQuery) (*SearchResult, error) {
	country := query.Country
	if country == "" {
		country = "US"
	}
	limit := query.Limit
	if limit <= 0 || limit > 8 {
		limit = 8
	}
	symbol := currencySymbol(country)
	products := make([]Product, 0, limit)
	for i := 0; i < limit; i++ {
		rating := 3.5 + 0.2*float64(i%8)
		products = append(products, Product{
			Id:          fmt.Sprintf("mock-%d", i+1),
			Title:       fmt.Sprintf("%s - Style %d (%s)", query.Query, i+1, country),
			Price:       symbol + mockPrices[i%len(mockPrices)],
			Image:       mockImages[i%len(mockImages)],
			Url:         fmt.Sprintf("https://example.com/products/%d", i+1),
			Store:       mockStores[i%len(mockStores)],
			Rating:      &rating,
			ReviewCount: 50 + i*62,
		})
	}
	return &SearchResult{Products: products, Source: "mock", TotalResults: len(products)}, nil
}

// RapidProductSearch queries the real-time product search API on RapidAPI.
// BaseURL is overridable for tests, empty means https against Host.
type RapidProductSearch struct {
	APIKey  string
	Host    string
	BaseURL string
	client  *http.Client
}

func NewRapidProductSearch(cfg *Config) *RapidProductSearch {
	return &RapidProductSearch{
		APIKey: cfg.RapidAPIKey,
		Host:   cfg.RapidAPIHost,
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

type rapidAPIResponse struct {
	Data struct {
		Products []map[string]interface{} `json:"products"`
	} `json:"data"`
}

func (r *RapidProductSearch) Search(ctx context.Context, query ProductQuery) (*SearchResult, error) {
	country := query.Country
	if country == "" {
		country = "US"
	}
	limit := query.Limit
	if limit <= 0 {
		limit = 8
	}
	params := url.Values{}
	params.Set("q", query.Query+" fashion")
	params.Set("country", strings.ToLower(country))
	params.Set("limit", fmt.Sprintf("%d", limit))

	baseURL := r.BaseURL
	if baseURL == "" {
		baseURL = "https://" + r.Host
	}
	endpoint := fmt.Sprintf("%s/search-v2?%s", baseURL, params.Encode())
	req, err := http.NewRequestWithContext(ctx, "GET", endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("x-rapidapi-key", r.APIKey)
	req.Header.Set("x-rapidapi-host", r.Host)

	resp, err := r.client.Do(req)
	if err != nil {
		// search failures are non-fatal to the caller
		return &SearchResult{Products: []Product{}, Source: "api_error"}, nil
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &SearchResult{Products: []Product{}, Source: "api_error"}, nil
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &SearchResult{Products: []Product{}, Source: "api_error"}, nil
	}
	var parsed rapidAPIResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return &SearchResult{Products: []Product{}, Source: "api_error"}, nil
	}

	products := make([]Product, 0, len(parsed.Data.Products))
	for _, raw := range parsed.Data.Products {
		product := NormalizeProduct(raw)
		if product.Title == "" || product.Image == "" {
			continue
		}
		products = append(products, product)
		if len(products) >= limit {
			break
		}
	}
	return &SearchResult{Products: products, Source: "api", TotalResults: len(products)}, nil
}

func stringField(raw map[string]interface{}, key string) string {
	if value, ok := raw[key].(string); ok {
		return value
	}
	return ""
}

func nestedMap(raw map[string]interface{}, key string) map[string]interface{} {
	if value, ok := raw[key].(map[string]interface{}); ok {
		return value
	}
	return nil
}

const idTokenChars = "abcdefghijklmnopqrstuvwxyz0123456789"

func randomIdToken() string {
	b := make([]byte, 9)
	for i := range b {
		b[i] = idTokenChars[rand.Intn(len(idTokenChars))]
	}
	return string(b)
}

// NormalizeProduct maps one heterogeneous provider result into the Product
// shape, walking each field's fallback chain in order.
func NormalizeProduct(raw map[string]interface{}) Product {
	offer := nestedMap(raw, "offer")

	id := stringField(raw, "product_id")
	if id == "" {
		id = stringField(raw, "asin")
	}
	if id == "" {
		id = randomIdToken()
	}

	price := ""
	if offer != nil {
		price = stringField(offer, "price")
	}
	if price == "" {
		if priceRange, ok := raw["typical_price_range"].([]interface{}); ok && len(priceRange) > 0 {
			if first, ok := priceRange[0].(string); ok {
				price = first
			}
		}
	}
	if price == "" {
		price = "Price varies"
	}

	image := ""
	if photos, ok := raw["product_photos"].([]interface{}); ok && len(photos) > 0 {
		if first, ok := photos[0].(string); ok {
			image = first
		}
	}
	if image == "" {
		image = stringField(raw, "thumbnail")
	}

	productURL := ""
	if offer != nil {
		productURL = stringField(offer, "offer_page_url")
	}
	if productURL == "" {
		productURL = stringField(raw, "product_page_url")
	}
	if productURL == "" {
		productURL = stringField(raw, "link")
	}

	store := ""
	if offer != nil {
		store = stringField(offer, "store_name")
	}
	// providers sometimes send host-like lowercase store names
	if store != "" && store == strings.ToLower(store) {
		store = storeTitleCaser.String(store)
	}
	if store == "" {
		store = inferStore(productURL)
	}

	var rating *float64
	if value, ok := raw["product_rating"].(float64); ok {
		rating = &value
	}
	reviewCount := 0
	if value, ok := raw["product_num_reviews"].(float64); ok {
		reviewCount = int(value)
	}

	return Product{
		Id:          id,
		Title:       stringField(raw, "product_title"),
		Price:       price,
		Image:       image,
		Url:         productURL,
		Store:       store,
		Rating:      rating,
		ReviewCount: reviewCount,
	}
}

var knownStoreHosts = []struct {
	substring string
	name      string
}{
	{"amazon", "Amazon"},
	{"hm.com", "H&M"},
	{"h&m", "H&M"},
	{"asos", "ASOS"},
	{"zara", "Zara"},
	{"nordstrom", "Nordstrom"},
	{"target", "Target"},
	{"walmart", "Walmart"},
}

var storeTitleCaser = cases.Title(language.English)

func inferStore(productURL string) string {
	if productURL == "" {
		return "Online Store"
	}
	parsed, err := url.Parse(productURL)
	if err != nil || parsed.Host == "" {
		return "Online Store"
	}
	host := strings.ToLower(parsed.Host)
	for _, known := range knownStoreHosts {
		if strings.Contains(host, known.substring) {
			return known.name
		}
	}
	return "Online Store"
}
