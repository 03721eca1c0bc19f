package services

// Config collects every provider credential at startup. Handlers never read
// the environment directly, so tests can swap in fake configuration instead
// of mutating the process env.
type Config struct {
	AnthropicAPIKey  string
	AnthropicBaseURL string

	GoogleAPIKey string

	RapidAPIKey  string
	RapidAPIHost string

	OpenWeatherAPIKey  string
	OpenWeatherBaseURL string

	R2BucketName      string
	R2AccountID       string
	R2AccessKeyID     string
	R2AccessKeySecret string

	JWTSecret string
	Env       string
}

func LoadConfig() *Config {
	return &Config{
		AnthropicAPIKey:    GetEnv("ANTHROPIC_API_KEY", ""),
		AnthropicBaseURL:   GetEnv("ANTHROPIC_BASE_URL", "https://api.anthropic.com"),
		GoogleAPIKey:       GetEnv("GOOGLE_API_KEY", ""),
		RapidAPIKey:        GetEnv("RAPIDAPI_KEY", ""),
		RapidAPIHost:       GetEnv("RAPIDAPI_PRODUCT_HOST", "real-time-product-search.p.rapidapi.com"),
		OpenWeatherAPIKey:  GetEnv("OPENWEATHER_API_KEY", ""),
		OpenWeatherBaseURL: GetEnv("OPENWEATHER_BASE_URL", "https://api.openweathermap.org"),
		R2BucketName:       GetEnv("R2_BUCKET_NAME", ""),
		R2AccountID:        GetEnv("R2_ACCOUNT_ID", ""),
		R2AccessKeyID:      GetEnv("R2_ACCESS_KEY_ID", ""),
		R2AccessKeySecret:  GetEnv("R2_ACCESS_KEY_SECRET", ""),
		JWTSecret:          GetEnv("JWT_SECRET", ""),
		Env:                GetEnv("ENV", "local"),
	}
}
