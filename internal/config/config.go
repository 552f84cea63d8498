package config

import (
	"os"
	"strconv"
	"time"

	"github.com/spotloo/backend/internal/models"
)

type Config struct {
	ServerAddress string
	Port          string

	StoreBackend string
	MongoURI     string
	MongoDB      string

	FirebaseProjectID       string
	FirebaseCredentialsJSON string
	AdminJWTSecret          string

	// EventSource selects how the worker receives document events:
	// "push" (Eventarc HTTP) or "changestream" (Mongo change streams).
	EventSource string

	LogLevel  string
	LogFormat string

	QuotaLocation          *time.Location
	PlaceholderDisplayName string
	Points                 models.PointValues
	Limits                 models.DailyLimits

	BackfillConcurrency int
	BackfillReport      string
}

func Load() *Config {
	points := models.DefaultPointValues()
	limits := models.DefaultDailyLimits()

	return &Config{
		ServerAddress: getEnv("SERVER_ADDRESS", ":8080"),
		Port:          getEnv("PORT", "8080"),

		StoreBackend: getEnv("STORE_BACKEND", "mongo"),
		MongoURI:     getEnv("MONGO_URI", ""),
		MongoDB:      getEnv("MONGO_DB", "spotloo"),

		FirebaseProjectID:       getEnv("FIREBASE_PROJECT_ID", ""),
		FirebaseCredentialsJSON: getEnv("FIREBASE_CREDENTIALS_JSON", ""),
		AdminJWTSecret:          getEnv("ADMIN_JWT_SECRET", ""),

		EventSource: getEnv("EVENT_SOURCE", "push"),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),

		QuotaLocation:          getEnvLocation("QUOTA_TIMEZONE", time.UTC),
		PlaceholderDisplayName: getEnv("PLACEHOLDER_DISPLAY_NAME", "Usuario"),
		Points: models.PointValues{
			CreateBathroom: getEnvInt("POINTS_CREATE_BATHROOM", points.CreateBathroom),
			Rating:         getEnvInt("POINTS_RATING", points.Rating),
			Validation:     getEnvInt("POINTS_VALIDATION", points.Validation),
		},
		Limits: models.DailyLimits{
			MaxBathroomsPerDay:   getEnvInt("MAX_BATHROOMS_PER_DAY", limits.MaxBathroomsPerDay),
			MaxRatingsPerDay:     getEnvInt("MAX_RATINGS_PER_DAY", limits.MaxRatingsPerDay),
			MaxValidationsPerDay: getEnvInt("MAX_VALIDATIONS_PER_DAY", limits.MaxValidationsPerDay),
			MaxPointsPerDay:      getEnvInt("MAX_POINTS_PER_DAY", limits.MaxPointsPerDay),
		},

		BackfillConcurrency: getEnvInt("BACKFILL_CONCURRENCY", 8),
		BackfillReport:      getEnv("BACKFILL_REPORT", ""),
	}
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	value, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return n
}

func getEnvLocation(key string, defaultValue *time.Location) *time.Location {
	value, exists := os.LookupEnv(key)
	if !exists || value == "" {
		return defaultValue
	}
	loc, err := time.LoadLocation(value)
	if err != nil {
		return defaultValue
	}
	return loc
}
