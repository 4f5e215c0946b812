// Package env is the configuration lookup for the whole application. A .env
// file is read once at startup; the process environment always wins over it
// so container deployments can override without shipping a file.
package env

import (
	"os"

	"github.com/gofiber/fiber/v2/log"
	"github.com/joho/godotenv"
)

var fileValues map[string]string

// searched relative to the working directory, binaries run from cmd/<name>/
// during development and from the repository root in the container image
var envFilePaths = []string{".env", "../../.env", "../../../.env"}

// Load reads the first .env file it finds. A missing file is not fatal:
// everything can come through the process environment instead.
func Load() {
	for _, path := range envFilePaths {
		values, err := godotenv.Read(path)
		if err != nil {
			continue
		}
		fileValues = values
		return
	}
	log.Info("env: no .env file found, relying on process environment")
}

// GetEnv returns the value for key, preferring the process environment over
// the loaded .env file, and falling back to def when neither has it.
func GetEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	if val, ok := fileValues[key]; ok {
		return val
	}
	return def
}

// IsDev reports whether the app runs with APP_ENV=dev.
func IsDev() bool {
	return GetEnv("APP_ENV", "prod") == "dev"
}
