// Command function runs the Cloud Functions locally through the Functions
// Framework. FUNCTION_TARGET selects publish or subscribe.
package main

import (
	"os"

	"pubsubfn/internal/logger"

	"github.com/GoogleCloudPlatform/functions-framework-go/funcframework"
	"github.com/joho/godotenv"

	_ "pubsubfn"
)

func main() {
	_ = godotenv.Load()
	logger := logger.New()

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	if err := funcframework.Start(port); err != nil {
		logger.Fatal().Msgf("funcframework.Start: %v", err)
	}
}
