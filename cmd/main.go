package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/goldseal/goldseal-backend/internal/app"
)

func main() {
	// Intentionally quiet: production supplies env directly.
	_ = godotenv.Load()

	application, err := app.New()
	if err != nil {
		fmt.Printf("Failed to init app: %v\n", err)
		os.Exit(1)
	}
	defer application.Close()

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	application.Log.Info("Server listening", "port", port)
	if err := application.Run(":" + port); err != nil {
		application.Log.Error("Server failed", "error", err)
		os.Exit(1)
	}
}
