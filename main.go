package main

import (
	"os"

	"timezone-scheduler/cmd"
	"timezone-scheduler/core/logger"
)

// @title Timezone Scheduler API
// @version 1.0
// @description Timezone-aware appointment slot reservation, cancellation and consistency auditing.

// @BasePath /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description JWT Bearer token. Example: "Bearer {token}"

func main() {
	if err := cmd.Execute(); err != nil {
		logger.Error("tz-scheduler", err)
		os.Exit(1)
	}
}
