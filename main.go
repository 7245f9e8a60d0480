package main

import (
	"github.com/joho/godotenv"

	"mealmcp/cmd"
)

// Version can be set during build with -ldflags
var version = "dev"

func main() {
	// A local .env is optional; missing files are fine.
	_ = godotenv.Load()

	cmd.SetVersion(version)
	cmd.Execute()
}
