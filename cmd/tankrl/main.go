package main

import (
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func main() {
	for _, envFile := range []string{
		".env",
		"../../.env",
	} {
		if err := godotenv.Load(envFile); err == nil {
			break
		}
	}

	rootCmd := &cobra.Command{
		Use:          "tankrl",
		Short:        "tankrl trains and evaluates tank policies in a line-defence arena.",
		SilenceUsage: true,
	}
	rootCmd.AddCommand(newRunCmd(), newPlayCmd(), newStatsCmd(), newServeCmd())

	if err := rootCmd.Execute(); err != nil {
		log.Printf("tankrl: %v", err)
		os.Exit(1)
	}
}

// envOr reads a TANKRL_* override.
func envOr(key, def string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return def
}
