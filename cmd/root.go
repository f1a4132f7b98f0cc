package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "lab-access",
	Short: "Face-recognition access control for laboratories",
	Long: `lab-access decides whether a person may enter a laboratory. It matches a
face photo against the person's enrolled template, checks their room grants
and records every decision in an append-only audit log.

Configuration comes from the environment (a .env file in the working
directory is loaded first). See "lab-access serve --help" for the HTTP API.`,
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
}

func initConfig() {
	// .env file is optional, don't fail if not found
	_ = godotenv.Load()
}
