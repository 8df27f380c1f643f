package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	var configPath string

	root := &cobra.Command{
		Use:     "pawtrip",
		Short:   "PawTrip backend: dog styling and pet-friendly travel search",
		Version: version,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to YAML config file (default $PAWTRIP_CONFIG)")

	root.AddCommand(
		newServeCmd(&configPath),
		newCacheCmd(&configPath),
		newMirrorCmd(&configPath),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
