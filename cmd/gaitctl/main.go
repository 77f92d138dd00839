// gaitctl runs the gait pipeline offline and manages a strideminder
// database from the command line.
package main

import (
	"context"
	"os"

	"github.com/charmbracelet/fang"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	_ = godotenv.Load()

	root := &cobra.Command{
		Use:   "gaitctl",
		Short: "Offline gait analysis and strideminder administration",
		Long: `gaitctl analyzes accelerometer recordings and manages a strideminder database.

Commands:
  analyze <file.csv>        Run the gait pipeline over a t_ns,x,y,z recording
  device add                Register a device bearer key
  export <granularity>      Write a gait series as CSV or Parquet`,
		Version:      version,
		SilenceUsage: true,
	}

	root.AddCommand(
		analyzeCmd(),
		deviceCmd(),
		exportCmd(),
	)

	if err := fang.Execute(context.Background(), root); err != nil {
		os.Exit(1)
	}
}
