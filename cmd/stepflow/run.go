package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/quillform/stepflow"
	"github.com/quillform/stepflow/internal/presentation/tui"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a form flow interactively",
	Long:  `Loads the form definition and walks through it step by step at the terminal.`,
	Run: func(cmd *cobra.Command, args []string) {
		headless, _ := cmd.Flags().GetBool("headless")

		eng, err := stepflow.Load(formPath(cmd), stepflow.WithLogger(newLogger(cmd)))
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading form: %v\n", err)
			os.Exit(1)
		}

		runner := stepflow.NewRunner()
		runner.Input = os.Stdin
		runner.Output = os.Stdout
		runner.Headless = headless

		if !headless {
			tui.PrintBanner(stepflow.Version)
			runner.Renderer = tui.NewRenderer()
		}

		if err := runner.Run(eng); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().Bool("headless", false, "Plain output without banner or markdown rendering")

	// Running without a subcommand starts the interactive flow.
	rootCmd.Run = runCmd.Run
	rootCmd.Flags().AddFlagSet(runCmd.Flags())
}
