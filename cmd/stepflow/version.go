package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/quillform/stepflow"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the stepflow version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("stepflow v%s\n", stepflow.Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
