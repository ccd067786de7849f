package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/quillform/stepflow/internal/presentation/graph"
	"github.com/quillform/stepflow/pkg/forms"
)

var graphCmd = &cobra.Command{
	Use:   "graph",
	Short: "Render the form as a Mermaid diagram",
	Long:  `Prints a Mermaid flowchart of the form's steps, branches and skip rules to stdout. Paste it into any Mermaid renderer.`,
	Run: func(cmd *cobra.Command, args []string) {
		path := formPath(cmd)

		def, err := forms.Load(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading %s: %v\n", path, err)
			os.Exit(1)
		}

		fmt.Println(graph.GenerateMermaid(def, nil))
	},
}

func init() {
	rootCmd.AddCommand(graphCmd)
}
