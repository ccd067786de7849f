package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/quillform/stepflow/pkg/forms"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a form definition",
	Long:  `Checks the form definition for structural problems: duplicate step IDs, dangling branch targets, skip rules on unskippable steps and the like.`,
	Run: func(cmd *cobra.Command, args []string) {
		path := formPath(cmd)

		def, err := forms.Load(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading %s: %v\n", path, err)
			os.Exit(1)
		}

		issues := forms.Validate(def)
		for _, issue := range issues {
			fmt.Println(issue)
		}

		if forms.HasErrors(issues) {
			fmt.Printf("%s: %d issue(s) found.\n", path, len(issues))
			os.Exit(1)
		}
		fmt.Printf("%s: OK (%d steps)\n", path, len(def.Steps))
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
