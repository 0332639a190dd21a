package cli

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "constellation",
	Short: "An emotional memory archive",
	Long:  "Constellation classifies memory fragments into mood families and scores the links between them. Single Go binary, local SQLite storage.",
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(familiesCmd)
	rootCmd.AddCommand(graphCmd)
	rootCmd.AddCommand(reclassifyCmd)
}
