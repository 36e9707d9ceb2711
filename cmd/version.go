package cmd

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Build-time variables for version info
var (
	// Release is the current release version
	Release = "dev"
	// GitCommit is the git commit hash
	GitCommit = "none"
)

//nolint:gochecknoglobals // Cobra commands are typically global
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Prints the version of cohorts.",
	Run: func(cmd *cobra.Command, _ []string) {
		short, _ := cmd.Flags().GetBool("short")
		if short {
			fmt.Fprintln(cmd.OutOrStdout(), Release)
			return
		}

		fmt.Fprintln(cmd.OutOrStdout(), versionString())
	},
}

func versionString() string {
	return fmt.Sprintf("Version: %s\nCommit: %s\nGo: %s\nOS/Arch: %s/%s",
		Release, GitCommit, runtime.Version(), runtime.GOOS, runtime.GOARCH)
}

func init() {
	versionCmd.Flags().Bool("short", false, "print only the release")
	rootCmd.AddCommand(versionCmd)
}
