package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pipetunnel/pipetunnel/cmd"
	"github.com/pipetunnel/pipetunnel/pkg/build"
)

func versionMain(command *cobra.Command, arguments []string) error {
	fmt.Println(build.Version)
	return nil
}

var versionCommand = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run:   cmd.Mainify(versionMain),
}

var versionConfiguration struct {
	help bool
}

func init() {
	flags := versionCommand.Flags()
	flags.SortFlags = false
	flags.BoolVarP(&versionConfiguration.help, "help", "h", false, "Show help information")
}
