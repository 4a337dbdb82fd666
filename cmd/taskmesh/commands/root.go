package commands

import (
	"github.com/spf13/cobra"

	"github.com/taskmesh/taskmesh/src/config"
)

var (
	_config = config.NewDefaultConfig()
)

// RootCmd is the root command for taskmesh
var RootCmd = &cobra.Command{
	Use:              "taskmesh",
	Short:            "decentralized compute mesh",
	TraverseChildren: true,
}
