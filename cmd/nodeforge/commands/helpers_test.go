package commands

import "github.com/spf13/cobra"

type cobraCommand struct {
	name string
	new  func() *cobra.Command
}
