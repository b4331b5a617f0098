package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zeusync/enginekit/internal/core/document"
)

// NewConvertCommand creates the convert command.
func NewConvertCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "convert <in> <out>",
		Short: "Convert a document between JSON, YAML and msgpack",
		Long: `Convert reads <in> and writes it to <out>. Both formats are picked
from the file extensions (.json, .yaml/.yml, .msgpack/.mp).`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := document.Load(args[0])
			if err != nil {
				return err
			}
			if err = document.Save(args[1], n); err != nil {
				return err
			}
			if rootOpts.Verbose {
				fmt.Fprintf(cmd.ErrOrStderr(), "wrote %s\n", args[1])
			}
			return nil
		},
	}
}
