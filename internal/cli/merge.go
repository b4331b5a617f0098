package cli

import (
	"github.com/spf13/cobra"

	"github.com/zeusync/enginekit/internal/core/document"
)

// MergeOptions holds flags for the merge command.
type MergeOptions struct {
	*RootOptions
	Output string
}

// NewMergeCommand creates the merge command.
func NewMergeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &MergeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "merge <base> <update>",
		Short: "Deep-merge two documents",
		Long: `Merge prints the union of <base> and <update> as JSON. Keys of
<update> win on conflict, objects merge recursively and lists merge by index.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			base, err := document.Load(args[0])
			if err != nil {
				return err
			}
			update, err := document.Load(args[1])
			if err != nil {
				return err
			}
			merged := document.Union(base, update)

			if opts.Output != "" {
				return document.Save(opts.Output, merged)
			}
			out, err := document.DumpJSONIndent(merged, "  ")
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(append(out, '\n'))
			return err
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "write the result to a file instead of stdout")

	return cmd
}
