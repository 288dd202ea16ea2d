package cli

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/cperrin88/mediafetch/pkg/config"
	"github.com/cperrin88/mediafetch/pkg/fingerprint"
	"github.com/cperrin88/mediafetch/pkg/imageproc"
)

// NewFingerprintCmd creates the fingerprint command.
func NewFingerprintCmd() *cobra.Command {
	var kind string

	cmd := &cobra.Command{
		Use:   "fingerprint URL...",
		Short: "Show the key and default store path of URLs",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFingerprint(cmd.OutOrStdout(), kind, args)
		},
	}

	cmd.Flags().StringVar(&kind, "kind", config.KindFiles, "pipeline kind (files or images)")

	return cmd
}

func runFingerprint(out io.Writer, kind string, urls []string) error {
	if kind != config.KindFiles && kind != config.KindImages {
		return fmt.Errorf("unknown kind %q", kind)
	}

	tw := tabwriter.NewWriter(out, 0, 0, TabWidth, ' ', 0)
	_, _ = fmt.Fprintln(tw, "KEY\tPATH\tCANONICAL URL")
	for _, u := range urls {
		key := fingerprint.Of(u)
		path := fingerprint.DefaultPath(u)
		if kind == config.KindImages {
			path = "full/" + key.String() + imageproc.Ext
		}
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\n", key, path, fingerprint.Canonicalize(u))
	}
	return tw.Flush()
}
