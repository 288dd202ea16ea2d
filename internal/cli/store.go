package cli

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/cperrin88/mediafetch/pkg/archive"
	"github.com/cperrin88/mediafetch/pkg/config"
	"github.com/cperrin88/mediafetch/pkg/errors"
	"github.com/cperrin88/mediafetch/pkg/fsutil"
	"github.com/cperrin88/mediafetch/pkg/logger"
	"github.com/cperrin88/mediafetch/pkg/storage"
)

// NewStoreCmd creates the store command with subcommands.
func NewStoreCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "store",
		Short: "Inspect and move the media store",
		Long:  "Show the configured media store and export or import filesystem stores",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "info",
			Short: "Show the configured store",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				cfg, err := loadConfig()
				if err != nil {
					return err
				}
				return runStoreInfo(cmd.Context(), cfg, cmd.OutOrStdout())
			},
		},
		&cobra.Command{
			Use:   "export ARCHIVE",
			Short: "Write a filesystem store to a tar.gz archive",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				cfg, err := loadConfig()
				if err != nil {
					return err
				}
				return runStoreExport(cmd.Context(), cfg, args[0])
			},
		},
		&cobra.Command{
			Use:   "import ARCHIVE",
			Short: "Restore a tar.gz archive into a filesystem store",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				cfg, err := loadConfig()
				if err != nil {
					return err
				}
				return runStoreImport(cmd.Context(), cfg, args[0])
			},
		},
	)

	return cmd
}

func runStoreInfo(ctx context.Context, cfg *config.Config, out io.Writer) error {
	u, err := storage.ParseURI(cfg.Store.URI)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(out, 0, 0, TabWidth, ' ', 0)
	_, _ = fmt.Fprintf(tw, "URI\t%s\n", cfg.Store.URI)
	_, _ = fmt.Fprintf(tw, "Backend\t%s\n", u.Scheme)
	_, _ = fmt.Fprintf(tw, "Backends\t%s\n", strings.Join(storage.Schemes(), ", "))

	if fs, err := fsStore(ctx, cfg); err == nil {
		size, files, err := fsutil.DirUsage(fs.Root)
		if err != nil {
			return fmt.Errorf("failed to scan store: %w", err)
		}
		_, _ = fmt.Fprintf(tw, "Root\t%s\n", fs.Root)
		_, _ = fmt.Fprintf(tw, "Objects\t%d\n", files)
		_, _ = fmt.Fprintf(tw, "Size\t%d bytes\n", size)
	}
	return tw.Flush()
}

func runStoreExport(ctx context.Context, cfg *config.Config, archivePath string) error {
	fs, err := fsStore(ctx, cfg)
	if err != nil {
		return err
	}
	sum, err := archive.NewManager().Export(ctx, fs.Root, archivePath)
	if err != nil {
		return err
	}
	logger.Success("Store exported", logger.Fields{"archive": archivePath, "files": sum.Files, "bytes": sum.Bytes})
	return nil
}

func runStoreImport(ctx context.Context, cfg *config.Config, archivePath string) error {
	fs, err := fsStore(ctx, cfg)
	if err != nil {
		return err
	}
	sum, err := archive.NewManager().Import(ctx, archivePath, fs.Root)
	if err != nil {
		return err
	}
	logger.Success("Store imported", logger.Fields{"archive": archivePath, "files": sum.Files, "bytes": sum.Bytes})
	return nil
}

// fsStore opens the configured store and requires it to live on the local
// filesystem.
func fsStore(ctx context.Context, cfg *config.Config) (*storage.FSStore, error) {
	store, err := storage.Open(ctx, cfg.StoreOptions())
	if err != nil {
		return nil, err
	}
	fs, ok := store.(*storage.FSStore)
	if !ok {
		return nil, errors.Wrapf(errors.ErrStoreNotExportable, "%s", cfg.Store.URI)
	}
	return fs, nil
}
