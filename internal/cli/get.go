package cli

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"

	"github.com/spf13/cobra"

	"github.com/cperrin88/mediafetch/pkg/config"
	"github.com/cperrin88/mediafetch/pkg/errors"
	"github.com/cperrin88/mediafetch/pkg/fetch"
	"github.com/cperrin88/mediafetch/pkg/logger"
)

type getOptions struct {
	headers    bool
	noRedirect bool
}

// NewGetCmd creates the get command.
func NewGetCmd() *cobra.Command {
	opts := getOptions{}

	cmd := &cobra.Command{
		Use:   "get <url>",
		Short: "Fetch a URL with the media transport and print it",
		Long: `Fetch a single URL through the same transport the fetch command uses
(user agent, timeout, redirect policy and credentials) and print the response
body to stdout. Nothing is stored.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return runGet(cmd.Context(), cfg, args[0], opts, cmd.OutOrStdout())
		},
	}

	cmd.Flags().BoolVar(&opts.headers, "headers", false, "print the request and response headers instead of the body")
	cmd.Flags().BoolVar(&opts.noRedirect, "no-redirect", false, "do not follow 3xx responses, print them as-is")

	return cmd
}

func runGet(ctx context.Context, cfg *config.Config, rawURL string, opts getOptions, out io.Writer) error {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return errors.Wrapf(errors.ErrInvalidURL, "%q", rawURL)
	}

	client, err := newHTTPClient(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = client.Close() }()

	resp, err := client.Do(ctx, &fetch.Request{URL: rawURL, FollowRedirects: !opts.noRedirect})
	if err != nil {
		return err
	}

	log := logger.WithFields(logger.Fields{"url": resp.URL, "status": resp.Status})
	if len(resp.Redirects) > 0 {
		log.Debugf("Followed %d redirects", len(resp.Redirects))
	}
	log.Debug("Fetched")

	if opts.headers {
		printHeaders(out, ">", resp.RequestHeader)
		_, _ = fmt.Fprintln(out, ">")
		printHeaders(out, "<", resp.Header)
		return nil
	}
	if _, err := out.Write(resp.Body); err != nil {
		return err
	}
	_, err = fmt.Fprintln(out)
	return err
}

// printHeaders writes one "<prefix> Key: value" line per header value, keys
// sorted.
func printHeaders(out io.Writer, prefix string, h http.Header) {
	keys := make([]string, 0, len(h))
	for k := range h {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		for _, v := range h[k] {
			_, _ = fmt.Fprintf(out, "%s %s: %s\n", prefix, k, v)
		}
	}
}
