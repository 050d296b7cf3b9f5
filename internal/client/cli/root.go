package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/dmitrijs2005/recdocs/internal/client/config"
	"github.com/dmitrijs2005/recdocs/internal/common"
	"github.com/spf13/cobra"
)

type rootOptions struct {
	configPath  string
	server      string
	cacheDSN    string
	cachePrefix string
	verifyHash  bool
	timeout     time.Duration
	verbose     bool
}

// NewRootCommand builds the recdocs command tree writing to out and errOut.
// The returned App is populated once a command runs; the caller closes it.
func NewRootCommand(out, errOut io.Writer) (*cobra.Command, *App) {
	var (
		opts rootOptions
		app  = &App{}
	)

	root := &cobra.Command{
		Use:           "recdocs",
		Short:         "Submit and read research ethics protocol documents",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(opts.configPath)
			if err != nil {
				return err
			}
			opts.apply(cmd, cfg)

			a, err := newApp(cmd.Context(), cfg, out, errOut, opts.verbose)
			if err != nil {
				return err
			}
			*app = *a
			return nil
		},
	}
	root.CompletionOptions.DisableDefaultCmd = true
	root.SetOut(out)
	root.SetErr(errOut)

	f := root.PersistentFlags()
	f.StringVarP(&opts.configPath, "config", "c", "", "path to a JSON config file")
	f.StringVar(&opts.server, "server", "", "gateway base URL")
	f.StringVar(&opts.cacheDSN, "cache", "", "local cache database file")
	f.StringVar(&opts.cachePrefix, "cache-prefix", "", "cache key prefix")
	f.BoolVar(&opts.verifyHash, "verify-hash", true, "verify downloaded archives against their declared hash")
	f.DurationVar(&opts.timeout, "timeout", 0, "timeout of a single gateway request")
	f.BoolVarP(&opts.verbose, "verbose", "v", false, "log debug output to stderr")

	root.AddCommand(
		newSubmitCommand(app),
		newPrefetchCommand(app),
		newGetCommand(app),
		newManifestCommand(app),
		newDecideCommand(app),
		newCacheCommand(app),
		newPingCommand(app),
	)
	return root, app
}

// apply overlays explicitly set flags on cfg.
func (o *rootOptions) apply(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("server") {
		cfg.ServerBaseURL = o.server
	}
	if flags.Changed("cache") {
		cfg.CacheDSN = o.cacheDSN
	}
	if flags.Changed("cache-prefix") {
		cfg.CacheKeyPrefix = o.cachePrefix
	}
	if flags.Changed("verify-hash") {
		cfg.VerifyHash = o.verifyHash
	}
	if flags.Changed("timeout") {
		cfg.RequestTimeout = o.timeout
	}
}

// Execute runs the command tree and returns a process exit code.
func Execute(ctx context.Context, args []string, out, errOut io.Writer) int {
	root, app := NewRootCommand(out, errOut)
	defer app.Close()

	root.SetArgs(args)
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(errOut, "error:", describe(err))
		return 1
	}
	return 0
}

// describe turns well-known failures into actionable messages.
func describe(err error) string {
	switch {
	case errors.Is(err, common.ErrMetadataMissing):
		return "no documents have been submitted for this application yet"
	case errors.Is(err, common.ErrMultipleFilesPerField):
		return "each document field accepts a single file: " + err.Error()
	case errors.Is(err, common.ErrHashMismatch):
		return "downloaded archive does not match its recorded hash; nothing was cached"
	case errors.Is(err, common.ErrCorruptArchive):
		return "the stored archive is damaged and cannot be read; ask the applicant to resubmit"
	default:
		return err.Error()
	}
}
