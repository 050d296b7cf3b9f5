package cli

import (
	"fmt"
	"os"

	"github.com/dmitrijs2005/recdocs/internal/common"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newPrefetchCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "prefetch CODE...",
		Short: "Download and cache the current documents of applications",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var failed int
			for _, code := range args {
				files, err := app.prefetcher.Ensure(cmd.Context(), code)
				if err != nil {
					fmt.Fprintf(app.errOut, "%s: %s\n", code, describe(err))
					failed++
					continue
				}
				fmt.Fprintf(app.out, "%s: %d file(s) cached\n", code, len(files))
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d application(s) failed", failed, len(args))
			}
			return nil
		},
	}
}

func newGetCommand(app *App) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "get CODE [FILE]",
		Short: "Write one document to a file or stdout, or list the documents",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			docs := app.prefetcher.Documents(args[0])

			if len(args) == 1 {
				if err := docs.Retry(cmd.Context()); err != nil {
					return err
				}
				for _, name := range docs.Files() {
					fmt.Fprintln(app.out, name)
				}
				return nil
			}

			content, ok, err := docs.GetFile(cmd.Context(), args[1])
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("%s has no document %q: %w", args[0], args[1], common.ErrorNotFound)
			}

			if output == "" || output == "-" {
				_, err = app.out.Write(content)
				return err
			}
			if err := os.WriteFile(output, content, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", output, err)
			}
			fmt.Fprintf(app.errOut, "wrote %d bytes to %s\n", len(content), output)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default stdout)")
	return cmd
}

func newManifestCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "manifest CODE",
		Short: "Print the documents metadata of an application as YAML",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			meta, err := app.client.GetDocumentsMeta(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			enc := yaml.NewEncoder(app.out)
			enc.SetIndent(2)
			if err := enc.Encode(meta); err != nil {
				return fmt.Errorf("encode manifest: %w", err)
			}
			return enc.Close()
		},
	}
}

func newDecideCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:       "decide CODE accept|reject",
		Short:     "Record a reviewer decision on a submitted application",
		Args:      cobra.ExactArgs(2),
		ValidArgs: []string{"accept", "reject"},
		RunE: func(cmd *cobra.Command, args []string) error {
			if args[1] != "accept" && args[1] != "reject" {
				return fmt.Errorf("decision must be accept or reject, got %q", args[1])
			}
			a, err := app.client.Decide(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			fmt.Fprintf(app.out, "%s: %s (version %d)\n", a.Code, a.Status, a.Version)
			return nil
		},
	}
}

func newCacheCommand(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the local document cache",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "clear [CODE HASH]",
		Short: "Remove one cached archive version, or everything",
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) != 0 && len(args) != 2 {
				return fmt.Errorf("expected no arguments or CODE HASH, got %d", len(args))
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 2 {
				if err := app.cache.Clear(cmd.Context(), args[0], args[1]); err != nil {
					return err
				}
				fmt.Fprintf(app.out, "cleared %s at %s\n", args[0], args[1])
				return nil
			}
			if err := app.cache.ClearAll(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(app.out, "cache cleared")
			return nil
		},
	})
	return cmd
}

func newPingCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Check that the gateway is healthy",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.client.Ping(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(app.out, "ok")
			return nil
		},
	}
}
