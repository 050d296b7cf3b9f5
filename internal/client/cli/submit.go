package cli

import (
	"fmt"
	"strings"

	"github.com/dmitrijs2005/recdocs/internal/archive"
	"github.com/dmitrijs2005/recdocs/internal/client/services"
	"github.com/dmitrijs2005/recdocs/internal/common"
	"github.com/spf13/cobra"
)

func newSubmitCommand(app *App) *cobra.Command {
	var docs []string

	cmd := &cobra.Command{
		Use:   "submit CODE --doc KEY=TITLE=PATH...",
		Short: "Package documents and submit them for an application",
		Long: `Package local files into one archive, upload it and record it on the
application. Each --doc names a form field, its human readable title and the
file to attach; repeat the same KEY to attach several files, which is
rejected before anything is uploaded.`,
		Example: `  recdocs submit APP-2024-001 \
    --doc "applicationForm=Application Form=./form.pdf" \
    --doc "researcherCv=Researcher CV=./cv.docx"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			inputs, err := parseDocs(docs)
			if err != nil {
				return err
			}

			sub, err := app.submissions.Submit(cmd.Context(), args[0], inputs)
			if err != nil {
				return err
			}

			fmt.Fprintf(app.out, "submitted %d document(s) for %s\n", len(sub.Package.Manifest), sub.Application.Code)
			fmt.Fprintf(app.out, "status:  %s (version %d)\n", sub.Application.Status, sub.Application.Version)
			fmt.Fprintf(app.out, "hash:    %s\n", sub.Package.Hash)
			return nil
		},
	}
	cmd.Flags().StringArrayVarP(&docs, "doc", "d", nil, "document as KEY=TITLE=PATH (repeatable)")
	_ = cmd.MarkFlagRequired("doc")
	return cmd
}

// parseDocs groups KEY=TITLE=PATH specs by key, keeping first-seen order.
func parseDocs(specs []string) ([]archive.SourceFile, error) {
	type field struct {
		title string
		paths []string
	}
	var order []string
	fields := make(map[string]*field)

	for _, spec := range specs {
		parts := strings.SplitN(spec, "=", 3)
		if len(parts) != 3 || parts[0] == "" || parts[2] == "" {
			return nil, fmt.Errorf("invalid --doc %q, want KEY=TITLE=PATH: %w", spec, common.ErrBadRequest)
		}
		f, ok := fields[parts[0]]
		if !ok {
			f = &field{title: parts[1]}
			fields[parts[0]] = f
			order = append(order, parts[0])
		}
		f.paths = append(f.paths, parts[2])
	}

	inputs := make([]archive.SourceFile, 0, len(order))
	for _, key := range order {
		f := fields[key]
		sf, err := services.ReadSourceFile(key, f.title, f.paths...)
		if err != nil {
			return nil, err
		}
		inputs = append(inputs, sf)
	}
	return inputs, nil
}
