package main

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/Lllllllleong/docsynth/internal/models"
	"github.com/Lllllllleong/docsynth/internal/services"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/spf13/cobra"
)

// maxVisualAssets matches the limit the request form enforces.
const maxVisualAssets = 10

type submitOptions struct {
	seedPaths    []string
	visualPaths  []string
	metadata     models.GenerationMetadata
	skipPDFCheck bool
}

var submitOpts submitOptions

var submitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Upload seed documents and visual assets and request generation",
	Example: `  docsynth submit --seed contract.pdf --visual logo.png \
    --name "Lease" --type "Legal Document" --language English \
    --ground-truth "tenant=Acme Corp" --solutions 3 --redaction`,
	RunE: func(cmd *cobra.Command, args []string) error {
		uid, err := app.requireUser()
		if err != nil {
			return err
		}
		if err := submitOpts.validate(); err != nil {
			return err
		}

		seeds, err := loadSourceFiles(submitOpts.seedPaths, !submitOpts.skipPDFCheck)
		if err != nil {
			return err
		}
		visuals, err := loadSourceFiles(submitOpts.visualPaths, false)
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		journal, closeJournal, err := app.journal(ctx)
		if err != nil {
			return err
		}
		defer closeJournal()

		out := cmd.OutOrStdout()
		seq := services.NewSequencer(app.client, journal)
		result, err := seq.StartGenerationFlow(ctx, services.GenerationRequest{
			UserID:      uid,
			SeedFiles:   seeds,
			VisualFiles: visuals,
			Metadata:    submitOpts.metadata,
		}, newProgressPrinter(out))
		if err != nil {
			return describeFlowError(err)
		}
		app.dashboard.SubmissionFinished()

		fmt.Fprintf(out, "Request %s submitted (%d seed, %d visual).\n",
			result.RequestID, len(result.Uploads.SeedDocs), len(result.Uploads.VisualAssets))
		return nil
	},
}

func init() {
	f := submitCmd.Flags()
	f.StringSliceVar(&submitOpts.seedPaths, "seed", nil, "seed document to upload (repeatable)")
	f.StringSliceVar(&submitOpts.visualPaths, "visual", nil, "visual asset such as a logo, stamp or signature (repeatable)")
	f.StringVar(&submitOpts.metadata.DocumentName, "name", "", "document name")
	f.StringVar(&submitOpts.metadata.GroundTruth, "ground-truth", "", "ground truth specification")
	f.StringVar(&submitOpts.metadata.DocumentType, "type", "", "document type, e.g. \"Technical Report\"")
	f.StringVar(&submitOpts.metadata.Language, "language", "", "document language")
	f.BoolVar(&submitOpts.metadata.Redaction, "redaction", false, "redact sensitive content in generated documents")
	f.IntVar(&submitOpts.metadata.NumSolutions, "solutions", 1, "number of documents to generate")
	f.BoolVar(&submitOpts.skipPDFCheck, "skip-pdf-check", false, "upload seed PDFs without validating them first")
}

func (o submitOptions) validate() error {
	var missing []string
	if strings.TrimSpace(o.metadata.DocumentName) == "" {
		missing = append(missing, "--name")
	}
	if strings.TrimSpace(o.metadata.Language) == "" {
		missing = append(missing, "--language")
	}
	if strings.TrimSpace(o.metadata.DocumentType) == "" {
		missing = append(missing, "--type")
	}
	if strings.TrimSpace(o.metadata.GroundTruth) == "" {
		missing = append(missing, "--ground-truth")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required fields: %s", strings.Join(missing, ", "))
	}
	if len(o.seedPaths) == 0 {
		return errors.New("at least one --seed document is required")
	}
	if len(o.visualPaths) > maxVisualAssets {
		return fmt.Errorf("at most %d visual assets may be attached, got %d", maxVisualAssets, len(o.visualPaths))
	}
	if o.metadata.NumSolutions < 1 {
		return errors.New("--solutions must be at least 1")
	}
	return nil
}

func loadSourceFiles(paths []string, checkPDF bool) ([]services.SourceFile, error) {
	files := make([]services.SourceFile, 0, len(paths))
	for _, p := range paths {
		if checkPDF && strings.EqualFold(filepath.Ext(p), ".pdf") {
			if _, err := services.ValidateSeedPDF(p); err != nil {
				return nil, err
			}
		}
		f, err := services.FileFromPath(p)
		if err != nil {
			return nil, err
		}
		files = append(files, f)
	}
	return files, nil
}

// newProgressPrinter renders one progress line per sequencer event.
func newProgressPrinter(w io.Writer) services.ProgressFunc {
	bar := progress.New(progress.WithDefaultGradient(), progress.WithWidth(30))
	return func(s models.UploadProgressState) {
		line := fmt.Sprintf("%s %3.0f%%  %s %d/%d", bar.ViewAs(s.Percent()/100), s.Percent(), s.Phase.Label(), s.CurrentFileIndex, s.TotalFiles)
		if s.CurrentFileName != "" {
			line += "  " + s.CurrentFileName
		}
		fmt.Fprintln(w, line)
	}
}

// describeFlowError adds what the user needs to know to retry.
func describeFlowError(err error) error {
	var upErr *services.FileUploadError
	var compErr *services.CompletionError
	switch {
	case errors.As(err, &upErr):
		return fmt.Errorf("%w (request %s was created; retrying will create a new request)", err, upErr.RequestID)
	case errors.As(err, &compErr):
		return fmt.Errorf("%w (all files were uploaded; retrying will create a new request)", err)
	default:
		return err
	}
}
