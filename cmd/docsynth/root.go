package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/Lllllllleong/docsynth/internal/backend"
	"github.com/Lllllllleong/docsynth/internal/config"
	"github.com/Lllllllleong/docsynth/internal/gcp"
	"github.com/Lllllllleong/docsynth/internal/services"
	"github.com/spf13/cobra"
)

var (
	cfgFile string
	verbose bool
	userID  string
	asJSON  bool

	// app is populated by the root command's PersistentPreRunE.
	app *appContext
)

// appContext holds what every subcommand needs. The document cache lives here
// so that all reads in one process share it.
type appContext struct {
	cfg       config.Config
	client    *backend.Client
	cache     *services.DocumentCache
	dashboard *services.Dashboard
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "docsynth",
	Short: "Submit and review document synthesis requests",
	Long: `docsynth talks to the document synthesis backend: it submits seed
documents and visual assets for generation, lists generated documents,
shows dashboard statistics and downloads results.

Configuration is read from ~/.docsynth.yaml (or --config) and may be
overridden with DOCSYNTH_BACKEND_URL, DOCSYNTH_USER_ID and DOCSYNTH_PROJECT_ID.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		setupLogging(verbose)

		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		if userID != "" {
			cfg.UserID = userID
		}
		client, err := backend.NewClient(cfg.BackendURL, &http.Client{Timeout: cfg.HTTPTimeout})
		if err != nil {
			return err
		}
		cache := services.NewDocumentCache()
		app = &appContext{
			cfg:       cfg,
			client:    client,
			cache:     cache,
			dashboard: services.NewDashboard(client, cache),
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/"+config.FileName+")")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log progress and backend calls to stderr")
	rootCmd.PersistentFlags().StringVar(&userID, "user", "", "user id (overrides user_id from the config)")
	rootCmd.PersistentFlags().BoolVar(&asJSON, "json", false, "print JSON instead of a table")

	rootCmd.AddCommand(submitCmd)
	rootCmd.AddCommand(docsCmd)
	rootCmd.AddCommand(batchCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(downloadCmd)
	rootCmd.AddCommand(configCmd)
}

func setupLogging(verbose bool) {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
}

func (a *appContext) requireUser() (string, error) {
	if a.cfg.UserID == "" {
		return "", fmt.Errorf("no user id: pass --user or set user_id in the config")
	}
	return a.cfg.UserID, nil
}

// journal returns a Firestore-backed journal when a project is configured.
// The returned closer must be called once the flow is over.
func (a *appContext) journal(ctx context.Context) (services.SubmissionJournal, func(), error) {
	if a.cfg.ProjectID == "" {
		return nil, func() {}, nil
	}
	fs, err := gcp.NewFirestoreClient(ctx, a.cfg.ProjectID)
	if err != nil {
		return nil, nil, err
	}
	return services.NewFirestoreJournal(fs, a.cfg.JournalCollection), func() { _ = fs.Close() }, nil
}
