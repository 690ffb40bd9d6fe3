package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/Lllllllleong/docsynth/internal/models"
	"github.com/spf13/cobra"
)

var (
	docsRefresh bool
	docsWatch   time.Duration
)

var docsCmd = &cobra.Command{
	Use:   "docs",
	Short: "List generated documents",
	RunE: func(cmd *cobra.Command, args []string) error {
		uid, err := app.requireUser()
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		out := cmd.OutOrStdout()

		docs, err := app.dashboard.Documents(ctx, uid, docsRefresh)
		if err != nil {
			return err
		}
		if err := printDocuments(out, docs, asJSON); err != nil {
			return err
		}
		if docsWatch <= 0 {
			return nil
		}

		ticker := time.NewTicker(docsWatch)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				docs, err := app.dashboard.Documents(ctx, uid, true)
				if err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "refresh failed: %v\n", err)
					continue
				}
				fmt.Fprintf(out, "\n-- %s --\n", time.Now().Format(time.TimeOnly))
				if err := printDocuments(out, docs, asJSON); err != nil {
					return err
				}
			}
		}
	},
}

var batchCmd = &cobra.Command{
	Use:   "batch <batch-id>",
	Short: "Show one batch of generated documents",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		batch, err := app.dashboard.Batch(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if asJSON {
			return writeJSON(out, batch)
		}
		fmt.Fprintf(out, "Batch %s  status=%s  request=%s\n", batch.ID, batch.Status, batch.RequestID)
		return printDocuments(out, batch.Documents, false)
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show dashboard statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		uid, err := app.requireUser()
		if err != nil {
			return err
		}
		ov, err := app.dashboard.Overview(cmd.Context(), uid)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if asJSON {
			return writeJSON(out, ov)
		}
		s := ov.Stats
		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintf(tw, "Generated docs\t%d\n", s.GeneratedDocs)
		fmt.Fprintf(tw, "Requested docs\t%d\n", s.RequestedDocs)
		fmt.Fprintf(tw, "Flagged docs\t%d\n", s.FlaggedDocs)
		fmt.Fprintf(tw, "Success ratio\t%v\n", s.SuccessRatio)
		fmt.Fprintf(tw, "Processing queue\t%d\n", s.ProcessingQueue)
		fmt.Fprintf(tw, "Pending review\t%d\n", s.PendingReview)
		fmt.Fprintf(tw, "Verified today\t%d\n", s.VerifiedToday)
		fmt.Fprintf(tw, "Documents listed\t%d\n", len(ov.Documents))
		if err := tw.Flush(); err != nil {
			return err
		}
		if len(s.RecentGenerations) > 0 {
			fmt.Fprintln(out, "\nRecent generations:")
			tw = tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			for _, g := range s.RecentGenerations {
				fmt.Fprintf(tw, "  %s\t%s\t%s\n", g.DocName, g.Date, g.Status)
			}
			return tw.Flush()
		}
		return nil
	},
}

func init() {
	docsCmd.Flags().BoolVar(&docsRefresh, "refresh", false, "bypass the cache")
	docsCmd.Flags().DurationVar(&docsWatch, "watch", 0, "keep polling at this interval")
}

func printDocuments(w io.Writer, docs []models.Document, jsonOut bool) error {
	if jsonOut {
		return writeJSON(w, docs)
	}
	if len(docs) == 0 {
		_, err := fmt.Fprintln(w, "No documents.")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tTYPE\tDOCS\tSTATUS\tCREATED")
	for _, d := range docs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s\n", d.ID, d.DocName, d.DocumentType, d.NumDocs, d.Status, d.CreatedAt.Display("Jan 2, 2006"))
	}
	return tw.Flush()
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
