package main

import (
	"errors"
	"fmt"

	"github.com/Lllllllleong/docsynth/internal/gcp"
	"github.com/Lllllllleong/docsynth/internal/services"
	"github.com/spf13/cobra"
)

var (
	downloadDir   string
	downloadDocID string
)

var downloadCmd = &cobra.Command{
	Use:   "download [gs://bucket/object ...]",
	Short: "Download generated documents from storage",
	Long: `Download generated documents by their gs:// path, or by document id
with --doc, in which case the path is looked up in the document list.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		uris := append([]string(nil), args...)

		if downloadDocID != "" {
			uid, err := app.requireUser()
			if err != nil {
				return err
			}
			docs, err := app.dashboard.Documents(ctx, uid, false)
			if err != nil {
				return err
			}
			found := false
			for _, d := range docs {
				if d.ID == downloadDocID {
					if d.Path == "" {
						return fmt.Errorf("document %s has no stored file yet (status %q)", d.ID, d.Status)
					}
					uris = append(uris, d.Path)
					found = true
					break
				}
			}
			if !found {
				return fmt.Errorf("document %s not found for user %s", downloadDocID, uid)
			}
		}
		if len(uris) == 0 {
			return errors.New("nothing to download: pass gs:// paths or --doc")
		}
		for _, uri := range uris {
			if _, _, err := gcp.ParseGCSURI(uri); err != nil {
				return err
			}
		}

		clients, err := gcp.NewClients(ctx, "")
		if err != nil {
			return err
		}
		defer clients.Close()

		dir := downloadDir
		if dir == "" {
			dir = app.cfg.DownloadDir
		}
		dl := services.NewDownloader(clients.Storage)
		for _, uri := range uris {
			local, err := dl.Download(ctx, uri, dir)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s -> %s\n", uri, local)
		}
		return nil
	},
}

func init() {
	downloadCmd.Flags().StringVar(&downloadDir, "dir", "", "destination directory (default from config)")
	downloadCmd.Flags().StringVar(&downloadDocID, "doc", "", "download the document with this id")
}
