package main

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/JaimeStill/folio/internal/api"
	"github.com/JaimeStill/folio/internal/artifacts"
	"github.com/JaimeStill/folio/pkg/formatting"
)

func newVersionsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "versions <chapter>",
		Short: "List a chapter's stored revisions, oldest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withDomain(cmd, func(c context.Context, d *api.Domain) error {
				versions, err := d.Artifacts.Versions(c, args[0])
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, versions)
				}

				rows := make([][]string, 0, len(versions))
				for _, a := range versions {
					rows = append(rows, []string{
						a.Metadata.Version,
						strconv.Itoa(a.Metadata.Iteration),
						formatting.FormatBytes(int64(len(a.Content)), 1),
						a.Metadata.Status,
						a.Metadata.ThreadID,
						a.ID.String(),
						a.Metadata.CreatedAt.Local().Format("2006-01-02 15:04:05"),
					})
				}

				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"Version", "Iteration", "Size", "Status", "Thread", "ID", "Created"},
					rows,
					[]columnAlignment{alignLeft, alignRight, alignRight},
				))
				return nil
			})
		},
	}
}

func newSearchCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Find stored artifacts similar to a query",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withDomain(cmd, func(c context.Context, d *api.Domain) error {
				results, err := d.Artifacts.Search(c, args[0], limit)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, results)
				}

				rows := make([][]string, 0, len(results))
				for _, r := range results {
					rows = append(rows, []string{
						strconv.FormatFloat(r.Score, 'f', 3, 64),
						r.Artifact.Metadata.ChapterID,
						r.Artifact.Metadata.Version,
						r.Artifact.ID.String(),
						excerpt(r.Artifact.Content, 60),
					})
				}

				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"Score", "Chapter", "Version", "ID", "Excerpt"},
					rows,
					[]columnAlignment{alignRight},
				))
				return nil
			})
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Maximum results (configured default when 0)")
	return cmd
}

func newExportCommand(ctx *commandContext) *cobra.Command {
	var (
		version string
		html    bool
		out     string
	)

	cmd := &cobra.Command{
		Use:   "export <chapter>",
		Short: "Write a chapter revision as markdown or HTML",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withDomain(cmd, func(c context.Context, d *api.Domain) error {
				versions, err := d.Artifacts.Versions(c, args[0])
				if err != nil {
					return err
				}

				a, err := pickVersion(versions, args[0], version)
				if err != nil {
					return err
				}

				body := a.Content
				if html {
					if body, err = d.Artifacts.Render(c, a.ID); err != nil {
						return err
					}
				}

				if out == "" {
					_, err := fmt.Fprintln(cmd.OutOrStdout(), body)
					return err
				}
				if err := os.WriteFile(out, []byte(body), 0o644); err != nil {
					return fmt.Errorf("write %s: %w", out, err)
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "exported %s %s to %s\n", args[0], a.Metadata.Version, out)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&version, "version", "", "Revision to export (latest when empty)")
	cmd.Flags().BoolVar(&html, "html", false, "Render the revision as HTML")
	cmd.Flags().StringVarP(&out, "out", "o", "", "Output file (stdout when empty)")

	return cmd
}

// pickVersion returns the named revision, or the newest one when version is empty.
func pickVersion(versions []artifacts.Artifact, chapterID, version string) (artifacts.Artifact, error) {
	if len(versions) == 0 {
		return artifacts.Artifact{}, fmt.Errorf("%w: no revisions for chapter %s", artifacts.ErrNotFound, chapterID)
	}
	if version == "" {
		return versions[len(versions)-1], nil
	}
	for _, a := range versions {
		if a.Metadata.Version == version {
			return a, nil
		}
	}
	return artifacts.Artifact{}, fmt.Errorf("%w: chapter %s has no revision %s", artifacts.ErrNotFound, chapterID, version)
}
