package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/JaimeStill/folio/internal/api"
	"github.com/JaimeStill/folio/internal/workflow"
	"github.com/JaimeStill/folio/pkg/pagination"
)

func newStartCommand(ctx *commandContext) *cobra.Command {
	var (
		file         string
		threadID     string
		chapterID    string
		title        string
		sourceURL    string
		instructions string
		status       string
	)

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start a thread from a chapter file and drive it until it pauses",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := readInput(cmd, file)
			if err != nil {
				return err
			}

			in := workflow.StartInput{
				Content: workflow.Content{
					Text: text,
					Source: workflow.Source{
						URL:       sourceURL,
						Title:     title,
						ChapterID: chapterID,
					},
				},
				Instructions: instructions,
				Status:       status,
			}

			return ctx.withDomain(cmd, func(c context.Context, d *api.Domain) error {
				cp, err := d.Engine.Start(c, threadID, in)
				if err != nil {
					return err
				}
				return ctx.writeCheckpoint(cmd, cp)
			})
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "Chapter file to edit (- for stdin)")
	cmd.Flags().StringVar(&threadID, "thread", "", "Thread id (generated when empty)")
	cmd.Flags().StringVar(&chapterID, "chapter", "", "Chapter id used to group artifact versions")
	cmd.Flags().StringVar(&title, "title", "", "Source title")
	cmd.Flags().StringVar(&sourceURL, "url", "", "Source URL")
	cmd.Flags().StringVar(&instructions, "instructions", "", "Extra editing instructions for the writer")
	cmd.Flags().StringVar(&status, "status", "", "Initial status (defaults to scraped)")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

func newDriveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "drive <thread>",
		Short: "Drive a thread from its pending node",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withDomain(cmd, func(c context.Context, d *api.Domain) error {
				cp, err := d.Engine.Drive(c, args[0])
				if err != nil {
					return err
				}
				return ctx.writeCheckpoint(cmd, cp)
			})
		},
	}
}

func newResumeCommand(ctx *commandContext) *cobra.Command {
	var (
		verdict  string
		feedback string
		status   string
	)

	cmd := &cobra.Command{
		Use:   "resume <thread>",
		Short: "Answer a suspended thread's human review and drive it on",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, ok := workflow.ParseVerdict(verdict)
			if !ok || v == workflow.VerdictPending {
				return fmt.Errorf("%w: %q", workflow.ErrInvalidVerdict, verdict)
			}

			payload := workflow.ResumePayload{
				Feedback: feedback,
				Verdict:  v,
				Status:   status,
			}

			return ctx.withDomain(cmd, func(c context.Context, d *api.Domain) error {
				cp, err := d.Engine.Resume(c, args[0], payload)
				if err != nil {
					return err
				}
				return ctx.writeCheckpoint(cmd, cp)
			})
		},
	}

	labels := strings.Join(workflow.VerdictLabels()[1:], ", ")
	cmd.Flags().StringVar(&verdict, "verdict", "", "Review verdict: "+labels)
	cmd.Flags().StringVar(&feedback, "feedback", "", "Feedback passed to the writer")
	cmd.Flags().StringVar(&status, "status", "", "Override the display status")
	_ = cmd.MarkFlagRequired("verdict")

	return cmd
}

func newShowCommand(ctx *commandContext) *cobra.Command {
	var messages bool

	cmd := &cobra.Command{
		Use:   "show <thread>",
		Short: "Show a thread's latest state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withDomain(cmd, func(c context.Context, d *api.Domain) error {
				cp, err := d.Engine.Checkpoint(c, args[0])
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, cp)
				}

				out := cmd.OutOrStdout()
				fmt.Fprintln(out, renderCheckpoint(cp))
				s := cp.State

				fmt.Fprintf(out, "\nDecision: %s\nVerdict:  %s\n", s.Decision, s.Verdict)
				if s.Error != "" {
					fmt.Fprintf(out, "Error:    %s\n", s.Error)
				}
				if s.ReviewerFeedback != "" {
					fmt.Fprintf(out, "\nReviewer feedback:\n%s\n", s.ReviewerFeedback)
				}
				if s.QualityReport != nil {
					score := "n/a"
					if s.QualityReport.Score != nil {
						score = strconv.FormatFloat(*s.QualityReport.Score, 'f', -1, 64)
					}
					fmt.Fprintf(out, "\nQuality score: %s\n%s\n", score, s.QualityReport.Summary)
				}
				fmt.Fprintf(out, "\nCurrent content:\n%s\n", s.CurrentContent)

				if messages {
					rows := make([][]string, 0, len(s.Messages))
					for i, m := range s.Messages {
						rows = append(rows, []string{strconv.Itoa(i + 1), m.Role, excerpt(m.Text, 80)})
					}
					fmt.Fprintln(out)
					fmt.Fprintln(out, renderTable([]string{"#", "Role", "Text"}, rows, []columnAlignment{alignRight}))
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&messages, "messages", false, "Include the conversation log")
	return cmd
}

func newThreadsCommand(ctx *commandContext) *cobra.Command {
	var (
		page      int
		pageSize  int
		suspended bool
		chapterID string
		status    string
	)

	cmd := &cobra.Command{
		Use:   "threads",
		Short: "List threads, most recently updated first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var filters workflow.Filters
			if cmd.Flags().Changed("suspended") {
				filters.Suspended = &suspended
			}
			if chapterID != "" {
				filters.ChapterID = &chapterID
			}
			if status != "" {
				filters.Status = &status
			}

			return ctx.withDomain(cmd, func(c context.Context, d *api.Domain) error {
				cfg, _ := ctx.ensureConfig()
				req := pagination.PageRequest{Page: page, PageSize: pageSize}
				req.Normalize(cfg.API.Pagination)

				result, err := d.Engine.List(c, req, filters)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, result)
				}

				rows := make([][]string, 0, len(result.Data))
				for _, s := range result.Data {
					rows = append(rows, []string{
						s.ThreadID,
						s.ChapterID,
						string(s.PendingNode),
						s.Status,
						strconv.Itoa(s.IterationCount),
						yesNo(s.Suspended),
						s.UpdatedAt.Local().Format("2006-01-02 15:04:05"),
					})
				}

				out := cmd.OutOrStdout()
				fmt.Fprintln(out, renderTable(
					[]string{"Thread", "Chapter", "Pending", "Status", "Iterations", "Suspended", "Updated"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight},
				))
				fmt.Fprintf(out, "page %d of %d (%d threads)\n", result.Page, result.TotalPages, result.Total)
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&page, "page", 1, "Page number")
	cmd.Flags().IntVar(&pageSize, "page-size", 0, "Page size (configured default when 0)")
	cmd.Flags().BoolVar(&suspended, "suspended", false, "Only threads waiting on human review")
	cmd.Flags().StringVar(&chapterID, "chapter", "", "Only threads for this chapter")
	cmd.Flags().StringVar(&status, "status", "", "Only threads with this status")

	return cmd
}

func (c *commandContext) writeCheckpoint(cmd *cobra.Command, cp workflow.Checkpoint) error {
	if c.jsonOutput() {
		return writeJSON(cmd, cp)
	}

	fmt.Fprintln(cmd.OutOrStdout(), renderCheckpoint(cp))
	if cp.Suspended {
		fmt.Fprintf(cmd.OutOrStdout(), "thread %s is waiting for review: folio resume %s --verdict <verdict>\n", cp.ThreadID, cp.ThreadID)
	}
	return nil
}

func renderCheckpoint(cp workflow.Checkpoint) string {
	rows := [][]string{
		{"Thread", cp.ThreadID},
		{"Chapter", cp.State.ChapterID()},
		{"Pending", string(cp.PendingNode)},
		{"Status", cp.State.Status},
		{"Iterations", strconv.Itoa(cp.State.IterationCount)},
		{"Suspended", yesNo(cp.Suspended)},
		{"Step", strconv.Itoa(cp.Step)},
	}
	return renderTable([]string{"Field", "Value"}, rows, nil)
}
