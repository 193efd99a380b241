package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/lukman83/adscout/internal/export"
	"github.com/lukman83/adscout/internal/pipeline"
	"github.com/lukman83/adscout/internal/progress"
	"github.com/lukman83/adscout/internal/ui"
	"github.com/spf13/cobra"
)

var scoutCmd = &cobra.Command{
	Use:   "scout [keyword...]",
	Short: "Search ads, flag winners and analyze the websites of large pages",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runScout,
}

func init() {
	scoutCmd.Flags().Int("min-ads", -1, "Minimum ads per page (default from config)")
	scoutCmd.Flags().Int("export-min-ads", 0, "Minimum ads for a page's website to be analyzed (default from config)")
	scoutCmd.Flags().Int("concurrency", 0, "Sites analyzed at once (default from config, max 20)")
	scoutCmd.Flags().Bool("no-recount", false, "Apply the export threshold to keyword-matched ad counts")
	scoutCmd.Flags().String("format", "table", "Output format: json, table, xlsx")
	scoutCmd.Flags().String("out", "", "Output file for xlsx")
	rootCmd.AddCommand(scoutCmd)
}

func runScout(cmd *cobra.Command, args []string) error {
	req := pipeline.ScoutRequest{Keywords: args}
	req.MinAds, _ = cmd.Flags().GetInt("min-ads")
	if req.MinAds < 0 {
		req.MinAds = cfg.MinAds
	}
	req.ExportMinAds, _ = cmd.Flags().GetInt("export-min-ads")
	if req.ExportMinAds == 0 {
		req.ExportMinAds = cfg.ExportMinAds
	}
	req.MaxConcurrent, _ = cmd.Flags().GetInt("concurrency")
	if req.MaxConcurrent == 0 {
		req.MaxConcurrent = cfg.MaxConcurrent
	}
	req.SkipRecount, _ = cmd.Flags().GetBool("no-recount")
	format, _ := cmd.Flags().GetString("format")
	out, _ := cmd.Flags().GetString("out")

	runner, cleanup, err := newRunner()
	if err != nil {
		return err
	}
	defer cleanup()

	spin := ui.NewSpinner()
	spin.Start(fmt.Sprintf("Scouting %s...", strings.Join(args, ", ")))
	ctx := progress.With(cmd.Context(), spin.Update)
	report, err := runner.Scout(ctx, req)
	spin.Stop()
	if err != nil {
		return fmt.Errorf("scout failed: %w", err)
	}

	wb := export.Workbook{
		Pages:    report.Search.Pages,
		Winning:  report.Winning.Winning,
		Analyses: report.Analyses,
	}
	return output{format: format, path: out}.emit(report, func(w io.Writer) {
		printSearchSummary(w, report.Search)
		printPagesTable(w, report.Search.Pages)
		fmt.Fprintln(w)
		printWinningTable(w, report.Winning.Winning)
		fmt.Fprintln(w)
		if len(report.Sites) == 0 {
			fmt.Fprintf(w, "No page reached %d ads with a known website.\n", req.ExportMinAds)
			return
		}
		printAnalysesTable(w, report.Analyses)
		if report.RecountFailed > 0 {
			fmt.Fprintf(w, "%d pages could not be recounted and kept their keyword count\n", report.RecountFailed)
		}
		if report.NoWebsite > 0 {
			fmt.Fprintf(w, "%d large pages had no website in their ads\n", report.NoWebsite)
		}
	}, wb)
}
