package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/lukman83/adscout/internal/export"
	"github.com/lukman83/adscout/internal/models"
	"github.com/lukman83/adscout/internal/progress"
	"github.com/lukman83/adscout/internal/scoring"
	"github.com/lukman83/adscout/internal/ui"
	"github.com/spf13/cobra"
)

var searchCmd = &cobra.Command{
	Use:   "search [keyword...]",
	Short: "Search active ads by keywords and group them by page",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runSearch,
}

func init() {
	searchCmd.Flags().Int("min-ads", -1, "Minimum ads per page (default from config)")
	searchCmd.Flags().Bool("winning", false, "Also flag winning ads")
	searchCmd.Flags().String("format", "json", "Output format: json, table, xlsx")
	searchCmd.Flags().String("out", "", "Output file for xlsx")
	rootCmd.AddCommand(searchCmd)
}

// searchOutput is the json shape of the search command.
type searchOutput struct {
	*models.SearchResult
	Winning *scoring.Detection `json:"winning,omitempty"`
}

func runSearch(cmd *cobra.Command, args []string) error {
	minAds, _ := cmd.Flags().GetInt("min-ads")
	if minAds < 0 {
		minAds = cfg.MinAds
	}
	withWinning, _ := cmd.Flags().GetBool("winning")
	format, _ := cmd.Flags().GetString("format")
	out, _ := cmd.Flags().GetString("out")

	runner, cleanup, err := newRunner()
	if err != nil {
		return err
	}
	defer cleanup()

	spin := ui.NewSpinner()
	spin.Start(fmt.Sprintf("Searching ads for %s...", strings.Join(args, ", ")))
	ctx := progress.With(cmd.Context(), spin.Update)
	res, err := runner.Search(ctx, args, minAds)
	spin.Stop()
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	result := searchOutput{SearchResult: res}
	if withWinning {
		d, err := runner.DetectWinning(ctx, res.Ads)
		if err != nil {
			return err
		}
		result.Winning = &d
	}

	wb := export.Workbook{Pages: res.Pages}
	if result.Winning != nil {
		wb.Winning = result.Winning.Winning
	}
	return output{format: format, path: out}.emit(result, func(w io.Writer) {
		printSearchSummary(w, res)
		printPagesTable(w, res.Pages)
		if result.Winning != nil {
			fmt.Fprintln(w)
			printWinningTable(w, result.Winning.Winning)
		}
	}, wb)
}
