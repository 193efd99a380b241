package cmd

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"sync/atomic"

	"github.com/lukman83/adscout/internal/export"
	"github.com/lukman83/adscout/internal/progress"
	"github.com/lukman83/adscout/internal/ui"
	"github.com/spf13/cobra"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze [url...]",
	Short: "Detect platform, theme, payments and catalog size of websites",
	RunE:  runAnalyze,
}

func init() {
	analyzeCmd.Flags().Int("concurrency", 0, "Sites analyzed at once (default from config, max 20)")
	analyzeCmd.Flags().String("file", "", "Read URLs from a file, one per line")
	analyzeCmd.Flags().String("format", "json", "Output format: json, table, xlsx")
	analyzeCmd.Flags().String("out", "", "Output file for xlsx")
	rootCmd.AddCommand(analyzeCmd)
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	concurrency, _ := cmd.Flags().GetInt("concurrency")
	if concurrency == 0 {
		concurrency = cfg.MaxConcurrent
	}
	file, _ := cmd.Flags().GetString("file")
	format, _ := cmd.Flags().GetString("format")
	out, _ := cmd.Flags().GetString("out")

	urls := args
	if file != "" {
		fromFile, err := readURLFile(file)
		if err != nil {
			return err
		}
		urls = append(urls, fromFile...)
	}
	if len(urls) == 0 {
		return fmt.Errorf("no urls given")
	}

	runner, cleanup, err := newRunner()
	if err != nil {
		return err
	}
	defer cleanup()

	spin := ui.NewSpinner()
	spin.Start(fmt.Sprintf("Analyzing %d websites...", len(urls)))
	var done atomic.Int32
	ctx := progress.With(cmd.Context(), func(msg string) {
		spin.Update(fmt.Sprintf("[%d/%d] %s", done.Add(1), len(urls), msg))
	})
	analyses, err := runner.Analyze(ctx, urls, concurrency)
	spin.Stop()
	if err != nil {
		return fmt.Errorf("analyze failed: %w", err)
	}

	return output{format: format, path: out}.emit(analyses, func(w io.Writer) {
		printAnalysesTable(w, analyses)
	}, export.Workbook{Analyses: analyses})
}

// readURLFile reads one URL per line, skipping blanks and # comments.
func readURLFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var urls []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		urls = append(urls, line)
	}
	return urls, scanner.Err()
}
