package cmd

import (
	"fmt"
	"io"
	"strconv"

	"github.com/lukman83/adscout/internal/export"
	"github.com/lukman83/adscout/internal/scoring"
	"github.com/spf13/cobra"
)

var winningCmd = &cobra.Command{
	Use:   "winning",
	Short: "List stored winning ads",
	RunE:  runWinning,
}

var winningCheckCmd = &cobra.Command{
	Use:   "check [age-days] [reach]",
	Short: "Explain whether an ad with the given age and reach is winning",
	Args:  cobra.ExactArgs(2),
	RunE:  runWinningCheck,
}

func init() {
	winningCmd.Flags().Int("limit", 50, "Number of ads")
	winningCmd.Flags().String("format", "table", "Output format: json, table, xlsx")
	winningCmd.Flags().String("out", "", "Output file for xlsx")
	winningCmd.AddCommand(winningCheckCmd)
	rootCmd.AddCommand(winningCmd)
}

func runWinning(cmd *cobra.Command, args []string) error {
	limit, _ := cmd.Flags().GetInt("limit")
	format, _ := cmd.Flags().GetString("format")
	out, _ := cmd.Flags().GetString("out")

	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	winners, err := st.ListWinningAds(cmd.Context(), cfg.Scope, limit)
	if err != nil {
		return err
	}
	return output{format: format, path: out}.emit(winners, func(w io.Writer) {
		printWinningTable(w, winners)
	}, export.Workbook{Winning: winners})
}

func runWinningCheck(cmd *cobra.Command, args []string) error {
	age, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("age-days: %w", err)
	}
	reach, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil {
		return fmt.Errorf("reach: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), scoring.DefaultWinning.Explain(age, &reach))
	return nil
}
