package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/lukman83/adscout/internal/export"
	"github.com/lukman83/adscout/internal/models"
	"github.com/lukman83/adscout/internal/progress"
	"github.com/lukman83/adscout/internal/store"
	"github.com/lukman83/adscout/internal/ui"
	"github.com/spf13/cobra"
)

var pagesCmd = &cobra.Command{
	Use:   "pages",
	Short: "List stored advertiser pages",
	RunE:  runPages,
}

var favoriteCmd = &cobra.Command{
	Use:   "favorite [page-id...]",
	Short: "Toggle the favorite flag of pages",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return updateFlags(cmd.Context(), args, func(f *models.PageFlags) { f.Favorite = !f.Favorite })
	},
}

var recountCmd = &cobra.Command{
	Use:   "recount [page-id...]",
	Short: "Count every active ad of pages by page id",
	Long: `Queries the ad library by page id to get each page's complete active
ad total, not only the ads matching past keywords. Without ids, every stored
page with a website is recounted.`,
	RunE: runRecount,
}

var blacklistCmd = &cobra.Command{
	Use:   "blacklist [page-id...]",
	Short: "Exclude pages from future searches",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		remove, _ := cmd.Flags().GetBool("remove")
		return updateFlags(cmd.Context(), args, func(f *models.PageFlags) { f.Blacklisted = !remove })
	},
}

func init() {
	pagesCmd.Flags().Int("min-ads", 0, "Minimum ads per page")
	pagesCmd.Flags().String("bucket", "", "Only pages of this size bucket: XS, S, M, L, XL, XXL")
	pagesCmd.Flags().Bool("favorites", false, "Only favorite pages")
	pagesCmd.Flags().Bool("blacklisted", false, "Include blacklisted pages")
	pagesCmd.Flags().Int("limit", 100, "Number of pages")
	pagesCmd.Flags().String("format", "table", "Output format: json, table, xlsx")
	pagesCmd.Flags().String("out", "", "Output file for xlsx")
	pagesCmd.AddCommand(favoriteCmd)

	recountCmd.Flags().String("format", "table", "Output format: json, table, xlsx")
	recountCmd.Flags().String("out", "", "Output file for xlsx")
	pagesCmd.AddCommand(recountCmd)
	rootCmd.AddCommand(pagesCmd)

	blacklistCmd.Flags().Bool("remove", false, "Remove pages from the blacklist")
	rootCmd.AddCommand(blacklistCmd)
}

func runPages(cmd *cobra.Command, args []string) error {
	var f store.PageFilter
	f.MinAds, _ = cmd.Flags().GetInt("min-ads")
	f.FavoritesOnly, _ = cmd.Flags().GetBool("favorites")
	f.IncludeBlacklisted, _ = cmd.Flags().GetBool("blacklisted")
	f.Limit, _ = cmd.Flags().GetInt("limit")
	if b, _ := cmd.Flags().GetString("bucket"); b != "" {
		bucket, err := models.ParseSizeBucket(b)
		if err != nil {
			return err
		}
		f.Bucket = bucket
	}
	format, _ := cmd.Flags().GetString("format")
	out, _ := cmd.Flags().GetString("out")

	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	pages, err := st.ListPages(cmd.Context(), cfg.Scope, f)
	if err != nil {
		return err
	}
	return output{format: format, path: out}.emit(pages, func(w io.Writer) {
		printPagesTable(w, pages)
	}, export.Workbook{Pages: pages})
}

func runRecount(cmd *cobra.Command, args []string) error {
	format, _ := cmd.Flags().GetString("format")
	out, _ := cmd.Flags().GetString("out")

	runner, cleanup, err := newRunner()
	if err != nil {
		return err
	}
	defer cleanup()

	spin := ui.NewSpinner()
	spin.Start("Recounting pages...")
	ctx := progress.With(cmd.Context(), spin.Update)
	rc, err := runner.RecountStored(ctx, args)
	spin.Stop()
	if err != nil {
		return fmt.Errorf("recount failed: %w", err)
	}

	return output{format: format, path: out}.emit(rc, func(w io.Writer) {
		fmt.Fprintf(w, "Recounted %d of %d pages", rc.Recounted, len(rc.Pages))
		if rc.Failed > 0 {
			fmt.Fprintf(w, " (%d failed)", rc.Failed)
		}
		fmt.Fprint(w, "\n\n")
		printPagesTable(w, rc.Pages)
	}, export.Workbook{Pages: rc.Pages})
}

// updateFlags applies change to the stored flags of every page. Unknown
// pages get a bare row so they can be blacklisted before they are seen.
func updateFlags(ctx context.Context, pageIDs []string, change func(*models.PageFlags)) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	for _, id := range pageIDs {
		var flags models.PageFlags
		p, err := st.FindPage(ctx, cfg.Scope, id)
		switch {
		case err == nil:
			flags = p.Flags
		case !errors.Is(err, store.ErrNotFound):
			return err
		}
		change(&flags)
		if err := st.SetFlags(ctx, cfg.Scope, id, flags); err != nil {
			return fmt.Errorf("page %s: %w", id, err)
		}
		logger.Info("page updated", "page", id, "favorite", flags.Favorite, "blacklisted", flags.Blacklisted)
	}
	return nil
}
