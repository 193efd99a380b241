package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/lukman83/adscout/internal/models"
	"github.com/lukman83/adscout/internal/pipeline"
	"github.com/lukman83/adscout/internal/scoring"
	"github.com/lukman83/adscout/internal/store"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// Defaults applied when a tool call leaves an argument out.
type Defaults struct {
	MinAds        int
	ExportMinAds  int
	MaxConcurrent int
}

type tools struct {
	runner   *pipeline.Runner
	defaults Defaults
}

func registerTools(s *server.MCPServer, runner *pipeline.Runner, defaults Defaults) {
	t := &tools{runner: runner, defaults: defaults}

	// search_ads
	searchTool := mcp.NewTool("search_ads",
		mcp.WithDescription("Search active Meta ads for several keywords, deduplicate them and group them by advertiser page"),
		mcp.WithArray("keywords",
			mcp.Required(),
			mcp.Description("Search keywords"),
			mcp.WithStringItems(),
		),
		mcp.WithNumber("min_ads",
			mcp.Description("Minimum ads per page"),
		),
		mcp.WithBoolean("winning",
			mcp.Description("Also flag winning ads (default: false)"),
		),
	)
	s.AddTool(searchTool, t.handleSearchAds)

	// analyze_websites
	analyzeTool := mcp.NewTool("analyze_websites",
		mcp.WithDescription("Detect the e-commerce platform, theme, payment methods, currency and product count of websites"),
		mcp.WithArray("urls",
			mcp.Required(),
			mcp.Description("Website URLs; a missing scheme defaults to https"),
			mcp.WithStringItems(),
		),
		mcp.WithNumber("max_concurrent",
			mcp.Description("Sites analyzed at once, 1 to 20"),
		),
	)
	s.AddTool(analyzeTool, t.handleAnalyzeWebsites)

	// scout
	scoutTool := mcp.NewTool("scout",
		mcp.WithDescription("Search ads, flag winning ads, then analyze the websites of pages above the ad threshold"),
		mcp.WithArray("keywords",
			mcp.Required(),
			mcp.Description("Search keywords"),
			mcp.WithStringItems(),
		),
		mcp.WithNumber("export_min_ads",
			mcp.Description("Minimum ads for a page's website to be analyzed (default: 15)"),
		),
		mcp.WithNumber("max_concurrent",
			mcp.Description("Sites analyzed at once, 1 to 20"),
		),
		mcp.WithBoolean("skip_recount",
			mcp.Description("Apply the threshold to keyword-matched ad counts instead of complete per-page totals (default: false)"),
		),
	)
	s.AddTool(scoutTool, t.handleScout)

	// recount_pages
	recountTool := mcp.NewTool("recount_pages",
		mcp.WithDescription("Count every active ad of advertiser pages by page id, not only keyword matches, and store the totals"),
		mcp.WithArray("page_ids",
			mcp.Description("Page ids; empty recounts every stored page with a website"),
			mcp.WithStringItems(),
		),
	)
	s.AddTool(recountTool, t.handleRecountPages)

	// check_winning
	checkTool := mcp.NewTool("check_winning",
		mcp.WithDescription("Tell whether an ad of a given age and reach is winning, and by which tier"),
		mcp.WithNumber("age_days",
			mcp.Required(),
			mcp.Description("Days since the ad was created"),
		),
		mcp.WithNumber("reach",
			mcp.Required(),
			mcp.Description("EU total reach"),
		),
	)
	s.AddTool(checkTool, t.handleCheckWinning)

	// list_winning_ads
	winningTool := mcp.NewTool("list_winning_ads",
		mcp.WithDescription("List stored winning ads, highest reach first"),
		mcp.WithNumber("limit",
			mcp.Description("Number of ads (default: 20)"),
		),
	)
	s.AddTool(winningTool, t.handleListWinning)

	// list_pages
	pagesTool := mcp.NewTool("list_pages",
		mcp.WithDescription("List stored advertiser pages, largest first; blacklisted pages are hidden"),
		mcp.WithNumber("min_ads",
			mcp.Description("Minimum ads per page"),
		),
		mcp.WithString("bucket",
			mcp.Description("Size bucket: XS, S, M, L, XL, XXL"),
		),
		mcp.WithBoolean("favorites_only",
			mcp.Description("Only favorite pages"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Number of pages (default: 50)"),
		),
	)
	s.AddTool(pagesTool, t.handleListPages)
}

func (t *tools) handleSearchAds(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	keywords := request.GetStringSlice("keywords", nil)
	if len(keywords) == 0 {
		return mcp.NewToolResultError("keywords are required"), nil
	}
	minAds := request.GetInt("min_ads", t.defaults.MinAds)

	res, err := t.runner.Search(ctx, keywords, minAds)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("search error: %v", err)), nil
	}

	out := map[string]any{"search": res}
	if request.GetBool("winning", false) {
		d, err := t.runner.DetectWinning(ctx, res.Ads)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("winning error: %v", err)), nil
		}
		out["winning"] = d
	}
	return jsonResult(out)
}

func (t *tools) handleAnalyzeWebsites(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	urls := request.GetStringSlice("urls", nil)
	if len(urls) == 0 {
		return mcp.NewToolResultError("urls are required"), nil
	}
	maxConcurrent := request.GetInt("max_concurrent", t.defaults.MaxConcurrent)

	analyses, err := t.runner.Analyze(ctx, urls, maxConcurrent)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("analyze error: %v", err)), nil
	}
	return jsonResult(map[string]any{
		"analyses": analyses,
		"failed":   models.FailedCount(analyses),
	})
}

func (t *tools) handleScout(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	keywords := request.GetStringSlice("keywords", nil)
	if len(keywords) == 0 {
		return mcp.NewToolResultError("keywords are required"), nil
	}

	report, err := t.runner.Scout(ctx, pipeline.ScoutRequest{
		Keywords:      keywords,
		MinAds:        t.defaults.MinAds,
		ExportMinAds:  request.GetInt("export_min_ads", t.defaults.ExportMinAds),
		MaxConcurrent: request.GetInt("max_concurrent", t.defaults.MaxConcurrent),
		SkipRecount:   request.GetBool("skip_recount", false),
	})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("scout error: %v", err)), nil
	}
	return jsonResult(report)
}

func (t *tools) handleRecountPages(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	rc, err := t.runner.RecountStored(ctx, request.GetStringSlice("page_ids", nil))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("recount error: %v", err)), nil
	}
	return jsonResult(rc)
}

func (t *tools) handleCheckWinning(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	age := request.GetInt("age_days", -1)
	if age < 0 {
		return mcp.NewToolResultError("age_days is required"), nil
	}
	reach := int64(request.GetFloat("reach", -1))
	if reach < 0 {
		return mcp.NewToolResultError("reach is required"), nil
	}

	table := t.runner.Winning
	if table == nil {
		table = scoring.DefaultWinning
	}
	tier, winning := table.Evaluate(age, &reach)
	out := map[string]any{
		"winning":     winning,
		"explanation": table.Explain(age, &reach),
	}
	if winning {
		out["tier"] = tier.Label()
	}
	return jsonResult(out)
}

func (t *tools) handleListWinning(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	winners, err := t.runner.Store.ListWinningAds(ctx, t.runner.Scope, request.GetInt("limit", 20))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("store error: %v", err)), nil
	}
	return jsonResult(winners)
}

func (t *tools) handleListPages(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	bucket, err := models.ParseSizeBucket(request.GetString("bucket", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	pages, err := t.runner.Store.ListPages(ctx, t.runner.Scope, store.PageFilter{
		MinAds:        request.GetInt("min_ads", 0),
		Bucket:        bucket,
		FavoritesOnly: request.GetBool("favorites_only", false),
		Limit:         request.GetInt("limit", 50),
	})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("store error: %v", err)), nil
	}
	return jsonResult(map[string]any{
		"pages":        pages,
		"distribution": bucketCounts(pages),
	})
}

// bucketCounts keys the bucket distribution by label for json output.
func bucketCounts(pages []models.Page) map[string]int {
	out := map[string]int{}
	for b, n := range scoring.Distribution(pages) {
		out[b.String()] = n
	}
	return out
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("encode error: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}
