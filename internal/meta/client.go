package meta

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/lukman83/adscout/internal/adsource"
	"github.com/lukman83/adscout/internal/httputil"
	"golang.org/x/time/rate"
)

const (
	DefaultBaseURL    = "https://graph.facebook.com"
	DefaultAPIVersion = "v24.0"
	DefaultLimit      = 1000
	MinLimit          = 100
)

// Fields requested for every ad.
var Fields = []string{
	"id", "page_id", "page_name", "ad_creation_time", "ad_delivery_stop_time",
	"ad_creative_bodies", "ad_creative_link_captions", "ad_creative_link_titles",
	"ad_snapshot_url", "eu_total_reach", "languages", "publisher_platforms",
	"target_ages", "target_gender", "currency",
}

var ErrMissingToken = errors.New("meta access token is not configured")

// APIError is an error object returned by the Graph API.
type APIError struct {
	Status  int    `json:"-"`
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    int    `json:"code"`
	Subcode int    `json:"error_subcode"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("graph api %d (code %d): %s", e.Status, e.Code, e.Message)
}

// TooMuchData reports whether the API asked for a smaller page.
func (e *APIError) TooMuchData() bool {
	return e.Code == 1 || strings.Contains(strings.ToLower(e.Message), "reduce the amount of data")
}

type Config struct {
	AccessToken string
	BaseURL     string
	APIVersion  string
	Limit       int
	MaxRetries  int
}

// Client queries the ads_archive endpoint. It implements adsource.Source.
type Client struct {
	http    *http.Client
	limiter *rate.Limiter
	log     *log.Logger
	cfg     Config
}

func NewClient(httpClient *http.Client, limiter *rate.Limiter, logger *log.Logger, cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.APIVersion == "" {
		cfg.APIVersion = DefaultAPIVersion
	}
	if cfg.Limit <= 0 {
		cfg.Limit = DefaultLimit
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Client{http: httpClient, limiter: limiter, log: logger, cfg: cfg}
}

func (c *Client) Name() string { return "meta" }

type archiveResponse struct {
	Data   []map[string]any `json:"data"`
	Paging struct {
		Cursors struct {
			After string `json:"after"`
		} `json:"cursors"`
		Next string `json:"next"`
	} `json:"paging"`
	Error *APIError `json:"error"`
}

// Query fetches one page of active ads. When the API rejects the page size
// the request is repeated with half the limit, down to MinLimit.
func (c *Client) Query(ctx context.Context, q adsource.Query) (adsource.Page, error) {
	if c.cfg.AccessToken == "" {
		return adsource.Page{}, ErrMissingToken
	}

	limit := c.cfg.Limit
	for {
		page, err := c.fetch(ctx, q, limit)
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.TooMuchData() && limit > MinLimit {
			limit = max(limit/2, MinLimit)
			c.log.Debug("reducing page size", "query", q.Label(), "limit", limit)
			continue
		}
		return page, err
	}
}

func (c *Client) fetch(ctx context.Context, q adsource.Query, limit int) (adsource.Page, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return adsource.Page{}, fmt.Errorf("rate limiter: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint(q, limit), nil)
	if err != nil {
		return adsource.Page{}, fmt.Errorf("build request: %w", err)
	}
	httputil.Apply(req, httputil.GraphAPIHeaders())

	resp, err := httputil.DoWithRetry(c.http, req, c.cfg.MaxRetries)
	if err != nil {
		return adsource.Page{}, fmt.Errorf("ads_archive %q: %w", q.Label(), err)
	}
	defer resp.Body.Close()

	body, err := httputil.ReadBody(resp)
	if err != nil {
		return adsource.Page{}, fmt.Errorf("read ads_archive response: %w", err)
	}

	var out archiveResponse
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(&out); err != nil {
		return adsource.Page{}, fmt.Errorf("decode ads_archive response (status %d): %w", resp.StatusCode, err)
	}
	if out.Error != nil {
		out.Error.Status = resp.StatusCode
		return adsource.Page{}, out.Error
	}
	if resp.StatusCode >= 400 {
		return adsource.Page{}, &APIError{Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
	}

	page := adsource.Page{Ads: make([]adsource.RawAd, 0, len(out.Data))}
	for _, d := range out.Data {
		page.Ads = append(page.Ads, adsource.RawAd(d))
	}
	if out.Paging.Next != "" {
		page.Next = out.Paging.Cursors.After
	}
	return page, nil
}

func (c *Client) endpoint(q adsource.Query, limit int) string {
	v := url.Values{}
	v.Set("access_token", c.cfg.AccessToken)
	if q.Keyword != "" {
		v.Set("search_terms", q.Keyword)
		v.Set("search_type", "KEYWORD_UNORDERED")
	}
	if len(q.PageIDs) > 0 {
		v.Set("search_page_ids", jsonList(q.PageIDs))
	}
	v.Set("ad_type", "ALL")
	v.Set("ad_active_status", "ACTIVE")
	v.Set("ad_reached_countries", jsonList(q.Countries))
	if len(q.Languages) > 0 {
		v.Set("languages", jsonList(q.Languages))
	}
	v.Set("fields", strings.Join(Fields, ","))
	v.Set("limit", strconv.Itoa(limit))
	if q.Cursor != "" {
		v.Set("after", q.Cursor)
	}
	return fmt.Sprintf("%s/%s/ads_archive?%s", strings.TrimRight(c.cfg.BaseURL, "/"), c.cfg.APIVersion, v.Encode())
}

func jsonList(items []string) string {
	if items == nil {
		items = []string{}
	}
	b, _ := json.Marshal(items)
	return string(b)
}
