package store

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lukman83/adscout/internal/models"
	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// SQLite is the production Store.
type SQLite struct {
	db  *sqlx.DB
	now func() time.Time
}

// OpenSQLite opens (creating if needed) the database at path and applies
// the schema. ":memory:" gives a private in-memory database.
func OpenSQLite(path string) (*SQLite, error) {
	dsn := fmt.Sprintf("%s?_journal=WAL&_synchronous=NORMAL&_busy_timeout=5000", path)
	db, err := sqlx.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// one writer; also keeps a :memory: database on a single connection
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	for _, m := range migrations {
		if _, err := db.Exec(m); err != nil && !strings.Contains(err.Error(), "duplicate column") {
			db.Close()
			return nil, fmt.Errorf("migrate schema: %w", err)
		}
	}
	return &SQLite{db: db, now: time.Now}, nil
}

func (s *SQLite) Close() error { return s.db.Close() }

// stringList is stored as a JSON array.
type stringList []string

func (l stringList) Value() (driver.Value, error) {
	if len(l) == 0 {
		return "[]", nil
	}
	b, err := json.Marshal([]string(l))
	return string(b), err
}

func (l *stringList) Scan(src any) error {
	var data []byte
	switch v := src.(type) {
	case nil:
		*l = nil
		return nil
	case string:
		data = []byte(v)
	case []byte:
		data = v
	default:
		return fmt.Errorf("scan string list from %T", src)
	}
	var out []string
	if err := json.Unmarshal(data, &out); err != nil {
		return err
	}
	if len(out) == 0 {
		out = nil
	}
	*l = out
	return nil
}

// --- pages ---

const pageColumns = `scope, id, name, website_url, ad_ids, ad_count, bucket, keywords, currency, active_ads, favorite, blacklisted, updated_at`

type pageRow struct {
	Scope       string        `db:"scope"`
	ID          string        `db:"id"`
	Name        string        `db:"name"`
	WebsiteURL  string        `db:"website_url"`
	AdIDs       stringList    `db:"ad_ids"`
	AdCount     int           `db:"ad_count"`
	Bucket      string        `db:"bucket"`
	Keywords    stringList    `db:"keywords"`
	Currency    string        `db:"currency"`
	ActiveAds   sql.NullInt64 `db:"active_ads"`
	Favorite    bool          `db:"favorite"`
	Blacklisted bool          `db:"blacklisted"`
	UpdatedAt   time.Time     `db:"updated_at"`
}

func (r pageRow) page() models.Page {
	bucket, _ := models.ParseSizeBucket(r.Bucket)
	p := models.Page{
		ID:         r.ID,
		Name:       r.Name,
		WebsiteURL: r.WebsiteURL,
		AdIDs:      r.AdIDs,
		Bucket:     bucket,
		Keywords:   r.Keywords,
		Currency:   r.Currency,
		Flags:      models.PageFlags{Favorite: r.Favorite, Blacklisted: r.Blacklisted},
	}
	if r.ActiveAds.Valid {
		n := int(r.ActiveAds.Int64)
		p.ActiveAds = &n
	}
	return p
}

func (s *SQLite) SavePages(ctx context.Context, scope string, pages []models.Page) error {
	const q = `
		INSERT INTO pages (scope, id, name, website_url, ad_ids, ad_count, bucket, keywords, currency, active_ads, updated_at)
		VALUES (:scope, :id, :name, :website_url, :ad_ids, :ad_count, :bucket, :keywords, :currency, :active_ads, :updated_at)
		ON CONFLICT(scope, id) DO UPDATE SET
			name        = excluded.name,
			website_url = COALESCE(NULLIF(excluded.website_url, ''), pages.website_url),
			ad_ids      = excluded.ad_ids,
			ad_count    = excluded.ad_count,
			bucket      = excluded.bucket,
			keywords    = excluded.keywords,
			currency    = excluded.currency,
			active_ads  = COALESCE(excluded.active_ads, pages.active_ads),
			updated_at  = excluded.updated_at`

	now := s.now().UTC()
	return s.inTx(ctx, func(tx *sqlx.Tx) error {
		for _, p := range pages {
			row := pageRow{
				Scope:      scope,
				ID:         p.ID,
				Name:       p.Name,
				WebsiteURL: p.WebsiteURL,
				AdIDs:      p.AdIDs,
				AdCount:    p.AdCount(),
				Bucket:     p.Bucket.String(),
				Keywords:   p.Keywords,
				Currency:   p.Currency,
				UpdatedAt:  now,
			}
			if p.ActiveAds != nil {
				row.ActiveAds = sql.NullInt64{Int64: int64(*p.ActiveAds), Valid: true}
			}
			if _, err := tx.NamedExecContext(ctx, q, row); err != nil {
				return fmt.Errorf("save page %s: %w", p.ID, err)
			}
		}
		return nil
	})
}

func (s *SQLite) FindPage(ctx context.Context, scope, pageID string) (models.Page, error) {
	var row pageRow
	err := s.db.GetContext(ctx, &row, `SELECT `+pageColumns+` FROM pages WHERE scope = ? AND id = ?`, scope, pageID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Page{}, fmt.Errorf("page %s: %w", pageID, ErrNotFound)
	}
	if err != nil {
		return models.Page{}, fmt.Errorf("find page: %w", err)
	}
	return row.page(), nil
}

func (s *SQLite) ListPages(ctx context.Context, scope string, f PageFilter) ([]models.Page, error) {
	where := []string{"scope = ?"}
	args := []any{scope}
	if !f.IncludeBlacklisted {
		where = append(where, "blacklisted = 0")
	}
	if f.FavoritesOnly {
		where = append(where, "favorite = 1")
	}
	if f.Bucket != models.BucketNone {
		where = append(where, "bucket = ?")
		args = append(args, f.Bucket.String())
	}
	if f.MinAds > 0 {
		where = append(where, "ad_count >= ?")
		args = append(args, f.MinAds)
	}
	q := `SELECT ` + pageColumns + ` FROM pages WHERE ` + strings.Join(where, " AND ") + ` ORDER BY ad_count DESC, id ASC`
	if f.Limit > 0 {
		q += ` LIMIT ?`
		args = append(args, f.Limit)
	}

	var rows []pageRow
	if err := s.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, fmt.Errorf("list pages: %w", err)
	}
	out := make([]models.Page, len(rows))
	for i, r := range rows {
		out[i] = r.page()
	}
	return out, nil
}

func (s *SQLite) SetFlags(ctx context.Context, scope, pageID string, flags models.PageFlags) error {
	const q = `
		INSERT INTO pages (scope, id, favorite, blacklisted, updated_at) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(scope, id) DO UPDATE SET
			favorite    = excluded.favorite,
			blacklisted = excluded.blacklisted,
			updated_at  = excluded.updated_at`
	if _, err := s.db.ExecContext(ctx, q, scope, pageID, flags.Favorite, flags.Blacklisted, s.now().UTC()); err != nil {
		return fmt.Errorf("set page flags: %w", err)
	}
	return nil
}

func (s *SQLite) ExcludedPageIDs(ctx context.Context, scope string) (map[string]bool, error) {
	var ids []string
	if err := s.db.SelectContext(ctx, &ids, `SELECT id FROM pages WHERE scope = ? AND blacklisted = 1`, scope); err != nil {
		return nil, fmt.Errorf("list blacklisted pages: %w", err)
	}
	out := make(map[string]bool, len(ids))
	for _, id := range ids {
		out[id] = true
	}
	return out, nil
}

// --- ads ---

const adColumns = `scope, id, page_id, page_name, bodies, link_titles, link_captions, snapshot_url,
	created_at, reach, active, currency, languages, platforms, keywords`

type adRow struct {
	Scope        string        `db:"scope"`
	ID           string        `db:"id"`
	PageID       string        `db:"page_id"`
	PageName     string        `db:"page_name"`
	Bodies       stringList    `db:"bodies"`
	LinkTitles   stringList    `db:"link_titles"`
	LinkCaptions stringList    `db:"link_captions"`
	SnapshotURL  string        `db:"snapshot_url"`
	CreatedAt    sql.NullTime  `db:"created_at"`
	Reach        sql.NullInt64 `db:"reach"`
	Active       bool          `db:"active"`
	Currency     string        `db:"currency"`
	Languages    stringList    `db:"languages"`
	Platforms    stringList    `db:"platforms"`
	Keywords     stringList    `db:"keywords"`
}

func newAdRow(scope string, a models.Ad) adRow {
	row := adRow{
		Scope:        scope,
		ID:           a.ID,
		PageID:       a.PageID,
		PageName:     a.PageName,
		Bodies:       a.Bodies,
		LinkTitles:   a.LinkTitles,
		LinkCaptions: a.LinkCaptions,
		SnapshotURL:  a.SnapshotURL,
		Active:       a.Active,
		Currency:     a.Currency,
		Languages:    a.Languages,
		Platforms:    a.Platforms,
		Keywords:     a.Keywords,
	}
	if !a.CreatedAt.IsZero() {
		row.CreatedAt = sql.NullTime{Time: a.CreatedAt.UTC(), Valid: true}
	}
	if a.Reach != nil {
		row.Reach = sql.NullInt64{Int64: *a.Reach, Valid: true}
	}
	return row
}

func (r adRow) ad() models.Ad {
	a := models.Ad{
		ID:           r.ID,
		PageID:       r.PageID,
		PageName:     r.PageName,
		Bodies:       r.Bodies,
		LinkTitles:   r.LinkTitles,
		LinkCaptions: r.LinkCaptions,
		SnapshotURL:  r.SnapshotURL,
		Active:       r.Active,
		Currency:     r.Currency,
		Languages:    r.Languages,
		Platforms:    r.Platforms,
		Keywords:     r.Keywords,
	}
	if r.CreatedAt.Valid {
		a.CreatedAt = r.CreatedAt.Time
	}
	if r.Reach.Valid {
		reach := r.Reach.Int64
		a.Reach = &reach
	}
	return a
}

func (s *SQLite) SaveAds(ctx context.Context, scope string, ads []models.Ad) error {
	q := `INSERT OR REPLACE INTO ads (` + adColumns + `) VALUES (
		:scope, :id, :page_id, :page_name, :bodies, :link_titles, :link_captions, :snapshot_url,
		:created_at, :reach, :active, :currency, :languages, :platforms, :keywords)`
	return s.inTx(ctx, func(tx *sqlx.Tx) error {
		for _, a := range ads {
			if _, err := tx.NamedExecContext(ctx, q, newAdRow(scope, a)); err != nil {
				return fmt.Errorf("save ad %s: %w", a.ID, err)
			}
		}
		return nil
	})
}

func (s *SQLite) FindAd(ctx context.Context, scope, adID string) (models.Ad, error) {
	var row adRow
	err := s.db.GetContext(ctx, &row, `SELECT `+adColumns+` FROM ads WHERE scope = ? AND id = ?`, scope, adID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Ad{}, fmt.Errorf("ad %s: %w", adID, ErrNotFound)
	}
	if err != nil {
		return models.Ad{}, fmt.Errorf("find ad: %w", err)
	}
	return row.ad(), nil
}

func (s *SQLite) AdsForPage(ctx context.Context, scope, pageID string) ([]models.Ad, error) {
	var rows []adRow
	err := s.db.SelectContext(ctx, &rows, `SELECT `+adColumns+` FROM ads WHERE scope = ? AND page_id = ? ORDER BY id`, scope, pageID)
	if err != nil {
		return nil, fmt.Errorf("list page ads: %w", err)
	}
	out := make([]models.Ad, len(rows))
	for i, r := range rows {
		out[i] = r.ad()
	}
	return out, nil
}

// --- winning ads ---

type winningRow struct {
	Scope      string    `db:"scope"`
	AdID       string    `db:"ad_id"`
	Ad         string    `db:"ad"`
	TierAge    int       `db:"tier_age"`
	TierReach  int64     `db:"tier_reach"`
	AgeDays    int       `db:"age_days"`
	Reach      int64     `db:"reach"`
	DetectedAt time.Time `db:"detected_at"`
}

func (s *SQLite) SaveWinningAds(ctx context.Context, scope string, ads []models.WinningAd) error {
	const q = `INSERT OR REPLACE INTO winning_ads (scope, ad_id, ad, tier_age, tier_reach, age_days, reach, detected_at)
		VALUES (:scope, :ad_id, :ad, :tier_age, :tier_reach, :age_days, :reach, :detected_at)`
	return s.inTx(ctx, func(tx *sqlx.Tx) error {
		for _, w := range ads {
			ad, err := json.Marshal(w.Ad)
			if err != nil {
				return fmt.Errorf("encode winning ad %s: %w", w.Ad.ID, err)
			}
			row := winningRow{
				Scope:      scope,
				AdID:       w.Ad.ID,
				Ad:         string(ad),
				TierAge:    w.Tier.MinAgeDays,
				TierReach:  w.Tier.MinReach,
				AgeDays:    w.AgeDays,
				Reach:      w.Reach,
				DetectedAt: w.DetectedAt.UTC(),
			}
			if _, err := tx.NamedExecContext(ctx, q, row); err != nil {
				return fmt.Errorf("save winning ad %s: %w", w.Ad.ID, err)
			}
		}
		return nil
	})
}

func (s *SQLite) ListWinningAds(ctx context.Context, scope string, limit int) ([]models.WinningAd, error) {
	q := `SELECT scope, ad_id, ad, tier_age, tier_reach, age_days, reach, detected_at
		FROM winning_ads WHERE scope = ? ORDER BY reach DESC, ad_id ASC`
	args := []any{scope}
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}
	var rows []winningRow
	if err := s.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, fmt.Errorf("list winning ads: %w", err)
	}
	out := make([]models.WinningAd, 0, len(rows))
	for _, r := range rows {
		w := models.WinningAd{
			Tier:       models.WinningTier{MinAgeDays: r.TierAge, MinReach: r.TierReach},
			AgeDays:    r.AgeDays,
			Reach:      r.Reach,
			DetectedAt: r.DetectedAt,
		}
		if err := json.Unmarshal([]byte(r.Ad), &w.Ad); err != nil {
			return nil, fmt.Errorf("decode winning ad %s: %w", r.AdID, err)
		}
		out = append(out, w)
	}
	return out, nil
}

// --- website analyses ---

const analysisColumns = `seq, scope, id, url, final_url, success, error, status_code, platform, theme,
	payment_methods, product_count, currency, category, product_types, title, description, analyzed_at`

type analysisRow struct {
	Seq            int64         `db:"seq"`
	Scope          string        `db:"scope"`
	ID             string        `db:"id"`
	URL            string        `db:"url"`
	FinalURL       string        `db:"final_url"`
	Success        bool          `db:"success"`
	Error          string        `db:"error"`
	StatusCode     int           `db:"status_code"`
	Platform       string        `db:"platform"`
	Theme          string        `db:"theme"`
	PaymentMethods stringList    `db:"payment_methods"`
	ProductCount   sql.NullInt64 `db:"product_count"`
	Currency       string        `db:"currency"`
	Category       string        `db:"category"`
	ProductTypes   stringList    `db:"product_types"`
	Title          string        `db:"title"`
	Description    string        `db:"description"`
	AnalyzedAt     time.Time     `db:"analyzed_at"`
}

func (r analysisRow) analysis() models.WebsiteAnalysis {
	a := models.WebsiteAnalysis{
		ID:             r.ID,
		URL:            r.URL,
		FinalURL:       r.FinalURL,
		Success:        r.Success,
		Error:          r.Error,
		StatusCode:     r.StatusCode,
		Platform:       r.Platform,
		Theme:          r.Theme,
		PaymentMethods: r.PaymentMethods,
		Currency:       r.Currency,
		Category:       r.Category,
		ProductTypes:   r.ProductTypes,
		Title:          r.Title,
		Description:    r.Description,
		AnalyzedAt:     r.AnalyzedAt,
	}
	if r.ProductCount.Valid {
		n := int(r.ProductCount.Int64)
		a.ProductCount = &n
	}
	return a
}

func (s *SQLite) SaveAnalysis(ctx context.Context, scope string, a models.WebsiteAnalysis) error {
	const q = `INSERT INTO website_analyses (scope, id, url, final_url, success, error, status_code, platform, theme,
			payment_methods, product_count, currency, category, product_types, title, description, analyzed_at)
		VALUES (:scope, :id, :url, :final_url, :success, :error, :status_code, :platform, :theme,
			:payment_methods, :product_count, :currency, :category, :product_types, :title, :description, :analyzed_at)`
	row := analysisRow{
		Scope:          scope,
		ID:             a.ID,
		URL:            a.URL,
		FinalURL:       a.FinalURL,
		Success:        a.Success,
		Error:          a.Error,
		StatusCode:     a.StatusCode,
		Platform:       a.Platform,
		Theme:          a.Theme,
		PaymentMethods: a.PaymentMethods,
		Currency:       a.Currency,
		Category:       a.Category,
		ProductTypes:   a.ProductTypes,
		Title:          a.Title,
		Description:    a.Description,
		AnalyzedAt:     a.AnalyzedAt.UTC(),
	}
	if a.ProductCount != nil {
		row.ProductCount = sql.NullInt64{Int64: int64(*a.ProductCount), Valid: true}
	}
	if _, err := s.db.NamedExecContext(ctx, q, row); err != nil {
		return fmt.Errorf("save analysis of %s: %w", a.URL, err)
	}
	return nil
}

func (s *SQLite) LatestAnalysis(ctx context.Context, scope, url string) (models.WebsiteAnalysis, error) {
	var row analysisRow
	err := s.db.GetContext(ctx, &row, `SELECT `+analysisColumns+` FROM website_analyses
		WHERE scope = ? AND url = ? ORDER BY analyzed_at DESC, seq DESC LIMIT 1`, scope, url)
	if errors.Is(err, sql.ErrNoRows) {
		return models.WebsiteAnalysis{}, fmt.Errorf("analysis of %s: %w", url, ErrNotFound)
	}
	if err != nil {
		return models.WebsiteAnalysis{}, fmt.Errorf("latest analysis: %w", err)
	}
	return row.analysis(), nil
}

func (s *SQLite) ListAnalyses(ctx context.Context, scope string) ([]models.WebsiteAnalysis, error) {
	var rows []analysisRow
	err := s.db.SelectContext(ctx, &rows, `SELECT `+analysisColumns+` FROM website_analyses a
		WHERE a.scope = ? AND a.seq = (
			SELECT b.seq FROM website_analyses b
			WHERE b.scope = a.scope AND b.url = a.url
			ORDER BY b.analyzed_at DESC, b.seq DESC LIMIT 1)
		ORDER BY a.url`, scope)
	if err != nil {
		return nil, fmt.Errorf("list analyses: %w", err)
	}
	out := make([]models.WebsiteAnalysis, len(rows))
	for i, r := range rows {
		out[i] = r.analysis()
	}
	return out, nil
}

func (s *SQLite) inTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}
