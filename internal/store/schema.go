package store

const schema = `
CREATE TABLE IF NOT EXISTS pages (
	scope       TEXT NOT NULL,
	id          TEXT NOT NULL,
	name        TEXT NOT NULL DEFAULT '',
	website_url TEXT NOT NULL DEFAULT '',
	ad_ids      TEXT NOT NULL DEFAULT '[]',
	ad_count    INTEGER NOT NULL DEFAULT 0,
	bucket      TEXT NOT NULL DEFAULT '',
	keywords    TEXT NOT NULL DEFAULT '[]',
	currency    TEXT NOT NULL DEFAULT '',
	active_ads  INTEGER,
	favorite    INTEGER NOT NULL DEFAULT 0,
	blacklisted INTEGER NOT NULL DEFAULT 0,
	updated_at  TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (scope, id)
);

CREATE INDEX IF NOT EXISTS idx_pages_blacklisted ON pages(scope, blacklisted);

CREATE TABLE IF NOT EXISTS ads (
	scope         TEXT NOT NULL,
	id            TEXT NOT NULL,
	page_id       TEXT NOT NULL,
	page_name     TEXT NOT NULL DEFAULT '',
	bodies        TEXT NOT NULL DEFAULT '[]',
	link_titles   TEXT NOT NULL DEFAULT '[]',
	link_captions TEXT NOT NULL DEFAULT '[]',
	snapshot_url  TEXT NOT NULL DEFAULT '',
	created_at    TIMESTAMP,
	reach         INTEGER,
	active        INTEGER NOT NULL DEFAULT 0,
	currency      TEXT NOT NULL DEFAULT '',
	languages     TEXT NOT NULL DEFAULT '[]',
	platforms     TEXT NOT NULL DEFAULT '[]',
	keywords      TEXT NOT NULL DEFAULT '[]',
	PRIMARY KEY (scope, id)
);

CREATE INDEX IF NOT EXISTS idx_ads_page ON ads(scope, page_id);

CREATE TABLE IF NOT EXISTS winning_ads (
	scope       TEXT NOT NULL,
	ad_id       TEXT NOT NULL,
	ad          TEXT NOT NULL,
	tier_age    INTEGER NOT NULL,
	tier_reach  INTEGER NOT NULL,
	age_days    INTEGER NOT NULL,
	reach       INTEGER NOT NULL,
	detected_at TIMESTAMP NOT NULL,
	PRIMARY KEY (scope, ad_id)
);

CREATE TABLE IF NOT EXISTS website_analyses (
	seq             INTEGER PRIMARY KEY AUTOINCREMENT,
	scope           TEXT NOT NULL,
	id              TEXT NOT NULL,
	url             TEXT NOT NULL,
	final_url       TEXT NOT NULL DEFAULT '',
	success         INTEGER NOT NULL,
	error           TEXT NOT NULL DEFAULT '',
	status_code     INTEGER NOT NULL DEFAULT 0,
	platform        TEXT NOT NULL DEFAULT '',
	theme           TEXT NOT NULL DEFAULT '',
	payment_methods TEXT NOT NULL DEFAULT '[]',
	product_count   INTEGER,
	currency        TEXT NOT NULL DEFAULT '',
	category        TEXT NOT NULL DEFAULT '',
	product_types   TEXT NOT NULL DEFAULT '[]',
	title           TEXT NOT NULL DEFAULT '',
	description     TEXT NOT NULL DEFAULT '',
	analyzed_at     TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_analyses_url ON website_analyses(scope, url, analyzed_at);
`

// migrations bring databases created by earlier versions up to schema.
// A "duplicate column" failure means the step already ran.
var migrations = []string{
	`ALTER TABLE pages ADD COLUMN active_ads INTEGER`,
}
