package store

const postgresSchema = `
CREATE TABLE IF NOT EXISTS opportunities (
	id              BIGSERIAL PRIMARY KEY,
	match_id        TEXT NOT NULL,
	selection_key   TEXT NOT NULL,
	selection       TEXT NOT NULL,
	sport_key       TEXT NOT NULL,
	home_team       TEXT NOT NULL,
	away_team       TEXT NOT NULL,
	matchup         TEXT NOT NULL,
	commence_time   TIMESTAMPTZ NOT NULL,
	market_key      TEXT NOT NULL,
	book_key        TEXT NOT NULL,
	decimal_odds    DOUBLE PRECISION NOT NULL,
	model_prob      DOUBLE PRECISION NOT NULL,
	blended_prob    DOUBLE PRECISION NOT NULL,
	edge            DOUBLE PRECISION NOT NULL,
	stake           DOUBLE PRECISION NOT NULL,
	sharp_score     DOUBLE PRECISION,
	detected_at     TIMESTAMPTZ NOT NULL,
	outcome         TEXT NOT NULL DEFAULT 'PENDING',
	profit          DOUBLE PRECISION,
	settled_at      TIMESTAMPTZ,
	closing_odds    DOUBLE PRECISION,
	needs_review    BOOLEAN NOT NULL DEFAULT FALSE,
	review_reason   TEXT NOT NULL DEFAULT '',
	confirmed       BOOLEAN NOT NULL DEFAULT FALSE,
	confirmed_stake DOUBLE PRECISION,
	confirmed_odds  DOUBLE PRECISION,
	UNIQUE (match_id, selection_key)
);
CREATE INDEX IF NOT EXISTS idx_opportunities_outcome_commence ON opportunities (outcome, commence_time);
CREATE INDEX IF NOT EXISTS idx_opportunities_sport_outcome ON opportunities (sport_key, outcome);
`

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS opportunities (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	match_id        TEXT NOT NULL,
	selection_key   TEXT NOT NULL,
	selection       TEXT NOT NULL,
	sport_key       TEXT NOT NULL,
	home_team       TEXT NOT NULL,
	away_team       TEXT NOT NULL,
	matchup         TEXT NOT NULL,
	commence_time   DATETIME NOT NULL,
	market_key      TEXT NOT NULL,
	book_key        TEXT NOT NULL,
	decimal_odds    REAL NOT NULL,
	model_prob      REAL NOT NULL,
	blended_prob    REAL NOT NULL,
	edge            REAL NOT NULL,
	stake           REAL NOT NULL,
	sharp_score     REAL,
	detected_at     DATETIME NOT NULL,
	outcome         TEXT NOT NULL DEFAULT 'PENDING',
	profit          REAL,
	settled_at      DATETIME,
	closing_odds    REAL,
	needs_review    BOOLEAN NOT NULL DEFAULT 0,
	review_reason   TEXT NOT NULL DEFAULT '',
	confirmed       BOOLEAN NOT NULL DEFAULT 0,
	confirmed_stake REAL,
	confirmed_odds  REAL,
	UNIQUE (match_id, selection_key)
);
CREATE INDEX IF NOT EXISTS idx_opportunities_outcome_commence ON opportunities (outcome, commence_time);
CREATE INDEX IF NOT EXISTS idx_opportunities_sport_outcome ON opportunities (sport_key, outcome);
`
