package ledger

const schemaDDL = `
CREATE TABLE IF NOT EXISTS portfolio (
	id               INTEGER PRIMARY KEY CHECK (id = 1),
	starting_balance REAL NOT NULL,
	current_balance  REAL NOT NULL,
	created_at       DATETIME NOT NULL,
	updated_at       DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS trades (
	id               INTEGER PRIMARY KEY AUTOINCREMENT,
	market           TEXT NOT NULL,
	platform         TEXT NOT NULL DEFAULT '',
	position         TEXT NOT NULL,
	amount           REAL NOT NULL,
	odds             REAL NOT NULL,
	potential_payout REAL NOT NULL,
	reasoning        TEXT NOT NULL DEFAULT '',
	expires_at       TEXT NOT NULL DEFAULT '',
	status           TEXT NOT NULL DEFAULT 'PENDING',
	pnl              REAL NOT NULL DEFAULT 0,
	placed_at        DATETIME NOT NULL,
	resolved_at      DATETIME
);

CREATE INDEX IF NOT EXISTS idx_trades_status ON trades(status);
CREATE INDEX IF NOT EXISTS idx_trades_placed ON trades(placed_at);

CREATE VIEW IF NOT EXISTS v_stats AS
SELECT
	COUNT(*)                                               AS total_trades,
	SUM(CASE WHEN status = 'WON'     THEN 1 ELSE 0 END)    AS wins,
	SUM(CASE WHEN status = 'LOST'    THEN 1 ELSE 0 END)    AS losses,
	SUM(CASE WHEN status = 'PENDING' THEN 1 ELSE 0 END)    AS pending,
	COALESCE(SUM(pnl), 0)                                  AS total_pnl
FROM trades;
`
