package store

const schemaSQL = `
CREATE TABLE IF NOT EXISTS linked_accounts (
    id                   TEXT PRIMARY KEY,
    user_id              TEXT NOT NULL,
    token                TEXT NOT NULL,
    name                 TEXT NOT NULL DEFAULT '',
    created_at           TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS recurring_series (
    id                   TEXT PRIMARY KEY,
    user_id              TEXT NOT NULL,
    merchant_slug        TEXT NOT NULL,
    merchant_display     TEXT NOT NULL,
    cadence              TEXT NOT NULL,
    avg_amount           TEXT NOT NULL,
    confidence           REAL NOT NULL,
    last_charge          TEXT NOT NULL,
    next_estimated       TEXT,
    features             TEXT NOT NULL,
    run_id               TEXT NOT NULL DEFAULT '',
    seen_in_last_run     INTEGER NOT NULL DEFAULT 1,
    updated_at           TEXT NOT NULL,
    UNIQUE (user_id, merchant_slug)
);

-- No unique constraint on (user_id, merchant_key): racing inserts may
-- duplicate a merchant and the presentation layer merges them.
CREATE TABLE IF NOT EXISTS subscriptions (
    id                   TEXT PRIMARY KEY,
    user_id              TEXT NOT NULL,
    merchant_name        TEXT NOT NULL,
    merchant_key         TEXT NOT NULL,
    amount               TEXT NOT NULL,
    interval             TEXT NOT NULL,
    status               TEXT NOT NULL CHECK (status IN ('detected', 'cancel_pending', 'cancelled')),
    created_at           TEXT NOT NULL,
    updated_at           TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS subscription_actions (
    seq                  INTEGER PRIMARY KEY AUTOINCREMENT,
    id                   TEXT NOT NULL UNIQUE,
    user_id              TEXT NOT NULL,
    subscription_id      TEXT NOT NULL,
    action               TEXT NOT NULL,
    details              TEXT,
    created_at           TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_accounts_user ON linked_accounts(user_id);
CREATE INDEX IF NOT EXISTS idx_subscriptions_merchant ON subscriptions(user_id, merchant_key);
CREATE INDEX IF NOT EXISTS idx_subscriptions_status ON subscriptions(status, updated_at);
CREATE INDEX IF NOT EXISTS idx_actions_subscription ON subscription_actions(subscription_id, created_at);
`
