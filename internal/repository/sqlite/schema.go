package sqlite

// schema is applied on Open. Amounts are stored as decimal TEXT and
// timestamps as unix nanoseconds so MAX() keeps updated_at monotonic.
const schema = `
CREATE TABLE IF NOT EXISTS debts (
    id           INTEGER PRIMARY KEY AUTOINCREMENT,
    name         TEXT    NOT NULL,
    email        TEXT    NOT NULL UNIQUE,
    subject      TEXT    NOT NULL,
    amount       TEXT    NOT NULL,
    status       TEXT    NOT NULL DEFAULT 'PENDING' CHECK (status IN ('PENDING', 'PAID')),
    external_ref TEXT    UNIQUE,
    created_at   INTEGER NOT NULL,
    updated_at   INTEGER NOT NULL,
    CHECK ((status = 'PAID') = (external_ref IS NOT NULL))
);

CREATE INDEX IF NOT EXISTS idx_debts_status ON debts (status);

CREATE TABLE IF NOT EXISTS payment_records (
    id           TEXT    PRIMARY KEY,
    debt_id      INTEGER NOT NULL REFERENCES debts (id) ON DELETE CASCADE,
    amount       TEXT    NOT NULL,
    external_ref TEXT    NOT NULL UNIQUE,
    status       TEXT    NOT NULL DEFAULT 'succeeded',
    paid_at      INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_payment_records_debt ON payment_records (debt_id, paid_at DESC);
`
