package db

const schemaSQL = `
-- ===========================================================================
-- AUDIT (webhook delivery journal)
-- ===========================================================================

CREATE TABLE IF NOT EXISTS audit_events (
  event_id TEXT PRIMARY KEY,
  timestamp TEXT NOT NULL,
  kind TEXT NOT NULL DEFAULT '',
  track_id TEXT NOT NULL DEFAULT '',
  outcome TEXT NOT NULL,
  level TEXT NOT NULL,
  request_id TEXT,
  duration_ms INTEGER NOT NULL DEFAULT 0,
  message TEXT NOT NULL,
  payload TEXT NOT NULL DEFAULT '{}'
);

CREATE INDEX IF NOT EXISTS idx_audit_events_timestamp ON audit_events(timestamp DESC);
CREATE INDEX IF NOT EXISTS idx_audit_events_kind ON audit_events(kind);
CREATE INDEX IF NOT EXISTS idx_audit_events_outcome ON audit_events(outcome);
CREATE INDEX IF NOT EXISTS idx_audit_events_track_id ON audit_events(track_id) WHERE track_id <> '';
`
