package store

// migration represents a single schema migration.
type migration struct {
	Version int
	Name    string
	SQL     string
}

// migrations is the ordered list of all schema migrations.
var migrations = []migration{
	{
		Version: 1,
		Name:    "create conversation turns",
		SQL: `
			CREATE TABLE turns (
				id           INTEGER PRIMARY KEY AUTOINCREMENT,
				session_id   TEXT NOT NULL,
				role         TEXT NOT NULL,
				content      TEXT NOT NULL,
				tools_called TEXT,
				created_at   TEXT NOT NULL
			);

			CREATE INDEX idx_turns_session ON turns (session_id, id);
		`,
	},
	{
		Version: 2,
		Name:    "create turn search with FTS5",
		SQL: `
			CREATE VIRTUAL TABLE turns_fts USING fts5(
				content,
				content='turns',
				content_rowid='id',
				tokenize='unicode61 remove_diacritics 2'
			);

			CREATE TRIGGER turns_ai AFTER INSERT ON turns BEGIN
				INSERT INTO turns_fts(rowid, content) VALUES (new.id, new.content);
			END;

			CREATE TRIGGER turns_ad AFTER DELETE ON turns BEGIN
				INSERT INTO turns_fts(turns_fts, rowid, content) VALUES ('delete', old.id, old.content);
			END;

			CREATE TRIGGER turns_au AFTER UPDATE ON turns BEGIN
				INSERT INTO turns_fts(turns_fts, rowid, content) VALUES ('delete', old.id, old.content);
				INSERT INTO turns_fts(rowid, content) VALUES (new.id, new.content);
			END;
		`,
	},
}
