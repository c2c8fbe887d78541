package store

// runMigrations executes all database migrations.
func (s *Store) runMigrations() error {
	migrations := []string{
		// Predictions table - one row per frame or video prediction
		`CREATE TABLE IF NOT EXISTS predictions (
			id TEXT PRIMARY KEY,
			kind TEXT NOT NULL CHECK(kind IN ('frame', 'video')),
			label TEXT NOT NULL,
			confidence REAL NOT NULL,
			hand_detected INTEGER NOT NULL DEFAULT 0,
			frames_processed INTEGER NOT NULL DEFAULT 0,
			votes TEXT,
			source TEXT NOT NULL DEFAULT '',
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		// Indexes for better query performance
		`CREATE INDEX IF NOT EXISTS idx_predictions_created_at ON predictions(created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_predictions_label ON predictions(label)`,
	}

	for _, migration := range migrations {
		if _, err := s.db.Exec(migration); err != nil {
			return err
		}
	}

	return nil
}
