package store

import (
	"context"
	"io/fs"
)

func EmbeddedMigrationNames(files fs.FS) ([]string, error) {
	loaded, err := loadEmbeddedMigrations(files)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(loaded))
	for _, m := range loaded {
		names = append(names, m.Name)
	}
	return names, nil
}

func TruncatePostgres(ctx context.Context, s *PostgresStore) error {
	_, err := s.db.Exec(ctx, `TRUNCATE activity_logs, users`)
	return err
}
