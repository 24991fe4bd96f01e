package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"dietTrackerAPI/internal/streak"
	"dietTrackerAPI/internal/types/activity"
	"dietTrackerAPI/internal/types/user"
)

const sqliteSchemaVersion = 1

// SQLiteStore is the single-node backend used for local runs and tests.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the database at dbPath and runs migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// One connection serializes writers and keeps :memory: a single database.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("exec pragma %q: %w", p, err)
		}
	}

	s := &SQLiteStore{db: db}
	if err := s.Migrate(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// NewSQLiteMemory creates an in-memory store for testing.
func NewSQLiteMemory() (*SQLiteStore, error) {
	return NewSQLiteStore(":memory:")
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	var version int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("read user_version: %w", err)
	}
	if version >= sqliteSchemaVersion {
		return nil
	}

	const ddl = `
	CREATE TABLE IF NOT EXISTS users (
		id             TEXT PRIMARY KEY,
		clerk_id       TEXT NOT NULL UNIQUE,
		email          TEXT NOT NULL,
		username       TEXT NOT NULL DEFAULT '',
		first_name     TEXT NOT NULL DEFAULT '',
		last_name      TEXT NOT NULL DEFAULT '',
		image_url      TEXT NOT NULL DEFAULT '',
		email_verified INTEGER NOT NULL DEFAULT 0,
		current_streak INTEGER NOT NULL DEFAULT 0 CHECK (current_streak >= 0),
		last_log_date  TEXT,
		created_at     TEXT NOT NULL,
		updated_at     TEXT NOT NULL,
		CONSTRAINT users_streak_consistent CHECK (
			(last_log_date IS NULL AND current_streak = 0)
			OR (last_log_date IS NOT NULL AND current_streak >= 1)
		)
	);

	CREATE TABLE IF NOT EXISTS activity_logs (
		id               TEXT PRIMARY KEY,
		user_id          TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		kind             TEXT NOT NULL,
		name             TEXT NOT NULL DEFAULT '',
		meal_type        TEXT NOT NULL DEFAULT '',
		calories         INTEGER NOT NULL DEFAULT 0,
		protein_g        REAL NOT NULL DEFAULT 0,
		carbs_g          REAL NOT NULL DEFAULT 0,
		fat_g            REAL NOT NULL DEFAULT 0,
		water_ml         INTEGER NOT NULL DEFAULT 0,
		duration_minutes INTEGER NOT NULL DEFAULT 0,
		logged_at        TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_activity_logs_user_logged_at ON activity_logs(user_id, logged_at);
	`
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", sqliteSchemaVersion))
	return err
}

// Instants are stored as RFC 3339 text in UTC; lexical order matches time order
// because every value has the same zone and microsecond precision.
const sqliteTimeLayout = "2006-01-02T15:04:05.000000Z07:00"

func formatSQLiteTime(t time.Time) string {
	return storedInstant(t).Format(sqliteTimeLayout)
}

func formatSQLiteTimePtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatSQLiteTime(*t)
}

func parseSQLiteTime(raw string) (time.Time, error) {
	return time.Parse(sqliteTimeLayout, raw)
}

func parseSQLiteTimePtr(raw sql.NullString) (*time.Time, error) {
	if !raw.Valid {
		return nil, nil
	}
	t, err := parseSQLiteTime(raw.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *SQLiteStore) CreateProfile(ctx context.Context, profile *user.Profile) error {
	if profile.ID == "" {
		profile.ID = uuid.New().String()
	}
	now := storedInstant(time.Now())
	profile.CreatedAt = now
	profile.UpdatedAt = now
	profile.CurrentStreak = 0
	profile.LastLogDate = nil

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, clerk_id, email, username, first_name, last_name, image_url, email_verified, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		profile.ID,
		profile.ClerkID,
		profile.Email,
		profile.Username,
		profile.FirstName,
		profile.LastName,
		profile.ImageURL,
		profile.EmailVerified,
		formatSQLiteTime(now),
		formatSQLiteTime(now),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return user.ErrDuplicateProfile
		}
		return unavailable("create profile", err)
	}
	return nil
}

func (s *SQLiteStore) scanProfile(row *sql.Row) (*user.Profile, error) {
	p := &user.Profile{}
	var lastLog sql.NullString
	var createdAt, updatedAt string
	if err := row.Scan(
		&p.ID,
		&p.ClerkID,
		&p.Email,
		&p.Username,
		&p.FirstName,
		&p.LastName,
		&p.ImageURL,
		&p.EmailVerified,
		&p.CurrentStreak,
		&lastLog,
		&createdAt,
		&updatedAt,
	); err != nil {
		return nil, err
	}

	var err error
	if p.LastLogDate, err = parseSQLiteTimePtr(lastLog); err != nil {
		return nil, err
	}
	if p.CreatedAt, err = parseSQLiteTime(createdAt); err != nil {
		return nil, err
	}
	if p.UpdatedAt, err = parseSQLiteTime(updatedAt); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *SQLiteStore) GetProfileByClerkID(ctx context.Context, clerkID string) (*user.Profile, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+profileColumns+` FROM users WHERE clerk_id = ?`, clerkID)
	p, err := s.scanProfile(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, streak.ErrProfileNotFound
		}
		return nil, unavailable("get profile", err)
	}
	return p, nil
}

func (s *SQLiteStore) UpdateProfileByClerkID(ctx context.Context, clerkID string, req *user.UpdateProfileRequest) (*user.Profile, error) {
	p, err := s.GetProfileByClerkID(ctx, clerkID)
	if err != nil {
		return nil, err
	}
	applyProfileUpdate(p, req)
	p.UpdatedAt = storedInstant(time.Now())

	_, err = s.db.ExecContext(ctx,
		`UPDATE users SET username = ?, first_name = ?, last_name = ?, image_url = ?, updated_at = ? WHERE clerk_id = ?`,
		p.Username, p.FirstName, p.LastName, p.ImageURL, formatSQLiteTime(p.UpdatedAt), clerkID,
	)
	if err != nil {
		return nil, unavailable("update profile", err)
	}
	return p, nil
}

func (s *SQLiteStore) DeleteProfileByClerkID(ctx context.Context, clerkID string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE clerk_id = ?`, clerkID)
	if err != nil {
		return unavailable("delete profile", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return unavailable("delete profile", err)
	}
	if n == 0 {
		return streak.ErrProfileNotFound
	}
	return nil
}

func (s *SQLiteStore) LoadStreak(ctx context.Context, userID string) (streak.State, error) {
	var state streak.State
	var lastLog sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT current_streak, last_log_date FROM users WHERE id = ?`, userID,
	).Scan(&state.CurrentStreak, &lastLog)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return streak.State{}, streak.ErrProfileNotFound
		}
		return streak.State{}, unavailable("load streak", err)
	}
	if state.LastLogDate, err = parseSQLiteTimePtr(lastLog); err != nil {
		return streak.State{}, unavailable("load streak", err)
	}
	return state, nil
}

func (s *SQLiteStore) SwapStreak(ctx context.Context, userID string, prev, next streak.State) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE users SET current_streak = ?, last_log_date = ?, updated_at = ?
		WHERE id = ? AND current_streak = ? AND last_log_date IS ?`,
		next.CurrentStreak,
		formatSQLiteTimePtr(next.LastLogDate),
		formatSQLiteTime(time.Now()),
		userID,
		prev.CurrentStreak,
		formatSQLiteTimePtr(prev.LastLogDate),
	)
	if err != nil {
		return unavailable("swap streak", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return unavailable("swap streak", err)
	}
	if n == 1 {
		return nil
	}

	var exists int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users WHERE id = ?`, userID).Scan(&exists); err != nil {
		return unavailable("swap streak", err)
	}
	if exists == 0 {
		return streak.ErrProfileNotFound
	}
	return streak.ErrConflict
}

func (s *SQLiteStore) InsertActivity(ctx context.Context, entry *activity.Entry) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	entry.LoggedAt = storedInstant(entry.LoggedAt)

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO activity_logs (id, user_id, kind, name, meal_type, calories, protein_g, carbs_g, fat_g, water_ml, duration_minutes, logged_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID.String(),
		entry.UserID,
		string(entry.Kind),
		entry.Name,
		string(entry.MealType),
		entry.Calories,
		entry.ProteinG,
		entry.CarbsG,
		entry.FatG,
		entry.WaterML,
		entry.DurationMinutes,
		formatSQLiteTime(entry.LoggedAt),
	)
	if err != nil {
		if strings.Contains(err.Error(), "FOREIGN KEY constraint failed") {
			return streak.ErrProfileNotFound
		}
		return unavailable("insert activity", err)
	}
	return nil
}

func (s *SQLiteStore) ListActivities(ctx context.Context, userID string, from, to time.Time) ([]activity.Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, kind, name, meal_type, calories, protein_g, carbs_g, fat_g, water_ml, duration_minutes, logged_at
		FROM activity_logs
		WHERE user_id = ? AND logged_at >= ? AND logged_at < ?
		ORDER BY logged_at ASC, id ASC`,
		userID, formatSQLiteTime(from), formatSQLiteTime(to),
	)
	if err != nil {
		return nil, unavailable("list activities", err)
	}
	defer rows.Close()

	entries := make([]activity.Entry, 0)
	for rows.Next() {
		var e activity.Entry
		var id, kind, mealType, loggedAt string
		if err := rows.Scan(
			&id,
			&e.UserID,
			&kind,
			&e.Name,
			&mealType,
			&e.Calories,
			&e.ProteinG,
			&e.CarbsG,
			&e.FatG,
			&e.WaterML,
			&e.DurationMinutes,
			&loggedAt,
		); err != nil {
			return nil, unavailable("scan activity", err)
		}
		if e.ID, err = uuid.Parse(id); err != nil {
			return nil, unavailable("scan activity", err)
		}
		if e.LoggedAt, err = parseSQLiteTime(loggedAt); err != nil {
			return nil, unavailable("scan activity", err)
		}
		e.Kind = activity.Kind(kind)
		e.MealType = activity.MealType(mealType)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("list activities", err)
	}
	return entries, nil
}
