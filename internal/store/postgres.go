package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"dietTrackerAPI/internal/streak"
	"dietTrackerAPI/internal/types/activity"
	"dietTrackerAPI/internal/types/user"
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

type PostgresStore struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewPostgresStore(ctx context.Context, dbURL string, logger *zap.Logger) (*PostgresStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	poolConfig, err := pgxpool.ParseConfig(dbURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	poolConfig.MaxConns = 25
	poolConfig.MinConns = 5
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = time.Minute

	pool, err := pgxpool.NewWithConfig(connectCtx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(connectCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info("connected to postgres", zap.Int32("max_conns", poolConfig.MaxConns))
	return NewPostgresStoreFromPool(pool, logger), nil
}

// NewPostgresStoreFromPool wraps an existing pool.
func NewPostgresStoreFromPool(pool *pgxpool.Pool, logger *zap.Logger) *PostgresStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PostgresStore{db: pool, logger: logger}
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

func (s *PostgresStore) Close() error {
	s.db.Close()
	return nil
}

const profileColumns = `id, clerk_id, email, username, first_name, last_name, image_url, email_verified, current_streak, last_log_date, created_at, updated_at`

func scanProfile(row pgx.Row) (*user.Profile, error) {
	p := &user.Profile{}
	err := row.Scan(
		&p.ID,
		&p.ClerkID,
		&p.Email,
		&p.Username,
		&p.FirstName,
		&p.LastName,
		&p.ImageURL,
		&p.EmailVerified,
		&p.CurrentStreak,
		&p.LastLogDate,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (s *PostgresStore) CreateProfile(ctx context.Context, profile *user.Profile) error {
	id := uuid.New()
	if profile.ID != "" {
		parsed, err := uuid.Parse(profile.ID)
		if err != nil {
			return fmt.Errorf("invalid profile id %q: %w", profile.ID, err)
		}
		id = parsed
	}
	profile.ID = id.String()
	now := storedInstant(time.Now())
	profile.CreatedAt = now
	profile.UpdatedAt = now
	profile.CurrentStreak = 0
	profile.LastLogDate = nil

	query := `
	INSERT INTO users (id, clerk_id, email, username, first_name, last_name, image_url, email_verified, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := s.db.Exec(ctx, query,
		id,
		profile.ClerkID,
		profile.Email,
		profile.Username,
		profile.FirstName,
		profile.LastName,
		profile.ImageURL,
		profile.EmailVerified,
		profile.CreatedAt,
		profile.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return user.ErrDuplicateProfile
		}
		return unavailable("create profile", err)
	}
	return nil
}

func (s *PostgresStore) GetProfileByClerkID(ctx context.Context, clerkID string) (*user.Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM users WHERE clerk_id = $1`

	p, err := scanProfile(s.db.QueryRow(ctx, query, clerkID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, streak.ErrProfileNotFound
		}
		return nil, unavailable("get profile", err)
	}
	return p, nil
}

func (s *PostgresStore) UpdateProfileByClerkID(ctx context.Context, clerkID string, req *user.UpdateProfileRequest) (*user.Profile, error) {
	query := `
	UPDATE users
	SET
		username = COALESCE(NULLIF($2, ''), username),
		first_name = COALESCE(NULLIF($3, ''), first_name),
		last_name = COALESCE(NULLIF($4, ''), last_name),
		image_url = COALESCE(NULLIF($5, ''), image_url),
		updated_at = NOW()
	WHERE clerk_id = $1
	RETURNING ` + profileColumns

	p, err := scanProfile(s.db.QueryRow(ctx, query,
		clerkID,
		req.Username,
		req.FirstName,
		req.LastName,
		req.ImageURL,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, streak.ErrProfileNotFound
		}
		return nil, unavailable("update profile", err)
	}
	return p, nil
}

func (s *PostgresStore) DeleteProfileByClerkID(ctx context.Context, clerkID string) error {
	result, err := s.db.Exec(ctx, `DELETE FROM users WHERE clerk_id = $1`, clerkID)
	if err != nil {
		return unavailable("delete profile", err)
	}
	if result.RowsAffected() == 0 {
		return streak.ErrProfileNotFound
	}
	return nil
}

func (s *PostgresStore) LoadStreak(ctx context.Context, userID string) (streak.State, error) {
	id, err := uuid.Parse(userID)
	if err != nil {
		return streak.State{}, streak.ErrProfileNotFound
	}

	var state streak.State
	err = s.db.QueryRow(ctx,
		`SELECT current_streak, last_log_date FROM users WHERE id = $1`, id,
	).Scan(&state.CurrentStreak, &state.LastLogDate)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return streak.State{}, streak.ErrProfileNotFound
		}
		return streak.State{}, unavailable("load streak", err)
	}
	return state, nil
}

func (s *PostgresStore) SwapStreak(ctx context.Context, userID string, prev, next streak.State) error {
	id, err := uuid.Parse(userID)
	if err != nil {
		return streak.ErrProfileNotFound
	}

	query := `
	UPDATE users
	SET current_streak = $2, last_log_date = $3, updated_at = NOW()
	WHERE id = $1
		AND current_streak = $4
		AND last_log_date IS NOT DISTINCT FROM $5
	`
	result, err := s.db.Exec(ctx, query,
		id,
		next.CurrentStreak,
		storedInstantPtr(next.LastLogDate),
		prev.CurrentStreak,
		storedInstantPtr(prev.LastLogDate),
	)
	if err != nil {
		return unavailable("swap streak", err)
	}
	if result.RowsAffected() == 1 {
		return nil
	}

	var exists bool
	if err := s.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE id = $1)`, id).Scan(&exists); err != nil {
		return unavailable("swap streak", err)
	}
	if !exists {
		return streak.ErrProfileNotFound
	}
	return streak.ErrConflict
}

func (s *PostgresStore) InsertActivity(ctx context.Context, entry *activity.Entry) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	userID, err := uuid.Parse(entry.UserID)
	if err != nil {
		return streak.ErrProfileNotFound
	}
	entry.LoggedAt = storedInstant(entry.LoggedAt)

	query := `
	INSERT INTO activity_logs (id, user_id, kind, name, meal_type, calories, protein_g, carbs_g, fat_g, water_ml, duration_minutes, logged_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err = s.db.Exec(ctx, query,
		entry.ID,
		userID,
		string(entry.Kind),
		entry.Name,
		string(entry.MealType),
		entry.Calories,
		entry.ProteinG,
		entry.CarbsG,
		entry.FatG,
		entry.WaterML,
		entry.DurationMinutes,
		entry.LoggedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgForeignKeyViolation {
			return streak.ErrProfileNotFound
		}
		return unavailable("insert activity", err)
	}
	return nil
}

func (s *PostgresStore) ListActivities(ctx context.Context, userID string, from, to time.Time) ([]activity.Entry, error) {
	id, err := uuid.Parse(userID)
	if err != nil {
		return nil, streak.ErrProfileNotFound
	}

	query := `
	SELECT id, user_id, kind, name, meal_type, calories, protein_g, carbs_g, fat_g, water_ml, duration_minutes, logged_at
	FROM activity_logs
	WHERE user_id = $1 AND logged_at >= $2 AND logged_at < $3
	ORDER BY logged_at ASC, id ASC
	`
	rows, err := s.db.Query(ctx, query, id, from, to)
	if err != nil {
		return nil, unavailable("list activities", err)
	}
	defer rows.Close()

	entries := make([]activity.Entry, 0)
	for rows.Next() {
		var e activity.Entry
		var kind, mealType string
		if err := rows.Scan(
			&e.ID,
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
			&e.LoggedAt,
		); err != nil {
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
