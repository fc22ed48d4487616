// Package sqlite provides a SQLite-backed social storage implementation.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/stylehive/feedcast/internal/adapters/social"
	"github.com/stylehive/feedcast/internal/adapters/social/sqlite/migrations"
	"github.com/stylehive/feedcast/internal/domain/model"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"
)

// Store persists the canonical activity log and follower graph in SQLite.
type Store struct {
	sqlDB *sql.DB
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Open opens a SQLite social store and applies embedded migrations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := applyMigrations(sqlDB); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// PutActivity inserts one canonical activity record. A missing id is
// filled with a fresh UUID. Inserting a second active record with the
// same (actor, verb, target type, target id) identity returns
// social.ErrAlreadyExists.
func (s *Store) PutActivity(ctx context.Context, a model.Activity) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	actorID := strings.TrimSpace(a.ActorID)
	if actorID == "" {
		return fmt.Errorf("actor id is required")
	}
	if a.Verb == "" {
		return fmt.Errorf("verb is required")
	}
	id := strings.TrimSpace(a.ID)
	if id == "" {
		id = uuid.NewString()
	}
	createdAt := a.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err := s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO activities (
		   id, actor_id, verb, target_type, target_id, gender, created_at, active
		 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		id,
		actorID,
		string(a.Verb),
		a.TargetType,
		a.TargetID,
		string(a.Gender),
		toMillis(createdAt),
		1,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return social.ErrAlreadyExists
		}
		return fmt.Errorf("insert activity: %w", err)
	}
	return nil
}

// DeactivateActivity marks the activity inactive. Missing ids are a no-op.
func (s *Store) DeactivateActivity(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := s.sqlDB.ExecContext(ctx, `UPDATE activities SET active = 0 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deactivate activity: %w", err)
	}
	return nil
}

// GetActivity returns the activity with id, social.ErrNotFound when missing.
func (s *Store) GetActivity(ctx context.Context, id string) (model.Activity, error) {
	if err := ctx.Err(); err != nil {
		return model.Activity{}, err
	}
	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT id, actor_id, verb, target_type, target_id, gender, created_at, active
		 FROM activities WHERE id = ?`,
		id,
	)
	a, err := scanActivity(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Activity{}, social.ErrNotFound
		}
		return model.Activity{}, fmt.Errorf("get activity: %w", err)
	}
	return a, nil
}

// RecentByActor returns the actor's active activities created at or after
// since, newest first.
func (s *Store) RecentByActor(ctx context.Context, actorID string, since time.Time) ([]model.Activity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT id, actor_id, verb, target_type, target_id, gender, created_at, active
		 FROM activities
		 WHERE actor_id = ? AND active = 1 AND created_at >= ?
		 ORDER BY created_at DESC`,
		actorID,
		toMillis(since),
	)
	if err != nil {
		return nil, fmt.Errorf("query recent activities: %w", err)
	}
	defer rows.Close()

	var activities []model.Activity
	for rows.Next() {
		a, err := scanActivity(rows)
		if err != nil {
			return nil, fmt.Errorf("scan activity: %w", err)
		}
		activities = append(activities, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate activities: %w", err)
	}
	return activities, nil
}

// Followers returns the ids of users following userID, sorted ascending.
func (s *Store) Followers(ctx context.Context, userID string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT follower_id FROM follows WHERE followee_id = ?`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("query followers: %w", err)
	}
	defer rows.Close()

	var followers []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan follower: %w", err)
		}
		followers = append(followers, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate followers: %w", err)
	}
	sort.Strings(followers)
	return followers, nil
}

// PutFollow records a follower -> followee edge. Existing edges are kept.
func (s *Store) PutFollow(ctx context.Context, followerID, followeeID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if followerID == "" || followeeID == "" {
		return fmt.Errorf("follower and followee ids are required")
	}
	_, err := s.sqlDB.ExecContext(
		ctx,
		`INSERT OR IGNORE INTO follows (follower_id, followee_id, created_at) VALUES (?, ?, ?)`,
		followerID,
		followeeID,
		toMillis(time.Now()),
	)
	if err != nil {
		return fmt.Errorf("insert follow: %w", err)
	}
	return nil
}

// DeleteFollow removes a follower -> followee edge. Missing edges are a no-op.
func (s *Store) DeleteFollow(ctx context.Context, followerID, followeeID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := s.sqlDB.ExecContext(
		ctx,
		`DELETE FROM follows WHERE follower_id = ? AND followee_id = ?`,
		followerID,
		followeeID,
	)
	if err != nil {
		return fmt.Errorf("delete follow: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanActivity(row rowScanner) (model.Activity, error) {
	var (
		a         model.Activity
		verb      string
		gender    string
		createdAt int64
		active    int
	)
	if err := row.Scan(&a.ID, &a.ActorID, &verb, &a.TargetType, &a.TargetID, &gender, &createdAt, &active); err != nil {
		return model.Activity{}, err
	}
	a.Verb = model.Verb(verb)
	a.Gender = model.Gender(gender)
	a.CreatedAt = fromMillis(createdAt)
	a.Active = active == 1
	return a, nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr *msqlite.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	code := sqliteErr.Code()
	return code == sqlite3lib.SQLITE_CONSTRAINT_UNIQUE ||
		code == sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY
}

// applyMigrations executes embedded migrations at most once per file.
func applyMigrations(sqlDB *sql.DB) error {
	const migrationTable = "schema_migrations"

	createSQL := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
    name TEXT PRIMARY KEY,
    applied_at INTEGER NOT NULL
);
`, migrationTable)
	if _, err := sqlDB.Exec(createSQL); err != nil {
		return fmt.Errorf("ensure migration table: %w", err)
	}

	entries, err := fs.ReadDir(migrations.FS, ".")
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}
	var sqlFiles []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".sql") {
			sqlFiles = append(sqlFiles, entry.Name())
		}
	}
	sort.Strings(sqlFiles)

	for _, file := range sqlFiles {
		var found int
		err := sqlDB.QueryRow("SELECT 1 FROM "+migrationTable+" WHERE name = ?", file).Scan(&found)
		if err == nil {
			continue
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("check migration %s: %w", file, err)
		}

		content, err := fs.ReadFile(migrations.FS, file)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", file, err)
		}
		upSQL := extractUpMigration(string(content))
		if strings.TrimSpace(upSQL) == "" {
			continue
		}

		tx, err := sqlDB.Begin()
		if err != nil {
			return fmt.Errorf("begin migration transaction %s: %w", file, err)
		}
		if _, err := tx.Exec(upSQL); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("exec migration %s: %w", file, err)
		}
		if _, err := tx.Exec(
			fmt.Sprintf("INSERT OR IGNORE INTO %s (name, applied_at) VALUES (?, ?)", migrationTable),
			file,
			time.Now().UTC().UnixMilli(),
		); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record migration %s: %w", file, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %s: %w", file, err)
		}
	}

	return nil
}

// extractUpMigration returns the SQL in the -- +migrate Up section.
func extractUpMigration(content string) string {
	upIdx := strings.Index(content, "-- +migrate Up")
	if upIdx == -1 {
		return content
	}
	downIdx := strings.Index(content, "-- +migrate Down")
	if downIdx == -1 {
		return content[upIdx+len("-- +migrate Up"):]
	}
	return content[upIdx+len("-- +migrate Up") : downIdx]
}
