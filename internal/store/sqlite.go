package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/dkhoa/linear-todo/internal/model"
)

// SQLiteStore implements the Store interface using a local SQLite database.
type SQLiteStore struct {
	db *sqlx.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath,
// enables WAL mode, and runs any pending schema migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// runMigrations checks the current schema version and applies any
// outstanding migrations in order.
func (s *SQLiteStore) runMigrations() error {
	currentVersion := 0

	var tableCount int
	err := s.db.Get(
		&tableCount,
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	)
	if err != nil {
		return fmt.Errorf("checking schema_version table: %w", err)
	}

	if tableCount > 0 {
		err = s.db.Get(&currentVersion, "SELECT COALESCE(MAX(version), 0) FROM schema_version")
		if err != nil {
			return fmt.Errorf("reading schema version: %w", err)
		}
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}
		if _, err := s.db.Exec(m.sql); err != nil {
			return fmt.Errorf("applying migration v%d: %w", m.version, err)
		}
	}

	return nil
}

// ReplaceTeamIssues replaces the cached issues of one team bucket
// inside a single transaction.
func (s *SQLiteStore) ReplaceTeamIssues(
	ctx context.Context,
	teamID string,
	bucket model.Bucket,
	issues []model.Issue,
) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		"DELETE FROM issues WHERE team_id = ? AND bucket = ?",
		teamID, string(bucket),
	)
	if err != nil {
		return fmt.Errorf("clearing issues for team %s bucket %s: %w", teamID, bucket, err)
	}

	const query = `
		INSERT OR REPLACE INTO issues (
			id, team_id, bucket,
			title, description, state_id, state_name,
			due_date, url, updated_at, fetched_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	stmt, err := tx.PreparexContext(ctx, query)
	if err != nil {
		return fmt.Errorf("preparing insert statement: %w", err)
	}
	defer stmt.Close()

	for _, issue := range issues {
		var dueDate any
		if issue.DueDate != nil {
			dueDate = issue.DueDate.UTC()
		}

		_, err = stmt.ExecContext(ctx,
			issue.ID, teamID, string(bucket),
			issue.Title, issue.Description, issue.StateID, issue.StateName,
			dueDate, issue.URL, issue.UpdatedAt.UTC(), issue.FetchedAt.UTC(),
		)
		if err != nil {
			return fmt.Errorf("inserting issue %s: %w", issue.ID, err)
		}
	}

	return tx.Commit()
}

// GetTeamIssues returns the cached issues of one team bucket, newest first.
func (s *SQLiteStore) GetTeamIssues(
	ctx context.Context,
	teamID string,
	bucket model.Bucket,
) ([]model.Issue, error) {
	rows, err := s.db.QueryxContext(ctx,
		`SELECT * FROM issues
		 WHERE team_id = ? AND bucket = ?
		 ORDER BY updated_at DESC`,
		teamID, string(bucket),
	)
	if err != nil {
		return nil, fmt.Errorf("querying issues for team %s bucket %s: %w", teamID, bucket, err)
	}
	defer rows.Close()

	var issues []model.Issue
	for rows.Next() {
		issue, err := scanIssue(rows)
		if err != nil {
			return nil, err
		}
		issues = append(issues, issue)
	}

	return issues, rows.Err()
}

// GetSnapshot rebuilds a snapshot for the given teams from the cache.
func (s *SQLiteStore) GetSnapshot(
	ctx context.Context,
	teamIDs []string,
) (model.Snapshot, error) {
	snapshot := make(model.Snapshot, len(teamIDs))

	for _, teamID := range teamIDs {
		todo, err := s.GetTeamIssues(ctx, teamID, model.BucketTodo)
		if err != nil {
			return nil, err
		}
		completed, err := s.GetTeamIssues(ctx, teamID, model.BucketCompleted)
		if err != nil {
			return nil, err
		}

		snapshot[teamID] = model.TeamSnapshot{
			TeamID:    teamID,
			Todo:      todo,
			Completed: completed,
		}
	}

	return snapshot, nil
}

// GetIssueIDs returns the set of cached issue IDs for a team.
func (s *SQLiteStore) GetIssueIDs(
	ctx context.Context,
	teamID string,
) (map[string]bool, error) {
	var ids []string
	err := s.db.SelectContext(ctx, &ids,
		"SELECT id FROM issues WHERE team_id = ?", teamID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying issue ids for team %s: %w", teamID, err)
	}

	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set, nil
}

// CreateNotification inserts a new notification record.
func (s *SQLiteStore) CreateNotification(
	ctx context.Context,
	n model.Notification,
) error {
	if n.ID == "" {
		n.ID = uuid.New().String()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO notifications (id, issue_id, team_id, message, read, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		n.ID, n.IssueID, n.TeamID, n.Message,
		boolToInt(n.Read), n.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("creating notification: %w", err)
	}

	return nil
}

// GetUnreadNotifications retrieves all notifications that have not been read,
// ordered by creation time descending.
func (s *SQLiteStore) GetUnreadNotifications(
	ctx context.Context,
) ([]model.Notification, error) {
	rows, err := s.db.QueryxContext(ctx,
		"SELECT * FROM notifications WHERE read = 0 ORDER BY created_at DESC",
	)
	if err != nil {
		return nil, fmt.Errorf("querying unread notifications: %w", err)
	}
	defer rows.Close()

	var notifications []model.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		notifications = append(notifications, n)
	}

	return notifications, rows.Err()
}

// MarkNotificationRead marks a single notification as read.
func (s *SQLiteStore) MarkNotificationRead(
	ctx context.Context,
	id string,
) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE notifications SET read = 1 WHERE id = ?", id,
	)
	if err != nil {
		return fmt.Errorf("marking notification %s as read: %w", id, err)
	}
	return nil
}

// scanIssue scans an issue row from a sqlx.Rows result set.
func scanIssue(rows *sqlx.Rows) (model.Issue, error) {
	var (
		issue     model.Issue
		bucket    string
		dueDate   sql.NullTime
		updatedAt time.Time
		fetchedAt time.Time
	)

	err := rows.Scan(
		&issue.ID, &issue.TeamID, &bucket,
		&issue.Title, &issue.Description, &issue.StateID, &issue.StateName,
		&dueDate, &issue.URL, &updatedAt, &fetchedAt,
	)
	if err != nil {
		return model.Issue{}, fmt.Errorf("scanning issue row: %w", err)
	}

	issue.Bucket = model.Bucket(bucket)
	issue.UpdatedAt = updatedAt
	issue.FetchedAt = fetchedAt
	if dueDate.Valid {
		d := dueDate.Time
		issue.DueDate = &d
	}

	return issue, nil
}

// scanNotification scans a notification row from a sqlx.Rows result set.
func scanNotification(rows *sqlx.Rows) (model.Notification, error) {
	var (
		n         model.Notification
		readInt   int
		createdAt time.Time
	)

	err := rows.Scan(
		&n.ID, &n.IssueID, &n.TeamID, &n.Message,
		&readInt, &createdAt,
	)
	if err != nil {
		return model.Notification{}, fmt.Errorf("scanning notification row: %w", err)
	}

	n.Read = readInt != 0
	n.CreatedAt = createdAt

	return n, nil
}

// boolToInt converts a boolean to 0 or 1 for SQLite storage.
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
