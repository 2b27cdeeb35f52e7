package store

import (
	"context"

	"github.com/dkhoa/linear-todo/internal/model"
)

// Store defines the persistence interface for cached issue snapshots
// and notifications. The issue cache holds the last successful fetch
// per team and bucket, replaced wholesale on every refresh.
type Store interface {
	// ReplaceTeamIssues replaces the cached issues of one team bucket
	// with the given set, atomically.
	ReplaceTeamIssues(ctx context.Context, teamID string, bucket model.Bucket, issues []model.Issue) error

	// GetTeamIssues returns the cached issues of one team bucket,
	// ordered by update time descending.
	GetTeamIssues(ctx context.Context, teamID string, bucket model.Bucket) ([]model.Issue, error)

	// GetSnapshot rebuilds a full snapshot for the given teams from the
	// cache. Teams with no cached issues get an empty entry.
	GetSnapshot(ctx context.Context, teamIDs []string) (model.Snapshot, error)

	// GetIssueIDs returns the set of cached issue IDs for a team,
	// across both buckets.
	GetIssueIDs(ctx context.Context, teamID string) (map[string]bool, error)

	// Notifications.

	CreateNotification(ctx context.Context, n model.Notification) error
	GetUnreadNotifications(ctx context.Context) ([]model.Notification, error)
	MarkNotificationRead(ctx context.Context, id string) error
}
