package audit

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"github.com/seijin4ka/CostNavigator-sub000/internal/db"
)

// Entry is a persisted audit record.
type Entry struct {
	ID           int64           `db:"id" json:"id"`
	ActorKind    string          `db:"actor_kind" json:"actor_kind"`
	ActorAdminID *uuid.UUID      `db:"actor_admin_id" json:"actor_admin_id,omitempty"`
	Action       string          `db:"action" json:"action"`
	ResourceType string          `db:"resource_type" json:"resource_type"`
	ResourceID   *string         `db:"resource_id" json:"resource_id,omitempty"`
	Method       string          `db:"method" json:"method"`
	Path         string          `db:"path" json:"path"`
	Route        *string         `db:"route" json:"route,omitempty"`
	Status       int             `db:"status" json:"status"`
	IP           *string         `db:"ip" json:"ip,omitempty"`
	UserAgent    *string         `db:"user_agent" json:"user_agent,omitempty"`
	RequestID    *string         `db:"request_id" json:"request_id,omitempty"`
	Metadata     json.RawMessage `db:"metadata" json:"metadata,omitempty"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
}

// ListFilter narrows audit listings.
type ListFilter struct {
	Action       string
	ResourceType string
	ActorAdminID *uuid.UUID
	Limit        int
	Offset       uint64
}

var columns = []string{
	"id", "actor_kind", "actor_admin_id", "action", "resource_type", "resource_id",
	"method", "path", "route", "status", "ip", "user_agent", "request_id", "metadata", "created_at",
}

// Store persists audit entries in Postgres.
type Store struct {
	DB db.Querier
}

// Insert writes e; ID and CreatedAt are assigned by the database.
func (s Store) Insert(ctx context.Context, e Entry) error {
	var metadata any
	if len(e.Metadata) > 0 {
		metadata = []byte(e.Metadata)
	}
	_, err := db.Exec(ctx, s.DB, db.Builder().Insert("audit_logs").
		Columns("actor_kind", "actor_admin_id", "action", "resource_type", "resource_id",
			"method", "path", "route", "status", "ip", "user_agent", "request_id", "metadata").
		Values(e.ActorKind, e.ActorAdminID, e.Action, e.ResourceType, e.ResourceID,
			e.Method, e.Path, e.Route, e.Status, e.IP, e.UserAgent, e.RequestID, metadata))
	return err
}

func filtered(query sq.SelectBuilder, f ListFilter) sq.SelectBuilder {
	if action := strings.TrimSpace(f.Action); action != "" {
		query = query.Where(sq.ILike{"action": "%" + action + "%"})
	}
	if rt := strings.TrimSpace(f.ResourceType); rt != "" {
		query = query.Where(sq.Eq{"resource_type": rt})
	}
	if f.ActorAdminID != nil {
		query = query.Where("actor_admin_id = ?", *f.ActorAdminID)
	}
	return query
}

// List returns the newest entries first with the total matching count.
func (s Store) List(ctx context.Context, f ListFilter) ([]Entry, int64, error) {
	total, err := db.Count(ctx, s.DB, filtered(db.Builder().Select("COUNT(*)").From("audit_logs"), f))
	if err != nil {
		return nil, 0, err
	}
	query := filtered(db.Builder().Select(columns...).From("audit_logs"), f).OrderBy("created_at DESC", "id DESC")
	if f.Limit > 0 {
		query = query.Limit(uint64(f.Limit)).Offset(f.Offset)
	}
	var entries []Entry
	if err := db.Select(ctx, s.DB, &entries, query); err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}
