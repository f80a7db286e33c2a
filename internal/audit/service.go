// Package audit records admin mutations.
package audit

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand/v2"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/seijin4ka/CostNavigator-sub000/internal/common"
	"github.com/seijin4ka/CostNavigator-sub000/internal/obs"
)

// ActorKind represents the source of an audited action.
type ActorKind string

const (
	// ActorKindAdmin represents an authenticated administrator.
	ActorKindAdmin ActorKind = "admin"
	// ActorKindSystem represents internal automated actions.
	ActorKindSystem ActorKind = "system"
	// ActorKindAnonymous represents unauthenticated actors.
	ActorKindAnonymous ActorKind = "anonymous"
)

// Actor describes the entity performing the action.
type Actor struct {
	Kind    ActorKind
	AdminID *string
}

type entryStore interface {
	Insert(ctx context.Context, e Entry) error
	List(ctx context.Context, f ListFilter) ([]Entry, int64, error)
}

// Service persists audit logs for admin flows.
type Service struct {
	Store        entryStore
	Enabled      bool
	SamplingRate float64
}

// Record persists an audit log entry when auditing is enabled.
func (s Service) Record(ctx context.Context, actor Actor, action, resourceType, resourceID string, req *http.Request, status int, metadata []byte) error {
	if !s.Enabled {
		return nil
	}
	if s.SamplingRate > 0 && s.SamplingRate < 1 && rand.Float64() > s.SamplingRate {
		return nil
	}
	if req == nil {
		return errors.New("audit: request is required")
	}
	if s.Store == nil {
		return errors.New("audit: store not configured")
	}

	route := obs.RoutePatternFromContext(req.Context())
	if route == "" {
		route = strings.TrimSpace(req.URL.Path)
	}
	if status == 0 {
		status = http.StatusOK
	}

	kind := normalizeActorKind(actor.Kind)
	entry := Entry{
		ActorKind:    string(kind),
		Action:       buildAction(action, req.Method, route),
		ResourceType: buildResource(resourceType, route),
		ResourceID:   pointerOf(resourceID),
		Method:       req.Method,
		Path:         req.URL.Path,
		Route:        pointerOf(route),
		Status:       status,
		IP:           pointerOf(common.ClientIP(req)),
		UserAgent:    pointerOf(req.Header.Get("User-Agent")),
		RequestID:    pointerOf(req.Header.Get("X-Request-ID")),
		Metadata:     toJSONB(metadata, req.URL.RawQuery),
	}
	if kind == ActorKindAdmin && actor.AdminID != nil {
		if id, err := uuid.Parse(strings.TrimSpace(*actor.AdminID)); err == nil {
			entry.ActorAdminID = &id
		}
	}
	return s.Store.Insert(ctx, entry)
}

// List returns a page of audit entries.
func (s Service) List(ctx context.Context, f ListFilter) ([]Entry, int64, error) {
	if s.Store == nil {
		return nil, 0, common.NewInternal(errors.New("audit: store not configured"))
	}
	entries, total, err := s.Store.List(ctx, f)
	if err != nil {
		return nil, 0, common.NewPersistenceError("unable to fetch audit logs", err)
	}
	if entries == nil {
		entries = []Entry{}
	}
	return entries, total, nil
}

func buildAction(action, method, route string) string {
	if trimmed := strings.TrimSpace(action); trimmed != "" {
		return trimmed
	}
	target := route
	if target == "" {
		target = "/"
	}
	return strings.ToUpper(strings.TrimSpace(method)) + " " + target
}

// buildResource derives "admin.partners" style names from /api/v1 routes,
// dropping path parameters.
func buildResource(resourceType, route string) string {
	if trimmed := strings.TrimSpace(resourceType); trimmed != "" {
		return trimmed
	}
	route = strings.Trim(strings.TrimSpace(route), "/")
	if route == "" {
		return "unknown"
	}
	segments := strings.Split(route, "/")
	if len(segments) >= 2 && segments[0] == "api" && segments[1] == "v1" {
		segments = segments[2:]
	}
	kept := segments[:0]
	for _, seg := range segments {
		if strings.HasPrefix(seg, "{") || seg == "*" {
			continue
		}
		kept = append(kept, seg)
	}
	if len(kept) == 0 {
		return "unknown"
	}
	return strings.Join(kept, ".")
}

func normalizeActorKind(kind ActorKind) ActorKind {
	switch kind {
	case ActorKindAdmin, ActorKindSystem:
		return kind
	default:
		return ActorKindAnonymous
	}
}

func pointerOf(value string) *string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func toJSONB(metadata []byte, query string) json.RawMessage {
	if len(metadata) > 0 {
		return metadata
	}
	if strings.TrimSpace(query) == "" {
		return nil
	}
	data, err := json.Marshal(map[string]string{"query": query})
	if err != nil {
		return nil
	}
	return data
}
