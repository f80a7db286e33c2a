package common

import "context"

type ctxKey string

const adminIDKey ctxKey = "auth/admin-id"

// WithAdminID stores the authenticated admin identifier on the provided context.
func WithAdminID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, adminIDKey, id)
}

// AdminID extracts the authenticated admin identifier from the context if present.
func AdminID(ctx context.Context) (string, bool) {
	v := ctx.Value(adminIDKey)
	if v == nil {
		return "", false
	}
	id, ok := v.(string)
	return id, ok && id != ""
}

const partnerSlugKey ctxKey = "partner/slug"

// WithPartnerSlug records the slug of the partner serving the request.
func WithPartnerSlug(ctx context.Context, slug string) context.Context {
	return context.WithValue(ctx, partnerSlugKey, slug)
}

// PartnerSlug returns the partner slug stored by WithPartnerSlug.
func PartnerSlug(ctx context.Context) string {
	slug, _ := ctx.Value(partnerSlugKey).(string)
	return slug
}
