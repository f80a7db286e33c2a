package cache

// Key prefixes. Every partner-scoped key starts with the prefix followed by the slug.
const (
	PrefixCatalog   = "catalog:"
	PrefixPartner   = "partner:"
	PrefixAnalytics = "analytics:"
)

// KeyPartnerCatalog returns the key for a partner's priced public catalog.
func KeyPartnerCatalog(slug string) string {
	return PrefixCatalog + slug
}

// KeyPartner returns the key for a partner looked up by slug.
func KeyPartner(slug string) string {
	return PrefixPartner + slug
}

// KeyAnalytics returns the key for an analytics report variant.
func KeyAnalytics(name string) string {
	return PrefixAnalytics + name
}
