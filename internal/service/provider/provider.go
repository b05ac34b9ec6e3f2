// Package provider talks to the reservation platforms: restaurant lookup,
// availability checks and booking links.
package provider

import (
	"context"
	"net/url"
	"strings"

	"TableWatch/entity"
)

const userAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"

// Client is one reservation platform.
type Client interface {
	Name() string
	// RestaurantDetails finds a restaurant by name, slug or link; nil means not found.
	RestaurantDetails(ctx context.Context, query string) (*entity.Restaurant, error)
	CheckAvailability(ctx context.Context, ref string, criteria entity.Criteria) (*entity.Availability, error)
	BookingLink(ref string, criteria entity.Criteria) string
}

// NormalizeArea maps a platform seating name to an area key.
func NormalizeArea(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	switch {
	case s == "":
		return ""
	case containsAny(s, "patio", "outdoor", "terrace", "garden", "outside", "rooftop", "sidewalk"):
		return "outdoor"
	case containsAny(s, "bar", "counter", "high top", "hightop"):
		return "bar"
	default:
		return "indoor"
	}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// NormalizeQuery is the cache key of a lookup query.
func NormalizeQuery(query string) string {
	return strings.Join(strings.Fields(strings.ToLower(query)), " ")
}

// pathAfter returns the path segment following marker in a link, if query is a link to host.
func pathAfter(query, host, marker string) (string, bool) {
	if !strings.Contains(query, host) {
		return "", false
	}
	raw := query
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", false
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	for i, p := range parts {
		if p == marker && i+1 < len(parts) && parts[i+1] != "" {
			return parts[i+1], true
		}
	}
	return "", false
}
