package gateway

import (
	"strings"

	"quakecache/internal/models"
)

// Cache key prefixes. Collection keys use the plural form.
const (
	EventKeyPrefix      = "earthquake:"
	CollectionKeyPrefix = "earthquakes:"
)

// EventKey returns the cache key for a by-id lookup. The id is used verbatim.
func EventKey(id string) string {
	return EventKeyPrefix + id
}

// CollectionKey returns the cache key for a collection query. params must
// already carry the boundary defaults; absent fields are omitted and the rest
// appear in declaration order, so equivalent queries share a key regardless
// of how the request presented them.
func CollectionKey(params models.QueryParams) string {
	var b strings.Builder
	b.WriteString(CollectionKeyPrefix)
	for i, p := range params.Params() {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(formEscape(p.Name))
		b.WriteByte('=')
		b.WriteString(formEscape(p.Value))
	}
	return b.String()
}

// formEscape applies application/x-www-form-urlencoded serialization:
// ASCII alphanumerics and *-._ pass through, space becomes '+', every other
// byte is percent-encoded.
func formEscape(s string) string {
	const hex = "0123456789ABCDEF"

	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9',
			c == '*', c == '-', c == '.', c == '_':
			b.WriteByte(c)
		case c == ' ':
			b.WriteByte('+')
		default:
			b.WriteByte('%')
			b.WriteByte(hex[c>>4])
			b.WriteByte(hex[c&0x0f])
		}
	}
	return b.String()
}
