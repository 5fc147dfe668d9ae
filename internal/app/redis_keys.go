package app

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

const (
	defaultRedisPrefix = "claim"
	maxRedisKeyPart    = 64
)

// redisKeyspace builds keys of the form <prefix>:<area>:<part>...
type redisKeyspace struct {
	base string
}

func newRedisKeyspace(prefix, area string) redisKeyspace {
	trimmed := strings.TrimSuffix(strings.TrimSpace(prefix), ":")
	if trimmed == "" {
		trimmed = defaultRedisPrefix
	}
	return redisKeyspace{base: trimmed + ":" + area}
}

// key joins the normalized parts onto the keyspace. It reports false when a part is blank.
func (k redisKeyspace) key(parts ...string) (string, bool) {
	var b strings.Builder
	b.WriteString(k.base)
	for _, part := range parts {
		normalized := normalizeKeyPart(part)
		if normalized == "" {
			return "", false
		}
		b.WriteByte(':')
		b.WriteString(normalized)
	}
	return b.String(), true
}

// normalizeKeyPart folds case and runs of whitespace. Parts that are long or contain a
// separator are replaced by their SHA-256 so "Desi Mandi" and " desi  MANDI" share a key.
func normalizeKeyPart(part string) string {
	normalized := strings.Join(strings.Fields(strings.ToLower(part)), " ")
	if len(normalized) > maxRedisKeyPart || strings.ContainsAny(normalized, " :") {
		sum := sha256.Sum256([]byte(normalized))
		return hex.EncodeToString(sum[:])
	}
	return normalized
}
