package translate

import (
	"encoding/hex"
	"strings"

	"golang.org/x/crypto/blake2b"
)

// Cache stores finished translations; db.Database implements it
type Cache interface {
	GetCachedTranslation(key string) (string, bool, error)
	PutCachedTranslation(key, provider, model, targetLang, translated string) error
}

// CacheKey derives the cache key of a translation request.
func CacheKey(provider, model, targetLang, text string) string {
	sum := blake2b.Sum256([]byte(strings.Join([]string{
		provider, model, NormalizeLang(targetLang), strings.TrimSpace(text),
	}, "\x00")))
	return hex.EncodeToString(sum[:])
}
