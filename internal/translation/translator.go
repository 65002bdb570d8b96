// Package translation translates UI string tables with the completion
// gateway and keeps the results per language.
package translation

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/coachly/backend/internal/cache"
	"github.com/coachly/backend/pkg/logger"
)

// Subject is the cache subject shared by every translation table.
const Subject = "system"

type Gateway interface {
	Translate(ctx context.Context, language string, source map[string]string) map[string]string
}

// Translator owns an in-memory table per language in front of the
// persistent cache. Tables only grow: keys missing from a table are
// translated and merged in. A table older than cache.TTLTranslations is
// reloaded from the cache, so it never outlives its persisted copy.
type Translator struct {
	gateway        Gateway
	cache          *cache.Store
	sourceLanguage string
	now            func() time.Time
	log            *zap.Logger

	mu     sync.RWMutex
	tables map[string]languageTable
}

type languageTable struct {
	entries  map[string]string
	storedAt time.Time
}

type Option func(*Translator)

// WithClock replaces time.Now when stamping in-memory tables.
func WithClock(now func() time.Time) Option {
	return func(t *Translator) { t.now = now }
}

func NewTranslator(gateway Gateway, cacheStore *cache.Store, sourceLanguage string, opts ...Option) *Translator {
	t := &Translator{
		gateway:        gateway,
		cache:          cacheStore,
		sourceLanguage: normalize(sourceLanguage),
		now:            time.Now,
		log:            logger.Named("translation"),
		tables:         make(map[string]languageTable),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// normalize returns an owned copy: callers pass strings backed by request
// buffers and the result is kept as a map key.
func normalize(language string) string {
	return strings.Clone(strings.ToLower(strings.TrimSpace(language)))
}

func (t *Translator) fresh(table languageTable) bool {
	return t.now().Sub(table.storedAt) < cache.TTLTranslations
}

func cacheKey(language string) string {
	return "translations_" + language
}

// Translate returns source translated into language. Strings that cannot
// be translated keep their source text. Requests for the source language
// return a copy of source.
func (t *Translator) Translate(ctx context.Context, language string, source map[string]string) map[string]string {
	language = normalize(language)
	out := make(map[string]string, len(source))
	for k, v := range source {
		out[k] = v
	}
	if language == "" || language == t.sourceLanguage || len(source) == 0 {
		return out
	}

	table := t.table(ctx, language)

	missing := make(map[string]string)
	for k, v := range source {
		if tr, ok := table[k]; ok {
			out[k] = tr
		} else {
			missing[k] = v
		}
	}
	if len(missing) == 0 {
		return out
	}

	translated := t.gateway.Translate(ctx, language, missing)
	added := make(map[string]string, len(translated))
	for k, v := range translated {
		out[k] = v
		if v != missing[k] {
			added[k] = v
		}
	}
	if len(added) == 0 {
		// Nothing was translated, so keep the gap and retry next time.
		return out
	}

	t.store(ctx, language, added)
	return out
}

// table returns the known translations for language, loading them from the
// persistent cache on first use and again once the in-memory copy expires.
func (t *Translator) table(ctx context.Context, language string) map[string]string {
	t.mu.RLock()
	table, ok := t.tables[language]
	t.mu.RUnlock()
	if ok && t.fresh(table) {
		return table.entries
	}

	var loaded map[string]string
	if !t.cache.Get(ctx, Subject, cacheKey(language), &loaded) || loaded == nil {
		loaded = map[string]string{}
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if existing, ok := t.tables[language]; ok && t.fresh(existing) {
		return existing.entries
	}
	t.tables[language] = languageTable{entries: loaded, storedAt: t.now()}
	return loaded
}

func (t *Translator) store(ctx context.Context, language string, added map[string]string) {
	t.mu.Lock()
	current := t.tables[language].entries
	merged := make(map[string]string, len(current)+len(added))
	for k, v := range current {
		merged[k] = v
	}
	for k, v := range added {
		merged[k] = v
	}
	// The persisted copy is rewritten below with a full TTL.
	t.tables[language] = languageTable{entries: merged, storedAt: t.now()}
	t.mu.Unlock()

	if err := t.cache.Set(ctx, Subject, cacheKey(language), merged, cache.TTLTranslations); err != nil {
		t.log.Warn("Failed to persist translations", zap.String("language", language), zap.Error(err))
	}
}

// Reset drops the in-memory tables. Persisted tables are kept.
func (t *Translator) Reset() {
	t.mu.Lock()
	t.tables = make(map[string]languageTable)
	t.mu.Unlock()
}
