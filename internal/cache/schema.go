package cache

// All cache tables use "cache_key" as the primary key column.

// Table names accepted by Get/Set.
const (
	SearchTable     = "search_cache"
	ResolutionTable = "resolution_cache"
)

// SearchCacheSchema holds aggregated crawl results keyed by normalized
// query plus platform selection.
const SearchCacheSchema = `
CREATE TABLE IF NOT EXISTS search_cache (
	cache_key TEXT PRIMARY KEY NOT NULL,
	data TEXT NOT NULL,
	cached_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_search_cached_at ON search_cache(cached_at);
`

// ResolutionCacheSchema holds foreign-edition resolutions keyed by the
// Korean query.
const ResolutionCacheSchema = `
CREATE TABLE IF NOT EXISTS resolution_cache (
	cache_key TEXT PRIMARY KEY NOT NULL,
	data TEXT NOT NULL,
	cached_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_resolution_cached_at ON resolution_cache(cached_at);
`

var allSchemas = []string{
	SearchCacheSchema,
	ResolutionCacheSchema,
}

var validTableNames = map[string]bool{
	"search_cache":     true,
	"resolution_cache": true,
}
