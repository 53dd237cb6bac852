// Package schema fetches, caches, and parses the settings JSON schema.
//
// The schema is treated as a keyed, TTL-expiring byte blob: a fresh cached
// copy bypasses the network entirely, and a stale copy is the offline
// fallback when the fetch fails.
package schema

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// DefaultURL is the published settings schema location.
const DefaultURL = "https://json.schemastore.org/claude-code-settings.json"

// DefaultTTL is the cache freshness window.
const DefaultTTL = 7 * 24 * time.Hour

// SettingDef describes one settable key parsed from schema properties.
type SettingDef struct {
	Key         string `json:"key" yaml:"key"`
	Type        string `json:"type" yaml:"type"` // boolean, string, number, integer, array, object, enum
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	Default     any    `json:"default,omitempty" yaml:"default,omitempty"`
	Enum        []any  `json:"enum,omitempty" yaml:"enum,omitempty"`
}

// Cache provides the schema document with TTL-based caching.
type Cache struct {
	dir    string
	url    string
	ttl    time.Duration
	client *http.Client
}

// NewCache creates a cache under $XDG_CACHE_HOME/clasp (or ~/.cache/clasp).
func NewCache() (*Cache, error) {
	cacheDir := os.Getenv("XDG_CACHE_HOME")
	if cacheDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to determine home directory: %w", err)
		}
		cacheDir = filepath.Join(home, ".cache")
	}
	return NewCacheWithDir(filepath.Join(cacheDir, "clasp")), nil
}

// NewCacheWithDir creates a cache rooted at a custom directory (for testing).
func NewCacheWithDir(dir string) *Cache {
	return &Cache{
		dir: dir,
		url: DefaultURL,
		ttl: DefaultTTL,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// WithURL overrides the schema URL (for testing).
func (c *Cache) WithURL(url string) *Cache {
	c.url = url
	return c
}

// WithTTL overrides the freshness window.
func (c *Cache) WithTTL(ttl time.Duration) *Cache {
	c.ttl = ttl
	return c
}

func (c *Cache) blobPath() string { return filepath.Join(c.dir, "schema.json") }
func (c *Cache) metaPath() string { return filepath.Join(c.dir, "schema-meta.json") }

type cacheMeta struct {
	FetchedAt int64 `json:"fetched_at"`
}

// Load returns the schema document. A non-expired cached copy is returned
// without any network access; otherwise the schema is fetched and cached,
// falling back to a stale cached copy when the fetch fails.
func (c *Cache) Load(ctx context.Context) (map[string]any, error) {
	if doc := c.cached(false); doc != nil {
		return doc, nil
	}

	doc, err := c.fetch(ctx)
	if err != nil {
		if stale := c.cached(true); stale != nil {
			return stale, nil
		}
		return nil, fmt.Errorf("failed to fetch schema: %w", err)
	}
	c.save(doc)
	return doc, nil
}

// cached returns the cached schema, or nil when absent, unreadable, or
// (unless allowStale) past the freshness window.
func (c *Cache) cached(allowStale bool) map[string]any {
	blob, err := os.ReadFile(c.blobPath())
	if err != nil {
		return nil
	}
	if !allowStale {
		metaBytes, err := os.ReadFile(c.metaPath())
		if err != nil {
			return nil
		}
		var meta cacheMeta
		if err := json.Unmarshal(metaBytes, &meta); err != nil {
			return nil
		}
		if time.Since(time.Unix(meta.FetchedAt, 0)) > c.ttl {
			return nil
		}
	}
	var doc map[string]any
	if err := json.Unmarshal(blob, &doc); err != nil {
		return nil
	}
	return doc
}

func (c *Cache) fetch(ctx context.Context) (map[string]any, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d from %s", resp.StatusCode, c.url)
	}
	var doc map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func (c *Cache) save(doc map[string]any) {
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return
	}
	blob, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return
	}
	meta, _ := json.Marshal(cacheMeta{FetchedAt: time.Now().Unix()})
	_ = os.WriteFile(c.blobPath(), blob, 0o644)
	_ = os.WriteFile(c.metaPath(), meta, 0o644)
}

// ParseProperties extracts setting definitions from the schema's properties
// object. Union types collapse to the first non-null member; oneOf const/enum
// branches flatten into a single enum list.
func ParseProperties(doc map[string]any) []SettingDef {
	properties, _ := doc["properties"].(map[string]any)
	var result []SettingDef
	for key, raw := range properties {
		prop, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		def := SettingDef{Key: key, Type: "string"}

		switch t := prop["type"].(type) {
		case string:
			def.Type = t
		case []any:
			for _, member := range t {
				if s, ok := member.(string); ok && s != "null" {
					def.Type = s
					break
				}
			}
		}

		def.Description, _ = prop["description"].(string)
		def.Default = prop["default"]

		if enum, ok := prop["enum"].([]any); ok {
			def.Enum = enum
		}
		if oneOf, ok := prop["oneOf"].([]any); ok {
			var values []any
			for _, branch := range oneOf {
				b, ok := branch.(map[string]any)
				if !ok {
					continue
				}
				if c, ok := b["const"]; ok {
					values = append(values, c)
				} else if e, ok := b["enum"].([]any); ok {
					values = append(values, e...)
				}
			}
			if len(values) > 0 {
				def.Enum = values
			}
		}
		if len(def.Enum) > 0 {
			def.Type = "enum"
		}
		result = append(result, def)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Key < result[j].Key })
	return result
}

// structuralKeys are settings-document keys managed through their own
// category or scope machinery, never through the per-key settings editor.
var structuralKeys = map[string]bool{
	"$schema":        true,
	"permissions":    true,
	"hooks":          true,
	"enabledPlugins": true,
	"defaultMode":    true,
	"mcpServers":     true,
	"description":    true,
}

// helperKeys are credential/helper settings excluded from the project-scope
// editor entirely.
var helperKeys = map[string]bool{
	"apiKeyHelper":        true,
	"awsCredentialExport": true,
	"awsAuthRefresh":      true,
	"otelHeadersHelper":   true,
	"forceLoginOrgUUID":   true,
	"forceLoginMethod":    true,
}

// IsStructuralKey reports whether a settings key is managed structurally
// rather than as a scalar setting.
func IsStructuralKey(key string) bool {
	return structuralKeys[key]
}

// EditorDefs filters parsed definitions down to the keys offered by the
// project-scope editor, overriding outputStyle with the styles discovered
// in the repository.
func EditorDefs(defs []SettingDef, outputStyles []string) []SettingDef {
	var result []SettingDef
	for _, def := range defs {
		if structuralKeys[def.Key] || helperKeys[def.Key] {
			continue
		}
		if def.Key == "outputStyle" && len(outputStyles) > 0 {
			def.Type = "enum"
			def.Enum = def.Enum[:0]
			for _, style := range outputStyles {
				def.Enum = append(def.Enum, style)
			}
		}
		result = append(result, def)
	}
	return result
}
