package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"
)

const DefaultTTL = 24 * time.Hour

// Cache stores one table per fetch query under Dir. Entries are considered
// fresh for TTL after their last write.
type Cache struct {
	Dir string
	TTL time.Duration

	now func() time.Time
}

func New(dir string, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{Dir: dir, TTL: ttl, now: time.Now}
}

// PathFor returns the deterministic entry path for prefix and parts. Parts
// are ordered by key, so the same query always maps to the same file and
// queries differing in any part never share one.
func (c *Cache) PathFor(prefix string, parts map[string]string) string {
	return filepath.Join(c.Dir, FileName(prefix, parts, "csv"))
}

// FileName is the readable, sanitized form of the query followed by a digest
// of its raw values. Sanitizing is lossy ("BRK.B" and "BRK_B" read the same),
// the digest is not.
func FileName(prefix string, parts map[string]string, ext string) string {
	keys := make([]string, 0, len(parts))
	for k := range parts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	segments := make([]string, 0, len(keys))
	raw := []string{strconv.Quote(prefix)}
	for _, k := range keys {
		v := parts[k]
		raw = append(raw, strconv.Quote(k), strconv.Quote(v))
		if v == "" {
			v = "none"
		}
		segments = append(segments, safeToken(k)+"-"+safeToken(v))
	}

	name := safeToken(prefix)
	if len(segments) > 0 {
		name = name + "__" + strings.Join(segments, "__")
	}
	return fmt.Sprintf("%s__%s.%s", name, digest(raw), ext)
}

func safeToken(s string) string {
	return strings.NewReplacer("/", "_", ".", "_", string(filepath.Separator), "_").Replace(s)
}

func digest(tokens []string) string {
	sum := sha256.Sum256([]byte(strings.Join(tokens, ",")))
	return hex.EncodeToString(sum[:])[:12]
}

// Age returns how long ago path was written. ok is false when the entry
// does not exist.
func (c *Cache) Age(path string) (age time.Duration, ok bool) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, false
	}
	return c.now().Sub(info.ModTime()), true
}

func (c *Cache) IsFresh(path string) bool {
	age, ok := c.Age(path)
	return ok && age < c.TTL
}

func (c *Cache) Read(path string) ([]byte, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read cache entry: %w", err)
	}
	return b, nil
}

// Write replaces the entry at path. The content is written to a temporary
// file and renamed, so an interrupted run never leaves a partial entry.
func (c *Cache) Write(path string, content []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create cache dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-"+filepath.Base(path)+"-*")
	if err != nil {
		return fmt.Errorf("failed to create cache entry: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write cache entry: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write cache entry: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to store cache entry: %w", err)
	}
	return nil
}
