// Package cache stores provider forecasts keyed by (provider, position,
// horizon) so the service can fall back to recent data when every upstream
// provider is failing.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/couchcryptid/marine-ops/internal/domain"
	"github.com/jonboulle/clockwork"
)

// DefaultTTL is how long a cached forecast stays usable.
const DefaultTTL = 3 * time.Hour

const fileExt = ".json"

// Entry is one cached provider response.
type Entry struct {
	Provider string            `json:"provider"`
	StoredAt time.Time         `json:"stored_at"`
	Series   domain.Timeseries `json:"series"`
}

// Store reads and writes cache entries. Get only returns unexpired entries.
type Store interface {
	Get(key string) (Entry, bool)
	Put(key string, e Entry) error
}

// Key derives the cache key for a provider request. Coordinates are rounded
// to three decimals so nearby requests share an entry.
func Key(provider string, pos domain.Position, hours int) string {
	input := fmt.Sprintf("%s|%.3f|%.3f|%d", provider, domain.Round(pos.Latitude, 3), domain.Round(pos.Longitude, 3), hours)
	hash := sha256.Sum256([]byte(input))
	return provider + "-" + hex.EncodeToString(hash[:])
}

// Disk is a JSON-file cache. Writes go to a temp file that is renamed into
// place, so concurrent readers never observe a partial entry.
type Disk struct {
	dir    string
	ttl    time.Duration
	clock  clockwork.Clock
	logger *slog.Logger
}

// NewDisk creates the cache directory if needed.
func NewDisk(dir string, ttl time.Duration, clock clockwork.Clock, logger *slog.Logger) (*Disk, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Disk{dir: dir, ttl: ttl, clock: clock, logger: logger}, nil
}

func (d *Disk) path(key string) string {
	return filepath.Join(d.dir, key+fileExt)
}

// Get returns the entry stored under key if it exists, decodes, and is
// younger than the TTL.
func (d *Disk) Get(key string) (Entry, bool) {
	data, err := os.ReadFile(d.path(key))
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			d.logger.Warn("cache read failed", "key", key, "error", err)
		}
		return Entry{}, false
	}
	var e Entry
	if err := json.Unmarshal(data, &e); err != nil {
		d.logger.Warn("cache entry corrupt", "key", key, "error", err)
		return Entry{}, false
	}
	if d.expired(e) {
		return Entry{}, false
	}
	return e, true
}

// Put writes e under key atomically.
func (d *Disk) Put(key string, e Entry) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode cache entry: %w", err)
	}
	tmp, err := os.CreateTemp(d.dir, key+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp cache file: %w", err)
	}
	defer os.Remove(tmp.Name()) // no-op after a successful rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write cache entry: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close cache entry: %w", err)
	}
	if err := os.Rename(tmp.Name(), d.path(key)); err != nil {
		return fmt.Errorf("commit cache entry: %w", err)
	}
	return nil
}

// Purge deletes expired entries, or every entry when all is true, and
// returns how many files were removed. Unreadable entries count as expired.
func (d *Disk) Purge(all bool) (int, error) {
	files, err := os.ReadDir(d.dir)
	if err != nil {
		return 0, fmt.Errorf("list cache dir: %w", err)
	}
	removed := 0
	for _, f := range files {
		if f.IsDir() || !strings.HasSuffix(f.Name(), fileExt) {
			continue
		}
		path := filepath.Join(d.dir, f.Name())
		if !all && !d.fileExpired(path) {
			continue
		}
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return removed, fmt.Errorf("remove %s: %w", f.Name(), err)
		}
		removed++
	}
	return removed, nil
}

func (d *Disk) fileExpired(path string) bool {
	data, err := os.ReadFile(path)
	if err != nil {
		return true
	}
	var e Entry
	if err := json.Unmarshal(data, &e); err != nil {
		return true
	}
	return d.expired(e)
}

func (d *Disk) expired(e Entry) bool {
	return d.clock.Since(e.StoredAt) > d.ttl
}
