package db

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/jackc/pgx/v5"
)

// FolderCache memoizes full_path to row id so a run touches the folders
// table at most once per distinct path.
type FolderCache struct {
	mu  sync.Mutex
	ids map[string]int64
}

func NewFolderCache() *FolderCache {
	return &FolderCache{ids: make(map[string]int64)}
}

func (c *FolderCache) get(path string) (int64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id, ok := c.ids[path]
	return id, ok
}

func (c *FolderCache) put(path string, id int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ids[path] = id
}

// ResolveFolder maps a decoded folder path like "Archives/2024/Reports" to
// its row id, creating the row and every missing ancestor on the way down.
// An empty delimiter treats the whole path as a single root-level folder.
func ResolveFolder(ctx context.Context, conn *pgx.Conn, cache *FolderCache, fullPath, delimiter string) (int64, error) {
	if fullPath == "" {
		return 0, fmt.Errorf("empty folder path")
	}
	if id, ok := cache.get(fullPath); ok {
		return id, nil
	}

	var components []string
	if delimiter == "" {
		components = []string{fullPath}
	} else {
		components = strings.Split(fullPath, delimiter)
	}

	var parentID *int64
	var prefix string
	for _, component := range components {
		if prefix == "" {
			prefix = component
		} else {
			prefix = prefix + delimiter + component
		}

		if id, ok := cache.get(prefix); ok {
			parentID = &id
			continue
		}

		id, err := getOrCreateFolder(ctx, conn, component, prefix, parentID, delimiter)
		if err != nil {
			return 0, fmt.Errorf("failed to resolve folder %q: %w", prefix, err)
		}
		cache.put(prefix, id)
		parentID = &id
	}

	return *parentID, nil
}

func getOrCreateFolder(ctx context.Context, conn *pgx.Conn, name, fullPath string, parentID *int64, delimiter string) (int64, error) {
	var id int64
	err := conn.QueryRow(ctx, "SELECT id FROM folders WHERE full_path = $1", fullPath).Scan(&id)
	if err == nil {
		return id, nil
	}
	if err != pgx.ErrNoRows {
		return 0, err
	}

	// ON CONFLICT DO NOTHING keeps a concurrent importer from failing the
	// insert; the re-read below picks up whichever row won.
	_, err = conn.Exec(ctx,
		`INSERT INTO folders (name, full_path, parent_id, delimiter)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (full_path) DO NOTHING`,
		name, fullPath, parentID, nullableText(delimiter))
	if err != nil {
		return 0, err
	}

	if err := conn.QueryRow(ctx, "SELECT id FROM folders WHERE full_path = $1", fullPath).Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}

func nullableText(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
