package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)
)

// CatalogStore is the SQLite-backed product catalog. It is the source of
// truth that the indexing pipeline reads from and the ETL phase writes
// derived fields back into.
//
// WAL mode allows a reader (queries, stats) to run while an indexing
// process holds the writer connection.
type CatalogStore struct {
	mu     sync.RWMutex
	db     *sql.DB
	path   string
	closed bool
}

// NewCatalogStore opens (or creates) the catalog database at path.
// An empty path creates an in-memory catalog for testing.
func NewCatalogStore(path string) (*CatalogStore, error) {
	dsn := path
	if path == "" {
		dsn = ":memory:"
	} else {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create catalog directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open catalog database: %w", err)
	}

	// Single writer to prevent lock contention
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	// WAL mode must be set via PRAGMA for modernc.org/sqlite
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA temp_store = MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("set pragma: %w", err)
		}
	}

	s := &CatalogStore{db: db, path: path}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize catalog schema: %w", err)
	}
	return s, nil
}

func (s *CatalogStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY
	);

	CREATE TABLE IF NOT EXISTS products (
		sku                TEXT PRIMARY KEY,
		url                TEXT,
		image_url          TEXT,
		name               TEXT NOT NULL,
		artists            TEXT,
		price              TEXT,
		description        TEXT,
		content_type       TEXT,
		tags               TEXT,
		raw_compatibility  TEXT,
		compatible_figures TEXT,
		category           TEXT,
		subcategories      TEXT,
		embedding_text     TEXT,
		mature             INTEGER NOT NULL DEFAULT 0,
		last_updated       TEXT NOT NULL,
		enriched_at        TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_products_last_updated ON products(last_updated);
	CREATE INDEX IF NOT EXISTS idx_products_enriched_at ON products(enriched_at);

	INSERT OR IGNORE INTO schema_version (version) VALUES (1);
	`
	_, err := s.db.Exec(schema)
	return err
}

const productColumns = `sku, url, image_url, name, artists, price, description,
	content_type, tags, raw_compatibility, compatible_figures, category,
	subcategories, embedding_text, mature, last_updated, enriched_at`

// UpsertProducts writes products into the catalog, replacing existing rows
// by SKU.
func (s *CatalogStore) UpsertProducts(ctx context.Context, products []*Product) error {
	if len(products) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("catalog store is closed")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO products (`+productColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare upsert: %w", err)
	}
	defer stmt.Close()

	for _, p := range products {
		if p.SKU == "" {
			return fmt.Errorf("product %q has empty SKU", p.Name)
		}
		_, err := stmt.ExecContext(ctx,
			p.SKU, p.URL, p.ImageURL, p.Name,
			joinList(p.Artists), p.Price, p.Description, p.ContentType,
			joinList(p.Tags), p.RawCompatibility, joinList(p.CompatibleFigures),
			p.Category, joinList(p.Subcategories),
			nullString(p.EmbeddingText), boolToInt(p.Mature),
			formatTime(p.LastUpdated), nullTime(p.EnrichedAt))
		if err != nil {
			return fmt.Errorf("upsert product %s: %w", p.SKU, err)
		}
	}
	return tx.Commit()
}

// GetProduct fetches a single product by SKU. Returns sql.ErrNoRows when
// the SKU is unknown.
func (s *CatalogStore) GetProduct(ctx context.Context, sku string) (*Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, fmt.Errorf("catalog store is closed")
	}

	row := s.db.QueryRowContext(ctx,
		`SELECT `+productColumns+` FROM products WHERE sku = ?`, sku)
	return scanProduct(row)
}

// ChangedSince returns products changed after the given checkpoint that
// carry embedding text, ordered by SKU for deterministic batching. A change
// is a catalog update or a later enrichment pass.
//
// limit <= 0 returns everything.
func (s *CatalogStore) ChangedSince(ctx context.Context, since time.Time, limit int) ([]*Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, fmt.Errorf("catalog store is closed")
	}

	query := `SELECT ` + productColumns + ` FROM products
		WHERE embedding_text IS NOT NULL AND embedding_text != ''
		  AND (last_updated > ? OR (enriched_at IS NOT NULL AND enriched_at > ?))
		ORDER BY sku`
	args := []any{formatTime(since), formatTime(since)}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query changed products: %w", err)
	}
	defer rows.Close()
	return scanProducts(rows)
}

// NeedingDerivation returns products whose embedding text has not been
// derived yet. With all=true every product is returned, which backs the
// forced re-derivation path.
func (s *CatalogStore) NeedingDerivation(ctx context.Context, all bool, limit int) ([]*Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, fmt.Errorf("catalog store is closed")
	}

	query := `SELECT ` + productColumns + ` FROM products`
	if !all {
		query += ` WHERE embedding_text IS NULL OR embedding_text = ''`
	}
	query += ` ORDER BY sku`
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query underived products: %w", err)
	}
	defer rows.Close()
	return scanProducts(rows)
}

// StoreDerived writes the derived fields for a product and stamps
// enriched_at so the next incremental embedding run picks it up.
func (s *CatalogStore) StoreDerived(ctx context.Context, sku, embeddingText, category string, subcategories, compatibleFigures []string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("catalog store is closed")
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE products
		SET embedding_text = ?, category = ?, subcategories = ?,
		    compatible_figures = ?, enriched_at = ?
		WHERE sku = ?`,
		embeddingText, category, joinList(subcategories),
		joinList(compatibleFigures), formatTime(at), sku)
	if err != nil {
		return fmt.Errorf("store derived fields for %s: %w", sku, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("store derived fields for %s: %w", sku, err)
	}
	if n == 0 {
		return fmt.Errorf("store derived fields: unknown SKU %s", sku)
	}
	return nil
}

// Count returns the number of products in the catalog.
func (s *CatalogStore) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return 0, fmt.Errorf("catalog store is closed")
	}

	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM products`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count products: %w", err)
	}
	return count, nil
}

// Close closes the underlying database.
func (s *CatalogStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (*Product, error) {
	var p Product
	var artists, price, description, contentType, tags, rawCompat, figures sql.NullString
	var url, imageURL, category, subcats, embeddingText, enrichedAt sql.NullString
	var mature int
	var lastUpdated string

	err := row.Scan(&p.SKU, &url, &imageURL, &p.Name, &artists, &price,
		&description, &contentType, &tags, &rawCompat, &figures, &category,
		&subcats, &embeddingText, &mature, &lastUpdated, &enrichedAt)
	if err != nil {
		return nil, err
	}

	p.URL = url.String
	p.ImageURL = imageURL.String
	p.Artists = splitList(artists.String)
	p.Price = price.String
	p.Description = description.String
	p.ContentType = contentType.String
	p.Tags = splitList(tags.String)
	p.RawCompatibility = rawCompat.String
	p.CompatibleFigures = splitList(figures.String)
	p.Category = category.String
	p.Subcategories = splitList(subcats.String)
	p.EmbeddingText = embeddingText.String
	p.Mature = mature != 0

	if p.LastUpdated, err = parseTime(lastUpdated); err != nil {
		return nil, fmt.Errorf("product %s has bad last_updated: %w", p.SKU, err)
	}
	if enrichedAt.Valid && enrichedAt.String != "" {
		if p.EnrichedAt, err = parseTime(enrichedAt.String); err != nil {
			return nil, fmt.Errorf("product %s has bad enriched_at: %w", p.SKU, err)
		}
	}
	return &p, nil
}

func scanProducts(rows *sql.Rows) ([]*Product, error) {
	var products []*Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate products: %w", err)
	}
	return products, nil
}

func joinList(items []string) string {
	return strings.Join(items, ListSeparator)
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ListSeparator)
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339, s)
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return formatTime(t)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
