// Package catalog holds the product model and the SQLite-backed storage
// surface used by reconciliation, bulk import and recalculation: full
// snapshot reads plus batched transactional writes with a bounded
// per-transaction size.
package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/puntogamer/gamestore/internal/pricing"
)

// DefaultBatchSize bounds writes per transaction. 450 is the safe margin
// under the 500-write transaction limit of the backend the catalog was
// originally hosted on; it is injectable so other backends can raise it.
const DefaultBatchSize = 450

// Product is one sellable item. SKU stores the supplier barcode used as the
// reconciliation join key; legacy items without one are never auto-updated.
// Price and BasePrice are derived fields, always recomputable from the other
// columns plus the current settings.
type Product struct {
	ID                 string
	SKU                string
	Name               string
	Slug               string
	Platform           string
	CostPrice          float64
	Currency           pricing.Currency
	CustomMargin       *float64
	DiscountPercentage float64
	ManualPrice        *float64
	Price              float64
	BasePrice          float64
	Stock              bool
	IsHidden           bool
	CreatedAt          string
	UpdatedAt          string
}

// PricingInput projects the product onto the calculator's input.
func (p Product) PricingInput() pricing.ItemInput {
	return pricing.ItemInput{
		CostPrice:          p.CostPrice,
		Currency:           p.Currency,
		CustomMargin:       p.CustomMargin,
		DiscountPercentage: p.DiscountPercentage,
		ManualPrice:        p.ManualPrice,
	}
}

// UpdateKind tags the shape of a staged catalog write.
type UpdateKind int

const (
	// UpdateReprice refreshes cost, currency and both prices, and forces
	// stock back on: the item reappeared in the supplier feed.
	UpdateReprice UpdateKind = iota
	// UpdateOutOfStock clears the stock flag only; prices stay untouched.
	UpdateOutOfStock
	// UpdatePricesOnly rewrites base/final price, used by global
	// recalculation after a settings change.
	UpdatePricesOnly
)

// Update is one staged field change for a product.
type Update struct {
	ProductID string
	Kind      UpdateKind
	CostPrice float64
	Currency  pricing.Currency
	BasePrice float64
	Price     float64
}

// ProgressFunc receives (done, total) record counts after each committed
// batch. Progress is monotonic because batches commit sequentially.
type ProgressFunc func(done, total int)

// Store wraps the catalog tables.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

const productColumns = `
	id, COALESCE(sku, ''), name, slug, COALESCE(platform, ''),
	cost_price, currency, custom_margin, discount_percentage, manual_price,
	price, base_price, stock, is_hidden, created_at, updated_at
`

// GetAll returns the full catalog snapshot, newest first.
func (s *Store) GetAll(ctx context.Context) ([]Product, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+productColumns+`
		FROM products
		ORDER BY datetime(created_at) DESC, id
	`)
	if err != nil {
		return nil, fmt.Errorf("query products: %w", err)
	}
	defer rows.Close()

	products := make([]Product, 0)
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

// Search returns visible-or-not products whose name or sku matches query.
// An empty query returns everything, like GetAll.
func (s *Store) Search(ctx context.Context, query string) ([]Product, error) {
	search := "%" + query + "%"
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+productColumns+`
		FROM products
		WHERE (? = '' OR name LIKE ? OR COALESCE(sku, '') LIKE ?)
		ORDER BY datetime(created_at) DESC, id
	`, query, search, search)
	if err != nil {
		return nil, fmt.Errorf("query products: %w", err)
	}
	defer rows.Close()

	products := make([]Product, 0)
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

// GetByID returns one product or sql.ErrNoRows.
func (s *Store) GetByID(ctx context.Context, id string) (Product, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+productColumns+`
		FROM products
		WHERE id = ?
	`, id)
	return scanProduct(row)
}

// Insert writes a single product.
func (s *Store) Insert(ctx context.Context, p Product) error {
	_, err := s.db.ExecContext(ctx, insertProductSQL, insertProductArgs(p)...)
	if err != nil {
		return fmt.Errorf("insert product %s: %w", p.Name, err)
	}
	return nil
}

// UpdateProduct rewrites the editable fields of one product, including the
// derived prices the caller recomputed. Returns sql.ErrNoRows when the id
// does not exist.
func (s *Store) UpdateProduct(ctx context.Context, p Product) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE products
		SET
			sku = ?,
			name = ?,
			slug = ?,
			platform = ?,
			cost_price = ?,
			currency = ?,
			custom_margin = ?,
			discount_percentage = ?,
			manual_price = ?,
			price = ?,
			base_price = ?,
			stock = ?,
			is_hidden = ?,
			updated_at = ?
		WHERE id = ?
	`,
		nullableString(p.SKU), p.Name, p.Slug, p.Platform,
		p.CostPrice, string(p.Currency), nullableFloat(p.CustomMargin),
		p.DiscountPercentage, nullableFloat(p.ManualPrice),
		p.Price, p.BasePrice, p.Stock, p.IsHidden, nowText(), p.ID,
	)
	if err != nil {
		return fmt.Errorf("update product %s: %w", p.ID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update product %s: %w", p.ID, err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// InsertBatch writes products in sequential transactions of at most
// batchSize rows. Batch N is durable before batch N+1 starts; a failing
// batch aborts the remainder and reports which batch failed, while already
// committed batches stay committed.
func (s *Store) InsertBatch(ctx context.Context, products []Product, batchSize int, progress ProgressFunc) (int, error) {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	total := len(products)
	done := 0
	for start := 0; start < total; start += batchSize {
		end := min(start+batchSize, total)

		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return done, fmt.Errorf("begin insert batch %d: %w", start/batchSize+1, err)
		}
		for _, p := range products[start:end] {
			if _, err := tx.ExecContext(ctx, insertProductSQL, insertProductArgs(p)...); err != nil {
				_ = tx.Rollback()
				return done, fmt.Errorf("insert product %s (batch %d): %w", p.Name, start/batchSize+1, err)
			}
		}
		if err := tx.Commit(); err != nil {
			return done, fmt.Errorf("commit insert batch %d: %w", start/batchSize+1, err)
		}

		done = end
		if progress != nil {
			progress(done, total)
		}
	}
	return done, nil
}

// ApplyUpdates commits staged updates with the same batching discipline as
// InsertBatch. Each record update is computed fresh from current state by
// the caller, so re-running an interrupted operation is safe.
func (s *Store) ApplyUpdates(ctx context.Context, updates []Update, batchSize int, progress ProgressFunc) (int, error) {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	total := len(updates)
	done := 0
	for start := 0; start < total; start += batchSize {
		end := min(start+batchSize, total)

		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return done, fmt.Errorf("begin update batch %d: %w", start/batchSize+1, err)
		}
		for _, u := range updates[start:end] {
			if err := applyUpdate(ctx, tx, u); err != nil {
				_ = tx.Rollback()
				return done, fmt.Errorf("apply update for %s (batch %d): %w", u.ProductID, start/batchSize+1, err)
			}
		}
		if err := tx.Commit(); err != nil {
			return done, fmt.Errorf("commit update batch %d: %w", start/batchSize+1, err)
		}

		done = end
		if progress != nil {
			progress(done, total)
		}
	}
	return done, nil
}

func applyUpdate(ctx context.Context, tx *sql.Tx, u Update) error {
	var err error
	switch u.Kind {
	case UpdateReprice:
		_, err = tx.ExecContext(ctx, `
			UPDATE products
			SET cost_price = ?, currency = ?, base_price = ?, price = ?, stock = TRUE, updated_at = ?
			WHERE id = ?
		`, u.CostPrice, string(u.Currency), u.BasePrice, u.Price, nowText(), u.ProductID)
	case UpdateOutOfStock:
		_, err = tx.ExecContext(ctx, `
			UPDATE products
			SET stock = FALSE, updated_at = ?
			WHERE id = ?
		`, nowText(), u.ProductID)
	case UpdatePricesOnly:
		_, err = tx.ExecContext(ctx, `
			UPDATE products
			SET base_price = ?, price = ?, updated_at = ?
			WHERE id = ?
		`, u.BasePrice, u.Price, nowText(), u.ProductID)
	default:
		return fmt.Errorf("unknown update kind %d", u.Kind)
	}
	return err
}

const insertProductSQL = `
	INSERT INTO products (
		id, sku, name, slug, platform,
		cost_price, currency, custom_margin, discount_percentage, manual_price,
		price, base_price, stock, is_hidden, created_at, updated_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`

func insertProductArgs(p Product) []any {
	createdAt := p.CreatedAt
	if createdAt == "" {
		createdAt = nowText()
	}
	updatedAt := p.UpdatedAt
	if updatedAt == "" {
		updatedAt = createdAt
	}
	return []any{
		p.ID, nullableString(p.SKU), p.Name, p.Slug, p.Platform,
		p.CostPrice, string(p.Currency), nullableFloat(p.CustomMargin),
		p.DiscountPercentage, nullableFloat(p.ManualPrice),
		p.Price, p.BasePrice, p.Stock, p.IsHidden, createdAt, updatedAt,
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (Product, error) {
	var (
		p            Product
		currency     string
		customMargin sql.NullFloat64
		manualPrice  sql.NullFloat64
	)
	err := row.Scan(
		&p.ID, &p.SKU, &p.Name, &p.Slug, &p.Platform,
		&p.CostPrice, &currency, &customMargin, &p.DiscountPercentage, &manualPrice,
		&p.Price, &p.BasePrice, &p.Stock, &p.IsHidden, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return Product{}, err
	}

	p.Currency = pricing.Currency(currency)
	if customMargin.Valid {
		v := customMargin.Float64
		p.CustomMargin = &v
	}
	if manualPrice.Valid {
		v := manualPrice.Float64
		p.ManualPrice = &v
	}
	return p, nil
}

func nullableFloat(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullableString(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func nowText() string {
	return time.Now().UTC().Format(time.RFC3339)
}
