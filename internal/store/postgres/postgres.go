package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/racmathafidz/POS-Invoice/internal/domain"
	"github.com/racmathafidz/POS-Invoice/internal/revenue"
	"github.com/racmathafidz/POS-Invoice/internal/store"
)

// createRetries bounds retry attempts when a serializable invoice
// transaction aborts with a serialization failure.
const createRetries = 3

type Store struct {
	db *sql.DB
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Bootstrap creates the schema if absent and seeds the demo catalog into an
// empty products table. Both steps are idempotent; full migration tooling is
// deliberately out of scope.
func (s *Store) Bootstrap(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS products (
			id BIGSERIAL PRIMARY KEY,
			name TEXT NOT NULL,
			price_cents BIGINT NOT NULL CHECK (price_cents >= 0),
			stock INT NOT NULL CHECK (stock >= 0),
			image_url TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE TABLE IF NOT EXISTS invoices (
			id BIGSERIAL PRIMARY KEY,
			date DATE NOT NULL,
			customer_name TEXT NOT NULL,
			salesperson_name TEXT NOT NULL,
			notes TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS invoice_items (
			id BIGSERIAL PRIMARY KEY,
			invoice_id BIGINT NOT NULL REFERENCES invoices(id),
			product_id BIGINT NOT NULL REFERENCES products(id),
			qty INT NOT NULL CHECK (qty > 0),
			price_cents_at_sale BIGINT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_invoice_items_invoice_id ON invoice_items (invoice_id)`,
		`CREATE INDEX IF NOT EXISTS idx_invoices_date ON invoices (date)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}

	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM products`).Scan(&count); err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	seed := []domain.Product{
		{ID: 1, Name: "Arabica Beans 250g", PriceCents: 89000, Stock: 42, ImageURL: "/img/arabica.jpg"},
		{ID: 2, Name: "Robusta Beans 250g", PriceCents: 69000, Stock: 55, ImageURL: "/img/robusta.jpg"},
		{ID: 3, Name: "Whole Milk 1L", PriceCents: 24000, Stock: 80, ImageURL: "/img/milk.jpg"},
		{ID: 4, Name: "Chocolate Syrup", PriceCents: 35000, Stock: 30, ImageURL: "/img/syrup.jpg"},
		{ID: 5, Name: "Paper Cup (50x)", PriceCents: 28000, Stock: 120, ImageURL: "/img/cups.jpg"},
	}
	for _, p := range seed {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO products (id, name, price_cents, stock, image_url)
			VALUES ($1,$2,$3,$4,$5)
			ON CONFLICT (id) DO NOTHING
		`, p.ID, p.Name, p.PriceCents, p.Stock, p.ImageURL)
		if err != nil {
			return err
		}
	}
	_, err := s.db.ExecContext(ctx, `SELECT setval('products_id_seq', (SELECT max(id) FROM products))`)
	return err
}

func (s *Store) ListProducts(ctx context.Context, query string) ([]domain.Product, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, price_cents, stock, image_url
		FROM products
		WHERE $1 = '' OR name ILIKE '%' || $1 || '%'
		ORDER BY id
	`, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := make([]domain.Product, 0, 32)
	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.PriceCents, &p.Stock, &p.ImageURL); err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return products, nil
}

func (s *Store) GetProductByID(ctx context.Context, id int64) (*domain.Product, error) {
	var p domain.Product
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, price_cents, stock, image_url
		FROM products
		WHERE id = $1
	`, id).Scan(&p.ID, &p.Name, &p.PriceCents, &p.Stock, &p.ImageURL)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (s *Store) CreateInvoice(ctx context.Context, draft domain.InvoiceDraft) (*domain.InvoiceSummary, error) {
	var summary *domain.InvoiceSummary
	var err error
	for attempt := 0; attempt < createRetries; attempt++ {
		summary, err = s.createInvoiceTx(ctx, draft)
		if err == nil || !isSerializationFailure(err) {
			return summary, err
		}
	}
	return summary, err
}

func (s *Store) createInvoiceTx(ctx context.Context, draft domain.InvoiceDraft) (*domain.InvoiceSummary, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	ids := uniqueProductIDs(draft.Items)

	// Lock the product rows in id order so concurrent invoices for the same
	// products serialize instead of deadlocking.
	rows, err := tx.QueryContext(ctx, `
		SELECT id, name, price_cents, stock
		FROM products
		WHERE id = ANY($1)
		ORDER BY id
		FOR UPDATE
	`, ids)
	if err != nil {
		return nil, err
	}
	productMap := make(map[int64]domain.Product, len(ids))
	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.PriceCents, &p.Stock); err != nil {
			_ = rows.Close()
			return nil, err
		}
		productMap[p.ID] = p
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, err
	}
	_ = rows.Close()

	missing := make([]int64, 0)
	for _, id := range ids {
		if _, exists := productMap[id]; !exists {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		return nil, &store.ProductNotFoundError{MissingIDs: missing}
	}

	required := make(map[int64]int, len(ids))
	for _, item := range draft.Items {
		required[item.ProductID] += item.Qty
	}
	for _, id := range ids {
		product := productMap[id]
		if required[id] > product.Stock {
			return nil, &store.OutOfStockError{ProductID: id, Name: product.Name}
		}
	}

	var invoiceID int64
	err = tx.QueryRowContext(ctx, `
		INSERT INTO invoices (date, customer_name, salesperson_name, notes)
		VALUES ($1,$2,$3,$4)
		RETURNING id
	`, draft.Date.UTC().Format("2006-01-02"), draft.CustomerName, draft.SalespersonName, nullString(draft.Notes)).Scan(&invoiceID)
	if err != nil {
		return nil, err
	}

	var totalCents int64
	for _, item := range draft.Items {
		product := productMap[item.ProductID]
		_, err := tx.ExecContext(ctx, `
			INSERT INTO invoice_items (invoice_id, product_id, qty, price_cents_at_sale)
			VALUES ($1,$2,$3,$4)
		`, invoiceID, item.ProductID, item.Qty, product.PriceCents)
		if err != nil {
			return nil, err
		}
		totalCents += int64(item.Qty) * product.PriceCents
	}

	// Conditional decrement as a second line of defence: the rows are already
	// locked, but an affected-row count of zero still aborts the whole
	// transaction rather than letting stock go negative.
	for _, id := range ids {
		res, err := tx.ExecContext(ctx, `
			UPDATE products
			SET stock = stock - $2
			WHERE id = $1 AND stock >= $2
		`, id, required[id])
		if err != nil {
			return nil, err
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return nil, err
		}
		if affected == 0 {
			return nil, &store.OutOfStockError{ProductID: id, Name: productMap[id].Name}
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	return &domain.InvoiceSummary{
		ID:              invoiceID,
		Date:            draft.Date.UTC(),
		CustomerName:    draft.CustomerName,
		SalespersonName: draft.SalespersonName,
		Notes:           draft.Notes,
		TotalCents:      totalCents,
	}, nil
}

func (s *Store) ListInvoices(ctx context.Context, cursor int64, limit int) ([]domain.InvoiceSummary, error) {
	if limit < 1 {
		limit = 10
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT i.id, i.date, i.customer_name, i.salesperson_name, i.notes,
			COALESCE(SUM(ii.qty * ii.price_cents_at_sale), 0)::bigint
		FROM invoices i
		LEFT JOIN invoice_items ii ON ii.invoice_id = i.id
		WHERE $1 = 0 OR i.id < $1
		GROUP BY i.id, i.date, i.customer_name, i.salesperson_name, i.notes
		ORDER BY i.id DESC
		LIMIT $2
	`, cursor, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	summaries := make([]domain.InvoiceSummary, 0, limit)
	for rows.Next() {
		var summary domain.InvoiceSummary
		var notes sql.NullString
		if err := rows.Scan(&summary.ID, &summary.Date, &summary.CustomerName, &summary.SalespersonName, &notes, &summary.TotalCents); err != nil {
			return nil, err
		}
		summary.Date = summary.Date.UTC()
		if notes.Valid {
			summary.Notes = &notes.String
		}
		summaries = append(summaries, summary)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return summaries, nil
}

func (s *Store) RevenueByBucket(ctx context.Context, granularity revenue.Granularity, from, to time.Time) ([]domain.RevenuePoint, error) {
	// date_trunc('week', ...) starts buckets on Monday, which matches the
	// chart's alignment rule exactly.
	var trunc string
	switch granularity {
	case revenue.Weekly:
		trunc = "week"
	case revenue.Monthly:
		trunc = "month"
	default:
		trunc = "day"
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT date_trunc($1, i.date)::date AS bucket,
			SUM(ii.qty * ii.price_cents_at_sale)::bigint AS total
		FROM invoices i
		JOIN invoice_items ii ON ii.invoice_id = i.id
		WHERE i.date >= $2::date AND i.date <= $3::date
		GROUP BY 1
		ORDER BY 1
	`, trunc, from.UTC().Format("2006-01-02"), to.UTC().Format("2006-01-02"))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	points := make([]domain.RevenuePoint, 0, 32)
	for rows.Next() {
		var p domain.RevenuePoint
		if err := rows.Scan(&p.At, &p.Total); err != nil {
			return nil, err
		}
		p.At = time.Date(p.At.Year(), p.At.Month(), p.At.Day(), 0, 0, 0, 0, time.UTC)
		points = append(points, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return points, nil
}

func uniqueProductIDs(items []domain.InvoiceItemInput) []int64 {
	seen := make(map[int64]bool, len(items))
	ids := make([]int64, 0, len(items))
	for _, item := range items {
		if seen[item.ProductID] {
			continue
		}
		seen[item.ProductID] = true
		ids = append(ids, item.ProductID)
	}
	return ids
}

func nullString(v *string) sql.NullString {
	if v == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *v, Valid: true}
}

func isSerializationFailure(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "40001"
}
