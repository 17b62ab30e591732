package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/racmathafidz/POS-Invoice/internal/domain"
	"github.com/racmathafidz/POS-Invoice/internal/revenue"
)

var ErrNotFound = errors.New("not found")

// ProductNotFoundError reports every referenced product id with no matching
// row. The invoice transaction never partially processes a request.
type ProductNotFoundError struct {
	MissingIDs []int64
}

func (e *ProductNotFoundError) Error() string {
	return fmt.Sprintf("one or more products not found: %v", e.MissingIDs)
}

// OutOfStockError names the first product whose available stock is below the
// requested quantity.
type OutOfStockError struct {
	ProductID int64
	Name      string
}

func (e *OutOfStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s", e.Name)
}

type Repository interface {
	// ListProducts returns the catalog ordered by id, optionally filtered by
	// a case-insensitive name substring.
	ListProducts(ctx context.Context, query string) ([]domain.Product, error)
	GetProductByID(ctx context.Context, id int64) (*domain.Product, error)

	// CreateInvoice atomically inserts the invoice and its items, capturing
	// priceCentsAtSale from the current product rows, and decrements each
	// product's stock. It fails with *ProductNotFoundError or
	// *OutOfStockError before any write becomes visible.
	CreateInvoice(ctx context.Context, draft domain.InvoiceDraft) (*domain.InvoiceSummary, error)

	// ListInvoices returns up to limit invoices with id < cursor (or all when
	// cursor is 0), ordered by id descending, with computed totals.
	ListInvoices(ctx context.Context, cursor int64, limit int) ([]domain.InvoiceSummary, error)

	// RevenueByBucket sums qty*priceCentsAtSale per bucket over invoices dated
	// within [from, to] and returns the non-empty buckets ascending by time.
	RevenueByBucket(ctx context.Context, granularity revenue.Granularity, from, to time.Time) ([]domain.RevenuePoint, error)
}

// SumItems computes an invoice total from its line items.
func SumItems(items []domain.InvoiceItem) int64 {
	var total int64
	for _, it := range items {
		total += int64(it.Qty) * it.PriceCentsAtSale
	}
	return total
}

// SortPointsAscending orders revenue points by bucket start time.
func SortPointsAscending(points []domain.RevenuePoint) {
	sort.Slice(points, func(i, j int) bool {
		return points[i].At.Before(points[j].At)
	})
}
