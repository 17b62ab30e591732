// Package memory is an in-process Repository used when no DATABASE_URL is
// configured and by the test suite. A single mutex serializes invoice
// creation, which gives the same check-then-decrement atomicity the postgres
// store gets from row locks.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/racmathafidz/POS-Invoice/internal/domain"
	"github.com/racmathafidz/POS-Invoice/internal/revenue"
	"github.com/racmathafidz/POS-Invoice/internal/store"
)

type invoiceRecord struct {
	summary domain.InvoiceSummary
	items   []domain.InvoiceItem
}

type Store struct {
	mu            sync.RWMutex
	products      map[int64]domain.Product
	invoices      []invoiceRecord
	nextInvoiceID int64
}

// NewSeeded builds a store preloaded with the demo catalog.
func NewSeeded() *Store {
	products := []domain.Product{
		{ID: 1, Name: "Arabica Beans 250g", PriceCents: 89000, Stock: 42, ImageURL: "/img/arabica.jpg"},
		{ID: 2, Name: "Robusta Beans 250g", PriceCents: 69000, Stock: 55, ImageURL: "/img/robusta.jpg"},
		{ID: 3, Name: "Whole Milk 1L", PriceCents: 24000, Stock: 80, ImageURL: "/img/milk.jpg"},
		{ID: 4, Name: "Chocolate Syrup", PriceCents: 35000, Stock: 30, ImageURL: "/img/syrup.jpg"},
		{ID: 5, Name: "Paper Cup (50x)", PriceCents: 28000, Stock: 120, ImageURL: "/img/cups.jpg"},
	}

	productMap := make(map[int64]domain.Product, len(products))
	for _, p := range products {
		productMap[p.ID] = p
	}

	return &Store{
		products:      productMap,
		invoices:      make([]invoiceRecord, 0, 64),
		nextInvoiceID: 1,
	}
}

func (s *Store) ListProducts(_ context.Context, query string) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query = strings.ToLower(strings.TrimSpace(query))
	products := make([]domain.Product, 0, len(s.products))
	for _, p := range s.products {
		if query != "" && !strings.Contains(strings.ToLower(p.Name), query) {
			continue
		}
		products = append(products, p)
	}

	sort.Slice(products, func(i, j int) bool { return products[i].ID < products[j].ID })
	return products, nil
}

func (s *Store) GetProductByID(_ context.Context, id int64) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	product, exists := s.products[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	copied := product
	return &copied, nil
}

func (s *Store) CreateInvoice(_ context.Context, draft domain.InvoiceDraft) (*domain.InvoiceSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Resolve every referenced product before touching anything.
	missing := make([]int64, 0)
	seen := make(map[int64]bool, len(draft.Items))
	required := make(map[int64]int, len(draft.Items))
	for _, item := range draft.Items {
		if _, exists := s.products[item.ProductID]; !exists {
			if !seen[item.ProductID] {
				missing = append(missing, item.ProductID)
				seen[item.ProductID] = true
			}
			continue
		}
		required[item.ProductID] += item.Qty
	}
	if len(missing) > 0 {
		return nil, &store.ProductNotFoundError{MissingIDs: missing}
	}

	// Stock check over the combined quantity per product, so duplicate lines
	// cannot jointly oversell.
	productIDs := make([]int64, 0, len(required))
	for id := range required {
		productIDs = append(productIDs, id)
	}
	sort.Slice(productIDs, func(i, j int) bool { return productIDs[i] < productIDs[j] })
	for _, id := range productIDs {
		product := s.products[id]
		if required[id] > product.Stock {
			return nil, &store.OutOfStockError{ProductID: id, Name: product.Name}
		}
	}

	invoiceID := s.nextInvoiceID
	s.nextInvoiceID++

	items := make([]domain.InvoiceItem, 0, len(draft.Items))
	var totalCents int64
	for _, item := range draft.Items {
		product := s.products[item.ProductID]
		items = append(items, domain.InvoiceItem{
			InvoiceID:        invoiceID,
			ProductID:        item.ProductID,
			Qty:              item.Qty,
			PriceCentsAtSale: product.PriceCents,
		})
		totalCents += int64(item.Qty) * product.PriceCents

		product.Stock -= item.Qty
		s.products[item.ProductID] = product
	}

	summary := domain.InvoiceSummary{
		ID:              invoiceID,
		Date:            draft.Date.UTC(),
		CustomerName:    draft.CustomerName,
		SalespersonName: draft.SalespersonName,
		Notes:           draft.Notes,
		TotalCents:      totalCents,
	}
	s.invoices = append(s.invoices, invoiceRecord{summary: summary, items: items})

	created := summary
	return &created, nil
}

func (s *Store) ListInvoices(_ context.Context, cursor int64, limit int) ([]domain.InvoiceSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit < 1 {
		limit = 10
	}

	summaries := make([]domain.InvoiceSummary, 0, limit)
	// Invoices are appended in id order, so walk backwards for descending ids.
	for i := len(s.invoices) - 1; i >= 0 && len(summaries) < limit; i-- {
		rec := s.invoices[i]
		if cursor > 0 && rec.summary.ID >= cursor {
			continue
		}
		rec.summary.TotalCents = store.SumItems(rec.items)
		summaries = append(summaries, rec.summary)
	}

	return summaries, nil
}

func (s *Store) RevenueByBucket(_ context.Context, granularity revenue.Granularity, from, to time.Time) ([]domain.RevenuePoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	totals := make(map[time.Time]int64)
	for _, rec := range s.invoices {
		date := rec.summary.Date.UTC()
		if date.Before(from) || date.After(to) {
			continue
		}
		totals[revenue.BucketStart(granularity, date)] += store.SumItems(rec.items)
	}

	points := make([]domain.RevenuePoint, 0, len(totals))
	for at, total := range totals {
		points = append(points, domain.RevenuePoint{At: at, Total: total})
	}
	store.SortPointsAscending(points)

	return points, nil
}
