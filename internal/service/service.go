package service

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/racmathafidz/POS-Invoice/internal/cache"
	"github.com/racmathafidz/POS-Invoice/internal/domain"
	"github.com/racmathafidz/POS-Invoice/internal/revenue"
	"github.com/racmathafidz/POS-Invoice/internal/store"
)

const (
	defaultPageSize = 10
	maxPageSize     = 50

	// maxLineQty keeps qty*priceCents comfortably inside int64.
	maxLineQty = 1_000_000

	dateLayout = "2006-01-02"
)

// ValidationError reports a malformed request shape. Details map field names
// to human-readable problems.
type ValidationError struct {
	Details map[string]string
}

func (e *ValidationError) Error() string {
	return "invalid payload"
}

type Service struct {
	repo         store.Repository
	revenueCache cache.RevenueCache
	cacheTTL     time.Duration
	now          func() time.Time
}

func New(repo store.Repository, revenueCache cache.RevenueCache, cacheTTL time.Duration) *Service {
	if revenueCache == nil {
		revenueCache = cache.NoopRevenueCache{}
	}
	return &Service{
		repo:         repo,
		revenueCache: revenueCache,
		cacheTTL:     cacheTTL,
		now:          time.Now,
	}
}

func (s *Service) SearchProducts(ctx context.Context, query string) ([]domain.Product, error) {
	products, err := s.repo.ListProducts(ctx, strings.TrimSpace(query))
	if err != nil {
		return nil, err
	}
	if products == nil {
		products = []domain.Product{}
	}
	return products, nil
}

func (s *Service) CreateInvoice(ctx context.Context, req domain.InvoiceCreateRequest) (*domain.InvoiceSummary, error) {
	details := make(map[string]string)

	date, err := time.ParseInLocation(dateLayout, strings.TrimSpace(req.Date), time.UTC)
	if err != nil {
		details["date"] = "must be a YYYY-MM-DD date"
	}

	customerName := strings.TrimSpace(req.CustomerName)
	if customerName == "" {
		details["customerName"] = "must not be empty"
	}
	salespersonName := strings.TrimSpace(req.SalespersonName)
	if salespersonName == "" {
		details["salespersonName"] = "must not be empty"
	}

	if len(req.Items) == 0 {
		details["items"] = "must contain at least one item"
	}
	for i, item := range req.Items {
		if item.ProductID < 1 {
			details[fmt.Sprintf("items.%d.productId", i)] = "must be a positive integer"
		}
		if item.Qty < 1 {
			details[fmt.Sprintf("items.%d.qty", i)] = "must be a positive integer"
		} else if item.Qty > maxLineQty {
			details[fmt.Sprintf("items.%d.qty", i)] = fmt.Sprintf("must not exceed %d", maxLineQty)
		}
	}

	if len(details) > 0 {
		return nil, &ValidationError{Details: details}
	}

	return s.repo.CreateInvoice(ctx, domain.InvoiceDraft{
		Date:            date,
		CustomerName:    customerName,
		SalespersonName: salespersonName,
		Notes:           req.Notes,
		Items:           req.Items,
	})
}

func (s *Service) ListInvoices(ctx context.Context, cursor int64, limit int) (domain.InvoiceList, error) {
	if limit < 1 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	if cursor < 0 {
		cursor = 0
	}

	nodes, err := s.repo.ListInvoices(ctx, cursor, limit)
	if err != nil {
		return domain.InvoiceList{}, err
	}
	if nodes == nil {
		nodes = []domain.InvoiceSummary{}
	}

	list := domain.InvoiceList{Nodes: nodes}
	// A full page signals there may be more; the last id becomes the next
	// exclusive upper bound.
	if len(nodes) == limit {
		last := nodes[len(nodes)-1].ID
		list.NextCursor = &last
	}
	return list, nil
}

func (s *Service) Revenue(ctx context.Context, rawGranularity, rawFrom, rawTo string) ([]domain.RevenuePoint, error) {
	granularity, from, to, err := s.resolveRange(rawGranularity, rawFrom, rawTo)
	if err != nil {
		return nil, err
	}

	key := fmt.Sprintf("revenue:%s:%d:%d", granularity, from.Unix(), to.Unix())
	if cached, ok, err := s.revenueCache.Get(ctx, key); err != nil {
		log.Printf("[service] WARN: revenue cache get failed: %v", err)
	} else if ok {
		return cached, nil
	}

	points, err := s.repo.RevenueByBucket(ctx, granularity, from, to)
	if err != nil {
		return nil, err
	}
	if points == nil {
		points = []domain.RevenuePoint{}
	}

	if err := s.revenueCache.Set(ctx, key, points, s.cacheTTL); err != nil {
		log.Printf("[service] WARN: revenue cache set failed: %v", err)
	}
	return points, nil
}

// RevenueWindow reshapes the aggregation into the dense trailing window the
// chart plots. It only reuses what Revenue already fetched.
func (s *Service) RevenueWindow(ctx context.Context, rawGranularity, rawFrom, rawTo string) ([]domain.RevenuePoint, error) {
	points, err := s.Revenue(ctx, rawGranularity, rawFrom, rawTo)
	if err != nil {
		return nil, err
	}
	granularity, _ := revenue.ParseGranularity(rawGranularity)
	return revenue.Window(points, granularity, s.now().UTC()), nil
}

func (s *Service) resolveRange(rawGranularity, rawFrom, rawTo string) (revenue.Granularity, time.Time, time.Time, error) {
	granularity, ok := revenue.ParseGranularity(rawGranularity)
	if !ok {
		return "", time.Time{}, time.Time{}, &ValidationError{Details: map[string]string{
			"granularity": "must be one of daily, weekly, monthly",
		}}
	}

	to := s.now().UTC()
	if raw := strings.TrimSpace(rawTo); raw != "" {
		day, err := time.ParseInLocation(dateLayout, raw, time.UTC)
		if err != nil {
			return "", time.Time{}, time.Time{}, &ValidationError{Details: map[string]string{
				"to": "must be a YYYY-MM-DD date",
			}}
		}
		// Inclusive to the end of the requested day.
		to = day.Add(24*time.Hour - time.Second)
	}

	from := revenue.DefaultFrom(granularity, to)
	if raw := strings.TrimSpace(rawFrom); raw != "" {
		day, err := time.ParseInLocation(dateLayout, raw, time.UTC)
		if err != nil {
			return "", time.Time{}, time.Time{}, &ValidationError{Details: map[string]string{
				"from": "must be a YYYY-MM-DD date",
			}}
		}
		from = day
	}

	return granularity, from, to, nil
}
