package domain

import "time"

type Product struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	PriceCents int64  `json:"priceCents"`
	Stock      int    `json:"stock"`
	ImageURL   string `json:"imageUrl"`
}

type InvoiceItemInput struct {
	ProductID int64 `json:"productId"`
	Qty       int   `json:"qty"`
}

type InvoiceCreateRequest struct {
	Date            string             `json:"date"` // YYYY-MM-DD
	CustomerName    string             `json:"customerName"`
	SalespersonName string             `json:"salespersonName"`
	Notes           *string            `json:"notes"`
	Items           []InvoiceItemInput `json:"items"`
}

// InvoiceDraft is a validated create request handed to the store. The store
// assigns the id and captures the per-line price snapshots inside its
// transaction.
type InvoiceDraft struct {
	Date            time.Time
	CustomerName    string
	SalespersonName string
	Notes           *string
	Items           []InvoiceItemInput
}

type InvoiceItem struct {
	InvoiceID        int64 `json:"invoiceId"`
	ProductID        int64 `json:"productId"`
	Qty              int   `json:"qty"`
	PriceCentsAtSale int64 `json:"priceCentsAtSale"`
}

type InvoiceSummary struct {
	ID              int64     `json:"id"`
	Date            time.Time `json:"date"`
	CustomerName    string    `json:"customerName"`
	SalespersonName string    `json:"salespersonName"`
	Notes           *string   `json:"notes"`
	TotalCents      int64     `json:"totalCents"`
}

type InvoiceList struct {
	Nodes      []InvoiceSummary `json:"nodes"`
	NextCursor *int64           `json:"nextCursor"`
}

type RevenuePoint struct {
	At    time.Time `json:"at"`
	Total int64     `json:"total"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"accessToken"`
	ExpiresAt   string `json:"expiresAt"`
}
