package domain

import "time"

// Medicine is an inventory row. The relational store is the source of
// truth; hub events only notify that a row changed.
type Medicine struct {
	ID           int64   `db:"id" json:"id"`
	Name         string  `db:"name" json:"name"`
	GenericName  string  `db:"generic_name" json:"genericName"`
	Category     string  `db:"category" json:"category"`
	UnitPrice    float64 `db:"unit_price" json:"unitPrice"`
	Stock        int     `db:"stock" json:"stock"`
	ReorderLevel int     `db:"reorder_level" json:"reorderLevel"`
	ExpiryDate   string  `db:"expiry_date" json:"expiryDate"`
}

// LowStock reports whether the current level is at or below the
// reorder threshold.
func (m Medicine) LowStock() bool {
	return m.Stock <= m.ReorderLevel
}

// SaleItem is one line of a sale.
type SaleItem struct {
	ID         int64   `db:"id" json:"id"`
	SaleID     int64   `db:"sale_id" json:"saleId"`
	MedicineID int64   `db:"medicine_id" json:"medicineId"`
	Quantity   int     `db:"quantity" json:"quantity"`
	UnitPrice  float64 `db:"unit_price" json:"unitPrice"`
}

// Sale is a completed counter sale.
type Sale struct {
	ID        int64      `db:"id" json:"id"`
	InvoiceNo string     `db:"invoice_no" json:"invoiceNo"`
	Customer  string     `db:"customer" json:"customer"`
	UserID    string     `db:"user_id" json:"userId"`
	Total     float64    `db:"total" json:"total"`
	CreatedAt time.Time  `db:"created_at" json:"createdAt"`
	Items     []SaleItem `db:"-" json:"items"`
}

// Payment is a customer payment against an outstanding balance.
type Payment struct {
	ID         int64     `db:"id" json:"id"`
	Customer   string    `db:"customer" json:"customer"`
	Amount     float64   `db:"amount" json:"amount"`
	Method     string    `db:"method" json:"method"`
	UserID     string    `db:"user_id" json:"userId"`
	ReceivedAt time.Time `db:"received_at" json:"receivedAt"`
}
