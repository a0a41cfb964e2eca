// Package store is the relational source of truth for pharmacy data.
// The hub never reads or writes it; the REST layer does, and then
// relays a notification event.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"medhub/domain"
	apperrors "medhub/errors"
)

// Connect opens a SQLite database using the provided DSN.
func Connect(dsn string) (*sqlx.DB, error) {
	db, err := sqlx.Connect("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	db.SetMaxOpenConns(1)
	return db, nil
}

// Migrate creates the schema. Idempotent, run at every startup.
func Migrate(db *sqlx.DB) error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS medicines (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            name TEXT NOT NULL,
            generic_name TEXT NOT NULL DEFAULT '',
            category TEXT NOT NULL DEFAULT '',
            unit_price REAL NOT NULL DEFAULT 0,
            stock INTEGER NOT NULL DEFAULT 0,
            reorder_level INTEGER NOT NULL DEFAULT 0,
            expiry_date TEXT NOT NULL DEFAULT ''
        );`,
		`CREATE TABLE IF NOT EXISTS sales (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            invoice_no TEXT NOT NULL UNIQUE,
            customer TEXT NOT NULL DEFAULT '',
            user_id TEXT NOT NULL DEFAULT '',
            total REAL NOT NULL DEFAULT 0,
            created_at DATETIME DEFAULT CURRENT_TIMESTAMP
        );`,
		`CREATE TABLE IF NOT EXISTS sale_items (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            sale_id INTEGER NOT NULL,
            medicine_id INTEGER NOT NULL,
            quantity INTEGER NOT NULL,
            unit_price REAL NOT NULL,
            FOREIGN KEY(sale_id) REFERENCES sales(id),
            FOREIGN KEY(medicine_id) REFERENCES medicines(id)
        );`,
		`CREATE TABLE IF NOT EXISTS payments (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            customer TEXT NOT NULL,
            amount REAL NOT NULL,
            method TEXT NOT NULL DEFAULT 'cash',
            user_id TEXT NOT NULL DEFAULT '',
            received_at DATETIME DEFAULT CURRENT_TIMESTAMP
        );`,
	}
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}

// Store bundles database access for the REST layer.
type Store struct {
	db  *sqlx.DB
	log *slog.Logger
}

func New(db *sqlx.DB, log *slog.Logger) *Store {
	return &Store{db: db, log: log}
}

func (s *Store) CreateMedicine(ctx context.Context, m domain.Medicine) (domain.Medicine, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO medicines (name, generic_name, category, unit_price, stock, reorder_level, expiry_date)
         VALUES (?, ?, ?, ?, ?, ?, ?)`,
		m.Name, m.GenericName, m.Category, m.UnitPrice, m.Stock, m.ReorderLevel, m.ExpiryDate)
	if err != nil {
		return domain.Medicine{}, fmt.Errorf("create medicine: %w", err)
	}
	m.ID, _ = res.LastInsertId()
	return m, nil
}

func (s *Store) UpdateMedicine(ctx context.Context, m domain.Medicine) (domain.Medicine, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE medicines SET name = ?, generic_name = ?, category = ?, unit_price = ?,
                stock = ?, reorder_level = ?, expiry_date = ? WHERE id = ?`,
		m.Name, m.GenericName, m.Category, m.UnitPrice, m.Stock, m.ReorderLevel, m.ExpiryDate, m.ID)
	if err != nil {
		return domain.Medicine{}, fmt.Errorf("update medicine: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.Medicine{}, apperrors.ErrNotFound
	}
	return m, nil
}

func (s *Store) GetMedicine(ctx context.Context, id int64) (domain.Medicine, error) {
	var m domain.Medicine
	err := s.db.GetContext(ctx, &m, `SELECT * FROM medicines WHERE id = ?`, id)
	if err == sql.ErrNoRows {
		return domain.Medicine{}, apperrors.ErrNotFound
	}
	if err != nil {
		return domain.Medicine{}, fmt.Errorf("get medicine: %w", err)
	}
	return m, nil
}

func (s *Store) ListMedicines(ctx context.Context) ([]domain.Medicine, error) {
	var medicines []domain.Medicine
	if err := s.db.SelectContext(ctx, &medicines, `SELECT * FROM medicines ORDER BY name`); err != nil {
		return nil, fmt.Errorf("list medicines: %w", err)
	}
	return medicines, nil
}

// AdjustStock applies a delta to a medicine's stock and returns the row
// before and after the change, so the caller can detect a low-stock
// threshold crossing. Stock never goes below zero.
func (s *Store) AdjustStock(ctx context.Context, id int64, delta int) (before, after domain.Medicine, err error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return before, after, fmt.Errorf("adjust stock: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err = tx.GetContext(ctx, &before, `SELECT * FROM medicines WHERE id = ?`, id); err != nil {
		if err == sql.ErrNoRows {
			return before, after, apperrors.ErrNotFound
		}
		return before, after, fmt.Errorf("adjust stock: %w", err)
	}
	if before.Stock+delta < 0 {
		return before, after, apperrors.ErrInsufficientStock
	}

	after = before
	after.Stock += delta
	if _, err = tx.ExecContext(ctx, `UPDATE medicines SET stock = ? WHERE id = ?`, after.Stock, id); err != nil {
		return before, after, fmt.Errorf("adjust stock: %w", err)
	}
	return before, after, tx.Commit()
}

// CreateSale records a sale and decrements stock for every line inside
// one transaction. Returns the updated medicines so the caller can
// publish inventory notifications.
func (s *Store) CreateSale(ctx context.Context, sale domain.Sale) (domain.Sale, []domain.Medicine, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return sale, nil, fmt.Errorf("create sale: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	sale.CreatedAt = time.Now().UTC()
	total := 0.0
	var updated []domain.Medicine

	for i, item := range sale.Items {
		var m domain.Medicine
		if err = tx.GetContext(ctx, &m, `SELECT * FROM medicines WHERE id = ?`, item.MedicineID); err != nil {
			if err == sql.ErrNoRows {
				return sale, nil, apperrors.ErrNotFound
			}
			return sale, nil, fmt.Errorf("create sale: %w", err)
		}
		if m.Stock < item.Quantity {
			return sale, nil, apperrors.ErrInsufficientStock
		}
		m.Stock -= item.Quantity
		if _, err = tx.ExecContext(ctx, `UPDATE medicines SET stock = ? WHERE id = ?`, m.Stock, m.ID); err != nil {
			return sale, nil, fmt.Errorf("create sale: %w", err)
		}
		sale.Items[i].UnitPrice = m.UnitPrice
		total += m.UnitPrice * float64(item.Quantity)
		updated = append(updated, m)
	}
	sale.Total = total

	res, err := tx.ExecContext(ctx,
		`INSERT INTO sales (invoice_no, customer, user_id, total, created_at) VALUES (?, ?, ?, ?, ?)`,
		sale.InvoiceNo, sale.Customer, sale.UserID, sale.Total, sale.CreatedAt)
	if err != nil {
		return sale, nil, fmt.Errorf("create sale: %w", err)
	}
	sale.ID, _ = res.LastInsertId()

	for i, item := range sale.Items {
		res, err = tx.ExecContext(ctx,
			`INSERT INTO sale_items (sale_id, medicine_id, quantity, unit_price) VALUES (?, ?, ?, ?)`,
			sale.ID, item.MedicineID, item.Quantity, item.UnitPrice)
		if err != nil {
			return sale, nil, fmt.Errorf("create sale: %w", err)
		}
		sale.Items[i].ID, _ = res.LastInsertId()
		sale.Items[i].SaleID = sale.ID
	}

	return sale, updated, tx.Commit()
}

func (s *Store) CreatePayment(ctx context.Context, p domain.Payment) (domain.Payment, error) {
	p.ReceivedAt = time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO payments (customer, amount, method, user_id, received_at) VALUES (?, ?, ?, ?, ?)`,
		p.Customer, p.Amount, p.Method, p.UserID, p.ReceivedAt)
	if err != nil {
		return domain.Payment{}, fmt.Errorf("create payment: %w", err)
	}
	p.ID, _ = res.LastInsertId()
	return p, nil
}
