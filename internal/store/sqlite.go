package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite" // pure-Go SQLite driver
)

// SQLiteDB implements the DB interface using SQLite
type SQLiteDB struct {
	db *sql.DB
}

// NewSQLiteDB opens or creates the database at path. Use ":memory:" for a
// throwaway database.
func NewSQLiteDB(path string) (*SQLiteDB, error) {
	dsn := path
	if path != ":memory:" {
		dsn = fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1) // SQLite is not concurrent for writes

	return &SQLiteDB{db: db}, nil
}

// Close closes the database connection
func (s *SQLiteDB) Close() error {
	return s.db.Close()
}

// Ping checks the connection.
func (s *SQLiteDB) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Migrate applies pending migrations.
func (s *SQLiteDB) Migrate(ctx context.Context) error {
	return migrate(ctx, s.db, goose.DialectSQLite3, "migrations/sqlite")
}

func migrate(ctx context.Context, db *sql.DB, dialect goose.Dialect, dir string) error {
	fsys, err := fs.Sub(migrations, dir)
	if err != nil {
		return fmt.Errorf("migration files: %w", err)
	}
	provider, err := goose.NewProvider(dialect, db, fsys)
	if err != nil {
		return fmt.Errorf("migration provider: %w", err)
	}
	if _, err := provider.Up(ctx); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	return nil
}

// SaveContact inserts a contact, assigning an id and timestamp if unset.
func (s *SQLiteDB) SaveContact(ctx context.Context, c *Contact) error {
	prepareContact(c)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO contacts (id, name, email, phone, company, message, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.Name, c.Email, c.Phone, c.Company, c.Message, c.CreatedAt)
	if err != nil {
		return wrapSQLiteErr("save contact", err)
	}
	return nil
}

// ListContacts returns contacts newest first.
func (s *SQLiteDB) ListContacts(ctx context.Context, limit, offset int) ([]Contact, error) {
	limit, offset = clampPage(limit, offset)
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, email, phone, company, message, created_at
		FROM contacts
		ORDER BY created_at DESC
		LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list contacts: %w", err)
	}
	defer rows.Close()

	var out []Contact
	for rows.Next() {
		var c Contact
		if err := rows.Scan(&c.ID, &c.Name, &c.Email, &c.Phone, &c.Company, &c.Message, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan contact: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// SaveSpin inserts a spin record.
func (s *SQLiteDB) SaveSpin(ctx context.Context, r *SpinRecord) error {
	prepareSpin(r)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO spins (id, wheel_id, customer_id, winning_index, segment_id, final_rotation, server_seed, client_seed, nonce, claim_status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.WheelID, r.CustomerID, r.WinningIndex, r.SegmentID, r.FinalRotation, r.ServerSeed, r.ClientSeed, r.Nonce, r.ClaimStatus, r.CreatedAt)
	if err != nil {
		return wrapSQLiteErr("save spin", err)
	}
	return nil
}

// GetSpin loads a spin by id.
func (s *SQLiteDB) GetSpin(ctx context.Context, id string) (*SpinRecord, error) {
	var (
		r         SpinRecord
		claimedAt sql.NullTime
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, wheel_id, customer_id, winning_index, segment_id, final_rotation, server_seed, client_seed, nonce, claim_status, claimed_at, created_at
		FROM spins WHERE id = ?`, id).
		Scan(&r.ID, &r.WheelID, &r.CustomerID, &r.WinningIndex, &r.SegmentID, &r.FinalRotation, &r.ServerSeed, &r.ClientSeed, &r.Nonce, &r.ClaimStatus, &claimedAt, &r.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get spin: %w", err)
	}
	if claimedAt.Valid {
		t := claimedAt.Time
		r.ClaimedAt = &t
	}
	return &r, nil
}

// UpdateSpinClaim records the claim outcome of a spin.
func (s *SQLiteDB) UpdateSpinClaim(ctx context.Context, id, status string, at time.Time) error {
	res, err := s.db.ExecContext(ctx, `UPDATE spins SET claim_status = ?, claimed_at = ? WHERE id = ?`, status, at.UTC(), id)
	if err != nil {
		return fmt.Errorf("update spin claim: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// SaveReveal inserts a reveal. A second reveal for the same card and
// customer fails with ErrConflict.
func (s *SQLiteDB) SaveReveal(ctx context.Context, r *RevealRecord) error {
	prepareReveal(r)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO reveals (id, card_id, customer_id, coupon_id, cleared_fraction, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		r.ID, r.CardID, r.CustomerID, r.CouponID, r.ClearedFraction, r.CreatedAt)
	if err != nil {
		return wrapSQLiteErr("save reveal", err)
	}
	return nil
}

// GetReveal loads the reveal of a card by a customer.
func (s *SQLiteDB) GetReveal(ctx context.Context, cardID, customerID string) (*RevealRecord, error) {
	var r RevealRecord
	err := s.db.QueryRowContext(ctx, `
		SELECT id, card_id, customer_id, coupon_id, cleared_fraction, created_at
		FROM reveals WHERE card_id = ? AND customer_id = ?`, cardID, customerID).
		Scan(&r.ID, &r.CardID, &r.CustomerID, &r.CouponID, &r.ClearedFraction, &r.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get reveal: %w", err)
	}
	return &r, nil
}

func prepareContact(c *Contact) {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}
	c.CreatedAt = c.CreatedAt.UTC()
}

func prepareSpin(r *SpinRecord) {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}
	r.CreatedAt = r.CreatedAt.UTC()
}

func prepareReveal(r *RevealRecord) {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}
	r.CreatedAt = r.CreatedAt.UTC()
}

// wrapSQLiteErr maps constraint violations to ErrConflict. modernc reports
// them only through the message text.
func wrapSQLiteErr(op string, err error) error {
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "constraint failed") || strings.Contains(msg, "unique constraint") {
		return fmt.Errorf("%s: %w", op, ErrConflict)
	}
	return fmt.Errorf("%s: %w", op, err)
}
