package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sudo-init-do/skillbridge/internal/domain"
)

// Connect opens a tuned pool and pings it before returning.
func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	cfg.MaxConns = 16
	cfg.MinConns = 1
	cfg.HealthCheckPeriod = 30 * time.Second
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

type Postgres struct {
	Conn *pgxpool.Pool
}

var _ Gateway = (*Postgres)(nil)

func NewPostgres(conn *pgxpool.Pool) *Postgres { return &Postgres{Conn: conn} }

func mapErr(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNoRows
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrDuplicate
	}
	return err
}

func (p *Postgres) GetUser(ctx context.Context, id string) (domain.User, error) {
	var u domain.User
	var role string
	err := p.Conn.QueryRow(ctx,
		`SELECT id, name, email, role, created_at FROM users WHERE id = $1`, id,
	).Scan(&u.ID, &u.Name, &u.Email, &role, &u.CreatedAt)
	if err != nil {
		return domain.User{}, mapErr(err)
	}
	u.Role = domain.Role(role)
	return u, nil
}

func (p *Postgres) GetService(ctx context.Context, id string) (domain.Service, error) {
	var s domain.Service
	err := p.Conn.QueryRow(ctx,
		`SELECT id, user_id, title, price_cents, created_at FROM services WHERE id = $1`, id,
	).Scan(&s.ID, &s.UserID, &s.Title, &s.PriceCents, &s.CreatedAt)
	if err != nil {
		return domain.Service{}, mapErr(err)
	}
	return s, nil
}

const orderColumns = `id, service_id, service_title, buyer_id, seller_id, total_cents, status,
	requirements, scope, budget_tier, delivery_note, deadline, created_at, updated_at, completed_at`

func scanOrder(row pgx.Row) (domain.Order, error) {
	var o domain.Order
	var status string
	err := row.Scan(&o.ID, &o.ServiceID, &o.ServiceTitle, &o.BuyerID, &o.SellerID, &o.TotalCents, &status,
		&o.Requirements, &o.Scope, &o.BudgetTier, &o.DeliveryNote, &o.Deadline, &o.CreatedAt, &o.UpdatedAt, &o.CompletedAt)
	if err != nil {
		return domain.Order{}, err
	}
	o.Status = domain.OrderStatus(status)
	return o, nil
}

func (p *Postgres) GetOrder(ctx context.Context, id string) (domain.Order, error) {
	o, err := scanOrder(p.Conn.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id))
	if err != nil {
		return domain.Order{}, mapErr(err)
	}
	return o, nil
}

func (p *Postgres) InsertOrder(ctx context.Context, o domain.Order) error {
	_, err := p.Conn.Exec(ctx,
		`INSERT INTO orders (`+orderColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		o.ID, o.ServiceID, o.ServiceTitle, o.BuyerID, o.SellerID, o.TotalCents, string(o.Status),
		o.Requirements, o.Scope, o.BudgetTier, o.DeliveryNote, o.Deadline, o.CreatedAt, o.UpdatedAt, o.CompletedAt,
	)
	return mapErr(err)
}

// SaveOrder locks the row, re-checks the status and writes the new state in
// one transaction.
func (p *Postgres) SaveOrder(ctx context.Context, o domain.Order, expected domain.OrderStatus) error {
	tx, err := p.Conn.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var current string
	err = tx.QueryRow(ctx, `SELECT status FROM orders WHERE id = $1 FOR UPDATE`, o.ID).Scan(&current)
	if err != nil {
		return mapErr(err)
	}
	if domain.OrderStatus(current) != expected {
		return ErrConflict
	}

	_, err = tx.Exec(ctx,
		`UPDATE orders
		    SET status = $2, delivery_note = $3, updated_at = $4, completed_at = $5
		  WHERE id = $1`,
		o.ID, string(o.Status), o.DeliveryNote, o.UpdatedAt, o.CompletedAt,
	)
	if err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (p *Postgres) ListOrdersForUser(ctx context.Context, userID string) ([]domain.Order, error) {
	rows, err := p.Conn.Query(ctx,
		`SELECT `+orderColumns+` FROM orders
		  WHERE buyer_id = $1 OR seller_id = $1
		  ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (p *Postgres) InsertMessage(ctx context.Context, m domain.Message) error {
	_, err := p.Conn.Exec(ctx,
		`INSERT INTO messages (id, order_id, sender_id, content, created_at) VALUES ($1, $2, $3, $4, $5)`,
		m.ID, m.OrderID, m.SenderID, m.Content, m.CreatedAt,
	)
	return mapErr(err)
}

func (p *Postgres) ListMessages(ctx context.Context, orderID string) ([]domain.Message, error) {
	rows, err := p.Conn.Query(ctx,
		`SELECT id, order_id, sender_id, content, created_at
		   FROM messages WHERE order_id = $1 ORDER BY created_at ASC, id ASC`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Message
	for rows.Next() {
		var m domain.Message
		if err := rows.Scan(&m.ID, &m.OrderID, &m.SenderID, &m.Content, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (p *Postgres) InsertNotification(ctx context.Context, n domain.Notification) error {
	_, err := p.Conn.Exec(ctx,
		`INSERT INTO notifications (id, user_id, title, body, link, is_read, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		n.ID, n.UserID, n.Title, n.Body, n.Link, n.IsRead, n.CreatedAt,
	)
	return mapErr(err)
}

func (p *Postgres) GetNotification(ctx context.Context, id string) (domain.Notification, error) {
	var n domain.Notification
	err := p.Conn.QueryRow(ctx,
		`SELECT id, user_id, title, body, link, is_read, created_at FROM notifications WHERE id = $1`, id,
	).Scan(&n.ID, &n.UserID, &n.Title, &n.Body, &n.Link, &n.IsRead, &n.CreatedAt)
	if err != nil {
		return domain.Notification{}, mapErr(err)
	}
	return n, nil
}

func (p *Postgres) UpdateNotification(ctx context.Context, n domain.Notification) error {
	tag, err := p.Conn.Exec(ctx,
		`UPDATE notifications SET is_read = $2 WHERE id = $1 AND user_id = $3`, n.ID, n.IsRead, n.UserID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNoRows
	}
	return nil
}

func (p *Postgres) DeleteNotification(ctx context.Context, id string) error {
	tag, err := p.Conn.Exec(ctx, `DELETE FROM notifications WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNoRows
	}
	return nil
}

func (p *Postgres) ListNotifications(ctx context.Context, userID string, limit int) ([]domain.Notification, error) {
	rows, err := p.Conn.Query(ctx,
		`SELECT id, user_id, title, body, link, is_read, created_at
		   FROM notifications WHERE user_id = $1
		  ORDER BY created_at DESC LIMIT $2`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Notification
	for rows.Next() {
		var n domain.Notification
		if err := rows.Scan(&n.ID, &n.UserID, &n.Title, &n.Body, &n.Link, &n.IsRead, &n.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func (p *Postgres) CountUnread(ctx context.Context, userID string) (int, error) {
	var count int
	err := p.Conn.QueryRow(ctx,
		`SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND is_read = FALSE`, userID,
	).Scan(&count)
	return count, err
}

func (p *Postgres) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	tag, err := p.Conn.Exec(ctx,
		`UPDATE notifications SET is_read = TRUE WHERE user_id = $1 AND is_read = FALSE`, userID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (p *Postgres) ClearNotifications(ctx context.Context, userID string) (int64, error) {
	tag, err := p.Conn.Exec(ctx, `DELETE FROM notifications WHERE user_id = $1`, userID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (p *Postgres) InsertReview(ctx context.Context, r domain.Review) error {
	_, err := p.Conn.Exec(ctx,
		`INSERT INTO reviews (id, order_id, buyer_id, seller_id, rating, comment, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		r.ID, r.OrderID, r.BuyerID, r.SellerID, r.Rating, r.Comment, r.CreatedAt,
	)
	return mapErr(err)
}
