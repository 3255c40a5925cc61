// Package repository содержит реализацию доступа к данным в PostgreSQL.
package repository

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/sethvargo/go-retry"

	"github.com/unieats/unieats-system/internal/model"
	"github.com/unieats/unieats-system/internal/revenue"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrUserExists возвращается при попытке создать пользователя с уже существующим логином.
var (
	ErrUserExists = errors.New("user already exists")
	// ErrUserNotFound возвращается, если пользователь не найден.
	ErrUserNotFound = errors.New("user not found")
	// ErrOrderNotFound возвращается, если заказ не найден.
	ErrOrderNotFound = errors.New("order not found")
	// ErrCafeteriaNotFound возвращается, если столовая не найдена или неактивна.
	ErrCafeteriaNotFound = errors.New("cafeteria not found")
)

// PostgresRepository предоставляет доступ к хранилищу данных в PostgreSQL.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository создаёт новый репозиторий и инициализирует схему БД через миграции.
func NewPostgresRepository(dsn string) (*PostgresRepository, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse pool config: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	r := &PostgresRepository{pool: pool}

	if err := r.runMigrations(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return r, nil
}

func (r *PostgresRepository) runMigrations(ctx context.Context) error {
	db := stdlib.OpenDBFromPool(r.pool)
	defer db.Close()

	goose.SetBaseFS(migrationsFS)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}

	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	return nil
}

// withRetry повторяет операцию при сериализационных и сетевых сбоях.
func (r *PostgresRepository) withRetry(ctx context.Context, fn func(ctx context.Context) error) error {
	backoff := retry.WithMaxRetries(3, retry.NewFibonacci(1*time.Second))

	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := fn(ctx)
		if err == nil {
			return nil
		}

		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}

		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			if pgErr.Code == pgerrcode.SerializationFailure || pgErr.Code == pgerrcode.DeadlockDetected {
				return retry.RetryableError(err)
			}
			return err
		}

		if isConnectionError(err) {
			return retry.RetryableError(err)
		}

		return err
	})
}

func isConnectionError(err error) bool {
	// Упрощенная проверка на ошибки соединения
	return strings.Contains(err.Error(), "connection refused") ||
		strings.Contains(err.Error(), "broken pipe") ||
		strings.Contains(err.Error(), "connection reset by peer")
}

// Close закрывает пул соединений с БД.
func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}

// CreateUser создаёт нового пользователя.
func (r *PostgresRepository) CreateUser(ctx context.Context, login string, passwordHash []byte) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx,
		`INSERT INTO users (login, password_hash) VALUES ($1, $2) RETURNING id`,
		login, passwordHash,
	).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return 0, fmt.Errorf("%w: %s", ErrUserExists, login)
		}
		return 0, fmt.Errorf("create user: %w", err)
	}
	return id, nil
}

// GetUserByLogin возвращает пользователя по логину.
func (r *PostgresRepository) GetUserByLogin(ctx context.Context, login string) (*model.User, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, login, password_hash, created_at FROM users WHERE login = $1`,
		login,
	)

	var u model.User
	err := row.Scan(&u.ID, &u.Login, &u.PasswordHash, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}

	return &u, nil
}

// CreateCafeteria создаёт новую столовую.
func (r *PostgresRepository) CreateCafeteria(ctx context.Context, name, location string) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx,
		`INSERT INTO cafeterias (name, location) VALUES ($1, $2) RETURNING id`,
		name, location,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("create cafeteria: %w", err)
	}
	return id, nil
}

// GetCafeterias возвращает список столовых.
func (r *PostgresRepository) GetCafeterias(ctx context.Context) ([]model.Cafeteria, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, name, location, is_active, created_at
		 FROM cafeterias
		 ORDER BY name`,
	)
	if err != nil {
		return nil, fmt.Errorf("select cafeterias: %w", err)
	}
	defer rows.Close()

	var res []model.Cafeteria
	for rows.Next() {
		var c model.Cafeteria
		if err := rows.Scan(&c.ID, &c.Name, &c.Location, &c.IsActive, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan cafeteria: %w", err)
		}
		res = append(res, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// CreateOrder сохраняет заказ вместе с позициями в одной транзакции
// и возвращает идентификатор заказа.
func (r *PostgresRepository) CreateOrder(ctx context.Context, o *model.Order) (int64, error) {
	var id int64

	err := r.withRetry(ctx, func(ctx context.Context) error {
		tx, err := r.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback(ctx)

		var active bool
		err = tx.QueryRow(ctx,
			`SELECT is_active FROM cafeterias WHERE id = $1`,
			o.CafeteriaID,
		).Scan(&active)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrCafeteriaNotFound
			}
			return fmt.Errorf("select cafeteria: %w", err)
		}
		if !active {
			return ErrCafeteriaNotFound
		}

		err = tx.QueryRow(ctx,
			`INSERT INTO orders
			   (user_id, cafeteria_id, status, subtotal, user_service_fee,
			    cafeteria_commission, admin_revenue, total_amount, service_fee_percentage)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			 RETURNING id`,
			o.UserID, o.CafeteriaID, string(o.Status), o.Subtotal, o.UserServiceFee,
			o.CafeteriaCommission, o.AdminRevenue, o.TotalAmount, o.ServiceFeePercentage,
		).Scan(&id)
		if err != nil {
			return fmt.Errorf("insert order: %w", err)
		}

		for _, it := range o.Items {
			_, err = tx.Exec(ctx,
				`INSERT INTO order_items (order_id, name, price, quantity) VALUES ($1, $2, $3, $4)`,
				id, it.Name, it.Price, it.Quantity,
			)
			if err != nil {
				return fmt.Errorf("insert order item: %w", err)
			}
		}

		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit tx: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	return id, nil
}

// GetOrders возвращает все заказы без позиций, новые первыми.
func (r *PostgresRepository) GetOrders(ctx context.Context) ([]model.Order, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, user_id, cafeteria_id, status, subtotal, user_service_fee,
		        cafeteria_commission, admin_revenue, total_amount,
		        service_fee_percentage, created_at
		 FROM orders
		 ORDER BY created_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("select orders: %w", err)
	}
	defer rows.Close()

	return scanOrders(rows)
}

// UpdateOrderStatus изменяет статус заказа, не затрагивая финансовые поля.
func (r *PostgresRepository) UpdateOrderStatus(ctx context.Context, orderID int64, status model.OrderStatus) error {
	cmdTag, err := r.pool.Exec(ctx,
		`UPDATE orders SET status = $2 WHERE id = $1`,
		orderID, string(status),
	)
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrOrderNotFound
	}
	return nil
}

// GetOrdersForAudit возвращает заказы с уже вычисленными финансовыми полями.
// Заказы с пустым admin_revenue ещё не рассчитаны и в аудит не попадают.
func (r *PostgresRepository) GetOrdersForAudit(ctx context.Context) ([]model.Order, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, user_id, cafeteria_id, status, subtotal, user_service_fee,
		        cafeteria_commission, admin_revenue, total_amount,
		        service_fee_percentage, created_at
		 FROM orders
		 WHERE admin_revenue IS NOT NULL
		 ORDER BY id`,
	)
	if err != nil {
		return nil, fmt.Errorf("select orders for audit: %w", err)
	}
	defer rows.Close()

	return scanOrders(rows)
}

// GetOrdersWithItems возвращает все заказы вместе с их позициями.
func (r *PostgresRepository) GetOrdersWithItems(ctx context.Context) ([]model.Order, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, user_id, cafeteria_id, status, subtotal, user_service_fee,
		        cafeteria_commission, admin_revenue, total_amount,
		        service_fee_percentage, created_at
		 FROM orders
		 ORDER BY id`,
	)
	if err != nil {
		return nil, fmt.Errorf("select orders: %w", err)
	}
	defer rows.Close()

	orders, err := scanOrders(rows)
	if err != nil {
		return nil, err
	}

	itemRows, err := r.pool.Query(ctx,
		`SELECT order_id, id, name, price, quantity FROM order_items ORDER BY order_id, id`,
	)
	if err != nil {
		return nil, fmt.Errorf("select order items: %w", err)
	}
	defer itemRows.Close()

	itemsByOrder := make(map[int64][]model.OrderItem)
	for itemRows.Next() {
		var orderID int64
		var it model.OrderItem
		if err := itemRows.Scan(&orderID, &it.ID, &it.Name, &it.Price, &it.Quantity); err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		itemsByOrder[orderID] = append(itemsByOrder[orderID], it)
	}

	if err := itemRows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	for i := range orders {
		orders[i].Items = itemsByOrder[orders[i].ID]
	}

	return orders, nil
}

// UpdateOrderFinancials перезаписывает subtotal и производные финансовые
// поля заказа. Статус, временные метки и позиции не затрагиваются.
func (r *PostgresRepository) UpdateOrderFinancials(ctx context.Context, orderID int64, subtotal float64, b revenue.Breakdown) error {
	return r.withRetry(ctx, func(ctx context.Context) error {
		cmdTag, err := r.pool.Exec(ctx,
			`UPDATE orders
			 SET subtotal = $2,
			     user_service_fee = $3,
			     cafeteria_commission = $4,
			     admin_revenue = $5,
			     total_amount = $6,
			     service_fee_percentage = $7
			 WHERE id = $1`,
			orderID, subtotal, b.UserServiceFee, b.CafeteriaCommission,
			b.AdminRevenue, b.TotalAmount, float64(revenue.ServiceFeePercentage),
		)
		if err != nil {
			return fmt.Errorf("update order financials: %w", err)
		}
		if cmdTag.RowsAffected() == 0 {
			return ErrOrderNotFound
		}
		return nil
	})
}

// GetOrdersForRevenue возвращает неотменённые заказы с вычисленными
// финансовыми полями — сырьё для независимого пересчёта агрегатов.
func (r *PostgresRepository) GetOrdersForRevenue(ctx context.Context) ([]model.Order, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, user_id, cafeteria_id, status, subtotal, user_service_fee,
		        cafeteria_commission, admin_revenue, total_amount,
		        service_fee_percentage, created_at
		 FROM orders
		 WHERE admin_revenue IS NOT NULL AND status <> $1
		 ORDER BY id`,
		string(model.OrderStatusCancelled),
	)
	if err != nil {
		return nil, fmt.Errorf("select orders for revenue: %w", err)
	}
	defer rows.Close()

	return scanOrders(rows)
}

// GetRevenueSummary возвращает агрегаты выручки одним SQL-запросом.
// Это отдельный путь агрегации: сверка сравнивает его результат
// с пересчётом по сырым заказам.
func (r *PostgresRepository) GetRevenueSummary(ctx context.Context) (*model.RevenueSummary, error) {
	var s model.RevenueSummary
	err := r.pool.QueryRow(ctx,
		`SELECT COALESCE(SUM(admin_revenue), 0),
		        COALESCE(SUM(user_service_fee), 0),
		        COALESCE(SUM(cafeteria_commission), 0),
		        COUNT(*)
		 FROM orders
		 WHERE admin_revenue IS NOT NULL AND status <> $1`,
		string(model.OrderStatusCancelled),
	).Scan(&s.TotalRevenue, &s.UserServiceFees, &s.CafeteriaCommissions, &s.OrdersCount)
	if err != nil {
		return nil, fmt.Errorf("sum revenue: %w", err)
	}

	return &s, nil
}

func scanOrders(rows pgx.Rows) ([]model.Order, error) {
	var orders []model.Order
	for rows.Next() {
		var (
			o            model.Order
			status       string
			adminRevenue *float64
		)
		if err := rows.Scan(&o.ID, &o.UserID, &o.CafeteriaID, &status, &o.Subtotal,
			&o.UserServiceFee, &o.CafeteriaCommission, &adminRevenue,
			&o.TotalAmount, &o.ServiceFeePercentage, &o.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}

		o.Status = model.OrderStatus(status)
		if adminRevenue != nil {
			o.AdminRevenue = *adminRevenue
		}

		orders = append(orders, o)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return orders, nil
}
