package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/academyreg/handoff/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// findUserQuery reads from the academy application's user table.
const findUserQuery = `SELECT id, username, name, role FROM "User" WHERE id = $1`

// rowQuerier is the subset of pgxpool.Pool used here.
type rowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
}

type PostgresStorage struct {
	db rowQuerier
}

// NewPostgresStorage opens a connection pool for dsn and verifies it.
func NewPostgresStorage(ctx context.Context, dsn string) (*PostgresStorage, *pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	return &PostgresStorage{db: pool}, pool, nil
}

func (p *PostgresStorage) FindUserByID(ctx context.Context, id string) (*models.User, error) {
	var (
		user models.User
		role string
	)
	err := p.db.QueryRow(ctx, findUserQuery, id).Scan(&user.ID, &user.Username, &user.DisplayName, &role)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query user: %w", err)
	}
	user.Role = models.Role(role)

	return &user, nil
}

func (p *PostgresStorage) Ping(ctx context.Context) error {
	return p.db.Ping(ctx)
}
