package sessions

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/dbx"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
)

const recordColumns = `id, user_id, username, email, login_method, ip_address, is_active, created_at, logged_out_at`

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, rec *models.LoginRecord) (*models.LoginRecord, error) {
	query :=
		`INSERT INTO login_records (user_id, username, email, login_method, ip_address, is_active)
		 VALUES ($1, $2, $3, $4, $5, TRUE)
		 RETURNING id, created_at
		 `

	err := r.db.QueryRowContext(ctx, query,
		rec.UserID, rec.Username, rec.Email, rec.LoginMethod, rec.IPAddress,
	).Scan(&rec.ID, &rec.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	rec.IsActive = true
	rec.LoggedOutAt = nil
	return rec, nil
}

func (r *PostgresRepository) FindLatestActive(ctx context.Context, userID int64) (*models.LoginRecord, error) {
	query :=
		`SELECT ` + recordColumns + `
		 FROM login_records
		 WHERE user_id = $1 AND is_active
		 ORDER BY created_at DESC, id DESC
		 LIMIT 1
		 `

	return r.getOne(r.db.QueryRowContext(ctx, query, userID))
}

func (r *PostgresRepository) CloseAllActive(ctx context.Context, userID int64) (int64, error) {
	query :=
		`UPDATE login_records
		 SET is_active = FALSE, logged_out_at = NOW()
		 WHERE user_id = $1 AND is_active
		 `

	res, err := r.db.ExecContext(ctx, query, userID)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}

func (r *PostgresRepository) FindByID(ctx context.Context, id int64) (*models.LoginRecord, error) {
	query :=
		`SELECT ` + recordColumns + `
		 FROM login_records
		 WHERE id = $1
		 `

	return r.getOne(r.db.QueryRowContext(ctx, query, id))
}

func (r *PostgresRepository) SetStatus(ctx context.Context, id int64, active bool, ip *string) (*models.LoginRecord, error) {
	query :=
		`UPDATE login_records
		 SET is_active = $2,
		     logged_out_at = CASE WHEN $2 THEN NULL ELSE COALESCE(logged_out_at, NOW()) END,
		     ip_address = COALESCE($3, ip_address)
		 WHERE id = $1
		 RETURNING ` + recordColumns + `
		 `

	return r.getOne(r.db.QueryRowContext(ctx, query, id, active, ip))
}

func (r *PostgresRepository) CountActive(ctx context.Context, userID int64) (int, error) {
	query :=
		`SELECT COUNT(*) FROM login_records
		 WHERE user_id = $1 AND is_active
		 `

	var n int
	if err := r.db.QueryRowContext(ctx, query, userID).Scan(&n); err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}

func (r *PostgresRepository) ListByUser(ctx context.Context, userID int64, limit int) ([]*models.LoginRecord, error) {
	query :=
		`SELECT ` + recordColumns + `
		 FROM login_records
		 WHERE user_id = $1
		 ORDER BY created_at DESC, id DESC
		 LIMIT $2
		 `

	rows, err := r.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	result := make([]*models.LoginRecord, 0)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		result = append(result, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return result, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func (r *PostgresRepository) getOne(row *sql.Row) (*models.LoginRecord, error) {
	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return rec, nil
}

func scanRecord(s scanner) (*models.LoginRecord, error) {
	rec := &models.LoginRecord{}
	var ip sql.NullString
	var loggedOut sql.NullTime

	if err := s.Scan(&rec.ID, &rec.UserID, &rec.Username, &rec.Email, &rec.LoginMethod,
		&ip, &rec.IsActive, &rec.CreatedAt, &loggedOut); err != nil {
		return nil, err
	}

	if ip.Valid {
		rec.IPAddress = &ip.String
	}
	if loggedOut.Valid {
		rec.LoggedOutAt = &loggedOut.Time
	}
	return rec, nil
}
