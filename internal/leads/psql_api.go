package leads

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrLeadNotFound = errors.New("lead not found")

type PsqlApi struct {
	db *pgxpool.Pool
}

func NewPsqlApi(db *pgxpool.Pool) *PsqlApi {
	return &PsqlApi{
		db: db,
	}
}

func (api *PsqlApi) Add(ctx context.Context, lead *Lead) (*Lead, error) {
	if lead.Email == "" || lead.CreatedAt.IsZero() {
		return nil, errors.New("lead email or timestamp empty")
	}

	// landing page form can be submitted repeatedly, last write wins
	rows, err := api.db.Query(
		ctx,
		`INSERT INTO lead (name, email, phone, unsubscribed, created_at)
			VALUES ($1, $2, $3, false, $4)
			ON CONFLICT (email) DO UPDATE SET name = $1, phone = $3
			RETURNING id;`,
		lead.Name, lead.Email, lead.Phone, lead.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	if err := rows.Err(); err != nil {
		return nil, err
	}

	if !rows.Next() {
		return nil, errors.New("unexpected error [no rows next]")
	}

	var id int
	if err := rows.Scan(&id); err != nil {
		return nil, fmt.Errorf("rows scan: %w", err)
	}

	lead.Id = id
	return lead, nil
}

func (api *PsqlApi) GetByEmail(ctx context.Context, email string) (*Lead, error) {
	rows, err := api.db.Query(
		ctx,
		`SELECT id, name, email, phone, unsubscribed, created_at FROM lead WHERE email = $1;`,
		email,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	if err := rows.Err(); err != nil {
		return nil, err
	}

	if !rows.Next() {
		return nil, ErrLeadNotFound
	}

	var id int
	var name, leadEmail, phone string
	var unsubscribed bool
	var createdAt time.Time
	if err := rows.Scan(&id, &name, &leadEmail, &phone, &unsubscribed, &createdAt); err != nil {
		return nil, err
	}
	return &Lead{
		Id:           id,
		Name:         name,
		Email:        leadEmail,
		Phone:        phone,
		Unsubscribed: unsubscribed,
		CreatedAt:    createdAt,
	}, nil
}

// Unsubscribe marks the lead as unsubscribed. Marking an already
// unsubscribed or unknown email is not an error - the one-click mail
// link may be used any number of times.
func (api *PsqlApi) Unsubscribe(ctx context.Context, email string) error {
	_, err := api.db.Exec(
		ctx,
		`UPDATE lead SET unsubscribed = true WHERE email = $1;`,
		email,
	)
	return err
}

func (api *PsqlApi) List(ctx context.Context) ([]Lead, error) {
	rows, err := api.db.Query(
		ctx,
		`SELECT id, name, email, phone, unsubscribed, created_at FROM lead ORDER BY created_at DESC;`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var all []Lead
	for rows.Next() {
		var lead Lead
		if err := rows.Scan(
			&lead.Id, &lead.Name, &lead.Email, &lead.Phone, &lead.Unsubscribed, &lead.CreatedAt,
		); err != nil {
			return nil, err
		}
		all = append(all, lead)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return all, nil
}
