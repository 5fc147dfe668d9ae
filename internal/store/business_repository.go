package store

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/swipesavvy/claim-service/internal/domain"
)

const businessWithOwnerColumns = `
        b.id, b.google_place_id, b.name, b.address, b.phone, b.user_id, b.created_at, b.updated_at,
        u.id, u.email, u.name
`

const businessWithOwnerSelect = `SELECT ` + businessWithOwnerColumns + `
        FROM businesses b
        JOIN users u ON u.id = b.user_id
`

// BusinessRepository is the PostgreSQL implementation of business storage.
type BusinessRepository struct {
	db *pgxpool.Pool
}

// NewBusinessRepository creates a new BusinessRepository.
func NewBusinessRepository(db *pgxpool.Pool) *BusinessRepository {
	return &BusinessRepository{db: db}
}

// CreateBusiness inserts a business and returns it joined to its owner.
// The unique constraints on user_id and google_place_id surface as *ConstraintError.
func (r *BusinessRepository) CreateBusiness(ctx context.Context, business *domain.Business) (*domain.Business, error) {
	query := `
        WITH b AS (
            INSERT INTO businesses (id, google_place_id, name, address, phone, user_id)
            VALUES ($1, $2, $3, $4, $5, $6)
            RETURNING *
        )
        SELECT ` + businessWithOwnerColumns + `
        FROM b
        JOIN users u ON u.id = b.user_id
    `
	return scanBusinessWithOwner(r.db.QueryRow(ctx, query,
		business.ID,
		business.GooglePlaceID,
		business.Name,
		business.Address,
		business.Phone,
		business.UserID,
	))
}

// GetBusinessByID retrieves a business by its ID.
func (r *BusinessRepository) GetBusinessByID(ctx context.Context, id string) (*domain.Business, error) {
	return scanBusinessWithOwner(r.db.QueryRow(ctx, businessWithOwnerSelect+` WHERE b.id = $1`, id))
}

// GetBusinessByPlaceID retrieves a business by its external place reference.
func (r *BusinessRepository) GetBusinessByPlaceID(ctx context.Context, placeID string) (*domain.Business, error) {
	return scanBusinessWithOwner(r.db.QueryRow(ctx, businessWithOwnerSelect+` WHERE b.google_place_id = $1`, placeID))
}

// ListBusinesses returns all businesses, newest first.
func (r *BusinessRepository) ListBusinesses(ctx context.Context) ([]domain.Business, error) {
	rows, err := r.db.Query(ctx, businessWithOwnerSelect+` ORDER BY b.created_at DESC`)
	if err != nil {
		return nil, translateError(err)
	}
	defer rows.Close()

	businesses := []domain.Business{}
	for rows.Next() {
		business, err := scanBusinessWithOwner(rows)
		if err != nil {
			return nil, err
		}
		businesses = append(businesses, *business)
	}
	if err := rows.Err(); err != nil {
		return nil, translateError(err)
	}
	return businesses, nil
}

// UpdateBusiness applies the non-nil fields and returns the business joined to its owner.
func (r *BusinessRepository) UpdateBusiness(ctx context.Context, id string, req domain.UpdateBusinessRequest) (*domain.Business, error) {
	query := `
        WITH b AS (
            UPDATE businesses SET
                name = COALESCE($2, name),
                address = COALESCE($3, address),
                phone = COALESCE($4, phone),
                updated_at = NOW()
            WHERE id = $1
            RETURNING *
        )
        SELECT ` + businessWithOwnerColumns + `
        FROM b
        JOIN users u ON u.id = b.user_id
    `
	return scanBusinessWithOwner(r.db.QueryRow(ctx, query, id, req.Name, req.Address, req.Phone))
}

// DeleteBusiness removes a business.
func (r *BusinessRepository) DeleteBusiness(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM businesses WHERE id = $1`, id)
	if err != nil {
		return translateError(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanBusinessWithOwner(row pgx.Row) (*domain.Business, error) {
	var (
		business domain.Business
		owner    domain.UserSummary
	)
	err := row.Scan(
		&business.ID,
		&business.GooglePlaceID,
		&business.Name,
		&business.Address,
		&business.Phone,
		&business.UserID,
		&business.CreatedAt,
		&business.UpdatedAt,
		&owner.ID,
		&owner.Email,
		&owner.Name,
	)
	if err != nil {
		return nil, translateError(err)
	}
	business.User = &owner
	return &business, nil
}
