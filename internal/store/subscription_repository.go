/**
 * @description
 * This file implements the data access layer for subscriptions. A user may hold
 * many subscription rows; the active one is the newest row whose status is
 * active or trialing.
 */
package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/swipesavvy/claim-service/internal/domain"
)

const subscriptionColumns = `
        id, user_id, external_subscription_id, external_customer_id, external_price_id, status,
        current_period_start, current_period_end, cancel_at_period_end, amount, currency, plan,
        created_at, updated_at
`

// SubscriptionRepository is the PostgreSQL implementation of subscription storage.
type SubscriptionRepository struct {
	db *pgxpool.Pool
}

// NewSubscriptionRepository creates a new SubscriptionRepository.
func NewSubscriptionRepository(db *pgxpool.Pool) *SubscriptionRepository {
	return &SubscriptionRepository{db: db}
}

const insertSubscription = `
        INSERT INTO subscriptions (
            id, user_id, external_subscription_id, external_customer_id, external_price_id, status,
            current_period_start, current_period_end, cancel_at_period_end, amount, currency, plan
        )
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
`

// CreateSubscription inserts a subscription row.
func (r *SubscriptionRepository) CreateSubscription(ctx context.Context, sub *domain.Subscription) (*domain.Subscription, error) {
	return scanSubscription(r.db.QueryRow(ctx, insertSubscription+` RETURNING `+subscriptionColumns, subscriptionArgs(sub)...))
}

// CreateSubscriptionIfAbsent inserts a subscription unless one with the same external id exists.
// It reports whether a row was inserted.
func (r *SubscriptionRepository) CreateSubscriptionIfAbsent(ctx context.Context, sub *domain.Subscription) (*domain.Subscription, bool, error) {
	query := insertSubscription + `
        ON CONFLICT (external_subscription_id) DO NOTHING
        RETURNING ` + subscriptionColumns
	created, err := scanSubscription(r.db.QueryRow(ctx, query, subscriptionArgs(sub)...))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return created, true, nil
}

// GetSubscriptionByID retrieves a subscription by its ID.
func (r *SubscriptionRepository) GetSubscriptionByID(ctx context.Context, id string) (*domain.Subscription, error) {
	return scanSubscription(r.db.QueryRow(ctx, `SELECT `+subscriptionColumns+` FROM subscriptions WHERE id = $1`, id))
}

// ListSubscriptionsByUser returns a user's subscriptions, newest first.
func (r *SubscriptionRepository) ListSubscriptionsByUser(ctx context.Context, userID string) ([]domain.Subscription, error) {
	rows, err := r.db.Query(ctx, `SELECT `+subscriptionColumns+`
        FROM subscriptions
        WHERE user_id = $1
        ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, translateError(err)
	}
	return collectSubscriptions(rows)
}

// GetActiveSubscription returns the newest active or trialing subscription of a user.
func (r *SubscriptionRepository) GetActiveSubscription(ctx context.Context, userID string) (*domain.Subscription, error) {
	return scanSubscription(r.db.QueryRow(ctx, `SELECT `+subscriptionColumns+`
        FROM subscriptions
        WHERE user_id = $1 AND status IN ('active', 'trialing')
        ORDER BY created_at DESC
        LIMIT 1`, userID))
}

// MarkCancelAtPeriodEnd flags the subscription to end with its current period.
// A non-nil status also overwrites the stored status.
func (r *SubscriptionRepository) MarkCancelAtPeriodEnd(ctx context.Context, id string, status *string) (*domain.Subscription, error) {
	return scanSubscription(r.db.QueryRow(ctx, `
        UPDATE subscriptions SET
            cancel_at_period_end = TRUE,
            status = COALESCE($2, status),
            updated_at = NOW()
        WHERE id = $1
        RETURNING `+subscriptionColumns, id, status))
}

// MirrorSubscription copies provider-reported state onto the row with the given external id.
// It also returns the status the row had before the update.
func (r *SubscriptionRepository) MirrorSubscription(ctx context.Context, externalID string, mirror domain.SubscriptionMirror) (*domain.Subscription, string, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, "", err
	}
	defer tx.Rollback(ctx)

	var previous string
	err = tx.QueryRow(ctx, `
        SELECT status FROM subscriptions
        WHERE external_subscription_id = $1
        FOR UPDATE`, externalID).Scan(&previous)
	if err != nil {
		return nil, "", translateError(err)
	}

	updated, err := scanSubscription(tx.QueryRow(ctx, `
        UPDATE subscriptions SET
            status = $2,
            cancel_at_period_end = $3,
            current_period_start = COALESCE($4, current_period_start),
            current_period_end = COALESCE($5, current_period_end),
            updated_at = NOW()
        WHERE external_subscription_id = $1
        RETURNING `+subscriptionColumns,
		externalID,
		mirror.Status,
		mirror.CancelAtPeriodEnd,
		mirror.CurrentPeriodStart,
		mirror.CurrentPeriodEnd,
	))
	if err != nil {
		return nil, "", err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, "", err
	}
	return updated, previous, nil
}

// CancelLapsedSubscriptions marks subscriptions flagged cancel-at-period-end whose
// period ended before asOf as canceled, and returns the rows it changed.
func (r *SubscriptionRepository) CancelLapsedSubscriptions(ctx context.Context, asOf time.Time) ([]domain.Subscription, error) {
	rows, err := r.db.Query(ctx, `
        UPDATE subscriptions SET status = 'canceled', updated_at = NOW()
        WHERE cancel_at_period_end
          AND current_period_end <= $1
          AND status IN ('active', 'trialing')
        RETURNING `+subscriptionColumns, asOf)
	if err != nil {
		return nil, translateError(err)
	}
	return collectSubscriptions(rows)
}

func collectSubscriptions(rows pgx.Rows) ([]domain.Subscription, error) {
	defer rows.Close()

	subs := []domain.Subscription{}
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, err
		}
		subs = append(subs, *sub)
	}
	if err := rows.Err(); err != nil {
		return nil, translateError(err)
	}
	return subs, nil
}

func subscriptionArgs(sub *domain.Subscription) []any {
	return []any{
		sub.ID,
		sub.UserID,
		sub.ExternalSubscriptionID,
		sub.ExternalCustomerID,
		sub.ExternalPriceID,
		sub.Status,
		sub.CurrentPeriodStart,
		sub.CurrentPeriodEnd,
		sub.CancelAtPeriodEnd,
		sub.Amount,
		sub.Currency,
		sub.Plan,
	}
}

func scanSubscription(row pgx.Row) (*domain.Subscription, error) {
	var sub domain.Subscription
	err := row.Scan(
		&sub.ID,
		&sub.UserID,
		&sub.ExternalSubscriptionID,
		&sub.ExternalCustomerID,
		&sub.ExternalPriceID,
		&sub.Status,
		&sub.CurrentPeriodStart,
		&sub.CurrentPeriodEnd,
		&sub.CancelAtPeriodEnd,
		&sub.Amount,
		&sub.Currency,
		&sub.Plan,
		&sub.CreatedAt,
		&sub.UpdatedAt,
	)
	if err != nil {
		return nil, translateError(err)
	}
	return &sub, nil
}
