package repository

import (
	"database/sql"
	"time"

	"github.com/qrneighbor/sms-dispatch/internal/model"
)

type SubscriberRepositoryInterface interface {
	Create(s *model.Subscriber) error
	GetByBusinessAndPhone(businessKey, phone string) (*model.Subscriber, error)
	ListActivePhones(businessKey string) ([]string, error)
	MarkUnsubscribed(businessKey, phone string) (int, error)
	MarkWelcomeSent(id int, at time.Time) error
}

type SubscriberRepository struct {
	DB *sql.DB
}

// Create inserts a subscriber; re-capturing an existing (business, phone)
// pair reactivates the row instead of failing on the unique constraint.
func (r *SubscriberRepository) Create(s *model.Subscriber) error {
	query := `
        INSERT INTO subscribers (business_key, phone, name, status)
        VALUES ($1, $2, $3, 'active')
        ON CONFLICT (business_key, phone)
        DO UPDATE SET status='active', name=EXCLUDED.name, updated_at=NOW()
        RETURNING id, status, welcome_sent_at, created_at, updated_at
    `
	return r.DB.QueryRow(query, s.BusinessKey, s.Phone, s.Name).Scan(
		&s.ID, &s.Status, &s.WelcomeSentAt, &s.CreatedAt, &s.UpdatedAt,
	)
}

func (r *SubscriberRepository) GetByBusinessAndPhone(businessKey, phone string) (*model.Subscriber, error) {
	query := `
        SELECT id, business_key, phone, name, status, welcome_sent_at, created_at, updated_at
        FROM subscribers
        WHERE business_key=$1 AND phone=$2
    `
	var s model.Subscriber
	err := r.DB.QueryRow(query, businessKey, phone).Scan(
		&s.ID, &s.BusinessKey, &s.Phone, &s.Name, &s.Status,
		&s.WelcomeSentAt, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &s, nil
}

// ListActivePhones returns every opted-in phone for a business. Order is
// unspecified. An empty slice is a valid result, not an error.
func (r *SubscriberRepository) ListActivePhones(businessKey string) ([]string, error) {
	query := `
        SELECT phone FROM subscribers
        WHERE business_key=$1 AND status != 'unsubscribed'
    `
	rows, err := r.DB.Query(query, businessKey)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	phones := []string{}
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		phones = append(phones, p)
	}
	return phones, rows.Err()
}

// MarkUnsubscribed flips every matching row and reports how many changed.
func (r *SubscriberRepository) MarkUnsubscribed(businessKey, phone string) (int, error) {
	query := `
        UPDATE subscribers SET status='unsubscribed', updated_at=NOW()
        WHERE business_key=$1 AND phone=$2
    `
	res, err := r.DB.Exec(query, businessKey, phone)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func (r *SubscriberRepository) MarkWelcomeSent(id int, at time.Time) error {
	query := `UPDATE subscribers SET welcome_sent_at=$1, updated_at=NOW() WHERE id=$2`
	_, err := r.DB.Exec(query, at, id)
	return err
}

var _ SubscriberRepositoryInterface = (*SubscriberRepository)(nil)
