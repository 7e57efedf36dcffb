package repository

import (
	"database/sql"

	appErrors "github.com/qrneighbor/sms-dispatch/internal/errors"
	"github.com/qrneighbor/sms-dispatch/internal/model"
)

// BusinessRepositoryInterface defines the read-only business directory.
// Businesses are created on the landing-page side; this service only looks
// them up by key (campaigns, welcome) or by sender number (inbound routing).
type BusinessRepositoryInterface interface {
	GetByKey(key string) (*model.Business, error)
	GetBySenderNumber(number string) (*model.Business, error)
	Create(b *model.Business) error
}

type BusinessRepository struct {
	DB *sql.DB
}

func (r *BusinessRepository) GetByKey(key string) (*model.Business, error) {
	query := `
        SELECT id, key, sender_number, welcome_message, created_at
        FROM businesses WHERE key=$1
    `
	var b model.Business
	err := r.DB.QueryRow(query, key).Scan(&b.ID, &b.Key, &b.SenderNumber, &b.WelcomeMessage, &b.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.NewBusinessNotFound(key)
		}
		return nil, err
	}
	return &b, nil
}

func (r *BusinessRepository) GetBySenderNumber(number string) (*model.Business, error) {
	query := `
        SELECT id, key, sender_number, welcome_message, created_at
        FROM businesses WHERE sender_number=$1
    `
	var b model.Business
	err := r.DB.QueryRow(query, number).Scan(&b.ID, &b.Key, &b.SenderNumber, &b.WelcomeMessage, &b.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.NewBusinessNotFound(number)
		}
		return nil, err
	}
	return &b, nil
}

// Create exists for the seeder; the service itself never writes businesses.
func (r *BusinessRepository) Create(b *model.Business) error {
	query := `
        INSERT INTO businesses (key, sender_number, welcome_message)
        VALUES ($1, $2, $3)
        ON CONFLICT (key) DO UPDATE SET sender_number=EXCLUDED.sender_number, welcome_message=EXCLUDED.welcome_message
        RETURNING id, created_at
    `
	return r.DB.QueryRow(query, b.Key, b.SenderNumber, b.WelcomeMessage).Scan(&b.ID, &b.CreatedAt)
}

var _ BusinessRepositoryInterface = (*BusinessRepository)(nil)
