package repository

import (
	"database/sql"
	"time"

	"github.com/qrneighbor/sms-dispatch/internal/model"
)

type MessageRepositoryInterface interface {
	Create(m *model.Message) error
	GetByProviderMessageID(providerMessageID string) (*model.Message, error)
	UpdateStatus(id int, status, errorCode string) error
	StatsByCampaign(campaignID int) (map[string]int, error)
}

// MessageRepository is the delivery ledger: write-once-create at send
// time, many-update from status callbacks.
type MessageRepository struct {
	DB *sql.DB
}

func (r *MessageRepository) Create(m *model.Message) error {
	now := time.Now()
	m.CreatedAt = now
	m.UpdatedAt = now

	query := `
        INSERT INTO messages
        (campaign_id, business_key, to_phone, provider, provider_message_id, status, error_code, source, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
        RETURNING id
    `
	return r.DB.QueryRow(
		query,
		m.CampaignID,
		m.BusinessKey,
		m.ToPhone,
		m.Provider,
		m.ProviderMessageID,
		m.Status,
		m.ErrorCode,
		m.Source,
		m.CreatedAt,
		m.UpdatedAt,
	).Scan(&m.ID)
}

// GetByProviderMessageID returns nil, nil when no row matches; callbacks
// for unknown IDs are a no-op, not an error.
func (r *MessageRepository) GetByProviderMessageID(providerMessageID string) (*model.Message, error) {
	if providerMessageID == "" {
		return nil, nil
	}
	query := `
        SELECT id, campaign_id, business_key, to_phone, provider, provider_message_id,
               status, error_code, source, created_at, updated_at
        FROM messages
        WHERE provider_message_id=$1
        ORDER BY id DESC LIMIT 1
    `
	var m model.Message
	err := r.DB.QueryRow(query, providerMessageID).Scan(
		&m.ID, &m.CampaignID, &m.BusinessKey, &m.ToPhone, &m.Provider, &m.ProviderMessageID,
		&m.Status, &m.ErrorCode, &m.Source, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &m, nil
}

func (r *MessageRepository) UpdateStatus(id int, status, errorCode string) error {
	query := `UPDATE messages SET status=$1, error_code=$2, updated_at=NOW() WHERE id=$3`
	_, err := r.DB.Exec(query, status, errorCode, id)
	return err
}

// StatsByCampaign counts ledger rows per status via the campaign_id
// foreign key.
func (r *MessageRepository) StatsByCampaign(campaignID int) (map[string]int, error) {
	query := `SELECT status, COUNT(*) FROM messages WHERE campaign_id=$1 GROUP BY status`
	rows, err := r.DB.Query(query, campaignID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stats := map[string]int{
		"total":       0,
		"queued":      0,
		"unknown":     0,
		"sent":        0,
		"delivered":   0,
		"undelivered": 0,
		"failed":      0,
	}
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		if _, ok := stats[status]; ok {
			stats[status] = count
		}
		stats["total"] += count
	}
	return stats, rows.Err()
}

var _ MessageRepositoryInterface = (*MessageRepository)(nil)
