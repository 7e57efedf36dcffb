package repository

import (
	"database/sql"
	"fmt"
	"time"

	appErrors "github.com/qrneighbor/sms-dispatch/internal/errors"
	"github.com/qrneighbor/sms-dispatch/internal/model"
)

type CampaignRepositoryInterface interface {
	Create(c *model.Campaign) error
	GetByID(id int) (*model.Campaign, error)
	ListCampaigns(offset, limit int, businessKey, status string) ([]*model.Campaign, int, error)
	UpdateStatus(campaignID int, status string) error
	RecordRun(campaignID int, status string, sentAt time.Time, total, ok, failed int) error
}

type CampaignRepository struct {
	DB *sql.DB
}

// ====================== Campaign CRUD ======================

func (r *CampaignRepository) Create(c *model.Campaign) error {
	c.CreatedAt = time.Now()
	if c.Status == "" {
		c.Status = model.CampaignDraft
	}
	query := `
        INSERT INTO campaigns (business_key, body, mode, status, scheduled_at, created_at)
        VALUES ($1, $2, $3, $4, $5, $6)
        RETURNING id
    `
	return r.DB.QueryRow(query, c.BusinessKey, c.Body, c.Mode, c.Status, c.ScheduledAt, c.CreatedAt).Scan(&c.ID)
}

func (r *CampaignRepository) GetByID(id int) (*model.Campaign, error) {
	query := `
        SELECT id, business_key, body, mode, status, scheduled_at, sent_at,
               total_recipients, sent_ok, sent_failed, created_at, updated_at
        FROM campaigns WHERE id=$1
    `
	var c model.Campaign
	err := r.DB.QueryRow(query, id).Scan(
		&c.ID, &c.BusinessKey, &c.Body, &c.Mode, &c.Status, &c.ScheduledAt, &c.SentAt,
		&c.TotalRecipients, &c.SentOK, &c.SentFailed, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.NewCampaignNotFound(id)
		}
		return nil, err
	}
	return &c, nil
}

func (r *CampaignRepository) ListCampaigns(offset, limit int, businessKey, status string) ([]*model.Campaign, int, error) {
	campaigns := []*model.Campaign{}
	query := `
        SELECT id, business_key, body, mode, status, scheduled_at, sent_at,
               total_recipients, sent_ok, sent_failed, created_at, updated_at
        FROM campaigns WHERE 1=1`
	args := []interface{}{}
	argPos := 1

	if businessKey != "" {
		query += fmt.Sprintf(" AND business_key=$%d", argPos)
		args = append(args, businessKey)
		argPos++
	}
	if status != "" {
		query += fmt.Sprintf(" AND status=$%d", argPos)
		args = append(args, status)
		argPos++
	}

	query += fmt.Sprintf(" ORDER BY id DESC LIMIT $%d OFFSET $%d", argPos, argPos+1)
	args = append(args, limit, offset)

	rows, err := r.DB.Query(query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	for rows.Next() {
		c := &model.Campaign{}
		if err := rows.Scan(
			&c.ID, &c.BusinessKey, &c.Body, &c.Mode, &c.Status, &c.ScheduledAt, &c.SentAt,
			&c.TotalRecipients, &c.SentOK, &c.SentFailed, &c.CreatedAt, &c.UpdatedAt,
		); err != nil {
			return nil, 0, err
		}
		campaigns = append(campaigns, c)
	}

	countQuery := `SELECT COUNT(*) FROM campaigns WHERE 1=1`
	argsCount := []interface{}{}
	argPosCount := 1
	if businessKey != "" {
		countQuery += fmt.Sprintf(" AND business_key=$%d", argPosCount)
		argsCount = append(argsCount, businessKey)
		argPosCount++
	}
	if status != "" {
		countQuery += fmt.Sprintf(" AND status=$%d", argPosCount)
		argsCount = append(argsCount, status)
	}

	var total int
	if err := r.DB.QueryRow(countQuery, argsCount...).Scan(&total); err != nil {
		return nil, 0, err
	}

	return campaigns, total, nil
}

func (r *CampaignRepository) UpdateStatus(campaignID int, status string) error {
	query := `UPDATE campaigns SET status=$1, updated_at=$2 WHERE id=$3`
	_, err := r.DB.Exec(query, status, time.Now(), campaignID)
	return err
}

// RecordRun stores the outcome of one campaign run: final status, when it
// ran, and the aggregate counters.
func (r *CampaignRepository) RecordRun(campaignID int, status string, sentAt time.Time, total, ok, failed int) error {
	query := `
        UPDATE campaigns
        SET status=$1, sent_at=$2, total_recipients=$3, sent_ok=$4, sent_failed=$5, updated_at=NOW()
        WHERE id=$6
    `
	_, err := r.DB.Exec(query, status, sentAt, total, ok, failed, campaignID)
	return err
}

var _ CampaignRepositoryInterface = (*CampaignRepository)(nil)
