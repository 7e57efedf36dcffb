package repository

import (
	"database/sql"
	"time"

	"github.com/qrneighbor/sms-dispatch/internal/model"
)

type JobRepositoryInterface interface {
	Create(j *model.ScheduledJob) error
	GetByID(id int) (*model.ScheduledJob, error)
	ListDue(now time.Time, limit int) ([]*model.ScheduledJob, error)
	Claim(id int, claimToken string) (bool, error)
	CancelPendingByCampaign(campaignID int) (bool, error)
	MarkDone(id int) error
	MarkFailed(id int) error
	Release(id int) error
	ReleaseStale(before time.Time) (int, error)
}

type JobRepository struct {
	DB *sql.DB
}

func (r *JobRepository) Create(j *model.ScheduledJob) error {
	query := `
        INSERT INTO scheduled_jobs (campaign_id, business_key, body, due_at, status)
        VALUES ($1, $2, $3, $4, 'pending')
        RETURNING id, status, created_at, updated_at
    `
	return r.DB.QueryRow(query, j.CampaignID, j.BusinessKey, j.Body, j.DueAt).Scan(
		&j.ID, &j.Status, &j.CreatedAt, &j.UpdatedAt,
	)
}

func (r *JobRepository) GetByID(id int) (*model.ScheduledJob, error) {
	query := `
        SELECT id, campaign_id, business_key, body, due_at, status, claim_token, created_at, updated_at
        FROM scheduled_jobs WHERE id=$1
    `
	var j model.ScheduledJob
	err := r.DB.QueryRow(query, id).Scan(
		&j.ID, &j.CampaignID, &j.BusinessKey, &j.Body, &j.DueAt,
		&j.Status, &j.ClaimToken, &j.CreatedAt, &j.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &j, nil
}

func (r *JobRepository) ListDue(now time.Time, limit int) ([]*model.ScheduledJob, error) {
	query := `
        SELECT id, campaign_id, business_key, body, due_at, status, claim_token, created_at, updated_at
        FROM scheduled_jobs
        WHERE status='pending' AND due_at <= $1
        ORDER BY due_at
        LIMIT $2
    `
	rows, err := r.DB.Query(query, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	jobs := []*model.ScheduledJob{}
	for rows.Next() {
		j := &model.ScheduledJob{}
		if err := rows.Scan(
			&j.ID, &j.CampaignID, &j.BusinessKey, &j.Body, &j.DueAt,
			&j.Status, &j.ClaimToken, &j.CreatedAt, &j.UpdatedAt,
		); err != nil {
			return nil, err
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

// Claim moves a job pending -> running with a compare-and-set. A false
// return means another tick (or a cancel) got there first; the caller
// skips the job. This is what closes the duplicate-execution gap between
// two ticks seeing the same due job.
func (r *JobRepository) Claim(id int, claimToken string) (bool, error) {
	query := `
        UPDATE scheduled_jobs
        SET status='running', claim_token=$1, updated_at=NOW()
        WHERE id=$2 AND status='pending'
    `
	res, err := r.DB.Exec(query, claimToken, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

// CancelPendingByCampaign is best-effort: it only wins while the job is
// still pending. A false return means the due tick already claimed it.
func (r *JobRepository) CancelPendingByCampaign(campaignID int) (bool, error) {
	query := `
        UPDATE scheduled_jobs
        SET status='cancelled', updated_at=NOW()
        WHERE campaign_id=$1 AND status='pending'
    `
	res, err := r.DB.Exec(query, campaignID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (r *JobRepository) MarkDone(id int) error {
	return r.setStatus(id, model.JobDone)
}

func (r *JobRepository) MarkFailed(id int) error {
	return r.setStatus(id, model.JobFailed)
}

// Release puts a claimed job back to pending, used when the hand-off to
// the queue fails after a successful claim.
func (r *JobRepository) Release(id int) error {
	query := `
        UPDATE scheduled_jobs SET status='pending', claim_token='', updated_at=NOW()
        WHERE id=$1 AND status='running'
    `
	_, err := r.DB.Exec(query, id)
	return err
}

// ReleaseStale returns claimed jobs with no live worker behind them to
// the pending pool. Claiming stamps updated_at, so a running row older
// than the lease belongs to a tick or worker that died before finishing;
// the next tick re-claims it under a fresh token, and the token check in
// the consumer fences out any delivery the dead claim left behind.
func (r *JobRepository) ReleaseStale(before time.Time) (int, error) {
	query := `
        UPDATE scheduled_jobs SET status='pending', claim_token='', updated_at=NOW()
        WHERE status='running' AND updated_at < $1
    `
	res, err := r.DB.Exec(query, before)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func (r *JobRepository) setStatus(id int, status string) error {
	query := `UPDATE scheduled_jobs SET status=$1, updated_at=NOW() WHERE id=$2`
	_, err := r.DB.Exec(query, status, id)
	return err
}

var _ JobRepositoryInterface = (*JobRepository)(nil)
