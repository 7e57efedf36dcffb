// internal/service/campaign_service.go
package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	appErrors "github.com/qrneighbor/sms-dispatch/internal/errors"
	"github.com/qrneighbor/sms-dispatch/internal/logger"
	"github.com/qrneighbor/sms-dispatch/internal/model"
	"github.com/qrneighbor/sms-dispatch/internal/repository"
)

type CampaignService struct {
	Campaigns   repository.CampaignRepositoryInterface
	Jobs        repository.JobRepositoryInterface
	Businesses  repository.BusinessRepositoryInterface
	Subscribers *SubscriberService
	Dispatcher  *Dispatcher
	Ledger      *LedgerService

	// now is swappable in tests.
	now func() time.Time

	log zerolog.Logger
}

func NewCampaignService(
	campaigns repository.CampaignRepositoryInterface,
	jobs repository.JobRepositoryInterface,
	businesses repository.BusinessRepositoryInterface,
	subscribers *SubscriberService,
	dispatcher *Dispatcher,
	ledger *LedgerService,
) *CampaignService {
	return &CampaignService{
		Campaigns:   campaigns,
		Jobs:        jobs,
		Businesses:  businesses,
		Subscribers: subscribers,
		Dispatcher:  dispatcher,
		Ledger:      ledger,
		now:         time.Now,
		log:         logger.WithComponent("campaigns"),
	}
}

// RunResult aggregates one campaign run.
type RunResult struct {
	CampaignID int    `json:"campaign_id"`
	Status     string `json:"status"`
	Total      int    `json:"total_recipients"`
	SentOK     int    `json:"sent_ok"`
	SentFailed int    `json:"sent_failed"`
}

type CampaignDetails struct {
	ID              int            `json:"id"`
	BusinessKey     string         `json:"business_key"`
	Body            string         `json:"body"`
	Mode            string         `json:"mode"`
	Status          string         `json:"status"`
	ScheduledAt     *time.Time     `json:"scheduled_at,omitempty"`
	SentAt          *time.Time     `json:"sent_at,omitempty"`
	TotalRecipients int            `json:"total_recipients"`
	SentOK          int            `json:"sent_ok"`
	SentFailed      int            `json:"sent_failed"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       *time.Time     `json:"updated_at,omitempty"`
	Stats           map[string]int `json:"stats"`
}

// Create validates and persists a campaign. Nothing is persisted on a
// validation failure. mode=now campaigns stay in draft until Run is
// called; mode=scheduled campaigns get a pending job and move to
// scheduled.
func (s *CampaignService) Create(businessKey, body, mode string, scheduledAt *time.Time) (*model.Campaign, error) {
	if businessKey == "" {
		return nil, fmt.Errorf("business is required")
	}
	if body == "" {
		return nil, fmt.Errorf("message body is required")
	}
	if mode != model.CampaignModeNow && mode != model.CampaignModeScheduled {
		return nil, fmt.Errorf("mode must be %q or %q", model.CampaignModeNow, model.CampaignModeScheduled)
	}
	if mode == model.CampaignModeScheduled {
		if scheduledAt == nil {
			return nil, fmt.Errorf("scheduled_at is required for scheduled campaigns")
		}
		if !scheduledAt.After(s.now()) {
			return nil, fmt.Errorf("scheduled_at must be in the future")
		}
	}

	// The business must exist before anything is persisted.
	if _, err := s.Businesses.GetByKey(businessKey); err != nil {
		return nil, err
	}

	c := &model.Campaign{
		BusinessKey: businessKey,
		Body:        body,
		Mode:        mode,
		Status:      model.CampaignDraft,
		ScheduledAt: scheduledAt,
	}
	if err := s.Campaigns.Create(c); err != nil {
		return nil, err
	}

	if mode == model.CampaignModeScheduled {
		// No transaction across the two inserts: a failure below leaves
		// the campaign behind in draft, where it never sends and stays
		// visible in the listing.
		job := &model.ScheduledJob{
			CampaignID:  c.ID,
			BusinessKey: businessKey,
			Body:        body,
			DueAt:       *scheduledAt,
		}
		if err := s.Jobs.Create(job); err != nil {
			return nil, err
		}
		if err := s.Campaigns.UpdateStatus(c.ID, model.CampaignScheduled); err != nil {
			return nil, err
		}
		c.Status = model.CampaignScheduled
	}

	return c, nil
}

// Run executes a draft or scheduled campaign immediately.
func (s *CampaignService) Run(ctx context.Context, campaignID int) (*RunResult, error) {
	c, err := s.Campaigns.GetByID(campaignID)
	if err != nil {
		return nil, err
	}
	if c.Status != model.CampaignDraft && c.Status != model.CampaignScheduled {
		return nil, appErrors.NewInvalidTransition(c.ID, c.Status, "send")
	}

	// A manual send takes the place of the due-time run, so the pending
	// job has to be withdrawn first with the same compare-and-set the tick
	// claims with. Losing it means the tick got there first and owns the
	// campaign from here.
	if c.Status == model.CampaignScheduled {
		won, err := s.Jobs.CancelPendingByCampaign(c.ID)
		if err != nil {
			return nil, err
		}
		if !won {
			return nil, appErrors.NewInvalidTransition(c.ID, c.Status, "send")
		}
	}

	return s.run(ctx, c)
}

// RunDue is the scheduler tick entry point. The job has already been
// claimed (pending -> running) by the tick; a job in any other state, or
// one whose claim token does not match the delivery, is skipped so a
// re-delivered or stale queue message cannot double-send.
func (s *CampaignService) RunDue(ctx context.Context, jobID int, claimToken string) error {
	job, err := s.Jobs.GetByID(jobID)
	if err != nil {
		return err
	}
	if job == nil {
		s.log.Warn().Int("job_id", jobID).Msg("due job not found")
		return nil
	}
	if job.Status != model.JobRunning {
		s.log.Info().Int("job_id", jobID).Str("status", job.Status).Msg("skipping job not in running state")
		return nil
	}
	if job.ClaimToken != claimToken {
		// The job was reclaimed after this delivery was published; the
		// current claim holder's delivery is the one that counts.
		s.log.Info().Int("job_id", jobID).Msg("skipping delivery with superseded claim token")
		return nil
	}

	c, err := s.Campaigns.GetByID(job.CampaignID)
	if err != nil {
		return err
	}
	if c.Status != model.CampaignDraft && c.Status != model.CampaignScheduled {
		// Already sent, failed, or cancelled through another path; the
		// claimed job has nothing left to do.
		s.log.Warn().Int("job_id", job.ID).Int("campaign_id", c.ID).Str("status", c.Status).
			Msg("campaign no longer runnable, completing job without sending")
		return s.Jobs.MarkDone(job.ID)
	}

	result, err := s.run(ctx, c)
	if err != nil {
		if markErr := s.Jobs.MarkFailed(job.ID); markErr != nil {
			s.log.Error().Err(markErr).Int("job_id", job.ID).Msg("failed to mark job failed")
		}
		return err
	}

	s.log.Info().Int("job_id", job.ID).Int("campaign_id", c.ID).
		Int("sent_ok", result.SentOK).Int("sent_failed", result.SentFailed).
		Msg("scheduled campaign run complete")
	return s.Jobs.MarkDone(job.ID)
}

// run resolves recipients and dispatches to each. The campaign ends up
// sent even when zero, some, or all recipients succeeded; only a failure
// of the run itself (resolver error, cancelled context) marks it failed.
func (s *CampaignService) run(ctx context.Context, c *model.Campaign) (*RunResult, error) {
	if err := s.Campaigns.UpdateStatus(c.ID, model.CampaignSending); err != nil {
		return nil, err
	}

	recipients, err := s.Subscribers.ActiveRecipients(c.BusinessKey)
	if err != nil {
		s.recordFailed(c.ID)
		return nil, err
	}

	business, err := s.Businesses.GetByKey(c.BusinessKey)
	if err != nil {
		s.recordFailed(c.ID)
		return nil, err
	}
	if business.SenderNumber == "" {
		s.recordFailed(c.ID)
		return nil, fmt.Errorf("business %q has no sender number", c.BusinessKey)
	}

	campaignID := c.ID
	ok, failed := 0, 0
	for _, to := range recipients {
		// Cancellation point between recipients; already-sent messages
		// stay sent.
		if err := ctx.Err(); err != nil {
			s.recordFailed(c.ID)
			return nil, err
		}

		n, err := s.Dispatcher.Dispatch(ctx, DispatchInput{
			From:        business.SenderNumber,
			To:          to,
			Body:        c.Body,
			BusinessKey: c.BusinessKey,
			CampaignID:  &campaignID,
			Source:      model.SourceCampaign,
		})
		if err != nil || n == 0 {
			failed++
			continue
		}
		ok += n
	}

	sentAt := s.now()
	if err := s.Campaigns.RecordRun(c.ID, model.CampaignSent, sentAt, len(recipients), ok, failed); err != nil {
		return nil, err
	}

	return &RunResult{
		CampaignID: c.ID,
		Status:     model.CampaignSent,
		Total:      len(recipients),
		SentOK:     ok,
		SentFailed: failed,
	}, nil
}

func (s *CampaignService) recordFailed(campaignID int) {
	if err := s.Campaigns.UpdateStatus(campaignID, model.CampaignFailed); err != nil {
		s.log.Error().Err(err).Int("campaign_id", campaignID).Msg("failed to mark campaign failed")
	}
}

// Cancel withdraws a scheduled campaign. It only wins while the job is
// still pending; losing the race to the due tick returns an invalid
// transition error rather than clawing back an in-flight run.
func (s *CampaignService) Cancel(campaignID int) error {
	c, err := s.Campaigns.GetByID(campaignID)
	if err != nil {
		return err
	}
	if c.Status != model.CampaignScheduled {
		return appErrors.NewInvalidTransition(c.ID, c.Status, "cancel")
	}

	won, err := s.Jobs.CancelPendingByCampaign(campaignID)
	if err != nil {
		return err
	}
	if !won {
		return appErrors.NewInvalidTransition(c.ID, c.Status, "cancel")
	}
	return s.Campaigns.UpdateStatus(campaignID, model.CampaignCancelled)
}

// List fetches campaigns with pagination.
func (s *CampaignService) List(page, pageSize int, businessKey, status string) ([]model.Campaign, map[string]int, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}
	offset := (page - 1) * pageSize

	ptrs, total, err := s.Campaigns.ListCampaigns(offset, pageSize, businessKey, status)
	if err != nil {
		return nil, nil, err
	}

	campaigns := make([]model.Campaign, len(ptrs))
	for i, c := range ptrs {
		campaigns[i] = *c
	}

	totalPages := (total + pageSize - 1) / pageSize
	pagination := map[string]int{
		"page":        page,
		"page_size":   pageSize,
		"total_count": total,
		"total_pages": totalPages,
	}

	return campaigns, pagination, nil
}

// DetailsWithStats joins the campaign row with its ledger counts.
func (s *CampaignService) DetailsWithStats(campaignID int) (*CampaignDetails, error) {
	c, err := s.Campaigns.GetByID(campaignID)
	if err != nil {
		return nil, err
	}

	stats, err := s.Ledger.StatsByCampaign(campaignID)
	if err != nil {
		return nil, err
	}

	return &CampaignDetails{
		ID:              c.ID,
		BusinessKey:     c.BusinessKey,
		Body:            c.Body,
		Mode:            c.Mode,
		Status:          c.Status,
		ScheduledAt:     c.ScheduledAt,
		SentAt:          c.SentAt,
		TotalRecipients: c.TotalRecipients,
		SentOK:          c.SentOK,
		SentFailed:      c.SentFailed,
		CreatedAt:       c.CreatedAt,
		UpdatedAt:       c.UpdatedAt,
		Stats:           stats,
	}, nil
}
