package controller_test

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/qrneighbor/sms-dispatch/internal/controller"
	appErrors "github.com/qrneighbor/sms-dispatch/internal/errors"
	"github.com/qrneighbor/sms-dispatch/internal/model"
	"github.com/qrneighbor/sms-dispatch/internal/provider"
	"github.com/qrneighbor/sms-dispatch/internal/service"
)

// ====================== Fake repositories ======================

type fakeMessageRepo struct {
	mu     sync.Mutex
	nextID int
	rows   []*model.Message
}

func newFakeMessageRepo() *fakeMessageRepo {
	return &fakeMessageRepo{nextID: 1}
}

func (r *fakeMessageRepo) Create(m *model.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m.ID = r.nextID
	r.nextID++
	m.CreatedAt = time.Now()
	m.UpdatedAt = m.CreatedAt
	cp := *m
	r.rows = append(r.rows, &cp)
	return nil
}

func (r *fakeMessageRepo) GetByProviderMessageID(id string) (*model.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if id == "" {
		return nil, nil
	}
	for i := len(r.rows) - 1; i >= 0; i-- {
		if r.rows[i].ProviderMessageID == id {
			cp := *r.rows[i]
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *fakeMessageRepo) UpdateStatus(id int, status, errorCode string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.rows {
		if m.ID == id {
			m.Status = status
			m.ErrorCode = errorCode
			m.UpdatedAt = time.Now()
			return nil
		}
	}
	return fmt.Errorf("message %d not found", id)
}

func (r *fakeMessageRepo) StatsByCampaign(campaignID int) (map[string]int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stats := map[string]int{"total": 0}
	for _, m := range r.rows {
		if m.CampaignID != nil && *m.CampaignID == campaignID {
			stats[m.Status]++
			stats["total"]++
		}
	}
	return stats, nil
}

func (r *fakeMessageRepo) all() []*model.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*model.Message, len(r.rows))
	copy(out, r.rows)
	return out
}

type fakeSubscriberRepo struct {
	nextID int
	rows   []*model.Subscriber
}

func newFakeSubscriberRepo() *fakeSubscriberRepo {
	return &fakeSubscriberRepo{nextID: 1}
}

func (r *fakeSubscriberRepo) add(businessKey, phone, status string) *model.Subscriber {
	s := &model.Subscriber{
		ID:          r.nextID,
		BusinessKey: businessKey,
		Phone:       phone,
		Status:      status,
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}
	r.nextID++
	r.rows = append(r.rows, s)
	return s
}

func (r *fakeSubscriberRepo) Create(s *model.Subscriber) error {
	for _, existing := range r.rows {
		if existing.BusinessKey == s.BusinessKey && existing.Phone == s.Phone {
			existing.Status = model.SubscriberActive
			existing.Name = s.Name
			*s = *existing
			return nil
		}
	}
	s.ID = r.nextID
	r.nextID++
	s.Status = model.SubscriberActive
	s.CreatedAt = time.Now()
	s.UpdatedAt = s.CreatedAt
	cp := *s
	r.rows = append(r.rows, &cp)
	return nil
}

func (r *fakeSubscriberRepo) GetByBusinessAndPhone(businessKey, phone string) (*model.Subscriber, error) {
	for _, s := range r.rows {
		if s.BusinessKey == businessKey && s.Phone == phone {
			return s, nil
		}
	}
	return nil, nil
}

func (r *fakeSubscriberRepo) ListActivePhones(businessKey string) ([]string, error) {
	phones := []string{}
	for _, s := range r.rows {
		if s.BusinessKey == businessKey && s.Status != model.SubscriberUnsubscribed {
			phones = append(phones, s.Phone)
		}
	}
	return phones, nil
}

func (r *fakeSubscriberRepo) MarkUnsubscribed(businessKey, phone string) (int, error) {
	n := 0
	for _, s := range r.rows {
		if s.BusinessKey == businessKey && s.Phone == phone {
			s.Status = model.SubscriberUnsubscribed
			n++
		}
	}
	return n, nil
}

func (r *fakeSubscriberRepo) MarkWelcomeSent(id int, at time.Time) error {
	for _, s := range r.rows {
		if s.ID == id {
			s.WelcomeSentAt = &at
			return nil
		}
	}
	return fmt.Errorf("subscriber %d not found", id)
}

type fakeBusinessRepo struct {
	rows []*model.Business
}

func (r *fakeBusinessRepo) add(key, senderNumber, welcome string) *model.Business {
	b := &model.Business{
		ID:             len(r.rows) + 1,
		Key:            key,
		SenderNumber:   senderNumber,
		WelcomeMessage: welcome,
		CreatedAt:      time.Now(),
	}
	r.rows = append(r.rows, b)
	return b
}

func (r *fakeBusinessRepo) GetByKey(key string) (*model.Business, error) {
	for _, b := range r.rows {
		if b.Key == key {
			return b, nil
		}
	}
	return nil, appErrors.NewBusinessNotFound(key)
}

func (r *fakeBusinessRepo) GetBySenderNumber(number string) (*model.Business, error) {
	for _, b := range r.rows {
		if b.SenderNumber == number {
			return b, nil
		}
	}
	return nil, appErrors.NewBusinessNotFound(number)
}

func (r *fakeBusinessRepo) Create(b *model.Business) error {
	r.rows = append(r.rows, b)
	return nil
}

type fakeCampaignRepo struct {
	nextID int
	rows   []*model.Campaign
}

func newFakeCampaignRepo() *fakeCampaignRepo {
	return &fakeCampaignRepo{nextID: 1}
}

func (r *fakeCampaignRepo) Create(c *model.Campaign) error {
	c.ID = r.nextID
	r.nextID++
	c.CreatedAt = time.Now()
	cp := *c
	r.rows = append(r.rows, &cp)
	return nil
}

func (r *fakeCampaignRepo) GetByID(id int) (*model.Campaign, error) {
	for _, c := range r.rows {
		if c.ID == id {
			cp := *c
			return &cp, nil
		}
	}
	return nil, appErrors.NewCampaignNotFound(id)
}

func (r *fakeCampaignRepo) ListCampaigns(offset, limit int, businessKey, status string) ([]*model.Campaign, int, error) {
	matched := []*model.Campaign{}
	for _, c := range r.rows {
		if businessKey != "" && c.BusinessKey != businessKey {
			continue
		}
		if status != "" && c.Status != status {
			continue
		}
		matched = append(matched, c)
	}
	total := len(matched)
	if offset > total {
		return []*model.Campaign{}, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return matched[offset:end], total, nil
}

func (r *fakeCampaignRepo) UpdateStatus(campaignID int, status string) error {
	for _, c := range r.rows {
		if c.ID == campaignID {
			c.Status = status
			return nil
		}
	}
	return appErrors.NewCampaignNotFound(campaignID)
}

func (r *fakeCampaignRepo) RecordRun(campaignID int, status string, sentAt time.Time, total, ok, failed int) error {
	for _, c := range r.rows {
		if c.ID == campaignID {
			c.Status = status
			c.SentAt = &sentAt
			c.TotalRecipients = total
			c.SentOK = ok
			c.SentFailed = failed
			return nil
		}
	}
	return appErrors.NewCampaignNotFound(campaignID)
}

type fakeJobRepo struct {
	nextID int
	rows   []*model.ScheduledJob
}

func newFakeJobRepo() *fakeJobRepo {
	return &fakeJobRepo{nextID: 1}
}

func (r *fakeJobRepo) Create(j *model.ScheduledJob) error {
	j.ID = r.nextID
	r.nextID++
	j.Status = model.JobPending
	j.CreatedAt = time.Now()
	j.UpdatedAt = j.CreatedAt
	cp := *j
	r.rows = append(r.rows, &cp)
	return nil
}

func (r *fakeJobRepo) GetByID(id int) (*model.ScheduledJob, error) {
	for _, j := range r.rows {
		if j.ID == id {
			cp := *j
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *fakeJobRepo) ListDue(now time.Time, limit int) ([]*model.ScheduledJob, error) {
	due := []*model.ScheduledJob{}
	for _, j := range r.rows {
		if j.Status == model.JobPending && !j.DueAt.After(now) {
			cp := *j
			due = append(due, &cp)
		}
	}
	return due, nil
}

func (r *fakeJobRepo) Claim(id int, claimToken string) (bool, error) {
	for _, j := range r.rows {
		if j.ID == id && j.Status == model.JobPending {
			j.Status = model.JobRunning
			j.ClaimToken = claimToken
			j.UpdatedAt = time.Now()
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeJobRepo) ReleaseStale(before time.Time) (int, error) {
	n := 0
	for _, j := range r.rows {
		if j.Status == model.JobRunning && j.UpdatedAt.Before(before) {
			j.Status = model.JobPending
			j.ClaimToken = ""
			j.UpdatedAt = time.Now()
			n++
		}
	}
	return n, nil
}

func (r *fakeJobRepo) CancelPendingByCampaign(campaignID int) (bool, error) {
	won := false
	for _, j := range r.rows {
		if j.CampaignID == campaignID && j.Status == model.JobPending {
			j.Status = model.JobCancelled
			won = true
		}
	}
	return won, nil
}

func (r *fakeJobRepo) MarkDone(id int) error   { return r.setStatus(id, model.JobDone) }
func (r *fakeJobRepo) MarkFailed(id int) error { return r.setStatus(id, model.JobFailed) }

func (r *fakeJobRepo) Release(id int) error {
	for _, j := range r.rows {
		if j.ID == id && j.Status == model.JobRunning {
			j.Status = model.JobPending
			j.ClaimToken = ""
			return nil
		}
	}
	return nil
}

func (r *fakeJobRepo) setStatus(id int, status string) error {
	for _, j := range r.rows {
		if j.ID == id {
			j.Status = status
			return nil
		}
	}
	return fmt.Errorf("job %d not found", id)
}

// ====================== Stub provider ======================

type stubSender struct {
	name   string
	nextID int
}

func (s *stubSender) Name() string { return s.name }

func (s *stubSender) Send(ctx context.Context, from, to, body string) (*provider.Result, error) {
	s.nextID++
	return &provider.Result{
		ProviderMessageID: fmt.Sprintf("%s-%d", s.name, s.nextID),
		Status:            model.MessageQueued,
		ToPhone:           to,
	}, nil
}

// ====================== Fixture ======================

// testEnv wires the full HTTP surface the way cmd/server does, backed by
// fakes.
type testEnv struct {
	router      chi.Router
	businesses  *fakeBusinessRepo
	subscribers *fakeSubscriberRepo
	campaigns   *fakeCampaignRepo
	messages    *fakeMessageRepo
	jobs        *fakeJobRepo
}

func newTestEnv() *testEnv {
	businesses := &fakeBusinessRepo{}
	businesses.add("joes-pizza", "+15559998888", "Welcome to Joe's Pizza!")

	subscribers := newFakeSubscriberRepo()
	campaigns := newFakeCampaignRepo()
	messages := newFakeMessageRepo()
	jobs := newFakeJobRepo()

	ledger := service.NewLedgerService(messages)
	dispatcher := service.NewDispatcher(&stubSender{name: "twilio"}, &stubSender{name: "telnyx"}, ledger)
	subscriberService := service.NewSubscriberService(subscribers, businesses, dispatcher)
	inboundService := service.NewInboundService(businesses, subscribers, dispatcher)
	campaignService := service.NewCampaignService(campaigns, jobs, businesses, subscriberService, dispatcher, ledger)

	campaignController := &controller.CampaignController{CampaignService: campaignService}
	subscriberController := &controller.SubscriberController{SubscriberService: subscriberService}
	webhookController := controller.NewWebhookController(inboundService, ledger)

	r := chi.NewRouter()
	r.Post("/campaigns", campaignController.CreateCampaign)
	r.Get("/campaigns", campaignController.ListCampaigns)
	r.Get("/campaigns/{id}", campaignController.GetCampaign)
	r.Post("/campaigns/{id}/send", campaignController.SendCampaign)
	r.Post("/campaigns/{id}/cancel", campaignController.CancelCampaign)
	r.Post("/subscribers", subscriberController.CreateSubscriber)
	r.Post("/webhooks/sms/inbound", webhookController.InboundSMS)
	r.Post("/webhooks/sms/status", webhookController.DeliveryStatus)

	return &testEnv{
		router:      r,
		businesses:  businesses,
		subscribers: subscribers,
		campaigns:   campaigns,
		messages:    messages,
		jobs:        jobs,
	}
}
