package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Enterprise-CMCS/managed-care-review-sub010/internal/config"
	"github.com/Enterprise-CMCS/managed-care-review-sub010/internal/domain"
)

var submittedEvent = domain.Event{
	Type:               domain.EventContractSubmitted,
	ContractID:         "c-1",
	StateCode:          "MN",
	Name:               "MCR-MN-0001",
	Status:             domain.StatusResubmitted,
	Reason:             "fixed documents",
	UpdatedBy:          domain.UpdatedBy{Email: "aang@mn.gov", Role: domain.RoleStateUser},
	At:                 time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC),
	RelatedContractIDs: []string{"c-2"},
}

func emailConfig(url string) *config.EmailConfig {
	return &config.EmailConfig{
		Enabled:            true,
		ServiceURL:         url,
		APIToken:           "secret",
		FromAddress:        "mc-review@cms.hhs.gov",
		ReviewTeamEmails:   []string{"review@cms.hhs.gov"},
		ApplicationBaseURL: "https://mc-review.example/",
	}
}

func TestEmailer_SendsReviewTeamEmail(t *testing.T) {
	var got EmailMessage
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/send", r.URL.Path)
		auth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":0,"msg":"ok","messageId":"m-1"}`))
	}))
	defer srv.Close()

	cfg := emailConfig(srv.URL)
	e := NewEmailer(NewEmailClient(cfg, zap.NewNop()), cfg, zap.NewNop())
	e.Notify(context.Background(), submittedEvent)

	assert.Equal(t, "Bearer secret", auth)
	assert.Equal(t, []string{"review@cms.hhs.gov"}, got.To)
	assert.Equal(t, "mc-review@cms.hhs.gov", got.From)
	assert.Equal(t, "[MN] MCR-MN-0001 was resubmitted", got.Subject)
	assert.Contains(t, got.Body, "by aang@mn.gov on 05/01/2024")
	assert.Contains(t, got.Body, "Reason: fixed documents")
	assert.Contains(t, got.Body, "https://mc-review.example/submissions/c-1")
	assert.Contains(t, got.Body, "Also affected: c-2")
}

func TestEmailClient_Errors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("fail") != "" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":42,"msg":"mailbox full"}`))
	}))
	defer srv.Close()

	c := NewEmailClient(emailConfig(srv.URL), zap.NewNop())
	_, err := c.Send(context.Background(), EmailMessage{To: []string{"x@y.z"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mailbox full")

	c.httpClient.SetQueryParam("fail", "1")
	_, err = c.Send(context.Background(), EmailMessage{To: []string{"x@y.z"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP 400")
}

func TestEmailer_SkipsWithoutRecipients(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { calls++ }))
	defer srv.Close()

	cfg := emailConfig(srv.URL)
	cfg.ReviewTeamEmails = nil
	NewEmailer(NewEmailClient(cfg, zap.NewNop()), cfg, zap.NewNop()).Notify(context.Background(), submittedEvent)
	assert.Zero(t, calls)
}

type fakePublisher struct {
	mu       sync.Mutex
	topics   []string
	payloads [][]byte
	err      error
}

func (p *fakePublisher) Publish(topic string, _ byte, _ bool, payload []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.topics = append(p.topics, topic)
	p.payloads = append(p.payloads, payload)
	return nil
}

func TestEventPublisher(t *testing.T) {
	pub := &fakePublisher{}
	p := NewEventPublisher(pub, "mcreview/events/", 1, zap.NewNop())
	p.Notify(context.Background(), submittedEvent)

	require.Equal(t, []string{"mcreview/events/MN/contract.submitted"}, pub.topics)
	var decoded domain.Event
	require.NoError(t, json.Unmarshal(pub.payloads[0], &decoded))
	assert.Equal(t, submittedEvent.ContractID, decoded.ContractID)
	assert.Equal(t, submittedEvent.RelatedContractIDs, decoded.RelatedContractIDs)

	// publish failures are logged, not propagated
	pub.err = errors.New("broker gone")
	p.Notify(context.Background(), submittedEvent)
	assert.Len(t, pub.topics, 1)
}

type countingNotifier struct{ n int }

func (c *countingNotifier) Notify(context.Context, domain.Event) { c.n++ }

func TestMulti(t *testing.T) {
	a, b := &countingNotifier{}, &countingNotifier{}
	Multi{a, b}.Notify(context.Background(), submittedEvent)
	Multi(nil).Notify(context.Background(), submittedEvent)
	assert.Equal(t, 1, a.n)
	assert.Equal(t, 1, b.n)
}
