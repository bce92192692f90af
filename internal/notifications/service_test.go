package notifications

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/gomail.v2"

	"github.com/painradar/painradar/internal/config"
	"github.com/painradar/painradar/internal/models"
)

func sampleReport() *models.Report {
	return &models.Report{
		Query:      "email automation",
		Slug:       "email-automation",
		UpdatedAt:  time.Date(2026, 10, 1, 9, 30, 0, 0, time.UTC),
		WindowDays: 30,
		Stats:      models.Stats{PainIndex: 64, OpportunityScore: 41, Volume: 87},
		Spike:      models.PainSpike{WeeklyVolume: 20, MonthlyVolume: 40, DeltaPercent: 91},
		Themes: []models.Theme{
			{Title: "Zapier Pricing", Share: 34, Quotes: []string{"It went from 20 to 49 a month"}},
		},
		Ideas:    []models.Idea{{Title: "Cheaper Email Automation for Small Teams", Description: "Flat plan"}},
		TopPosts: []models.SourceLink{{Title: "Zapier pricing doubled", URL: "https://reddit.com/r/zapier/1", Source: models.KindForum}},
	}
}

type webhook struct {
	mu       sync.Mutex
	messages []TeamsMessage
	status   int
}

func (w *webhook) handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		var msg TeamsMessage
		if err := json.NewDecoder(r.Body).Decode(&msg); err == nil {
			w.mu.Lock()
			w.messages = append(w.messages, msg)
			w.mu.Unlock()
		}
		rw.WriteHeader(w.status)
	}
}

func TestSendReport_Teams(t *testing.T) {
	hook := &webhook{status: http.StatusOK}
	server := httptest.NewServer(hook.handler())
	defer server.Close()

	s := NewService(&config.Config{TeamsWebhookURL: server.URL})
	require.NoError(t, s.SendReport(sampleReport()))

	require.Len(t, hook.messages, 1)
	msg := hook.messages[0]
	assert.Equal(t, "MessageCard", msg.Type)
	assert.Equal(t, "Pain Report - email automation", msg.Title)
	assert.Equal(t, "87 relevant posts in the last 30 days", msg.Text)
	require.Len(t, msg.Sections, 3)
	assert.Contains(t, msg.Sections[0].Facts, TeamsFact{Name: "Pain Index", Value: "64/100"})
	assert.Contains(t, msg.Sections[0].Facts, TeamsFact{Name: "Weekly Change", Value: "+91%"})
	assert.Equal(t, "**Zapier Pricing** (34%)", msg.Sections[1].ActivityText)
	assert.Contains(t, msg.Sections[2].ActivityText, "https://reddit.com/r/zapier/1")
}

func TestSendReport_TeamsFailure(t *testing.T) {
	hook := &webhook{status: http.StatusBadRequest}
	server := httptest.NewServer(hook.handler())
	defer server.Close()

	s := NewService(&config.Config{TeamsWebhookURL: server.URL})
	err := s.SendReport(sampleReport())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 400")
}

func TestSendReport_Email(t *testing.T) {
	s := NewService(&config.Config{NotificationEmail: "team@example.com", SMTPUsername: "bot@example.com"})
	var sent []*gomail.Message
	s.send = func(m *gomail.Message) error {
		sent = append(sent, m)
		return nil
	}

	require.NoError(t, s.SendReport(sampleReport()))
	require.Len(t, sent, 1)
	assert.Equal(t, []string{"team@example.com"}, sent[0].GetHeader("To"))
	assert.Equal(t, []string{"Pain Report - email automation (pain 64, opportunity 41)"}, sent[0].GetHeader("Subject"))
}

func TestSendAlert(t *testing.T) {
	hook := &webhook{status: http.StatusOK}
	server := httptest.NewServer(hook.handler())
	defer server.Close()

	s := NewService(&config.Config{TeamsWebhookURL: server.URL, NotificationEmail: "team@example.com"})
	s.send = func(*gomail.Message) error { return errors.New("smtp down") }

	err := s.SendAlert(&models.Alert{Type: "spike", Title: "Pain spike", Message: "20 posts this week"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Email: failed to send email: smtp down")

	require.Len(t, hook.messages, 1)
	assert.Equal(t, "Pain spike", hook.messages[0].Title)
	assert.Equal(t, "d13438", hook.messages[0].ThemeColor)
}

func TestSendReport_NoChannels(t *testing.T) {
	s := NewService(&config.Config{})
	assert.NoError(t, s.SendReport(sampleReport()))
}

func TestBuildEmail(t *testing.T) {
	report := sampleReport()

	html, err := buildEmailHTML(report)
	require.NoError(t, err)
	assert.Contains(t, html, "Pain Report: email automation")
	assert.Contains(t, html, "Zapier Pricing (34%)")
	assert.Contains(t, html, "+91%")
	assert.Contains(t, html, "Cheaper Email Automation for Small Teams")

	text := buildEmailText(report)
	assert.Contains(t, text, "Pain Index: 64/100")
	assert.Contains(t, text, "Relevant Posts: 87 (20 this week, +91%)")
	assert.Contains(t, text, "1. Zapier Pricing (34%)")
	assert.Contains(t, text, `"It went from 20 to 49 a month"`)
	assert.Contains(t, text, "https://reddit.com/r/zapier/1")
}
