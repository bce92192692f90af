package notifications

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
	"gopkg.in/gomail.v2"

	"github.com/painradar/painradar/internal/config"
	"github.com/painradar/painradar/internal/models"
	"github.com/painradar/painradar/internal/textutil"
)

// Service handles sending notifications via various channels
type Service struct {
	config *config.Config
	client *resty.Client
	send   func(m *gomail.Message) error
}

// Ensure Service implements NotificationInterface
var _ NotificationInterface = (*Service)(nil)

// TeamsMessage represents a Microsoft Teams message
type TeamsMessage struct {
	Type       string         `json:"@type"`
	Context    string         `json:"@context"`
	ThemeColor string         `json:"themeColor,omitempty"`
	Title      string         `json:"title"`
	Text       string         `json:"text"`
	Sections   []TeamsSection `json:"sections,omitempty"`
}

type TeamsSection struct {
	ActivityTitle    string      `json:"activityTitle,omitempty"`
	ActivitySubtitle string      `json:"activitySubtitle,omitempty"`
	ActivityText     string      `json:"activityText,omitempty"`
	Facts            []TeamsFact `json:"facts,omitempty"`
	Markdown         bool        `json:"markdown,omitempty"`
}

type TeamsFact struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// NewService creates a new notification service
func NewService(cfg *config.Config) *Service {
	s := &Service{
		config: cfg,
		client: resty.New().SetTimeout(30 * time.Second),
	}
	s.send = func(m *gomail.Message) error {
		d := gomail.NewDialer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword)
		return d.DialAndSend(m)
	}
	return s
}

// SendReport sends a report digest via configured notification channels
func (s *Service) SendReport(report *models.Report) error {
	return s.dispatch("report",
		func() error { return s.postTeams(s.buildTeamsMessage(report)) },
		func() error { return s.sendReportEmail(report) },
	)
}

// SendAlert sends a spike alert via configured notification channels
func (s *Service) SendAlert(alert *models.Alert) error {
	return s.dispatch("alert",
		func() error { return s.postTeams(s.buildAlertMessage(alert)) },
		func() error { return s.sendAlertEmail(alert) },
	)
}

func (s *Service) dispatch(what string, teams, email func() error) error {
	var errors []string

	if s.config.TeamsWebhookURL != "" {
		if err := teams(); err != nil {
			logrus.Errorf("Failed to send Teams %s: %v", what, err)
			errors = append(errors, fmt.Sprintf("Teams: %v", err))
		} else {
			logrus.Infof("Successfully sent %s to Teams", what)
		}
	}

	if s.config.NotificationEmail != "" {
		if err := email(); err != nil {
			logrus.Errorf("Failed to send email %s: %v", what, err)
			errors = append(errors, fmt.Sprintf("Email: %v", err))
		} else {
			logrus.Infof("Successfully sent %s via email", what)
		}
	}

	if len(errors) > 0 {
		return fmt.Errorf("notification errors: %s", strings.Join(errors, "; "))
	}

	return nil
}

func (s *Service) postTeams(message *TeamsMessage) error {
	resp, err := s.client.R().
		SetHeader("Content-Type", "application/json").
		SetBody(message).
		Post(s.config.TeamsWebhookURL)

	if err != nil {
		return fmt.Errorf("failed to send Teams message: %w", err)
	}

	if resp.StatusCode() != 200 {
		return fmt.Errorf("Teams webhook returned status %d: %s", resp.StatusCode(), string(resp.Body()))
	}

	return nil
}

func (s *Service) buildTeamsMessage(report *models.Report) *TeamsMessage {
	message := &TeamsMessage{
		Type:    "MessageCard",
		Context: "https://schema.org/extensions",
		Title:   fmt.Sprintf("Pain Report - %s", report.Query),
		Text:    fmt.Sprintf("%d relevant posts in the last %d days", report.Stats.Volume, report.WindowDays),
	}

	message.Sections = append(message.Sections, TeamsSection{
		ActivityTitle: "Summary",
		Facts: []TeamsFact{
			{Name: "Pain Index", Value: fmt.Sprintf("%d/100", report.Stats.PainIndex)},
			{Name: "Opportunity Score", Value: fmt.Sprintf("%d/100", report.Stats.OpportunityScore)},
			{Name: "Weekly Change", Value: fmt.Sprintf("%+d%%", report.Spike.DeltaPercent)},
			{Name: "Generated", Value: report.UpdatedAt.UTC().Format("2006-01-02 15:04:05 UTC")},
		},
		Markdown: true,
	})

	if len(report.Themes) > 0 {
		var lines []string
		for _, theme := range report.Themes {
			lines = append(lines, fmt.Sprintf("**%s** (%d%%)", theme.Title, theme.Share))
		}
		message.Sections = append(message.Sections, TeamsSection{
			ActivityTitle: "Themes",
			ActivityText:  strings.Join(lines, "\n\n"),
			Markdown:      true,
		})
	}

	if len(report.TopPosts) > 0 {
		var lines []string
		for _, post := range report.TopPosts {
			lines = append(lines, fmt.Sprintf("**[%s](%s)** - %s", post.Title, post.URL, post.Source))
		}
		message.Sections = append(message.Sections, TeamsSection{
			ActivityTitle: "Top Posts",
			ActivityText:  strings.Join(lines, "\n\n"),
			Markdown:      true,
		})
	}

	return message
}

func (s *Service) buildAlertMessage(alert *models.Alert) *TeamsMessage {
	return &TeamsMessage{
		Type:       "MessageCard",
		Context:    "https://schema.org/extensions",
		ThemeColor: "d13438",
		Title:      alert.Title,
		Text:       alert.Message,
	}
}

func (s *Service) sendReportEmail(report *models.Report) error {
	subject := fmt.Sprintf("Pain Report - %s (pain %d, opportunity %d)",
		report.Query, report.Stats.PainIndex, report.Stats.OpportunityScore)

	htmlBody, err := buildEmailHTML(report)
	if err != nil {
		return fmt.Errorf("failed to build email HTML: %w", err)
	}

	return s.sendEmail(subject, buildEmailText(report), htmlBody)
}

func (s *Service) sendAlertEmail(alert *models.Alert) error {
	return s.sendEmail(alert.Title, alert.Message+"\n", "")
}

func (s *Service) sendEmail(subject, textBody, htmlBody string) error {
	m := gomail.NewMessage()
	m.SetHeader("From", s.config.SMTPUsername)
	m.SetHeader("To", s.config.NotificationEmail)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", textBody)
	if htmlBody != "" {
		m.AddAlternative("text/html", htmlBody)
	}

	if err := s.send(m); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}

	return nil
}

const emailTemplate = `
<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>Pain Report</title>
    <style>
        body { font-family: Arial, sans-serif; margin: 20px; }
        .header { background-color: #0078d4; color: white; padding: 20px; border-radius: 5px; }
        .summary { background-color: #f5f5f5; padding: 15px; margin: 20px 0; border-radius: 5px; }
        .theme { border-left: 4px solid #0078d4; padding: 10px; margin: 10px 0; background-color: #fafafa; }
        .theme-title { font-weight: bold; margin-bottom: 5px; }
        .quote { color: #666; font-style: italic; }
    </style>
</head>
<body>
    <div class="header">
        <h1>Pain Report: {{.Query}}</h1>
        <p>Generated on {{.UpdatedAt.Format "January 2, 2006 at 3:04 PM UTC"}} over the last {{.WindowDays}} days</p>
    </div>

    <div class="summary">
        <h2>Summary</h2>
        <p><strong>Pain Index:</strong> {{.Stats.PainIndex}}/100</p>
        <p><strong>Opportunity Score:</strong> {{.Stats.OpportunityScore}}/100</p>
        <p><strong>Relevant Posts:</strong> {{.Stats.Volume}} ({{.Spike.WeeklyVolume}} this week, {{printf "%+d" .Spike.DeltaPercent}}%)</p>
    </div>

    {{if .Themes}}
    <h2>Themes</h2>
    {{range .Themes}}
        <div class="theme">
            <div class="theme-title">{{.Title}} ({{.Share}}%)</div>
            {{range .Quotes}}<p class="quote">"{{. | truncate 200}}"</p>{{end}}
        </div>
    {{end}}
    {{end}}

    {{if .Ideas}}
    <h2>Ideas</h2>
    {{range .Ideas}}<p><strong>{{.Title}}</strong>: {{.Description}}</p>{{end}}
    {{end}}

    <hr>
    <p><small>This report was generated automatically by PainRadar.</small></p>
</body>
</html>
`

func buildEmailHTML(report *models.Report) (string, error) {
	t := template.New("email").Funcs(template.FuncMap{
		"truncate": func(length int, s string) string {
			return textutil.Truncate(s, length)
		},
	})

	t, err := t.Parse(emailTemplate)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := t.Execute(&buf, report); err != nil {
		return "", err
	}

	return buf.String(), nil
}

func buildEmailText(report *models.Report) string {
	var text strings.Builder

	text.WriteString(fmt.Sprintf("Pain Report - %s\n", report.Query))
	text.WriteString(fmt.Sprintf("Generated: %s\n\n", report.UpdatedAt.UTC().Format("2006-01-02 15:04:05 UTC")))

	text.WriteString("SUMMARY\n")
	text.WriteString("=======\n")
	text.WriteString(fmt.Sprintf("Pain Index: %d/100\n", report.Stats.PainIndex))
	text.WriteString(fmt.Sprintf("Opportunity Score: %d/100\n", report.Stats.OpportunityScore))
	text.WriteString(fmt.Sprintf("Relevant Posts: %d (%d this week, %+d%%)\n",
		report.Stats.Volume, report.Spike.WeeklyVolume, report.Spike.DeltaPercent))

	if len(report.Themes) > 0 {
		text.WriteString("\nTHEMES\n")
		text.WriteString("======\n")
		for i, theme := range report.Themes {
			text.WriteString(fmt.Sprintf("\n%d. %s (%d%%)\n", i+1, theme.Title, theme.Share))
			for _, quote := range theme.Quotes {
				text.WriteString(fmt.Sprintf("   \"%s\"\n", textutil.Truncate(quote, 200)))
			}
		}
	}

	if len(report.TopPosts) > 0 {
		text.WriteString("\nTOP POSTS\n")
		text.WriteString("=========\n")
		for _, post := range report.TopPosts {
			text.WriteString(fmt.Sprintf("- %s (%s)\n  %s\n", post.Title, post.Source, post.URL))
		}
	}

	text.WriteString("\n---\nThis report was generated automatically by PainRadar.\n")

	return text.String()
}
