package respond

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/amishk599/jobpipe/internal/model"
)

// Ensure SlackDispatcher implements Dispatcher.
var _ Dispatcher = (*SlackDispatcher)(nil)

// slackPace is the gap kept between two webhook posts.
const slackPace = 500 * time.Millisecond

// SlackDispatcher posts jobs to a Slack channel via Incoming Webhooks.
type SlackDispatcher struct {
	webhookURL string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *slog.Logger
}

// NewSlackDispatcher returns a dispatcher that posts each job to Slack.
func NewSlackDispatcher(webhookURL string, httpClient *http.Client, logger *slog.Logger) *SlackDispatcher {
	return &SlackDispatcher{
		webhookURL: webhookURL,
		httpClient: httpClient,
		limiter:    rate.NewLimiter(rate.Every(slackPace), 1),
		logger:     logger,
	}
}

// Dispatch sends the job as one Block Kit message. A 429 is retried once
// after the Retry-After delay.
func (s *SlackDispatcher) Dispatch(ctx context.Context, j model.Job) error {
	body, err := json.Marshal(buildPayload(j))
	if err != nil {
		return fmt.Errorf("marshal slack payload: %w", err)
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return err
	}
	status, retryAfter, err := s.post(ctx, body)
	if err != nil {
		return err
	}

	if status == http.StatusTooManyRequests {
		s.logger.Warn("slack rate limited, retrying", "retry_after", retryAfter)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retryAfter):
		}
		status, _, err = s.post(ctx, body)
		if err != nil {
			return fmt.Errorf("post to slack (retry): %w", err)
		}
		if status != http.StatusOK {
			return &model.HTTPError{StatusCode: status, Err: fmt.Errorf("slack returned %d on retry", status)}
		}
		s.logger.Info("slack message sent", "company", j.Company, "title", j.Title, "retried", true)
		return nil
	}

	if status != http.StatusOK {
		return &model.HTTPError{StatusCode: status, Err: fmt.Errorf("slack returned %d", status)}
	}
	s.logger.Info("slack message sent", "company", j.Company, "title", j.Title)
	return nil
}

func (s *SlackDispatcher) post(ctx context.Context, body []byte) (int, time.Duration, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.webhookURL, bytes.NewReader(body))
	if err != nil {
		return 0, 0, fmt.Errorf("build slack request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return 0, 0, fmt.Errorf("post to slack: %w", err)
	}
	defer resp.Body.Close()

	secs, _ := strconv.Atoi(resp.Header.Get("Retry-After"))
	if secs <= 0 {
		secs = 1
	}
	return resp.StatusCode, time.Duration(secs) * time.Second, nil
}

// Block Kit payload types.
type slackPayload struct {
	Blocks []slackBlock `json:"blocks"`
}

type slackBlock struct {
	Type     string         `json:"type"`
	Text     *slackText     `json:"text,omitempty"`
	Fields   []slackText    `json:"fields,omitempty"`
	Elements []slackElement `json:"elements,omitempty"`
}

type slackText struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type slackElement struct {
	Type  string    `json:"type"`
	Text  slackText `json:"text"`
	URL   string    `json:"url"`
	Style string    `json:"style"`
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func buildPayload(j model.Job) slackPayload {
	postedText := "Unknown"
	if j.PostedAt != nil {
		postedText = j.PostedAt.UTC().Format(time.RFC1123)
	}
	company := capitalize(j.Company)

	blocks := []slackBlock{
		{
			Type: "header",
			Text: &slackText{Type: "plain_text", Text: company + ": " + j.Title},
		},
		{
			Type: "section",
			Fields: []slackText{
				{Type: "mrkdwn", Text: "*Company:*\n" + company},
				{Type: "mrkdwn", Text: "*Location:*\n" + j.Location},
			},
		},
		{
			Type: "section",
			Fields: []slackText{
				{Type: "mrkdwn", Text: "*Posted:*\n" + postedText},
				{Type: "mrkdwn", Text: "*Source:*\n" + capitalize(j.SourcePlatform)},
			},
		},
	}

	if j.HasSalary() || len(j.RequiredSkills) > 0 {
		var lines []string
		if j.HasSalary() {
			lines = append(lines, "*Salary:* "+salaryText(j))
		}
		lines = append(lines, fmt.Sprintf("*Type:* %s, %s", j.JobType, j.RemoteType))
		if len(j.RequiredSkills) > 0 {
			lines = append(lines, "*Skills:* "+strings.Join(j.RequiredSkills, ", "))
		}
		blocks = append(blocks, slackBlock{
			Type: "section",
			Text: &slackText{Type: "mrkdwn", Text: strings.Join(lines, "\n")},
		})
	}

	blocks = append(blocks,
		slackBlock{
			Type: "actions",
			Elements: []slackElement{
				{
					Type:  "button",
					Text:  slackText{Type: "plain_text", Text: "Apply Now"},
					URL:   j.URL,
					Style: "primary",
				},
			},
		},
		slackBlock{Type: "divider"},
	)
	return slackPayload{Blocks: blocks}
}

// salaryText renders a salary range like "120,000-150,000 USD".
func salaryText(j model.Job) string {
	format := func(p *int64) string {
		if p == nil {
			return "?"
		}
		s := strconv.FormatInt(*p, 10)
		var b strings.Builder
		for i, r := range s {
			if i > 0 && (len(s)-i)%3 == 0 {
				b.WriteByte(',')
			}
			b.WriteRune(r)
		}
		return b.String()
	}
	out := format(j.SalaryMin)
	if j.SalaryMax != nil && (j.SalaryMin == nil || *j.SalaryMax != *j.SalaryMin) {
		out += "-" + format(j.SalaryMax)
	}
	if j.Currency != "" && j.Currency != model.CurrencyUnknown {
		out += " " + string(j.Currency)
	}
	return out
}
