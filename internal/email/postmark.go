package email

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"net/http"

	"github.com/dukerupert/messledger/internal/model"
)

const postmarkURL = "https://api.postmarkapp.com/email"

var ErrNotConfigured = errors.New("email client not configured: missing server token")

type Client struct {
	serverToken string
	fromEmail   string
	currency    string
	httpClient  *http.Client
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.httpClient = c
	}
}

// WithCurrency sets the symbol printed before amounts.
func WithCurrency(symbol string) Option {
	return func(cl *Client) {
		cl.currency = symbol
	}
}

func NewClient(serverToken, fromEmail string, opts ...Option) *Client {
	c := &Client{
		serverToken: serverToken,
		fromEmail:   fromEmail,
		httpClient:  http.DefaultClient,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Configured returns true if the server token is set.
func (c *Client) Configured() bool {
	return c.serverToken != ""
}

type postmarkEmail struct {
	From     string `json:"From"`
	To       string `json:"To"`
	Subject  string `json:"Subject"`
	HtmlBody string `json:"HtmlBody"`
	TextBody string `json:"TextBody"`
	Tag      string `json:"Tag,omitempty"`
}

// SendStatement mails one member their settlement for the closed month of r.
func (c *Client) SendStatement(ctx context.Context, toEmail string, r *model.Report, line model.ReportLine) error {
	if !c.Configured() {
		return ErrNotConfigured
	}

	subject := fmt.Sprintf("Mess statement for %s %d", r.MonthName, r.Year)
	status := "You owe"
	amount := line.Balance
	if line.Balance.IsNegative() {
		status = "You will be refunded"
		amount = line.Balance.Neg()
	}
	money := func(v string) string { return c.currency + v }

	textBody := fmt.Sprintf(
		"Hello %s,\n\n%s %d has been closed.\n\nMeals: %d breakfast, %d lunch, %d dinner, %d guest\nUnits: %s\nCost per unit: %s\nAmount due: %s\nDeposits: %s\n\n%s %s.\n",
		line.UserName, r.MonthName, r.Year,
		line.BreakfastCount, line.LunchCount, line.DinnerCount, line.GuestUnits,
		line.TotalUnits.String(), money(r.CostPerUnit.StringFixed(2)),
		money(line.AmountDue.StringFixed(2)), money(line.TotalDeposits.StringFixed(2)),
		status, money(amount.StringFixed(2)),
	)
	htmlBody := fmt.Sprintf(
		`<p>Hello %s,</p><p>%s %d has been closed.</p><table>`+
			`<tr><td>Units</td><td>%s</td></tr>`+
			`<tr><td>Cost per unit</td><td>%s</td></tr>`+
			`<tr><td>Amount due</td><td>%s</td></tr>`+
			`<tr><td>Deposits</td><td>%s</td></tr>`+
			`</table><p><strong>%s %s.</strong></p>`,
		html.EscapeString(line.UserName), r.MonthName, r.Year,
		line.TotalUnits.String(), money(r.CostPerUnit.StringFixed(2)),
		money(line.AmountDue.StringFixed(2)), money(line.TotalDeposits.StringFixed(2)),
		status, money(amount.StringFixed(2)),
	)

	return c.send(ctx, postmarkEmail{
		From:     c.fromEmail,
		To:       toEmail,
		Subject:  subject,
		HtmlBody: htmlBody,
		TextBody: textBody,
		Tag:      "statement",
	})
}

func (c *Client) send(ctx context.Context, payload postmarkEmail) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal email: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", postmarkURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Postmark-Server-Token", c.serverToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("postmark API error: status %d", resp.StatusCode)
	}

	return nil
}
