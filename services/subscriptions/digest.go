package subscriptions

import (
	"fmt"
	"net/smtp"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jordan-wright/email"
)

// RenderCancellationsReport lays the cancellations out as a plain text
// table, one row per member who left.
func RenderCancellationsReport(cancellations []Cancellation) string {
	t := table.NewWriter()
	t.AppendHeader(table.Row{"Date", "Name", "Reason", "Feedback"})
	for _, c := range cancellations {
		date := ""
		if !c.Date.IsZero() {
			date = c.Date.Format("2006-01-02")
		}
		t.AppendRow(table.Row{date, c.Name, c.Reason, c.Feedback})
	}
	return t.Render()
}

type SmtpConfig struct {
	Server       string `json:"server"`
	Port         int    `json:"port"`
	EmailAddress string `json:"email_address"`
	Password     string `json:"password"`
	SendTo       string `json:"send_to"`
}

// SendCancellationsDigest mails the rendered report to the operators.
func SendCancellationsDigest(config SmtpConfig, cancellations []Cancellation) error {
	mail := email.NewEmail()
	mail.From = fmt.Sprintf("Club Ops <%s>", config.EmailAddress)
	mail.To = []string{config.SendTo}
	mail.Subject = fmt.Sprintf("Cancellations digest (%d members left)", len(cancellations))
	mail.Text = []byte(RenderCancellationsReport(cancellations))

	return mail.Send(
		fmt.Sprintf("%s:%d", config.Server, config.Port),
		smtp.PlainAuth("", config.EmailAddress, config.Password, config.Server),
	)
}
