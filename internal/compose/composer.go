// Package compose turns a recipient, an email body and the company profile
// into a final renderable message: personalization, HTML envelope and a
// plaintext fallback.
package compose

import (
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/mailkite/mailkite/internal/mailer"
	"github.com/mailkite/mailkite/internal/models"
	"github.com/mailkite/mailkite/internal/template"
)

// missingContent is substituted when an email body has no content at all.
// Composition never fails; an empty message is a content mistake, not a
// delivery error.
const missingContent = "This message has no content."

var (
	htmlTagPattern   = regexp.MustCompile(`(?i)</?[a-z][^>]*>`)
	anyTagPattern    = regexp.MustCompile(`<[^>]*>`)
	brPattern        = regexp.MustCompile(`(?i)<br\s*/?>`)
	closePPattern    = regexp.MustCompile(`(?i)</p>`)
	manyNewlines     = regexp.MustCompile(`\n{3,}`)
	hrefPattern      = regexp.MustCompile(`href="(https?://[^"]+)"`)
	closeBodyPattern = regexp.MustCompile(`(?i)</body>`)
)

// Composer builds outbound messages. When TrackingBaseURL is set, Instrument
// rewrites links through the click redirect and appends the open pixel.
type Composer struct {
	TrackingBaseURL string

	clock  func() time.Time
	logger *slog.Logger
}

func New(trackingBaseURL string, logger *slog.Logger) *Composer {
	return &Composer{
		TrackingBaseURL: strings.TrimRight(trackingBaseURL, "/"),
		clock:           time.Now,
		logger:          logger.With("component", "composer"),
	}
}

// SetClock overrides the time source, for tests that pin currentYear and
// currentDate.
func (c *Composer) SetClock(clock func() time.Time) {
	c.clock = clock
}

// Compose builds the final message for one (recipient, email body) unit.
// It is a pure transformation: personalize subject and content, convert
// plain text to paragraph HTML, wrap in the fixed envelope and derive the
// plaintext fallback.
func (c *Composer) Compose(rcpt models.Recipient, body models.EmailBody, company *models.CompanyProfile) *mailer.Message {
	vars := c.buildVars(rcpt, company)

	content := body.Content
	if strings.TrimSpace(content) == "" {
		c.logger.Warn("email body has no content", "body", body.Name, "recipient", rcpt.Email)
		content = missingContent
	}

	personalized := template.RenderAll(content, vars)
	subject := template.RenderAll(body.Subject, vars)
	if strings.TrimSpace(subject) == "" {
		subject = body.Name
	}

	fragment := personalized
	if !htmlTagPattern.MatchString(fragment) {
		fragment = paragraphize(fragment)
	}

	html := c.wrapEnvelope(subject, fragment, vars)
	text := plaintext(fragment)

	fromEmail := body.FromEmail
	fromName := body.FromName
	if fromEmail == "" && company != nil {
		fromEmail = company.Email
	}
	if fromName == "" && company != nil {
		fromName = company.CompanyName
	}

	return &mailer.Message{
		To:      rcpt.Email,
		ToName:  rcpt.Name,
		From:    mailer.FormatAddress(fromEmail, fromName),
		Subject: subject,
		HTML:    html,
		Text:    text,
	}
}

// buildVars merges per-recipient and company variables into one complete
// substitution map. Every supported key is present so no raw token survives
// rendering.
func (c *Composer) buildVars(rcpt models.Recipient, company *models.CompanyProfile) map[string]string {
	now := c.clock()

	vars := map[string]string{
		"name":     rcpt.Name,
		"email":    rcpt.Email,
		"company":  rcpt.Company,
		"position": rcpt.Position,

		"companyName":    "",
		"companyEmail":   "",
		"companyPhone":   "",
		"companyWebsite": "",
		"companyAddress": "",
		"logo":           "",
		"socialLinks":    "",
		"footerText":     "",

		"currentYear": fmt.Sprintf("%d", now.Year()),
		"currentDate": now.Format("January 2, 2006"),
	}

	// firstName falls back to the first word of the name, then a neutral
	// greeting so salutations stay readable.
	firstName := "there"
	if fields := strings.Fields(rcpt.Name); len(fields) > 0 {
		firstName = fields[0]
	}
	vars["firstName"] = firstName

	if company != nil {
		vars["companyName"] = company.CompanyName
		vars["companyEmail"] = company.Email
		vars["companyPhone"] = company.Phone
		vars["companyWebsite"] = company.Website
		vars["companyAddress"] = company.Address
		vars["logo"] = company.Logo
		vars["socialLinks"] = socialLinksHTML(company.SocialLinks)
		vars["footerText"] = company.Description
	}

	return vars
}

// paragraphize converts double-newline-delimited plain text into <p> blocks,
// single newlines becoming <br>. Angle brackets are escaped first.
func paragraphize(content string) string {
	content = strings.ReplaceAll(content, "\r\n", "\n")
	content = strings.ReplaceAll(content, "<", "&lt;")
	content = strings.ReplaceAll(content, ">", "&gt;")

	var b strings.Builder
	for _, para := range strings.Split(content, "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		b.WriteString("<p>")
		b.WriteString(strings.ReplaceAll(para, "\n", "<br>"))
		b.WriteString("</p>\n")
	}
	return b.String()
}

// plaintext derives the text/plain fallback from an HTML fragment.
func plaintext(fragment string) string {
	text := fragment
	text = brPattern.ReplaceAllString(text, "\n")
	text = closePPattern.ReplaceAllString(text, "\n\n")
	text = anyTagPattern.ReplaceAllString(text, "")
	text = strings.ReplaceAll(text, "&lt;", "<")
	text = strings.ReplaceAll(text, "&gt;", ">")
	text = strings.ReplaceAll(text, "&quot;", `"`)
	text = strings.ReplaceAll(text, "&#39;", "'")
	text = strings.ReplaceAll(text, "&amp;", "&")
	text = manyNewlines.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

func socialLinksHTML(links map[string]string) string {
	if len(links) == 0 {
		return ""
	}

	names := make([]string, 0, len(links))
	for name := range links {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, fmt.Sprintf(`<a href="%s">%s</a>`, links[name], name))
	}
	return strings.Join(parts, " &middot; ")
}

// Instrument appends the open pixel and rewrites absolute links through the
// click redirect. A no-op when no tracking base URL is configured.
func (c *Composer) Instrument(html, campaignID, recipientEmail string) string {
	if c.TrackingBaseURL == "" {
		return html
	}

	r := url.QueryEscape(recipientEmail)

	html = hrefPattern.ReplaceAllStringFunc(html, func(match string) string {
		target := match[len(`href="`) : len(match)-1]
		if strings.HasPrefix(target, c.TrackingBaseURL) {
			return match
		}
		return fmt.Sprintf(`href="%s/t/%s/click?r=%s&u=%s"`,
			c.TrackingBaseURL, campaignID, r, url.QueryEscape(target))
	})

	pixel := fmt.Sprintf(`<img src="%s/t/%s/open.gif?r=%s" width="1" height="1" alt="" style="display:none">`,
		c.TrackingBaseURL, campaignID, r)

	if loc := closeBodyPattern.FindStringIndex(html); loc != nil {
		return html[:loc[0]] + pixel + html[loc[0]:]
	}
	return html + pixel
}
