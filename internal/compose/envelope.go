package compose

import (
	"github.com/mailkite/mailkite/internal/template"
)

// envelopeSkeleton is the fixed outer HTML every campaign message is wrapped
// in: header with optional logo and company name, body slot, footer with
// contact details and copyright line.
const envelopeSkeleton = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<title>{{subject}}</title>
</head>
<body style="margin:0;padding:0;background-color:#f4f4f4;font-family:Arial,Helvetica,sans-serif;">
<table role="presentation" width="100%" cellpadding="0" cellspacing="0" style="background-color:#f4f4f4;">
<tr><td align="center" style="padding:24px 12px;">
<table role="presentation" width="600" cellpadding="0" cellspacing="0" style="background-color:#ffffff;border-radius:6px;overflow:hidden;">
<tr><td style="padding:24px 32px;border-bottom:1px solid #ececec;text-align:center;">
{{companyLogo}}
<div style="font-size:18px;font-weight:bold;color:#333333;">{{companyName}}</div>
</td></tr>
<tr><td style="padding:32px;color:#444444;font-size:15px;line-height:1.6;">
{{emailBody}}
</td></tr>
<tr><td style="padding:24px 32px;background-color:#fafafa;border-top:1px solid #ececec;color:#999999;font-size:12px;text-align:center;">
<div>{{footerText}}</div>
<div style="margin-top:8px;">{{socialLinks}}</div>
<div style="margin-top:8px;">{{companyEmail}}</div>
<div>{{companyAddress}}</div>
<div style="margin-top:8px;">&copy; {{currentYear}} {{companyName}}. All rights reserved.</div>
</td></tr>
</table>
</td></tr>
</table>
</body>
</html>`

// wrapEnvelope substitutes the rendered fragment and company details into the
// fixed skeleton.
func (c *Composer) wrapEnvelope(subject, fragment string, vars map[string]string) string {
	logo := ""
	if vars["logo"] != "" {
		logo = `<img src="` + vars["logo"] + `" alt="` + vars["companyName"] + `" style="max-height:48px;margin-bottom:8px;">`
	}

	return template.Render(envelopeSkeleton, map[string]string{
		"subject":        subject,
		"companyLogo":    logo,
		"companyName":    vars["companyName"],
		"companyEmail":   vars["companyEmail"],
		"companyAddress": vars["companyAddress"],
		"emailBody":      fragment,
		"footerText":     vars["footerText"],
		"socialLinks":    vars["socialLinks"],
		"currentYear":    vars["currentYear"],
	})
}
