package notify

import (
	"bytes"
	"html/template"
)

const layout = `{{define "layout"}}<!DOCTYPE html>
<html><body style="font-family:Arial,sans-serif;color:#222;max-width:600px;margin:0 auto">
<h2 style="color:#1f4e79">{{.Heading}}</h2>
<p>Hi {{.Name}},</p>
{{template "body" .}}
<p style="color:#777;font-size:12px">{{.Brand}}</p>
</body></html>{{end}}`

var bodies = map[string]string{
	KindPaymentConfirmed: `{{define "body"}}<p>We received your payment of <strong>{{money .Order.Price}}</strong> for <strong>{{.Order.ItemName}}</strong>.</p>
<p>Your order <code>{{.Order.ID}}</code> is now being processed.</p>
<p><a href="{{.Link}}">Track your order</a></p>{{end}}`,
	KindOrderCompleted: `{{define "body"}}<p>Your order for <strong>{{.Order.ItemName}}</strong> is complete.</p>
{{if .Order.CompletionMessage}}<p>{{.Order.CompletionMessage}}</p>{{end}}
{{if .Order.CompletionLink}}<p><a href="{{.Order.CompletionLink}}">View the result</a></p>{{end}}
<p><a href="{{.Link}}">Order details</a></p>{{end}}`,
	KindOrderStatusUpdated: `{{define "body"}}<p>The status of your order for <strong>{{.Order.ItemName}}</strong> changed from <em>{{.Previous}}</em> to <strong>{{.Order.Status}}</strong>.</p>
<p><a href="{{.Link}}">Order details</a></p>{{end}}`,
	KindSubmissionReceived: `{{define "body"}}<p>Thanks for submitting your sites. We will review them shortly:</p>
<ul>{{range .Submission.Websites}}<li>{{.}}</li>{{end}}</ul>{{end}}`,
	KindSubmissionApproved: `{{define "body"}}<p>Good news: your submission has been approved.</p>
<ul>{{range .Submission.Websites}}<li>{{.}}</li>{{end}}</ul>
{{if .Submission.AdminNotes}}<p>Notes from our team: {{.Submission.AdminNotes}}</p>{{end}}{{end}}`,
	KindSubmissionRejected: `{{define "body"}}<p>Unfortunately we could not accept your submission.</p>
<ul>{{range .Submission.Websites}}<li>{{.}}</li>{{end}}</ul>
{{if .Submission.AdminNotes}}<p>Reason: {{.Submission.AdminNotes}}</p>{{end}}{{end}}`,
	KindEmailVerification: `{{define "body"}}<p>Please confirm your email address.</p>
<p><a href="{{.Link}}">Verify email</a></p><p>The link expires in 24 hours.</p>{{end}}`,
	KindPasswordReset: `{{define "body"}}<p>Someone asked to reset your password. If that was you, use the link below.</p>
<p><a href="{{.Link}}">Reset password</a></p><p>The link expires in 1 hour. Ignore this email otherwise.</p>{{end}}`,
}

func parseTemplates() map[string]*template.Template {
	funcs := template.FuncMap{"money": formatMoney}
	out := make(map[string]*template.Template, len(bodies))
	for kind, body := range bodies {
		t := template.Must(template.New(kind).Funcs(funcs).Parse(layout))
		out[kind] = template.Must(t.Parse(body))
	}
	return out
}

func render(t *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
