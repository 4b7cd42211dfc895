package handler

import (
	"html/template"
	"log/slog"
	"net/http"

	"github.com/kset/verifikator/internal/domain"
)

// Callback result pages. Kept deliberately terse: the failure pages carry no
// detail at all, so the page content cannot be used to probe the roster.
const (
	viewSuccess = "success"
	viewFail    = "fail"
	viewExpired = "expired"
	viewUsed    = "used"
	viewInvalid = "invalid"
	viewError   = "error"
)

type successView struct {
	Email  string
	Member *domain.MemberRecord
}

var views = template.Must(template.New("views").Parse(`
{{define "success"}}<html>
<head><title>Verification successful</title></head>
<body>
<h1>Verification successful</h1>
{{with .Member}}
<p>Name: {{.FullName}}</p>
<p>Section: {{.Section}}</p>
<p>Membership: {{.MembershipStatus}}</p>
<p>KSET email: {{.OrgEmail}}</p>
<p>Personal email: {{.PersonalEmail}}</p>
{{else}}
<p>Verified address: {{.Email}}</p>
{{end}}
</body>
</html>{{end}}

{{define "fail"}}<html>
<head><title>Verification failed</title></head>
<body><h1>Verification failed</h1><p>The addresses do not match or the provider rejected the request.</p></body>
</html>{{end}}

{{define "expired"}}<html>
<head><title>Link expired</title></head>
<body><h1>This verification link has expired</h1><p>Request a new one and try again.</p></body>
</html>{{end}}

{{define "used"}}<html>
<head><title>Link already used</title></head>
<body><h1>This verification link has already been used</h1></body>
</html>{{end}}

{{define "invalid"}}<html>
<head><title>Invalid request</title></head>
<body><h1>Invalid verification request</h1></body>
</html>{{end}}

{{define "error"}}<html>
<head><title>Something went wrong</title></head>
<body><h1>Something went wrong</h1><p>Please try again later.</p></body>
</html>{{end}}
`))

func renderView(w http.ResponseWriter, status int, name string, data interface{}) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := views.ExecuteTemplate(w, name, data); err != nil {
		slog.Error("could not render view", "view", name, "err", err)
	}
}
