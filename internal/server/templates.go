package server

import (
	_ "embed"
	"html/template"
	"net/http"

	"github.com/dgellow/oauth-front/internal/log"
)

//go:embed templates/callback_success.html
var successTemplateHTML string

//go:embed templates/callback_failure.html
var failureTemplateHTML string

var successTemplate = template.Must(template.New("callback_success").Parse(successTemplateHTML))
var failureTemplate = template.Must(template.New("callback_failure").Parse(failureTemplateHTML))

// SuccessPageData feeds the token-delivery document. Origin is the
// postMessage target; the script never posts to "*".
type SuccessPageData struct {
	Token  string
	Origin string
}

// FailurePageData feeds the shared failure document.
type FailurePageData struct {
	Title    string
	Message  string
	RetryURL string
}

// renderSuccess writes the token-delivery document. The body carries a
// live secret, so caches are disabled unconditionally.
func renderSuccess(w http.ResponseWriter, data SuccessPageData) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Pragma", "no-cache")
	w.WriteHeader(http.StatusOK)
	if err := successTemplate.Execute(w, data); err != nil {
		log.LogError("Failed to render success page: %v", err)
	}
}

// renderFailure writes the shared failure document with the given status.
func renderFailure(w http.ResponseWriter, status int, data FailurePageData) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if err := failureTemplate.Execute(w, data); err != nil {
		log.LogError("Failed to render failure page: %v", err)
	}
}
