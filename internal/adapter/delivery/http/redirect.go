package http

import (
	"html/template"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httplog/v2"
	"github.com/go-chi/render"
	"github.com/vadimbarashkov/link-gateway/internal/usecase"
)

const robotsTxt = `User-agent: *
Disallow: /go/
Disallow: /l/
Disallow: /api/
`

var interstitialTmpl = template.Must(template.New("interstitial").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<meta name="robots" content="noindex, nofollow, noarchive">
<meta name="referrer" content="no-referrer">
<title>{{.Alias}}</title>
</head>
<body>
<main>
<h1>{{.Alias}}</h1>
<p>{{.Description}}</p>
<form method="post" action="/go/{{.ShortID}}/continue">
<button type="submit">Continue</button>
</form>
</main>
</body>
</html>
`))

type interstitialView struct {
	Alias       string
	Description string
	ShortID     string
}

func handleRobots(w http.ResponseWriter, r *http.Request) {
	render.PlainText(w, r, robotsTxt)
}

type redirectHandler struct {
	gateway gateway
}

func newRedirectHandler(gw gateway) *redirectHandler {
	return &redirectHandler{gateway: gw}
}

func (h *redirectHandler) resolve(w http.ResponseWriter, r *http.Request) {
	shortID := chi.URLParam(r, "shortID")

	out := h.gateway.ResolveLink(r.Context(), shortID, requesterMeta(r))
	h.writeOutcome(w, r, out)
}

func (h *redirectHandler) continueToTarget(w http.ResponseWriter, r *http.Request) {
	shortID := chi.URLParam(r, "shortID")

	out := h.gateway.RecordVerifiedContinue(r.Context(), shortID, requesterMeta(r))
	h.writeOutcome(w, r, out)
}

func (h *redirectHandler) writeOutcome(w http.ResponseWriter, r *http.Request, out usecase.Outcome) {
	copyHeaders(w, out.Headers)
	httplog.LogEntrySetField(r.Context(), "outcome", slog.StringValue(string(out.Action)))

	switch out.Action {
	case usecase.ActionRedirect:
		http.Redirect(w, r, out.Target, http.StatusFound)
	case usecase.ActionInterstitial:
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusOK)

		err := interstitialTmpl.Execute(w, interstitialView{
			Alias:       out.Alias,
			Description: out.Description,
			ShortID:     out.ShortID,
		})
		if err != nil {
			httplog.LogEntrySetField(r.Context(), "err", slog.AnyValue(err))
		}
	case usecase.ActionBlocked:
		w.WriteHeader(http.StatusNoContent)
	case usecase.ActionRateLimited:
		render.Status(r, http.StatusTooManyRequests)
		render.PlainText(w, r, "too many requests")
	default:
		render.Status(r, http.StatusNotFound)
		render.PlainText(w, r, "not found")
	}
}
