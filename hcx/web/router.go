package web

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/hayat-his/hcx-app/hcx/monitoring"
)

func (api *API) NewRouter() http.Handler {
	r := chi.NewRouter()
	m := monitoring.GetMonitor()
	r.Use(middleware.RequestID, NewStructuredLogger(), SecurityHeader, ConnectionClose)

	r.Route("/v1", func(r chi.Router) {
		r.Post(m.WrapHandler("/submissions", api.createSubmission))
		r.Get(m.WrapHandler("/submissions/{submissionID}", api.getSubmission))
		r.Get(m.WrapHandler("/submissions/{submissionID}/adjudication", api.getAdjudication))
		r.Post(m.WrapHandler("/submissions/{submissionID}/poll", api.pollSubmission))
		r.Post(m.WrapHandler("/submissions/{submissionID}/cancel", api.cancelSubmission))
		r.Post(m.WrapHandler("/submissions/{submissionID}/resubmit", api.resubmit))
		r.Post(m.WrapHandler("/submissions/{submissionID}/communications", api.createCommunication))
	})
	r.Get(m.WrapHandler("/_version", api.getVersion))
	r.Get(m.WrapHandler("/_health", api.healthCheck))

	return r
}
