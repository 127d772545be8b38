// Package web is the HTTP facade over the exchange session: submit, poll,
// cancel, resubmit, fetch adjudications, and send communications. It does no
// exchange logic of its own.
package web

import (
	"database/sql"
	goerrors "errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"github.com/hayat-his/hcx-app/hcx/constants"
	hcxerrors "github.com/hayat-his/hcx-app/hcx/errors"
	"github.com/hayat-his/hcx-app/hcx/models"
	"github.com/hayat-his/hcx-app/hcx/session"
	"github.com/hayat-his/hcx-app/hcxworker/queueing"
	"github.com/hayat-his/hcx-app/log"
)

type API struct {
	session  *session.ExchangeSession
	enqueuer queueing.Enqueuer
	db       *sql.DB
}

func NewAPI(sess *session.ExchangeSession, enqueuer queueing.Enqueuer, db *sql.DB) *API {
	return &API{session: sess, enqueuer: enqueuer, db: db}
}

type submissionRequest struct {
	ClaimType models.ClaimType       `json:"claim_type"`
	Input     models.SubmissionInput `json:"input"`
}

type submissionResponse struct {
	ID           uint                       `json:"id"`
	Status       models.SubmissionStatus    `json:"status"`
	Adjudication *models.AdjudicationResult `json:"adjudication,omitempty"`
}

type communicationRequest struct {
	Payloads           []models.CommunicationPayload `json:"payloads"`
	SolicitedRequestID *uint                         `json:"solicited_request_id,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (api *API) createSubmission(w http.ResponseWriter, r *http.Request) {
	var req submissionRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err)
		return
	}

	handle, err := api.session.Submit(r.Context(), req.ClaimType, req.Input)
	if err != nil {
		// A transport failure still created the submission row; report it
		// alongside the error status so the caller can retry deliberately.
		if handle != nil {
			render.Status(r, statusForSendError(err))
			render.JSON(w, r, submissionResponse{ID: handle.ID, Status: handle.Status})
			return
		}
		writeError(w, r, statusForSendError(err), err)
		return
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, submissionResponse{ID: handle.ID, Status: handle.Status, Adjudication: handle.Adjudication})
}

func (api *API) resubmit(w http.ResponseWriter, r *http.Request) {
	id, ok := submissionID(w, r)
	if !ok {
		return
	}

	var req submissionRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err)
		return
	}

	handle, err := api.session.Resubmit(r.Context(), id, req.Input)
	if err != nil {
		if handle != nil {
			render.Status(r, statusForSendError(err))
			render.JSON(w, r, submissionResponse{ID: handle.ID, Status: handle.Status})
			return
		}
		writeError(w, r, statusForSendError(err), err)
		return
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, submissionResponse{ID: handle.ID, Status: handle.Status, Adjudication: handle.Adjudication})
}

func (api *API) getSubmission(w http.ResponseWriter, r *http.Request) {
	id, ok := submissionID(w, r)
	if !ok {
		return
	}

	submission, err := api.session.GetSubmission(r.Context(), id)
	if err != nil {
		writeError(w, r, statusForLookupError(err), err)
		return
	}

	render.JSON(w, r, submissionResponse{ID: submission.ID, Status: submission.Status})
}

func (api *API) getAdjudication(w http.ResponseWriter, r *http.Request) {
	id, ok := submissionID(w, r)
	if !ok {
		return
	}

	result, err := api.session.GetAdjudication(r.Context(), id)
	if err != nil {
		writeError(w, r, statusForLookupError(err), err)
		return
	}
	if result == nil {
		writeError(w, r, http.StatusNotFound, goerrors.New("no adjudication recorded yet"))
		return
	}

	render.JSON(w, r, result)
}

// pollSubmission queues one poll round; the worker picks it up. The queue
// serializes rounds per submission, so hammering this endpoint is harmless.
func (api *API) pollSubmission(w http.ResponseWriter, r *http.Request) {
	id, ok := submissionID(w, r)
	if !ok {
		return
	}

	submission, err := api.session.GetSubmission(r.Context(), id)
	if err != nil {
		writeError(w, r, statusForLookupError(err), err)
		return
	}
	if submission.Status.Terminal() {
		writeError(w, r, http.StatusConflict,
			goerrors.New("submission is final, nothing to poll for"))
		return
	}

	if err := api.enqueuer.AddPollJob(models.PollEnqueueArgs{SubmissionID: id}, time.Time{}); err != nil {
		writeError(w, r, http.StatusInternalServerError, err)
		return
	}

	render.Status(r, http.StatusAccepted)
	render.JSON(w, r, submissionResponse{ID: submission.ID, Status: submission.Status})
}

func (api *API) cancelSubmission(w http.ResponseWriter, r *http.Request) {
	id, ok := submissionID(w, r)
	if !ok {
		return
	}

	if err := api.session.Cancel(r.Context(), id); err != nil {
		writeError(w, r, statusForSendError(err), err)
		return
	}

	render.JSON(w, r, submissionResponse{ID: id, Status: models.SubmissionStatusCancelled})
}

func (api *API) createCommunication(w http.ResponseWriter, r *http.Request) {
	id, ok := submissionID(w, r)
	if !ok {
		return
	}

	var req communicationRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err)
		return
	}
	if len(req.Payloads) == 0 {
		writeError(w, r, http.StatusBadRequest, goerrors.New("a communication needs at least one payload"))
		return
	}

	handle, err := api.session.SendCommunication(r.Context(), id, req.Payloads, req.SolicitedRequestID)
	if err != nil {
		if handle != nil {
			render.Status(r, statusForSendError(err))
			render.JSON(w, r, handle)
			return
		}
		writeError(w, r, statusForSendError(err), err)
		return
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, handle)
}

func (api *API) healthCheck(w http.ResponseWriter, r *http.Request) {
	if err := api.db.Ping(); err != nil {
		log.API.Error("health check: database ping error: ", err.Error())
		render.Status(r, http.StatusServiceUnavailable)
		render.JSON(w, r, map[string]string{"database": "ping error"})
		return
	}
	render.JSON(w, r, map[string]string{"database": "ok"})
}

func (api *API) getVersion(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, map[string]string{"version": constants.Version})
}

func submissionID(w http.ResponseWriter, r *http.Request) (uint, bool) {
	raw := chi.URLParam(r, "submissionID")
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, goerrors.New("submission id must be a positive integer"))
		return 0, false
	}
	return uint(id), true
}

func writeError(w http.ResponseWriter, r *http.Request, status int, err error) {
	render.Status(r, status)
	render.JSON(w, r, errorResponse{Error: err.Error()})
}

// statusForSendError maps the error taxonomy onto HTTP: caller mistakes are
// 4xx, exchange-side failures are 502.
func statusForSendError(err error) int {
	var buildErr *hcxerrors.BuildError
	if goerrors.As(err, &buildErr) {
		return http.StatusBadRequest
	}
	var transportErr *hcxerrors.TransportError
	if goerrors.As(err, &transportErr) {
		return http.StatusBadGateway
	}
	var rejectionErr *hcxerrors.RemoteRejectionError
	if goerrors.As(err, &rejectionErr) {
		return http.StatusBadGateway
	}
	if goerrors.Is(err, models.ErrSubmissionNotFound) {
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

func statusForLookupError(err error) int {
	if goerrors.Is(err, models.ErrSubmissionNotFound) {
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}
