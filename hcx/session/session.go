// Package session orchestrates the conversation with the exchange: build and
// submit, store the pending submission, poll, match, and apply. It owns the
// submission state machine; the mapper, parser, matcher, transport, and
// repository are collaborators threaded in explicitly.
package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/hayat-his/hcx-app/conf"
	"github.com/hayat-his/hcx-app/hcx/adjudication"
	"github.com/hayat-his/hcx-app/hcx/client"
	"github.com/hayat-his/hcx-app/hcx/constants"
	hcxerrors "github.com/hayat-his/hcx-app/hcx/errors"
	"github.com/hayat-his/hcx-app/hcx/fhir"
	"github.com/hayat-his/hcx-app/hcx/mapper"
	"github.com/hayat-his/hcx-app/hcx/models"
	"github.com/hayat-his/hcx-app/hcx/models/postgres"
	"github.com/hayat-his/hcx-app/log"
)

type Config struct {
	// SourceEndpoint identifies the submitting system in message headers.
	SourceEndpoint string `conf:"HCX_SOURCE_ENDPOINT" conf_default:"http://provider.hayat-his.sa"`

	// ExchangeEndpoint is the destination endpoint carried in headers. The
	// transport URL lives in the client config; this is the logical address.
	ExchangeEndpoint string `conf:"HCX_EXCHANGE_ENDPOINT" conf_default:"http://exchange.hcx.sa"`

	// ProviderLicense is the submitting organization's license number, the
	// sender identity on poll and communication headers.
	ProviderLicense string `conf:"HCX_PROVIDER_LICENSE"`

	// RulesPath points at the TOML claim-rule file (currency, supporting-info
	// default texts). Empty means built-in defaults.
	RulesPath string `conf:"HCX_CLAIM_RULES_FILE"`

	// AllowLoneResponseFallback enables the legacy lone-response matching
	// heuristic. Leave off unless a counterparty is known to omit the
	// answers-to identifier.
	AllowLoneResponseFallback bool `conf:"HCX_ALLOW_LONE_RESPONSE_FALLBACK" conf_default:"false"`
}

func LoadConfig() (*Config, error) {
	cfg := &Config{}
	if err := conf.Checkout(cfg); err != nil {
		return nil, err
	}
	if cfg.ProviderLicense == "" {
		return nil, fmt.Errorf("invalid config, ProviderLicense must be set")
	}
	return cfg, nil
}

// ExchangeSession drives submissions through their lifecycle. Safe for
// concurrent use across distinct submissions; per-submission serialization is
// the caller's concern (the worker takes an advisory lock).
type ExchangeSession struct {
	cfg     Config
	rules   *mapper.Rules
	repo    models.Repository
	client  client.ExchangeClient
	matcher *adjudication.Matcher
	logger  logrus.FieldLogger

	// db and txRepo are set when the session owns transaction scoping for
	// reply applies (see WithDatabase). A session already bound to a
	// transaction-scoped repository leaves them unset.
	db     *sql.DB
	txRepo func(tx *sql.Tx) models.Repository
}

func New(cfg Config, repo models.Repository, exchangeClient client.ExchangeClient) (*ExchangeSession, error) {
	rules := mapper.DefaultRules()
	if cfg.RulesPath != "" {
		var err error
		if rules, err = mapper.LoadRules(cfg.RulesPath); err != nil {
			return nil, errors.Wrap(err, "failed to load claim rules")
		}
	}

	return &ExchangeSession{
		cfg:     cfg,
		rules:   rules,
		repo:    repo,
		client:  exchangeClient,
		matcher: adjudication.NewMatcher(adjudication.MatchConfig{AllowLoneResponseFallback: cfg.AllowLoneResponseFallback}),
		logger:  log.Session,
	}, nil
}

// WithRepository returns a copy of the session bound to a different
// repository. The worker uses this to run a poll against a transaction-scoped
// repository so the apply commits or rolls back as a unit.
func (s *ExchangeSession) WithRepository(repo models.Repository) *ExchangeSession {
	copied := *s
	copied.repo = repo
	// The caller owns transaction scoping now.
	copied.db = nil
	return &copied
}

// WithDatabase returns a copy of the session that applies each synchronous
// reply inside its own transaction, holding the submission's advisory lock
// for the duration. Production wiring uses this; a session handed a
// transaction-scoped repository (WithRepository) does not need it.
func (s *ExchangeSession) WithDatabase(db *sql.DB) *ExchangeSession {
	copied := *s
	copied.db = db
	copied.txRepo = func(tx *sql.Tx) models.Repository { return postgres.NewRepositoryTx(tx) }
	return &copied
}

// inTx runs fn against a transaction-scoped repository under the
// submission's advisory lock, so the apply commits or rolls back as a unit.
// Without a database handle the apply runs directly on the session's
// repository and the caller owns transaction scoping.
func (s *ExchangeSession) inTx(ctx context.Context, submissionID uint, fn func(models.Repository) error) error {
	if s.db == nil {
		return fn(s.repo)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to begin reply transaction")
	}
	if _, err := tx.ExecContext(ctx, "SELECT pg_advisory_xact_lock($1)", int64(submissionID)); err != nil {
		_ = tx.Rollback()
		return errors.Wrap(err, "failed to take submission advisory lock")
	}
	if err := fn(s.txRepo(tx)); err != nil {
		_ = tx.Rollback()
		return err
	}
	return errors.Wrap(tx.Commit(), "failed to commit reply transaction")
}

// SubmissionHandle is what Submit hands back to the caller.
type SubmissionHandle struct {
	ID     uint
	Status models.SubmissionStatus

	// Adjudication is set when the synchronous reply already carried a final
	// decision.
	Adjudication *models.AdjudicationResult
}

// Submit builds the envelope for the claim sub-type, persists the submission
// before the first network call, sends it, and applies the synchronous reply.
// A BuildError surfaces before anything is persisted or sent.
func (s *ExchangeSession) Submit(ctx context.Context, claimType models.ClaimType, in models.SubmissionInput) (*SubmissionHandle, error) {
	m, err := mapper.New(claimType, s.mapperConfig())
	if err != nil {
		return nil, err
	}

	bundle, err := m.BuildRequestBundle(in)
	if err != nil {
		return nil, err
	}

	snapshot, err := json.Marshal(bundle)
	if err != nil {
		return nil, errors.Wrap(err, "failed to snapshot outbound envelope")
	}

	submission := &models.Submission{
		SubmissionSystem: in.SubmissionSystem,
		SubmissionValue:  in.SubmissionValue,
		ClaimType:        claimType,
		Use:              in.Use,
		Status:           models.SubmissionStatusSent,
		RequestSnapshot:  snapshot,
		PredecessorID:    in.PredecessorID,
	}
	id, err := s.repo.CreateSubmission(ctx, submission)
	if err != nil {
		return nil, errors.Wrap(err, "failed to persist submission")
	}
	submission.ID = id

	logger := s.logger.WithFields(logrus.Fields{
		"submission_id":    id,
		"submission_value": in.SubmissionValue,
		"claim_type":       claimType,
	})
	logger.Info("submitting to exchange")

	reply, err := s.client.Send(ctx, bundle)
	if err != nil {
		// The exchange gives no idempotency guarantee, so a transport failure
		// is parked in error for the user to retry; it is never resent
		// automatically.
		logger.WithError(err).Error("submission send failed")
		if updateErr := s.repo.UpdateSubmissionFailure(ctx, id, err.Error()); updateErr != nil {
			logger.WithError(updateErr).Error("failed to record submission failure")
		}
		return &SubmissionHandle{ID: id, Status: models.SubmissionStatusError}, err
	}

	if reply.ID != "" {
		if err := s.repo.UpdateSubmissionCorrelationID(ctx, id, reply.ID); err != nil {
			logger.WithError(err).Warn("failed to record correlation id")
		}
	}

	return s.applySynchronousReply(ctx, logger, submission, reply)
}

// applySynchronousReply reduces the synchronous response: a queued outcome (or
// a bare acknowledgment with no ClaimResponse at all) parks the submission in
// queued for the poll loop; anything else is final right away.
func (s *ExchangeSession) applySynchronousReply(ctx context.Context, logger logrus.FieldLogger,
	submission *models.Submission, reply *fhir.Bundle) (*SubmissionHandle, error) {

	result, err := adjudication.Parse(reply)
	if err != nil {
		var parseErr *hcxerrors.ParseError
		if !errors.As(err, &parseErr) {
			return nil, err
		}
		// No ClaimResponse in the reply: the exchange accepted the message and
		// will adjudicate asynchronously.
		if updateErr := s.repo.UpdateSubmissionStatus(ctx, submission.ID, models.SubmissionStatusQueued); updateErr != nil {
			return nil, errors.Wrap(updateErr, "failed to queue submission")
		}
		return &SubmissionHandle{ID: submission.ID, Status: models.SubmissionStatusQueued}, nil
	}

	status := statusForResult(result)
	if status == models.SubmissionStatusQueued {
		if err := s.repo.UpdateSubmissionStatus(ctx, submission.ID, status); err != nil {
			return nil, errors.Wrap(err, "failed to queue submission")
		}
		return &SubmissionHandle{ID: submission.ID, Status: status}, nil
	}

	// The exchange processed the message but could not adjudicate it. Park in
	// error with the remote diagnostics retained; the user decides whether to
	// resubmit.
	if status == models.SubmissionStatusError {
		logger.WithField("disposition", result.Disposition).Error("exchange reported an error outcome")
		if err := s.repo.UpdateSubmissionFailure(ctx, submission.ID, failureText(result)); err != nil {
			return nil, errors.Wrap(err, "failed to record adjudication error")
		}
		return &SubmissionHandle{ID: submission.ID, Status: status}, nil
	}

	result.SubmissionID = submission.ID
	err = s.inTx(ctx, submission.ID, func(repo models.Repository) error {
		if _, err := repo.CreateAdjudication(ctx, result); err != nil {
			return errors.Wrap(err, "failed to persist adjudication")
		}
		if err := repo.UpdateSubmissionStatus(ctx, submission.ID, status); err != nil {
			return errors.Wrap(err, "failed to finalize submission")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.WithField("status", status).Info("synchronous adjudication applied")
	return &SubmissionHandle{ID: submission.ID, Status: status, Adjudication: result}, nil
}

// statusForResult maps a normalized adjudication onto the submission state
// machine. An error outcome parks the submission in error regardless of any
// decision text; a pending decision without a queued outcome still parks in
// queued: the exchange has not decided yet.
func statusForResult(result *models.AdjudicationResult) models.SubmissionStatus {
	if result.Outcome == models.OutcomeError {
		return models.SubmissionStatusError
	}
	if result.Outcome == models.OutcomeQueued {
		return models.SubmissionStatusQueued
	}
	switch result.Decision {
	case models.DecisionApproved:
		return models.SubmissionStatusApproved
	case models.DecisionRejected:
		return models.SubmissionStatusDenied
	case models.DecisionPartial:
		return models.SubmissionStatusPartial
	default:
		return models.SubmissionStatusQueued
	}
}

// failureText picks what lands in the submission's last_error column for an
// error outcome.
func failureText(result *models.AdjudicationResult) string {
	if result.Disposition != "" {
		return result.Disposition
	}
	return "exchange reported an error outcome"
}

// GetSubmission loads one submission by ID.
func (s *ExchangeSession) GetSubmission(ctx context.Context, submissionID uint) (*models.Submission, error) {
	return s.repo.GetSubmissionByID(ctx, submissionID)
}

// GetPendingSubmissions lists submissions still waiting on the exchange.
func (s *ExchangeSession) GetPendingSubmissions(ctx context.Context) ([]*models.Submission, error) {
	return s.repo.GetPendingSubmissions(ctx)
}

// GetAdjudication returns the latest stored adjudication, or nil when the
// exchange has not decided yet.
func (s *ExchangeSession) GetAdjudication(ctx context.Context, submissionID uint) (*models.AdjudicationResult, error) {
	return s.repo.GetLatestAdjudication(ctx, submissionID)
}

// Cancel asks the exchange to withdraw a pending submission and marks it
// cancelled locally on success. Terminal submissions cannot be cancelled.
func (s *ExchangeSession) Cancel(ctx context.Context, submissionID uint) error {
	submission, err := s.repo.GetSubmissionByID(ctx, submissionID)
	if err != nil {
		return err
	}
	if submission.Status.Terminal() {
		return fmt.Errorf("submission %d is %s and cannot be cancelled", submissionID, submission.Status)
	}

	bundle, err := s.buildTaskBundle(submission, constants.TaskCodeCancel)
	if err != nil {
		return err
	}

	if _, err := s.client.Send(ctx, bundle); err != nil {
		return errors.Wrap(err, "cancel request failed")
	}

	return s.repo.UpdateSubmissionStatus(ctx, submissionID, models.SubmissionStatusCancelled)
}

// Resubmit submits a corrected version of an earlier submission. The new
// submission points back at its predecessor by identifier and by row, and the
// predecessor moves to superseded once the new one is accepted on the wire.
func (s *ExchangeSession) Resubmit(ctx context.Context, predecessorID uint, in models.SubmissionInput) (*SubmissionHandle, error) {
	predecessor, err := s.repo.GetSubmissionByID(ctx, predecessorID)
	if err != nil {
		return nil, err
	}

	in.PredecessorID = &predecessor.ID
	if in.Related == nil {
		in.Related = &models.RelatedClaimInput{
			IdentifierSystem: predecessor.SubmissionSystem,
			IdentifierValue:  predecessor.SubmissionValue,
			Relationship:     "prior",
		}
	}

	handle, err := s.Submit(ctx, predecessor.ClaimType, in)
	if err != nil {
		return handle, err
	}

	if err := s.repo.UpdateSubmissionStatus(ctx, predecessor.ID, models.SubmissionStatusSuperseded); err != nil {
		s.logger.WithError(err).WithField("submission_id", predecessor.ID).
			Warn("failed to mark predecessor superseded")
	}

	return handle, nil
}

func (s *ExchangeSession) mapperConfig() mapper.Config {
	return mapper.Config{
		SourceEndpoint:   s.cfg.SourceEndpoint,
		ExchangeEndpoint: s.cfg.ExchangeEndpoint,
		Rules:            s.rules,
	}
}
