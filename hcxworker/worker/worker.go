// Package worker runs one submission poll as an isolated unit of work: it
// validates the parent submission, serializes on a per-submission advisory
// lock, and applies the poll outcome inside a single transaction.
package worker

import (
	"context"
	"database/sql"
	goerrors "errors"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/hayat-his/hcx-app/hcx/client"
	"github.com/hayat-his/hcx-app/hcx/models"
	"github.com/hayat-his/hcx-app/hcx/models/postgres"
	"github.com/hayat-his/hcx-app/hcx/session"
	"github.com/hayat-his/hcx-app/log"
)

var (
	// ErrSubmissionNotFound means the job references a submission that is not
	// in the database (yet, or anymore).
	ErrSubmissionNotFound = goerrors.New("no submission found for poll job")

	// ErrSubmissionFinal means the submission is terminal or cancelled and the
	// job has nothing left to do.
	ErrSubmissionFinal = goerrors.New("submission is in a final state")
)

type Worker interface {
	ProcessPoll(ctx context.Context, args models.PollEnqueueArgs) (*session.PollOutcome, error)
}

type worker struct {
	db      *sql.DB
	session *session.ExchangeSession
	logger  logrus.FieldLogger

	// txRepo builds the transaction-scoped repository the poll writes
	// through. Swappable in tests.
	txRepo func(tx *sql.Tx) models.Repository
}

// NewWorker wires a worker from environment configuration.
func NewWorker(db *sql.DB) (Worker, error) {
	sessionCfg, err := session.LoadConfig()
	if err != nil {
		return nil, errors.Wrap(err, "failed to load session configuration")
	}
	clientCfg, err := client.LoadConfig()
	if err != nil {
		return nil, errors.Wrap(err, "failed to load exchange client configuration")
	}

	sess, err := session.New(*sessionCfg, postgres.NewRepository(db), client.NewExchangeClient(clientCfg))
	if err != nil {
		return nil, err
	}

	return newWorker(db, sess), nil
}

func newWorker(db *sql.DB, sess *session.ExchangeSession) *worker {
	return &worker{
		db:      db,
		session: sess,
		logger:  log.Worker,
		txRepo:  func(tx *sql.Tx) models.Repository { return postgres.NewRepositoryTx(tx) },
	}
}

// ProcessPoll validates the submission and runs one poll round in a
// transaction. No two pollers run for the same submission concurrently: the
// advisory lock is held for the transaction's lifetime, so a concurrent job
// blocks until this one has fully committed.
func (w *worker) ProcessPoll(ctx context.Context, args models.PollEnqueueArgs) (*session.PollOutcome, error) {
	logger := w.logger.WithField("submission_id", args.SubmissionID)

	submission, err := w.session.GetSubmission(ctx, args.SubmissionID)
	if goerrors.Is(err, models.ErrSubmissionNotFound) {
		return nil, ErrSubmissionNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to load submission for poll job")
	}
	if submission.Status.Terminal() {
		logger.WithField("status", submission.Status).Info("submission final, poll job dropped")
		return nil, ErrSubmissionFinal
	}

	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to begin poll transaction")
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !goerrors.Is(rbErr, sql.ErrTxDone) {
				logger.WithError(rbErr).Error("failed to roll back poll transaction")
			}
		}
	}()

	if _, err = tx.ExecContext(ctx, "SELECT pg_advisory_xact_lock($1)", int64(args.SubmissionID)); err != nil {
		return nil, errors.Wrap(err, "failed to take submission advisory lock")
	}

	outcome, err := w.session.WithRepository(w.txRepo(tx)).Poll(ctx, args.SubmissionID)
	if err != nil {
		return nil, err
	}

	if err = tx.Commit(); err != nil {
		return nil, errors.Wrap(err, "failed to commit poll transaction")
	}

	return outcome, nil
}
