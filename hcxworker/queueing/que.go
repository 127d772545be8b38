package queueing

import (
	"context"
	"encoding/json"
	goerrors "errors"
	"time"

	"github.com/bgentry/que-go"
	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgx"
	"github.com/sirupsen/logrus"

	"github.com/hayat-his/hcx-app/conf"
	"github.com/hayat-his/hcx-app/hcx/constants"
	"github.com/hayat-his/hcx-app/hcx/database"
	"github.com/hayat-his/hcx-app/hcx/models"
	"github.com/hayat-his/hcx-app/hcx/session"
	"github.com/hayat-his/hcx-app/hcxworker/worker"
	"github.com/hayat-his/hcx-app/log"
)

// queue retrieves poll jobs with the que client and delegates the work to the
// underlying worker.
type queue struct {
	quePool           *que.WorkerPool
	pool              *pgx.ConnPool
	healthCheckCancel context.CancelFunc

	worker   worker.Worker
	enqueuer Enqueuer
	logger   logrus.FieldLogger

	// repollInterval seeds the backoff used to space out re-polls of a
	// still-pending submission.
	repollInterval time.Duration
	maxRepolls     int
}

// StartQue creates a que-go client and begins listening for poll jobs. It
// returns immediately; the worker pool runs in its own goroutines.
func StartQue(queueDatabaseURL string, numWorkers int) *queue {
	w, err := worker.NewWorker(database.GetDbConnection())
	if err != nil {
		log.Worker.Fatal(err)
	}

	q := &queue{
		worker:         w,
		logger:         log.Worker,
		repollInterval: time.Duration(conf.GetEnvInt("HCX_REPOLL_INTERVAL_SEC", 30)) * time.Second,
		maxRepolls:     conf.GetEnvInt("HCX_MAX_REPOLLS", 20),
	}

	cfg, err := pgx.ParseURI(queueDatabaseURL)
	if err != nil {
		log.Worker.Fatal(err)
	}

	q.pool, err = pgx.NewConnPool(pgx.ConnPoolConfig{
		ConnConfig:   cfg,
		AfterConnect: que.PrepareStatements,
	})
	if err != nil {
		log.Worker.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	q.healthCheckCancel = cancel
	database.StartHealthCheck(ctx, q.pool, 10*time.Second)

	qc := que.NewClient(q.pool)
	q.enqueuer = queEnqueuer{client: qc}
	wm := que.WorkMap{
		constants.QuePollSubmission: q.processPollJob,
	}

	q.quePool = que.NewWorkerPool(qc, wm, numWorkers)
	q.quePool.Start()

	return q
}

// StopQue cleans up any resources created
func (q *queue) StopQue() {
	q.healthCheckCancel()
	q.quePool.Shutdown()
	q.pool.Close()
}

func (q *queue) processPollJob(job *que.Job) error {
	ctx := context.Background()

	var args models.PollEnqueueArgs
	if err := json.Unmarshal(job.Args, &args); err != nil {
		// ACK the job because retrying it won't help us deserialize the data
		q.logger.WithError(err).Error("removing poll job with undecodable args from queue")
		return nil
	}

	logger := q.logger.WithField("submission_id", args.SubmissionID)

	outcome, err := q.worker.ProcessPoll(ctx, args)
	if goerrors.Is(err, worker.ErrSubmissionNotFound) {
		maxNotFoundRetries := int32(conf.GetEnvInt("HCX_MAX_SUBMISSION_NOT_FOUND_RETRIES", 3))
		if job.ErrorCount >= maxNotFoundRetries {
			logger.Error("no submission found for poll job, retries exhausted, removing job from queue")
			return nil
		}
		logger.Warn("no submission found for poll job, will retry")
		return err
	} else if goerrors.Is(err, worker.ErrSubmissionFinal) {
		// Nothing left to poll for.
		return nil
	} else if err != nil {
		// Poll sends are idempotent, so let que-go retry with its backoff.
		return err
	}

	q.scheduleRepoll(args, outcome, logger)
	return nil
}

// scheduleRepoll keeps a still-pending submission on the poll loop, spacing
// rounds out exponentially. Terminal submissions and exhausted loops drop off;
// an acknowledged communication resets the spacing since the counterparty is
// actively talking to us again.
func (q *queue) scheduleRepoll(args models.PollEnqueueArgs, outcome *session.PollOutcome, logger logrus.FieldLogger) {
	if outcome == nil || outcome.Status.Terminal() {
		return
	}
	if outcome.Status == models.SubmissionStatusError {
		// Parked for the user; re-polling cannot advance it.
		return
	}

	attempt := args.Attempt + 1
	if len(outcome.AckedCommunicationIDs) > 0 || len(outcome.InformationRequestIDs) > 0 {
		attempt = 1
	}
	if attempt > q.maxRepolls {
		logger.Warn("re-poll budget exhausted, submission left for manual polling")
		return
	}

	next := models.PollEnqueueArgs{SubmissionID: args.SubmissionID, Attempt: attempt}
	delay := repollDelay(q.repollInterval, attempt)
	if err := q.enqueuer.AddPollJob(next, time.Now().Add(delay)); err != nil {
		logger.WithError(err).Error("failed to schedule re-poll")
		return
	}

	logger.WithFields(logrus.Fields{"attempt": attempt, "delay": delay}).Info("re-poll scheduled")
}

// repollDelay walks an exponential backoff out to the given attempt.
func repollDelay(initial time.Duration, attempt int) time.Duration {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = initial
	b.MaxInterval = 30 * time.Minute
	b.MaxElapsedTime = 0

	delay := b.NextBackOff()
	for i := 1; i < attempt; i++ {
		delay = b.NextBackOff()
	}
	return delay
}
