// Package queueing owns the background poll queue: enqueuing poll jobs and
// running the worker pool that drains them.
package queueing

import (
	"encoding/json"
	"time"

	"github.com/bgentry/que-go"
	"github.com/jackc/pgx"
	"github.com/pkg/errors"

	"github.com/hayat-his/hcx-app/hcx/constants"
	"github.com/hayat-his/hcx-app/hcx/models"
)

// Enqueuer only handles inserting poll jobs into the queue table; the worker
// pool picks them up from there.
type Enqueuer interface {
	// AddPollJob schedules a poll round for a submission. A non-zero runAt
	// defers the job until that time.
	AddPollJob(args models.PollEnqueueArgs, runAt time.Time) error
}

func NewEnqueuer(pool *pgx.ConnPool) Enqueuer {
	return queEnqueuer{client: que.NewClient(pool)}
}

type queEnqueuer struct {
	client *que.Client
}

func (q queEnqueuer) AddPollJob(args models.PollEnqueueArgs, runAt time.Time) error {
	argsJSON, err := json.Marshal(args)
	if err != nil {
		return errors.Wrap(err, "failed to marshal poll job args")
	}

	job := &que.Job{
		Type: constants.QuePollSubmission,
		Args: argsJSON,
	}
	if !runAt.IsZero() {
		job.RunAt = runAt
	}

	return q.client.Enqueue(job)
}
