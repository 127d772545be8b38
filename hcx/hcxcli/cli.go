// Package hcxcli assembles the command line surface: serving the HTTP facade,
// one-shot submission and poll commands for operators, and schema migrations.
package hcxcli

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/bgentry/que-go"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jackc/pgx"
	"github.com/pkg/errors"
	"github.com/urfave/cli"

	"github.com/hayat-his/hcx-app/conf"
	"github.com/hayat-his/hcx-app/hcx/client"
	"github.com/hayat-his/hcx-app/hcx/constants"
	"github.com/hayat-his/hcx-app/hcx/database"
	"github.com/hayat-his/hcx-app/hcx/models"
	"github.com/hayat-his/hcx-app/hcx/models/postgres"
	"github.com/hayat-his/hcx-app/hcx/session"
	"github.com/hayat-his/hcx-app/hcx/web"
	"github.com/hayat-his/hcx-app/hcxworker/queueing"
	"github.com/hayat-his/hcx-app/hcxworker/worker"
	"github.com/hayat-his/hcx-app/log"
)

// App Name and usage.  Edit them here to prevent breaking tests
const Name = "hcx"
const Usage = "Healthcare Claims Exchange CLI"

func GetApp() *cli.App {
	return setUpApp()
}

func newSession(db *sql.DB) (*session.ExchangeSession, error) {
	sessionCfg, err := session.LoadConfig()
	if err != nil {
		return nil, err
	}
	clientCfg, err := client.LoadConfig()
	if err != nil {
		return nil, err
	}
	sess, err := session.New(*sessionCfg, postgres.NewRepository(db), client.NewExchangeClient(clientCfg))
	if err != nil {
		return nil, err
	}
	// Final reply applies run in their own transaction.
	return sess.WithDatabase(db), nil
}

func newQueuePool() (*pgx.ConnPool, error) {
	pgxcfg, err := pgx.ParseURI(conf.GetEnv("QUEUE_DATABASE_URL"))
	if err != nil {
		return nil, err
	}
	return pgx.NewConnPool(pgx.ConnPoolConfig{
		ConnConfig:   pgxcfg,
		AfterConnect: que.PrepareStatements,
	})
}

func readInput(path string) (models.SubmissionInput, error) {
	var in models.SubmissionInput
	raw, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return in, errors.Wrap(err, "could not read input file")
	}
	if err := json.Unmarshal(raw, &in); err != nil {
		return in, errors.Wrap(err, "could not parse input file")
	}
	return in, nil
}

func setUpApp() *cli.App {
	app := cli.NewApp()
	app.Name = Name
	app.Usage = Usage
	app.Version = constants.Version
	var claimType, inputFile, text, migrationDir, databaseURL string
	var submissionID, requestID uint
	app.Commands = []cli.Command{
		{
			Name:  "start-api",
			Usage: "Start the API",
			Action: func(c *cli.Context) error {
				pool, err := newQueuePool()
				if err != nil {
					return err
				}
				defer pool.Close()

				db := database.GetDbConnection()
				sess, err := newSession(db)
				if err != nil {
					return err
				}

				fmt.Fprintf(app.Writer, "%s\n", "Starting hcx...")
				srv := &http.Server{
					Handler:      web.NewAPI(sess, queueing.NewEnqueuer(pool), db).NewRouter(),
					Addr:         fmt.Sprintf(":%d", conf.GetEnvInt("HCX_API_PORT", 3000)),
					ReadTimeout:  time.Duration(conf.GetEnvInt("API_READ_TIMEOUT", 10)) * time.Second,
					WriteTimeout: time.Duration(conf.GetEnvInt("API_WRITE_TIMEOUT", 20)) * time.Second,
					IdleTimeout:  time.Duration(conf.GetEnvInt("API_IDLE_TIMEOUT", 120)) * time.Second,
				}
				return srv.ListenAndServe()
			},
		},
		{
			Name:     "submit",
			Category: "Exchange tools",
			Usage:    "Build and submit one request from a JSON input file",
			Flags: []cli.Flag{
				cli.StringFlag{
					Name:        "type",
					Usage:       "Claim sub-type (professional, oral, vision, institutional, pharmacy)",
					Destination: &claimType,
				},
				cli.StringFlag{
					Name:        "input-file",
					Usage:       "Path to the submission input JSON",
					Destination: &inputFile,
				},
			},
			Action: func(c *cli.Context) error {
				in, err := readInput(inputFile)
				if err != nil {
					return err
				}
				db := database.GetDbConnection()
				defer db.Close()
				sess, err := newSession(db)
				if err != nil {
					return err
				}
				handle, err := sess.Submit(context.Background(), models.ClaimType(claimType), in)
				if err != nil {
					return err
				}
				fmt.Fprintf(app.Writer, "submission %d is %s\n", handle.ID, handle.Status)
				return nil
			},
		},
		{
			Name:     "resubmit",
			Category: "Exchange tools",
			Usage:    "Submit a corrected version of an earlier submission",
			Flags: []cli.Flag{
				cli.UintFlag{
					Name:        "submission-id",
					Usage:       "ID of the submission being corrected",
					Destination: &submissionID,
				},
				cli.StringFlag{
					Name:        "input-file",
					Usage:       "Path to the corrected input JSON",
					Destination: &inputFile,
				},
			},
			Action: func(c *cli.Context) error {
				in, err := readInput(inputFile)
				if err != nil {
					return err
				}
				db := database.GetDbConnection()
				defer db.Close()
				sess, err := newSession(db)
				if err != nil {
					return err
				}
				handle, err := sess.Resubmit(context.Background(), submissionID, in)
				if err != nil {
					return err
				}
				fmt.Fprintf(app.Writer, "submission %d is %s\n", handle.ID, handle.Status)
				return nil
			},
		},
		{
			Name:     "poll",
			Category: "Exchange tools",
			Usage:    "Run one poll round for a submission, synchronously",
			Flags: []cli.Flag{
				cli.UintFlag{
					Name:        "submission-id",
					Destination: &submissionID,
				},
			},
			Action: func(c *cli.Context) error {
				db := database.GetDbConnection()
				defer db.Close()
				w, err := worker.NewWorker(db)
				if err != nil {
					return err
				}
				// Same transactional, advisory-locked path the queue workers run.
				outcome, err := w.ProcessPoll(context.Background(), models.PollEnqueueArgs{SubmissionID: submissionID})
				if errors.Is(err, worker.ErrSubmissionFinal) {
					fmt.Fprintf(app.Writer, "submission %d is already final\n", submissionID)
					return nil
				}
				if err != nil {
					return err
				}
				fmt.Fprintf(app.Writer, "submission %d is %s (applied=%t, unmatched=%d)\n",
					submissionID, outcome.Status, outcome.Applied, outcome.Unmatched)
				return nil
			},
		},
		{
			Name:     "poll-pending",
			Category: "Exchange tools",
			Usage:    "Queue a poll job for every submission still waiting on the exchange",
			Action: func(c *cli.Context) error {
				pool, err := newQueuePool()
				if err != nil {
					return err
				}
				defer pool.Close()
				enqueuer := queueing.NewEnqueuer(pool)

				db := database.GetDbConnection()
				defer db.Close()
				sess, err := newSession(db)
				if err != nil {
					return err
				}

				pending, err := sess.GetPendingSubmissions(context.Background())
				if err != nil {
					return err
				}
				for _, submission := range pending {
					if err := enqueuer.AddPollJob(models.PollEnqueueArgs{SubmissionID: submission.ID}, time.Time{}); err != nil {
						return err
					}
				}
				fmt.Fprintf(app.Writer, "queued %d poll jobs\n", len(pending))
				return nil
			},
		},
		{
			Name:     "cancel",
			Category: "Exchange tools",
			Usage:    "Ask the exchange to withdraw a pending submission",
			Flags: []cli.Flag{
				cli.UintFlag{
					Name:        "submission-id",
					Destination: &submissionID,
				},
			},
			Action: func(c *cli.Context) error {
				db := database.GetDbConnection()
				defer db.Close()
				sess, err := newSession(db)
				if err != nil {
					return err
				}
				if err := sess.Cancel(context.Background(), submissionID); err != nil {
					return err
				}
				fmt.Fprintf(app.Writer, "submission %d cancelled\n", submissionID)
				return nil
			},
		},
		{
			Name:     "send-communication",
			Category: "Exchange tools",
			Usage:    "Send a free-text communication about a pending submission",
			Flags: []cli.Flag{
				cli.UintFlag{
					Name:        "submission-id",
					Destination: &submissionID,
				},
				cli.StringFlag{
					Name:        "text",
					Usage:       "Message text",
					Destination: &text,
				},
				cli.UintFlag{
					Name:        "request-id",
					Usage:       "Information request being answered, when solicited",
					Destination: &requestID,
				},
			},
			Action: func(c *cli.Context) error {
				db := database.GetDbConnection()
				defer db.Close()
				sess, err := newSession(db)
				if err != nil {
					return err
				}
				var solicited *uint
				if requestID != 0 {
					solicited = &requestID
				}
				handle, err := sess.SendCommunication(context.Background(), submissionID,
					[]models.CommunicationPayload{{Text: text}}, solicited)
				if err != nil {
					return err
				}
				fmt.Fprintf(app.Writer, "communication %d is %s\n", handle.ID, handle.Status)
				return nil
			},
		},
		{
			Name:     "get-adjudication",
			Category: "Exchange tools",
			Usage:    "Print the latest stored adjudication for a submission",
			Flags: []cli.Flag{
				cli.UintFlag{
					Name:        "submission-id",
					Destination: &submissionID,
				},
			},
			Action: func(c *cli.Context) error {
				db := database.GetDbConnection()
				defer db.Close()
				sess, err := newSession(db)
				if err != nil {
					return err
				}
				result, err := sess.GetAdjudication(context.Background(), submissionID)
				if err != nil {
					return err
				}
				if result == nil {
					fmt.Fprintf(app.Writer, "submission %d has no adjudication yet\n", submissionID)
					return nil
				}
				raw, err := json.MarshalIndent(result, "", "  ")
				if err != nil {
					return err
				}
				fmt.Fprintf(app.Writer, "%s\n", raw)
				return nil
			},
		},
		{
			Name:     "migrate",
			Category: "Database tools",
			Usage:    "Apply schema migrations",
			Flags: []cli.Flag{
				cli.StringFlag{
					Name:        "migration-dir",
					Usage:       "Migration source directory, e.g. db/migrations/hcx",
					Destination: &migrationDir,
				},
				cli.StringFlag{
					Name:        "database-url",
					Usage:       "Target database URL; defaults to DATABASE_URL",
					Destination: &databaseURL,
				},
			},
			Action: func(c *cli.Context) error {
				if databaseURL == "" {
					databaseURL = conf.GetEnv("DATABASE_URL")
				}
				m, err := migrate.New("file://"+migrationDir, databaseURL)
				if err != nil {
					return err
				}
				defer m.Close()
				if err := m.Up(); err != nil && err != migrate.ErrNoChange {
					return err
				}
				log.API.Info("migrations applied")
				return nil
			},
		},
	}
	return app
}
