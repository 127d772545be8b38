package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"

	"github.com/hayat-his/hcx-app/hcx/models"
)

type RepositoryTestSuite struct {
	suite.Suite
}

func TestRepositoryTestSuite(t *testing.T) {
	suite.Run(t, new(RepositoryTestSuite))
}

func (r *RepositoryTestSuite) TestCreateSubmission() {
	db, mock, err := sqlmock.New()
	assert.NoError(r.T(), err)
	defer func() {
		assert.NoError(r.T(), mock.ExpectationsWereMet())
		db.Close()
	}()
	repository := NewRepository(db)

	submission := &models.Submission{
		SubmissionSystem: "http://provider.hayat-his.sa/authorization",
		SubmissionValue:  "req-1001",
		ClaimType:        models.ClaimTypeProfessional,
		Use:              models.UsePreAuth,
		Status:           models.SubmissionStatusDraft,
		RequestSnapshot:  []byte(`{"resourceType":"Bundle"}`),
	}

	mock.ExpectQuery(`INSERT INTO submissions`).
		WithArgs(submission.SubmissionSystem, submission.SubmissionValue, string(submission.ClaimType),
			string(submission.Use), string(submission.Status), submission.RequestSnapshot,
			"", "", nil).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(42))

	id, err := repository.CreateSubmission(context.Background(), submission)
	assert.NoError(r.T(), err)
	assert.Equal(r.T(), uint(42), id)
}

func (r *RepositoryTestSuite) TestGetSubmissionByID() {
	tests := []struct {
		name        string
		errToReturn error
		expErr      error
	}{
		{"HappyPath", nil, nil},
		{"NoRows", sql.ErrNoRows, models.ErrSubmissionNotFound},
		{"QueryError", fmt.Errorf("some SQL error"), fmt.Errorf("some SQL error")},
	}

	expQuery := `SELECT id, submission_system, submission_value, claim_type, claim_use, status, request_snapshot, correlation_id, last_error, predecessor_id, created_at, updated_at FROM submissions WHERE id = $1`

	for _, tt := range tests {
		r.T().Run(tt.name, func(t *testing.T) {
			db, mock, err := sqlmock.New()
			assert.NoError(t, err)
			defer func() {
				assert.NoError(t, mock.ExpectationsWereMet())
				db.Close()
			}()
			repository := NewRepository(db)

			query := mock.ExpectQuery(fmt.Sprintf("^%s$", regexp.QuoteMeta(expQuery))).WithArgs(7)
			if tt.errToReturn != nil {
				query.WillReturnError(tt.errToReturn)
			} else {
				query.WillReturnRows(sqlmock.NewRows(submissionColumns).
					AddRow(7, "http://provider.hayat-his.sa/authorization", "req-1001", "professional",
						"preauthorization", "queued", []byte(`{}`), "corr-1", "", nil, nil, nil))
			}

			submission, err := repository.GetSubmissionByID(context.Background(), 7)
			if tt.expErr != nil {
				assert.EqualError(t, err, tt.expErr.Error())
				assert.Nil(t, submission)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, uint(7), submission.ID)
			assert.Equal(t, models.SubmissionStatusQueued, submission.Status)
			assert.Equal(t, "corr-1", submission.CorrelationID)
			assert.Nil(t, submission.PredecessorID)
		})
	}
}

func (r *RepositoryTestSuite) TestGetSubmissionByIdentifier() {
	db, mock, err := sqlmock.New()
	assert.NoError(r.T(), err)
	defer func() {
		assert.NoError(r.T(), mock.ExpectationsWereMet())
		db.Close()
	}()
	repository := NewRepository(db)

	expQuery := `SELECT id, submission_system, submission_value, claim_type, claim_use, status, request_snapshot, correlation_id, last_error, predecessor_id, created_at, updated_at FROM submissions WHERE submission_system = $1 AND submission_value = $2 ORDER BY id DESC LIMIT 1`
	mock.ExpectQuery(fmt.Sprintf("^%s$", regexp.QuoteMeta(expQuery))).
		WithArgs("http://provider.hayat-his.sa/authorization", "req-1001").
		WillReturnRows(sqlmock.NewRows(submissionColumns).
			AddRow(9, "http://provider.hayat-his.sa/authorization", "req-1001", "oral",
				"claim", "polling", []byte(`{}`), "", "", 3, nil, nil))

	submission, err := repository.GetSubmissionByIdentifier(context.Background(),
		"http://provider.hayat-his.sa/authorization", "req-1001")
	assert.NoError(r.T(), err)
	assert.Equal(r.T(), uint(9), submission.ID)
	assert.Equal(r.T(), models.ClaimTypeOral, submission.ClaimType)
	if assert.NotNil(r.T(), submission.PredecessorID) {
		assert.Equal(r.T(), uint(3), *submission.PredecessorID)
	}
}

func (r *RepositoryTestSuite) TestGetPendingSubmissions() {
	db, mock, err := sqlmock.New()
	assert.NoError(r.T(), err)
	defer func() {
		assert.NoError(r.T(), mock.ExpectationsWereMet())
		db.Close()
	}()
	repository := NewRepository(db)

	mock.ExpectQuery(`SELECT .+ FROM submissions WHERE status IN \(\$1, \$2\) ORDER BY id`).
		WithArgs("queued", "polling").
		WillReturnRows(sqlmock.NewRows(submissionColumns).
			AddRow(1, "sys", "a", "professional", "preauthorization", "queued", []byte(`{}`), "", "", nil, nil, nil).
			AddRow(2, "sys", "b", "vision", "claim", "polling", []byte(`{}`), "", "", nil, nil, nil))

	pending, err := repository.GetPendingSubmissions(context.Background())
	assert.NoError(r.T(), err)
	assert.Len(r.T(), pending, 2)
	assert.Equal(r.T(), models.SubmissionStatusQueued, pending[0].Status)
	assert.Equal(r.T(), models.SubmissionStatusPolling, pending[1].Status)
}

func (r *RepositoryTestSuite) TestUpdateSubmissionStatusCheckStatus() {
	tests := []struct {
		name         string
		rowsAffected int64
		expErr       error
	}{
		{"Updated", 1, nil},
		{"NoMatch", 0, models.ErrSubmissionNotUpdated},
	}

	for _, tt := range tests {
		r.T().Run(tt.name, func(t *testing.T) {
			db, mock, err := sqlmock.New()
			assert.NoError(t, err)
			defer func() {
				assert.NoError(t, mock.ExpectationsWereMet())
				db.Close()
			}()
			repository := NewRepository(db)

			mock.ExpectExec(`UPDATE submissions SET .+ WHERE .+`).
				WillReturnResult(sqlmock.NewResult(0, tt.rowsAffected))

			err = repository.UpdateSubmissionStatusCheckStatus(context.Background(), 7,
				models.SubmissionStatusQueued, models.SubmissionStatusPolling)
			if tt.expErr != nil {
				assert.ErrorIs(t, err, tt.expErr)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func (r *RepositoryTestSuite) TestUpdateSubmissionFailure() {
	db, mock, err := sqlmock.New()
	assert.NoError(r.T(), err)
	defer func() {
		assert.NoError(r.T(), mock.ExpectationsWereMet())
		db.Close()
	}()
	repository := NewRepository(db)

	mock.ExpectExec(`UPDATE submissions SET .+ WHERE .+`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err = repository.UpdateSubmissionFailure(context.Background(), 7, `{"resourceType":"OperationOutcome"}`)
	assert.NoError(r.T(), err)
}

func (r *RepositoryTestSuite) TestCreateAdjudication() {
	db, mock, err := sqlmock.New()
	assert.NoError(r.T(), err)
	defer func() {
		assert.NoError(r.T(), mock.ExpectationsWereMet())
		db.Close()
	}()
	repository := NewRepository(db)

	result := &models.AdjudicationResult{
		SubmissionID:     7,
		Outcome:          models.OutcomeComplete,
		Decision:         models.DecisionApproved,
		AuthorizationRef: "auth-99",
		TotalBenefit:     205,
		Currency:         "SAR",
		Items: []models.LineAdjudication{
			{ItemSequence: 1, Status: "approved", Amount: 205, Currency: "SAR"},
		},
	}

	mock.ExpectQuery(`INSERT INTO adjudications`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(11))
	mock.ExpectExec(`INSERT INTO line_adjudications`).
		WithArgs(11, 1, "approved", 205.0, "SAR", "", "").
		WillReturnResult(sqlmock.NewResult(0, 1))

	id, err := repository.CreateAdjudication(context.Background(), result)
	assert.NoError(r.T(), err)
	assert.Equal(r.T(), uint(11), id)
}

func (r *RepositoryTestSuite) TestGetLatestAdjudication() {
	tests := []struct {
		name  string
		found bool
	}{
		{"HappyPath", true},
		{"NoRows", false},
	}

	for _, tt := range tests {
		r.T().Run(tt.name, func(t *testing.T) {
			db, mock, err := sqlmock.New()
			assert.NoError(t, err)
			defer func() {
				assert.NoError(t, mock.ExpectationsWereMet())
				db.Close()
			}()
			repository := NewRepository(db)

			query := mock.ExpectQuery(`SELECT .+ FROM adjudications WHERE submission_id = \$1 ORDER BY id DESC LIMIT 1`).
				WithArgs(7)
			if !tt.found {
				query.WillReturnError(sql.ErrNoRows)
			} else {
				query.WillReturnRows(sqlmock.NewRows([]string{"id", "submission_id", "outcome", "disposition",
					"decision", "authorization_ref", "period_start", "period_end", "total_eligible",
					"total_benefit", "total_copay", "currency", "created_at"}).
					AddRow(11, 7, "complete", "approved", "approved", "auth-99", nil, nil, 250.0, 205.0, 45.0, "SAR", nil))
				mock.ExpectQuery(`SELECT .+ FROM line_adjudications WHERE adjudication_id = \$1 ORDER BY item_sequence`).
					WithArgs(11).
					WillReturnRows(sqlmock.NewRows([]string{"id", "adjudication_id", "item_sequence", "status",
						"amount", "currency", "reason_code", "reason_text"}).
						AddRow(1, 11, 1, "approved", 205.0, "SAR", "", ""))
			}

			result, err := repository.GetLatestAdjudication(context.Background(), 7)
			assert.NoError(t, err)
			if !tt.found {
				assert.Nil(t, result)
				return
			}
			assert.Equal(t, models.DecisionApproved, result.Decision)
			assert.Equal(t, 205.0, result.TotalBenefit)
			assert.Len(t, result.Items, 1)
		})
	}
}

func (r *RepositoryTestSuite) TestInformationRequestLifecycle() {
	db, mock, err := sqlmock.New()
	assert.NoError(r.T(), err)
	defer func() {
		assert.NoError(r.T(), mock.ExpectationsWereMet())
		db.Close()
	}()
	repository := NewRepository(db)

	mock.ExpectQuery(`INSERT INTO information_requests`).
		WithArgs(7, "cr-55", "please attach the radiology report", false, nil).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(3))

	id, err := repository.CreateInformationRequest(context.Background(), &models.InformationRequest{
		SubmissionID: 7,
		RequestID:    "cr-55",
		Payload:      "please attach the radiology report",
	})
	assert.NoError(r.T(), err)
	assert.Equal(r.T(), uint(3), id)

	mock.ExpectQuery(`SELECT .+ FROM information_requests WHERE submission_id = \$1 AND request_id = \$2`).
		WithArgs(7, "cr-55").
		WillReturnRows(sqlmock.NewRows(informationRequestColumns).
			AddRow(3, 7, "cr-55", "please attach the radiology report", false, nil, nil, nil))

	req, err := repository.GetInformationRequestByRequestID(context.Background(), 7, "cr-55")
	assert.NoError(r.T(), err)
	assert.False(r.T(), req.Responded)

	mock.ExpectExec(`UPDATE information_requests SET .+ WHERE id = \$\d`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	assert.NoError(r.T(), repository.MarkInformationRequestResponded(context.Background(), 3, 12))
}

func (r *RepositoryTestSuite) TestGetInformationRequestByRequestIDNotFound() {
	db, mock, err := sqlmock.New()
	assert.NoError(r.T(), err)
	defer func() {
		assert.NoError(r.T(), mock.ExpectationsWereMet())
		db.Close()
	}()
	repository := NewRepository(db)

	mock.ExpectQuery(`SELECT .+ FROM information_requests`).
		WillReturnError(sql.ErrNoRows)

	req, err := repository.GetInformationRequestByRequestID(context.Background(), 7, "cr-nope")
	assert.NoError(r.T(), err)
	assert.Nil(r.T(), req)
}

func (r *RepositoryTestSuite) TestCommunicationPayloadRoundTrip() {
	db, mock, err := sqlmock.New()
	assert.NoError(r.T(), err)
	defer func() {
		assert.NoError(r.T(), mock.ExpectationsWereMet())
		db.Close()
	}()
	repository := NewRepository(db)

	mock.ExpectQuery(`INSERT INTO communications`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(12))

	id, err := repository.CreateCommunication(context.Background(), &models.Communication{
		SubmissionID:    7,
		IdentifierValue: "comm-12",
		Payloads: []models.CommunicationPayload{
			{Text: "radiology report attached"},
			{ContentType: "application/pdf", Data: "JVBERi0=", Title: "report.pdf"},
		},
		Status: models.CommunicationSent,
	})
	assert.NoError(r.T(), err)
	assert.Equal(r.T(), uint(12), id)

	payloads := `[{"Text":"radiology report attached","ContentType":"","Data":"","Title":""},{"Text":"","ContentType":"application/pdf","Data":"JVBERi0=","Title":"report.pdf"}]`
	mock.ExpectQuery(`SELECT .+ FROM communications WHERE id = \$1`).
		WithArgs(12).
		WillReturnRows(sqlmock.NewRows([]string{"id", "submission_id", "identifier_value",
			"solicited_request_id", "payloads", "status", "created_at", "updated_at"}).
			AddRow(12, 7, "comm-12", nil, []byte(payloads), "sent", nil, nil))

	c, err := repository.GetCommunicationByID(context.Background(), 12)
	assert.NoError(r.T(), err)
	assert.Len(r.T(), c.Payloads, 2)
	assert.Equal(r.T(), "radiology report attached", c.Payloads[0].Text)
	assert.Equal(r.T(), "report.pdf", c.Payloads[1].Title)

	mock.ExpectExec(`UPDATE communications SET .+ WHERE id = \$\d`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	assert.NoError(r.T(), repository.UpdateCommunicationStatus(context.Background(), 12, models.CommunicationAcked))
}

func (r *RepositoryTestSuite) TestCreateUnmatchedResponse() {
	db, mock, err := sqlmock.New()
	assert.NoError(r.T(), err)
	defer func() {
		assert.NoError(r.T(), mock.ExpectationsWereMet())
		db.Close()
	}()
	repository := NewRepository(db)

	mock.ExpectExec(`INSERT INTO unmatched_responses`).
		WithArgs("http://other-provider.sa/authorization", "req-9999", "ClaimResponse", []byte(`{}`)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err = repository.CreateUnmatchedResponse(context.Background(), &models.UnmatchedResponse{
		IdentifierSystem: "http://other-provider.sa/authorization",
		IdentifierValue:  "req-9999",
		ResourceType:     "ClaimResponse",
		Raw:              []byte(`{}`),
	})
	assert.NoError(r.T(), err)
}
