package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/huandu/go-sqlbuilder"

	"github.com/hayat-his/hcx-app/hcx/models"
)

type queryable interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

type executable interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

const (
	sqlFlavor = sqlbuilder.PostgreSQL
)

// Ensure Repository satisfies the interface
var _ models.Repository = &Repository{}

type Repository struct {
	queryable
	executable
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db, db}
}

// NewRepositoryTx scopes the repository to a transaction. The poll-and-apply
// path uses this so the adjudication rows and the status transition land (or
// roll back) together.
func NewRepositoryTx(tx *sql.Tx) *Repository {
	return &Repository{tx, tx}
}

var submissionColumns = []string{"id", "submission_system", "submission_value", "claim_type", "claim_use",
	"status", "request_snapshot", "correlation_id", "last_error", "predecessor_id", "created_at", "updated_at"}

func (r *Repository) CreateSubmission(ctx context.Context, s *models.Submission) (uint, error) {
	query, args := sqlbuilder.Buildf(`INSERT INTO submissions
		(submission_system, submission_value, claim_type, claim_use, status,
			request_snapshot, correlation_id, last_error, predecessor_id, created_at, updated_at) VALUES
		(%s, %s, %s, %s, %s, %s, %s, %s, %s, NOW(), NOW()) RETURNING id`,
		s.SubmissionSystem, s.SubmissionValue, s.ClaimType, s.Use, s.Status,
		s.RequestSnapshot, s.CorrelationID, s.LastError, s.PredecessorID).
		BuildWithFlavor(sqlFlavor)

	var id uint
	if err := r.QueryRowContext(ctx, query, args...).Scan(&id); err != nil {
		return 0, err
	}

	return id, nil
}

func (r *Repository) GetSubmissionByID(ctx context.Context, id uint) (*models.Submission, error) {
	sb := sqlFlavor.NewSelectBuilder()
	sb.Select(submissionColumns...)
	sb.From("submissions").Where(sb.Equal("id", id))

	query, args := sb.Build()
	return r.scanSubmission(r.QueryRowContext(ctx, query, args...))
}

func (r *Repository) GetSubmissionByIdentifier(ctx context.Context, system, value string) (*models.Submission, error) {
	sb := sqlFlavor.NewSelectBuilder()
	sb.Select(submissionColumns...)
	sb.From("submissions").Where(
		sb.Equal("submission_system", system),
		sb.Equal("submission_value", value),
	)
	sb.OrderBy("id").Desc().Limit(1)

	query, args := sb.Build()
	return r.scanSubmission(r.QueryRowContext(ctx, query, args...))
}

func (r *Repository) GetPendingSubmissions(ctx context.Context) ([]*models.Submission, error) {
	sb := sqlFlavor.NewSelectBuilder()
	sb.Select(submissionColumns...)
	sb.From("submissions").Where(
		sb.In("status", string(models.SubmissionStatusQueued), string(models.SubmissionStatusPolling)),
	)
	sb.OrderBy("id")

	query, args := sb.Build()
	rows, err := r.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var submissions []*models.Submission
	for rows.Next() {
		s, err := scanSubmissionRow(rows)
		if err != nil {
			return nil, err
		}
		submissions = append(submissions, s)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}

	return submissions, nil
}

func (r *Repository) UpdateSubmissionStatus(ctx context.Context, id uint, new models.SubmissionStatus) error {
	return r.updateSubmission(ctx, map[string]interface{}{"status": new},
		map[string]interface{}{"id": id})
}

func (r *Repository) UpdateSubmissionStatusCheckStatus(ctx context.Context, id uint, current, new models.SubmissionStatus) error {
	return r.updateSubmission(ctx, map[string]interface{}{"status": new},
		map[string]interface{}{"id": id, "status": current})
}

func (r *Repository) UpdateSubmissionFailure(ctx context.Context, id uint, rawFailure string) error {
	return r.updateSubmission(ctx,
		map[string]interface{}{"status": models.SubmissionStatusError, "last_error": rawFailure},
		map[string]interface{}{"id": id})
}

func (r *Repository) UpdateSubmissionCorrelationID(ctx context.Context, id uint, correlationID string) error {
	return r.updateSubmission(ctx, map[string]interface{}{"correlation_id": correlationID},
		map[string]interface{}{"id": id})
}

func (r *Repository) updateSubmission(ctx context.Context, fieldAndValues, whereFieldAndValues map[string]interface{}) error {
	ub := sqlFlavor.NewUpdateBuilder().Update("submissions")
	for field, value := range fieldAndValues {
		ub.SetMore(ub.Assign(field, value))
	}
	ub.SetMore(ub.Assign("updated_at", sqlbuilder.Raw("NOW()")))
	for field, value := range whereFieldAndValues {
		ub.Where(ub.Equal(field, value))
	}

	query, args := ub.Build()
	result, err := r.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return models.ErrSubmissionNotUpdated
	}

	return nil
}

func (r *Repository) CreateAdjudication(ctx context.Context, result *models.AdjudicationResult) (uint, error) {
	query, args := sqlbuilder.Buildf(`INSERT INTO adjudications
		(submission_id, outcome, disposition, decision, authorization_ref,
			period_start, period_end, total_eligible, total_benefit, total_copay, currency, created_at) VALUES
		(%s, %s, %s, %s, %s, %s, %s, %s, %s, %s, %s, NOW()) RETURNING id`,
		result.SubmissionID, result.Outcome, result.Disposition, result.Decision, result.AuthorizationRef,
		nullTime(result.PeriodStart), nullTime(result.PeriodEnd),
		result.TotalEligible, result.TotalBenefit, result.TotalCopay, result.Currency).
		BuildWithFlavor(sqlFlavor)

	var id uint
	if err := r.QueryRowContext(ctx, query, args...).Scan(&id); err != nil {
		return 0, err
	}

	if len(result.Items) > 0 {
		ib := sqlFlavor.NewInsertBuilder().InsertInto("line_adjudications")
		ib.Cols("adjudication_id", "item_sequence", "status", "amount", "currency", "reason_code", "reason_text")
		for _, item := range result.Items {
			ib.Values(id, item.ItemSequence, item.Status, item.Amount, item.Currency, item.ReasonCode, item.ReasonText)
		}
		query, args = ib.Build()
		if _, err := r.ExecContext(ctx, query, args...); err != nil {
			return 0, err
		}
	}

	return id, nil
}

func (r *Repository) GetLatestAdjudication(ctx context.Context, submissionID uint) (*models.AdjudicationResult, error) {
	sb := sqlFlavor.NewSelectBuilder()
	sb.Select("id", "submission_id", "outcome", "disposition", "decision", "authorization_ref",
		"period_start", "period_end", "total_eligible", "total_benefit", "total_copay", "currency", "created_at")
	sb.From("adjudications").Where(sb.Equal("submission_id", submissionID))
	sb.OrderBy("id").Desc().Limit(1)

	query, args := sb.Build()

	var (
		result                           models.AdjudicationResult
		periodStart, periodEnd, createdAt sql.NullTime
	)
	err := r.QueryRowContext(ctx, query, args...).Scan(&result.ID, &result.SubmissionID, &result.Outcome,
		&result.Disposition, &result.Decision, &result.AuthorizationRef, &periodStart, &periodEnd,
		&result.TotalEligible, &result.TotalBenefit, &result.TotalCopay, &result.Currency, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	result.PeriodStart, result.PeriodEnd, result.CreatedAt = periodStart.Time, periodEnd.Time, createdAt.Time

	lb := sqlFlavor.NewSelectBuilder()
	lb.Select("id", "adjudication_id", "item_sequence", "status", "amount", "currency", "reason_code", "reason_text")
	lb.From("line_adjudications").Where(lb.Equal("adjudication_id", result.ID))
	lb.OrderBy("item_sequence")

	query, args = lb.Build()
	rows, err := r.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var line models.LineAdjudication
		if err = rows.Scan(&line.ID, &line.AdjudicationID, &line.ItemSequence, &line.Status,
			&line.Amount, &line.Currency, &line.ReasonCode, &line.ReasonText); err != nil {
			return nil, err
		}
		result.Items = append(result.Items, line)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}

	return &result, nil
}

func (r *Repository) CreateInformationRequest(ctx context.Context, req *models.InformationRequest) (uint, error) {
	query, args := sqlbuilder.Buildf(`INSERT INTO information_requests
		(submission_id, request_id, payload, responded, communication_id, created_at, updated_at) VALUES
		(%s, %s, %s, %s, %s, NOW(), NOW()) RETURNING id`,
		req.SubmissionID, req.RequestID, req.Payload, req.Responded, req.CommunicationID).
		BuildWithFlavor(sqlFlavor)

	var id uint
	if err := r.QueryRowContext(ctx, query, args...).Scan(&id); err != nil {
		return 0, err
	}

	return id, nil
}

var informationRequestColumns = []string{"id", "submission_id", "request_id", "payload", "responded",
	"communication_id", "created_at", "updated_at"}

func (r *Repository) GetInformationRequestByRequestID(ctx context.Context, submissionID uint, requestID string) (*models.InformationRequest, error) {
	sb := sqlFlavor.NewSelectBuilder()
	sb.Select(informationRequestColumns...)
	sb.From("information_requests").Where(
		sb.Equal("submission_id", submissionID),
		sb.Equal("request_id", requestID),
	)

	query, args := sb.Build()
	return scanInformationRequest(r.QueryRowContext(ctx, query, args...))
}

func (r *Repository) GetInformationRequestByID(ctx context.Context, id uint) (*models.InformationRequest, error) {
	sb := sqlFlavor.NewSelectBuilder()
	sb.Select(informationRequestColumns...)
	sb.From("information_requests").Where(sb.Equal("id", id))

	query, args := sb.Build()
	return scanInformationRequest(r.QueryRowContext(ctx, query, args...))
}

func (r *Repository) MarkInformationRequestResponded(ctx context.Context, id uint, communicationID uint) error {
	ub := sqlFlavor.NewUpdateBuilder().Update("information_requests")
	ub.Set(
		ub.Assign("responded", true),
		ub.Assign("communication_id", communicationID),
		ub.Assign("updated_at", sqlbuilder.Raw("NOW()")),
	)
	ub.Where(ub.Equal("id", id))

	query, args := ub.Build()
	_, err := r.ExecContext(ctx, query, args...)
	return err
}

func (r *Repository) CreateCommunication(ctx context.Context, c *models.Communication) (uint, error) {
	payloads, err := json.Marshal(c.Payloads)
	if err != nil {
		return 0, err
	}

	query, args := sqlbuilder.Buildf(`INSERT INTO communications
		(submission_id, identifier_value, solicited_request_id, payloads, status, created_at, updated_at) VALUES
		(%s, %s, %s, %s, %s, NOW(), NOW()) RETURNING id`,
		c.SubmissionID, c.IdentifierValue, c.SolicitedRequestID, payloads, c.Status).
		BuildWithFlavor(sqlFlavor)

	var id uint
	if err := r.QueryRowContext(ctx, query, args...).Scan(&id); err != nil {
		return 0, err
	}

	return id, nil
}

func (r *Repository) GetCommunicationByID(ctx context.Context, id uint) (*models.Communication, error) {
	sb := sqlFlavor.NewSelectBuilder()
	sb.Select("id", "submission_id", "identifier_value", "solicited_request_id", "payloads", "status",
		"created_at", "updated_at")
	sb.From("communications").Where(sb.Equal("id", id))

	query, args := sb.Build()

	var (
		c                    models.Communication
		solicited            sql.NullInt64
		payloads             []byte
		createdAt, updatedAt sql.NullTime
	)
	err := r.QueryRowContext(ctx, query, args...).Scan(&c.ID, &c.SubmissionID, &c.IdentifierValue,
		&solicited, &payloads, &c.Status, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	if solicited.Valid {
		v := uint(solicited.Int64)
		c.SolicitedRequestID = &v
	}
	if len(payloads) > 0 {
		if err := json.Unmarshal(payloads, &c.Payloads); err != nil {
			return nil, err
		}
	}
	c.CreatedAt, c.UpdatedAt = createdAt.Time, updatedAt.Time

	return &c, nil
}

func (r *Repository) GetCommunicationByIdentifier(ctx context.Context, submissionID uint, identifierValue string) (*models.Communication, error) {
	sb := sqlFlavor.NewSelectBuilder()
	sb.Select("id")
	sb.From("communications").Where(
		sb.Equal("submission_id", submissionID),
		sb.Equal("identifier_value", identifierValue),
	)

	query, args := sb.Build()
	var id uint
	if err := r.QueryRowContext(ctx, query, args...).Scan(&id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	return r.GetCommunicationByID(ctx, id)
}

func (r *Repository) UpdateCommunicationStatus(ctx context.Context, id uint, new models.CommunicationStatus) error {
	ub := sqlFlavor.NewUpdateBuilder().Update("communications")
	ub.Set(
		ub.Assign("status", new),
		ub.Assign("updated_at", sqlbuilder.Raw("NOW()")),
	)
	ub.Where(ub.Equal("id", id))

	query, args := ub.Build()
	_, err := r.ExecContext(ctx, query, args...)
	return err
}

func (r *Repository) CreateUnmatchedResponse(ctx context.Context, u *models.UnmatchedResponse) error {
	ib := sqlFlavor.NewInsertBuilder().InsertInto("unmatched_responses").
		Cols("identifier_system", "identifier_value", "resource_type", "raw", "created_at").
		Values(u.IdentifierSystem, u.IdentifierValue, u.ResourceType, u.Raw, sqlbuilder.Raw("NOW()"))

	query, args := ib.Build()
	_, err := r.ExecContext(ctx, query, args...)
	return err
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (r *Repository) scanSubmission(row *sql.Row) (*models.Submission, error) {
	s, err := scanSubmissionRow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrSubmissionNotFound
		}
		return nil, err
	}
	return s, nil
}

func scanSubmissionRow(row rowScanner) (*models.Submission, error) {
	var (
		s                    models.Submission
		predecessor          sql.NullInt64
		createdAt, updatedAt sql.NullTime
	)
	err := row.Scan(&s.ID, &s.SubmissionSystem, &s.SubmissionValue, &s.ClaimType, &s.Use, &s.Status,
		&s.RequestSnapshot, &s.CorrelationID, &s.LastError, &predecessor, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	if predecessor.Valid {
		v := uint(predecessor.Int64)
		s.PredecessorID = &v
	}
	s.CreatedAt, s.UpdatedAt = createdAt.Time, updatedAt.Time

	return &s, nil
}

func scanInformationRequest(row *sql.Row) (*models.InformationRequest, error) {
	var (
		req                  models.InformationRequest
		communicationID      sql.NullInt64
		createdAt, updatedAt sql.NullTime
	)
	err := row.Scan(&req.ID, &req.SubmissionID, &req.RequestID, &req.Payload, &req.Responded,
		&communicationID, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if communicationID.Valid {
		v := uint(communicationID.Int64)
		req.CommunicationID = &v
	}
	req.CreatedAt, req.UpdatedAt = createdAt.Time, updatedAt.Time

	return &req, nil
}

func nullTime(t time.Time) interface{} {
	if t.IsZero() {
		return nil
	}
	return t
}
