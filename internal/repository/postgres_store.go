package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/Enterprise-CMCS/managed-care-review-sub010/internal/database"
	"github.com/Enterprise-CMCS/managed-care-review-sub010/internal/domain"
)

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// PostgresStore implements Store on PostgreSQL.
type PostgresStore struct {
	pgReader
	db     *sql.DB
	logger *zap.Logger
}

func NewPostgresStore(db *sql.DB, logger *zap.Logger) *PostgresStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PostgresStore{pgReader: pgReader{q: db}, db: db, logger: logger}
}

var _ Store = (*PostgresStore)(nil)

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *PostgresStore) WithTx(ctx context.Context, fn func(tx Tx) error) error {
	err := database.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		return fn(&pgTx{pgReader: pgReader{q: tx}})
	})
	if err != nil {
		s.logger.Debug("transaction rolled back", zap.Error(err))
	}
	return err
}

// ---- reads ----

type pgReader struct {
	q querier
}

// validID rejects ids that cannot match a UUID column; querying with them
// fails with 22P02 and aborts the surrounding transaction.
func validID(kind, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("%s %s: %w", kind, id, domain.ErrNotFound)
	}
	return nil
}

func (r pgReader) GetContract(ctx context.Context, id string) (*domain.Contract, error) {
	if err := validID("contract", id); err != nil {
		return nil, err
	}
	var c domain.Contract
	err := r.q.QueryRowContext(ctx, `
		SELECT id::text, state_code, state_number, created_at, updated_at
		FROM contracts
		WHERE id = $1
	`, id).Scan(&c.ID, &c.StateCode, &c.StateNumber, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("contract %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get contract: %w", err)
	}
	if err := r.loadContractChildren(ctx, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

func (r pgReader) loadContractChildren(ctx context.Context, c *domain.Contract) error {
	revs, err := r.contractRevisions(ctx, c.ID)
	if err != nil {
		return err
	}
	c.Revisions = revs

	pkgs, err := r.packageSubmissions(ctx, c.ID)
	if err != nil {
		return err
	}
	c.PackageSubmissions = pkgs

	links, err := r.draftRateIDs(ctx, c.ID)
	if err != nil {
		return err
	}
	c.DraftRateIDs = links

	actions, err := r.contractActions(ctx, c.ID)
	if err != nil {
		return err
	}
	c.ReviewActions = actions
	return nil
}

func (r pgReader) contractRevisions(ctx context.Context, contractID string) ([]domain.ContractRevision, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT id::text, contract_id::text, created_at, updated_at, submit_info, unlock_info, form_data
		FROM contract_revisions
		WHERE contract_id = $1
		ORDER BY seq
	`, contractID)
	if err != nil {
		return nil, fmt.Errorf("failed to query contract revisions: %w", err)
	}
	defer rows.Close()

	var out []domain.ContractRevision
	for rows.Next() {
		var (
			rev                          domain.ContractRevision
			submitInfo, unlockInfo, form []byte
		)
		if err := rows.Scan(&rev.ID, &rev.ContractID, &rev.CreatedAt, &rev.UpdatedAt, &submitInfo, &unlockInfo, &form); err != nil {
			return nil, fmt.Errorf("failed to scan contract revision: %w", err)
		}
		if rev.SubmitInfo, err = decodeUpdateInfo(submitInfo); err != nil {
			return nil, err
		}
		if rev.UnlockInfo, err = decodeUpdateInfo(unlockInfo); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(form, &rev.FormData); err != nil {
			return nil, fmt.Errorf("failed to decode contract form data: %w", err)
		}
		out = append(out, rev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate contract revisions: %w", err)
	}
	return out, nil
}

func (r pgReader) packageSubmissions(ctx context.Context, contractID string) ([]domain.PackageSubmission, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT ps.id::text, ps.cause, ps.submit_info, ps.contract_revision_id::text, ps.created_at,
		       COALESCE(array_agg(psr.rate_id::text ORDER BY psr.position) FILTER (WHERE psr.rate_id IS NOT NULL), '{}'),
		       COALESCE(array_agg(psr.rate_revision_id::text ORDER BY psr.position) FILTER (WHERE psr.rate_id IS NOT NULL), '{}')
		FROM package_submissions ps
		LEFT JOIN package_submission_rates psr ON psr.package_submission_id = ps.id
		WHERE ps.contract_id = $1
		GROUP BY ps.seq, ps.id
		ORDER BY ps.seq
	`, contractID)
	if err != nil {
		return nil, fmt.Errorf("failed to query package submissions: %w", err)
	}
	defer rows.Close()

	var out []domain.PackageSubmission
	for rows.Next() {
		var (
			p               domain.PackageSubmission
			cause           string
			submitInfo      []byte
			rateIDs, revIDs []string
		)
		if err := rows.Scan(&p.ID, &cause, &submitInfo, &p.ContractRevisionID, &p.CreatedAt,
			pq.Array(&rateIDs), pq.Array(&revIDs)); err != nil {
			return nil, fmt.Errorf("failed to scan package submission: %w", err)
		}
		p.ContractID = contractID
		p.Cause = domain.SubmissionCause(cause)
		if err := json.Unmarshal(submitInfo, &p.SubmitInfo); err != nil {
			return nil, fmt.Errorf("failed to decode package submit info: %w", err)
		}
		for i := range rateIDs {
			p.Rates = append(p.Rates, domain.PackageRate{RateID: rateIDs[i], RateRevisionID: revIDs[i]})
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate package submissions: %w", err)
	}
	return out, nil
}

func (r pgReader) draftRateIDs(ctx context.Context, contractID string) ([]string, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT rate_id::text FROM draft_rate_links WHERE contract_id = $1 ORDER BY position
	`, contractID)
	if err != nil {
		return nil, fmt.Errorf("failed to query draft rate links: %w", err)
	}
	defer rows.Close()
	return scanStrings(rows)
}

func (r pgReader) contractActions(ctx context.Context, contractID string) ([]domain.ContractAction, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT id::text, action_type, updated_at, updated_by, updated_reason, date_approval_released_to_state
		FROM contract_actions
		WHERE contract_id = $1
		ORDER BY seq
	`, contractID)
	if err != nil {
		return nil, fmt.Errorf("failed to query contract actions: %w", err)
	}
	defer rows.Close()

	var out []domain.ContractAction
	for rows.Next() {
		var (
			a         domain.ContractAction
			action    string
			updatedBy []byte
			released  sql.NullTime
		)
		if err := rows.Scan(&a.ID, &action, &a.UpdatedAt, &updatedBy, &a.UpdatedReason, &released); err != nil {
			return nil, fmt.Errorf("failed to scan contract action: %w", err)
		}
		a.ContractID = contractID
		a.ActionType = domain.ActionType(action)
		if err := json.Unmarshal(updatedBy, &a.UpdatedBy); err != nil {
			return nil, fmt.Errorf("failed to decode action updated_by: %w", err)
		}
		if released.Valid {
			t := released.Time.UTC()
			a.DateApprovalReleasedToState = &t
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate contract actions: %w", err)
	}
	return out, nil
}

func (r pgReader) GetRate(ctx context.Context, id string) (*domain.Rate, error) {
	if err := validID("rate", id); err != nil {
		return nil, err
	}
	var rt domain.Rate
	err := r.q.QueryRowContext(ctx, `
		SELECT id::text, state_code, state_number, parent_contract_id::text, created_at, updated_at
		FROM rates
		WHERE id = $1
	`, id).Scan(&rt.ID, &rt.StateCode, &rt.StateNumber, &rt.ParentContractID, &rt.CreatedAt, &rt.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("rate %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get rate: %w", err)
	}
	if err := r.loadRateChildren(ctx, &rt); err != nil {
		return nil, err
	}
	return &rt, nil
}

func (r pgReader) loadRateChildren(ctx context.Context, rt *domain.Rate) error {
	revs, err := r.rateRevisions(ctx, rt.ID)
	if err != nil {
		return err
	}
	rt.Revisions = revs

	actions, err := r.rateActions(ctx, rt.ID)
	if err != nil {
		return err
	}
	rt.ReviewActions = actions

	withdrawals, err := r.rateWithdrawals(ctx, rt.ID)
	if err != nil {
		return err
	}
	rt.Withdrawals = withdrawals

	overrides, err := r.rateOverrides(ctx, rt.ID)
	if err != nil {
		return err
	}
	rt.Overrides = overrides
	return nil
}

func (r pgReader) rateRevisions(ctx context.Context, rateID string) ([]domain.RateRevision, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT id::text, rate_id::text, created_at, updated_at, submit_info, unlock_info, form_data
		FROM rate_revisions
		WHERE rate_id = $1
		ORDER BY seq
	`, rateID)
	if err != nil {
		return nil, fmt.Errorf("failed to query rate revisions: %w", err)
	}
	defer rows.Close()

	var out []domain.RateRevision
	for rows.Next() {
		var (
			rev                          domain.RateRevision
			submitInfo, unlockInfo, form []byte
		)
		if err := rows.Scan(&rev.ID, &rev.RateID, &rev.CreatedAt, &rev.UpdatedAt, &submitInfo, &unlockInfo, &form); err != nil {
			return nil, fmt.Errorf("failed to scan rate revision: %w", err)
		}
		if rev.SubmitInfo, err = decodeUpdateInfo(submitInfo); err != nil {
			return nil, err
		}
		if rev.UnlockInfo, err = decodeUpdateInfo(unlockInfo); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(form, &rev.FormData); err != nil {
			return nil, fmt.Errorf("failed to decode rate form data: %w", err)
		}
		out = append(out, rev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate rate revisions: %w", err)
	}
	return out, nil
}

func (r pgReader) rateActions(ctx context.Context, rateID string) ([]domain.RateAction, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT id::text, action_type, COALESCE(contract_id::text, ''), updated_at, updated_by, updated_reason
		FROM rate_actions
		WHERE rate_id = $1
		ORDER BY seq
	`, rateID)
	if err != nil {
		return nil, fmt.Errorf("failed to query rate actions: %w", err)
	}
	defer rows.Close()

	var out []domain.RateAction
	for rows.Next() {
		var (
			a         domain.RateAction
			action    string
			updatedBy []byte
		)
		if err := rows.Scan(&a.ID, &action, &a.ContractID, &a.UpdatedAt, &updatedBy, &a.UpdatedReason); err != nil {
			return nil, fmt.Errorf("failed to scan rate action: %w", err)
		}
		a.RateID = rateID
		a.ActionType = domain.ActionType(action)
		if err := json.Unmarshal(updatedBy, &a.UpdatedBy); err != nil {
			return nil, fmt.Errorf("failed to decode action updated_by: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate rate actions: %w", err)
	}
	return out, nil
}

func (r pgReader) rateWithdrawals(ctx context.Context, rateID string) ([]domain.RateWithdrawal, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT contract_id::text, withdrawn_at, restored_at
		FROM rate_withdrawals
		WHERE rate_id = $1
		ORDER BY seq
	`, rateID)
	if err != nil {
		return nil, fmt.Errorf("failed to query rate withdrawals: %w", err)
	}
	defer rows.Close()

	var out []domain.RateWithdrawal
	for rows.Next() {
		w := domain.RateWithdrawal{RateID: rateID}
		var restored sql.NullTime
		if err := rows.Scan(&w.ContractID, &w.WithdrawnAt, &restored); err != nil {
			return nil, fmt.Errorf("failed to scan rate withdrawal: %w", err)
		}
		if restored.Valid {
			t := restored.Time
			w.RestoredAt = &t
		}
		out = append(out, w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate rate withdrawals: %w", err)
	}
	return out, nil
}

func (r pgReader) rateOverrides(ctx context.Context, rateID string) ([]domain.RateOverride, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT id::text, created_at, updated_by, description, initially_submitted_at
		FROM rate_overrides
		WHERE rate_id = $1
		ORDER BY seq
	`, rateID)
	if err != nil {
		return nil, fmt.Errorf("failed to query rate overrides: %w", err)
	}
	defer rows.Close()

	var out []domain.RateOverride
	for rows.Next() {
		o := domain.RateOverride{RateID: rateID}
		var (
			updatedBy []byte
			initial   sql.NullTime
		)
		if err := rows.Scan(&o.ID, &o.CreatedAt, &updatedBy, &o.Description, &initial); err != nil {
			return nil, fmt.Errorf("failed to scan rate override: %w", err)
		}
		if err := json.Unmarshal(updatedBy, &o.UpdatedBy); err != nil {
			return nil, fmt.Errorf("failed to decode override updated_by: %w", err)
		}
		if initial.Valid {
			t := initial.Time.UTC()
			o.InitiallySubmittedAt = &t
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate rate overrides: %w", err)
	}
	return out, nil
}

func (r pgReader) ListContracts(ctx context.Context, stateCode string) ([]*domain.Contract, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT id::text, state_code, state_number, created_at, updated_at
		FROM contracts
		WHERE ($1 = '' OR state_code = $1)
		ORDER BY created_at, id
	`, stateCode)
	if err != nil {
		return nil, fmt.Errorf("failed to list contracts: %w", err)
	}
	var out []*domain.Contract
	for rows.Next() {
		c := &domain.Contract{}
		if err := rows.Scan(&c.ID, &c.StateCode, &c.StateNumber, &c.CreatedAt, &c.UpdatedAt); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan contract: %w", err)
		}
		out = append(out, c)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate contracts: %w", err)
	}

	for _, c := range out {
		if err := r.loadContractChildren(ctx, c); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (r pgReader) ListRates(ctx context.Context, stateCode string) ([]*domain.Rate, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT id::text, state_code, state_number, parent_contract_id::text, created_at, updated_at
		FROM rates
		WHERE ($1 = '' OR state_code = $1)
		ORDER BY created_at, id
	`, stateCode)
	if err != nil {
		return nil, fmt.Errorf("failed to list rates: %w", err)
	}
	var out []*domain.Rate
	for rows.Next() {
		rt := &domain.Rate{}
		if err := rows.Scan(&rt.ID, &rt.StateCode, &rt.StateNumber, &rt.ParentContractID, &rt.CreatedAt, &rt.UpdatedAt); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan rate: %w", err)
		}
		out = append(out, rt)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate rates: %w", err)
	}

	for _, rt := range out {
		if err := r.loadRateChildren(ctx, rt); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (r pgReader) ContractIDsForRate(ctx context.Context, rateID string) ([]string, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT c.id::text
		FROM contracts c
		WHERE c.id IN (
			SELECT parent_contract_id FROM rates WHERE id = $1
			UNION SELECT contract_id FROM draft_rate_links WHERE rate_id = $1
			UNION SELECT ps.contract_id FROM package_submissions ps
				JOIN package_submission_rates psr ON psr.package_submission_id = ps.id
				WHERE psr.rate_id = $1
			UNION SELECT contract_id FROM rate_withdrawals WHERE rate_id = $1
		)
		ORDER BY c.created_at, c.id
	`, rateID)
	if err != nil {
		return nil, fmt.Errorf("failed to query contracts for rate: %w", err)
	}
	defer rows.Close()
	return scanStrings(rows)
}

func (r pgReader) WithdrawnRateIDs(ctx context.Context, contractID string) ([]string, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT rate_id::text
		FROM rate_withdrawals
		WHERE contract_id = $1 AND restored_at IS NULL
		GROUP BY rate_id
		ORDER BY MIN(seq)
	`, contractID)
	if err != nil {
		return nil, fmt.Errorf("failed to query withdrawn rates: %w", err)
	}
	defer rows.Close()
	return scanStrings(rows)
}

// ---- writes ----

type pgTx struct {
	pgReader
}

var _ Tx = (*pgTx)(nil)

func (t *pgTx) NextStateNumber(ctx context.Context, stateCode string) (int, error) {
	var n int
	err := t.q.QueryRowContext(ctx, `
		INSERT INTO state_numbers (state_code, last_number)
		VALUES ($1, 1)
		ON CONFLICT (state_code) DO UPDATE SET last_number = state_numbers.last_number + 1
		RETURNING last_number
	`, stateCode).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to allocate state number: %w", err)
	}
	return n, nil
}

func (t *pgTx) InsertContract(ctx context.Context, c *domain.Contract) error {
	_, err := t.q.ExecContext(ctx, `
		INSERT INTO contracts (id, state_code, state_number, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
	`, c.ID, c.StateCode, c.StateNumber, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert contract: %w", err)
	}
	return nil
}

func (t *pgTx) InsertContractRevision(ctx context.Context, rev *domain.ContractRevision) error {
	form, err := json.Marshal(rev.FormData)
	if err != nil {
		return fmt.Errorf("failed to encode contract form data: %w", err)
	}
	_, err = t.q.ExecContext(ctx, `
		INSERT INTO contract_revisions (id, contract_id, created_at, updated_at, submit_info, unlock_info, form_data)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, rev.ID, rev.ContractID, rev.CreatedAt, rev.UpdatedAt,
		encodeUpdateInfo(rev.SubmitInfo), encodeUpdateInfo(rev.UnlockInfo), form)
	if err != nil {
		return fmt.Errorf("failed to insert contract revision: %w", err)
	}
	return nil
}

func (t *pgTx) UpdateContractRevision(ctx context.Context, rev *domain.ContractRevision) error {
	form, err := json.Marshal(rev.FormData)
	if err != nil {
		return fmt.Errorf("failed to encode contract form data: %w", err)
	}
	res, err := t.q.ExecContext(ctx, `
		UPDATE contract_revisions
		SET updated_at = $2, submit_info = $3, unlock_info = $4, form_data = $5
		WHERE id = $1
	`, rev.ID, rev.UpdatedAt, encodeUpdateInfo(rev.SubmitInfo), encodeUpdateInfo(rev.UnlockInfo), form)
	if err != nil {
		return fmt.Errorf("failed to update contract revision: %w", err)
	}
	return expectOneRow(res, "contract revision", rev.ID)
}

func (t *pgTx) TouchContract(ctx context.Context, id string, at time.Time) error {
	res, err := t.q.ExecContext(ctx, `UPDATE contracts SET updated_at = $2 WHERE id = $1`, id, at)
	if err != nil {
		return fmt.Errorf("failed to touch contract: %w", err)
	}
	return expectOneRow(res, "contract", id)
}

func (t *pgTx) InsertRate(ctx context.Context, r *domain.Rate) error {
	_, err := t.q.ExecContext(ctx, `
		INSERT INTO rates (id, state_code, state_number, parent_contract_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, r.ID, r.StateCode, r.StateNumber, r.ParentContractID, r.CreatedAt, r.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert rate: %w", err)
	}
	return nil
}

func (t *pgTx) InsertRateRevision(ctx context.Context, rev *domain.RateRevision) error {
	form, err := json.Marshal(rev.FormData)
	if err != nil {
		return fmt.Errorf("failed to encode rate form data: %w", err)
	}
	_, err = t.q.ExecContext(ctx, `
		INSERT INTO rate_revisions (id, rate_id, created_at, updated_at, submit_info, unlock_info, form_data)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, rev.ID, rev.RateID, rev.CreatedAt, rev.UpdatedAt,
		encodeUpdateInfo(rev.SubmitInfo), encodeUpdateInfo(rev.UnlockInfo), form)
	if err != nil {
		return fmt.Errorf("failed to insert rate revision: %w", err)
	}
	return nil
}

func (t *pgTx) UpdateRateRevision(ctx context.Context, rev *domain.RateRevision) error {
	form, err := json.Marshal(rev.FormData)
	if err != nil {
		return fmt.Errorf("failed to encode rate form data: %w", err)
	}
	res, err := t.q.ExecContext(ctx, `
		UPDATE rate_revisions
		SET updated_at = $2, submit_info = $3, unlock_info = $4, form_data = $5
		WHERE id = $1
	`, rev.ID, rev.UpdatedAt, encodeUpdateInfo(rev.SubmitInfo), encodeUpdateInfo(rev.UnlockInfo), form)
	if err != nil {
		return fmt.Errorf("failed to update rate revision: %w", err)
	}
	return expectOneRow(res, "rate revision", rev.ID)
}

func (t *pgTx) UpdateRateParent(ctx context.Context, rateID, contractID string) error {
	res, err := t.q.ExecContext(ctx, `UPDATE rates SET parent_contract_id = $2 WHERE id = $1`, rateID, contractID)
	if err != nil {
		return fmt.Errorf("failed to update rate parent: %w", err)
	}
	return expectOneRow(res, "rate", rateID)
}

func (t *pgTx) TouchRate(ctx context.Context, id string, at time.Time) error {
	res, err := t.q.ExecContext(ctx, `UPDATE rates SET updated_at = $2 WHERE id = $1`, id, at)
	if err != nil {
		return fmt.Errorf("failed to touch rate: %w", err)
	}
	return expectOneRow(res, "rate", id)
}

func (t *pgTx) SetDraftRates(ctx context.Context, contractID string, rateIDs []string) error {
	if _, err := t.q.ExecContext(ctx, `DELETE FROM draft_rate_links WHERE contract_id = $1`, contractID); err != nil {
		return fmt.Errorf("failed to clear draft rate links: %w", err)
	}
	if len(rateIDs) == 0 {
		return nil
	}
	_, err := t.q.ExecContext(ctx, `
		INSERT INTO draft_rate_links (contract_id, rate_id, position)
		SELECT $1, r.id, r.ord
		FROM unnest($2::uuid[]) WITH ORDINALITY AS r(id, ord)
	`, contractID, pq.Array(rateIDs))
	if err != nil {
		return fmt.Errorf("failed to insert draft rate links: %w", err)
	}
	return nil
}

func (t *pgTx) InsertPackageSubmission(ctx context.Context, p *domain.PackageSubmission) error {
	info, err := json.Marshal(p.SubmitInfo)
	if err != nil {
		return fmt.Errorf("failed to encode package submit info: %w", err)
	}
	_, err = t.q.ExecContext(ctx, `
		INSERT INTO package_submissions (id, contract_id, cause, submit_info, contract_revision_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, p.ID, p.ContractID, string(p.Cause), info, p.ContractRevisionID, p.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert package submission: %w", err)
	}
	if len(p.Rates) == 0 {
		return nil
	}

	rateIDs := make([]string, len(p.Rates))
	revIDs := make([]string, len(p.Rates))
	for i, pr := range p.Rates {
		rateIDs[i] = pr.RateID
		revIDs[i] = pr.RateRevisionID
	}
	_, err = t.q.ExecContext(ctx, `
		INSERT INTO package_submission_rates (package_submission_id, rate_id, rate_revision_id, position)
		SELECT $1, r.rate_id, r.rev_id, r.ord
		FROM unnest($2::uuid[], $3::uuid[]) WITH ORDINALITY AS r(rate_id, rev_id, ord)
	`, p.ID, pq.Array(rateIDs), pq.Array(revIDs))
	if err != nil {
		return fmt.Errorf("failed to insert package submission rates: %w", err)
	}
	return nil
}

func (t *pgTx) InsertContractAction(ctx context.Context, a *domain.ContractAction) error {
	by, err := json.Marshal(a.UpdatedBy)
	if err != nil {
		return fmt.Errorf("failed to encode action updated_by: %w", err)
	}
	_, err = t.q.ExecContext(ctx, `
		INSERT INTO contract_actions (id, contract_id, action_type, updated_at, updated_by, updated_reason, date_approval_released_to_state)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, a.ID, a.ContractID, string(a.ActionType), a.UpdatedAt, by, a.UpdatedReason, nullTime(a.DateApprovalReleasedToState))
	if err != nil {
		return fmt.Errorf("failed to insert contract action: %w", err)
	}
	return nil
}

func (t *pgTx) InsertRateAction(ctx context.Context, a *domain.RateAction) error {
	by, err := json.Marshal(a.UpdatedBy)
	if err != nil {
		return fmt.Errorf("failed to encode action updated_by: %w", err)
	}
	var contractID sql.NullString
	if a.ContractID != "" {
		contractID = sql.NullString{String: a.ContractID, Valid: true}
	}
	_, err = t.q.ExecContext(ctx, `
		INSERT INTO rate_actions (id, rate_id, action_type, contract_id, updated_at, updated_by, updated_reason)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, a.ID, a.RateID, string(a.ActionType), contractID, a.UpdatedAt, by, a.UpdatedReason)
	if err != nil {
		return fmt.Errorf("failed to insert rate action: %w", err)
	}
	return nil
}

func (t *pgTx) InsertRateWithdrawal(ctx context.Context, w *domain.RateWithdrawal) error {
	_, err := t.q.ExecContext(ctx, `
		INSERT INTO rate_withdrawals (rate_id, contract_id, withdrawn_at)
		VALUES ($1, $2, $3)
	`, w.RateID, w.ContractID, w.WithdrawnAt)
	if err != nil {
		return fmt.Errorf("failed to insert rate withdrawal: %w", err)
	}
	return nil
}

func (t *pgTx) RestoreRateWithdrawals(ctx context.Context, rateID string, at time.Time) error {
	_, err := t.q.ExecContext(ctx, `
		UPDATE rate_withdrawals SET restored_at = $2
		WHERE rate_id = $1 AND restored_at IS NULL
	`, rateID, at)
	if err != nil {
		return fmt.Errorf("failed to restore rate withdrawals: %w", err)
	}
	return nil
}

func (t *pgTx) InsertRateOverride(ctx context.Context, o *domain.RateOverride) error {
	by, err := json.Marshal(o.UpdatedBy)
	if err != nil {
		return fmt.Errorf("failed to encode override updated_by: %w", err)
	}
	_, err = t.q.ExecContext(ctx, `
		INSERT INTO rate_overrides (id, rate_id, created_at, updated_by, description, initially_submitted_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, o.ID, o.RateID, o.CreatedAt, by, o.Description, nullTime(o.InitiallySubmittedAt))
	if err != nil {
		return fmt.Errorf("failed to insert rate override: %w", err)
	}
	return nil
}

// ---- helpers ----

func scanStrings(rows *sql.Rows) ([]string, error) {
	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("failed to scan id: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate ids: %w", err)
	}
	return out, nil
}

func decodeUpdateInfo(b []byte) (*domain.UpdateInfo, error) {
	if len(b) == 0 || string(b) == "null" {
		return nil, nil
	}
	var info domain.UpdateInfo
	if err := json.Unmarshal(b, &info); err != nil {
		return nil, fmt.Errorf("failed to decode update info: %w", err)
	}
	return &info, nil
}

// encodeUpdateInfo returns nil for a nil info so the column stays NULL.
func encodeUpdateInfo(info *domain.UpdateInfo) any {
	if info == nil {
		return nil
	}
	b, err := json.Marshal(info)
	if err != nil {
		return nil
	}
	return b
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func expectOneRow(res sql.Result, what, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", what, id, domain.ErrNotFound)
	}
	return nil
}
