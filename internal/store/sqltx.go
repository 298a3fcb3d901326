package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/sells-group/truthstamp/internal/model"
)

// conn abstracts the transaction handle of a backend. Queries are written
// with ? placeholders; backends rebind as needed.
type conn interface {
	exec(ctx context.Context, query string, args ...any) (int64, error)
	query(ctx context.Context, query string, args ...any) (rowIter, error)
	queryRow(ctx context.Context, query string, args ...any) scannable
}

type scannable interface {
	Scan(dest ...any) error
}

type rowIter interface {
	scannable
	Next() bool
	Err() error
	Close()
}

// sqlTx implements Tx over a backend conn. prefix tags wrapped errors with
// the backend name.
type sqlTx struct {
	c      conn
	prefix string
}

func newSQLTx(c conn, prefix string) *sqlTx {
	return &sqlTx{c: c, prefix: prefix}
}

func (t *sqlTx) wrap(err error, op string) error {
	if err == nil {
		return nil
	}
	return eris.Wrap(err, t.prefix+": "+op)
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows) || errors.Is(err, pgx.ErrNoRows)
}

func unix(ts time.Time) int64 { return ts.UTC().Unix() }

func fromUnix(sec int64) time.Time { return time.Unix(sec, 0).UTC() }

func marshalJSON(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// -- contracts --

func (t *sqlTx) GetContract(ctx context.Context, name model.ContractName) (*model.Contract, error) {
	var c model.Contract
	var partnersJSON string
	var paramsJSON sql.NullString
	var initAt int64

	err := t.c.queryRow(ctx,
		`SELECT name, admin, partners, params, initialized_at FROM contracts WHERE name = ?`,
		string(name),
	).Scan(&c.Name, &c.Admin, &partnersJSON, &paramsJSON, &initAt)
	if isNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, t.wrap(err, "get contract")
	}

	if err := json.Unmarshal([]byte(partnersJSON), &c.Partners); err != nil {
		return nil, t.wrap(err, "unmarshal contract partners")
	}
	if paramsJSON.Valid && paramsJSON.String != "" && paramsJSON.String != "null" {
		c.Params = &model.ConsensusParams{}
		if err := json.Unmarshal([]byte(paramsJSON.String), c.Params); err != nil {
			return nil, t.wrap(err, "unmarshal contract params")
		}
	}
	c.InitializedAt = fromUnix(initAt)
	return &c, nil
}

func (t *sqlTx) PutContract(ctx context.Context, c *model.Contract) error {
	partners := c.Partners
	if partners == nil {
		partners = map[model.ContractName]model.Address{}
	}
	partnersJSON, err := marshalJSON(partners)
	if err != nil {
		return t.wrap(err, "marshal contract partners")
	}
	var params any
	if c.Params != nil {
		s, err := marshalJSON(c.Params)
		if err != nil {
			return t.wrap(err, "marshal contract params")
		}
		params = s
	}

	_, err = t.c.exec(ctx,
		`INSERT INTO contracts (name, admin, partners, params, initialized_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (name) DO UPDATE SET admin = excluded.admin, partners = excluded.partners, params = excluded.params`,
		string(c.Name), string(c.Admin), partnersJSON, params, unix(c.InitializedAt),
	)
	return t.wrap(err, "put contract")
}

// -- counters --

func (t *sqlTx) NextID(ctx context.Context, counter string) (uint64, error) {
	var v int64
	err := t.c.queryRow(ctx,
		`INSERT INTO counters (name, value) VALUES (?, 1)
		 ON CONFLICT (name) DO UPDATE SET value = counters.value + 1
		 RETURNING value`,
		counter,
	).Scan(&v)
	if err != nil {
		return 0, t.wrap(err, "next id "+counter)
	}
	return uint64(v), nil
}

func (t *sqlTx) Count(ctx context.Context, counter string) (uint64, error) {
	var v int64
	err := t.c.queryRow(ctx, `SELECT value FROM counters WHERE name = ?`, counter).Scan(&v)
	if isNoRows(err) {
		return 0, nil
	}
	if err != nil {
		return 0, t.wrap(err, "count "+counter)
	}
	return uint64(v), nil
}

// -- claims --

const claimColumns = `id, submitter, text, category, sources, status, stake_pool, review_count, created_at`

func (t *sqlTx) scanClaim(row scannable) (*model.Claim, error) {
	var c model.Claim
	var id, pool, reviewCount, createdAt int64
	var sourcesJSON string

	err := row.Scan(&id, &c.Submitter, &c.Text, &c.Category, &sourcesJSON, &c.Status, &pool, &reviewCount, &createdAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(sourcesJSON), &c.Sources); err != nil {
		return nil, t.wrap(err, "unmarshal claim sources")
	}
	c.ID = uint64(id)
	c.StakePool = pool
	c.ReviewCount = uint32(reviewCount)
	c.CreatedAt = fromUnix(createdAt)
	return &c, nil
}

func (t *sqlTx) GetClaim(ctx context.Context, id uint64) (*model.Claim, error) {
	c, err := t.scanClaim(t.c.queryRow(ctx, `SELECT `+claimColumns+` FROM claims WHERE id = ?`, int64(id)))
	if isNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, t.wrap(err, "get claim")
	}
	return c, nil
}

func (t *sqlTx) PutClaim(ctx context.Context, c *model.Claim) error {
	sources := c.Sources
	if sources == nil {
		sources = []string{}
	}
	sourcesJSON, err := marshalJSON(sources)
	if err != nil {
		return t.wrap(err, "marshal claim sources")
	}

	_, err = t.c.exec(ctx,
		`INSERT INTO claims (`+claimColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET status = excluded.status, stake_pool = excluded.stake_pool,
		 review_count = excluded.review_count`,
		int64(c.ID), string(c.Submitter), c.Text, c.Category, sourcesJSON, string(c.Status),
		c.StakePool, int64(c.ReviewCount), unix(c.CreatedAt),
	)
	return t.wrap(err, "put claim")
}

func (t *sqlTx) ListClaims(ctx context.Context, afterID, throughID uint64) ([]model.Claim, error) {
	rows, err := t.c.query(ctx,
		`SELECT `+claimColumns+` FROM claims WHERE id > ? AND id <= ? ORDER BY id`,
		int64(afterID), int64(throughID),
	)
	if err != nil {
		return nil, t.wrap(err, "list claims")
	}
	defer rows.Close()

	var claims []model.Claim
	for rows.Next() {
		c, err := t.scanClaim(rows)
		if err != nil {
			return nil, t.wrap(err, "scan claim")
		}
		claims = append(claims, *c)
	}
	return claims, t.wrap(rows.Err(), "list claims iterate")
}

// -- experts --

const expertColumns = `address, name, bio, categories, staked_amount, expert_level, reputation_points,
	reputation_level, total_reviews, correct_reviews, total_earnings, registered_at`

func (t *sqlTx) GetExpert(ctx context.Context, addr model.Address) (*model.Expert, error) {
	var e model.Expert
	var categoriesJSON string
	var totalReviews, correctReviews, registeredAt int64

	err := t.c.queryRow(ctx,
		`SELECT `+expertColumns+` FROM experts WHERE address = ?`, string(addr),
	).Scan(&e.Address, &e.Name, &e.Bio, &categoriesJSON, &e.StakedAmount, &e.Level, &e.ReputationPoints,
		&e.ReputationLevel, &totalReviews, &correctReviews, &e.TotalEarnings, &registeredAt)
	if isNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, t.wrap(err, "get expert")
	}
	if err := json.Unmarshal([]byte(categoriesJSON), &e.Categories); err != nil {
		return nil, t.wrap(err, "unmarshal expert categories")
	}
	e.TotalReviews = uint32(totalReviews)
	e.CorrectReviews = uint32(correctReviews)
	e.RegisteredAt = fromUnix(registeredAt)
	return &e, nil
}

func (t *sqlTx) PutExpert(ctx context.Context, e *model.Expert) error {
	categories := e.Categories
	if categories == nil {
		categories = []string{}
	}
	categoriesJSON, err := marshalJSON(categories)
	if err != nil {
		return t.wrap(err, "marshal expert categories")
	}

	_, err = t.c.exec(ctx,
		`INSERT INTO experts (`+expertColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (address) DO UPDATE SET staked_amount = excluded.staked_amount,
		 expert_level = excluded.expert_level, reputation_points = excluded.reputation_points,
		 reputation_level = excluded.reputation_level, total_reviews = excluded.total_reviews,
		 correct_reviews = excluded.correct_reviews, total_earnings = excluded.total_earnings`,
		string(e.Address), e.Name, e.Bio, categoriesJSON, e.StakedAmount, string(e.Level), e.ReputationPoints,
		string(e.ReputationLevel), int64(e.TotalReviews), int64(e.CorrectReviews), e.TotalEarnings, unix(e.RegisteredAt),
	)
	return t.wrap(err, "put expert")
}

// -- reviews --

const reviewColumns = `id, claim_id, expert, verdict, reasoning, confidence, stake_amount, rewarded, created_at`

func scanReview(row scannable) (*model.Review, error) {
	var r model.Review
	var id, claimID, confidence, createdAt int64

	err := row.Scan(&id, &claimID, &r.Expert, &r.Verdict, &r.Reasoning, &confidence, &r.StakeAmount, &r.Rewarded, &createdAt)
	if err != nil {
		return nil, err
	}
	r.ID = uint64(id)
	r.ClaimID = uint64(claimID)
	r.Confidence = uint32(confidence)
	r.CreatedAt = fromUnix(createdAt)
	return &r, nil
}

func (t *sqlTx) GetReview(ctx context.Context, id uint64) (*model.Review, error) {
	r, err := scanReview(t.c.queryRow(ctx, `SELECT `+reviewColumns+` FROM reviews WHERE id = ?`, int64(id)))
	if isNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, t.wrap(err, "get review")
	}
	return r, nil
}

func (t *sqlTx) PutReview(ctx context.Context, r *model.Review) error {
	_, err := t.c.exec(ctx,
		`INSERT INTO reviews (`+reviewColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET rewarded = excluded.rewarded`,
		int64(r.ID), int64(r.ClaimID), string(r.Expert), string(r.Verdict), r.Reasoning,
		int64(r.Confidence), r.StakeAmount, r.Rewarded, unix(r.CreatedAt),
	)
	return t.wrap(err, "put review")
}

func (t *sqlTx) listReviews(ctx context.Context, op, where string, arg any) ([]model.Review, error) {
	rows, err := t.c.query(ctx, `SELECT `+reviewColumns+` FROM reviews WHERE `+where+` ORDER BY id`, arg)
	if err != nil {
		return nil, t.wrap(err, op)
	}
	defer rows.Close()

	reviews := []model.Review{}
	for rows.Next() {
		r, err := scanReview(rows)
		if err != nil {
			return nil, t.wrap(err, "scan review")
		}
		reviews = append(reviews, *r)
	}
	return reviews, t.wrap(rows.Err(), op+" iterate")
}

func (t *sqlTx) ListClaimReviews(ctx context.Context, claimID uint64) ([]model.Review, error) {
	return t.listReviews(ctx, "list claim reviews", "claim_id = ?", int64(claimID))
}

func (t *sqlTx) ListExpertReviews(ctx context.Context, addr model.Address) ([]model.Review, error) {
	return t.listReviews(ctx, "list expert reviews", "expert = ?", string(addr))
}

// -- consensus --

func (t *sqlTx) GetConsensus(ctx context.Context, claimID uint64) (*model.ConsensusResult, error) {
	var c model.ConsensusResult
	var id, confidence, computedAt int64

	err := t.c.queryRow(ctx,
		`SELECT claim_id, final_verdict, total_stake_true, total_stake_false, confidence_percentage,
		 is_finalized, distributed, computed_at FROM consensus WHERE claim_id = ?`,
		int64(claimID),
	).Scan(&id, &c.FinalVerdict, &c.TotalStakeTrue, &c.TotalStakeFalse, &confidence, &c.IsFinalized, &c.Distributed, &computedAt)
	if isNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, t.wrap(err, "get consensus")
	}
	c.ClaimID = uint64(id)
	c.ConfidencePercentage = uint32(confidence)
	c.ComputedAt = fromUnix(computedAt)
	return &c, nil
}

func (t *sqlTx) PutConsensus(ctx context.Context, c *model.ConsensusResult) error {
	_, err := t.c.exec(ctx,
		`INSERT INTO consensus (claim_id, final_verdict, total_stake_true, total_stake_false,
		 confidence_percentage, is_finalized, distributed, computed_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (claim_id) DO UPDATE SET final_verdict = excluded.final_verdict,
		 total_stake_true = excluded.total_stake_true, total_stake_false = excluded.total_stake_false,
		 confidence_percentage = excluded.confidence_percentage, is_finalized = excluded.is_finalized,
		 distributed = excluded.distributed, computed_at = excluded.computed_at`,
		int64(c.ClaimID), string(c.FinalVerdict), c.TotalStakeTrue, c.TotalStakeFalse,
		int64(c.ConfidencePercentage), c.IsFinalized, c.Distributed, unix(c.ComputedAt),
	)
	return t.wrap(err, "put consensus")
}

// -- journals --

func (t *sqlTx) InsertTransfer(ctx context.Context, tr *model.Transfer) error {
	_, err := t.c.exec(ctx,
		`INSERT INTO transfers (id, kind, from_addr, to_addr, amount, claim_id, review_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		tr.ID, string(tr.Kind), string(tr.From), string(tr.To), tr.Amount,
		int64(tr.ClaimID), int64(tr.ReviewID), unix(tr.At),
	)
	return t.wrap(err, "insert transfer")
}

func (t *sqlTx) ListTransfers(ctx context.Context, filter TransferFilter) ([]model.Transfer, error) {
	query := `SELECT id, kind, from_addr, to_addr, amount, claim_id, review_id, created_at FROM transfers WHERE 1=1`
	var args []any

	if filter.ClaimID > 0 {
		query += ` AND claim_id = ?`
		args = append(args, int64(filter.ClaimID))
	}
	if filter.Address != "" {
		query += ` AND (from_addr = ? OR to_addr = ?)`
		args = append(args, string(filter.Address), string(filter.Address))
	}
	query += ` ORDER BY created_at, id`

	limit := filter.Limit
	if limit <= 0 {
		limit = 1000
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	rows, err := t.c.query(ctx, query, args...)
	if err != nil {
		return nil, t.wrap(err, "list transfers")
	}
	defer rows.Close()

	var transfers []model.Transfer
	for rows.Next() {
		var tr model.Transfer
		var claimID, reviewID, at int64
		if err := rows.Scan(&tr.ID, &tr.Kind, &tr.From, &tr.To, &tr.Amount, &claimID, &reviewID, &at); err != nil {
			return nil, t.wrap(err, "scan transfer")
		}
		tr.ClaimID = uint64(claimID)
		tr.ReviewID = uint64(reviewID)
		tr.At = fromUnix(at)
		transfers = append(transfers, tr)
	}
	return transfers, t.wrap(rows.Err(), "list transfers iterate")
}

func (t *sqlTx) InsertEvent(ctx context.Context, e *model.Event) error {
	err := t.c.queryRow(ctx,
		`INSERT INTO events (id, kind, entity_id, created_at) VALUES (?, ?, ?, ?) RETURNING seq`,
		e.ID, string(e.Kind), e.EntityID, unix(e.At),
	).Scan(&e.Seq)
	return t.wrap(err, "insert event")
}

func (t *sqlTx) ListEvents(ctx context.Context, filter EventFilter) ([]model.Event, error) {
	query := `SELECT seq, id, kind, entity_id, created_at FROM events WHERE seq > ?`
	args := []any{filter.AfterSeq}

	if filter.Kind != "" {
		query += ` AND kind = ?`
		args = append(args, string(filter.Kind))
	}
	if filter.EntityID != "" {
		query += ` AND entity_id = ?`
		args = append(args, filter.EntityID)
	}
	query += ` ORDER BY seq`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	rows, err := t.c.query(ctx, query, args...)
	if err != nil {
		return nil, t.wrap(err, "list events")
	}
	defer rows.Close()

	var events []model.Event
	for rows.Next() {
		var e model.Event
		var at int64
		if err := rows.Scan(&e.Seq, &e.ID, &e.Kind, &e.EntityID, &at); err != nil {
			return nil, t.wrap(err, "scan event")
		}
		e.At = fromUnix(at)
		events = append(events, e)
	}
	return events, t.wrap(rows.Err(), "list events iterate")
}
