package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"
)

// Postgres implementa Store sobre database/sql + lib/pq.
// Locks pessimistas (FOR UPDATE) serializam escritores na mesma linha.
type Postgres struct{ db *sql.DB }

// NewPostgres retorna uma instância do store em Postgres
func NewPostgres(db *sql.DB) *Postgres { return &Postgres{db: db} }

// ExecTx abre a transação, roda fn e commita; rollback em qualquer erro
func (p *Postgres) ExecTx(ctx context.Context, fn func(tx Tx) error) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := fn(&pgTx{tx: tx}); err != nil {
		return err
	}
	return tx.Commit()
}

type pgTx struct{ tx *sql.Tx }

func (t *pgTx) EnsureAccount(ctx context.Context, accountID int64) error {
	_, err := t.tx.ExecContext(ctx,
		`INSERT INTO accounts (id, balance) VALUES ($1, 0) ON CONFLICT (id) DO NOTHING`,
		accountID)
	return err
}

func (t *pgTx) AccountForUpdate(ctx context.Context, accountID int64) (Account, error) {
	var a Account
	var ext sql.NullString
	err := t.tx.QueryRowContext(ctx,
		`SELECT id, external_id, balance, created_at FROM accounts WHERE id=$1 FOR UPDATE`,
		accountID).Scan(&a.ID, &ext, &a.Balance, &a.CreatedAt)
	if err == sql.ErrNoRows {
		return Account{}, ErrNotFound
	}
	a.ExternalID = ext.String
	return a, err
}

func (t *pgTx) UpdateAccountBalance(ctx context.Context, accountID, balance int64) error {
	_, err := t.tx.ExecContext(ctx,
		`UPDATE accounts SET balance=$1 WHERE id=$2`, balance, accountID)
	return err
}

func (t *pgTx) InsertMovement(ctx context.Context, m *Movement) error {
	var meta []byte
	if m.Metadata != nil {
		meta, _ = json.Marshal(m.Metadata)
	}
	return t.tx.QueryRowContext(ctx, `
		INSERT INTO movements
			(account_id, kind, amount, balance_before, balance_after, reference,
			 round_id, bet_id, transfer_id, metadata)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		RETURNING id, created_at`,
		m.AccountID, string(m.Kind), m.Amount, m.BalanceBefore, m.BalanceAfter,
		nullStr(m.Reference), nullID(m.RoundID), nullID(m.BetID), nullID(m.TransferID), meta,
	).Scan(&m.ID, &m.CreatedAt)
}

func (t *pgTx) InsertRound(ctx context.Context, r *Round) error {
	return t.tx.QueryRowContext(ctx, `
		INSERT INTO rounds
			(kind, state, started_at, started_by, commit_hash, server_seed, client_seed, nonce, final_x)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,0)
		RETURNING id`,
		r.Kind, string(r.State), r.StartedAt, r.StartedBy,
		r.CommitHash, r.ServerSeed, nullStr(r.ClientSeed), r.Nonce,
	).Scan(&r.ID)
}

func (t *pgTx) GetRound(ctx context.Context, roundID int64) (Round, error) {
	return scanRound(t.tx.QueryRowContext(ctx,
		`SELECT id, kind, state, started_at, started_by, commit_hash, server_seed,
		        client_seed, nonce, final_x
		 FROM rounds WHERE id=$1`, roundID))
}

func (t *pgTx) CrashRound(ctx context.Context, roundID, finalX int64) error {
	_, err := t.tx.ExecContext(ctx,
		`UPDATE rounds SET state=$1, final_x=$2 WHERE id=$3`,
		string(RoundCrashed), finalX, roundID)
	return err
}

func (t *pgTx) BetExists(ctx context.Context, accountID, roundID int64, reference string) (bool, error) {
	var one int
	err := t.tx.QueryRowContext(ctx,
		`SELECT 1 FROM bets WHERE account_id=$1 AND round_id=$2 AND reference=$3`,
		accountID, roundID, reference).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	return err == nil, err
}

func (t *pgTx) InsertBet(ctx context.Context, b *Bet) error {
	return t.tx.QueryRowContext(ctx, `
		INSERT INTO bets (account_id, round_id, amount, state, reference, payout, cashout_x, placed_at)
		VALUES ($1,$2,$3,$4,$5,0,0,$6)
		RETURNING id`,
		b.AccountID, b.RoundID, b.Amount, string(b.State), b.Reference, b.PlacedAt,
	).Scan(&b.ID)
}

func (t *pgTx) InsertBetExtension(ctx context.Context, e *BetExtension) error {
	_, err := t.tx.ExecContext(ctx,
		`INSERT INTO bet_extensions (bet_id, auto_cashout_x, slot) VALUES ($1,$2,$3)`,
		e.BetID, e.AutoCashoutX, e.Slot)
	return err
}

func (t *pgTx) BetForUpdate(ctx context.Context, betID int64) (Bet, BetExtension, error) {
	var b Bet
	var e BetExtension
	var cashedAt sql.NullTime
	err := t.tx.QueryRowContext(ctx, `
		SELECT b.id, b.account_id, b.round_id, b.amount, b.state, b.reference,
		       b.payout, b.cashout_x, b.placed_at, b.cashed_at,
		       x.auto_cashout_x, x.slot
		FROM bets b JOIN bet_extensions x ON x.bet_id = b.id
		WHERE b.id=$1
		FOR UPDATE OF b`, betID,
	).Scan(&b.ID, &b.AccountID, &b.RoundID, &b.Amount, &b.State, &b.Reference,
		&b.Payout, &b.CashoutX, &b.PlacedAt, &cashedAt, &e.AutoCashoutX, &e.Slot)
	if err == sql.ErrNoRows {
		return Bet{}, BetExtension{}, ErrNotFound
	}
	if cashedAt.Valid {
		b.CashedAt = cashedAt.Time
	}
	e.BetID = b.ID
	return b, e, err
}

func (t *pgTx) MarkBetCashed(ctx context.Context, betID, payout, cashoutX int64, at time.Time) error {
	_, err := t.tx.ExecContext(ctx,
		`UPDATE bets SET state=$1, payout=$2, cashout_x=$3, cashed_at=$4 WHERE id=$5`,
		string(BetCashed), payout, cashoutX, at, betID)
	return err
}

func (t *pgTx) SettlePlacedBets(ctx context.Context, roundID int64) (int, error) {
	res, err := t.tx.ExecContext(ctx,
		`UPDATE bets SET state=$1, payout=0 WHERE round_id=$2 AND state=$3`,
		string(BetLost), roundID, string(BetPlaced))
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func (t *pgTx) InsertTransfer(ctx context.Context, tr *Transfer) error {
	return t.tx.QueryRowContext(ctx, `
		INSERT INTO transfers (account_id, amount, reason, state)
		VALUES ($1,$2,$3,$4)
		RETURNING id, created_at`,
		tr.AccountID, tr.Amount, nullStr(tr.Reason), string(tr.State),
	).Scan(&tr.ID, &tr.CreatedAt)
}

func (t *pgTx) TransferForUpdate(ctx context.Context, transferID int64) (Transfer, error) {
	row := t.tx.QueryRowContext(ctx,
		`SELECT id, account_id, amount, reason, state, created_at, completed_at
		 FROM transfers WHERE id=$1 FOR UPDATE`, transferID)
	return scanTransfer(row)
}

func (t *pgTx) CompleteTransfer(ctx context.Context, transferID int64, at time.Time) error {
	_, err := t.tx.ExecContext(ctx,
		`UPDATE transfers SET state=$1, completed_at=$2 WHERE id=$3`,
		string(TransferCompleted), at, transferID)
	return err
}

func (t *pgTx) FailTransfer(ctx context.Context, transferID int64) error {
	_, err := t.tx.ExecContext(ctx,
		`UPDATE transfers SET state=$1 WHERE id=$2`,
		string(TransferFailed), transferID)
	return err
}

func (t *pgTx) AppendEvent(ctx context.Context, topic, key string, payload any) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_, err = t.tx.ExecContext(ctx, `
		INSERT INTO outbox (topic, key, payload, status, retry_count, last_error)
		VALUES ($1,$2,$3,$4,0,'')`,
		topic, key, b, OutboxPending)
	return err
}

// --- leituras fora de transação ---

func (p *Postgres) GetAccount(ctx context.Context, accountID int64) (Account, error) {
	var a Account
	var ext sql.NullString
	err := p.db.QueryRowContext(ctx,
		`SELECT id, external_id, balance, created_at FROM accounts WHERE id=$1`,
		accountID).Scan(&a.ID, &ext, &a.Balance, &a.CreatedAt)
	if err == sql.ErrNoRows {
		return Account{}, ErrNotFound
	}
	a.ExternalID = ext.String
	return a, err
}

func (p *Postgres) ResolveAccount(ctx context.Context, externalID string) (Account, error) {
	var a Account
	// upsert-then-read numa ida só; DO UPDATE força o RETURNING na linha existente
	err := p.db.QueryRowContext(ctx, `
		INSERT INTO accounts (external_id, balance) VALUES ($1, 0)
		ON CONFLICT (external_id) DO UPDATE SET external_id = EXCLUDED.external_id
		RETURNING id, external_id, balance, created_at`,
		externalID).Scan(&a.ID, &a.ExternalID, &a.Balance, &a.CreatedAt)
	return a, err
}

func (p *Postgres) ListMovements(ctx context.Context, accountID int64, limit int) ([]Movement, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, account_id, kind, amount, balance_before, balance_after,
		       reference, round_id, bet_id, transfer_id, metadata, created_at
		FROM movements WHERE account_id=$1
		ORDER BY id DESC LIMIT $2`, accountID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Movement
	for rows.Next() {
		var m Movement
		var ref sql.NullString
		var roundID, betID, transferID sql.NullInt64
		var meta []byte
		if err := rows.Scan(&m.ID, &m.AccountID, &m.Kind, &m.Amount,
			&m.BalanceBefore, &m.BalanceAfter, &ref,
			&roundID, &betID, &transferID, &meta, &m.CreatedAt); err != nil {
			return nil, err
		}
		m.Reference = ref.String
		m.RoundID, m.BetID, m.TransferID = roundID.Int64, betID.Int64, transferID.Int64
		if len(meta) > 0 {
			_ = json.Unmarshal(meta, &m.Metadata)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (p *Postgres) GetRound(ctx context.Context, roundID int64) (Round, error) {
	return scanRound(p.db.QueryRowContext(ctx,
		`SELECT id, kind, state, started_at, started_by, commit_hash, server_seed,
		        client_seed, nonce, final_x
		 FROM rounds WHERE id=$1`, roundID))
}

func (p *Postgres) GetBet(ctx context.Context, betID int64) (Bet, error) {
	var b Bet
	var cashedAt sql.NullTime
	err := p.db.QueryRowContext(ctx, `
		SELECT id, account_id, round_id, amount, state, reference, payout, cashout_x, placed_at, cashed_at
		FROM bets WHERE id=$1`, betID,
	).Scan(&b.ID, &b.AccountID, &b.RoundID, &b.Amount, &b.State, &b.Reference,
		&b.Payout, &b.CashoutX, &b.PlacedAt, &cashedAt)
	if err == sql.ErrNoRows {
		return Bet{}, ErrNotFound
	}
	if cashedAt.Valid {
		b.CashedAt = cashedAt.Time
	}
	return b, err
}

func (p *Postgres) ListTransfers(ctx context.Context, accountID int64, limit int) ([]Transfer, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, account_id, amount, reason, state, created_at, completed_at
		FROM transfers WHERE account_id=$1
		ORDER BY id DESC LIMIT $2`, accountID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Transfer
	for rows.Next() {
		t, err := scanTransfer(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// --- operações do dispatcher ---

func (p *Postgres) PendingEvents(ctx context.Context, limit int) ([]OutboxEvent, error) {
	// retry_count limitado pra não reentregar eternamente um evento podre
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, topic, key, payload, status, retry_count, last_error, created_at
		FROM outbox WHERE status=$1 AND retry_count < 10
		ORDER BY id ASC LIMIT $2`, OutboxPending, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []OutboxEvent
	for rows.Next() {
		var e OutboxEvent
		if err := rows.Scan(&e.ID, &e.Topic, &e.Key, &e.Payload, &e.Status,
			&e.RetryCount, &e.LastError, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (p *Postgres) MarkEventSent(ctx context.Context, eventID int64) error {
	_, err := p.db.ExecContext(ctx,
		`UPDATE outbox SET status=$1 WHERE id=$2`, OutboxSent, eventID)
	return err
}

func (p *Postgres) MarkEventFailed(ctx context.Context, eventID int64, reason string) error {
	if len(reason) > 240 {
		reason = reason[:240]
	}
	_, err := p.db.ExecContext(ctx,
		`UPDATE outbox SET retry_count = retry_count + 1, last_error=$1 WHERE id=$2`,
		reason, eventID)
	return err
}

// --- helpers ---

type rowScanner interface{ Scan(dest ...any) error }

func scanRound(row rowScanner) (Round, error) {
	var r Round
	var clientSeed sql.NullString
	err := row.Scan(&r.ID, &r.Kind, &r.State, &r.StartedAt, &r.StartedBy,
		&r.CommitHash, &r.ServerSeed, &clientSeed, &r.Nonce, &r.FinalX)
	if err == sql.ErrNoRows {
		return Round{}, ErrNotFound
	}
	r.ClientSeed = clientSeed.String
	return r, err
}

func scanTransfer(row rowScanner) (Transfer, error) {
	var t Transfer
	var reason sql.NullString
	var completedAt sql.NullTime
	err := row.Scan(&t.ID, &t.AccountID, &t.Amount, &reason, &t.State,
		&t.CreatedAt, &completedAt)
	if err == sql.ErrNoRows {
		return Transfer{}, ErrNotFound
	}
	t.Reason = reason.String
	if completedAt.Valid {
		t.CompletedAt = completedAt.Time
	}
	return t, err
}

func nullStr(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullID(id int64) sql.NullInt64 {
	return sql.NullInt64{Int64: id, Valid: id != 0}
}
