// Package ledger é o único caminho de escrita de saldo do sistema:
// toda mutação passa pela rotina de posting, que grava saldo e movimento
// na mesma transação e enfileira os eventos do sink no outbox.
package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/radieske/crash-game-platform/internal/store"
	"github.com/radieske/crash-game-platform/pkg/contracts/events"
	"github.com/radieske/crash-game-platform/pkg/contracts/topics"
)

var (
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrAccountNotFound   = errors.New("account not found")
)

// Ledger expõe as operações de carteira sobre o Store.
type Ledger struct {
	store store.Store
	now   func() time.Time
}

// New instancia o ledger com relógio injetável (testes usam relógio fixo)
func New(s store.Store, now func() time.Time) *Ledger {
	if now == nil {
		now = time.Now
	}
	return &Ledger{store: s, now: now}
}

// Store devolve o store compartilhado (usado pelos engines de aposta/transferência)
func (l *Ledger) Store() store.Store { return l.store }

// Posting descreve um lançamento a aplicar dentro de uma transação aberta.
type Posting struct {
	AccountID  int64
	Amount     int64              // delta assinado
	Kind       store.MovementKind // vazio: DEPOSIT se positivo, WITHDRAWAL se negativo
	Reference  string
	RoundID    int64
	BetID      int64
	TransferID int64
	Metadata   map[string]any
}

// AdjustResult carrega o snapshot antes/depois de um ajuste.
type AdjustResult struct {
	BalanceBefore int64
	BalanceAfter  int64
	MovementID    int64
}

// GetBalance garante que a conta existe (upsert com saldo zero) e retorna
// o saldo corrente. Ensure e leitura rodam na mesma transação.
func (l *Ledger) GetBalance(ctx context.Context, accountID int64) (int64, error) {
	var balance int64
	err := l.store.ExecTx(ctx, func(tx store.Tx) error {
		if err := tx.EnsureAccount(ctx, accountID); err != nil {
			return err
		}
		a, err := tx.AccountForUpdate(ctx, accountID)
		if err != nil {
			return err
		}
		balance = a.Balance
		return nil
	})
	return balance, err
}

// AdjustBalance aplica um delta assinado à conta numa única transação
// serializada. kind vazio deriva do sinal; reference vazio ganha um token
// novo para correlação no journal.
func (l *Ledger) AdjustBalance(ctx context.Context, accountID, delta int64, reason, reference string, kind store.MovementKind) (*AdjustResult, error) {
	if delta == 0 {
		return nil, ErrInvalidAmount
	}
	if reference == "" {
		reference = uuid.NewString()
	}

	var out AdjustResult
	err := l.store.ExecTx(ctx, func(tx store.Tx) error {
		mv, err := l.PostInTx(ctx, tx, Posting{
			AccountID: accountID,
			Amount:    delta,
			Kind:      kind,
			Reference: reference,
			Metadata:  map[string]any{"reason": reason},
		})
		if err != nil {
			return err
		}
		out = AdjustResult{BalanceBefore: mv.BalanceBefore, BalanceAfter: mv.BalanceAfter, MovementID: mv.ID}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// PostInTx é a rotina central de lançamento: garante a conta, lê o saldo
// com lock, valida não-negatividade, grava saldo + movimento e enfileira
// os eventos do sink. Nenhum outro código escreve Account.balance.
func (l *Ledger) PostInTx(ctx context.Context, tx store.Tx, p Posting) (store.Movement, error) {
	if p.Amount == 0 {
		return store.Movement{}, ErrInvalidAmount
	}
	if p.Kind == "" {
		if p.Amount > 0 {
			p.Kind = store.KindDeposit
		} else {
			p.Kind = store.KindWithdrawal
		}
	}

	if err := tx.EnsureAccount(ctx, p.AccountID); err != nil {
		return store.Movement{}, err
	}
	acct, err := tx.AccountForUpdate(ctx, p.AccountID)
	if err != nil {
		return store.Movement{}, err
	}

	before := acct.Balance
	after := before + p.Amount
	if after < 0 {
		return store.Movement{}, ErrInsufficientFunds
	}

	if err := tx.UpdateAccountBalance(ctx, p.AccountID, after); err != nil {
		return store.Movement{}, err
	}

	mv := store.Movement{
		AccountID:     p.AccountID,
		Kind:          p.Kind,
		Amount:        p.Amount,
		BalanceBefore: before,
		BalanceAfter:  after,
		Reference:     p.Reference,
		RoundID:       p.RoundID,
		BetID:         p.BetID,
		TransferID:    p.TransferID,
		Metadata:      p.Metadata,
		CreatedAt:     l.now(),
	}
	if err := tx.InsertMovement(ctx, &mv); err != nil {
		return store.Movement{}, err
	}

	if err := l.appendSinkEvents(ctx, tx, mv); err != nil {
		return store.Movement{}, err
	}
	return mv, nil
}

// appendSinkEvents grava no outbox os eventos pós-commit do sink
func (l *Ledger) appendSinkEvents(ctx context.Context, tx store.Tx, mv store.Movement) error {
	ts := l.now().UnixMilli()
	key := uuid.NewString()

	if err := tx.AppendEvent(ctx, topics.BalanceChanged, key, events.BalanceChanged{
		AccountID:  mv.AccountID,
		NewBalance: mv.BalanceAfter,
		TsUnixMs:   ts,
	}); err != nil {
		return err
	}
	return tx.AppendEvent(ctx, topics.MovementPosted, key, events.MovementPosted{
		MovementID:    mv.ID,
		AccountID:     mv.AccountID,
		Kind:          string(mv.Kind),
		Amount:        mv.Amount,
		BalanceBefore: mv.BalanceBefore,
		BalanceAfter:  mv.BalanceAfter,
		Reference:     mv.Reference,
		RoundID:       mv.RoundID,
		BetID:         mv.BetID,
		TransferID:    mv.TransferID,
		Metadata:      mv.Metadata,
		TsUnixMs:      ts,
	})
}

// ResolveAccount mapeia a identidade externa (já validada pelo colaborador
// de identidade) para a conta numérica, criando-a no primeiro toque.
func (l *Ledger) ResolveAccount(ctx context.Context, externalID string) (store.Account, error) {
	return l.store.ResolveAccount(ctx, externalID)
}

// Movements retorna a página mais recente do journal da conta.
func (l *Ledger) Movements(ctx context.Context, accountID int64, limit int) ([]store.Movement, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return l.store.ListMovements(ctx, accountID, limit)
}
