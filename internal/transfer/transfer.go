// Package transfer implementa a máquina de estados das recargas e
// retiradas pendentes (PENDING → COMPLETED | FAILED).
package transfer

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/radieske/crash-game-platform/internal/ledger"
	"github.com/radieske/crash-game-platform/internal/store"
)

var (
	ErrTransferNotFound = errors.New("transfer not found")
	ErrAlreadyProcessed = errors.New("transfer already processed")
)

// Engine gerencia transferências pendentes sobre o ledger.
type Engine struct {
	store  store.Store
	ledger *ledger.Ledger
	now    func() time.Time
}

// New instancia o engine de transferências
func New(s store.Store, l *ledger.Ledger, now func() time.Time) *Engine {
	if now == nil {
		now = time.Now
	}
	return &Engine{store: s, ledger: l, now: now}
}

// Create registra uma transferência PENDING; o saldo só muda no Complete.
// amount assinado: positivo deposita, negativo retira.
func (e *Engine) Create(ctx context.Context, accountID, amount int64, reason string) (*store.Transfer, error) {
	if amount == 0 {
		return nil, ledger.ErrInvalidAmount
	}

	t := store.Transfer{
		AccountID: accountID,
		Amount:    amount,
		Reason:    reason,
		State:     store.TransferPending,
		CreatedAt: e.now(),
	}
	err := e.store.ExecTx(ctx, func(tx store.Tx) error {
		if err := tx.EnsureAccount(ctx, accountID); err != nil {
			return err
		}
		return tx.InsertTransfer(ctx, &t)
	})
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// Complete aplica o valor assinado na carteira (movimento DEPOSIT ou
// WITHDRAWAL referenciando a transferência) e marca COMPLETED, tudo numa
// transação. Transferência já processada é rejeitada.
func (e *Engine) Complete(ctx context.Context, transferID int64) (int64, error) {
	var newBalance int64
	err := e.store.ExecTx(ctx, func(tx store.Tx) error {
		t, err := tx.TransferForUpdate(ctx, transferID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrTransferNotFound
			}
			return err
		}
		if t.State != store.TransferPending {
			return ErrAlreadyProcessed
		}

		mv, err := e.ledger.PostInTx(ctx, tx, ledger.Posting{
			AccountID:  t.AccountID,
			Amount:     t.Amount,
			Reference:  "transfer:" + strconv.FormatInt(t.ID, 10),
			TransferID: t.ID,
			Metadata:   map[string]any{"reason": t.Reason},
		})
		if err != nil {
			return err
		}
		newBalance = mv.BalanceAfter

		return tx.CompleteTransfer(ctx, t.ID, e.now())
	})
	if err != nil {
		return 0, err
	}
	return newBalance, nil
}

// Fail marca a transferência como FAILED sem efeito em saldo.
// Só sai de PENDING; estados terminais são rejeitados.
func (e *Engine) Fail(ctx context.Context, transferID int64) error {
	return e.store.ExecTx(ctx, func(tx store.Tx) error {
		t, err := tx.TransferForUpdate(ctx, transferID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrTransferNotFound
			}
			return err
		}
		if t.State != store.TransferPending {
			return ErrAlreadyProcessed
		}
		return tx.FailTransfer(ctx, t.ID)
	})
}

// ListByAccount retorna as transferências mais recentes da conta.
func (e *Engine) ListByAccount(ctx context.Context, accountID int64, limit int) ([]store.Transfer, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return e.store.ListTransfers(ctx, accountID, limit)
}
