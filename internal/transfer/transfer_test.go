package transfer

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/radieske/crash-game-platform/internal/ledger"
	"github.com/radieske/crash-game-platform/internal/store"
)

func fixedClock() time.Time {
	return time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
}

func newEngine() (*Engine, *ledger.Ledger, *store.Memory) {
	st := store.NewMemory()
	l := ledger.New(st, fixedClock)
	return New(st, l, fixedClock), l, st
}

func TestCreateRejectsZeroAmount(t *testing.T) {
	e, _, _ := newEngine()
	_, err := e.Create(context.Background(), 1, 0, "nada")
	require.ErrorIs(t, err, ledger.ErrInvalidAmount)
}

func TestCompleteDeposit(t *testing.T) {
	ctx := context.Background()
	e, l, _ := newEngine()

	tr, err := e.Create(ctx, 1, 500, "recarga pix")
	require.NoError(t, err)
	require.Equal(t, store.TransferPending, tr.State)

	// criar não mexe em saldo
	bal, err := l.GetBalance(ctx, 1)
	require.NoError(t, err)
	require.Zero(t, bal)

	newBalance, err := e.Complete(ctx, tr.ID)
	require.NoError(t, err)
	require.Equal(t, int64(500), newBalance)

	movs, err := l.Movements(ctx, 1, 10)
	require.NoError(t, err)
	require.Len(t, movs, 1)
	require.Equal(t, store.KindDeposit, movs[0].Kind)
	require.Equal(t, tr.ID, movs[0].TransferID)
}

func TestCompleteIsNotRepeatable(t *testing.T) {
	ctx := context.Background()
	e, l, _ := newEngine()

	tr, err := e.Create(ctx, 1, 500, "recarga")
	require.NoError(t, err)

	_, err = e.Complete(ctx, tr.ID)
	require.NoError(t, err)

	// segundo complete não pode creditar de novo
	_, err = e.Complete(ctx, tr.ID)
	require.ErrorIs(t, err, ErrAlreadyProcessed)

	bal, err := l.GetBalance(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, int64(500), bal)
}

func TestCompleteWithdrawalNeedsFunds(t *testing.T) {
	ctx := context.Background()
	e, l, _ := newEngine()

	tr, err := e.Create(ctx, 1, -300, "retirada")
	require.NoError(t, err)

	// sem saldo a transação inteira volta atrás e a transferência segue PENDING
	_, err = e.Complete(ctx, tr.ID)
	require.ErrorIs(t, err, ledger.ErrInsufficientFunds)

	list, err := e.ListByAccount(ctx, 1, 10)
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, store.TransferPending, list[0].State)

	// com saldo o mesmo complete passa
	_, err = l.AdjustBalance(ctx, 1, 1000, "carga", "", "")
	require.NoError(t, err)

	newBalance, err := e.Complete(ctx, tr.ID)
	require.NoError(t, err)
	require.Equal(t, int64(700), newBalance)

	movs, err := l.Movements(ctx, 1, 10)
	require.NoError(t, err)
	require.Equal(t, store.KindWithdrawal, movs[0].Kind)
}

func TestFailIsTerminal(t *testing.T) {
	ctx := context.Background()
	e, l, _ := newEngine()

	tr, err := e.Create(ctx, 1, 500, "recarga")
	require.NoError(t, err)
	require.NoError(t, e.Fail(ctx, tr.ID))

	list, err := e.ListByAccount(ctx, 1, 10)
	require.NoError(t, err)
	require.Equal(t, store.TransferFailed, list[0].State)

	// estado terminal: nem completar nem falhar de novo
	_, err = e.Complete(ctx, tr.ID)
	require.ErrorIs(t, err, ErrAlreadyProcessed)
	require.ErrorIs(t, e.Fail(ctx, tr.ID), ErrAlreadyProcessed)

	bal, err := l.GetBalance(ctx, 1)
	require.NoError(t, err)
	require.Zero(t, bal)
}

func TestUnknownTransfer(t *testing.T) {
	e, _, _ := newEngine()
	_, err := e.Complete(context.Background(), 99)
	require.ErrorIs(t, err, ErrTransferNotFound)
	require.ErrorIs(t, e.Fail(context.Background(), 99), ErrTransferNotFound)
}
