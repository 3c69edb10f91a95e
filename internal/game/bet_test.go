package game

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

type fixture struct {
	store  *store.Memory
	ledger *ledger.Ledger
	bets   *BetEngine
	rounds *RoundEngine
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st := store.NewMemory()
	l := ledger.New(st, fixedClock)
	bets := NewBetEngine(st, l, fixedClock)
	return &fixture{store: st, ledger: l, bets: bets, rounds: NewRoundEngine(st, bets, fixedClock)}
}

// fund credita saldo inicial (e cria a conta de passagem)
func (f *fixture) fund(t *testing.T, accountID, amount int64) {
	t.Helper()
	_, err := f.ledger.AdjustBalance(context.Background(), accountID, amount, "carga de teste", "", "")
	require.NoError(t, err)
}

func (f *fixture) openRound(t *testing.T, startedBy int64) int64 {
	t.Helper()
	rec, err := f.rounds.StartRound(context.Background(), startedBy, "client-seed")
	require.NoError(t, err)
	return rec.RoundID
}

func (f *fixture) balance(t *testing.T, accountID int64) int64 {
	t.Helper()
	bal, err := f.ledger.GetBalance(context.Background(), accountID)
	require.NoError(t, err)
	return bal
}

func TestPlaceBetDebitsStake(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.fund(t, 1, 1000)
	roundID := f.openRound(t, 1)

	rec, err := f.bets.PlaceBet(ctx, PlaceBetInput{RoundID: roundID, AccountID: 1, Amount: 400})
	require.NoError(t, err)
	require.Equal(t, "A", rec.Slot) // slot vazio normaliza pra "A"
	require.Equal(t, int64(600), rec.NewBalance)
	require.Equal(t, int64(600), f.balance(t, 1))

	bet, err := f.store.GetBet(ctx, rec.BetID)
	require.NoError(t, err)
	require.Equal(t, store.BetPlaced, bet.State)
}

func TestPlaceBetDuplicateSlot(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.fund(t, 1, 1000)
	roundID := f.openRound(t, 1)

	_, err := f.bets.PlaceBet(ctx, PlaceBetInput{RoundID: roundID, AccountID: 1, Amount: 100, Slot: "a "})
	require.NoError(t, err)

	// " a" normaliza pro mesmo slot "A"
	_, err = f.bets.PlaceBet(ctx, PlaceBetInput{RoundID: roundID, AccountID: 1, Amount: 100, Slot: " A"})
	require.ErrorIs(t, err, ErrDuplicateBet)

	// slot distinto na mesma rodada é permitido
	_, err = f.bets.PlaceBet(ctx, PlaceBetInput{RoundID: roundID, AccountID: 1, Amount: 100, Slot: "B"})
	require.NoError(t, err)
	require.Equal(t, int64(800), f.balance(t, 1))
}

func TestPlaceBetInsufficientFunds(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.fund(t, 1, 50)
	roundID := f.openRound(t, 1)

	_, err := f.bets.PlaceBet(ctx, PlaceBetInput{RoundID: roundID, AccountID: 1, Amount: 100})
	require.ErrorIs(t, err, ledger.ErrInsufficientFunds)
	require.Equal(t, int64(50), f.balance(t, 1))
}

func TestPlaceBetRoundClosed(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.fund(t, 1, 1000)
	roundID := f.openRound(t, 1)

	_, err := f.rounds.EndRound(ctx, roundID, 150)
	require.NoError(t, err)

	_, err = f.bets.PlaceBet(ctx, PlaceBetInput{RoundID: roundID, AccountID: 1, Amount: 100})
	require.ErrorIs(t, err, ErrRoundNotOpen)

	_, err = f.bets.PlaceBet(ctx, PlaceBetInput{RoundID: 999, AccountID: 1, Amount: 100})
	require.ErrorIs(t, err, ErrRoundNotFound)
}

func TestCashOutCreditsPrize(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.fund(t, 1, 1000)
	roundID := f.openRound(t, 1)

	rec, err := f.bets.PlaceBet(ctx, PlaceBetInput{RoundID: roundID, AccountID: 1, Amount: 400})
	require.NoError(t, err)

	// 2.35x: prêmio trunca pra baixo (400*235/100 = 940)
	res, err := f.bets.CashOut(ctx, rec.BetID, 235)
	require.NoError(t, err)
	require.False(t, res.Already)
	require.Equal(t, int64(940), res.Prize)
	require.Equal(t, int64(540), res.Profit)
	require.Equal(t, int64(1540), res.NewBalance)

	bet, err := f.store.GetBet(ctx, rec.BetID)
	require.NoError(t, err)
	require.Equal(t, store.BetCashed, bet.State)
	require.Equal(t, int64(940), bet.Payout)
}

func TestCashOutIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.fund(t, 1, 1000)
	roundID := f.openRound(t, 1)

	rec, err := f.bets.PlaceBet(ctx, PlaceBetInput{RoundID: roundID, AccountID: 1, Amount: 200})
	require.NoError(t, err)

	first, err := f.bets.CashOut(ctx, rec.BetID, 200)
	require.NoError(t, err)
	require.False(t, first.Already)

	movsBefore, err := f.ledger.Movements(ctx, 1, 100)
	require.NoError(t, err)

	// segunda chamada: no-op sem crédito novo
	second, err := f.bets.CashOut(ctx, rec.BetID, 300)
	require.NoError(t, err)
	require.True(t, second.Already)

	movsAfter, err := f.ledger.Movements(ctx, 1, 100)
	require.NoError(t, err)
	require.Len(t, movsAfter, len(movsBefore))
	require.Equal(t, first.NewBalance, f.balance(t, 1))
}

func TestCashOutGuards(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.fund(t, 1, 1000)
	roundID := f.openRound(t, 1)

	rec, err := f.bets.PlaceBet(ctx, PlaceBetInput{RoundID: roundID, AccountID: 1, Amount: 200})
	require.NoError(t, err)

	// abaixo de 1.00x não existe saque válido
	_, err = f.bets.CashOut(ctx, rec.BetID, 99)
	require.ErrorIs(t, err, ErrInvalidMultiplier)

	_, err = f.bets.CashOut(ctx, 999, 200)
	require.ErrorIs(t, err, ErrBetNotFound)
}

func TestSettleRoundLosses(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	for id := int64(1); id <= 3; id++ {
		f.fund(t, id, 1000)
	}
	roundID := f.openRound(t, 1)

	a, err := f.bets.PlaceBet(ctx, PlaceBetInput{RoundID: roundID, AccountID: 1, Amount: 100})
	require.NoError(t, err)
	b, err := f.bets.PlaceBet(ctx, PlaceBetInput{RoundID: roundID, AccountID: 2, Amount: 200})
	require.NoError(t, err)
	c, err := f.bets.PlaceBet(ctx, PlaceBetInput{RoundID: roundID, AccountID: 3, Amount: 300})
	require.NoError(t, err)

	// conta 1 saca a 2.00x antes do crash
	_, err = f.bets.CashOut(ctx, a.BetID, 200)
	require.NoError(t, err)

	settled, err := f.bets.SettleRoundLosses(ctx, roundID, 264)
	require.NoError(t, err)
	require.Equal(t, 2, settled)

	// saldos exatos: 1000-100+200, 1000-200, 1000-300
	require.Equal(t, int64(1100), f.balance(t, 1))
	require.Equal(t, int64(800), f.balance(t, 2))
	require.Equal(t, int64(700), f.balance(t, 3))

	for _, betID := range []int64{b.BetID, c.BetID} {
		bet, err := f.store.GetBet(ctx, betID)
		require.NoError(t, err)
		require.Equal(t, store.BetLost, bet.State)
		require.Equal(t, int64(0), bet.Payout)
	}

	// re-invocar não encontra mais apostas PLACED
	settled, err = f.bets.SettleRoundLosses(ctx, roundID, 264)
	require.NoError(t, err)
	require.Zero(t, settled)
}
