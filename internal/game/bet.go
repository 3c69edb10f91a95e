package game

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/radieske/crash-game-platform/internal/ledger"
	"github.com/radieske/crash-game-platform/internal/store"
	"github.com/radieske/crash-game-platform/pkg/contracts/events"
	"github.com/radieske/crash-game-platform/pkg/contracts/topics"
)

var (
	ErrRoundNotFound     = errors.New("round not found")
	ErrRoundNotOpen      = errors.New("round not open for betting")
	ErrDuplicateBet      = errors.New("duplicate bet for slot")
	ErrBetNotFound       = errors.New("bet not found")
	ErrInvalidMultiplier = errors.New("invalid multiplier")
)

// BetEngine gerencia o ciclo PLACED → CASHED | LOST das apostas.
// Todo débito/crédito passa pela rotina de posting do ledger.
type BetEngine struct {
	store  store.Store
	ledger *ledger.Ledger
	now    func() time.Time
}

// NewBetEngine instancia o engine de apostas
func NewBetEngine(s store.Store, l *ledger.Ledger, now func() time.Time) *BetEngine {
	if now == nil {
		now = time.Now
	}
	return &BetEngine{store: s, ledger: l, now: now}
}

// PlaceBetInput são os parâmetros de uma aposta nova.
type PlaceBetInput struct {
	RoundID      int64
	AccountID    int64
	Amount       int64  // stake, unidade mínima
	AutoCashoutX int64  // centésimos; 0 = sem auto-cashout
	Slot         string // vazio vira "A"
}

// BetReceipt é a visão pública da aposta criada.
type BetReceipt struct {
	BetID        int64
	RoundID      int64
	AccountID    int64
	Amount       int64
	AutoCashoutX int64
	Slot         string
	PlacedAt     time.Time
	NewBalance   int64
}

// normalizeSlot trim+uppercase, default "A"
func normalizeSlot(slot string) string {
	s := strings.ToUpper(strings.TrimSpace(slot))
	if s == "" {
		return "A"
	}
	return s
}

// PlaceBet cria a aposta e debita o stake numa única transação:
// rodada RUNNING, saldo suficiente, unicidade por (conta, rodada, slot),
// linhas de aposta + extensão e movimento WAGER de -stake.
func (e *BetEngine) PlaceBet(ctx context.Context, in PlaceBetInput) (*BetReceipt, error) {
	if in.Amount <= 0 {
		return nil, ledger.ErrInvalidAmount
	}
	slot := normalizeSlot(in.Slot)
	reference := fmt.Sprintf("%d:%s", in.RoundID, slot)

	var out BetReceipt
	err := e.store.ExecTx(ctx, func(tx store.Tx) error {
		round, err := tx.GetRound(ctx, in.RoundID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrRoundNotFound
			}
			return err
		}
		if round.State != store.RoundRunning {
			return ErrRoundNotOpen
		}

		if err := tx.EnsureAccount(ctx, in.AccountID); err != nil {
			return err
		}
		acct, err := tx.AccountForUpdate(ctx, in.AccountID)
		if err != nil {
			return err
		}
		if acct.Balance < in.Amount {
			return ledger.ErrInsufficientFunds
		}

		dup, err := tx.BetExists(ctx, in.AccountID, in.RoundID, reference)
		if err != nil {
			return err
		}
		if dup {
			return ErrDuplicateBet
		}

		bet := store.Bet{
			AccountID: in.AccountID,
			RoundID:   in.RoundID,
			Amount:    in.Amount,
			State:     store.BetPlaced,
			Reference: reference,
			PlacedAt:  e.now(),
		}
		if err := tx.InsertBet(ctx, &bet); err != nil {
			return err
		}
		if err := tx.InsertBetExtension(ctx, &store.BetExtension{
			BetID:        bet.ID,
			AutoCashoutX: in.AutoCashoutX,
			Slot:         slot,
		}); err != nil {
			return err
		}

		mv, err := e.ledger.PostInTx(ctx, tx, ledger.Posting{
			AccountID: in.AccountID,
			Amount:    -in.Amount,
			Kind:      store.KindWager,
			Reference: reference,
			RoundID:   in.RoundID,
			BetID:     bet.ID,
			Metadata:  map[string]any{"slot": slot, "auto_cashout_x": in.AutoCashoutX},
		})
		if err != nil {
			return err
		}

		out = BetReceipt{
			BetID:        bet.ID,
			RoundID:      in.RoundID,
			AccountID:    in.AccountID,
			Amount:       in.Amount,
			AutoCashoutX: in.AutoCashoutX,
			Slot:         slot,
			PlacedAt:     bet.PlacedAt,
			NewBalance:   mv.BalanceAfter,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// CashOutResult é a resposta do saque; Already=true indica aposta já
// resolvida (no-op idempotente, sem efeitos colaterais).
type CashOutResult struct {
	BetID      int64
	Already    bool
	CashoutX   int64 // centésimos
	Prize      int64
	Profit     int64
	CashedAt   time.Time
	NewBalance int64
}

// CashOut resolve a aposta em CASHED e credita o prêmio na mesma
// transação. prize = floor(stake·x) — nunca arredonda pra cima;
// profit é clampado em zero no registro de auditoria.
func (e *BetEngine) CashOut(ctx context.Context, betID, cashoutX int64) (*CashOutResult, error) {
	if cashoutX < 100 {
		return nil, ErrInvalidMultiplier
	}

	var out CashOutResult
	err := e.store.ExecTx(ctx, func(tx store.Tx) error {
		bet, ext, err := tx.BetForUpdate(ctx, betID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrBetNotFound
			}
			return err
		}
		if bet.State != store.BetPlaced {
			out = CashOutResult{BetID: betID, Already: true}
			return nil
		}

		// divisão inteira = floor para valores não negativos
		prize := bet.Amount * cashoutX / 100
		profit := prize - bet.Amount
		if profit < 0 {
			profit = 0
		}

		cashedAt := e.now()
		if err := tx.MarkBetCashed(ctx, betID, prize, cashoutX, cashedAt); err != nil {
			return err
		}

		mv, err := e.ledger.PostInTx(ctx, tx, ledger.Posting{
			AccountID: bet.AccountID,
			Amount:    prize,
			Kind:      store.KindPayout,
			Reference: bet.Reference,
			RoundID:   bet.RoundID,
			BetID:     bet.ID,
			Metadata:  map[string]any{"x": cashoutX, "profit": profit, "slot": ext.Slot},
		})
		if err != nil {
			return err
		}

		out = CashOutResult{
			BetID:      betID,
			CashoutX:   cashoutX,
			Prize:      prize,
			Profit:     profit,
			CashedAt:   cashedAt,
			NewBalance: mv.BalanceAfter,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// SettleRoundLosses liquida em lote as apostas ainda PLACED da rodada
// como LOST (payout 0, sem movimento: o stake já saiu na entrada) e fixa
// a rodada em CRASHED com o multiplicador final. Idempotente no nível da
// rodada: re-invocar encontra zero apostas PLACED.
func (e *BetEngine) SettleRoundLosses(ctx context.Context, roundID, finalX int64) (int, error) {
	var settled int
	err := e.store.ExecTx(ctx, func(tx store.Tx) error {
		round, err := tx.GetRound(ctx, roundID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrRoundNotFound
			}
			return err
		}

		n, err := tx.SettlePlacedBets(ctx, roundID)
		if err != nil {
			return err
		}
		settled = n

		if err := tx.CrashRound(ctx, roundID, finalX); err != nil {
			return err
		}

		return tx.AppendEvent(ctx, topics.RoundEnded, uuid.NewString(), events.RoundEnded{
			RoundID:      roundID,
			FinalX:       finalX,
			SettledCount: n,
			ServerSeed:   round.ServerSeed,
			CommitHash:   round.CommitHash,
			TsUnixMs:     e.now().UnixMilli(),
		})
	})
	if err != nil {
		return 0, err
	}
	return settled, nil
}
