package game

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/radieske/crash-game-platform/internal/ledger"
	"github.com/radieske/crash-game-platform/internal/store"
	"github.com/radieske/crash-game-platform/pkg/contracts/events"
	"github.com/radieske/crash-game-platform/pkg/contracts/topics"
)

// RoundKind identifica o jogo nas linhas de rodada
const RoundKind = "CRASH"

// ErrRoundNotSettled sinaliza pedido de verificação antes do reveal
var ErrRoundNotSettled = errors.New("round not settled")

// RoundEngine controla o ciclo RUNNING → CRASHED das rodadas e o
// commit-reveal do gerador de ponto de crash.
type RoundEngine struct {
	store store.Store
	bets  *BetEngine
	now   func() time.Time
}

// NewRoundEngine instancia o engine de rodadas
func NewRoundEngine(s store.Store, bets *BetEngine, now func() time.Time) *RoundEngine {
	if now == nil {
		now = time.Now
	}
	return &RoundEngine{store: s, bets: bets, now: now}
}

// RoundReceipt é a resposta de abertura: só o hash de commit é exposto,
// nunca o seed.
type RoundReceipt struct {
	RoundID    int64
	StartedAt  time.Time
	CommitHash string
}

// StartRound abre uma rodada RUNNING com seed novo e nonce 0.
// O seed fica retido no banco até a liquidação.
func (e *RoundEngine) StartRound(ctx context.Context, startedBy int64, clientSeed string) (*RoundReceipt, error) {
	if _, err := e.store.GetAccount(ctx, startedBy); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ledger.ErrAccountNotFound
		}
		return nil, err
	}

	seed, err := NewServerSeed()
	if err != nil {
		return nil, err
	}

	round := store.Round{
		Kind:       RoundKind,
		State:      store.RoundRunning,
		StartedAt:  e.now(),
		StartedBy:  startedBy,
		CommitHash: CommitHash(seed),
		ServerSeed: seed,
		ClientSeed: clientSeed,
		Nonce:      0,
	}

	err = e.store.ExecTx(ctx, func(tx store.Tx) error {
		if err := tx.InsertRound(ctx, &round); err != nil {
			return err
		}
		return tx.AppendEvent(ctx, topics.RoundStarted, strconv.FormatInt(round.ID, 10), events.RoundStarted{
			RoundID:    round.ID,
			CommitHash: round.CommitHash,
			StartedAt:  round.StartedAt.UTC().Format(time.RFC3339),
			TsUnixMs:   e.now().UnixMilli(),
		})
	})
	if err != nil {
		return nil, err
	}

	return &RoundReceipt{RoundID: round.ID, StartedAt: round.StartedAt, CommitHash: round.CommitHash}, nil
}

// EndRoundResult fecha o commit-reveal: o seed é revelado aqui para que
// qualquer cliente recompute o ponto de crash e o hash publicado.
type EndRoundResult struct {
	RoundID      int64
	FinalX       int64 // centésimos
	SettledCount int
	ServerSeed   string
	CommitHash   string
}

// EndRound transiciona a rodada para CRASHED com o multiplicador final e
// delega a liquidação em lote das perdas ao engine de apostas.
func (e *RoundEngine) EndRound(ctx context.Context, roundID, finalX int64) (*EndRoundResult, error) {
	if finalX <= 0 {
		return nil, ErrInvalidMultiplier
	}

	round, err := e.store.GetRound(ctx, roundID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrRoundNotFound
		}
		return nil, err
	}

	settled, err := e.bets.SettleRoundLosses(ctx, roundID, finalX)
	if err != nil {
		return nil, err
	}

	return &EndRoundResult{
		RoundID:      roundID,
		FinalX:       finalX,
		SettledCount: settled,
		ServerSeed:   round.ServerSeed,
		CommitHash:   round.CommitHash,
	}, nil
}

// CrashPointFor deriva o ponto de crash comprometido de uma rodada.
func (e *RoundEngine) CrashPointFor(ctx context.Context, roundID int64) (int64, error) {
	round, err := e.store.GetRound(ctx, roundID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return 0, ErrRoundNotFound
		}
		return 0, err
	}
	return CrashPoint(round.ServerSeed, round.ClientSeed, round.ID, round.Nonce), nil
}

// EmitTick publica o multiplicador corrente para o fan-out; não altera
// estado de rodada nem de aposta.
func (e *RoundEngine) EmitTick(ctx context.Context, roundID, multiplier int64) error {
	return e.store.ExecTx(ctx, func(tx store.Tx) error {
		return tx.AppendEvent(ctx, topics.RoundTicked, uuid.NewString(), events.RoundTicked{
			RoundID:    roundID,
			Multiplier: multiplier,
			TsUnixMs:   e.now().UnixMilli(),
		})
	})
}

// VerifyRound monta o material de auditoria de uma rodada já liquidada.
// Antes do crash o seed não é exposto.
func (e *RoundEngine) VerifyRound(ctx context.Context, roundID int64) (*Verification, error) {
	round, err := e.store.GetRound(ctx, roundID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrRoundNotFound
		}
		return nil, err
	}
	if round.State != store.RoundCrashed {
		return nil, ErrRoundNotSettled
	}
	v := Verify(round.ServerSeed, round.ClientSeed, round.ID, round.Nonce)
	return &v, nil
}
