package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound é o sentinel de leitura vazia; os engines traduzem para o
// erro de domínio apropriado (conta/rodada/aposta/transferência).
var ErrNotFound = errors.New("not found")

// Tx expõe as operações tipadas disponíveis dentro de uma transação.
// Toda operação que mexe em saldo abre uma única transação e serializa
// escritores concorrentes na linha da conta (read-for-update).
type Tx interface {
	// Contas
	EnsureAccount(ctx context.Context, accountID int64) error
	AccountForUpdate(ctx context.Context, accountID int64) (Account, error)
	UpdateAccountBalance(ctx context.Context, accountID, balance int64) error

	// Journal (append-only); preenche ID e CreatedAt
	InsertMovement(ctx context.Context, m *Movement) error

	// Rodadas
	InsertRound(ctx context.Context, r *Round) error
	GetRound(ctx context.Context, roundID int64) (Round, error)
	CrashRound(ctx context.Context, roundID, finalX int64) error

	// Apostas
	BetExists(ctx context.Context, accountID, roundID int64, reference string) (bool, error)
	InsertBet(ctx context.Context, b *Bet) error
	InsertBetExtension(ctx context.Context, e *BetExtension) error
	BetForUpdate(ctx context.Context, betID int64) (Bet, BetExtension, error)
	MarkBetCashed(ctx context.Context, betID, payout, cashoutX int64, at time.Time) error
	// SettlePlacedBets marca como LOST somente as apostas ainda PLACED
	// (guarda de estado no próprio update, tolerante a cashout concorrente)
	SettlePlacedBets(ctx context.Context, roundID int64) (int, error)

	// Transferências
	InsertTransfer(ctx context.Context, t *Transfer) error
	TransferForUpdate(ctx context.Context, transferID int64) (Transfer, error)
	CompleteTransfer(ctx context.Context, transferID int64, at time.Time) error
	FailTransfer(ctx context.Context, transferID int64) error

	// Outbox transacional
	AppendEvent(ctx context.Context, topic, key string, payload any) error
}

// Store é a camada de persistência compartilhada por todos os engines.
type Store interface {
	// ExecTx roda fn numa transação; qualquer erro desfaz tudo —
	// movimento sem saldo atualizado (ou vice-versa) nunca é observável.
	ExecTx(ctx context.Context, fn func(tx Tx) error) error

	// Leituras fora de transação
	GetAccount(ctx context.Context, accountID int64) (Account, error)
	// ResolveAccount cria (ou encontra) a conta ligada a uma identidade externa
	ResolveAccount(ctx context.Context, externalID string) (Account, error)
	ListMovements(ctx context.Context, accountID int64, limit int) ([]Movement, error)
	GetRound(ctx context.Context, roundID int64) (Round, error)
	GetBet(ctx context.Context, betID int64) (Bet, error)
	ListTransfers(ctx context.Context, accountID int64, limit int) ([]Transfer, error)

	// Operações do dispatcher
	PendingEvents(ctx context.Context, limit int) ([]OutboxEvent, error)
	MarkEventSent(ctx context.Context, eventID int64) error
	MarkEventFailed(ctx context.Context, eventID int64, reason string) error
}
