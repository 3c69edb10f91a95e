package store

import "time"

// MovementKind classifica um lançamento do journal.
type MovementKind string

const (
	KindDeposit     MovementKind = "DEPOSIT"
	KindWithdrawal  MovementKind = "WITHDRAWAL"
	KindWager       MovementKind = "WAGER"
	KindPayout      MovementKind = "PAYOUT"
	KindAdjustment  MovementKind = "ADJUSTMENT"
	KindTransferIn  MovementKind = "TRANSFER_IN"
	KindTransferOut MovementKind = "TRANSFER_OUT"
)

type RoundState string

const (
	RoundRunning RoundState = "RUNNING"
	RoundCrashed RoundState = "CRASHED"
)

type BetState string

const (
	BetPlaced BetState = "PLACED"
	BetCashed BetState = "CASHED"
	BetLost   BetState = "LOST"
)

type TransferState string

const (
	TransferPending   TransferState = "PENDING"
	TransferCompleted TransferState = "COMPLETED"
	TransferFailed    TransferState = "FAILED"
)

// Account guarda o saldo corrente de um jogador.
// O saldo é cache denormalizado do journal de movimentos e só é escrito
// junto com o movimento correspondente, na mesma transação.
type Account struct {
	ID         int64
	ExternalID string // id da identidade externa (vazio para contas internas)
	Balance    int64  // unidade mínima da moeda, sempre inteiro
	CreatedAt  time.Time
}

// Movement é o lançamento imutável do journal: delta assinado com
// snapshot do saldo antes/depois. Nunca é alterado nem apagado.
type Movement struct {
	ID            int64
	AccountID     int64
	Kind          MovementKind
	Amount        int64
	BalanceBefore int64
	BalanceAfter  int64
	Reference     string
	RoundID       int64 // 0 quando não se aplica
	BetID         int64
	TransferID    int64
	Metadata      map[string]any
	CreatedAt     time.Time
}

// Round é uma rodada do jogo. Nasce RUNNING e transiciona uma única vez
// para CRASHED; o seed só é revelado na liquidação.
type Round struct {
	ID         int64
	Kind       string
	State      RoundState
	StartedAt  time.Time
	StartedBy  int64
	CommitHash string
	ServerSeed string
	ClientSeed string
	Nonce      int64
	FinalX     int64 // multiplicador final em centésimos; 0 até o crash
}

// Bet é uma aposta de uma conta numa rodada, única por (conta, rodada, slot).
type Bet struct {
	ID        int64
	AccountID int64
	RoundID   int64
	Amount    int64
	State     BetState
	Reference string // "{roundID}:{slot}", chave natural de idempotência
	Payout    int64
	CashoutX  int64 // centésimos; 0 enquanto não sacou
	PlacedAt  time.Time
	CashedAt  time.Time // zero enquanto não sacou
}

// BetExtension carrega os campos específicos do jogo para uma aposta.
type BetExtension struct {
	BetID        int64
	AutoCashoutX int64 // centésimos; 0 = sem auto-cashout
	Slot         string
}

// Transfer é uma recarga/retirada pendente de confirmação externa.
type Transfer struct {
	ID          int64
	AccountID   int64
	Amount      int64 // assinado: positivo deposita, negativo retira
	Reason      string
	State       TransferState
	CreatedAt   time.Time
	CompletedAt time.Time // zero enquanto pendente/falha
}

// Estados do outbox
const (
	OutboxPending = "PENDING"
	OutboxSent    = "SENT"
	OutboxFailed  = "FAILED"
)

// OutboxEvent é a linha do outbox transacional: gravada junto com a
// transação de negócio e publicada depois pelo dispatcher.
type OutboxEvent struct {
	ID         int64
	Topic      string
	Key        string
	Payload    []byte // JSON
	Status     string
	RetryCount int
	LastError  string
	CreatedAt  time.Time
}
