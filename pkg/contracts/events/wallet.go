package events

// BalanceChanged é emitido após cada transação que altera o saldo de uma conta.
type BalanceChanged struct {
	AccountID  int64 `json:"account_id"`
	NewBalance int64 `json:"new_balance"`
	TsUnixMs   int64 `json:"ts_unix_ms"`
}

// MovementPosted carrega o lançamento do journal recém gravado.
type MovementPosted struct {
	MovementID    int64          `json:"movement_id"`
	AccountID     int64          `json:"account_id"`
	Kind          string         `json:"kind"`
	Amount        int64          `json:"amount"`
	BalanceBefore int64          `json:"balance_before"`
	BalanceAfter  int64          `json:"balance_after"`
	Reference     string         `json:"reference,omitempty"`
	RoundID       int64          `json:"round_id,omitempty"`
	BetID         int64          `json:"bet_id,omitempty"`
	TransferID    int64          `json:"transfer_id,omitempty"`
	Metadata      map[string]any `json:"metadata,omitempty"`
	TsUnixMs      int64          `json:"ts_unix_ms"`
}
