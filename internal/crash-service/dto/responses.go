package dto

type BalanceResponse struct {
	AccountID int64 `json:"accountId"`
	Balance   int64 `json:"balance"`
}

type AdjustResponse struct {
	AccountID     int64 `json:"accountId"`
	BalanceBefore int64 `json:"balance_before"`
	BalanceAfter  int64 `json:"balance_after"`
	MovementID    int64 `json:"movement_id"`
}

type ResolveResponse struct {
	AccountID  int64  `json:"accountId"`
	ExternalID string `json:"external_id"`
	Balance    int64  `json:"balance"`
}

type MovementResponse struct {
	MovementID    int64          `json:"movement_id"`
	Kind          string         `json:"kind"`
	Amount        int64          `json:"amount"`
	BalanceBefore int64          `json:"balance_before"`
	BalanceAfter  int64          `json:"balance_after"`
	Reference     string         `json:"reference,omitempty"`
	RoundID       int64          `json:"round_id,omitempty"`
	BetID         int64          `json:"bet_id,omitempty"`
	TransferID    int64          `json:"transfer_id,omitempty"`
	Metadata      map[string]any `json:"metadata,omitempty"`
	CreatedAt     string         `json:"created_at"`
}

type TransferResponse struct {
	TransferID int64  `json:"transfer_id"`
	AccountID  int64  `json:"accountId"`
	Amount     int64  `json:"amount"`
	Reason     string `json:"reason,omitempty"`
	Status     string `json:"status"`
	CreatedAt  string `json:"created_at"`
}

type TransferCompletedResponse struct {
	TransferID int64  `json:"transfer_id"`
	Status     string `json:"status"`
	NewBalance int64  `json:"new_balance"`
}

type RoundStartedResponse struct {
	RoundID    int64  `json:"round_id"`
	CommitHash string `json:"commit_hash"`
	StartedAt  string `json:"started_at"`
}

type RoundEndedResponse struct {
	RoundID      int64  `json:"round_id"`
	FinalX       int64  `json:"final_x"`
	SettledCount int    `json:"settled_count"`
	ServerSeed   string `json:"server_seed"`
	CommitHash   string `json:"commit_hash"`
}

type BetResponse struct {
	BetID        int64  `json:"bet_id"`
	RoundID      int64  `json:"round_id"`
	AccountID    int64  `json:"accountId"`
	Amount       int64  `json:"amount"`
	AutoCashoutX int64  `json:"auto_cashout_x,omitempty"`
	Slot         string `json:"slot"`
	NewBalance   int64  `json:"new_balance"`
}

type CashOutResponse struct {
	BetID      int64  `json:"bet_id"`
	Status     string `json:"status"` // "CASHED" ou "ALREADY_RESOLVED"
	X          int64  `json:"x,omitempty"`
	Prize      int64  `json:"prize,omitempty"`
	Profit     int64  `json:"profit"`
	NewBalance int64  `json:"new_balance,omitempty"`
}
