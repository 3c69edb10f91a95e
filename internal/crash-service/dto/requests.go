package dto

type AdjustRequest struct {
	AccountID int64  `json:"accountId"`
	Amount    Amount `json:"amount"` // delta assinado, unidade mínima
	Reason    string `json:"reason,omitempty"`
	Reference string `json:"reference,omitempty"` // opcional p/ correlação
}

type ResolveRequest struct {
	ExternalID string `json:"external_id"`
}

type TransferRequest struct {
	AccountID int64  `json:"accountId"`
	Amount    Amount `json:"amount"` // positivo deposita, negativo retira
	Reason    string `json:"reason,omitempty"`
}

type TransferActionRequest struct {
	TransferID int64 `json:"transfer_id"`
}

type StartRoundRequest struct {
	StartedBy  int64  `json:"startedBy"`
	ClientSeed string `json:"client_seed,omitempty"`
}

type EndRoundRequest struct {
	RoundID int64 `json:"round_id"`
	FinalX  int64 `json:"final_x"` // centésimos (235 = 2.35x)
}

type TickRequest struct {
	RoundID    int64 `json:"round_id"`
	Multiplier int64 `json:"multiplier"` // centésimos
}

type PlaceBetRequest struct {
	AccountID    int64  `json:"accountId"`
	RoundID      int64  `json:"round_id"`
	Amount       Amount `json:"amount"`
	AutoCashoutX int64  `json:"auto_cashout_x,omitempty"`
	Slot         string `json:"slot,omitempty"`
}

type CashOutRequest struct {
	BetID int64 `json:"bet_id"`
	X     int64 `json:"x"` // centésimos
}
