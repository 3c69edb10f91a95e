package topics

const (
	// Wallet
	BalanceChanged = "wallet_balance_changed"
	MovementPosted = "wallet_movement_posted"

	// Rounds
	RoundStarted = "round_started"
	RoundTicked  = "round_ticked"
	RoundEnded   = "round_ended"
)
