package events

// RoundStarted publica o início de uma rodada com o hash de commit do seed.
// O seed em si só é revelado no RoundEnded.
type RoundStarted struct {
	RoundID    int64  `json:"round_id"`
	CommitHash string `json:"commit_hash"`
	StartedAt  string `json:"started_at"` // ISO-8601
	TsUnixMs   int64  `json:"ts_unix_ms"`
}

// RoundTicked é o fan-out do multiplicador corrente (centésimos).
type RoundTicked struct {
	RoundID    int64 `json:"round_id"`
	Multiplier int64 `json:"multiplier"` // 235 = 2.35x
	TsUnixMs   int64 `json:"ts_unix_ms"`
}

// RoundEnded fecha a rodada: multiplicador final, apostas liquidadas e
// o seed revelado para verificação independente.
type RoundEnded struct {
	RoundID      int64  `json:"round_id"`
	FinalX       int64  `json:"final_x"` // centésimos
	SettledCount int    `json:"settled_count"`
	ServerSeed   string `json:"server_seed"`
	CommitHash   string `json:"commit_hash"`
	TsUnixMs     int64  `json:"ts_unix_ms"`
}
