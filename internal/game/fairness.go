// Package game implementa as rodadas do crash e o ciclo de vida das
// apostas, por cima do ledger de carteira.
package game

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"strconv"
)

// Distribuição do ponto de crash: três faixas fixas de multiplicador com
// massa de probabilidade decrescente (cauda pesada típica de crash game).
const (
	lowBandCut = 0.85 // [1.01, 2.5)
	midBandCut = 0.98 // [2.5, 8.0)
)

// NewServerSeed gera o seed secreto da rodada (32 bytes aleatórios, hex)
func NewServerSeed() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// CommitHash é o hash de one-way publicado na abertura da rodada.
// Qualquer cliente confere: sha256(seed revelado) == hash publicado.
func CommitHash(serverSeed string) string {
	h := sha256.Sum256([]byte(serverSeed))
	return hex.EncodeToString(h[:])
}

// hmacToUnit deriva uma fração uniforme em [0,1) de HMAC-SHA256(seed, msg),
// usando os primeiros 52 bits do digest.
func hmacToUnit(serverSeed, msg string) float64 {
	h := hmac.New(sha256.New, []byte(serverSeed))
	h.Write([]byte(msg))
	digest := hex.EncodeToString(h.Sum(nil))

	v, _ := strconv.ParseUint(digest[:13], 16, 64)
	return float64(v) / (1 << 52)
}

// mapToCrashX mapeia a fração uniforme para o multiplicador final.
// A posição dentro da faixa reaproveita o mesmo u, então o resultado é
// inteiramente reproduzível a partir do seed.
func mapToCrashX(u float64) float64 {
	switch {
	case u < lowBandCut:
		return 1.01 + (u/lowBandCut)*(2.50-1.01)
	case u < midBandCut:
		return 2.50 + ((u-lowBandCut)/(midBandCut-lowBandCut))*(8.00-2.50)
	default:
		return 8.10 + ((u-midBandCut)/(1.0-midBandCut))*(500.00-8.10)
	}
}

// fairnessMessage é a mensagem canônica por rodada usada no HMAC
func fairnessMessage(clientSeed string, roundID, nonce int64) string {
	return fmt.Sprintf("%s:%d:%d", clientSeed, roundID, nonce)
}

// CrashPoint calcula o multiplicador de crash em centésimos (235 = 2.35x)
// a partir do seed comprometido e dos dados públicos da rodada.
func CrashPoint(serverSeed, clientSeed string, roundID, nonce int64) int64 {
	u := hmacToUnit(serverSeed, fairnessMessage(clientSeed, roundID, nonce))
	return int64(math.Round(mapToCrashX(u) * 100))
}

// Verification é o material que um cliente precisa pra auditar uma rodada.
type Verification struct {
	RoundID    int64  `json:"round_id"`
	Nonce      int64  `json:"nonce"`
	ClientSeed string `json:"client_seed,omitempty"`
	ServerSeed string `json:"server_seed"`
	CommitHash string `json:"commit_hash"`
	CrashPoint int64  `json:"crash_point"` // centésimos
}

// Verify recomputa hash de commit e ponto de crash a partir do seed revelado
func Verify(serverSeed, clientSeed string, roundID, nonce int64) Verification {
	return Verification{
		RoundID:    roundID,
		Nonce:      nonce,
		ClientSeed: clientSeed,
		ServerSeed: serverSeed,
		CommitHash: CommitHash(serverSeed),
		CrashPoint: CrashPoint(serverSeed, clientSeed, roundID, nonce),
	}
}
