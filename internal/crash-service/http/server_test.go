package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/radieske/crash-game-platform/internal/crash-service/dto"
	"github.com/radieske/crash-game-platform/internal/game"
	"github.com/radieske/crash-game-platform/internal/ledger"
	"github.com/radieske/crash-game-platform/internal/store"
	"github.com/radieske/crash-game-platform/internal/transfer"
)

func fixedClock() time.Time {
	return time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
}

func newTestServer() *httptest.Server {
	st := store.NewMemory()
	l := ledger.New(st, fixedClock)
	bets := game.NewBetEngine(st, l, fixedClock)
	rounds := game.NewRoundEngine(st, bets, fixedClock)
	transfers := transfer.New(st, l, fixedClock)

	api := NewServer(zap.NewNop(), l, bets, rounds, transfers)
	return httptest.NewServer(api.Router())
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	b, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(b))
	require.NoError(t, err)
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestWalletAdjustAndBalance(t *testing.T) {
	srv := newTestServer()
	defer srv.Close()

	resp := postJSON(t, srv.URL+"/wallet/adjust", dto.AdjustRequest{AccountID: 1, Amount: 1000, Reason: "carga"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	adj := decode[dto.AdjustResponse](t, resp)
	require.Equal(t, int64(1000), adj.BalanceAfter)

	resp, err := http.Get(srv.URL + "/wallet?accountId=1")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	bal := decode[dto.BalanceResponse](t, resp)
	require.Equal(t, int64(1000), bal.Balance)
}

func TestAdjustAmountParsing(t *testing.T) {
	srv := newTestServer()
	defer srv.Close()

	// string numérica inteira é aceita como inteiro
	body := []byte(`{"accountId":1,"amount":"1000"}`)
	resp, err := http.Post(srv.URL+"/wallet/adjust", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	adj := decode[dto.AdjustResponse](t, resp)
	require.Equal(t, int64(1000), adj.BalanceAfter)

	// fracionário não existe nessa moeda
	for _, payload := range []string{
		`{"accountId":1,"amount":"10.5"}`,
		`{"accountId":1,"amount":10.5}`,
		`{"accountId":1,"amount":"abc"}`,
	} {
		resp, err := http.Post(srv.URL+"/wallet/adjust", "application/json", bytes.NewReader([]byte(payload)))
		require.NoError(t, err)
		resp.Body.Close()
		require.Equal(t, http.StatusBadRequest, resp.StatusCode, payload)
	}
}

func TestBetFlowOverHTTP(t *testing.T) {
	srv := newTestServer()
	defer srv.Close()

	resp := postJSON(t, srv.URL+"/wallet/adjust", dto.AdjustRequest{AccountID: 1, Amount: 1000, Reason: "carga"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = postJSON(t, srv.URL+"/rounds/start", dto.StartRoundRequest{StartedBy: 1})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	round := decode[dto.RoundStartedResponse](t, resp)
	require.NotEmpty(t, round.CommitHash)

	resp = postJSON(t, srv.URL+"/bets/place", dto.PlaceBetRequest{AccountID: 1, RoundID: round.RoundID, Amount: 400})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	bet := decode[dto.BetResponse](t, resp)
	require.Equal(t, int64(600), bet.NewBalance)

	// mesma vaga na mesma rodada conflita
	resp = postJSON(t, srv.URL+"/bets/place", dto.PlaceBetRequest{AccountID: 1, RoundID: round.RoundID, Amount: 100})
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	resp.Body.Close()

	// stake acima do saldo
	resp = postJSON(t, srv.URL+"/bets/place", dto.PlaceBetRequest{AccountID: 1, RoundID: round.RoundID, Amount: 5000, Slot: "B"})
	require.Equal(t, http.StatusPaymentRequired, resp.StatusCode)
	resp.Body.Close()

	resp = postJSON(t, srv.URL+"/bets/cashout", dto.CashOutRequest{BetID: bet.BetID, X: 200})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	cash := decode[dto.CashOutResponse](t, resp)
	require.Equal(t, "CASHED", cash.Status)
	require.Equal(t, int64(1400), cash.NewBalance)

	resp = postJSON(t, srv.URL+"/rounds/end", dto.EndRoundRequest{RoundID: round.RoundID, FinalX: 264})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	ended := decode[dto.RoundEndedResponse](t, resp)
	require.NotEmpty(t, ended.ServerSeed)

	resp, err := http.Get(srv.URL + "/rounds/verify?roundId=" + strconv.FormatInt(round.RoundID, 10))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	v := decode[game.Verification](t, resp)
	require.Equal(t, round.CommitHash, v.CommitHash)
}

func TestTransferFlowOverHTTP(t *testing.T) {
	srv := newTestServer()
	defer srv.Close()

	resp := postJSON(t, srv.URL+"/transfers", dto.TransferRequest{AccountID: 1, Amount: 500, Reason: "pix"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	tr := decode[dto.TransferResponse](t, resp)
	require.Equal(t, "PENDING", tr.Status)

	resp = postJSON(t, srv.URL+"/transfers/complete", dto.TransferActionRequest{TransferID: tr.TransferID})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	done := decode[dto.TransferCompletedResponse](t, resp)
	require.Equal(t, int64(500), done.NewBalance)

	// repetição do complete conflita
	resp = postJSON(t, srv.URL+"/transfers/complete", dto.TransferActionRequest{TransferID: tr.TransferID})
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	resp.Body.Close()

	resp = postJSON(t, srv.URL+"/transfers/complete", dto.TransferActionRequest{TransferID: 999})
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}
