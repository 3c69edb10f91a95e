package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/radieske/crash-game-platform/internal/crash-service/dto"
	"github.com/radieske/crash-game-platform/internal/game"
	"github.com/radieske/crash-game-platform/internal/ledger"
	"github.com/radieske/crash-game-platform/internal/transfer"
)

// Server expõe a API REST do serviço: carteira, transferências, rodadas e apostas.
type Server struct {
	log       *zap.Logger
	ledger    *ledger.Ledger
	bets      *game.BetEngine
	rounds    *game.RoundEngine
	transfers *transfer.Engine
}

// NewServer instancia o servidor HTTP do crash-service
func NewServer(log *zap.Logger, l *ledger.Ledger, bets *game.BetEngine, rounds *game.RoundEngine, transfers *transfer.Engine) *Server {
	return &Server{log: log, ledger: l, bets: bets, rounds: rounds, transfers: transfers}
}

// Router retorna o mux HTTP com as rotas da API
func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/wallet", s.getWallet)                   // GET ?accountId=...
	mux.HandleFunc("/wallet/adjust", s.adjust)               // POST
	mux.HandleFunc("/wallet/resolve", s.resolve)             // POST
	mux.HandleFunc("/wallet/movements", s.movements)         // GET ?accountId=...&limit=...
	mux.HandleFunc("/transfers", s.transfersRoot)            // POST cria, GET lista
	mux.HandleFunc("/transfers/complete", s.completeTransfer) // POST
	mux.HandleFunc("/transfers/fail", s.failTransfer)        // POST
	mux.HandleFunc("/rounds/start", s.startRound)            // POST
	mux.HandleFunc("/rounds/end", s.endRound)                // POST
	mux.HandleFunc("/rounds/tick", s.tick)                   // POST
	mux.HandleFunc("/rounds/verify", s.verifyRound)          // GET ?roundId=...
	mux.HandleFunc("/bets/place", s.placeBet)                // POST
	mux.HandleFunc("/bets/cashout", s.cashOut)               // POST
	return mux
}

// getWallet retorna o saldo corrente da conta (cria a conta no primeiro toque)
func (s *Server) getWallet(w http.ResponseWriter, r *http.Request) {
	accountID, ok := queryID(w, r, "accountId")
	if !ok {
		return
	}
	bal, err := s.ledger.GetBalance(r.Context(), accountID)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, dto.BalanceResponse{AccountID: accountID, Balance: bal})
}

// adjust aplica um delta assinado à carteira (crédito ou débito manual)
func (s *Server) adjust(w http.ResponseWriter, r *http.Request) {
	var req dto.AdjustRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badDecode(w, err)
		return
	}
	if req.AccountID <= 0 {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}
	res, err := s.ledger.AdjustBalance(r.Context(), req.AccountID, req.Amount.Int64(), req.Reason, req.Reference, "")
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, dto.AdjustResponse{
		AccountID:     req.AccountID,
		BalanceBefore: res.BalanceBefore,
		BalanceAfter:  res.BalanceAfter,
		MovementID:    res.MovementID,
	})
}

// resolve mapeia uma identidade externa para a conta numérica interna
func (s *Server) resolve(w http.ResponseWriter, r *http.Request) {
	var req dto.ResolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	if req.ExternalID == "" {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}
	acct, err := s.ledger.ResolveAccount(r.Context(), req.ExternalID)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, dto.ResolveResponse{AccountID: acct.ID, ExternalID: acct.ExternalID, Balance: acct.Balance})
}

// movements retorna a página mais recente do journal da conta
func (s *Server) movements(w http.ResponseWriter, r *http.Request) {
	accountID, ok := queryID(w, r, "accountId")
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	movs, err := s.ledger.Movements(r.Context(), accountID, limit)
	if err != nil {
		s.fail(w, err)
		return
	}
	out := make([]dto.MovementResponse, 0, len(movs))
	for _, mv := range movs {
		out = append(out, dto.MovementResponse{
			MovementID:    mv.ID,
			Kind:          string(mv.Kind),
			Amount:        mv.Amount,
			BalanceBefore: mv.BalanceBefore,
			BalanceAfter:  mv.BalanceAfter,
			Reference:     mv.Reference,
			RoundID:       mv.RoundID,
			BetID:         mv.BetID,
			TransferID:    mv.TransferID,
			Metadata:      mv.Metadata,
			CreatedAt:     mv.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	writeJSON(w, out)
}

// transfersRoot despacha entre criação (POST) e listagem (GET)
func (s *Server) transfersRoot(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.createTransfer(w, r)
	case http.MethodGet:
		s.listTransfers(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// createTransfer registra uma transferência PENDING (saldo só muda no complete)
func (s *Server) createTransfer(w http.ResponseWriter, r *http.Request) {
	var req dto.TransferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badDecode(w, err)
		return
	}
	if req.AccountID <= 0 {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}
	t, err := s.transfers.Create(r.Context(), req.AccountID, req.Amount.Int64(), req.Reason)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, dto.TransferResponse{
		TransferID: t.ID,
		AccountID:  t.AccountID,
		Amount:     t.Amount,
		Reason:     t.Reason,
		Status:     string(t.State),
		CreatedAt:  t.CreatedAt.UTC().Format(time.RFC3339),
	})
}

// listTransfers retorna as transferências mais recentes da conta
func (s *Server) listTransfers(w http.ResponseWriter, r *http.Request) {
	accountID, ok := queryID(w, r, "accountId")
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	list, err := s.transfers.ListByAccount(r.Context(), accountID, limit)
	if err != nil {
		s.fail(w, err)
		return
	}
	out := make([]dto.TransferResponse, 0, len(list))
	for _, t := range list {
		out = append(out, dto.TransferResponse{
			TransferID: t.ID,
			AccountID:  t.AccountID,
			Amount:     t.Amount,
			Reason:     t.Reason,
			Status:     string(t.State),
			CreatedAt:  t.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	writeJSON(w, out)
}

// completeTransfer aplica a transferência pendente na carteira
func (s *Server) completeTransfer(w http.ResponseWriter, r *http.Request) {
	var req dto.TransferActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	newBalance, err := s.transfers.Complete(r.Context(), req.TransferID)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, dto.TransferCompletedResponse{TransferID: req.TransferID, Status: "COMPLETED", NewBalance: newBalance})
}

// failTransfer marca a transferência pendente como FAILED, sem efeito em saldo
func (s *Server) failTransfer(w http.ResponseWriter, r *http.Request) {
	var req dto.TransferActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	if err := s.transfers.Fail(r.Context(), req.TransferID); err != nil {
		s.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"FAILED"}`))
}

// startRound abre uma rodada nova; a resposta carrega só o hash de commit
func (s *Server) startRound(w http.ResponseWriter, r *http.Request) {
	var req dto.StartRoundRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	if req.StartedBy <= 0 {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}
	rec, err := s.rounds.StartRound(r.Context(), req.StartedBy, req.ClientSeed)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, dto.RoundStartedResponse{
		RoundID:    rec.RoundID,
		CommitHash: rec.CommitHash,
		StartedAt:  rec.StartedAt.UTC().Format(time.RFC3339),
	})
}

// endRound liquida a rodada no multiplicador final e revela o seed
func (s *Server) endRound(w http.ResponseWriter, r *http.Request) {
	var req dto.EndRoundRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	res, err := s.rounds.EndRound(r.Context(), req.RoundID, req.FinalX)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, dto.RoundEndedResponse{
		RoundID:      res.RoundID,
		FinalX:       res.FinalX,
		SettledCount: res.SettledCount,
		ServerSeed:   res.ServerSeed,
		CommitHash:   res.CommitHash,
	})
}

// tick publica o multiplicador corrente para o fan-out
func (s *Server) tick(w http.ResponseWriter, r *http.Request) {
	var req dto.TickRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	if req.RoundID <= 0 || req.Multiplier <= 0 {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}
	if err := s.rounds.EmitTick(r.Context(), req.RoundID, req.Multiplier); err != nil {
		s.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
	_, _ = w.Write([]byte(`{"status":"TICKED"}`))
}

// verifyRound entrega o material de auditoria de uma rodada liquidada
func (s *Server) verifyRound(w http.ResponseWriter, r *http.Request) {
	roundID, ok := queryID(w, r, "roundId")
	if !ok {
		return
	}
	v, err := s.rounds.VerifyRound(r.Context(), roundID)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, v)
}

// placeBet cria a aposta e debita o stake
func (s *Server) placeBet(w http.ResponseWriter, r *http.Request) {
	var req dto.PlaceBetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badDecode(w, err)
		return
	}
	if req.AccountID <= 0 || req.RoundID <= 0 {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}
	rec, err := s.bets.PlaceBet(r.Context(), game.PlaceBetInput{
		RoundID:      req.RoundID,
		AccountID:    req.AccountID,
		Amount:       req.Amount.Int64(),
		AutoCashoutX: req.AutoCashoutX,
		Slot:         req.Slot,
	})
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, dto.BetResponse{
		BetID:        rec.BetID,
		RoundID:      rec.RoundID,
		AccountID:    rec.AccountID,
		Amount:       rec.Amount,
		AutoCashoutX: rec.AutoCashoutX,
		Slot:         rec.Slot,
		NewBalance:   rec.NewBalance,
	})
}

// cashOut resolve a aposta no multiplicador informado e credita o prêmio
func (s *Server) cashOut(w http.ResponseWriter, r *http.Request) {
	var req dto.CashOutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	res, err := s.bets.CashOut(r.Context(), req.BetID, req.X)
	if err != nil {
		s.fail(w, err)
		return
	}
	if res.Already {
		writeJSON(w, dto.CashOutResponse{BetID: res.BetID, Status: "ALREADY_RESOLVED"})
		return
	}
	writeJSON(w, dto.CashOutResponse{
		BetID:      res.BetID,
		Status:     "CASHED",
		X:          res.CashoutX,
		Prize:      res.Prize,
		Profit:     res.Profit,
		NewBalance: res.NewBalance,
	})
}

// fail traduz os erros de domínio para status HTTP
func (s *Server) fail(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ledger.ErrInvalidAmount),
		errors.Is(err, game.ErrInvalidMultiplier):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, ledger.ErrInsufficientFunds):
		http.Error(w, err.Error(), http.StatusPaymentRequired)
	case errors.Is(err, ledger.ErrAccountNotFound),
		errors.Is(err, game.ErrRoundNotFound),
		errors.Is(err, game.ErrBetNotFound),
		errors.Is(err, transfer.ErrTransferNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, game.ErrRoundNotOpen),
		errors.Is(err, game.ErrRoundNotSettled),
		errors.Is(err, game.ErrDuplicateBet),
		errors.Is(err, transfer.ErrAlreadyProcessed):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		s.log.Error("erro não mapeado no handler", zap.Error(err))
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// badDecode separa valor monetário não inteiro de JSON quebrado
func badDecode(w http.ResponseWriter, err error) {
	if errors.Is(err, dto.ErrInvalidAmount) {
		http.Error(w, dto.ErrInvalidAmount.Error(), http.StatusBadRequest)
		return
	}
	http.Error(w, "bad json", http.StatusBadRequest)
}

// queryID lê um id numérico obrigatório da query string
func queryID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	raw := r.URL.Query().Get(name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		http.Error(w, name+" required", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

// writeJSON serializa e envia resposta JSON
func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
