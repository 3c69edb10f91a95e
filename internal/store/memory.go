package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// Memory implementa Store em memória, com mutex global e rollback por
// snapshot. Usado pelos testes de unidade e pelo modo dev sem Postgres.
// A exclusão mútua é mais grossa que a do banco (store inteiro em vez de
// linha por conta), o que preserva as mesmas garantias de serialização.
type Memory struct {
	mu sync.Mutex

	accounts   map[int64]Account
	byExternal map[string]int64
	movements  []Movement
	rounds     map[int64]Round
	bets       map[int64]Bet
	betExts    map[int64]BetExtension
	betRefs    map[string]int64 // "acct/round/ref" -> betID
	transfers  map[int64]Transfer
	outbox     []OutboxEvent

	nextAccount  int64
	nextMovement int64
	nextRound    int64
	nextBet      int64
	nextTransfer int64
	nextEvent    int64
}

// NewMemory retorna um store em memória vazio
func NewMemory() *Memory {
	return &Memory{
		accounts:   make(map[int64]Account),
		byExternal: make(map[string]int64),
		rounds:     make(map[int64]Round),
		bets:       make(map[int64]Bet),
		betExts:    make(map[int64]BetExtension),
		betRefs:    make(map[string]int64),
		transfers:  make(map[int64]Transfer),
	}
}

type memSnapshot struct {
	accounts   map[int64]Account
	byExternal map[string]int64
	movements  []Movement
	rounds     map[int64]Round
	bets       map[int64]Bet
	betExts    map[int64]BetExtension
	betRefs    map[string]int64
	transfers  map[int64]Transfer
	outbox     []OutboxEvent

	nextAccount, nextMovement, nextRound, nextBet, nextTransfer, nextEvent int64
}

func (m *Memory) snapshot() memSnapshot {
	return memSnapshot{
		accounts:   cloneMap(m.accounts),
		byExternal: cloneMap(m.byExternal),
		movements:  append([]Movement(nil), m.movements...),
		rounds:     cloneMap(m.rounds),
		bets:       cloneMap(m.bets),
		betExts:    cloneMap(m.betExts),
		betRefs:    cloneMap(m.betRefs),
		transfers:  cloneMap(m.transfers),
		outbox:     append([]OutboxEvent(nil), m.outbox...),

		nextAccount: m.nextAccount, nextMovement: m.nextMovement,
		nextRound: m.nextRound, nextBet: m.nextBet,
		nextTransfer: m.nextTransfer, nextEvent: m.nextEvent,
	}
}

func (m *Memory) restore(s memSnapshot) {
	m.accounts, m.byExternal, m.movements = s.accounts, s.byExternal, s.movements
	m.rounds, m.bets, m.betExts, m.betRefs = s.rounds, s.bets, s.betExts, s.betRefs
	m.transfers, m.outbox = s.transfers, s.outbox
	m.nextAccount, m.nextMovement, m.nextRound = s.nextAccount, s.nextMovement, s.nextRound
	m.nextBet, m.nextTransfer, m.nextEvent = s.nextBet, s.nextTransfer, s.nextEvent
}

func cloneMap[K comparable, V any](src map[K]V) map[K]V {
	dst := make(map[K]V, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

// ExecTx segura o lock pelo fn inteiro; em erro restaura o snapshot,
// garantindo o all-or-nothing da transação
func (m *Memory) ExecTx(ctx context.Context, fn func(tx Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := m.snapshot()
	if err := fn(&memTx{m: m}); err != nil {
		m.restore(snap)
		return err
	}
	return nil
}

type memTx struct{ m *Memory }

func (t *memTx) EnsureAccount(_ context.Context, accountID int64) error {
	m := t.m
	if _, ok := m.accounts[accountID]; ok {
		return nil
	}
	if accountID > m.nextAccount {
		m.nextAccount = accountID
	}
	m.accounts[accountID] = Account{ID: accountID, CreatedAt: time.Now()}
	return nil
}

func (t *memTx) AccountForUpdate(_ context.Context, accountID int64) (Account, error) {
	a, ok := t.m.accounts[accountID]
	if !ok {
		return Account{}, ErrNotFound
	}
	return a, nil
}

func (t *memTx) UpdateAccountBalance(_ context.Context, accountID, balance int64) error {
	a, ok := t.m.accounts[accountID]
	if !ok {
		return ErrNotFound
	}
	a.Balance = balance
	t.m.accounts[accountID] = a
	return nil
}

func (t *memTx) InsertMovement(_ context.Context, mv *Movement) error {
	t.m.nextMovement++
	mv.ID = t.m.nextMovement
	if mv.CreatedAt.IsZero() {
		mv.CreatedAt = time.Now()
	}
	t.m.movements = append(t.m.movements, *mv)
	return nil
}

func (t *memTx) InsertRound(_ context.Context, r *Round) error {
	t.m.nextRound++
	r.ID = t.m.nextRound
	t.m.rounds[r.ID] = *r
	return nil
}

func (t *memTx) GetRound(_ context.Context, roundID int64) (Round, error) {
	r, ok := t.m.rounds[roundID]
	if !ok {
		return Round{}, ErrNotFound
	}
	return r, nil
}

func (t *memTx) CrashRound(_ context.Context, roundID, finalX int64) error {
	r, ok := t.m.rounds[roundID]
	if !ok {
		return ErrNotFound
	}
	r.State = RoundCrashed
	r.FinalX = finalX
	t.m.rounds[roundID] = r
	return nil
}

func betRefKey(accountID, roundID int64, reference string) string {
	return fmt.Sprintf("%d/%d/%s", accountID, roundID, reference)
}

func (t *memTx) BetExists(_ context.Context, accountID, roundID int64, reference string) (bool, error) {
	_, ok := t.m.betRefs[betRefKey(accountID, roundID, reference)]
	return ok, nil
}

func (t *memTx) InsertBet(_ context.Context, b *Bet) error {
	key := betRefKey(b.AccountID, b.RoundID, b.Reference)
	if _, dup := t.m.betRefs[key]; dup {
		return fmt.Errorf("bets: duplicate reference %s", b.Reference)
	}
	t.m.nextBet++
	b.ID = t.m.nextBet
	t.m.bets[b.ID] = *b
	t.m.betRefs[key] = b.ID
	return nil
}

func (t *memTx) InsertBetExtension(_ context.Context, e *BetExtension) error {
	t.m.betExts[e.BetID] = *e
	return nil
}

func (t *memTx) BetForUpdate(_ context.Context, betID int64) (Bet, BetExtension, error) {
	b, ok := t.m.bets[betID]
	if !ok {
		return Bet{}, BetExtension{}, ErrNotFound
	}
	return b, t.m.betExts[betID], nil
}

func (t *memTx) MarkBetCashed(_ context.Context, betID, payout, cashoutX int64, at time.Time) error {
	b, ok := t.m.bets[betID]
	if !ok {
		return ErrNotFound
	}
	b.State = BetCashed
	b.Payout = payout
	b.CashoutX = cashoutX
	b.CashedAt = at
	t.m.bets[betID] = b
	return nil
}

func (t *memTx) SettlePlacedBets(_ context.Context, roundID int64) (int, error) {
	n := 0
	for id, b := range t.m.bets {
		if b.RoundID == roundID && b.State == BetPlaced {
			b.State = BetLost
			b.Payout = 0
			t.m.bets[id] = b
			n++
		}
	}
	return n, nil
}

func (t *memTx) InsertTransfer(_ context.Context, tr *Transfer) error {
	t.m.nextTransfer++
	tr.ID = t.m.nextTransfer
	if tr.CreatedAt.IsZero() {
		tr.CreatedAt = time.Now()
	}
	t.m.transfers[tr.ID] = *tr
	return nil
}

func (t *memTx) TransferForUpdate(_ context.Context, transferID int64) (Transfer, error) {
	tr, ok := t.m.transfers[transferID]
	if !ok {
		return Transfer{}, ErrNotFound
	}
	return tr, nil
}

func (t *memTx) CompleteTransfer(_ context.Context, transferID int64, at time.Time) error {
	tr, ok := t.m.transfers[transferID]
	if !ok {
		return ErrNotFound
	}
	tr.State = TransferCompleted
	tr.CompletedAt = at
	t.m.transfers[transferID] = tr
	return nil
}

func (t *memTx) FailTransfer(_ context.Context, transferID int64) error {
	tr, ok := t.m.transfers[transferID]
	if !ok {
		return ErrNotFound
	}
	tr.State = TransferFailed
	t.m.transfers[transferID] = tr
	return nil
}

func (t *memTx) AppendEvent(_ context.Context, topic, key string, payload any) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	t.m.nextEvent++
	t.m.outbox = append(t.m.outbox, OutboxEvent{
		ID: t.m.nextEvent, Topic: topic, Key: key, Payload: b,
		Status: OutboxPending, CreatedAt: time.Now(),
	})
	return nil
}

// --- leituras fora de transação ---

func (m *Memory) GetAccount(_ context.Context, accountID int64) (Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[accountID]
	if !ok {
		return Account{}, ErrNotFound
	}
	return a, nil
}

func (m *Memory) ResolveAccount(_ context.Context, externalID string) (Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if id, ok := m.byExternal[externalID]; ok {
		return m.accounts[id], nil
	}
	m.nextAccount++
	a := Account{ID: m.nextAccount, ExternalID: externalID, CreatedAt: time.Now()}
	m.accounts[a.ID] = a
	m.byExternal[externalID] = a.ID
	return a, nil
}

func (m *Memory) ListMovements(_ context.Context, accountID int64, limit int) ([]Movement, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Movement
	for i := len(m.movements) - 1; i >= 0 && len(out) < limit; i-- {
		if m.movements[i].AccountID == accountID {
			out = append(out, m.movements[i])
		}
	}
	return out, nil
}

func (m *Memory) GetRound(_ context.Context, roundID int64) (Round, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rounds[roundID]
	if !ok {
		return Round{}, ErrNotFound
	}
	return r, nil
}

func (m *Memory) GetBet(_ context.Context, betID int64) (Bet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bets[betID]
	if !ok {
		return Bet{}, ErrNotFound
	}
	return b, nil
}

func (m *Memory) ListTransfers(_ context.Context, accountID int64, limit int) ([]Transfer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Transfer
	for id := m.nextTransfer; id >= 1 && len(out) < limit; id-- {
		if tr, ok := m.transfers[id]; ok && tr.AccountID == accountID {
			out = append(out, tr)
		}
	}
	return out, nil
}

// --- operações do dispatcher ---

func (m *Memory) PendingEvents(_ context.Context, limit int) ([]OutboxEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []OutboxEvent
	for _, e := range m.outbox {
		if e.Status == OutboxPending && e.RetryCount < 10 {
			out = append(out, e)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (m *Memory) MarkEventSent(_ context.Context, eventID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.outbox {
		if m.outbox[i].ID == eventID {
			m.outbox[i].Status = OutboxSent
			return nil
		}
	}
	return ErrNotFound
}

func (m *Memory) MarkEventFailed(_ context.Context, eventID int64, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.outbox {
		if m.outbox[i].ID == eventID {
			m.outbox[i].RetryCount++
			m.outbox[i].LastError = reason
			return nil
		}
	}
	return ErrNotFound
}
