package game

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/radieske/crash-game-platform/internal/ledger"
	"github.com/radieske/crash-game-platform/internal/store"
)

func TestStartRoundExposesOnlyCommit(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.fund(t, 1, 100)

	rec, err := f.rounds.StartRound(ctx, 1, "client-seed")
	require.NoError(t, err)
	require.Len(t, rec.CommitHash, 64)

	// antes da liquidação o seed não sai
	_, err = f.rounds.VerifyRound(ctx, rec.RoundID)
	require.ErrorIs(t, err, ErrRoundNotSettled)
}

func TestStartRoundUnknownAccount(t *testing.T) {
	f := newFixture(t)
	_, err := f.rounds.StartRound(context.Background(), 42, "")
	require.ErrorIs(t, err, ledger.ErrAccountNotFound)
}

func TestEndRoundRevealsSeed(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.fund(t, 1, 100)
	roundID := f.openRound(t, 1)

	res, err := f.rounds.EndRound(ctx, roundID, 312)
	require.NoError(t, err)
	require.NotEmpty(t, res.ServerSeed)
	require.Equal(t, CommitHash(res.ServerSeed), res.CommitHash)

	round, err := f.store.GetRound(ctx, roundID)
	require.NoError(t, err)
	require.Equal(t, store.RoundCrashed, round.State)
	require.Equal(t, int64(312), round.FinalX)

	// auditoria fecha: seed revelado reproduz hash e ponto de crash
	v, err := f.rounds.VerifyRound(ctx, roundID)
	require.NoError(t, err)
	require.Equal(t, res.CommitHash, v.CommitHash)

	x, err := f.rounds.CrashPointFor(ctx, roundID)
	require.NoError(t, err)
	require.Equal(t, x, v.CrashPoint)
}

func TestEndRoundGuards(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.fund(t, 1, 100)
	roundID := f.openRound(t, 1)

	_, err := f.rounds.EndRound(ctx, roundID, 0)
	require.ErrorIs(t, err, ErrInvalidMultiplier)

	_, err = f.rounds.EndRound(ctx, 999, 200)
	require.ErrorIs(t, err, ErrRoundNotFound)
}

func TestRoundEventsReachOutbox(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.fund(t, 1, 100)
	roundID := f.openRound(t, 1)

	require.NoError(t, f.rounds.EmitTick(ctx, roundID, 150))

	_, err := f.rounds.EndRound(ctx, roundID, 264)
	require.NoError(t, err)

	pending, err := f.store.PendingEvents(ctx, 100)
	require.NoError(t, err)

	var topics []string
	for _, ev := range pending {
		topics = append(topics, ev.Topic)
	}
	require.Contains(t, topics, "round_started")
	require.Contains(t, topics, "round_ticked")
	require.Contains(t, topics, "round_ended")
}
