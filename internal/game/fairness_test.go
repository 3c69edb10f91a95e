package game

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCommitHashRoundTrip(t *testing.T) {
	seed, err := NewServerSeed()
	require.NoError(t, err)
	require.Len(t, seed, 64) // 32 bytes em hex

	hash := CommitHash(seed)
	require.Len(t, hash, 64)

	// o reveal tem que bater com o hash publicado na abertura
	v := Verify(seed, "client", 1, 0)
	require.Equal(t, hash, v.CommitHash)
}

func TestCrashPointDeterministic(t *testing.T) {
	const seed = "aa11bb22cc33dd44ee55ff667788990011223344556677889900aabbccddeeff"

	x1 := CrashPoint(seed, "client", 42, 0)
	x2 := CrashPoint(seed, "client", 42, 0)
	require.Equal(t, x1, x2)

	// qualquer insumo diferente muda o resultado
	require.NotEqual(t, x1, CrashPoint(seed, "client", 43, 0))
	require.NotEqual(t, x1, CrashPoint(seed, "outro", 42, 0))
	require.NotEqual(t, x1, CrashPoint(seed, "client", 42, 1))
}

func TestCrashPointWithinBands(t *testing.T) {
	for nonce := int64(0); nonce < 500; nonce++ {
		seed, err := NewServerSeed()
		require.NoError(t, err)

		x := CrashPoint(seed, "client", nonce, 0)
		require.GreaterOrEqual(t, x, int64(101), "nonce %d", nonce)
		require.LessOrEqual(t, x, int64(50000), "nonce %d", nonce)
	}
}

func TestVerifyRecomputesCrashPoint(t *testing.T) {
	seed, err := NewServerSeed()
	require.NoError(t, err)

	v := Verify(seed, "client", 7, 3)
	require.Equal(t, CrashPoint(seed, "client", 7, 3), v.CrashPoint)
	require.Equal(t, int64(7), v.RoundID)
	require.Equal(t, int64(3), v.Nonce)
	require.Equal(t, seed, v.ServerSeed)
}
