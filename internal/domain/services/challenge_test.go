package services

import (
	"bytes"
	"context"
	"image/png"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"civigate/internal/config"
	"civigate/internal/domain/models"
	"civigate/pkg/logger"
)

func newTestEngine() *ChallengeEngine {
	cfg := config.ChallengeConfig{
		TTL:        5 * time.Minute,
		RetryDelay: time.Second,
	}
	return NewChallengeEngine(NewMemoryChallengeStore(), cfg, logger.NewDevelopment())
}

func TestChallengeEngine_Generate(t *testing.T) {
	engine := newTestEngine()

	ch, err := engine.Generate(context.Background())
	require.NoError(t, err)

	assert.NotEmpty(t, ch.ID)
	assert.Len(t, ch.Code, ChallengeLength)
	assert.Equal(t, models.ChallengeStatePending, ch.State)
	for _, r := range ch.Code {
		assert.Contains(t, challengeAlphabet, string(r))
	}
}

func TestChallengeEngine_AlphabetExcludesAmbiguousCharacters(t *testing.T) {
	for _, forbidden := range []string{"0", "O", "o", "1", "I", "l", "i"} {
		assert.NotContains(t, challengeAlphabet, forbidden)
	}
}

func TestChallengeEngine_Validate_IncompleteInputLeavesChallengeUntouched(t *testing.T) {
	engine := newTestEngine()
	ctx := context.Background()

	ch, err := engine.Generate(ctx)
	require.NoError(t, err)

	result, err := engine.Validate(ctx, ch.ID, ch.Code[:3])
	require.NoError(t, err)
	assert.False(t, result.Valid)
	assert.Zero(t, result.RetryAfter)

	// The stored code must survive a partial attempt.
	stored, err := engine.Get(ctx, ch.ID)
	require.NoError(t, err)
	assert.Equal(t, ch.Code, stored.Code)
	assert.Equal(t, models.ChallengeStatePending, stored.State)
}

func TestChallengeEngine_Validate_MismatchRegenerates(t *testing.T) {
	engine := newTestEngine()
	ctx := context.Background()

	ch, err := engine.Generate(ctx)
	require.NoError(t, err)

	wrong := strings.Repeat("?", ChallengeLength)
	result, err := engine.Validate(ctx, ch.ID, wrong)
	require.NoError(t, err)
	assert.False(t, result.Valid)
	assert.Equal(t, time.Second, result.RetryAfter)

	stored, err := engine.Get(ctx, ch.ID)
	require.NoError(t, err)
	assert.NotEqual(t, ch.Code, stored.Code)
	assert.Equal(t, models.ChallengeStatePending, stored.State)
}

func TestChallengeEngine_Validate_MatchIsCaseSensitive(t *testing.T) {
	engine := newTestEngine()
	ctx := context.Background()

	ch, err := engine.Generate(ctx)
	require.NoError(t, err)

	flipped := strings.ToLower(ch.Code)
	if flipped == ch.Code {
		flipped = strings.ToUpper(ch.Code)
	}
	require.NotEqual(t, ch.Code, flipped)

	result, err := engine.Validate(ctx, ch.ID, flipped)
	require.NoError(t, err)
	assert.False(t, result.Valid)
}

func TestChallengeEngine_ConsumeSolvedChallengeOnce(t *testing.T) {
	engine := newTestEngine()
	ctx := context.Background()

	ch, err := engine.Generate(ctx)
	require.NoError(t, err)

	result, err := engine.Validate(ctx, ch.ID, ch.Code)
	require.NoError(t, err)
	require.True(t, result.Valid)

	require.NoError(t, engine.Consume(ctx, ch.ID))

	// A consumed challenge is gone; it cannot gate a second submission.
	err = engine.Consume(ctx, ch.ID)
	assert.ErrorIs(t, err, models.ErrChallengeExpired)
}

func TestChallengeEngine_ConsumeUnsolvedChallengeFails(t *testing.T) {
	engine := newTestEngine()
	ctx := context.Background()

	ch, err := engine.Generate(ctx)
	require.NoError(t, err)

	err = engine.Consume(ctx, ch.ID)
	assert.ErrorIs(t, err, models.ErrChallengeFailed)

	// Even a failed consume spends the challenge.
	_, err = engine.Get(ctx, ch.ID)
	assert.ErrorIs(t, err, models.ErrChallengeExpired)
}

func TestChallengeEngine_ResetKeepsIDAndChangesCode(t *testing.T) {
	engine := newTestEngine()
	ctx := context.Background()

	ch, err := engine.Generate(ctx)
	require.NoError(t, err)

	fresh, err := engine.Reset(ctx, ch.ID)
	require.NoError(t, err)
	assert.Equal(t, ch.ID, fresh.ID)
	assert.NotEqual(t, ch.Code, fresh.Code)
	assert.Equal(t, models.ChallengeStatePending, fresh.State)
}

func TestChallengeEngine_RenderProducesPNG(t *testing.T) {
	engine := newTestEngine()

	data, err := engine.Render("Abc234")
	require.NoError(t, err)

	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, 180, img.Bounds().Dx())
	assert.Equal(t, 60, img.Bounds().Dy())
}
