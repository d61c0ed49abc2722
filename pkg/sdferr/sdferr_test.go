package sdferr_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jimyag/sdfgen/pkg/sdferr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError_IsKind(t *testing.T) {
	t.Parallel()

	err := sdferr.New(sdferr.KindIdCollision, "pd %q: id %d in use", "client", 3)
	require.Error(t, err)
	assert.True(t, errors.Is(err, sdferr.KindIdCollision))
	assert.False(t, errors.Is(err, sdferr.KindIdExhausted))
}

func TestError_IsOtherError(t *testing.T) {
	t.Parallel()

	a := sdferr.New(sdferr.KindInvalidConfig, "bad region")
	b := sdferr.New(sdferr.KindInvalidConfig, "different message, same kind")
	c := sdferr.New(sdferr.KindJsonParse, "unrelated kind")

	assert.True(t, errors.Is(a, b))
	assert.False(t, errors.Is(a, c))
}

func TestWrap_Unwrap(t *testing.T) {
	t.Parallel()

	raw := fmt.Errorf("open config.json: no such file")
	err := sdferr.Wrap(sdferr.KindJsonParse, raw, "parse manifest")

	assert.ErrorIs(t, err, raw)
	assert.Contains(t, err.Error(), "no such file")
}
