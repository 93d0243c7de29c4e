package converter

import (
	"math"
	"testing"

	"github.com/binzume/rigconv/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCompilationContext(t *testing.T) {
	t.Run("Should fall back to the default sample rate", func(t *testing.T) {
		for _, rate := range []float32{0, -30, float32(math.NaN())} {
			opts := DefaultOptions()
			opts.SampleRate = rate
			ctx := NewCompilationContext("test", opts, logger.Nop())
			assert.Equal(t, float32(30), ctx.SampleRate)
			if !math.IsNaN(float64(rate)) {
				assert.Equal(t, rate, opts.SampleRate)
			}
		}
	})

	t.Run("Should sample clips at the default rate", func(t *testing.T) {
		opts := DefaultOptions()
		opts.SampleRate = 0
		res, err := CompileScene(NewCompilationContext("test", opts, nil), parseScene(t, abcScene))
		require.NoError(t, err)
		walk := res.Animations.Clips[1]
		assert.Equal(t, float32(30), walk.SampleRate)
		assert.Equal(t, 31, walk.SampleCount)
		for _, p := range walk.Tracks[0].Positions {
			assert.False(t, math.IsNaN(float64(p.Y)))
		}
	})

	t.Run("Should keep a valid sample rate", func(t *testing.T) {
		opts := DefaultOptions()
		opts.SampleRate = 60
		assert.Equal(t, float32(60), NewCompilationContext("test", opts, nil).SampleRate)
	})
}
