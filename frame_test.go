package lurk

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func framesFor(t *testing.T, s *Store, src string, limit int) []Frame {
	t.Helper()
	expr, err := s.Read(src)
	require.NoError(t, err)
	frames, err := NewEvaluator(expr, s.InitialEmptyEnv(), s, limit, nil).Eval()
	require.NoError(t, err)
	return frames
}

func TestMultiFramePacking(t *testing.T) {
	s := NewStore()
	frames := framesFor(t, s, "(let ((a 5) (b 1) (c 2)) (/ (+ a b) c))", 100)
	require.Len(t, frames, 18)

	tests := []struct {
		rc      int
		count   int
		padding int
	}{
		{rc: 1, count: 18, padding: 0},
		{rc: 2, count: 9, padding: 0},
		{rc: 5, count: 4, padding: 2},
		{rc: 18, count: 1, padding: 0},
		{rc: 100, count: 1, padding: 82},
	}
	for _, test := range tests {
		t.Run(fmt.Sprintf("rc %d", test.rc), func(t *testing.T) {
			mfs := MultiFramesFromFrames(frames, test.rc, s, nil)
			require.Len(t, mfs, test.count)

			for _, mf := range mfs {
				assert.Len(t, mf.Frames, test.rc)
			}

			// Outer endpoints come from the first input and last output.
			assert.Equal(t, frames[0].Input, *mfs[0].Input)
			assert.Equal(t, frames[len(frames)-1].Output, *mfs[len(mfs)-1].Output)

			// Count padding frames in the final window.
			pad := 0
			for _, f := range mfs[len(mfs)-1].Frames {
				if f.Blank {
					pad++
					assert.Equal(t, f.Input, f.Output)
				}
			}
			assert.Equal(t, test.padding, pad)
		})
	}
}

func TestMultiFrameChaining(t *testing.T) {
	s := NewStore()
	frames := framesFor(t, s, "(let ((a 5) (b 1) (c 2)) (/ (+ a b) c))", 100)
	mfs := MultiFramesFromFrames(frames, 5, s, nil)
	require.True(t, len(mfs) > 1)
	for i := 1; i < len(mfs); i++ {
		assert.True(t, mfs[i-1].Precedes(mfs[i]), "multi-frame %d must precede %d", i-1, i)
	}
	assert.False(t, mfs[len(mfs)-1].Precedes(mfs[0]))
}

func TestMultiFramePublicInputs(t *testing.T) {
	s := NewStore()
	frames := framesFor(t, s, "(+ 1 2)", 100)
	mfs := MultiFramesFromFrames(frames, 3, s, nil)
	require.Len(t, mfs, 1)

	mf := mfs[0]
	assert.Equal(t, 12, mf.PublicInputSize())
	public, err := mf.PublicInputs()
	require.NoError(t, err)
	require.Len(t, public, 12)

	in := s.IOToScalarVector(*mf.Input)
	out := s.IOToScalarVector(*mf.Output)
	assert.Equal(t, in[:], public[:6])
	assert.Equal(t, out[:], public[6:])

	// The trace ends terminal with value 3.
	assert.Equal(t, fUint64(3), public[7])
	assert.Equal(t, ContTerminal.Field(), public[10])
}

func TestMakeDummy(t *testing.T) {
	s := NewStore()
	frames := framesFor(t, s, "(+ 1 2)", 100)
	mfs := MultiFramesFromFrames(frames, 3, s, nil)
	dummy := mfs[0].MakeDummy()

	assert.Equal(t, *mfs[0].Output, *dummy.Input)
	assert.Equal(t, *mfs[0].Output, *dummy.Output)
	assert.True(t, mfs[0].Precedes(dummy))
	assert.True(t, dummy.Precedes(dummy))
	for _, f := range dummy.Frames {
		assert.True(t, f.Blank)
		assert.Equal(t, f.Input, f.Output)
	}
}

func TestSynthesizeSatisfied(t *testing.T) {
	s := NewStore()
	frames := framesFor(t, s, "(let ((a 5) (b 1) (c 2)) (/ (+ a b) c))", 100)
	s.HydrateZCache()
	for i, mf := range MultiFramesFromFrames(frames, 6, s, nil) {
		cs := NewTestConstraintSystem()
		require.NoError(t, mf.Synthesize(cs))
		assert.Equal(t, 12, cs.NumInputs())
		assert.NoError(t, cs.IsSatisfied(), "multi-frame %d", i)
	}
}

func TestSynthesizeBlankHasShapeButNoAssignments(t *testing.T) {
	blank := BlankMultiFrame(4, NewLang())
	cs := NewTestConstraintSystem()
	require.NoError(t, blank.Synthesize(cs))

	assert.Equal(t, 12, cs.NumInputs())
	assert.Greater(t, cs.NumConstraints(), 0)
	_, err := cs.PublicInputs()
	assert.ErrorIs(t, err, ErrAssignmentMissing)
}

func TestWitnessComputation(t *testing.T) {
	s := NewStore()
	frames := framesFor(t, s, "(+ 1 2)", 100)
	s.HydrateZCache()
	mfs := MultiFramesFromFrames(frames, 3, s, nil)
	require.NoError(t, computeWitnesses(mfs))

	w := mfs[0].CachedWitness()
	require.NotNil(t, w)
	again, err := mfs[0].ComputeWitness()
	require.NoError(t, err)
	assert.Equal(t, w, again)
}
