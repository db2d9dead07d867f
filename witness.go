package lurk

import (
	"runtime"

	"golang.org/x/sync/errgroup"
)

// computeWitnesses fills every multi-frame's witness cache. Independent
// multi-frames produce independent witnesses, so the work is spread over a
// bounded worker group; folding itself stays sequential.
func computeWitnesses(multiFrames []*MultiFrame) error {
	var g errgroup.Group
	g.SetLimit(runtime.GOMAXPROCS(0))
	for _, mf := range multiFrames {
		mf := mf
		g.Go(func() error {
			_, err := mf.ComputeWitness()
			return err
		})
	}
	return g.Wait()
}
