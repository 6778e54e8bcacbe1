package async

import (
	"context"
	"iter"

	"golang.org/x/sync/errgroup"
)

// --------------------------------------------------------------------------
// Sequential Transform
// --------------------------------------------------------------------------

// Transform runs fn on each item strictly in order, one invocation fully
// completing before the next begins. On the first error no further
// invocations happen and the error is returned; results collected so far
// are discarded.
func Transform[T, U any](ctx context.Context, items []T, fn func(context.Context, T) (U, error)) ([]U, error) {
	res := make([]U, 0, len(items))
	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		u, err := fn(ctx, item)
		if err != nil {
			return nil, err
		}
		res = append(res, u)
	}
	return res, nil
}

// TransformSeq is the range form of Transform. The sequence is fully owned
// by the caller and outlives all invocations.
func TransformSeq[T, U any](ctx context.Context, seq iter.Seq[T], fn func(context.Context, T) (U, error)) ([]U, error) {
	var res []U
	for item := range seq {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		u, err := fn(ctx, item)
		if err != nil {
			return nil, err
		}
		res = append(res, u)
	}
	return res, nil
}

// --------------------------------------------------------------------------
// Parallel Transform
// --------------------------------------------------------------------------

// ParallelTransform starts fn for every item immediately and awaits all
// invocations. On success the results are in input order; on failure one
// of the errors is returned and the context handed to still-running
// invocations is cancelled.
func ParallelTransform[T, U any](ctx context.Context, items []T, fn func(context.Context, T) (U, error)) ([]U, error) {
	res := make([]U, len(items))
	g, gctx := errgroup.WithContext(ctx)
	for i, item := range items {
		g.Go(func() error {
			u, err := fn(gctx, item)
			if err != nil {
				return err
			}
			res[i] = u
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return res, nil
}

// ParallelTransformSeq is the range form of ParallelTransform
func ParallelTransformSeq[T, U any](ctx context.Context, seq iter.Seq[T], fn func(context.Context, T) (U, error)) ([]U, error) {
	var items []T
	for item := range seq {
		items = append(items, item)
	}
	return ParallelTransform(ctx, items, fn)
}
