// Package fanout runs independent per-entity work with bounded concurrency.
package fanout

import (
	"context"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Map applies fn to every key with at most limit calls in flight. Results
// for which fn reports ok are collected under one mutex and returned sorted
// by less, so the output does not depend on scheduling. The first error
// cancels the remaining calls.
func Map[K any, R any](ctx context.Context, limit int, keys []K, fn func(context.Context, K) ([]R, error), less func(a, b R) bool) ([]R, error) {
	if limit <= 0 {
		limit = 1
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	var (
		mu  sync.Mutex
		out []R
	)
	for _, k := range keys {
		k := k
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res, err := fn(gctx, k)
			if err != nil {
				return err
			}
			if len(res) == 0 {
				return nil
			}
			mu.Lock()
			out = append(out, res...)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if less != nil {
		sort.SliceStable(out, func(i, j int) bool { return less(out[i], out[j]) })
	}
	return out, nil
}

// SortedKeys returns the keys of m in ascending order.
func SortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
