package workers

import (
	"context"
	"slices"
)

// sortCutoff is the smallest run worth sorting on its own goroutine.
const sortCutoff = 4096

// Sort orders data in place by cmp. Chunks are sorted concurrently and
// then merged pairwise, one parallel round per doubling. Not stable.
func Sort[T any](ctx context.Context, p *Pool, data []T, cmp func(a, b T) int) error {
	n := len(data)
	runs := p.Size()
	if n/sortCutoff < runs {
		runs = n / sortCutoff
	}
	if runs <= 1 {
		slices.SortFunc(data, cmp)
		return nil
	}

	size := (n + runs - 1) / runs
	bounds := make([]int, 0, runs+1)
	for lo := 0; lo < n; lo += size {
		bounds = append(bounds, lo)
	}
	bounds = append(bounds, n)

	err := p.For(ctx, len(bounds)-1, 1, func(lo, hi int) {
		for r := lo; r < hi; r++ {
			slices.SortFunc(data[bounds[r]:bounds[r+1]], cmp)
		}
	})
	if err != nil {
		return err
	}

	src, dst := data, make([]T, n)
	for len(bounds) > 2 {
		runs := len(bounds) - 1
		err := p.For(ctx, (runs+1)/2, 1, func(lo, hi int) {
			for k := lo; k < hi; k++ {
				i := 2 * k
				a, m := bounds[i], bounds[i+1]
				e := m
				if i+2 <= runs {
					e = bounds[i+2]
				}
				merge(dst[a:e], src[a:m], src[m:e], cmp)
			}
		})
		if err != nil {
			return err
		}

		next := make([]int, 0, runs/2+2)
		for i := 0; i < runs; i += 2 {
			next = append(next, bounds[i])
		}
		bounds = append(next, n)
		src, dst = dst, src
	}

	if &src[0] != &data[0] {
		copy(data, src)
	}
	return nil
}

func merge[T any](dst, left, right []T, cmp func(a, b T) int) {
	i, j, k := 0, 0, 0
	for i < len(left) && j < len(right) {
		if cmp(right[j], left[i]) < 0 {
			dst[k] = right[j]
			j++
		} else {
			dst[k] = left[i]
			i++
		}
		k++
	}
	k += copy(dst[k:], left[i:])
	copy(dst[k:], right[j:])
}
