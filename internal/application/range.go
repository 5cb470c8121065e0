package application

import "errors"

// RangeRequest carries the user-supplied window bounds. Nil bounds are
// derived from the blocks width and the chain tip.
type RangeRequest struct {
	FromBlock *uint64
	ToBlock   *uint64
	Blocks    uint64
}

var ErrInvalidBlockWindow = errors.New("blocks must be > 0")

// ResolveRange computes the effective [from, to] window. The tip must be a
// value read once for the whole invocation. An inverted range is swapped
// rather than rejected, and the swap happens before the tip clamp so the
// returned toBlock never exceeds the tip. A fromBlock beyond the tip
// collapses the window to [tip, tip].
func ResolveRange(req RangeRequest, tip uint64) (uint64, uint64, error) {
	if req.Blocks == 0 {
		return 0, 0, ErrInvalidBlockWindow
	}

	var from, to uint64
	switch {
	case req.FromBlock == nil && req.ToBlock == nil:
		to = tip
		from = lowerBound(tip, req.Blocks)
	case req.FromBlock == nil:
		to = *req.ToBlock
		from = lowerBound(to, req.Blocks)
	case req.ToBlock == nil:
		from = *req.FromBlock
		to = from + req.Blocks - 1
	default:
		from = *req.FromBlock
		to = *req.ToBlock
	}

	if from > to {
		from, to = to, from
	}
	if to > tip {
		to = tip
	}
	if from > to {
		from = to
	}
	return from, to, nil
}

func lowerBound(to, blocks uint64) uint64 {
	if to+1 < blocks {
		return 0
	}
	return to + 1 - blocks
}
