package scanner

import (
	"fmt"

	"randomnessScope/internal/model"
)

// DefaultWindowSize is the number of blocks scanned per history page.
const DefaultWindowSize = 5000

// SelectWindow computes the inclusive block range for one history page.
// Page 0 is the newest window ending at currentHeight; higher pages
// step back in windowSize strides, with fromBlock clamped to the
// genesis block. A page entirely below genesis yields the earliest
// valid window instead. The returned bool reports whether an older
// page exists below the window.
func SelectWindow(currentHeight uint64, pageIndex uint32, windowSize, genesis uint64) (model.WindowCursor, bool, error) {
	if windowSize == 0 {
		return model.WindowCursor{}, false, fmt.Errorf("window size must be greater than zero")
	}
	if currentHeight < genesis {
		return model.WindowCursor{}, false, fmt.Errorf("current height %d below genesis %d", currentHeight, genesis)
	}

	offset := uint64(pageIndex) * windowSize
	if offset > currentHeight-genesis {
		// The page is entirely below genesis: fall back to the last
		// page that still overlaps the chain.
		lastPage := (currentHeight - genesis) / windowSize
		offset = lastPage * windowSize
	}
	toBlock := currentHeight - offset

	fromBlock := genesis
	if toBlock > genesis && toBlock-genesis > windowSize-1 {
		fromBlock = toBlock - windowSize + 1
	}

	cursor := model.WindowCursor{
		FromBlock: fromBlock,
		ToBlock:   toBlock,
		PageIndex: pageIndex,
	}
	return cursor, fromBlock > genesis, nil
}
