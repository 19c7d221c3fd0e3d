package model

// BlockRef pins an event or aggregate to the block it was emitted in.
type BlockRef struct {
	Number    uint64 `json:"number"`
	Timestamp uint64 `json:"timestamp"`
}

// WindowCursor identifies one scanned block range. Page 0 is the most
// recent window below the anchor height; both bounds are inclusive.
type WindowCursor struct {
	FromBlock uint64 `json:"from_block"`
	ToBlock   uint64 `json:"to_block"`
	PageIndex uint32 `json:"page_index"`
}

// WindowInfo describes the currently scanned range for display.
type WindowInfo struct {
	CurrentBlock uint64 `json:"current_block"`
	FromBlock    uint64 `json:"from_block"`
	ToBlock      uint64 `json:"to_block"`
	BlockRange   uint64 `json:"block_range"`
}
