package scanner

import (
	"testing"

	"randomnessScope/internal/model"
)

func TestSelectWindowPaging(t *testing.T) {
	tests := []struct {
		name          string
		currentHeight uint64
		pageIndex     uint32
		windowSize    uint64
		genesis       uint64
		want          model.WindowCursor
		wantOlder     bool
	}{
		{
			name:          "newest window",
			currentHeight: 100000,
			pageIndex:     0,
			windowSize:    5000,
			want:          model.WindowCursor{FromBlock: 95001, ToBlock: 100000, PageIndex: 0},
			wantOlder:     true,
		},
		{
			name:          "second window",
			currentHeight: 100000,
			pageIndex:     1,
			windowSize:    5000,
			want:          model.WindowCursor{FromBlock: 90001, ToBlock: 95000, PageIndex: 1},
			wantOlder:     true,
		},
		{
			name:          "window clamped at genesis",
			currentHeight: 12000,
			pageIndex:     2,
			windowSize:    5000,
			want:          model.WindowCursor{FromBlock: 0, ToBlock: 2000, PageIndex: 2},
			wantOlder:     false,
		},
		{
			name:          "page below genesis falls back to earliest window",
			currentHeight: 12000,
			pageIndex:     9,
			windowSize:    5000,
			want:          model.WindowCursor{FromBlock: 0, ToBlock: 2000, PageIndex: 9},
			wantOlder:     false,
		},
		{
			name:          "short chain fits one window",
			currentHeight: 3000,
			pageIndex:     0,
			windowSize:    5000,
			want:          model.WindowCursor{FromBlock: 0, ToBlock: 3000, PageIndex: 0},
			wantOlder:     false,
		},
		{
			name:          "nonzero genesis clamps fromBlock",
			currentHeight: 10500,
			pageIndex:     1,
			windowSize:    5000,
			genesis:       2000,
			want:          model.WindowCursor{FromBlock: 2000, ToBlock: 5500, PageIndex: 1},
			wantOlder:     false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, older, err := SelectWindow(tt.currentHeight, tt.pageIndex, tt.windowSize, tt.genesis)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Fatalf("cursor mismatch: %+v != %+v", got, tt.want)
			}
			if older != tt.wantOlder {
				t.Fatalf("older flag mismatch: %v != %v", older, tt.wantOlder)
			}
		})
	}
}

func TestSelectWindowStableForAnchor(t *testing.T) {
	// Page ranges are a pure function of the anchor height, so a page
	// re-selected mid-session cannot shift when new blocks arrive.
	first, _, err := SelectWindow(100000, 1, 5000, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, _, err := SelectWindow(100000, 1, 5000, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first != second {
		t.Fatalf("window selection not deterministic: %+v != %+v", first, second)
	}
}

func TestSelectWindowInvalid(t *testing.T) {
	if _, _, err := SelectWindow(100, 0, 0, 0); err == nil {
		t.Fatalf("expected error for zero window size")
	}
	if _, _, err := SelectWindow(100, 0, 10, 200); err == nil {
		t.Fatalf("expected error for height below genesis")
	}
}
