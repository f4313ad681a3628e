package browser

// sidePanelShare is the fraction of screen width kept free on the right for
// the side panel.
const sidePanelShare = 0.4

// Screen is the estimated usable display area
type Screen struct {
	Left   int `json:"left"`
	Top    int `json:"top"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Bounds is a window rectangle in screen pixels
type Bounds struct {
	Left   int
	Top    int
	Width  int
	Height int
}

// Layout places a platform window as slot Index of Total
type Layout struct {
	Index int
	Total int
}

// Tile computes window bounds for a layout slot. The left 60% of the screen
// is split into a grid sized by Total; beyond six windows slots wrap and
// overlap.
func Tile(screen Screen, l Layout) Bounds {
	usable := int(float64(screen.Width) * (1 - sidePanelShare))
	cols, rows := grid(l.Total)

	width := usable / cols
	height := screen.Height / rows

	slot := l.Index
	if slot < 0 {
		slot = 0
	}
	slot %= cols * rows

	return Bounds{
		Left:   screen.Left + (slot%cols)*width,
		Top:    screen.Top + (slot/cols)*height,
		Width:  width,
		Height: height,
	}
}

func grid(total int) (cols, rows int) {
	switch {
	case total <= 1:
		return 1, 1
	case total == 2:
		return 2, 1
	case total <= 4:
		return 2, 2
	default:
		return 3, 2
	}
}
