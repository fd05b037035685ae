package latent

// BrushState is the per-gesture state of the brush.
type BrushState string

// Brush states. Committed and Cancelled are transient: the brush reports them
// as the outcome of a gesture and is already back in Idle afterwards.
const (
	BrushIdle      BrushState = "idle"
	BrushBrushing  BrushState = "brushing"
	BrushCommitted BrushState = "committed"
	BrushCancelled BrushState = "cancelled"
)

// Outcome is the result of feeding a pointer event to the brush.
type Outcome struct {
	State BrushState
	Rect  Rect
}

// Brush tracks one rectangular drag gesture in canvas space.
type Brush struct {
	state   BrushState
	anchor  Pixel
	current Pixel
}

// NewBrush returns an idle brush.
func NewBrush() *Brush {
	return &Brush{state: BrushIdle}
}

// State returns the current state.
func (b *Brush) State() BrushState { return b.state }

// Down starts a gesture at p. A second Down while brushing re-anchors.
func (b *Brush) Down(p Pixel) Outcome {
	b.state = BrushBrushing
	b.anchor = p
	b.current = p
	return Outcome{State: b.state, Rect: RectFrom(p, p)}
}

// Move updates the live rectangle. Ignored unless brushing.
func (b *Brush) Move(p Pixel) Outcome {
	if b.state != BrushBrushing {
		return Outcome{State: b.state}
	}
	b.current = p
	return Outcome{State: b.state, Rect: RectFrom(b.anchor, b.current)}
}

// Up finishes the gesture and returns the normalised rectangle as Committed.
func (b *Brush) Up(p Pixel) Outcome {
	if b.state != BrushBrushing {
		return Outcome{State: b.state}
	}
	b.current = p
	r := RectFrom(b.anchor, b.current)
	b.reset()
	return Outcome{State: BrushCommitted, Rect: r}
}

// Leave discards an in-progress gesture.
func (b *Brush) Leave() Outcome {
	if b.state != BrushBrushing {
		return Outcome{State: b.state}
	}
	b.reset()
	return Outcome{State: BrushCancelled}
}

// Live returns the rectangle being drawn, if any.
func (b *Brush) Live() (Rect, bool) {
	if b.state != BrushBrushing {
		return Rect{}, false
	}
	return RectFrom(b.anchor, b.current), true
}

func (b *Brush) reset() {
	b.state = BrushIdle
	b.anchor = Pixel{}
	b.current = Pixel{}
}
