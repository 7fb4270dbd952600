package engine

// MouseEventKind discriminates mouse event types.
type MouseEventKind int

const (
	MouseMoved MouseEventKind = iota
	MouseDown
	MouseUp
)

// MouseButton identifies the button involved in a mouse event.
type MouseButton int

const (
	MouseButtonNone MouseButton = iota
	MouseButtonLeft
	MouseButtonMiddle
	MouseButtonRight
)

// MouseEvent is a pointer event in view coordinates.
type MouseEvent struct {
	Kind   MouseEventKind
	X, Y   int
	Button MouseButton
}

// ScrollEventKind discriminates scroll delta units.
type ScrollEventKind int

const (
	ScrollByPixel ScrollEventKind = iota
	ScrollByPage
)

// ScrollEvent is a scroll delta in view coordinates.
type ScrollEvent struct {
	Kind           ScrollEventKind
	DeltaX, DeltaY int
}

// KeyEventKind discriminates keyboard event types. Values match the host
// wire encoding: 0=KeyUp, 1=KeyDown, 2=RawKeyDown, 3=Char.
type KeyEventKind int

const (
	KeyUp KeyEventKind = iota
	KeyDown
	RawKeyDown
	KeyChar
)

// KeyEvent is a keyboard event. For KeyChar, VirtualKey carries the
// character code.
type KeyEvent struct {
	Kind       KeyEventKind
	VirtualKey int
	Modifiers  int
}
