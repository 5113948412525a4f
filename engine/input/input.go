package input

import (
	emath "github.com/spaghettifunk/vkapp/engine/math"
)

// Key code definitions
type KeyCode uint16

const (
	KEY_UNKNOWN   KeyCode = 0x00
	KEY_TAB       KeyCode = 0x09
	KEY_ESCAPE    KeyCode = 0x1B
	KEY_SPACE     KeyCode = 0x20
	KEY_LEFT      KeyCode = 0x25
	KEY_UP        KeyCode = 0x26
	KEY_RIGHT     KeyCode = 0x27
	KEY_DOWN      KeyCode = 0x28
	KEY_A         KeyCode = 0x41
	KEY_B         KeyCode = 0x42
	KEY_C         KeyCode = 0x43
	KEY_D         KeyCode = 0x44
	KEY_E         KeyCode = 0x45
	KEY_F         KeyCode = 0x46
	KEY_G         KeyCode = 0x47
	KEY_H         KeyCode = 0x48
	KEY_I         KeyCode = 0x49
	KEY_J         KeyCode = 0x4A
	KEY_K         KeyCode = 0x4B
	KEY_L         KeyCode = 0x4C
	KEY_M         KeyCode = 0x4D
	KEY_N         KeyCode = 0x4E
	KEY_O         KeyCode = 0x4F
	KEY_P         KeyCode = 0x50
	KEY_Q         KeyCode = 0x51
	KEY_R         KeyCode = 0x52
	KEY_S         KeyCode = 0x53
	KEY_T         KeyCode = 0x54
	KEY_U         KeyCode = 0x55
	KEY_V         KeyCode = 0x56
	KEY_W         KeyCode = 0x57
	KEY_X         KeyCode = 0x58
	KEY_Y         KeyCode = 0x59
	KEY_Z         KeyCode = 0x5A
	KEY_LSHIFT    KeyCode = 0xA0
	KEY_RSHIFT    KeyCode = 0xA1
	KEY_LCONTROL  KeyCode = 0xA2
	KEYS_MAX_KEYS KeyCode = 0x100
)

// Action is what a key is bound to.
type Action uint8

const (
	ActionMoveForward Action = iota
	ActionMoveRight
	ActionMoveUp
	ActionSprint
	ActionToggleMouseCapture
	ActionExit
	ACTION_MAX
)

// Binding maps a key to an action. Scale is the key's contribution when the
// action is read as an axis, e.g. -1 for backward.
type Binding struct {
	Key    KeyCode
	Action Action
	Scale  float32
}

func DefaultBindings() []Binding {
	return []Binding{
		{Key: KEY_W, Action: ActionMoveForward, Scale: 1},
		{Key: KEY_S, Action: ActionMoveForward, Scale: -1},
		{Key: KEY_D, Action: ActionMoveRight, Scale: 1},
		{Key: KEY_A, Action: ActionMoveRight, Scale: -1},
		{Key: KEY_E, Action: ActionMoveUp, Scale: 1},
		{Key: KEY_Q, Action: ActionMoveUp, Scale: -1},
		{Key: KEY_LSHIFT, Action: ActionSprint, Scale: 1},
		{Key: KEY_TAB, Action: ActionToggleMouseCapture, Scale: 1},
		{Key: KEY_ESCAPE, Action: ActionExit, Scale: 1},
	}
}

// Keyboard state structure
type KeyboardState struct {
	Keys [KEYS_MAX_KEYS]bool
}

// InputSystem turns raw key, cursor and wheel events into per-frame action
// state. Events are fed from the window callbacks; Update is called once per
// frame after polling and freezes what the frame sees. Not safe for concurrent
// use, everything runs on the main thread.
type InputSystem struct {
	bindings []Binding

	keyboardCurrent  KeyboardState
	keyboardFrame    KeyboardState
	keyboardPrevious KeyboardState
	pressedPending   KeyboardState
	pressedFrame     KeyboardState

	mouseCaptured bool
	firstMouse    bool
	lastX, lastY  float64

	pendingDX, pendingDY, pendingScroll float32
	mouseDX, mouseDY, scroll            float32
}

func NewInputSystem(bindings []Binding) *InputSystem {
	return &InputSystem{
		bindings:   bindings,
		firstMouse: true,
	}
}

// Update latches the events received since the previous call.
func (s *InputSystem) Update() {
	// Copy current states to previous states.
	s.keyboardPrevious = s.keyboardFrame
	s.keyboardFrame = s.keyboardCurrent
	s.pressedFrame = s.pressedPending
	s.pressedPending = KeyboardState{}

	s.mouseDX, s.mouseDY, s.scroll = s.pendingDX, s.pendingDY, s.pendingScroll
	s.pendingDX, s.pendingDY, s.pendingScroll = 0, 0, 0
}

func (s *InputSystem) ProcessKey(key KeyCode, pressed bool) {
	if key == KEY_UNKNOWN || key >= KEYS_MAX_KEYS {
		return
	}
	// Only handle this if the state actually changed.
	if s.keyboardCurrent.Keys[key] != pressed {
		s.keyboardCurrent.Keys[key] = pressed
		if pressed {
			s.pressedPending.Keys[key] = true
		}
	}
}

// ProcessMouseMove accumulates cursor motion while the mouse is captured. The
// first sample after capture only sets the reference point. Y grows upwards.
func (s *InputSystem) ProcessMouseMove(x, y float64) {
	if !s.mouseCaptured {
		return
	}
	if s.firstMouse {
		s.lastX, s.lastY = x, y
		s.firstMouse = false
		return
	}
	s.pendingDX += float32(x - s.lastX)
	s.pendingDY += float32(s.lastY - y)
	s.lastX, s.lastY = x, y
}

func (s *InputSystem) ProcessMouseWheel(yoffset float64) {
	s.pendingScroll += float32(yoffset)
}

func (s *InputSystem) SetMouseCaptured(captured bool) {
	s.mouseCaptured = captured
	s.firstMouse = true
	s.pendingDX, s.pendingDY = 0, 0
}

func (s *InputSystem) MouseCaptured() bool {
	return s.mouseCaptured
}

func (s *InputSystem) IsKeyDown(key KeyCode) bool {
	return key < KEYS_MAX_KEYS && s.keyboardFrame.Keys[key]
}

func (s *InputSystem) WasKeyDown(key KeyCode) bool {
	return key < KEYS_MAX_KEYS && s.keyboardPrevious.Keys[key]
}

// Axis sums the scales of the held keys bound to action, limited to [-1, 1].
func (s *InputSystem) Axis(action Action) float32 {
	var v float32
	for _, b := range s.bindings {
		if b.Action == action && s.keyboardFrame.Keys[b.Key] {
			v += b.Scale
		}
	}
	return emath.Clamp(v, -1, 1)
}

// Button reports whether any key bound to action is held.
func (s *InputSystem) Button(action Action) bool {
	for _, b := range s.bindings {
		if b.Action == action && s.keyboardFrame.Keys[b.Key] {
			return true
		}
	}
	return false
}

// ButtonDown reports whether a key bound to action went down this frame.
func (s *InputSystem) ButtonDown(action Action) bool {
	for _, b := range s.bindings {
		if b.Action == action && s.pressedFrame.Keys[b.Key] {
			return true
		}
	}
	return false
}

// MouseDelta is the cursor motion of this frame, zero unless captured.
func (s *InputSystem) MouseDelta() (float32, float32) {
	return s.mouseDX, s.mouseDY
}

func (s *InputSystem) ScrollDelta() float32 {
	return s.scroll
}
