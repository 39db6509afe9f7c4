package common

// Key is a platform-neutral key code. Values match GLFW key codes, which use ASCII for printable keys,
// so GLFW callbacks can be converted with a plain cast. The ebiten viewer maps its own keys onto these.
// Reference: https://pkg.go.dev/github.com/go-gl/glfw/v3.3/glfw#Key
type Key uint32

const (
	KeyW     Key = 87
	KeyA     Key = 65
	KeyS     Key = 83
	KeyD     Key = 68
	KeyQ     Key = 81
	KeyE     Key = 69
	KeyG     Key = 71 // toggle grid
	KeyF     Key = 70 // toggle wireframe
	KeyP     Key = 80 // toggle perspective/orthographic
	KeySpace Key = 32
	KeyEsc   Key = 256

	KeyRight Key = 262
	KeyLeft  Key = 263
	KeyDown  Key = 264
	KeyUp    Key = 265
)

// KeyState tracks which keys are currently held down.
// It is not safe for concurrent use; window callbacks and the tick loop must share one goroutine
// or guard it externally.
type KeyState map[Key]bool

// Press marks key as held.
func (k KeyState) Press(key Key) { k[key] = true }

// Release marks key as no longer held.
func (k KeyState) Release(key Key) { delete(k, key) }

// Down reports whether key is held.
func (k KeyState) Down(key Key) bool { return k[key] }
