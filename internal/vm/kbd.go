package vm

import (
	"fmt"
	"sync"
)

// Keyboard is a bounded FIFO of at most one pending keycode, injected by the host and drained
// through MMIO by the guest.
type Keyboard struct {
	mut     sync.Mutex
	pending bool
	key     Byte
}

// NewKeyboard creates an empty keyboard device.
func NewKeyboard() *Keyboard {
	return &Keyboard{}
}

// Inject appends a keycode to the queue if it is empty; otherwise the key is dropped silently,
// per §4.2 ("the hardware accepts at most one pending key at a time").
func (k *Keyboard) Inject(key Byte) {
	k.mut.Lock()
	defer k.mut.Unlock()

	if k.pending {
		return
	}

	k.key = key
	k.pending = true
}

// Status returns 1 if the queue is non-empty, else 0.
func (k *Keyboard) Status() Byte {
	k.mut.Lock()
	defer k.mut.Unlock()

	if k.pending {
		return 1
	}

	return 0
}

// Pop removes and returns the head of the queue, or 0 if empty.
func (k *Keyboard) Pop() Byte {
	k.mut.Lock()
	defer k.mut.Unlock()

	if !k.pending {
		return 0
	}

	key := k.key
	k.key = 0
	k.pending = false

	return key
}

func (k *Keyboard) String() string {
	k.mut.Lock()
	defer k.mut.Unlock()

	return fmt.Sprintf("Keyboard(pending:%t,key:%s)", k.pending, k.key)
}

// Keycode assigns the fixed scancode for a named key, per §4.2. Unknown keys return 0 and must
// not be injected.
func Keycode(name string) Byte {
	if len(name) == 1 {
		c := name[0]
		switch {
		case c >= 'a' && c <= 'z':
			return Byte(c-'a') + 1
		case c >= '1' && c <= '9':
			return Byte(c-'1') + 31
		case c == '0':
			return 40
		}
	}

	switch name {
	case "ArrowUp":
		return 27
	case "ArrowDown":
		return 28
	case "ArrowLeft":
		return 29
	case "ArrowRight":
		return 30
	case "Backspace":
		return 50
	case "Enter":
		return 51
	case "Escape":
		return 52
	case "Space":
		return 53
	case "Tab":
		return 54
	default:
		return 0
	}
}
