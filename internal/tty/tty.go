// Package tty provides terminal emulation.
package tty

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"syscall"
	"time"

	"github.com/project-octo/octovm/internal/vm"
	"golang.org/x/sys/unix"
	"golang.org/x/term"
)

// refreshInterval is how often the console repaints the terminal from the framebuffer. There is
// no write-side signal to hook: the video controller is pulled from the bus on demand, not pushed
// to, so painting runs on a ticker instead.
const refreshInterval = 33 * time.Millisecond

// Console is a serial console for the machine simulated using Unix terminal I/O[^1]. It adapts the
// machine's (virtual) keyboard and framebuffer for use on contemporary systems[^2].
//
// Keys pressed on the console are injected into the keyboard device. Likewise, the current
// framebuffer window is painted onto the terminal on every tick.
//
// [1]: See: tty(4), termios(4).
// [2]: These systems, themselves, emulating electromechanical teletype devices, of course.
type Console struct {
	in    *os.File
	out   io.Writer
	fd    int
	state *term.State

	keyCh chan byte
}

// ErrNoTTY is returned if standard input is not a terminal. In this case, asynchronous I/O is
// not supported by the console.
var ErrNoTTY error = errors.New("console: not a TTY")

// ConsoleContext creates a Console context with the standard streams. Calling cancel will restore
// the terminal state and release resources.
func ConsoleContext(parent context.Context, keyboard *vm.Keyboard, video *vm.VideoController) (
	context.Context, *Console, context.CancelFunc,
) {
	ctx, cause := context.WithCancelCause(parent)

	console, err := NewConsole(os.Stdin, os.Stdout)
	if err != nil {
		cause(err)

		return ctx, console, func() { cause(err) }
	}

	go console.readTerminal(ctx, cause)
	go console.updateKeyboard(ctx, keyboard)
	go console.paintDisplay(ctx, video, cause)

	return ctx, console, console.Restore
}

// WithTerminal returns a vm.OptionFn that wires a freshly-constructed CPU's keyboard and bus-fed
// video controller to a console on the standard streams.
func WithTerminal(parent context.Context, video *vm.VideoController) vm.OptionFn {
	ctx, cause := context.WithCancelCause(parent)

	return func(cpu *vm.CPU) {
		console, err := NewConsole(os.Stdin, os.Stdout)
		if err != nil {
			cause(err)
			return
		}

		go console.readTerminal(ctx, cause)
		go console.updateKeyboard(ctx, cpu.Bus.Keyboard)
		go console.paintDisplay(ctx, video, cause)
	}
}

// NewConsole creates a Console using the provided streams. If the input stream is not a terminal,
// ErrNoTTY is returned. Callers are responsible for calling [Console.Restore] to return the
// terminal to its initial state.
func NewConsole(sin *os.File, sout io.Writer) (*Console, error) {
	fd := int(sin.Fd())

	if !term.IsTerminal(fd) {
		return nil, ErrNoTTY
	}

	saved, err := term.MakeRaw(fd)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNoTTY, err)
	}

	cons := Console{
		fd:    fd,
		in:    sin,
		out:   sout,
		state: saved,
		keyCh: make(chan byte, 1),
	}

	if err := cons.setTerminalParams(1, 0); err != nil {
		return nil, err
	}

	return &cons, nil
}

// Press injects a key press into the input stream.
func (c Console) Press(key byte) {
	c.keyCh <- key
}

// Writer returns the stream the console paints the framebuffer to.
func (c Console) Writer() io.Writer {
	return c.out
}

// Restore returns the terminal to its initial state and cancels in-progress reads.
func (c *Console) Restore() {
	_ = os.Stdin.SetReadDeadline(time.Now())
	_ = term.Restore(c.fd, c.state)
}

func (c *Console) setTerminalParams(vmin, vtime byte) error {
	_ = syscall.SetNonblock(c.fd, true)

	termIO, err := unix.IoctlGetTermios(c.fd, getTermiosIoctl)
	if err != nil {
		return err
	}

	termIO.Cc[unix.VMIN] = vmin
	termIO.Cc[unix.VTIME] = vtime

	err = unix.IoctlSetTermios(c.fd, setTermiosIoctl, termIO)
	if err != nil {
		return err
	}

	_ = os.Stdin.SetReadDeadline(time.Time{})

	return nil
}

// readTerminal reads bytes from the terminal and writes them to the key channel until the context
// is cancelled. If reading from the terminal fails, the cancel is called.
func (c Console) readTerminal(ctx context.Context, cancel context.CancelCauseFunc) {
	buf := bufio.NewReader(c.in)

	// Make terminal input block on reads.
	_ = syscall.SetNonblock(c.fd, false)

	for { // ever and ever
		select {
		case <-ctx.Done():
			return
		default:
		}

		b, err := buf.ReadByte()
		if err != nil {
			cancel(err)
			return
		}

		select {
		case <-ctx.Done():
			return
		case c.keyCh <- b:
		}
	}
}

// updateKeyboard takes keys off the key channel and injects each into the keyboard device. The
// function blocks until the context is cancelled.
func (c Console) updateKeyboard(ctx context.Context, kbd *vm.Keyboard) {
	for { // you, a gift.
		select {
		case <-ctx.Done():
			return
		case key := <-c.keyCh:
			kbd.Inject(vm.Byte(key))
		}
	}
}

// paintDisplay repaints the terminal from the framebuffer on every tick: clear the screen, then
// render one '#'/' ' column per bit, row-major, matching the framebuffer's packing (§4.6).
func (c Console) paintDisplay(ctx context.Context, video *vm.VideoController, cancel context.CancelCauseFunc) {
	ticker := time.NewTicker(refreshInterval)
	defer ticker.Stop()

	width, height := video.Dimensions()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.render(video, width, height); err != nil {
				cancel(err)
				return
			}
		}
	}
}

func (c Console) render(video *vm.VideoController, width, height int) error {
	fb := video.Framebuffer()

	out := []byte("\x1b[H\x1b[2J")

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			bit := y*width + x
			idx, shift := bit/8, 7-(bit%8)

			if idx < len(fb) && fb[idx]&(1<<shift) != 0 {
				out = append(out, '#')
			} else {
				out = append(out, ' ')
			}
		}

		out = append(out, '\n')
	}

	_, err := c.out.Write(out)

	return err
}
