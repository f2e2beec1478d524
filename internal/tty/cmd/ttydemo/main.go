// Command ttydemo exercises the console's keyboard path directly against a real terminal, logging
// every keycode as it's injected. Build and run it directly, since `go test`'s redirected stdin
// makes every other way of exercising tty.Console moot:
//
//	$ go run ./internal/tty/cmd/ttydemo
package main

import (
	"context"
	"log"
	"time"

	"github.com/project-octo/octovm/internal/tty"
	"github.com/project-octo/octovm/internal/vm"
)

func main() {
	ctx, cancelTimeout := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelTimeout()

	kbd := vm.NewKeyboard()
	video := vm.NewVideoController(1, 1, vm.VramStart)

	ctx, console, cancel := tty.ConsoleContext(ctx, kbd, video)
	defer cancel()

	if console != nil {
		defer console.Restore()
	}

	poll := time.NewTicker(50 * time.Millisecond)
	defer poll.Stop()

loop:
	for {
		select {
		case <-poll.C:
			if kbd.Status() != 0 {
				log.Printf("key: %x", kbd.Pop())
			}

		case <-ctx.Done():
			log.Printf("done: %s", ctx.Err())
			break loop
		}
	}
}
