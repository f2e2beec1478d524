// Termtest is a testing tool for Unix terminal I/O. Lacking simple PTY support, running this tool
// manually is easier than writing automated tests. Unlike ttydemo, it also exercises the display
// path: every keystroke is poked into Vram directly, so the live render shows the keystroke's bit
// pattern moving across the framebuffer.
package main

import (
	"context"
	"time"

	"github.com/project-octo/octovm/internal/log"
	"github.com/project-octo/octovm/internal/tty"
	"github.com/project-octo/octovm/internal/vm"
)

var logger = log.DefaultLogger()

func main() {
	var (
		ctx   = context.Background()
		bus   = vm.NewBus(1)
		video = vm.NewVideoController(64, 8, vm.VramStart)
	)

	ctx, _, cancel := tty.ConsoleContext(ctx, bus.Keyboard, video)
	defer cancel()

	select {
	case <-ctx.Done():
		logger.Debug("cause", context.Cause(ctx))
	default:
	}

	logger.Info("Polling keyboard. Type keys.")

	poll := time.Tick(100 * time.Millisecond)
	timeout := time.After(5 * time.Second)
	cursor := vm.VramStart

	for {
		select {
		case <-poll:
			if bus.Keyboard.Status() == 0 {
				continue
			}

			bus.ForceSet(cursor, bus.Keyboard.Pop())
			cursor++

			video.Refresh(bus)
		case <-timeout:
			cancel()
			return
		case <-ctx.Done():
			if ctx.Err() != nil {
				logger.Error(context.Cause(ctx).Error())
			} else {
				logger.Info("Done")
			}

			return
		}
	}
}
