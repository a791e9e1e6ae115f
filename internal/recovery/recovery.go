// internal/recovery/recovery.go
package recovery

import (
	"fmt"
	"log/slog"
	"os"
	"runtime/debug"
)

// exit is replaced in tests
var exit = os.Exit

// HandlePanic should be deferred at the top of main() or goroutines.
// It logs panic details and exits with code 1.
func HandlePanic() {
	if r := recover(); r != nil {
		report(r, debug.Stack())
		exit(1)
	}
}

// HandlePanicFunc logs panic details and calls the provided cleanup function
// before exiting. Capture and playback goroutines use it to release their
// audio device.
func HandlePanicFunc(cleanup func()) {
	if r := recover(); r != nil {
		report(r, debug.Stack())
		if cleanup != nil {
			cleanup()
		}
		exit(1)
	}
}

func report(r any, stack []byte) {
	slog.Error("panic", "value", fmt.Sprint(r))
	_, _ = fmt.Fprintf(os.Stderr, "FATAL: %v\n\nStack trace:\n%s\n", r, stack)
}
