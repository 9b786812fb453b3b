package signals

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
)

var shutdownSignals = []os.Signal{os.Interrupt, syscall.SIGTERM}

// Context returns a context that is cancelled on SIGINT or SIGTERM. A second
// signal exits the process.
func Context() context.Context {
	ctx, cancel := context.WithCancel(context.Background())

	c := make(chan os.Signal, 2)
	signal.Notify(c, shutdownSignals...)
	go func() {
		s := <-c
		log.Info().Stringer("signal", s).Msg("shutting down")
		cancel()
		<-c
		os.Exit(1)
	}()

	return ctx
}
