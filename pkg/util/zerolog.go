package util

import (
	"io"
	"strings"

	"github.com/jackc/pgx/v4"
	"github.com/jzelinskie/cobrautil"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/authzed/connector-warehouse/pkg/errdefs"
	"github.com/authzed/connector-warehouse/pkg/streams"
)

// ZeroLogPreRunEFunc returns a cobra PreRunE function that points the global
// logger at out, using the command's --log-format and --log-level flags
func ZeroLogPreRunEFunc(out io.Writer) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		if cobrautil.IsBuiltinCommand(cmd) {
			return nil
		}
		return ConfigureLogger(out,
			cobrautil.MustGetString(cmd, "log-format"),
			cobrautil.MustGetString(cmd, "log-level"),
		)
	}
}

// ConfigureLogger sets the global logger output and level. format is "human",
// "json" or "auto"; auto picks the console writer on terminals.
func ConfigureLogger(out io.Writer, format, level string) error {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		return errdefs.Configuration("unknown log level: %s", level)
	}

	switch format {
	case "human":
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: out})
	case "auto":
		if streams.IsTerminal(out) {
			log.Logger = log.Output(zerolog.ConsoleWriter{Out: out})
		} else {
			log.Logger = log.Output(out)
		}
	case "json", "":
		log.Logger = log.Output(out)
	default:
		return errdefs.Configuration("unknown log format: %s", format)
	}

	zerolog.SetGlobalLevel(lvl)
	log.Debug().Str("level", lvl.String()).Msg("set log level")
	return nil
}

// LoggedConnConfig wraps a pgx.ConnConfig to make it satisfy the
// zerolog.LogObjectMarshaler interface. The password is never logged.
type LoggedConnConfig struct {
	*pgx.ConnConfig
}

// MarshalZerologObject satisfies the zerolog.LogObjectMarshaler interface
func (l LoggedConnConfig) MarshalZerologObject(e *zerolog.Event) {
	e.Str("host", l.Host)
	e.Uint16("port", l.Port)
	e.Str("user", l.User)
	e.Str("database", l.Database)
	e.Bool("tls", l.TLSConfig != nil)
	if v, ok := l.RuntimeParams["replication"]; ok {
		e.Str("replication", v)
	}
}
