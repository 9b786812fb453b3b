package options

import (
	"net"
	"net/url"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/authzed/connector-warehouse/pkg/errdefs"
)

// PostgresOptions holds the connection options of one postgres endpoint. The
// source and the warehouse each get their own set, with flags prefixed by
// Prefix.
type PostgresOptions struct {
	Prefix string

	URI      string
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string

	PoolConfig *pgxpool.Config
	// ReplogConfig is only set by CompleteReplication
	ReplogConfig *pgxpool.Config
}

// NewPostgresOptions returns options whose flags are named --<prefix>-*
func NewPostgresOptions(prefix string) *PostgresOptions {
	return &PostgresOptions{
		Prefix:  prefix,
		Host:    "localhost",
		Port:    5432,
		SSLMode: "prefer",
	}
}

// RegisterFlags adds the connection flags to cmd
func (o *PostgresOptions) RegisterFlags(cmd *cobra.Command, description string) {
	flag := func(name string) string { return o.Prefix + "-" + name }
	cmd.Flags().StringVar(&o.URI, flag("uri"), o.URI, "full connection uri or dsn for the "+description+"; overrides the other "+o.Prefix+" flags")
	cmd.Flags().StringVar(&o.Host, flag("host"), o.Host, "host of the "+description)
	cmd.Flags().IntVar(&o.Port, flag("port"), o.Port, "port of the "+description)
	cmd.Flags().StringVar(&o.User, flag("user"), o.User, "user for the "+description)
	cmd.Flags().StringVar(&o.Password, flag("password"), o.Password, "password for the "+description)
	cmd.Flags().StringVar(&o.Database, flag("database"), o.Database, "database name of the "+description)
	cmd.Flags().StringVar(&o.SSLMode, flag("sslmode"), o.SSLMode, "sslmode for the "+description)
}

// ConnString returns URI if set, and otherwise builds a postgres:// uri from
// the individual parameters
func (o *PostgresOptions) ConnString() string {
	if o.URI != "" {
		return o.URI
	}
	if o.Database == "" {
		return ""
	}

	u := url.URL{
		Scheme: "postgres",
		Host:   net.JoinHostPort(o.Host, strconv.Itoa(o.Port)),
		Path:   "/" + o.Database,
	}
	switch {
	case o.User != "" && o.Password != "":
		u.User = url.UserPassword(o.User, o.Password)
	case o.User != "":
		u.User = url.User(o.User)
	}
	if o.SSLMode != "" {
		u.RawQuery = url.Values{"sslmode": {o.SSLMode}}.Encode()
	}
	return u.String()
}

// Complete parses the pool config. Set either the flags or PoolConfig, but
// not both.
func (o *PostgresOptions) Complete() error {
	if o.PoolConfig != nil {
		log.Debug().Str("prefix", o.Prefix).Msg("postgres config already set, skipping postgres option validation")
		return nil
	}
	connString := o.ConnString()
	if connString == "" {
		return errdefs.Configuration("must provide --%s-uri or --%s-database", o.Prefix, o.Prefix)
	}
	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return errdefs.Configuration("parsing %s connection: %w", o.Prefix, err)
	}
	o.PoolConfig = cfg
	return nil
}

// CompleteReplication parses the pool config and a (limited) config for
// watching the replication log
func (o *PostgresOptions) CompleteReplication() error {
	if err := o.Complete(); err != nil {
		return err
	}
	if o.ReplogConfig != nil {
		return nil
	}
	repcfg, err := pgxpool.ParseConfig(withReplication(o.PoolConfig.ConnString()))
	if err != nil {
		return errdefs.Configuration("parsing %s replication connection: %w", o.Prefix, err)
	}
	// replication connections don't support extended query protocol
	repcfg.ConnConfig.PreferSimpleProtocol = true
	o.ReplogConfig = repcfg
	return nil
}

// withReplication adds replication=database to a uri or a keyword/value dsn
func withReplication(connString string) string {
	if !strings.Contains(connString, "://") {
		return connString + " replication=database"
	}
	u, err := url.Parse(connString)
	if err != nil {
		return connString
	}
	q := u.Query()
	q.Set("replication", "database")
	u.RawQuery = q.Encode()
	return u.String()
}
