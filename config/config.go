// Package config loads the zapbox configuration from the environment and an
// optional .env file in the profile directory.
package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime/debug"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"go-simpler.org/env"

	"zapbox.lol"
	"zapbox.lol/bech32encoding"
	"zapbox.lol/chk"
	"zapbox.lol/config/keyvalue"
	dotenv "zapbox.lol/env"
	"zapbox.lol/errorf"
	"zapbox.lol/lol"
	"zapbox.lol/nwc"
	"zapbox.lol/p256k"
)

// C is the configuration of the zapbox tools.
type C struct {
	AppName       string        `env:"APP_NAME" default:"zapbox"`
	Profile       string        `env:"PROFILE" usage:"root path for all other path configurations (defaults to APP_NAME under the XDG data home)"`
	LogLevel      string        `env:"LOG_LEVEL" default:"info" usage:"debug level: fatal error warn info debug trace"`
	DBLogLevel    string        `env:"DB_LOG_LEVEL" default:"warn" usage:"receipt database debug level: fatal error warn info debug trace"`
	Relays        []string      `env:"RELAYS" default:"wss://relay.damus.io,wss://nos.lol" usage:"relays zap requests name and receipts are read from"`
	Nsec          string        `env:"NSEC" usage:"secret key zaps are made with, as nsec or hex"`
	NWC           string        `env:"NWC" usage:"nostr wallet connect URL; without one, invoices are shown for an external wallet"`
	TickInterval  time.Duration `env:"TICK_INTERVAL" default:"5s" usage:"how often the postbox retries and releases delayed events"`
	NWCDelay      time.Duration `env:"NWC_DELAY" default:"5s" usage:"how long a wallet payment can still be canceled"`
	MaxRetryAfter time.Duration `env:"MAX_RETRY_AFTER" default:"0s" usage:"cap on the postbox retry backoff, 0 for none"`
	LNURLRate     float64       `env:"LNURL_RATE" default:"2" usage:"LNURL requests per second, 0 for no limit"`
	DBPath        string        `env:"DB_PATH" usage:"receipt database directory (defaults to zapdb under PROFILE)"`
	MetricsListen string        `env:"METRICS_LISTEN" usage:"address to serve prometheus metrics on, empty to disable"`
	Pprof         bool          `env:"PPROF" default:"false" usage:"enable pprof on 127.0.0.1:6060"`
	MemLimit      int64         `env:"MEMLIMIT" default:"250000000" usage:"set memory limit, default is 250Mb"`
}

func options(src env.Source) *env.Options { return &env.Options{Source: src, SliceSep: ","} }

// osEnv is the process environment as an env.Source.
func osEnv() (e dotenv.Env) {
	e = make(dotenv.Env)
	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok {
			e[k] = v
		}
	}
	return
}

// New loads the configuration. Values in the environment take precedence over
// the .env file in the profile directory, which takes precedence over the
// defaults.
func New() (cfg *C, err error) {
	cfg = &C{}
	process := osEnv()
	if err = env.Load(cfg, options(process)); chk.T(err) {
		return
	}
	if cfg.Profile == "" {
		cfg.Profile = filepath.Join(xdg.DataHome, cfg.AppName)
	}
	envPath := filepath.Join(cfg.Profile, ".env")
	if _, err = os.Stat(envPath); err == nil {
		var file dotenv.Env
		if file, err = dotenv.GetEnv(envPath); chk.T(err) {
			return
		}
		for k, v := range process {
			file[k] = v
		}
		profile := cfg.Profile
		if err = env.Load(cfg, options(file)); chk.E(err) {
			return
		}
		if cfg.Profile == "" {
			cfg.Profile = profile
		}
	}
	err = nil
	if cfg.DBPath == "" {
		cfg.DBPath = filepath.Join(cfg.Profile, "zapdb")
	}
	var relays []string
	for _, r := range cfg.Relays {
		if r = strings.TrimSpace(r); r != "" {
			relays = append(relays, r)
		}
	}
	cfg.Relays = relays
	return
}

// Apply sets the log level and memory limit.
func (cfg *C) Apply() {
	lol.SetLogLevel(cfg.LogLevel)
	debug.SetMemoryLimit(cfg.MemLimit)
}

// Keys returns the signer for NSEC.
func (cfg *C) Keys() (s *p256k.Signer, err error) {
	if cfg.Nsec == "" {
		return nil, errorf.E("NSEC is not set")
	}
	var sec []byte
	if sec, err = bech32encoding.KeyOrHex(cfg.Nsec, bech32encoding.SecHRP); chk.E(err) {
		return
	}
	return p256k.FromSec(sec)
}

// WalletURL parses NWC. Both results are nil when it is not set.
func (cfg *C) WalletURL() (u *nwc.URL, err error) {
	if cfg.NWC == "" {
		return
	}
	return nwc.ParseURL(cfg.NWC)
}

func firstArg() string {
	if len(os.Args) > 1 {
		return strings.ToLower(os.Args[1])
	}
	return ""
}

// HelpRequested returns true if any of the common types of help invocation are
// found as the first command line parameter/flag.
func HelpRequested() (help bool) {
	switch firstArg() {
	case "help", "-h", "--h", "-help", "--help", "?":
		help = true
	}
	return
}

// GetEnv is true when the first parameter asks for the configuration as a
// shell script.
func GetEnv() bool { return firstArg() == "env" }

// VersionRequested is true when the first parameter is version.
func VersionRequested() bool { return firstArg() == "version" }

// PrintVersion writes the version.
func PrintVersion(printer io.Writer) { _, _ = fmt.Fprintln(printer, zapbox.Version) }

// PrintEnv renders the configuration as a shell script.
func PrintEnv(cfg *C, printer io.Writer) { keyvalue.PrintEnv(*cfg, printer) }

// PrintHelp outputs a help text listing the configuration options and default
// values to a provided io.Writer (usually os.Stderr or os.Stdout).
func PrintHelp(cfg *C, printer io.Writer) {
	_, _ = fmt.Fprintf(printer,
		"Environment variables that configure %s:\n\n", cfg.AppName)
	env.Usage(cfg, printer, options(nil))
	_, _ = fmt.Fprintf(printer,
		"\nCLI parameter 'help' also prints this information\n"+
			"\n.env file found at the PROFILE path will be automatically loaded for "+
			"configuration.\nthe environment overrides it and you can also edit the file "+
			"to set configuration options\n\n"+
			"use the parameter 'env' to print out the current configuration to the terminal\n\n"+
			"set the environment using\n\n\t%s env > %s/.env\n\n", os.Args[0], cfg.Profile)
}
