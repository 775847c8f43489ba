// Command zapbox sends nostr zaps through a wallet connect wallet or an
// external wallet, and follows the zaps that profiles receive.
package main

import (
	"errors"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alexflint/go-arg"
	"github.com/pkg/profile"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"golang.org/x/sync/errgroup"

	"zapbox.lol"
	"zapbox.lol/chk"
	"zapbox.lol/config"
	"zapbox.lol/context"
	"zapbox.lol/log"
	"zapbox.lol/postbox"
	"zapbox.lol/zapstore"
)

type args struct {
	Zap          *zapArgs          `arg:"subcommand:zap" help:"zap a profile or a note"`
	Listen       *listenArgs       `arg:"subcommand:listen" help:"follow the zaps that profiles receive"`
	Balance      *balanceArgs      `arg:"subcommand:balance" help:"show the wallet balance"`
	Transactions *transactionsArgs `arg:"subcommand:transactions" help:"list recent wallet transactions"`
}

func (args) Version() string { return "zapbox " + zapbox.Version }

func (args) Epilogue() string {
	return "configuration is read from the environment, run 'zapbox help' to list it"
}

func serveMetrics(c context.T, g *errgroup.Group, listen string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(
		prometheus.Gatherers{postbox.Registry, zapstore.Registry}, promhttp.HandlerOpts{}))
	srv := &http.Server{
		Addr:              listen,
		Handler:           cors.Default().Handler(mux),
		ReadHeaderTimeout: 5 * time.Second,
	}
	g.Go(func() error {
		log.I.F("serving metrics on http://%s/metrics", listen)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-c.Done()
		return srv.Close()
	})
}

func main() {
	var err error
	var cfg *config.C
	if cfg, err = config.New(); err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %s\n\n", err)
		config.PrintHelp(cfg, os.Stderr)
		os.Exit(1)
	}
	switch {
	case config.VersionRequested():
		config.PrintVersion(os.Stdout)
		os.Exit(0)
	case config.GetEnv():
		config.PrintEnv(cfg, os.Stdout)
		os.Exit(0)
	case config.HelpRequested():
		config.PrintHelp(cfg, os.Stderr)
		var a args
		p, _ := arg.NewParser(arg.Config{Program: "zapbox"}, &a)
		p.WriteHelp(os.Stderr)
		os.Exit(0)
	}
	var a args
	p := arg.MustParse(&a)
	if p.Subcommand() == nil {
		p.WriteHelp(os.Stderr)
		os.Exit(1)
	}
	cfg.Apply()
	if cfg.Pprof {
		defer profile.Start(profile.MemProfile).Stop()
		go func() {
			chk.E(http.ListenAndServe("127.0.0.1:6060", nil))
		}()
	}
	sig, stop := signal.NotifyContext(context.Bg(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	// relay connections outlive the command so a zap can still be canceled
	// after an interrupt
	c, cancel := context.Cancel(context.Bg())
	defer cancel()
	var z *app
	if z, err = newApp(c, cfg, a.Zap != nil); err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %s\n", err)
		os.Exit(1)
	}
	defer z.close()
	g, gc := errgroup.WithContext(c)
	g.Go(func() error { return z.run(gc) })
	if cfg.MetricsListen != "" {
		serveMetrics(gc, g, cfg.MetricsListen)
	}
	g.Go(func() (err error) {
		defer cancel()
		switch {
		case a.Zap != nil:
			return z.zap(sig, a.Zap)
		case a.Listen != nil:
			return z.listen(sig, a.Listen)
		case a.Balance != nil:
			return z.balance(sig, a.Balance)
		case a.Transactions != nil:
			return z.transactions(sig, a.Transactions)
		}
		return nil
	})
	if err = g.Wait(); err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %s\n", err)
		z.close()
		os.Exit(1)
	}
}
