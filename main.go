package main

import (
	"context"
	"flag"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"dario.cat/mergo"
	"github.com/cloudflare/tableflip"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/zsbai/embytoalist/conf"
	"github.com/zsbai/embytoalist/contrib/config"
	"github.com/zsbai/embytoalist/contrib/config/provider/file"
	"github.com/zsbai/embytoalist/contrib/log"
	"github.com/zsbai/embytoalist/contrib/transport"
	"github.com/zsbai/embytoalist/internal/alist"
	"github.com/zsbai/embytoalist/internal/cachestore"
	"github.com/zsbai/embytoalist/internal/dispatch"
	"github.com/zsbai/embytoalist/internal/emby"
	"github.com/zsbai/embytoalist/internal/pathmap"
	"github.com/zsbai/embytoalist/internal/resolver"
	"github.com/zsbai/embytoalist/internal/splice"
	"github.com/zsbai/embytoalist/server"
)

var (
	// flagConf is the config flag.
	flagConf string
	// flagVerbose is the verbose flag.
	flagVerbose bool

	// Version is the version of the app.
	Version string = "no-set"
	GitHash string = "no-set"
)

func init() {
	flag.StringVar(&flagConf, "c", "config.yaml", "config file path")
	flag.BoolVar(&flagVerbose, "v", false, "enable verbose log")

	// init prometheus
	prometheus.Unregister(collectors.NewGoCollector())
	prometheus.MustRegister(collectors.NewGoCollector(collectors.WithGoCollectorMemStatsMetricsDisabled()))
}

func main() {
	flag.Parse()

	bc := conf.Default()

	var opts []config.Option
	if _, err := os.Stat(flagConf); err == nil {
		opts = append(opts, config.WithSource(file.NewSource(flagConf)))
	}
	c := config.New[conf.Bootstrap](opts...)
	defer c.Close()

	if err := c.Scan(bc); err != nil {
		log.Fatal(err)
	}
	// backfill sections a sparse config file may have nulled out
	if err := mergo.Merge(bc, *conf.Default()); err != nil {
		log.Fatal(err)
	}
	if err := bc.ApplyEnv(); err != nil {
		log.Fatal(err)
	}
	if flagVerbose {
		bc.Logger.Level = "debug"
	}

	cleanup := log.Setup(bc.Logger)
	defer cleanup()

	c.Watch("logger", func(_ string, v *conf.Bootstrap) {
		log.SetLevel(v.Logger.Level)
		log.Infof("log level now %s", v.Logger.Level)
	})

	log.Infof("embytoalist %s (%s) starting", Version, GitHash)

	if err := run(bc); err != nil {
		log.Fatal(err)
	}
}

func run(bc *conf.Bootstrap) error {
	stopTimeout := bc.Server.StopTimeout

	// graceful upgrade
	flip, err := tableflip.New(tableflip.Options{
		PIDFile:        bc.PidFile,
		UpgradeTimeout: stopTimeout,
	})
	if err != nil {
		return err
	}
	defer flip.Stop()

	// one pooled client for every outbound call: metadata, link server
	// and upstream storage streaming
	client := newSharedClient()

	var store *cachestore.Store
	if bc.Cache.Enabled {
		store, err = cachestore.Open(bc.Cache.Path)
		if err != nil {
			return err
		}
	}

	embyClient := emby.NewClient(bc.Emby.Server, bc.Emby.APIKey, client)
	alistClient := alist.NewClient(bc.Alist.Server, bc.Alist.APIKey, client)
	res := resolver.New(alistClient, client, bc.Alist.TTL)
	mapper := pathmap.New(bc.Path.PrefixRemove, bc.Path.PrefixAdd, bc.Path.Ignore)
	proxy := splice.New(client, bc.Cache.ForceReconnect)

	dispatcher := dispatch.New(bc.Cache, embyClient, mapper, res, store, proxy, client)
	srv := server.NewServer(flip, bc, dispatcher)

	return serve(srv, flip, res, client, stopTimeout)
}

func serve(srv transport.Server, flip *tableflip.Upgrader, res *resolver.Resolver, client *http.Client, stopTimeout time.Duration) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// SIGHUP hands the listener to a fresh binary
	go func() {
		hup := make(chan os.Signal, 1)
		signal.Notify(hup, syscall.SIGHUP)
		for range hup {
			log.Infof("received SIGHUP, upgrading")
			if err := flip.Upgrade(); err != nil {
				log.Errorf("upgrade failed: %v", err)
			}
		}
	}()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return srv.Start(ctx)
	})

	g.Go(func() error {
		if err := flip.Ready(); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return nil
		case <-flip.Exit():
			// the next binary took over
			cancel()
			return nil
		}
	})

	g.Go(func() error {
		<-ctx.Done()

		stopCtx, stop := context.WithTimeout(context.Background(), stopTimeout)
		defer stop()

		err := srv.Stop(stopCtx)
		client.CloseIdleConnections()
		if derr := res.Drain(stopCtx); derr != nil {
			log.Warnf("resolver drain: %v", derr)
		}
		return err
	})

	return g.Wait()
}

func newSharedClient() *http.Client {
	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	return &http.Client{
		Transport: &http.Transport{
			DialContext:           dialer.DialContext,
			MaxIdleConns:          128,
			MaxIdleConnsPerHost:   16,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: time.Second,
			ForceAttemptHTTP2:     true,
		},
		// streaming responses rule out a whole-request timeout; the
		// dial and TLS bounds above cover connection setup
	}
}
