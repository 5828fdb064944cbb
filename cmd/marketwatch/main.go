package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/zeromicro/go-zero/core/logx"
	"github.com/zeromicro/go-zero/core/threading"

	"marketlens/internal/cli"
	"marketlens/internal/config"
	"marketlens/internal/svc"
	"marketlens/pkg/market"
	"marketlens/pkg/prompt"
)

const shutdownTimeout = 10 * time.Second

var (
	configFile = flag.String("f", "etc/marketlens.yaml", "the config file")
	interval   = flag.Duration("interval", 2*time.Minute, "collection interval")
	symbolsRaw = flag.String("symbols", "", "comma-separated symbols; defaults to the prefetch list")
	timeframe  = flag.String("timeframe", "1h", "candle interval")
)

func main() {
	flag.Parse()

	cfg := config.MustLoad(*configFile)
	logx.MustSetup(cfg.Log)
	logx.DisableStat()
	cli.LogConfigSummary(cfg)

	sc := svc.NewServiceContext(cfg)
	tf, err := market.ParseTimeframe(*timeframe)
	logx.Must(err)

	symbols := watchSymbols(*symbolsRaw, cfg.PrefetchSymbols())
	creds := sc.Credentials()
	if !sc.Resolver.HasCredentials(creds) {
		logx.Severe("marketwatch: no market data keys configured")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	done := make(chan struct{})
	threading.GoSafe(func() {
		defer close(done)
		run(ctx, sc.Aggregator, symbols, tf, creds)
	})
	logx.Infof("marketwatch: watching %s every %s", strings.Join(symbols, ","), *interval)

	<-ctx.Done()
	logx.Info("marketwatch: shutdown signal received")
	select {
	case <-done:
		logx.Info("marketwatch: stopped cleanly")
	case <-time.After(shutdownTimeout):
		logx.Info("marketwatch: shutdown timeout exceeded")
	}
	logx.Close()
}

func run(ctx context.Context, agg *market.Aggregator, symbols []string, tf market.Timeframe, creds market.Credentials) {
	ticker := time.NewTicker(*interval)
	defer ticker.Stop()

	collect(ctx, agg, symbols, tf, creds)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			collect(ctx, agg, symbols, tf, creds)
		}
	}
}

// collect gathers every symbol concurrently and logs one summary line each.
func collect(ctx context.Context, agg *market.Aggregator, symbols []string, tf market.Timeframe, creds market.Credentials) {
	group := threading.NewRoutineGroup()
	for _, symbol := range symbols {
		group.RunSafe(func() {
			start := time.Now()
			mc := agg.Collect(ctx, symbol, tf, creds)
			elapsed := time.Since(start).Milliseconds()
			if !mc.HasLiveData() {
				logx.WithContext(ctx).Errorf("[%s] no live data, took %dms", symbol, elapsed)
				return
			}
			summary := strings.ReplaceAll(prompt.MarketSummary(mc), "\n", " ")
			logx.WithContext(ctx).Infof("[%s] %s, took %dms", symbol, summary, elapsed)
		})
	}
	group.Wait()
}

func watchSymbols(raw string, fallback []string) []string {
	var out []string
	for _, s := range strings.FieldsFunc(raw, func(r rune) bool { return r == ',' || r == ' ' }) {
		if s = market.NormalizeSymbol(s); s != "" {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		out = fallback
	}
	if len(out) == 0 {
		out = market.CommonSymbols
	}
	return out
}
