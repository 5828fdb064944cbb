package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/zeromicro/go-zero/core/logx"

	"marketlens/internal/cli"
	"marketlens/internal/config"
	"marketlens/internal/svc"
	"marketlens/pkg/advisor"
	"marketlens/pkg/journal"
	"marketlens/pkg/keystore"
	"marketlens/pkg/llm"
	"marketlens/pkg/market"
)

var configFile = flag.String("f", "etc/marketlens.yaml", "the config file")

func main() {
	var (
		symbol      = flag.String("symbol", "", "instrument to analyze, e.g. EURUSD")
		url         = flag.String("url", "", "chart page URL used to detect the symbol")
		timeframe   = flag.String("timeframe", "", "candle interval (1m,5m,15m,30m,1h,4h,1d)")
		captureMode = flag.String("capture", "", "capture mode (screenshot, video, multi-frame)")
		mediaRaw    = flag.String("media", "", "comma-separated chart frames to attach")
		contextOnly = flag.Bool("context-only", false, "print the market context without calling the model")
		setKey      = flag.String("set-key", "", "store a key as name=value and exit")
		setPrefs    = flag.String("set-prefs", "", "store preferences as timeframe=4h,analysis=quantitative,capture=video and exit")
		history     = flag.Int("history", 0, "print the latest N journal records and exit")
	)
	flag.Parse()

	cfg := config.MustLoad(*configFile)
	logx.MustSetup(cfg.Log)
	logx.DisableStat()
	cli.LogConfigSummary(cfg)

	sc := svc.NewServiceContext(cfg)

	switch {
	case *setKey != "":
		name, value, ok := strings.Cut(*setKey, "=")
		if !ok {
			fatalf("set-key expects name=value")
		}
		if err := sc.Keystore.SetKey(name, value); err != nil {
			fatalf("store key: %v", err)
		}
		logx.Infof("stored key %s in %s", strings.TrimSpace(name), sc.Keystore.Path())
		return
	case *setPrefs != "":
		prefs, err := parsePreferences(*setPrefs, sc.Keystore.Preferences())
		if err != nil {
			fatalf("%v", err)
		}
		if err := sc.Keystore.SetPreferences(prefs); err != nil {
			fatalf("store preferences: %v", err)
		}
		logx.Infof("stored preferences timeframe=%s analysis=%s capture=%s", prefs.Timeframe, prefs.AnalysisMode, prefs.CaptureMode)
		return
	case *history > 0:
		if cfg.JournalDir == "" {
			fatalf("journal is disabled")
		}
		records, err := journal.Recent(cfg.JournalDir, *history)
		if err != nil {
			fatalf("read journal: %v", err)
		}
		printJSON(records)
		return
	}

	// An empty timeframe falls back to the stored preference.
	var tf market.Timeframe
	if *timeframe != "" {
		parsed, err := market.ParseTimeframe(*timeframe)
		if err != nil {
			fatalf("%v", err)
		}
		tf = parsed
	}
	media, err := loadMedia(*mediaRaw)
	if err != nil {
		fatalf("%v", err)
	}
	req := sc.Request(advisor.Request{
		Symbol:      *symbol,
		URL:         *url,
		Timeframe:   tf,
		CaptureMode: *captureMode,
		Media:       media,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *contextOnly {
		printJSON(sc.Advisor.MarketContext(ctx, req))
		return
	}
	report, err := sc.Advisor.Analyze(ctx, req)
	if err != nil {
		fatalf("analysis failed: %v", err)
	}
	printJSON(report)
}

// parsePreferences overlays comma-separated name=value pairs on current.
// Values are checked when the preferences are saved.
func parsePreferences(raw string, current keystore.Preferences) (keystore.Preferences, error) {
	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		name, value, ok := strings.Cut(pair, "=")
		if !ok {
			return current, fmt.Errorf("set-prefs: %q is not name=value", pair)
		}
		value = strings.ToLower(strings.TrimSpace(value))
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "timeframe":
			current.Timeframe = value
		case "analysis", "mode":
			current.AnalysisMode = value
		case "capture":
			current.CaptureMode = value
		default:
			return current, fmt.Errorf("set-prefs: unknown preference %q", name)
		}
	}
	return current, nil
}

func loadMedia(raw string) ([]llm.Media, error) {
	var out []llm.Media
	for _, path := range strings.Split(raw, ",") {
		path = strings.TrimSpace(path)
		if path == "" {
			continue
		}
		m, err := llm.LoadMedia(path)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fatalf("encode output: %v", err)
	}
}

func fatalf(format string, args ...any) {
	logx.Errorf(format, args...)
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	logx.Close()
	os.Exit(1)
}
