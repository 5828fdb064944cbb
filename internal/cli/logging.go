package cli

import (
	"fmt"
	"strings"

	"github.com/zeromicro/go-zero/core/logx"

	"marketlens/internal/config"
	"marketlens/pkg/confkit"
)

// ConfigSummaryLines returns human readable lines describing the loaded app config.
func ConfigSummaryLines(cfg *config.Config) []string {
	if cfg == nil {
		return []string{"Configuration: <nil>"}
	}

	lines := []string{
		fmt.Sprintf("Environment: %s", cfg.Env),
		fmt.Sprintf("Keystore: %s", cfg.KeystorePath),
		fmt.Sprintf("Journal: %s", orNone(cfg.JournalDir)),
		fmt.Sprintf("Prompt template: %s", orValue(cfg.PromptTemplate, "embedded")),
		prefetchLine(cfg),
		sectionLine("Market config", cfg.Market),
		sectionLine("LLM config", cfg.LLM),
	}
	if m := cfg.Market.Value; m != nil {
		lines = append(lines, fmt.Sprintf("Market providers: %d (%s)", len(m.Providers), presence(!m.Credentials().Empty())))
	}
	if l := cfg.LLM.Value; l != nil {
		lines = append(lines, fmt.Sprintf("LLM model: %s (%s)", l.DefaultModel, presence(strings.TrimSpace(l.APIKey) != "")))
	}
	return lines
}

// LogConfigSummary emits the configuration summary using logx.
func LogConfigSummary(cfg *config.Config) {
	lines := ConfigSummaryLines(cfg)
	if len(lines) == 0 {
		return
	}
	logx.Info("configuration summary")
	for _, line := range lines {
		logx.Infof("config • %s", line)
	}
}

func prefetchLine(cfg *config.Config) string {
	symbols := cfg.PrefetchSymbols()
	if len(symbols) == 0 {
		return "Prefetch: disabled"
	}
	return fmt.Sprintf("Prefetch: %s (fast path %s)", strings.Join(symbols, ","), cfg.Prefetch.FastPath)
}

func presence(ok bool) string {
	if ok {
		return "keys configured"
	}
	return "no keys"
}

func orNone(s string) string {
	return orValue(s, "disabled")
}

func orValue(s, fallback string) string {
	if strings.TrimSpace(s) == "" {
		return fallback
	}
	return s
}

func sectionLine[T any](name string, section confkit.Section[T]) string {
	switch {
	case strings.TrimSpace(section.File) != "":
		return fmt.Sprintf("%s: %s", name, section.File)
	case section.Value != nil:
		return fmt.Sprintf("%s: inline", name)
	default:
		return fmt.Sprintf("%s: not configured", name)
	}
}
