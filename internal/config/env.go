package config

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Env holds the OBSMASK_* environment overrides.
type Env struct {
	Lib            string `env:"OBSMASK_LIB"`
	MetricsBackend string `env:"OBSMASK_METRICS_BACKEND"`
	PushgatewayURL string `env:"OBSMASK_PUSHGATEWAY_URL"`
	DogStatsDAddr  string `env:"OBSMASK_DOGSTATSD_ADDR"`
	ReportDSN      string `env:"OBSMASK_REPORT_DSN"`
	LogLevel       string `env:"OBSMASK_LOG_LEVEL" envDefault:"info"`
	LogFormat      string `env:"OBSMASK_LOG_FORMAT" envDefault:"text"`
}

// LoadEnv loads the given dotenv files (".env" when none are given; missing
// files are ignored) without overriding variables already set, then parses
// the environment.
func LoadEnv(files ...string) (Env, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Env{}, fmt.Errorf("config: load %s: %w", f, err)
		}
	}
	e, err := env.ParseAs[Env]()
	if err != nil {
		return Env{}, fmt.Errorf("config: parse env: %w", err)
	}
	return e, nil
}

// Apply overrides r with every non-empty value of e. The library root applies
// to both the primary and the supplemental model.
func (e Env) Apply(r *Run) {
	if e.Lib != "" {
		r.Model.Lib = e.Lib
		if r.Supplemental != nil {
			r.Supplemental.Model.Lib = e.Lib
		}
	}
	if e.MetricsBackend != "" {
		r.Metrics.Backend = e.MetricsBackend
	}
	if e.PushgatewayURL != "" {
		r.Metrics.PushgatewayURL = e.PushgatewayURL
	}
	if e.DogStatsDAddr != "" {
		r.Metrics.DogStatsDAddr = e.DogStatsDAddr
	}
	if e.ReportDSN != "" {
		r.Report.DSN = e.ReportDSN
	}
}
