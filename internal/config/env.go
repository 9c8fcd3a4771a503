// Package config reads runtime settings that do not belong in the ruleset:
// index backend, archive mirror and server limits.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Runtime is shared by cmd/server and cmd/battlegen.
type Runtime struct {
	IndexBackend string        `env:"SKIRMISH_INDEX_BACKEND" envDefault:"sqlite"`
	D1URL        string        `env:"SKIRMISH_INDEX_D1_INGEST_URL"`
	D1Token      string        `env:"SKIRMISH_INDEX_D1_TOKEN"`
	D1BatchSize  int           `env:"SKIRMISH_INDEX_D1_BATCH_SIZE" envDefault:"128"`
	D1Flush      time.Duration `env:"SKIRMISH_INDEX_D1_FLUSH" envDefault:"500ms"`

	Mirror          bool   `env:"SKIRMISH_MIRROR"`
	MirrorEndpoint  string `env:"SKIRMISH_MIRROR_ENDPOINT"`
	MirrorBucket    string `env:"SKIRMISH_MIRROR_BUCKET"`
	MirrorRegion    string `env:"SKIRMISH_MIRROR_REGION" envDefault:"auto"`
	MirrorAccessKey string `env:"SKIRMISH_MIRROR_ACCESS_KEY_ID"`
	MirrorSecretKey string `env:"SKIRMISH_MIRROR_SECRET_ACCESS_KEY"`
	MirrorPrefix    string `env:"SKIRMISH_MIRROR_PREFIX"`
	MirrorWorkers   int    `env:"SKIRMISH_MIRROR_WORKERS" envDefault:"2"`

	MaxInFlight int  `env:"SKIRMISH_MAX_IN_FLIGHT" envDefault:"4"`
	EnablePprof bool `env:"SKIRMISH_ENABLE_PPROF_HTTP"`
	EnableAdmin bool `env:"SKIRMISH_ENABLE_ADMIN_HTTP" envDefault:"true"`
}

// LoadRuntime parses and validates Runtime.
func LoadRuntime() (Runtime, error) {
	var rt Runtime
	if err := ParseEnv(&rt); err != nil {
		return rt, err
	}
	return rt, rt.Validate()
}

func (rt Runtime) Validate() error {
	switch strings.ToLower(strings.TrimSpace(rt.IndexBackend)) {
	case "", "none", "off", "disabled", "sqlite":
	case "d1":
		if strings.TrimSpace(rt.D1URL) == "" {
			return fmt.Errorf("SKIRMISH_INDEX_BACKEND=d1 but SKIRMISH_INDEX_D1_INGEST_URL is empty")
		}
	default:
		return fmt.Errorf("unsupported SKIRMISH_INDEX_BACKEND: %s", rt.IndexBackend)
	}
	if rt.Mirror && (rt.MirrorEndpoint == "" || rt.MirrorBucket == "" || rt.MirrorAccessKey == "" || rt.MirrorSecretKey == "") {
		return fmt.Errorf("SKIRMISH_MIRROR=true but endpoint/bucket/access key/secret key are not fully set")
	}
	if rt.MaxInFlight <= 0 {
		return fmt.Errorf("SKIRMISH_MAX_IN_FLIGHT must be positive, got %d", rt.MaxInFlight)
	}
	return nil
}
