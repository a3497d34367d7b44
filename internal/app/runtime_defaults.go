package app

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"
)

const jwtSecretBytes = 48

// RuntimeAdjustment records a configuration value replaced at startup. Value is never a secret.
type RuntimeAdjustment struct {
	Key    string
	Reason string
	Value  string
}

// ApplyRuntimeDefaults fills values the engine cannot start without and repairs fallback
// preferences that would otherwise silence every user without stored preferences.
//
// A generated JWT secret only lives for the process lifetime, so tokens minted by an earlier
// run stop validating after a restart.
func ApplyRuntimeDefaults(cfg *Config) ([]RuntimeAdjustment, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}

	var adjusted []RuntimeAdjustment

	if strings.TrimSpace(cfg.Auth.JWT.Secret) == "" {
		secret, err := randomSecret(jwtSecretBytes)
		if err != nil {
			return nil, fmt.Errorf("generate jwt secret: %w", err)
		}
		cfg.Auth.JWT.Secret = secret
		adjusted = append(adjusted, RuntimeAdjustment{Key: "auth.jwt.secret", Reason: "generated for this process"})
	}

	defaults := &cfg.Engine.Defaults
	if tz := strings.TrimSpace(defaults.Timezone); tz == "" || !validZone(tz) {
		defaults.Timezone = "UTC"
		adjusted = append(adjusted, RuntimeAdjustment{
			Key:    "engine.defaults.timezone",
			Reason: fmt.Sprintf("unknown zone %q", tz),
			Value:  defaults.Timezone,
		})
	}

	if len(channelsFromNames(defaults.Channels).Names()) == 0 {
		defaults.Channels = []string{"in_app"}
		adjusted = append(adjusted, RuntimeAdjustment{
			Key:    "engine.defaults.channels",
			Reason: "no recognised delivery channel",
			Value:  "in_app",
		})
	}

	return adjusted, nil
}

func validZone(name string) bool {
	_, err := time.LoadLocation(name)
	return err == nil
}

func randomSecret(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
