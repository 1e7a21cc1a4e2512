package config

import (
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// Backend holds the connection settings of the message store.
type Backend struct {
	URL     string `mapstructure:"supabase_url"`
	AnonKey string `mapstructure:"supabase_anon_key"`
}

// Enabled reports whether a store is configured.
func (b Backend) Enabled() bool {
	return b.URL != ""
}

// LoadBackend reads SUPABASE_URL and SUPABASE_ANON_KEY from envFile, when it
// exists, and from the environment. Environment values win.
func LoadBackend(envFile string) (Backend, error) {
	v := viper.New()
	v.SetDefault("supabase_url", "")
	v.SetDefault("supabase_anon_key", "")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if envFile != "" {
		if _, err := os.Stat(envFile); err == nil {
			v.SetConfigFile(envFile)
			v.SetConfigType("env")
			if err := v.ReadInConfig(); err != nil {
				return Backend{}, errors.Wrapf(err, "read %s", envFile)
			}
		} else if !os.IsNotExist(err) {
			return Backend{}, errors.Wrapf(err, "stat %s", envFile)
		}
	}

	var b Backend
	if err := v.Unmarshal(&b); err != nil {
		return Backend{}, errors.Wrap(err, "decode backend settings")
	}
	b.URL = strings.TrimRight(b.URL, "/")
	return b, nil
}
