package config

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. BLITZ_PORT
const EnvPrefix = "BLITZ"

// FileFlag names the flag that points at a YAML config file
const FileFlag = "config"

// override copies one flag or environment value into the config
type override struct {
	usage string
	apply func(c *Config, v *viper.Viper, key string)
}

var overrides = map[string]override{
	"bind": {"address to bind to", func(c *Config, v *viper.Viper, k string) {
		c.Server.Bind = v.GetString(k)
	}},
	"port": {"port to listen on", func(c *Config, v *viper.Viper, k string) {
		c.Server.Port = v.GetInt(k)
	}},
	"allowed-origins": {"comma separated CORS origins", func(c *Config, v *viper.Viper, k string) {
		c.Server.AllowedOrigins = stringList(v.Get(k))
	}},
	"read-header-timeout": {"time allowed to read request headers", func(c *Config, v *viper.Viper, k string) {
		c.Server.ReadHeaderTimeout = v.GetDuration(k)
	}},
	"shutdown-timeout": {"time allowed for graceful shutdown", func(c *Config, v *viper.Viper, k string) {
		c.Server.ShutdownTimeout = v.GetDuration(k)
	}},
	"send-buffer": {"outbound frames buffered per connection", func(c *Config, v *viper.Viper, k string) {
		c.Server.SendBuffer = v.GetInt(k)
	}},
	"tick-interval": {"interval between clock broadcasts", func(c *Config, v *viper.Viper, k string) {
		c.Clock.TickInterval = v.GetDuration(k)
	}},
	"nats-enabled": {"publish game events to NATS JetStream", func(c *Config, v *viper.Viper, k string) {
		c.NATS.Enabled = v.GetBool(k)
	}},
	"nats-url": {"NATS server URL", func(c *Config, v *viper.Viper, k string) {
		c.NATS.URL = v.GetString(k)
	}},
	"nats-stream": {"JetStream stream name", func(c *Config, v *viper.Viper, k string) {
		c.NATS.StreamName = v.GetString(k)
	}},
	"nats-subject-prefix": {"subject prefix for game events", func(c *Config, v *viper.Viper, k string) {
		c.NATS.SubjectPrefix = v.GetString(k)
	}},
	"log-level": {"log level (debug, info, warn, error)", func(c *Config, v *viper.Viper, k string) {
		c.Log.Level = v.GetString(k)
	}},
	"log-pretty": {"human readable console logs", func(c *Config, v *viper.Viper, k string) {
		c.Log.Pretty = v.GetBool(k)
	}},
}

// RegisterFlags defines one flag per setting, defaulted from d
func RegisterFlags(fs *pflag.FlagSet, d Config) {
	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.StringP(FileFlag, "c", "", usage("path to a YAML config file", FileFlag))
	fs.StringP("bind", "b", d.Server.Bind, usage(overrides["bind"].usage, "bind"))
	fs.IntP("port", "p", d.Server.Port, usage(overrides["port"].usage, "port"))
	fs.StringSlice("allowed-origins", d.Server.AllowedOrigins, usage(overrides["allowed-origins"].usage, "allowed-origins"))
	fs.Duration("read-header-timeout", d.Server.ReadHeaderTimeout, usage(overrides["read-header-timeout"].usage, "read-header-timeout"))
	fs.Duration("shutdown-timeout", d.Server.ShutdownTimeout, usage(overrides["shutdown-timeout"].usage, "shutdown-timeout"))
	fs.Int("send-buffer", d.Server.SendBuffer, usage(overrides["send-buffer"].usage, "send-buffer"))
	fs.Duration("tick-interval", d.Clock.TickInterval, usage(overrides["tick-interval"].usage, "tick-interval"))
	fs.Bool("nats-enabled", d.NATS.Enabled, usage(overrides["nats-enabled"].usage, "nats-enabled"))
	fs.String("nats-url", d.NATS.URL, usage(overrides["nats-url"].usage, "nats-url"))
	fs.String("nats-stream", d.NATS.StreamName, usage(overrides["nats-stream"].usage, "nats-stream"))
	fs.String("nats-subject-prefix", d.NATS.SubjectPrefix, usage(overrides["nats-subject-prefix"].usage, "nats-subject-prefix"))
	fs.String("log-level", d.Log.Level, usage(overrides["log-level"].usage, "log-level"))
	fs.Bool("log-pretty", d.Log.Pretty, usage(overrides["log-pretty"].usage, "log-pretty"))
}

// NewViper returns a viper instance reading BLITZ_* variables for the flags in fs
func NewViper(fs *pflag.FlagSet) *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
	})
	return v
}

// Load layers the config: defaults, then the YAML file, then environment,
// then flags set on the command line.
func Load(fs *pflag.FlagSet, v *viper.Viper) (Config, error) {
	cfg := Default()
	if path := v.GetString(FileFlag); path != "" {
		var err error
		if cfg, err = LoadFile(path); err != nil {
			return cfg, err
		}
	}

	// v.IsSet is true for changed flags and present env vars, never for
	// flag defaults, so file values survive unless explicitly overridden
	for key, o := range overrides {
		if v.IsSet(key) {
			o.apply(&cfg, v, key)
		}
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func usage(text, flag string) string {
	env := EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(flag, "-", "_"))
	return fmt.Sprintf("%s (env: %s)", text, env)
}

// stringList accepts both a parsed string slice flag and a raw comma
// separated environment value
func stringList(raw any) []string {
	var parts []string
	switch val := raw.(type) {
	case []string:
		parts = val
	case string:
		parts = strings.Split(val, ",")
	default:
		parts = strings.Split(fmt.Sprint(val), ",")
	}

	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
