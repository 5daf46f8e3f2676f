package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const EnvPrefix = "SAYM"

type Config struct {
	Bind          string
	Port          int
	DB            string
	BaseURL       string
	BotDelay      time.Duration
	WordAPIURL    string
	SMSGatewayURL string
	SweepInterval time.Duration
	StaleAfter    time.Duration
	NotifyTimeout time.Duration
	VAPIDPublic   string
	VAPIDPrivate  string
	VAPIDSubject  string
	TLSCert       string
	TLSKey        string
	Verbose       bool
	LogJSON       bool
}

func (c *Config) RegisterFlags(fs *pflag.FlagSet) {
	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.StringVarP(&c.Bind, "bind", "b", "0.0.0.0", "address to bind to (env: SAYM_BIND)")
	fs.IntVarP(&c.Port, "port", "p", 8080, "port to listen on (env: SAYM_PORT)")
	fs.StringVar(&c.DB, "db", "saym", "sqlite database file, .db is appended when missing (env: SAYM_DB)")
	fs.StringVar(&c.BaseURL, "base-url", "http://localhost:8080", "public url of the app, used in invite links (env: SAYM_BASE_URL)")
	fs.DurationVar(&c.BotDelay, "bot-delay", 2*time.Second, "pause before the bot answers (env: SAYM_BOT_DELAY)")
	fs.StringVar(&c.WordAPIURL, "word-api-url", "", "text generation endpoint for bot words, empty plays a fixed word (env: SAYM_WORD_API_URL)")
	fs.StringVar(&c.SMSGatewayURL, "sms-gateway-url", "", "sms gateway endpoint, empty only logs texts (env: SAYM_SMS_GATEWAY_URL)")
	fs.DurationVar(&c.SweepInterval, "sweep-interval", 60*time.Second, "how often idle sockets are checked (env: SAYM_SWEEP_INTERVAL)")
	fs.DurationVar(&c.StaleAfter, "stale-after", 5*time.Minute, "silence after which a socket is dropped (env: SAYM_STALE_AFTER)")
	fs.DurationVar(&c.NotifyTimeout, "notify-timeout", 10*time.Second, "timeout for push and sms delivery (env: SAYM_NOTIFY_TIMEOUT)")
	fs.StringVar(&c.VAPIDPublic, "vapid-public-key", "", "VAPID public key for web push, empty disables push (env: SAYM_VAPID_PUBLIC_KEY)")
	fs.StringVar(&c.VAPIDPrivate, "vapid-private-key", "", "VAPID private key for web push (env: SAYM_VAPID_PRIVATE_KEY)")
	fs.StringVar(&c.VAPIDSubject, "vapid-subject", "", "contact email or https url sent to push services (env: SAYM_VAPID_SUBJECT)")
	fs.StringVar(&c.TLSCert, "tls-cert", "", "path to tls certificate (env: SAYM_TLS_CERT)")
	fs.StringVar(&c.TLSKey, "tls-key", "", "path to tls keyfile (env: SAYM_TLS_KEY)")
	fs.BoolVarP(&c.Verbose, "verbose", "v", false, "log debug output (env: SAYM_VERBOSE)")
	fs.BoolVar(&c.LogJSON, "log-json", false, "write logs as JSON lines (env: SAYM_LOG_JSON)")
}

func NewViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	return v
}

// ApplyEnv fills every flag not given on the command line from its SAYM_*
// environment variable.
func ApplyEnv(fs *pflag.FlagSet, v *viper.Viper) error {
	var errs []error
	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			if err := fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name))); err != nil {
				errs = append(errs, fmt.Errorf("env %s_%s: %w", EnvPrefix, strings.ToUpper(strings.ReplaceAll(f.Name, "-", "_")), err))
			}
		}
	})
	return errors.Join(errs...)
}

func (c *Config) Validate() error {
	if (c.TLSCert == "") != (c.TLSKey == "") {
		return errors.New("both --tls-cert and --tls-key must be provided together")
	}
	if (c.VAPIDPublic == "") != (c.VAPIDPrivate == "") {
		return errors.New("both --vapid-public-key and --vapid-private-key must be provided together")
	}
	if c.VAPIDPublic != "" && c.VAPIDSubject == "" {
		return errors.New("--vapid-subject is required when web push is enabled")
	}
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.Port)
	}
	if c.DB == "" {
		return errors.New("--db must not be empty")
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid --base-url %q", c.BaseURL)
	}
	durations := map[string]time.Duration{
		"bot-delay":      c.BotDelay,
		"sweep-interval": c.SweepInterval,
		"stale-after":    c.StaleAfter,
		"notify-timeout": c.NotifyTimeout,
	}
	for name, d := range durations {
		if d <= 0 {
			return fmt.Errorf("--%s must be positive, got %s", name, d)
		}
	}
	if c.StaleAfter <= c.SweepInterval {
		return fmt.Errorf("--stale-after (%s) must exceed --sweep-interval (%s)", c.StaleAfter, c.SweepInterval)
	}
	return nil
}

func (c *Config) PushEnabled() bool {
	return c.VAPIDPublic != ""
}

func (c *Config) Addr() string {
	return net.JoinHostPort(c.Bind, strconv.Itoa(c.Port))
}
