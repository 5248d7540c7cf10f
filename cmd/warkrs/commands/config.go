package commands

import (
	"fmt"
	"time"

	"warkrs/lib/configutil"
	"warkrs/lib/notify/email"
	"warkrs/lib/scrapers/siakad"
)

type SettingsConfig struct {
	// seconds between full passes over the pending targets
	DelaySeconds int `json:"delay_seconds"`
	// seconds between registration requests within one pass
	InterRequestDelay int `json:"inter_request_delay"`
	// seconds to wait before verifying an inconclusive response against
	// the study plan
	VerificationDelay int `json:"verification_delay"`
	// per-request HTTP timeout in seconds
	RequestTimeout int `json:"request_timeout"`
	// stop after this many passes, zero means run until done
	MaxCycles int `json:"max_cycles"`
}

type TelegramConfig struct {
	BotToken string `json:"bot_token"`
	ChatId   string `json:"chat_id"`
}

type RuleConfig struct {
	Outcome string   `json:"outcome"`
	Markers []string `json:"markers"`
}

type Config struct {
	Cookies siakad.Session   `json:"cookies"`
	Urls    siakad.Endpoints `json:"urls"`
	// targets are attempted in declaration order, put the course you
	// care about most first
	Targets  []siakad.Course `json:"targets"`
	Settings SettingsConfig  `json:"settings"`
	Telegram TelegramConfig  `json:"telegram"`
	Email    *email.Config   `json:"email"`
	// optional override of the built-in response classification table
	Rules []RuleConfig `json:"rules"`
}

func loadConfig() (Config, error) {
	cfg, err := configutil.ReadConfig[Config](*configPath)
	if err != nil {
		return cfg, fmt.Errorf("read config %s: %w", *configPath, err)
	}

	configutil.ApplyEnv(map[string]*string{
		"SIAKAD_CI_SESSION":   &cfg.Cookies.CiSession,
		"SIAKAD_CF_CLEARANCE": &cfg.Cookies.CfClearance,
		"TELEGRAM_BOT_TOKEN":  &cfg.Telegram.BotToken,
		"TELEGRAM_CHAT_ID":    &cfg.Telegram.ChatId,
	})

	if cfg.Settings.DelaySeconds == 0 {
		cfg.Settings.DelaySeconds = 45
	}
	if cfg.Settings.InterRequestDelay == 0 {
		cfg.Settings.InterRequestDelay = 2
	}
	if cfg.Settings.VerificationDelay == 0 {
		cfg.Settings.VerificationDelay = 2
	}
	if cfg.Settings.RequestTimeout == 0 {
		cfg.Settings.RequestTimeout = 20
	}

	if err := cfg.validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.Urls.ChooseCourse == "" || c.Urls.SaveRegistration == "" {
		return fmt.Errorf("urls.choose_course and urls.save_registration are required")
	}
	if c.Cookies.CiSession == "" {
		return fmt.Errorf("cookies.ci_session is required (or set SIAKAD_CI_SESSION)")
	}

	seen := map[string]bool{}
	for i, t := range c.Targets {
		if t.Code == "" || t.ClassId == "" {
			return fmt.Errorf("target %d needs both code and class_id", i)
		}
		if seen[t.ClassId] {
			return fmt.Errorf("duplicate target class_id %s", t.ClassId)
		}
		seen[t.ClassId] = true
	}
	return nil
}

// ruleTable converts the configured rules, nil means use the defaults.
func (c Config) ruleTable() ([]siakad.Rule, error) {
	if len(c.Rules) == 0 {
		return nil, nil
	}
	var rules []siakad.Rule
	for _, r := range c.Rules {
		outcome, ok := siakad.ParseOutcome(r.Outcome)
		if !ok {
			return nil, fmt.Errorf("unknown outcome %q in rules", r.Outcome)
		}
		rules = append(rules, siakad.Rule{Outcome: outcome, Markers: r.Markers})
	}
	return rules, nil
}

func (c Config) clientOptions() siakad.ClientOptions {
	return siakad.ClientOptions{
		Endpoints: c.Urls,
		Session:   c.Cookies,
		Timeout:   time.Duration(c.Settings.RequestTimeout) * time.Second,
	}
}
