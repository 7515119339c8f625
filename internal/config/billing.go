package config

import (
	"errors"
	"log"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// BillingConfig carries the tax and dialing profile of the billing company.
type BillingConfig struct {
	Currency        string        `mapstructure:"currency"`
	PaymentTermDays int           `mapstructure:"paymentTermDays"`
	PlanCacheSize   int           `mapstructure:"planCacheSize"`
	PlanCacheTTL    time.Duration `mapstructure:"planCacheTTL"`
	Company         Company       `mapstructure:"company"`
	Tax             TaxRates      `mapstructure:"tax"`
	Dialing         DialingPlan   `mapstructure:"dialing"`
}

type Company struct {
	Name    string `mapstructure:"name"`
	State   string `mapstructure:"state"`
	Country string `mapstructure:"country"`
}

// TaxRates are expressed in basis points (900 = 9%).
type TaxRates struct {
	CGSTBps int64 `mapstructure:"cgstBps"`
	SGSTBps int64 `mapstructure:"sgstBps"`
	IGSTBps int64 `mapstructure:"igstBps"`
}

type DialingPlan struct {
	HomeCountryCode string   `mapstructure:"homeCountryCode"`
	HomeAreaCodes   []string `mapstructure:"homeAreaCodes"`
}

func DefaultBillingConfig() BillingConfig {
	return BillingConfig{
		Currency:        "INR",
		PaymentTermDays: 15,
		PlanCacheSize:   256,
		PlanCacheTTL:    5 * time.Minute,
		Company: Company{
			Name:    "telbill",
			State:   "Karnataka",
			Country: "India",
		},
		Tax: TaxRates{
			CGSTBps: 900,
			SGSTBps: 900,
			IGSTBps: 1800,
		},
		Dialing: DialingPlan{
			HomeCountryCode: "91",
			HomeAreaCodes:   []string{"80"},
		},
	}
}

type BillingConfigHolder struct {
	current atomic.Value // holds BillingConfig
}

// NewStaticBillingConfig returns a holder that never reloads.
func NewStaticBillingConfig(cfg BillingConfig) *BillingConfigHolder {
	holder := &BillingConfigHolder{}
	holder.current.Store(cfg)
	return holder
}

func NewBillingConfigHolder() (*BillingConfigHolder, error) {
	v := viper.New()

	v.SetConfigName("billing")
	v.SetConfigType("yml")
	v.AddConfigPath("/etc/telbill")
	v.AddConfigPath(".")

	v.SetEnvPrefix("TELBILL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setBillingDefaults(v, DefaultBillingConfig())

	fileLoaded := true
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		fileLoaded = false
	}

	var cfg BillingConfig
	if err := v.UnmarshalKey("billing", &cfg); err != nil {
		return nil, err
	}
	if err := validateBillingConfig(cfg); err != nil {
		return nil, err
	}

	holder := NewStaticBillingConfig(cfg)
	if !fileLoaded {
		return holder, nil
	}

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated BillingConfig
		if err := v.UnmarshalKey("billing", &updated); err != nil {
			log.Printf("[billing-config] reload failed: %v", err)
			return
		}
		if err := validateBillingConfig(updated); err != nil {
			log.Printf("[billing-config] invalid config ignored: %v", err)
			return
		}
		holder.current.Store(updated)
		log.Printf("[billing-config] reloaded from %s", e.Name)
	})

	return holder, nil
}

func (h *BillingConfigHolder) Get() BillingConfig {
	return h.current.Load().(BillingConfig)
}

func setBillingDefaults(v *viper.Viper, d BillingConfig) {
	v.SetDefault("billing.currency", d.Currency)
	v.SetDefault("billing.paymentTermDays", d.PaymentTermDays)
	v.SetDefault("billing.planCacheSize", d.PlanCacheSize)
	v.SetDefault("billing.planCacheTTL", d.PlanCacheTTL)
	v.SetDefault("billing.company.name", d.Company.Name)
	v.SetDefault("billing.company.state", d.Company.State)
	v.SetDefault("billing.company.country", d.Company.Country)
	v.SetDefault("billing.tax.cgstBps", d.Tax.CGSTBps)
	v.SetDefault("billing.tax.sgstBps", d.Tax.SGSTBps)
	v.SetDefault("billing.tax.igstBps", d.Tax.IGSTBps)
	v.SetDefault("billing.dialing.homeCountryCode", d.Dialing.HomeCountryCode)
	v.SetDefault("billing.dialing.homeAreaCodes", d.Dialing.HomeAreaCodes)
}

func validateBillingConfig(cfg BillingConfig) error {
	if strings.TrimSpace(cfg.Company.Country) == "" {
		return errors.New("billing.company.country cannot be empty")
	}
	if strings.TrimSpace(cfg.Currency) == "" {
		return errors.New("billing.currency cannot be empty")
	}
	if cfg.Tax.CGSTBps < 0 || cfg.Tax.SGSTBps < 0 || cfg.Tax.IGSTBps < 0 {
		return errors.New("billing.tax rates cannot be negative")
	}
	if cfg.PaymentTermDays < 0 {
		return errors.New("billing.paymentTermDays cannot be negative")
	}
	if strings.TrimSpace(cfg.Dialing.HomeCountryCode) == "" {
		return errors.New("billing.dialing.homeCountryCode cannot be empty")
	}
	return nil
}
