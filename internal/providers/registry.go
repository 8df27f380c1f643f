package providers

import (
	"log"

	"github.com/pawtrip/backend/internal/config"
)

// Registry holds the providers whose credentials are configured
type Registry struct {
	Places   []PlaceProvider
	Shopping *NaverShopping
}

// FromConfig builds the configured providers. Affiliate providers come first,
// in the order their results are listed.
func FromConfig(cfg config.ProvidersConfig) *Registry {
	opts := Options{Timeout: cfg.Timeout, RequestsPerSecond: cfg.RequestsPerSecond}
	reg := &Registry{}

	if cfg.AgodaSiteID != "" && cfg.AgodaAPIKey != "" {
		reg.Places = append(reg.Places, NewAgoda(cfg.AgodaSiteID, cfg.AgodaAPIKey, cfg.AgodaBaseURL, cfg.AgodaCityIDs, opts))
	}
	if cfg.KlookAffiliateID != "" && cfg.KlookAPIKey != "" {
		reg.Places = append(reg.Places, NewKlook(cfg.KlookAffiliateID, cfg.KlookAPIKey, cfg.KlookBaseURL, opts))
	}
	if cfg.NaverClientID != "" && cfg.NaverClientSecret != "" {
		reg.Places = append(reg.Places, NewNaver(cfg.NaverClientID, cfg.NaverClientSecret, cfg.NaverBaseURL, opts))
		reg.Shopping = NewNaverShopping(cfg.NaverClientID, cfg.NaverClientSecret, cfg.NaverBaseURL, opts)
	}

	names := make([]string, 0, len(reg.Places))
	for _, p := range reg.Places {
		names = append(names, string(p.Name()))
	}
	log.Printf("[providers] enabled place providers: %v (shopping=%v)", names, reg.Shopping != nil)
	return reg
}
