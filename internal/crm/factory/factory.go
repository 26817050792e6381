package factory

import (
	"fmt"

	"github.com/iWorld-y/deal_radar/internal/config"
	"github.com/iWorld-y/deal_radar/internal/crm"
	"github.com/iWorld-y/deal_radar/internal/crm/kommo"
	"github.com/iWorld-y/deal_radar/internal/crm/postgres"
)

// NewSource creates the configured deal source. The returned cleanup closes
// provider resources and is never nil.
func NewSource(cfg *config.Config) (crm.Source, func(), error) {
	provider := cfg.CRM.Provider
	if provider == "" {
		// Fall back on whichever provider is actually configured.
		switch {
		case cfg.CRM.Kommo.BaseURL != "":
			provider = "kommo"
		case cfg.CRM.Postgres.Host != "":
			provider = "postgres"
		default:
			return nil, nil, fmt.Errorf("crm provider not configured")
		}
	}

	switch provider {
	case "kommo":
		if cfg.CRM.Kommo.BaseURL == "" || cfg.CRM.Kommo.AccessToken == "" {
			return nil, nil, fmt.Errorf("kommo base_url or access_token is missing")
		}
		return kommo.NewClient(cfg.CRM.Kommo), func() {}, nil

	case "postgres":
		if cfg.CRM.Postgres.Host == "" {
			return nil, nil, fmt.Errorf("postgres host is missing")
		}
		src, err := postgres.NewSource(cfg.CRM.Postgres)
		if err != nil {
			return nil, nil, err
		}
		return src, func() { src.Close() }, nil

	default:
		return nil, nil, fmt.Errorf("unknown crm provider: %s", provider)
	}
}
