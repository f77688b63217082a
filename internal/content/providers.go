package content

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"scholar/internal/platform/config"
)

// PinataProviderID identifies the authenticated gateway.
const PinataProviderID = "pinata"

// BuildProviders assembles the provider chain from configuration: the
// authenticated gateway first when a usable credential is configured, then
// the public gateways in order. The metadata provider is nil without a
// credential.
func BuildProviders(cfg config.Fetch, now time.Time, logger *slog.Logger) ([]Provider, MetadataProvider, error) {
	client := &http.Client{Timeout: cfg.Timeout}

	var (
		providers []Provider
		metadata  MetadataProvider
	)
	switch {
	case cfg.PinataJWT == "":
		logger.Info("no gateway credential configured, using public gateways only")
	case !CredentialUsable(cfg.PinataJWT, now):
		logger.Warn("gateway credential has expired, using public gateways only")
	default:
		pinata, err := NewGatewayProvider(cfg.PinataGatewayURL, client,
			WithID(PinataProviderID),
			WithBearerToken(cfg.PinataJWT),
			WithMaxBytes(cfg.MaxBytes),
		)
		if err != nil {
			return nil, nil, fmt.Errorf("pinata gateway: %w", err)
		}
		providers = append(providers, pinata)
		metadata = NewPinataMetadata(cfg.PinataAPIURL, cfg.PinataJWT, client)
	}

	for _, gw := range cfg.PublicGateways {
		p, err := NewGatewayProvider(gw, client, WithMaxBytes(cfg.MaxBytes))
		if err != nil {
			return nil, nil, err
		}
		providers = append(providers, p)
	}
	if len(providers) == 0 {
		return nil, nil, fmt.Errorf("no content providers configured")
	}
	return providers, metadata, nil
}
