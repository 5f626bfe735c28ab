package services

import (
	"guto-paylink/internal/config"
	"guto-paylink/internal/interfaces"
	"guto-paylink/internal/services/mock"
	"guto-paylink/internal/services/real"
)

// CreateServices creates the appropriate service implementations based on
// configuration. Standalone mode wires mocks so the full flow (including
// confirmation polling) runs without the verification service or the
// payment processor.
func CreateServices(cfg *config.Config) (interfaces.NameLookupService, interfaces.PaymentGatewayService, error) {
	if cfg.StandaloneMode {
		lookup := mock.NewMockNameLookup(cfg.Server.Verbose)
		gateway := mock.NewMockPaymentGateway(nil, cfg.Server.Verbose)
		return lookup, gateway, nil
	}

	lookup := real.NewRealNameLookup(cfg.Endpoints.VerifyURL, cfg.Server.Verbose)
	gateway := real.NewRealPaymentGateway(cfg.Endpoints.PayURL, cfg.Endpoints.StatusBase, cfg.Server.Verbose)
	return lookup, gateway, nil
}
