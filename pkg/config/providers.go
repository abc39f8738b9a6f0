package config

import (
	"github.com/ormasoftchile/clirun/pkg/providers"
	"github.com/ormasoftchile/clirun/pkg/schema"
)

// Providers builds the step providers described by c.
func (c Config) Providers() providers.Set {
	crypto := providers.NewCryptoProvider(c.Crypto.Path, c.Crypto.Timeout.Std())
	crypto.DelayMarker = c.Crypto.DelayMarker
	crypto.Delay = c.Crypto.Delay.Std()

	http := &providers.HTTPProvider{Timeout: c.HTTP.Timeout.Std()}
	if c.HTTP.InsecureSkipVerify != nil {
		http.InsecureSkipVerify = *c.HTTP.InsecureSkipVerify
	}

	return providers.Set{
		schema.StepProcess: providers.NewProcessProvider(c.Client.Path, c.Client.Timeout.Std(), c.Client.Encoding),
		schema.StepCrypto:  crypto,
		schema.StepHTTP:    http,
		schema.StepSleep:   &providers.SleepProvider{},
	}
}
