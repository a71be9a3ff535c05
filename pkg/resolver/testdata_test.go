package resolver

import "github.com/Mindburn-Labs/agentlock/pkg/contracts"

func provider(id, version string, mutate ...func(*contracts.ServiceProvider)) contracts.ServiceProvider {
	p := contracts.ServiceProvider{
		ID:               id,
		Version:          version,
		Endpoint:         "https://" + id + ".example/mcp",
		Categories:       []string{"test"},
		Scopes:           []string{"read:test", "write:test"},
		ResidencySupport: []contracts.ResidencyLevel{contracts.ResidencyAny},
		MaxSensitivity:   contracts.SensitivityPIIHigh,
	}
	for _, m := range mutate {
		m(&p)
	}
	return p
}

func signed(p *contracts.ServiceProvider) {
	p.Trust = contracts.Trust{Signed: true, Publisher: "acme"}
}

func residency(levels ...contracts.ResidencyLevel) func(*contracts.ServiceProvider) {
	return func(p *contracts.ServiceProvider) { p.ResidencySupport = levels }
}

func categories(cats ...string) func(*contracts.ServiceProvider) {
	return func(p *contracts.ServiceProvider) { p.Categories = cats }
}

func maxSensitivity(s contracts.SensitivityLevel) func(*contracts.ServiceProvider) {
	return func(p *contracts.ServiceProvider) { p.MaxSensitivity = s }
}

func ptr[T any](v T) *T { return &v }
