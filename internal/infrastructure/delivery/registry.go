package delivery

import (
	"context"

	"github.com/google/uuid"

	"github.com/posbridge/backend/internal/domain/integration"
)

// Config aggregates the environment-level settings of all adapters
type Config struct {
	Trendyol    TrendyolConfig
	Yemeksepeti YemeksepetiConfig
	Getir       GetirConfig
	Migros      MigrosConfig
	Fuudy       FuudyConfig
}

// Registry resolves tenant-bound adapters. Every Resolve call constructs a
// fresh adapter and binds it to the tenant's credentials, so adapters for
// different tenants never share mutable state and the platform switch happens
// in exactly one place.
type Registry struct {
	constructors map[integration.PlatformCode]func() integration.DeliveryPlatform
	order        []integration.PlatformCode
}

// NewRegistry builds a registry over all supported platforms
func NewRegistry(config Config, deps Dependencies) (*Registry, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}

	constructors := map[integration.PlatformCode]func() integration.DeliveryPlatform{
		integration.PlatformCodeTrendyol: func() integration.DeliveryPlatform {
			return NewTrendyolAdapter(config.Trendyol, deps)
		},
		integration.PlatformCodeYemeksepeti: func() integration.DeliveryPlatform {
			return NewYemeksepetiAdapter(config.Yemeksepeti, deps)
		},
		integration.PlatformCodeGetir: func() integration.DeliveryPlatform {
			return NewGetirAdapter(config.Getir, deps)
		},
		integration.PlatformCodeMigros: func() integration.DeliveryPlatform {
			return NewMigrosAdapter(config.Migros, deps)
		},
		integration.PlatformCodeFuudy: func() integration.DeliveryPlatform {
			return NewFuudyAdapter(config.Fuudy, deps)
		},
	}
	return &Registry{
		constructors: constructors,
		order:        integration.AllPlatformCodes(),
	}, nil
}

// Resolve returns an adapter bound to the tenant's credentials
func (r *Registry) Resolve(ctx context.Context, tenantID uuid.UUID, platform integration.PlatformCode) (integration.DeliveryPlatform, error) {
	construct, ok := r.constructors[platform]
	if !ok {
		return nil, integration.ErrPlatformNotSupported
	}

	adapter := construct()
	if err := adapter.SetTenantContext(ctx, tenantID); err != nil {
		return nil, err
	}
	return adapter, nil
}

// SupportedPlatforms lists every platform the registry can resolve
func (r *Registry) SupportedPlatforms() []integration.PlatformCode {
	out := make([]integration.PlatformCode, len(r.order))
	copy(out, r.order)
	return out
}

var _ integration.PlatformRegistry = (*Registry)(nil)
