package payment

import (
	"fmt"

	"learnstore/internal/domain"
)

// Registry builds processors from per-site configuration.
type Registry struct {
	cfg  Config
	deps Deps
}

func NewRegistry(cfg Config, deps Deps) *Registry {
	return &Registry{cfg: cfg, deps: deps}
}

// Resolve returns the processor called name configured for site.
func (r *Registry) Resolve(site domain.Site, name string) (Processor, error) {
	pc, ok := r.cfg.Lookup(site.Key, name)
	if !ok {
		return nil, fmt.Errorf("%w: %s for site %s", ErrUnknownProcessor, name, site.Key)
	}
	switch name {
	case CyberSource:
		return NewCyberSource(pc, r.deps), nil
	case PayPal:
		return NewPayPal(pc, r.deps), nil
	case Stripe:
		return NewStripe(pc, r.deps), nil
	case IOSIAP:
		return NewIOSInAppPurchase(pc, r.deps), nil
	case AndroidIAP:
		return NewAndroidInAppPurchase(pc, r.deps), nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownProcessor, name)
}

var (
	_ Processor = (*CyberSourceProcessor)(nil)
	_ Processor = (*PayPalProcessor)(nil)
	_ Processor = (*StripeProcessor)(nil)
	_ Processor = (*IOSInAppPurchaseProcessor)(nil)
	_ Processor = (*AndroidInAppPurchaseProcessor)(nil)
)
