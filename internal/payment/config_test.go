package payment

import (
	"errors"
	"testing"

	"learnstore/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleConfig = `
sites:
  edx:
    cybersource:
      profile_id: prof
      access_key: ak
      secret_key: sk
    paypal:
      mode: sandbox
      client_id: cid
      client_secret: cs
      retry_attempts: 2
  mobile:
    ios-iap:
      shared_secret: shh
`

func TestParseConfig(t *testing.T) {
	cfg, err := ParseConfig([]byte(sampleConfig))
	require.NoError(t, err)

	pc, ok := cfg.Lookup("edx", PayPal)
	require.True(t, ok)
	assert.Equal(t, 2, pc.RetryAttempts)
	assert.Equal(t, "cid", pc.ClientID)

	_, ok = cfg.Lookup("edx", Stripe)
	assert.False(t, ok)
	_, ok = cfg.Lookup("nope", PayPal)
	assert.False(t, ok)
}

func TestParseConfig_UnknownProcessor(t *testing.T) {
	_, err := ParseConfig([]byte("sites:\n  edx:\n    bitcoin: {}\n"))
	assert.ErrorIs(t, err, ErrUnknownProcessor)
}

func TestRegistry_Resolve(t *testing.T) {
	cfg, err := ParseConfig([]byte(sampleConfig))
	require.NoError(t, err)
	reg := NewRegistry(cfg, newHarness().deps)

	p, err := reg.Resolve(domain.Site{Key: "edx"}, CyberSource)
	require.NoError(t, err)
	assert.Equal(t, CyberSource, p.Name())

	p, err = reg.Resolve(domain.Site{Key: "mobile"}, IOSIAP)
	require.NoError(t, err)
	assert.Equal(t, "1000", p.TransactionID(Payload{"transaction_id": "1000"}))

	_, err = reg.Resolve(domain.Site{Key: "mobile"}, PayPal)
	assert.True(t, errors.Is(err, ErrUnknownProcessor))
}
