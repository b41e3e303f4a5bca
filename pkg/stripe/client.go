package stripe

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v84"

	"github.com/angelmondragon/orderflow-backend/pkg/config"
	"github.com/angelmondragon/orderflow-backend/pkg/logger"
)

const (
	testEnv = "test"
	liveEnv = "live"

	appName = "orderflow-backend"
)

var (
	errAPIKeyRequired   = errors.New("stripe api key is required")
	errSecretRequired   = errors.New("stripe webhook secret is required")
	errInvalidStripeEnv = fmt.Errorf("stripe environment must be %q or %q", testEnv, liveEnv)
)

// Client holds the validated Stripe credentials. The payment intent calls go
// through the package level API, so NewClient also installs the key there.
type Client struct {
	environment   string
	signingSecret string
}

// NewClient validates cfg and configures the Stripe SDK. The webhook secret is
// optional here; processes that verify webhooks call RequireSigningSecret.
func NewClient(ctx context.Context, cfg config.StripeConfig, logg *logger.Logger) (*Client, error) {
	env, apiKey, err := credentials(cfg)
	if err != nil {
		return nil, err
	}
	stripe.Key = apiKey
	stripe.SetAppInfo(&stripe.AppInfo{Name: appName})

	if logg != nil {
		logg.Info(logg.WithField(ctx, "stripe_env", env), "stripe client initialized")
	}
	return &Client{environment: env, signingSecret: strings.TrimSpace(cfg.Secret)}, nil
}

func (c *Client) Environment() string {
	if c == nil {
		return ""
	}
	return c.environment
}

func (c *Client) SigningSecret() string {
	if c == nil {
		return ""
	}
	return c.signingSecret
}

// RequireSigningSecret fails when no webhook secret was configured.
func (c *Client) RequireSigningSecret() error {
	if c.SigningSecret() == "" {
		return errSecretRequired
	}
	return nil
}

// credentials resolves the environment (test when unset) and checks that the
// key belongs to it. Secret (sk_) and restricted (rk_) keys are accepted.
func credentials(cfg config.StripeConfig) (env, apiKey string, err error) {
	env = strings.ToLower(strings.TrimSpace(cfg.Environment()))
	switch env {
	case "":
		env = testEnv
	case testEnv, liveEnv:
	default:
		return "", "", errInvalidStripeEnv
	}

	apiKey = strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return "", "", errAPIKeyRequired
	}
	if !strings.HasPrefix(apiKey, "sk_"+env) && !strings.HasPrefix(apiKey, "rk_"+env) {
		return "", "", fmt.Errorf("stripe environment %q requires a %s key (sk_%s or rk_%s)", env, env, env, env)
	}
	return env, apiKey, nil
}
