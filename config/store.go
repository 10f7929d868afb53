package config

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
)

// StoreConfig defines the connection to the durable history store.
// URL and AuthToken are both required; their absence is reported on first use.
type StoreConfig struct {
	URL            string `mapstructure:"url"`
	AuthToken      string `mapstructure:"auth_token"`
	TokenParameter string `mapstructure:"token_parameter"` // SSM parameter holding the token (prod)
	CreateDatabase bool   `mapstructure:"create_database"`

	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

var (
	ErrMissingStoreURL   = errors.New("store url is not defined")
	ErrMissingStoreToken = errors.New("store auth token is not defined")
	ErrUnsupportedScheme = errors.New("unsupported store url scheme")
)

// Driver returns the store driver implied by the URL scheme: "postgres" or "sqlite".
func (cfg *StoreConfig) Driver() (string, error) {
	u, err := url.Parse(cfg.URL)
	if err != nil {
		return "", fmt.Errorf("parse store url: %w", err)
	}
	switch strings.ToLower(u.Scheme) {
	case "postgres", "postgresql":
		return "postgres", nil
	case "file", "sqlite":
		return "sqlite", nil
	case "libsql", "https", "wss":
		// remote libSQL needs a network driver; a sqlite DSN would open a local file
		return "", fmt.Errorf("%w %q: remote libSQL is not supported, use a postgres or file url", ErrUnsupportedScheme, u.Scheme)
	default:
		return "", fmt.Errorf("%w %q", ErrUnsupportedScheme, u.Scheme)
	}
}

// DSN builds the driver DSN from the URL and token.
// For postgres the token is the password; sqlite files take the path only.
func (cfg *StoreConfig) DSN(env string) (string, error) {
	if cfg.URL == "" {
		return "", ErrMissingStoreURL
	}

	token := cfg.ResolveToken(env)
	if token == "" {
		return "", ErrMissingStoreToken
	}

	driver, err := cfg.Driver()
	if err != nil {
		return "", err
	}

	u, _ := url.Parse(cfg.URL)
	if driver == "sqlite" {
		path := u.Opaque
		if path == "" {
			path = u.Host + u.Path
		}
		if u.RawQuery != "" {
			path += "?" + u.RawQuery
		}
		return path, nil
	}

	user := "postgres"
	if u.User != nil && u.User.Username() != "" {
		user = u.User.Username()
	}
	u.User = url.UserPassword(user, token)
	u.Scheme = "postgres"
	return u.String(), nil
}

// ResolveToken returns the configured auth token. In prod an empty token
// is looked up in SSM Parameter Store under TokenParameter.
func (cfg *StoreConfig) ResolveToken(env string) string {
	if cfg.AuthToken != "" {
		return cfg.AuthToken
	}
	if env != "prod" || cfg.TokenParameter == "" {
		return ""
	}
	return getParameterStoreValue(cfg.TokenParameter, true)
}

func getParameterStoreValue(parameterName string, decrypt bool) string {
	baseCtx := context.Background()
	ctxWithTimeout, cancel := context.WithTimeout(baseCtx, 5*time.Second)
	defer cancel()

	cfg, err := awsconfig.LoadDefaultConfig(ctxWithTimeout)
	if err != nil {
		return ""
	}

	client := ssm.NewFromConfig(cfg)

	input := &ssm.GetParameterInput{
		Name:           &parameterName,
		WithDecryption: &decrypt,
	}

	result, err := client.GetParameter(ctxWithTimeout, input)
	if err != nil {
		return ""
	}

	if result.Parameter == nil || result.Parameter.Value == nil {
		return ""
	}

	return *result.Parameter.Value
}
