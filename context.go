package queryfx

import (
	"context"
	"net/http"
)

// Credentials carries request authorization for transport callers. Token is
// sent as a bearer token and takes precedence; Username/Password fall back
// to basic auth. The zero value sends nothing.
type Credentials struct {
	Token    string
	Username string
	Password string
}

func (c Credentials) isZero() bool { return c == Credentials{} }

// CallOptions is the resolved per-call transport configuration handed to a
// Caller: the base path the method path is joined to, the headers to send,
// and the credentials to authenticate with.
type CallOptions struct {
	BasePath    string
	Header      http.Header
	Credentials Credentials
}

// Config is request-scoped transport configuration. Attach it to a context
// with WithConfig and every query fetch and mutation call made under that
// context picks it up, without threading options through call sites.
type Config struct {
	BasePath    string
	Header      http.Header
	Credentials Credentials
}

type configKey struct{}

// WithConfig returns a context carrying cfg.
func WithConfig(ctx context.Context, cfg Config) context.Context {
	return context.WithValue(ctx, configKey{}, cfg)
}

// ConfigFrom returns the Config attached to ctx, if any.
func ConfigFrom(ctx context.Context) (Config, bool) {
	cfg, ok := ctx.Value(configKey{}).(Config)
	return cfg, ok
}

// resolveCallOptions merges the transport configuration for one call.
// Precedence, lowest to highest: the JSON Content-Type default, the
// executor's base options, then the context Config. Headers merge per key,
// so a higher layer replaces only the keys it sets.
func resolveCallOptions(ctx context.Context, base CallOptions) CallOptions {
	out := CallOptions{
		BasePath:    base.BasePath,
		Credentials: base.Credentials,
		Header:      http.Header{"Content-Type": []string{"application/json"}},
	}
	for k, vs := range base.Header {
		out.Header[http.CanonicalHeaderKey(k)] = append([]string(nil), vs...)
	}
	cfg, ok := ConfigFrom(ctx)
	if !ok {
		return out
	}
	if cfg.BasePath != "" {
		out.BasePath = cfg.BasePath
	}
	if !cfg.Credentials.isZero() {
		out.Credentials = cfg.Credentials
	}
	for k, vs := range cfg.Header {
		out.Header[http.CanonicalHeaderKey(k)] = append([]string(nil), vs...)
	}
	return out
}
