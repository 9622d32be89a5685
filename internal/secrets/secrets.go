// Package secrets resolves per-source credential bundles. Providers are
// constructed once at start-up and passed to the collector.
package secrets

import (
	"context"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"mention_collector/internal/domain"
)

// Fields are the credential names looked up for every source.
var Fields = []string{"api_key", "login", "password", "client_id", "client_secret", "user_agent"}

// Env reads <PREFIX>_<KIND>_<FIELD>, falling back to <PREFIX>_<VENDOR>_<FIELD>
// when a vendor is known for the kind. Example: MENTION_NEWS_ARTICLE_API_KEY
// or MENTION_NEWSAPI_API_KEY.
type Env struct {
	prefix string
	vendor func(domain.SourceKind) string
	lookup func(string) (string, bool)
}

func NewEnv(prefix string, vendor func(domain.SourceKind) string) *Env {
	return &Env{prefix: prefix, vendor: vendor, lookup: os.LookupEnv}
}

func (e *Env) Credentials(_ context.Context, kind domain.SourceKind) (domain.Credentials, error) {
	scopes := []string{envName(string(kind))}
	if e.vendor != nil {
		if v := e.vendor(kind); v != "" {
			scopes = append(scopes, envName(v))
		}
	}

	creds := domain.Credentials{}
	for _, field := range Fields {
		for _, scope := range scopes {
			key := strings.Join([]string{e.prefix, scope, envName(field)}, "_")
			if v, ok := e.lookup(key); ok && v != "" {
				creds[field] = v
				break
			}
		}
	}
	if len(creds) == 0 {
		return nil, fmt.Errorf("%w for %s", domain.ErrCredentialsNotFound, kind)
	}
	return creds, nil
}

func envName(s string) string {
	return strings.ToUpper(strings.NewReplacer("-", "_", ".", "_").Replace(s))
}

// File serves bundles from a YAML document keyed by source kind (legacy
// aliases accepted), loaded once.
type File struct {
	bundles map[domain.SourceKind]domain.Credentials
}

func LoadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read secrets file: %w", err)
	}
	return ParseFile(data)
}

func ParseFile(data []byte) (*File, error) {
	var raw map[string]map[string]string
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &raw); err != nil {
		return nil, fmt.Errorf("parse secrets file: %w", err)
	}

	f := &File{bundles: make(map[domain.SourceKind]domain.Credentials, len(raw))}
	for key, fields := range raw {
		kind, err := domain.ParseSourceKind(key)
		if err != nil {
			return nil, fmt.Errorf("parse secrets file: %w", err)
		}
		f.bundles[kind] = domain.Credentials(fields)
	}
	return f, nil
}

func (f *File) Credentials(_ context.Context, kind domain.SourceKind) (domain.Credentials, error) {
	creds, ok := f.bundles[kind]
	if !ok || len(creds) == 0 {
		return nil, fmt.Errorf("%w for %s", domain.ErrCredentialsNotFound, kind)
	}
	out := make(domain.Credentials, len(creds))
	for k, v := range creds {
		out[k] = v
	}
	return out, nil
}
