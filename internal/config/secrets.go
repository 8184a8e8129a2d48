package config

import (
	"net/url"
	"slices"
)

// RedactedConfig returns a copy of cfg with sensitive fields replaced by the
// redaction placeholder "***". Use this when logging or printing the active
// configuration so secrets are never accidentally exposed.
func RedactedConfig(cfg *Config) Config {
	out := *cfg

	redact(&out.Subgraph.APIKey)
	redact(&out.Locker.APIKey)
	redact(&out.Postgres.DSN)
	redact(&out.Postgres.Password)
	redact(&out.Redis.Password)
	redact(&out.S3.AccessKey)
	redact(&out.S3.SecretKey)
	redact(&out.Server.APIKey)
	redact(&out.Notify.TelegramToken)
	redact(&out.Notify.DiscordWebhookURL)

	// RPC URLs commonly embed a provider key in the path.
	if out.Chain.RPCURL != "" {
		out.Chain.RPCURL = redactURLPath(out.Chain.RPCURL)
	}

	// Copy slices so callers cannot mutate the original through the redacted
	// copy.
	out.Farms.LP = slices.Clone(cfg.Farms.LP)
	out.Farms.Dual = slices.Clone(cfg.Farms.Dual)
	out.Farms.Other = slices.Clone(cfg.Farms.Other)
	out.Indexer.Accounts = slices.Clone(cfg.Indexer.Accounts)
	out.Archive.Pairs = slices.Clone(cfg.Archive.Pairs)
	out.Server.CORSOrigins = slices.Clone(cfg.Server.CORSOrigins)
	out.Server.TrustedProxies = slices.Clone(cfg.Server.TrustedProxies)
	out.Notify.Events = slices.Clone(cfg.Notify.Events)

	return out
}

const redacted = "***"

// redact replaces a non-empty string with the redacted placeholder.
func redact(s *string) {
	if *s != "" {
		*s = redacted
	}
}

// redactURLPath keeps scheme and host and hides the path, query and user
// info.
func redactURLPath(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return redacted
	}
	if u.Path == "" || u.Path == "/" {
		if u.RawQuery == "" && u.User == nil {
			return raw
		}
	}
	return u.Scheme + "://" + u.Host + "/" + redacted
}
