// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Scenio Contributors

package storage

import (
	"net/url"
	"strings"

	scenioerr "github.com/scenio-dev/scenio/pkg/errors"
)

// Config selects a backend identity and carries its backend-specific
// options. Option keys are validated by the backend at construction time;
// missing required keys or unrecognized keys fail fast.
type Config struct {
	Backend string
	Options map[string]string
}

// Option returns the named option or the empty string.
func (c Config) Option(key string) string {
	return c.Options[key]
}

// schemeBackends maps URL schemes to backend identities.
var schemeBackends = map[string]string{
	"file":  "file",
	"s3":    "s3",
	"gs":    "gcs",
	"az":    "azure",
	"http":  "http",
	"https": "http",
	"ftp":   "ftp",
	"sftp":  "sftp",
}

// ParseURL converts a connection URL into the equivalent structured Config.
// The two construction paths are interchangeable: New(ctx, ParseURL(u)) and
// New(ctx, cfg) select the same backend with the same effective settings.
//
//	file:///data/assets           → file   root=/data/assets
//	s3://bucket/base/prefix       → s3     bucket=bucket prefix=base/prefix
//	gs://bucket/base              → gcs    bucket=bucket prefix=base
//	az://container/base           → azure  container=container prefix=base
//	https://hub.example.com/ds    → http   base_url=https://hub.example.com/ds
//	ftp://user:pw@host:21/base    → ftp    host=host:21 user=user password=pw base_path=/base
//	sftp://user@host:22/base      → sftp   host=host:22 user=user base_path=/base
//
// Extra options (credentials, region, endpoints) merge on top of the parsed
// ones and win on conflict.
func ParseURL(rawURL string, extra map[string]string) (Config, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return Config{}, scenioerr.Wrapf(err, scenioerr.CodeConfigValidateInvalidValue, "parsing storage URL %q", rawURL)
	}

	backend, ok := schemeBackends[u.Scheme]
	if !ok {
		return Config{}, scenioerr.New(scenioerr.CodeBackendUnknown,
			"unsupported storage URL scheme: "+u.Scheme,
			scenioerr.Field("url", rawURL))
	}

	opts := map[string]string{}

	switch backend {
	case "file":
		opts["root"] = u.Path
	case "s3", "gcs":
		opts["bucket"] = u.Host
		if p := strings.Trim(u.Path, "/"); p != "" {
			opts["prefix"] = p
		}
	case "azure":
		opts["container"] = u.Host
		if p := strings.Trim(u.Path, "/"); p != "" {
			opts["prefix"] = p
		}
	case "http":
		opts["base_url"] = u.Scheme + "://" + u.Host + u.Path
	case "ftp", "sftp":
		host := u.Host
		if u.Port() == "" {
			if backend == "ftp" {
				host += ":21"
			} else {
				host += ":22"
			}
		}
		opts["host"] = host
		if u.User != nil {
			opts["user"] = u.User.Username()
			if pw, set := u.User.Password(); set {
				opts["password"] = pw
			}
		}
		if u.Path != "" && u.Path != "/" {
			opts["base_path"] = u.Path
		}
	}

	for k, v := range extra {
		opts[k] = v
	}

	return Config{Backend: backend, Options: opts}, nil
}

// optionError reports an invalid backend option set.
func optionError(backend, msg string) error {
	return scenioerr.New(scenioerr.CodeConfigValidateInvalidValue,
		msg, scenioerr.FieldBackend(backend))
}

// requireOptions returns an error naming the first missing required key.
func requireOptions(backend string, opts map[string]string, keys ...string) error {
	for _, key := range keys {
		if opts[key] == "" {
			return optionError(backend, "missing required option: "+key)
		}
	}
	return nil
}

// rejectUnknownOptions fails construction when opts contains a key outside
// the backend's recognized set. Misspelled options must not be silently
// ignored.
func rejectUnknownOptions(backend string, opts map[string]string, known ...string) error {
	allowed := map[string]struct{}{}
	for _, key := range known {
		allowed[key] = struct{}{}
	}
	for key := range opts {
		if _, ok := allowed[key]; !ok {
			return optionError(backend, "unrecognized option: "+key)
		}
	}
	return nil
}
