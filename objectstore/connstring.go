package objectstore

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// Scheme identifies which backend a connection string selects.
type Scheme string

const (
	SchemeS3     Scheme = "s3"
	SchemeFile   Scheme = "file"
	SchemeMemory Scheme = "memory"
)

// Config is the normalized result of parsing a connection string.
// s3://<access>:<secret>@<bucket>[/<prefix>][?region=...&endpoint=...&forcePathStyle=...]
// file://<path>[?prefix=...]
// memory://[name][?prefix=...]
type Config struct {
	Scheme         Scheme
	AccessKey      string
	SecretKey      string
	Bucket         string
	Prefix         string
	Region         string
	Endpoint       string
	ForcePathStyle bool
	// Path is the local filesystem path for file:// connections.
	Path string
	// Name disambiguates independent memory:// stores within a process.
	Name string
}

// ParseConnectionString parses one of the three supported connection string
// forms into a normalized Config, ready to hand to New.
func ParseConnectionString(raw string) (*Config, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("objectstore: parse connection string: %w", err)
	}

	switch Scheme(u.Scheme) {
	case SchemeS3:
		return parseS3(u)
	case SchemeFile:
		path := u.Host + u.Path
		if u.Opaque != "" {
			path = u.Opaque
		}
		if path == "" {
			return nil, fmt.Errorf("objectstore: file connection string missing a path")
		}
		return &Config{
			Scheme: SchemeFile,
			Path:   path,
			Prefix: strings.Trim(u.Query().Get("prefix"), "/"),
		}, nil
	case SchemeMemory:
		return &Config{
			Scheme: SchemeMemory,
			Name:   u.Host,
			Prefix: strings.Trim(u.Query().Get("prefix"), "/"),
		}, nil
	default:
		return nil, fmt.Errorf("objectstore: unsupported connection scheme %q", u.Scheme)
	}
}

func parseS3(u *url.URL) (*Config, error) {
	cfg := &Config{Scheme: SchemeS3}

	if u.User != nil {
		cfg.AccessKey = u.User.Username()
		if secret, ok := u.User.Password(); ok {
			cfg.SecretKey = secret
		}
	}

	cfg.Bucket = u.Hostname()
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("objectstore: s3 connection string missing bucket")
	}

	cfg.Prefix = strings.Trim(u.Path, "/")

	q := u.Query()
	cfg.Region = q.Get("region")
	cfg.Endpoint = q.Get("endpoint")
	if v := q.Get("forcePathStyle"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("objectstore: invalid forcePathStyle value %q: %w", v, err)
		}
		cfg.ForcePathStyle = b
	}

	return cfg, nil
}
