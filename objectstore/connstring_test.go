package objectstore

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseS3ConnectionString(t *testing.T) {
	cfg, err := ParseConnectionString("s3://AKIAEXAMPLE:se%2Fcret@my-bucket/tenants/a?region=eu-central-1&endpoint=https://minio.local:9000&forcePathStyle=true")
	require.NoError(t, err)

	require.Equal(t, SchemeS3, cfg.Scheme)
	require.Equal(t, "AKIAEXAMPLE", cfg.AccessKey)
	require.Equal(t, "se/cret", cfg.SecretKey, "credentials are URL-decoded")
	require.Equal(t, "my-bucket", cfg.Bucket)
	require.Equal(t, "tenants/a", cfg.Prefix)
	require.Equal(t, "eu-central-1", cfg.Region)
	require.Equal(t, "https://minio.local:9000", cfg.Endpoint)
	require.True(t, cfg.ForcePathStyle)
}

func TestParseS3Minimal(t *testing.T) {
	cfg, err := ParseConnectionString("s3://bucket-only")
	require.NoError(t, err)
	require.Equal(t, "bucket-only", cfg.Bucket)
	require.Empty(t, cfg.Prefix)
	require.False(t, cfg.ForcePathStyle)
}

func TestParseS3MissingBucket(t *testing.T) {
	_, err := ParseConnectionString("s3://")
	require.Error(t, err)
}

func TestParseS3BadForcePathStyle(t *testing.T) {
	_, err := ParseConnectionString("s3://bucket?forcePathStyle=sideways")
	require.Error(t, err)
}

func TestParseFileConnectionString(t *testing.T) {
	cfg, err := ParseConnectionString("file:///var/lib/s3db/local.db?prefix=dev")
	require.NoError(t, err)
	require.Equal(t, SchemeFile, cfg.Scheme)
	require.Equal(t, "/var/lib/s3db/local.db", cfg.Path, "query string must not leak into the path")
	require.Equal(t, "dev", cfg.Prefix)
}

func TestParseFileRelativePath(t *testing.T) {
	cfg, err := ParseConnectionString("file://local.db")
	require.NoError(t, err)
	require.Equal(t, "local.db", cfg.Path)

	_, err = ParseConnectionString("file://")
	require.Error(t, err)
}

func TestParseMemoryConnectionString(t *testing.T) {
	cfg, err := ParseConnectionString("memory://unit-tests?prefix=t1")
	require.NoError(t, err)
	require.Equal(t, SchemeMemory, cfg.Scheme)
	require.Equal(t, "unit-tests", cfg.Name)
	require.Equal(t, "t1", cfg.Prefix)
}

func TestParseUnsupportedScheme(t *testing.T) {
	_, err := ParseConnectionString("couch://localhost")
	require.Error(t, err)
}
