package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lpdesk/lpdesk/internal/domain"
)

func validConfig() Config {
	cfg := Defaults()
	cfg.Locker.BaseURL = "https://locker.example"
	return cfg
}

func TestDefaults_ValidOnceLockerSet(t *testing.T) {
	cfg := validConfig()
	require.NoError(t, cfg.Validate())

	cfg.Locker.BaseURL = ""
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "locker: base_url")
}

func TestValidate_CollectsEveryProblem(t *testing.T) {
	cfg := validConfig()
	cfg.Mode = "trade"
	cfg.Chain.PositionManager = "nope"
	cfg.View.FeePercent = "1.5"
	cfg.Farms.LP = []string{"0x123"}

	err := cfg.Validate()
	require.Error(t, err)
	msg := err.Error()
	assert.Contains(t, msg, `unknown mode "trade"`)
	assert.Contains(t, msg, "position_manager")
	assert.Contains(t, msg, "fee_percent")
	assert.Contains(t, msg, `farms: "0x123"`)
}

func TestTrustedProxyPrefixes(t *testing.T) {
	cfg := validConfig()
	cfg.Server.TrustedProxies = []string{"10.0.0.0/8", "192.168.1.7", "::ffff:172.16.0.1"}

	prefixes, err := cfg.TrustedProxyPrefixes()
	require.NoError(t, err)
	require.Len(t, prefixes, 3)
	assert.Equal(t, "10.0.0.0/8", prefixes[0].String())
	assert.Equal(t, "192.168.1.7/32", prefixes[1].String())
	assert.Equal(t, "172.16.0.1/32", prefixes[2].String())

	cfg.Server.TrustedProxies = []string{"proxy.local"}
	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `trusted proxy "proxy.local"`)
}

func TestLoad_FileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "lpdesk.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
mode = "server"

[locker]
base_url = "https://file.example"

[indexer]
interval = "90s"

[farms]
lp = ["0x1111111111111111111111111111111111111111"]
`), 0o600))

	t.Setenv("LPDESK_LOCKER_BASE_URL", "https://env.example")
	t.Setenv("LPDESK_FARMS_DUAL", " 0x2222222222222222222222222222222222222222 , ")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "server", cfg.Mode)
	assert.Equal(t, "https://env.example", cfg.Locker.BaseURL)
	assert.Equal(t, 90*time.Second, cfg.Indexer.Interval.Duration)
	assert.Len(t, cfg.Farms.LP, 1)
	assert.Equal(t, []string{"0x2222222222222222222222222222222222222222"}, cfg.Farms.Dual)
	assert.True(t, cfg.RunsServer())
	assert.False(t, cfg.RunsIndexer())
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	require.NoError(t, err)
	assert.Equal(t, "0x89", cfg.Chain.ChainID)
}

func TestArchivePairs(t *testing.T) {
	cfg := validConfig()
	cfg.Archive.Pairs = []string{
		"v2:0x1111111111111111111111111111111111111111",
		"0x2222222222222222222222222222222222222222",
	}

	pairs, err := cfg.ArchivePairs()
	require.NoError(t, err)
	assert.Equal(t, []PairRef{
		{Schema: domain.SchemaV2, ID: "0x1111111111111111111111111111111111111111"},
		{Schema: domain.SchemaV3, ID: "0x2222222222222222222222222222222222222222"},
	}, pairs)

	cfg.Archive.Pairs = []string{"v4:0x1111111111111111111111111111111111111111"}
	_, err = cfg.ArchivePairs()
	assert.ErrorIs(t, err, domain.ErrUnsupportedSchema)
}

func TestRedactedConfig(t *testing.T) {
	cfg := validConfig()
	cfg.Locker.APIKey = "locker-secret"
	cfg.Postgres.Password = "pg-secret"
	cfg.Chain.RPCURL = "https://polygon-mainnet.g.alchemy.com/v2/abcdef"
	cfg.Farms.LP = []string{"0xa"}

	red := RedactedConfig(&cfg)
	assert.Equal(t, "***", red.Locker.APIKey)
	assert.Equal(t, "***", red.Postgres.Password)
	assert.Equal(t, "https://polygon-mainnet.g.alchemy.com/***", red.Chain.RPCURL)
	assert.False(t, strings.Contains(red.Chain.RPCURL, "abcdef"))
	assert.Equal(t, "", red.Redis.Password, "empty secrets stay empty")

	red.Farms.LP[0] = "0xb"
	assert.Equal(t, "0xa", cfg.Farms.LP[0])
	assert.Equal(t, "locker-secret", cfg.Locker.APIKey)
}
