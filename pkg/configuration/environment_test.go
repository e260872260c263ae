package configuration

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadEnv_LoadsExistingFilesOnly(t *testing.T) {
	tmp := t.TempDir()
	requireWriteFile(t, filepath.Join(tmp, ".env.local"), "CRM_EXCHANGE_TEST_ENV_LOAD=ok\n")

	origWd, err := os.Getwd()
	require.NoError(t, err)
	t.Cleanup(func() { _ = os.Chdir(origWd) })
	require.NoError(t, os.Chdir(tmp))

	_ = os.Unsetenv("CRM_EXCHANGE_TEST_ENV_LOAD")
	t.Cleanup(func() { _ = os.Unsetenv("CRM_EXCHANGE_TEST_ENV_LOAD") })

	n, err := LoadEnv([]string{".env", ".env.local"})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, "ok", os.Getenv("CRM_EXCHANGE_TEST_ENV_LOAD"))
}

func TestLoadEnv_NoFiles(t *testing.T) {
	tmp := t.TempDir()
	n, err := LoadEnv([]string{filepath.Join(tmp, ".env")})
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestERPOptions_Authorization(t *testing.T) {
	o := ERPOptions{APIKey: " key ", APISecret: "secret"}
	assert.Equal(t, "token key:secret", o.Authorization())

	o.APISecret = ""
	assert.Empty(t, o.Authorization())
}

func TestERPOptions_Validate(t *testing.T) {
	require.NoError(t, (&ERPOptions{BaseURL: "https://erp.example.com"}).Validate())
	require.Error(t, (&ERPOptions{BaseURL: ""}).Validate())
	require.Error(t, (&ERPOptions{BaseURL: "erp.example.com"}).Validate())
	require.Error(t, (&ERPOptions{BaseURL: "http://erp", RequestTimeout: -time.Second}).Validate())
}

func TestImportOptions_ValidateNormalizesExtensions(t *testing.T) {
	o := ImportOptions{AcceptedExtensions: []string{"CSV", " .xlsx "}, MaxUploadSize: 1}
	require.NoError(t, o.Validate())
	assert.Equal(t, []string{".csv", ".xlsx"}, o.AcceptedExtensions)

	o = ImportOptions{MaxUploadSize: 1}
	require.Error(t, o.Validate())
}

func TestConfiguration_DefaultsFromEnvTags(t *testing.T) {
	var c Configuration
	require.NoError(t, env.Parse(&c))

	assert.Equal(t, time.Second, c.Import.SettleDelay)
	assert.Equal(t, []string{".csv", ".xlsx"}, c.Import.AcceptedExtensions)
	assert.Equal(t, "Insert New Records", c.ERP.ImportType)
	assert.Equal(t, "/api/resource", c.ERP.ResourcePathPrefix)
	require.NoError(t, c.validate())
}

func TestRateLimitOptions_Validate(t *testing.T) {
	require.NoError(t, (&RateLimitOptions{GlobalRPS: 10, Storage: "memory"}).Validate())
	require.Error(t, (&RateLimitOptions{GlobalRPS: 10, Storage: "redis"}).Validate())
	require.Error(t, (&RateLimitOptions{GlobalRPS: -1, Storage: "memory"}).Validate())
}

func TestCorsOriginList(t *testing.T) {
	c := Configuration{CorsOrigins: "http://a.test, http://b.test"}
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, c.CorsOriginList())
}

func requireWriteFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}
