// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package cli

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/H0llyW00dzZ/echo-request-verifier/src/config"
	"github.com/H0llyW00dzZ/echo-request-verifier/src/internal/certcache"
	"github.com/H0llyW00dzZ/echo-request-verifier/src/internal/helper/testcert"
	"github.com/H0llyW00dzZ/echo-request-verifier/src/internal/policy"
	"github.com/H0llyW00dzZ/echo-request-verifier/src/logger"
)

const version = "1.3.3.7-testing"

// writeConfig writes a YAML configuration using cacheDir and returns its path.
func writeConfig(t *testing.T, cacheDir, extra string) string {
	t.Helper()
	t.Setenv(config.EnvConfigFile, "")
	t.Setenv(config.EnvApplicationID, "")

	path := filepath.Join(t.TempDir(), "config.yaml")
	content := "cache:\n  directory: " + cacheDir + "\n" + extra
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd(version, logger.NewCLILogger())
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestVersion(t *testing.T) {
	out, err := run(t, "--version")
	require.NoError(t, err)
	assert.Contains(t, out, version)
}

func TestCacheCommands(t *testing.T) {
	ca := testcert.NewAuthority(t)
	now := time.Now()
	valid := ca.Issue(t, testcert.LeafOptions{DNSNames: []string{testcert.ServiceDomain}})
	expired := ca.Issue(t, testcert.LeafOptions{
		DNSNames:  []string{testcert.ServiceDomain},
		NotBefore: now.Add(-48 * time.Hour),
		NotAfter:  now.Add(-time.Hour),
	})

	validFP := certcache.Fingerprint("https://s3.amazonaws.com/echo.api/valid.pem")
	expiredFP := certcache.Fingerprint("https://s3.amazonaws.com/echo.api/expired.pem")

	seed := func(t *testing.T) string {
		t.Helper()
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, validFP+".pem"), valid.ChainPEM, 0o600))
		require.NoError(t, os.WriteFile(filepath.Join(dir, expiredFP+".pem"), expired.ChainPEM, 0o600))
		return dir
	}

	tests := []struct {
		name     string
		testFunc func(t *testing.T)
	}{
		{
			name: "List empty cache",
			testFunc: func(t *testing.T) {
				out, err := run(t, "cache", "list", "-c", writeConfig(t, t.TempDir(), ""))
				require.NoError(t, err)
				assert.Contains(t, out, "No cached certificates")
			},
		},
		{
			name: "List shows status per entry",
			testFunc: func(t *testing.T) {
				out, err := run(t, "cache", "list", "--config", writeConfig(t, seed(t), ""))
				require.NoError(t, err)
				assert.Contains(t, out, validFP[:16])
				assert.Contains(t, out, expiredFP[:16])
				assert.Contains(t, out, "valid")
				assert.Contains(t, out, "expired")
				assert.Contains(t, out, testcert.ServiceDomain)
			},
		},
		{
			name: "Prune removes expired entries only",
			testFunc: func(t *testing.T) {
				dir := seed(t)
				out, err := run(t, "cache", "prune", "-c", writeConfig(t, dir, ""))
				require.NoError(t, err)
				assert.Contains(t, out, "removed "+expiredFP)
				assert.Contains(t, out, "1 entries removed")

				_, err = os.Stat(filepath.Join(dir, validFP+".pem"))
				assert.NoError(t, err)
				_, err = os.Stat(filepath.Join(dir, expiredFP+".pem"))
				assert.True(t, os.IsNotExist(err))
			},
		},
		{
			name: "Fetch refuses URLs outside the policy",
			testFunc: func(t *testing.T) {
				dir := t.TempDir()
				_, err := run(t, "cache", "fetch", "https://evil.example.com/echo.api/cert.pem", "-c", writeConfig(t, dir, ""))
				assert.ErrorIs(t, err, policy.ErrHost)

				entries, err := os.ReadDir(dir)
				require.NoError(t, err)
				assert.Empty(t, entries)
			},
		},
		{
			name: "Fetch requires a URL",
			testFunc: func(t *testing.T) {
				_, err := run(t, "cache", "fetch", "-c", writeConfig(t, t.TempDir(), ""))
				assert.Error(t, err)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.testFunc(t)
		})
	}
}

func TestServeRequiresApplicationID(t *testing.T) {
	_, err := run(t, "serve", "-c", writeConfig(t, t.TempDir(), ""))
	assert.ErrorIs(t, err, config.ErrInvalid)
}

func TestNewHandler(t *testing.T) {
	ca := testcert.NewAuthority(t)
	rootsFile := filepath.Join(t.TempDir(), "roots.pem")
	require.NoError(t, os.WriteFile(rootsFile, ca.PEM, 0o600))

	extra := "validation:\n  applicationId: amzn1.ask.skill.test\n  trustedRootsFile: " + rootsFile + "\n" +
		"server:\n  webhookPath: /echo\n  metricsPath: /metrics\n"
	cfg, err := config.Load(writeConfig(t, t.TempDir(), extra))
	require.NoError(t, err)

	handler, err := newHandler(cfg, version, logger.NopAuditor{}, logger.NewJSONLogger(io.Discard))
	require.NoError(t, err)

	tests := []struct {
		method string
		path   string
		want   int
	}{
		{http.MethodGet, "/healthz", http.StatusOK},
		{http.MethodGet, "/metrics", http.StatusOK},
		{http.MethodPost, "/echo", http.StatusBadRequest},
		{http.MethodGet, "/echo", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, nil))
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestNewHandlerBadRootsFile(t *testing.T) {
	extra := "validation:\n  applicationId: amzn1.ask.skill.test\n  trustedRootsFile: " +
		filepath.Join(t.TempDir(), "missing.pem") + "\n"
	cfg, err := config.Load(writeConfig(t, t.TempDir(), extra))
	require.NoError(t, err)

	_, err = newHandler(cfg, version, logger.NopAuditor{}, logger.NewJSONLogger(io.Discard))
	assert.ErrorContains(t, err, "trusted roots")
}
