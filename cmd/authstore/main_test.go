// ABOUTME: Tests for the authstore CLI commands
// ABOUTME: Runs subcommands against a temporary bolt database configured through env overrides

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/authstore/internal/identity"
)

func setupCLI(t *testing.T) {
	t.Helper()
	color.NoColor = true
	t.Cleanup(func() { color.NoColor = false })

	dir := t.TempDir()
	t.Setenv("AUTHSTORE_CONFIG", filepath.Join(dir, "missing.yaml"))
	t.Setenv("AUTHSTORE_DB_DRIVER", "bolt")
	t.Setenv("AUTHSTORE_DB_PATH", filepath.Join(dir, "auth.bolt"))
	t.Setenv("AUTHSTORE_LOG_LEVEL", "error")
}

func runCLI(t *testing.T, command string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	err := run(context.Background(), command, args, &out)
	return out.String(), err
}

func TestParseSeedAccount(t *testing.T) {
	acct, err := parseSeedAccount("github:123:tok")
	require.NoError(t, err)
	assert.Equal(t, identity.SeedAccount{ProviderID: "github", ProviderAccountID: "123", AccessToken: "tok"}, acct)

	acct, err = parseSeedAccount("google:9:tok:oidc")
	require.NoError(t, err)
	assert.Equal(t, "oidc", acct.ProviderType)

	_, err = parseSeedAccount("github:123")
	assert.Error(t, err)
	_, err = parseSeedAccount("a:b:c:d:e")
	assert.Error(t, err)
}

func TestLoadSeedDetails(t *testing.T) {
	dir := t.TempDir()

	yamlPath := filepath.Join(dir, "seed.yaml")
	require.NoError(t, os.WriteFile(yamlPath, []byte(`
email: ada@example.com
name: Ada
accounts:
  - provider_id: github
    provider_account_id: 42
    access_token: tok
`), 0644))

	details, err := loadSeedDetails(yamlPath)
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", details.Email)
	require.Len(t, details.Accounts, 1)
	assert.Equal(t, "github", details.Accounts[0].ProviderID)
	assert.Equal(t, "42", identity.NormalizeAccountID(details.Accounts[0].ProviderAccountID))

	jsonPath := filepath.Join(dir, "seed.json")
	require.NoError(t, os.WriteFile(jsonPath, []byte(`{"email":"bob@example.com","accounts":[{"providerId":"google","providerAccountId":7,"accessToken":"t"}]}`), 0644))

	details, err = loadSeedDetails(jsonPath)
	require.NoError(t, err)
	assert.Equal(t, "bob@example.com", details.Email)
	require.Len(t, details.Accounts, 1)
	assert.Equal(t, "7", identity.NormalizeAccountID(details.Accounts[0].ProviderAccountID))

	_, err = loadSeedDetails(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

func TestCLI_SeedThenInspect(t *testing.T) {
	setupCLI(t)

	out, err := runCLI(t, "init")
	require.NoError(t, err)
	assert.Contains(t, out, "Tables ready")

	out, err = runCLI(t, "seed", "--email", "ada@example.com", "--name", "Ada", "--account", "github:gh-1:tok")
	require.NoError(t, err)
	token := strings.TrimSpace(out)
	require.NotEmpty(t, token)

	out, err = runCLI(t, "session", token)
	require.NoError(t, err)
	assert.Contains(t, out, "expires:")

	out, err = runCLI(t, "user", "--email", "ada@example.com")
	require.NoError(t, err)
	var user map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &user))
	assert.Equal(t, "Ada", user["name"])
	userID, _ := user["id"].(string)
	require.NotEmpty(t, userID)

	out, err = runCLI(t, "user", userID)
	require.NoError(t, err)
	assert.Contains(t, out, "ada@example.com")

	out, err = runCLI(t, "link", "--user", userID, "--provider", "google", "--account-id", "g-1", "--access-token", "tok-2")
	require.NoError(t, err)
	var account identity.Account
	require.NoError(t, json.Unmarshal([]byte(out), &account))
	assert.Equal(t, userID, account.UserID)
	assert.Equal(t, identity.DefaultProviderType, account.ProviderType)

	out, err = runCLI(t, "touch", token)
	require.NoError(t, err)
	assert.Contains(t, out, "Session extended until")

	out, err = runCLI(t, "janitor", "--once")
	require.NoError(t, err)
	assert.Contains(t, out, "purged 0 expired documents")
}

func TestCLI_Errors(t *testing.T) {
	setupCLI(t)

	_, err := runCLI(t, "init")
	require.NoError(t, err)

	_, err = runCLI(t, "bogus")
	assert.EqualError(t, err, "unknown command: bogus")

	_, err = runCLI(t, "session", "no-such-token")
	assert.EqualError(t, err, "session not found or expired")

	_, err = runCLI(t, "touch", "no-such-token")
	assert.EqualError(t, err, "session not found or expired")

	_, err = runCLI(t, "user", "no-such-user")
	assert.EqualError(t, err, "user not found")

	_, err = runCLI(t, "user")
	assert.Error(t, err)

	_, err = runCLI(t, "link", "--user", "x")
	assert.Error(t, err)

	_, err = runCLI(t, "link", "--user", "missing", "--provider", "p", "--account-id", "1", "--access-token", "t")
	assert.EqualError(t, err, "user missing not found")
}

func TestCLI_Version(t *testing.T) {
	out, err := runCLI(t, "version")
	require.NoError(t, err)
	assert.Equal(t, version+"\n", out)
}
