package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkoval/poolctl/internal/domain"
)

func TestAccountAddRequiresIdentityFlag(t *testing.T) {
	home := t.TempDir()

	_, _, err := executeCLI(t, home, "account", "add")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "required flag(s) \"identity\" not set")
}

func TestAccountAddThenListShowsAccount(t *testing.T) {
	home := t.TempDir()

	stdout, _, err := executeCLI(t, home,
		"account", "add",
		"--identity", "alice@example.com",
		"--priority", "1",
	)
	require.NoError(t, err)
	assert.Contains(t, stdout, "Added account alice@example.com")

	stdout, _, err = executeCLI(t, home, "account", "list")
	require.NoError(t, err)
	assert.Contains(t, stdout, "alice@example.com")
	assert.Contains(t, stdout, "p1")
	assert.Contains(t, stdout, "active")
}

func TestAccountAddDuplicateIdentityFails(t *testing.T) {
	home := t.TempDir()

	_, _, err := executeCLI(t, home, "account", "add", "--identity", "alice@example.com")
	require.NoError(t, err)

	_, _, err = executeCLI(t, home, "account", "add", "--identity", "Alice@Example.com")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrDuplicateAccount)
}

func TestAccountAddStoresCredential(t *testing.T) {
	home := t.TempDir()

	_, _, err := executeCLI(t, home,
		"account", "add",
		"--identity", "alice@example.com",
		"--credential", "token-123",
	)
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(home, ".poolctl", "secrets", "credentials", "alice@example.com"))
	require.NoError(t, err)
	assert.Equal(t, "token-123", string(data))
}

func TestAccountListJSONOutput(t *testing.T) {
	home := t.TempDir()

	_, _, err := executeCLI(t, home, "account", "add", "--identity", "alice@example.com")
	require.NoError(t, err)

	stdout, _, err := executeCLI(t, home, "account", "list", "--json")
	require.NoError(t, err)
	assert.True(t, json.Valid([]byte(stdout)))
	assert.Contains(t, stdout, "\"Identity\": \"alice@example.com\"")
}

func TestAccountRemoveDeletesAccountAndCredential(t *testing.T) {
	home := t.TempDir()

	_, _, err := executeCLI(t, home,
		"account", "add",
		"--identity", "alice@example.com",
		"--credential", "token-123",
	)
	require.NoError(t, err)

	stdout, _, err := executeCLI(t, home, "account", "remove", "alice@example.com")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Removed account alice@example.com")

	stdout, _, err = executeCLI(t, home, "account", "list")
	require.NoError(t, err)
	assert.NotContains(t, stdout, "alice@example.com")

	_, err = os.Stat(filepath.Join(home, ".poolctl", "secrets", "credentials", "alice@example.com"))
	assert.True(t, os.IsNotExist(err))
}

func TestAccountRecoverUnknownAccountFails(t *testing.T) {
	home := t.TempDir()

	_, _, err := executeCLI(t, home, "account", "recover", "nobody@example.com")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrAccountNotFound)
}

func TestSessionStartAndEnd(t *testing.T) {
	home := t.TempDir()

	_, _, err := executeCLI(t, home, "account", "add", "--identity", "alice@example.com")
	require.NoError(t, err)

	stdout, _, err := executeCLI(t, home, "session", "start")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Started session")
	assert.Contains(t, stdout, "alice@example.com")

	stdout, _, err = executeCLI(t, home, "session", "end")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Ended session")
}

func TestSessionEndWithoutActiveSession(t *testing.T) {
	home := t.TempDir()

	stdout, _, err := executeCLI(t, home, "session", "end")
	require.NoError(t, err)
	assert.Contains(t, stdout, "No active session.")
}

func TestSessionStartOnEmptyPoolFails(t *testing.T) {
	home := t.TempDir()

	_, _, err := executeCLI(t, home, "session", "start")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrPoolEmpty)
}

func TestPoolStatusRendersSummary(t *testing.T) {
	home := t.TempDir()

	_, _, err := executeCLI(t, home, "account", "add", "--identity", "alice@example.com")
	require.NoError(t, err)

	stdout, _, err := executeCLI(t, home, "pool", "status")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Account Pool")
	assert.Contains(t, stdout, "accounts: 1")
	assert.Contains(t, stdout, "alice@example.com")
}

func TestPoolStatusJSONOutput(t *testing.T) {
	home := t.TempDir()

	_, _, err := executeCLI(t, home, "account", "add", "--identity", "alice@example.com")
	require.NoError(t, err)

	stdout, _, err := executeCLI(t, home, "pool", "status", "--json")
	require.NoError(t, err)
	assert.True(t, json.Valid([]byte(stdout)))
	assert.Contains(t, stdout, "\"Counts\"")
	assert.Contains(t, stdout, "\"NextIdentity\": \"alice@example.com\"")
}

func TestPoolNextOnEmptyPoolFails(t *testing.T) {
	home := t.TempDir()

	_, _, err := executeCLI(t, home, "pool", "next")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrPoolEmpty)
}

func TestPoolNextRoundRobinAdvancesAcrossInvocations(t *testing.T) {
	home := t.TempDir()

	_, _, err := executeCLI(t, home, "account", "add", "--identity", "alice@example.com")
	require.NoError(t, err)
	_, _, err = executeCLI(t, home, "account", "add", "--identity", "bob@example.com")
	require.NoError(t, err)
	_, _, err = executeCLI(t, home, "pool", "settings", "--strategy", "round_robin")
	require.NoError(t, err)

	first, _, err := executeCLI(t, home, "pool", "next")
	require.NoError(t, err)
	assert.Contains(t, first, "alice@example.com")

	second, _, err := executeCLI(t, home, "pool", "next")
	require.NoError(t, err)
	assert.Contains(t, second, "bob@example.com")
}

func TestPoolRotateOnEmptyPoolFails(t *testing.T) {
	home := t.TempDir()

	stdout, _, err := executeCLI(t, home, "pool", "rotate", "--reason", "manual")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrPoolEmpty)
	assert.Contains(t, stdout, "Pool is empty")
}

func TestPoolSettingsUpdatePersists(t *testing.T) {
	home := t.TempDir()

	stdout, _, err := executeCLI(t, home, "pool", "settings", "--cooldown", "45m", "--max-failures", "5")
	require.NoError(t, err)
	assert.Contains(t, stdout, "cooldown: 45m0s")
	assert.Contains(t, stdout, "max consecutive failures: 5")

	stdout, _, err = executeCLI(t, home, "pool", "settings")
	require.NoError(t, err)
	assert.Contains(t, stdout, "cooldown: 45m0s")
	assert.Contains(t, stdout, "max consecutive failures: 5")
}

func TestPoolSettingsRejectsUnknownStrategy(t *testing.T) {
	home := t.TempDir()

	_, _, err := executeCLI(t, home, "pool", "settings", "--strategy", "fifo")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown rotation strategy")
}

func TestRunExecutesChildWithAccountEnv(t *testing.T) {
	home := t.TempDir()

	_, _, err := executeCLI(t, home,
		"account", "add",
		"--identity", "alice@example.com",
		"--credential", "token-123",
	)
	require.NoError(t, err)

	stdout, _, err := executeCLI(t, home,
		"run", "--", "sh", "-c", "echo account=$POOLCTL_ACCOUNT credential=$POOLCTL_CREDENTIAL",
	)
	require.NoError(t, err)
	assert.Contains(t, stdout, "account=alice@example.com")
	assert.Contains(t, stdout, "credential=token-123")
	assert.Contains(t, stdout, "Completed on alice@example.com")
}

func TestRunFailsOnEmptyPool(t *testing.T) {
	home := t.TempDir()

	_, _, err := executeCLI(t, home, "run", "--", "true")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrPoolEmpty)
}

func TestVersionCommand(t *testing.T) {
	home := t.TempDir()

	stdout, _, err := executeCLI(t, home, "version")
	require.NoError(t, err)
	assert.Contains(t, stdout, "dev")
}

func executeCLI(t *testing.T, home string, args ...string) (string, string, error) {
	t.Helper()
	t.Setenv("HOME", home)

	root := newRootCmd()
	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.SetArgs(args)

	err := root.Execute()
	return stdout.String(), stderr.String(), err
}
