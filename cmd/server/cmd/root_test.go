package cmd

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommandHelp(t *testing.T) {
	for _, args := range [][]string{{"--help"}, {"-h"}} {
		cmd := newRootCommand()
		buf := new(bytes.Buffer)
		cmd.SetOut(buf)
		cmd.SetErr(buf)
		cmd.SetArgs(args)

		require.NoError(t, cmd.Execute())
		assert.Contains(t, buf.String(), "In The Know YYC server")
	}
}

func TestRootCommandRejectsUnknownFlags(t *testing.T) {
	cmd := newRootCommand()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"--invalid-flag"})

	assert.ErrorContains(t, cmd.Execute(), "unknown flag: --invalid-flag")
}

func TestRootCommandPersistentFlags(t *testing.T) {
	cmd := newRootCommand()
	for _, flag := range []string{"config", "log-level", "log-format"} {
		assert.NotNil(t, cmd.PersistentFlags().Lookup(flag), flag)
	}
}

func TestRootCommandSubcommands(t *testing.T) {
	cmd := newRootCommand()

	names := map[string]bool{}
	for _, sub := range cmd.Commands() {
		names[sub.Name()] = true
	}
	for _, want := range []string{"serve", "migrate", "admin", "version", "healthcheck"} {
		assert.True(t, names[want], "missing subcommand %q", want)
	}
}

func TestMigrateSubcommands(t *testing.T) {
	migrate, _, err := newRootCommand().Find([]string{"migrate"})
	require.NoError(t, err)

	names := map[string]bool{}
	for _, sub := range migrate.Commands() {
		names[sub.Name()] = true
	}
	assert.True(t, names["up"])
	assert.True(t, names["down"])
	assert.True(t, names["version"])
	assert.NotNil(t, migrate.PersistentFlags().Lookup("database-url"))
}

func TestMigrateRequiresDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Chdir(t.TempDir())

	cmd := newRootCommand()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"migrate", "up"})

	assert.ErrorContains(t, cmd.Execute(), "database URL required")
}

func TestMigrateOptionsURL(t *testing.T) {
	t.Chdir(t.TempDir())

	url, err := (&migrateOptions{databaseURL: "postgres://flag"}).url()
	require.NoError(t, err)
	assert.Equal(t, "postgres://flag", url)

	t.Setenv("DATABASE_URL", "postgres://env")
	url, err = (&migrateOptions{}).url()
	require.NoError(t, err)
	assert.Equal(t, "postgres://env", url)
}

func TestAdminCreateRequiresFlags(t *testing.T) {
	cmd := newRootCommand()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"admin", "create", "--email", "admin@example.com"})

	assert.ErrorContains(t, cmd.Execute(), `required flag(s) "password" not set`)
}
