package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCmd_Subcommands(t *testing.T) {
	root := newRootCmd()

	for _, path := range [][]string{
		{"migrate"},
		{"admin", "create"},
		{"campaign", "send"},
		{"outbox", "cleanup"},
		{"sessions", "purge"},
	} {
		cmd, _, err := root.Find(path)
		require.NoError(t, err, path)
		assert.Equal(t, path[len(path)-1], cmd.Name())
	}
}

func TestCampaignSend_RequiresID(t *testing.T) {
	root := newRootCmd()
	root.SetArgs([]string{"campaign", "send"})
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})

	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 1 arg")
}

func TestAdminCreate_RequiresPassword(t *testing.T) {
	t.Setenv(adminPasswordEnv, "")
	root := newRootCmd()
	root.SetArgs([]string{"admin", "create", "--email", "rina@dapursambal.id", "--name", "Rina"})
	root.SetOut(&bytes.Buffer{})

	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "password is required")
}

func TestOutboxCleanup_RejectsNonPositiveAge(t *testing.T) {
	root := newRootCmd()
	root.SetArgs([]string{"outbox", "cleanup", "--older-than", "0s"})

	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--older-than")
}
