package main

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadKeyPairDefaults(t *testing.T) {
	for _, name := range []string{"TEMPBIN_ACCESS_KEY_ID", "TEMPBIN_SECRET_ACCESS_KEY"} {
		t.Setenv(name, "")
		require.NoError(t, os.Unsetenv(name))
	}

	keys, err := loadKeyPair()
	require.NoError(t, err)
	require.Equal(t, keyPair{AccessKeyID: "tempbin", SecretAccessKey: "tempbin-secret"}, keys)
}

func TestLoadKeyPairFromEnvironment(t *testing.T) {
	t.Setenv("TEMPBIN_ACCESS_KEY_ID", "AKID")
	t.Setenv("TEMPBIN_SECRET_ACCESS_KEY", "s3cr3t")

	keys, err := loadKeyPair()
	require.NoError(t, err)
	require.Equal(t, keyPair{AccessKeyID: "AKID", SecretAccessKey: "s3cr3t"}, keys)
}
