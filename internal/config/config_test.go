package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:5001", cfg.ServerAddr)
	assert.Equal(t, DriverSQLite, cfg.StoreDriver)
	assert.Equal(t, 10, cfg.MailboxScanWindow)
	assert.Equal(t, 30*time.Second, cfg.MailboxDialTimeout)
	assert.Equal(t, time.Second, cfg.BroadcastMinInterval)
	assert.False(t, cfg.TLS())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("STORE_DRIVER", "postgres")
	t.Setenv("DATABASE_URL", "postgres://u:p@localhost/db")
	t.Setenv("MAILBOX_SCAN_WINDOW", "25")
	t.Setenv("TLS_CERT_FILE", "cert.pem")
	t.Setenv("TLS_KEY_FILE", "key.pem")
	t.Setenv("LOG_PRETTY", "true")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, DriverPostgres, cfg.StoreDriver)
	assert.Equal(t, 25, cfg.MailboxScanWindow)
	assert.True(t, cfg.TLS())
	assert.True(t, cfg.LogPretty)
}

func TestLoadRejectsInvalid(t *testing.T) {
	cases := map[string]map[string]string{
		"postgres without url": {"STORE_DRIVER": "postgres"},
		"unknown driver":       {"STORE_DRIVER": "mysql"},
		"half tls":             {"TLS_CERT_FILE": "cert.pem"},
		"zero window":          {"MAILBOX_SCAN_WINDOW": "0"},
		"bad duration":         {"SHUTDOWN_TIMEOUT": "soon"},
	}
	for name, vars := range cases {
		t.Run(name, func(t *testing.T) {
			for k, v := range vars {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
