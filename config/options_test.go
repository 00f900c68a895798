package config

import (
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultValidates(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestValidateRejectsNonPow2MemoryLimit(t *testing.T) {
	o := Default()
	o.MemoryLimit = 1000
	assert.Error(t, o.Validate())
}

func TestValidateRejectsMemoryLimitSmallerThanFourPages(t *testing.T) {
	o := Default()
	o.PageSize = 1 << 20
	o.MemoryLimit = 1 << 20
	assert.ErrorIs(t, o.Validate(), errTooFewPages)
}

func TestValidateRejectsNoListener(t *testing.T) {
	o := Default()
	o.TCPAddr = ""
	assert.ErrorIs(t, o.Validate(), errNoListener)
}

func TestValidateRejectsUnknownLogLevel(t *testing.T) {
	o := Default()
	o.LogLevel = "VERBOSE"
	assert.Error(t, o.Validate())
}

func TestValidateRejectsOversizedMemoryLimit(t *testing.T) {
	o := Default()
	o.MemoryLimit = 1 << 40
	assert.ErrorIs(t, o.Validate(), errExceedsUint32)
}

func TestBindFlagsOverridesDefaults(t *testing.T) {
	o := Default()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	o.BindFlags(fs)
	require.NoError(t, fs.Parse([]string{"--memory-limit=134217728", "--tcp-addr=:12345", "--metrics-addr=:9090"}))
	assert.EqualValues(t, 134217728, o.MemoryLimit)
	assert.Equal(t, ":12345", o.TCPAddr)
	assert.Equal(t, ":9090", o.MetricsAddr)
}
