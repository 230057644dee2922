package util

import (
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapString(t *testing.T) {
	text := strings.Repeat("word ", 30)
	for _, line := range strings.Split(WrapString(text), "\n") {
		assert.LessOrEqual(t, len(line), Wrap)
	}
	assert.Equal(t, "short text", WrapString("  short   text "))
}

func TestTransportSelection(t *testing.T) {
	defer viper.Reset()

	for _, name := range []string{"tcp", "unix"} {
		viper.Set("transport", name)
		st, err := GetServerTransport()
		require.NoError(t, err)
		assert.Equal(t, name, st.GetName())

		_, err = GetClientTransport()
		assert.NoError(t, err)
	}

	viper.Set("transport", "http")
	_, err := GetServerTransport()
	assert.Error(t, err)
	_, err = GetClientTransport()
	assert.Error(t, err)
}

func TestClientFlags(t *testing.T) {
	defer viper.Reset()

	root := &cobra.Command{Use: "root"}
	root.PersistentFlags().String("transport", "tcp", "")
	cmd := &cobra.Command{Use: "child", Run: func(*cobra.Command, []string) {}}
	SetupClientFlags(cmd)
	root.AddCommand(cmd)

	require.NoError(t, cmd.ParseFlags([]string{"--endpoint", "/tmp/x.sock", "--timeout", "3"}))
	require.NoError(t, BindCommandFlags(cmd))

	config := GetClientConfig()
	assert.Equal(t, "/tmp/x.sock", config.Endpoint)
	assert.Equal(t, int64(3), config.TimeoutSecond)
	assert.Equal(t, "tcp", viper.GetString("transport"))
}
