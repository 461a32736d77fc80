package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 全局配置只加载一次，需要配置文件的命令集中在一个测试里
func TestUploadAndProvidersCommands(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(`
db_type: none
log_level: error
providers:
  - name: inline
    type: base64
`), 0o644))
	filePath := filepath.Join(dir, "hello.txt")
	require.NoError(t, os.WriteFile(filePath, []byte("hello"), 0o644))

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	defer rootCmd.SetOut(nil)
	defer rootCmd.SetErr(nil)

	rootCmd.SetArgs([]string{"upload", "--config", cfgPath, "--json", filePath})
	require.NoError(t, rootCmd.Execute())

	var lines []uploadLine
	require.NoError(t, json.Unmarshal(out.Bytes(), &lines))
	require.Len(t, lines, 1)
	assert.True(t, lines[0].Success)
	assert.Equal(t, "inline", lines[0].Provider)
	assert.EqualValues(t, 5, lines[0].Size)
	assert.Equal(t, "aGVsbG8=", lines[0].Data["base64"])

	out.Reset()
	rootCmd.SetArgs([]string{"providers", "--config", cfgPath})
	require.NoError(t, rootCmd.Execute())
	assert.Contains(t, out.String(), "Supported types: backblaze, base64")
	assert.Contains(t, out.String(), "* inline")
	assert.Contains(t, out.String(), "multi (strategy: first-success, providers: inline)")

	out.Reset()
	uploadJSON = false
	rootCmd.SetArgs([]string{"upload", "--config", cfgPath, filepath.Join(dir, "missing.txt")})
	err := rootCmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 1 uploads failed")
	assert.Contains(t, out.String(), "FAIL")
}

func TestTokenSecretCommand(t *testing.T) {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	defer rootCmd.SetOut(nil)

	rootCmd.SetArgs([]string{"token", "secret"})
	require.NoError(t, rootCmd.Execute())

	secret := bytes.TrimSpace(out.Bytes())
	assert.GreaterOrEqual(t, len(secret), 32)
}
