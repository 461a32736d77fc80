package app

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aevrHQ/ui/config"
	"github.com/aevrHQ/ui/database/repo/uploads"
	"github.com/aevrHQ/ui/storage"
)

func testConfig(t *testing.T) *config.Config {
	cfg := config.Default()
	cfg.DBFilePath = filepath.Join(t.TempDir(), "history.db")
	cfg.Providers = []storage.ProviderConfig{
		{Name: "inline", Type: storage.TypeBase64},
	}
	return cfg
}

func TestContainer_Init(t *testing.T) {
	logger, _ := test.NewNullLogger()
	c := NewContainer(testConfig(t), logger)
	require.NoError(t, c.Init())
	defer c.Close()

	deps := c.RouterDependencies()
	assert.NotNil(t, deps.Registry)
	assert.NotNil(t, deps.Queue)
	assert.NotNil(t, deps.DB)
	assert.NotNil(t, deps.History)
	assert.NotNil(t, deps.Metrics)
	assert.NotNil(t, deps.Gatherer)
	assert.Nil(t, deps.JWT)
	assert.Equal(t, 3, c.Queue().Limit())
	assert.Equal(t, []string{"inline"}, c.Registry().Names())
}

func TestContainer_UploadIsRecorded(t *testing.T) {
	logger, _ := test.NewNullLogger()
	c := NewContainer(testConfig(t), logger)
	require.NoError(t, c.Init())
	defer c.Close()

	provider, err := c.Registry().Get("")
	require.NoError(t, err)

	result, err := c.Queue().Upload(context.Background(), storage.NewFile("a.txt", "text/plain", []byte("abc")), provider, nil)
	require.NoError(t, err)
	require.True(t, result.Success)

	records, total, err := c.History().List(context.Background(), uploads.ListFilter{}, 1, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	assert.Equal(t, "inline", records[0].Provider)
	assert.Equal(t, "a.txt", records[0].FileName)
	assert.True(t, records[0].Success)
}

func TestContainer_HistoryDisabled(t *testing.T) {
	logger, _ := test.NewNullLogger()
	cfg := testConfig(t)
	cfg.DBType = "none"

	c := NewContainer(cfg, logger)
	require.NoError(t, c.Init())
	defer c.Close()

	assert.Nil(t, c.History())
	assert.Nil(t, c.RouterDependencies().DB)
}

func TestContainer_AuthEnabled(t *testing.T) {
	logger, _ := test.NewNullLogger()
	cfg := testConfig(t)
	cfg.DBType = "none"
	cfg.AuthEnabled = true
	cfg.AuthJWTSecret = "short"

	c := NewContainer(cfg, logger)
	err := c.Init()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "auth")
	_ = c.Close()
}

func TestContainer_InitUploads(t *testing.T) {
	logger, _ := test.NewNullLogger()
	cfg := testConfig(t)
	cfg.MultiStrategy = "bogus"

	c := NewContainer(cfg, logger)
	require.Error(t, c.InitUploads())
	_ = c.Close()

	cfg.MultiStrategy = "all"
	c = NewContainer(cfg, logger)
	require.NoError(t, c.InitUploads())
	defer c.Close()
	assert.Nil(t, c.History())
	assert.NotNil(t, c.Registry().Multi())
}
