package local_test

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	storageAdapter "github.com/tigerroll/hrsync/pkg/exchange/adapter/storage"
	storageConfig "github.com/tigerroll/hrsync/pkg/exchange/adapter/storage/config"
	"github.com/tigerroll/hrsync/pkg/exchange/adapter/storage/local"
	coreConfig "github.com/tigerroll/hrsync/pkg/exchange/core/config"
)

func newAdapter(t *testing.T) (storageAdapter.StorageConnection, string) {
	dir := t.TempDir()
	conn, err := local.NewLocalAdapter(storageConfig.StorageConfig{Type: "local", BaseDir: dir, BucketName: "hr"}, "artifacts")
	require.NoError(t, err)
	return conn, dir
}

func listAll(t *testing.T, conn storageAdapter.StorageConnection, bucket, prefix string) []string {
	var names []string
	require.NoError(t, conn.ListObjects(context.Background(), bucket, prefix, func(name string) error {
		names = append(names, name)
		return nil
	}))
	sort.Strings(names)
	return names
}

func TestLocalAdapter_RoundTrip(t *testing.T) {
	conn, dir := newAdapter(t)
	ctx := context.Background()

	require.NoError(t, conn.Upload(ctx, "", "backup_all_20240101000000.zip", bytes.NewBufferString("zipdata"), "application/zip"))
	assert.FileExists(t, filepath.Join(dir, "hr", "backup_all_20240101000000.zip"))

	r, err := conn.Download(ctx, "hr", "backup_all_20240101000000.zip")
	require.NoError(t, err)
	data, err := io.ReadAll(r)
	require.NoError(t, err)
	require.NoError(t, r.Close())
	assert.Equal(t, "zipdata", string(data))

	entries, err := os.ReadDir(filepath.Join(dir, "hr"))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no .part file is left behind")
}

func TestLocalAdapter_ListAndDelete(t *testing.T) {
	conn, dir := newAdapter(t)
	ctx := context.Background()

	for _, name := range []string{"backup_a.zip", "backup_b.zip", "nested/backup_c.zip", "other.txt"} {
		require.NoError(t, conn.Upload(ctx, "", name, bytes.NewBufferString(name), ""))
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "hr", "backup_d.zip.x.part"), []byte("partial"), 0o644))

	assert.Equal(t, []string{"backup_a.zip", "backup_b.zip"}, listAll(t, conn, "", "backup_"))
	assert.Equal(t, []string{"nested/backup_c.zip"}, listAll(t, conn, "", "nested/"))
	assert.Empty(t, listAll(t, conn, "missing-bucket", ""))

	require.NoError(t, conn.DeleteObject(ctx, "", "backup_a.zip"))
	require.NoError(t, conn.DeleteObject(ctx, "", "backup_a.zip"), "deleting a missing object is not an error")
	assert.Equal(t, []string{"backup_b.zip"}, listAll(t, conn, "", "backup_"))
}

func TestLocalAdapter_RejectsEscapingPaths(t *testing.T) {
	conn, _ := newAdapter(t)
	err := conn.Upload(context.Background(), "", "../../escape.zip", bytes.NewBufferString("x"), "")
	assert.ErrorContains(t, err, "outside of BaseDir")
}

func TestLocalAdapter_CancelledUploadLeavesNothing(t *testing.T) {
	conn, dir := newAdapter(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := conn.Upload(ctx, "", "backup.zip", bytes.NewBufferString("data"), "")
	require.Error(t, err)
	entries, _ := os.ReadDir(filepath.Join(dir, "hr"))
	assert.Empty(t, entries)
}

func TestNewLocalAdapter_Errors(t *testing.T) {
	_, err := local.NewLocalAdapter(storageConfig.StorageConfig{}, "x")
	assert.Error(t, err)

	file := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(file, nil, 0o644))
	_, err = local.NewLocalAdapter(storageConfig.StorageConfig{BaseDir: file}, "x")
	assert.ErrorContains(t, err, "not a directory")
}

func TestLocalProvider_AndResolver(t *testing.T) {
	cfg := coreConfig.NewConfig()
	cfg.HRSync.StorageConfigs = map[string]interface{}{
		"artifacts": map[string]interface{}{"type": "local", "base_dir": t.TempDir()},
		"cloud":     map[string]interface{}{"type": "gcs", "bucket_name": "b"},
	}
	provider := local.NewLocalProvider(cfg)

	first, err := provider.GetConnection("artifacts")
	require.NoError(t, err)
	second, err := provider.GetConnection("artifacts")
	require.NoError(t, err)
	assert.Same(t, first, second)

	_, err = provider.GetConnection("cloud")
	assert.ErrorContains(t, err, "type mismatch")

	reconnected, err := provider.ForceReconnect("artifacts")
	require.NoError(t, err)
	assert.Equal(t, "artifacts", reconnected.Name())
	assert.NoError(t, provider.CloseAll())

	resolver := storageAdapter.NewConnectionResolver(storageAdapter.ResolverParams{
		Providers: []storageAdapter.StorageProvider{provider},
		Cfg:       cfg,
	})
	conn, err := resolver.ResolveStorageConnection(context.Background(), "artifacts")
	require.NoError(t, err)
	assert.Equal(t, local.ProviderType, conn.Type())

	_, err = resolver.ResolveStorageConnection(context.Background(), "cloud")
	assert.ErrorContains(t, err, "no storage provider found for type 'gcs'")
	_, err = resolver.ResolveStorageConnection(context.Background(), "nope")
	assert.Error(t, err)
}
