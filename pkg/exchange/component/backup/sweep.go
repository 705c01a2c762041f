package backup

import (
	"context"
	"path"

	"github.com/hashicorp/go-multierror"

	"github.com/tigerroll/hrsync/pkg/exchange/adapter/storage"
	"github.com/tigerroll/hrsync/pkg/exchange/support/util/logger"
)

// SweepArchives deletes every published archive under bucket/prefix and returns how many
// were removed. Individual delete failures are collected and do not stop the sweep.
func SweepArchives(ctx context.Context, store storage.StorageExecutor, bucket, prefix string) (int, error) {
	var names []string
	err := store.ListObjects(ctx, bucket, path.Join(prefix, ArchivePrefix), func(objectName string) error {
		names = append(names, objectName)
		return nil
	})
	if err != nil {
		return 0, err
	}

	var result *multierror.Error
	removed := 0
	for _, name := range names {
		if err := store.DeleteObject(ctx, bucket, name); err != nil {
			result = multierror.Append(result, err)
			continue
		}
		removed++
	}
	if removed > 0 {
		logger.Infof("Swept %d leftover backup archive(s) from '%s'.", removed, bucket)
	}
	return removed, result.ErrorOrNil()
}
