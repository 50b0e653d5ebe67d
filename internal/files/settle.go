package files

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/avast/retry-go/v4"
)

// ErrNotSettled is returned while a file is still growing or empty.
var ErrNotSettled = errors.New("file still being written")

// WaitStable blocks until path has a non-zero size that is unchanged across
// two consecutive checks delay apart, giving up after attempts comparisons.
// A missing file fails immediately.
func WaitStable(ctx context.Context, path string, attempts uint, delay time.Duration) (int64, error) {
	var last int64 = -1

	var size int64
	err := retry.Do(
		func() error {
			info, err := os.Stat(path)
			if err != nil {
				return retry.Unrecoverable(err)
			}
			if info.IsDir() {
				return retry.Unrecoverable(fmt.Errorf("%s is a directory", path))
			}
			size = info.Size()
			if size == 0 || size != last {
				last = size
				return ErrNotSettled
			}
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(attempts+1),
		retry.Delay(delay),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return 0, err
	}
	return size, nil
}
