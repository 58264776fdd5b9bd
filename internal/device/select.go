package device

import (
	"fmt"

	"github.com/haskel/pstated/internal/domain"
)

// Select marks which of count devices are managed. A nil ids list manages
// every device. Ids outside 0..count-1 are returned in invalid and skipped.
// An empty result is an error.
func Select(count int, ids []int) (managed []bool, invalid []int, err error) {
	managed = make([]bool, count)

	if ids == nil {
		for i := range managed {
			managed[i] = true
		}
	} else {
		for _, id := range ids {
			if id < 0 || id >= count {
				invalid = append(invalid, id)
				continue
			}
			managed[id] = true
		}
	}

	for _, m := range managed {
		if m {
			return managed, invalid, nil
		}
	}
	return nil, invalid, fmt.Errorf("%w: %d devices present, ids %v", domain.ErrNoManagedDevices, count, ids)
}

// InvalidIndexError describes one id that Select skipped.
func InvalidIndexError(id, count int) error {
	return fmt.Errorf("%w: %d (devices 0..%d)", domain.ErrInvalidManagedIndex, id, count-1)
}
