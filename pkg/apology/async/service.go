package async

import (
	"context"
	"time"
)

// Service is a background worker hosted by the stake server, such as the
// apology indexer. Start blocks, doing a unit of work every interval, until
// ctx is cancelled or the service fails.
type Service interface {
	Start(ctx context.Context, interval time.Duration) error
}
