package queue

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/pixperk/flockq/pkg/logger"
	"github.com/pixperk/flockq/pkg/storage"
	"github.com/pixperk/flockq/pkg/types"
)

const (
	DefaultPollFloor = time.Millisecond
	DefaultPollStep  = 20 * time.Millisecond
	DefaultPollMax   = time.Second
)

type Config struct {
	Dir      string //directory holding <name>.queue and <name>.log, defaults to $TMPDIR/flockq
	Name     string //queue name, 1:1 with its backing file
	HolderID string //contender id written into tickets, defaults to "<pid>-<random>"

	ActivityLog bool //append QUEUED/PASSED/TIMEOUT/REMOVED lines to <name>.log

	//rate limit, both or neither
	//the lock is held for at least PerPeriod/MaxExecutions after each turn
	MaxExecutions int
	PerPeriod     time.Duration

	//poll backoff: max(PollFloor, PollStep * distance to head), capped at PollMax
	PollFloor time.Duration
	PollStep  time.Duration
	PollMax   time.Duration

	//remove the ticket and serve the rate limit delay before Enter returns
	SyncRemoval bool

	Logger logger.Logger
}

// fills defaults and checks the configuration
func (c Config) withDefaults() (Config, error) {
	if err := storage.ValidateName(c.Name); err != nil {
		return c, err
	}
	if err := ValidateRateLimit(c.MaxExecutions, c.PerPeriod); err != nil {
		return c, err
	}

	if c.Dir == "" {
		c.Dir = filepath.Join(os.TempDir(), "flockq")
	}
	if c.HolderID == "" {
		c.HolderID = NewHolderID()
	}
	if c.PollFloor <= 0 {
		c.PollFloor = DefaultPollFloor
	}
	if c.PollStep <= 0 {
		c.PollStep = DefaultPollStep
	}
	if c.PollMax <= 0 {
		c.PollMax = DefaultPollMax
	}
	if c.PollMax < c.PollFloor {
		c.PollMax = c.PollFloor
	}
	if c.Logger == nil {
		c.Logger = logger.NewNop()
	}
	return c, nil
}

// both-or-neither rule for the rate limiter
func ValidateRateLimit(maxExecutions int, perPeriod time.Duration) error {
	if maxExecutions < 0 || perPeriod < 0 {
		return fmt.Errorf("%w: negative value", types.ErrInvalidRateLimit)
	}
	if (maxExecutions > 0) != (perPeriod > 0) {
		return fmt.Errorf("%w: got max executions %d, per period %s",
			types.ErrInvalidRateLimit, maxExecutions, perPeriod)
	}
	return nil
}

// minimum time the lock is kept after a turn, 0 when not rate limited
func (c Config) MinInterval() time.Duration {
	if c.MaxExecutions <= 0 || c.PerPeriod <= 0 {
		return 0
	}
	return c.PerPeriod / time.Duration(c.MaxExecutions)
}

// pid plus a random suffix so contenders inside one process stay distinct
func NewHolderID() string {
	return fmt.Sprintf("%d-%s", os.Getpid(), uuid.NewString()[:8])
}
