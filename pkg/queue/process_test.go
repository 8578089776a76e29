package queue

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

const (
	helperEnv    = "FLOCKQ_HELPER_CONTENDER"
	helperDirEnv = "FLOCKQ_HELPER_DIR"
	helperOutEnv = "FLOCKQ_HELPER_OUT"
)

// not a real test: the body of one contender process
func TestHelperContender(t *testing.T) {
	if os.Getenv(helperEnv) != "1" {
		t.Skip("helper process")
	}

	q, err := New(Config{
		Dir:       os.Getenv(helperDirEnv),
		Name:      testQueue,
		PollFloor: time.Millisecond,
		PollStep:  2 * time.Millisecond,
		PollMax:   10 * time.Millisecond,
	})
	require.NoError(t, err)

	out, err := os.OpenFile(os.Getenv(helperOutEnv), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	require.NoError(t, err)
	defer out.Close()

	passed, err := q.Enter(context.Background(), 0, func() error {
		if _, err := fmt.Fprintf(out, "start %d\n", os.Getpid()); err != nil {
			return err
		}
		time.Sleep(5 * time.Millisecond)
		_, err := fmt.Fprintf(out, "end %d\n", os.Getpid())
		return err
	})
	require.NoError(t, err)
	require.True(t, passed)
	require.NoError(t, q.Close())
}

// contenders in separate processes never overlap in the critical section
func TestCrossProcessMutualExclusion(t *testing.T) {
	if testing.Short() {
		t.Skip("spawns processes")
	}

	dir := t.TempDir()
	outPath := dir + "/out.txt"

	const processes = 4
	var g errgroup.Group
	for i := 0; i < processes; i++ {
		g.Go(func() error {
			cmd := exec.Command(os.Args[0], "-test.run=^TestHelperContender$")
			cmd.Env = append(os.Environ(),
				helperEnv+"=1",
				helperDirEnv+"="+dir,
				helperOutEnv+"="+outPath,
			)
			if out, err := cmd.CombinedOutput(); err != nil {
				return fmt.Errorf("contender failed: %w\n%s", err, out)
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	data, err := os.ReadFile(outPath)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2*processes)

	for i := 0; i < len(lines); i += 2 {
		start := strings.TrimPrefix(lines[i], "start ")
		end := strings.TrimPrefix(lines[i+1], "end ")
		assert.True(t, strings.HasPrefix(lines[i], "start "), lines[i])
		assert.Equal(t, start, end, "critical sections interleaved")
	}

	assert.Empty(t, lockedTickets(t, dir))
}
