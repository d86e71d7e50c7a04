package infra

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/pointgate/internal/domain"
)

func TestFileCommandQueue_SubmitDrainOrder(t *testing.T) {
	q := NewFileCommandQueue(t.TempDir())
	base := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)

	require.NoError(t, q.Submit(domain.Command{Kind: domain.CommandUnblock, App: "steam", IssuedAt: base.Add(time.Second)}))
	require.NoError(t, q.Submit(domain.Command{Kind: domain.CommandBlock, App: "steam", Minutes: 5, IssuedAt: base}))
	require.NoError(t, q.Submit(domain.Command{Kind: domain.CommandChallenge, Response: "a\nb\nc", IssuedAt: base.Add(2 * time.Second)}))

	cmds, err := q.Drain()
	require.NoError(t, err)
	require.Len(t, cmds, 3)
	assert.Equal(t, domain.CommandBlock, cmds[0].Kind, "oldest first")
	assert.Equal(t, 5, cmds[0].Minutes)
	assert.Equal(t, domain.CommandUnblock, cmds[1].Kind)
	assert.Equal(t, "a\nb\nc", cmds[2].Response)

	again, err := q.Drain()
	require.NoError(t, err)
	assert.Empty(t, again, "drain removes files")
}

func TestFileCommandQueue_DrainMissingDir(t *testing.T) {
	cmds, err := NewFileCommandQueue(filepath.Join(t.TempDir(), "nope")).Drain()
	assert.NoError(t, err)
	assert.Empty(t, cmds)
}

func TestFileCommandQueue_DropsCorruptFiles(t *testing.T) {
	q := NewFileCommandQueue(t.TempDir())
	require.NoError(t, os.MkdirAll(q.Dir(), 0700))
	require.NoError(t, os.WriteFile(filepath.Join(q.Dir(), "0-bad.json"), []byte("{"), 0600))
	require.NoError(t, os.WriteFile(filepath.Join(q.Dir(), "partial.json.1.tmp"), []byte("{"), 0600))
	require.NoError(t, q.Submit(domain.Command{Kind: domain.CommandUnblock, App: "x"}))

	cmds, err := q.Drain()
	require.NoError(t, err)
	require.Len(t, cmds, 1)
	assert.Equal(t, "x", cmds[0].App)

	_, err = os.Stat(filepath.Join(q.Dir(), "0-bad.json"))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(q.Dir(), "partial.json.1.tmp"))
	assert.NoError(t, err, "in-flight temp files are left alone")
}

func TestFileCommandQueue_Watch(t *testing.T) {
	q := NewFileCommandQueue(t.TempDir())
	// Queued before the daemon starts
	require.NoError(t, q.Submit(domain.Command{Kind: domain.CommandBlock, App: "early"}))

	var mu sync.Mutex
	var seen []string
	handle := func(cmd domain.Command) {
		mu.Lock()
		seen = append(seen, cmd.App)
		mu.Unlock()
	}
	count := func() int {
		mu.Lock()
		defer mu.Unlock()
		return len(seen)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- q.Watch(ctx, handle, zap.NewNop()) }()

	assert.Eventually(t, func() bool { return count() == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, q.Submit(domain.Command{Kind: domain.CommandBlock, App: "late"}))
	assert.Eventually(t, func() bool { return count() == 2 }, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Watch did not stop")
	}

	mu.Lock()
	assert.Equal(t, []string{"early", "late"}, seen)
	mu.Unlock()
}

func TestJSONStateStore(t *testing.T) {
	dir := t.TempDir()
	s := NewJSONStateStore(dir)

	st, err := s.Load()
	require.NoError(t, err)
	assert.Nil(t, st)

	now := time.Now().Truncate(time.Second)
	require.NoError(t, s.Save(domain.DaemonState{
		PID:       1234,
		UpdatedAt: now,
		Blocked:   []domain.BlockStatus{{App: "steam", RemainingSeconds: 60}},
		Current:   &domain.Activity{App: "code", Category: domain.CategoryProductive},
	}))

	st, err = NewJSONStateStore(dir).Load()
	require.NoError(t, err)
	require.NotNil(t, st)
	assert.Equal(t, 1234, st.PID)
	assert.True(t, now.Equal(st.UpdatedAt))
	assert.Equal(t, "steam", st.Blocked[0].App)
	assert.Equal(t, "code", st.Current.App)

	require.NoError(t, s.Remove())
	require.NoError(t, s.Remove(), "removing twice is fine")
	st, err = s.Load()
	require.NoError(t, err)
	assert.Nil(t, st)
}
