package sound

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rereminder/internal/platform"
	"rereminder/internal/platform/platformtest"
)

func TestPlayDefaultTone(t *testing.T) {
	runner := platformtest.NewRunner()
	p := NewPlayer(runner, nil, "", nil)

	require.NoError(t, p.Play(context.Background(), ""))
	p.Wait()

	calls := runner.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "paplay", calls[0].Name)
	assert.Equal(t, []string{DefaultTone}, calls[0].Args)
	assert.False(t, p.IsPlaying())
}

func TestPlayStripsFileScheme(t *testing.T) {
	runner := platformtest.NewRunner()
	p := NewPlayer(runner, TermuxCommand, "/tones/default.ogg", nil)

	require.NoError(t, p.Play(context.Background(), "file:///sdcard/chime.ogg"))
	p.Wait()

	calls := runner.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, []string{"play", "/sdcard/chime.ogg"}, calls[0].Args)
}

func TestPlayStopsPreviousPlayback(t *testing.T) {
	runner := platformtest.NewRunner()
	runner.AutoExit = false
	p := NewPlayer(runner, nil, "/tones/default.ogg", nil)

	require.NoError(t, p.Play(context.Background(), "/tones/a.ogg"))
	assert.True(t, p.IsPlaying())
	require.NoError(t, p.Play(context.Background(), "/tones/b.ogg"))

	procs := runner.Processes()
	require.Len(t, procs, 2)
	assert.True(t, procs[0].Killed())
	assert.False(t, procs[1].Killed())
	assert.True(t, p.IsPlaying())

	p.Stop()
	assert.True(t, procs[1].Killed())
	assert.False(t, p.IsPlaying())
	p.Wait()

	// Killed playbacks never trigger the fallback.
	assert.Len(t, runner.Calls(), 2)
}

func TestFallbackWhenStartFails(t *testing.T) {
	runner := platformtest.NewRunner()
	failing := &firstCallFails{
		Runner: runner,
		err:    &platform.CommandError{Name: "player", Kind: platform.ErrResourceUnavailable, Err: errors.New("no such file")},
	}
	p := NewPlayer(failing, platform.Command{"player", "{file}"}, "/tones/default.ogg", nil)

	require.NoError(t, p.Play(context.Background(), "/tones/missing.ogg"))
	p.Wait()

	calls := runner.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, []string{"/tones/default.ogg"}, calls[0].Args)
}

func TestNoFallbackForDefaultTone(t *testing.T) {
	runner := platformtest.NewRunner()
	runner.StartErr["paplay"] = &platform.CommandError{Name: "paplay", Kind: platform.ErrResourceUnavailable, Err: errors.New("not found")}
	p := NewPlayer(runner, nil, "", nil)

	err := p.Play(context.Background(), "")
	assert.ErrorIs(t, err, platform.ErrResourceUnavailable)
	assert.Len(t, runner.Calls(), 1)
}

func TestFallbackWhenPlaybackFails(t *testing.T) {
	runner := platformtest.NewRunner()
	runner.AutoExit = false
	p := NewPlayer(runner, nil, "/tones/default.ogg", nil)

	require.NoError(t, p.Play(context.Background(), "/tones/corrupt.ogg"))
	runner.Processes()[0].Finish(errors.New("exit status 1"))

	assert.Eventually(t, func() bool { return len(runner.Calls()) == 2 }, time.Second, 5*time.Millisecond)
	calls := runner.Calls()
	assert.Equal(t, []string{"/tones/default.ogg"}, calls[1].Args)

	// A failing default tone does not loop.
	runner.Processes()[1].Finish(errors.New("exit status 1"))
	p.Wait()
	assert.Len(t, runner.Calls(), 2)
	assert.False(t, p.IsPlaying())
}

// firstCallFails fails the first Start and delegates afterwards.
type firstCallFails struct {
	*platformtest.Runner
	err    error
	failed bool
}

func (f *firstCallFails) Start(ctx context.Context, name string, args ...string) (platform.Process, error) {
	if !f.failed {
		f.failed = true
		return nil, f.err
	}
	return f.Runner.Start(ctx, name, args...)
}
