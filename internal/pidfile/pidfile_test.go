package pidfile

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"

	ierrors "chrinstaller/internal/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPath(t *testing.T) {
	assert.Equal(t, "/tmp/chrinstaller.pid", Path("/tmp"))
}

func TestRead(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "chrinstaller.pid")

	t.Run("success", func(t *testing.T) {
		require.NoError(t, os.WriteFile(path, []byte("12345\n"), 0644))
		pid, err := Read(path)
		require.NoError(t, err)
		assert.Equal(t, 12345, pid)
	})
	t.Run("invalid content", func(t *testing.T) {
		require.NoError(t, os.WriteFile(path, []byte("not-a-pid"), 0644))
		_, err := Read(path)
		assert.ErrorContains(t, err, "invalid PID")
	})
	t.Run("missing", func(t *testing.T) {
		_, err := Read(filepath.Join(dir, "missing.pid"))
		assert.True(t, os.IsNotExist(err))
	})
}

func stubAlive(t *testing.T, alive bool) {
	orig := processAlive
	t.Cleanup(func() { processAlive = orig })
	processAlive = func(int) bool { return alive }
}

func TestAcquire(t *testing.T) {
	tests := []struct {
		name     string
		existing string
		alive    bool
		wantErr  bool
	}{
		{name: "no previous run"},
		{name: "stale pid", existing: "999999", alive: false},
		{name: "garbage", existing: "xyz", alive: true},
		{name: "live installer", existing: "4242", alive: true, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stubAlive(t, tt.alive)
			path := Path(t.TempDir())
			if tt.existing != "" {
				require.NoError(t, os.WriteFile(path, []byte(tt.existing), 0644))
			}

			release, err := Acquire(path)
			if tt.wantErr {
				require.Error(t, err)
				var e *ierrors.Error
				require.True(t, ierrors.As(err, &e))
				assert.Equal(t, "app.already_running", e.Key)
				assert.Equal(t, []any{4242}, e.Args)
				return
			}
			require.NoError(t, err)
			pid, err := Read(path)
			require.NoError(t, err)
			assert.Equal(t, os.Getpid(), pid)

			release()
			assert.NoFileExists(t, path)
		})
	}
}

func TestIsRunning_OwnPid(t *testing.T) {
	stubAlive(t, true)
	path := Path(t.TempDir())
	require.NoError(t, os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0644))

	running, err := IsRunning(path)
	require.NoError(t, err)
	assert.False(t, running)
}
