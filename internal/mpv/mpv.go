package mpv

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"m3uplay/internal/engine"
)

const (
	defaultBinary = "mpv"
	dialInterval  = 50 * time.Millisecond
	dialTimeout   = 5 * time.Second
	exitTimeout   = 3 * time.Second
)

// Instance holds the startup options shared by every player it spawns and
// the private directory their IPC sockets live in.
type Instance struct {
	binary string
	opts   engine.Options
	dir    string
	log    *zap.Logger
}

var _ engine.Instance = (*Instance)(nil)

// NewInstance fails when the mpv binary cannot be found; callers treat that
// as a fatal engine initialisation error.
func NewInstance(opts engine.Options, log *zap.Logger) (*Instance, error) {
	bin := opts.Binary
	if bin == "" {
		bin = defaultBinary
	}
	path, err := exec.LookPath(bin)
	if err != nil {
		return nil, fmt.Errorf("mpv not found: %w", err)
	}
	dir, err := os.MkdirTemp("", "m3uplay-mpv-")
	if err != nil {
		return nil, fmt.Errorf("failed to create mpv socket dir: %w", err)
	}
	log.Info("mpv instance ready", zap.String("binary", path), zap.String("socketDir", dir))
	return &Instance{binary: path, opts: opts, dir: dir, log: log}, nil
}

// Args returns the command line for a player listening on socket.
func (i *Instance) Args(socket string) []string {
	args := []string{
		"--idle=yes",
		"--no-terminal",
		"--really-quiet",
		"--input-ipc-server=" + socket,
	}
	if !i.opts.TitleOverlay {
		args = append(args, "--osd-level=0")
	}
	if i.opts.NetworkCaching > 0 {
		secs := strconv.FormatFloat(i.opts.NetworkCaching.Seconds(), 'f', 3, 64)
		args = append(args, "--cache=yes", "--cache-secs="+secs, "--demuxer-readahead-secs="+secs)
	}
	if i.opts.WindowID != 0 {
		args = append(args, "--wid="+strconv.FormatInt(i.opts.WindowID, 10))
	}
	return append(args, i.opts.ExtraArgs...)
}

func (i *Instance) NewPlayer(ctx context.Context) (engine.Player, error) {
	socket := filepath.Join(i.dir, uuid.NewString()+".sock")
	cmd, err := Start(i.binary, i.Args(socket))
	if err != nil {
		return nil, err
	}
	waitCh := make(chan error, 1)
	go func() { waitCh <- cmd.Wait() }()

	conn, err := dial(ctx, socket, waitCh)
	if err != nil {
		_ = KillCmd(cmd)
		return nil, err
	}

	p := newPlayer(conn, i.log)
	p.cmd = cmd
	p.waitCh = waitCh
	p.socket = socket
	if err := p.observe(); err != nil {
		_ = p.Release()
		return nil, err
	}
	i.log.Info("mpv player started", zap.Int("pid", cmd.Process.Pid))
	return p, nil
}

func (i *Instance) Release() error {
	return os.RemoveAll(i.dir)
}

func dial(ctx context.Context, socket string, exited <-chan error) (net.Conn, error) {
	ctx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()

	ticker := time.NewTicker(dialInterval)
	defer ticker.Stop()
	for {
		conn, err := net.Dial("unix", socket)
		if err == nil {
			return conn, nil
		}
		select {
		case werr := <-exited:
			if werr == nil {
				werr = errors.New("exited with status 0")
			}
			return nil, fmt.Errorf("mpv exited before accepting IPC connections: %w", werr)
		case <-ctx.Done():
			return nil, fmt.Errorf("timeout waiting for mpv IPC socket: %w", ctx.Err())
		case <-ticker.C:
		}
	}
}

// Start spawns mpv and returns the started *exec.Cmd. Caller may kill or Wait on it.
func Start(binary string, args []string) (*exec.Cmd, error) {
	cmd := exec.Command(binary, args...)
	// mpv must not write into the terminal the TUI is drawing on
	cmd.Stdout = nil
	cmd.Stderr = nil
	cmd.Stdin = nil
	// ensure mpv does not remain in process group if we kill
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start mpv: %w", err)
	}
	return cmd, nil
}

// KillCmd attempts to kill the mpv process (and its process group) started by Start
func KillCmd(cmd *exec.Cmd) error {
	if cmd == nil || cmd.Process == nil {
		return nil
	}
	pgid, err := syscall.Getpgid(cmd.Process.Pid)
	if err == nil {
		_ = syscall.Kill(-pgid, syscall.SIGTERM)
	}
	// fallback kill
	return cmd.Process.Kill()
}
