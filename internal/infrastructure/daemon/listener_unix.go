//go:build !windows

package daemon

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/user"
	"path/filepath"
	"strconv"
	"time"

	"github.com/gtechsd/ganesha-go/internal/domain"
	"github.com/gtechsd/ganesha-go/internal/ports"
)

// DefaultEndpoint is the well-known socket path.
const DefaultEndpoint = "/var/run/ganesha/privileged.sock"

const probeTimeout = 500 * time.Millisecond

// Listen binds the Unix socket at path. A live socket is never replaced; a
// stale one is removed first. The socket is restricted to owner and group.
func Listen(path, group string, logger ports.Logger) (net.Listener, error) {
	if err := os.MkdirAll(filepath.Dir(path), domain.DirectoryPermissions); err != nil {
		return nil, fmt.Errorf("create socket directory: %w", err)
	}
	if _, err := os.Lstat(path); err == nil {
		if conn, err := net.DialTimeout("unix", path, probeTimeout); err == nil {
			conn.Close()
			return nil, domain.ErrAlreadyRunning
		}
		if err := os.Remove(path); err != nil {
			return nil, fmt.Errorf("remove stale socket: %w", err)
		}
	}

	ln, err := net.Listen("unix", path)
	if err != nil {
		return nil, err
	}
	ln.(*net.UnixListener).SetUnlinkOnClose(true)

	if err := os.Chmod(path, domain.SocketPermissions); err != nil {
		ln.Close()
		return nil, fmt.Errorf("chmod socket: %w", err)
	}
	if group != "" {
		if err := chownGroup(path, group); err != nil && logger != nil {
			logger.Warn("socket group not applied", map[string]interface{}{"group": group, "error": err.Error()})
		}
	}
	return ln, nil
}

func chownGroup(path, group string) error {
	g, err := user.LookupGroup(group)
	if err != nil {
		return err
	}
	gid, err := strconv.Atoi(g.Gid)
	if err != nil {
		return err
	}
	return os.Chown(path, -1, gid)
}

func dial(ctx context.Context, endpoint string) (net.Conn, error) {
	d := net.Dialer{Timeout: domain.DialTimeout}
	return d.DialContext(ctx, "unix", endpoint)
}
