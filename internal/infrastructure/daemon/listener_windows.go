//go:build windows

package daemon

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/Microsoft/go-winio"
	"golang.org/x/sys/windows"

	"github.com/gtechsd/ganesha-go/internal/domain"
	"github.com/gtechsd/ganesha-go/internal/ports"
)

// DefaultEndpoint is the well-known named pipe.
const DefaultEndpoint = `\\.\pipe\ganesha`

// baseSDDL grants full access to SYSTEM and Administrators only.
const baseSDDL = "D:P(A;;GA;;;SY)(A;;GA;;;BA)"

// Listen creates the named pipe. A pipe that answers a probe dial is never
// replaced.
func Listen(path, group string, logger ports.Logger) (net.Listener, error) {
	probe := 500 * time.Millisecond
	if conn, err := winio.DialPipe(path, &probe); err == nil {
		conn.Close()
		return nil, domain.ErrAlreadyRunning
	}

	sddl := baseSDDL
	if group != "" {
		sid, _, _, err := windows.LookupSID("", group)
		if err != nil {
			if logger != nil {
				logger.Warn("pipe group not applied", map[string]interface{}{"group": group, "error": err.Error()})
			}
		} else {
			sddl += fmt.Sprintf("(A;;GRGW;;;%s)", sid.String())
		}
	}
	return winio.ListenPipe(path, &winio.PipeConfig{SecurityDescriptor: sddl})
}

func dial(ctx context.Context, endpoint string) (net.Conn, error) {
	ctx, cancel := context.WithTimeout(ctx, domain.DialTimeout)
	defer cancel()
	return winio.DialPipeContext(ctx, endpoint)
}
