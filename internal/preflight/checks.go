package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/exec"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"dreary/internal/atproto"
	"dreary/internal/config"
)

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckAccount resolves the configured handle to a DID and PDS endpoint. The
// endpoint is returned for follow-up checks and is empty on failure.
func CheckAccount(ctx context.Context, cfg *config.Config) (Result, string) {
	const name = "Account"

	checkCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	resolver := atproto.NewResolverFromConfig(cfg, nil)
	did, err := resolver.ResolveHandle(checkCtx, cfg.Account.Handle)
	if err != nil {
		return Result{Name: name, Detail: summarizeNetError(err)}, ""
	}
	host := cfg.Account.Service
	if host == "" {
		host, err = resolver.ResolveService(checkCtx, did)
		if err != nil {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: %s)", did, summarizeNetError(err))}, ""
		}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s -> %s", cfg.Account.Handle, did)}, host
}

// CheckPDS verifies that the PDS answers describeServer.
func CheckPDS(ctx context.Context, host string) Result {
	const name = "PDS"

	base := strings.TrimRight(strings.TrimSpace(host), "/")
	if base == "" {
		return Result{Name: name, Detail: "missing url"}
	}

	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	client := &http.Client{Timeout: 5 * time.Second}
	req, err := http.NewRequestWithContext(checkCtx, http.MethodGet, base+"/xrpc/com.atproto.server.describeServer", nil)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("reachability check failed (%v)", err)}
	}
	resp, err := client.Do(req)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s unreachable (%s)", base, summarizeNetError(err))}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Result{Name: name, Detail: fmt.Sprintf("%s returned %d", base, resp.StatusCode)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (reachable)", base)}
}

// CheckBinary reports whether an external command is on PATH.
func CheckBinary(name, command, description string, optional bool) Result {
	cmd := strings.TrimSpace(command)
	if cmd == "" {
		return Result{Name: name, Optional: optional, Detail: "command not configured"}
	}
	path, err := exec.LookPath(cmd)
	if err != nil {
		return Result{Name: name, Optional: optional, Detail: fmt.Sprintf("binary %q not found (%s)", cmd, description)}
	}
	return Result{Name: name, Passed: true, Optional: optional, Detail: path}
}

// CheckSpotify reports whether Spotify client credentials are configured.
func CheckSpotify(cfg *config.Config) Result {
	if err := cfg.RequireSpotify(); err != nil {
		return Result{Name: "Spotify", Optional: true, Detail: "client credentials not configured"}
	}
	return Result{Name: "Spotify", Passed: true, Optional: true, Detail: "client credentials configured"}
}

func summarizeNetError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "timed out"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "timed out"
	}
	return err.Error()
}
