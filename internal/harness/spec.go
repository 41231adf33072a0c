package harness

import (
	"fmt"
	"net"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/felixgeelhaar/soundcheck/internal/errors"
)

// LaunchSpec describes how to start a server process. It is a value
// type: Start copies it, so mutating a spec after Start has no effect
// on the running process.
type LaunchSpec struct {
	// Command is the argv to execute. Command[0] is the executable,
	// resolved through PATH.
	Command []string

	// Dir is the working directory for the process. Empty means the
	// current directory.
	Dir string

	// Env is overlaid onto the parent environment. Keys present here
	// replace inherited values of the same name.
	Env map[string]string

	// Host and Port name the address the server is expected to listen
	// on once ready. They are advisory for the harness itself and feed
	// the readiness probe target.
	Host string
	Port int
}

// Validate reports whether the spec is complete enough to launch.
func (s LaunchSpec) Validate() error {
	if len(s.Command) == 0 || s.Command[0] == "" {
		return errors.New(errors.ErrCodeLaunchBadSpec, "launch spec has no command")
	}
	if s.Port < 0 || s.Port > 65535 {
		return errors.New(errors.ErrCodeLaunchBadSpec, fmt.Sprintf("launch spec port %d out of range", s.Port))
	}
	return nil
}

// Addr returns the host:port the server is expected to listen on.
func (s LaunchSpec) Addr() string {
	host := s.Host
	if host == "" {
		host = "127.0.0.1"
	}
	return net.JoinHostPort(host, strconv.Itoa(s.Port))
}

// BaseURL returns the http URL of the server root.
func (s LaunchSpec) BaseURL() string {
	return "http://" + s.Addr()
}

// clone deep-copies the spec so the handle owns an immutable snapshot.
func (s LaunchSpec) clone() LaunchSpec {
	out := s
	out.Command = append([]string(nil), s.Command...)
	if s.Env != nil {
		out.Env = make(map[string]string, len(s.Env))
		for k, v := range s.Env {
			out.Env[k] = v
		}
	}
	return out
}

// environ merges the overlay onto the parent environment. Overlay keys
// win and are appended in sorted order so the result is deterministic.
func (s LaunchSpec) environ() []string {
	if len(s.Env) == 0 {
		return os.Environ()
	}

	keys := make([]string, 0, len(s.Env))
	for k := range s.Env {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	env := make([]string, 0, len(os.Environ())+len(keys))
	for _, kv := range os.Environ() {
		name, _, ok := strings.Cut(kv, "=")
		if ok {
			if _, shadowed := s.Env[name]; shadowed {
				continue
			}
		}
		env = append(env, kv)
	}
	for _, k := range keys {
		env = append(env, k+"="+s.Env[k])
	}
	return env
}
