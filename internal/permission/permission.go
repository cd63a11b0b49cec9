// Package permission gates the application on the camera and microphone
// grants it needs before any capture starts.
//
// Grants live in a Registry for the lifetime of the process and are never
// persisted, so every launch checks them again. A Gate asks a Prompter for
// the missing grants at most once per missing set and reports the outcome
// through an asynchronous callback.
package permission

import (
	"context"
	"errors"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
)

// Capability is a device capability that needs a user grant.
type Capability string

const (
	Camera     Capability = "camera"
	Microphone Capability = "microphone"
)

// Required lists the capabilities the application cannot run without.
var Required = []Capability{Camera, Microphone}

// ErrPermissionDenied is returned when the user refuses a required grant.
var ErrPermissionDenied = errors.New("permissions not granted by the user")

// Registry records which capabilities are granted.
type Registry interface {
	Granted(c Capability) bool
	Grant(c Capability)
	Revoke(c Capability)
}

// DeviceProbe reports whether the device behind a capability is present.
// A capability whose device is absent is never considered granted.
type DeviceProbe func(c Capability) bool

// StatProbe returns a DeviceProbe that stats the configured device path for
// each capability. Capabilities without a path are assumed present.
func StatProbe(paths map[Capability]string) DeviceProbe {
	return func(c Capability) bool {
		p, ok := paths[c]
		if !ok || p == "" {
			return true
		}
		_, err := os.Stat(p)
		return err == nil
	}
}

// SessionRegistry is an in-memory Registry. It is safe for concurrent use.
type SessionRegistry struct {
	mu     sync.RWMutex
	grants map[Capability]bool
	probe  DeviceProbe
}

// NewSessionRegistry creates a registry with the given capabilities already
// granted. probe may be nil.
func NewSessionRegistry(probe DeviceProbe, granted ...Capability) *SessionRegistry {
	r := &SessionRegistry{
		grants: make(map[Capability]bool),
		probe:  probe,
	}
	for _, c := range granted {
		r.grants[c] = true
	}
	return r
}

func (r *SessionRegistry) Granted(c Capability) bool {
	r.mu.RLock()
	ok := r.grants[c]
	r.mu.RUnlock()
	if !ok {
		return false
	}
	return r.probe == nil || r.probe(c)
}

func (r *SessionRegistry) Grant(c Capability) {
	r.mu.Lock()
	r.grants[c] = true
	r.mu.Unlock()
}

func (r *SessionRegistry) Revoke(c Capability) {
	r.mu.Lock()
	delete(r.grants, c)
	r.mu.Unlock()
}

// Prompter asks the user for the missing capabilities and returns the
// user's answer per capability.
type Prompter interface {
	Prompt(ctx context.Context, missing []Capability) (map[Capability]bool, error)
}

// Gate checks and requests the required capabilities.
type Gate struct {
	registry Registry
	prompter Prompter
	required []Capability
	log      *log.Logger

	mu       sync.Mutex
	prompted map[string]bool
}

// NewGate creates a gate over the Required capabilities.
func NewGate(registry Registry, prompter Prompter, logger *log.Logger) *Gate {
	return &Gate{
		registry: registry,
		prompter: prompter,
		required: Required,
		log:      logger.WithPrefix("permission"),
		prompted: make(map[string]bool),
	}
}

// Registry returns the registry the gate checks against.
func (g *Gate) Registry() Registry {
	return g.registry
}

// AllGranted reports whether every required capability is granted.
func (g *Gate) AllGranted() bool {
	return len(g.Missing()) == 0
}

// Missing returns the required capabilities that are not granted.
func (g *Gate) Missing() []Capability {
	var missing []Capability
	for _, c := range g.required {
		if !g.registry.Granted(c) {
			missing = append(missing, c)
		}
	}
	return missing
}

// RequestIfNeeded prompts for the missing capabilities on a new goroutine
// and calls onResult with whether everything is granted afterwards.
//
// A given missing set is prompted for only once; asking again for the same
// set reports the current state without prompting. When nothing is missing
// onResult is called synchronously with true.
func (g *Gate) RequestIfNeeded(ctx context.Context, onResult func(granted bool)) {
	missing := g.Missing()
	if len(missing) == 0 {
		onResult(true)
		return
	}

	key := setKey(missing)
	g.mu.Lock()
	already := g.prompted[key]
	g.prompted[key] = true
	g.mu.Unlock()

	go func() {
		if already {
			g.log.Debug("Missing set already prompted", "missing", key)
			onResult(g.AllGranted())
			return
		}

		answers, err := g.prompter.Prompt(ctx, missing)
		if err != nil {
			g.log.Error("Permission prompt failed", "err", err)
		}
		for _, c := range missing {
			if answers[c] {
				g.registry.Grant(c)
			}
		}
		granted := g.AllGranted()
		g.log.Info("Permission result", "missing", key, "granted", granted)
		onResult(granted)
	}()
}

func setKey(caps []Capability) string {
	names := make([]string, len(caps))
	for i, c := range caps {
		names[i] = string(c)
	}
	sort.Strings(names)
	return strings.Join(names, ",")
}
