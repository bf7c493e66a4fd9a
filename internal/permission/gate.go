// Package permission owns camera and media-library authorization state.
package permission

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"go-medreport-scanner/internal/logger"

	"github.com/sirupsen/logrus"
)

// State is the authorization state of one resource
type State string

const (
	Unknown State = "unknown"
	Granted State = "granted"
	Denied  State = "denied"
)

// Resource is a guarded device capability
type Resource string

const (
	Camera  Resource = "camera"
	Gallery Resource = "gallery"
)

// Prompter asks the platform (or the user) for access. It may block while a
// dialog is shown.
type Prompter interface {
	Prompt(ctx context.Context, resource Resource) (bool, error)
}

// Gate caches the answer per resource. Granted is sticky; a denied resource is
// prompted again on the next request.
type Gate struct {
	prompter Prompter
	mu       sync.Mutex
	states   map[Resource]State
}

// NewGate creates a gate with every resource in the Unknown state
func NewGate(prompter Prompter) *Gate {
	return &Gate{
		prompter: prompter,
		states: map[Resource]State{
			Camera:  Unknown,
			Gallery: Unknown,
		},
	}
}

// RequestCameraAccess resolves camera access
func (g *Gate) RequestCameraAccess(ctx context.Context) State {
	return g.request(ctx, Camera)
}

// RequestGalleryAccess resolves media-library access
func (g *Gate) RequestGalleryAccess(ctx context.Context) State {
	return g.request(ctx, Gallery)
}

// Current returns the cached state without prompting
func (g *Gate) Current(resource Resource) State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.states[resource]
}

// Revoke resets a resource to Denied, as when the user withdraws access in
// system settings.
func (g *Gate) Revoke(resource Resource) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.states[resource] = Denied
}

func (g *Gate) request(ctx context.Context, resource Resource) State {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.states[resource] == Granted {
		return Granted
	}

	ok, err := g.prompter.Prompt(ctx, resource)
	if err != nil {
		logger.WithError(err).WithField("resource", resource).Warn("Permission prompt failed, treating as denied")
		ok = false
	}

	state := Denied
	if ok {
		state = Granted
	}
	g.states[resource] = state

	logger.WithFields(logrus.Fields{
		"resource": resource,
		"state":    state,
	}).Debug("Permission resolved")
	return state
}

// Static answers every prompt with the same value
type Static bool

// Prompt implements Prompter
func (s Static) Prompt(ctx context.Context, resource Resource) (bool, error) {
	return bool(s), nil
}

// Terminal prompts on an interactive terminal. One goroutine owns In, so a
// prompt abandoned by its context leaves the next typed line to the next
// prompt.
type Terminal struct {
	In  io.Reader
	Out io.Writer

	once    sync.Once
	answers chan answer
}

type answer struct {
	line string
	err  error
}

func (t *Terminal) readLines() {
	reader := bufio.NewReader(t.In)
	for {
		line, err := reader.ReadString('\n')
		t.answers <- answer{line, err}
		if err != nil {
			close(t.answers)
			return
		}
	}
}

// Prompt implements Prompter
func (t *Terminal) Prompt(ctx context.Context, resource Resource) (bool, error) {
	t.once.Do(func() {
		t.answers = make(chan answer)
		go t.readLines()
	})

	fmt.Fprintf(t.Out, "Allow access to the %s? [y/N]: ", resource)

	select {
	case <-ctx.Done():
		return false, ctx.Err()
	case a, ok := <-t.answers:
		if !ok {
			// Input is closed
			return false, nil
		}
		if a.err != nil && a.err != io.EOF {
			return false, a.err
		}
		reply := strings.ToLower(strings.TrimSpace(a.line))
		return reply == "y" || reply == "yes", nil
	}
}
