package permission

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"
)

type scriptedPrompter struct {
	answers []bool
	err     error
	calls   int
}

func (p *scriptedPrompter) Prompt(ctx context.Context, resource Resource) (bool, error) {
	p.calls++
	if p.err != nil {
		return false, p.err
	}
	if len(p.answers) == 0 {
		return false, nil
	}
	a := p.answers[0]
	p.answers = p.answers[1:]
	return a, nil
}

func TestGate_InitialStateUnknown(t *testing.T) {
	gate := NewGate(Static(true))
	if got := gate.Current(Camera); got != Unknown {
		t.Errorf("Expected Unknown before first request, got %s", got)
	}
}

func TestGate_GrantedIsSticky(t *testing.T) {
	p := &scriptedPrompter{answers: []bool{true}}
	gate := NewGate(p)

	for i := 0; i < 3; i++ {
		if got := gate.RequestCameraAccess(context.Background()); got != Granted {
			t.Fatalf("Request %d: expected Granted, got %s", i, got)
		}
	}
	if p.calls != 1 {
		t.Errorf("Expected a single prompt, got %d", p.calls)
	}
}

func TestGate_DeniedRepromptsOncePerCall(t *testing.T) {
	p := &scriptedPrompter{answers: []bool{false, true}}
	gate := NewGate(p)

	if got := gate.RequestCameraAccess(context.Background()); got != Denied {
		t.Fatalf("Expected Denied, got %s", got)
	}
	if got := gate.RequestCameraAccess(context.Background()); got != Granted {
		t.Fatalf("Expected Granted after re-prompt, got %s", got)
	}
	if p.calls != 2 {
		t.Errorf("Expected 2 prompts, got %d", p.calls)
	}
}

func TestGate_PromptErrorIsDenied(t *testing.T) {
	gate := NewGate(&scriptedPrompter{err: errors.New("dialog crashed")})
	if got := gate.RequestGalleryAccess(context.Background()); got != Denied {
		t.Errorf("Expected Denied on prompt error, got %s", got)
	}
}

func TestGate_ResourcesAreIndependent(t *testing.T) {
	p := &scriptedPrompter{answers: []bool{true, false}}
	gate := NewGate(p)

	if got := gate.RequestCameraAccess(context.Background()); got != Granted {
		t.Fatalf("Expected camera Granted, got %s", got)
	}
	if got := gate.RequestGalleryAccess(context.Background()); got != Denied {
		t.Fatalf("Expected gallery Denied, got %s", got)
	}
	if got := gate.Current(Camera); got != Granted {
		t.Errorf("Camera state changed to %s", got)
	}
}

func TestGate_Revoke(t *testing.T) {
	p := &scriptedPrompter{answers: []bool{true, false}}
	gate := NewGate(p)

	gate.RequestCameraAccess(context.Background())
	gate.Revoke(Camera)
	if got := gate.RequestCameraAccess(context.Background()); got != Denied {
		t.Errorf("Expected Denied after revoke, got %s", got)
	}
}

func TestTerminal_Prompt(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"y\n", true},
		{"YES\n", true},
		{"n\n", false},
		{"\n", false},
		{"", false},
	}

	for _, tt := range tests {
		var out bytes.Buffer
		term := &Terminal{In: strings.NewReader(tt.input), Out: &out}
		got, err := term.Prompt(context.Background(), Camera)
		if err != nil {
			t.Fatalf("input %q: unexpected error %v", tt.input, err)
		}
		if got != tt.want {
			t.Errorf("input %q: expected %v, got %v", tt.input, tt.want, got)
		}
		if !strings.Contains(out.String(), "camera") {
			t.Errorf("Expected prompt to mention the resource, got %q", out.String())
		}
	}
}

func TestTerminal_PromptAfterCancelledPrompt(t *testing.T) {
	in, w := io.Pipe()
	defer w.Close()
	term := &Terminal{In: in, Out: io.Discard}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := term.Prompt(ctx, Gallery); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Expected deadline exceeded, got %v", err)
	}

	// The line typed after the abandoned prompt answers the next one
	go func() { _, _ = w.Write([]byte("y\n")) }()

	ctx2, cancel2 := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel2()
	got, err := term.Prompt(ctx2, Gallery)
	if err != nil {
		t.Fatalf("Unexpected error %v", err)
	}
	if !got {
		t.Error("Expected the typed y to grant access")
	}
}

func TestTerminal_PromptAfterInputClosed(t *testing.T) {
	term := &Terminal{In: strings.NewReader("y\n"), Out: io.Discard}

	if got, err := term.Prompt(context.Background(), Camera); err != nil || !got {
		t.Fatalf("Expected first prompt to be granted, got %v %v", got, err)
	}
	// EOF answers once, then the closed channel keeps denying
	for i := 0; i < 2; i++ {
		got, err := term.Prompt(context.Background(), Gallery)
		if err != nil || got {
			t.Errorf("Expected denial after input closed, got %v %v", got, err)
		}
	}
}
