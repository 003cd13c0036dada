package capabilities

import (
	"context"
	"strings"
	"sync"
)

type fakeResponse struct {
	out string
	err error
}

// fakeRunner answers commands from a table keyed by the joined argv.
type fakeRunner struct {
	mu        sync.Mutex
	calls     []string
	responses map[string]fakeResponse
}

func newFakeRunner(responses map[string]fakeResponse) *fakeRunner {
	if responses == nil {
		responses = map[string]fakeResponse{}
	}
	return &fakeRunner{responses: responses}
}

func (f *fakeRunner) Run(ctx context.Context, name string, args ...string) (string, error) {
	key := strings.Join(append([]string{name}, args...), " ")
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, key)
	r := f.responses[key]
	return r.out, r.err
}

func (f *fakeRunner) called(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.calls {
		if c == key {
			return true
		}
	}
	return false
}

// fakeBrowser records opened URLs.
type fakeBrowser struct {
	opened []string
	err    error
}

func (b *fakeBrowser) Open(ctx context.Context, url string) error {
	b.opened = append(b.opened, url)
	return b.err
}
