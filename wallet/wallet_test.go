package wallet

import (
	"errors"
	"sync"
	"testing"

	"github.com/elnosh/walletgen/customer"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeDeriver returns "addr:<path>" and lets tests hook into specific
// paths to fail, panic or block.
type fakeDeriver struct {
	mu    sync.Mutex
	calls []string

	failOn  map[string]bool
	panicOn map[string]bool
	before  map[string]func()
	after   map[string]func()
}

func newFakeDeriver() *fakeDeriver {
	return &fakeDeriver{
		failOn:  make(map[string]bool),
		panicOn: make(map[string]bool),
		before:  make(map[string]func()),
		after:   make(map[string]func()),
	}
}

func (f *fakeDeriver) DeriveAddress(path string) (string, error) {
	if hook, ok := f.before[path]; ok {
		hook()
	}

	f.mu.Lock()
	f.calls = append(f.calls, path)
	f.mu.Unlock()

	if f.panicOn[path] {
		panic("derivation exploded")
	}
	if f.failOn[path] {
		return "", errors.New("bad child key")
	}

	if hook, ok := f.after[path]; ok {
		hook()
	}
	return "addr:" + path, nil
}

func (f *fakeDeriver) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

// factory hands out the same fake to every worker. The fake is safe for
// concurrent use, unlike a real HD wallet.
func (f *fakeDeriver) factory() DeriverFactory {
	return func() (AddressDeriver, error) {
		return f, nil
	}
}

func pathOf(t *testing.T, id string) string {
	t.Helper()
	path, err := customer.DerivationPath(id)
	if err != nil {
		t.Fatalf("error building path for '%v': %v", id, err)
	}
	return path
}

func addressOf(t *testing.T, id string) string {
	return "addr:" + pathOf(t, id)
}
