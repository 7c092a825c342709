package client_test

import (
	"context"
	"strconv"
	"sync"
	"time"

	auth "github.com/goliatone/go-admin-auth"
	"github.com/jonboulle/clockwork"
)

var testEpoch = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

type fakeAPI struct {
	mu    sync.Mutex
	clock clockwork.Clock
	ttl   time.Duration

	refreshes int
	logouts   int
	devCalls  int
	idCalls   int
	qrCalls   int

	refreshErr  error
	logoutErr   error
	devErr      error
	identityErr error
	qrErr       error

	// when set, Refresh signals started and waits on release
	started chan struct{}
	release chan struct{}

	lastLogout [2]string
}

func newFakeAPI(clock clockwork.Clock) *fakeAPI {
	return &fakeAPI{clock: clock, ttl: 150 * time.Second}
}

func (f *fakeAPI) pair(prefix string, mode auth.SessionMode) *auth.TokenPair {
	return &auth.TokenPair{
		AccessToken:  prefix + "-access",
		SessionToken: "session",
		ExpiresAt:    f.clock.Now().Add(f.ttl),
		Mode:         mode,
		AdminID:      "admin",
	}
}

func (f *fakeAPI) Refresh(ctx context.Context, access, session string) (*auth.TokenPair, error) {
	f.mu.Lock()
	f.refreshes++
	n := f.refreshes
	err := f.refreshErr
	started, release := f.started, f.release
	f.mu.Unlock()

	if started != nil {
		started <- struct{}{}
		<-release
	}

	if err != nil {
		return nil, err
	}
	return f.pair("refreshed-"+strconv.Itoa(n), auth.ModeProd), nil
}

func (f *fakeAPI) Logout(ctx context.Context, access, session string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logouts++
	f.lastLogout = [2]string{access, session}
	return f.logoutErr
}

func (f *fakeAPI) DevLogin(ctx context.Context, phone, password string) (*auth.TokenPair, error) {
	f.mu.Lock()
	f.devCalls++
	err := f.devErr
	f.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return f.pair("dev", auth.ModeDev), nil
}

func (f *fakeAPI) VerifyIdentity(ctx context.Context, assertion string) (*auth.VerifiedIdentity, error) {
	f.mu.Lock()
	f.idCalls++
	err := f.identityErr
	f.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return &auth.VerifiedIdentity{Subject: "uid", Contact: "+917073829447", ContactKind: auth.ContactPhone}, nil
}

func (f *fakeAPI) VerifyAdminQR(ctx context.Context, assertion string, image []byte) (*auth.TokenPair, error) {
	f.mu.Lock()
	f.qrCalls++
	err := f.qrErr
	f.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return f.pair("prod", auth.ModeProd), nil
}

func (f *fakeAPI) counts() (refreshes, logouts int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.refreshes, f.logouts
}

func (f *fakeAPI) calls() (dev, identity, qr int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.devCalls, f.idCalls, f.qrCalls
}

func (f *fakeAPI) set(fn func(f *fakeAPI)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(f)
}

type recorder struct {
	mu     sync.Mutex
	values []bool
}

func (r *recorder) listen(v bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.values = append(r.values, v)
}

func (r *recorder) get() []bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]bool(nil), r.values...)
}
