// Copyright 2026 The gVisor Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package ipc

import (
	stderrors "errors"
	"strings"
	"testing"
	"time"

	"exokern.dev/exokern/pkg/abi/exo"
	"exokern.dev/exokern/pkg/errors/kernerr"
	"exokern.dev/exokern/pkg/log"
	"github.com/cenkalti/backoff"
	"github.com/google/go-cmp/cmp"
)

const (
	idA exo.EnvID = 0x1000
	idB exo.EnvID = 0x1001
	idC exo.EnvID = 0x1002
)

type delivery struct {
	To    exo.EnvID
	Value uint32
	SrcVA exo.Addr
	Perm  exo.Perm
}

// fakeKernel is a single-threaded stand-in for the kernel. Every call is
// made by the environment self.
type fakeKernel struct {
	self exo.EnvID
	envs []exo.Env

	// recvErr, if set, fails IPCRecv.
	recvErr error
	// incoming is delivered to self by IPCRecv.
	incoming exo.Env
	recvVA   []exo.Addr

	// sendErr, if set, fails IPCTrySend after the target lookup.
	sendErr   error
	attempts  int
	delivered []delivery

	yields  int
	onYield func(k *fakeKernel)
}

func newFakeKernel(self exo.EnvID, envs ...exo.Env) *fakeKernel {
	return &fakeKernel{self: self, envs: envs}
}

func (k *fakeKernel) GetEnvID() exo.EnvID {
	return k.self
}

func (k *fakeKernel) IPCRecv(dstva exo.Addr) error {
	k.recvVA = append(k.recvVA, dstva)
	if k.recvErr != nil {
		return k.recvErr
	}
	e := &k.envs[k.self.Index()]
	e.IPCFrom = k.incoming.IPCFrom
	e.IPCValue = k.incoming.IPCValue
	e.IPCPerm = k.incoming.IPCPerm
	return nil
}

func (k *fakeKernel) IPCTrySend(to exo.EnvID, value uint32, srcva exo.Addr, perm exo.Perm) error {
	k.attempts++
	i := to.Index()
	if i >= len(k.envs) || k.envs[i].ID != to || k.envs[i].Free() {
		return kernerr.EBADENV
	}
	if !k.envs[i].IPCRecving {
		return kernerr.EIPCNOTRECV
	}
	if k.sendErr != nil {
		return k.sendErr
	}
	k.envs[i].IPCRecving = false
	k.delivered = append(k.delivered, delivery{To: to, Value: value, SrcVA: srcva, Perm: perm})
	return nil
}

func (k *fakeKernel) Yield() {
	k.yields++
	if k.onYield != nil {
		k.onYield(k)
	}
}

func (k *fakeKernel) NumEnvs() int {
	return len(k.envs)
}

func (k *fakeKernel) Env(index int) exo.Env {
	return k.envs[index]
}

func live(id exo.EnvID, typ exo.EnvType) exo.Env {
	return exo.Env{ID: id, Type: typ, Status: exo.EnvRunnable}
}

func testOpts(t *testing.T) Opts {
	return Opts{
		Logger: &log.BasicLogger{Level: log.Debug, Emitter: &log.TestEmitter{TestLogger: t}},
	}
}

func TestSendRetriesUntilReceiving(t *testing.T) {
	k := newFakeKernel(idA, live(idA, exo.EnvTypeUser), live(idB, exo.EnvTypeUser))
	// The receiver only starts receiving while the sender is yielding.
	k.onYield = func(k *fakeKernel) {
		k.envs[idB.Index()].IPCRecving = true
	}
	e := New(k, k, testOpts(t))
	e.Send(idB, 99, exo.NoPage, 0)

	if k.attempts != 2 || k.yields != 1 {
		t.Errorf("got %d attempts and %d yields, want 2 and 1", k.attempts, k.yields)
	}
	want := []delivery{{To: idB, Value: 99, SrcVA: exo.NoPage}}
	if diff := cmp.Diff(want, k.delivered); diff != "" {
		t.Errorf("deliveries mismatch (-want +got):\n%s", diff)
	}
}

func TestSendNormalizesPage(t *testing.T) {
	k := newFakeKernel(idA, live(idA, exo.EnvTypeUser), live(idB, exo.EnvTypeUser))
	k.envs[idB.Index()].IPCRecving = true
	e := New(k, k, testOpts(t))
	e.Send(idB, 1, exo.UTop+exo.PageSize, exo.PermU|exo.PermP)
	if got := k.delivered[0].SrcVA; got != exo.NoPage {
		t.Errorf("srcva = %v, want %v", got, exo.NoPage)
	}
}

func TestSendFatalHalts(t *testing.T) {
	k := newFakeKernel(idA, live(idA, exo.EnvTypeUser))
	e := New(k, k, testOpts(t))

	var recovered any
	func() {
		defer func() {
			recovered = recover()
		}()
		e.Send(idC, 5, exo.NoPage, 0)
	}()

	err, ok := recovered.(error)
	if !ok {
		t.Fatalf("Send panicked with %v, want an error", recovered)
	}
	var se *SendError
	if !stderrors.As(err, &se) {
		t.Fatalf("Send panicked with %v, want a *SendError", err)
	}
	if se.To != idC || se.Value != 5 || se.Attempts != 1 {
		t.Errorf("SendError = %+v, want To %v Value 5 after 1 attempt", se, idC)
	}
	if !stderrors.Is(err, kernerr.EBADENV) {
		t.Errorf("error %v does not wrap EBADENV", err)
	}
	if k.yields != 0 {
		t.Errorf("fatal send yielded %d times", k.yields)
	}
}

func TestSendCustomHaltMustNotReturn(t *testing.T) {
	k := newFakeKernel(idA, live(idA, exo.EnvTypeUser), live(idB, exo.EnvTypeUser))
	k.envs[idB.Index()].IPCRecving = true
	k.sendErr = kernerr.EINVAL

	var halted []error
	opts := testOpts(t)
	opts.Halt = func(err error) {
		halted = append(halted, err)
	}
	e := New(k, k, opts)

	defer func() {
		if recover() == nil {
			t.Errorf("Send returned after its halt function returned")
		}
		if len(halted) != 1 || !stderrors.Is(halted[0], kernerr.EINVAL) {
			t.Errorf("halt called with %v, want one EINVAL error", halted)
		}
	}()
	e.Send(idB, 5, 0x1000, exo.PermU|exo.PermP)
}

func TestSendRetryExhausted(t *testing.T) {
	k := newFakeKernel(idA, live(idA, exo.EnvTypeUser), live(idB, exo.EnvTypeUser))
	opts := testOpts(t)
	opts.Retry = RetryPolicy{MaxRetries: 3}
	e := New(k, k, opts)

	err := e.SendRetry(idB, 7, exo.NoPage, 0)
	if !stderrors.Is(err, ErrRetriesExhausted) || !stderrors.Is(err, kernerr.EIPCNOTRECV) {
		t.Fatalf("SendRetry = %v, want exhausted retries wrapping EIPCNOTRECV", err)
	}
	if !IsContention(err) {
		t.Errorf("IsContention(%v) = false", err)
	}
	if k.attempts != 4 || k.yields != 3 {
		t.Errorf("got %d attempts and %d yields, want 4 and 3", k.attempts, k.yields)
	}
	var se *SendError
	if !stderrors.As(err, &se) || se.Attempts != 4 {
		t.Errorf("SendRetry = %#v, want a *SendError with 4 attempts", err)
	}
}

func TestSendRetryStopsOnFatalError(t *testing.T) {
	k := newFakeKernel(idA, live(idA, exo.EnvTypeUser), live(idB, exo.EnvTypeUser))
	k.envs[idB.Index()].IPCRecving = true
	k.sendErr = kernerr.EINVAL
	e := New(k, k, testOpts(t))

	err := e.SendRetry(idB, 7, 0x1000, exo.PermU|exo.PermP)
	var se *SendError
	if !stderrors.As(err, &se) || se.Err != kernerr.EINVAL {
		t.Fatalf("SendRetry = %v, want a *SendError with EINVAL", err)
	}
	if IsContention(err) || stderrors.Is(err, ErrRetriesExhausted) {
		t.Errorf("fatal error %v reported as contention", err)
	}
	if k.attempts != 1 || k.yields != 0 {
		t.Errorf("got %d attempts and %d yields, want 1 and 0", k.attempts, k.yields)
	}
	if msg := err.Error(); !strings.Contains(msg, "EINVAL") || !strings.Contains(msg, "code -3") {
		t.Errorf("Error() = %q, want errno name and code", msg)
	}
}

func TestTrySend(t *testing.T) {
	k := newFakeKernel(idA, live(idA, exo.EnvTypeUser), live(idB, exo.EnvTypeUser))
	e := New(k, k, testOpts(t))
	if err := e.TrySend(idB, 1, exo.NoPage, 0); err != kernerr.EIPCNOTRECV {
		t.Errorf("TrySend = %v, want EIPCNOTRECV", err)
	}
	if k.yields != 0 || k.attempts != 1 {
		t.Errorf("TrySend made %d attempts and %d yields, want 1 and 0", k.attempts, k.yields)
	}
}

func TestRecv(t *testing.T) {
	k := newFakeKernel(idB, live(idA, exo.EnvTypeUser), live(idB, exo.EnvTypeUser))
	k.incoming = exo.Env{IPCFrom: idA, IPCValue: 1234, IPCPerm: exo.PermU | exo.PermP}
	e := New(k, k, testOpts(t))

	var from exo.EnvID
	var perm exo.Perm
	v, err := e.Recv(0x10000, &from, &perm)
	if err != nil {
		t.Fatalf("Recv failed: %v", err)
	}
	if v != 1234 || from != idA || perm != exo.PermU|exo.PermP {
		t.Errorf("Recv = %d from %v perm %v, want 1234 from %v perm UP", v, from, perm, idA)
	}

	// Stores are optional.
	if v, err := e.Recv(0x10000, nil, nil); err != nil || v != 1234 {
		t.Errorf("Recv with nil stores = %d, %v", v, err)
	}
	if diff := cmp.Diff([]exo.Addr{0x10000, 0x10000}, k.recvVA); diff != "" {
		t.Errorf("receive slots mismatch (-want +got):\n%s", diff)
	}
}

func TestRecvMessage(t *testing.T) {
	k := newFakeKernel(idB, live(idA, exo.EnvTypeUser), live(idB, exo.EnvTypeUser))
	k.incoming = exo.Env{IPCFrom: idA, IPCValue: 3}
	e := New(k, k, testOpts(t))

	// Addresses at or above UTop mean no page is wanted.
	m, err := e.RecvMessage(exo.UTop + 0x5000)
	if err != nil {
		t.Fatalf("RecvMessage failed: %v", err)
	}
	if diff := cmp.Diff(Message{From: idA, Value: 3}, m); diff != "" {
		t.Errorf("message mismatch (-want +got):\n%s", diff)
	}
	if m.HasPage() {
		t.Errorf("HasPage() = true without a page")
	}
	if k.recvVA[0] != exo.NoPage {
		t.Errorf("receive slot = %v, want %v", k.recvVA[0], exo.NoPage)
	}
}

func TestRecvErrorClearsStores(t *testing.T) {
	k := newFakeKernel(idB, live(idA, exo.EnvTypeUser), live(idB, exo.EnvTypeUser))
	k.recvErr = kernerr.EINVAL
	e := New(k, k, testOpts(t))

	from := idC
	perm := exo.PermU | exo.PermP | exo.PermW
	v, err := e.Recv(0x10000, &from, &perm)
	if err != kernerr.EINVAL {
		t.Errorf("Recv = %v, want EINVAL", err)
	}
	if v != 0 || from != 0 || perm != 0 {
		t.Errorf("Recv left value %d from %v perm %v, want zeros", v, from, perm)
	}
}

func TestRecvInconsistentDirectory(t *testing.T) {
	// Index 1 is occupied by a later generation than the caller.
	k := newFakeKernel(idB, live(idA, exo.EnvTypeUser), live(idB+1<<exo.EnvGenShift, exo.EnvTypeUser))
	k.incoming = exo.Env{IPCFrom: idA, IPCValue: 3}
	e := New(k, k, testOpts(t))

	from := idC
	if _, err := e.Recv(exo.NoPage, &from, nil); err != kernerr.EBADENV {
		t.Errorf("Recv = %v, want EBADENV", err)
	}
	if from != 0 {
		t.Errorf("from = %v, want 0", from)
	}
}

func TestFindByType(t *testing.T) {
	free := exo.Env{ID: 0x2003, Type: exo.EnvTypeNS}
	dir := newFakeKernel(idA,
		live(idA, exo.EnvTypeFS),
		live(idB, exo.EnvTypeUser),
		live(idC, exo.EnvTypeFS),
		free)

	for _, tc := range []struct {
		typ  exo.EnvType
		want exo.EnvID
	}{
		{exo.EnvTypeFS, idA},
		{exo.EnvTypeUser, idB},
		{exo.EnvTypeNS, 0},
	} {
		if got := FindByType(dir, tc.typ); got != tc.want {
			t.Errorf("FindByType(%v) = %v, want %v", tc.typ, got, tc.want)
		}
	}
	e := New(dir, dir, testOpts(t))
	if got := e.FindByType(exo.EnvTypeFS); got != idA {
		t.Errorf("Endpoint.FindByType(fs) = %v, want %v", got, idA)
	}
	if got := e.ID(); got != idA {
		t.Errorf("ID() = %v, want %v", got, idA)
	}
}

func TestFindByTypeSkipsFreeEntries(t *testing.T) {
	// A dead file server left behind at index 0.
	stale := exo.Env{ID: 0x1000, Type: exo.EnvTypeFS}
	dir := newFakeKernel(idB, stale, live(idB, exo.EnvTypeFS))
	if got := FindByType(dir, exo.EnvTypeFS); got != idB {
		t.Errorf("FindByType(fs) = %v, want %v", got, idB)
	}
}

func TestParseRetryKind(t *testing.T) {
	for _, tc := range []struct {
		in      string
		want    RetryKind
		wantErr bool
	}{
		{in: "", want: RetryYield},
		{in: "yield", want: RetryYield},
		{in: "constant", want: RetryConstant},
		{in: "exponential", want: RetryExponential},
		{in: "linear", wantErr: true},
	} {
		got, err := ParseRetryKind(tc.in)
		if (err != nil) != tc.wantErr {
			t.Errorf("ParseRetryKind(%q) error = %v, wantErr %t", tc.in, err, tc.wantErr)
			continue
		}
		if got != tc.want {
			t.Errorf("ParseRetryKind(%q) = %v, want %v", tc.in, got, tc.want)
		}
		if !tc.wantErr && tc.in != "" && got.String() != tc.in {
			t.Errorf("%v.String() = %q, want %q", got, got.String(), tc.in)
		}
	}
}

func TestRetryPolicyBackOff(t *testing.T) {
	for _, tc := range []struct {
		name   string
		policy RetryPolicy
		want   []time.Duration
	}{
		{
			name:   "yield",
			policy: RetryPolicy{MaxRetries: 2},
			want:   []time.Duration{0, 0, backoff.Stop},
		},
		{
			name:   "constant default",
			policy: RetryPolicy{Kind: RetryConstant, MaxRetries: 1},
			want:   []time.Duration{DefaultRetryInterval, backoff.Stop},
		},
		{
			name:   "constant",
			policy: RetryPolicy{Kind: RetryConstant, Interval: time.Millisecond},
			want:   []time.Duration{time.Millisecond, time.Millisecond, time.Millisecond},
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			b := tc.policy.backOff()
			b.Reset()
			var got []time.Duration
			for range tc.want {
				got = append(got, b.NextBackOff())
			}
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Errorf("NextBackOff sequence mismatch (-want +got):\n%s", diff)
			}
		})
	}

	b := RetryPolicy{Kind: RetryExponential, Interval: time.Millisecond, MaxInterval: 4 * time.Millisecond, MaxRetries: 10}.backOff()
	b.Reset()
	for i := 0; i < 10; i++ {
		if d := b.NextBackOff(); d == backoff.Stop || d > 4*time.Millisecond+4*time.Millisecond/2 {
			t.Errorf("exponential backoff %d = %v, want at most the randomized maximum", i, d)
		}
	}
	if d := b.NextBackOff(); d != backoff.Stop {
		t.Errorf("exponential backoff after MaxRetries = %v, want Stop", d)
	}
}
