package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
	"twitchtts/internal/app/adapters/platform/twitch/irc"
	"twitchtts/internal/app/ports"
	"twitchtts/pkg/logger"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type pollResult struct {
	msgs    []ports.ChatMessage
	err     error
	channel *string
	relogin bool // the stream reconnected during this poll
}

func channel(name string) *string { return &name }

type fakeStream struct {
	mu sync.Mutex

	connectErr error
	rejected   bool
	connected  bool
	current    string
	logins     uint64
	script     []pollResult
	polls      int
	joins      []string
	sent       []string
	closed     bool
}

func (f *fakeStream) Connect(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.connectErr != nil {
		return f.connectErr
	}
	f.connected = !f.rejected
	if f.connected {
		f.logins++
	}
	return nil
}

func (f *fakeStream) JoinChannel(channel string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if channel == "bad channel" {
		return irc.ErrInvalidChannel
	}
	f.joins = append(f.joins, channel)
	return nil
}

func (f *fakeStream) SendMessage(channel, text string) {
	f.Enqueue(fmt.Sprintf("PRIVMSG #%s :%s", channel, text))
}

func (f *fakeStream) Enqueue(line string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, line)
}

func (f *fakeStream) Poll(context.Context) ([]ports.ChatMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.polls++
	if len(f.script) == 0 {
		return nil, nil
	}
	next := f.script[0]
	f.script = f.script[1:]
	if next.relogin {
		f.logins++
	}
	if next.channel != nil {
		f.current = *next.channel
	}
	if next.err != nil {
		f.connected = false
	}
	return next.msgs, next.err
}

func (f *fakeStream) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *fakeStream) CurrentChannel() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.current
}

func (f *fakeStream) Logins() uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.logins
}

func (f *fakeStream) Pending() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func (f *fakeStream) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	f.connected = false
	return nil
}

func (f *fakeStream) pollCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.polls
}

func (f *fakeStream) setChannel(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.current = name
}

func (f *fakeStream) snapshot() (joins, sent []string, closed bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.joins...), append([]string(nil), f.sent...), f.closed
}

type harness struct {
	worker *Worker
	stream *fakeStream
	clock  *clockwork.FakeClock
	cancel context.CancelFunc
	result chan error
}

func start(t *testing.T, stream *fakeStream, opts ...Option) *harness {
	t.Helper()
	clock := clockwork.NewFakeClock()
	w := New(logger.Nop(), stream, append([]Option{WithClock(clock), WithPollInterval(200 * time.Millisecond)}, opts...)...)

	ctx, cancel := context.WithCancel(context.Background())
	h := &harness{worker: w, stream: stream, clock: clock, cancel: cancel, result: make(chan error, 1)}
	go func() { h.result <- w.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-w.done
	})

	return h
}

// tick advances one poll interval and waits for the poll to happen.
func (h *harness) tick(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, h.clock.BlockUntilContext(ctx, 1))

	before := h.stream.pollCount()
	h.clock.Advance(200 * time.Millisecond)
	require.Eventually(t, func() bool { return h.stream.pollCount() > before }, 2*time.Second, time.Millisecond)
}

func (h *harness) wait(t *testing.T) error {
	t.Helper()
	select {
	case err := <-h.result:
		return err
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop")
		return nil
	}
}

func TestWorker_DeliversMessages(t *testing.T) {
	msg := ports.ChatMessage{Channel: "#foo", Username: "alice", Text: "hi"}
	stream := &fakeStream{script: []pollResult{{msgs: []ports.ChatMessage{msg}, channel: channel("foo")}}}

	var mu sync.Mutex
	var handled []string
	h := start(t, stream, WithHandler(func(m ports.ChatMessage, current string) {
		mu.Lock()
		defer mu.Unlock()
		handled = append(handled, current+"/"+m.Text)
	}))

	sub, cancel := h.worker.Subscribe()
	defer cancel()

	h.tick(t)

	select {
	case got := <-sub:
		assert.Equal(t, msg, got)
	case <-time.After(2 * time.Second):
		t.Fatal("no message delivered")
	}

	mu.Lock()
	assert.Equal(t, []string{"foo/hi"}, handled)
	mu.Unlock()

	require.Eventually(t, func() bool { return h.worker.Status().InChannel }, 2*time.Second, time.Millisecond)
	assert.Equal(t, ports.SessionStatus{Connected: true, InChannel: true, Channel: "foo"}, h.worker.Status())
}

func TestWorker_JoinsConfiguredChannel(t *testing.T) {
	stream := &fakeStream{}
	h := start(t, stream, WithChannel("foo"))

	h.tick(t)
	joins, _, _ := stream.snapshot()
	assert.Equal(t, []string{"foo"}, joins)
}

func TestWorker_LoginRejected(t *testing.T) {
	stream := &fakeStream{rejected: true}
	h := start(t, stream)

	err := h.wait(t)
	assert.ErrorIs(t, err, irc.ErrLoginRejected)

	sub, _ := h.worker.Subscribe()
	_, open := <-sub
	assert.False(t, open)
}

func TestWorker_ConnectError(t *testing.T) {
	stream := &fakeStream{connectErr: errors.New("connection refused")}
	h := start(t, stream)

	err := h.wait(t)
	assert.ErrorContains(t, err, "connection refused")
}

func TestWorker_JoinAndSay(t *testing.T) {
	stream := &fakeStream{}
	h := start(t, stream)
	ctx := context.Background()

	require.NoError(t, h.worker.Join(ctx, "foo"))
	assert.ErrorIs(t, h.worker.Join(ctx, "bad channel"), irc.ErrInvalidChannel)
	for _, name := range []string{"", "#", "  "} {
		assert.ErrorIs(t, h.worker.Join(ctx, name), irc.ErrInvalidChannel, "%q", name)
	}
	assert.ErrorIs(t, h.worker.Say(ctx, "hello"), ErrNotInChannel)

	_, sent, _ := stream.snapshot()
	assert.Empty(t, sent, "an empty join must not turn into a message")

	stream.setChannel("foo")
	assert.ErrorIs(t, h.worker.Join(ctx, ""), irc.ErrInvalidChannel)
	require.NoError(t, h.worker.Say(ctx, "hello"))
	assert.Error(t, h.worker.Say(ctx, ""))

	joins, sent, _ := stream.snapshot()
	assert.Equal(t, []string{"foo"}, joins)
	assert.Equal(t, []string{"PRIVMSG #foo :hello"}, sent)
	assert.Equal(t, 1, h.worker.Status().Pending)
}

func TestWorker_RejoinsAfterReconnect(t *testing.T) {
	stream := &fakeStream{script: []pollResult{
		{channel: channel("foo")},
		{channel: channel(""), relogin: true},
		{},
	}}
	h := start(t, stream)
	require.NoError(t, h.worker.Join(context.Background(), "foo"))

	h.tick(t)
	h.tick(t)
	h.tick(t)

	joins, _, _ := stream.snapshot()
	assert.Equal(t, []string{"foo", "foo"}, joins, "one rejoin per reconnect")
}

func TestWorker_RejoinsUnconfirmedJoinAfterReconnect(t *testing.T) {
	stream := &fakeStream{script: []pollResult{
		{},
		{relogin: true},
		{},
	}}
	h := start(t, stream)
	require.NoError(t, h.worker.Join(context.Background(), "#Foo"))

	h.tick(t)
	joins, _, _ := stream.snapshot()
	assert.Equal(t, []string{"#Foo"}, joins, "no echo yet, but the connection is the same")

	h.tick(t)
	require.Eventually(t, func() bool {
		joins, _, _ := stream.snapshot()
		return len(joins) == 2
	}, 2*time.Second, time.Millisecond)

	h.tick(t)
	joins, _, _ = stream.snapshot()
	assert.Equal(t, []string{"#Foo", "foo"}, joins)
}

func TestWorker_SessionLostEndsRun(t *testing.T) {
	last := ports.ChatMessage{Channel: "#foo", Username: "bob", Text: "bye"}
	stream := &fakeStream{script: []pollResult{
		{msgs: []ports.ChatMessage{last}, err: fmt.Errorf("%w: gone", irc.ErrSessionLost)},
	}}
	h := start(t, stream)
	sub, cancel := h.worker.Subscribe()
	defer cancel()

	h.tick(t)

	err := h.wait(t)
	assert.ErrorIs(t, err, irc.ErrSessionLost)

	got, ok := <-sub
	assert.True(t, ok)
	assert.Equal(t, last, got)
	_, open := <-sub
	assert.False(t, open)

	_, _, closed := stream.snapshot()
	assert.True(t, closed)
	assert.False(t, h.worker.Status().Connected)
	assert.ErrorIs(t, h.worker.Join(context.Background(), "foo"), ErrStopped)
}

func TestWorker_CancelStops(t *testing.T) {
	stream := &fakeStream{}
	h := start(t, stream)

	require.Eventually(t, func() bool { return h.worker.Status().Connected }, 2*time.Second, time.Millisecond)
	h.cancel()

	assert.NoError(t, h.wait(t))
	_, _, closed := stream.snapshot()
	assert.True(t, closed)
}

func TestWorker_SlowSubscriberDoesNotBlock(t *testing.T) {
	batch := make([]ports.ChatMessage, subscriberBuffer+10)
	for i := range batch {
		batch[i] = ports.ChatMessage{Channel: "#foo", Username: "spam", Text: fmt.Sprint(i)}
	}
	stream := &fakeStream{script: []pollResult{{msgs: batch}}}
	h := start(t, stream)

	sub, cancel := h.worker.Subscribe()
	h.tick(t)
	require.Eventually(t, func() bool { return len(sub) == subscriberBuffer }, 2*time.Second, time.Millisecond)

	cancel()
	cancel()
	h.tick(t)
}

func TestWorker_RunTwice(t *testing.T) {
	stream := &fakeStream{}
	h := start(t, stream)

	require.Eventually(t, func() bool { return h.worker.Status().Connected }, 2*time.Second, time.Millisecond)
	assert.Error(t, h.worker.Run(context.Background()))
}
