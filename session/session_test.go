package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/visionclaw/visionclaw/gemini"
	"github.com/visionclaw/visionclaw/history"
	"github.com/visionclaw/visionclaw/video"
)

type fakeLiveClient struct {
	mu          sync.Mutex
	connectErr  error
	connects    int
	disconnects int
	videoSent   [][]byte

	audioOut     chan []byte
	toolCalls    chan gemini.FunctionCall
	turnComplete chan struct{}
	text         chan string
	states       chan gemini.ConnectionState
}

func newFakeLiveClient() *fakeLiveClient {
	return &fakeLiveClient{
		audioOut:     make(chan []byte, 16),
		toolCalls:    make(chan gemini.FunctionCall, 16),
		turnComplete: make(chan struct{}, 1),
		text:         make(chan string, 16),
		states:       make(chan gemini.ConnectionState, 16),
	}
}

func (f *fakeLiveClient) Connect(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connects++
	return f.connectErr
}

func (f *fakeLiveClient) Disconnect() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.disconnects++
}

func (f *fakeLiveClient) SendAudio(pcm []byte) {}

func (f *fakeLiveClient) SendVideoFrame(jpeg []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.videoSent = append(f.videoSent, jpeg)
}

func (f *fakeLiveClient) AudioOutput() <-chan []byte                  { return f.audioOut }
func (f *fakeLiveClient) ToolCalls() <-chan gemini.FunctionCall       { return f.toolCalls }
func (f *fakeLiveClient) TurnComplete() <-chan struct{}               { return f.turnComplete }
func (f *fakeLiveClient) Text() <-chan string                         { return f.text }
func (f *fakeLiveClient) StateChanges() <-chan gemini.ConnectionState { return f.states }

func (f *fakeLiveClient) connectCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connects
}

func (f *fakeLiveClient) disconnectCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.disconnects
}

type fakeAudioCapture struct {
	mu       sync.Mutex
	startErr error
	started  bool
	stops    int
	muted    bool
}

func (f *fakeAudioCapture) Start(onFrame func([]byte)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.startErr != nil {
		return f.startErr
	}
	f.started = true
	return nil
}

func (f *fakeAudioCapture) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.started = false
	f.stops++
}

func (f *fakeAudioCapture) SetMuted(muted bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.muted = muted
}

func (f *fakeAudioCapture) isMuted() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.muted
}

type fakeAudioPlayback struct {
	mu       sync.Mutex
	startErr error
	started  bool
	stops    int
	onState  func(bool)
}

func (f *fakeAudioPlayback) SetOnPlaybackStateChanged(fn func(bool)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onState = fn
}

func (f *fakeAudioPlayback) Start(<-chan []byte, <-chan struct{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.startErr != nil {
		return f.startErr
	}
	f.started = true
	return nil
}

func (f *fakeAudioPlayback) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.started = false
	f.stops++
}

func (f *fakeAudioPlayback) stateCallback() func(bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.onState
}

type fakeVideoCapture struct {
	mu     sync.Mutex
	source video.Source
	stops  int
}

func (f *fakeVideoCapture) Start(source video.Source, onFrame func([]byte)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.source = source
	return nil
}

func (f *fakeVideoCapture) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stops++
}

func (f *fakeVideoCapture) boundSource() video.Source {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.source
}

type fakeStreamer struct {
	mu     sync.Mutex
	starts int
	stops  int
}

func (f *fakeStreamer) StartStreaming(onFrame func([]byte)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.starts++
}

func (f *fakeStreamer) StopStreaming() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stops++
}

func (f *fakeStreamer) startCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.starts
}

type fakeRouter struct {
	mu      sync.Mutex
	handled []gemini.FunctionCall
}

func (f *fakeRouter) HandleToolCall(_ context.Context, call gemini.FunctionCall) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handled = append(f.handled, call)
}

func (f *fakeRouter) handledCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.handled)
}

type harness struct {
	client   *fakeLiveClient
	capture  *fakeAudioCapture
	playback *fakeAudioPlayback
	camera   *fakeVideoCapture
	glasses  *fakeStreamer
	router   *fakeRouter
	store    *history.Store
	orch     *Orchestrator
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		client:   newFakeLiveClient(),
		capture:  &fakeAudioCapture{},
		playback: &fakeAudioPlayback{},
		camera:   &fakeVideoCapture{},
		glasses:  &fakeStreamer{},
		router:   &fakeRouter{},
		store:    history.NewStore("", ""),
	}
	h.orch = NewOrchestrator(h.client, h.capture, h.playback, h.camera, h.glasses, h.router, h.store)
	t.Cleanup(h.orch.StopSession)
	return h
}

func waitForSessionState(t *testing.T, o *Orchestrator, want State) {
	t.Helper()
	require.Eventually(t, func() bool { return o.State() == want },
		2*time.Second, 5*time.Millisecond, "expected session state %s", want)
}

func TestStartSession(t *testing.T) {
	h := newHarness(t)

	require.NoError(t, h.orch.StartSession(ModePhone))
	assert.Equal(t, StateConnecting, h.orch.State())
	assert.Equal(t, 1, h.client.connectCount())
	assert.NotEmpty(t, h.orch.SessionID())

	h.client.states <- gemini.StateConnected
	waitForSessionState(t, h.orch, StateActive)
	assert.Equal(t, ModePhone, h.orch.Mode())
}

func TestStartSessionNoOpWhileRunning(t *testing.T) {
	h := newHarness(t)

	require.NoError(t, h.orch.StartSession(ModePhone))
	firstID := h.orch.SessionID()

	require.NoError(t, h.orch.StartSession(ModePhone))
	assert.Equal(t, 1, h.client.connectCount(), "second start must not reconnect")
	assert.Equal(t, firstID, h.orch.SessionID())
}

func TestStopSessionWhenIdle(t *testing.T) {
	h := newHarness(t)

	// Teardown before any session existed must be safe.
	h.orch.StopSession()
	assert.Equal(t, StateIdle, h.orch.State())
}

func TestStopSessionTearsDownEverything(t *testing.T) {
	h := newHarness(t)

	require.NoError(t, h.orch.StartSession(ModeGlasses))
	h.client.states <- gemini.StateConnected
	waitForSessionState(t, h.orch, StateActive)

	h.orch.StopSession()
	assert.Equal(t, StateIdle, h.orch.State())
	assert.GreaterOrEqual(t, h.client.disconnectCount(), 1)
	assert.GreaterOrEqual(t, h.capture.stops, 1)
	assert.GreaterOrEqual(t, h.playback.stops, 1)
	assert.GreaterOrEqual(t, h.glasses.stops, 1)

	// Stopping twice is fine.
	h.orch.StopSession()
	assert.Equal(t, StateIdle, h.orch.State())
}

func TestConnectFailureLeavesErrorState(t *testing.T) {
	h := newHarness(t)
	h.client.connectErr = errors.New("dial refused")

	err := h.orch.StartSession(ModePhone)
	require.Error(t, err)
	assert.Equal(t, StateError, h.orch.State())
}

func TestCaptureFailureUnwinds(t *testing.T) {
	h := newHarness(t)
	h.capture.startErr = errors.New("mic busy")

	err := h.orch.StartSession(ModePhone)
	require.Error(t, err)
	assert.Equal(t, StateError, h.orch.State())
	assert.GreaterOrEqual(t, h.client.disconnectCount(), 1, "failed start must release the connection")
}

func TestMuteWiring(t *testing.T) {
	h := newHarness(t)

	require.NoError(t, h.orch.StartSession(ModePhone))

	callback := h.playback.stateCallback()
	require.NotNil(t, callback, "playback state changes must drive capture mute")

	callback(true)
	assert.True(t, h.capture.isMuted())
	callback(false)
	assert.False(t, h.capture.isMuted())
}

func TestGlassesModeStartsStreaming(t *testing.T) {
	h := newHarness(t)

	require.NoError(t, h.orch.StartSession(ModeGlasses))
	assert.Equal(t, 1, h.glasses.startCount())
	assert.Nil(t, h.camera.boundSource(), "phone camera stays off in glasses mode")
}

func TestBindCamera(t *testing.T) {
	h := newHarness(t)
	source := &fakeSource{}

	// No session yet.
	require.Error(t, h.orch.BindCamera(source))

	require.NoError(t, h.orch.StartSession(ModePhone))
	require.NoError(t, h.orch.BindCamera(source))
	assert.Equal(t, source, h.camera.boundSource())
	assert.Equal(t, 0, h.glasses.startCount())
}

func TestBindCameraIgnoredInGlassesMode(t *testing.T) {
	h := newHarness(t)

	require.NoError(t, h.orch.StartSession(ModeGlasses))
	require.NoError(t, h.orch.BindCamera(&fakeSource{}))
	assert.Nil(t, h.camera.boundSource())
}

func TestToolCallsRoutedAndRecorded(t *testing.T) {
	h := newHarness(t)

	require.NoError(t, h.orch.StartSession(ModePhone))
	sessionID := h.orch.SessionID()

	h.client.toolCalls <- gemini.FunctionCall{
		ID: "1", Name: "execute", Args: map[string]string{"task": "turn off the lights"},
	}

	require.Eventually(t, func() bool { return h.router.handledCount() == 1 },
		2*time.Second, 5*time.Millisecond)

	msgs := h.store.Messages(sessionID)
	require.Len(t, msgs, 1)
	assert.Equal(t, history.TypeToolCall, msgs[0].Type)
	assert.Equal(t, history.SpeakerGemini, msgs[0].Speaker)
	assert.Equal(t, "execute: turn off the lights", msgs[0].Content)
}

func TestModelTextRecorded(t *testing.T) {
	h := newHarness(t)

	require.NoError(t, h.orch.StartSession(ModePhone))
	sessionID := h.orch.SessionID()

	h.client.text <- "The lights are off now."

	require.Eventually(t, func() bool { return len(h.store.Messages(sessionID)) == 1 },
		2*time.Second, 5*time.Millisecond)

	msgs := h.store.Messages(sessionID)
	assert.Equal(t, history.TypeText, msgs[0].Type)
	assert.Equal(t, "The lights are off now.", msgs[0].Content)
}

func TestDisconnectedProjection(t *testing.T) {
	h := newHarness(t)

	require.NoError(t, h.orch.StartSession(ModePhone))
	h.client.states <- gemini.StateConnected
	waitForSessionState(t, h.orch, StateActive)

	h.client.states <- gemini.StateDisconnected
	waitForSessionState(t, h.orch, StateIdle)
}

func TestConnectionErrorProjection(t *testing.T) {
	h := newHarness(t)

	require.NoError(t, h.orch.StartSession(ModePhone))
	h.client.states <- gemini.StateConnected
	waitForSessionState(t, h.orch, StateActive)

	h.client.states <- gemini.StateError
	waitForSessionState(t, h.orch, StateError)
}

// fakeSource is a camera source that emits nothing.
type fakeSource struct{}

func (f *fakeSource) Name() string { return "fake" }

func (f *fakeSource) Start(ctx context.Context) (<-chan video.Frame, error) {
	frames := make(chan video.Frame)
	go func() {
		<-ctx.Done()
		close(frames)
	}()
	return frames, nil
}

func (f *fakeSource) Close() error { return nil }
