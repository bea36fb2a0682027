package orchestrator

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/Iron-Ham/image2video/internal/attachment"
	"github.com/Iron-Ham/image2video/internal/config"
	"github.com/Iron-Ham/image2video/internal/session"
)

type submission struct {
	token, imageURL, prompt string
}

// fakeServices records calls and returns canned results.
type fakeServices struct {
	mu sync.Mutex

	uploadURL string
	uploadErr error
	token     string
	tokenErr  error
	taskID    string
	submitErr error

	uploads     []string
	submissions []submission
	closed      bool
}

func newFakeServices() *fakeServices {
	return &fakeServices{
		uploadURL: "https://img/x.png",
		token:     "tok",
		taskID:    "T1",
	}
}

func (f *fakeServices) UploadImage(_ context.Context, imageBase64 string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploads = append(f.uploads, imageBase64)
	return f.uploadURL, f.uploadErr
}

func (f *fakeServices) IssueToken(context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.token, f.tokenErr
}

func (f *fakeServices) SubmitVideoTask(_ context.Context, token, imageURL, prompt string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submissions = append(f.submissions, submission{token, imageURL, prompt})
	return f.taskID, f.submitErr
}

func (f *fakeServices) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
}

func (f *fakeServices) set(fn func(*fakeServices)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(f)
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.APIURL = "https://api.example.com/v1/videos/image2video"
	cfg.ImageHostAPIKey = "imgbb"
	cfg.KeyID = "ak"
	cfg.Secret = "sk"
	return cfg
}

type harness struct {
	orch  *Orchestrator
	svc   *fakeServices
	store *session.MemoryStore
	clock *fakeClock
}

// newHarness returns a STARTED orchestrator over fake services, an in-memory
// store and a fake clock. Attachments are inline base64.
func newHarness(t *testing.T) *harness {
	t.Helper()

	h := &harness{
		svc:   newFakeServices(),
		store: session.NewMemoryStore(),
		clock: &fakeClock{now: time.Date(2026, 1, 2, 15, 0, 0, 0, time.UTC)},
	}
	h.orch = New(Options{
		Config:      testConfig(),
		Services:    h.svc,
		Store:       h.store,
		Attachments: attachment.Inline{},
		Clock:       h.clock.Now,
	})

	ctx := context.Background()
	if err := h.orch.Initialize(ctx); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	if err := h.orch.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	return h
}

func (h *harness) send(t *testing.T, msg Message) Reply {
	t.Helper()
	reply, err := h.orch.HandleEvent(context.Background(), msg)
	if err != nil {
		t.Fatalf("HandleEvent(%+v) error = %v", msg, err)
	}
	return reply
}

func (h *harness) phase(t *testing.T, userID string) session.Phase {
	t.Helper()
	p, err := h.orch.Phase(context.Background(), userID)
	if err != nil {
		t.Fatalf("Phase() error = %v", err)
	}
	return p
}

func text(userID, content string) Message {
	return Message{UserID: userID, Type: MessageText, Content: content}
}

func image(userID, ref string) Message {
	return Message{UserID: userID, Type: MessageImage, Attachment: ref}
}
