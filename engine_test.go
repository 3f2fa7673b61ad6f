package duoauth

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/venaticus/duoauth/notify"
)

// memStore is an in-memory CredentialStore for tests.
type memStore struct {
	mu       sync.Mutex
	byIdent  map[string]*AccountRecord
	byUserID map[string]*AccountRecord
}

func newMemStore() *memStore {
	return &memStore{
		byIdent:  make(map[string]*AccountRecord),
		byUserID: make(map[string]*AccountRecord),
	}
}

func (s *memStore) GetByIdentifier(_ context.Context, identifier string) (AccountRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.byIdent[identifier]
	if !ok {
		return AccountRecord{}, ErrAccountNotFound
	}
	return *rec, nil
}

func (s *memStore) CreateAccount(_ context.Context, record AccountRecord) (AccountRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byIdent[record.Identifier]; ok {
		return AccountRecord{}, ErrDuplicateIdentifier
	}
	record.UserID = uuid.NewString()
	stored := record
	s.byIdent[record.Identifier] = &stored
	s.byUserID[record.UserID] = &stored
	return record, nil
}

func (s *memStore) UpdateLoginState(_ context.Context, userID string, attempts int, locked bool, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.byUserID[userID]
	if !ok {
		return ErrAccountNotFound
	}
	rec.LoginAttempts = attempts
	if locked {
		rec.IsLocked = true
	}
	rec.LastLoginAttempt = at
	return nil
}

// memSender records everything it is asked to deliver.
type memSender struct {
	channel string
	fail    error

	mu       sync.Mutex
	codes    []string
	welcomes int
	locked   int
}

func (s *memSender) Channel() string { return s.channel }

func (s *memSender) SendCode(_ context.Context, _ notify.Target, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return s.fail
	}
	s.codes = append(s.codes, code)
	return nil
}

func (s *memSender) SendWelcome(context.Context, notify.Target) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return s.fail
	}
	s.welcomes++
	return nil
}

func (s *memSender) SendLocked(context.Context, notify.Target) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return s.fail
	}
	s.locked++
	return nil
}

func (s *memSender) lastCode(t *testing.T) string {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.codes) == 0 {
		t.Fatal("no code was delivered")
	}
	return s.codes[len(s.codes)-1]
}

func (s *memSender) lockedNotices() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.locked
}

type testHarness struct {
	engine *Engine
	redis  *miniredis.Miniredis
	store  *memStore
	sender *memSender
	sink   *ChannelSink
}

func newTestHarness(t *testing.T, mutate func(*Config)) *testHarness {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	cfg := defaultConfig()
	cfg.Session.Secret = []byte("0123456789abcdef0123456789abcdef")
	// Cheap hashing keeps the suite fast.
	cfg.Password.Memory = 8192
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	cfg.Metrics.Enabled = true
	if mutate != nil {
		mutate(&cfg)
	}

	store := newMemStore()
	sender := &memSender{channel: "email"}
	sink := NewChannelSink(256)

	engine, err := New().
		WithConfig(cfg).
		WithRedis(client).
		WithCredentialStore(store).
		WithNotifier(sender).
		WithAuditSink(sink).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(engine.Close)

	return &testHarness{engine: engine, redis: mr, store: store, sender: sender, sink: sink}
}

func (h *testHarness) createAccount(t *testing.T, email, pass string) string {
	t.Helper()
	res, err := h.engine.CreateAccount(context.Background(), CreateAccountRequest{
		FirstName:   "Ada",
		LastName:    "Lovelace",
		Email:       email,
		PhoneNumber: "+15550001234",
		Password:    pass,
	})
	if err != nil {
		t.Fatalf("CreateAccount failed: %v", err)
	}
	return res.UserID
}

// drainAudit closes the engine and collects everything the sink buffered.
func (h *testHarness) drainAudit() []AuditEvent {
	h.engine.Close()
	var events []AuditEvent
	for {
		select {
		case ev := <-h.sink.Events():
			events = append(events, ev)
		default:
			return events
		}
	}
}

func TestSubmitPasswordUnknownIdentifier(t *testing.T) {
	h := newTestHarness(t, nil)

	_, err := h.engine.SubmitPassword(context.Background(), "nobody@example.com", "whatever1")
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestSubmitPasswordEmptyInputs(t *testing.T) {
	h := newTestHarness(t, nil)

	if _, err := h.engine.SubmitPassword(context.Background(), "", "pw"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("empty identifier: expected ErrInvalidCredentials, got %v", err)
	}
	if _, err := h.engine.SubmitPassword(context.Background(), "a@b.c", ""); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("empty password: expected ErrInvalidCredentials, got %v", err)
	}
}

func TestSubmitPasswordAttemptBudget(t *testing.T) {
	h := newTestHarness(t, nil)
	h.createAccount(t, "ada@example.com", "correct-pass")
	ctx := context.Background()

	wantRemaining := []int{2, 1, 0}
	for i, want := range wantRemaining {
		_, err := h.engine.SubmitPassword(ctx, "ada@example.com", "wrong-pass")
		var rej *RejectedError
		if !errors.As(err, &rej) {
			t.Fatalf("attempt %d: expected *RejectedError, got %v", i+1, err)
		}
		if !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("attempt %d: RejectedError must unwrap to ErrInvalidCredentials", i+1)
		}
		if rej.AttemptsRemaining != want {
			t.Fatalf("attempt %d: AttemptsRemaining = %d, want %d", i+1, rej.AttemptsRemaining, want)
		}
		if wantLocked := i == 2; rej.Locked != wantLocked {
			t.Fatalf("attempt %d: Locked = %v, want %v", i+1, rej.Locked, wantLocked)
		}
	}

	// The account is now locked; even the right password is refused.
	if _, err := h.engine.SubmitPassword(ctx, "ada@example.com", "correct-pass"); !errors.Is(err, ErrAccountLocked) {
		t.Fatalf("locked account: expected ErrAccountLocked, got %v", err)
	}
	if h.sender.lockedNotices() != 1 {
		t.Fatalf("locked notices = %d, want 1", h.sender.lockedNotices())
	}
}

func TestSubmitPasswordSuccessResetsAttempts(t *testing.T) {
	h := newTestHarness(t, nil)
	h.createAccount(t, "ada@example.com", "correct-pass")
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if _, err := h.engine.SubmitPassword(ctx, "ada@example.com", "wrong-pass"); err == nil {
			t.Fatal("wrong password unexpectedly accepted")
		}
	}

	if _, err := h.engine.SubmitPassword(ctx, "ada@example.com", "correct-pass"); err != nil {
		t.Fatalf("correct password rejected: %v", err)
	}

	// The budget is fresh again: two more failures do not lock.
	for i := 0; i < 2; i++ {
		_, err := h.engine.SubmitPassword(ctx, "ada@example.com", "wrong-pass")
		var rej *RejectedError
		if !errors.As(err, &rej) {
			t.Fatalf("expected *RejectedError, got %v", err)
		}
		if rej.Locked {
			t.Fatal("account locked before the threshold")
		}
	}
}

func TestFullAuthenticationFlow(t *testing.T) {
	h := newTestHarness(t, nil)
	h.createAccount(t, "ada@example.com", "correct-pass")
	ctx := context.Background()

	login, err := h.engine.SubmitPassword(ctx, "ada@example.com", "correct-pass")
	if err != nil {
		t.Fatalf("SubmitPassword failed: %v", err)
	}
	if login.Delivery.Delivered() != 1 {
		t.Fatalf("delivered channels = %d, want 1", login.Delivery.Delivered())
	}

	code := h.sender.lastCode(t)
	if len(code) != 6 {
		t.Fatalf("code length = %d, want 6", len(code))
	}

	verify, err := h.engine.SubmitCode(ctx, "ada@example.com", code)
	if err != nil {
		t.Fatalf("SubmitCode failed: %v", err)
	}
	if verify.Session == nil || verify.Session.Token == "" {
		t.Fatal("verification did not mint a session")
	}

	until := time.Until(verify.Session.ExpiresAt)
	if until < 9*time.Minute || until > 10*time.Minute+time.Second {
		t.Fatalf("session expiry %v from now, want about 10m", until)
	}

	claims, err := h.engine.ValidateSession(ctx, verify.Session.Token)
	if err != nil {
		t.Fatalf("ValidateSession failed: %v", err)
	}
	if claims.UserID != login.UserID {
		t.Fatalf("claims.UserID = %q, want %q", claims.UserID, login.UserID)
	}
}

func TestSubmitCodeSingleUse(t *testing.T) {
	h := newTestHarness(t, nil)
	h.createAccount(t, "ada@example.com", "correct-pass")
	ctx := context.Background()

	if _, err := h.engine.SubmitPassword(ctx, "ada@example.com", "correct-pass"); err != nil {
		t.Fatalf("SubmitPassword failed: %v", err)
	}
	code := h.sender.lastCode(t)

	if _, err := h.engine.SubmitCode(ctx, "ada@example.com", code); err != nil {
		t.Fatalf("first SubmitCode failed: %v", err)
	}
	if _, err := h.engine.SubmitCode(ctx, "ada@example.com", code); !errors.Is(err, ErrCodeInvalidOrExpired) {
		t.Fatalf("second SubmitCode: expected ErrCodeInvalidOrExpired, got %v", err)
	}
}

func TestSubmitCodeWrongGuessDoesNotBurnCode(t *testing.T) {
	h := newTestHarness(t, nil)
	h.createAccount(t, "ada@example.com", "correct-pass")
	ctx := context.Background()

	if _, err := h.engine.SubmitPassword(ctx, "ada@example.com", "correct-pass"); err != nil {
		t.Fatalf("SubmitPassword failed: %v", err)
	}
	code := h.sender.lastCode(t)

	wrong := "000000"
	if wrong == code {
		wrong = "000001"
	}
	if _, err := h.engine.SubmitCode(ctx, "ada@example.com", wrong); !errors.Is(err, ErrCodeInvalidOrExpired) {
		t.Fatalf("wrong guess: expected ErrCodeInvalidOrExpired, got %v", err)
	}

	if _, err := h.engine.SubmitCode(ctx, "ada@example.com", code); err != nil {
		t.Fatalf("real code rejected after a wrong guess: %v", err)
	}
}

func TestSubmitCodeUnknownIdentifier(t *testing.T) {
	h := newTestHarness(t, nil)

	if _, err := h.engine.SubmitCode(context.Background(), "nobody@example.com", "123456"); !errors.Is(err, ErrInvalidUser) {
		t.Fatalf("expected ErrInvalidUser, got %v", err)
	}
}

func TestSubmitCodeExpired(t *testing.T) {
	h := newTestHarness(t, nil)
	h.createAccount(t, "ada@example.com", "correct-pass")
	ctx := context.Background()

	if _, err := h.engine.SubmitPassword(ctx, "ada@example.com", "correct-pass"); err != nil {
		t.Fatalf("SubmitPassword failed: %v", err)
	}
	code := h.sender.lastCode(t)

	h.redis.FastForward(6 * time.Minute)

	if _, err := h.engine.SubmitCode(ctx, "ada@example.com", code); !errors.Is(err, ErrCodeInvalidOrExpired) {
		t.Fatalf("expired code: expected ErrCodeInvalidOrExpired, got %v", err)
	}
}

func TestResendCodeSupersedesOldCode(t *testing.T) {
	h := newTestHarness(t, nil)
	h.createAccount(t, "ada@example.com", "correct-pass")
	ctx := context.Background()

	if _, err := h.engine.SubmitPassword(ctx, "ada@example.com", "correct-pass"); err != nil {
		t.Fatalf("SubmitPassword failed: %v", err)
	}
	first := h.sender.lastCode(t)

	if _, err := h.engine.ResendCode(ctx, "ada@example.com"); err != nil {
		t.Fatalf("ResendCode failed: %v", err)
	}
	second := h.sender.lastCode(t)
	if first == second {
		t.Fatal("resend delivered the same code")
	}

	if _, err := h.engine.SubmitCode(ctx, "ada@example.com", first); !errors.Is(err, ErrCodeInvalidOrExpired) {
		t.Fatalf("superseded code: expected ErrCodeInvalidOrExpired, got %v", err)
	}
	if _, err := h.engine.SubmitCode(ctx, "ada@example.com", second); err != nil {
		t.Fatalf("fresh code rejected: %v", err)
	}
}

func TestResendCodeGuards(t *testing.T) {
	h := newTestHarness(t, nil)
	h.createAccount(t, "ada@example.com", "correct-pass")
	ctx := context.Background()

	if _, err := h.engine.ResendCode(ctx, "nobody@example.com"); !errors.Is(err, ErrInvalidUser) {
		t.Fatalf("unknown identifier: expected ErrInvalidUser, got %v", err)
	}

	for i := 0; i < 3; i++ {
		_, _ = h.engine.SubmitPassword(ctx, "ada@example.com", "wrong-pass")
	}
	if _, err := h.engine.ResendCode(ctx, "ada@example.com"); !errors.Is(err, ErrAccountLocked) {
		t.Fatalf("locked account: expected ErrAccountLocked, got %v", err)
	}
}

func TestResendKeepsAttemptCounter(t *testing.T) {
	h := newTestHarness(t, nil)
	h.createAccount(t, "ada@example.com", "correct-pass")
	ctx := context.Background()

	if _, err := h.engine.SubmitPassword(ctx, "ada@example.com", "wrong-pass"); err == nil {
		t.Fatal("wrong password unexpectedly accepted")
	}
	if _, err := h.engine.SubmitPassword(ctx, "ada@example.com", "correct-pass"); err != nil {
		t.Fatalf("SubmitPassword failed: %v", err)
	}
	if _, err := h.engine.ResendCode(ctx, "ada@example.com"); err != nil {
		t.Fatalf("ResendCode failed: %v", err)
	}

	// Resend spent no attempts: the full budget survives and two fresh
	// failures still do not lock.
	for i := 0; i < 2; i++ {
		_, err := h.engine.SubmitPassword(ctx, "ada@example.com", "wrong-pass")
		var rej *RejectedError
		if !errors.As(err, &rej) {
			t.Fatalf("expected *RejectedError, got %v", err)
		}
		if rej.Locked {
			t.Fatalf("failure %d locked the account", i+1)
		}
	}
}

func TestAllChannelsFailedCodeRecoverableFromAudit(t *testing.T) {
	h := newTestHarness(t, nil)
	h.sender.fail = errors.New("smtp down")
	h.createAccount(t, "ada@example.com", "correct-pass")
	ctx := context.Background()

	login, err := h.engine.SubmitPassword(ctx, "ada@example.com", "correct-pass")
	if err != nil {
		t.Fatalf("SubmitPassword must succeed despite delivery failure, got %v", err)
	}
	if !login.Delivery.AllFailed() {
		t.Fatal("expected every channel to fail")
	}

	var code string
	for _, ev := range h.drainAudit() {
		if ev.EventType == auditEventCodeDeliveryFailed {
			code = ev.Metadata["code"]
		}
	}
	if code == "" {
		t.Fatal("delivery-failure audit event did not carry the code")
	}

	if _, err := h.engine.SubmitCode(ctx, "ada@example.com", code); err != nil {
		t.Fatalf("audited code rejected: %v", err)
	}
}

func TestRefreshSession(t *testing.T) {
	h := newTestHarness(t, nil)
	h.createAccount(t, "ada@example.com", "correct-pass")
	ctx := context.Background()

	if _, err := h.engine.SubmitPassword(ctx, "ada@example.com", "correct-pass"); err != nil {
		t.Fatalf("SubmitPassword failed: %v", err)
	}
	verify, err := h.engine.SubmitCode(ctx, "ada@example.com", h.sender.lastCode(t))
	if err != nil {
		t.Fatalf("SubmitCode failed: %v", err)
	}

	fresh, err := h.engine.RefreshSession(ctx, verify.Session.Token)
	if err != nil {
		t.Fatalf("RefreshSession failed: %v", err)
	}
	if fresh.SessionID == verify.Session.SessionID {
		t.Fatal("refresh reused the session id")
	}

	// The old token is deliberately not revoked.
	if _, err := h.engine.ValidateSession(ctx, verify.Session.Token); err != nil {
		t.Fatalf("old token rejected after refresh: %v", err)
	}
	if _, err := h.engine.ValidateSession(ctx, fresh.Token); err != nil {
		t.Fatalf("new token rejected: %v", err)
	}
}

func TestValidateSessionRejectsGarbage(t *testing.T) {
	h := newTestHarness(t, nil)

	for _, token := range []string{"", "garbage", "a.b.c"} {
		if _, err := h.engine.ValidateSession(context.Background(), token); !errors.Is(err, ErrSessionInvalid) {
			t.Fatalf("token %q: expected ErrSessionInvalid, got %v", token, err)
		}
	}
	if _, err := h.engine.RefreshSession(context.Background(), "garbage"); !errors.Is(err, ErrSessionInvalid) {
		t.Fatalf("refresh of garbage: expected ErrSessionInvalid, got %v", err)
	}
}

func TestEngineMetricsCounters(t *testing.T) {
	h := newTestHarness(t, nil)
	h.createAccount(t, "ada@example.com", "correct-pass")
	ctx := context.Background()

	_, _ = h.engine.SubmitPassword(ctx, "ada@example.com", "wrong-pass")
	if _, err := h.engine.SubmitPassword(ctx, "ada@example.com", "correct-pass"); err != nil {
		t.Fatalf("SubmitPassword failed: %v", err)
	}
	if _, err := h.engine.SubmitCode(ctx, "ada@example.com", h.sender.lastCode(t)); err != nil {
		t.Fatalf("SubmitCode failed: %v", err)
	}

	snap := h.engine.MetricsSnapshot()
	checks := map[MetricID]uint64{
		MetricLoginSuccess:           1,
		MetricLoginRejected:          1,
		MetricCodeIssued:             1,
		MetricVerifySuccess:          1,
		MetricSessionCreated:         1,
		MetricAccountCreationSuccess: 1,
	}
	for id, want := range checks {
		if got := snap.Counters[id]; got != want {
			t.Fatalf("counter %d = %d, want %d", id, got, want)
		}
	}
}

func TestEngineNilReceiver(t *testing.T) {
	var e *Engine
	ctx := context.Background()

	if _, err := e.SubmitPassword(ctx, "a@b.c", "pw"); !errors.Is(err, ErrEngineNotReady) {
		t.Fatalf("expected ErrEngineNotReady, got %v", err)
	}
	if _, err := e.SubmitCode(ctx, "a@b.c", "123456"); !errors.Is(err, ErrEngineNotReady) {
		t.Fatalf("expected ErrEngineNotReady, got %v", err)
	}
	if _, err := e.ValidateSession(ctx, "tok"); !errors.Is(err, ErrEngineNotReady) {
		t.Fatalf("expected ErrEngineNotReady, got %v", err)
	}
	e.Close()
}
