package execution

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nerrad567/pinctl-core/internal/audit"
	"github.com/nerrad567/pinctl-core/internal/command"
	"github.com/nerrad567/pinctl-core/internal/device"
	"github.com/nerrad567/pinctl-core/internal/gateway"
	"github.com/nerrad567/pinctl-core/internal/infrastructure/config"
	"github.com/nerrad567/pinctl-core/internal/infrastructure/database"
	_ "github.com/nerrad567/pinctl-core/migrations"
)

const owner = "user-1"

// ─── Fakes ──────────────────────────────────────────────────────────────────

// fakeDispatcher records requests and returns err. delay holds each
// dispatch so concurrent callers overlap.
type fakeDispatcher struct {
	mu       sync.Mutex
	err      error
	delay    time.Duration
	requests []gateway.Request
	ctxErrs  []error

	inFlight    atomic.Int32
	maxInFlight atomic.Int32
}

func (f *fakeDispatcher) Dispatch(ctx context.Context, req gateway.Request) error {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		peak := f.maxInFlight.Load()
		if n <= peak || f.maxInFlight.CompareAndSwap(peak, n) {
			break
		}
	}

	if f.delay > 0 {
		time.Sleep(f.delay)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	f.ctxErrs = append(f.ctxErrs, ctx.Err())
	return f.err
}

func (f *fakeDispatcher) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

type failingStatusStore struct{ err error }

func (s failingStatusStore) SetDeviceStatus(context.Context, string, bool) error { return s.err }

type failingAuditStore struct{ err error }

func (s failingAuditStore) Create(context.Context, *audit.Entry) error { return s.err }

type metricsCall struct {
	deviceID, commandID, action string
	success                     bool
}

type fakeMetrics struct {
	mu         sync.Mutex
	executions []metricsCall
	statuses   []bool
}

func (m *fakeMetrics) RecordExecution(deviceID, commandID, action string, success bool, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.executions = append(m.executions, metricsCall{deviceID, commandID, action, success})
}

func (m *fakeMetrics) RecordDeviceStatus(_ string, status bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statuses = append(m.statuses, status)
}

// ─── Helpers ────────────────────────────────────────────────────────────────

type stack struct {
	devices  *device.Registry
	deviceDB *device.SQLiteRepository
	commands *command.Service
	logs     *audit.SQLiteRepository
	gateway  *fakeDispatcher
	executor *Executor
}

func setupStack(t *testing.T) *stack {
	t.Helper()

	db, err := database.OpenMemory()
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // test cleanup
	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	s := &stack{
		deviceDB: device.NewSQLiteRepository(db.DB),
		commands: command.NewService(command.NewSQLiteRepository(db.DB)),
		logs:     audit.NewSQLiteRepository(db.DB),
		gateway:  &fakeDispatcher{},
	}
	s.devices = device.NewRegistry(s.deviceDB)
	s.executor = NewExecutor(s.gateway, NewReconciler(s.devices), NewAuditRecorder(s.logs), nil)
	return s
}

// seedDevice creates DEV_LED_01-style output device on pin 13, status false.
func (s *stack) seedDevice(t *testing.T, refID string) *device.Device {
	t.Helper()
	d := &device.Device{OwnerID: owner, Name: "LED " + refID, Pin: 13, Type: device.TypeOutput, RefID: refID}
	if err := s.devices.CreateDevice(context.Background(), d); err != nil {
		t.Fatalf("CreateDevice(%s) error = %v", refID, err)
	}
	return d
}

func (s *stack) seedCommand(t *testing.T, dev *device.Device, refID string, action command.Action) *command.Command {
	t.Helper()
	c := &command.Command{DeviceID: dev.ID, RefID: refID, Label: "Cmd " + refID, Action: action}
	if err := s.commands.CreateCommand(context.Background(), c); err != nil {
		t.Fatalf("CreateCommand(%s) error = %v", refID, err)
	}
	return c
}

// storedStatus reads the status straight from the store, bypassing the cache.
func (s *stack) storedStatus(t *testing.T, id string) bool {
	t.Helper()
	d, err := s.deviceDB.GetByID(context.Background(), id)
	if err != nil {
		t.Fatalf("GetByID(%s) error = %v", id, err)
	}
	return d.Status
}

func (s *stack) entries(t *testing.T) []audit.Entry {
	t.Helper()
	result, err := s.logs.List(context.Background(), audit.Filter{OwnerID: owner, Limit: audit.MaxLimit})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	return result.Entries
}

func httpGateway(t *testing.T, status int, body string) gateway.Dispatcher {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return gateway.NewHTTPClient(config.GatewayConfig{URL: srv.URL, Token: "test", Timeout: 5})
}

// ─── Execution outcomes ─────────────────────────────────────────────────────

// Gateway accepts HIGH: status becomes true, one successful entry.
func TestExecute_HighActivates(t *testing.T) {
	s := setupStack(t)
	s.executor.gateway = httpGateway(t, http.StatusOK, "")
	dev := s.seedDevice(t, "DEV_LED_01")
	cmd := s.seedCommand(t, dev, "CMD_ON_01", command.ActionHigh)

	result, err := s.executor.Execute(context.Background(), Actor{ID: owner}, dev, cmd)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !result.Success || result.ErrorMessage != "" {
		t.Errorf("result = %+v, want success", result)
	}
	if result.Status == nil || !*result.Status {
		t.Errorf("result.Status = %v, want true", result.Status)
	}
	if !s.storedStatus(t, dev.ID) {
		t.Error("stored status = false, want true")
	}

	entries := s.entries(t)
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}
	e := entries[0]
	if !e.Success || e.ErrorMessage != "" || e.ID != result.LogID {
		t.Errorf("entry = %+v, want success with id %s", e, result.LogID)
	}
	if *e.CommandID != cmd.ID || *e.DeviceID != dev.ID || e.OwnerID != owner {
		t.Errorf("entry references = %v/%v/%s", *e.CommandID, *e.DeviceID, e.OwnerID)
	}
}

// Gateway answers 500 {"error":"timeout"}: status unchanged, failed entry.
func TestExecute_GatewayErrorLeavesStatus(t *testing.T) {
	s := setupStack(t)
	s.executor.gateway = httpGateway(t, http.StatusInternalServerError, `{"error":"timeout"}`)
	dev := s.seedDevice(t, "DEV_LED_01")
	cmd := s.seedCommand(t, dev, "CMD_ON_01", command.ActionHigh)

	result, err := s.executor.Execute(context.Background(), Actor{ID: owner}, dev, cmd)
	if err != nil {
		t.Fatalf("Execute() error = %v, dispatch failures are not errors", err)
	}
	if result.Success || result.ErrorMessage != "timeout" || result.Status != nil {
		t.Errorf("result = %+v, want failure with message timeout", result)
	}
	if s.storedStatus(t, dev.ID) {
		t.Error("stored status changed on failure")
	}

	entries := s.entries(t)
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}
	if entries[0].Success || entries[0].ErrorMessage != "timeout" {
		t.Errorf("entry = %+v, want failure with message timeout", entries[0])
	}
}

// LOW on an active device turns it off.
func TestExecute_LowDeactivates(t *testing.T) {
	s := setupStack(t)
	dev := s.seedDevice(t, "DEV_LED_01")
	on := s.seedCommand(t, dev, "CMD_ON_01", command.ActionHigh)
	off := s.seedCommand(t, dev, "CMD_OFF_01", command.ActionLow)

	if _, err := s.executor.Execute(context.Background(), Actor{ID: owner}, dev, on); err != nil {
		t.Fatalf("Execute(on) error = %v", err)
	}
	if !s.storedStatus(t, dev.ID) {
		t.Fatal("device should be active before LOW")
	}

	result, err := s.executor.Execute(context.Background(), Actor{ID: owner}, dev, off)
	if err != nil {
		t.Fatalf("Execute(off) error = %v", err)
	}
	if result.Status == nil || *result.Status {
		t.Errorf("result.Status = %v, want false", result.Status)
	}
	if s.storedStatus(t, dev.ID) {
		t.Error("stored status = true after LOW")
	}
	if n := len(s.entries(t)); n != 2 {
		t.Errorf("got %d entries, want 2", n)
	}
}

func TestExecute_StatusFollowsAction(t *testing.T) {
	tests := []struct {
		action command.Action
		value  int
		want   bool
	}{
		{command.ActionHigh, 0, true},
		{command.ActionLow, 0, false},
		{command.ActionAnalog, 200, false},
		{command.ActionPWM, 128, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.action), func(t *testing.T) {
			s := setupStack(t)
			dev := s.seedDevice(t, "DEV_X")
			if err := s.devices.SetDeviceStatus(context.Background(), dev.ID, !tt.want); err != nil {
				t.Fatalf("SetDeviceStatus() error = %v", err)
			}
			cmd := &command.Command{DeviceID: dev.ID, RefID: "CMD_X", Label: "x", Action: tt.action, Value: tt.value}
			if err := s.commands.CreateCommand(context.Background(), cmd); err != nil {
				t.Fatalf("CreateCommand() error = %v", err)
			}

			if _, err := s.executor.Execute(context.Background(), Actor{ID: owner}, dev, cmd); err != nil {
				t.Fatalf("Execute() error = %v", err)
			}
			if got := s.storedStatus(t, dev.ID); got != tt.want {
				t.Errorf("status = %v, want %v", got, tt.want)
			}
		})
	}
}

// ─── Preconditions ──────────────────────────────────────────────────────────

func TestExecute_Preconditions(t *testing.T) {
	s := setupStack(t)
	dev := s.seedDevice(t, "DEV_A")
	other := s.seedDevice(t, "DEV_B")
	cmd := s.seedCommand(t, dev, "CMD_A", command.ActionHigh)

	tests := []struct {
		name    string
		actor   Actor
		dev     *device.Device
		cmd     *command.Command
		wantErr error
	}{
		{"stranger", Actor{ID: "user-2"}, dev, cmd, ErrNotOwner},
		{"anonymous", Actor{}, dev, cmd, ErrNotOwner},
		{"command of another device", Actor{ID: owner}, other, cmd, ErrCommandMismatch},
		{"nil device", Actor{ID: owner}, nil, cmd, ErrMissingTarget},
		{"nil command", Actor{ID: owner}, dev, nil, ErrMissingTarget},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.executor.Execute(context.Background(), tt.actor, tt.dev, tt.cmd)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Execute() error = %v, want %v", err, tt.wantErr)
			}
		})
	}

	if s.gateway.calls() != 0 {
		t.Errorf("gateway called %d times, want 0", s.gateway.calls())
	}
	if n := len(s.entries(t)); n != 0 {
		t.Errorf("got %d entries, want 0 for rejected executions", n)
	}
	if s.storedStatus(t, dev.ID) {
		t.Error("status changed by a rejected execution")
	}
}

// ─── Partial failures ───────────────────────────────────────────────────────

func TestExecute_GenericMessageWithoutGatewayText(t *testing.T) {
	s := setupStack(t)
	s.gateway.err = &gateway.DispatchError{StatusCode: http.StatusBadGateway}
	dev := s.seedDevice(t, "DEV_A")
	cmd := s.seedCommand(t, dev, "CMD_A", command.ActionHigh)

	result, err := s.executor.Execute(context.Background(), Actor{ID: owner}, dev, cmd)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if result.ErrorMessage != gateway.GenericFailureMessage {
		t.Errorf("ErrorMessage = %q, want %q", result.ErrorMessage, gateway.GenericFailureMessage)
	}
	if got := s.entries(t)[0].ErrorMessage; got != gateway.GenericFailureMessage {
		t.Errorf("entry message = %q, want generic", got)
	}
}

func TestExecute_ReconcileFailureStillAudited(t *testing.T) {
	s := setupStack(t)
	storeErr := errors.New("database is locked")
	s.executor.reconciler = NewReconciler(failingStatusStore{err: storeErr})
	dev := s.seedDevice(t, "DEV_A")
	cmd := s.seedCommand(t, dev, "CMD_A", command.ActionHigh)

	result, err := s.executor.Execute(context.Background(), Actor{ID: owner}, dev, cmd)

	var pe *PersistenceError
	if !errors.As(err, &pe) || pe.Op != OpReconcile {
		t.Fatalf("Execute() error = %v, want reconcile PersistenceError", err)
	}
	if !errors.Is(err, storeErr) {
		t.Error("PersistenceError should wrap the store error")
	}
	if !result.Success || result.Status != nil || result.LogID == "" {
		t.Errorf("result = %+v, want success without status but with log id", result)
	}

	entries := s.entries(t)
	if len(entries) != 1 || !entries[0].Success {
		t.Errorf("entries = %+v, want one successful entry", entries)
	}
	if s.gateway.calls() != 1 {
		t.Errorf("gateway called %d times, want 1 (no retry)", s.gateway.calls())
	}
}

func TestExecute_AuditFailureSurfaced(t *testing.T) {
	s := setupStack(t)
	s.executor.recorder = NewAuditRecorder(failingAuditStore{err: errors.New("disk full")})
	dev := s.seedDevice(t, "DEV_A")
	cmd := s.seedCommand(t, dev, "CMD_A", command.ActionHigh)

	result, err := s.executor.Execute(context.Background(), Actor{ID: owner}, dev, cmd)

	var pe *PersistenceError
	if !errors.As(err, &pe) || pe.Op != OpAudit {
		t.Fatalf("Execute() error = %v, want audit PersistenceError", err)
	}
	if !result.Success || result.LogID != "" {
		t.Errorf("result = %+v, want success without log id", result)
	}
	if !s.storedStatus(t, dev.ID) {
		t.Error("status should be reconciled even when the audit write fails")
	}
	if s.gateway.calls() != 1 {
		t.Errorf("gateway called %d times, want 1 (no retry)", s.gateway.calls())
	}
}

func TestExecute_AuditFailureAfterDispatchFailure(t *testing.T) {
	s := setupStack(t)
	s.gateway.err = &gateway.DispatchError{StatusCode: 500, Message: "device offline"}
	s.executor.recorder = NewAuditRecorder(failingAuditStore{err: errors.New("disk full")})
	dev := s.seedDevice(t, "DEV_A")
	cmd := s.seedCommand(t, dev, "CMD_A", command.ActionHigh)

	result, err := s.executor.Execute(context.Background(), Actor{ID: owner}, dev, cmd)

	var pe *PersistenceError
	if !errors.As(err, &pe) || pe.Op != OpAudit {
		t.Fatalf("Execute() error = %v, want audit PersistenceError", err)
	}
	if result.Success || result.ErrorMessage != "device offline" {
		t.Errorf("result = %+v, want the dispatch failure preserved", result)
	}
}

func TestExecute_BothWritesFail(t *testing.T) {
	s := setupStack(t)
	s.executor.reconciler = NewReconciler(failingStatusStore{err: errors.New("locked")})
	s.executor.recorder = NewAuditRecorder(failingAuditStore{err: errors.New("disk full")})
	dev := s.seedDevice(t, "DEV_A")
	cmd := s.seedCommand(t, dev, "CMD_A", command.ActionHigh)

	_, err := s.executor.Execute(context.Background(), Actor{ID: owner}, dev, cmd)

	joined, ok := err.(interface{ Unwrap() []error })
	if !ok {
		t.Fatalf("Execute() error = %T, want joined errors", err)
	}
	ops := map[string]bool{}
	for _, e := range joined.Unwrap() {
		var pe *PersistenceError
		if errors.As(e, &pe) {
			ops[pe.Op] = true
		}
	}
	if !ops[OpReconcile] || !ops[OpAudit] {
		t.Errorf("joined ops = %v, want reconcile and audit", ops)
	}
}

// ─── Cancellation, locking, metrics ─────────────────────────────────────────

func TestExecute_IgnoresCallerCancellation(t *testing.T) {
	s := setupStack(t)
	dev := s.seedDevice(t, "DEV_A")
	cmd := s.seedCommand(t, dev, "CMD_A", command.ActionHigh)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := s.executor.Execute(ctx, Actor{ID: owner}, dev, cmd)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !result.Success {
		t.Errorf("result = %+v, want success", result)
	}
	if s.gateway.ctxErrs[0] != nil {
		t.Errorf("dispatch saw ctx error %v, want detached context", s.gateway.ctxErrs[0])
	}
	if n := len(s.entries(t)); n != 1 {
		t.Errorf("got %d entries, want 1", n)
	}
}

func TestExecute_SerializesPerDevice(t *testing.T) {
	s := setupStack(t)
	s.gateway.delay = 10 * time.Millisecond
	dev := s.seedDevice(t, "DEV_A")
	on := s.seedCommand(t, dev, "CMD_ON", command.ActionHigh)
	off := s.seedCommand(t, dev, "CMD_OFF", command.ActionLow)

	const runs = 8
	var wg sync.WaitGroup
	for i := 0; i < runs; i++ {
		cmd := on
		if i%2 == 1 {
			cmd = off
		}
		wg.Add(1)
		go func(c *command.Command) {
			defer wg.Done()
			if _, err := s.executor.Execute(context.Background(), Actor{ID: owner}, dev, c); err != nil {
				t.Errorf("Execute() error = %v", err)
			}
		}(cmd)
	}
	wg.Wait()

	if peak := s.gateway.maxInFlight.Load(); peak != 1 {
		t.Errorf("peak concurrent dispatches = %d, want 1", peak)
	}
	if n := len(s.entries(t)); n != runs {
		t.Errorf("got %d entries, want %d", n, runs)
	}

	// The stored status matches the last dispatched command.
	last := s.gateway.requests[len(s.gateway.requests)-1]
	want := last.CommandID == on.ID
	if got := s.storedStatus(t, dev.ID); got != want {
		t.Errorf("status = %v, want %v from last dispatch", got, want)
	}
	if s.executor.locks.size() != 0 {
		t.Errorf("lock table holds %d keys after all executions", s.executor.locks.size())
	}
}

func TestExecute_SerializationDisabled(t *testing.T) {
	s := setupStack(t)
	s.executor.SetSerializePerDevice(false)
	dev := s.seedDevice(t, "DEV_A")
	cmd := s.seedCommand(t, dev, "CMD_A", command.ActionHigh)

	if _, err := s.executor.Execute(context.Background(), Actor{ID: owner}, dev, cmd); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if s.executor.locks != nil {
		t.Error("locks should be nil when serialisation is off")
	}
}

func TestExecute_RecordsMetrics(t *testing.T) {
	s := setupStack(t)
	metrics := &fakeMetrics{}
	s.executor.SetMetrics(metrics)
	dev := s.seedDevice(t, "DEV_A")
	cmd := s.seedCommand(t, dev, "CMD_A", command.ActionHigh)

	if _, err := s.executor.Execute(context.Background(), Actor{ID: owner}, dev, cmd); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	s.gateway.err = errors.New("unreachable")
	if _, err := s.executor.Execute(context.Background(), Actor{ID: owner}, dev, cmd); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	want := []metricsCall{
		{dev.ID, cmd.ID, "HIGH", true},
		{dev.ID, cmd.ID, "HIGH", false},
	}
	if len(metrics.executions) != len(want) {
		t.Fatalf("executions = %+v, want %d", metrics.executions, len(want))
	}
	for i := range want {
		if metrics.executions[i] != want[i] {
			t.Errorf("executions[%d] = %+v, want %+v", i, metrics.executions[i], want[i])
		}
	}
	if len(metrics.statuses) != 1 || !metrics.statuses[0] {
		t.Errorf("statuses = %v, want [true] (failures do not reconcile)", metrics.statuses)
	}
}
