package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/wrobell/btzen/internal/errs"
)

func TestSession_WaitConnectedBlocksUntilSetConnected(t *testing.T) {
	s := New(nil)
	s.Start()

	done := make(chan error, 1)
	go func() {
		done <- s.WaitConnected(context.Background(), "AA:BB:CC:DD:EE:FF")
	}()

	select {
	case <-done:
		t.Fatal("WaitConnected returned before SetConnected")
	case <-time.After(20 * time.Millisecond):
	}

	s.SetConnected("AA:BB:CC:DD:EE:FF")
	assert.NoError(t, <-done)
	assert.True(t, s.Connected("AA:BB:CC:DD:EE:FF"))
}

func TestSession_SetDisconnectedRearmsGate(t *testing.T) {
	s := New(nil)
	s.Start()
	s.SetConnected("AA:BB:CC:DD:EE:FF")
	assert.True(t, s.Connected("AA:BB:CC:DD:EE:FF"))

	s.SetDisconnected("AA:BB:CC:DD:EE:FF")
	assert.False(t, s.Connected("AA:BB:CC:DD:EE:FF"))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := s.WaitConnected(ctx, "AA:BB:CC:DD:EE:FF")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestSession_WaitConnectedRejectsInactiveSession(t *testing.T) {
	s := New(nil)
	err := s.WaitConnected(context.Background(), "AA:BB:CC:DD:EE:FF")
	assert.ErrorIs(t, err, errs.ErrCall)
}

func TestSession_CancelDeviceTasksCancelsOnlyThatMAC(t *testing.T) {
	s := New(nil)
	s.Start()

	ctxA, _ := s.WithDeviceContext(context.Background(), "AA:AA:AA:AA:AA:AA")
	ctxB, _ := s.WithDeviceContext(context.Background(), "BB:BB:BB:BB:BB:BB")

	s.CancelDeviceTasks("AA:AA:AA:AA:AA:AA")

	assert.Error(t, ctxA.Err())
	assert.NoError(t, ctxB.Err())
}

func TestSession_StopCancelsEveryDeviceContext(t *testing.T) {
	s := New(nil)
	s.Start()
	ctxA, _ := s.WithDeviceContext(context.Background(), "AA:AA:AA:AA:AA:AA")
	ctxB, _ := s.WithDeviceContext(context.Background(), "BB:BB:BB:BB:BB:BB")

	s.Stop()

	assert.Error(t, ctxA.Err())
	assert.Error(t, ctxB.Err())
	assert.False(t, s.IsActive())
	select {
	case <-s.Done():
	default:
		t.Fatal("Done channel not closed after Stop")
	}
}

func TestSession_TranslateCancel_ConnectionCauseBecomesConnectionError(t *testing.T) {
	s := New(nil)
	s.Start()

	ctx, _ := s.WithDeviceContext(context.Background(), "AA:AA:AA:AA:AA:AA")
	s.CancelDeviceTasks("AA:AA:AA:AA:AA:AA")

	translated := s.TranslateCancel(ctx, ctx.Err())
	assert.ErrorIs(t, translated, errs.ErrConnection)
}

func TestSession_TranslateCancel_SessionStoppedCauseIsUntranslated(t *testing.T) {
	s := New(nil)
	s.Start()

	ctx, _ := s.WithDeviceContext(context.Background(), "AA:AA:AA:AA:AA:AA")
	s.Stop()

	translated := s.TranslateCancel(ctx, ctx.Err())
	assert.ErrorIs(t, translated, context.Canceled)
	assert.NotErrorIs(t, translated, errs.ErrConnection)
}

func TestSession_WithDeviceContext_CancelFuncPrunesItsOwnEntry(t *testing.T) {
	s := New(nil)
	s.Start()

	_, cancel := s.WithDeviceContext(context.Background(), "AA:AA:AA:AA:AA:AA")
	cancel()

	s.mu.Lock()
	_, ok := s.deviceCancel["AA:AA:AA:AA:AA:AA"]
	s.mu.Unlock()
	assert.False(t, ok, "cancelling a device context must remove its map entry")

	// A second, still-live context for the same MAC must survive a
	// sibling's normal-completion cancel.
	ctxB, cancelB := s.WithDeviceContext(context.Background(), "AA:AA:AA:AA:AA:AA")
	ctxC, cancelC := s.WithDeviceContext(context.Background(), "AA:AA:AA:AA:AA:AA")
	defer cancelC()
	cancelB()
	assert.NoError(t, ctxC.Err())
	_ = ctxB
}

func TestSession_TranslateCancel_PassesThroughNonCancellationErrors(t *testing.T) {
	s := New(nil)
	other := errs.New(errs.DataRead, "boom")
	assert.Same(t, other, s.TranslateCancel(context.Background(), other))
	assert.NoError(t, s.TranslateCancel(context.Background(), nil))
}
