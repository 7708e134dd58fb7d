package proactive

import (
	"context"
	"testing"
	"time"

	"github.com/haivist/emma/pkg/bus"
)

func TestServicePollDeliversWhenDue(t *testing.T) {
	msgBus := bus.NewMessageBus()
	svc := NewService(time.Second, "")
	svc.SetCheck(func(now time.Time) (string, bool) {
		return "thinking of you!", true
	})
	svc.SetDelivery(msgBus, "terminal", "local")

	svc.poll(time.Now())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	msg, ok := msgBus.ConsumeOutbound(ctx)
	if !ok {
		t.Fatal("expected outbound message")
	}
	if msg.Content != "thinking of you!" {
		t.Fatalf("unexpected content %q", msg.Content)
	}
	if !msg.Proactive {
		t.Fatal("proactive flag must be set")
	}
	if msg.Channel != "terminal" || msg.ChatID != "local" {
		t.Fatalf("unexpected route %s:%s", msg.Channel, msg.ChatID)
	}
}

func TestServicePollQuietWhenNotDue(t *testing.T) {
	msgBus := bus.NewMessageBus()
	svc := NewService(time.Second, "")
	svc.SetCheck(func(now time.Time) (string, bool) {
		return "", false
	})
	svc.SetDelivery(msgBus, "terminal", "local")

	svc.poll(time.Now())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, ok := msgBus.ConsumeOutbound(ctx); ok {
		t.Fatal("expected no outbound message")
	}
}

func TestServiceScheduleGate(t *testing.T) {
	msgBus := bus.NewMessageBus()
	// Only minute 30 of each hour is inside the window.
	svc := NewService(time.Second, "30 * * * *")
	calls := 0
	svc.SetCheck(func(now time.Time) (string, bool) {
		calls++
		return "hello", true
	})
	svc.SetDelivery(msgBus, "terminal", "local")

	svc.poll(time.Date(2026, 8, 29, 10, 15, 0, 0, time.UTC))
	if calls != 0 {
		t.Fatal("check must not run outside the schedule window")
	}

	svc.poll(time.Date(2026, 8, 29, 10, 30, 0, 0, time.UTC))
	if calls != 1 {
		t.Fatalf("expected 1 check inside the window, got %d", calls)
	}
}

func TestServiceNoCheckConfigured(t *testing.T) {
	svc := NewService(time.Second, "")
	// Must not panic without a check or bus.
	svc.poll(time.Now())
}

func TestServiceStopIdempotent(t *testing.T) {
	svc := NewService(time.Hour, "")
	svc.Start()
	svc.Stop()
	svc.Stop()
}
