package api

import (
	"testing"
)

func addTestSubscriber(h *NotificationHandler, id string, buf int) chan Notification {
	ch := make(chan Notification, buf)
	h.mu.Lock()
	h.subscribers[id] = ch
	h.mu.Unlock()
	return ch
}

func drainNotifications(ch chan Notification) []Notification {
	var out []Notification
	for {
		select {
		case n := <-ch:
			out = append(out, n)
		default:
			return out
		}
	}
}

func TestBroadcastDeliversToAllSubscribers(t *testing.T) {
	h := NewNotificationHandler(nil)
	first := addTestSubscriber(h, "first", 10)
	second := addTestSubscriber(h, "second", 10)

	h.BroadcastNotification(Notification{Type: "inbox_refreshed", Message: "hi"})

	for name, ch := range map[string]chan Notification{"first": first, "second": second} {
		got := drainNotifications(ch)
		if len(got) != 1 {
			t.Fatalf("subscriber %s received %d notifications, want 1", name, len(got))
		}
		if got[0].ID == "" {
			t.Errorf("subscriber %s: notification ID not stamped", name)
		}
		if got[0].Time.IsZero() {
			t.Errorf("subscriber %s: notification time not stamped", name)
		}
	}
}

func TestBroadcastSkipsFullChannel(t *testing.T) {
	h := NewNotificationHandler(nil)
	full := addTestSubscriber(h, "full", 1)
	full <- Notification{Type: "filler"}
	healthy := addTestSubscriber(h, "healthy", 10)

	// Must return without blocking on the saturated subscriber.
	h.BroadcastNotification(Notification{Type: "inbox_refreshed"})

	if got := drainNotifications(healthy); len(got) != 1 {
		t.Fatalf("healthy subscriber received %d notifications, want 1", len(got))
	}
}

func TestRecordFetchRaisesNewMailOnGrowth(t *testing.T) {
	h := NewNotificationHandler(nil)
	ch := addTestSubscriber(h, "watcher", 10)

	h.RecordFetch("user@example.com", 5, 0)
	got := drainNotifications(ch)
	if len(got) != 1 || got[0].Type != "inbox_refreshed" {
		t.Fatalf("first fetch events = %+v, want single inbox_refreshed", got)
	}

	h.RecordFetch("user@example.com", 8, 1)
	got = drainNotifications(ch)
	if len(got) != 2 {
		t.Fatalf("second fetch produced %d events, want 2", len(got))
	}
	if got[0].Type != "inbox_refreshed" || got[1].Type != "new_mail" {
		t.Fatalf("second fetch types = %s, %s", got[0].Type, got[1].Type)
	}
	if count, _ := got[1].Data["count"].(int); count != 3 {
		t.Errorf("new_mail count = %v, want 3", got[1].Data["count"])
	}

	// Same total again: no new_mail.
	h.RecordFetch("user@example.com", 8, 0)
	got = drainNotifications(ch)
	if len(got) != 1 || got[0].Type != "inbox_refreshed" {
		t.Fatalf("unchanged fetch events = %+v, want single inbox_refreshed", got)
	}
}

func TestSubscriberCount(t *testing.T) {
	h := NewNotificationHandler(nil)
	if h.SubscriberCount() != 0 {
		t.Fatalf("fresh handler count = %d, want 0", h.SubscriberCount())
	}

	addTestSubscriber(h, "one", 1)
	addTestSubscriber(h, "two", 1)
	if h.SubscriberCount() != 2 {
		t.Fatalf("count = %d, want 2", h.SubscriberCount())
	}
}
