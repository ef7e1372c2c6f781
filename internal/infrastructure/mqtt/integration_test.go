//go:build integration

package mqtt

import (
	"testing"
	"time"
)

// These tests need a broker at 127.0.0.1:1883:
//
//	go test -tags=integration ./internal/infrastructure/mqtt/...

func connectTest(t *testing.T, clientID string) *Client {
	t.Helper()
	cfg := testConfig()
	cfg.Broker.ClientID = clientID
	client, err := Connect(cfg)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	t.Cleanup(func() {
		client.Close() //nolint:errcheck // Test cleanup
	})
	return client
}

func TestIntegration_ChangeRoundtrip(t *testing.T) {
	topics := Topics{Prefix: "vimqa/int-test"}
	sub := connectTest(t, "vimqa-int-sub")
	pub := connectTest(t, "vimqa-int-pub")

	received := make(chan string, 1)
	err := sub.Subscribe(topics.AllChanges(), 1, func(topic string, _ []byte) error {
		received <- topic
		return nil
	})
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	if got := sub.Subscriptions(); len(got) != 1 || got[0] != topics.AllChanges() {
		t.Error("subscription not tracked")
	}

	want := topics.Change("modules", "insert")
	if err := pub.Publish(want, []byte(`{"row_id":1}`), 1, false); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	select {
	case got := <-received:
		if got != want {
			t.Errorf("received on %q, want %q", got, want)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for change event")
	}

	if err := sub.Unsubscribe(topics.AllChanges()); err != nil {
		t.Errorf("Unsubscribe() error = %v", err)
	}
	if got := sub.Subscriptions(); len(got) != 0 {
		t.Errorf("Subscriptions() = %v after unsubscribe", got)
	}
}

func TestIntegration_CloseDisconnects(t *testing.T) {
	client, err := Connect(testConfig())
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	if !client.IsConnected() {
		t.Fatal("IsConnected() = false after Connect")
	}
	if err := client.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if client.IsConnected() {
		t.Error("IsConnected() = true after Close")
	}
}
