package bus

import "testing"

func TestQueueOverflowRejects(t *testing.T) {
	q := NewQueue(2)
	if !q.TryEnqueue(InboundMessage{ChatID: "1"}) {
		t.Fatal("expected first enqueue to succeed")
	}
	if !q.TryEnqueue(InboundMessage{ChatID: "2"}) {
		t.Fatal("expected second enqueue to succeed")
	}
	if q.TryEnqueue(InboundMessage{ChatID: "3"}) {
		t.Fatal("expected third enqueue to overflow")
	}
}

func TestQueuePreservesOrder(t *testing.T) {
	q := NewQueue(4)
	q.TryEnqueue(InboundMessage{ChatID: "a"})
	q.TryEnqueue(InboundMessage{ChatID: "b"})
	q.TryEnqueue(InboundMessage{ChatID: "c"})
	q.Close()

	var got []string
	for msg := range q.Receive() {
		got = append(got, msg.ChatID)
	}
	want := []string{"a", "b", "c"}
	for i, w := range want {
		if got[i] != w {
			t.Fatalf("order mismatch at %d: got %v want %v", i, got, want)
		}
	}
}
