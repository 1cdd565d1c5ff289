package pubsub

import (
	"sync"
	"testing"
	"time"
)

func TestNew(t *testing.T) {
	ps := New()
	if ps == nil {
		t.Fatal("New() returned nil")
	}
	if ps.subscribers == nil {
		t.Error("subscribers map should be initialized")
	}
}

func TestSubscribe(t *testing.T) {
	ps := New()

	sub := ps.Subscribe(TopicArtDMX, "", 10)
	if sub == nil {
		t.Fatal("Subscribe() returned nil")
	}
	if sub.Topic != TopicArtDMX {
		t.Errorf("Expected topic %s, got %s", TopicArtDMX, sub.Topic)
	}
	if sub.Filter != "" {
		t.Errorf("Expected empty filter, got '%s'", sub.Filter)
	}
	if cap(sub.Channel) != 10 {
		t.Errorf("Expected channel buffer size 10, got %d", cap(sub.Channel))
	}

	// Check subscriber count
	if count := ps.SubscriberCount(TopicArtDMX); count != 1 {
		t.Errorf("Expected 1 subscriber, got %d", count)
	}
}

func TestSubscribe_WithFilter(t *testing.T) {
	ps := New()

	sub := ps.Subscribe(TopicReceiverData, "0:1:2", 5)
	if sub.Filter != "0:1:2" {
		t.Errorf("Expected filter '0:1:2', got '%s'", sub.Filter)
	}
}

func TestSubscribe_MultipleSubscribers(t *testing.T) {
	ps := New()

	ps.Subscribe(TopicArtDMX, "", 10)
	ps.Subscribe(TopicArtDMX, "", 10)
	ps.Subscribe(TopicReceiverData, "", 10)

	if count := ps.SubscriberCount(TopicArtDMX); count != 2 {
		t.Errorf("Expected 2 DMX subscribers, got %d", count)
	}
	if count := ps.SubscriberCount(TopicReceiverData); count != 1 {
		t.Errorf("Expected 1 receiver data subscriber, got %d", count)
	}
}

func TestUnsubscribe(t *testing.T) {
	ps := New()

	sub := ps.Subscribe(TopicArtDMX, "", 10)
	if count := ps.SubscriberCount(TopicArtDMX); count != 1 {
		t.Errorf("Expected 1 subscriber before unsubscribe, got %d", count)
	}

	ps.Unsubscribe(sub)

	if count := ps.SubscriberCount(TopicArtDMX); count != 0 {
		t.Errorf("Expected 0 subscribers after unsubscribe, got %d", count)
	}

	// Channel should be closed
	select {
	case _, ok := <-sub.Channel:
		if ok {
			t.Error("Channel should be closed after unsubscribe")
		}
	default:
		t.Error("Channel should be closed and readable")
	}
}

func TestUnsubscribe_NonExistent(t *testing.T) {
	ps := New()

	// Create a fake subscriber that doesn't exist in pubsub
	fakeSub := &Subscriber{
		ID:      "fake-id",
		Topic:   TopicArtDMX,
		Channel: make(chan interface{}, 1),
	}

	// Should not panic
	ps.Unsubscribe(fakeSub)
}

func TestPublish(t *testing.T) {
	ps := New()

	sub := ps.Subscribe(TopicArtDMX, "", 10)

	// Publish a message
	ps.Publish(TopicArtDMX, "", "test message")

	// Should receive the message
	select {
	case msg := <-sub.Channel:
		if msg != "test message" {
			t.Errorf("Expected 'test message', got '%v'", msg)
		}
	case <-time.After(100 * time.Millisecond):
		t.Error("Timed out waiting for message")
	}
}

func TestPublish_WithFilter(t *testing.T) {
	ps := New()

	// Subscriber with specific filter
	subWithFilter := ps.Subscribe(TopicReceiverData, "0:0:1", 10)
	// Subscriber with different filter
	subOtherFilter := ps.Subscribe(TopicReceiverData, "0:0:2", 10)
	// Subscriber with no filter (should receive all)
	subNoFilter := ps.Subscribe(TopicReceiverData, "", 10)

	// Publish to 0:0:1
	ps.Publish(TopicReceiverData, "0:0:1", "frame for 0:0:1")

	// subWithFilter should receive
	select {
	case msg := <-subWithFilter.Channel:
		if msg != "frame for 0:0:1" {
			t.Errorf("Expected 'frame for 0:0:1', got '%v'", msg)
		}
	case <-time.After(100 * time.Millisecond):
		t.Error("subWithFilter should have received the message")
	}

	// subOtherFilter should NOT receive
	select {
	case <-subOtherFilter.Channel:
		t.Error("subOtherFilter should not have received the message")
	case <-time.After(50 * time.Millisecond):
		// Expected - no message
	}

	// subNoFilter should receive (empty filter matches all)
	select {
	case msg := <-subNoFilter.Channel:
		if msg != "frame for 0:0:1" {
			t.Errorf("Expected 'frame for 0:0:1', got '%v'", msg)
		}
	case <-time.After(100 * time.Millisecond):
		t.Error("subNoFilter should have received the message")
	}
}

func TestPublish_EmptyFilter(t *testing.T) {
	ps := New()

	// Subscriber with specific filter
	subWithFilter := ps.Subscribe(TopicReceiverData, "0:0:1", 10)

	// Publish with empty filter (should match all)
	ps.Publish(TopicReceiverData, "", "broadcast message")

	// Should receive because filter is empty
	select {
	case msg := <-subWithFilter.Channel:
		if msg != "broadcast message" {
			t.Errorf("Expected 'broadcast message', got '%v'", msg)
		}
	case <-time.After(100 * time.Millisecond):
		t.Error("Should have received message with empty publish filter")
	}
}

func TestPublish_ChannelFull(t *testing.T) {
	ps := New()

	// Create subscriber with buffer size 1
	sub := ps.Subscribe(TopicArtDMX, "", 1)

	// Fill the channel
	ps.Publish(TopicArtDMX, "", "msg1")

	// This should not block (non-blocking publish)
	done := make(chan bool, 1)
	go func() {
		ps.Publish(TopicArtDMX, "", "msg2") // Should be dropped
		done <- true
	}()

	select {
	case <-done:
		// Success - didn't block
	case <-time.After(100 * time.Millisecond):
		t.Error("Publish blocked on full channel")
	}

	// Should only have first message
	msg := <-sub.Channel
	if msg != "msg1" {
		t.Errorf("Expected 'msg1', got '%v'", msg)
	}
}

func TestPublishAll(t *testing.T) {
	ps := New()

	sub1 := ps.Subscribe(TopicArtDMX, "filter1", 10)
	sub2 := ps.Subscribe(TopicArtDMX, "filter2", 10)
	sub3 := ps.Subscribe(TopicArtDMX, "", 10)

	// PublishAll should send to all subscribers regardless of filter
	ps.PublishAll(TopicArtDMX, "broadcast")

	// All should receive
	for i, sub := range []*Subscriber{sub1, sub2, sub3} {
		select {
		case msg := <-sub.Channel:
			if msg != "broadcast" {
				t.Errorf("Subscriber %d: Expected 'broadcast', got '%v'", i, msg)
			}
		case <-time.After(100 * time.Millisecond):
			t.Errorf("Subscriber %d timed out waiting for message", i)
		}
	}
}

func TestPublishAll_ChannelFull(t *testing.T) {
	ps := New()

	// Create subscriber with buffer size 1
	sub := ps.Subscribe(TopicArtDMX, "", 1)

	// Fill the channel
	ps.PublishAll(TopicArtDMX, "msg1")

	// This should not block
	done := make(chan bool, 1)
	go func() {
		ps.PublishAll(TopicArtDMX, "msg2")
		done <- true
	}()

	select {
	case <-done:
		// Success
	case <-time.After(100 * time.Millisecond):
		t.Error("PublishAll blocked on full channel")
	}

	// Drain first message
	<-sub.Channel
}

func TestSubscriberCount(t *testing.T) {
	ps := New()

	// Initially zero
	if count := ps.SubscriberCount(TopicArtDMX); count != 0 {
		t.Errorf("Expected 0 subscribers initially, got %d", count)
	}

	// Add subscribers
	sub1 := ps.Subscribe(TopicArtDMX, "", 10)
	sub2 := ps.Subscribe(TopicArtDMX, "", 10)

	if count := ps.SubscriberCount(TopicArtDMX); count != 2 {
		t.Errorf("Expected 2 subscribers, got %d", count)
	}

	// Remove one
	ps.Unsubscribe(sub1)
	if count := ps.SubscriberCount(TopicArtDMX); count != 1 {
		t.Errorf("Expected 1 subscriber after unsubscribe, got %d", count)
	}

	// Remove remaining
	ps.Unsubscribe(sub2)
	if count := ps.SubscriberCount(TopicArtDMX); count != 0 {
		t.Errorf("Expected 0 subscribers after all unsubscribed, got %d", count)
	}
}

func TestConcurrentOperations(t *testing.T) {
	ps := New()
	var wg sync.WaitGroup

	// Concurrent subscriptions
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sub := ps.Subscribe(TopicArtDMX, "", 10)
			// Read a message or timeout
			select {
			case <-sub.Channel:
			case <-time.After(200 * time.Millisecond):
			}
		}()
	}

	// Concurrent publishes
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ps.Publish(TopicArtDMX, "", i)
		}(i)
	}

	// Wait for all goroutines
	wg.Wait()
}

func TestTopicConstants(t *testing.T) {
	// Verify topic constants are distinct
	topics := []Topic{
		TopicArtDMX,
		TopicReceiverData,
		TopicControllerUpdated,
	}

	seen := make(map[Topic]bool)
	for _, topic := range topics {
		if seen[topic] {
			t.Errorf("Duplicate topic: %s", topic)
		}
		seen[topic] = true
	}
}

func TestSubscribe_UniqueIDs(t *testing.T) {
	ps := New()

	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		sub := ps.Subscribe(TopicArtDMX, "", 1)
		if sub.ID == "" {
			t.Fatal("Subscriber ID should not be empty")
		}
		if seen[sub.ID] {
			t.Fatalf("Duplicate subscriber ID %s", sub.ID)
		}
		seen[sub.ID] = true
	}
}

func TestPublish_ConcurrentUnsubscribe(t *testing.T) {
	ps := New()
	var wg sync.WaitGroup

	subs := make([]*Subscriber, 20)
	for i := range subs {
		subs[i] = ps.Subscribe(TopicReceiverData, "0:0:5", 1)
	}

	// Publishing while subscribers leave must never send on a closed channel
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 500; i++ {
			ps.Publish(TopicReceiverData, "0:0:5", i)
		}
	}()
	go func() {
		defer wg.Done()
		for _, sub := range subs {
			ps.Unsubscribe(sub)
		}
	}()
	wg.Wait()

	if count := ps.SubscriberCount(TopicReceiverData); count != 0 {
		t.Errorf("Expected 0 subscribers, got %d", count)
	}
}
