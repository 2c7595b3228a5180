package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
)

// EngagementEvent mirrors the wire format consumed by the server
type EngagementEvent struct {
	UserID    string `json:"user_id"`
	Kind      string `json:"kind"`
	ContentID string `json:"content_id,omitempty"`
	Source    string `json:"source,omitempty"`
}

var engagementKinds = []string{"post", "answer", "like", "comment", "share"}

// kindWeights skews traffic toward lightweight engagements the way a
// real community behaves: far more likes and comments than posts.
var kindWeights = []int{5, 10, 45, 30, 10}

func pickKind() string {
	total := 0
	for _, w := range kindWeights {
		total += w
	}
	n := rand.Intn(total)
	for i, w := range kindWeights {
		if n < w {
			return engagementKinds[i]
		}
		n -= w
	}
	return engagementKinds[len(engagementKinds)-1]
}

// targeted reports whether the kind references a content item
func targeted(kind string) bool {
	return kind != "post"
}

func main() {
	// Command line flags
	brokers := flag.String("brokers", "localhost:9094", "Kafka brokers (comma-separated)")
	topic := flag.String("topic", "engagement-events", "Kafka topic")
	totalUsers := flag.Int("users", 500, "Number of distinct users to simulate")
	totalContents := flag.Int("contents", 200, "Number of distinct content items to reference")
	eventsPerSecond := flag.Int("rate", 100, "Events per second")
	duration := flag.Duration("duration", 0, "Duration to run (0 = forever)")
	flag.Parse()

	brokerList := strings.Split(*brokers, ",")

	fmt.Println("Engagement event producer")
	fmt.Printf("  Brokers:     %s\n", *brokers)
	fmt.Printf("  Topic:       %s\n", *topic)
	fmt.Printf("  Users:       %d\n", *totalUsers)
	fmt.Printf("  Contents:    %d\n", *totalContents)
	fmt.Printf("  Events/sec:  %d\n", *eventsPerSecond)
	fmt.Println()

	// Configure Sarama producer
	config := sarama.NewConfig()
	config.Producer.RequiredAcks = sarama.WaitForLocal
	config.Producer.Compression = sarama.CompressionSnappy
	config.Producer.Flush.Frequency = 100 * time.Millisecond
	config.Producer.Flush.Messages = 100
	config.Producer.Return.Successes = true
	config.Producer.Return.Errors = true

	// Create producer
	producer, err := sarama.NewAsyncProducer(brokerList, config)
	if err != nil {
		log.Fatalf("Failed to create producer: %v", err)
	}
	defer producer.Close()

	// Handle producer errors and successes
	var successCount, errorCount int64
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		for range producer.Successes() {
			atomic.AddInt64(&successCount, 1)
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		for err := range producer.Errors() {
			atomic.AddInt64(&errorCount, 1)
			log.Printf("Producer error: %v", err)
		}
	}()

	// Handle shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	done := make(chan struct{})

	// Simulated identity pools. IDs are stable for the lifetime of the
	// run so the same users keep accumulating points.
	userIDs := make([]string, *totalUsers)
	for i := range userIDs {
		userIDs[i] = uuid.New().String()
	}
	contentIDs := make([]string, *totalContents)
	for i := range contentIDs {
		contentIDs[i] = uuid.New().String()
	}

	// Send message helper
	sendEvent := func(event EngagementEvent) {
		data, err := json.Marshal(event)
		if err != nil {
			log.Printf("Failed to marshal message: %v", err)
			return
		}

		msg := &sarama.ProducerMessage{
			Topic: *topic,
			Key:   sarama.StringEncoder(event.UserID),
			Value: sarama.ByteEncoder(data),
		}

		select {
		case producer.Input() <- msg:
		case <-done:
			return
		}
	}

	fmt.Println("Press Ctrl+C to stop")
	fmt.Println()

	interval := time.Second / time.Duration(*eventsPerSecond)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	statsTicker := time.NewTicker(5 * time.Second)
	defer statsTicker.Stop()

	var endTime time.Time
	if *duration > 0 {
		endTime = time.Now().Add(*duration)
	}

	var eventCount int64

	shutdown := func(reason string) {
		fmt.Printf("\n%s\n", reason)
		close(done)
		producer.AsyncClose()
		wg.Wait()
		fmt.Printf("Completed. Sent: %d, Errors: %d\n", atomic.LoadInt64(&successCount), atomic.LoadInt64(&errorCount))
	}

	for {
		select {
		case <-sigChan:
			shutdown("Shutting down...")
			return

		case <-ticker.C:
			if *duration > 0 && time.Now().After(endTime) {
				shutdown("Duration reached, shutting down...")
				return
			}

			kind := pickKind()
			event := EngagementEvent{
				UserID: userIDs[rand.Intn(len(userIDs))],
				Kind:   kind,
				Source: "event-producer",
			}
			if targeted(kind) {
				event.ContentID = contentIDs[rand.Intn(len(contentIDs))]
			}
			sendEvent(event)
			atomic.AddInt64(&eventCount, 1)

		case <-statsTicker.C:
			events := atomic.LoadInt64(&eventCount)
			success := atomic.LoadInt64(&successCount)
			errors := atomic.LoadInt64(&errorCount)
			fmt.Printf("[%s] Events: %d | Sent: %d | Errors: %d\n",
				time.Now().Format("15:04:05"),
				events,
				success,
				errors,
			)
		}
	}
}
