// Command sync-producer publishes sync requests onto the Kafka queue,
// either once or repeatedly at a fixed interval. Useful for scheduling
// re-syncs from cron without touching the HTTP API.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/IBM/sarama"
)

// SyncRequest mirrors the consumer's message format. An empty platform
// requests a sync of all the user's platforms.
type SyncRequest struct {
	UserID   string `json:"user_id"`
	Platform string `json:"platform,omitempty"`
}

func main() {
	// Command line flags
	brokers := flag.String("brokers", "localhost:9094", "Kafka brokers (comma-separated)")
	topic := flag.String("topic", "sync-requests", "Kafka topic")
	users := flag.String("users", "", "User IDs to sync (comma-separated)")
	platform := flag.String("platform", "", "Platform to sync (empty = all platforms)")
	interval := flag.Duration("interval", 0, "Repeat interval (0 = publish once and exit)")
	flag.Parse()

	userIDs := splitNonEmpty(*users)
	if len(userIDs) == 0 {
		log.Fatal("at least one user ID is required (-users)")
	}

	brokerList := strings.Split(*brokers, ",")

	// Configure Sarama producer
	config := sarama.NewConfig()
	config.Producer.RequiredAcks = sarama.WaitForLocal
	config.Producer.Compression = sarama.CompressionSnappy
	config.Producer.Return.Successes = true

	producer, err := sarama.NewSyncProducer(brokerList, config)
	if err != nil {
		log.Fatalf("Failed to create producer: %v", err)
	}
	defer producer.Close()

	publish := func() {
		for _, userID := range userIDs {
			req := SyncRequest{UserID: userID, Platform: *platform}
			data, err := json.Marshal(req)
			if err != nil {
				log.Printf("Failed to marshal request for %s: %v", userID, err)
				continue
			}

			msg := &sarama.ProducerMessage{
				Topic: *topic,
				Key:   sarama.StringEncoder(userID),
				Value: sarama.ByteEncoder(data),
			}
			partition, offset, err := producer.SendMessage(msg)
			if err != nil {
				log.Printf("Failed to publish request for %s: %v", userID, err)
				continue
			}
			fmt.Printf("published sync request user=%s platform=%q partition=%d offset=%d\n",
				userID, *platform, partition, offset)
		}
	}

	publish()
	if *interval == 0 {
		return
	}

	fmt.Printf("republishing every %s, press Ctrl+C to stop\n", *interval)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()

	for {
		select {
		case <-sigChan:
			fmt.Println("\nshutting down")
			return
		case <-ticker.C:
			publish()
		}
	}
}

func splitNonEmpty(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
