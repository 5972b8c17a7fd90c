package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

// Publishes a synthetic cross-module activity event so the calendar
// ingestion path can be exercised against a local broker.
func main() {
	var (
		brokers    = flag.String("brokers", getenv("KAFKA_BROKERS", "localhost:9092"), "comma-separated kafka brokers")
		topic      = flag.String("topic", getenv("KAFKA_ACTIVITY_TOPIC", "crm.activity.scheduled.v1"), "activity topic")
		orgID      = flag.String("org-id", getenv("ORG_ID", ""), "tenant org id")
		employeeID = flag.String("employee-id", getenv("EMPLOYEE_ID", ""), "employee the activity blocks")
		title      = flag.String("title", getenv("ACTIVITY_TITLE", "Client call"), "activity title")
		module     = flag.String("module", getenv("ACTIVITY_MODULE", "crm"), "originating module")
		startsIn   = flag.Duration("starts-in", time.Hour, "offset from now to the activity start")
		length     = flag.Duration("length", 30*time.Minute, "activity duration")
		completed  = flag.Bool("completed", false, "mark the activity completed")
	)
	flag.Parse()

	if strings.TrimSpace(*orgID) == "" {
		fatal("ORG_ID is required")
	}
	if strings.TrimSpace(*employeeID) == "" {
		fatal("EMPLOYEE_ID is required")
	}

	start := time.Now().UTC().Add(*startsIn).Truncate(time.Minute)
	payload, err := json.Marshal(map[string]any{
		"activity_id": uuid.NewString(),
		"org_id":      *orgID,
		"employee_id": *employeeID,
		"title":       *title,
		"module":      *module,
		"starts_at":   start.Format(time.RFC3339),
		"ends_at":     start.Add(*length).Format(time.RFC3339),
		"completed":   *completed,
	})
	if err != nil {
		fatal(err.Error())
	}

	writer := &kafka.Writer{
		Addr:     kafka.TCP(strings.Split(*brokers, ",")...),
		Topic:    *topic,
		Balancer: &kafka.Hash{},
	}
	defer writer.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(*orgID),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "event_id", Value: []byte(uuid.NewString())},
			{Key: "event_type", Value: []byte(*topic)},
		},
	}); err != nil {
		fatal(err.Error())
	}

	fmt.Printf("published to %s: %s\n", *topic, payload)
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func fatal(msg string) {
	fmt.Fprintln(os.Stderr, msg)
	os.Exit(2)
}
