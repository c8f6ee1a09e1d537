// Command transcripttail follows the bridge's Kafka topics and prints
// transcript turns and call outcomes as they are published.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/segmentio/kafka-go"

	"ai-voice-bridge-service/internal/models"
)

func truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen]) + "..."
}

func main() {
	brokers := flag.String("brokers", "localhost:9092", "Kafka brokers (comma separated)")
	transcriptTopic := flag.String("transcript-topic", "call.transcript", "Transcript topic")
	outcomeTopic := flag.String("outcome-topic", "call.outcome", "Outcome topic")
	since := flag.Duration("since", time.Hour, "Replay messages newer than this")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var wg sync.WaitGroup
	for _, topic := range []string{*transcriptTopic, *outcomeTopic} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			consume(ctx, strings.Split(*brokers, ","), topic, *since)
		}()
	}
	wg.Wait()
}

func consume(ctx context.Context, brokers []string, topic string, since time.Duration) {
	// Partition reader without a consumer group, so every tail sees every message.
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:   brokers,
		Topic:     topic,
		Partition: 0,
		MinBytes:  1,
		MaxBytes:  10e6,
	})
	defer reader.Close()

	if err := reader.SetOffsetAt(ctx, time.Now().Add(-since)); err != nil {
		log.Printf("Seek on %s failed, reading from the current offset: %v", topic, err)
	}
	log.Printf("Consuming from Kafka topic: %s partition 0", topic)

	for {
		msg, err := reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Printf("Kafka read error on %s: %v", topic, err)
			time.Sleep(time.Second)
			continue
		}
		show(msg)
	}
}

func header(msg kafka.Message, key string) string {
	for _, h := range msg.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func show(msg kafka.Message) {
	switch header(msg, "eventType") {
	case models.EventTypeTranscript:
		var ev models.TranscriptEvent
		if err := json.Unmarshal(msg.Value, &ev); err != nil {
			log.Printf("JSON unmarshal error: %v", err)
			return
		}
		log.Printf("[%s #%d] %-5s %s", ev.SessionID, ev.Sequence, ev.Role, truncate(ev.Text, 80))

	case models.EventTypeOutcome:
		var ev models.OutcomeEvent
		if err := json.Unmarshal(msg.Value, &ev); err != nil {
			log.Printf("JSON unmarshal error: %v", err)
			return
		}
		o := ev.Outcome
		date := "-"
		if o.DateISO != nil {
			date = *o.DateISO
		}
		log.Printf("[%s] outcome record=%s status=%s intent=%s date=%s turns=%d",
			o.SessionID, ev.RecordID, o.CallStatus, o.PaymentIntent, date, len(o.Transcript))

	default:
		log.Printf("[%s] %s", string(msg.Key), truncate(string(msg.Value), 120))
	}
}
