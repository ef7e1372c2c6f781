package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/spf13/cobra"

	"github.com/nerrad567/vimqa-core/internal/events"
	"github.com/nerrad567/vimqa-core/internal/infrastructure/logging"
	"github.com/nerrad567/vimqa-core/internal/infrastructure/mqtt"
)

func watchCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "watch [table]",
		Short: "Print change events from the broker until interrupted",
		Long: `watch subscribes to the change events published by "vimqa serve" and
prints each one as a JSON line. With a table argument only that table's
changes are shown.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			log := logging.New(cfg.Logging, version)

			client, err := mqtt.Connect(cfg.MQTT)
			if err != nil {
				return fmt.Errorf("connecting to MQTT: %w", err)
			}
			defer func() {
				if closeErr := client.Close(); closeErr != nil {
					log.Error("error closing MQTT", "error", closeErr)
				}
			}()
			client.SetLogger(log)

			topics := mqtt.Topics{Prefix: cfg.Events.TopicPrefix}
			client.SetChangeTopics(topics)
			topic := topics.AllChanges()
			if len(args) == 1 {
				topic = topics.TableChanges(args[0])
			}

			if err := client.Subscribe(topic, client.QoS(), eventPrinter(cmd.OutOrStdout())); err != nil {
				return fmt.Errorf("subscribing to %s: %w", topic, err)
			}
			log.Info("watching change events", "subscriptions", client.Subscriptions())

			<-cmd.Context().Done()
			return nil
		},
	}
}

// eventPrinter writes each decoded event to w as one JSON line.
// Payloads that are not change events are reported to the handler's caller.
func eventPrinter(w io.Writer) mqtt.MessageHandler {
	var mu sync.Mutex
	return func(topic string, payload []byte) error {
		event, err := events.Decode(payload)
		if err != nil {
			return fmt.Errorf("%s: %w", topic, err)
		}
		line, err := json.Marshal(event)
		if err != nil {
			return err
		}

		mu.Lock()
		defer mu.Unlock()
		_, err = fmt.Fprintf(w, "%s\n", line)
		return err
	}
}
