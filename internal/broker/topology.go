// Package broker describes and provisions the Redis Streams topology and
// publishes envelopes onto it.
package broker

import (
	"context"
	"errors"
	"strings"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// Stream field names.
const (
	FieldRoutingKey = "routing_key"
	FieldEnvelope   = "envelope"
	FieldError      = "error"
)

// Group is a consumer group bound to a stream.
type Group struct {
	Stream string `yaml:"stream"`
	Name   string `yaml:"name"`
	// Start is the id the group starts reading from; "$" for new entries only.
	Start string `yaml:"start"`
}

// Topology lists the streams and groups the service uses.
type Topology struct {
	Commands   string  `yaml:"commands"`
	Events     string  `yaml:"events"`
	DeadLetter string  `yaml:"dead_letter"`
	MaxLen     int64   `yaml:"max_len"`
	Groups     []Group `yaml:"groups"`
}

// DefaultTopology derives stream names from prefix.
func DefaultTopology(prefix, group string) Topology {
	prefix = strings.TrimSuffix(strings.TrimSpace(prefix), ".")
	if prefix == "" {
		prefix = "wms"
	}
	if group == "" {
		group = "wms-core"
	}
	commands := prefix + ".commands"
	return Topology{
		Commands:   commands,
		Events:     prefix + ".events",
		DeadLetter: prefix + ".dead-letter",
		MaxLen:     100000,
		Groups:     []Group{{Stream: commands, Name: group, Start: "0"}},
	}
}

// Validate checks that every stream is named and groups reference a stream.
func (t Topology) Validate() error {
	if t.Commands == "" || t.Events == "" || t.DeadLetter == "" {
		return errors.New("broker: commands, events and dead_letter streams are required")
	}
	for _, group := range t.Groups {
		if group.Stream == "" || group.Name == "" {
			return errors.New("broker: group requires stream and name")
		}
	}
	return nil
}

// CommandGroup returns the consumer group reading the command stream.
func (t Topology) CommandGroup() (Group, bool) {
	for _, group := range t.Groups {
		if group.Stream == t.Commands {
			return group, true
		}
	}
	return Group{}, false
}

// Provision creates every consumer group, creating streams as needed.
// Existing groups are left alone.
func Provision(ctx context.Context, client redis.Cmdable, topology Topology, logger *zap.Logger) error {
	if client == nil {
		return errors.New("broker: nil redis client")
	}
	if err := topology.Validate(); err != nil {
		return err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	for _, group := range topology.Groups {
		start := group.Start
		if start == "" {
			start = "$"
		}
		err := client.XGroupCreateMkStream(ctx, group.Stream, group.Name, start).Err()
		if err != nil && !isBusyGroup(err) {
			return err
		}
		logger.Info("consumer group ready",
			zap.String("stream", group.Stream),
			zap.String("group", group.Name),
			zap.Bool("existing", err != nil),
		)
	}
	return nil
}

func isBusyGroup(err error) bool {
	return err != nil && strings.HasPrefix(err.Error(), "BUSYGROUP")
}
