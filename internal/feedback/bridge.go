package feedback

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/weavekit/weaver/internal/template"
)

// DefaultFailureSubject is the NATS subject deployment failures arrive on.
const DefaultFailureSubject = "weaver.deploy.failed"

// failureEvent is the wire shape published by the deployment edge.
type failureEvent struct {
	DeploymentError
	Workflow *template.Workflow `json:"workflow,omitempty"`
}

// BridgeConfig holds NATS connection settings for the failure bridge.
type BridgeConfig struct {
	URL     string        `yaml:"url"`
	Subject string        `yaml:"subject"`
	Timeout time.Duration `yaml:"timeout"`
}

// Bridge subscribes to deployment-failure events and feeds them into the
// loop. It reconnects automatically; the loop itself never blocks on NATS.
type Bridge struct {
	conn *nats.Conn
	sub  *nats.Subscription
	loop *Loop
}

// NewBridge connects to NATS and subscribes to the failure subject.
func NewBridge(cfg BridgeConfig, loop *Loop) (*Bridge, error) {
	if cfg.URL == "" {
		cfg.URL = nats.DefaultURL
	}
	if cfg.Subject == "" {
		cfg.Subject = DefaultFailureSubject
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}

	conn, err := nats.Connect(cfg.URL,
		nats.Timeout(cfg.Timeout),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Printf("[Feedback] NATS disconnected: %v", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Printf("[Feedback] NATS reconnected to %s", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to nats: %w", err)
	}

	b := &Bridge{conn: conn, loop: loop}
	sub, err := conn.Subscribe(cfg.Subject, b.handle)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", cfg.Subject, err)
	}
	b.sub = sub

	log.Printf("[Feedback] Listening for deployment failures on %s", cfg.Subject)
	return b, nil
}

func (b *Bridge) handle(msg *nats.Msg) {
	var event failureEvent
	if err := json.Unmarshal(msg.Data, &event); err != nil {
		log.Printf("[Feedback] Dropping malformed failure event: %v", err)
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	outcome := b.loop.HandleFailure(ctx, event.Workflow, event.DeploymentError)
	if outcome.Fixed {
		log.Printf("[Feedback] Repaired workflow %s via %v", event.WorkflowID, outcome.Strategies)
	}
}

// Close drains the subscription and closes the connection.
func (b *Bridge) Close() {
	if b.sub != nil {
		b.sub.Unsubscribe()
	}
	if b.conn != nil {
		b.conn.Close()
	}
}
