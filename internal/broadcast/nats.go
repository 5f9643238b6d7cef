package broadcast

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
)

const subjectPrefix = "workspace.changes."

// NATSPublisher publishes changes on the subject workspace.changes.<table>.
type NATSPublisher struct {
	conn *nats.Conn
}

// ConnectNATS dials url and returns a publisher bound to the connection.
func ConnectNATS(url string) (*NATSPublisher, error) {
	nc, err := nats.Connect(url, nats.Name("project-workspace-api"))
	if err != nil {
		return nil, fmt.Errorf("nats connect failed: %w", err)
	}
	return &NATSPublisher{conn: nc}, nil
}

func NATSSubject(table string) string {
	return subjectPrefix + table
}

func (p *NATSPublisher) Publish(_ context.Context, c Change) error {
	data, err := json.Marshal(c)
	if err != nil {
		return err
	}
	return p.conn.Publish(NATSSubject(c.Table), data)
}

// Close flushes pending messages and closes the connection.
func (p *NATSPublisher) Close() {
	_ = p.conn.Drain()
}
