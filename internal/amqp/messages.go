package amqp

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Refreshable source names carried in LedgerRefreshMessage.Sources.
const (
	SourceEVM    = "evm"
	SourceSolana = "solana"
	SourcePrice  = "price"
)

// ErrUnknownSource is returned for a source name no cache is registered under.
var ErrUnknownSource = errors.New("unknown refresh source")

// LedgerRefreshMessage asks the worker to drop cached data and re-export the
// ledger. An empty Sources list means every source.
type LedgerRefreshMessage struct {
	Sources     []string  `json:"sources,omitempty"`
	RequestedAt time.Time `json:"requested_at"`
}

// NewLedgerRefreshMessage creates a refresh request stamped with the current time.
func NewLedgerRefreshMessage(sources ...string) *LedgerRefreshMessage {
	return &LedgerRefreshMessage{
		Sources:     sources,
		RequestedAt: time.Now().UTC(),
	}
}

// Includes reports whether the message targets source.
func (m *LedgerRefreshMessage) Includes(source string) bool {
	if len(m.Sources) == 0 {
		return true
	}
	for _, s := range m.Sources {
		if s == source {
			return true
		}
	}
	return false
}

// Validate rejects unknown source names.
func (m *LedgerRefreshMessage) Validate() error {
	for _, s := range m.Sources {
		switch s {
		case SourceEVM, SourceSolana, SourcePrice:
		default:
			return fmt.Errorf("%w %q", ErrUnknownSource, s)
		}
	}
	return nil
}

// ToJSON converts the message to JSON bytes
func (m *LedgerRefreshMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// LedgerRefreshMessageFromJSON decodes and validates a message body.
func LedgerRefreshMessageFromJSON(data []byte) (*LedgerRefreshMessage, error) {
	var msg LedgerRefreshMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	return &msg, nil
}
