// Package connection models live WebSocket delivery channels.
package connection

// Connection maps a live delivery channel to its owning user. Records carry
// a TTL so stale channels age out of the table.
type Connection struct {
	ConnectionID string `dynamodbav:"connectionId" json:"connectionId"`
	UserID       string `dynamodbav:"userId" json:"userId"`
	Endpoint     string `dynamodbav:"endpoint,omitempty" json:"endpoint,omitempty"`
	CreatedAt    int64  `dynamodbav:"createdAt" json:"createdAt"`
	TTL          int64  `dynamodbav:"ttl,omitempty" json:"-"`
}
