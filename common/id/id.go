package id

import (
	"sync"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
)

var (
	node *snowflake.Node
	once sync.Once
)

// Init initializes the Snowflake node with the given node ID.
func Init(nodeID int64) error {
	var err error
	once.Do(func() {
		node, err = snowflake.NewNode(nodeID)
	})
	return err
}

// New generates a new time-ordered int64 ID using the Snowflake algorithm.
// Used for webhook delivery ids, which only need to be unique within this process.
// Falls back to node 1 when Init was never called.
func New() int64 {
	_ = Init(1)
	return node.Generate().Int64()
}

// NewSessionID mints the correlation id for one agent run.
// UUIDv7 carries a millisecond timestamp plus 74 random bits, so ids minted
// by concurrent requests do not coordinate through any shared counter.
func NewSessionID() string {
	u, err := uuid.NewV7()
	if err != nil {
		u = uuid.New()
	}
	return "session-" + u.String()
}
