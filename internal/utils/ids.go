package utils

import (
	"sync"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"github.com/segmentio/ksuid"
)

// NewID returns a random uuid used as entity primary key.
func NewID() string { return uuid.NewString() }

// IsID reports whether s has the shape of an entity id.
func IsID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil && len(s) == 36
}

// NewThreadID returns a sortable opaque id for message threads.
func NewThreadID() string { return ksuid.New().String() }

var (
	nodeOnce sync.Once
	node     *snowflake.Node
)

// SetSnowflakeNode selects the node number embedded in entry ids.  It
// must be called before the first NewEntryID to take effect.
func SetSnowflakeNode(n int64) {
	nodeOnce.Do(func() {
		var err error
		if node, err = snowflake.NewNode(n); err != nil {
			node, _ = snowflake.NewNode(1)
		}
	})
}

// NewEntryID returns a unique id for one message content entry.  Stream
// consumers de-duplicate on it.
func NewEntryID() string {
	SetSnowflakeNode(1)
	return node.Generate().String()
}
