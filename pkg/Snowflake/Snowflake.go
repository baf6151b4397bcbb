package Snowflake

import (
	"strconv"
	"sync"

	"github.com/bwmarrin/snowflake"
)

var node *snowflake.Node
var once sync.Once

func Init(workId int64) (err error) {
	node, err = snowflake.NewNode(workId)
	return
}

func GenerateId() int64 {
	once.Do(func() {
		Init(1)
	})
	return node.Generate().Int64()
}

// GenerateToken returns an id in the form used for RTSP session tokens.
func GenerateToken() string {
	return strconv.FormatInt(GenerateId(), 10)
}
