package snowflake

import (
	"errors"
	"sync"

	"github.com/bwmarrin/snowflake"
)

var (
	node *snowflake.Node
	once sync.Once

	errInvalidMachineID    = errors.New("invalid snowflake machine id")
	errInvalidDataCenterID = errors.New("invalid snowflake datacenter id")
	errGeneratorUninitial  = errors.New("snowflake generator is not initialized")
)

// Init 初始化全局节点，datacenterID 和 machineID 都是 0~31
func Init(machineID, dataCenterID int64) error {
	var initErr error

	once.Do(func() {
		node, initErr = NewNode(machineID, dataCenterID)
	})

	return initErr
}

// NewNode 创建独立节点，测试或多实例场景使用
func NewNode(machineID, dataCenterID int64) (*snowflake.Node, error) {
	if machineID < 0 || machineID > 31 {
		return nil, errInvalidMachineID
	}
	if dataCenterID < 0 || dataCenterID > 31 {
		return nil, errInvalidDataCenterID
	}
	return snowflake.NewNode((dataCenterID << 5) | machineID)
}

// NextID 生成全局唯一 ID，用于 tick ID 和消息 ID
func NextID() (int64, error) {
	if node == nil {
		return 0, errGeneratorUninitial
	}

	return node.Generate().Int64(), nil
}
