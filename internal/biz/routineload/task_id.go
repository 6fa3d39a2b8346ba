package routineload

import (
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// TaskID 任务唯一标识，可比较，可作为 map key
type TaskID uuid.UUID

func NewTaskID() TaskID {
	return TaskID(uuid.New())
}

func (id TaskID) Hi() uint64 { return binary.BigEndian.Uint64(id[:8]) }
func (id TaskID) Lo() uint64 { return binary.BigEndian.Uint64(id[8:]) }

// String 返回 "<hi>-<lo>" 十六进制形式，同时作为事务 label
func (id TaskID) String() string {
	return strconv.FormatUint(id.Hi(), 16) + "-" + strconv.FormatUint(id.Lo(), 16)
}

func (id TaskID) UUID() uuid.UUID { return uuid.UUID(id) }

func (id TaskID) IsZero() bool { return id == TaskID{} }

// ParseTaskID 支持 "<hi>-<lo>" 与标准 uuid 两种格式
func ParseTaskID(s string) (TaskID, error) {
	if strings.Count(s, "-") == 1 {
		parts := strings.SplitN(s, "-", 2)
		hi, err := strconv.ParseUint(parts[0], 16, 64)
		if err != nil {
			return TaskID{}, fmt.Errorf("invalid task id %q: %w", s, err)
		}
		lo, err := strconv.ParseUint(parts[1], 16, 64)
		if err != nil {
			return TaskID{}, fmt.Errorf("invalid task id %q: %w", s, err)
		}
		var id TaskID
		binary.BigEndian.PutUint64(id[:8], hi)
		binary.BigEndian.PutUint64(id[8:], lo)
		return id, nil
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return TaskID{}, fmt.Errorf("invalid task id %q: %w", s, err)
	}
	return TaskID(u), nil
}
