package ids

import (
	"sync"

	"github.com/yitter/idgenerator-go/idgen"
)

// Generator 雪花ID生成器
type Generator struct {
	mu  sync.Mutex
	gen *idgen.DefaultIdGenerator
}

// NewGenerator workerID 取值范围 [0, 63]
func NewGenerator(workerID uint16) *Generator {
	options := idgen.NewIdGeneratorOptions(workerID)
	options.WorkerIdBitLength = 6
	return &Generator{gen: idgen.NewDefaultIdGenerator(options)}
}

func (g *Generator) Next() uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return uint64(g.gen.NewLong())
}
