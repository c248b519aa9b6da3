// internal/pkg/idgen/idgen.go
package idgen

import "github.com/google/uuid"

// Generator 生成全局唯一的实体 ID
type Generator interface {
	Generate() string
}

type UUIDGenerator struct{}

func (UUIDGenerator) Generate() string {
	return uuid.NewString()
}
