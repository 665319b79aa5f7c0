package utils

import (
	"strings"

	"github.com/google/uuid"
)

// NewRunID 生成一次变体生成任务的ID
func NewRunID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}
