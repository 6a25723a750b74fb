package errors

import (
	"errors"

	"gorm.io/gorm"
)

// ErrDuplicateKey 唯一索引拒绝了写入
var ErrDuplicateKey = errors.New("record violates a unique constraint")

// TranslateDB 将 Service 关心的驱动层错误映射为
// 包内哨兵错误，其他错误原样返回
func TranslateDB(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrDuplicateKey
	}
	return err
}
