package rules

import "strings"

// Authorize 判断 actingName 能否修改创建者姓名为
// ownerName 的记录。比较时去除首尾空格，
// 不区分大小写，不考虑其他属性
func Authorize(actingName, ownerName string) bool {
	return SameName(actingName, ownerName)
}

// SameName 按归属校验的规则比较两个姓名
func SameName(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

// Actor 当前已认证的调用者
type Actor struct {
	ID   string
	Name string
}

// Owner 记录保存的创建者信息。
// 引入 owner id 之前写入的记录 ID 为空
type Owner struct {
	ID   string
	Name string
}

// AuthorizeOwner 双方都有用户 ID 时以 ID 为准，
// 否则退回按姓名的 Authorize
func AuthorizeOwner(actor Actor, owner Owner) bool {
	if actor.ID != "" && owner.ID != "" {
		return actor.ID == owner.ID
	}
	return Authorize(actor.Name, owner.Name)
}
