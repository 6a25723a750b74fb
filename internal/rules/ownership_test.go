package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAuthorize(t *testing.T) {
	tests := []struct {
		name          string
		acting, owner string
		want          bool
	}{
		{"exact", "Dr. Rao", "Dr. Rao", true},
		{"case", "dr. rao", "DR. RAO", true},
		{"whitespace", "  Dr. Rao ", "Dr. Rao", true},
		{"different", "Dr. Chen", "Dr. Rao", false},
		{"empty acting", "", "Dr. Rao", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Authorize(tt.acting, tt.owner))
			assert.Equal(t, tt.want, Authorize(tt.owner, tt.acting))
		})
	}
}

func TestAuthorizeOwner(t *testing.T) {
	// 双方 ID 已知时以 ID 为准，即使姓名相同
	assert.True(t, AuthorizeOwner(Actor{ID: "u1", Name: "A"}, Owner{ID: "u1", Name: "B"}))
	assert.False(t, AuthorizeOwner(Actor{ID: "u2", Name: "Dr. Rao"}, Owner{ID: "u1", Name: "Dr. Rao"}))

	// 没有 owner id 的旧数据按姓名比较
	assert.True(t, AuthorizeOwner(Actor{ID: "u1", Name: "dr. rao"}, Owner{Name: "Dr. Rao"}))
	assert.False(t, AuthorizeOwner(Actor{ID: "u1", Name: "Dr. Chen"}, Owner{Name: "Dr. Rao"}))
}
