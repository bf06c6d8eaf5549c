package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUser_IsLibrarian(t *testing.T) {
	tests := []struct {
		name string
		user User
		want bool
	}{
		{"member", User{Role: RoleMember}, false},
		{"librarian", User{Role: RoleLibrarian}, true},
		{"root member", User{Role: RoleMember, IsRoot: true}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.user.IsLibrarian())
		})
	}
}

