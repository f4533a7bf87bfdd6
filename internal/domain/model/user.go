package model

import (
	"fmt"
	"strings"
	"time"
)

type Role string

const (
	RoleFarmer      Role = "FARMER"
	RoleBuyer       Role = "BUYER"
	RoleVendor      Role = "VENDOR"
	RoleTransporter Role = "TRANSPORTER"
	RoleAdmin       Role = "ADMIN"
)

var Roles = []Role{RoleFarmer, RoleBuyer, RoleVendor, RoleTransporter, RoleAdmin}

func ParseRole(v string) (Role, error) {
	r := Role(strings.ToUpper(strings.TrimSpace(v)))
	for _, known := range Roles {
		if r == known {
			return r, nil
		}
	}
	return "", fmt.Errorf("unknown role %q", v)
}

// ユーザーは認証サービスの持ち物。token_versionの照合にだけ使う
type User struct {
	ID           int64     `gorm:"primaryKey;autoIncrement"`
	Role         Role      `gorm:"type:varchar(20);not null;default:'BUYER'"`
	TokenVersion int       `gorm:"not null;default:0"`
	IsActive     bool      `gorm:"not null;default:true"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
