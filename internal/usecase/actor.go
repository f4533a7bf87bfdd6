package usecase

import "agrimarket/internal/domain/model"

// 操作した人（JWTから取り出す）
type Actor struct {
	UserID int64
	Role   model.Role
}

// 決済コールバックなど人以外の操作
var systemActor = Actor{UserID: model.SystemActorID, Role: model.RoleAdmin}

func (a Actor) valid() bool {
	if a.UserID <= 0 {
		return false
	}
	_, err := model.ParseRole(string(a.Role))
	return err == nil
}
