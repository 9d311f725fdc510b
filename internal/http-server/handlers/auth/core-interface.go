package auth

import (
	"context"

	"BizLink/entity"
)

type Core interface {
	RegisterUser(ctx context.Context, username, name, photo string) (*entity.UserAuth, error)
}
