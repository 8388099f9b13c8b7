package leads

import "context"

var _ Api = (*PsqlApi)(nil)
var _ Api = (*TestApi)(nil)

type Api interface {
	Add(ctx context.Context, lead *Lead) (*Lead, error)
	GetByEmail(ctx context.Context, email string) (*Lead, error)
	Unsubscribe(ctx context.Context, email string) error
	List(ctx context.Context) ([]Lead, error)
}
