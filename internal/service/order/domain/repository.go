// internal/service/order/domain/repository.go
package domain

import (
	"context"
	"time"
)

// OrderRepository 定义了订单聚合的持久化接口。
// 它位于领域层，但由基础设施层实现。
type OrderRepository interface {
	Create(ctx context.Context, order *Order) error

	// FindByID 找不到时返回 ErrNotFound
	FindByID(ctx context.Context, id string) (*Order, error)
	FindBySessionRef(ctx context.Context, sessionRef string) (*Order, error)

	AttachSessionRef(ctx context.Context, id, sessionRef string) error

	// MarkPaid 条件更新 unpaid→paid，并在会话引用为空时回填。
	// 返回 true 表示本次调用完成了状态翻转；订单已支付时返回 false, nil。
	MarkPaid(ctx context.Context, id, sessionRef string, at time.Time) (bool, error)

	// UpdateFulfillmentStatus 无条件覆盖履约状态
	UpdateFulfillmentStatus(ctx context.Context, id string, status FulfillmentStatus, at time.Time) error

	// ClaimGuestOrders 把邮箱精确匹配且无主的订单归到 ownerID 名下，返回关联数量
	ClaimGuestOrders(ctx context.Context, email, ownerID string, at time.Time) (int64, error)

	ListByOwner(ctx context.Context, ownerID string) ([]*Order, error)
	List(ctx context.Context, limit, offset int) ([]*Order, error)
}

// Profile 是账号资料，这里只读，用于管理员鉴权
type Profile struct {
	ID        string
	Role      string
	FirstName string
	LastName  string
	Phone     string
}

func (p *Profile) IsAdmin() bool { return p != nil && p.Role == "admin" }

type ProfileRepository interface {
	// FindByID 找不到时返回 ErrNotFound
	FindByID(ctx context.Context, id string) (*Profile, error)
}
