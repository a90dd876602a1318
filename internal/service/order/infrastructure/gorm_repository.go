package infrastructure

import (
	"context"
	"errors"
	"time"

	"freshdrop/internal/service/order/domain"

	pkgerrors "github.com/pkg/errors"
	"gorm.io/gorm"
)

// GormOrderRepository 是 domain.OrderRepository 的 GORM 实现
type GormOrderRepository struct {
	db *gorm.DB
}

func NewGormOrderRepository(db *gorm.DB) *GormOrderRepository {
	return &GormOrderRepository{db: db}
}

func persistErr(op string, err error) error {
	return &domain.PersistenceError{Op: op, Err: pkgerrors.Wrap(err, "orders")}
}

func (r *GormOrderRepository) Create(ctx context.Context, order *domain.Order) error {
	if err := r.db.WithContext(ctx).Create(FromDomainOrder(order)).Error; err != nil {
		return persistErr("create", err)
	}
	return nil
}

func (r *GormOrderRepository) FindByID(ctx context.Context, id string) (*domain.Order, error) {
	return r.findOne(ctx, "find_by_id", "id = ?", id)
}

func (r *GormOrderRepository) FindBySessionRef(ctx context.Context, sessionRef string) (*domain.Order, error) {
	if sessionRef == "" {
		return nil, domain.ErrNotFound
	}
	return r.findOne(ctx, "find_by_session", "stripe_checkout_session_id = ?", sessionRef)
}

func (r *GormOrderRepository) findOne(ctx context.Context, op, query string, args ...interface{}) (*domain.Order, error) {
	var model OrderModel
	err := r.db.WithContext(ctx).Where(query, args...).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, persistErr(op, err)
	}
	return ToDomainOrder(&model), nil
}

func (r *GormOrderRepository) AttachSessionRef(ctx context.Context, id, sessionRef string) error {
	res := r.db.WithContext(ctx).Model(&OrderModel{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"stripe_checkout_session_id": sessionRef,
			"updated_at":                 time.Now().UTC(),
		})
	if res.Error != nil {
		return persistErr("attach_session", res.Error)
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// MarkPaid 依赖存储的单行原子性：WHERE payment_status <> 'paid' 保证并发的重复确认只有一次生效
func (r *GormOrderRepository) MarkPaid(ctx context.Context, id, sessionRef string, at time.Time) (bool, error) {
	updates := map[string]interface{}{
		"payment_status": string(domain.PaymentPaid),
		"paid_at":        at.UTC(),
		"updated_at":     at.UTC(),
	}
	if sessionRef != "" {
		updates["stripe_checkout_session_id"] = gorm.Expr("COALESCE(stripe_checkout_session_id, ?)", sessionRef)
	}

	res := r.db.WithContext(ctx).Model(&OrderModel{}).
		Where("id = ? AND payment_status <> ?", id, string(domain.PaymentPaid)).
		Updates(updates)
	if res.Error != nil {
		return false, persistErr("mark_paid", res.Error)
	}
	if res.RowsAffected == 1 {
		return true, nil
	}

	// 没有行被更新：区分订单不存在和已支付
	var count int64
	if err := r.db.WithContext(ctx).Model(&OrderModel{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return false, persistErr("mark_paid", err)
	}
	if count == 0 {
		return false, domain.ErrNotFound
	}
	return false, nil
}

func (r *GormOrderRepository) UpdateFulfillmentStatus(ctx context.Context, id string, status domain.FulfillmentStatus, at time.Time) error {
	res := r.db.WithContext(ctx).Model(&OrderModel{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":     string(status),
			"updated_at": at.UTC(),
		})
	if res.Error != nil {
		return persistErr("update_status", res.Error)
	}
	if res.RowsAffected == 0 {
		// MySQL 在值未变化时 RowsAffected 也为 0，再确认一次是否存在
		var count int64
		if err := r.db.WithContext(ctx).Model(&OrderModel{}).Where("id = ?", id).Count(&count).Error; err != nil {
			return persistErr("update_status", err)
		}
		if count == 0 {
			return domain.ErrNotFound
		}
	}
	return nil
}

// ClaimGuestOrders 邮箱比较在 Go 里做，MySQL 的默认排序规则不区分大小写
func (r *GormOrderRepository) ClaimGuestOrders(ctx context.Context, email, ownerID string, at time.Time) (int64, error) {
	var candidates []OrderModel
	err := r.db.WithContext(ctx).
		Select("id", "customer_email").
		Where("user_id IS NULL AND customer_email = ?", email).
		Find(&candidates).Error
	if err != nil {
		return 0, persistErr("claim_guest_orders", err)
	}

	ids := make([]string, 0, len(candidates))
	for _, c := range candidates {
		if c.CustomerEmail == email {
			ids = append(ids, c.ID)
		}
	}
	if len(ids) == 0 {
		return 0, nil
	}

	res := r.db.WithContext(ctx).Model(&OrderModel{}).
		Where("id IN ? AND user_id IS NULL", ids).
		Updates(map[string]interface{}{
			"user_id":    ownerID,
			"updated_at": at.UTC(),
		})
	if res.Error != nil {
		return 0, persistErr("claim_guest_orders", res.Error)
	}
	return res.RowsAffected, nil
}

func (r *GormOrderRepository) ListByOwner(ctx context.Context, ownerID string) ([]*domain.Order, error) {
	var models []OrderModel
	err := r.db.WithContext(ctx).
		Where("user_id = ?", ownerID).
		Order("created_at DESC").Order("id").
		Find(&models).Error
	if err != nil {
		return nil, persistErr("list_by_owner", err)
	}
	return toDomainOrders(models), nil
}

func (r *GormOrderRepository) List(ctx context.Context, limit, offset int) ([]*domain.Order, error) {
	var models []OrderModel
	err := r.db.WithContext(ctx).
		Order("created_at DESC").Order("id").
		Limit(limit).Offset(offset).
		Find(&models).Error
	if err != nil {
		return nil, persistErr("list", err)
	}
	return toDomainOrders(models), nil
}

func toDomainOrders(models []OrderModel) []*domain.Order {
	out := make([]*domain.Order, 0, len(models))
	for i := range models {
		out = append(out, ToDomainOrder(&models[i]))
	}
	return out
}

// GormProfileRepository 只读访问 profiles 表
type GormProfileRepository struct {
	db *gorm.DB
}

func NewGormProfileRepository(db *gorm.DB) *GormProfileRepository {
	return &GormProfileRepository{db: db}
}

func (r *GormProfileRepository) FindByID(ctx context.Context, id string) (*domain.Profile, error) {
	var model ProfileModel
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, &domain.PersistenceError{Op: "find_profile", Err: pkgerrors.Wrap(err, "profiles")}
	}
	return ToDomainProfile(&model), nil
}
