package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SafeBagDeposit records cash moved from the drawer to the safe. The
// drawer count at closure is expected to be short by exactly the day's
// deposits.
type SafeBagDeposit struct {
	ID          uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	LocationID  uuid.UUID       `gorm:"column:location_id;type:uuid;not null;index"`
	Amount      decimal.Decimal `gorm:"column:amount;type:numeric(12,2);not null"`
	DepositedAt time.Time       `gorm:"column:deposited_at;not null;index"`
	ByCashier   string          `gorm:"column:by_cashier;not null"`
	BagNumber   string          `gorm:"column:bag_number"`
	CreatedAt   time.Time       `gorm:"column:created_at;autoCreateTime"`
}
