package services

import (
	"errors"

	"gorm.io/gorm"

	"affiliate_engine/models"
)

// ErrInfluencerNotFound 账本更新时找不到目标达人
var ErrInfluencerNotFound = errors.New("达人不存在")

// 账本的并发纪律：对同一达人行的所有变更必须序列化执行
// 这里全部采用单条原子UPDATE（col = col + ?），由数据库行锁保证串行，
// 绝不允许应用层先读后写，否则并发的购买/付款会丢失更新

// ApplyPurchase 购买事件入账
// 累计佣金和未提现余额同时增加，购买数加一，转化率按新值重算
// 整条语句原子执行，转化率的重算也在同一UPDATE里完成，不存在竞态
// 注意：MySQL按SET子句从左到右求值，GORM对map键按字母序生成SET，
// conversion_rate排在total_purchases之前，表达式里读到的是自增前的旧值，
// 所以这里显式写total_purchases + 1；改列名时必须重新核对这个顺序
func ApplyPurchase(db *gorm.DB, affiliateCode string, commissionUSD float64) error {
	result := db.Model(&models.Influencer{}).
		Where("affiliate_code = ?", affiliateCode).
		UpdateColumns(map[string]interface{}{
			"total_earnings":    gorm.Expr("total_earnings + ?", commissionUSD),
			"remaining_balance": gorm.Expr("remaining_balance + ?", commissionUSD),
			"total_purchases":   gorm.Expr("total_purchases + 1"),
			"conversion_rate":   gorm.Expr("CASE WHEN total_signups > 0 THEN ROUND((total_purchases + 1) / total_signups * 100, 2) ELSE 0 END"),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrInfluencerNotFound
	}
	return nil
}

// ApplyPayoutCompletion 付款完成后扣减账本
// 已支付累加，余额扣减但不低于0（超付时截断到0是既定的宽松策略）
func ApplyPayoutCompletion(db *gorm.DB, influencerID uint, amount float64) error {
	result := db.Model(&models.Influencer{}).
		Where("id = ?", influencerID).
		UpdateColumns(map[string]interface{}{
			"total_paid":        gorm.Expr("total_paid + ?", amount),
			"remaining_balance": gorm.Expr("GREATEST(remaining_balance - ?, 0)", amount),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrInfluencerNotFound
	}
	return nil
}

// ApplyClick 点击事件计数
func ApplyClick(db *gorm.DB, affiliateCode string) error {
	return db.Model(&models.Influencer{}).
		Where("affiliate_code = ?", affiliateCode).
		UpdateColumn("total_clicks", gorm.Expr("total_clicks + 1")).Error
}

// ApplySignup 注册事件计数
// 注册数加一的同时按新注册数重算转化率
// conversion_rate按字母序排在total_signups之前，读到的是自增前的旧值，
// 所以显式写total_signups + 1，与ApplyPurchase同一套顺序假设
func ApplySignup(db *gorm.DB, affiliateCode string) error {
	return db.Model(&models.Influencer{}).
		Where("affiliate_code = ?", affiliateCode).
		UpdateColumns(map[string]interface{}{
			"total_signups":   gorm.Expr("total_signups + 1"),
			"conversion_rate": gorm.Expr("ROUND(total_purchases / (total_signups + 1) * 100, 2)"),
		}).Error
}

// ApplyQuestionnaire 问卷完成事件计数
func ApplyQuestionnaire(db *gorm.DB, affiliateCode string) error {
	return db.Model(&models.Influencer{}).
		Where("affiliate_code = ?", affiliateCode).
		UpdateColumn("total_questionnaires", gorm.Expr("total_questionnaires + 1")).Error
}

// OverwriteLedger 对账通过后整体重置账本
// 累计佣金直接覆盖为核对后的佣金合计，余额覆盖为佣金合计减去已支付（不低于0）
// 只在对账报告零差异时允许调用
// 账本本来就一致时该语句影响0行，属于正常情况，调用方已先确认达人存在
func OverwriteLedger(db *gorm.DB, influencerID uint, totalCommission float64) error {
	return db.Model(&models.Influencer{}).
		Where("id = ?", influencerID).
		UpdateColumns(map[string]interface{}{
			"total_earnings":    totalCommission,
			"remaining_balance": gorm.Expr("GREATEST(? - total_paid, 0)", totalCommission),
		}).Error
}
