package commission

import (
	"math"
	"math/rand"
	"sync"
	"time"
)

// ============================================================================
// 佣金档位引擎
// ============================================================================
//
// 按账户余额划分九个档位，区间闭合、不重叠、升序覆盖 0..∞。
// 每个档位规定单笔佣金区间 [min, max] 与当日佣金上限。
// 纯查表逻辑，唯一的不确定性来自单笔佣金的随机取值，
// 测试可通过 CalculateCommissionWith 注入种子随机源。
//
// ============================================================================

// Tier 佣金档位
type Tier struct {
	Name               string
	MinBalance         int64
	MaxBalance         int64
	MinCommission      int64
	MaxCommission      int64
	MaxTotalCommission int64 // 当日佣金上限
}

// 档位表：区间按余额升序排列，MaxBalance 含端点
var tiers = []Tier{
	{Name: "Basic", MinBalance: 0, MaxBalance: 10000, MinCommission: 20, MaxCommission: 38, MaxTotalCommission: 1000},
	{Name: "Bronze", MinBalance: 10001, MaxBalance: 30000, MinCommission: 40, MaxCommission: 80, MaxTotalCommission: 1500},
	{Name: "Silver", MinBalance: 30001, MaxBalance: 60000, MinCommission: 80, MaxCommission: 150, MaxTotalCommission: 2000},
	{Name: "Gold", MinBalance: 60001, MaxBalance: 100000, MinCommission: 150, MaxCommission: 300, MaxTotalCommission: 3000},
	{Name: "Platinum", MinBalance: 100001, MaxBalance: 200000, MinCommission: 300, MaxCommission: 600, MaxTotalCommission: 4000},
	{Name: "Diamond", MinBalance: 200001, MaxBalance: 350000, MinCommission: 600, MaxCommission: 1200, MaxTotalCommission: 5000},
	{Name: "Elite", MinBalance: 350001, MaxBalance: 500000, MinCommission: 1200, MaxCommission: 2500, MaxTotalCommission: 6000},
	{Name: "Master", MinBalance: 500001, MaxBalance: 1000000, MinCommission: 2500, MaxCommission: 6000, MaxTotalCommission: 7500},
	{Name: "Legendary", MinBalance: 1000001, MaxBalance: math.MaxInt64, MinCommission: 6000, MaxCommission: 10000, MaxTotalCommission: 9000},
}

// 兜底区间：档位表全覆盖时不会走到，留作防御
const (
	fallbackMinCommission      = int64(20)
	fallbackMaxCommission      = int64(50)
	fallbackMaxTotalCommission = int64(1000)
)

var (
	rngMu sync.Mutex
	rng   = rand.New(rand.NewSource(time.Now().UnixNano()))
)

// Tiers 返回档位表副本（只读用途）
func Tiers() []Tier {
	out := make([]Tier, len(tiers))
	copy(out, tiers)
	return out
}

// GetCommissionTier 返回余额所在档位；负余额等价于 0 档位
func GetCommissionTier(balance int64) *Tier {
	if balance < 0 {
		balance = 0
	}
	for i := range tiers {
		if balance >= tiers[i].MinBalance && balance <= tiers[i].MaxBalance {
			t := tiers[i]
			return &t
		}
	}
	return nil
}

// GetMinCommission 返回余额所在档位的单笔佣金下限
func GetMinCommission(balance int64) int64 {
	if t := GetCommissionTier(balance); t != nil {
		return t.MinCommission
	}
	return fallbackMinCommission
}

// GetMaxCommission 返回余额所在档位的单笔佣金上限
func GetMaxCommission(balance int64) int64 {
	if t := GetCommissionTier(balance); t != nil {
		return t.MaxCommission
	}
	return fallbackMaxCommission
}

// GetMaxTotalCommission 返回余额所在档位的当日佣金上限
func GetMaxTotalCommission(balance int64) int64 {
	if t := GetCommissionTier(balance); t != nil {
		return t.MaxTotalCommission
	}
	return fallbackMaxTotalCommission
}

// CalculateCommission 按余额所在档位取一笔随机佣金，区间含两端
func CalculateCommission(balance int64) int64 {
	rngMu.Lock()
	defer rngMu.Unlock()
	return CalculateCommissionWith(rng, balance)
}

// CalculateCommissionWith 使用调用方提供的随机源计算佣金，便于测试注入种子
func CalculateCommissionWith(r *rand.Rand, balance int64) int64 {
	t := GetCommissionTier(balance)
	if t == nil {
		return randBetween(r, fallbackMinCommission, fallbackMaxCommission)
	}
	return randBetween(r, t.MinCommission, t.MaxCommission)
}

func randBetween(r *rand.Rand, min, max int64) int64 {
	if max <= min {
		return min
	}
	return min + r.Int63n(max-min+1)
}
