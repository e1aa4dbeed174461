package commission

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGetCommissionTierBoundaries(t *testing.T) {
	tests := []struct {
		name    string
		balance int64
		want    string
	}{
		{"零余额落在最低档", 0, "Basic"},
		{"负余额按零处理", -500, "Basic"},
		{"Basic上边界", 10000, "Basic"},
		{"Bronze下边界", 10001, "Bronze"},
		{"Bronze上边界", 30000, "Bronze"},
		{"Silver下边界", 30001, "Silver"},
		{"Silver上边界", 60000, "Silver"},
		{"Gold下边界", 60001, "Gold"},
		{"Gold上边界", 100000, "Gold"},
		{"Platinum下边界", 100001, "Platinum"},
		{"Platinum上边界", 200000, "Platinum"},
		{"Diamond下边界", 200001, "Diamond"},
		{"Diamond上边界", 350000, "Diamond"},
		{"Elite下边界", 350001, "Elite"},
		{"Elite上边界", 500000, "Elite"},
		{"Master下边界", 500001, "Master"},
		{"Master上边界", 1000000, "Master"},
		{"Legendary下边界", 1000001, "Legendary"},
		{"超大余额", math.MaxInt64, "Legendary"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tier := GetCommissionTier(tt.balance)
			require.NotNil(t, tier)
			require.Equal(t, tt.want, tier.Name)
		})
	}
}

func TestTiersCoverWholeRange(t *testing.T) {
	all := Tiers()
	require.Len(t, all, 9)

	// 区间升序、相邻无缝、无重叠
	require.Equal(t, int64(0), all[0].MinBalance)
	for i := 1; i < len(all); i++ {
		require.Equal(t, all[i-1].MaxBalance+1, all[i].MinBalance,
			"档位 %s 与 %s 之间存在缝隙或重叠", all[i-1].Name, all[i].Name)
	}
	require.Equal(t, int64(math.MaxInt64), all[len(all)-1].MaxBalance)

	// 佣金区间与日上限单调不减
	for i := 1; i < len(all); i++ {
		require.GreaterOrEqual(t, all[i].MinCommission, all[i-1].MinCommission)
		require.GreaterOrEqual(t, all[i].MaxCommission, all[i-1].MaxCommission)
		require.GreaterOrEqual(t, all[i].MaxTotalCommission, all[i-1].MaxTotalCommission)
	}
}

func TestCalculateCommissionWithinTierRange(t *testing.T) {
	r := rand.New(rand.NewSource(42))

	balances := []int64{0, 10000, 10001, 55000, 99999, 150000, 300000, 400000, 800000, 5000000}
	for _, balance := range balances {
		tier := GetCommissionTier(balance)
		require.NotNil(t, tier)

		for i := 0; i < 200; i++ {
			got := CalculateCommissionWith(r, balance)
			require.GreaterOrEqual(t, got, tier.MinCommission, "余额 %d", balance)
			require.LessOrEqual(t, got, tier.MaxCommission, "余额 %d", balance)
		}
	}
}

func TestCalculateCommissionHitsBothEndpoints(t *testing.T) {
	// 区间含两端：足够多的采样应同时命中上下界
	r := rand.New(rand.NewSource(7))

	sawMin, sawMax := false, false
	for i := 0; i < 5000; i++ {
		got := CalculateCommissionWith(r, 0)
		if got == 20 {
			sawMin = true
		}
		if got == 38 {
			sawMax = true
		}
	}
	require.True(t, sawMin, "未命中下界")
	require.True(t, sawMax, "未命中上界")
}

func TestCommissionHelpers(t *testing.T) {
	require.Equal(t, int64(20), GetMinCommission(0))
	require.Equal(t, int64(38), GetMaxCommission(0))
	require.Equal(t, int64(1000), GetMaxTotalCommission(0))

	require.Equal(t, int64(6000), GetMinCommission(2000000))
	require.Equal(t, int64(10000), GetMaxCommission(2000000))
	require.Equal(t, int64(9000), GetMaxTotalCommission(2000000))

	// 负余额（欠款状态）按 0 档位取上限
	require.Equal(t, int64(20), GetMinCommission(-500))
	require.Equal(t, int64(1000), GetMaxTotalCommission(-500))
}
