package idgen

import (
	"regexp"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNextIDUniqueAndIncreasing(t *testing.T) {
	Init(1)

	const n = 10000
	seen := make(map[int64]struct{}, n)
	prev := int64(-1)
	for i := 0; i < n; i++ {
		id := NextID()
		_, dup := seen[id]
		require.False(t, dup, "重复ID: %d", id)
		seen[id] = struct{}{}
		require.Greater(t, id, prev)
		prev = id
	}
}

func TestGenerateTransactionIDFormat(t *testing.T) {
	// TXN + 13位毫秒时间戳 + 0-999 随机数（随机段不补零）
	pattern := regexp.MustCompile(`^TXN(\d{13})(\d{1,3})$`)

	for i := 0; i < 100; i++ {
		txnID := GenerateTransactionID()
		m := pattern.FindStringSubmatch(txnID)
		require.NotNil(t, m, "流水号格式错误: %s", txnID)

		n, err := strconv.Atoi(m[2])
		require.NoError(t, err)
		require.Less(t, n, 1000)
	}
}

func TestGenerateBusinessNos(t *testing.T) {
	require.Regexp(t, `^DEP\d{14}\d{8}$`, GenerateDepositNo())
	require.Regexp(t, `^WDR\d{14}\d{8}$`, GenerateWithdrawalNo())
	require.Regexp(t, `^REF\d{6}$`, GenerateReferralCode())
}

func TestGenerateMembershipIDRange(t *testing.T) {
	for i := 0; i < 1000; i++ {
		id := GenerateMembershipID()
		require.Len(t, id, 5)
		n, err := strconv.Atoi(id)
		require.NoError(t, err)
		require.GreaterOrEqual(t, n, 10000)
		require.LessOrEqual(t, n, 99999)
	}
}
