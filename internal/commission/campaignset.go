package commission

// ============================================================================
// 任务组晋级规则
// ============================================================================
//
// 按累计充值总额分档：未充值用户、普通用户、VIP 用户分别适用不同的
// 任务组数量与提现所需任务总量。deposit_count > 0 后规则永久切换。
//
// ============================================================================

// 每组任务数，晋级判定以此为步长
const TasksPerSet = 30

// CampaignSetRule 任务组规则
type CampaignSetRule struct {
	Name               string
	MaxCampaignSet     int   // 最多可进入的任务组数量
	TotalTasksRequired int   // 满足提现所需的任务总量
	TasksPerSet        []int // 各组任务数
}

var (
	ruleNewUser = CampaignSetRule{
		Name:               "New User",
		MaxCampaignSet:     2,
		TotalTasksRequired: 30,
		TasksPerSet:        []int{30, 30},
	}
	ruleRegular = CampaignSetRule{
		Name:               "Regular",
		MaxCampaignSet:     3,
		TotalTasksRequired: 90,
		TasksPerSet:        []int{30, 30, 30},
	}
	ruleVIP = CampaignSetRule{
		Name:               "VIP",
		MaxCampaignSet:     3,
		TotalTasksRequired: 92,
		TasksPerSet:        []int{30, 30, 32},
	}
)

// VIP 档位的充值门槛
const vipDepositThreshold = int64(1000000)

// GetCampaignSetRule 按累计充值总额返回适用规则
func GetCampaignSetRule(depositAmount int64) CampaignSetRule {
	switch {
	case depositAmount <= 0:
		return ruleNewUser
	case depositAmount < vipDepositThreshold:
		return ruleRegular
	default:
		return ruleVIP
	}
}

// CanUserWithdraw 已完成任务量达到规则要求即可提现；对 completed 单调
func CanUserWithdraw(campaignsCompleted int, depositAmount int64) bool {
	rule := GetCampaignSetRule(depositAmount)
	return campaignsCompleted >= rule.TotalTasksRequired
}

// GetNextCampaignSet 返回下一组编号；已到上限时原值返回（饱和，不报错）
func GetNextCampaignSet(currentSet int, depositAmount int64) int {
	rule := GetCampaignSetRule(depositAmount)
	if currentSet < rule.MaxCampaignSet {
		return currentSet + 1
	}
	return currentSet
}

// ShouldProgressCampaignSet 每完成一单后由任务分配方调用，
// 判断是否应当推进任务组：已完成数恰为 30 的整倍数且未到组数上限
func ShouldProgressCampaignSet(completed, currentSet int, depositAmount int64) bool {
	if completed <= 0 || completed%TasksPerSet != 0 {
		return false
	}
	rule := GetCampaignSetRule(depositAmount)
	return currentSet < rule.MaxCampaignSet
}

// TasksInCurrentSet 当前组内已完成任务数
// 组编号从 1 开始，前 currentSet-1 组各按 30 单计
func TasksInCurrentSet(campaignsCompleted, currentSet int) int {
	if currentSet < 1 {
		currentSet = 1
	}
	n := campaignsCompleted - (currentSet-1)*TasksPerSet
	if n < 0 {
		return 0
	}
	return n
}
