package taskname

const (
	// Reward tasks
	RewardCompleted = "reward:completed"
)

const (
	QueueRewardEvents = "reward-events"
)
