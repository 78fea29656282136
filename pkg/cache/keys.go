package cache

import "time"

// TTL tiers. Entries that change with every location update get the short
// tier; pointers that only move on lifecycle transitions get the long one.
const (
	TTLShort  = 2 * time.Minute
	TTLMedium = 5 * time.Minute
	TTLHour   = time.Hour
)

// Key builders. The grammar is ":"-joined segments so DelPattern can match
// whole families with a glob.
func GroupKey(groupID string) string {
	return "group:" + groupID
}

func ActiveJourneyKey(groupID string) string {
	return "group:" + groupID + ":active-journey"
}

func JourneyKey(journeyID string) string {
	return "group-journey:" + journeyID
}

func JourneyFullKey(journeyID string) string {
	return "group-journey:" + journeyID + ":full"
}

func InstanceKey(instanceID string) string {
	return "instance:" + instanceID
}

func UserInstanceKey(userID, journeyID string) string {
	return "user:" + userID + ":instance:" + journeyID
}

// JourneyPattern matches every key family for a journey, for invalidation
// when the journey reaches a terminal status.
func JourneyPattern(journeyID string) string {
	return "group-journey:" + journeyID + "*"
}
