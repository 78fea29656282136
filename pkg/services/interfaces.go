package services

import (
	"context"
	"time"

	"github.com/convoyhq/convoy/pkg/events"
	"github.com/convoyhq/convoy/pkg/models"
	"github.com/convoyhq/convoy/pkg/notify"
	"github.com/convoyhq/convoy/pkg/store"
)

// Store is the persistence surface the services consume. *store.Store
// implements it; tests substitute an in-memory fake.
type Store interface {
	// Users
	GetUser(ctx context.Context, userID string) (*models.User, error)
	IncrementUserStats(ctx context.Context, userID string, distanceKm float64, seconds int64, topSpeed float64) error

	// Groups
	GetGroupDetail(ctx context.Context, groupID string) (*models.GroupDetail, error)
	UpdateMemberPresence(ctx context.Context, groupID, userID string, lat, lng float64, shared bool, seen time.Time) error
	ArchiveGroup(ctx context.Context, groupID string) (bool, error)

	// Group journeys
	CreateGroupJourney(ctx context.Context, j *models.GroupJourney) error
	GetGroupJourney(ctx context.Context, journeyID string) (*models.GroupJourney, error)
	GetActiveGroupJourney(ctx context.Context, groupID string) (*models.GroupJourney, error)
	CompleteGroupJourney(ctx context.Context, journeyID string, at time.Time) (bool, error)

	// Instances
	CreateInstance(ctx context.Context, inst *models.JourneyInstance) error
	GetInstance(ctx context.Context, instanceID string) (*models.JourneyInstance, error)
	GetInstanceForUser(ctx context.Context, journeyID, userID string) (*models.JourneyInstance, error)
	GetOpenInstanceForUser(ctx context.Context, userID string) (*models.JourneyInstance, error)
	ListInstances(ctx context.Context, journeyID string) ([]models.JourneyInstance, error)
	CountOpenInstances(ctx context.Context, journeyID, excludeInstanceID string) (int, error)
	ReactivateInstance(ctx context.Context, instanceID string, lat, lng float64, at time.Time, point models.RoutePoint) (bool, error)
	PauseInstance(ctx context.Context, instanceID string) (bool, error)
	ResumeInstance(ctx context.Context, instanceID string) (bool, error)
	ApplyLocation(ctx context.Context, upd store.LocationUpdate) (*models.JourneyInstance, error)
	FinalizeInstance(ctx context.Context, instanceID string, endTime time.Time, totalTime int64, avgSpeed float64, endLat, endLng *float64) (bool, error)

	// Solo journeys and history
	GetActiveSoloJourney(ctx context.Context, userID string) (*models.Journey, error)
	CompleteSoloJourney(ctx context.Context, journeyID string, at time.Time) (bool, error)
	CreateJourneySummary(ctx context.Context, j *models.Journey) error

	// Timeline
	CreateRideEvent(ctx context.Context, e *models.RideEvent) error
	ListRideEvents(ctx context.Context, journeyID string, since *time.Time, limit int) ([]models.RideEvent, error)
	CountRideEventsByType(ctx context.Context, journeyID string, typ models.RideEventType) (int, error)
}

// Broadcasts is the fan-out surface. *events.Publisher implements it. Every
// method is best-effort and returns nothing.
type Broadcasts interface {
	JourneyStarted(memberIDs []string, payload events.JourneyStartedPayload)
	MemberStarted(groupID string, payload events.MemberStartedPayload)
	LocationUpdated(journeyID string, payload events.LocationUpdatedPayload)
	InstancePaused(journeyID string, payload events.InstanceStatusPayload)
	InstanceResumed(journeyID string, payload events.InstanceStatusPayload)
	MemberCompleted(journeyID string, payload events.MemberCompletedPayload)
	JourneyCompleted(journeyID, groupID string)
	RideEventPosted(journeyID string, event models.RideEvent)
	RideEventForGroup(groupID string, event models.RideEvent)
	GroupArchived(groupID string)
	AchievementUnlocked(userID string, payload events.AchievementUnlockedPayload)
}

// Notifier enqueues push notices. Failures are swallowed by the
// implementation, never surfaced here.
type Notifier interface {
	JourneyStarted(ctx context.Context, recipients []string, notice notify.Notice)
}

// Achievement is one unlock produced by the evaluation collaborator.
type Achievement struct {
	ID    string
	Title string
}

// Achievements evaluates a completed trip against the user's streaks and
// milestones. Evaluation runs detached from the completing request; errors
// are logged and dropped.
type Achievements interface {
	EvaluateCompletion(ctx context.Context, userID string, trip models.Journey) ([]Achievement, error)
}

// NoopAchievements is the default when no evaluator is wired.
type NoopAchievements struct{}

func (NoopAchievements) EvaluateCompletion(context.Context, string, models.Journey) ([]Achievement, error) {
	return nil, nil
}
