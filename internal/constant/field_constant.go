package constant

// Intention catalog. The affinity tag picks the participant's shape and
// color on the client; the server only validates and stores it.
const (
	AffinityObserver  = "observer"
	AffinityHealing   = "healing"
	AffinityGratitude = "gratitude"
	AffinityUnity     = "unity"
	AffinityCreation  = "creation"
	AffinityWisdom    = "wisdom"
	AffinityLove      = "love"
)

// Emotion catalog. The mood tag picks the overlay particle effect.
const (
	MoodCalm       = "calm"
	MoodJoy        = "joy"
	MoodWonder     = "wonder"
	MoodSerenity   = "serenity"
	MoodMelancholy = "melancholy"
	MoodLonging    = "longing"
)

const (
	DefaultAffinity    = AffinityObserver
	DefaultMood        = MoodCalm
	DefaultDisplayName = "anonymous presence"
	DefaultNote        = "just floating"
)

// Affinities lists every valid intention tag.
var Affinities = []string{
	AffinityObserver,
	AffinityHealing,
	AffinityGratitude,
	AffinityUnity,
	AffinityCreation,
	AffinityWisdom,
	AffinityLove,
}

// Moods lists every valid emotion tag.
var Moods = []string{
	MoodCalm,
	MoodJoy,
	MoodWonder,
	MoodSerenity,
	MoodMelancholy,
	MoodLonging,
}

// ValidAffinity reports whether tag is in the intention catalog.
func ValidAffinity(tag string) bool {
	for _, a := range Affinities {
		if a == tag {
			return true
		}
	}
	return false
}

// ValidMood reports whether tag is in the emotion catalog.
func ValidMood(tag string) bool {
	for _, m := range Moods {
		if m == tag {
			return true
		}
	}
	return false
}

// Internal bus topics carrying field events from the services to the
// presence feed. All session lifecycle events share one topic (and all
// group events another) so per-id ordering survives the bus: added always
// reaches subscribers before changed/removed for the same id.
const (
	TopicSessions    = "field.sessions"
	TopicGroups      = "field.groups"
	TopicFieldCount  = "field.count"
	TopicResonance   = "field.resonance"
	TopicGroupInvite = "field.group.invite"
)

// Redis channel for cross-instance event fanout.
const RedisFieldEventsChannel = "field_events"

// Watermill message metadata key naming the session that caused an event.
// The hub uses it to keep self-events off the originating connection.
const MetaOriginSession = "origin_session"
