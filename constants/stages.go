package constants

const (
	StageBackgroundRefresh = "BackgroundRefresh"
	StageCheckLocalCache   = "CheckLocalCache"
	StageCheckRemoteCache  = "CheckRemoteCache"
	StageDone              = "Done"
	StageInit              = "Init"
	StagePersistAndRespond = "PersistAndRespond"
	StageQueryProviders    = "QueryProviders"
	StageSelect            = "Select"
)

type Stage struct {
	Name     string
	Order    int64
	NSQTopic string
}

// ResolutionStages lists the stages of a cover resolution run in
// order. Only the background refresh stage has an NSQ topic; the
// others run in process on the request path.
var ResolutionStages = []Stage{
	{
		Name:  StageInit,
		Order: 1,
	},
	{
		Name:  StageCheckLocalCache,
		Order: 2,
	},
	{
		Name:  StageCheckRemoteCache,
		Order: 3,
	},
	{
		Name:  StageQueryProviders,
		Order: 4,
	},
	{
		Name:  StageSelect,
		Order: 5,
	},
	{
		Name:  StagePersistAndRespond,
		Order: 6,
	},
	{
		Name:     StageBackgroundRefresh,
		Order:    7,
		NSQTopic: TopicCoverRefresh,
	},
	{
		Name:  StageDone,
		Order: 8,
	},
}

// StageFor returns the Stage with the given name, or nil.
func StageFor(name string) *Stage {
	for i := range ResolutionStages {
		if ResolutionStages[i].Name == name {
			return &ResolutionStages[i]
		}
	}
	return nil
}
