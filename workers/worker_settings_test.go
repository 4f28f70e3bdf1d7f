package workers_test

import (
	"testing"
	"time"

	"github.com/readhaven/cover-services/constants"
	"github.com/readhaven/cover-services/workers"
	"github.com/stretchr/testify/assert"
)

func TestToJSON(t *testing.T) {
	settings := &workers.Settings{
		ChannelBufferSize: 20,
		MaxAttempts:       3,
		NSQChannel:        constants.ChannelCoverRefresh,
		NSQTopic:          constants.TopicCoverRefresh,
		NumberOfWorkers:   2,
		RequeueTimeout:    (1 * time.Minute),
	}
	assert.Equal(t, expectedJSON, settings.ToJSON())
}

var expectedJSON = `{"ChannelBufferSize":20,"MaxAttempts":3,"NSQChannel":"cover_refresh_worker_chan","NSQTopic":"cover_refresh","NumberOfWorkers":2,"RequeueTimeout":60000000000}`
