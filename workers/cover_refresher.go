package workers

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/readhaven/cover-services/constants"
	"github.com/readhaven/cover-services/covers"
	"github.com/readhaven/cover-services/models/common"
	"github.com/readhaven/cover-services/models/service"
)

// CoverRefresher consumes the cover refresh topic and re-resolves
// covers in the background, so a low-quality cover served once keeps
// getting chances to be replaced by something better.
type CoverRefresher struct {
	Base
	refresher *covers.Refresher
}

// NewCoverRefresher creates a new CoverRefresher worker with
// connections to S3, Redis, the cover providers, and NSQ.
func NewCoverRefresher(bufSize, numWorkers, maxAttempts int) *CoverRefresher {
	settings := &Settings{
		ChannelBufferSize: bufSize,
		MaxAttempts:       maxAttempts,
		NSQChannel:        constants.ChannelCoverRefresh,
		NSQTopic:          constants.TopicCoverRefresh,
		NumberOfWorkers:   numWorkers,
		RequeueTimeout:    (20 * time.Second),
	}
	worker := &CoverRefresher{
		Base: Base{
			Context:           common.NewContext(),
			Settings:          settings,
			KeysInProcess:     service.NewRingList(settings.ChannelBufferSize),
			ProcessChannel:    make(chan *Task, settings.ChannelBufferSize),
			SuccessChannel:    make(chan *Task, settings.ChannelBufferSize),
			ErrorChannel:      make(chan *Task, settings.ChannelBufferSize),
			FatalErrorChannel: make(chan *Task, settings.ChannelBufferSize),
			KillChannel:       make(chan os.Signal, 1),
		},
	}
	worker.refresher = covers.NewRefresher(worker.Context)

	// Set these methods on base with our custom versions.
	// These methods are not defined at all in base. Failing
	// to set them will result in nil pointers and crashes.
	worker.Base.ShouldSkipThis = worker.ShouldSkipThis
	worker.Base.RunTask = worker.RunTask

	signal.Notify(worker.KillChannel, syscall.SIGINT, syscall.SIGTERM)

	worker.Context.Logger.Info("Cover refresh worker started with the following settings:")
	worker.Context.Logger.Info(settings.ToJSON())
	worker.Context.Logger.Info("Config settings (omitting sensitive credentials):")
	worker.Context.Logger.Info(worker.Context.Config.ToJSON())

	// Spin up the go routines that will act as workers
	for i := 0; i < settings.NumberOfWorkers; i++ {
		worker.Context.Logger.Infof("Starting worker #%d", i+1)
		go worker.ProcessItem()
	}
	go worker.ProcessErrorChannel()
	go worker.ProcessFatalErrorChannel()
	go worker.ProcessSuccessChannel()

	err := worker.RegisterAsNsqConsumer()
	if err != nil {
		panic(fmt.Sprintf("Cannot register NSQ consumer: %v", err))
	}

	return worker
}

// RunTask refreshes one book key. The Refresher builds and saves a
// fresh result for each run, so the attempt count from the task's
// prior result is carried over and the merged result re-saved.
func (c *CoverRefresher) RunTask(task *Task) {
	attempt := task.Result.Attempt
	result := c.refresher.Refresh(context.Background(), task.Request)
	result.Attempt = attempt
	task.Result = result
	c.SaveResult(task)
}

// ShouldSkipThis returns true if there is any reason not to process
// this request. A refresh for a key this worker already has in
// flight is NSQ redelivering too eagerly, not new work.
func (c *CoverRefresher) ShouldSkipThis(request *service.RefreshRequest) bool {
	if request.BookKey == "" {
		return true
	}
	return c.ImAlreadyProcessingThis(request)
}

func (c *CoverRefresher) ProcessSuccessChannel() {
	for task := range c.SuccessChannel {
		c.Context.Logger.Infof("Book %s is in success channel", task.Request.BookKey)
		task.NSQFinish()
		c.FinishItem(task)
	}
}

func (c *CoverRefresher) ProcessErrorChannel() {
	for task := range c.ErrorChannel {
		shouldRequeue := task.Result.Attempt < c.Settings.MaxAttempts
		c.Context.Logger.Warningf("Book %s is in error channel", task.Request.BookKey)
		for _, procErr := range task.Result.Errors {
			c.Context.Logger.Warningf("Non-fatal error for %s: %s", task.Request.BookKey, procErr.Message)
		}
		if shouldRequeue {
			c.Context.Logger.Infof("Requeueing %s, attempt %d of %d",
				task.Request.BookKey, task.Result.Attempt, c.Settings.MaxAttempts)
			task.NSQRequeue(c.Settings.RequeueTimeout)
		} else {
			c.Context.Logger.Errorf("Giving up on %s after %d attempts",
				task.Request.BookKey, task.Result.Attempt)
			task.NSQFinish()
		}
		c.FinishItem(task)
	}
}

func (c *CoverRefresher) ProcessFatalErrorChannel() {
	for task := range c.FatalErrorChannel {
		c.Context.Logger.Errorf("Book %s is in fatal error channel", task.Request.BookKey)
		c.Context.Logger.Errorf("Fatal errors for %s: %s", task.Request.BookKey, task.Result.FatalErrorMessage())
		task.NSQFinish()
		c.FinishItem(task)
	}
}
