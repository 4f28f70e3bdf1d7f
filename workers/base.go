package workers

import (
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/nsqio/go-nsq"
	"github.com/readhaven/cover-services/models/common"
	"github.com/readhaven/cover-services/models/service"
)

// ServiceWorker defines the primary interface for queue workers.
// Actual workers will implement other methods in addition to these.
type ServiceWorker interface {
	RegisterAsNsqConsumer() error
	HandleMessage(*nsq.Message) error
	ProcessSuccessChannel()
	ProcessErrorChannel()
	ProcessFatalErrorChannel()
}

// SigTermState contains info about whether the current worker
// received SIGTERM (or SIGINT), and if so, what action it took
// in response to the signal.
type SigTermState struct {
	// Received indicates whether this worker received SIGTERM
	// or SIGINT.
	Received bool
	// Completed indicates whether this worker completed all of
	// its SIGTERM cleanup tasks.
	Completed bool
	// KeysInProcess is the number of book keys this worker was
	// working on when SIGTERM was received.
	KeysInProcess int
	// LocksReleased is the number of Redis refresh locks this
	// worker released so other workers can claim those keys.
	LocksReleased int
	// FailedReleases is the number of locks this worker tried
	// unsuccessfully to release.
	FailedReleases int
}

// Base contains the fundamental structures common to all workers.
type Base struct {

	// Context contains connections to NSQ, Redis, the cover
	// providers, and the storage tiers.
	Context *common.Context

	// KeysInProcess keeps track of book keys the worker is
	// currently processing. We need to do this because NSQ does
	// not dedupe messages, so the worker must.
	KeysInProcess *service.RingList

	// ProcessChannel is where the work actually happens: fetching,
	// selection, and persistence for one book key.
	ProcessChannel chan *Task

	// SuccessChannel processes tasks that have gone through the
	// ProcessChannel with no errors.
	SuccessChannel chan *Task

	// ErrorChannel processes tasks that have gone through the
	// ProcessChannel with one or more non-fatal errors. These
	// typically should be retried.
	ErrorChannel chan *Task

	// FatalErrorChannel processes tasks that have gone through the
	// ProcessChannel with one or more fatal errors. These should
	// not be retried.
	FatalErrorChannel chan *Task

	// KillChannel handles SIGTERM and SIGINT.
	KillChannel chan os.Signal

	// Settings contains channel sizes, queue names, and the
	// worker's retry policy.
	Settings *Settings

	// ShouldSkipThis checks whether the worker should skip this
	// request. This is not implemented in Base itself. It MUST be
	// implemented in structs that derive from Base.
	ShouldSkipThis func(*service.RefreshRequest) bool

	// RunTask performs the worker's actual work on one task and
	// fills in task.Result. This is not implemented in Base itself.
	// It MUST be implemented in structs that derive from Base.
	RunTask func(*Task)

	// NSQConsumer implements HandleMessage to receive messages from NSQ.
	NSQConsumer *nsq.Consumer

	// sigTermState contains info about whether the current worker
	// received SIGTERM or SIGINT, and what cleanup work it did after
	// receiving the signal.
	sigTermState SigTermState
}

// RegisterAsNsqConsumer registers this worker as an NSQ consumer on
// Settings.NSQTopic and Settings.NSQChannel. Note that as soon as you
// call this, your worker will start handling messages if any are
// available.
func (b *Base) RegisterAsNsqConsumer() error {
	config := nsq.NewConfig()
	config.Set("heartbeat_interval", "10s")
	config.Set("max_in_flight", b.Settings.ChannelBufferSize)
	consumer, err := nsq.NewConsumer(b.Settings.NSQTopic, b.Settings.NSQChannel, config)
	if err != nil {
		return err
	}
	b.NSQConsumer = consumer
	b.NSQConsumer.AddHandler(b)
	b.NSQConsumer.ConnectToNSQLookupd(b.Context.Config.NsqLookupd)
	b.Context.Logger.Info("Registered as NSQ consumer")
	return nil
}

// HandleMessage parses a refresh request out of the message body and
// pushes it into the ProcessChannel. Returning nil tells NSQ we own
// the message.
func (b *Base) HandleMessage(message *nsq.Message) error {
	request, err := b.GetRefreshRequest(message)
	if err != nil {
		// A body we cannot parse today will not parse tomorrow
		// either. Tell NSQ we're done with it.
		b.Context.Logger.Errorf("Discarding unreadable message: %v", err)
		return nil
	}

	// We haven't marked anything as started yet, so skipped
	// requests leave no record behind.
	if b.ShouldSkipThis(request) {
		b.Context.Logger.Infof("Skipping refresh of %s", request.BookKey)
		return nil
	}

	task := &Task{
		NSQMessage: message,
		Request:    request,
		Result:     b.GetRefreshResult(request.BookKey),
	}

	b.MarkAsStarted(task)
	b.AddToInProcessList(request.BookKey)
	b.ProcessChannel <- task
	return nil
}

// GetRefreshRequest parses the request from the NSQ message body.
// The body is normally a JSON RefreshRequest, but a bare book key is
// also accepted so operators can queue refreshes by hand with curl.
func (b *Base) GetRefreshRequest(message *nsq.Message) (*service.RefreshRequest, error) {
	msgBody := strings.TrimSpace(string(message.Body))
	b.Context.Logger.Info("NSQ Message body: ", msgBody)
	if strings.HasPrefix(msgBody, "{") {
		return service.RefreshRequestFromJSON(msgBody)
	}
	return service.NewRefreshRequest(msgBody, ""), nil
}

// ProcessItem pulls tasks off the ProcessChannel, runs them, and
// routes each to the SuccessChannel, ErrorChannel, or
// FatalErrorChannel, depending on the outcome. It also listens for
// SIGTERM and SIGINT.
func (b *Base) ProcessItem() {
	for {
		select {
		case signal := <-b.KillChannel:
			b.doSigTermCleanup(signal)
		case task := <-b.ProcessChannel:
			b.processItem(task)
		}
	}
}

func (b *Base) processItem(task *Task) {
	b.Context.Logger.Infof("Book %s is in ProcessChannel", task.Request.BookKey)
	b.RunTask(task)

	if task.Result.HasFatalErrors() {
		b.FatalErrorChannel <- task
	} else if task.Result.HasErrors() {
		b.ErrorChannel <- task
	} else {
		b.SuccessChannel <- task
	}
}

// GetRefreshResult returns a RefreshResult for this book key. If one
// already exists in Redis, it returns that, so the attempt count
// survives requeues. If not, it creates a new one.
func (b *Base) GetRefreshResult(bookKey string) *service.RefreshResult {
	result, err := b.Context.RedisClient.RefreshResultGet(bookKey)
	if err != nil {
		b.Context.Logger.Infof("No RefreshResult in Redis for %s. No problem. Creating a new one.", bookKey)
		result = service.NewRefreshResult(bookKey)
	}
	return result
}

// SaveResult saves a RefreshResult to Redis and logs an error if any
// occurs. Will try three times, in case Redis is busy.
func (b *Base) SaveResult(task *Task) error {
	for i := 0; i < 3; i++ {
		err := b.Context.RedisClient.RefreshResultSave(task.Result)
		if err == nil {
			break
		}
		if i == 2 {
			b.Context.Logger.Errorf("Error saving refresh result for %s: %v",
				task.Request.BookKey, err)
			return err
		}
		time.Sleep(time.Duration(250) * time.Millisecond)
	}
	return nil
}

// MarkAsStarted records in Redis that work on this key has started,
// and tells NSQ we're working so the message doesn't time out.
func (b *Base) MarkAsStarted(task *Task) {
	b.Context.Logger.Infof("Starting refresh attempt %d for %s",
		task.Result.Attempt+1, task.Request.BookKey)
	task.Result.Reset()
	task.Result.Attempt++
	task.Result.Start()
	task.Result.Host, _ = os.Hostname()
	task.Result.Pid = os.Getpid()
	b.SaveResult(task)
	task.NSQStart()
}

// FinishItem removes this task's key from the KeysInProcess list.
// The result itself was saved when the refresh finished.
func (b *Base) FinishItem(task *Task) {
	b.RemoveFromInProcessList(task.Request.BookKey)
}

// ImAlreadyProcessingThis returns true and logs a message if this
// book key is already being processed by this worker. This happens
// when nsqd thinks a slow item has timed out and redelivers it.
func (b *Base) ImAlreadyProcessingThis(request *service.RefreshRequest) bool {
	if b.KeysInProcess.Contains(request.BookKey) {
		b.Context.Logger.Infof("Skipping %s because this worker is already working on it",
			request.BookKey)
		return true
	}
	return false
}

// AddToInProcessList adds bookKey to this worker's KeysInProcess list.
func (b *Base) AddToInProcessList(bookKey string) {
	b.KeysInProcess.Add(bookKey)
}

// RemoveFromInProcessList removes bookKey from this worker's
// KeysInProcess list.
func (b *Base) RemoveFromInProcessList(bookKey string) {
	b.KeysInProcess.Del(bookKey)
}

// doSigTermCleanup handles SIGTERM and SIGINT. Container schedulers
// issue SIGTERM before SIGKILL, so there is a short window to wrap up
// loose ends.
//
// Items in the SuccessChannel, ErrorChannel and FatalErrorChannel
// just do housekeeping against Redis and NSQ, which completes in
// well under the termination grace period without intervention.
//
// The ProcessChannel is another matter. Refreshes in flight die with
// the process, and each of those keys holds a Redis refresh lock
// that would otherwise shut other workers out until the lock TTL
// runs down. Two remediations:
//
// 1. Stop the NSQ consumer, so nsqd requeues our unfinished messages
// for other workers right away instead of waiting for the message
// timeout.
//
// 2. Release the refresh locks for every key on the in-process list,
// so the workers that pick those messages up are not locked out.
func (b *Base) doSigTermCleanup(signal os.Signal) {
	if signal != syscall.SIGINT && signal != syscall.SIGTERM {
		return
	}
	b.sigTermState.Received = true
	b.Context.Logger.Warning("Worker received SIGTERM. Starting graceful shutdown.")

	if b.NSQConsumer != nil {
		b.Context.Logger.Warning("SIGTERM step 1: Disconnect from NSQ")
		b.NSQConsumer.ChangeMaxInFlight(0)
		b.NSQConsumer.Stop()
		b.Context.Logger.Warning("Worker disconnected from nsqd due to SIGTERM.")
	} else {
		b.Context.Logger.Warning("SIGTERM step 1: No need to stop NSQ consumer because there isn't one.")
	}

	b.Context.Logger.Warning("SIGTERM step 2: Release refresh locks")
	keysInProcess := b.KeysInProcess.Items()
	b.sigTermState.KeysInProcess = len(keysInProcess)
	for _, bookKey := range keysInProcess {
		err := b.Context.RedisClient.RefreshLockRelease(bookKey)
		if err != nil {
			b.sigTermState.FailedReleases += 1
			b.Context.Logger.Errorf("Could not release refresh lock for %s after SIGTERM: %v", bookKey, err)
		} else {
			b.sigTermState.LocksReleased += 1
			b.Context.Logger.Warningf("Released refresh lock for %s due to SIGTERM", bookKey)
		}
	}
	b.sigTermState.Completed = true
	b.Context.Logger.Warning("SIGTERM: Done releasing locks")
	b.Context.Logger.Warning("SIGTERM: Graceful shutdown steps complete. Waiting for SIGKILL.")
}

// GetSigTermState returns this worker's SigTermState object, which
// contains info about whether this worker received SIGTERM or SIGINT
// and what action it took.
func (b *Base) GetSigTermState() SigTermState {
	return b.sigTermState
}
