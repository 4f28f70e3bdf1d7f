package workers

import (
	"time"

	"github.com/nsqio/go-nsq"
	"github.com/readhaven/cover-services/models/service"
)

// Task encapsulates everything that a worker will need to pass from
// one channel to the next during processing.
type Task struct {

	// NSQMessage is the NSQ message the worker is processing.
	NSQMessage *nsq.Message

	// Request identifies the book key to refresh and the resolution
	// preference the original caller asked for.
	Request *service.RefreshRequest

	// Result describes the outcome of this refresh run.
	Result *service.RefreshResult

	nsqStopChannel chan bool

	// For testing
	nsqStartCalled bool

	// For testing
	tickerStopped bool
}

// NSQStart creates a timer that touches the NSQ message every thirty
// seconds while the refresh is in process. A refresh that walks the
// full provider chain under per-provider timeouts can outlast nsqd's
// default message timeout, and we don't want the message redelivered
// to a second worker while the first is still on it.
func (task *Task) NSQStart() {
	task.NSQMessage.DisableAutoResponse()
	interval := time.Duration(30) * time.Second
	ticker := time.NewTicker(interval)
	stopChannel := make(chan bool)
	go func() {
		for {
			select {
			case <-ticker.C:
				task.NSQMessage.Touch()
			case <-stopChannel:
				ticker.Stop()
				task.tickerStopped = true
				return
			}
		}
	}()
	task.nsqStartCalled = true
	task.nsqStopChannel = stopChannel
}

// NSQRequeue requeues the message with the specified duration
// and stops sending touches.
func (task *Task) NSQRequeue(delay time.Duration) {
	task.nsqStopChannel <- true
	task.NSQMessage.Requeue(delay)
}

// NSQFinish finishes the message and stops sending touches.
func (task *Task) NSQFinish() {
	task.nsqStopChannel <- true
	task.NSQMessage.Finish()
}

// StartCalled returns true if NSQStart() has been called on this object.
// This method exists for testing purposes.
func (task *Task) StartCalled() bool {
	return task.nsqStartCalled
}

// TickerStopped returns true if either NSQFinish() or NSQRequeue()
// has been called. This method exists for testing purposes.
func (task *Task) TickerStopped() bool {
	return task.tickerStopped
}
