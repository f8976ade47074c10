package consumer_test

import (
	"context"
	"errors"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"FrameForge/internal/config"
	"FrameForge/internal/consumer"
	"FrameForge/internal/job"
	"FrameForge/internal/pipeline"
	"FrameForge/internal/queue"
	types "FrameForge/pkg"
)

type fakeQueue struct {
	mu       sync.Mutex
	batches  [][]queue.Message
	pollErrs []error
	polls    int
	acked    []string
	nacked   []string
	ackErr   error
	onEmpty  func()
	onPoll   func(n int)
}

func (f *fakeQueue) Publish(context.Context, string, []byte) error { return nil }

func (f *fakeQueue) Poll(_ context.Context, _ string, _ int32, _ time.Duration) ([]queue.Message, error) {
	f.mu.Lock()
	f.polls++
	n := f.polls
	var (
		batch []queue.Message
		err   error
		empty bool
	)
	switch {
	case len(f.pollErrs) > 0:
		err, f.pollErrs = f.pollErrs[0], f.pollErrs[1:]
	case len(f.batches) > 0:
		batch, f.batches = f.batches[0], f.batches[1:]
	default:
		empty = true
	}
	f.mu.Unlock()

	if f.onPoll != nil {
		f.onPoll(n)
	}
	if empty && f.onEmpty != nil {
		f.onEmpty()
	}
	return batch, err
}

func (f *fakeQueue) Ack(_ context.Context, _ string, msg queue.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.acked = append(f.acked, msg.ID)
	return f.ackErr
}

func (f *fakeQueue) Nack(_ context.Context, _ string, msg queue.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nacked = append(f.nacked, msg.ID)
	return nil
}

func (f *fakeQueue) nackedIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.nacked...)
}

func (f *fakeQueue) ackedIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.acked...)
}

type fakeRunner struct {
	mu       sync.Mutex
	jobs     []job.Job
	errs     map[string]error
	delay    time.Duration
	inFlight int
	maxSeen  int
	onRun    func(ctx context.Context, j *job.Job)
	ctxErrs  []error
}

func (f *fakeRunner) Run(ctx context.Context, j *job.Job) error {
	f.mu.Lock()
	f.inFlight++
	if f.inFlight > f.maxSeen {
		f.maxSeen = f.inFlight
	}
	f.jobs = append(f.jobs, *j)
	err := f.errs[j.Source.Key]
	f.mu.Unlock()

	if f.onRun != nil {
		f.onRun(ctx, j)
	}
	if f.delay > 0 {
		time.Sleep(f.delay)
	}

	f.mu.Lock()
	f.inFlight--
	f.ctxErrs = append(f.ctxErrs, ctx.Err())
	f.mu.Unlock()
	return err
}

func (f *fakeRunner) keys() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var keys []string
	for _, j := range f.jobs {
		keys = append(keys, j.Source.Key)
	}
	return keys
}

func msg(id, body string) queue.Message {
	return queue.Message{ID: id, Body: body, ReceiptHandle: "rh-" + id}
}

var _ = Describe("Loop", func() {
	var (
		q      *fakeQueue
		runner *fakeRunner
		cfg    *config.Config
		ctx    context.Context
		cancel context.CancelFunc
	)

	BeforeEach(func() {
		q = &fakeQueue{}
		runner = &fakeRunner{errs: map[string]error{}}
		cfg = &config.Config{
			Pipeline: types.PipelineConfig{ScratchDir: GinkgoT().TempDir()},
			Storage:  types.StorageConfig{VideoBucket: "videos"},
			Queue:    types.QueueConfig{SourceQueue: "source"},
			Consumer: types.ConsumerConfig{BatchSize: 10, Concurrency: 1},
		}
		ctx, cancel = context.WithCancel(context.Background())
		q.onEmpty = cancel
	})

	AfterEach(func() {
		cancel()
	})

	run := func() {
		loop := consumer.NewLoop(q, runner, cfg, zap.NewNop())
		Expect(loop.Run(ctx)).To(Succeed())
	}

	Describe("Run", func() {
		It("hands every message to the runner in receive order and acknowledges it", func() {
			q.batches = [][]queue.Message{
				{msg("1", `{"key":"a.mp4"}`), msg("2", `{"key":"b.mp4","bucketRef":"other"}`)},
				{msg("3", `{"key":"c.mp4","videoID":"vid-3"}`)},
			}

			run()

			Expect(runner.keys()).To(Equal([]string{"a.mp4", "b.mp4", "c.mp4"}))
			Expect(q.ackedIDs()).To(Equal([]string{"1", "2", "3"}))
		})

		It("builds job descriptors from the message", func() {
			q.batches = [][]queue.Message{
				{msg("1", `{"key":"a.mp4"}`), msg("2", `{"key":"b.mp4","bucketName":"named","jobId":"job-2"}`)},
			}

			run()

			Expect(runner.jobs).To(HaveLen(2))
			first, second := runner.jobs[0], runner.jobs[1]
			Expect(first.Source.Bucket).To(Equal("videos"))
			Expect(first.CorrelationID).To(BeEmpty())
			Expect(first.ID).NotTo(BeEmpty())
			Expect(second.Source.Bucket).To(Equal("named"))
			Expect(second.CorrelationID).To(Equal("job-2"))
			Expect(second.ID).To(Equal("job-2"))
			Expect(first.WorkDir).NotTo(Equal(second.WorkDir))
		})

		It("drops malformed messages without blocking the queue", func() {
			q.batches = [][]queue.Message{
				{msg("bad-json", `{not json`), msg("no-key", `{"bucketRef":"videos"}`), msg("ok", `{"key":"a.mp4"}`)},
			}

			run()

			Expect(runner.keys()).To(Equal([]string{"a.mp4"}))
			Expect(q.ackedIDs()).To(ConsistOf("bad-json", "no-key", "ok"))
		})

		It("leaves the message for redelivery when the status update failed", func() {
			runner.errs["a.mp4"] = job.NewError(job.ErrPersistence, "status", errors.New("db down"))
			q.batches = [][]queue.Message{{msg("1", `{"key":"a.mp4"}`), msg("2", `{"key":"b.mp4"}`)}}

			run()

			Expect(q.ackedIDs()).To(Equal([]string{"2"}))
			Expect(q.nackedIDs()).To(Equal([]string{"1"}))
		})

		It("leaves the message for redelivery when dispatch failed", func() {
			runner.errs["a.mp4"] = errors.Join(pipeline.ErrDispatch, errors.New("temporal unavailable"))
			q.batches = [][]queue.Message{{msg("1", `{"key":"a.mp4"}`)}}

			run()

			Expect(q.ackedIDs()).To(BeEmpty())
			Expect(q.nackedIDs()).To(Equal([]string{"1"}))
		})

		It("acknowledges rejected jobs", func() {
			runner.errs["a.mov"] = job.NewError(job.ErrUnsupportedFormat, "validate", errors.New(job.MsgUnsupportedType))
			q.batches = [][]queue.Message{{msg("1", `{"key":"a.mov"}`)}}

			run()

			Expect(q.ackedIDs()).To(Equal([]string{"1"}))
		})

		It("keeps polling after a poll error", func() {
			q.pollErrs = []error{errors.New("connection reset"), errors.New("connection reset")}
			q.batches = [][]queue.Message{{msg("1", `{"key":"a.mp4"}`)}}

			run()

			Expect(q.polls).To(Equal(4))
			Expect(runner.keys()).To(Equal([]string{"a.mp4"}))
		})

		It("does not start new messages once stopped", func() {
			q.batches = [][]queue.Message{{msg("1", `{"key":"a.mp4"}`), msg("2", `{"key":"b.mp4"}`)}}
			q.onPoll = func(int) { cancel() }

			run()

			Expect(runner.keys()).To(BeEmpty())
			Expect(q.ackedIDs()).To(BeEmpty())
		})

		It("finishes the in-flight job after a stop signal", func() {
			q.batches = [][]queue.Message{{msg("1", `{"key":"a.mp4"}`), msg("2", `{"key":"b.mp4"}`)}}
			runner.onRun = func(context.Context, *job.Job) { cancel() }

			run()

			Expect(runner.keys()).To(Equal([]string{"a.mp4"}))
			Expect(runner.ctxErrs).To(Equal([]error{nil}))
			Expect(q.ackedIDs()).To(Equal([]string{"1"}))
		})

		It("bounds concurrent jobs", func() {
			cfg.Consumer.Concurrency = 2
			runner.delay = 20 * time.Millisecond
			var batch []queue.Message
			for _, id := range []string{"1", "2", "3", "4", "5"} {
				batch = append(batch, msg(id, `{"key":"`+id+`.mp4"}`))
			}
			q.batches = [][]queue.Message{batch}

			run()

			Expect(runner.keys()).To(HaveLen(5))
			Expect(runner.maxSeen).To(BeNumerically("<=", 2))
			Expect(q.ackedIDs()).To(HaveLen(5))
		})
	})

	Describe("Handle", func() {
		It("reports how each message was handled", func() {
			loop := consumer.NewLoop(q, runner, cfg, zap.NewNop())
			runner.errs["gone.mp4"] = job.NewError(job.ErrPersistence, "status", errors.New("db down"))

			Expect(loop.Handle(ctx, msg("1", `{"key":"a.mp4"}`))).To(Equal(consumer.ResultProcessed))
			Expect(loop.Handle(ctx, msg("2", `[]`))).To(Equal(consumer.ResultMalformed))
			Expect(loop.Handle(ctx, msg("3", `{"key":"gone.mp4"}`))).To(Equal(consumer.ResultRedeliver))
		})

		It("still reports the outcome when the acknowledgement fails", func() {
			q.ackErr = errors.New("receipt handle expired")
			loop := consumer.NewLoop(q, runner, cfg, zap.NewNop())

			Expect(loop.Handle(ctx, msg("1", `{"key":"a.mp4"}`))).To(Equal(consumer.ResultProcessed))
		})
	})
})
