package api

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/JaimeStill/vigil/internal/decisions"
	"github.com/JaimeStill/vigil/internal/digests"
	"github.com/JaimeStill/vigil/internal/escalation"
	"github.com/JaimeStill/vigil/internal/evaluator"
	"github.com/JaimeStill/vigil/internal/events"
	"github.com/JaimeStill/vigil/internal/ingest"
	"github.com/JaimeStill/vigil/internal/policies"
)

// Domain holds all domain systems that comprise the engine.
// Consumer is nil without a broker and Scheduler is nil unless enabled.
type Domain struct {
	Events     events.System
	Policies   policies.System
	Decisions  decisions.System
	Digests    digests.System
	Ingest     ingest.System
	Evaluator  *evaluator.Evaluator
	Dispatcher *escalation.Dispatcher
	Compiler   *digests.Compiler
	Consumer   *ingest.Consumer
	Scheduler  *digests.Scheduler
}

// NewDomain creates all domain systems from the API runtime.
func NewDomain(runtime *Runtime) *Domain {
	db := runtime.Database.Connection()

	eventsSystem := events.New(db, runtime.Logger, runtime.Pagination)
	policiesSystem := policies.New(db, runtime.Logger, runtime.Pagination)
	decisionsSystem := decisions.New(db, runtime.Logger, runtime.Pagination)
	digestsSystem := digests.New(db, runtime.Logger, runtime.Pagination)

	var hook escalation.Hook = escalation.NewLogHook(runtime.Logger)
	if runtime.Broker != nil {
		hook = escalation.NewKafkaHook(runtime.Broker, runtime.Topics.Escalations)
	}

	dispatcher := escalation.NewDispatcher(
		hook,
		runtime.Claims(),
		runtime.Engine.EscalationTimeoutDuration(),
		runtime.Logger,
	)

	recorder := decisions.NewRecorder(decisionsSystem, dispatcher, runtime.Logger)
	ev := evaluator.New(policiesSystem, eventsSystem, recorder, runtime.Logger)
	ingestSystem := ingest.New(eventsSystem, decisionsSystem, ev, runtime.Logger)

	var archive digests.Archiver
	if runtime.Engine.ArchiveEnabled && runtime.Storage != nil {
		archive = runtime.Storage
	}
	compiler := digests.NewCompiler(decisionsSystem, digestsSystem, archive, runtime.Logger)

	d := &Domain{
		Events:     eventsSystem,
		Policies:   policiesSystem,
		Decisions:  decisionsSystem,
		Digests:    digestsSystem,
		Ingest:     ingestSystem,
		Evaluator:  ev,
		Dispatcher: dispatcher,
		Compiler:   compiler,
	}

	if runtime.Broker != nil {
		d.Consumer = ingest.NewConsumer(
			runtime.Broker.Subscribe(runtime.Topics.Events),
			ingestSystem,
			runtime.Claims(),
			ingest.ConsumerConfig{
				Attempts: runtime.Engine.IngestAttempts,
				Backoff:  runtime.Engine.IngestBackoffDuration(),
			},
			runtime.Logger,
		)
	}

	if runtime.Engine.SchedulerEnabled {
		d.Scheduler = digests.NewScheduler(
			compiler,
			Tenants(policiesSystem, eventsSystem),
			digests.SchedulerConfig{
				DigestType:  runtime.Engine.DigestType,
				Interval:    runtime.Engine.DigestIntervalDuration(),
				Window:      runtime.Engine.DigestWindowDuration(),
				Concurrency: runtime.Engine.DigestConcurrency,
			},
			runtime.Logger,
		)
	}

	return d
}

// Start registers the escalation drain and launches the background workers.
func (d *Domain) Start(runtime *Runtime) {
	lc := runtime.Lifecycle

	d.Dispatcher.Start(lc)

	if d.Consumer != nil {
		lc.Background(d.Consumer.Run)
	}
	if d.Scheduler != nil {
		lc.Background(d.Scheduler.Run)
	}
}

// Tenants lists organizations with enabled policies or events since the
// window start.
func Tenants(p policies.System, e events.System) digests.TenantSource {
	return digests.UnionTenants(
		digests.TenantFunc(func(ctx context.Context, _ time.Time) ([]uuid.UUID, error) {
			return p.Organizations(ctx)
		}),
		digests.TenantFunc(e.Organizations),
	)
}
