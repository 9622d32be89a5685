package collector

//go:generate mockgen -source=interfaces.go -destination=mocks/mocks.go -package=mocks

import (
	"context"

	"mention_collector/internal/domain"
	"mention_collector/internal/storage"
)

type Initializer interface {
	Init(req domain.Request) (domain.JobDescriptor, error)
}

type Source interface {
	Fetch(ctx context.Context, q domain.Query) ([]domain.Record, error)
}

// SourceFactory builds a fresh adapter for one branch.
type SourceFactory interface {
	New(kind domain.SourceKind, creds domain.Credentials) (Source, error)
}

type CredentialProvider interface {
	Credentials(ctx context.Context, kind domain.SourceKind) (domain.Credentials, error)
}

type Store interface {
	Ping(ctx context.Context) error
	UpsertBatch(ctx context.Context, recs []domain.Record) storage.BatchResult
}

type Publisher interface {
	Publish(ctx context.Context, jobID string, rec domain.Record, isNew bool) error
}

type Notifier interface {
	Notify(ctx context.Context, url string, notice domain.Notice) (domain.Ack, error)
}

type JobRecorder interface {
	RecordJob(ctx context.Context, result domain.Result) error
}

// SourceFactoryFunc adapts a function to SourceFactory.
type SourceFactoryFunc func(kind domain.SourceKind, creds domain.Credentials) (Source, error)

func (f SourceFactoryFunc) New(kind domain.SourceKind, creds domain.Credentials) (Source, error) {
	return f(kind, creds)
}
