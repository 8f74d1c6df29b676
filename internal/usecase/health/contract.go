package health

import "context"

// StagingChecker checks that uploads can be staged.
type StagingChecker interface {
	Writable(ctx context.Context) error
}

// CommandResolver checks that an inference command can be started.
type CommandResolver interface {
	Resolve(ctx context.Context, command string) error
}
