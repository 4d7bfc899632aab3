package domain

import "context"

// Invoker runs an external program once, feeding input on stdin and collecting
// stdout and stderr. It returns a *LaunchError when the program cannot be started.
type Invoker interface {
	Invoke(ctx context.Context, executable, workDir, input string) (ProcessOutcome, error)
}

// Recorder persists finished compile attempts.
type Recorder interface {
	Record(rec CompileRecord) error
}

// Opener hands a file to the operating system's default handler.
type Opener interface {
	Open(path string) error
}

// CompileSession is the caller-facing compile API consumed by the shells.
type CompileSession interface {
	Compile(ctx context.Context, source string) CompileResult
	Status() CompileStatus
	Subscribe() (<-chan CompileStatus, func())
	Reset()
	IsCompilerAvailable() bool
	CompilerPath() string
	ArtifactPath() string
	ArtifactExists() bool
}

// HistoryLister returns recorded compiles, newest first.
type HistoryLister interface {
	List(limit int) ([]CompileRecord, error)
}
