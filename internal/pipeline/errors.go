package pipeline

import "fmt"

// Stage identifies the pipeline stage at which a file failed.
type Stage string

const (
	StageLookup    Stage = "lookup"
	StageConvert   Stage = "convert"
	StageCompress  Stage = "compress"
	StageRasterize Stage = "rasterize"
	StageUpload    Stage = "upload"
	StageCommit    Stage = "commit"
)

// StageError reports a per-file failure. Every StageError is contained at
// the file boundary: the task is abandoned and the pool moves on.
type StageError struct {
	Stage Stage
	Path  string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Stage, e.Path, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

func stageErr(stage Stage, path string, err error) *StageError {
	return &StageError{Stage: stage, Path: path, Err: err}
}
