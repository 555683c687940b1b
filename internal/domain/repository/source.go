package repository

import (
	"context"
	"io"

	"ops-agent/internal/domain/model"
)

// SourceRepository acquires a revision of source code into a directory.
type SourceRepository interface {
	// Fetch replaces target with a shallow checkout of rev. Tool output is
	// written to out. Errors match model.ErrValidation or model.ErrFetch.
	Fetch(ctx context.Context, rev model.Revision, target string, out io.Writer) error
}

// BuildRepository runs a project's declared install and build steps.
type BuildRepository interface {
	// Build prepares the project in dir. Errors match model.ErrBuild.
	Build(ctx context.Context, dir string, out io.Writer) error
}
