package main

import (
	"context"
	"io"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"csvingest/internal/config"
	"csvingest/internal/datasource"
	"csvingest/internal/datasource/file"
)

// inputFlags select the files a command reads.
type inputFlags struct {
	list string
}

func (in *inputFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&in.list, "list", "", "file with one input path per line ('#' starts a comment)")
}

// sources returns the positional paths followed by the entries of --list.
func (in *inputFlags) sources(args []string) ([]datasource.Source, error) {
	out := make([]datasource.Source, 0, len(args))
	for _, p := range args {
		out = append(out, file.NewLocal(p))
	}
	if in.list != "" {
		more, err := file.ReadList(in.list)
		if err != nil {
			return nil, err
		}
		out = append(out, more...)
	}
	if len(out) == 0 {
		return nil, errors.New("no input files")
	}
	return out, nil
}

// open describes and opens src.
func open(ctx context.Context, src datasource.Source) (config.FileDescriptor, io.ReadCloser, error) {
	fd, err := src.Describe(ctx)
	if err != nil {
		return fd, nil, err
	}
	rc, err := src.Open(ctx)
	if err != nil {
		return fd, nil, err
	}
	return fd, rc, nil
}
