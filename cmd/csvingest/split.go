package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"csvingest/internal/config"
	pcsv "csvingest/internal/parser/csv"
	"csvingest/internal/scratch"
)

func newSplitCmd(g *globals) *cobra.Command {
	var (
		ff           formatFlags
		in           inputFlags
		maxChunkSize int64
		scratchDir   string
	)
	cmd := &cobra.Command{
		Use:   "split [FILE...]",
		Short: "Report the chunks a file would be split into, without parsing records",
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := ff.resolve(g.log)
			if err != nil {
				return err
			}
			srcs, err := in.sources(args)
			if err != nil {
				return err
			}
			space, err := scratch.New(scratchDir)
			if err != nil {
				return err
			}
			defer space.Close()

			out := cmd.OutOrStdout()
			for _, src := range srcs {
				fd, rc, err := open(cmd.Context(), src)
				if err != nil {
					return err
				}
				err = splitOne(out, rc, fd.ID, f, maxChunkSize, space, g)
				rc.Close()
				if err != nil {
					return err
				}
			}
			return nil
		},
	}
	ff.register(cmd)
	in.register(cmd)
	cmd.Flags().Int64Var(&maxChunkSize, "max-chunk-size", pcsv.DefaultMaxChunkSize, "chunk size bound in bytes")
	cmd.Flags().StringVar(&scratchDir, "scratch-dir", "", "parent directory for chunk files (default: system temp dir)")
	return cmd
}

func splitOne(out io.Writer, r io.Reader, id string, f config.FormatConfig, maxChunkSize int64, space *scratch.Space, g *globals) error {
	prepared, err := pcsv.Prepare(r, f)
	if err != nil {
		return err
	}
	store, err := pcsv.NewFileStore(space)
	if err != nil {
		return err
	}
	sp := pcsv.NewSplitter(prepared, pcsv.SplitterOptions{
		MaxChunkSize: maxChunkSize,
		Store:        store,
		FileID:       id,
		Logger:       g.log,
	})
	for chunk, err := range sp.Chunks() {
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%s\tchunk=%d\tsize=%d\tdigest=%016x\n", id, chunk.Index, chunk.Size, chunk.Digest)
	}
	return nil
}
