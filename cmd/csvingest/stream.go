package main

import (
	"bufio"
	"encoding/json"

	"github.com/spf13/cobra"

	"csvingest/internal/ingest"
	pcsv "csvingest/internal/parser/csv"
	"csvingest/internal/scratch"
)

func newStreamCmd(g *globals) *cobra.Command {
	var (
		ff             formatFlags
		in             inputFlags
		chunking       bool
		maxChunkSize   int64
		chunkThreshold int64
		scratchDir     string
		limit          int
	)
	cmd := &cobra.Command{
		Use:   "stream [FILE...]",
		Short: "Stream typed records of each file as JSON lines",
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := ff.resolve(g.log)
			if err != nil {
				return err
			}
			srcs, err := in.sources(args)
			if err != nil {
				return err
			}
			inf, err := g.inferrer()
			if err != nil {
				return err
			}

			opt := ingest.Options{
				Chunking:       chunking,
				MaxChunkSize:   maxChunkSize,
				ChunkThreshold: chunkThreshold,
				Job:            g.job,
			}
			if chunking {
				space, err := scratch.New(scratchDir)
				if err != nil {
					return err
				}
				defer space.Close()
				opt.Scratch = space
			}

			w := bufio.NewWriter(cmd.OutOrStdout())
			defer w.Flush()
			enc := json.NewEncoder(w)

			for _, src := range srcs {
				fd, rc, err := open(cmd.Context(), src)
				if err != nil {
					return err
				}
				s := ingest.New(f, inf, opt, g.log)
				n := 0
				for rec, err := range s.Stream(cmd.Context(), rc, fd) {
					if err == nil {
						err = enc.Encode(rec)
					}
					if err != nil {
						rc.Close()
						return err
					}
					n++
					if limit > 0 && n >= limit {
						break
					}
				}
				rc.Close()
			}
			return w.Flush()
		},
	}
	ff.register(cmd)
	in.register(cmd)
	fs := cmd.Flags()
	fs.BoolVar(&chunking, "chunking", false, "split large .csv files into record-aligned chunks")
	fs.Int64Var(&maxChunkSize, "max-chunk-size", pcsv.DefaultMaxChunkSize, "chunk size bound in bytes")
	fs.Int64Var(&chunkThreshold, "chunk-threshold", 0, "file size from which chunking applies (0: max-chunk-size)")
	fs.StringVar(&scratchDir, "scratch-dir", "", "parent directory for chunk files (default: system temp dir)")
	fs.IntVar(&limit, "limit", 0, "stop after this many records per file (0: all)")
	return cmd
}
