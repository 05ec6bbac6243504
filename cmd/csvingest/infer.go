package main

import (
	"encoding/json"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"csvingest/internal/probe"
	"csvingest/internal/schema"
)

type inferResult struct {
	File   string            `json:"file"`
	Size   int64             `json:"size"`
	Schema *schema.SchemaMap `json:"schema"`
}

func newInferCmd(g *globals) *cobra.Command {
	var (
		ff formatFlags
		in inputFlags
	)
	cmd := &cobra.Command{
		Use:   "infer [FILE...]",
		Short: "Print the inferred schema of each file as a JSON line",
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

			enc := json.NewEncoder(cmd.OutOrStdout())
			for _, src := range srcs {
				fd, rc, err := open(cmd.Context(), src)
				if err != nil {
					return err
				}
				sample, _, err := probe.ReadSample(rc, f)
				if err == nil {
					var sm *schema.SchemaMap
					if sm, err = inf.Infer(cmd.Context(), sample, f); err == nil {
						err = enc.Encode(inferResult{File: fd.ID, Size: fd.Size, Schema: sm})
					}
				}
				rc.Close()
				if err != nil {
					return errors.Wrapf(err, "infer %s", fd.ID)
				}
			}
			return nil
		},
	}
	ff.register(cmd)
	in.register(cmd)
	return cmd
}
