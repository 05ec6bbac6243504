package probe

import (
	"encoding/json"
	"io"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"csvingest/internal/config"
	"csvingest/internal/schema"
)

// request is what the parent writes to the worker's stdin.
type request struct {
	ID     string              `json:"id"`
	Sample Sample              `json:"sample"`
	Format config.FormatConfig `json:"format"`
}

// response is what the worker writes to stdout. Exactly one of Fields and
// Error is meaningful.
type response struct {
	ID     string          `json:"id"`
	Fields []schema.Field  `json:"fields,omitempty"`
	Error  *InferenceError `json:"error,omitempty"`
}

// ServeWorker answers one inference request read from in and writes the
// response to out. Inference failures travel inside the response; the
// returned error only reports a broken exchange.
func ServeWorker(in io.Reader, out io.Writer, lg logrus.FieldLogger) error {
	if lg == nil {
		lg = logrus.StandardLogger()
	}
	var req request
	if err := json.NewDecoder(in).Decode(&req); err != nil {
		return errors.Wrap(err, "probe: decode worker request")
	}
	if req.Format.ReaderOptions == nil {
		req.Format.ReaderOptions = config.Options{}
	}
	if req.Format.ConvertOptions == nil {
		req.Format.ConvertOptions = config.Options{}
	}

	lg = lg.WithFields(logrus.Fields{"request": req.ID, "step": "infer"})
	start := time.Now()
	resp := response{ID: req.ID}
	fields, err := inferSample(req.Sample, req.Format)
	if err != nil {
		var ie *InferenceError
		if !errors.As(err, &ie) {
			ie = failure(KindParse, err)
		}
		resp.Error = ie
		lg.WithField("kind", ie.Kind).WithError(err).Debug("inference failed")
	} else {
		resp.Fields = fields
		lg.WithFields(logrus.Fields{"columns": len(fields), "elapsed": time.Since(start).String()}).Debug("inference done")
	}
	return errors.Wrap(json.NewEncoder(out).Encode(resp), "probe: encode worker response")
}
