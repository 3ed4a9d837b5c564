package api

import (
	"bytes"
	"io"
	"net/http"

	"github.com/goccy/go-json"

	"github.com/logtrail/logtrail/internal/ingest"
)

// maxIngestBody caps the request body at 1 MiB.
const maxIngestBody = 1 << 20

// ingestResponse is the response for POST /api/v1/ingest.
type ingestResponse struct {
	Results []ingest.Result `json:"results"`
}

// handleIngest accepts a single log line object or an array of them and runs
// each through the pipeline, returning one result per line in input order.
func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxIngestBody+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read request body", err)
		return
	}
	if len(body) > maxIngestBody {
		writeError(w, http.StatusRequestEntityTooLarge, "request body too large", nil)
		return
	}

	lines, err := decodeLines(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body", err)
		return
	}
	if len(lines) == 0 {
		writeError(w, http.StatusBadRequest, "empty request", nil)
		return
	}
	for _, line := range lines {
		if line.Raw == "" {
			writeError(w, http.StatusBadRequest, "log field is required", nil)
			return
		}
	}

	results := s.ingester.ProcessBatch(r.Context(), lines)
	writeJSON(w, http.StatusOK, ingestResponse{Results: results})
}

// decodeLines accepts either a single line object or an array of them.
func decodeLines(body []byte) ([]ingest.Line, error) {
	trimmed := bytes.TrimLeft(body, " \t\r\n")
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var lines []ingest.Line
		if err := json.Unmarshal(body, &lines); err != nil {
			return nil, err
		}
		return lines, nil
	}

	var line ingest.Line
	if err := json.Unmarshal(body, &line); err != nil {
		return nil, err
	}
	return []ingest.Line{line}, nil
}
