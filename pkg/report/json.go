package report

import (
	"encoding/json"
	"io"

	"github.com/google/uuid"
)

// JSONOutput is the JSON structure written to output files.
type JSONOutput struct {
	RunID        string    `json:"run_id"`
	Valid        bool      `json:"valid"`
	Files        int       `json:"files"`
	Messages     []Message `json:"messages"`
	FatalCount   int       `json:"fatal_count"`
	ErrorCount   int       `json:"error_count"`
	WarningCount int       `json:"warning_count"`
}

// WriteJSON writes the report in JSON format to w. A run id is assigned
// to the report if it has none.
func (r *Report) WriteJSON(w io.Writer) error {
	if r.RunID == "" {
		r.RunID = uuid.NewString()
	}
	out := JSONOutput{
		RunID:        r.RunID,
		Valid:        r.IsValid(),
		Files:        r.Files,
		Messages:     r.Messages,
		FatalCount:   r.FatalCount(),
		ErrorCount:   r.ErrorCount(),
		WarningCount: r.WarningCount(),
	}
	if out.Messages == nil {
		out.Messages = []Message{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
