package output

import (
	"bufio"
	"encoding/json"
	"io"
	"sort"
	"time"

	"github.com/selimozcann/statuspeek/internal/model"
	"github.com/selimozcann/statuspeek/internal/util"
)

// ResultType enumerates the classification of a redirect chain.
type ResultType string

const (
	ResultTypeOK                ResultType = "ok"
	ResultTypeRedirect          ResultType = "redirect"
	ResultTypeCrossSiteRedirect ResultType = "cross_site_redirect"
	ResultTypeHTTPError         ResultType = "http_error"
	ResultTypeError             ResultType = "error"
)

// Hop is one entry of redirect_chain on the wire.
type Hop struct {
	Status int    `json:"status"`
	URL    string `json:"url"`
}

// Record represents one line in the JSONL output.
type Record struct {
	SourceURL     string          `json:"source_url"`
	TargetURL     string          `json:"target_url"`
	InitialStatus int             `json:"initial_status"`
	FinalStatus   *int            `json:"final_status"`
	RedirectChain []Hop           `json:"redirect_chain"`
	IsSafe        bool            `json:"is_safe"`
	Error         *string         `json:"error"`
	ErrorMessage  string          `json:"error_message,omitempty"`
	Type          ResultType      `json:"type"`
	Findings      []model.Finding `json:"findings,omitempty"`
	Timestamp     string          `json:"timestamp"`
	DurationMs    int64           `json:"duration_ms"`
}

// Summary contains counters across a batch.
type Summary struct {
	Total      int            `json:"total"`
	Safe       int            `json:"safe"`
	Redirected int            `json:"redirected"`
	CrossSite  int            `json:"cross_site"`
	Errors     int            `json:"errors"`
	ByError    map[string]int `json:"by_error,omitempty"`
}

// ErrorKinds returns the error kinds of the summary in stable order.
func (s Summary) ErrorKinds() []string {
	kinds := make([]string, 0, len(s.ByError))
	for k := range s.ByError {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

// BuildRecord converts a model.CheckResult into its wire form.
func BuildRecord(res model.CheckResult) Record {
	chain := make([]Hop, len(res.Hops))
	for i, h := range res.Hops {
		chain[i] = Hop{Status: h.Status, URL: h.URL}
	}
	var errStr *string
	if res.Error != nil {
		s := string(*res.Error)
		errStr = &s
	}
	var final *int
	if res.FinalStatus != nil {
		f := *res.FinalStatus
		final = &f
	}
	return Record{
		SourceURL:     res.SourceURL,
		TargetURL:     res.TargetURL,
		InitialStatus: res.InitialStatus,
		FinalStatus:   final,
		RedirectChain: chain,
		IsSafe:        res.IsSafe,
		Error:         errStr,
		ErrorMessage:  res.ErrorMessage,
		Type:          DetermineType(res),
		Findings:      append([]model.Finding(nil), res.Findings...),
		Timestamp:     res.StartedAt.UTC().Format(time.RFC3339),
		DurationMs:    res.DurationMs,
	}
}

// BuildSummary derives high level counters from the results.
func BuildSummary(results []model.CheckResult) Summary {
	sum := Summary{Total: len(results), ByError: map[string]int{}}
	for _, res := range results {
		if res.IsSafe {
			sum.Safe++
		}
		switch DetermineType(res) {
		case ResultTypeRedirect:
			sum.Redirected++
		case ResultTypeCrossSiteRedirect:
			sum.Redirected++
			sum.CrossSite++
		}
		if res.Error != nil {
			sum.Errors++
			sum.ByError[string(*res.Error)]++
		}
	}
	return sum
}

// DetermineType classifies the given result into one of the ResultType values.
func DetermineType(res model.CheckResult) ResultType {
	if res.Error != nil {
		return ResultTypeError
	}
	if res.LastStatus() >= 400 {
		return ResultTypeHTTPError
	}
	if len(res.Hops) > 0 {
		if !util.SameSite(res.SourceURL, res.TargetURL) {
			return ResultTypeCrossSiteRedirect
		}
		return ResultTypeRedirect
	}
	return ResultTypeOK
}

// WriteJSONL writes each record as a JSON line to w.
func WriteJSONL(w io.Writer, records []Record) error {
	bw := bufio.NewWriter(w)
	enc := json.NewEncoder(bw)
	enc.SetEscapeHTML(false)
	for _, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return err
		}
	}
	return bw.Flush()
}
