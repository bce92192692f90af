package sources

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-resty/resty/v2"

	"github.com/painradar/painradar/internal/models"
)

// FailureKind classifies why a source call produced nothing
type FailureKind string

const (
	FailureNetwork     FailureKind = "network"
	FailureStatus      FailureKind = "status"
	FailureRateLimited FailureKind = "rate-limited"
	FailureParse       FailureKind = "parse"
)

// SourceFailure describes one failed external call
type SourceFailure struct {
	Source     string
	Template   string
	Kind       FailureKind
	StatusCode int
	Err        error
}

func (f *SourceFailure) Error() string {
	msg := fmt.Sprintf("%s %s failure", f.Source, f.Kind)
	if f.Template != "" {
		msg += fmt.Sprintf(" for %q", f.Template)
	}
	if f.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", f.StatusCode)
	}
	if f.Err != nil {
		msg += ": " + f.Err.Error()
	}
	return msg
}

func (f *SourceFailure) Unwrap() error {
	return f.Err
}

// Result is what one connector gathered for one query
type Result struct {
	Source   string
	Items    []models.RawItem
	Failures []*SourceFailure
	// Aborted is set when a rate-limit response stopped the remaining templates
	Aborted bool
}

// Failed reports whether the source produced nothing because calls failed,
// as opposed to succeeding with no matches.
func (r *Result) Failed() bool {
	return len(r.Items) == 0 && len(r.Failures) > 0
}

func networkFailure(err error) error {
	return &SourceFailure{Kind: FailureNetwork, Err: err}
}

func parseFailure(err error) error {
	return &SourceFailure{Kind: FailureParse, Err: err}
}

// checkStatus turns a non-200 response into a SourceFailure; 429 and 403 are
// rate limits and stop the remaining templates.
func checkStatus(resp *resty.Response) error {
	code := resp.StatusCode()
	if code == http.StatusOK {
		return nil
	}
	kind := FailureStatus
	if code == http.StatusTooManyRequests || code == http.StatusForbidden {
		kind = FailureRateLimited
	}
	body := string(resp.Body())
	if len(body) > 200 {
		body = body[:200]
	}
	return &SourceFailure{Kind: kind, StatusCode: code, Err: fmt.Errorf("unexpected response: %s", body)}
}

// asFailure attaches source and template to err, defaulting to a network failure
func asFailure(source, template string, err error) *SourceFailure {
	var f *SourceFailure
	if !errors.As(err, &f) {
		f = &SourceFailure{Kind: FailureNetwork, Err: err}
	}
	f.Source = source
	f.Template = template
	return f
}
