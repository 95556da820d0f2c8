package github

import (
	"context"
	"errors"
	"fmt"
	"strings"

	gh "github.com/google/go-github/v60/github"

	"github.com/cgast/chainexpect/pkg/history"
)

// ErrRunPassed is returned when asked to publish a run with no failures.
var ErrRunPassed = errors.New("run has no failures to publish")

// maxReport bounds each failure report embedded in an issue body.
const maxReport = 4000

// Issue identifies a created issue.
type Issue struct {
	Number int
	URL    string
}

// IssuePublisher opens an issue for each failed run.
type IssuePublisher struct {
	client *Client
	owner  string
	repo   string
	labels []string
}

// NewIssuePublisher creates a publisher targeting owner/repo.
func NewIssuePublisher(client *Client, owner, repo string, labels ...string) *IssuePublisher {
	return &IssuePublisher{client: client, owner: owner, repo: repo, labels: labels}
}

// PublishRun creates an issue describing the failed checks of run.
func (p *IssuePublisher) PublishRun(ctx context.Context, run history.Run) (Issue, error) {
	failed := run.Failed()
	if len(failed) == 0 {
		return Issue{}, ErrRunPassed
	}

	title := fmt.Sprintf("chainexpect: %d failing check(s) in %s", len(failed), run.Suite)
	body := IssueBody(run)
	req := &gh.IssueRequest{Title: &title, Body: &body}
	if len(p.labels) > 0 {
		labels := append([]string(nil), p.labels...)
		req.Labels = &labels
	}

	issue, _, err := p.client.inner.Issues.Create(ctx, p.owner, p.repo, req)
	if err != nil {
		return Issue{}, fmt.Errorf("create issue in %s/%s: %w", p.owner, p.repo, err)
	}
	return Issue{Number: issue.GetNumber(), URL: issue.GetHTMLURL()}, nil
}

// IssueBody renders run as markdown.
func IssueBody(run history.Run) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Run `%s` of suite **%s**", run.ID, run.Suite)
	if run.Source != "" {
		fmt.Fprintf(&b, " (`%s`)", run.Source)
	}
	fmt.Fprintf(&b, " started %s and took %s.\n\n", run.Started.UTC().Format("2006-01-02 15:04:05 MST"), run.Duration)

	b.WriteString("| Check | Status |\n|---|---|\n")
	for _, c := range run.Checks {
		fmt.Fprintf(&b, "| %s | %s |\n", c.Name, c.Status)
	}

	for _, c := range run.Failed() {
		fmt.Fprintf(&b, "\n### %s\n\n", c.Name)
		text := c.Report
		if text == "" {
			text = c.Error
		}
		if len(text) > maxReport {
			text = text[:maxReport] + "\n... (truncated)"
		}
		fmt.Fprintf(&b, "```\n%s\n```\n", strings.TrimRight(text, "\n"))
	}
	return b.String()
}
