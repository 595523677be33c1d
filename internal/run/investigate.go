package run

import (
	"context"
	"fmt"
	"strings"

	"github.com/vulnscout/vulnscout/internal/config"
	scouterr "github.com/vulnscout/vulnscout/internal/errors"
	"github.com/vulnscout/vulnscout/internal/report"
	"github.com/vulnscout/vulnscout/internal/retrieve"
	"github.com/vulnscout/vulnscout/internal/validate"
)

// action is the next investigation step chosen from a verdict.
type action int

const (
	// actionAccept promotes the match to a finding.
	actionAccept action = iota
	// actionReject drops the match.
	actionReject
	// actionExpand widens the snippet with supporting context and asks again.
	actionExpand
)

// decide maps a verdict onto the next action. Confident answers settle the
// match either way; an uncertain one earns another look with more context.
func decide(v validate.Verdict, confidenceThreshold float64) action {
	switch {
	case v.Confirmed && v.Confidence >= confidenceThreshold:
		return actionAccept
	case !v.Confirmed && v.Confidence >= 0.5:
		return actionReject
	default:
		return actionExpand
	}
}

// validateMatches turns matches into findings. The quick tier promotes on
// retrieval confidence alone; standard validates each match once; deep
// investigates uncertain matches with widened context under the run's
// step budget. One match failing validation is logged and skipped; the
// stage fails only when every match fails.
func (o *Orchestrator) validateMatches(ctx context.Context, matches []retrieve.Match) ([]report.Finding, error) {
	findings := []report.Finding{}
	if len(matches) == 0 {
		return findings, nil
	}

	tier := o.svc.Config.Run.Tier
	if tier == config.TierQuick || o.svc.Validator == nil {
		for _, m := range matches {
			findings = append(findings, findingFromMatch(m, validate.Verdict{
				Confirmed:  true,
				Severity:   m.Record.Severity,
				Confidence: m.Confidence,
			}))
		}
		return findings, nil
	}

	budget := o.svc.Config.Run.StepBudget
	if budget <= 0 {
		budget = len(matches)
	}

	var failures int
	for _, m := range matches {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		verdict, ok, err := o.investigate(ctx, m, tier, &budget)
		if err != nil {
			failures++
			o.svc.Logger.Warn("validation failed for candidate, skipping",
				"vuln", m.Record.ID, "error", err)
			continue
		}
		if ok {
			findings = append(findings, findingFromMatch(m, verdict))
		}
	}

	if failures == len(matches) {
		return nil, scouterr.New(scouterr.ErrCodeStageFailed,
			fmt.Sprintf("validation failed for all %d candidates", len(matches)), nil)
	}
	return findings, nil
}

// investigate runs the per-match validation loop. Each validator call
// spends one step from the shared budget; when it runs out, the last
// verdict settles the match as-is.
func (o *Orchestrator) investigate(ctx context.Context, m retrieve.Match, tier string, budget *int) (validate.Verdict, bool, error) {
	desc := describeCandidate(m)
	snippet := m.Chunk.Text

	maxSteps := 1
	if tier == config.TierDeep {
		maxSteps = 3
	}

	var verdict validate.Verdict
	for step := 0; step < maxSteps; step++ {
		if *budget <= 0 {
			break
		}
		*budget--

		var err error
		verdict, err = o.svc.Validator.Validate(ctx, desc, snippet)
		if err != nil {
			return validate.Verdict{}, false, err
		}

		switch decide(verdict, o.svc.Config.Retrieval.ConfidenceThreshold) {
		case actionAccept:
			return verdict, true, nil
		case actionReject:
			return verdict, false, nil
		case actionExpand:
			wider := expandSnippet(m, snippet)
			if wider == snippet {
				// No more context to add; settle on the verdict below.
				step = maxSteps
			}
			snippet = wider
		}
	}

	// Budget or steps exhausted: the last word stands.
	return verdict, verdict.Confirmed, nil
}

// expandSnippet appends supporting chunks not yet part of the snippet, so
// a revalidation sees the surrounding code paths.
func expandSnippet(m retrieve.Match, current string) string {
	var b strings.Builder
	b.WriteString(current)
	added := false
	for _, res := range m.Supporting {
		c, err := retrieve.DecodeChunk(res.Metadata)
		if err != nil || c.Text == "" || strings.Contains(current, c.Text) {
			continue
		}
		b.WriteString(fmt.Sprintf("\n\n// %s:%d\n%s", c.File, c.StartLine, c.Text))
		added = true
		if b.Len() > 8192 {
			break
		}
	}
	if !added {
		return current
	}
	return b.String()
}

// describeCandidate renders the record for the validation prompt.
func describeCandidate(m retrieve.Match) string {
	var b strings.Builder
	b.WriteString(m.Record.Title)
	if m.Record.CWE != "" {
		b.WriteString(" (" + m.Record.CWE + ")")
	}
	if m.Record.Description != "" {
		b.WriteString("\n")
		b.WriteString(m.Record.Description)
	}
	return b.String()
}

// findingFromMatch builds the report entry, preferring the validator's
// severity over the record's.
func findingFromMatch(m retrieve.Match, v validate.Verdict) report.Finding {
	severity := v.Severity
	if severity == "" {
		severity = m.Record.Severity
	}
	if severity == "" {
		severity = "medium"
	}
	return report.Finding{
		VulnID:      m.Record.ID,
		Title:       m.Record.Title,
		Description: m.Record.Description,
		CWE:         m.Record.CWE,
		Severity:    severity,
		Confidence:  v.Confidence,
		Rationale:   v.Rationale,
		Location:    m.Chunk.Ref(),
		Snippet:     m.Chunk.Text,
	}
}
