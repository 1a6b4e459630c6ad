// Package report renders sweep reports and discovered signatures for humans
// and machines.
package report

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"extsweep/internal/catalog"
	"extsweep/internal/sweep"

	"github.com/cyberphone/json-canonicalization/go/src/webpki.org/jsoncanonicalizer"
	"github.com/fatih/color"
)

type palette struct {
	ok, acceptable, unaccounted, skipped, header *color.Color
}

func newPalette(colored bool) palette {
	p := palette{
		ok:          color.New(color.FgGreen),
		acceptable:  color.New(color.FgYellow),
		unaccounted: color.New(color.FgRed, color.Bold),
		skipped:     color.New(color.FgBlue),
		header:      color.New(color.Bold),
	}
	for _, c := range []*color.Color{p.ok, p.acceptable, p.unaccounted, p.skipped, p.header} {
		if colored {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return p
}

func (p palette) status(s sweep.Status) *color.Color {
	switch s {
	case sweep.StatusSuccess:
		return p.ok
	case sweep.StatusAcceptable:
		return p.acceptable
	case sweep.StatusUnaccounted:
		return p.unaccounted
	default:
		return p.skipped
	}
}

// WriteText writes one line per outcome followed by a summary line.
func WriteText(w io.Writer, r *sweep.Report, colored bool) error {
	p := newPalette(colored)

	if _, err := p.header.Fprintf(w, "%s sweep %s: %d invocations over %d signatures in %s\n",
		r.Kind, r.ID, len(r.Outcomes), r.Groups, r.Duration.Round(time.Millisecond)); err != nil {
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, o := range r.Outcomes {
		detail := ""
		switch o.Status {
		case sweep.StatusAcceptable:
			detail = fmt.Sprintf("[%s] %s", o.Rule, o.Message)
		case sweep.StatusUnaccounted:
			detail = o.Message
		}
		// Pad before coloring so escape codes do not skew the columns.
		label := p.status(o.Status).Sprintf("%-11s", o.Status)
		fmt.Fprintf(tw, "  %s\t%s %s\t%s\n", label, o.Function, o.Signature, detail)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fp, err := Fingerprint(r)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "%s ok, %s acceptable, %s unaccounted, %s skipped (fingerprint %s)\n",
		p.ok.Sprint(r.Count(sweep.StatusSuccess)),
		p.acceptable.Sprint(r.Count(sweep.StatusAcceptable)),
		p.unaccounted.Sprint(r.Count(sweep.StatusUnaccounted)),
		p.skipped.Sprint(r.Count(sweep.StatusSkipped)),
		fp)
	return err
}

// Fingerprint hashes the canonical JSON of a report's outcomes. Sweep ids,
// timings and queries are excluded, so repeated sweeps of an unchanged
// target share a fingerprint.
func Fingerprint(r *sweep.Report) (string, error) {
	type entry struct {
		Function  string       `json:"function"`
		Signature string       `json:"signature"`
		Status    sweep.Status `json:"status"`
		Rule      string       `json:"rule,omitempty"`
		Message   string       `json:"message,omitempty"`
	}
	entries := make([]entry, len(r.Outcomes))
	for i, o := range r.Outcomes {
		entries[i] = entry{o.Function, o.Signature, o.Status, o.Rule, o.Message}
	}

	raw, err := json.Marshal(struct {
		Kind     string  `json:"kind"`
		Outcomes []entry `json:"outcomes"`
	}{r.Kind, entries})
	if err != nil {
		return "", err
	}
	canonical, err := jsoncanonicalizer.Transform(raw)
	if err != nil {
		return "", fmt.Errorf("failed to canonicalize report: %w", err)
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:8]), nil
}

// WriteJSON writes the report as indented JSON.
func WriteJSON(w io.Writer, r *sweep.Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

// WriteSignatures lists discovered groups, one signature per line followed
// by its functions.
func WriteSignatures(w io.Writer, groups []catalog.Group, colored bool) error {
	p := newPalette(colored)
	for _, g := range groups {
		if _, err := p.header.Fprintln(w, g.Signature.String()); err != nil {
			return err
		}
		for _, fn := range g.Functions {
			if _, err := fmt.Fprintf(w, "  %s\t%s\n", fn.Name, fn.Symbol); err != nil {
				return err
			}
		}
	}
	return nil
}

type signatureJSON struct {
	Params    []string           `json:"params"`
	Returns   string             `json:"returns,omitempty"`
	Functions []catalog.Function `json:"functions"`
}

// WriteSignaturesJSON writes the groups as a JSON array.
func WriteSignaturesJSON(w io.Writer, groups []catalog.Group) error {
	out := make([]signatureJSON, len(groups))
	for i, g := range groups {
		params := g.Signature.Params
		if params == nil {
			params = []string{}
		}
		out[i] = signatureJSON{Params: params, Returns: g.Signature.Returns, Functions: g.Functions}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
