package ui

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/gomarkdown/markdown"
	mdhtml "github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"

	"merlt/domain/core"
	"merlt/domain/expert"
)

// handleRenderAnswer renders a session's best synthesis as HTML. Answer
// content is markdown; alternatives are appended as their own sections so
// preserved disagreement stays visible in the rendered view.
func (a *App) handleRenderAnswer(w http.ResponseWriter, r *http.Request) {
	id, err := core.ParseSessionID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	snapshot, err := a.sessions.GetSession(r.Context(), id)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	if snapshot.BestEffort == nil {
		writeError(w, http.StatusNotFound, fmt.Errorf("session %s has no synthesis yet", id))
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write(renderResult(*snapshot.BestEffort))
}

// renderResult converts a synthesis result to HTML via markdown
func renderResult(result expert.Result) []byte {
	var doc strings.Builder

	result.Match(
		func(primary expert.Answer) {
			writeAnswer(&doc, "Answer", primary)
		},
		func(primary expert.Answer, alternatives []expert.Alternative) {
			writeAnswer(&doc, "Primary interpretation", primary)
			for _, alt := range alternatives {
				title := fmt.Sprintf("Alternative (%s, %.0f%% support)", alt.Support, alt.WeightedSupport*100)
				writeAnswer(&doc, title, alt.Answer)
			}
		},
	)

	if result.Degraded {
		doc.WriteString("\n> Partial round: one or more experts did not respond in time.\n")
	}

	p := parser.NewWithExtensions(parser.CommonExtensions | parser.AutoHeadingIDs)
	renderer := mdhtml.NewRenderer(mdhtml.RendererOptions{Flags: mdhtml.CommonFlags})
	return markdown.ToHTML([]byte(doc.String()), p, renderer)
}

func writeAnswer(doc *strings.Builder, title string, answer expert.Answer) {
	fmt.Fprintf(doc, "## %s\n\n", title)
	doc.WriteString(answer.Content)
	doc.WriteString("\n\n")
	if len(answer.Citations) > 0 {
		doc.WriteString("**Citations**\n\n")
		for _, c := range answer.Citations {
			if c.Passage != "" {
				fmt.Fprintf(doc, "- %s: %s\n", c.Source, c.Passage)
			} else {
				fmt.Fprintf(doc, "- %s\n", c.Source)
			}
		}
		doc.WriteString("\n")
	}
}
