package llm

import (
	"bytes"
	"fmt"
	"text/template"
)

type prompts struct {
	system    *template.Template
	questions *template.Template
	integrate *template.Template
	review    *template.Template
}

func parsePrompts() (*prompts, error) {
	p := &prompts{}
	for _, t := range []struct {
		dst  **template.Template
		name string
		text string
	}{
		{&p.system, "system", systemPromptTemplate},
		{&p.questions, "questions", questionsPromptTemplate},
		{&p.integrate, "integrate", integratePromptTemplate},
		{&p.review, "review", reviewPromptTemplate},
	} {
		tmpl, err := template.New(t.name).Parse(t.text)
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s template: %w", t.name, err)
		}
		*t.dst = tmpl
	}
	return p, nil
}

func render(tmpl *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render %s prompt: %w", tmpl.Name(), err)
	}
	return buf.String(), nil
}

const systemPromptTemplate = `You help draft a structured {{.DocType}} document one section at a time.
You never emit HTML comments, section markers, or markdown headings unless asked.
Reply with a single JSON object and nothing else.
{{if .Profile}}
Guidance for {{.DocType}} documents:
{{.Profile}}
{{end}}`

const questionsPromptTemplate = `Section "{{.SectionID}}" of the document still needs content.

Current document context:
{{.Context}}

Ask the smallest set of clarifying questions a human must answer before this section can be written.
{{if .AllowSubsections}}Questions may target a subsection id instead of the section itself.
{{else}}Every question must target "{{.SectionID}}".
{{end}}
Respond in this exact format:
{"questions": [{"question": "...", "section_target": "{{.SectionID}}", "rationale": "..."}]}`

const integratePromptTemplate = `Rewrite the body of section "{{.SectionID}}" using the answers below.

Current body:
{{.Body}}

Answered questions:
{{range .Questions}}- {{.ID}} ({{.Target}}): {{.Text}}
  Answer: {{.Answer}}
{{end}}
{{if .Subsections}}The section has these subsections: {{range $i, $s := .Subsections}}{{if $i}}, {{end}}{{$s}}{{end}}.
Write the content of each subsection that the answers affect, without headings.
Respond in this exact format:
{"subsections": {"<subsection id>": "<content>"}}
{{else}}{{if eq .OutputFormat "bullets"}}Write the body as a markdown bullet list.
{{else}}Write the body as prose paragraphs.
{{end}}Respond in this exact format:
{"body": "<new section body>"}
{{end}}`

const reviewPromptTemplate = `Review these sections of the document as gate "{{.GateID}}".
{{range .Sections}}
### {{.ID}}
{{.Body}}
{{end}}
{{if .Rules}}Apply these review rules:
{{range .Rules}}- {{.}}
{{end}}{{end}}
Report problems as issues with severity "blocker", "warning", or "info".
Only propose patches as full replacement bodies for the listed sections.
Respond in this exact format:
{"pass": true, "summary": "...", "issues": [{"severity": "warning", "section": "...", "description": "..."}], "patches": [{"section": "...", "suggestion": "...", "rationale": "..."}]}`
