// Package feedback turns a metric bundle into a ranked list of
// recommendations.
//
// Each [Rule] inspects the bundle independently and, when its condition
// holds, yields a severity plus template data. Messages are rendered from
// the language profile's templates, falling back to a configurable language
// when the profile lacks one. Items are ordered by severity, most severe
// first, then by rule order. When no warning or critical item is produced an
// encouragement item is added, so the result is never empty.
package feedback

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"text/template"

	"github.com/MrWong99/voicemeter/pkg/lang"
	"github.com/MrWong99/voicemeter/pkg/types"
)

// EncouragementRule is the id of the item emitted when nothing negative
// fired.
const EncouragementRule = "encouragement"

// maxListedWords caps the words quoted in a message.
const maxListedWords = 5

// Bundle is everything the rules may inspect.
type Bundle struct {
	Language types.LanguageCode
	Metrics  types.Metrics

	// ExpectedCount is the number of expected tokens. Accuracy rules stay
	// silent when it is zero.
	ExpectedCount   int
	SimilarityRatio float64
	MissingWords    []string
	ExtraWords      []string
}

// Data is passed to message templates.
type Data struct {
	Value float64
	Min   float64
	Max   float64
	Count int
	Words string
}

// Rule is one feedback condition. Evaluate returns ok=false when the rule
// does not apply.
type Rule struct {
	ID       string
	Metric   string
	Evaluate func(b Bundle, th Thresholds) (sev types.Severity, data Data, ok bool)
}

// Option configures an [Engine].
type Option func(*Engine)

// WithRules replaces the default rule set. Rule order is priority order.
func WithRules(rules ...Rule) Option {
	return func(e *Engine) {
		e.rules = rules
	}
}

// WithThresholds replaces the default trigger thresholds.
func WithThresholds(th Thresholds) Option {
	return func(e *Engine) {
		e.thresholds = th
	}
}

// WithFallbackLanguage sets the language whose templates are used when the
// utterance's language lacks one. Default: en-US.
func WithFallbackLanguage(code types.LanguageCode) Option {
	return func(e *Engine) {
		e.fallback = code
	}
}

// Engine evaluates rules. Templates are parsed once in [New]; the engine is
// read-only afterwards and safe for concurrent use.
type Engine struct {
	table      *lang.Table
	rules      []Rule
	thresholds Thresholds
	fallback   types.LanguageCode

	// templates[code][ruleID]
	templates map[types.LanguageCode]map[string]*template.Template
}

var funcs = template.FuncMap{
	"pct": func(v float64) string { return fmt.Sprintf("%.0f%%", v*100) },
	"num": func(v float64) string { return fmt.Sprintf("%.1f", v) },
}

// New builds an [Engine] over table. It fails when a template does not parse
// or the fallback language misses a template for any rule.
func New(table *lang.Table, opts ...Option) (*Engine, error) {
	e := &Engine{
		table:      table,
		rules:      DefaultRules(),
		thresholds: DefaultThresholds(),
		fallback:   types.LanguageEnglishUS,
		templates:  make(map[types.LanguageCode]map[string]*template.Template),
	}
	for _, o := range opts {
		o(e)
	}

	ids := make([]string, 0, len(e.rules)+1)
	for _, r := range e.rules {
		ids = append(ids, r.ID)
	}
	ids = append(ids, EncouragementRule)

	var errs []error
	for _, code := range table.Codes() {
		p, _ := table.Profile(code)
		byRule := make(map[string]*template.Template, len(ids))
		for _, id := range ids {
			text, ok := p.Message(id)
			if !ok {
				continue
			}
			tmpl, err := template.New(id).Funcs(funcs).Option("missingkey=error").Parse(text)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s.%s: %w", code, id, err))
				continue
			}
			byRule[id] = tmpl
		}
		e.templates[code] = byRule
	}
	if fb, ok := e.templates[e.fallback]; !ok {
		errs = append(errs, fmt.Errorf("fallback language %q has no profile", e.fallback))
	} else {
		for _, id := range ids {
			if _, ok := fb[id]; !ok {
				errs = append(errs, fmt.Errorf("fallback language %q has no message for rule %q", e.fallback, id))
			}
		}
	}
	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("feedback: %w", err)
	}
	return e, nil
}

// Generate evaluates every rule against b and returns the triggered items,
// most severe first. The result always holds at least one item.
func (e *Engine) Generate(b Bundle) ([]types.FeedbackItem, error) {
	var items []types.FeedbackItem
	negative := false
	for _, r := range e.rules {
		sev, data, ok := r.Evaluate(b, e.thresholds)
		if !ok {
			continue
		}
		msg, err := e.render(b.Language, r.ID, data)
		if err != nil {
			return nil, err
		}
		items = append(items, types.FeedbackItem{Rule: r.ID, Severity: sev, Message: msg, RelatedMetric: r.Metric})
		if sev != types.SeverityInfo {
			negative = true
		}
	}
	if !negative {
		msg, err := e.render(b.Language, EncouragementRule, Data{Value: b.Metrics.Scores.Overall})
		if err != nil {
			return nil, err
		}
		items = append(items, types.FeedbackItem{
			Rule:          EncouragementRule,
			Severity:      types.SeverityInfo,
			Message:       msg,
			RelatedMetric: "scores.overall",
		})
	}
	slices.SortStableFunc(items, func(a, b types.FeedbackItem) int {
		return b.Severity.Rank() - a.Severity.Rank()
	})
	return items, nil
}

func (e *Engine) render(code types.LanguageCode, rule string, data Data) (string, error) {
	tmpl, ok := e.templates[code][rule]
	if !ok {
		tmpl = e.templates[e.fallback][rule]
	}
	var sb strings.Builder
	if err := tmpl.Execute(&sb, data); err != nil {
		return "", &types.AnalysisError{Stage: "feedback", Reason: fmt.Sprintf("render %q", rule), Err: err}
	}
	return sb.String(), nil
}

// listWords joins up to maxListedWords words for display.
func listWords(words []string) string {
	if len(words) > maxListedWords {
		return strings.Join(words[:maxListedWords], ", ") + ", …"
	}
	return strings.Join(words, ", ")
}
