package drawer

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"text/template"
	"time"

	"github.com/dominikbraun/graph"
	"github.com/pkg/errors"
	"gopkg.in/go-playground/colors.v1" //nolint

	"github.com/askiada/emflow/internal/store"
	"github.com/askiada/emflow/pkg/pipeline/measure"
	"github.com/askiada/emflow/pkg/pipeline/model"
)

// DOTDrawer is a drawer that creates a Graphviz DOT file with the pipeline graph.
type DOTDrawer struct {
	graph       graph.Graph[string, string]
	store       store.CustomStore[string, string]
	steps       map[string]struct{}
	dotFileName string
}

// NewDOTDrawer creates a new DOT drawer.
func NewDOTDrawer(dotFileName string) *DOTDrawer {
	st := store.NewMemoryStore[string, string]()

	return &DOTDrawer{
		dotFileName: dotFileName,
		graph:       graph.NewWithStore(graph.StringHash, st, graph.Directed()),
		store:       st,
		steps:       make(map[string]struct{}),
	}
}

type rgb struct{ r, g, b uint8 }

var (
	notRunColour   = rgb{r: 200, g: 200, b: 200}
	successColour  = rgb{r: 46, g: 160, b: 67}
	failedColour   = rgb{r: 218, g: 54, b: 51}
	degradedColour = rgb{r: 227, g: 160, b: 8}
)

func hex(c rgb) (string, error) {
	colour, err := colors.RGB(c.r, c.g, c.b) //nolint
	if err != nil {
		return "", errors.Wrap(err, "unable to get colour")
	}

	return colour.ToHEX().String(), nil
}

// AddStep adds a step to the pipeline graph. Steps are drawn as not run until
// their outcome is set.
func (d *DOTDrawer) AddStep(name string) error {
	fill, err := hex(notRunColour)
	if err != nil {
		return err
	}

	err = d.graph.AddVertex(name,
		graph.VertexAttribute("style", "filled"),
		graph.VertexAttribute("fillcolor", fill),
	)
	if err != nil {
		return errors.Wrap(err, "unable to add vertex")
	}

	d.steps[name] = struct{}{}

	return nil
}

// AddLink adds a link between parent and child steps.
func (d *DOTDrawer) AddLink(parentName, childName string) error {
	err := d.graph.AddEdge(parentName, childName)
	if err != nil {
		return errors.Wrapf(err, "unable to add edge from %s to %s", parentName, childName)
	}

	return nil
}

// LabelLink labels the link between parent and child steps.
func (d *DOTDrawer) LabelLink(parentName, childName, label string) error {
	err := d.graph.UpdateEdge(parentName, childName,
		graph.EdgeAttribute("label", label),
		graph.EdgeAttribute("fontcolor", "blue"),
	)
	if err != nil {
		return errors.Wrapf(err, "unable to label edge from %s to %s", parentName, childName)
	}

	return nil
}

// SetOutcome colours the step: green on success, red when a required step
// failed and amber when an optional one did.
func (d *DOTDrawer) SetOutcome(outcome model.Outcome) error {
	c := successColour

	switch {
	case outcome.Success:
	case outcome.Required:
		c = failedColour
	default:
		c = degradedColour
	}

	fill, err := hex(c)
	if err != nil {
		return err
	}

	err = d.store.UpdateVertex(outcome.Step, func(p *graph.VertexProperties) {
		p.Attributes["fillcolor"] = fill

		if outcome.Diagnostic != "" {
			p.Attributes["tooltip"] = outcome.Diagnostic
		}
	})
	if err != nil {
		return errors.Wrapf(err, "unable to colour vertex %s", outcome.Step)
	}

	return nil
}

// SetTotalTime sets the total time for the step.
func (d *DOTDrawer) SetTotalTime(stepName string, totalTime time.Duration) error {
	err := d.store.UpdateVertex(stepName, func(p *graph.VertexProperties) {
		p.Attributes["xlabel"] = totalTime.String()
	})
	if err != nil {
		return errors.Wrap(err, "unable to set end vertex label")
	}

	return nil
}

const maxRGB = 240

// AddMeasure writes the average duration of every step next to it and
// colours the links into the steps from blue (fastest) to red (slowest).
func (d *DOTDrawer) AddMeasure(msr measure.Measure) error {
	allStepElapsed := make(map[time.Duration]string)
	sortedAllStepElapsed := []time.Duration{}

	for name, step := range msr.AllMetrics() {
		if _, ok := d.steps[name]; !ok {
			continue
		}

		avg := step.AVGDuration()
		if avg == 0 {
			continue
		}

		if _, ok := allStepElapsed[avg]; ok {
			continue
		}

		allStepElapsed[avg] = ""

		sortedAllStepElapsed = append(sortedAllStepElapsed, avg)
	}

	if len(sortedAllStepElapsed) == 0 {
		return nil
	}

	sort.Slice(sortedAllStepElapsed, func(i, j int) bool {
		return sortedAllStepElapsed[i] > sortedAllStepElapsed[j]
	})

	maxValue := sortedAllStepElapsed[0]
	minValue := sortedAllStepElapsed[len(sortedAllStepElapsed)-1]

	for curr := range allStepElapsed {
		fraction := 1.0
		if maxValue > minValue {
			fraction = float64(curr-minValue) / float64(maxValue-minValue)
		}

		red := maxRGB * fraction
		blue := maxRGB - red

		colour, err := hex(rgb{r: uint8(red), b: uint8(blue)})
		if err != nil {
			return err
		}

		allStepElapsed[curr] = colour
	}

	err := d.updateMetrics(msr, allStepElapsed)
	if err != nil {
		return errors.Wrap(err, "unable to update metrics")
	}

	return nil
}

func (d *DOTDrawer) updateMetrics(msr measure.Measure, allStepElapsed map[time.Duration]string) error {
	predecessors, err := d.graph.PredecessorMap()
	if err != nil {
		return errors.Wrap(err, "unable to get predecessor map")
	}

	for name, step := range msr.AllMetrics() {
		if _, ok := d.steps[name]; !ok {
			continue
		}

		stepAvg := step.AVGDuration()

		err := d.store.UpdateVertex(name, func(p *graph.VertexProperties) {
			if stepAvg != 0 {
				p.Attributes["xlabel"] = stepAvg.String()
			}

			if failures := step.Failures(); failures > 0 {
				p.Attributes["xlabel"] += fmt.Sprintf(", failed %d/%d", failures, step.Runs())
			}
		})
		if err != nil {
			return errors.Wrap(err, "unable to label vertex")
		}

		colour, ok := allStepElapsed[stepAvg]
		if !ok {
			continue
		}

		for parent := range predecessors[name] {
			err := d.graph.UpdateEdge(parent, name, graph.EdgeAttribute("color", colour))
			if err != nil {
				return errors.Wrap(err, "unable to update edge")
			}
		}
	}

	return nil
}

// Draw creates a DOT file with the pipeline graph.
func (d *DOTDrawer) Draw() (err error) {
	file, err := os.Create(d.dotFileName)
	if err != nil {
		return errors.Wrapf(err, "unable to create file %s", d.dotFileName)
	}

	defer func() {
		closeErr := file.Close()
		if err == nil && closeErr != nil {
			err = errors.Wrapf(closeErr, "unable to close file %s", d.dotFileName)
		}
	}()

	err = dot(d.graph, d.store.Order(), file, GraphAttribute("rankdir", "LR"))
	if err != nil {
		return errors.Wrapf(err, "unable to create dot file %s", d.dotFileName)
	}

	return nil
}

//nolint:lll //this is a template
const dotTemplate = `strict {{.GraphType}} {
	{{range $k, $v := .Attributes}}
		{{$k}}="{{$v}}";
	{{end}}
	{{range $s := .Statements}}
		"{{.Source}}" {{if .Target}}{{$.EdgeOperator}} "{{.Target}}" [ {{range $k, $v := .EdgeAttributes}}{{$k}}="{{$v}}", {{end}} weight={{.EdgeWeight}} ]{{else}}[ {{range $k, $v := .HTMLAttributes}}{{$k}}={{$v}}, {{end}} {{range $k, $v := .SourceAttributes}}{{$k}}="{{$v}}", {{end}} weight={{.SourceWeight}} ]{{end}};
	{{end}}
	}
	`

type description struct {
	GraphType    string
	Attributes   map[string]string
	EdgeOperator string
	Statements   []statement
}

type statement struct {
	Source           interface{}
	Target           interface{}
	SourceAttributes map[string]string
	HTMLAttributes   map[string]string
	EdgeAttributes   map[string]string
	SourceWeight     int
	EdgeWeight       int
}

func dot(g graph.Graph[string, string], order []string, wrt io.Writer, options ...func(*description)) error {
	desc, err := generateDOT(g, order, options...)
	if err != nil {
		return fmt.Errorf("failed to generate DOT description: %w", err)
	}

	return renderDOT(wrt, desc)
}

// GraphAttribute is a functional option for the [DOT] method.
func GraphAttribute(key, value string) func(*description) {
	return func(d *description) {
		d.Attributes[key] = value
	}
}

func escape(s string) string {
	return strings.ReplaceAll(s, `"`, `\"`)
}

// generateDOT lists vertices in the given order, each followed by its edges
// sorted by target, so that the same run always renders the same file.
func generateDOT(gra graph.Graph[string, string], order []string, options ...func(*description)) (description, error) {
	desc := description{
		GraphType:    "graph",
		Attributes:   make(map[string]string),
		EdgeOperator: "--",
		Statements:   make([]statement, 0),
	}

	for _, option := range options {
		option(&desc)
	}

	if gra.Traits().IsDirected {
		desc.GraphType = "digraph"
		desc.EdgeOperator = "->"
	}

	adjacencyMap, err := gra.AdjacencyMap()
	if err != nil {
		return desc, errors.Wrap(err, "unable to get adjacency map")
	}

	for _, vertex := range order {
		_, sourceProperties, err := gra.VertexWithProperties(vertex)
		if err != nil {
			return desc, errors.Wrap(err, "unable to get vertex properties")
		}

		htmlAttributes := make(map[string]string)
		sourceAttributes := make(map[string]string, len(sourceProperties.Attributes))

		for k, v := range sourceProperties.Attributes {
			if k == "xlabel" {
				htmlAttributes["label"] = fmt.Sprintf(`<%+v <BR /> <FONT POINT-SIZE="12">%s</FONT>>`, vertex, v)

				continue
			}

			sourceAttributes[k] = escape(v)
		}

		stmt := statement{
			Source:           vertex,
			SourceWeight:     sourceProperties.Weight,
			SourceAttributes: sourceAttributes,
			HTMLAttributes:   htmlAttributes,
		}
		desc.Statements = append(desc.Statements, stmt)

		targets := make([]string, 0, len(adjacencyMap[vertex]))
		for target := range adjacencyMap[vertex] {
			targets = append(targets, target)
		}
		sort.Strings(targets)

		for _, target := range targets {
			edge := adjacencyMap[vertex][target]
			edgeAttributes := make(map[string]string, len(edge.Properties.Attributes))

			for k, v := range edge.Properties.Attributes {
				edgeAttributes[k] = escape(v)
			}

			stmt := statement{
				Source:         vertex,
				Target:         target,
				EdgeWeight:     edge.Properties.Weight,
				EdgeAttributes: edgeAttributes,
			}
			desc.Statements = append(desc.Statements, stmt)
		}
	}

	return desc, nil
}

func renderDOT(wrt io.Writer, desc description) error {
	tpl, err := template.New("dotTemplate").Parse(dotTemplate)
	if err != nil {
		return fmt.Errorf("failed to parse template: %w", err)
	}

	err = tpl.Execute(wrt, desc)
	if err != nil {
		return errors.Wrap(err, "unable to execute template")
	}

	return nil
}

var _ Drawer = (*DOTDrawer)(nil)
