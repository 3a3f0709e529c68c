package msapp

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/openfroyo/pakit/pkg/control"
	"github.com/openfroyo/pakit/pkg/editorstate"
	"github.com/openfroyo/pakit/pkg/metadata"
	"github.com/openfroyo/pakit/pkg/normalize"
	"github.com/openfroyo/pakit/pkg/telemetry"
	"github.com/openfroyo/pakit/pkg/templates"
)

// Entry path prefixes of control documents.
const (
	ControlsPrefix   = "Controls/"
	ComponentsPrefix = "Components/"
	documentSuffix   = ".json"
)

// Pipeline stage names, in run order.
const (
	StageParse       = "parse_controls"
	StageStructure   = "normalize_trees"
	StagePromote     = "promote_dynamic_properties"
	StageTemplates   = "resolve_templates"
	StageMetadata    = "normalize_metadata"
	StageEditorState = "merge_editor_state"
	StageWrite       = "write_controls"
)

// Options configure a Pipeline.
type Options struct {
	// RunID identifies the run in logs and spans. A random id is used when
	// empty.
	RunID string

	// IgnoreMissingDataSources is carried to the Result untouched.
	IgnoreMissingDataSources bool

	// Gallery overrides the gallery template descriptor.
	Gallery *templates.GalleryDescriptor

	// Telemetry receives stage spans and metrics. Nil records nothing.
	Telemetry *telemetry.Telemetry

	// Now and NewGUID are used for metadata defaults.
	Now     func() time.Time
	NewGUID func() string
}

// Result describes what a run did to the entry set.
type Result struct {
	RunID string

	// Controls and Components are the control document paths, in
	// processing order.
	Controls   []string
	Components []string

	UsedTemplates []templates.Template
	PcfTemplates  []templates.Template
	References    []templates.Reference

	// Documents are the metadata documents that were created or changed.
	Documents []string

	EditorStateChanged       bool
	IgnoreMissingDataSources bool

	Stats normalize.Stats
}

// Dropped returns the template references that matched no catalog entry.
func (r *Result) Dropped() []templates.Reference {
	return templates.Resolution{References: r.References}.Dropped()
}

// Pipeline normalizes an entry set. A Pipeline holds no per-run state and
// may be reused.
type Pipeline struct {
	opts Options
	tel  *telemetry.Telemetry
}

// New creates a pipeline.
func New(opts Options) *Pipeline {
	tel := opts.Telemetry
	if tel == nil {
		tel = telemetry.Noop()
	}
	return &Pipeline{opts: opts, tel: tel}
}

type parsedDocument struct {
	path      string
	doc       *control.Document
	component bool
}

// run is the state of one Run call.
type run struct {
	p       *Pipeline
	entries *EntrySet
	docs    []parsedDocument
	result  *Result
}

type stage struct {
	name string
	fn   func(r *run, ctx context.Context) error
}

var stages = []stage{
	{StageParse, (*run).parse},
	{StageStructure, (*run).structure},
	{StagePromote, (*run).promote},
	{StageTemplates, (*run).resolveTemplates},
	{StageMetadata, (*run).normalizeMetadata},
	{StageEditorState, (*run).mergeEditorState},
	{StageWrite, (*run).writeControls},
}

// Run normalizes entries in place. Malformed structural input aborts the
// run with a PackError and leaves entries partially rewritten; callers
// should discard the set on error.
func (p *Pipeline) Run(ctx context.Context, entries *EntrySet) (*Result, error) {
	runID := p.opts.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	r := &run{
		p:       p,
		entries: entries,
		result: &Result{
			RunID:                    runID,
			IgnoreMissingDataSources: p.opts.IgnoreMissingDataSources,
		},
	}

	if telemetry.FromTelemetryContext(ctx) == nil {
		ctx = p.tel.WithContext(ctx)
	}
	logger := telemetry.FromContext(ctx).NewComponentLogger("pipeline").WithRunID(runID)
	ctx = logger.WithContext(ctx)

	for _, st := range stages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		st := st
		err := p.tel.RunStage(ctx, st.name, func(ctx context.Context) error {
			return st.fn(r, ctx)
		})
		if err != nil {
			class := string(ClassOf(err))
			p.tel.Metrics.RecordError(class)
			telemetry.Annotate(ctx, telemetry.AttrErrorClass.String(class))
			return nil, err
		}
	}

	logger.Infof("normalized %d control documents and %d component documents",
		len(r.result.Controls), len(r.result.Components))
	return r.result, nil
}

func (r *run) roots() []*control.Control {
	out := make([]*control.Control, 0, len(r.docs))
	for _, d := range r.docs {
		out = append(out, d.doc.TopParent)
	}
	return out
}

func (r *run) parse(ctx context.Context) error {
	logger := telemetry.FromContext(ctx)
	for _, prefix := range []string{ControlsPrefix, ComponentsPrefix} {
		component := prefix == ComponentsPrefix
		for _, path := range r.entries.Match(prefix, documentSuffix) {
			data, _ := r.entries.Get(path)
			doc, err := control.ParseDocument(data)
			if err != nil {
				return NewMalformedError("control document is invalid", err).
					WithEntry(path).
					WithStage(StageParse).
					WithCode(ErrCodeInvalidControl)
			}
			r.docs = append(r.docs, parsedDocument{path: path, doc: doc, component: component})
			if component {
				r.result.Components = append(r.result.Components, path)
			} else {
				r.result.Controls = append(r.result.Controls, path)
			}
			logger.WithEntry(path).Trace("parsed control document")
		}
	}
	telemetry.Annotate(ctx, telemetry.AttrDocuments.Int(len(r.docs)))
	return nil
}

func (r *run) structure(ctx context.Context) error {
	gallery := r.p.opts.Gallery
	if gallery == nil {
		gallery = templates.DefaultGalleryDescriptor()
	}

	roots := r.roots()
	s := normalize.NewStructure(gallery, control.Names(roots...), normalize.NewIDAllocator(roots...),
		telemetry.FromContext(ctx).Zerolog())
	for _, root := range roots {
		s.NormalizeTree(root)
	}

	r.result.Stats = s.Stats
	telemetry.Annotate(ctx, telemetry.AttrControls.Int(s.Stats.Controls))
	m := r.p.tel.Metrics
	m.AddControls(s.Stats.Controls)
	m.AddGalleryTemplates(s.Stats.Synthesized)
	m.AddFlattenedGroups(s.Stats.Lifted)
	return nil
}

func (r *run) promote(context.Context) error {
	for _, root := range r.roots() {
		normalize.PromoteDynamicProperties(root)
	}
	return nil
}

func (r *run) resolveTemplates(ctx context.Context) error {
	existing, _ := r.entries.Get(templates.Path)
	catalog, err := templates.LoadCatalog(existing)
	if err != nil {
		return NewMalformedError("template catalog is invalid", err).
			WithEntry(templates.Path).
			WithStage(StageTemplates).
			WithCode(ErrCodeInvalidDocument)
	}

	res := templates.Resolve(catalog, r.roots())
	out, err := templates.ApplyResolution(existing, res)
	if err != nil {
		return NewInternalError("rebuild template catalog", err).
			WithEntry(templates.Path).
			WithStage(StageTemplates).
			WithCode(ErrCodeEncode)
	}
	r.entries.Put(templates.Path, out)

	r.result.UsedTemplates = res.Used
	r.result.PcfTemplates = res.Pcf
	r.result.References = res.References
	for _, ref := range res.References {
		r.p.tel.Metrics.RecordTemplateResolution(string(ref.Source))
	}
	telemetry.Annotate(ctx, telemetry.AttrTemplates.Int(len(res.Used)+len(res.Pcf)))
	telemetry.FromContext(ctx).Debugf("resolved %d used and %d pcf templates", len(res.Used), len(res.Pcf))
	return nil
}

func (r *run) normalizeMetadata(ctx context.Context) error {
	n := metadata.NewNormalizer()
	if r.p.opts.Now != nil {
		n.Now = r.p.opts.Now
	}
	if r.p.opts.NewGUID != nil {
		n.NewGUID = r.p.opts.NewGUID
	}

	logger := telemetry.FromContext(ctx)
	for _, path := range metadata.Paths() {
		data, ok := r.entries.Get(path)
		if !ok && metadata.Optional(path) && !r.createsOptional(path) {
			logger.WithEntry(path).WithError(NewMissingError("optional document absent")).Trace("skipping metadata document")
			continue
		}
		out, changed, err := n.NormalizeDocument(path, data)
		if err != nil {
			return NewMalformedError("metadata document is invalid", err).
				WithEntry(path).
				WithStage(StageMetadata).
				WithCode(ErrCodeInvalidDocument)
		}
		if changed {
			r.entries.Put(path, out)
			r.result.Documents = append(r.result.Documents, path)
			r.p.tel.Metrics.RecordDocumentRewritten(path)
		}
	}
	return nil
}

// createsOptional reports whether an absent optional document is created
// anyway. Component metadata is needed once a package has components.
func (r *run) createsOptional(path string) bool {
	return path == metadata.PathComponentsMetadata && len(r.result.Components) > 0
}

func (r *run) mergeEditorState(context.Context) error {
	var screens, components []string
	for _, d := range r.docs {
		root := d.doc.TopParent
		switch {
		case d.component:
			components = append(components, root.Name)
		case root.TemplateIs("screen"):
			screens = append(screens, root.Name)
		}
	}

	paths := r.entries.Paths()
	persisted, _ := r.entries.Get(editorstate.Path)
	out, changed, err := editorstate.Update(persisted,
		editorstate.Inputs{FileOrder: editorstate.ScreenFileOrder(paths), Discovered: screens},
		editorstate.Inputs{FileOrder: editorstate.ComponentFileOrder(paths), Discovered: components},
	)
	if err != nil {
		return NewMalformedError("editor state is invalid", err).
			WithEntry(editorstate.Path).
			WithStage(StageEditorState).
			WithCode(ErrCodeInvalidYAML)
	}
	if changed {
		r.entries.Put(editorstate.Path, out)
	}
	r.result.EditorStateChanged = changed
	return nil
}

func (r *run) writeControls(context.Context) error {
	for _, d := range r.docs {
		out, err := d.doc.Marshal()
		if err != nil {
			return NewInternalError("encode control document", err).
				WithEntry(d.path).
				WithStage(StageWrite).
				WithCode(ErrCodeEncode)
		}
		r.entries.Put(d.path, out)
	}
	return nil
}
