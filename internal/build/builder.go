// Package build compiles a source directory into the document store.
//
// Documents are independent: each is compiled on its own by a pool of
// workers, and a document that fails is recorded and skipped without
// affecting the others. Only documents that compiled and validated are
// persisted.
package build

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"git.home.luguber.info/inful/docfold/internal/config"
	"git.home.luguber.info/inful/docfold/internal/docstore"
	"git.home.luguber.info/inful/docfold/internal/foundation/errors"
	"git.home.luguber.info/inful/docfold/internal/logfields"
	"git.home.luguber.info/inful/docfold/internal/markdown"
	"git.home.luguber.info/inful/docfold/internal/metrics"
	"git.home.luguber.info/inful/docfold/internal/storage"
)

// DocumentStore is where compiled documents and build runs are recorded.
type DocumentStore interface {
	Put(ctx context.Context, rec *docstore.Record) error
	Delete(ctx context.Context, slug string) error
	Fingerprint(ctx context.Context, path string) (string, bool, error)
	StartRun(ctx context.Context) (string, error)
	FinishRun(ctx context.Context, run docstore.Run) error
	RecordFailure(ctx context.Context, buildID, path string, cause error) error
	DeleteMissing(ctx context.Context, keepPaths map[string]bool) ([]string, error)
	ReferencedObjects(ctx context.Context) (map[string]bool, error)
}

// collector is implemented by object stores that support garbage collection.
type collector interface {
	GC(ctx context.Context, referenced map[string]bool) (int, error)
	AddBuildRef(buildID string, hashes []string) error
}

// Builder compiles sources into a DocumentStore.
type Builder struct {
	cfg       *config.Config
	docs      DocumentStore
	objects   storage.ObjectStore
	converter *markdown.Converter
	recorder  metrics.Recorder
	force     bool

	images markdown.ImageResolver
	links  markdown.LinkPreviewer
}

// Option customizes a Builder.
type Option func(*Builder)

// WithRecorder injects a metrics recorder.
func WithRecorder(r metrics.Recorder) Option {
	return func(b *Builder) {
		if r != nil {
			b.recorder = r
		}
	}
}

// WithImageResolver sets the resolver for local images.
func WithImageResolver(r markdown.ImageResolver) Option {
	return func(b *Builder) { b.images = r }
}

// WithLinkPreviewer sets the link card fetcher.
func WithLinkPreviewer(p markdown.LinkPreviewer) Option {
	return func(b *Builder) { b.links = p }
}

// WithForce recompiles sources even when their fingerprint is unchanged.
func WithForce(force bool) Option {
	return func(b *Builder) { b.force = force }
}

// New creates a Builder. objects may be nil, in which case Markdown bodies are
// not stored.
func New(cfg *config.Config, docs DocumentStore, objects storage.ObjectStore, opts ...Option) *Builder {
	b := &Builder{
		cfg:      cfg,
		docs:     docs,
		objects:  objects,
		recorder: metrics.NoopRecorder{},
	}
	for _, opt := range opts {
		opt(b)
	}
	b.converter = markdown.New(markdown.Options{Images: b.images, Links: b.links})
	return b
}

// Build compiles every source in the source directory, removes documents
// whose source is gone and, when configured, collects unreferenced objects.
func (b *Builder) Build(ctx context.Context) (*Report, error) {
	sources, err := Discover(b.cfg.Source.Dir, b.cfg.Source.Include, b.cfg.Source.Exclude)
	if err != nil {
		return nil, err
	}
	return b.run(ctx, sources, nil, true, slugOwners(sources))
}

// BuildPaths recompiles the given source-relative paths. Paths that no longer
// exist have their documents removed.
func (b *Builder) BuildPaths(ctx context.Context, paths []string) (*Report, error) {
	all, err := Discover(b.cfg.Source.Dir, b.cfg.Source.Include, b.cfg.Source.Exclude)
	if err != nil {
		return nil, err
	}
	owners := slugOwners(all)
	var (
		sources []Source
		gone    []string
	)
	seen := map[string]bool{}
	for _, rel := range paths {
		if seen[rel] {
			continue
		}
		seen[rel] = true
		src := Source{Path: rel, Abs: joinSource(b.cfg.Source.Dir, rel)}
		if src.Kind() == "" || !Matches(rel, b.cfg.Source.Include, b.cfg.Source.Exclude) {
			continue
		}
		if _, err := os.Stat(src.Abs); os.IsNotExist(err) {
			// The slug may now belong to a source that collided with this one.
			if others := owners[Slug(rel)]; len(others) > 0 {
				for _, p := range others {
					if !seen[p] {
						seen[p] = true
						sources = append(sources, Source{Path: p, Abs: joinSource(b.cfg.Source.Dir, p)})
					}
				}
				continue
			}
			gone = append(gone, rel)
			continue
		}
		sources = append(sources, src)
	}
	sort.Slice(sources, func(i, j int) bool { return sources[i].Path < sources[j].Path })
	return b.run(ctx, sources, gone, false, owners)
}

// slugOwners maps every slug to the sorted paths of the sources producing it.
func slugOwners(sources []Source) map[string][]string {
	owners := make(map[string][]string, len(sources))
	for _, src := range sources {
		slug := Slug(src.Path)
		owners[slug] = append(owners[slug], src.Path)
	}
	for _, paths := range owners {
		sort.Strings(paths)
	}
	return owners
}

func (b *Builder) run(ctx context.Context, sources []Source, gone []string, full bool, owners map[string][]string) (*Report, error) {
	start := time.Now()
	buildID, err := b.docs.StartRun(ctx)
	if err != nil {
		return nil, err
	}
	log := slog.With(logfields.BuildID(buildID))
	workers := max(1, min(b.cfg.Build.Workers, len(sources)))
	b.recorder.SetWorkers(workers)
	log.Info("Starting build", slog.Int("documents", len(sources)), logfields.Workers(workers))

	report := &Report{BuildID: buildID, Results: make([]Result, len(sources))}

	jobs := make(chan int)
	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				report.Results[i] = b.process(ctx, buildID, sources[i], owners[Slug(sources[i].Path)])
			}
		}()
	}
	for i := range sources {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	// A slug claimed by several sources must not keep serving whichever won earlier.
	cleared := map[string]bool{}
	for _, src := range sources {
		slug := Slug(src.Path)
		if len(owners[slug]) < 2 || cleared[slug] {
			continue
		}
		cleared[slug] = true
		if err := b.docs.Delete(ctx, slug); err != nil {
			if errors.GetCategory(err) != errors.CategoryNotFound {
				return nil, err
			}
			continue
		}
		report.Removed = append(report.Removed, slug)
	}

	for _, rel := range gone {
		slug := Slug(rel)
		if err := b.docs.Delete(ctx, slug); err != nil && errors.GetCategory(err) != errors.CategoryNotFound {
			return nil, err
		}
		report.Removed = append(report.Removed, slug)
	}

	canceled := ctx.Err() != nil
	if full && !canceled {
		keepPaths := make(map[string]bool, len(sources))
		for _, src := range sources {
			keepPaths[src.Path] = true
		}
		removed, err := b.docs.DeleteMissing(ctx, keepPaths)
		if err != nil {
			return nil, err
		}
		report.Removed = append(report.Removed, removed...)

		if b.cfg.Build.GC {
			if report.Collected, err = b.collect(ctx, buildID); err != nil {
				return nil, err
			}
		}
	}

	report.Duration = time.Since(start)
	report.finish(canceled)
	failed := report.Count(metrics.ResultFailed)
	// Use a fresh context so a canceled build still records its outcome.
	finishCtx := context.WithoutCancel(ctx)
	if err := b.docs.FinishRun(finishCtx, docstore.Run{
		ID:        buildID,
		Documents: len(report.Results),
		Failed:    failed,
		Outcome:   string(report.Outcome),
	}); err != nil {
		return nil, err
	}
	b.recorder.ObserveBuildDuration(report.Duration)
	b.recorder.IncBuildOutcome(report.Outcome)

	log.Info("Build finished",
		slog.String("outcome", string(report.Outcome)),
		slog.Int("compiled", report.Count(metrics.ResultSuccess)+report.Count(metrics.ResultWarning)),
		slog.Int("skipped", report.Count(metrics.ResultSkipped)),
		slog.Int("failed", failed),
		slog.Int("removed", len(report.Removed)),
		logfields.DurationMS(float64(report.Duration.Microseconds())/1000))
	return report, nil
}

// collect removes objects no stored document references.
func (b *Builder) collect(ctx context.Context, buildID string) (int, error) {
	gc, ok := b.objects.(collector)
	if !ok {
		return 0, nil
	}
	refs, err := b.docs.ReferencedObjects(ctx)
	if err != nil {
		return 0, err
	}
	hashes := make([]string, 0, len(refs))
	for h := range refs {
		hashes = append(hashes, h)
	}
	sort.Strings(hashes)
	if err := gc.AddBuildRef(buildID, hashes); err != nil {
		return 0, err
	}
	removed, err := gc.GC(ctx, refs)
	if err != nil {
		return removed, err
	}
	slog.Info("Collected unreferenced objects", logfields.BuildID(buildID), slog.Int("removed", removed))
	return removed, nil
}

// process compiles and stores one source. It never returns an error: failures
// are part of the result.
func (b *Builder) process(ctx context.Context, buildID string, src Source, owners []string) (res Result) {
	start := time.Now()
	res = Result{Path: src.Path, Slug: Slug(src.Path)}
	log := slog.With(logfields.BuildID(buildID), logfields.Path(src.Path))

	defer func() {
		if r := recover(); r != nil {
			res.Err = errors.InternalError(fmt.Sprintf("panic while compiling: %v", r)).
				WithContext("path", src.Path).
				Build()
		}
		res.Duration = time.Since(start)
		if res.Err != nil {
			res.Status = metrics.ResultFailed
			if err := b.docs.RecordFailure(context.WithoutCancel(ctx), buildID, src.Path, res.Err); err != nil {
				log.Error("Failed to record document failure", logfields.Error(err))
			}
			log.Warn("Document failed",
				slog.String("category", string(errors.GetCategory(res.Err))),
				logfields.Error(res.Err))
		}
		if res.Status != metrics.ResultSkipped {
			b.recorder.ObserveDocumentDuration(res.Duration)
		}
		b.recorder.IncDocumentResult(res.Status)
	}()

	if err := ctx.Err(); err != nil {
		res.Err = errors.WrapError(err, errors.CategoryRuntime, "build canceled").Build()
		return res
	}

	if len(owners) > 1 {
		res.Err = errors.ValidationError("several sources map to the same slug").
			WithContext("slug", res.Slug).
			WithContext("paths", strings.Join(owners, ", ")).
			Build()
		return res
	}

	content, err := os.ReadFile(src.Abs)
	if err != nil {
		res.Err = errors.WrapError(err, errors.CategoryFileSystem, "read source").
			WithContext("path", src.Path).
			Build()
		return res
	}

	fp, err := Fingerprint(src, content)
	if err != nil {
		res.Err = err
		return res
	}
	if !b.force {
		if stored, ok, err := b.docs.Fingerprint(ctx, src.Path); err == nil && ok && stored == fp {
			res.Status = metrics.ResultSkipped
			log.Debug("Document unchanged")
			return res
		}
	}

	compiled, err := b.Compile(ctx, src, content)
	if err != nil {
		res.Err = err
		return res
	}
	res.Warnings = compiled.Warnings
	res.Stats = compiled.Stats()

	rec := &docstore.Record{
		Slug:        compiled.Slug,
		Path:        src.Path,
		Fingerprint: fp,
		Document:    compiled.Document,
		BuildID:     buildID,
	}
	if compiled.Kind == KindMarkdown && b.objects != nil {
		ref, err := storeBody(ctx, b.objects, compiled.Slug, fp, compiled.Body)
		if err != nil {
			res.Err = err
			return res
		}
		rec.Source = ref
	}
	if err := b.docs.Put(ctx, rec); err != nil {
		res.Err = err
		return res
	}

	counts := metrics.NodeCounts{Folded: res.Stats.Folded, Partial: res.Stats.Partial, Keep: map[string]int{}}
	for kind, n := range res.Stats.KeepByType {
		counts.Keep[string(kind)] = n
		log.Debug("Kept nodes", logfields.KeepKind(string(kind)), slog.Int("count", n))
	}
	b.recorder.AddNodes(counts)

	res.Status = metrics.ResultSuccess
	for _, w := range res.Warnings {
		res.Status = metrics.ResultWarning
		log.Warn("Document warning", logfields.Stage(w.Stage), slog.String("subject", w.Subject), logfields.Error(w.Err))
	}
	log.Debug("Compiled document",
		logfields.Document(compiled.Slug),
		logfields.ContentID(compiled.Forest.ID.Short()),
		slog.Int("folded", res.Stats.Folded),
		slog.Int("partial", res.Stats.Partial))
	return res
}
