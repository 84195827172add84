package narrate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/narrata/internal/analysis"
	"github.com/MrWong99/narrata/internal/observe"
	"github.com/MrWong99/narrata/internal/profilestore"
	"github.com/MrWong99/narrata/internal/segment"
	"github.com/MrWong99/narrata/pkg/audio"
	"github.com/MrWong99/narrata/pkg/emotion"
	"github.com/MrWong99/narrata/pkg/prosody"
	"github.com/MrWong99/narrata/pkg/provider/tts"
	"github.com/MrWong99/narrata/pkg/types"
)

const (
	defaultConcurrency   = 4
	defaultContextWindow = 2
)

// Option configures a [Pipeline].
type Option func(*Pipeline)

// WithSegmenter replaces the default segmenter.
func WithSegmenter(s *segment.Segmenter) Option {
	return func(p *Pipeline) {
		if s != nil {
			p.segmenter = s
		}
	}
}

// WithCombiner replaces the default combiner.
func WithCombiner(c *emotion.Combiner) Option {
	return func(p *Pipeline) {
		if c != nil {
			p.combiner = c
		}
	}
}

// WithMapper replaces the default prosody mapper.
func WithMapper(m *prosody.Mapper) Option {
	return func(p *Pipeline) {
		if m != nil {
			p.mapper = m
		}
	}
}

// WithSynthesizer sets the TTS provider and the voice used for every
// sentence. Without it only [Pipeline.Analyze] is available.
func WithSynthesizer(provider tts.Provider, voice tts.VoiceProfile) Option {
	return func(p *Pipeline) {
		p.tts = provider
		p.voice = voice
	}
}

// WithAssembler replaces the default audio assembler.
func WithAssembler(a *audio.Assembler) Option {
	return func(p *Pipeline) {
		if a != nil {
			p.assembler = a
		}
	}
}

// WithStore persists every profile after analysis. Store failures are
// logged and do not fail the run.
func WithStore(s profilestore.Store) Option {
	return func(p *Pipeline) {
		p.store = s
	}
}

// WithConcurrency bounds how many segments are analysed at once. Default: 4.
func WithConcurrency(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.concurrency = n
		}
	}
}

// WithSynthesisConcurrency bounds parallel synthesis calls. Default: 1.
// Clips are always assembled in reading order.
func WithSynthesisConcurrency(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.synthConcurrency = n
		}
	}
}

// WithContextWindow sets how many same-level neighbours on each side are
// handed to the sarcasm detector. Default: 2.
func WithContextWindow(n int) Option {
	return func(p *Pipeline) {
		if n >= 0 {
			p.contextWindow = n
		}
	}
}

// WithMetrics sets the metrics sink. Default: observe.DefaultMetrics.
func WithMetrics(m *observe.Metrics) Option {
	return func(p *Pipeline) {
		p.metrics = m
	}
}

// Pipeline turns text into emotion profiles, prosody parameters and narrated
// audio. It holds no per-run state and is safe for concurrent use.
type Pipeline struct {
	suite            analysis.Suite
	segmenter        *segment.Segmenter
	combiner         *emotion.Combiner
	mapper           *prosody.Mapper
	tts              tts.Provider
	voice            tts.VoiceProfile
	assembler        *audio.Assembler
	store            profilestore.Store
	concurrency      int
	synthConcurrency int
	contextWindow    int
	metrics          *observe.Metrics
}

// New builds a Pipeline around suite. Components not given as options use
// their package defaults.
func New(suite analysis.Suite, opts ...Option) (*Pipeline, error) {
	if err := suite.Validate(); err != nil {
		return nil, fmt.Errorf("narrate: %w", err)
	}
	p := &Pipeline{
		suite:            suite,
		segmenter:        segment.New(),
		mapper:           prosody.NewMapper(),
		assembler:        audio.NewAssembler(),
		concurrency:      defaultConcurrency,
		synthConcurrency: 1,
		contextWindow:    defaultContextWindow,
	}
	for _, o := range opts {
		o(p)
	}
	if p.combiner == nil {
		c, err := emotion.NewCombiner()
		if err != nil {
			return nil, fmt.Errorf("narrate: %w", err)
		}
		p.combiner = c
	}
	if p.metrics == nil {
		p.metrics = observe.DefaultMetrics()
	}
	if p.suite.Metrics == nil {
		p.suite.Metrics = p.metrics
	}
	return p, nil
}

// CanSynthesize reports whether [Pipeline.Process] is available.
func (p *Pipeline) CanSynthesize() bool { return p.tts != nil }

// Analyze computes profiles and prosody parameters for every segment of
// text without synthesizing audio.
func (p *Pipeline) Analyze(ctx context.Context, text string) (*Analysis, error) {
	start := time.Now()
	ctx, span := observe.StartSpan(ctx, "narrate.Analyze")
	defer span.End()

	a, err := p.analyze(ctx, text)
	if err != nil {
		failSpan(span, err)
		return nil, err
	}
	a.Stats.Duration = time.Since(start)
	p.metrics.PipelineDuration.Record(ctx, a.Stats.Duration.Seconds(), metric.WithAttributes(observe.Attr("mode", "analyze")))
	observe.Logger(ctx).Info("analysis complete",
		"document", a.DocumentID,
		"segments", a.Stats.SegmentsProcessed,
		"rejected", a.Stats.Rejected,
		"duration", a.Stats.Duration,
	)
	return a, nil
}

// Process analyses text, voices every sentence with its own prosody and
// assembles the clips into one track.
func (p *Pipeline) Process(ctx context.Context, text string) (*Result, error) {
	if p.tts == nil {
		return nil, ErrNoSynthesizer
	}
	start := time.Now()
	ctx, span := observe.StartSpan(ctx, "narrate.Process")
	defer span.End()

	p.metrics.ActiveNarrations.Add(ctx, 1)
	defer p.metrics.ActiveNarrations.Add(ctx, -1)

	a, err := p.analyze(ctx, text)
	if err != nil {
		failSpan(span, err)
		return nil, err
	}

	sentences := a.Sentences()
	clips, err := p.synthesize(ctx, sentences)
	if err != nil {
		failSpan(span, err)
		return nil, err
	}
	var track audio.Clip
	err = observe.SpanFunc(ctx, "narrate.assemble", func(context.Context) error {
		var merr error
		track, merr = p.assembler.Merge(clips)
		return merr
	}, attribute.Int("narrate.clips", len(clips)))
	if err != nil {
		err = fmt.Errorf("%w: assemble: %w", ErrSynthesis, err)
		failSpan(span, err)
		return nil, err
	}

	res := &Result{Analysis: *a, Audio: track}
	res.Stats.SentencesVoiced = len(clips)
	res.Stats.AudioDuration = track.Duration()
	res.Stats.Duration = time.Since(start)

	p.metrics.AudioSeconds.Add(ctx, res.Stats.AudioDuration.Seconds())
	p.metrics.PipelineDuration.Record(ctx, res.Stats.Duration.Seconds(), metric.WithAttributes(observe.Attr("mode", "narrate")))
	span.SetAttributes(
		attribute.Int("narrate.sentences", res.Stats.SentencesVoiced),
		attribute.Float64("narrate.audio_seconds", res.Stats.AudioDuration.Seconds()),
	)
	observe.Logger(ctx).Info("narration complete",
		"document", res.DocumentID,
		"segments", res.Stats.SegmentsProcessed,
		"sentences", res.Stats.SentencesVoiced,
		"audio", res.Stats.AudioDuration,
		"duration", res.Stats.Duration,
	)
	return res, nil
}

// job is one admitted segment waiting for analysis.
type job struct {
	seg     types.TextSegment
	raw     string
	context []types.TextSegment
}

func (p *Pipeline) analyze(ctx context.Context, text string) (*Analysis, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: %w", ErrTextProcessing, types.ErrEmptyText)
	}

	raw := p.segmenter.Segment(text)
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: no segments found", ErrTextProcessing)
	}
	pre := segment.PreprocessAll(raw)

	a := &Analysis{DocumentID: DocumentID(text)}
	var jobs []job
	for i, seg := range pre {
		adm := types.Admit(seg)
		if !adm.Accepted {
			a.Rejected = append(a.Rejected, Rejection{Segment: seg, Reason: adm.Reason})
			p.metrics.RecordRejected(ctx, rejectionLabel(seg))
			observe.Logger(ctx).Debug("segment rejected", "segment", seg.ID, "reason", adm.Reason)
			continue
		}
		jobs = append(jobs, job{seg: adm.Segment, raw: raw[i].Text})
	}
	if len(jobs) == 0 {
		return nil, fmt.Errorf("%w: all %d segments were rejected", ErrTextProcessing, len(pre))
	}
	attachContext(jobs, p.contextWindow)

	results := make([]SegmentResult, len(jobs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)
	for i, j := range jobs {
		g.Go(func() error {
			r, err := p.read(gctx, j)
			if err != nil {
				return err
			}
			results[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrAnalysis, err)
	}

	a.Segments = results
	a.Stats.SegmentsProcessed = len(results)
	a.Stats.Rejected = len(a.Rejected)
	p.persist(ctx, a)
	return a, nil
}

// read runs analysis, fusion and mapping for one segment.
func (p *Pipeline) read(ctx context.Context, j job) (SegmentResult, error) {
	ctx, span := observe.StartSpan(ctx, "narrate.segment", trace.WithAttributes(
		attribute.String("segment.id", j.seg.ID),
		attribute.String("segment.type", string(j.seg.Type)),
	))
	defer span.End()

	sig, err := p.suite.Analyze(ctx, analysis.Input{Segment: j.seg, Raw: j.raw, Context: j.context})
	if err != nil {
		failSpan(span, err)
		return SegmentResult{}, err
	}

	t := time.Now()
	profile, err := p.combiner.CombineTimed(j.seg, sig.Lexical, sig.Contextual, sig.Sarcasm, sig.Pragmatic, sig.Elapsed)
	p.metrics.FusionDuration.Record(ctx, time.Since(t).Seconds())
	if err != nil {
		failSpan(span, err)
		return SegmentResult{}, err
	}

	t = time.Now()
	params := p.mapper.Map(profile)
	p.metrics.MappingDuration.Record(ctx, time.Since(t).Seconds())

	var dominant string
	if d, ok := profile.Dominant(); ok {
		dominant = string(d.Type)
	}
	p.metrics.RecordSegment(ctx, string(j.seg.Type), dominant, profile.Sarcastic())
	span.SetAttributes(
		attribute.Float64("emotion.polarity", profile.Sentiment.Polarity),
		attribute.String("emotion.dominant", dominant),
	)
	return SegmentResult{Segment: j.seg, Profile: profile, Prosody: params}, nil
}

// synthesize voices sentences in order. A failed sentence aborts the run.
func (p *Pipeline) synthesize(ctx context.Context, sentences []SegmentResult) ([]audio.Clip, error) {
	if len(sentences) == 0 {
		return nil, fmt.Errorf("%w: %w", ErrSynthesis, audio.ErrNoClips)
	}
	clips := make([]audio.Clip, len(sentences))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.synthConcurrency)
	for i, s := range sentences {
		g.Go(func() error {
			clip, err := p.voiceSentence(gctx, s)
			if err != nil {
				return err
			}
			clips[i] = *clip
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSynthesis, err)
	}
	return clips, nil
}

func (p *Pipeline) voiceSentence(ctx context.Context, s SegmentResult) (*audio.Clip, error) {
	ctx, span := observe.StartSpan(ctx, "narrate.synthesize", trace.WithAttributes(
		attribute.String("segment.id", s.Segment.ID),
		attribute.Float64("prosody.speed", s.Prosody.Speed),
		attribute.Float64("prosody.pitch", s.Prosody.Pitch),
		attribute.Float64("prosody.energy", s.Prosody.Energy),
	))
	defer span.End()

	start := time.Now()
	clip, err := p.tts.Synthesize(ctx, tts.Request{
		SegmentID: s.Segment.ID,
		Text:      s.Segment.Text,
		Voice:     p.voice,
		Prosody:   s.Prosody,
	})
	p.metrics.SynthesisDuration.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		err = fmt.Errorf("sentence %s: %w", s.Segment.ID, err)
		failSpan(span, err)
		return nil, err
	}
	if clip == nil {
		return nil, fmt.Errorf("sentence %s: provider returned no audio", s.Segment.ID)
	}
	return clip, nil
}

func (p *Pipeline) persist(ctx context.Context, a *Analysis) {
	if p.store == nil {
		return
	}
	now := time.Now()
	var errs []error
	for _, r := range a.Segments {
		err := p.store.Save(ctx, profilestore.Record{
			DocumentID: a.DocumentID,
			Profile:    r.Profile,
			Prosody:    r.Prosody,
			CreatedAt:  now,
		})
		if err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		observe.Logger(ctx).Warn("failed to store profiles", "document", a.DocumentID, "failed", len(errs), "err", err)
	}
}

// attachContext gives every job its same-level neighbours, up to window on
// each side.
func attachContext(jobs []job, window int) {
	if window == 0 {
		return
	}
	byType := make(map[types.SegmentType][]int)
	for i, j := range jobs {
		byType[j.seg.Type] = append(byType[j.seg.Type], i)
	}
	for _, idx := range byType {
		for k, i := range idx {
			lo, hi := max(0, k-window), min(len(idx), k+window+1)
			for _, n := range idx[lo:hi] {
				if n != i {
					jobs[i].context = append(jobs[i].context, jobs[n].seg)
				}
			}
		}
	}
}

func rejectionLabel(seg types.TextSegment) string {
	if strings.TrimSpace(seg.Text) == "" {
		return "empty"
	}
	return "invalid"
}

func failSpan(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
