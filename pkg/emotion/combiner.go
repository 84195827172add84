package emotion

import (
	"errors"
	"fmt"
	"time"

	"github.com/MrWong99/narrata/pkg/types"
)

// ModelVersion is the version tag stamped on every profile by default.
const ModelVersion = "1.0.0"

const (
	// sarcasmReversalThreshold is the sarcasm probability above which the
	// fused sentiment is partially reversed and speech is sped up.
	sarcasmReversalThreshold = 0.6

	// sarcasmReversalFactor turns sarcastic praise into mild criticism.
	sarcasmReversalFactor = -0.5

	// sentimentAmplification scales pragmatic intensity into a sentiment
	// multiplier.
	sentimentAmplification = 0.5

	// emotionAmplification scales pragmatic intensity into a complex emotion
	// multiplier.
	emotionAmplification = 0.3

	// formalityThreshold is the formality level above which speech is slowed
	// and softened.
	formalityThreshold = 0.7

	sarcasticSpeedup = 1.2
	formalSlowdown   = 0.9
	formalSoftening  = 0.9
	pitchScale       = 0.3
	volumeScale      = 0.4
)

// ErrInvalidSegment is returned by [Combiner.Combine] when the segment fails
// validation. The wrapped error carries the reason.
var ErrInvalidSegment = errors.New("emotion: invalid segment")

// Option configures a [Combiner].
type Option func(*Combiner)

// WithWeights overrides [DefaultWeights].
func WithWeights(w Weights) Option {
	return func(c *Combiner) {
		c.weights = w
	}
}

// WithClock sets the time source used for timestamps and processing time.
func WithClock(now func() time.Time) Option {
	return func(c *Combiner) {
		if now != nil {
			c.now = now
		}
	}
}

// WithModelVersion overrides the model version tag stamped on profiles.
func WithModelVersion(v string) Option {
	return func(c *Combiner) {
		c.version = v
	}
}

// Combiner fuses the four signal scores of a segment into a [Profile].
//
// A Combiner holds only immutable configuration and is safe for concurrent
// use by multiple goroutines.
type Combiner struct {
	weights Weights
	now     func() time.Time
	version string
}

// NewCombiner returns a Combiner configured by opts. It returns an error when
// the resulting weights do not validate.
func NewCombiner(opts ...Option) (*Combiner, error) {
	c := &Combiner{
		weights: DefaultWeights(),
		now:     time.Now,
		version: ModelVersion,
	}
	for _, o := range opts {
		o(c)
	}
	if err := c.weights.Validate(); err != nil {
		return nil, fmt.Errorf("emotion: new combiner: %w", err)
	}
	return c, nil
}

// Weights returns the combiner's weight configuration.
func (c *Combiner) Weights() Weights { return c.weights }

// Combine fuses the scores and measures its own processing time.
func (c *Combiner) Combine(seg types.TextSegment, lex LexicalScore, ctx ContextualScore, sar SarcasmScore, prag PragmaticScore) (Profile, error) {
	start := c.now()
	p, err := c.combine(start, seg, lex, ctx, sar, prag)
	if err != nil {
		return Profile{}, err
	}
	p.Metadata.ProcessingTime = max(0, c.now().Sub(start))
	return p, nil
}

// CombineTimed is like Combine but stamps the caller-supplied processing time,
// typically the time spent running the analyzers for this segment.
func (c *Combiner) CombineTimed(seg types.TextSegment, lex LexicalScore, ctx ContextualScore, sar SarcasmScore, prag PragmaticScore, elapsed time.Duration) (Profile, error) {
	p, err := c.combine(c.now(), seg, lex, ctx, sar, prag)
	if err != nil {
		return Profile{}, err
	}
	p.Metadata.ProcessingTime = max(0, elapsed)
	return p, nil
}

func (c *Combiner) combine(at time.Time, seg types.TextSegment, lex LexicalScore, ctx ContextualScore, sar SarcasmScore, prag PragmaticScore) (Profile, error) {
	if err := seg.Validate(); err != nil {
		return Profile{}, fmt.Errorf("%w: %s: %w", ErrInvalidSegment, seg.ID, err)
	}

	// Score records built as literals bypass the constructors; clamp again so
	// every derived value stays in range.
	sarcasm := clamp(sar.Probability, 0, 1)
	intensity := clamp(prag.EmotionalIntensity, 0, 1)
	formality := clamp(prag.FormalityLevel, 0, 1)
	lexConf := clamp(lex.Confidence, 0, 1)
	w := c.weights

	weighted := lex.Polarity()*w.Lexical + clamp(ctx.Sentiment, -1, 1)*w.Contextual
	if sarcasm > sarcasmReversalThreshold {
		weighted *= sarcasmReversalFactor
	}
	weighted *= 1 + intensity*sentimentAmplification
	polarity := clamp(weighted, -1, 1)

	sentiment := Sentiment{
		Polarity:    polarity,
		Objectivity: 1 - intensity,
		Confidence:  (lexConf + clamp(ctx.Confidence, 0, 1) + clamp(sar.Confidence, 0, 1)) / 3,
	}

	emotions := make([]ComplexEmotion, 0, len(lex.Emotions))
	for _, e := range lex.Emotions {
		emotions = append(emotions, ComplexEmotion{
			Type:       e.Type,
			Intensity:  clamp(clamp(e.Score, 0, 1)*w.Lexical*(1+intensity*emotionAmplification), 0, 1),
			Confidence: lexConf,
		})
	}

	speed := 1.0
	if sarcasm > sarcasmReversalThreshold {
		speed *= sarcasticSpeedup
	}
	volume := clamp(1+intensity*volumeScale, 0.5, 1.5)
	if formality > formalityThreshold {
		speed *= formalSlowdown
		volume *= formalSoftening
	}

	var attention map[string]float64
	if len(ctx.Attention) > 0 {
		attention = make(map[string]float64, len(ctx.Attention))
		for tok, wt := range ctx.Attention {
			attention[tok] = clamp(wt, 0, 1)
		}
	}

	return Profile{
		SegmentID: seg.ID,
		Segment:   seg,
		Sentiment: sentiment,
		Emotions:  emotions,
		Sarcasm: SarcasmIndicators{
			Probability:  sarcasm,
			Confidence:   clamp(sar.Confidence, 0, 1),
			FeatureCount: len(sar.Features.Descriptions),
		},
		Markers: Markers{
			SpeedFactor:   clamp(speed, 0.5, 2.0),
			PitchShift:    clamp(polarity*pitchScale, -0.5, 0.5),
			VolumeAdjust:  clamp(volume, 0.5, 1.5),
			EmphasisLevel: intensity,
		},
		Attention: attention,
		Metadata: Metadata{
			Timestamp:    at,
			ModelVersion: c.version,
		},
	}, nil
}
