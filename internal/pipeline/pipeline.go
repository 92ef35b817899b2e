// Package pipeline orchestrates the ten-step grading run: cache recall,
// capture upload, vision ensemble, market research, engine enrichment,
// adversarial debate, council review, valuation, commentary, and persistence.
// Every collaborator call is best-effort; a failure resolves to a documented
// neutral default at the call site and the run always reaches the store step
// with whatever was gathered.
package pipeline

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/slabworks/grade-cli/internal/config"
	"github.com/slabworks/grade-cli/internal/consensus"
	"github.com/slabworks/grade-cli/internal/imaging"
	"github.com/slabworks/grade-cli/internal/model"
	"github.com/slabworks/grade-cli/internal/resilience"
	"github.com/slabworks/grade-cli/internal/store"
	"github.com/slabworks/grade-cli/internal/valuation"
	"github.com/slabworks/grade-cli/pkg/advisory"
	"github.com/slabworks/grade-cli/pkg/commentary"
	"github.com/slabworks/grade-cli/pkg/council"
	"github.com/slabworks/grade-cli/pkg/debate"
	"github.com/slabworks/grade-cli/pkg/engines"
	"github.com/slabworks/grade-cli/pkg/objectstore"
	"github.com/slabworks/grade-cli/pkg/research"
	"github.com/slabworks/grade-cli/pkg/vision"
)

// Council blend weights applied when the service states no final grade,
// and the per-voice spread beyond which the verdict carries a dissent flag.
const (
	councilWeightSage   = 0.40
	councilWeightNyx    = 0.35
	councilWeightThorne = 0.25
	dissentSpread       = 0.3
)

// Capture is one photographed side with its quality metrics, computed by
// the caller before the run starts.
type Capture struct {
	Side    string
	Data    []byte
	Quality imaging.QualityScore
	Border  imaging.BorderResult
}

// Pipeline wires the grading collaborators together.
type Pipeline struct {
	cfg        *config.Config
	store      store.Store
	vision     vision.Client
	advisory   advisory.Client
	research   research.Client
	engines    engines.Client
	debate     debate.Client
	council    council.Client
	commentary commentary.Client
	objects    objectstore.Client
	estimator  *valuation.Estimator
	retry      resilience.Policy
}

// New creates a Pipeline with all dependencies.
func New(
	cfg *config.Config,
	st store.Store,
	visionClient vision.Client,
	advisoryClient advisory.Client,
	researchClient research.Client,
	enginesClient engines.Client,
	debateClient debate.Client,
	councilClient council.Client,
	commentaryClient commentary.Client,
	objectsClient objectstore.Client,
	estimator *valuation.Estimator,
) *Pipeline {
	retry := resilience.DefaultPolicy()
	if cfg.Pipeline.RetryAttempts > 0 {
		retry.Attempts = cfg.Pipeline.RetryAttempts
	}
	return &Pipeline{
		cfg:        cfg,
		store:      st,
		vision:     visionClient,
		advisory:   advisoryClient,
		research:   researchClient,
		engines:    enginesClient,
		debate:     debateClient,
		council:    councilClient,
		commentary: commentaryClient,
		objects:    objectsClient,
		estimator:  estimator,
		retry:      retry,
	}
}

// Run grades a single item. The item must carry a title and issue; that is
// the only precondition that refuses a run. The returned run is the audit
// trail of the ten steps; the decision is also written into the item.
func (p *Pipeline) Run(ctx context.Context, item *model.GradableItem, captures []Capture) (*model.GradingDecision, *model.GradingRun, error) {
	if !item.Identified() {
		return nil, nil, eris.New("pipeline: item needs a title and issue before grading")
	}

	log := zap.L().With(
		zap.String("item_id", item.ID),
		zap.String("title", item.Title),
		zap.String("issue", item.Issue),
	)
	log.Info("pipeline: starting grading run")

	run := model.NewGradingRun(item.ID)

	// Step tracking helper. fn returns the detail string for the step; an
	// error marks the step failed but never aborts the run.
	step := func(id model.StepID, fn func() (string, error)) {
		run.UpdateStep(id, model.StepRunning, "")
		start := time.Now()
		detail, err := fn()
		if err != nil {
			run.UpdateStep(id, model.StepError, err.Error())
			log.Warn("pipeline: step failed",
				zap.String("step", string(id)),
				zap.Duration("took", time.Since(start)),
				zap.Error(err),
			)
			return
		}
		run.UpdateStep(id, model.StepComplete, detail)
		log.Info("pipeline: step complete",
			zap.String("step", string(id)),
			zap.Duration("took", time.Since(start)),
		)
	}

	// Step 1: cache. A hit short-circuits the whole run; steps 2-10 stay
	// pending. The recall store is the same collaborator that persists
	// decisions, so writing the recalled grade here invokes nothing new.
	if decision := p.stepCache(ctx, item, run, step, log); decision != nil {
		run.Finish()
		if err := p.store.SaveRun(ctx, run); err != nil {
			log.Warn("pipeline: save run", zap.Error(err))
		}
		return decision, run, nil
	}

	// Step 2: upload captures, best-effort per side.
	step(model.StepUpload, func() (string, error) {
		return p.stepUpload(ctx, item.ID, captures)
	})

	// Step 3: vision ensemble, or the text-only advisory fallback when no
	// front image exists.
	var sources []model.SourceOpinion
	step(model.StepVision, func() (string, error) {
		var err error
		sources, err = p.stepVision(ctx, item, captures)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%d opinions", len(sources)), nil
	})
	ensemble := consensus.Aggregate(sources, consensus.DefaultWeights())

	// Step 4: research, best-effort, empty string on failure.
	var researchText string
	step(model.StepResearch, func() (string, error) {
		callCtx, cancel := p.callCtx(ctx)
		defer cancel()
		text, err := resilience.Call(callCtx, p.retry, "research", func(ctx context.Context) (string, error) {
			return p.research.Research(ctx, research.Request{
				Title:        item.Title,
				Issue:        item.Issue,
				Publisher:    item.Publisher,
				Year:         item.Year,
				CurrentGrade: ensemble.Grade,
			})
		})
		if err != nil {
			return "", eris.Wrap(err, "research")
		}
		researchText = text
		return fmt.Sprintf("%d chars", len(text)), nil
	})

	// Step 5: up to four enrichment queries, concurrent, best-effort settle.
	var enrichment map[string]string
	step(model.StepEngines, func() (string, error) {
		enrichment = p.stepEngines(ctx, item, ensemble.Grade)
		return fmt.Sprintf("%d of %d engines", len(enrichment), len(engines.AllEngines)), nil
	})
	enrichValue := parseValuation(enrichment[string(engines.EnginePricing)])

	// Step 6: debate. No adjusted grade carries the ensemble grade forward.
	debateGrade := ensemble.Grade
	var debateRounds []model.DebateRound
	step(model.StepDebate, func() (string, error) {
		callCtx, cancel := p.callCtx(ctx)
		defer cancel()
		result, err := p.debate.Debate(callCtx, debate.Request{
			Title:        item.Title,
			Issue:        item.Issue,
			CurrentGrade: ensemble.Grade,
			Defects:      ensemble.ConfirmedDefects,
			Research:     researchText,
		})
		if err != nil {
			return "", eris.Wrap(err, "debate")
		}
		for _, r := range result.Rounds {
			debateRounds = append(debateRounds, model.DebateRound{Bull: r.Bull, Bear: r.Bear, Judge: r.Judge})
		}
		if result.AdjustedGrade == nil {
			return fmt.Sprintf("grade stands at %.1f", debateGrade), nil
		}
		debateGrade = *result.AdjustedGrade
		return fmt.Sprintf("adjusted to %.1f", debateGrade), nil
	})

	// Step 7: council review. The service's stated final grade wins; absent
	// one, blend the three per-voice grades 40/35/25.
	finalGrade := debateGrade
	var verdict *model.CouncilVerdict
	step(model.StepTrinity, func() (string, error) {
		callCtx, cancel := p.callCtx(ctx)
		defer cancel()
		decision, err := p.council.Decide(callCtx, council.Request{
			Title:         item.Title,
			Issue:         item.Issue,
			EnsembleGrade: ensemble.Grade,
			DebateGrade:   debateGrade,
			Defects:       ensemble.ConfirmedDefects,
			Research:      researchText,
			Valuation:     enrichValue,
		})
		if err != nil {
			return "", eris.Wrap(err, "council")
		}
		verdict = resolveVerdict(decision)
		finalGrade = verdict.FinalGrade
		if verdict.Dissent {
			return fmt.Sprintf("%.1f with dissent", finalGrade), nil
		}
		return fmt.Sprintf("%.1f unanimous band", finalGrade), nil
	})

	// Step 8: value. Enrichment valuation wins when present and non-zero.
	var value int64
	step(model.StepValue, func() (string, error) {
		if enrichValue > 0 {
			value = enrichValue
			return fmt.Sprintf("%d from enrichment", value), nil
		}
		value = p.estimator.Estimate(finalGrade, item.Year, item.KeyIssue)
		return fmt.Sprintf("%d estimated", value), nil
	})

	// Step 9: commentary. Never fails visibly; canned remarks cover outages.
	var remarkText, remarkEmotion string
	step(model.StepCommentary, func() (string, error) {
		callCtx, cancel := p.callCtx(ctx)
		defer cancel()
		remark, err := p.commentary.Comment(callCtx, commentary.Request{
			Title:   item.Title,
			Issue:   item.Issue,
			Grade:   finalGrade,
			Value:   value,
			Defects: ensemble.ConfirmedDefects,
		})
		if err != nil {
			remarkText, remarkEmotion = cannedRemark(finalGrade)
			return "canned fallback", nil
		}
		remarkText, remarkEmotion = remark.Text, remark.Emotion
		return "generated", nil
	})

	decision := &model.GradingDecision{
		Grade:        finalGrade,
		Confidence:   ensemble.Confidence,
		Defects:      ensemble.ConfirmedDefects,
		Value:        value,
		QualityScore: frontQuality(captures),
		Sources:      sources,
		Research:     researchText,
		Enrichment:   enrichment,
		DebateRounds: debateRounds,
		Council:      verdict,
		Commentary:   remarkText,
		Emotion:      remarkEmotion,
		GradedAt:     time.Now().UTC(),
	}
	if debateGrade != ensemble.Grade {
		decision.DebateGrade = &debateGrade
	}

	// Step 10: persist the decision and mutate the item.
	status := model.ItemStatusGraded
	if verdict != nil && verdict.Dissent {
		status = model.ItemStatusPendingReview
	}
	step(model.StepStore, func() (string, error) {
		if err := p.store.ApplyDecision(ctx, item.ID, decision, status); err != nil {
			return "", eris.Wrap(err, "apply decision")
		}
		return string(status), nil
	})
	applyToItem(item, decision, status)

	run.Finish()
	if err := p.store.SaveRun(ctx, run); err != nil {
		log.Warn("pipeline: save run", zap.Error(err))
	}

	log.Info("pipeline: run finished",
		zap.Float64("grade", decision.Grade),
		zap.Int64("value", decision.Value),
		zap.String("status", string(status)),
	)
	return decision, run, nil
}

// stepCache returns a decision when recall hits, nil otherwise.
func (p *Pipeline) stepCache(ctx context.Context, item *model.GradableItem, run *model.GradingRun, step func(model.StepID, func() (string, error)), log *zap.Logger) *model.GradingDecision {
	var decision *model.GradingDecision
	step(model.StepCache, func() (string, error) {
		recalled, err := p.store.Recall(ctx, item.Title, item.Issue)
		if err != nil {
			return "", eris.Wrap(err, "recall")
		}
		if recalled == nil {
			return "miss", nil
		}

		decision = &model.GradingDecision{
			Grade:      recalled.Grade,
			Confidence: recalled.Confidence,
			Defects:    recalled.Defects,
			GradedAt:   time.Now().UTC(),
			FromCache:  true,
		}
		if err := p.store.ApplyDecision(ctx, item.ID, decision, model.ItemStatusGraded); err != nil {
			log.Warn("pipeline: apply recalled decision", zap.Error(err))
		}
		applyToItem(item, decision, model.ItemStatusGraded)
		return fmt.Sprintf("recalled %.1f from %s", recalled.Grade, recalled.GradedAt.Format("2006-01-02")), nil
	})
	return decision
}

// stepUpload pushes each capture to the object store. A failed side is
// recorded in the detail and never blocks the run.
func (p *Pipeline) stepUpload(ctx context.Context, itemID string, captures []Capture) (string, error) {
	if !p.cfg.ObjectStore.Enabled {
		return "disabled", nil
	}
	if len(captures) == 0 {
		return "no captures", nil
	}

	var ok, failed []string
	for _, c := range captures {
		if len(c.Data) == 0 {
			continue
		}
		if _, err := p.objects.Upload(ctx, itemID, c.Side, c.Data); err != nil {
			zap.L().Warn("pipeline: upload failed", zap.String("side", c.Side), zap.Error(err))
			failed = append(failed, c.Side)
			continue
		}
		ok = append(ok, c.Side)
	}

	detail := "uploaded " + strings.Join(ok, ",")
	if len(ok) == 0 {
		detail = "uploaded none"
	}
	if len(failed) > 0 {
		detail += "; failed " + strings.Join(failed, ",")
	}
	return detail, nil
}

// stepVision gathers source opinions: the ensemble when a front capture
// exists, otherwise the three text-only advisory voices in parallel.
func (p *Pipeline) stepVision(ctx context.Context, item *model.GradableItem, captures []Capture) ([]model.SourceOpinion, error) {
	if hasFront(captures) {
		return p.ensembleOpinions(ctx, item, captures)
	}
	return p.advisoryOpinions(ctx, item)
}

func (p *Pipeline) ensembleOpinions(ctx context.Context, item *model.GradableItem, captures []Capture) ([]model.SourceOpinion, error) {
	images := make([]vision.ImagePayload, 0, len(captures))
	for _, c := range captures {
		if len(c.Data) == 0 {
			continue
		}
		images = append(images, vision.ImagePayload{Side: c.Side, Data: c.Data})
	}

	opinions, err := resilience.Call(ctx, p.retry, "vision", func(ctx context.Context) ([]vision.ModelOpinion, error) {
		return p.vision.Run(ctx, vision.RunRequest{
			Item: vision.ItemContext{
				Title:        item.Title,
				Issue:        item.Issue,
				Publisher:    item.Publisher,
				Year:         item.Year,
				KnownDefects: item.KnownDefects,
			},
			Images: images,
		})
	})
	if err != nil {
		return nil, eris.Wrap(err, "vision ensemble")
	}

	sources := make([]model.SourceOpinion, 0, len(opinions))
	for _, op := range opinions {
		sources = append(sources, model.SourceOpinion{
			Source:     op.Model,
			Grade:      op.Grade,
			Confidence: op.Confidence,
			Defects:    op.Defects,
			Rationale:  op.Analysis,
		})
	}
	return sources, nil
}

// advisoryOpinions consults the three voices in parallel and parses a grade
// out of each free-text analysis. A voice that fails contributes nothing;
// the aggregator's neutral default covers a total blackout.
func (p *Pipeline) advisoryOpinions(ctx context.Context, item *model.GradableItem) ([]model.SourceOpinion, error) {
	results := make([]*model.SourceOpinion, len(model.Voices))

	g, gCtx := errgroup.WithContext(ctx)
	for i, profile := range model.Voices {
		g.Go(func() error {
			opinion, err := p.advisory.Consult(gCtx, advisory.ConsultRequest{
				Voice: string(profile.Voice),
				Model: p.modelFor(profile),
				Style: profile.Style,
				Item: advisory.ItemContext{
					Title:        item.Title,
					Issue:        item.Issue,
					Publisher:    item.Publisher,
					Year:         item.Year,
					KeyIssue:     item.KeyIssue,
					KnownDefects: item.KnownDefects,
				},
			})
			if err != nil {
				zap.L().Warn("pipeline: advisory voice failed",
					zap.String("voice", string(profile.Voice)),
					zap.Error(err),
				)
				return nil
			}
			parsed := consensus.ParseOpinion(opinion.Analysis)
			results[i] = &model.SourceOpinion{
				Source:     string(profile.Voice),
				Grade:      parsed.Grade,
				Confidence: parsed.Confidence,
				Defects:    parsed.Defects,
				Rationale:  opinion.Analysis,
			}
			return nil
		})
	}
	_ = g.Wait()

	var sources []model.SourceOpinion
	for _, r := range results {
		if r != nil {
			sources = append(sources, *r)
		}
	}
	return sources, nil
}

// modelFor maps a voice to its configured model, falling back to the
// profile's default.
func (p *Pipeline) modelFor(profile model.VoiceProfile) string {
	switch profile.Voice {
	case model.VoiceSage:
		if p.cfg.Advisory.SonnetModel != "" {
			return p.cfg.Advisory.SonnetModel
		}
	case model.VoiceNyx:
		if p.cfg.Advisory.HaikuModel != "" {
			return p.cfg.Advisory.HaikuModel
		}
	case model.VoiceThorne:
		if p.cfg.Advisory.OpusModel != "" {
			return p.cfg.Advisory.OpusModel
		}
	}
	return profile.Model
}

// stepEngines issues the four enrichment queries concurrently. Each engine
// may fail independently; the map holds whatever answered.
func (p *Pipeline) stepEngines(ctx context.Context, item *model.GradableItem, grade float64) map[string]string {
	type engineResult struct {
		id   engines.EngineID
		text string
	}
	results := make([]*engineResult, len(engines.AllEngines))

	g, gCtx := errgroup.WithContext(ctx)
	for i, id := range engines.AllEngines {
		g.Go(func() error {
			text, err := p.engines.Query(gCtx, id, enginePrompt(id, item, grade))
			if err != nil {
				zap.L().Warn("pipeline: engine failed", zap.String("engine", string(id)), zap.Error(err))
				return nil
			}
			results[i] = &engineResult{id: id, text: text}
			return nil
		})
	}
	_ = g.Wait()

	enrichment := make(map[string]string)
	for _, r := range results {
		if r != nil && r.text != "" {
			enrichment[string(r.id)] = r.text
		}
	}
	return enrichment
}

func enginePrompt(id engines.EngineID, item *model.GradableItem, grade float64) string {
	ident := fmt.Sprintf("%s #%s (%s, %d)", item.Title, item.Issue, item.Publisher, item.Year)
	switch id {
	case engines.EnginePricing:
		return fmt.Sprintf("Current market value of %s at grade %.1f. Lead with a single dollar figure.", ident, grade)
	case engines.EngineSales:
		return fmt.Sprintf("Recent public sales of %s near grade %.1f.", ident, grade)
	case engines.EngineSignificance:
		return fmt.Sprintf("Story and collector significance of %s.", ident)
	case engines.EnginePopulation:
		return fmt.Sprintf("Graded population census for %s.", ident)
	}
	return ident
}

// resolveVerdict turns the raw council decision into a verdict: stated
// final grade, or the 40/35/25 blend, with the dissent flag on a spread
// over 0.3.
func resolveVerdict(d *council.Decision) *model.CouncilVerdict {
	v := &model.CouncilVerdict{PerVoice: d.PerVoiceGrades}

	if d.FinalGrade != nil {
		v.FinalGrade = *d.FinalGrade
	} else {
		blend := d.PerVoiceGrades[0]*councilWeightSage +
			d.PerVoiceGrades[1]*councilWeightNyx +
			d.PerVoiceGrades[2]*councilWeightThorne
		v.FinalGrade = math.Round(blend*10) / 10
	}

	lo, hi := d.PerVoiceGrades[0], d.PerVoiceGrades[0]
	for _, g := range d.PerVoiceGrades[1:] {
		lo = math.Min(lo, g)
		hi = math.Max(hi, g)
	}
	v.Dissent = hi-lo > dissentSpread
	return v
}

// valuationRe pulls the first dollar-ish figure out of the pricing engine's
// answer.
var valuationRe = regexp.MustCompile(`\$\s?([0-9][0-9,]*)`)

func parseValuation(text string) int64 {
	m := valuationRe.FindStringSubmatch(text)
	if m == nil {
		return 0
	}
	n, err := strconv.ParseInt(strings.ReplaceAll(m[1], ",", ""), 10, 64)
	if err != nil {
		return 0
	}
	return n
}

// cannedRemark covers a commentary outage with a fixed remark per grade band.
func cannedRemark(grade float64) (string, string) {
	switch {
	case grade >= 9.0:
		return "A stunning copy. Slab it before anyone breathes on it.", "excited"
	case grade >= 6.0:
		return "A solid presentable copy with honest wear.", "pleased"
	default:
		return "A well-loved reading copy. It has stories beyond the one printed in it.", "wry"
	}
}

// callCtx bounds one collaborator call. The run itself is never cancelled
// mid-step; only the in-flight call is.
func (p *Pipeline) callCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if p.cfg.Pipeline.StepTimeoutSecs > 0 {
		return context.WithTimeout(ctx, time.Duration(p.cfg.Pipeline.StepTimeoutSecs)*time.Second)
	}
	return context.WithCancel(ctx)
}

func hasFront(captures []Capture) bool {
	for _, c := range captures {
		if c.Side == "front" && len(c.Data) > 0 {
			return true
		}
	}
	return false
}

func frontQuality(captures []Capture) int {
	for _, c := range captures {
		if c.Side == "front" {
			return c.Quality.Overall
		}
	}
	return 0
}

func applyToItem(item *model.GradableItem, d *model.GradingDecision, status model.ItemStatus) {
	grade := d.Grade
	item.Grade = &grade
	item.Confidence = d.Confidence
	item.Defects = d.Defects
	item.Value = d.Value
	item.Status = status
	item.Decision = d
	item.UpdatedAt = time.Now().UTC()
}
