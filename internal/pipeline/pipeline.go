package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/communitypress/dispatch-bot/internal/llm"
	"github.com/communitypress/dispatch-bot/internal/models"
	"github.com/sirupsen/logrus"
)

// Retry policy for whole-attempt generation failures.
const (
	DefaultMaxAttempts = 3
	DefaultBackoffBase = 5 * time.Second
	briefMentionLimit  = 3
)

// Orchestrator runs the three-stage editorial chain for one newsletter:
// filter/rank, story discovery, editorial selection, article composition.
// Provider failures surfaced by the news desk are retried with exponential
// backoff; the editor and reporter recover internally.
type Orchestrator struct {
	filter   *FilterRanker
	newsDesk *NewsDesk
	editor   *Editor
	reporter *Reporter

	maxAttempts int
	backoffBase time.Duration

	// sleep is swapped out in tests to avoid real backoff waits.
	sleep func(ctx context.Context, d time.Duration) error
}

// OrchestratorOptions tunes the retry policy. Zero values take the defaults.
type OrchestratorOptions struct {
	MaxAttempts int
	BackoffBase time.Duration
}

// NewOrchestrator wires the pipeline stages around a shared completion client.
func NewOrchestrator(client llm.CompletionClient, opts OrchestratorOptions) *Orchestrator {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultMaxAttempts
	}
	if opts.BackoffBase <= 0 {
		opts.BackoffBase = DefaultBackoffBase
	}
	return &Orchestrator{
		filter:      NewFilterRanker(),
		newsDesk:    NewNewsDesk(client),
		editor:      NewEditor(client),
		reporter:    NewReporter(client),
		maxAttempts: opts.MaxAttempts,
		backoffBase: opts.BackoffBase,
		sleep:       sleepWithContext,
	}
}

// attemptResult holds a fully assembled attempt. The newsletter record is only
// touched once the attempt has succeeded end to end.
type attemptResult struct {
	story      models.SelectedStory
	article    models.Article
	candidates []models.StoryCandidate
}

// Generate runs the full pipeline and applies the outcome to the newsletter
// record. The record is mutated exactly once on success, or once with the
// accumulated errors on failure.
func (o *Orchestrator) Generate(ctx context.Context, newsletter *models.Newsletter, profile models.ServerProfile, messages []models.Message, serverContext string) error {
	if err := newsletter.StartGeneration(profile.Persona); err != nil {
		return err
	}

	filtered, err := o.filter.FilterRank(messages, profile)
	if err != nil {
		newsletter.MarkFailed(err.Error(), true)
		logrus.Warnf("Generation aborted for server %s: %v", profile.ServerID, err)
		return err
	}
	logrus.Infof("Analyzing %d qualifying messages for server %s", len(filtered), profile.ServerID)

	var attemptErrors []string
	for attempt := 1; attempt <= o.maxAttempts; attempt++ {
		result, err := o.attempt(ctx, filtered, profile, serverContext)
		if err == nil {
			newsletter.RetryCount = attempt - 1
			return o.applyResult(newsletter, result, len(filtered))
		}

		attemptErrors = append(attemptErrors, fmt.Sprintf("attempt %d: %v", attempt, err))
		if !Retryable(err) {
			newsletter.RetryCount = attempt
			newsletter.MarkFailed(strings.Join(attemptErrors, "; "), true)
			return err
		}
		logrus.Warnf("Generation attempt %d/%d failed for server %s: %v", attempt, o.maxAttempts, profile.ServerID, err)

		if attempt < o.maxAttempts {
			backoff := o.backoffBase * (1 << (attempt - 1))
			if sleepErr := o.sleep(ctx, backoff); sleepErr != nil {
				attemptErrors = append(attemptErrors, fmt.Sprintf("backoff interrupted: %v", sleepErr))
				newsletter.RetryCount = attempt
				newsletter.MarkFailed(strings.Join(attemptErrors, "; "), true)
				return sleepErr
			}
		}
	}

	newsletter.RetryCount = o.maxAttempts
	newsletter.MarkFailed(strings.Join(attemptErrors, "; "), true)
	return fmt.Errorf("generation failed after %d attempts: %s", o.maxAttempts, attemptErrors[len(attemptErrors)-1])
}

// attempt runs discovery, selection and composition into local values without
// touching the newsletter record.
func (o *Orchestrator) attempt(ctx context.Context, messages []models.Message, profile models.ServerProfile, serverContext string) (*attemptResult, error) {
	candidates, err := o.newsDesk.DiscoverStories(ctx, messages, profile.Persona, DefaultMaxStories)
	if err != nil {
		return nil, err
	}

	story := o.editor.SelectStory(ctx, candidates, profile.Persona, serverContext)
	article := o.reporter.ComposeArticle(ctx, story, profile.Persona, messages, serverContext)

	return &attemptResult{story: story, article: article, candidates: candidates}, nil
}

// applyResult commits a successful attempt to the newsletter record.
func (o *Orchestrator) applyResult(newsletter *models.Newsletter, result *attemptResult, analyzed int) error {
	story := result.story
	if err := newsletter.SetFeaturedStory(&story); err != nil {
		return err
	}

	newsletter.ArticleText = result.article.Text
	newsletter.ArticleMode = result.article.Mode
	newsletter.Introduction = introductionFor(newsletter.Persona)
	newsletter.Conclusion = conclusionFor(newsletter.Persona)
	newsletter.AnalyzedMessages = analyzed

	for _, mention := range briefMentions(result.candidates, story.Headline) {
		newsletter.AddBriefMention(mention)
	}

	if err := newsletter.CompleteGeneration(); err != nil {
		return err
	}
	logrus.Infof("Newsletter %s generated: %q (%s mode, %d retries)",
		newsletter.ID, story.BestHeadline(), result.article.Mode, newsletter.RetryCount)
	return nil
}

// briefMentions picks up to three non-featured candidate headlines for the
// "also happening" section.
func briefMentions(candidates []models.StoryCandidate, selectedHeadline string) []string {
	var mentions []string
	for _, candidate := range candidates {
		if candidate.Headline == selectedHeadline {
			continue
		}
		if candidate.Headline == "" {
			continue
		}
		mentions = append(mentions, candidate.Headline)
		if len(mentions) == briefMentionLimit {
			break
		}
	}
	return mentions
}

// BreakingNews composes a bulletin from recent messages. It never fails;
// provider errors fall back to the persona bulletin table.
func (o *Orchestrator) BreakingNews(ctx context.Context, messages []models.Message, persona models.Persona, serverContext string) string {
	return o.reporter.ComposeBreakingNews(ctx, messages, persona, serverContext)
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
