package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/easeaico/companion-engine/internal/genservice"
	"github.com/easeaico/companion-engine/internal/policy"
	"github.com/easeaico/companion-engine/internal/rules"
	"github.com/easeaico/companion-engine/internal/types"
)

// Background cadences. The proactive loop waits once at startup so a fresh
// session does not open with an unprompted message.
const (
	decayInterval      = 10 * time.Minute
	regressionInterval = time.Hour
	proactiveInterval  = 5 * time.Minute
	proactiveStartup   = 30 * time.Second

	proactiveQueueCap = 8
)

// Start launches the three background schedules. They stop when ctx is
// cancelled. The loops share the engines with the pipeline; every mutation
// goes through an engine's own locked update, last write wins.
func (o *Orchestrator) Start(ctx context.Context) {
	go o.loop(ctx, decayInterval, 0, func(now time.Time) { o.RunEmotionDecay(now) })
	go o.loop(ctx, regressionInterval, 0, func(now time.Time) { o.RunIntimacyRegression(now) })
	go o.loop(ctx, proactiveInterval, proactiveStartup, func(now time.Time) { o.RunProactiveCheck(ctx, now) })
}

func (o *Orchestrator) loop(ctx context.Context, interval, startup time.Duration, tick func(now time.Time)) {
	if startup > 0 {
		select {
		case <-ctx.Done():
			return
		case <-time.After(startup):
		}
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			tick(o.clock())
		}
	}
}

// RunEmotionDecay applies decay for the time elapsed since the previous run.
func (o *Orchestrator) RunEmotionDecay(now time.Time) {
	elapsed := now.Sub(o.lastDecay)
	if elapsed <= 0 {
		return
	}
	o.lastDecay = now
	o.emotions.ApplyDecay(elapsed, now)
	o.persistState(context.Background())
	o.notifyObserver()
}

// RunIntimacyRegression applies the hourly pull toward the floor. The engine
// itself gates runs closer than an hour apart.
func (o *Orchestrator) RunIntimacyRegression(now time.Time) {
	if delta := o.bond.ApplyNaturalRegression(now); delta != 0 {
		o.persistState(context.Background())
		o.notifyObserver()
	}
}

const proactivePhrasingPrompt = `你是%s。%s
你想主动给用户发一条消息。参考下面这句话的意思，用你自己的口吻重新说一遍，一两句即可，不要加引号：
%s`

// RunProactiveCheck evaluates the trigger table and enqueues at most one
// candidate message. The backend may be consulted to phrase the candidate
// in persona, but enqueueing is the only effect; nothing is ever sent from
// here.
func (o *Orchestrator) RunProactiveCheck(ctx context.Context, now time.Time) {
	bondState := o.bond.Snapshot()
	evalCtx := map[string]any{
		"hour":           float64(now.Hour()),
		"hoursSinceLast": now.Sub(bondState.LastInteraction).Hours(),
		"intimacy":       bondState.Intimacy,
		"random":         o.rand(),
	}

	for _, trigger := range o.triggers {
		if len(trigger.Templates) == 0 {
			continue
		}
		if last, ok := o.lastFired[trigger.Name]; ok {
			gap := time.Duration(trigger.MinGapHours * float64(time.Hour))
			if now.Sub(last) < gap {
				continue
			}
		}
		expr, err := rules.Parse(trigger.Rule)
		if err != nil {
			slog.Warn("trigger rule malformed, skipping", "trigger", trigger.Name, "error", err)
			continue
		}
		if !expr.Eval(evalCtx) {
			continue
		}

		template := trigger.Templates[int(o.rand()*float64(len(trigger.Templates)))%len(trigger.Templates)]
		content := o.phraseProactive(ctx, template, bondState.Intimacy)
		o.enqueueProactive(types.OutgoingMessage{
			Content: content,
			Delay:   policy.PresentationDelay(content, o.emotions.Snapshot().Arousal),
		})
		o.lastFired[trigger.Name] = now
		slog.Info("proactive message enqueued", "trigger", trigger.Name)
		return
	}
}

// phraseProactive rewords a trigger template in persona with the
// conservative proactive sampling parameters. Any failure keeps the raw
// template; a queued candidate never depends on the backend being up.
func (o *Orchestrator) phraseProactive(ctx context.Context, template string, intimacy float64) string {
	if o.gen == nil {
		return template
	}
	emoState := o.emotions.Snapshot()
	params := policy.Sampling(types.ConversationContext{
		Intimacy:       intimacy,
		EmotionValence: emoState.Valence,
		EmotionArousal: emoState.Arousal,
		IsProactive:    true,
	})
	resp, err := o.gen.Generate(ctx, &genservice.Request{
		Messages: []genservice.Message{{
			Role:    "user",
			Content: fmt.Sprintf(proactivePhrasingPrompt, o.profile.Name, o.profile.Persona, template),
		}},
		Params: params,
	})
	if err != nil || resp == nil || !resp.Success || strings.TrimSpace(resp.Content) == "" {
		slog.Warn("proactive phrasing failed, using template", "error", err)
		return template
	}
	return strings.TrimSpace(resp.Content)
}

func (o *Orchestrator) enqueueProactive(msg types.OutgoingMessage) {
	o.queueMu.Lock()
	defer o.queueMu.Unlock()
	if len(o.proactive) >= proactiveQueueCap {
		return
	}
	o.proactive = append(o.proactive, msg)
}

// DequeueProactive pops the oldest enqueued proactive message, if any. The
// presentation layer decides when to actually send it.
func (o *Orchestrator) DequeueProactive() (types.OutgoingMessage, bool) {
	o.queueMu.Lock()
	defer o.queueMu.Unlock()
	if len(o.proactive) == 0 {
		return types.OutgoingMessage{}, false
	}
	msg := o.proactive[0]
	o.proactive = o.proactive[1:]
	return msg, true
}
