package evidence

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"sort"
	"strings"
	"time"

	"sentinel/internal/logging"
	"sentinel/internal/trace"
)

// Binder matches claims against evidence candidates using lexical overlap.
// Binding is recomputed in full on every invocation; claim counts are small
// enough that correctness beats incrementality here.
type Binder struct {
	threshold float64
	topK      int
}

// NewBinder creates a binder. threshold is the minimum overlap score for a
// binding to count toward coverage; topK bounds bindings kept per claim.
func NewBinder(threshold float64, topK int) *Binder {
	if topK <= 0 {
		topK = 3
	}
	return &Binder{threshold: threshold, topK: topK}
}

// candidate is an evidence source before it is admitted to the graph.
type candidate struct {
	item   Item
	tokens map[string]struct{}
}

// Bind recomputes all bindings for the graph's current claims against the
// supplied evidence items and observation events. The result is independent
// of the order of items and events: candidates are ranked by score with
// deterministic tie-breaks before the top-K cut.
func (b *Binder) Bind(g *Graph, events []trace.Event, items []Item) {
	candidates := collectCandidates(events, items)

	g.ResetBindings()
	bound := 0
	for _, claim := range g.Claims() {
		claimTokens := Tokenize(claim.Text)
		if len(claimTokens) == 0 {
			continue
		}

		scored := make([]Binding, 0, len(candidates))
		for _, cand := range candidates {
			score := overlapScore(claimTokens, cand.tokens)
			if score >= b.threshold {
				scored = append(scored, Binding{ClaimID: claim.ID, ItemID: cand.item.ID, Score: score})
			}
		}

		// Highest score first; ties broken by item ID so permuting the
		// input never changes which bindings survive the cut.
		sort.Slice(scored, func(i, j int) bool {
			if scored[i].Score != scored[j].Score {
				return scored[i].Score > scored[j].Score
			}
			return scored[i].ItemID < scored[j].ItemID
		})
		if len(scored) > b.topK {
			scored = scored[:b.topK]
		}
		if len(scored) == 0 {
			continue
		}

		for _, bind := range scored {
			g.AddItem(candidateByID(candidates, bind.ItemID))
		}
		g.SetBindings(claim.ID, scored)
		bound++
	}

	logging.Evidence("bound %d/%d claims against %d candidates", bound, g.ClaimCount(), len(candidates))
}

// collectCandidates merges external evidence items with observation events
// carrying textual results, sorted by ID for deterministic iteration.
func collectCandidates(events []trace.Event, items []Item) []candidate {
	var out []candidate
	for _, it := range items {
		if it.ID == "" {
			it.ID = ItemID(it.SourceType, it.SourceRef, it.Text)
		}
		out = append(out, candidate{item: it, tokens: Tokenize(it.Text)})
	}

	for _, ev := range events {
		if ev.Type != trace.TypeObservation {
			continue
		}
		result, ok := ev.Payload["result"].(map[string]any)
		if !ok {
			continue
		}
		var parts []string
		for _, key := range []string{"title", "body", "content"} {
			if s, ok := result[key].(string); ok && s != "" {
				parts = append(parts, s)
			}
		}
		if len(parts) == 0 {
			continue
		}
		text := strings.Join(parts, " ")
		ref := "trace:" + ev.Timestamp.UTC().Format(time.RFC3339Nano)
		it := Item{
			ID:         ItemID("tool_call", ref, text),
			Text:       text,
			SourceRef:  ref,
			SourceType: "tool_call",
		}
		out = append(out, candidate{item: it, tokens: Tokenize(text)})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].item.ID < out[j].item.ID })
	return out
}

func candidateByID(cands []candidate, id string) Item {
	for _, c := range cands {
		if c.item.ID == id {
			return c.item
		}
	}
	return Item{ID: id}
}

// ItemID derives a stable evidence-item identifier so repeated binding
// passes admit the same item under the same ID.
func ItemID(sourceType, sourceRef, text string) string {
	sum := sha256.Sum256([]byte(sourceType + "\x00" + sourceRef + "\x00" + text))
	return "ev-" + hex.EncodeToString(sum[:])[:12]
}

// stopwords excluded from overlap scoring.
var stopwords = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "and": {}, "or": {}, "but": {}, "in": {},
	"on": {}, "at": {}, "to": {}, "for": {}, "of": {}, "with": {}, "by": {},
	"is": {}, "are": {}, "was": {}, "were": {}, "be": {}, "been": {},
	"have": {}, "has": {}, "had": {}, "do": {}, "does": {}, "did": {},
	"will": {}, "would": {}, "should": {}, "could": {}, "may": {},
	"might": {}, "must": {}, "can": {},
}

var wordRe = regexp.MustCompile(`\w+`)

// Tokenize lowercases text and returns its content words: longer than two
// characters and not a stopword.
func Tokenize(text string) map[string]struct{} {
	tokens := make(map[string]struct{})
	for _, w := range wordRe.FindAllString(strings.ToLower(text), -1) {
		if len(w) <= 2 {
			continue
		}
		if _, stop := stopwords[w]; stop {
			continue
		}
		tokens[w] = struct{}{}
	}
	return tokens
}

// overlapScore is |claim ∩ candidate| / |claim|. The denominator is fixed to
// the claim's token count so long evidence texts cannot dilute the score.
func overlapScore(claim, cand map[string]struct{}) float64 {
	if len(claim) == 0 {
		return 0
	}
	shared := 0
	for w := range claim {
		if _, ok := cand[w]; ok {
			shared++
		}
	}
	return float64(shared) / float64(len(claim))
}
