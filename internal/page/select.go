package page

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sheacoding/browser-agent-extension/internal/errdefs"
)

// SelectPick names the wanted option. When several criteria are set,
// value wins over text, text wins over index.
type SelectPick struct {
	Value *string
	Text  *string
	Index *int
}

type SelectResult struct {
	Value string `json:"value"`
	Text  string `json:"text"`
	Index int    `json:"index"`
}

// SelectOption picks an option of a select element and fires the input
// and change events the page expects. The winning option is resolved
// here, between a snapshot read and the apply write, so the precedence
// rule does not depend on page-side code.
func (p *Page) SelectOption(ctx context.Context, selector string, pick SelectPick) (*SelectResult, error) {
	raw, err := p.Evaluate(ctx, optionsSnapshotScript(selector))
	if err != nil {
		return nil, err
	}
	if isNull(raw) {
		return nil, &errdefs.ElementNotFoundError{Selector: selector}
	}

	var snapshot struct {
		Options []struct {
			Value string `json:"value"`
			Text  string `json:"text"`
		} `json:"options"`
	}
	if err := json.Unmarshal(raw, &snapshot); err != nil {
		return nil, fmt.Errorf("parse select options: %w", err)
	}

	idx := -1
	if pick.Value != nil {
		for i, o := range snapshot.Options {
			if o.Value == *pick.Value {
				idx = i
				break
			}
		}
	}
	if idx < 0 && pick.Text != nil {
		want := strings.TrimSpace(*pick.Text)
		for i, o := range snapshot.Options {
			if strings.TrimSpace(o.Text) == want {
				idx = i
				break
			}
		}
	}
	if idx < 0 && pick.Index != nil && *pick.Index >= 0 && *pick.Index < len(snapshot.Options) {
		idx = *pick.Index
	}
	if idx < 0 {
		return nil, fmt.Errorf("no matching option in %s", selector)
	}

	applied, err := p.Evaluate(ctx, selectApplyScript(selector, idx))
	if err != nil {
		return nil, err
	}
	if isNull(applied) {
		return nil, &errdefs.ElementNotFoundError{Selector: selector}
	}

	o := snapshot.Options[idx]
	return &SelectResult{Value: o.Value, Text: o.Text, Index: idx}, nil
}
