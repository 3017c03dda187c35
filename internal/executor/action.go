// Package executor turns request envelopes into browser operations: it
// decodes the closed action set, applies each action through the tab
// registry, and answers over the bridge connection it dials.
package executor

import (
	"encoding/json"
	"fmt"
)

// UnknownActionError marks a request whose action name is outside the
// action set. It is distinct from a parse failure of a known action.
type UnknownActionError struct {
	Name string
}

func (e *UnknownActionError) Error() string {
	return fmt.Sprintf("unknown action: %s", e.Name)
}

// Action is one decoded request. The set is closed: every variant is
// defined here and Apply matches them exhaustively.
type Action interface{ isAction() }

type NavigateAction struct {
	URL string `json:"url"`
}

type ClickAction struct {
	Selector   string   `json:"selector"`
	X          *float64 `json:"x"`
	Y          *float64 `json:"y"`
	Button     string   `json:"button"`
	ClickCount int      `json:"clickCount"`
}

type TypeAction struct {
	Text       string `json:"text"`
	Selector   string `json:"selector"`
	ClearFirst bool   `json:"clearFirst"`
	DelayMs    int    `json:"delayMs"`
}

type ScrollAction struct {
	Direction string   `json:"direction"`
	Distance  float64  `json:"distance"`
	Selector  string   `json:"selector"`
	X         *float64 `json:"x"`
	Y         *float64 `json:"y"`
}

type ScreenshotAction struct {
	Format   string `json:"format"`
	Quality  int    `json:"quality"`
	FullPage bool   `json:"fullPage"`
}

type ExtractAction struct {
	Selector string `json:"selector"`
}

type EvaluateAction struct {
	Script string `json:"script"`
}

type PageInfoAction struct{}

type TabsAction struct{}

type SwitchTabAction struct {
	TabID string `json:"tabId"`
}

type PressKeyAction struct {
	Key string `json:"key"`
}

type SelectOptionAction struct {
	Selector string  `json:"selector"`
	Value    *string `json:"value"`
	Text     *string `json:"text"`
	Index    *int    `json:"index"`
}

type BackAction struct{}

type ForwardAction struct{}

type ReloadAction struct{}

type ConsoleLogsAction struct{}

type ShowOverlayAction struct {
	Status string `json:"status"`
}

type UpdateOverlayAction struct {
	Status  string `json:"status"`
	Shimmer bool   `json:"shimmer"`
}

type HideOverlayAction struct{}

type OverlayStateAction struct{}

func (*NavigateAction) isAction()      {}
func (*ClickAction) isAction()         {}
func (*TypeAction) isAction()          {}
func (*ScrollAction) isAction()        {}
func (*ScreenshotAction) isAction()    {}
func (*ExtractAction) isAction()       {}
func (*EvaluateAction) isAction()      {}
func (*PageInfoAction) isAction()      {}
func (*TabsAction) isAction()          {}
func (*SwitchTabAction) isAction()     {}
func (*PressKeyAction) isAction()      {}
func (*SelectOptionAction) isAction()  {}
func (*BackAction) isAction()          {}
func (*ForwardAction) isAction()       {}
func (*ReloadAction) isAction()        {}
func (*ConsoleLogsAction) isAction()   {}
func (*ShowOverlayAction) isAction()   {}
func (*UpdateOverlayAction) isAction() {}
func (*HideOverlayAction) isAction()   {}
func (*OverlayStateAction) isAction()  {}

// ParseAction decodes one request into its variant. Unknown names get
// UnknownActionError; known names with unusable params get a plain
// error naming the problem.
func ParseAction(name string, raw json.RawMessage) (Action, error) {
	dec := func(v any) error {
		if len(raw) == 0 || string(raw) == "null" {
			return nil
		}
		if err := json.Unmarshal(raw, v); err != nil {
			return fmt.Errorf("parse %s params: %w", name, err)
		}
		return nil
	}

	switch name {
	case "navigate":
		var a NavigateAction
		if err := dec(&a); err != nil {
			return nil, err
		}
		if a.URL == "" {
			return nil, fmt.Errorf("navigate: url is required")
		}
		return &a, nil

	case "click":
		var a ClickAction
		if err := dec(&a); err != nil {
			return nil, err
		}
		if a.Selector == "" && (a.X == nil || a.Y == nil) {
			return nil, fmt.Errorf("click: selector or x/y coordinates required")
		}
		return &a, nil

	case "type":
		var a TypeAction
		if err := dec(&a); err != nil {
			return nil, err
		}
		return &a, nil

	case "scroll":
		var a ScrollAction
		if err := dec(&a); err != nil {
			return nil, err
		}
		if a.Direction == "" && a.Selector == "" && (a.X == nil || a.Y == nil) {
			return nil, fmt.Errorf("scroll: direction, selector, or x/y coordinates required")
		}
		return &a, nil

	case "screenshot":
		var a ScreenshotAction
		if err := dec(&a); err != nil {
			return nil, err
		}
		return &a, nil

	case "extract":
		var a ExtractAction
		if err := dec(&a); err != nil {
			return nil, err
		}
		if a.Selector == "" {
			return nil, fmt.Errorf("extract: selector is required")
		}
		return &a, nil

	case "evaluate":
		var a EvaluateAction
		if err := dec(&a); err != nil {
			return nil, err
		}
		if a.Script == "" {
			return nil, fmt.Errorf("evaluate: script is required")
		}
		return &a, nil

	case "getPageInfo":
		return &PageInfoAction{}, nil

	case "getTabs":
		return &TabsAction{}, nil

	case "switchTab":
		var a SwitchTabAction
		if err := dec(&a); err != nil {
			return nil, err
		}
		if a.TabID == "" {
			return nil, fmt.Errorf("switchTab: tabId is required")
		}
		return &a, nil

	case "pressKey":
		var a PressKeyAction
		if err := dec(&a); err != nil {
			return nil, err
		}
		if a.Key == "" {
			return nil, fmt.Errorf("pressKey: key is required")
		}
		return &a, nil

	case "selectOption":
		var a SelectOptionAction
		if err := dec(&a); err != nil {
			return nil, err
		}
		if a.Selector == "" {
			return nil, fmt.Errorf("selectOption: selector is required")
		}
		if a.Value == nil && a.Text == nil && a.Index == nil {
			return nil, fmt.Errorf("selectOption: value, text, or index required")
		}
		return &a, nil

	case "goBack":
		return &BackAction{}, nil

	case "goForward":
		return &ForwardAction{}, nil

	case "reload":
		return &ReloadAction{}, nil

	case "getConsoleLogs":
		return &ConsoleLogsAction{}, nil

	case "showOverlay":
		var a ShowOverlayAction
		if err := dec(&a); err != nil {
			return nil, err
		}
		return &a, nil

	case "updateOverlayStatus":
		var a UpdateOverlayAction
		if err := dec(&a); err != nil {
			return nil, err
		}
		return &a, nil

	case "hideOverlay":
		return &HideOverlayAction{}, nil

	case "getOverlayState":
		return &OverlayStateAction{}, nil

	default:
		return nil, &UnknownActionError{Name: name}
	}
}
