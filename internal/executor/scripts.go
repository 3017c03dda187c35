package executor

import (
	"encoding/json"
	"fmt"
)

// overlayHookScript calls one method of the page-side overlay object.
// Pages without the hook return null, which callers treat as "overlay
// not available", never as a failure.
func overlayHookScript(method string, arg any) string {
	argJSON := ""
	if arg != nil {
		if raw, err := json.Marshal(arg); err == nil {
			argJSON = string(raw)
		}
	}
	return fmt.Sprintf(`(() => {
	const o = window.__browserAgentOverlay;
	if (!o || typeof o.%s !== 'function') return null;
	const out = o.%s(%s);
	return out === undefined ? true : out;
})()`, method, method, argJSON)
}
