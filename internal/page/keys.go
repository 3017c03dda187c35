package page

import (
	"fmt"
	"unicode/utf8"
)

type keyDef struct {
	Key     string
	Code    string
	KeyCode int
	Text    string
}

// namedKeys carries the dispatchKeyEvent fields for the keys agents
// actually press. Anything else must be a single printable character.
var namedKeys = map[string]keyDef{
	"Enter":      {Key: "Enter", Code: "Enter", KeyCode: 13, Text: "\r"},
	"Tab":        {Key: "Tab", Code: "Tab", KeyCode: 9},
	"Escape":     {Key: "Escape", Code: "Escape", KeyCode: 27},
	"Backspace":  {Key: "Backspace", Code: "Backspace", KeyCode: 8},
	"Delete":     {Key: "Delete", Code: "Delete", KeyCode: 46},
	"ArrowUp":    {Key: "ArrowUp", Code: "ArrowUp", KeyCode: 38},
	"ArrowDown":  {Key: "ArrowDown", Code: "ArrowDown", KeyCode: 40},
	"ArrowLeft":  {Key: "ArrowLeft", Code: "ArrowLeft", KeyCode: 37},
	"ArrowRight": {Key: "ArrowRight", Code: "ArrowRight", KeyCode: 39},
	"Home":       {Key: "Home", Code: "Home", KeyCode: 36},
	"End":        {Key: "End", Code: "End", KeyCode: 35},
	"PageUp":     {Key: "PageUp", Code: "PageUp", KeyCode: 33},
	"PageDown":   {Key: "PageDown", Code: "PageDown", KeyCode: 34},
	"Space":      {Key: " ", Code: "Space", KeyCode: 32, Text: " "},
}

func resolveKey(key string) (keyDef, error) {
	if def, ok := namedKeys[key]; ok {
		return def, nil
	}
	if utf8.RuneCountInString(key) == 1 {
		return keyDef{Key: key, Text: key}, nil
	}
	return keyDef{}, fmt.Errorf("unknown key: %s", key)
}
