// Package tools exposes the browser actions as an MCP tool catalogue
// and dispatches tool calls over the bridge.
package tools

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// Definition ties an MCP tool to the bridge action it triggers. Slow
// names the overlay status shown while the action runs; tools that
// finish near-instantly leave it empty.
type Definition struct {
	Tool   mcp.Tool
	Action string
	Slow   string
}

// Catalog returns every tool the agent exposes, in registration order.
func Catalog() []Definition {
	return []Definition{
		{
			Tool: mcp.NewTool("navigate",
				mcp.WithDescription("Navigate the active tab to a URL and wait for the page to load."),
				mcp.WithString("url", mcp.Required(), mcp.Description("Absolute URL to open, including the scheme")),
			),
			Action: "navigate",
			Slow:   "Navigating",
		},
		{
			Tool: mcp.NewTool("click",
				mcp.WithDescription("Click an element by CSS selector, or click at viewport coordinates when x and y are given instead."),
				mcp.WithString("selector", mcp.Description("CSS selector of the element to click")),
				mcp.WithNumber("x", mcp.Description("Viewport x coordinate, used with y when no selector is given")),
				mcp.WithNumber("y", mcp.Description("Viewport y coordinate, used with x when no selector is given")),
				mcp.WithString("button", mcp.Description("Mouse button"), mcp.Enum("left", "middle", "right")),
				mcp.WithNumber("clickCount", mcp.Description("Number of clicks, 2 for double-click")),
			),
			Action: "click",
			Slow:   "Clicking",
		},
		{
			Tool: mcp.NewTool("type",
				mcp.WithDescription("Type text into the focused element, or into the element matched by selector. Set clearFirst to replace existing content."),
				mcp.WithString("text", mcp.Required(), mcp.Description("Text to type")),
				mcp.WithString("selector", mcp.Description("CSS selector of the input to focus first")),
				mcp.WithBoolean("clearFirst", mcp.Description("Clear the element before typing")),
				mcp.WithNumber("delayMs", mcp.Description("Delay between keystrokes in milliseconds; 0 inserts the text in one step")),
			),
			Action: "type",
			Slow:   "Typing",
		},
		{
			Tool: mcp.NewTool("scroll",
				mcp.WithDescription("Scroll the page by direction, to absolute coordinates, or until the element matched by selector is in view."),
				mcp.WithString("direction", mcp.Description("Scroll direction"), mcp.Enum("up", "down", "left", "right")),
				mcp.WithNumber("distance", mcp.Description("Distance in pixels for directional scrolling")),
				mcp.WithString("selector", mcp.Description("CSS selector of the element to scroll into view")),
				mcp.WithNumber("x", mcp.Description("Absolute scroll x position, used with y")),
				mcp.WithNumber("y", mcp.Description("Absolute scroll y position, used with x")),
			),
			Action: "scroll",
			Slow:   "Scrolling",
		},
		{
			Tool: mcp.NewTool("screenshot",
				mcp.WithDescription("Capture the visible viewport, or the full page when fullPage is set. Returns the image inline."),
				mcp.WithString("format", mcp.Description("Image format"), mcp.Enum("png", "jpeg")),
				mcp.WithNumber("quality", mcp.Description("JPEG quality 1-100, ignored for png")),
				mcp.WithBoolean("fullPage", mcp.Description("Capture the whole document instead of the viewport")),
			),
			Action: "screenshot",
			Slow:   "Taking screenshot",
		},
		{
			Tool: mcp.NewTool("extract",
				mcp.WithDescription("Extract text content and key attributes from every element matching a CSS selector."),
				mcp.WithString("selector", mcp.Required(), mcp.Description("CSS selector of the elements to read")),
			),
			Action: "extract",
			Slow:   "Extracting content",
		},
		{
			Tool: mcp.NewTool("evaluate",
				mcp.WithDescription("Run a JavaScript expression in the page and return its JSON-serialized result."),
				mcp.WithString("script", mcp.Required(), mcp.Description("JavaScript expression to evaluate")),
			),
			Action: "evaluate",
			Slow:   "Running script",
		},
		{
			Tool: mcp.NewTool("get_page_info",
				mcp.WithDescription("Get the active tab's URL, title, and viewport size."),
			),
			Action: "getPageInfo",
		},
		{
			Tool: mcp.NewTool("get_tabs",
				mcp.WithDescription("List all open tabs with their ids, URLs, and titles. The active tab is marked."),
			),
			Action: "getTabs",
		},
		{
			Tool: mcp.NewTool("switch_tab",
				mcp.WithDescription("Make another tab active. Use get_tabs to find tab ids."),
				mcp.WithString("tabId", mcp.Required(), mcp.Description("Id of the tab to activate")),
			),
			Action: "switchTab",
		},
		{
			Tool: mcp.NewTool("press_key",
				mcp.WithDescription("Press a single key in the active tab, such as Enter, Tab, Escape, ArrowDown, or a printable character."),
				mcp.WithString("key", mcp.Required(), mcp.Description("Key name or single character")),
			),
			Action: "pressKey",
		},
		{
			Tool: mcp.NewTool("select_option",
				mcp.WithDescription("Choose an option in a <select> element by value, visible text, or index."),
				mcp.WithString("selector", mcp.Required(), mcp.Description("CSS selector of the select element")),
				mcp.WithString("value", mcp.Description("Option value attribute to match")),
				mcp.WithString("text", mcp.Description("Visible option text to match, compared after trimming whitespace")),
				mcp.WithNumber("index", mcp.Description("Zero-based option index")),
			),
			Action: "selectOption",
		},
		{
			Tool: mcp.NewTool("go_back",
				mcp.WithDescription("Go back one entry in the tab's history and wait for the page to load."),
			),
			Action: "goBack",
		},
		{
			Tool: mcp.NewTool("go_forward",
				mcp.WithDescription("Go forward one entry in the tab's history and wait for the page to load."),
			),
			Action: "goForward",
		},
		{
			Tool: mcp.NewTool("reload",
				mcp.WithDescription("Reload the active tab and wait for the page to load."),
			),
			Action: "reload",
		},
	}
}
