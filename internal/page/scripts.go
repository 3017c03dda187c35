package page

import "fmt"

const pageInfoScript = `({url: location.href, title: document.title})`

const scrollPositionScript = `({x: window.scrollX, y: window.scrollY})`

// elementRectScript scrolls the first match into view and returns its
// bounding box, or null when the selector matches nothing.
func elementRectScript(selector string) string {
	return fmt.Sprintf(`(() => {
	const el = document.querySelector(%q);
	if (!el) return null;
	el.scrollIntoView({block: 'center', inline: 'nearest'});
	const r = el.getBoundingClientRect();
	return {x: r.x, y: r.y, width: r.width, height: r.height};
})()`, selector)
}

func selectAllScript(selector string) string {
	return fmt.Sprintf(`(() => {
	const el = document.querySelector(%q);
	if (!el) return null;
	el.focus();
	if (typeof el.select === 'function') {
		el.select();
	} else {
		const range = document.createRange();
		range.selectNodeContents(el);
		const sel = window.getSelection();
		sel.removeAllRanges();
		sel.addRange(range);
	}
	return true;
})()`, selector)
}

func scrollToElementScript(selector string) string {
	return fmt.Sprintf(`(() => {
	const el = document.querySelector(%q);
	if (!el) return null;
	el.scrollIntoView({block: 'center', inline: 'nearest'});
	return {x: window.scrollX, y: window.scrollY};
})()`, selector)
}

func scrollToScript(x, y float64) string {
	return fmt.Sprintf(`(() => {
	window.scrollTo(%v, %v);
	return {x: window.scrollX, y: window.scrollY};
})()`, x, y)
}

// optionsSnapshotScript lists a select element's options so the winner
// can be resolved host-side, or null when the selector matches nothing.
func optionsSnapshotScript(selector string) string {
	return fmt.Sprintf(`(() => {
	const el = document.querySelector(%q);
	if (!el || !el.options) return null;
	return {options: Array.from(el.options).map(o => ({value: o.value, text: o.text}))};
})()`, selector)
}

func selectApplyScript(selector string, index int) string {
	return fmt.Sprintf(`(() => {
	const el = document.querySelector(%q);
	if (!el) return null;
	el.selectedIndex = %d;
	el.dispatchEvent(new Event('input', {bubbles: true}));
	el.dispatchEvent(new Event('change', {bubbles: true}));
	return true;
})()`, selector, index)
}

func extractScript(selector string) string {
	return fmt.Sprintf(`(() => {
	const out = [];
	for (const el of document.querySelectorAll(%q)) {
		if (out.length >= 100) break;
		const attrs = {};
		for (const a of el.attributes) attrs[a.name] = a.value;
		out.push({
			tag: el.tagName.toLowerCase(),
			text: (el.innerText || el.textContent || '').trim().slice(0, 2000),
			attrs: attrs,
		});
	}
	return out;
})()`, selector)
}

// consoleInterceptorScript wraps the console methods and window error
// hooks, reporting entries through the named binding. The marker keeps
// repeat injections from double-wrapping.
func consoleInterceptorScript(binding string) string {
	return fmt.Sprintf(`(() => {
	if (window.__browserAgentConsoleHooked) return;
	window.__browserAgentConsoleHooked = true;
	const report = (type, text, url, line) => {
		try { window[%q](JSON.stringify({type: type, text: text, url: url, line: line})); } catch (e) {}
	};
	const fmt = (a) => {
		if (typeof a === 'string') return a;
		try { return JSON.stringify(a); } catch (e) { return String(a); }
	};
	for (const level of ['log', 'info', 'warn', 'error', 'debug']) {
		const original = console[level];
		console[level] = function(...args) {
			report(level, args.map(fmt).join(' '), '', 0);
			return original.apply(console, args);
		};
	}
	window.addEventListener('error', (e) => {
		report('error', e.message, e.filename || '', e.lineno || 0);
	});
	window.addEventListener('unhandledrejection', (e) => {
		const reason = e.reason && e.reason.message ? e.reason.message : String(e.reason);
		report('error', 'Unhandled rejection: ' + reason, '', 0);
	});
})()`, binding)
}
