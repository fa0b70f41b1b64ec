package browser

import (
	"errors"

	"github.com/go-rod/rod/lib/proto"

	"github.com/formpilot/formpilot/internal/page"
)

// describeElementJS extracts the observable attributes of an element,
// including a computed CSS path and XPath as last-resort locators. It is
// spliced into the body of each eval function.
const describeElementJS = `
	const isValidIdent = (s) => {
		if (!s || s.length === 0) return false;
		if (/^[0-9]/.test(s)) return false;
		if (/^-[0-9]/.test(s)) return false;
		if (/[.:#\[\]()>~+*\/\\]/.test(s)) return false;
		return true;
	};
	const cssPath = (el) => {
		if (!el || el === document.documentElement) return 'html';
		if (el.id && isValidIdent(el.id)) return '#' + el.id;
		if (el.name) return el.tagName.toLowerCase() + '[name="' + el.name + '"]';
		if (el.className && typeof el.className === 'string') {
			const cls = el.className.trim().split(/\s+/).filter(isValidIdent).slice(0, 2);
			if (cls.length > 0) {
				const sel = el.tagName.toLowerCase() + '.' + cls.join('.');
				try {
					if (document.querySelectorAll(sel).length === 1) return sel;
				} catch (e) {}
			}
		}
		const parent = el.parentElement;
		if (parent) {
			const idx = Array.from(parent.children).indexOf(el) + 1;
			return cssPath(parent) + ' > ' + el.tagName.toLowerCase() + ':nth-child(' + idx + ')';
		}
		return el.tagName.toLowerCase();
	};
	const xPath = (el) => {
		if (!el || el.nodeType !== 1) return '';
		if (el === document.documentElement) return '/html';
		const parent = el.parentElement;
		if (!parent) return '/' + el.tagName.toLowerCase();
		const same = Array.from(parent.children).filter(c => c.tagName === el.tagName);
		const idx = same.indexOf(el) + 1;
		return xPath(parent) + '/' + el.tagName.toLowerCase() + '[' + idx + ']';
	};
	const describe = (el) => {
		if (!el || el === document.body || el === document.documentElement) return null;
		return {
			tag: el.tagName.toLowerCase(),
			testId: el.getAttribute('data-testid') || el.getAttribute('data-test-id') || '',
			id: el.id || '',
			name: el.getAttribute('name') || '',
			role: el.getAttribute('role') || '',
			ariaLabel: el.getAttribute('aria-label') || '',
			placeholder: el.getAttribute('placeholder') || '',
			type: el.type || '',
			text: (el.textContent || el.value || '').trim().slice(0, 80),
			cssPath: cssPath(el),
			xpath: xPath(el)
		};
	};
`

// errNoElement is returned when a hit-test or focus query lands on nothing
// actionable.
var errNoElement = errors.New("no element at target")

func infoFromEval(obj *proto.RuntimeRemoteObject) (*page.ElementInfo, error) {
	v := obj.Value
	if v.Nil() {
		return nil, errNoElement
	}
	return &page.ElementInfo{
		Tag:         v.Get("tag").Str(),
		TestID:      v.Get("testId").Str(),
		ID:          v.Get("id").Str(),
		Name:        v.Get("name").Str(),
		Role:        v.Get("role").Str(),
		AriaLabel:   v.Get("ariaLabel").Str(),
		Placeholder: v.Get("placeholder").Str(),
		Type:        v.Get("type").Str(),
		Text:        v.Get("text").Str(),
		CSSPath:     v.Get("cssPath").Str(),
		XPath:       v.Get("xpath").Str(),
	}, nil
}

// Snapshot extracts the interactive surface of the page for the scripted
// and vision layers.
func Snapshot(p page.Page) (*page.Snapshot, error) {
	rp, ok := p.(*Page)
	if !ok {
		return nil, errors.New("snapshot requires a rod-backed page")
	}

	info, err := rp.page.Info()
	if err != nil {
		return nil, err
	}

	obj, err := rp.page.Eval(`() => {
		const elements = [];
		const seen = new Set();
		` + describeElementJS + `
		const push = (el, kind, text) => {
			if (!el.offsetParent) return;
			const d = describe(el);
			if (!d) return;
			if (seen.has(d.cssPath)) return;
			seen.add(d.cssPath);
			elements.push({
				selector: d.cssPath,
				type: kind,
				text: text,
				placeholder: d.placeholder || undefined,
				name: d.name || undefined,
				id: d.id || undefined,
				testId: d.testId || undefined,
				role: d.role || undefined,
				ariaLabel: d.ariaLabel || undefined
			});
		};
		document.querySelectorAll('button, [role="button"], input[type="submit"], input[type="button"]').forEach(el => {
			push(el, 'button', (el.textContent || el.value || '').trim().slice(0, 50));
		});
		document.querySelectorAll('input:not([type="hidden"]):not([type="submit"]):not([type="button"]), textarea').forEach(el => {
			push(el, el.type || 'text', '');
		});
		document.querySelectorAll('select').forEach(el => {
			push(el, 'select', '');
		});
		document.querySelectorAll('a[href]').forEach(el => {
			const href = el.getAttribute('href');
			if (href.startsWith('#') || href.startsWith('javascript:')) return;
			push(el, 'link', (el.textContent || '').trim().slice(0, 50));
		});
		return elements;
	}`)
	if err != nil {
		return nil, err
	}

	snap := &page.Snapshot{URL: info.URL, Title: info.Title}
	for _, v := range obj.Value.Arr() {
		snap.Elements = append(snap.Elements, page.SnapshotElement{
			Selector:    v.Get("selector").Str(),
			Kind:        v.Get("type").Str(),
			Text:        v.Get("text").Str(),
			Placeholder: v.Get("placeholder").Str(),
			Name:        v.Get("name").Str(),
			ID:          v.Get("id").Str(),
			TestID:      v.Get("testId").Str(),
			Role:        v.Get("role").Str(),
			AriaLabel:   v.Get("ariaLabel").Str(),
		})
	}
	return snap, nil
}

// Screenshot captures the viewport as PNG through the driver interface.
func Screenshot(p page.Page) ([]byte, error) {
	rp, ok := p.(*Page)
	if !ok {
		return nil, errors.New("screenshot requires a rod-backed page")
	}
	return rp.Screenshot()
}
