package browser

import (
	"encoding/json"
	"fmt"
	"strings"
)

// SelectorKind is the query language of a selector expression.
type SelectorKind string

const (
	KindCSS    SelectorKind = "css"
	KindXPath  SelectorKind = "xpath"
	KindShadow SelectorKind = "shadow"
)

const shadowSeparator = " >>> "

// Selector is a parsed selector expression.
type Selector struct {
	Kind SelectorKind `json:"kind"`
	// Parts holds one expression, or one CSS expression per shadow level.
	Parts []string `json:"parts"`
}

// ParseSelector classifies expr. XPath starts with "/", "(" or "xpath=".
// Shadow-piercing CSS separates levels with " >>> ". Anything else is CSS.
func ParseSelector(expr string) (Selector, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return Selector{}, fmt.Errorf("empty selector")
	}

	switch {
	case strings.HasPrefix(expr, "xpath="):
		x := strings.TrimSpace(strings.TrimPrefix(expr, "xpath="))
		if x == "" {
			return Selector{}, fmt.Errorf("empty xpath in %q", expr)
		}
		return Selector{Kind: KindXPath, Parts: []string{x}}, nil
	case strings.HasPrefix(expr, "/"), strings.HasPrefix(expr, "("):
		return Selector{Kind: KindXPath, Parts: []string{expr}}, nil
	case strings.Contains(expr, shadowSeparator):
		var parts []string
		for _, p := range strings.Split(expr, shadowSeparator) {
			p = strings.TrimSpace(p)
			if p == "" {
				return Selector{}, fmt.Errorf("empty shadow level in %q", expr)
			}
			parts = append(parts, p)
		}
		return Selector{Kind: KindShadow, Parts: parts}, nil
	default:
		return Selector{Kind: KindCSS, Parts: []string{expr}}, nil
	}
}

// locateJS defines __tpLocate(desc) which returns the elements a parsed
// selector matches, in document order.
const locateJS = `
function __tpLocate(desc) {
  if (desc.kind === "xpath") {
    const snap = document.evaluate(desc.parts[0], document, null, XPathResult.ORDERED_NODE_SNAPSHOT_TYPE, null);
    const out = [];
    for (let i = 0; i < snap.snapshotLength; i++) {
      const n = snap.snapshotItem(i);
      if (n && n.nodeType === Node.ELEMENT_NODE) out.push(n);
    }
    return out;
  }
  let scopes = [document];
  for (let i = 0; i < desc.parts.length; i++) {
    const next = [];
    for (const s of scopes) {
      const root = i === 0 ? s : (s.shadowRoot || s);
      next.push(...root.querySelectorAll(desc.parts[i]));
    }
    scopes = next;
  }
  return scopes;
}
function __tpVisible(e) {
  const st = window.getComputedStyle(e);
  if (st.display === "none" || st.visibility === "hidden") return false;
  return e.getClientRects().length > 0;
}
function __tpChecked(e) {
  if (typeof e.checked === "boolean") return e.checked;
  const aria = e.getAttribute("aria-checked");
  if (aria !== null) return aria === "true";
  const box = e.querySelector("input[type=checkbox]");
  return box ? box.checked : false;
}
function __tpText(e) {
  if (e.value !== undefined && (e.tagName === "INPUT" || e.tagName === "TEXTAREA")) return String(e.value);
  return (e.innerText || e.textContent || "").trim();
}
`

// script wraps body in an IIFE where sel is the parsed selector and el the
// addressed element, or null when it no longer exists.
func script(expr string, index int, body string) (string, error) {
	sel, err := ParseSelector(expr)
	if err != nil {
		return "", err
	}
	desc, err := json.Marshal(sel)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf(`(() => {%s
const sel = %s;
const all = __tpLocate(sel);
const el = all[%d] || null;
%s
})()`, locateJS, desc, index, body), nil
}

// inspectBody reports the state of every match.
const inspectBody = `return all.map(e => ({
  visible: __tpVisible(e),
  enabled: !(e.disabled === true || e.getAttribute("aria-disabled") === "true"),
  checked: __tpChecked(e),
  text: __tpText(e),
}));`

const textBody = `if (!el) return null; return __tpText(el);`

const scrollBody = `if (!el) return false; el.scrollIntoView({block: "center", inline: "nearest"}); return true;`

const revealBody = `if (!el) return false;
el.removeAttribute("hidden");
el.style.setProperty("display", "block", "important");
el.style.setProperty("visibility", "visible", "important");
el.style.setProperty("opacity", "1", "important");
el.style.setProperty("width", "1px");
el.style.setProperty("height", "1px");
return true;`

const focusBody = `if (!el) return false; el.focus(); return true;`

const selectAllBody = `if (!el) return false;
el.focus();
if (typeof el.select === "function") { el.select(); return true; }
const range = document.createRange();
range.selectNodeContents(el);
const sel = window.getSelection();
sel.removeAllRanges();
sel.addRange(range);
return true;`

const scriptClickBody = `if (!el) return false; el.click(); return true;`

// pointBody scrolls el into view and returns its center, and whether a hit
// test at that point lands on el or one of its descendants.
const pointBody = `if (!el || !__tpVisible(el)) return null;
el.scrollIntoView({block: "center", inline: "nearest"});
const r = el.getBoundingClientRect();
const x = r.left + r.width / 2, y = r.top + r.height / 2;
const hit = document.elementFromPoint(x, y);
return {x: x, y: y, hit: !!hit && (hit === el || el.contains(hit) || hit.contains(el))};`

// elementBody returns the element itself so its remote object can be used.
const elementBody = `return el;`
