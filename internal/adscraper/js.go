// File: internal/adscraper/js.go
package adscraper

// The scripts below run in the page's main world. Detected elements and
// disclosure controls are registered in a per-visit arena on
// window.__adscope, keyed by integer handles; navigation discards the arena,
// so handles are never dereferenced across a navigation boundary.
//
// Child frame documents are reachable from the top window because the
// browser is launched with site isolation and web security disabled.

// helperScript is installed on every new document. It defines the visibility
// predicate and the native-dialog helpers the detection and preparation
// steps call into.
const helperScript = `
(() => {
  if (window.__adscopeIsShown) return;

  // A best-effort visibility check: rendered size, computed style, and
  // clipping by overflow:hidden ancestors.
  window.__adscopeIsShown = function (el) {
    try {
      if (!el || !el.getBoundingClientRect) return false;
      const rect = el.getBoundingClientRect();
      if (rect.width === 0 || rect.height === 0) return false;
      const win = el.ownerDocument.defaultView;
      let node = el;
      while (node && node.nodeType === 1) {
        const style = win.getComputedStyle(node);
        if (style.display === 'none' || style.visibility === 'hidden') return false;
        if (style.opacity !== '' && parseFloat(style.opacity) === 0) return false;
        if (node !== el && (style.overflow === 'hidden' || style.overflowY === 'hidden')) {
          const cr = node.getBoundingClientRect();
          if (rect.bottom < cr.top || rect.top > cr.bottom ||
              rect.right < cr.left || rect.left > cr.right) {
            return false;
          }
        }
        node = node.parentElement;
      }
      return true;
    } catch (e) {
      return false;
    }
  };

  // Clicks away cookie/consent dialogs that would cover ad slots. Returns
  // the number of controls clicked.
  window.__adscopeDismissDialogs = function () {
    const labels = ['accept all', 'accept', 'agree', 'i agree', 'got it', 'ok', 'close', 'continue'];
    let clicked = 0;
    try {
      const controls = document.querySelectorAll('button, [role="button"], input[type="button"], input[type="submit"]');
      for (const c of controls) {
        const text = ((c.innerText || c.value || '') + '').trim().toLowerCase();
        if (!text || text.length > 40) continue;
        if (labels.some((l) => text === l)) {
          try { c.click(); clicked++; } catch (e) {}
          if (clicked >= 3) break;
        }
      }
    } catch (e) {}
    return clicked;
  };
})();
`

// detectScriptTpl applies the selector catalog, filters to visible elements,
// registers every match in the arena, and returns attribute snapshots plus
// each element's child-index path from the document root. Containment dedup
// and ordering happen on the Go side from the reported paths. Takes the
// selector list as a JSON array.
const detectScriptTpl = `
(() => {
  const A = window.__adscope = window.__adscope || { ads: [], disc: [] };
  const selectors = %s;
  const shown = (el) => {
    if (window.__adscopeIsShown) return window.__adscopeIsShown(el);
    const r = el.getBoundingClientRect();
    return r.width > 0 && r.height > 0;
  };
  const domPath = (el) => {
    const parts = [];
    let node = el;
    while (node && node.parentElement) {
      parts.unshift(Array.prototype.indexOf.call(node.parentElement.children, node));
      node = node.parentElement;
    }
    return parts.join('/');
  };

  const found = new Set();
  for (const sel of selectors) {
    let els;
    try { els = document.querySelectorAll(sel); } catch (e) { continue; }
    for (const el of els) {
      try { if (shown(el)) found.add(el); } catch (e) {}
    }
  }

  const clip = (s) => ('' + (s == null ? '' : s)).slice(0, 2000);
  return Array.from(found).map((el) => {
    const handle = A.ads.push(el) - 1;
    let box = null;
    let inView = false;
    try {
      const r = el.getBoundingClientRect();
      if (r.width || r.height) {
        box = { x: r.x + window.scrollX, y: r.y + window.scrollY, width: r.width, height: r.height };
        inView = r.bottom > 0 && r.right > 0 &&
          r.top < window.innerHeight && r.left < window.innerWidth;
      }
    } catch (e) {}
    return {
      handle: handle,
      path: domPath(el),
      attrs: {
        id: clip(el.id),
        nodeType: el.nodeName,
        class: clip(el.className),
        innerText: clip(el.innerText),
        href: clip(el.href),
        src: clip(el.src),
        ariaLabel: clip(el.getAttribute && el.getAttribute('aria-label')),
        placeholder: clip(el.getAttribute && el.getAttribute('placeholder')),
        borderStyle: clip(el.style && el.style.border),
        outerHTML: clip(el.outerHTML),
        boundingBox: box,
        intersectsViewport: inView
      }
    };
  });
})()
`

// collectScriptTpl gathers one frame's links, media, scripts, and disclosure
// controls, and registers each embedded iframe in the arena so the extractor
// can recurse. Parameters: kind ("ad" or "frame") and arena handle.
const collectScriptTpl = `
(() => {
  const A = window.__adscope = window.__adscope || { ads: [], disc: [] };
  const kind = %q;
  const rootEl = A.ads[%d];
  if (!rootEl) return { accessible: false };

  let doc, scope, win;
  if (kind === 'frame') {
    try { doc = rootEl.contentDocument; win = rootEl.contentWindow; } catch (e) { doc = null; }
    if (!doc || !doc.documentElement) return { accessible: false };
    scope = doc.documentElement;
  } else {
    doc = rootEl.ownerDocument;
    win = doc.defaultView;
    scope = rootEl;
  }

  const q = (sel) => { try { return Array.from(scope.querySelectorAll(sel)); } catch (e) { return []; } };
  const adurlOf = (href) => {
    try { return new URL(href).searchParams.get('adurl') || ''; } catch (e) { return ''; }
  };

  const res = {
    accessible: true, frameUrl: '', isMainDocument: false,
    links: [], gwdLinks: [], imgs: [], backgroundImgs: [], videos: [],
    scripts: [], iframeSrcs: [], disclosures: [], children: []
  };
  try { res.frameUrl = (doc.location && doc.location.href) || ''; } catch (e) {}
  try { res.isMainDocument = win ? win.self === win.top : false; } catch (e) {}

  try {
    for (const a of q('a')) {
      const href = a.href || '';
      if (!href) continue;
      res.links.push({ href: href, adurl: adurlOf(href), text: ('' + (a.innerText || '')).slice(0, 200) });
    }
  } catch (e) {}

  try {
    for (const el of q('gwd-taparea')) {
      const href = el.getAttribute('data-exit-override-url') || el.getAttribute('exit-override-url') || '';
      if (href) res.gwdLinks.push({ href: href, adurl: adurlOf(href) });
    }
  } catch (e) {}

  try {
    for (const s of q('script[src]')) { if (s.src) res.scripts.push(s.src); }
  } catch (e) {}

  try {
    for (const f of q('iframe')) {
      if (f.src) res.iframeSrcs.push(f.src);
      let ok = false;
      try { ok = !!(f.contentDocument && f.contentDocument.documentElement); } catch (e) { ok = false; }
      res.children.push({ handle: A.ads.push(f) - 1, src: f.src || '', accessible: ok });
    }
  } catch (e) {}

  try {
    for (const v of q('video')) {
      let src = v.src || '';
      if (!src) { const s = v.querySelector('source'); src = (s && s.src) || ''; }
      if (!src) continue;
      const r = v.getBoundingClientRect();
      res.videos.push({ src: src, width: r.width, height: r.height });
    }
  } catch (e) {}

  try {
    for (const img of q('img')) {
      if (!img.src) continue;
      const r = img.getBoundingClientRect();
      res.imgs.push({ src: img.src, width: r.width, height: r.height });
    }
  } catch (e) {}

  // Elements whose computed style cannot be read are silently dropped.
  try {
    const styleWin = doc.defaultView;
    for (const el of q('*')) {
      let bg = '';
      try { bg = styleWin.getComputedStyle(el).backgroundImage || ''; } catch (e) { continue; }
      const m = /url\(["']?([^"')]+)["']?\)/.exec(bg);
      if (!m) continue;
      const r = el.getBoundingClientRect();
      res.backgroundImgs.push({ src: m[1], width: r.width, height: r.height });
    }
  } catch (e) {}

  try {
    const re = /adchoice|whythisad|privacy\/adinfo/i;
    for (const a of q('a')) {
      const href = a.href || '';
      if (!re.test(href)) continue;
      res.disclosures.push({ handle: A.disc.push(a) - 1, href: href, frameUrl: res.frameUrl });
    }
  } catch (e) {}

  return res;
})()
`

// adBorderScriptTpl sets (or with an empty style, removes) the border of a
// registered ad element. Parameters: handle, CSS border value.
const adBorderScriptTpl = `
(() => {
  const A = window.__adscope;
  if (!A || !A.ads[%d]) return false;
  try { A.ads[%d].style.border = %q; return true; } catch (e) { return false; }
})()
`

// adBoxScriptTpl reads the current bounding box of a registered ad element in
// page coordinates, or null when the element no longer renders.
const adBoxScriptTpl = `
(() => {
  const A = window.__adscope;
  if (!A || !A.ads[%d]) return null;
  try {
    const r = A.ads[%d].getBoundingClientRect();
    if (!r.width && !r.height) return null;
    return { x: r.x + window.scrollX, y: r.y + window.scrollY, width: r.width, height: r.height };
  } catch (e) { return null; }
})()
`

// scrollIntoViewScriptTpl centers a registered ad element in the viewport.
const scrollIntoViewScriptTpl = `
(() => {
  const A = window.__adscope;
  if (!A || !A.ads[%d]) return false;
  try { A.ads[%d].scrollIntoView({ block: 'center', inline: 'center' }); return true; } catch (e) { return false; }
})()
`

// scrollByScriptTpl scrolls the window vertically by the given pixel delta.
const scrollByScriptTpl = `window.scrollBy(0, %d); true`

// jsClickScriptTpl fires a synthetic click on a registered disclosure
// control. Returns whether the call completed.
const jsClickScriptTpl = `
(() => {
  const A = window.__adscope;
  if (!A || !A.disc[%d]) return false;
  try { A.disc[%d].click(); return true; } catch (e) { return false; }
})()
`

// discPointScriptTpl resolves the viewport coordinates of a disclosure
// control's center, accumulating frame offsets up to the top window.
const discPointScriptTpl = `
(() => {
  const A = window.__adscope;
  if (!A || !A.disc[%d]) return null;
  try {
    const el = A.disc[%d];
    const r = el.getBoundingClientRect();
    let x = r.x + r.width / 2;
    let y = r.y + r.height / 2;
    let win = el.ownerDocument.defaultView;
    while (win && win !== win.parent) {
      const fe = win.frameElement;
      if (!fe) break;
      const fr = fe.getBoundingClientRect();
      x += fr.x;
      y += fr.y;
      win = win.parent;
    }
    return { x: x, y: y };
  } catch (e) { return null; }
})()
`

// scrollBottomAndUpScript walks the page to the bottom in randomized steps
// and returns to the top, giving lazy-loaded ad slots a chance to render.
const scrollBottomAndUpScript = `
(async () => {
  const pause = () => new Promise((r) => setTimeout(r, 100 + Math.floor(Math.random() * 150)));
  const height = () => (document.body ? document.body.scrollHeight : 0);
  let y = 0;
  let steps = 0;
  while (y < height() && steps < 100) {
    y += 300 + Math.floor(Math.random() * 200);
    window.scrollTo(0, y);
    await pause();
    steps++;
  }
  window.scrollTo(0, 0);
  await pause();
  return true;
})()
`

// dismissDialogsScript invokes the injected dialog helper, tolerating pages
// where the injection never ran.
const dismissDialogsScript = `
(() => {
  try { return window.__adscopeDismissDialogs ? window.__adscopeDismissDialogs() : 0; } catch (e) { return 0; }
})()
`

// pageTextScript reads the visible text of the document, truncated.
const pageTextScript = `
(() => {
  try { return document.body ? ('' + document.body.innerText).slice(0, 5000) : ''; } catch (e) { return ''; }
})()
`

// outerHTMLScript serializes the current document.
const outerHTMLScript = `document.documentElement ? document.documentElement.outerHTML : ''`

// googleCanonicalScript extracts the canonical disclosure URL that Google's
// ad-settings page records for the clicked ad. Empty when absent.
const googleCanonicalScript = `
(() => {
  try {
    const r = window.AF_dataServiceRequests;
    if (r && r['ds:0'] && r['ds:0'].request && r['ds:0'].request[5]) {
      return '' + r['ds:0'].request[5];
    }
  } catch (e) {}
  return '';
})()
`
