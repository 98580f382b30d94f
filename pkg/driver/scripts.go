package driver

// markBySemanticText tags every element whose accessible text equals the
// wanted text with data-webrun-target and returns the match count. An
// optional container hint keeps only elements under an ancestor whose
// heading matches the hint.
const markBySemanticText = `(text, hint) => {
	const norm = s => (s || "").trim().replace(/\s+/g, " ");
	const want = norm(text);
	const textOf = el => norm(
		el.getAttribute("aria-label") ||
		el.getAttribute("placeholder") ||
		el.getAttribute("title") ||
		el.getAttribute("alt") ||
		el.value ||
		el.innerText ||
		el.textContent);

	const selector = "a,button,input,select,textarea,option,label,li,tr,td," +
		"[role=button],[role=link],[role=menuitem],[role=option],[role=tab]";
	let candidates = Array.from(document.querySelectorAll(selector))
		.filter(el => textOf(el) === want);

	if (hint) {
		const wantHint = norm(hint);
		const underHint = el => {
			for (let n = el.parentElement; n; n = n.parentElement) {
				const heading = n.querySelector("h1,h2,h3,h4,legend,caption,[role=heading]");
				if (heading && norm(heading.innerText) === wantHint) return true;
				if (norm(n.getAttribute("aria-label")) === wantHint) return true;
			}
			return false;
		};
		const scoped = candidates.filter(underHint);
		if (scoped.length > 0) candidates = scoped;
	}

	document.querySelectorAll("[data-webrun-target]")
		.forEach(el => el.removeAttribute("data-webrun-target"));
	candidates.forEach(el => el.setAttribute("data-webrun-target", ""));
	return candidates.length;
}`

// markByFingerprint recomputes the recorder's element fingerprint for every
// candidate element and tags the one matching the wanted hash. The hash
// covers tag name, id, name, classes and position among same-tag siblings;
// the recorder computes the identical signature.
const markByFingerprint = `(want) => {
	const fingerprint = el => {
		let pos = 0;
		for (let n = el.previousElementSibling; n; n = n.previousElementSibling) {
			if (n.tagName === el.tagName) pos++;
		}
		const sig = [el.tagName, el.id || "", el.getAttribute("name") || "",
			el.className || "", String(pos)].join("|");
		let h = 5381;
		for (let i = 0; i < sig.length; i++) {
			h = ((h << 5) + h + sig.charCodeAt(i)) >>> 0;
		}
		return "h-" + h.toString(16);
	};

	document.querySelectorAll("[data-webrun-target]")
		.forEach(el => el.removeAttribute("data-webrun-target"));
	const all = document.querySelectorAll("a,button,input,select,textarea,li,tr,td,div,span");
	for (const el of all) {
		if (fingerprint(el) === want) {
			el.setAttribute("data-webrun-target", "");
			return 1;
		}
	}
	return 0;
}`

// forceClick is the fallback when rod's native click is intercepted by an
// overlay.
const forceClick = `() => {
	this.click();
	this.dispatchEvent(new MouseEvent("click", {bubbles: true}));
}`

// pageText collects the readable page content for extraction.
const pageText = `() => document.body ? document.body.innerText : ""`
